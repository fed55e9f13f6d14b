package v1

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/clearquote/assistant/internal/domain"
)

// ListConversations retrieves the caller's conversations, most recent first.
// GET /v1/conversations
func (h *Handler) ListConversations(c echo.Context) error {
	id, ok := identityFrom(c)
	if !ok {
		return unauthorized(c)
	}
	limit := queryLimit(c, 50)

	ctx := c.Request().Context()
	conversations, err := h.store.ListConversations(ctx, id.TenantID, id.UserID, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errorBody(domain.ErrCodeInternalError, "failed to list conversations"))
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"conversations": conversations,
	})
}

// GetConversationMessages retrieves the newest messages for one of the
// caller's conversations, in chronological order. The before cursor pages
// backward through older messages.
// GET /v1/conversations/:conversation_id/messages
func (h *Handler) GetConversationMessages(c echo.Context) error {
	id, ok := identityFrom(c)
	if !ok {
		return unauthorized(c)
	}
	conversationID := c.Param("conversation_id")
	limit := queryLimit(c, 50)
	before := c.QueryParam("before")

	ctx := c.Request().Context()
	conv, err := h.store.GetConversation(ctx, conversationID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errorBody(domain.ErrCodeInternalError, "failed to load conversation"))
	}
	// A foreign conversation reads the same as a missing one.
	if conv == nil || conv.TenantID != id.TenantID || conv.OwnerID != id.UserID {
		return c.JSON(http.StatusNotFound, errorBody(domain.ErrCodeConversationNotFound, "conversation not found"))
	}

	messages, err := h.store.GetMessages(ctx, conversationID, limit, before)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errorBody(domain.ErrCodeInternalError, "failed to load messages"))
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"messages": messages,
		"has_more": len(messages) == limit,
	})
}

// ListGuardrailEvents retrieves the tenant's guardrail audit log, most recent
// first.
// GET /v1/guardrail/events
func (h *Handler) ListGuardrailEvents(c echo.Context) error {
	id, ok := identityFrom(c)
	if !ok {
		return unauthorized(c)
	}
	limit := queryLimit(c, 100)

	ctx := c.Request().Context()
	events, err := h.store.ListGuardrailEvents(ctx, id.TenantID, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errorBody(domain.ErrCodeInternalError, "failed to list guardrail events"))
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"events": events,
	})
}

func queryLimit(c echo.Context, fallback int) int {
	limit := fallback
	if l := c.QueryParam("limit"); l != "" {
		if val, err := strconv.Atoi(l); err == nil && val > 0 {
			limit = val
		}
	}
	return limit
}
