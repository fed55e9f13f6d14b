// Package v1 provides the external HTTP API.
package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/clearquote/assistant/internal/chat"
	"github.com/clearquote/assistant/internal/domain"
	"github.com/clearquote/assistant/internal/store"
)

// Handler handles HTTP requests.
type Handler struct {
	chat  *chat.Service
	store store.Store
}

// NewHandler creates a new handler.
func NewHandler(chatSvc *chat.Service, st store.Store) *Handler {
	return &Handler{
		chat:  chatSvc,
		store: st,
	}
}

// RegisterRoutes registers external routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/v1/chat", h.Chat)

	e.GET("/v1/conversations", h.ListConversations)
	e.GET("/v1/conversations/:conversation_id/messages", h.GetConversationMessages)

	e.GET("/v1/guardrail/events", h.ListGuardrailEvents)

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}

// identityFrom resolves the caller from the gateway-injected headers. Both
// headers are required on every /v1 route.
func identityFrom(c echo.Context) (domain.Identity, bool) {
	id := domain.Identity{
		UserID:   c.Request().Header.Get("X-User-ID"),
		TenantID: c.Request().Header.Get("X-Tenant-ID"),
	}
	return id, id.UserID != "" && id.TenantID != ""
}

func errorBody(code domain.ErrorCode, msg string) map[string]string {
	return map[string]string{
		"code":  string(code),
		"error": msg,
	}
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, errorBody(domain.ErrCodeUnauthorized, "missing identity headers"))
}
