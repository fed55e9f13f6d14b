package v1

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/clearquote/assistant/internal/domain"
)

// Chat runs one chat turn and streams the result as server-sent events.
// POST /v1/chat
//
// The pipeline reports every failure as a typed event. Failures that occur
// before the first token (validation, rate limit, not-found) are returned as a
// plain JSON error with the matching status code instead, so non-streaming
// clients see real HTTP semantics. Once streaming has started the status is
// already committed and errors travel in-band.
func (h *Handler) Chat(c echo.Context) error {
	id, ok := identityFrom(c)
	if !ok {
		return unauthorized(c)
	}

	var req domain.ChatRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody(domain.ErrCodeValidationError, "invalid request body"))
	}

	ctx := c.Request().Context()
	events := h.chat.Stream(ctx, id, req)

	first, ok := <-events
	if !ok {
		return c.JSON(http.StatusInternalServerError, errorBody(domain.ErrCodeInternalError, "stream produced no events"))
	}
	if first.Type == domain.EventTypeError {
		if first.RetryAfter > 0 {
			c.Response().Header().Set("Retry-After", strconv.Itoa(first.RetryAfter))
		}
		return c.JSON(first.Code.HTTPStatus(), first)
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)

	if err := writeEvent(res, first); err != nil {
		return nil
	}
	for ev := range events {
		if err := writeEvent(res, ev); err != nil {
			// Client is gone; the pipeline notices via the request context.
			return nil
		}
		if ev.Terminal() {
			break
		}
	}
	return nil
}

// writeEvent serializes one event in SSE framing and flushes it immediately so
// tokens reach the client as they are generated.
func writeEvent(res *echo.Response, ev domain.StreamEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(res, "data: %s\n\n", payload); err != nil {
		return err
	}
	res.Flush()
	return nil
}
