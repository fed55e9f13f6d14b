// Package http provides the HTTP server for the assistant.
package http

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/clearquote/assistant/internal/chat"
	"github.com/clearquote/assistant/internal/store"
	v1 "github.com/clearquote/assistant/internal/transport/http/v1"
)

// NewServer creates and configures the HTTP server. All routes sit behind the
// gateway, which injects the identity headers the handlers require.
func NewServer(chatSvc *chat.Service, st store.Store) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Handlers
	handler := v1.NewHandler(chatSvc, st)
	handler.RegisterRoutes(e)

	return e
}
