// Package httpserver exposes the voice front end over HTTP: a health probe,
// Prometheus metrics and the realtime session WebSocket.
package httpserver

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ankitagj/vani-ai/internal/config"
	"github.com/ankitagj/vani-ai/internal/metrics"
)

// Server bundles the echo instance and its dependencies.
type Server struct {
	echo *echo.Echo
}

// New constructs the HTTP server with routes. met may be nil.
func New(cfg config.Config, met *metrics.Metrics) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	h := newSessionHandler(cfg, met)
	e.GET("/session", h.serve)

	return &Server{echo: e}
}

// Start blocks serving on addr until Shutdown.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler returns the root handler, used by tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}
