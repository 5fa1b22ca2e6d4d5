// Package server assembles the echo instance serving the gateway's HTTP
// surface.
package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Handler registers routes on the echo instance.
type Handler interface {
	Register(e *echo.Echo)
}

// Server wraps echo with the gateway middleware stack.
type Server struct {
	echo *echo.Echo
	addr string
}

// NewServer builds the server and registers every handler.
func NewServer(log *slog.Logger, addr string, handlers []Handler) *Server {
	if addr == "" {
		addr = ":3001"
	}
	if log == nil {
		log = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(requestLogger(log))
	e.Use(permissiveCORS)

	for _, h := range handlers {
		if h != nil {
			h.Register(e)
		}
	}

	return &Server{
		echo: e,
		addr: addr,
	}
}

// Start blocks serving HTTP until Shutdown or a listener error.
func (s *Server) Start() error {
	return s.echo.Start(s.addr)
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Echo exposes the underlying instance for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// permissiveCORS stamps every response for the browser dashboard, which is
// served from a different origin. echo's CORS middleware only emits headers
// for requests carrying an Origin header; the dashboard contract wants them
// unconditionally.
func permissiveCORS(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Response().Header()
		header.Set(echo.HeaderAccessControlAllowOrigin, "*")
		header.Set(echo.HeaderAccessControlAllowMethods, "GET,POST,OPTIONS")
		header.Set(echo.HeaderAccessControlAllowHeaders, "Content-Type,x-hub-signature-256,x-correlation-id")
		if c.Request().Method == http.MethodOptions {
			return c.NoContent(http.StatusNoContent)
		}
		return next(c)
	}
}

func requestLogger(log *slog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus: true,
		LogURI:    true,
		LogMethod: true,
		LogError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
			}
			if v.Error != nil {
				attrs = append(attrs, slog.Any("error", v.Error))
				log.LogAttrs(c.Request().Context(), slog.LevelError, "request", attrs...)
				return nil
			}
			log.LogAttrs(c.Request().Context(), slog.LevelInfo, "request", attrs...)
			return nil
		},
	})
}
