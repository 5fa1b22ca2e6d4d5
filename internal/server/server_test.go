package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

type probeHandler struct{}

func (probeHandler) Register(e *echo.Echo) {
	e.GET("/probe", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
}

func TestEveryResponseCarriesCORSHeaders(t *testing.T) {
	t.Parallel()

	srv := NewServer(nil, ":0", []Handler{probeHandler{}})

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get(echo.HeaderAccessControlAllowOrigin); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}
}

func TestOptionsShortCircuits(t *testing.T) {
	t.Parallel()

	srv := NewServer(nil, ":0", []Handler{probeHandler{}})

	req := httptest.NewRequest(http.MethodOptions, "/api/webhook", nil)
	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get(echo.HeaderAccessControlAllowOrigin); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}
}

func TestNilHandlersAreSkipped(t *testing.T) {
	t.Parallel()

	srv := NewServer(nil, "", []Handler{nil, probeHandler{}})
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}
