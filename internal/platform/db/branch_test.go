package db

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestExtractBranch_FromHeader(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(BranchHeader, "him_bangsar")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if got := extractBranch(c, "him_ttdi"); got != "him_bangsar" {
		t.Errorf("expected him_bangsar, got %s", got)
	}
}

func TestExtractBranch_FromQuery(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?branch=him_klcc", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if got := extractBranch(c, "him_ttdi"); got != "him_klcc" {
		t.Errorf("expected him_klcc, got %s", got)
	}
}

func TestExtractBranch_Default(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if got := extractBranch(c, "him_ttdi"); got != "him_ttdi" {
		t.Errorf("expected him_ttdi, got %s", got)
	}
}

func TestBranchMiddleware_SetsContext(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var seen string
	h := BranchMiddleware("him_ttdi")(func(c echo.Context) error {
		seen = BranchFromContext(c.Request().Context(), "")
		return c.NoContent(http.StatusOK)
	})
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seen != "him_ttdi" {
		t.Errorf("expected him_ttdi in context, got %q", seen)
	}
}

func TestBranchMiddleware_RejectsInjection(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(BranchHeader, "him_ttdi; DROP SCHEMA public")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := BranchMiddleware("him_ttdi")(func(c echo.Context) error {
		t.Fatal("handler should not run")
		return nil
	})(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestBranchFromContext_Fallback(t *testing.T) {
	if got := BranchFromContext(context.Background(), "him_ttdi"); got != "him_ttdi" {
		t.Errorf("expected fallback, got %s", got)
	}
}

func TestTable_QuotesIdentifiers(t *testing.T) {
	if got := Table("him_ttdi", "invoices"); got != `"him_ttdi"."invoices"` {
		t.Errorf("unexpected table name %s", got)
	}
}
