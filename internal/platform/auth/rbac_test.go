package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func contextWithRoles(t *testing.T, roles ...string) echo.Context {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(context.WithValue(req.Context(), UserRolesKey, roles))
	return e.NewContext(req, httptest.NewRecorder())
}

func ok(c echo.Context) error { return c.String(http.StatusOK, "ok") }

func TestRequireRole_Allowed(t *testing.T) {
	c := contextWithRoles(t, RoleReportViewer)
	if err := RequireRole(RoleReportViewer, RoleReportExport)(ok)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRequireRole_AdminBypass(t *testing.T) {
	c := contextWithRoles(t, RoleAdmin)
	if err := RequireRole(RoleReportExport)(ok)(c); err != nil {
		t.Fatalf("expected admin to pass, got %v", err)
	}
}

func TestRequireRole_Denied(t *testing.T) {
	c := contextWithRoles(t, RoleReportViewer)
	err := RequireRole(RoleReportExport)(ok)(c)
	httpErr, isHTTP := err.(*echo.HTTPError)
	if !isHTTP || httpErr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %v", err)
	}
}

func TestRequireRole_NoRoles(t *testing.T) {
	c := contextWithRoles(t)
	if err := RequireRole(RoleReportViewer)(ok)(c); err == nil {
		t.Fatal("expected error for user without roles")
	}
}

func TestRequireBranch(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(context.WithValue(req.Context(), UserBranchesKey, []string{"him_ttdi"}))
	c := e.NewContext(req, httptest.NewRecorder())

	c.Set("branch", "him_ttdi")
	if err := RequireBranch()(ok)(c); err != nil {
		t.Fatalf("expected permitted branch to pass, got %v", err)
	}

	c.Set("branch", "him_bangsar")
	err := RequireBranch()(ok)(c)
	httpErr, isHTTP := err.(*echo.HTTPError)
	if !isHTTP || httpErr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %v", err)
	}
}

func TestBranchAllowed(t *testing.T) {
	tests := []struct {
		allowed []string
		branch  string
		want    bool
	}{
		{nil, "him_ttdi", true},
		{[]string{"him_ttdi"}, "him_ttdi", true},
		{[]string{"him_ttdi"}, "other", false},
		{[]string{"*"}, "other", true},
	}
	for _, tt := range tests {
		if got := BranchAllowed(tt.allowed, tt.branch); got != tt.want {
			t.Errorf("BranchAllowed(%v, %q) = %v, want %v", tt.allowed, tt.branch, got, tt.want)
		}
	}
}
