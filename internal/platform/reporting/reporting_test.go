package reporting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/him/wellness/internal/platform/auth"
)

func TestReports_Catalog(t *testing.T) {
	expectedIDs := []string{
		"daily-sales",
		"sales-trend",
		"daily-registration",
		"daily-closing",
		"occupancy-rate",
		"latest-date",
		"connection",
	}
	if len(Reports) != len(expectedIDs) {
		t.Fatalf("expected %d reports, got %d", len(expectedIDs), len(Reports))
	}
	for i, id := range expectedIDs {
		if Reports[i].ID != id {
			t.Errorf("expected report[%d].ID = %s, got %s", i, id, Reports[i].ID)
		}
	}
}

func TestReports_Complete(t *testing.T) {
	for _, r := range Reports {
		if r.Name == "" || r.Description == "" || r.Path == "" {
			t.Errorf("report %s is missing metadata", r.ID)
		}
		if len(r.Sources) == 0 {
			t.Errorf("report %s lists no sources", r.ID)
		}
		if r.Exportable && r.DefaultWindow == 0 {
			t.Errorf("exportable report %s needs a default window", r.ID)
		}
	}
}

func TestFindReport(t *testing.T) {
	r := FindReport("occupancy-rate")
	if r == nil {
		t.Fatal("expected to find occupancy-rate")
	}
	if r.DefaultWindow != 14 {
		t.Errorf("expected 14 day window, got %d", r.DefaultWindow)
	}
	if FindReport("nonexistent") != nil {
		t.Error("expected nil for nonexistent report")
	}
}

func TestExportableIDs(t *testing.T) {
	want := []string{"daily-closing", "daily-registration", "occupancy-rate", "sales-trend"}
	if got := ExportableIDs(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestHandler_ListReports(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/reports", nil), rec)

	if err := NewHandler().ListReports(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got []ReportDefinition
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(got) != len(Reports) {
		t.Errorf("expected %d reports, got %d", len(Reports), len(got))
	}
}

func TestHandler_GetReport(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues("nope")

	err := NewHandler().GetReport(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
}

func TestRegisterRoutes_RequiresRole(t *testing.T) {
	e := echo.New()
	NewHandler().RegisterRoutes(e.Group("/api/v1"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 without roles, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/reports/daily-sales", nil)
	req = req.WithContext(context.WithValue(req.Context(), auth.UserRolesKey, []string{auth.RoleReportViewer}))
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 with viewer role, got %d", rec.Code)
	}
}
