package reporting

import (
	"net/http"
	"sort"

	"github.com/labstack/echo/v4"

	"github.com/him/wellness/internal/platform/auth"
)

// ReportDefinition describes one dashboard report.
type ReportDefinition struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Path        string   `json:"path"`
	Parameters  []string `json:"parameters"`
	// DefaultWindow is the number of days shown when no range is given.
	DefaultWindow int      `json:"defaultWindow,omitempty"`
	Sources       []string `json:"sources"`
	Exportable    bool     `json:"exportable"`
}

var rangeParams = []string{"startDate", "endDate"}

// Reports is the catalog of available reports.
var Reports = []ReportDefinition{
	{
		ID:          "daily-sales",
		Name:        "Daily Sales Snapshot",
		Description: "Visits, sales, average transaction and pending payments for the latest invoice date, with the change against the previous day",
		Path:        "/api/v1/wellness/daily-sales",
		Parameters:  []string{},
		Sources:     []string{"invoices", "itemized_sales"},
	},
	{
		ID:            "sales-trend",
		Name:          "Sales Trend",
		Description:   "Daily sales total and visit count over a date range",
		Path:          "/api/v1/wellness/sales-trend",
		Parameters:    rangeParams,
		DefaultWindow: 30,
		Sources:       []string{"invoices"},
		Exportable:    true,
	},
	{
		ID:            "daily-registration",
		Name:          "Daily Registrations",
		Description:   "Booking-fee registrations per day split into new and returning patients",
		Path:          "/api/v1/wellness/daily-registration",
		Parameters:    rangeParams,
		DefaultWindow: 30,
		Sources:       []string{"invoices", "consultations", "patients", "doctors"},
		Exportable:    true,
	},
	{
		ID:            "daily-closing",
		Name:          "Daily Closings",
		Description:   "First paid procedure per patient and procedure code, per day",
		Path:          "/api/v1/wellness/daily-closing",
		Parameters:    rangeParams,
		DefaultWindow: 30,
		Sources:       []string{"invoices", "prescriptions", "patients", "doctors"},
		Exportable:    true,
	},
	{
		ID:            "occupancy-rate",
		Name:          "Occupancy Rate",
		Description:   "Consultation and treatment slot utilisation per day",
		Path:          "/api/v1/wellness/occupancy-rate",
		Parameters:    rangeParams,
		DefaultWindow: 14,
		Sources:       []string{"consultations", "prescriptions"},
		Exportable:    true,
	},
	{
		ID:          "latest-date",
		Name:        "Latest Available Date",
		Description: "Most recent date with any invoice, consultation or prescription",
		Path:        "/api/v1/wellness/latest-date",
		Parameters:  []string{},
		Sources:     []string{"invoices", "consultations", "prescriptions"},
	},
	{
		ID:          "connection",
		Name:        "Connection Probe",
		Description: "Store connectivity, schema table count and invoice coverage",
		Path:        "/api/v1/wellness/connection",
		Parameters:  []string{},
		Sources:     []string{"invoices"},
	},
}

// Handler serves the report catalog.
type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

// RegisterRoutes registers the catalog routes.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/reports", auth.RequireRole(auth.RoleReportViewer, auth.RoleReportExport))
	g.GET("", h.ListReports)
	g.GET("/:id", h.GetReport)
}

// ListReports returns all report definitions.
func (h *Handler) ListReports(c echo.Context) error {
	return c.JSON(http.StatusOK, Reports)
}

func (h *Handler) GetReport(c echo.Context) error {
	r := FindReport(c.Param("id"))
	if r == nil {
		return echo.NewHTTPError(http.StatusNotFound, "report not found")
	}
	return c.JSON(http.StatusOK, r)
}

// FindReport looks up a report by ID.
func FindReport(id string) *ReportDefinition {
	for i := range Reports {
		if Reports[i].ID == id {
			return &Reports[i]
		}
	}
	return nil
}

// ExportableIDs lists the reports that can be exported, sorted.
func ExportableIDs() []string {
	var ids []string
	for _, r := range Reports {
		if r.Exportable {
			ids = append(ids, r.ID)
		}
	}
	sort.Strings(ids)
	return ids
}
