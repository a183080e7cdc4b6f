package wellness

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/him/wellness/internal/platform/auth"
	"github.com/him/wellness/internal/platform/export"
	"github.com/him/wellness/internal/platform/middleware"
	"github.com/him/wellness/pkg/calendar"
)

// RangeQuery is the optional date range accepted by ranged reports.
type RangeQuery struct {
	StartDate string `query:"startDate" validate:"omitempty,datetime=2006-01-02"`
	EndDate   string `query:"endDate" validate:"omitempty,datetime=2006-01-02"`
}

// FailureRecorder counts failed report requests.
type FailureRecorder interface {
	ReportFailure(report, kind string)
}

type Handler struct {
	svc        *Service
	logger     zerolog.Logger
	production bool
	validate   *validator.Validate
	failures   FailureRecorder
}

func NewHandler(svc *Service, logger zerolog.Logger, production bool) *Handler {
	return &Handler{svc: svc, logger: logger, production: production, validate: validator.New()}
}

// WithFailureRecorder attaches r to the handler.
func (h *Handler) WithFailureRecorder(r FailureRecorder) *Handler {
	h.failures = r
	return h
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/wellness", auth.RequireRole(auth.RoleReportViewer, auth.RoleReportExport))
	g.GET("/daily-sales", h.DailySales)
	g.GET("/sales-trend", h.SalesTrend)
	g.GET("/daily-registration", h.DailyRegistration)
	g.GET("/daily-closing", h.DailyClosing)
	g.GET("/occupancy-rate", h.OccupancyRate)
	g.GET("/latest-date", h.LatestDate)
	g.GET("/connection", h.Connection)
	g.GET("/:report/export", h.Export, auth.RequireRole(auth.RoleReportExport))
}

func (h *Handler) DailySales(c echo.Context) error {
	out, err := h.svc.DailySales(c.Request().Context())
	if err != nil {
		return h.fail(c, err, "Failed to fetch daily sales data")
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) SalesTrend(c echo.Context) error {
	rng, err := h.bindRange(c)
	if err != nil {
		return h.fail(c, err, "Invalid date range")
	}
	out, err := h.svc.SalesTrend(c.Request().Context(), rng)
	if err != nil {
		return h.fail(c, err, "Failed to fetch sales trend data")
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) DailyRegistration(c echo.Context) error {
	rng, err := h.bindRange(c)
	if err != nil {
		return h.fail(c, err, "Invalid date range")
	}
	out, err := h.svc.DailyRegistration(c.Request().Context(), rng)
	if err != nil {
		return h.fail(c, err, "Failed to fetch daily registration data")
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) DailyClosing(c echo.Context) error {
	rng, err := h.bindRange(c)
	if err != nil {
		return h.fail(c, err, "Invalid date range")
	}
	out, err := h.svc.DailyClosing(c.Request().Context(), rng)
	if err != nil {
		return h.fail(c, err, "Failed to fetch daily closing data")
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) OccupancyRate(c echo.Context) error {
	rng, err := h.bindRange(c)
	if err != nil {
		return h.fail(c, err, "Invalid date range")
	}
	out, err := h.svc.OccupancyRate(c.Request().Context(), rng)
	if err != nil {
		return h.fail(c, err, "Failed to fetch occupancy rate data")
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) LatestDate(c echo.Context) error {
	out, err := h.svc.LatestDate(c.Request().Context())
	if err != nil {
		return h.fail(c, err, "Failed to fetch latest date")
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) Connection(c echo.Context) error {
	out, err := h.svc.Connection(c.Request().Context())
	if err != nil {
		return h.fail(c, err, "Database connection failed")
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) Export(c echo.Context) error {
	rng, err := h.bindRange(c)
	if err != nil {
		return h.fail(c, err, "Invalid date range")
	}
	wb, err := h.svc.Export(c.Request().Context(), c.Param("report"), rng)
	if err != nil {
		return h.fail(c, err, "Failed to export report")
	}

	var buf bytes.Buffer
	if err := export.WriteWorkbook(&buf, wb.Sheets...); err != nil {
		return h.fail(c, err, "Failed to export report")
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", wb.Filename()))
	return c.Blob(http.StatusOK, export.ContentType, buf.Bytes())
}

func (h *Handler) bindRange(c echo.Context) (*calendar.Range, error) {
	var q RangeQuery
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &q); err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrInvalidRange)
	}
	if err := h.validate.Struct(q); err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrInvalidRange)
	}
	return h.svc.ParseRange(q.StartDate, q.EndDate)
}

// reportName is the report a request addressed, taken from its route.
func reportName(c echo.Context) string {
	if r := c.Param("report"); r != "" {
		return r
	}
	return path.Base(c.Path())
}

// fail translates a service error into the shared error body.
func (h *Handler) fail(c echo.Context, err error, summary string) error {
	if errors.Is(err, context.Canceled) {
		h.logger.Debug().Err(err).Str("path", c.Path()).Msg("client went away")
		return nil
	}

	status := http.StatusInternalServerError
	body := middleware.ErrorBody{Error: summary, Message: err.Error()}

	var (
		cfgErr *ConfigurationError
		upErr  *UpstreamError
	)
	kind := "internal"
	switch {
	case errors.Is(err, ErrInvalidRange):
		status, kind = http.StatusBadRequest, "invalid_range"
	case errors.Is(err, ErrUnknownReport):
		status, kind = http.StatusNotFound, "unknown_report"
	case errors.As(err, &cfgErr):
		status, kind = http.StatusInternalServerError, "configuration"
	case errors.As(err, &upErr):
		status, kind = http.StatusServiceUnavailable, "upstream"
		if upErr.Timeout() {
			status, kind = http.StatusGatewayTimeout, "timeout"
		}
		body.Retryable = upErr.Retryable()
		body.Code, body.Detail = upErr.SQLState()
	}
	if h.failures != nil {
		h.failures.ReportFailure(reportName(c), kind)
	}

	if status >= 500 {
		h.logger.Error().Err(err).Str("path", c.Path()).Int("status", status).Msg(summary)
	}
	if h.production {
		body = body.Redact()
	}
	return middleware.WriteError(c, status, body)
}
