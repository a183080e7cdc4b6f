package wellness

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/him/wellness/pkg/calendar"
)

// Report identifiers, shared with the report catalog and the CLI.
const (
	ReportDailySales        = "daily-sales"
	ReportSalesTrend        = "sales-trend"
	ReportDailyRegistration = "daily-registration"
	ReportDailyClosing      = "daily-closing"
	ReportOccupancyRate     = "occupancy-rate"
	ReportLatestDate        = "latest-date"
	ReportConnection        = "connection"
)

// Fallback labels for missing reference data.
const (
	UnknownProcedure = "Unknown Procedure"
	NotAvailable     = "N/A"
)

// -- Store rows --
//
// Timestamps are naive ("timestamp without time zone") values as read from
// the store; their fields are wall-clock readings in the store timezone.
// Service code normalizes them exactly once, on ingestion.

// Window is a half-open [From, Before) bound on naive store timestamps.
type Window struct {
	From   time.Time
	Before time.Time
}

// InvoiceFilter restricts which invoices count when looking for the latest date.
type InvoiceFilter struct {
	// Total, when set, matches invoices of exactly this amount.
	Total *decimal.Decimal
	// PaidOnly matches invoices with a positive total.
	PaidOnly bool
}

type SaleRow struct {
	InvoiceID string
	At        *time.Time
	Total     decimal.NullDecimal
}

type PendingPayments struct {
	VisitDate *time.Time
	Count     int
	Total     decimal.Decimal
}

type RegistrationRow struct {
	InvoiceID   string
	PatientID   string
	At          *time.Time
	InvoiceCode *string
	ReceiptCode *string
	PatientName *string
	PhoneNo     *string
	MRN         *string
	DoctorName  *string
}

type ConsultationRow struct {
	PatientID string
	VisitDate *time.Time
}

type PrescriptionRow struct {
	PatientID     string
	ProcedureCode *string
	ProcedureName *string
	At            *time.Time
}

// ClosingCandidate pairs a paid invoice with a procedure prescribed around the
// same day. The store pre-filters loosely; exact qualification happens in the
// service.
type ClosingCandidate struct {
	InvoiceID   string
	PatientID   string
	InvoiceAt   *time.Time
	InvoiceCode *string
	ReceiptCode *string
	PatientName *string
	PhoneNo     *string
	MRN         *string
	FirstVisit  *time.Time
	DoctorName  *string

	ProcedurePatientID string
	ProcedureMRN       *string
	ProcedureName      *string
	ProcedureCode      *string
	PrescribedAt       *time.Time
}

type ProbeResult struct {
	CurrentTime       time.Time
	Database          string
	TableCount        int
	InvoiceCount      int
	LatestInvoiceDate *time.Time
}

// -- Responses --

type DailySales struct {
	LatestDate     calendar.Date `json:"latestDate"`
	TotalVisits    int           `json:"totalVisits"`
	TotalSales     float64       `json:"totalSales"`
	AvgTransaction float64       `json:"avgTransaction"`
	PendingCount   int           `json:"pendingCount"`
	PendingTotal   float64       `json:"pendingTotal"`
	Trend          float64       `json:"trend"`
}

type SalesTrendPoint struct {
	Date       calendar.Date `json:"date"`
	TotalSales float64       `json:"totalSales"`
	VisitCount int           `json:"visitCount"`
}

// SalesTrend is a zero-filled ascending daily series.
type SalesTrend []SalesTrendPoint

type Registration struct {
	InvoiceID        string        `json:"invoiceId"`
	PatientID        string        `json:"patientId"`
	PatientName      *string       `json:"patientName"`
	PhoneNo          *string       `json:"phoneNo"`
	MRNNo            *string       `json:"mrnNo"`
	RegistrationDate calendar.Date `json:"registrationDate"`
	InvoiceCode      *string       `json:"invoiceCode"`
	ReceiptCode      *string       `json:"receiptCode"`
	DoctorName       string        `json:"doctorName"`
	IsNewPatient     bool          `json:"isNewPatient"`
}

type RegistrationDay struct {
	Date             calendar.Date  `json:"date"`
	Total            int            `json:"total"`
	NewPatients      int            `json:"newPatients"`
	ExistingPatients int            `json:"existingPatients"`
	Registrations    []Registration `json:"registrations"`
}

type RegistrationPoint struct {
	Date             calendar.Date `json:"date"`
	NewPatients      int           `json:"newPatients"`
	ExistingPatients int           `json:"existingPatients"`
	Total            int           `json:"total"`
}

type RegistrationReport struct {
	DateRange             calendar.Range      `json:"dateRange"`
	TotalRegistrations    int                 `json:"totalRegistrations"`
	TotalNewPatients      int                 `json:"totalNewPatients"`
	TotalExistingPatients int                 `json:"totalExistingPatients"`
	DailyRegistrations    []RegistrationDay   `json:"dailyRegistrations"`
	ChartData             []RegistrationPoint `json:"chartData"`
}

type Closing struct {
	InvoiceID     string        `json:"invoiceId"`
	PatientID     string        `json:"patientId"`
	PatientName   *string       `json:"patientName"`
	PhoneNo       *string       `json:"phoneNo"`
	MRNNo         *string       `json:"mrnNo"`
	ClosingDate   calendar.Date `json:"closingDate"`
	InvoiceCode   *string       `json:"invoiceCode"`
	ReceiptCode   *string       `json:"receiptCode"`
	ProcedureName string        `json:"procedureName"`
	ProcedureCode string        `json:"procedureCode"`
	DoctorName    string        `json:"doctorName"`
	IsNewPatient  bool          `json:"isNewPatient"`
}

type ClosingDay struct {
	Date     calendar.Date `json:"date"`
	Count    int           `json:"count"`
	Closings []Closing     `json:"closings"`
}

type ProcedureCount struct {
	ProcedureName string `json:"procedureName"`
	ProcedureCode string `json:"procedureCode"`
	Count         int    `json:"count"`
}

type ClosingReport struct {
	DateRange          calendar.Range    `json:"dateRange"`
	TotalClosings      int               `json:"totalClosings"`
	DailyClosings      []ClosingDay      `json:"dailyClosings"`
	ProcedureBreakdown []ProcedureCount  `json:"procedureBreakdown"`
	ChartData          []CodeSeriesPoint `json:"chartData"`
}

type OccupancyDay struct {
	Date                      calendar.Date `json:"date"`
	ConsultationCount         int           `json:"consultationCount"`
	ProcedureCount            int           `json:"procedureCount"`
	ConsultationOccupancyRate float64       `json:"consultationOccupancyRate"`
	TreatmentOccupancyRate    float64       `json:"treatmentOccupancyRate"`
}

type ConsultationPoint struct {
	Date                  calendar.Date `json:"date"`
	ConsultationOccupancy float64       `json:"consultationOccupancy"`
	ConsultationCount     int           `json:"consultationCount"`
}

type ProcedureLabel struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type OccupancySummary struct {
	AvgConsultationOccupancy float64 `json:"avgConsultationOccupancy"`
	AvgTreatmentOccupancy    float64 `json:"avgTreatmentOccupancy"`
}

type OccupancyReport struct {
	DateRange             calendar.Range      `json:"dateRange"`
	DailyOccupancy        []OccupancyDay      `json:"dailyOccupancy"`
	ConsultationChartData []ConsultationPoint `json:"consultationChartData"`
	ProcedureChartData    []CodeSeriesPoint   `json:"procedureChartData"`
	ProcedureCodeNames    []ProcedureLabel    `json:"procedureCodeNames"`
	Summary               OccupancySummary    `json:"summary"`
}

type LatestDate struct {
	LatestDate *calendar.Date `json:"latestDate"`
}

type ConnectionInfo struct {
	CurrentTime time.Time `json:"currentTime"`
	Database    string    `json:"database"`
}

type SchemaInfo struct {
	Name       string `json:"name"`
	TableCount int    `json:"tableCount"`
}

type InvoiceInfo struct {
	TotalCount        int            `json:"totalCount"`
	LatestInvoiceDate *calendar.Date `json:"latestInvoiceDate"`
}

type Connection struct {
	Success    bool           `json:"success"`
	Connection ConnectionInfo `json:"connection"`
	Schema     SchemaInfo     `json:"schema"`
	Invoices   InvoiceInfo    `json:"invoices"`
}

// CodeSeriesPoint is one day of a chart series keyed by procedure code. The
// key set is open: it is whatever codes occur in the report's data. In JSON
// the counts sit next to "date" in a single flat object; a code literally
// named "date" is not representable and is dropped.
type CodeSeriesPoint struct {
	Date   calendar.Date
	Counts map[string]int
}

func (p CodeSeriesPoint) MarshalJSON() ([]byte, error) {
	flat := make(map[string]interface{}, len(p.Counts)+1)
	for code, n := range p.Counts {
		if code == "date" {
			continue
		}
		flat[code] = n
	}
	flat["date"] = p.Date
	return json.Marshal(flat)
}

func (p *CodeSeriesPoint) UnmarshalJSON(b []byte) error {
	var flat map[string]json.RawMessage
	if err := json.Unmarshal(b, &flat); err != nil {
		return err
	}
	raw, ok := flat["date"]
	if !ok {
		return fmt.Errorf("series point has no date")
	}
	if err := json.Unmarshal(raw, &p.Date); err != nil {
		return err
	}
	p.Counts = make(map[string]int, len(flat)-1)
	for k, v := range flat {
		if k == "date" {
			continue
		}
		var n int
		if err := json.Unmarshal(v, &n); err != nil {
			return fmt.Errorf("series key %q: %w", k, err)
		}
		p.Counts[k] = n
	}
	return nil
}

func orNA(s *string) string {
	if s == nil || *s == "" {
		return NotAvailable
	}
	return *s
}

func orDefault(s *string, def string) string {
	if s == nil || *s == "" {
		return def
	}
	return *s
}
