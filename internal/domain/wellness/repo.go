package wellness

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/him/wellness/pkg/calendar"
)

// Repository reads the reporting store. Every method takes the branch schema
// to read from; the store is never written.
type Repository interface {
	LatestInvoiceAt(ctx context.Context, schema string, f InvoiceFilter) (*time.Time, error)
	LatestVisitDate(ctx context.Context, schema string) (*time.Time, error)
	LatestPrescriptionAt(ctx context.Context, schema string) (*time.Time, error)

	Sales(ctx context.Context, schema string, w Window) ([]SaleRow, error)
	PendingPayments(ctx context.Context, schema string) (*PendingPayments, error)

	// BookingFeeInvoices returns every fee invoice before w.Before for each
	// patient with at least one fee invoice inside w.
	BookingFeeInvoices(ctx context.Context, schema string, fee decimal.Decimal, w Window) ([]RegistrationRow, error)
	// FeeConsultations returns consultations paid at exactly fee for the same
	// patients, up to the day after w.Before.
	FeeConsultations(ctx context.Context, schema string, fee decimal.Decimal, w Window) ([]ConsultationRow, error)

	// ClosingCandidates returns paid invoices before the bound joined to
	// procedures prescribed within a day of the invoice for a plausibly
	// matching patient.
	ClosingCandidates(ctx context.Context, schema string, before time.Time) ([]ClosingCandidate, error)

	Consultations(ctx context.Context, schema string, from, to calendar.Date) ([]ConsultationRow, error)
	Prescriptions(ctx context.Context, schema string, w Window) ([]PrescriptionRow, error)

	Probe(ctx context.Context, schema string) (*ProbeResult, error)
}
