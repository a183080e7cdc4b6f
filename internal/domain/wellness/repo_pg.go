package wellness

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/him/wellness/internal/platform/db"
	"github.com/him/wellness/pkg/calendar"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

type repoPG struct {
	pool    queryable
	timeout time.Duration
}

// NewRepo returns a Repository over pool. Each query runs under timeout.
func NewRepo(pool *pgxpool.Pool, timeout time.Duration) Repository {
	return &repoPG{pool: pool, timeout: timeout}
}

var tableNames = []string{
	"invoices", "patients", "doctors", "consultations", "procedure_prescriptions", "itemized_sales",
}

// qualify replaces {table} placeholders with quoted schema-qualified names.
func qualify(schema, sql string) string {
	pairs := make([]string, 0, 2*len(tableNames))
	for _, t := range tableNames {
		pairs = append(pairs, "{"+t+"}", db.Table(schema, t))
	}
	return strings.NewReplacer(pairs...).Replace(sql)
}

func (r *repoPG) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.timeout)
}

// dateParam is a calendar day as a value for a date column.
func dateParam(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (r *repoPG) latest(ctx context.Context, op, sql string, args ...interface{}) (*time.Time, error) {
	ctx, cancel := r.bounded(ctx)
	defer cancel()

	var at *time.Time
	if err := r.pool.QueryRow(ctx, sql, args...).Scan(&at); err != nil {
		return nil, upstream(op, err)
	}
	return at, nil
}

func (r *repoPG) LatestInvoiceAt(ctx context.Context, schema string, f InvoiceFilter) (*time.Time, error) {
	sql := `SELECT MAX(invoice_date)::timestamp FROM {invoices}`
	var args []interface{}
	switch {
	case f.Total != nil:
		sql += ` WHERE invoice_total = $1`
		args = append(args, *f.Total)
	case f.PaidOnly:
		sql += ` WHERE invoice_total > 0`
	}
	return r.latest(ctx, "latest invoice date", qualify(schema, sql), args...)
}

func (r *repoPG) LatestVisitDate(ctx context.Context, schema string) (*time.Time, error) {
	return r.latest(ctx, "latest visit date", qualify(schema, `SELECT MAX(visit_date)::date FROM {consultations}`))
}

func (r *repoPG) LatestPrescriptionAt(ctx context.Context, schema string) (*time.Time, error) {
	return r.latest(ctx, "latest prescription date",
		qualify(schema, `SELECT MAX(prescription_date)::timestamp FROM {procedure_prescriptions}`))
}

func (r *repoPG) Sales(ctx context.Context, schema string, w Window) ([]SaleRow, error) {
	ctx, cancel := r.bounded(ctx)
	defer cancel()

	rows, err := r.pool.Query(ctx, qualify(schema, `
		SELECT invoice_id::text, invoice_date::timestamp, invoice_total
		FROM {invoices}
		WHERE invoice_date >= $1 AND invoice_date < $2
		ORDER BY invoice_date, invoice_id`), w.From, w.Before)
	if err != nil {
		return nil, upstream("sales", err)
	}
	defer rows.Close()

	var out []SaleRow
	for rows.Next() {
		var s SaleRow
		if err := rows.Scan(&s.InvoiceID, &s.At, &s.Total); err != nil {
			return nil, upstream("sales scan", err)
		}
		out = append(out, s)
	}
	return out, upstream("sales", rows.Err())
}

func (r *repoPG) PendingPayments(ctx context.Context, schema string) (*PendingPayments, error) {
	ctx, cancel := r.bounded(ctx)
	defer cancel()

	p := &PendingPayments{}
	err := r.pool.QueryRow(ctx, qualify(schema, `
		WITH last_visit AS (SELECT MAX(visit_date) AS d FROM {itemized_sales})
		SELECT (SELECT d FROM last_visit)::date,
		       COUNT(*),
		       COALESCE(SUM(s.total_amount), 0)
		FROM {itemized_sales} s
		WHERE s.visit_date = (SELECT d FROM last_visit)
		  AND s.payment_status = 'pending'`)).Scan(&p.VisitDate, &p.Count, &p.Total)
	if err != nil {
		return nil, upstream("pending payments", err)
	}
	return p, nil
}

const feePatients = `
	SELECT patient_id FROM {invoices}
	WHERE invoice_total = $1 AND invoice_date >= $2 AND invoice_date < $3`

func (r *repoPG) BookingFeeInvoices(ctx context.Context, schema string, fee decimal.Decimal, w Window) ([]RegistrationRow, error) {
	ctx, cancel := r.bounded(ctx)
	defer cancel()

	rows, err := r.pool.Query(ctx, qualify(schema, `
		SELECT i.invoice_id::text, i.patient_id::text, i.invoice_date::timestamp,
		       i.invoice_code::text, i.receipt_code::text,
		       p.name::text, p.phone_no::text, p.mrn_no::text, d.doctor_name::text
		FROM {invoices} i
		JOIN {patients} p ON p.patient_id = i.patient_id
		LEFT JOIN {doctors} d ON d.doctor_id = i.doctor_id
		WHERE i.invoice_total = $1
		  AND i.invoice_date < $3
		  AND i.patient_id IN (`+feePatients+`)
		ORDER BY i.patient_id, i.invoice_date, i.invoice_id`), fee, w.From, w.Before)
	if err != nil {
		return nil, upstream("booking fee invoices", err)
	}
	defer rows.Close()

	var out []RegistrationRow
	for rows.Next() {
		var reg RegistrationRow
		if err := rows.Scan(&reg.InvoiceID, &reg.PatientID, &reg.At,
			&reg.InvoiceCode, &reg.ReceiptCode,
			&reg.PatientName, &reg.PhoneNo, &reg.MRN, &reg.DoctorName); err != nil {
			return nil, upstream("booking fee invoices scan", err)
		}
		out = append(out, reg)
	}
	return out, upstream("booking fee invoices", rows.Err())
}

func (r *repoPG) FeeConsultations(ctx context.Context, schema string, fee decimal.Decimal, w Window) ([]ConsultationRow, error) {
	ctx, cancel := r.bounded(ctx)
	defer cancel()

	rows, err := r.pool.Query(ctx, qualify(schema, `
		SELECT c.patient_id::text, c.visit_date::date
		FROM {consultations} c
		WHERE c.total_payment = $1
		  AND c.visit_date <= $4
		  AND c.patient_id IN (`+feePatients+`)`),
		fee, w.From, w.Before, dateParam(w.Before.AddDate(0, 0, 1)))
	if err != nil {
		return nil, upstream("fee consultations", err)
	}
	defer rows.Close()
	return scanConsultations(rows, "fee consultations")
}

func (r *repoPG) ClosingCandidates(ctx context.Context, schema string, before time.Time) ([]ClosingCandidate, error) {
	ctx, cancel := r.bounded(ctx)
	defer cancel()

	// The day window is widened by one on each side so the exact same-day
	// test can be made after timezone normalization.
	rows, err := r.pool.Query(ctx, qualify(schema, `
		SELECT i.invoice_id::text, i.patient_id::text, i.invoice_date::timestamp,
		       i.invoice_code::text, i.receipt_code::text,
		       pi.name::text, pi.phone_no::text, pi.mrn_no::text, pi.first_visit_date::date,
		       d.doctor_name::text,
		       pp.patient_id::text, pr.mrn_no::text,
		       pp.procedure_name::text, pp.procedure_code::text, pp.prescription_date::timestamp
		FROM {invoices} i
		JOIN {patients} pi ON pi.patient_id = i.patient_id
		JOIN {procedure_prescriptions} pp
		  ON pp.prescription_date::date BETWEEN i.invoice_date::date - 1 AND i.invoice_date::date + 1
		JOIN {patients} pr ON pr.patient_id = pp.patient_id
		LEFT JOIN {doctors} d ON d.doctor_id = i.doctor_id
		WHERE i.invoice_total > 0
		  AND i.invoice_date < $1
		  AND (pp.patient_id = i.patient_id OR pi.mrn_no = pr.mrn_no)
		ORDER BY i.patient_id, i.invoice_date, i.invoice_id`), before)
	if err != nil {
		return nil, upstream("closing candidates", err)
	}
	defer rows.Close()

	var out []ClosingCandidate
	for rows.Next() {
		var c ClosingCandidate
		if err := rows.Scan(&c.InvoiceID, &c.PatientID, &c.InvoiceAt,
			&c.InvoiceCode, &c.ReceiptCode,
			&c.PatientName, &c.PhoneNo, &c.MRN, &c.FirstVisit,
			&c.DoctorName,
			&c.ProcedurePatientID, &c.ProcedureMRN,
			&c.ProcedureName, &c.ProcedureCode, &c.PrescribedAt); err != nil {
			return nil, upstream("closing candidates scan", err)
		}
		out = append(out, c)
	}
	return out, upstream("closing candidates", rows.Err())
}

func (r *repoPG) Consultations(ctx context.Context, schema string, from, to calendar.Date) ([]ConsultationRow, error) {
	ctx, cancel := r.bounded(ctx)
	defer cancel()

	rows, err := r.pool.Query(ctx, qualify(schema, `
		SELECT patient_id::text, visit_date::date
		FROM {consultations}
		WHERE visit_date >= $1 AND visit_date <= $2
		ORDER BY visit_date`), from.StartIn(time.UTC), to.StartIn(time.UTC))
	if err != nil {
		return nil, upstream("consultations", err)
	}
	defer rows.Close()
	return scanConsultations(rows, "consultations")
}

func scanConsultations(rows pgx.Rows, op string) ([]ConsultationRow, error) {
	var out []ConsultationRow
	for rows.Next() {
		var c ConsultationRow
		if err := rows.Scan(&c.PatientID, &c.VisitDate); err != nil {
			return nil, upstream(op+" scan", err)
		}
		out = append(out, c)
	}
	return out, upstream(op, rows.Err())
}

func (r *repoPG) Prescriptions(ctx context.Context, schema string, w Window) ([]PrescriptionRow, error) {
	ctx, cancel := r.bounded(ctx)
	defer cancel()

	rows, err := r.pool.Query(ctx, qualify(schema, `
		SELECT patient_id::text, procedure_code::text, procedure_name::text, prescription_date::timestamp
		FROM {procedure_prescriptions}
		WHERE prescription_date >= $1 AND prescription_date < $2
		ORDER BY prescription_date, procedure_code`), w.From, w.Before)
	if err != nil {
		return nil, upstream("prescriptions", err)
	}
	defer rows.Close()

	var out []PrescriptionRow
	for rows.Next() {
		var p PrescriptionRow
		if err := rows.Scan(&p.PatientID, &p.ProcedureCode, &p.ProcedureName, &p.At); err != nil {
			return nil, upstream("prescriptions scan", err)
		}
		out = append(out, p)
	}
	return out, upstream("prescriptions", rows.Err())
}

func (r *repoPG) Probe(ctx context.Context, schema string) (*ProbeResult, error) {
	ctx, cancel := r.bounded(ctx)
	defer cancel()

	p := &ProbeResult{}
	if err := r.pool.QueryRow(ctx, `SELECT NOW(), current_database()`).Scan(&p.CurrentTime, &p.Database); err != nil {
		return nil, upstream("probe connection", err)
	}
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = $1`, schema).Scan(&p.TableCount); err != nil {
		return nil, upstream("probe schema", err)
	}
	if err := r.pool.QueryRow(ctx, qualify(schema,
		`SELECT COUNT(*), MAX(invoice_date)::timestamp FROM {invoices}`)).Scan(&p.InvoiceCount, &p.LatestInvoiceDate); err != nil {
		return nil, upstream("probe invoices", err)
	}
	return p, nil
}
