package wellness

import (
	"context"
	"fmt"

	"github.com/him/wellness/internal/platform/export"
	"github.com/him/wellness/pkg/calendar"
)

func nullable(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func (t SalesTrend) Sheets() []export.Sheet {
	rows := make([][]interface{}, len(t))
	for i, p := range t {
		rows[i] = []interface{}{p.Date.String(), p.TotalSales, p.VisitCount}
	}
	return []export.Sheet{{
		Name:   "Sales Trend",
		Header: []string{"Date", "Total Sales", "Visits"},
		Rows:   rows,
	}}
}

func (r *RegistrationReport) Sheets() []export.Sheet {
	daily := make([][]interface{}, len(r.ChartData))
	for i, p := range r.ChartData {
		daily[i] = []interface{}{p.Date.String(), p.NewPatients, p.ExistingPatients, p.Total}
	}
	var detail [][]interface{}
	for _, day := range r.DailyRegistrations {
		for _, reg := range day.Registrations {
			detail = append(detail, []interface{}{
				reg.RegistrationDate.String(), reg.PatientID, nullable(reg.PatientName), nullable(reg.MRNNo),
				nullable(reg.PhoneNo), nullable(reg.InvoiceCode), nullable(reg.ReceiptCode),
				reg.DoctorName, reg.IsNewPatient,
			})
		}
	}
	return []export.Sheet{
		{
			Name:   "Daily Registrations",
			Header: []string{"Date", "New Patients", "Existing Patients", "Total"},
			Rows:   daily,
		},
		{
			Name: "Registrations",
			Header: []string{"Date", "Patient ID", "Patient Name", "MRN", "Phone",
				"Invoice Code", "Receipt Code", "Doctor", "New Patient"},
			Rows: detail,
		},
	}
}

func (r *ClosingReport) Sheets() []export.Sheet {
	var detail [][]interface{}
	for _, day := range r.DailyClosings {
		for _, c := range day.Closings {
			detail = append(detail, []interface{}{
				c.ClosingDate.String(), c.PatientID, nullable(c.PatientName), nullable(c.MRNNo),
				c.ProcedureCode, c.ProcedureName, nullable(c.InvoiceCode), nullable(c.ReceiptCode),
				c.DoctorName, c.IsNewPatient,
			})
		}
	}
	breakdown := make([][]interface{}, len(r.ProcedureBreakdown))
	for i, p := range r.ProcedureBreakdown {
		breakdown[i] = []interface{}{p.ProcedureCode, p.ProcedureName, p.Count}
	}
	return []export.Sheet{
		{
			Name: "Closings",
			Header: []string{"Date", "Patient ID", "Patient Name", "MRN", "Procedure Code",
				"Procedure", "Invoice Code", "Receipt Code", "Doctor", "New Patient"},
			Rows: detail,
		},
		{
			Name:   "Procedure Breakdown",
			Header: []string{"Procedure Code", "Procedure", "Closings"},
			Rows:   breakdown,
		},
	}
}

func (r *OccupancyReport) Sheets() []export.Sheet {
	daily := make([][]interface{}, len(r.DailyOccupancy))
	for i, d := range r.DailyOccupancy {
		daily[i] = []interface{}{
			d.Date.String(), d.ConsultationCount, d.ConsultationOccupancyRate,
			d.ProcedureCount, d.TreatmentOccupancyRate,
		}
	}

	codes := make([]string, len(r.ProcedureCodeNames))
	header := []string{"Date"}
	for i, l := range r.ProcedureCodeNames {
		codes[i] = l.Code
		header = append(header, l.Code)
	}
	series := make([][]interface{}, len(r.ProcedureChartData))
	for i, p := range r.ProcedureChartData {
		row := []interface{}{p.Date.String()}
		for _, code := range codes {
			row = append(row, p.Counts[code])
		}
		series[i] = row
	}

	return []export.Sheet{
		{
			Name: "Daily Occupancy",
			Header: []string{"Date", "Consultations", "Consultation Occupancy %",
				"Procedures", "Treatment Occupancy %"},
			Rows: daily,
		},
		{Name: "Procedures by Code", Header: header, Rows: series},
		{
			Name:   "Summary",
			Header: []string{"Avg Consultation Occupancy %", "Avg Treatment Occupancy %"},
			Rows: [][]interface{}{{
				r.Summary.AvgConsultationOccupancy, r.Summary.AvgTreatmentOccupancy,
			}},
		},
	}
}

// Workbook is an exportable report rendered to sheets.
type Workbook struct {
	Report string
	Range  calendar.Range
	Sheets []export.Sheet
}

// Filename is the attachment name of the workbook.
func (w *Workbook) Filename() string {
	return export.Filename(w.Report, w.Range.Start.String(), w.Range.End.String())
}

// Export runs an exportable report and renders it to sheets.
func (s *Service) Export(ctx context.Context, report string, explicit *calendar.Range) (*Workbook, error) {
	wb := &Workbook{Report: report}
	switch report {
	case ReportSalesTrend:
		t, err := s.SalesTrend(ctx, explicit)
		if err != nil {
			return nil, err
		}
		if len(t) > 0 {
			wb.Range = calendar.Range{Start: t[0].Date, End: t[len(t)-1].Date}
		}
		wb.Sheets = t.Sheets()
	case ReportDailyRegistration:
		r, err := s.DailyRegistration(ctx, explicit)
		if err != nil {
			return nil, err
		}
		wb.Range, wb.Sheets = r.DateRange, r.Sheets()
	case ReportDailyClosing:
		r, err := s.DailyClosing(ctx, explicit)
		if err != nil {
			return nil, err
		}
		wb.Range, wb.Sheets = r.DateRange, r.Sheets()
	case ReportOccupancyRate:
		r, err := s.OccupancyRate(ctx, explicit)
		if err != nil {
			return nil, err
		}
		wb.Range, wb.Sheets = r.DateRange, r.Sheets()
	default:
		return nil, fmt.Errorf("%q: %w", report, ErrUnknownReport)
	}
	return wb, nil
}

// Report runs any report by id. Reports without a range ignore explicit.
func (s *Service) Report(ctx context.Context, report string, explicit *calendar.Range) (interface{}, error) {
	switch report {
	case ReportDailySales:
		return s.DailySales(ctx)
	case ReportSalesTrend:
		return s.SalesTrend(ctx, explicit)
	case ReportDailyRegistration:
		return s.DailyRegistration(ctx, explicit)
	case ReportDailyClosing:
		return s.DailyClosing(ctx, explicit)
	case ReportOccupancyRate:
		return s.OccupancyRate(ctx, explicit)
	case ReportLatestDate:
		return s.LatestDate(ctx)
	case ReportConnection:
		return s.Connection(ctx)
	}
	return nil, fmt.Errorf("%q: %w", report, ErrUnknownReport)
}
