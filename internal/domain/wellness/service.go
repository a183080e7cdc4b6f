package wellness

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/him/wellness/internal/aggregate"
	"github.com/him/wellness/internal/platform/cache"
	"github.com/him/wellness/internal/platform/db"
	"github.com/him/wellness/pkg/calendar"
)

// Settings are the report rules that come from configuration.
type Settings struct {
	DefaultSchema        string
	ReportLoc            *time.Location
	StoreLoc             *time.Location
	ConsultationCapacity int
	TreatmentCapacity    int
	BookingFee           decimal.Decimal
	ClosingExcludeTerm   string
	MaxRangeDays         int
}

const bookingFeeCategory = "booking-fee"

// Registration chart categories.
const (
	categoryNew      = "new"
	categoryExisting = "existing"
)

type Service struct {
	repo   Repository
	cfg    Settings
	cache  *cache.Cache
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(repo Repository, cfg Settings, c *cache.Cache, logger zerolog.Logger) *Service {
	if cfg.ReportLoc == nil {
		cfg.ReportLoc = time.UTC
	}
	if cfg.StoreLoc == nil {
		cfg.StoreLoc = cfg.ReportLoc
	}
	return &Service{repo: repo, cfg: cfg, cache: c, logger: logger, now: time.Now}
}

// ParseRange turns the optional startDate/endDate query values into a range.
// Unless both are given the result is nil and the report's default window
// applies.
func (s *Service) ParseRange(start, end string) (*calendar.Range, error) {
	if start == "" || end == "" {
		return nil, nil
	}
	from, err := calendar.Parse(start)
	if err != nil {
		return nil, fmt.Errorf("startDate: %w", ErrInvalidRange)
	}
	to, err := calendar.Parse(end)
	if err != nil {
		return nil, fmt.Errorf("endDate: %w", ErrInvalidRange)
	}
	rng, err := calendar.NewRange(from, to)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrInvalidRange)
	}
	if s.cfg.MaxRangeDays > 0 && rng.Days() > s.cfg.MaxRangeDays {
		return nil, fmt.Errorf("range spans %d days, limit is %d: %w", rng.Days(), s.cfg.MaxRangeDays, ErrInvalidRange)
	}
	return &rng, nil
}

func (s *Service) ready() error {
	if s == nil || s.repo == nil {
		return &ConfigurationError{Reason: "no reporting store configured"}
	}
	return nil
}

func (s *Service) schema(ctx context.Context) string {
	return db.BranchFromContext(ctx, s.cfg.DefaultSchema)
}

func (s *Service) today() calendar.Date {
	return calendar.In(s.now(), s.cfg.ReportLoc)
}

// day is the single normalization step from a naive store timestamp to a
// report-zone calendar day.
func (s *Service) day(t time.Time) calendar.Date {
	return calendar.FromWallClock(t, s.cfg.StoreLoc, s.cfg.ReportLoc)
}

func (s *Service) dayPtr(t *time.Time) *calendar.Date {
	if t == nil {
		return nil
	}
	d := s.day(*t)
	return &d
}

// window converts a report-zone range into half-open store timestamp bounds.
func (s *Service) window(rng calendar.Range) Window {
	return Window{
		From:   rng.Start.WallClockStart(s.cfg.StoreLoc, s.cfg.ReportLoc),
		Before: rng.End.AddDays(1).WallClockStart(s.cfg.StoreLoc, s.cfg.ReportLoc),
	}
}

func (s *Service) resolve(explicit *calendar.Range, latest *calendar.Date, size int) calendar.Range {
	return aggregate.ResolveRange(explicit, latest, s.today(), size)
}

func rangeKey(explicit *calendar.Range) string {
	if explicit == nil {
		return "default"
	}
	return explicit.Start.String() + ":" + explicit.End.String()
}

func (s *Service) skip(report, id, reason string) {
	s.logger.Warn().Str("report", report).Str("row", id).Str("reason", reason).Msg("skipping malformed row")
}

// -- Daily sales --

func (s *Service) DailySales(ctx context.Context) (*DailySales, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	schema := s.schema(ctx)
	return cache.Fetch(ctx, s.cache, cache.Key(schema, ReportDailySales, "default"),
		func(ctx context.Context) (*DailySales, error) { return s.dailySales(ctx, schema) })
}

func (s *Service) dailySales(ctx context.Context, schema string) (*DailySales, error) {
	latestAt, err := s.repo.LatestInvoiceAt(ctx, schema, InvoiceFilter{})
	if err != nil {
		return nil, err
	}
	if latestAt == nil {
		return &DailySales{LatestDate: s.today()}, nil
	}

	latest := s.day(*latestAt)
	rng := calendar.Trailing(latest, 2)

	var (
		rows    []SaleRow
		pending *PendingPayments
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rows, err = s.repo.Sales(gctx, schema, s.window(rng))
		return err
	})
	g.Go(func() error {
		var err error
		pending, err = s.repo.PendingPayments(gctx, schema)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	entries := make([]aggregate.Entry, 0, len(rows))
	var paid []decimal.Decimal
	for _, r := range rows {
		if r.At == nil {
			s.skip(ReportDailySales, r.InvoiceID, "no invoice date")
			continue
		}
		d := s.day(*r.At)
		amount := decimal.Zero
		if r.Total.Valid {
			amount = r.Total.Decimal
			if d == latest {
				paid = append(paid, amount)
			}
		}
		entries = append(entries, aggregate.Entry{Date: d, Amount: amount})
	}
	buckets := aggregate.BucketByDay(rng, entries)
	previous, current := buckets[0], buckets[1]

	out := &DailySales{
		LatestDate:  latest,
		TotalVisits: current.Total,
		TotalSales:  money(current.Amount),
		Trend:       aggregate.TrendPercent(current.Amount, previous.Amount),
	}
	if len(paid) > 0 {
		out.AvgTransaction = money(aggregate.Sum(paid).Div(decimal.NewFromInt(int64(len(paid)))))
	}
	if pending != nil {
		out.PendingCount = pending.Count
		out.PendingTotal = money(pending.Total)
	}
	return out, nil
}

// -- Sales trend --

func (s *Service) SalesTrend(ctx context.Context, explicit *calendar.Range) (SalesTrend, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	schema := s.schema(ctx)
	return cache.Fetch(ctx, s.cache, cache.Key(schema, ReportSalesTrend, rangeKey(explicit)),
		func(ctx context.Context) (SalesTrend, error) { return s.salesTrend(ctx, schema, explicit) })
}

func (s *Service) salesTrend(ctx context.Context, schema string, explicit *calendar.Range) (SalesTrend, error) {
	var latest *calendar.Date
	if explicit == nil {
		at, err := s.repo.LatestInvoiceAt(ctx, schema, InvoiceFilter{})
		if err != nil {
			return nil, err
		}
		latest = s.dayPtr(at)
	}
	rng := s.resolve(explicit, latest, aggregate.SalesTrendWindow)

	rows, err := s.repo.Sales(ctx, schema, s.window(rng))
	if err != nil {
		return nil, err
	}
	entries := make([]aggregate.Entry, 0, len(rows))
	for _, r := range rows {
		if r.At == nil {
			s.skip(ReportSalesTrend, r.InvoiceID, "no invoice date")
			continue
		}
		e := aggregate.Entry{Date: s.day(*r.At), Amount: decimal.Zero}
		if r.Total.Valid {
			e.Amount = r.Total.Decimal
		}
		entries = append(entries, e)
	}

	buckets := aggregate.BucketByDay(rng, entries)
	out := make(SalesTrend, len(buckets))
	for i, b := range buckets {
		out[i] = SalesTrendPoint{Date: b.Date, TotalSales: money(b.Amount), VisitCount: b.Total}
	}
	return out, nil
}

// -- Registrations --

func (s *Service) DailyRegistration(ctx context.Context, explicit *calendar.Range) (*RegistrationReport, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	schema := s.schema(ctx)
	return cache.Fetch(ctx, s.cache, cache.Key(schema, ReportDailyRegistration, rangeKey(explicit)),
		func(ctx context.Context) (*RegistrationReport, error) { return s.dailyRegistration(ctx, schema, explicit) })
}

type feeDay struct {
	patient string
	day     calendar.Date
}

func (s *Service) dailyRegistration(ctx context.Context, schema string, explicit *calendar.Range) (*RegistrationReport, error) {
	fee := s.cfg.BookingFee
	var latest *calendar.Date
	if explicit == nil {
		at, err := s.repo.LatestInvoiceAt(ctx, schema, InvoiceFilter{Total: &fee})
		if err != nil {
			return nil, err
		}
		latest = s.dayPtr(at)
	}
	rng := s.resolve(explicit, latest, aggregate.RegistrationWindow)
	w := s.window(rng)

	var (
		invoices []RegistrationRow
		consults []ConsultationRow
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		invoices, err = s.repo.BookingFeeInvoices(gctx, schema, fee, w)
		return err
	})
	g.Go(func() error {
		var err error
		consults, err = s.repo.FeeConsultations(gctx, schema, fee, w)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// A fee invoice matched by a same-day consultation paid at the fee is a
	// consultation charge, not a registration. visit_date is already a
	// report-zone day; invoice timestamps go through s.day.
	consulted := make(map[feeDay]struct{}, len(consults))
	for _, c := range consults {
		if c.VisitDate == nil {
			s.skip(ReportDailyRegistration, c.PatientID, "consultation without visit date")
			continue
		}
		consulted[feeDay{c.PatientID, calendar.Of(*c.VisitDate)}] = struct{}{}
	}

	kept := make([]RegistrationRow, 0, len(invoices))
	occs := make([]aggregate.Occurrence, 0, len(invoices))
	for _, inv := range invoices {
		if inv.At == nil {
			s.skip(ReportDailyRegistration, inv.InvoiceID, "no invoice date")
			continue
		}
		d := s.day(*inv.At)
		if _, ok := consulted[feeDay{inv.PatientID, d}]; ok {
			continue
		}
		kept = append(kept, inv)
		occs = append(occs, aggregate.Occurrence{
			Key:  aggregate.Key{Entity: inv.PatientID, Category: bookingFeeCategory},
			Date: d,
			At:   *inv.At,
			ID:   inv.InvoiceID,
		})
	}
	isNew := aggregate.ClassifyFirst(occs)

	report := &RegistrationReport{
		DateRange:          rng,
		DailyRegistrations: []RegistrationDay{},
	}
	byDay := make(map[calendar.Date][]int)
	var entries []aggregate.Entry
	for i, o := range occs {
		if !rng.Contains(o.Date) {
			continue
		}
		byDay[o.Date] = append(byDay[o.Date], i)
		category := categoryExisting
		if isNew[i] {
			category = categoryNew
			report.TotalNewPatients++
		} else {
			report.TotalExistingPatients++
		}
		report.TotalRegistrations++
		entries = append(entries, aggregate.Entry{Date: o.Date, Category: category})
	}

	for _, d := range sortedDaysDesc(byDay) {
		idx := byDay[d]
		sort.Slice(idx, func(a, b int) bool {
			oa, ob := occs[idx[a]], occs[idx[b]]
			if !oa.At.Equal(ob.At) {
				return oa.At.After(ob.At)
			}
			return aggregate.CompareIDs(oa.ID, ob.ID) < 0
		})
		day := RegistrationDay{Date: d, Registrations: make([]Registration, 0, len(idx))}
		for _, i := range idx {
			inv := kept[i]
			day.Registrations = append(day.Registrations, Registration{
				InvoiceID:        inv.InvoiceID,
				PatientID:        inv.PatientID,
				PatientName:      inv.PatientName,
				PhoneNo:          inv.PhoneNo,
				MRNNo:            inv.MRN,
				RegistrationDate: d,
				InvoiceCode:      inv.InvoiceCode,
				ReceiptCode:      inv.ReceiptCode,
				DoctorName:       orNA(inv.DoctorName),
				IsNewPatient:     isNew[i],
			})
			if isNew[i] {
				day.NewPatients++
			} else {
				day.ExistingPatients++
			}
		}
		day.Total = len(idx)
		report.DailyRegistrations = append(report.DailyRegistrations, day)
	}

	buckets := aggregate.BucketByDay(rng, entries, categoryNew, categoryExisting)
	report.ChartData = make([]RegistrationPoint, len(buckets))
	for i, b := range buckets {
		report.ChartData[i] = RegistrationPoint{
			Date:             b.Date,
			NewPatients:      b.Count(categoryNew),
			ExistingPatients: b.Count(categoryExisting),
			Total:            b.Total,
		}
	}
	return report, nil
}

// -- Closings --

func (s *Service) DailyClosing(ctx context.Context, explicit *calendar.Range) (*ClosingReport, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	schema := s.schema(ctx)
	return cache.Fetch(ctx, s.cache, cache.Key(schema, ReportDailyClosing, rangeKey(explicit)),
		func(ctx context.Context) (*ClosingReport, error) { return s.dailyClosing(ctx, schema, explicit) })
}

func (s *Service) dailyClosing(ctx context.Context, schema string, explicit *calendar.Range) (*ClosingReport, error) {
	var latest *calendar.Date
	if explicit == nil {
		at, err := s.repo.LatestInvoiceAt(ctx, schema, InvoiceFilter{PaidOnly: true})
		if err != nil {
			return nil, err
		}
		latest = s.dayPtr(at)
	}
	rng := s.resolve(explicit, latest, aggregate.ClosingWindow)

	candidates, err := s.repo.ClosingCandidates(ctx, schema, s.window(rng).Before)
	if err != nil {
		return nil, err
	}

	qualified := make([]ClosingCandidate, 0, len(candidates))
	occs := make([]aggregate.Occurrence, 0, len(candidates))
	for _, c := range candidates {
		if c.InvoiceAt == nil || c.PrescribedAt == nil {
			s.skip(ReportDailyClosing, c.InvoiceID, "missing invoice or prescription date")
			continue
		}
		invoiceDay := s.day(*c.InvoiceAt)
		if invoiceDay != s.day(*c.PrescribedAt) {
			continue
		}
		if aggregate.Denied(s.cfg.ClosingExcludeTerm, c.ProcedureName, c.ProcedureCode) {
			continue
		}
		if !aggregate.SameEntity(
			aggregate.Identity{EntityID: c.PatientID, CrossRef: c.MRN},
			aggregate.Identity{EntityID: c.ProcedurePatientID, CrossRef: c.ProcedureMRN},
		) {
			continue
		}
		qualified = append(qualified, c)
		occs = append(occs, aggregate.Occurrence{
			Key:  aggregate.Key{Entity: c.PatientID, Category: *c.ProcedureCode},
			Date: invoiceDay,
			At:   *c.InvoiceAt,
			ID:   c.InvoiceID,
		})
	}

	report := &ClosingReport{
		DateRange:          rng,
		DailyClosings:      []ClosingDay{},
		ProcedureBreakdown: []ProcedureCount{},
	}
	byDay := make(map[calendar.Date][]Closing)
	breakdown := make(map[string]*ProcedureCount)
	var entries []aggregate.Entry
	for _, i := range aggregate.Earliest(occs) {
		o := occs[i]
		if !rng.Contains(o.Date) {
			continue
		}
		c := qualified[i]
		closing := Closing{
			InvoiceID:     c.InvoiceID,
			PatientID:     c.PatientID,
			PatientName:   c.PatientName,
			PhoneNo:       c.PhoneNo,
			MRNNo:         c.MRN,
			ClosingDate:   o.Date,
			InvoiceCode:   c.InvoiceCode,
			ReceiptCode:   c.ReceiptCode,
			ProcedureName: orDefault(c.ProcedureName, UnknownProcedure),
			ProcedureCode: orNA(c.ProcedureCode),
			DoctorName:    orNA(c.DoctorName),
			IsNewPatient:  c.FirstVisit != nil && calendar.Of(*c.FirstVisit) == o.Date,
		}
		byDay[o.Date] = append(byDay[o.Date], closing)
		report.TotalClosings++

		// one row per name and code pair
		bk := closing.ProcedureName + "|" + closing.ProcedureCode
		pc, ok := breakdown[bk]
		if !ok {
			pc = &ProcedureCount{ProcedureName: closing.ProcedureName, ProcedureCode: closing.ProcedureCode}
			breakdown[bk] = pc
		}
		pc.Count++
		entries = append(entries, aggregate.Entry{Date: o.Date, Category: closing.ProcedureCode})
	}

	for _, d := range sortedDaysDesc(byDay) {
		report.DailyClosings = append(report.DailyClosings, ClosingDay{Date: d, Count: len(byDay[d]), Closings: byDay[d]})
	}
	for _, pc := range breakdown {
		report.ProcedureBreakdown = append(report.ProcedureBreakdown, *pc)
	}
	sort.Slice(report.ProcedureBreakdown, func(a, b int) bool {
		pa, pb := report.ProcedureBreakdown[a], report.ProcedureBreakdown[b]
		if pa.Count != pb.Count {
			return pa.Count > pb.Count
		}
		if pa.ProcedureCode != pb.ProcedureCode {
			return pa.ProcedureCode < pb.ProcedureCode
		}
		return pa.ProcedureName < pb.ProcedureName
	})
	report.ChartData = codeSeries(aggregate.BucketByDay(rng, entries))
	return report, nil
}

// -- Occupancy --

func (s *Service) OccupancyRate(ctx context.Context, explicit *calendar.Range) (*OccupancyReport, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	schema := s.schema(ctx)
	return cache.Fetch(ctx, s.cache, cache.Key(schema, ReportOccupancyRate, rangeKey(explicit)),
		func(ctx context.Context) (*OccupancyReport, error) { return s.occupancyRate(ctx, schema, explicit) })
}

func (s *Service) occupancyRate(ctx context.Context, schema string, explicit *calendar.Range) (*OccupancyReport, error) {
	var latest *calendar.Date
	if explicit == nil {
		var visit, prescribed *time.Time
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			visit, err = s.repo.LatestVisitDate(gctx, schema)
			return err
		})
		g.Go(func() error {
			var err error
			prescribed, err = s.repo.LatestPrescriptionAt(gctx, schema)
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
		var visitDay *calendar.Date
		if visit != nil {
			d := calendar.Of(*visit)
			visitDay = &d
		}
		latest = calendar.Max(visitDay, s.dayPtr(prescribed))
	}
	rng := s.resolve(explicit, latest, aggregate.OccupancyWindow)

	var (
		consults      []ConsultationRow
		prescriptions []PrescriptionRow
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		consults, err = s.repo.Consultations(gctx, schema, rng.Start, rng.End)
		return err
	})
	g.Go(func() error {
		var err error
		prescriptions, err = s.repo.Prescriptions(gctx, schema, s.window(rng))
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	slots := make([]aggregate.Entry, 0, len(consults)+len(prescriptions))
	for _, c := range consults {
		if c.VisitDate == nil {
			s.skip(ReportOccupancyRate, c.PatientID, "consultation without visit date")
			continue
		}
		slots = append(slots, aggregate.Entry{Date: calendar.Of(*c.VisitDate), Category: aggregate.ConsultationSlot})
	}
	codes := make([]aggregate.Entry, 0, len(prescriptions))
	names := make(map[string]string)
	for _, p := range prescriptions {
		if p.At == nil {
			s.skip(ReportOccupancyRate, p.PatientID, "prescription without date")
			continue
		}
		d := s.day(*p.At)
		slots = append(slots, aggregate.Entry{Date: d, Category: aggregate.TreatmentSlot})
		if p.ProcedureCode == nil || !rng.Contains(d) {
			continue
		}
		code := *p.ProcedureCode
		codes = append(codes, aggregate.Entry{Date: d, Category: code})
		if _, ok := names[code]; !ok && p.ProcedureName != nil && *p.ProcedureName != "" {
			names[code] = *p.ProcedureName
		}
	}

	buckets := aggregate.BucketByDay(rng, slots, aggregate.ConsultationSlot, aggregate.TreatmentSlot)
	consultation := aggregate.Occupancy(buckets, aggregate.ConsultationSlot, s.cfg.ConsultationCapacity)
	treatment := aggregate.Occupancy(buckets, aggregate.TreatmentSlot, s.cfg.TreatmentCapacity)

	report := &OccupancyReport{
		DateRange:             rng,
		DailyOccupancy:        make([]OccupancyDay, 0, len(buckets)),
		ConsultationChartData: make([]ConsultationPoint, len(buckets)),
		ProcedureCodeNames:    []ProcedureLabel{},
		Summary: OccupancySummary{
			AvgConsultationOccupancy: aggregate.MeanRate(consultation),
			AvgTreatmentOccupancy:    aggregate.MeanRate(treatment),
		},
	}
	for i := range buckets {
		report.ConsultationChartData[i] = ConsultationPoint{
			Date:                  consultation[i].Date,
			ConsultationOccupancy: consultation[i].Rate,
			ConsultationCount:     consultation[i].Count,
		}
	}
	for i := len(buckets) - 1; i >= 0; i-- {
		report.DailyOccupancy = append(report.DailyOccupancy, OccupancyDay{
			Date:                      buckets[i].Date,
			ConsultationCount:         consultation[i].Count,
			ProcedureCount:            treatment[i].Count,
			ConsultationOccupancyRate: consultation[i].Rate,
			TreatmentOccupancyRate:    treatment[i].Rate,
		})
	}
	for _, code := range aggregate.Categories(codes) {
		name, ok := names[code]
		if !ok {
			name = code
		}
		report.ProcedureCodeNames = append(report.ProcedureCodeNames, ProcedureLabel{Code: code, Name: name})
	}
	report.ProcedureChartData = codeSeries(aggregate.BucketByDay(rng, codes))
	return report, nil
}

// -- Latest date / probe --

// LatestDate is the most recent day with any invoice, consultation or
// prescription; nil when the store is empty.
func (s *Service) LatestDate(ctx context.Context) (*LatestDate, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	schema := s.schema(ctx)
	return cache.Fetch(ctx, s.cache, cache.Key(schema, ReportLatestDate, "default"),
		func(ctx context.Context) (*LatestDate, error) { return s.latestDate(ctx, schema) })
}

func (s *Service) latestDate(ctx context.Context, schema string) (*LatestDate, error) {
	var invoice, visit, prescribed *time.Time
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		invoice, err = s.repo.LatestInvoiceAt(gctx, schema, InvoiceFilter{})
		return err
	})
	g.Go(func() error {
		var err error
		visit, err = s.repo.LatestVisitDate(gctx, schema)
		return err
	})
	g.Go(func() error {
		var err error
		prescribed, err = s.repo.LatestPrescriptionAt(gctx, schema)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var visitDay *calendar.Date
	if visit != nil {
		d := calendar.Of(*visit)
		visitDay = &d
	}
	return &LatestDate{LatestDate: calendar.Max(s.dayPtr(invoice), visitDay, s.dayPtr(prescribed))}, nil
}

// Connection probes the store. It is never cached.
func (s *Service) Connection(ctx context.Context) (*Connection, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	schema := s.schema(ctx)
	p, err := s.repo.Probe(ctx, schema)
	if err != nil {
		return nil, err
	}
	return &Connection{
		Success:    true,
		Connection: ConnectionInfo{CurrentTime: p.CurrentTime, Database: p.Database},
		Schema:     SchemaInfo{Name: schema, TableCount: p.TableCount},
		Invoices:   InvoiceInfo{TotalCount: p.InvoiceCount, LatestInvoiceDate: s.dayPtr(p.LatestInvoiceDate)},
	}, nil
}

func money(d decimal.Decimal) float64 {
	f, _ := d.Round(2).Float64()
	return f
}

func codeSeries(buckets []aggregate.Bucket) []CodeSeriesPoint {
	out := make([]CodeSeriesPoint, len(buckets))
	for i, b := range buckets {
		out[i] = CodeSeriesPoint{Date: b.Date, Counts: b.Counts}
	}
	return out
}

func sortedDaysDesc[V any](m map[calendar.Date]V) []calendar.Date {
	days := make([]calendar.Date, 0, len(m))
	for d := range m {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].After(days[j]) })
	return days
}
