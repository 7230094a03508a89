package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pos/analytics/internal/application/ingest"
	"github.com/pos/analytics/internal/domain/credit"
	"github.com/pos/analytics/internal/domain/report"
	"github.com/pos/analytics/internal/domain/sales"
	"github.com/pos/analytics/internal/infrastructure/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Query selects what a computation reports on
type Query struct {
	Grouping report.Grouping `json:"grouping"`
	// StartDate and EndDate bound the window; both zero means the default window.
	// A date-only EndDate covers that whole day.
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	// RankTopN ranks the grouping's aggregates when positive
	RankTopN int `json:"rank_top_n" validate:"gte=0,lte=1000"`
	// Now is the evaluation instant; zero means the service clock
	Now time.Time `json:"now"`
	// Options overrides the service defaults for this call
	Options *Overrides `json:"options,omitempty" validate:"-"`
}

// Result is the output of one computation
type Result struct {
	Grouping     report.Grouping               `json:"grouping"`
	Window       report.DateWindow             `json:"window"`
	Aggregates   []report.DimensionAggregate   `json:"aggregates"`
	Summary      report.DimensionAggregate     `json:"summary"`
	TopProducts  []report.DimensionAggregate   `json:"top_products"`
	Ranked       []report.DimensionAggregate   `json:"ranked,omitempty"`
	Transactions []sales.ReconciledTransaction `json:"transactions"`
	Credits      []credit.View                 `json:"credits"`
	Issues       []ingest.Issue                `json:"issues"`
	IssueCount   int                           `json:"issue_count"`
	ComputedAt   time.Time                     `json:"computed_at"`
}

// SnapshotSource loads the raw records a computation needs
type SnapshotSource interface {
	LoadSnapshot(ctx context.Context, window report.DateWindow) (ingest.Snapshot, error)
}

// SnapshotFunc adapts a function to SnapshotSource
type SnapshotFunc func(ctx context.Context, window report.DateWindow) (ingest.Snapshot, error)

// LoadSnapshot calls f
func (f SnapshotFunc) LoadSnapshot(ctx context.Context, window report.DateWindow) (ingest.Snapshot, error) {
	return f(ctx, window)
}

// StaticSnapshot returns a source that always yields s
func StaticSnapshot(s ingest.Snapshot) SnapshotSource {
	return SnapshotFunc(func(context.Context, report.DateWindow) (ingest.Snapshot, error) {
		return s, nil
	})
}

// Service computes reconciled analytics from raw POS records.
// It holds no data between calls.
type Service struct {
	logger    *zap.Logger
	clock     func() time.Time
	defaults  Options
	validator *Validator
	maxIssues int
}

// ServiceOption configures a Service
type ServiceOption func(*Service)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock sets the clock used when a query carries no evaluation instant
func WithClock(clock func() time.Time) ServiceOption {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithDefaults sets the service-wide options. Zero fields keep the stock
// defaults; OverdueIsHighRisk is taken as given.
func WithDefaults(opts Options) ServiceOption {
	return func(s *Service) {
		s.defaults = opts.complete(DefaultOptions())
	}
}

// WithIssueLimit caps the data-quality issues kept per result
func WithIssueLimit(limit int) ServiceOption {
	return func(s *Service) {
		s.maxIssues = limit
	}
}

// NewService creates a new Service
func NewService(opts ...ServiceOption) *Service {
	s := &Service{
		logger:    zap.NewNop(),
		clock:     time.Now,
		defaults:  DefaultOptions(),
		validator: NewValidator(),
		maxIssues: ingest.DefaultMaxIssues,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Defaults returns the service-wide options
func (s *Service) Defaults() Options {
	return s.defaults
}

// queryPlan is a validated query with its defaults resolved
type queryPlan struct {
	query    Query
	options  Options
	grouping report.Grouping
	window   report.DateWindow
	now      time.Time
}

// plan validates q and resolves its defaults
func (s *Service) plan(q Query) (queryPlan, error) {
	if err := s.validator.Query(q); err != nil {
		return queryPlan{}, err
	}
	grouping, err := report.ParseGrouping(string(q.Grouping))
	if err != nil {
		return queryPlan{}, err
	}
	opts := s.defaults
	if q.Options != nil {
		opts = q.Options.Apply(s.defaults)
	}
	if err := s.validator.Options(opts); err != nil {
		return queryPlan{}, err
	}
	now := q.Now
	if now.IsZero() {
		now = s.clock()
	}
	now = now.In(opts.Location())
	window, err := ResolveWindow(q.StartDate, q.EndDate, now, opts.DefaultWindowDays)
	if err != nil {
		return queryPlan{}, err
	}
	q.Grouping = grouping
	q.Now = now
	return queryPlan{query: q, options: opts, grouping: grouping, window: window, now: now}, nil
}

// ResolveWindow turns query bounds into a window. Missing bounds default to the
// days-long window ending today; a date-only end covers its whole day.
func ResolveWindow(start, end, now time.Time, days int) (report.DateWindow, error) {
	if start.IsZero() && end.IsZero() {
		return report.LastDays(now, days), nil
	}
	if end.IsZero() {
		end = report.EndOfDay(now)
	} else if isDateOnly(end) {
		end = report.EndOfDay(end)
	}
	if start.IsZero() {
		start = report.LastDays(end, days).Start
	}
	return report.NewDateWindow(start, end)
}

func isDateOnly(t time.Time) bool {
	return t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0
}

// beginRun tags ctx with a run id, keeping one the caller already set, and
// stores the service logger enriched with it
func (s *Service) beginRun(ctx context.Context) context.Context {
	ctx, log := logger.WithRunID(ctx, s.logger, logger.GetRunID(ctx))
	if scope := logger.GetScope(ctx); scope != "" {
		ctx, _ = logger.WithScope(ctx, log, scope)
	}
	return ctx
}

// Run loads the snapshot for the query window from source and computes it
func (s *Service) Run(ctx context.Context, source SnapshotSource, q Query) (*Result, error) {
	p, err := s.plan(q)
	if err != nil {
		return nil, err
	}
	ctx = s.beginRun(ctx)
	snapshot, err := source.LoadSnapshot(ctx, p.window)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return s.compute(ctx, s.normalize(snapshot), p)
}

// Compute normalizes a snapshot and computes the query over it
func (s *Service) Compute(ctx context.Context, snapshot ingest.Snapshot, q Query) (*Result, error) {
	p, err := s.plan(q)
	if err != nil {
		return nil, err
	}
	ctx = s.beginRun(ctx)
	return s.compute(ctx, s.normalize(snapshot), p)
}

// ComputeBatch computes the query over already normalized records
func (s *Service) ComputeBatch(ctx context.Context, batch ingest.Batch, q Query) (*Result, error) {
	p, err := s.plan(q)
	if err != nil {
		return nil, err
	}
	ctx = s.beginRun(ctx)
	return s.compute(ctx, batch, p)
}

// ComputeMany computes several groupings over one snapshot concurrently.
// All groupings are validated before any work starts and share one
// evaluation instant.
func (s *Service) ComputeMany(ctx context.Context, snapshot ingest.Snapshot, q Query, groupings ...report.Grouping) (map[report.Grouping]*Result, error) {
	plans := make([]queryPlan, len(groupings))
	now := q.Now
	if now.IsZero() {
		now = s.clock()
	}
	for i, g := range groupings {
		gq := q
		gq.Grouping = g
		gq.Now = now
		p, err := s.plan(gq)
		if err != nil {
			return nil, err
		}
		plans[i] = p
	}

	ctx = s.beginRun(ctx)
	batch := s.normalize(snapshot)
	results := make([]*Result, len(plans))
	g, gctx := errgroup.WithContext(ctx)
	for i := range plans {
		i := i
		g.Go(func() error {
			res, err := s.compute(gctx, batch, plans[i])
			if err != nil {
				return fmt.Errorf("grouping %s: %w", plans[i].grouping, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[report.Grouping]*Result, len(results))
	for i, res := range results {
		out[plans[i].grouping] = res
	}
	return out, nil
}

// RunMany loads one snapshot for the query window from source and computes
// every grouping over it.
func (s *Service) RunMany(ctx context.Context, source SnapshotSource, q Query, groupings ...report.Grouping) (map[report.Grouping]*Result, error) {
	if q.Now.IsZero() {
		q.Now = s.clock()
	}
	for _, g := range groupings {
		if _, err := report.ParseGrouping(string(g)); err != nil {
			return nil, err
		}
	}
	p, err := s.plan(q)
	if err != nil {
		return nil, err
	}
	ctx = s.beginRun(ctx)
	snapshot, err := source.LoadSnapshot(ctx, p.window)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return s.ComputeMany(ctx, snapshot, q, groupings...)
}

// ApplyPayment applies a payment to a credit record. Amounts above the open
// balance are clamped and logged; the caller persists the returned record.
func (s *Service) ApplyPayment(ctx context.Context, rec credit.Record, event credit.PaymentEvent) (credit.Record, credit.ClampEvent, error) {
	if err := ctx.Err(); err != nil {
		return rec, credit.ClampEvent{}, err
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.PaidAt.IsZero() {
		event.PaidAt = s.clock()
	}

	next, outcome, err := rec.ApplyPayment(event)
	if err != nil {
		return rec, outcome, err
	}
	if outcome.Clamped {
		s.logger.Warn("Payment clamped to open balance",
			zap.String("code", ingest.IssuePaymentClamped),
			zap.String("credit_id", rec.ID),
			zap.String("transaction_id", rec.TransactionID),
			zap.String("payment_id", outcome.ID),
			zap.String("requested", outcome.Requested.String()),
			zap.String("applied", outcome.Applied.String()),
			zap.String("excess", outcome.Excess.String()),
		)
	} else {
		s.logger.Debug("Payment applied",
			zap.String("credit_id", rec.ID),
			zap.String("applied", outcome.Applied.String()),
			zap.String("balance_after", outcome.BalanceAfter.String()),
		)
	}
	return next, outcome, nil
}

func (s *Service) normalize(snapshot ingest.Snapshot) ingest.Batch {
	return ingest.NewNormalizer(ingest.LookupFromSnapshot(snapshot), ingest.WithMaxIssues(s.maxIssues)).Normalize(snapshot)
}

func (s *Service) compute(ctx context.Context, batch ingest.Batch, p queryPlan) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log := logger.FromContext(ctx).With(zap.String("grouping", p.grouping.String()))

	reconciled := sales.ReconcileAll(batch.Transactions, batch.Credits, p.now)

	issues := ingest.NewIssueCollection(s.maxIssues)
	for _, issue := range batch.Issues {
		issues.Add(issue)
	}
	dropped := batch.IssueCount - len(batch.Issues)
	for i, tx := range reconciled {
		if tx.Stale {
			issues.Add(ingest.Issue{
				Record:  ingest.RecordTransaction,
				Index:   i,
				ID:      tx.ID,
				Field:   "recognizedRevenue",
				Code:    ingest.IssueStaleDerivedFields,
				Message: "reported revenue split disagrees with the payment history",
				Value:   tx.ReportedRecognizedRevenue.Decimal.String(),
			})
		}
	}

	aggOpts := report.Options{
		SampleSize: p.options.SampleSize,
		Location:   p.options.Location(),
		Now:        p.now,
	}
	scoring := p.options.ScoringConfig()

	aggs, err := report.Aggregate(reconciled, batch.Credits, p.grouping, p.window, aggOpts)
	if err != nil {
		return nil, err
	}
	aggs = scoring.ScoreAll(aggs)

	summary, err := report.Summarize(reconciled, batch.Credits, p.window, aggOpts)
	if err != nil {
		return nil, err
	}
	summary = scoring.Score(summary)

	products := aggs
	if p.grouping != report.GroupingProduct {
		products, err = report.Aggregate(reconciled, batch.Credits, report.GroupingProduct, p.window, aggOpts)
		if err != nil {
			return nil, err
		}
		products = scoring.ScoreAll(products)
	}

	res := &Result{
		Grouping:     p.grouping,
		Window:       p.window,
		Aggregates:   aggs,
		Summary:      summary,
		TopProducts:  report.Rank(products, p.options.ProductTopN),
		Transactions: windowed(reconciled, p.window),
		Credits:      creditViews(batch.Credits, p.now),
		Issues:       issues.Issues(),
		IssueCount:   issues.TotalCount() + dropped,
		ComputedAt:   p.now,
	}
	if p.query.RankTopN > 0 && p.grouping != report.GroupingNone {
		res.Ranked = report.Rank(aggs, p.query.RankTopN)
	}

	for _, issue := range res.Issues {
		log.Warn("Data quality issue",
			zap.String("code", issue.Code),
			zap.String("record", issue.Record),
			zap.String("id", issue.ID),
			zap.String("field", issue.Field),
			zap.String("value", issue.Value),
			zap.String("message", issue.Message),
		)
	}
	log.Info("Analytics computed",
		zap.Time("window_start", p.window.Start),
		zap.Time("window_end", p.window.End),
		zap.Int("transactions", len(res.Transactions)),
		zap.Int("aggregates", len(res.Aggregates)),
		zap.Int("issues", res.IssueCount),
		zap.String("revenue", summary.TotalRevenue.String()),
	)
	return res, nil
}

func windowed(txs []sales.ReconciledTransaction, window report.DateWindow) []sales.ReconciledTransaction {
	out := make([]sales.ReconciledTransaction, 0, len(txs))
	for _, tx := range txs {
		if window.Contains(tx.EffectiveDate()) {
			out = append(out, tx)
		}
	}
	return out
}

func creditViews(records []credit.Record, now time.Time) []credit.View {
	out := make([]credit.View, 0, len(records))
	for _, rec := range records {
		out = append(out, credit.NewView(rec, now))
	}
	return out
}
