package screening

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mkweli/amlscreen/internal/config"
	"github.com/mkweli/amlscreen/internal/domain/sanction"
	"github.com/mkweli/amlscreen/internal/infrastructure/monitoring/logging"
	prommetrics "github.com/mkweli/amlscreen/internal/infrastructure/monitoring/prometheus"
	"github.com/mkweli/amlscreen/pkg/errors"
)

// Row is one client row in a batch screening request.  RowID is the
// caller's correlation key and is echoed back untouched.
type Row struct {
	RowID string `json:"row_id"`
	Query Query  `json:"query"`
}

// RowResult pairs a row with its screening outcome.  Rows whose query is
// unusable carry an error message instead of failing the whole batch.
type RowResult struct {
	RowID    string  `json:"row_id"`
	Result   *Result `json:"result,omitempty"`
	Error    string  `json:"error,omitempty"`
	HitCount int     `json:"hit_count"`
}

// BatchResult is the outcome of one batch screening run.  Results appear
// in input order regardless of worker scheduling.
type BatchResult struct {
	BatchID     string        `json:"batch_id"`
	Rows        []RowResult   `json:"rows"`
	RowCount    int           `json:"row_count"`
	HitRows     int           `json:"hit_rows"`
	ErrorRows   int           `json:"error_rows"`
	Fingerprint string        `json:"fingerprint"`
	LoadedAt    time.Time     `json:"loaded_at"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration"`
}

// Orchestrator fans a client batch out over a bounded worker pool.  Every
// row in a batch is screened against the same data generation: the index
// pointer is captured once, so a reload landing mid-batch cannot split the
// batch across generations.
type Orchestrator struct {
	cfg     config.ScreeningConfig
	matcher *Matcher
	logger  logging.Logger
	metrics *prommetrics.Metrics
	now     func() time.Time
}

func NewOrchestrator(cfg config.ScreeningConfig, matcher *Matcher, logger logging.Logger, metrics *prommetrics.Metrics) *Orchestrator {
	return &Orchestrator{
		cfg:     cfg,
		matcher: matcher,
		logger:  logger.Named("orchestrator"),
		metrics: metrics,
		now:     time.Now,
	}
}

// ScreenBatch screens every row and reports per-row outcomes.  The batch
// size is bounded by configuration; an oversized batch is rejected before
// any row is screened.
func (o *Orchestrator) ScreenBatch(ctx context.Context, rows []Row) (*BatchResult, error) {
	if len(rows) == 0 {
		return nil, errors.New(errors.CodeEmptyQuery, "batch contains no rows")
	}
	if len(rows) > o.cfg.MaxBatchRows {
		return nil, errors.Newf(errors.CodeBatchTooLarge,
			"batch of %d rows exceeds the limit of %d", len(rows), o.cfg.MaxBatchRows)
	}

	batchID := uuid.NewString()
	start := o.now()

	// Pin the data generation for the whole batch.
	pinned := pinnedProvider{
		index:       o.matcher.provider.Index(),
		fingerprint: o.matcher.provider.Fingerprint(),
		loadedAt:    o.matcher.provider.LoadedAt(),
	}
	matcher := o.matcher.withProvider(pinned)

	results := make([]RowResult, len(rows))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Concurrency)
	for i, row := range rows {
		i, row := i, row
		g.Go(func() error {
			rr := RowResult{RowID: row.RowID}
			res, err := matcher.Screen(gctx, row.Query)
			if err != nil {
				if errors.IsCode(err, errors.CodeTimeout) {
					return err
				}
				rr.Error = err.Error()
			} else {
				rr.Result = res
				rr.HitCount = len(res.Matches)
			}
			results[i] = rr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, errors.CodeTimeout, "batch screening cancelled")
	}

	out := &BatchResult{
		BatchID:     batchID,
		Rows:        results,
		RowCount:    len(rows),
		Fingerprint: pinned.fingerprint,
		LoadedAt:    pinned.loadedAt,
		StartedAt:   start,
		Duration:    o.now().Sub(start),
	}
	for _, rr := range results {
		if rr.Error != "" {
			out.ErrorRows++
		}
		if rr.HitCount > 0 {
			out.HitRows++
		}
	}
	o.metrics.BatchRowsTotal.Add(float64(len(rows)))

	o.logger.Info("batch screened",
		logging.String("batch_id", batchID),
		logging.Int("rows", out.RowCount),
		logging.Int("hit_rows", out.HitRows),
		logging.Int("error_rows", out.ErrorRows),
		logging.Duration("duration", out.Duration))
	return out, nil
}

// pinnedProvider freezes one data generation.
type pinnedProvider struct {
	index       *sanction.Index
	fingerprint string
	loadedAt    time.Time
}

func (p pinnedProvider) Index() *sanction.Index { return p.index }
func (p pinnedProvider) Fingerprint() string    { return p.fingerprint }
func (p pinnedProvider) LoadedAt() time.Time    { return p.loadedAt }

// withProvider clones the matcher against a different provider.
func (m *Matcher) withProvider(p IndexProvider) *Matcher {
	clone := *m
	clone.provider = p
	return &clone
}
