// Package registry owns the merged in-memory record set.  A reload parses
// changed source files, rebuilds the search index off to the side, and
// publishes it with one atomic pointer swap; readers never observe a
// partially-built index and are never blocked by a reload in progress.
package registry

import (
	"context"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mkweli/amlscreen/internal/config"
	"github.com/mkweli/amlscreen/internal/domain/sanction"
	"github.com/mkweli/amlscreen/internal/infrastructure/fingerprint"
	"github.com/mkweli/amlscreen/internal/infrastructure/monitoring/logging"
	prommetrics "github.com/mkweli/amlscreen/internal/infrastructure/monitoring/prometheus"
	"github.com/mkweli/amlscreen/internal/infrastructure/parser"
	"github.com/mkweli/amlscreen/internal/infrastructure/storage"
	"github.com/mkweli/amlscreen/pkg/errors"
	types "github.com/mkweli/amlscreen/pkg/types/sanction"
)

// SourceOutcome describes what a reload did with one source list.
type SourceOutcome struct {
	Source      types.SourceList  `json:"source"`
	Parsed      bool              `json:"parsed"`
	Skipped     bool              `json:"skipped"` // unchanged fingerprint
	RecordCount int               `json:"record_count"`
	SkipCount   int               `json:"skip_count"` // malformed entries dropped
	SkipNotes   []parser.SkipNote `json:"skip_notes,omitempty"`
	Error       string            `json:"error,omitempty"`
}

// ReloadSummary reports one full reload pass.
type ReloadSummary struct {
	Outcomes     []SourceOutcome `json:"outcomes"`
	TotalRecords int             `json:"total_records"`
	LoadedAt     time.Time       `json:"loaded_at"`
	Fingerprint  string          `json:"fingerprint"`
	Duration     time.Duration   `json:"duration"`
}

// Status is the repository's externally visible state.  IsStale is the
// roll-up of StaleSources: true whenever any source needs attention.
type Status struct {
	Ready           bool                           `json:"ready"`
	TotalRecords    int                            `json:"total_records"`
	PerSourceCounts map[types.SourceList]int       `json:"per_source_counts"`
	LoadedAt        map[types.SourceList]time.Time `json:"loaded_at"`
	IsStale         bool                           `json:"is_stale"`
	StaleSources    []types.SourceList             `json:"stale_sources,omitempty"`
	Fingerprint     string                         `json:"fingerprint"`
	Reloading       bool                           `json:"reloading"`
}

// Repository holds the live index and coordinates reloads.  At most one
// reload runs at a time; a second request while one is running is rejected
// immediately rather than queued.
type Repository struct {
	cfg      *config.Config
	logger   logging.Logger
	metrics  *prommetrics.Metrics
	detector *fingerprint.Detector
	store    *storage.SnapshotStore // nil when snapshots are disabled

	index     atomic.Pointer[sanction.Index]
	reloading atomic.Bool

	mu       sync.Mutex // guards bySource and loadedAt
	bySource map[types.SourceList][]*sanction.Record
	loadedAt map[types.SourceList]time.Time

	now func() time.Time
}

func New(cfg *config.Config, logger logging.Logger, metrics *prommetrics.Metrics) *Repository {
	var store *storage.SnapshotStore
	if cfg.Snapshot.Enabled {
		store = storage.NewSnapshotStore(cfg.Snapshot.Path)
	}
	r := &Repository{
		cfg:      cfg,
		logger:   logger.Named("registry"),
		metrics:  metrics,
		detector: fingerprint.NewDetector(),
		store:    store,
		bySource: make(map[types.SourceList][]*sanction.Record),
		loadedAt: make(map[types.SourceList]time.Time),
		now:      time.Now,
	}
	r.index.Store(sanction.BuildIndex(nil))
	return r
}

// Index returns the currently published search index.  The returned index
// is immutable; callers may hold it across a concurrent reload and keep
// reading a consistent data generation.
func (r *Repository) Index() *sanction.Index { return r.index.Load() }

// Fingerprint identifies the loaded data generation.
func (r *Repository) Fingerprint() string { return r.detector.Combined() }

// LoadedAt is the load time of the current data generation: the most
// recent per-source load, or the zero time before any data is loaded.
func (r *Repository) LoadedAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest time.Time
	for _, ts := range r.loadedAt {
		if ts.After(latest) {
			latest = ts
		}
	}
	return latest
}

// sourcePaths maps each source list to its configured file path.
func (r *Repository) sourcePaths() map[types.SourceList]string {
	s := r.cfg.Sources
	return map[types.SourceList]string{
		types.SourceUN:   s.Path(s.UNFile),
		types.SourceUK:   s.Path(s.UKFile),
		types.SourceOFAC: s.Path(s.OFACFile),
		types.SourceEU:   s.Path(s.EUFile),
	}
}

// Reload runs one full reload pass.  Unchanged sources are skipped unless
// named in forced; a missing or malformed source file keeps that source's
// previous records and reports the failure in its outcome instead of
// failing the pass.  Only one reload may run at a time: a concurrent call
// returns CodeReloadInProgress immediately.
func (r *Repository) Reload(ctx context.Context, forced ...types.SourceList) (*ReloadSummary, error) {
	if !r.reloading.CompareAndSwap(false, true) {
		return nil, errors.New(errors.CodeReloadInProgress, "a reload is already running")
	}
	defer r.reloading.Store(false)

	forcedSet := make(map[types.SourceList]bool, len(forced))
	for _, src := range forced {
		forcedSet[src] = true
	}

	start := r.now()
	checks := r.detector.CheckAll(r.sourcePaths())

	outcomes := make(map[types.SourceList]*SourceOutcome, len(checks))
	var parse []types.SourceList
	r.mu.Lock()
	for src, check := range checks {
		o := &SourceOutcome{Source: src}
		outcomes[src] = o
		switch {
		case check.State == fingerprint.StateMissing:
			o.Error = check.Err.Error()
			o.RecordCount = len(r.bySource[src])
			r.metrics.ReloadsTotal.WithLabelValues(src.String(), "error").Inc()
		case check.State == fingerprint.StateUnchanged && !forcedSet[src] && len(r.bySource[src]) > 0:
			o.Skipped = true
			o.RecordCount = len(r.bySource[src])
			r.metrics.ReloadsTotal.WithLabelValues(src.String(), "skipped").Inc()
		default:
			parse = append(parse, src)
		}
	}
	r.mu.Unlock()

	type parsed struct {
		src     types.SourceList
		records []*sanction.Record
		notes   []parser.SkipNote
	}
	results := make([]*parsed, 0, len(parse))
	var resultsMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Screening.Concurrency)
	for _, src := range parse {
		src := src
		g.Go(func() error {
			records, notes, err := r.parseSource(gctx, src, r.sourcePaths()[src])
			resultsMu.Lock()
			defer resultsMu.Unlock()
			if err != nil {
				outcomes[src].Error = err.Error()
				r.metrics.ReloadsTotal.WithLabelValues(src.String(), "error").Inc()
				// Keep the source's previous records.
				return nil
			}
			results = append(results, &parsed{src: src, records: records, notes: notes})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "reload aborted")
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeTimeout, "reload cancelled")
	}

	// Replace successfully parsed sources and republish.
	r.mu.Lock()
	loadTime := r.now()
	for _, p := range results {
		r.bySource[p.src] = p.records
		r.loadedAt[p.src] = loadTime
		r.detector.Commit(p.src, checks[p.src].Fingerprint)

		o := outcomes[p.src]
		o.Parsed = true
		o.RecordCount = len(p.records)
		o.SkipCount = len(p.notes)
		o.SkipNotes = p.notes
		r.metrics.ReloadsTotal.WithLabelValues(p.src.String(), "ok").Inc()
		r.metrics.RecordsLoaded.WithLabelValues(p.src.String()).Set(float64(len(p.records)))
		r.metrics.SkippedEntries.WithLabelValues(p.src.String()).Add(float64(len(p.notes)))
	}
	merged := r.mergedLocked()
	r.mu.Unlock()

	ix := sanction.BuildIndex(merged)
	r.index.Store(ix)

	if ix.TotalRecords() == 0 {
		allFailed := true
		for _, o := range outcomes {
			if o.Error == "" {
				allFailed = false
			}
		}
		if allFailed {
			return nil, errors.New(errors.CodeSourceMissing, "no source list could be loaded")
		}
	}

	summary := &ReloadSummary{
		Outcomes:     sortedOutcomes(outcomes),
		TotalRecords: ix.TotalRecords(),
		LoadedAt:     loadTime,
		Fingerprint:  r.detector.Combined(),
		Duration:     r.now().Sub(start),
	}
	r.metrics.ReloadDuration.Observe(summary.Duration.Seconds())

	if len(results) > 0 {
		r.persistSnapshot(merged, loadTime)
	}

	r.logger.Info("reload complete",
		logging.Int("total_records", summary.TotalRecords),
		logging.Int("sources_parsed", len(results)),
		logging.Duration("duration", summary.Duration),
		logging.String("fingerprint", summary.Fingerprint))
	return summary, nil
}

// parseSource streams one source file through its parser.  The record set
// it returns is a set keyed by local id: a later entry reusing an id
// already seen in the same file is dropped with a skip note, so repeated
// reloads can never accumulate duplicates.
func (r *Repository) parseSource(ctx context.Context, src types.SourceList, path string) ([]*sanction.Record, []parser.SkipNote, error) {
	p, err := parser.ForSource(src)
	if err != nil {
		return nil, nil, err
	}
	f, err := openSourceFile(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	var records []*sanction.Record
	var notes []parser.SkipNote
	seen := make(map[string]struct{})
	err = p.Parse(ctx, f, func(e parser.Entry) error {
		if e.Record != nil {
			if _, dup := seen[e.Record.LocalID]; dup {
				e.Skip = &parser.SkipNote{
					Source:  src,
					LocalID: e.Record.LocalID,
					Field:   "id",
					Reason:  "duplicate identifier",
				}
			} else {
				seen[e.Record.LocalID] = struct{}{}
				records = append(records, e.Record)
			}
		}
		if e.Skip != nil {
			notes = append(notes, *e.Skip)
			r.logger.Warn("skipped entry",
				logging.String("source", src.String()),
				logging.String("local_id", e.Skip.LocalID),
				logging.String("field", e.Skip.Field),
				logging.String("reason", e.Skip.Reason))
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return records, notes, nil
}

// mergedLocked flattens bySource in stable source order.  Caller holds mu.
func (r *Repository) mergedLocked() []*sanction.Record {
	var out []*sanction.Record
	for _, src := range types.AllSources {
		out = append(out, r.bySource[src]...)
	}
	return out
}

// persistSnapshot writes the merged set to durable storage.  Snapshot
// failures are logged, never fatal: the in-memory index is already live.
func (r *Repository) persistSnapshot(records []*sanction.Record, loadedAt time.Time) {
	if r.store == nil {
		return
	}
	snap := &storage.Snapshot{
		LoadedAt:     loadedAt,
		Fingerprints: r.detector.Known(),
		Records:      records,
	}
	if err := r.store.Save(snap); err != nil {
		r.logger.Error("snapshot save failed", logging.Err(err))
		return
	}
	r.logger.Debug("snapshot saved", logging.String("path", r.store.Path()),
		logging.Int("records", len(records)))
}

// RestoreFromDurable loads the snapshot written by a previous run.  It
// returns true when an index was published from it.  An absent snapshot is
// a normal cold start; a corrupt one is invalidated so the next reload
// starts clean.
func (r *Repository) RestoreFromDurable(ctx context.Context) (bool, error) {
	if r.store == nil {
		return false, nil
	}
	snap, err := r.store.Load()
	if err != nil {
		if errors.IsCode(err, errors.CodeNotFound) {
			r.metrics.SnapshotRestores.WithLabelValues("absent").Inc()
			return false, nil
		}
		r.metrics.SnapshotRestores.WithLabelValues("corrupt").Inc()
		r.logger.Warn("snapshot unusable, discarding", logging.Err(err))
		if rmErr := r.store.Invalidate(); rmErr != nil {
			r.logger.Error("cannot discard snapshot", logging.Err(rmErr))
		}
		return false, err
	}

	r.mu.Lock()
	r.bySource = make(map[types.SourceList][]*sanction.Record)
	for _, rec := range snap.Records {
		r.bySource[rec.Source] = append(r.bySource[rec.Source], rec)
	}
	for src := range r.bySource {
		r.loadedAt[src] = snap.LoadedAt
	}
	merged := r.mergedLocked()
	r.mu.Unlock()

	r.detector.Seed(snap.Fingerprints)
	ix := sanction.BuildIndex(merged)
	r.index.Store(ix)

	for src, n := range ix.PerSourceCounts() {
		r.metrics.RecordsLoaded.WithLabelValues(src.String()).Set(float64(n))
	}
	result := "ok"
	if r.now().Sub(snap.LoadedAt) > r.cfg.Matching.StaleAfter {
		result = "stale"
	}
	r.metrics.SnapshotRestores.WithLabelValues(result).Inc()

	r.logger.Info("restored from snapshot",
		logging.Int("records", ix.TotalRecords()),
		logging.Time("loaded_at", snap.LoadedAt),
		logging.Bool("stale", result == "stale"))
	return true, nil
}

// InvalidateSnapshot removes the durable snapshot so the next start parses
// the source files from scratch.  The live index is unaffected.
func (r *Repository) InvalidateSnapshot() error {
	if r.store == nil {
		return nil
	}
	return r.store.Invalidate()
}

// Status reports the repository's current state, including which sources
// have outlived the configured staleness window.
func (r *Repository) Status() Status {
	ix := r.Index()

	r.mu.Lock()
	loadedAt := make(map[types.SourceList]time.Time, len(r.loadedAt))
	for src, ts := range r.loadedAt {
		loadedAt[src] = ts
	}
	r.mu.Unlock()

	// A source is stale when it was never loaded, has outlived the
	// staleness window, or its file has since gone missing.
	var stale []types.SourceList
	cutoff := r.now().Add(-r.cfg.Matching.StaleAfter)
	paths := r.sourcePaths()
	for _, src := range types.AllSources {
		ts, ok := loadedAt[src]
		if !ok || ts.Before(cutoff) {
			stale = append(stale, src)
			continue
		}
		if _, err := os.Stat(paths[src]); err != nil {
			stale = append(stale, src)
		}
	}

	return Status{
		Ready:           ix.TotalRecords() > 0,
		TotalRecords:    ix.TotalRecords(),
		PerSourceCounts: ix.PerSourceCounts(),
		LoadedAt:        loadedAt,
		IsStale:         len(stale) > 0,
		StaleSources:    stale,
		Fingerprint:     r.detector.Combined(),
		Reloading:       r.reloading.Load(),
	}
}

func openSourceFile(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeSourceMissing, "cannot open source file").
			WithDetail("path=" + path)
	}
	return f, nil
}

func sortedOutcomes(m map[types.SourceList]*SourceOutcome) []SourceOutcome {
	out := make([]SourceOutcome, 0, len(m))
	for _, o := range m {
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return out
}
