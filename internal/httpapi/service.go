package httpapi

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"vhsops/internal/airtable"
	"vhsops/internal/config"
	"vhsops/internal/metrics"
	"vhsops/internal/store"
	"vhsops/internal/summary"
	"vhsops/internal/tape"
)

// Service runs the read pipeline: fetch the raw record set, normalize it,
// aggregate it. Each pass is an independent synchronous computation under a
// single captured now; the only shared state is the TTL cache in front.
type Service struct {
	cfg     config.Config
	client  *airtable.Client
	store   *store.Store // nil when history is disabled
	metrics *metrics.Metrics
	log     *zap.SugaredLogger

	fieldsMu sync.RWMutex
	fields   config.FieldMap

	// now is read exactly once per pipeline pass; normalization and
	// aggregation share the captured value so day boundaries cannot drift
	// mid-pass.
	now func() time.Time

	tapesCache   cache[[]tape.Tape]
	summaryCache cache[summary.Report]
}

func NewService(cfg config.Config, client *airtable.Client, st *store.Store, m *metrics.Metrics, log *zap.SugaredLogger) *Service {
	return &Service{
		cfg:          cfg,
		client:       client,
		store:        st,
		metrics:      m,
		log:          log,
		fields:       cfg.Fields,
		now:          config.Now,
		tapesCache:   cache[[]tape.Tape]{ttl: cfg.TapesTTL},
		summaryCache: cache[summary.Report]{ttl: cfg.SummaryTTL},
	}
}

// Fields returns the field map currently in effect.
func (s *Service) Fields() config.FieldMap {
	s.fieldsMu.RLock()
	defer s.fieldsMu.RUnlock()
	return s.fields
}

// SetFields swaps in a new field map (config hot reload) and drops caches so
// the next request normalizes against the new column names.
func (s *Service) SetFields(fm config.FieldMap) {
	s.fieldsMu.Lock()
	s.fields = fm
	s.fieldsMu.Unlock()
	s.tapesCache.invalidate()
	s.summaryCache.invalidate()
}

// Tapes returns the normalized record set, refetching when the cache is
// stale.
func (s *Service) Tapes(ctx context.Context) ([]tape.Tape, error) {
	return s.tapesCache.get(s.metrics, func() ([]tape.Tape, error) {
		return s.fetchTapesAt(ctx, s.now())
	})
}

// Summary returns the full aggregate report, recomputing when stale. Fresh
// builds are recorded to the snapshot history best-effort.
func (s *Service) Summary(ctx context.Context) (summary.Report, error) {
	return s.summaryCache.get(s.metrics, func() (summary.Report, error) {
		now := s.now()
		tapes, err := s.fetchTapesAt(ctx, now)
		if err != nil {
			return summary.Report{}, err
		}
		report := summary.Build(tapes, s.cfg.PipelineStages, now)
		s.metrics.RecordSummaryBuild()
		s.persistSnapshot(ctx, report, now)
		return report, nil
	})
}

func (s *Service) fetchTapesAt(ctx context.Context, now time.Time) ([]tape.Tape, error) {
	recs, err := s.client.ListRecords(ctx)
	s.metrics.RecordFetch(err)
	if err != nil {
		return nil, err
	}
	return tape.NormalizeAll(recs, s.Fields(), s.cfg.DurationUnit, now), nil
}

func (s *Service) persistSnapshot(ctx context.Context, r summary.Report, now time.Time) {
	if s.store == nil {
		return
	}
	backlog := 0
	if n := len(r.BacklogTrend); n > 0 {
		backlog = r.BacklogTrend[n-1].Backlog
	}
	snap := store.Snapshot{
		CapturedAt:      now,
		TotalTapes:      r.Kpis.TotalTapes,
		ArchivedTotal:   r.Kpis.ArchivedTotal,
		BlockedQueue:    r.Kpis.BlockedQueue,
		Backlog:         backlog,
		AvgQueueAgeDays: r.Kpis.AvgQueueAgeDays,
		AvgDriftMinutes: r.Kpis.AvgRuntimeDriftMinutes,
	}
	if err := s.store.InsertSnapshot(ctx, snap); err != nil {
		s.log.Warnw("snapshot insert failed", "error", err)
	}
}

// UpdateStatus writes the progress flags implied by a target stage. Moving
// a tape to an earlier stage clears the later flags, matching how the board
// has always mapped stage drops back onto checkbox columns.
func (s *Service) UpdateStatus(ctx context.Context, id string, stage tape.Stage) error {
	f := s.Fields()
	var fields map[string]any
	switch stage {
	case tape.StageIntake:
		fields = map[string]any{
			f.Captured: false, f.Trimmed: false, f.Combined: false, f.TransferredToNas: false,
		}
	case tape.StageCapture:
		fields = map[string]any{f.Captured: true}
	case tape.StageTrim:
		fields = map[string]any{f.Captured: true, f.Trimmed: true}
	case tape.StageCombine:
		fields = map[string]any{f.Captured: true, f.Trimmed: true, f.Combined: true}
	case tape.StageTransfer, tape.StageArchived:
		fields = map[string]any{
			f.Captured: true, f.Trimmed: true, f.Combined: true, f.TransferredToNas: true,
		}
	default:
		return errors.Newf("unknown stage %q", stage)
	}
	err := s.client.UpdateRecord(ctx, id, fields)
	s.metrics.RecordWrite(err)
	return err
}

// UpdateNotes writes the configured notes column.
func (s *Service) UpdateNotes(ctx context.Context, id, note string) error {
	f := s.Fields()
	err := s.client.UpdateRecord(ctx, id, map[string]any{f.InternalNotes: note})
	s.metrics.RecordWrite(err)
	if err != nil {
		return errors.WithHintf(err,
			"Set AIRTABLE_INTERNAL_NOTES_FIELD to a valid text field if %q does not exist.", f.InternalNotes)
	}
	return nil
}

// cache is a mutex-guarded TTL cache. Holding the lock across the fill
// keeps concurrent requests single-flight; at the stated scale a blocked
// reader is cheaper than a redundant full fetch.
type cache[T any] struct {
	mu  sync.Mutex
	ttl time.Duration
	val T
	at  time.Time
}

func (c *cache[T]) get(m *metrics.Metrics, fill func() (T, error)) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.at.IsZero() && time.Since(c.at) < c.ttl {
		m.RecordCacheHit()
		return c.val, nil
	}
	m.RecordCacheMiss()
	val, err := fill()
	if err != nil {
		return val, err
	}
	c.val = val
	c.at = time.Now()
	return val, nil
}

func (c *cache[T]) invalidate() {
	c.mu.Lock()
	c.at = time.Time{}
	c.mu.Unlock()
}
