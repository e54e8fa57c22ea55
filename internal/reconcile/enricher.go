package reconcile

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/enrich-cli/internal/model"
	"github.com/sells-group/enrich-cli/pkg/fullcontact"
)

// Matcher resolves an email to an opaque enrichment payload.
type Matcher interface {
	Match(ctx context.Context, email string) (map[string]any, error)
}

// FullContactMatcher matches emails through the FullContact enrich API with
// a fixed package selector.
type FullContactMatcher struct {
	Client   fullcontact.Client
	Packages []string
}

func (m FullContactMatcher) Match(ctx context.Context, email string) (map[string]any, error) {
	return m.Client.Enrich(ctx, fullcontact.EnrichRequest{Email: email, DataFilter: m.Packages})
}

// Range selects input positions Start..End, 1-based and inclusive.
// End == 0 means through the last record.
type Range struct {
	Start int
	End   int
}

// Validate checks the bounds without regard to input length.
func (r Range) Validate() error {
	if r.Start < 1 {
		return eris.Errorf("range start must be >= 1, got %d", r.Start)
	}
	if r.End != 0 && r.End < r.Start {
		return eris.Errorf("range end %d is before start %d", r.End, r.Start)
	}
	return nil
}

// bounds returns the slice indexes [lo, hi) of r over n records.
func (r Range) bounds(n int) (lo, hi int) {
	lo, hi = r.Start-1, n
	if r.End != 0 && r.End < n {
		hi = r.End
	}
	if lo > hi {
		lo = hi
	}
	return lo, hi
}

func (r Range) String() string {
	if r.End == 0 {
		return fmt.Sprintf("%d..end", r.Start)
	}
	return fmt.Sprintf("%d..%d", r.Start, r.End)
}

// Enricher inserts enrichment results for emails not yet stored.
// It never overwrites an existing record.
type Enricher struct {
	store   Store
	matcher Matcher
	opts    options
}

// NewEnricher returns an Enricher calling m and writing to st.
func NewEnricher(st Store, m Matcher, opts ...Option) *Enricher {
	return &Enricher{store: st, matcher: m, opts: buildOptions(opts)}
}

// Run enriches the records inside r, in order. Rows outside r are not
// looked up. Per-record failures are counted and logged.
func (e *Enricher) Run(ctx context.Context, records []model.InputRecord, r Range) (model.EnrichStats, error) {
	var stats model.EnrichStats
	if err := r.Validate(); err != nil {
		return stats, model.NewJobError(model.KindValidation, "validate range", err)
	}

	log := zap.L().With(zap.String("job", "enrich"), zap.String("run_id", e.opts.runID))
	lo, hi := r.bounds(len(records))
	log.Info("enrich: starting",
		zap.Int("records", len(records)),
		zap.Stringer("range", r),
		zap.Int("in_range", hi-lo),
	)

	for _, rec := range records[lo:hi] {
		if err := ctx.Err(); err != nil {
			log.Warn("enrich: cancelled", zap.Int("processed", stats.InRange))
			return stats, eris.Wrap(err, "enrich: cancelled")
		}

		stats.InRange++
		email := model.NormalizeEmail(rec.Email)
		inserted, called, err := e.enrich(ctx, email)
		switch {
		case err != nil:
			stats.RecordError(err)
			logRecordError(log, rec, email, err)
		case inserted:
			stats.Inserted++
			log.Debug("enrich: inserted", zap.Int("position", rec.Position), zap.String("email", email))
		default:
			stats.Skipped++
		}

		if called {
			if err := e.opts.delayer.Wait(ctx); err != nil {
				log.Warn("enrich: cancelled during delay", zap.Int("processed", stats.InRange))
				return stats, eris.Wrap(err, "enrich: cancelled")
			}
		}

		if stats.InRange%e.opts.progressEvery == 0 {
			log.Info("enrich: progress",
				zap.Int("processed", stats.InRange),
				zap.Int("inserted", stats.Inserted),
				zap.Int("skipped", stats.Skipped),
				zap.Int("errors", stats.Errors),
			)
		}
	}

	log.Info("enrich: complete",
		zap.Int("processed", stats.InRange),
		zap.Int("inserted", stats.Inserted),
		zap.Int("skipped", stats.Skipped),
		zap.Int("errors", stats.Errors),
	)
	return stats, nil
}

// enrich handles one email. called reports whether the external service was
// contacted, which decides whether the delay applies.
func (e *Enricher) enrich(ctx context.Context, email string) (inserted, called bool, err error) {
	if email == "" {
		return false, false, model.NewJobError(model.KindValidation, "validate email", eris.New("customer_email is empty"))
	}

	existing, err := e.store.FindByEmail(ctx, email)
	if err != nil {
		return false, false, model.NewJobError(model.KindLookup, "find by email", err)
	}
	if existing != nil {
		return false, false, nil
	}

	payload, err := e.matcher.Match(ctx, email)
	if err != nil {
		return false, true, model.NewJobError(model.KindExternalCall, "match", err)
	}

	processed := e.opts.now()
	rec := model.StoredRecord{Email: email, Data: payload, ProcessedAt: &processed}
	if err := e.store.Insert(ctx, rec); err != nil {
		return false, true, model.NewJobError(model.KindWrite, "insert", err)
	}
	return true, true, nil
}
