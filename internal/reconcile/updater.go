package reconcile

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/enrich-cli/internal/model"
)

// Updater applies store metadata from input rows to existing records.
// It never creates records.
type Updater struct {
	store Store
	opts  options
}

// NewUpdater returns an Updater writing to st.
func NewUpdater(st Store, opts ...Option) *Updater {
	return &Updater{store: st, opts: buildOptions(opts)}
}

// Run processes records in order. Per-record failures are counted and
// logged; only context cancellation stops the loop early, in which case the
// stats cover the records handled so far.
func (u *Updater) Run(ctx context.Context, records []model.InputRecord) (model.BatchStats, error) {
	log := zap.L().With(zap.String("job", "update-stores"), zap.String("run_id", u.opts.runID))
	log.Info("update: starting", zap.Int("records", len(records)))

	var stats model.BatchStats
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			log.Warn("update: cancelled", zap.Int("processed", stats.TotalProcessed))
			return stats, eris.Wrap(err, "update: cancelled")
		}

		stats.TotalProcessed++
		email := model.NormalizeEmail(rec.Email)
		changed, found, err := u.apply(ctx, email, rec)
		switch {
		case err != nil:
			stats.RecordError(err)
			logRecordError(log, rec, email, err)
		case !found:
			stats.NotFound++
			log.Debug("update: no stored record", zap.Int("position", rec.Position), zap.String("email", email))
		case changed:
			stats.Updated++
		default:
			stats.Unchanged++
		}

		if stats.TotalProcessed%u.opts.progressEvery == 0 {
			log.Info("update: progress",
				zap.Int("processed", stats.TotalProcessed),
				zap.Int("updated", stats.Updated),
				zap.Int("unchanged", stats.Unchanged),
				zap.Int("not_found", stats.NotFound),
				zap.Int("errors", stats.Errors),
			)
		}
	}

	log.Info("update: complete",
		zap.Int("processed", stats.TotalProcessed),
		zap.Int("updated", stats.Updated),
		zap.Int("unchanged", stats.Unchanged),
		zap.Int("not_found", stats.NotFound),
		zap.Int("errors", stats.Errors),
	)
	return stats, nil
}

// apply reconciles one row. It reports whether a stored record was found and
// whether the patch changed any of its store fields.
func (u *Updater) apply(ctx context.Context, email string, rec model.InputRecord) (changed, found bool, err error) {
	if email == "" {
		return false, false, model.NewJobError(model.KindValidation, "validate email", eris.New("customer_email is empty"))
	}

	stored, err := u.store.FindByEmail(ctx, email)
	if err != nil {
		return false, false, model.NewJobError(model.KindLookup, "find by email", err)
	}
	if stored == nil {
		return false, false, nil
	}

	patch := model.NewStoreInfoPatch(rec, u.opts.now())
	if err := u.store.UpdateStoreInfo(ctx, email, patch); err != nil {
		return false, true, model.NewJobError(model.KindWrite, "update store info", err)
	}
	return patch.Changes(*stored), true, nil
}
