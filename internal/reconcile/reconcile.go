// Package reconcile runs the per-record customer jobs: store-info updates
// against existing records and enrichment inserts for unknown emails.
package reconcile

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/enrich-cli/internal/model"
	"github.com/sells-group/enrich-cli/internal/resilience"
)

const defaultProgressEvery = 100

// Store is the part of the customer store the reconcilers touch.
type Store interface {
	FindByEmail(ctx context.Context, email string) (*model.StoredRecord, error)
	UpdateStoreInfo(ctx context.Context, email string, patch model.StoreInfoPatch) error
	Insert(ctx context.Context, rec model.StoredRecord) error
}

// Option configures an Updater or Enricher.
type Option func(*options)

type options struct {
	now           func() time.Time
	progressEvery int
	delayer       Delayer
	runID         string
}

// WithClock overrides time.Now for timestamps written to the store.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithProgressEvery sets how many records pass between progress logs.
func WithProgressEvery(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.progressEvery = n
		}
	}
}

// WithDelayer sets the wait applied after each external call.
func WithDelayer(d Delayer) Option {
	return func(o *options) {
		if d != nil {
			o.delayer = d
		}
	}
}

// WithRunID tags every log line with the given run id.
func WithRunID(id string) Option {
	return func(o *options) { o.runID = id }
}

func buildOptions(opts []Option) options {
	o := options{
		now:           time.Now,
		progressEvery: defaultProgressEvery,
		delayer:       FixedDelay(time.Second),
	}
	for _, fn := range opts {
		fn(&o)
	}
	if o.runID == "" {
		o.runID = uuid.NewString()
	}
	return o
}

// logRecordError logs a per-record failure with enough context to re-run it.
func logRecordError(log *zap.Logger, rec model.InputRecord, email string, err error) {
	log.Warn("record failed",
		zap.Int("position", rec.Position),
		zap.String("email", email),
		zap.String("kind", string(model.KindOf(err))),
		zap.Bool("transient", resilience.IsTransient(err)),
		zap.Error(err),
	)
}
