// Package report computes and renders the store-info verification summary.
package report

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/enrich-cli/internal/model"
	"github.com/sells-group/enrich-cli/internal/store"
)

// Options bounds the samples and groupings of a Summary.
type Options struct {
	SampleSize        int    // records with both store fields
	MissingSampleSize int    // records missing either store field
	TopN              int    // store groups
	ExternalStoreID   string // restrict every figure to one store
}

// DefaultOptions returns the standard report bounds.
func DefaultOptions() Options {
	return Options{SampleSize: 5, MissingSampleSize: 3, TopN: 10}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.SampleSize <= 0 {
		o.SampleSize = d.SampleSize
	}
	if o.MissingSampleSize <= 0 {
		o.MissingSampleSize = d.MissingSampleSize
	}
	if o.TopN <= 0 {
		o.TopN = d.TopN
	}
	return o
}

// RecordView is the projection of a stored record shown in samples.
type RecordView struct {
	Email           string `json:"email" yaml:"email"`
	ExternalStoreID string `json:"externalStoreId,omitempty" yaml:"externalStoreId,omitempty"`
	StoreName       string `json:"storeName,omitempty" yaml:"storeName,omitempty"`
}

// Summary is a read-only snapshot of store-info coverage.
type Summary struct {
	GeneratedAt   time.Time          `json:"generated_at" yaml:"generated_at"`
	Scope         string             `json:"scope,omitempty" yaml:"scope,omitempty"`
	Total         int64              `json:"total" yaml:"total"`
	WithStoreID   int64              `json:"with_store_id" yaml:"with_store_id"`
	WithStoreName int64              `json:"with_store_name" yaml:"with_store_name"`
	WithBoth      int64              `json:"with_both" yaml:"with_both"`
	Coverage      float64            `json:"coverage_pct" yaml:"coverage_pct"`
	Sample        []RecordView       `json:"sample" yaml:"sample"`
	Missing       []RecordView       `json:"missing" yaml:"missing"`
	TopStores     []model.StoreCount `json:"top_stores" yaml:"top_stores"`
}

// Coverage returns part/total as a percentage, or 0 when total is 0.
func Coverage(part, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

// Build queries r for the summary figures. Nothing is written.
func Build(ctx context.Context, r store.Reader, opts Options) (*Summary, error) {
	opts = opts.withDefaults()
	base := store.Filter{ExternalStoreID: opts.ExternalStoreID}

	withID, withName, both, missing := base, base, base, base
	withID.WithStoreID = true
	withName.WithStoreName = true
	both.WithStoreID, both.WithStoreName = true, true
	missing.MissingStoreInfo = true

	s := &Summary{GeneratedAt: time.Now().UTC(), Scope: opts.ExternalStoreID}

	counts := []struct {
		f   store.Filter
		dst *int64
	}{
		{base, &s.Total},
		{withID, &s.WithStoreID},
		{withName, &s.WithStoreName},
		{both, &s.WithBoth},
	}
	for _, c := range counts {
		n, err := r.Count(ctx, c.f)
		if err != nil {
			return nil, eris.Wrap(err, "report: count")
		}
		*c.dst = n
	}
	s.Coverage = Coverage(s.WithBoth, s.Total)

	sample, err := r.Find(ctx, both, opts.SampleSize)
	if err != nil {
		return nil, eris.Wrap(err, "report: sample")
	}
	s.Sample = views(sample)

	missingRecs, err := r.Find(ctx, missing, opts.MissingSampleSize)
	if err != nil {
		return nil, eris.Wrap(err, "report: missing sample")
	}
	s.Missing = views(missingRecs)

	top, err := r.TopStores(ctx, base, opts.TopN)
	if err != nil {
		return nil, eris.Wrap(err, "report: top stores")
	}
	if len(top) > opts.TopN {
		top = top[:opts.TopN]
	}
	s.TopStores = top

	return s, nil
}

func views(recs []model.StoredRecord) []RecordView {
	out := make([]RecordView, 0, len(recs))
	for _, r := range recs {
		out = append(out, RecordView{Email: r.Email, ExternalStoreID: r.ExternalStoreID, StoreName: r.StoreName})
	}
	return out
}
