package report

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/enrich-cli/internal/model"
	"github.com/sells-group/enrich-cli/internal/store"
)

// Distribution gaps, in percentage points, flagged as anomalies.
const (
	anomalyGapPct = 5.0
	highGapPct    = 10.0
)

// Anomaly severities.
const (
	SeverityHigh   = "high"
	SeverityMedium = "medium"
)

// compared lists the profile sections placed side by side.
var compared = []string{SectionGender, SectionRegion, SectionCity, SectionIncome}

// CompareOptions names the two sources and bounds their distributions.
type CompareOptions struct {
	LeftName        string
	RightName       string
	TopN            int    // values kept per section and side
	ExternalStoreID string // restrict both sides to one store
}

// DiffRow is one attribute value counted on both sides.
type DiffRow struct {
	Value    string  `json:"value" yaml:"value"`
	Left     int64   `json:"left" yaml:"left"`
	Right    int64   `json:"right" yaml:"right"`
	LeftPct  float64 `json:"left_pct" yaml:"left_pct"`
	RightPct float64 `json:"right_pct" yaml:"right_pct"`
	GapPct   float64 `json:"gap_pct" yaml:"gap_pct"`
}

// SectionDiff is one attribute compared across sources.
type SectionDiff struct {
	Name string    `json:"name" yaml:"name"`
	Rows []DiffRow `json:"rows" yaml:"rows"`
}

// Anomaly is a difference between sources worth a closer look.
type Anomaly struct {
	Metric   string `json:"metric" yaml:"metric"`
	Detail   string `json:"detail" yaml:"detail"`
	Severity string `json:"severity" yaml:"severity"`
}

// Comparison sets two customer collections side by side: email overlap,
// attribute distributions and the anomalies between them.
type Comparison struct {
	GeneratedAt time.Time     `json:"generated_at" yaml:"generated_at"`
	Scope       string        `json:"scope,omitempty" yaml:"scope,omitempty"`
	Left        string        `json:"left" yaml:"left"`
	Right       string        `json:"right" yaml:"right"`
	LeftTotal   int64         `json:"left_total" yaml:"left_total"`
	RightTotal  int64         `json:"right_total" yaml:"right_total"`
	Both        int           `json:"both" yaml:"both"`
	OnlyLeft    int           `json:"only_left" yaml:"only_left"`
	OnlyRight   int           `json:"only_right" yaml:"only_right"`
	Union       int           `json:"union" yaml:"union"`
	Sections    []SectionDiff `json:"sections" yaml:"sections"`
	Anomalies   []Anomaly     `json:"anomalies" yaml:"anomalies"`
}

// Compare profiles left and right over the same scope. Nothing is written.
func Compare(ctx context.Context, left, right store.Reader, opts CompareOptions) (*Comparison, error) {
	if opts.TopN <= 0 {
		opts.TopN = 10
	}
	if opts.LeftName == "" {
		opts.LeftName = "left"
	}
	if opts.RightName == "" {
		opts.RightName = "right"
	}
	f := store.Filter{ExternalStoreID: opts.ExternalStoreID}

	lrecs, err := left.Find(ctx, f, 0)
	if err != nil {
		return nil, eris.Wrapf(err, "report: compare %s", opts.LeftName)
	}
	rrecs, err := right.Find(ctx, f, 0)
	if err != nil {
		return nil, eris.Wrapf(err, "report: compare %s", opts.RightName)
	}

	c := &Comparison{
		GeneratedAt: time.Now().UTC(),
		Scope:       opts.ExternalStoreID,
		Left:        opts.LeftName,
		Right:       opts.RightName,
		LeftTotal:   int64(len(lrecs)),
		RightTotal:  int64(len(rrecs)),
	}

	lemails, remails := emailSet(lrecs), emailSet(rrecs)
	for e := range lemails {
		if _, ok := remails[e]; ok {
			c.Both++
		} else {
			c.OnlyLeft++
		}
	}
	c.OnlyRight = len(remails) - c.Both
	c.Union = c.Both + c.OnlyLeft + c.OnlyRight

	lp, rp := profileRecords(lrecs, opts.TopN), profileRecords(rrecs, opts.TopN)
	for _, name := range compared {
		c.Sections = append(c.Sections, diffSection(name, lp.Section(name), rp.Section(name)))
	}
	c.Anomalies = c.anomalies(lp, rp)
	return c, nil
}

// Section returns the named section diff, or nil.
func (c *Comparison) Section(name string) *SectionDiff {
	for i := range c.Sections {
		if c.Sections[i].Name == name {
			return &c.Sections[i]
		}
	}
	return nil
}

func (c *Comparison) anomalies(lp, rp *Profile) []Anomaly {
	out := []Anomaly{}

	if c.LeftTotal != c.RightTotal {
		diff := c.LeftTotal - c.RightTotal
		if diff < 0 {
			diff = -diff
		}
		sev := SeverityMedium
		if float64(diff) > 0.1*float64(max(c.LeftTotal, c.RightTotal)) {
			sev = SeverityHigh
		}
		out = append(out, Anomaly{
			Metric:   "Record count",
			Detail:   printer.Sprintf("%s: %d | %s: %d | difference: %d", c.Left, c.LeftTotal, c.Right, c.RightTotal, diff),
			Severity: sev,
		})
	}
	if c.OnlyLeft > 0 {
		out = append(out, Anomaly{
			Metric:   "Emails only in " + c.Left,
			Detail:   printer.Sprintf("%d emails have %s data but no %s match", c.OnlyLeft, c.Left, c.Right),
			Severity: SeverityMedium,
		})
	}
	if c.OnlyRight > 0 {
		out = append(out, Anomaly{
			Metric:   "Emails only in " + c.Right,
			Detail:   printer.Sprintf("%d emails have %s data but no %s match", c.OnlyRight, c.Right, c.Left),
			Severity: SeverityMedium,
		})
	}

	if g := c.Section(SectionGender); g != nil {
		lg, rg := lp.Section(SectionGender), rp.Section(SectionGender)
		if lg.Present > 0 && rg.Present > 0 {
			for _, row := range g.Rows {
				if row.GapPct < anomalyGapPct {
					continue
				}
				sev := SeverityMedium
				if row.GapPct >= highGapPct {
					sev = SeverityHigh
				}
				out = append(out, Anomaly{
					Metric: "Gender (" + row.Value + ")",
					Detail: printer.Sprintf("%s: %.1f%% | %s: %.1f%% | gap %.1fpp",
						c.Left, row.LeftPct, c.Right, row.RightPct, row.GapPct),
					Severity: sev,
				})
			}
		}
	}

	lr, rr := lp.Section(SectionRegion), rp.Section(SectionRegion)
	if len(lr.Buckets) > 0 && len(rr.Buckets) > 0 && lr.Buckets[0].Value != rr.Buckets[0].Value {
		out = append(out, Anomaly{
			Metric: "Top region",
			Detail: printer.Sprintf("%s top: %s (%.1f%%) | %s top: %s (%.1f%%)",
				c.Left, lr.Buckets[0].Value, lr.Buckets[0].Pct, c.Right, rr.Buckets[0].Value, rr.Buckets[0].Pct),
			Severity: SeverityMedium,
		})
	}
	return out
}

func diffSection(name string, l, r *Section) SectionDiff {
	rows := make(map[string]*DiffRow)
	row := func(v string) *DiffRow {
		if rows[v] == nil {
			rows[v] = &DiffRow{Value: v}
		}
		return rows[v]
	}
	for _, b := range l.Buckets {
		d := row(b.Value)
		d.Left, d.LeftPct = b.Count, b.Pct
	}
	for _, b := range r.Buckets {
		d := row(b.Value)
		d.Right, d.RightPct = b.Count, b.Pct
	}

	out := SectionDiff{Name: name, Rows: make([]DiffRow, 0, len(rows))}
	for _, d := range rows {
		d.GapPct = math.Abs(d.LeftPct - d.RightPct)
		out.Rows = append(out.Rows, *d)
	}
	sort.Slice(out.Rows, func(i, j int) bool { return out.Rows[i].Value < out.Rows[j].Value })
	return out
}

func emailSet(recs []model.StoredRecord) map[string]struct{} {
	set := make(map[string]struct{}, len(recs))
	for _, r := range recs {
		if e := model.NormalizeEmail(r.Email); e != "" {
			set[e] = struct{}{}
		}
	}
	return set
}
