package report

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/enrich-cli/internal/export"
	"github.com/sells-group/enrich-cli/internal/model"
	"github.com/sells-group/enrich-cli/internal/store"
)

// Profile section names.
const (
	SectionRegion        = "region"
	SectionCity          = "city"
	SectionGender        = "gender"
	SectionAge           = "age"
	SectionIncome        = "income"
	SectionNetWorth      = "net_worth"
	SectionHomeOwner     = "home_owner"
	SectionMaritalStatus = "marital_status"
	SectionInterests     = "interests"
)

// profileField reads one attribute from a flattened payload. The first key
// holding a non-empty value wins.
type profileField struct {
	name string
	keys []string
	norm func(string) string
}

var profileFields = []profileField{
	{name: SectionRegion, keys: []string{
		"data.details.locations[0].region",
		"data.details.locations[0].regionCode",
		"data.location",
		"data.document.attributes.state",
	}},
	{name: SectionCity, keys: []string{
		"data.details.locations[0].city",
		"data.document.attributes.city",
	}},
	{name: SectionGender, keys: []string{
		"data.gender",
		"data.details.gender",
		"data.document.attributes.gender",
	}, norm: normalizeGender},
	{name: SectionAge, keys: []string{
		"data.details.age.value",
		"data.details.age",
		"data.ageRange",
	}, norm: ageBucket},
	{name: SectionIncome, keys: []string{
		"data.details.household.finance.income",
		"data.document.attributes.family.estimated_income",
	}},
	{name: SectionNetWorth, keys: []string{"data.details.household.finance.netWorth"}},
	{name: SectionHomeOwner, keys: []string{"data.details.household.homeInfo.ownerOrRenter"}, norm: ownerLabel},
	{name: SectionMaritalStatus, keys: []string{"data.details.household.homeInfo.maritalStatus"}},
}

var nameKeys = []string{"data.fullName", "data.details.name.full"}

// ProfileOptions bounds a Profile.
type ProfileOptions struct {
	TopN            int    // values kept per section
	ExternalStoreID string // restrict to one store
}

func (o ProfileOptions) withDefaults() ProfileOptions {
	if o.TopN <= 0 {
		o.TopN = 15
	}
	return o
}

// Bucket is one value of an attribute and its share of all profiled records.
type Bucket struct {
	Value string  `json:"value" yaml:"value"`
	Count int64   `json:"count" yaml:"count"`
	Pct   float64 `json:"pct" yaml:"pct"`
}

// Section is the value distribution of one attribute.
type Section struct {
	Name     string   `json:"name" yaml:"name"`
	Present  int64    `json:"present" yaml:"present"`
	Coverage float64  `json:"coverage_pct" yaml:"coverage_pct"`
	Distinct int      `json:"distinct" yaml:"distinct"`
	Buckets  []Bucket `json:"buckets" yaml:"buckets"`
}

// Profile describes the enrichment payloads of the stored customers:
// geography, demographics, household finance and interests.
type Profile struct {
	GeneratedAt  time.Time `json:"generated_at" yaml:"generated_at"`
	Scope        string    `json:"scope,omitempty" yaml:"scope,omitempty"`
	Total        int64     `json:"total" yaml:"total"`
	WithName     int64     `json:"with_name" yaml:"with_name"`
	NameCoverage float64   `json:"name_coverage_pct" yaml:"name_coverage_pct"`
	Sections     []Section `json:"sections" yaml:"sections"`
}

// Section returns the named section, or nil.
func (p *Profile) Section(name string) *Section {
	for i := range p.Sections {
		if p.Sections[i].Name == name {
			return &p.Sections[i]
		}
	}
	return nil
}

// BuildProfile reads every record in scope and tallies its payload.
func BuildProfile(ctx context.Context, r store.Reader, opts ProfileOptions) (*Profile, error) {
	opts = opts.withDefaults()
	recs, err := r.Find(ctx, store.Filter{ExternalStoreID: opts.ExternalStoreID}, 0)
	if err != nil {
		return nil, eris.Wrap(err, "report: profile records")
	}
	p := profileRecords(recs, opts.TopN)
	p.Scope = opts.ExternalStoreID
	return p, nil
}

func profileRecords(recs []model.StoredRecord, topN int) *Profile {
	p := &Profile{GeneratedAt: time.Now().UTC(), Total: int64(len(recs))}

	tallies := make([]map[string]int64, len(profileFields))
	present := make([]int64, len(profileFields))
	for i := range tallies {
		tallies[i] = make(map[string]int64)
	}
	interests := make(map[string]int64)
	var interested int64

	for _, rec := range recs {
		flat := export.Flatten(rec)
		if _, ok := firstValue(flat, nameKeys); ok {
			p.WithName++
		}
		for i, f := range profileFields {
			v, ok := firstValue(flat, f.keys)
			if !ok {
				continue
			}
			if f.norm != nil {
				v = f.norm(v)
			}
			tallies[i][v]++
			present[i]++
		}
		if tallyInterests(flat, interests) {
			interested++
		}
	}

	p.NameCoverage = Coverage(p.WithName, p.Total)
	for i, f := range profileFields {
		p.Sections = append(p.Sections, newSection(f.name, tallies[i], present[i], p.Total, topN))
	}
	p.Sections = append(p.Sections, newSection(SectionInterests, interests, interested, p.Total, topN))
	return p
}

func newSection(name string, tally map[string]int64, present, total int64, topN int) Section {
	s := Section{
		Name:     name,
		Present:  present,
		Coverage: Coverage(present, total),
		Distinct: len(tally),
		Buckets:  make([]Bucket, 0, len(tally)),
	}
	for v, n := range tally {
		s.Buckets = append(s.Buckets, Bucket{Value: v, Count: n, Pct: Coverage(n, total)})
	}
	sort.Slice(s.Buckets, func(i, j int) bool {
		if s.Buckets[i].Count != s.Buckets[j].Count {
			return s.Buckets[i].Count > s.Buckets[j].Count
		}
		return s.Buckets[i].Value < s.Buckets[j].Value
	})
	if topN > 0 && len(s.Buckets) > topN {
		s.Buckets = s.Buckets[:topN]
	}
	return s
}

// tallyInterests counts survey answers of "Y", market trends rated Likely or
// Highly Likely, and free-text interest and niche lists. It reports whether
// the record had any.
func tallyInterests(flat map[string]any, counts map[string]int64) bool {
	found := false
	add := func(label string) {
		if label = strings.TrimSpace(label); label != "" {
			counts[label]++
			found = true
		}
	}
	for k, raw := range flat {
		if raw == nil {
			continue
		}
		v := strings.TrimSpace(export.FormatValue(raw))
		switch {
		case strings.HasPrefix(k, "data.details.surveys."):
			if strings.EqualFold(v, "Y") {
				add(lastSegment(k))
			}
		case strings.HasPrefix(k, "data.details.marketTrends."):
			if v == "Likely" || v == "Highly Likely" {
				add(lastSegment(k))
			}
		case strings.HasPrefix(k, "data.details.interests["),
			strings.Contains(k, "enthusiasts.niches"):
			add(v)
		}
	}
	return found
}

func lastSegment(key string) string {
	if i := strings.LastIndexByte(key, '.'); i >= 0 {
		return key[i+1:]
	}
	return key
}

func firstValue(flat map[string]any, keys []string) (string, bool) {
	for _, k := range keys {
		raw, ok := flat[k]
		if !ok || raw == nil {
			continue
		}
		if v := strings.TrimSpace(export.FormatValue(raw)); v != "" {
			return v, true
		}
	}
	return "", false
}

func normalizeGender(v string) string {
	switch strings.ToLower(v) {
	case "m", "male":
		return "Male"
	case "f", "female":
		return "Female"
	}
	return v
}

// ageBucket groups numeric ages by decade; ranges such as "30-39" pass through.
func ageBucket(v string) string {
	n, err := strconv.ParseFloat(v, 64)
	if err != nil || n <= 0 {
		return v
	}
	d := int(n) / 10 * 10
	return fmt.Sprintf("%d-%d", d, d+9)
}

func ownerLabel(v string) string {
	if strings.EqualFold(v, "H") {
		return "Owner (H)"
	}
	return v
}
