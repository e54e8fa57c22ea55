package report

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/enrich-cli/internal/model"
)

func sampleSummary() *Summary {
	return &Summary{
		GeneratedAt:   time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Total:         12345,
		WithStoreID:   9000,
		WithStoreName: 8000,
		WithBoth:      7000,
		Coverage:      Coverage(7000, 12345),
		Sample:        []RecordView{{Email: "a@x.com", ExternalStoreID: "S1", StoreName: "Acme"}},
		Missing:       []RecordView{{Email: "b@x.com"}},
		TopStores:     []model.StoreCount{{StoreName: "Acme", ExternalStoreID: "S1", Customers: 1500}},
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]string{"": "text", "TEXT": "text", "json": "json", " yaml ": "yaml"} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("xml")
	assert.Error(t, err)
}

func TestRender_Text(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, sampleSummary(), "text"))

	out := buf.String()
	assert.Contains(t, out, "Store info report")
	assert.Contains(t, out, "12,345")
	assert.Contains(t, out, "56.70%")
	assert.Contains(t, out, "a@x.com")
	assert.Contains(t, out, "b@x.com")
	assert.Contains(t, out, "Acme")
	assert.Contains(t, out, "1,500")
}

func TestRender_TextScoped(t *testing.T) {
	s := sampleSummary()
	s.Scope = "S1"

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, s, ""))
	assert.Contains(t, buf.String(), "(store S1)")
}

func TestRender_TextEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, &Summary{}, "text"))
	assert.Contains(t, buf.String(), "0.00%")
}

func TestRender_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, sampleSummary(), "json"))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, float64(12345), got["total"])
	assert.Equal(t, float64(7000), got["with_both"])
	top := got["top_stores"].([]any)
	require.Len(t, top, 1)
	assert.Equal(t, "Acme", top[0].(map[string]any)["storeName"])
}

func TestRender_YAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, sampleSummary(), "yaml"))

	var got map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, 12345, got["total"])
	assert.Equal(t, 9000, got["with_store_id"])
}

func TestRender_UnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	err := Render(&buf, sampleSummary(), "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown format")
	assert.Empty(t, buf.String())
}

func TestRenderBatch(t *testing.T) {
	st := model.BatchStats{TotalProcessed: 1200, Updated: 1000, Unchanged: 100, NotFound: 90, Errors: 10,
		ErrorsByKind: map[model.ErrorKind]int{model.KindLookup: 7, model.KindValidation: 3}}

	var buf bytes.Buffer
	require.NoError(t, RenderBatch(&buf, st, "text"))
	out := buf.String()
	assert.Contains(t, out, "1,200")
	assert.Contains(t, out, "1,000")
	assert.Contains(t, out, "lookup")
	assert.Contains(t, out, "validation")

	buf.Reset()
	require.NoError(t, RenderBatch(&buf, st, "json"))
	var got model.BatchStats
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, st, got)
}

func TestRenderEnrich(t *testing.T) {
	st := model.EnrichStats{InRange: 10, Inserted: 6, Skipped: 3, Errors: 1,
		ErrorsByKind: map[model.ErrorKind]int{model.KindExternalCall: 1}}

	var buf bytes.Buffer
	require.NoError(t, RenderEnrich(&buf, st, "text"))
	assert.Contains(t, buf.String(), "external_call")

	buf.Reset()
	require.NoError(t, RenderEnrich(&buf, st, "yaml"))
	assert.Contains(t, buf.String(), "inserted: 6")
}

func TestRenderProfile(t *testing.T) {
	p := profileRecords(profileFixture(), 15)
	p.Scope = "S1"

	var buf bytes.Buffer
	require.NoError(t, RenderProfile(&buf, p, "text"))
	out := buf.String()
	assert.Contains(t, out, "Customer profile (store S1)")
	assert.Contains(t, out, "region (3 of 4 records)")
	assert.Contains(t, out, "Texas")
	assert.Contains(t, out, "50.0%")
	assert.Contains(t, out, "Owner (H)")
	assert.Contains(t, out, "football")

	buf.Reset()
	require.NoError(t, RenderProfile(&buf, p, "json"))
	var got Profile
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, int64(4), got.Total)
	require.NotNil(t, got.Section(SectionCity))
	assert.Len(t, got.Section(SectionCity).Buckets, 2)

	buf.Reset()
	require.NoError(t, RenderProfile(&buf, p, "yaml"))
	assert.Contains(t, buf.String(), "name_coverage_pct: 50")
}

func TestRenderComparison(t *testing.T) {
	c := &Comparison{
		Left: "customers", Right: "archive", LeftTotal: 3, RightTotal: 2,
		Both: 1, OnlyLeft: 2, OnlyRight: 1, Union: 4,
		Sections: []SectionDiff{{Name: SectionGender, Rows: []DiffRow{
			{Value: "Female", Left: 2, Right: 1, LeftPct: 66.7, RightPct: 50, GapPct: 16.7},
			{Value: "Other", Left: 1, LeftPct: 33.3, GapPct: 33.3},
		}}},
		Anomalies: []Anomaly{{Metric: "Gender (Female)", Detail: "gap", Severity: SeverityHigh}},
	}

	var buf bytes.Buffer
	require.NoError(t, RenderComparison(&buf, c, "text"))
	out := buf.String()
	assert.Contains(t, out, "Comparison: customers vs archive")
	assert.Contains(t, out, "Anomalies (1)")
	assert.Contains(t, out, "Gender (Female)")
	assert.Contains(t, out, "2 (66.7%)")

	c.Anomalies = nil
	buf.Reset()
	require.NoError(t, RenderComparison(&buf, c, "text"))
	assert.Contains(t, buf.String(), "No major anomalies detected.")

	buf.Reset()
	require.NoError(t, RenderComparison(&buf, c, "json"))
	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, float64(4), got["union"])
}
