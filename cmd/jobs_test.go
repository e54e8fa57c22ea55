package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/enrich-cli/internal/config"
	"github.com/sells-group/enrich-cli/internal/model"
	"github.com/sells-group/enrich-cli/internal/report"
	"github.com/sells-group/enrich-cli/internal/store"
)

// sqliteConfig points cfg at a fresh SQLite database in a temp dir.
func sqliteConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Store: config.StoreConfig{
			Driver:     "sqlite",
			URI:        filepath.Join(dir, "customers.db"),
			Collection: "customers",
		},
		FullContact: config.FullContactConfig{
			Token:    "test-token",
			Packages: []string{"individual"},
		},
		Batch: config.BatchConfig{
			InputPath:     filepath.Join(dir, "customers.csv"),
			Delimiter:     ",",
			ProgressEvery: 100,
		},
		Log: config.LogConfig{Level: "info", Format: "json"},
	}
}

func writeCSV(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// execute runs a subcommand's RunE with a fresh context and captured output.
func execute(t *testing.T, cmd *cobra.Command) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetContext(context.Background())
	t.Cleanup(func() {
		cmd.SetOut(nil)
		cmd.SetContext(context.TODO())
	})
	err := cmd.RunE(cmd, nil)
	return out.String(), err
}

func TestUpdateStoresCmd_InvalidDriver(t *testing.T) {
	cfg = sqliteConfig(t)
	cfg.Store.Driver = "cassandra"

	_, err := execute(t, updateStoresCmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not supported")
}

func TestEnrichCmd_MissingToken(t *testing.T) {
	cfg = sqliteConfig(t)
	cfg.FullContact.Token = ""
	cfg.FullContact.Endpoint = "http://localhost"

	_, err := execute(t, enrichCmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ENRICH_FULLCONTACT_TOKEN")
}

func TestEnrichCmd_InvalidRange(t *testing.T) {
	cfg = sqliteConfig(t)
	cfg.FullContact.Endpoint = "http://localhost"
	enrichStart, enrichEnd = 5, 2
	t.Cleanup(func() { enrichStart, enrichEnd = 1, 0 })

	_, err := execute(t, enrichCmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid range")
}

func TestUpdateStoresCmd_MissingInput(t *testing.T) {
	cfg = sqliteConfig(t)

	_, err := execute(t, updateStoresCmd)
	require.Error(t, err)
	assert.Equal(t, model.KindIngest, model.KindOf(err))
}

// seedSQLite inserts bare customer records into cfg's SQLite database.
func seedSQLite(t *testing.T, emails ...string) {
	t.Helper()
	recs := make([]model.StoredRecord, 0, len(emails))
	for _, e := range emails {
		recs = append(recs, model.StoredRecord{Email: e})
	}
	seedTable(t, cfg.Store.Collection, recs...)
}

// seedTable migrates table in cfg's SQLite database and inserts recs.
func seedTable(t *testing.T, table string, recs ...model.StoredRecord) {
	t.Helper()
	ctx := context.Background()
	st, err := store.NewSQLite(cfg.Store.URI, table)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	require.NoError(t, st.Migrate(ctx))
	for _, rec := range recs {
		require.NoError(t, st.Insert(ctx, rec))
	}
}

func enriched(email, storeID, gender, region string) model.StoredRecord {
	return model.StoredRecord{Email: email, ExternalStoreID: storeID, Data: map[string]any{
		"gender":  gender,
		"details": map[string]any{"locations": []any{map[string]any{"city": "Austin", "region": region}}},
	}}
}

func TestReportProfileCmd(t *testing.T) {
	cfg = sqliteConfig(t)
	seedTable(t, "customers",
		enriched("ann@x.com", "S1", "Female", "Texas"),
		enriched("bob@x.com", "S1", "M", "Texas"),
		enriched("cy@x.com", "S2", "F", "Ohio"),
	)

	profileFormat, profileStoreID = "json", "S1"
	t.Cleanup(func() { profileFormat, profileStoreID = "text", "" })

	out, err := execute(t, reportProfileCmd)
	require.NoError(t, err)
	var p report.Profile
	require.NoError(t, json.Unmarshal([]byte(out), &p))
	assert.Equal(t, "S1", p.Scope)
	assert.Equal(t, int64(2), p.Total)

	region := p.Section(report.SectionRegion)
	require.NotNil(t, region)
	require.Len(t, region.Buckets, 1)
	assert.Equal(t, report.Bucket{Value: "Texas", Count: 2, Pct: 100}, region.Buckets[0])

	gender := p.Section(report.SectionGender)
	require.NotNil(t, gender)
	assert.Equal(t, 2, gender.Distinct)
}

func TestReportCompareCmd(t *testing.T) {
	cfg = sqliteConfig(t)
	seedTable(t, "customers",
		enriched("ann@x.com", "S1", "Female", "Texas"),
		enriched("bob@x.com", "S1", "Male", "Texas"),
	)
	seedTable(t, "archive",
		enriched("ann@x.com", "S1", "Female", "Texas"),
		enriched("dee@x.com", "S1", "Female", "Texas"),
	)

	compareFormat, compareAgainst = "json", "archive"
	t.Cleanup(func() { compareFormat, compareAgainst = "text", "" })

	out, err := execute(t, reportCompareCmd)
	require.NoError(t, err)
	var c report.Comparison
	require.NoError(t, json.Unmarshal([]byte(out), &c))
	assert.Equal(t, "customers", c.Left)
	assert.Equal(t, "archive", c.Right)
	assert.Equal(t, 1, c.Both)
	assert.Equal(t, 1, c.OnlyLeft)
	assert.Equal(t, 1, c.OnlyRight)

	metrics := make([]string, 0, len(c.Anomalies))
	for _, a := range c.Anomalies {
		metrics = append(metrics, a.Metric)
	}
	assert.Contains(t, metrics, "Gender (Female)")
	assert.Contains(t, metrics, "Gender (Male)")
	assert.NotContains(t, metrics, "Record count")
}

func TestReportCompareCmd_MissingAgainst(t *testing.T) {
	cfg = sqliteConfig(t)

	_, err := execute(t, reportCompareCmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--against is required")
}

func TestUpdateStoresCmd_Report(t *testing.T) {
	cfg = sqliteConfig(t)
	seedSQLite(t, "ann@x.com", "cy@x.com")
	writeCSV(t, cfg.Batch.InputPath, "customer_email,external_store_id,name\nAnn@x.com,S1,Acme\n")

	updateFormat, updateReport = "json", true
	t.Cleanup(func() { updateFormat, updateReport = "text", false })

	out, err := execute(t, updateStoresCmd)
	require.NoError(t, err)

	dec := json.NewDecoder(strings.NewReader(out))
	var bs model.BatchStats
	require.NoError(t, dec.Decode(&bs))
	assert.Equal(t, 1, bs.Updated)

	var summary report.Summary
	require.NoError(t, dec.Decode(&summary))
	assert.Equal(t, int64(2), summary.Total)
	assert.Equal(t, int64(1), summary.WithBoth)
	assert.InDelta(t, 50.0, summary.Coverage, 1e-9)
	require.Len(t, summary.TopStores, 1)
	assert.Equal(t, "Acme", summary.TopStores[0].StoreName)
}

func TestUpdateStoresCmd_ReportText(t *testing.T) {
	cfg = sqliteConfig(t)
	seedSQLite(t, "ann@x.com")
	writeCSV(t, cfg.Batch.InputPath, "customer_email,external_store_id,name\nann@x.com,S1,Acme\n")

	out, err := execute(t, updateStoresCmd)
	require.NoError(t, err)
	assert.NotContains(t, out, "Store info report")

	updateReport = true
	t.Cleanup(func() { updateReport = false })

	out, err = execute(t, updateStoresCmd)
	require.NoError(t, err)
	assert.Contains(t, out, "Store info report")
	assert.Contains(t, out, "Acme")
}

func TestReportCmd_UnknownFormat(t *testing.T) {
	cfg = sqliteConfig(t)
	reportFormat = "xml"
	t.Cleanup(func() { reportFormat = "text" })

	_, err := execute(t, reportCmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown format")
}

func TestJobs_SQLiteEndToEnd(t *testing.T) {
	var calls []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		var body struct {
			Email      string   `json:"email"`
			DataFilter []string `json:"dataFilter"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []string{"individual"}, body.DataFilter)
		calls = append(calls, body.Email)

		if strings.HasPrefix(body.Email, "unknown") {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"status":404,"message":"Profile not found"}`))
			return
		}
		_, _ = w.Write([]byte(`{"fullName":"Test Person","details":{"locations":[{"city":"Austin"}]}}`))
	}))
	defer srv.Close()

	cfg = sqliteConfig(t)
	cfg.FullContact.Endpoint = srv.URL
	writeCSV(t, cfg.Batch.InputPath, "customer_email,external_store_id,name\n"+
		"Ann@X.com,S1,Acme\n"+
		"bob@x.com,,Beta\n"+
		"unknown@x.com,S2,Gamma\n"+
		",S3,Delta\n")

	_, err := execute(t, migrateCmd)
	require.NoError(t, err)

	// enrich rows 1..400 of a 4-row file without waiting between calls
	enrichDelay, enrichEnd, enrichFormat = 0, 400, "json"
	require.NoError(t, enrichCmd.Flags().Set("delay", "0s"))
	t.Cleanup(func() {
		enrichDelay, enrichEnd, enrichFormat = 0, 0, "text"
		_ = enrichCmd.Flags().Set("delay", "1s")
		enrichCmd.Flags().Lookup("delay").Changed = false
	})

	out, err := execute(t, enrichCmd)
	require.NoError(t, err)
	var es model.EnrichStats
	require.NoError(t, json.Unmarshal([]byte(out), &es))
	assert.Equal(t, 4, es.InRange)
	assert.Equal(t, 2, es.Inserted)
	assert.Equal(t, 2, es.Errors)
	assert.Equal(t, 1, es.ErrorsByKind[model.KindExternalCall])
	assert.Equal(t, 1, es.ErrorsByKind[model.KindValidation])
	assert.Equal(t, []string{"ann@x.com", "bob@x.com", "unknown@x.com"}, calls)

	updateFormat = "json"
	t.Cleanup(func() { updateFormat = "text" })

	out, err = execute(t, updateStoresCmd)
	require.NoError(t, err)
	var bs model.BatchStats
	require.NoError(t, json.Unmarshal([]byte(out), &bs))
	assert.Equal(t, 4, bs.TotalProcessed)
	assert.Equal(t, 2, bs.Updated)
	assert.Equal(t, 1, bs.NotFound)
	assert.Equal(t, 1, bs.Errors)

	// second run changes nothing
	out, err = execute(t, updateStoresCmd)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &bs))
	assert.Equal(t, 0, bs.Updated)
	assert.Equal(t, 2, bs.Unchanged)

	reportFormat = "json"
	t.Cleanup(func() { reportFormat = "text" })

	out, err = execute(t, reportCmd)
	require.NoError(t, err)
	var summary report.Summary
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, int64(2), summary.Total)
	assert.Equal(t, int64(1), summary.WithStoreID)
	assert.Equal(t, int64(2), summary.WithStoreName)
	assert.Equal(t, int64(1), summary.WithBoth)
	assert.InDelta(t, 50.0, summary.Coverage, 1e-9)
	require.Len(t, summary.TopStores, 2)
	assert.Equal(t, "Acme", summary.TopStores[0].StoreName)

	exportOutput = filepath.Join(t.TempDir(), "export.csv")
	t.Cleanup(func() { exportOutput = "-" })

	_, err = execute(t, exportCmd)
	require.NoError(t, err)
	data, err := os.ReadFile(exportOutput)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "email,external_store_id,store_name,data.details.locations[0].city,data.fullName"))
	assert.Contains(t, lines[1], "ann@x.com,S1,Acme,Austin,Test Person")
}
