// Package ingest reads customer CSV files into memory.
package ingest

import (
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"

	"github.com/sells-group/enrich-cli/internal/model"
)

// Options configures CSV decoding.
type Options struct {
	Delimiter rune // default ','
}

// ReadCustomers reads a comma-delimited customer CSV with a header row.
func ReadCustomers(path string) ([]model.InputRecord, error) {
	return ReadCustomersWith(path, Options{})
}

// ReadCustomersWith reads a customer CSV at path. Recognized columns are
// customer_email, external_store_id and name; others are ignored. Any
// failure is returned as an ingest JobError.
func ReadCustomersWith(path string, opts Options) ([]model.InputRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, model.NewJobError(model.KindIngest, "open csv", eris.Wrapf(err, "ingest: open %s", path))
	}
	defer f.Close() //nolint:errcheck

	records, err := Decode(f, opts)
	if err != nil {
		return nil, model.NewJobError(model.KindIngest, "parse csv", eris.Wrapf(err, "ingest: parse %s", path))
	}
	return records, nil
}

// Decode reads all customer rows from r. Positions are 1-based in row order.
// Rows shorter than the header are padded with empty cells and extra cells
// are dropped; quoting errors still fail the read.
func Decode(r io.Reader, opts Options) ([]model.InputRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}

	header, err := reader.Read()
	if err == io.EOF {
		return nil, eris.New("ingest: missing header row")
	}
	if err != nil {
		return nil, eris.Wrap(err, "ingest: read header")
	}
	for i, col := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(col, "\ufeff"))
	}

	dec, err := csvutil.NewDecoder(&fittedReader{r: reader, width: len(header)}, header...)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: init decoder")
	}

	var records []model.InputRecord
	for {
		var rec model.InputRecord
		if err := dec.Decode(&rec); err == io.EOF {
			break
		} else if err != nil {
			return nil, eris.Wrapf(err, "ingest: decode row %d", len(records)+1)
		}

		rec.Position = len(records) + 1
		rec.Email = strings.TrimSpace(rec.Email)
		rec.ExternalStoreID = strings.TrimSpace(rec.ExternalStoreID)
		rec.StoreName = strings.TrimSpace(rec.StoreName)
		records = append(records, rec)
	}

	return records, nil
}

// fittedReader sizes every row to the header width.
type fittedReader struct {
	r     *csv.Reader
	width int
}

func (f *fittedReader) Read() ([]string, error) {
	row, err := f.r.Read()
	if err != nil {
		return nil, err
	}
	switch {
	case len(row) > f.width:
		row = row[:f.width]
	case len(row) < f.width:
		row = append(row, make([]string, f.width-len(row))...)
	}
	return row, nil
}
