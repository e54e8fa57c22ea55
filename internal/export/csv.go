package export

import (
	"encoding/csv"
	"io"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/enrich-cli/internal/model"
)

var fixedColumns = []string{"email", "external_store_id", "store_name"}

// WriteCSV writes one row per record. The header is the fixed identity
// columns followed by the sorted union of every record's flattened keys;
// cells a record has no value for are left empty.
func WriteCSV(w io.Writer, records []model.StoredRecord) error {
	flat := make([]map[string]any, len(records))
	keys := make(map[string]struct{})
	for i, rec := range records {
		flat[i] = Flatten(rec)
		for k := range flat[i] {
			keys[k] = struct{}{}
		}
	}
	dynamic := make([]string, 0, len(keys))
	for k := range keys {
		dynamic = append(dynamic, k)
	}
	sort.Strings(dynamic)

	cw := csv.NewWriter(w)
	header := append(append([]string{}, fixedColumns...), dynamic...)
	if err := cw.Write(header); err != nil {
		return eris.Wrap(err, "export: write header")
	}

	row := make([]string, len(header))
	for i, rec := range records {
		row[0], row[1], row[2] = rec.Email, rec.ExternalStoreID, rec.StoreName
		for j, k := range dynamic {
			row[len(fixedColumns)+j] = FormatValue(flat[i][k])
		}
		if err := cw.Write(row); err != nil {
			return eris.Wrapf(err, "export: write row %s", rec.Email)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush")
}
