// Package export writes stored customer records as flat CSV rows.
package export

import (
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/sells-group/enrich-cli/internal/model"
)

// Flatten expands the record's payload into dotted keys rooted at "data",
// with [i] for array elements, e.g. data.details.locations[0].city. Null
// leaves are kept with a nil value; empty objects and arrays produce no keys.
// Timestamps are added as processed_at and store_info_updated_at.
func Flatten(rec model.StoredRecord) map[string]any {
	out := make(map[string]any)
	if rec.Data != nil {
		flattenValue("data", rec.Data, out)
	}
	if rec.ProcessedAt != nil {
		out["processed_at"] = *rec.ProcessedAt
	}
	if rec.StoreInfoUpdatedAt != nil {
		out["store_info_updated_at"] = *rec.StoreInfoUpdatedAt
	}
	return out
}

// flattenValue walks maps and slices by reflection so that both
// encoding/json (map[string]any, []any) and BSON (bson.M, bson.A) payloads
// are handled.
func flattenValue(prefix string, v any, out map[string]any) {
	if v == nil {
		out[prefix] = nil
		return
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			out[prefix] = v
			return
		}
		iter := rv.MapRange()
		for iter.Next() {
			flattenValue(prefix+"."+iter.Key().String(), iter.Value().Interface(), out)
		}
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			out[prefix] = v
			return
		}
		for i := 0; i < rv.Len(); i++ {
			flattenValue(fmt.Sprintf("%s[%d]", prefix, i), rv.Index(i).Interface(), out)
		}
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			out[prefix] = nil
			return
		}
		flattenValue(prefix, rv.Elem().Interface(), out)
	default:
		out[prefix] = v
	}
}

// FormatValue renders a flattened leaf as text, as written to a CSV cell.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case time.Time:
		return x.UTC().Format(time.RFC3339)
	case []byte:
		return string(x)
	case interface{ Time() time.Time }: // bson DateTime
		return x.Time().UTC().Format(time.RFC3339)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}
