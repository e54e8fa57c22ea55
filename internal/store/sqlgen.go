package store

import (
	"encoding/json"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/enrich-cli/internal/model"
)

const (
	colID                 = "id"
	colEmail              = "email"
	colData               = "data"
	colExternalStoreID    = "external_store_id"
	colStoreName          = "store_name"
	colStoreInfoUpdatedAt = "store_info_updated_at"
	colProcessedAt        = "processed_at"
	colCreatedAt          = "created_at"

	colSeq   = "seq"   // postgres identity column
	colRowID = "rowid" // sqlite implicit row id
)

var recordColumns = []any{colEmail, colData, colExternalStoreID, colStoreName, colStoreInfoUpdatedAt, colProcessedAt}

// sqlGen renders customer queries for one goqu dialect. Values are
// interpolated by goqu, which escapes string literals per dialect.
// tiebreak names a column that grows with insertion order; it orders rows
// sharing a created_at value.
type sqlGen struct {
	dialect  goqu.DialectWrapper
	table    exp.IdentifierExpression
	tiebreak string
}

func newSQLGen(dialect, table, tiebreak string) sqlGen {
	return sqlGen{dialect: goqu.Dialect(dialect), table: goqu.T(table), tiebreak: tiebreak}
}

func present(col string) exp.Expression {
	return goqu.And(goqu.C(col).IsNotNull(), goqu.C(col).Neq(""))
}

func missing(col string) exp.Expression {
	return goqu.Or(goqu.C(col).IsNull(), goqu.C(col).Eq(""))
}

func (f Filter) sqlExprs() []exp.Expression {
	var exprs []exp.Expression
	if f.WithStoreID {
		exprs = append(exprs, present(colExternalStoreID))
	}
	if f.WithStoreName {
		exprs = append(exprs, present(colStoreName))
	}
	if f.MissingStoreInfo {
		exprs = append(exprs, goqu.Or(missing(colExternalStoreID), missing(colStoreName)))
	}
	if f.ExternalStoreID != "" {
		exprs = append(exprs, goqu.C(colExternalStoreID).Eq(f.ExternalStoreID))
	}
	return exprs
}

func (g sqlGen) findByEmail(email string) (string, error) {
	q, _, err := g.dialect.From(g.table).
		Select(recordColumns...).
		Where(goqu.C(colEmail).Eq(email)).
		Limit(1).
		ToSQL()
	return q, eris.Wrap(err, "build find by email")
}

func (g sqlGen) count(f Filter) (string, error) {
	q, _, err := g.dialect.From(g.table).
		Select(goqu.COUNT(goqu.Star())).
		Where(f.sqlExprs()...).
		ToSQL()
	return q, eris.Wrap(err, "build count")
}

func (g sqlGen) find(f Filter, limit int) (string, error) {
	ds := g.dialect.From(g.table).
		Select(recordColumns...).
		Where(f.sqlExprs()...).
		Order(goqu.C(colCreatedAt).Asc(), goqu.C(g.tiebreak).Asc())
	if limit > 0 {
		ds = ds.Limit(uint(limit))
	}
	q, _, err := ds.ToSQL()
	return q, eris.Wrap(err, "build find")
}

func (g sqlGen) topStores(f Filter, limit int) (string, error) {
	exprs := append([]exp.Expression{present(colStoreName)}, f.sqlExprs()...)
	ds := g.dialect.From(g.table).
		Select(goqu.C(colStoreName), goqu.C(colExternalStoreID), goqu.COUNT(goqu.Star()).As("customers")).
		Where(exprs...).
		GroupBy(goqu.C(colStoreName), goqu.C(colExternalStoreID)).
		Order(goqu.I("customers").Desc(), goqu.C(colStoreName).Asc())
	if limit > 0 {
		ds = ds.Limit(uint(limit))
	}
	q, _, err := ds.ToSQL()
	return q, eris.Wrap(err, "build top stores")
}

// updateStoreInfo sets only the fields carried by the patch.
func (g sqlGen) updateStoreInfo(email string, patch model.StoreInfoPatch, ts func(time.Time) any) (string, error) {
	set := goqu.Record{colStoreInfoUpdatedAt: ts(patch.UpdatedAt)}
	if patch.ExternalStoreID != nil {
		set[colExternalStoreID] = *patch.ExternalStoreID
	}
	if patch.StoreName != nil {
		set[colStoreName] = *patch.StoreName
	}
	q, _, err := g.dialect.Update(g.table).
		Set(set).
		Where(goqu.C(colEmail).Eq(email)).
		ToSQL()
	return q, eris.Wrap(err, "build update store info")
}

func (g sqlGen) insert(rec model.StoredRecord, now time.Time, ts func(time.Time) any) (string, error) {
	row := goqu.Record{
		colID:        uuid.New().String(),
		colEmail:     rec.Email,
		colCreatedAt: ts(now),
	}
	if rec.Data != nil {
		data, err := json.Marshal(rec.Data)
		if err != nil {
			return "", eris.Wrap(err, "marshal data")
		}
		row[colData] = string(data)
	}
	if rec.ExternalStoreID != "" {
		row[colExternalStoreID] = rec.ExternalStoreID
	}
	if rec.StoreName != "" {
		row[colStoreName] = rec.StoreName
	}
	if rec.StoreInfoUpdatedAt != nil {
		row[colStoreInfoUpdatedAt] = ts(*rec.StoreInfoUpdatedAt)
	}
	if rec.ProcessedAt != nil {
		row[colProcessedAt] = ts(*rec.ProcessedAt)
	}
	q, _, err := g.dialect.Insert(g.table).Rows(row).ToSQL()
	return q, eris.Wrap(err, "build insert")
}

func decodeData(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, eris.Wrap(err, "unmarshal data")
	}
	return data, nil
}
