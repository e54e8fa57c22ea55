package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/enrich-cli/internal/model"
)

// sqliteTimeFormat is fixed width so TEXT ordering matches time ordering.
const sqliteTimeFormat = "2006-01-02 15:04:05.000000000"

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db    *sql.DB
	table string
	sql   sqlGen
	now   func() time.Time
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn, table string) (*SQLiteStore, error) {
	if err := validateIdent(table); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, model.NewJobError(model.KindConnection, "open sqlite", err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, model.NewJobError(model.KindConnection, "open sqlite", eris.Wrapf(err, "sqlite: exec %s", pragma))
		}
	}
	return &SQLiteStore{
		db:    db,
		table: table,
		sql:   newSQLGen("sqlite3", table, colRowID),
		now:   time.Now,
	}, nil
}

func sqliteTime(t time.Time) any { return t.UTC().Format(sqliteTimeFormat) }

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS %[1]s (
	id                    TEXT PRIMARY KEY,
	email                 TEXT NOT NULL UNIQUE,
	data                  TEXT,
	external_store_id     TEXT,
	store_name            TEXT,
	store_info_updated_at TEXT,
	processed_at          TEXT,
	created_at            TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_%[1]s_external_store_id ON %[1]s(external_store_id);
CREATE INDEX IF NOT EXISTS idx_%[1]s_store ON %[1]s(store_name, external_store_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(sqliteMigration, s.table))
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) FindByEmail(ctx context.Context, email string) (*model.StoredRecord, error) {
	q, err := s.sql.findByEmail(email)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite")
	}
	rec, err := scanSQLiteRecord(s.db.QueryRowContext(ctx, q))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: find %s", email)
	}
	return rec, nil
}

func (s *SQLiteStore) Count(ctx context.Context, f Filter) (int64, error) {
	q, err := s.sql.count(f)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite")
	}
	var n int64
	if err := s.db.QueryRowContext(ctx, q).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "sqlite: count")
	}
	return n, nil
}

func (s *SQLiteStore) Find(ctx context.Context, f Filter, limit int) ([]model.StoredRecord, error) {
	q, err := s.sql.find(f, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite")
	}
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find")
	}
	defer rows.Close()

	var recs []model.StoredRecord
	for rows.Next() {
		rec, err := scanSQLiteRecord(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: find scan")
		}
		recs = append(recs, *rec)
	}
	return recs, eris.Wrap(rows.Err(), "sqlite: find iterate")
}

func (s *SQLiteStore) TopStores(ctx context.Context, f Filter, limit int) ([]model.StoreCount, error) {
	q, err := s.sql.topStores(f, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite")
	}
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: top stores")
	}
	defer rows.Close()

	var out []model.StoreCount
	for rows.Next() {
		var (
			sc      model.StoreCount
			storeID sql.NullString
		)
		if err := rows.Scan(&sc.StoreName, &storeID, &sc.Customers); err != nil {
			return nil, eris.Wrap(err, "sqlite: top stores scan")
		}
		sc.ExternalStoreID = storeID.String
		out = append(out, sc)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: top stores iterate")
}

func (s *SQLiteStore) UpdateStoreInfo(ctx context.Context, email string, patch model.StoreInfoPatch) error {
	q, err := s.sql.updateStoreInfo(email, patch, sqliteTime)
	if err != nil {
		return eris.Wrap(err, "sqlite")
	}
	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return eris.Wrapf(err, "sqlite: update store info %s", email)
	}
	return nil
}

func (s *SQLiteStore) Insert(ctx context.Context, rec model.StoredRecord) error {
	q, err := s.sql.insert(rec, s.now(), sqliteTime)
	if err != nil {
		return eris.Wrap(err, "sqlite")
	}
	if _, err := s.db.ExecContext(ctx, q); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return eris.Wrapf(ErrDuplicate, "sqlite: insert %s", rec.Email)
		}
		return eris.Wrapf(err, "sqlite: insert %s", rec.Email)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteRecord(row rowScanner) (*model.StoredRecord, error) {
	var (
		rec                model.StoredRecord
		data               sql.NullString
		storeID, storeName sql.NullString
		updatedAt, procAt  sql.NullString
	)
	if err := row.Scan(&rec.Email, &data, &storeID, &storeName, &updatedAt, &procAt); err != nil {
		return nil, err
	}

	payload, err := decodeData([]byte(data.String))
	if err != nil {
		return nil, err
	}
	rec.Data = payload
	rec.ExternalStoreID = storeID.String
	rec.StoreName = storeName.String
	if rec.StoreInfoUpdatedAt, err = parseSQLiteTime(updatedAt); err != nil {
		return nil, err
	}
	if rec.ProcessedAt, err = parseSQLiteTime(procAt); err != nil {
		return nil, err
	}
	return &rec, nil
}

func parseSQLiteTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := time.Parse(sqliteTimeFormat, ns.String)
	if err != nil {
		return nil, eris.Wrapf(err, "parse time %q", ns.String)
	}
	return &t, nil
}
