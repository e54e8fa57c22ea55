package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"

	"github.com/sells-group/enrich-cli/internal/db"
	"github.com/sells-group/enrich-cli/internal/model"
)

// PostgresStore implements Store on a PostgreSQL table with a JSONB payload.
type PostgresStore struct {
	pool    db.Pool
	table   string
	sql     sqlGen
	closeFn func()
	now     func() time.Time
}

var _ Store = (*PostgresStore)(nil)

// NewPostgres connects to PostgreSQL and returns a store over the given table.
func NewPostgres(ctx context.Context, connString, table string, poolCfg *db.PoolConfig) (*PostgresStore, error) {
	if err := validateIdent(table); err != nil {
		return nil, err
	}
	pool, err := db.NewPool(ctx, connString, poolCfg)
	if err != nil {
		return nil, model.NewJobError(model.KindConnection, "connect postgres", err)
	}
	s := newPostgresStore(pool, table)
	s.closeFn = pool.Close
	return s, nil
}

func newPostgresStore(pool db.Pool, table string) *PostgresStore {
	return &PostgresStore{
		pool:  pool,
		table: table,
		sql:   newSQLGen("postgres", table, colSeq),
		now:   time.Now,
	}
}

func pgTime(t time.Time) any { return t.UTC() }

const postgresMigration = `
CREATE TABLE IF NOT EXISTS %[1]s (
	id                    TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	email                 TEXT NOT NULL UNIQUE,
	data                  JSONB,
	external_store_id     TEXT,
	store_name            TEXT,
	store_info_updated_at TIMESTAMPTZ,
	processed_at          TIMESTAMPTZ,
	created_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
	seq                   BIGINT GENERATED ALWAYS AS IDENTITY
);

ALTER TABLE %[1]s ADD COLUMN IF NOT EXISTS seq BIGINT GENERATED ALWAYS AS IDENTITY;

CREATE INDEX IF NOT EXISTS %[2]s ON %[1]s(external_store_id);
CREATE INDEX IF NOT EXISTS %[3]s ON %[1]s(store_name, external_store_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	ddl := fmt.Sprintf(postgresMigration,
		pgx.Identifier{s.table}.Sanitize(),
		pgx.Identifier{"idx_" + s.table + "_external_store_id"}.Sanitize(),
		pgx.Identifier{"idx_" + s.table + "_store"}.Sanitize(),
	)
	_, err := s.pool.Exec(ctx, ddl)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*model.StoredRecord, error) {
	q, err := s.sql.findByEmail(email)
	if err != nil {
		return nil, eris.Wrap(err, "postgres")
	}
	rec, err := scanPGRecord(s.pool.QueryRow(ctx, q))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: find %s", email)
	}
	return rec, nil
}

func (s *PostgresStore) Count(ctx context.Context, f Filter) (int64, error) {
	q, err := s.sql.count(f)
	if err != nil {
		return 0, eris.Wrap(err, "postgres")
	}
	var n int64
	if err := s.pool.QueryRow(ctx, q).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "postgres: count")
	}
	return n, nil
}

func (s *PostgresStore) Find(ctx context.Context, f Filter, limit int) ([]model.StoredRecord, error) {
	q, err := s.sql.find(f, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres")
	}
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: find")
	}
	defer rows.Close()

	var recs []model.StoredRecord
	for rows.Next() {
		rec, err := scanPGRecord(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: find scan")
		}
		recs = append(recs, *rec)
	}
	return recs, eris.Wrap(rows.Err(), "postgres: find iterate")
}

func (s *PostgresStore) TopStores(ctx context.Context, f Filter, limit int) ([]model.StoreCount, error) {
	q, err := s.sql.topStores(f, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres")
	}
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: top stores")
	}
	defer rows.Close()

	var out []model.StoreCount
	for rows.Next() {
		var (
			sc      model.StoreCount
			storeID *string
		)
		if err := rows.Scan(&sc.StoreName, &storeID, &sc.Customers); err != nil {
			return nil, eris.Wrap(err, "postgres: top stores scan")
		}
		if storeID != nil {
			sc.ExternalStoreID = *storeID
		}
		out = append(out, sc)
	}
	return out, eris.Wrap(rows.Err(), "postgres: top stores iterate")
}

func (s *PostgresStore) UpdateStoreInfo(ctx context.Context, email string, patch model.StoreInfoPatch) error {
	q, err := s.sql.updateStoreInfo(email, patch, pgTime)
	if err != nil {
		return eris.Wrap(err, "postgres")
	}
	if _, err := s.pool.Exec(ctx, q); err != nil {
		return eris.Wrapf(err, "postgres: update store info %s", email)
	}
	return nil
}

func (s *PostgresStore) Insert(ctx context.Context, rec model.StoredRecord) error {
	q, err := s.sql.insert(rec, s.now(), pgTime)
	if err != nil {
		return eris.Wrap(err, "postgres")
	}
	if _, err := s.pool.Exec(ctx, q); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return eris.Wrapf(ErrDuplicate, "postgres: insert %s", rec.Email)
		}
		return eris.Wrapf(err, "postgres: insert %s", rec.Email)
	}
	return nil
}

func scanPGRecord(row pgx.Row) (*model.StoredRecord, error) {
	var (
		rec                model.StoredRecord
		data               []byte
		storeID, storeName *string
		updatedAt, procAt  *time.Time
	)
	if err := row.Scan(&rec.Email, &data, &storeID, &storeName, &updatedAt, &procAt); err != nil {
		return nil, err
	}

	payload, err := decodeData(data)
	if err != nil {
		return nil, err
	}
	rec.Data = payload
	if storeID != nil {
		rec.ExternalStoreID = *storeID
	}
	if storeName != nil {
		rec.StoreName = *storeName
	}
	rec.StoreInfoUpdatedAt = updatedAt
	rec.ProcessedAt = procAt
	return &rec, nil
}
