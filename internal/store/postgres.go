package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/bom-enrich/internal/db"
	"github.com/sells-group/bom-enrich/internal/model"
)

// PostgresCatalog implements Catalog using pgxpool.
type PostgresCatalog struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresCatalog with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresCatalog, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresCatalog{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool; used by tests.
func NewPostgresWithPool(pool db.Pool) *PostgresCatalog {
	return &PostgresCatalog{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS components (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	mpn           TEXT NOT NULL,
	manufacturer  TEXT NOT NULL DEFAULT '',
	category      TEXT NOT NULL DEFAULT '',
	description   TEXT NOT NULL DEFAULT '',
	quality_score INTEGER NOT NULL DEFAULT 0,
	source        TEXT NOT NULL DEFAULT '',
	result        JSONB,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (mpn, manufacturer)
);

CREATE INDEX IF NOT EXISTS idx_components_mpn ON components(mpn);
CREATE INDEX IF NOT EXISTS idx_components_updated_at ON components(updated_at);
`

func (s *PostgresCatalog) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresCatalog) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// SaveResult upserts the catalog record for the result's mpn+manufacturer
// key and returns the row's id (pre-existing rows keep theirs).
func (s *PostgresCatalog) SaveResult(ctx context.Context, result *model.PipelineResult) (string, error) {
	rec := RecordFromResult(result)
	doc, err := json.Marshal(result)
	if err != nil {
		return "", eris.Wrap(err, "postgres: marshal result")
	}

	var id string
	err = s.pool.QueryRow(ctx, `
		INSERT INTO components (mpn, manufacturer, category, description, quality_score, source, result)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (mpn, manufacturer) DO UPDATE SET
			category = EXCLUDED.category,
			description = EXCLUDED.description,
			quality_score = EXCLUDED.quality_score,
			source = EXCLUDED.source,
			result = EXCLUDED.result,
			updated_at = now()
		RETURNING id`,
		rec.MPN, rec.Manufacturer, rec.Category, rec.Description,
		rec.QualityScore, rec.Source, doc,
	).Scan(&id)
	if err != nil {
		return "", eris.Wrap(err, "postgres: upsert component")
	}
	return id, nil
}

func (s *PostgresCatalog) GetComponent(ctx context.Context, id string) (*model.ComponentRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, mpn, manufacturer, category, description, quality_score, source, created_at, updated_at
		FROM components WHERE id = $1`, id)
	return scanPgComponent(row)
}

func (s *PostgresCatalog) GetByPart(ctx context.Context, mpn, manufacturer string) (*model.ComponentRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, mpn, manufacturer, category, description, quality_score, source, created_at, updated_at
		FROM components WHERE mpn = $1 AND manufacturer = $2`, mpn, manufacturer)
	return scanPgComponent(row)
}

func (s *PostgresCatalog) ListComponents(ctx context.Context, limit, offset int) ([]model.ComponentRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, mpn, manufacturer, category, description, quality_score, source, created_at, updated_at
		FROM components ORDER BY updated_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list components")
	}
	defer rows.Close()

	var out []model.ComponentRecord
	for rows.Next() {
		var rec model.ComponentRecord
		if err := rows.Scan(&rec.ID, &rec.MPN, &rec.Manufacturer, &rec.Category, &rec.Description,
			&rec.QualityScore, &rec.Source, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan component")
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate components")
}

func scanPgComponent(row pgx.Row) (*model.ComponentRecord, error) {
	var rec model.ComponentRecord
	err := row.Scan(&rec.ID, &rec.MPN, &rec.Manufacturer, &rec.Category, &rec.Description,
		&rec.QualityScore, &rec.Source, &rec.CreatedAt, &rec.UpdatedAt)
	if eris.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan component")
	}
	return &rec, nil
}
