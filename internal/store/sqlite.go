package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/bom-enrich/internal/model"
)

// SQLiteCatalog implements Catalog using modernc.org/sqlite. Suitable for
// single-process deployments and local runs.
type SQLiteCatalog struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteCatalog, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteCatalog{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS components (
	id            TEXT PRIMARY KEY,
	mpn           TEXT NOT NULL,
	manufacturer  TEXT NOT NULL DEFAULT '',
	category      TEXT NOT NULL DEFAULT '',
	description   TEXT NOT NULL DEFAULT '',
	quality_score INTEGER NOT NULL DEFAULT 0,
	source        TEXT NOT NULL DEFAULT '',
	result        TEXT,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (mpn, manufacturer)
);

CREATE INDEX IF NOT EXISTS idx_components_mpn ON components(mpn);
CREATE INDEX IF NOT EXISTS idx_components_updated_at ON components(updated_at);
`

func (s *SQLiteCatalog) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteCatalog) Close() error {
	return s.db.Close()
}

// SaveResult upserts the catalog record for the result's mpn+manufacturer
// key and stores the full result document alongside it.
func (s *SQLiteCatalog) SaveResult(ctx context.Context, result *model.PipelineResult) (string, error) {
	rec := RecordFromResult(result)
	doc, err := json.Marshal(result)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: marshal result")
	}

	now := time.Now().UTC()
	id := uuid.NewString()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO components (id, mpn, manufacturer, category, description, quality_score, source, result, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (mpn, manufacturer) DO UPDATE SET
			category = excluded.category,
			description = excluded.description,
			quality_score = excluded.quality_score,
			source = excluded.source,
			result = excluded.result,
			updated_at = excluded.updated_at`,
		id, rec.MPN, rec.Manufacturer, rec.Category, rec.Description,
		rec.QualityScore, rec.Source, string(doc), now, now,
	)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: upsert component")
	}

	// The upsert may have kept a pre-existing row's id.
	var storedID string
	err = s.db.QueryRowContext(ctx,
		`SELECT id FROM components WHERE mpn = ? AND manufacturer = ?`,
		rec.MPN, rec.Manufacturer,
	).Scan(&storedID)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: read component id")
	}
	return storedID, nil
}

func (s *SQLiteCatalog) GetComponent(ctx context.Context, id string) (*model.ComponentRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, mpn, manufacturer, category, description, quality_score, source, created_at, updated_at
		FROM components WHERE id = ?`, id)
	return scanComponent(row)
}

func (s *SQLiteCatalog) GetByPart(ctx context.Context, mpn, manufacturer string) (*model.ComponentRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, mpn, manufacturer, category, description, quality_score, source, created_at, updated_at
		FROM components WHERE mpn = ? AND manufacturer = ?`, mpn, manufacturer)
	return scanComponent(row)
}

func (s *SQLiteCatalog) ListComponents(ctx context.Context, limit, offset int) ([]model.ComponentRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, mpn, manufacturer, category, description, quality_score, source, created_at, updated_at
		FROM components ORDER BY updated_at DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list components")
	}
	defer rows.Close()

	var out []model.ComponentRecord
	for rows.Next() {
		var rec model.ComponentRecord
		if err := rows.Scan(&rec.ID, &rec.MPN, &rec.Manufacturer, &rec.Category, &rec.Description,
			&rec.QualityScore, &rec.Source, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan component")
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate components")
}

func scanComponent(row *sql.Row) (*model.ComponentRecord, error) {
	var rec model.ComponentRecord
	err := row.Scan(&rec.ID, &rec.MPN, &rec.Manufacturer, &rec.Category, &rec.Description,
		&rec.QualityScore, &rec.Source, &rec.CreatedAt, &rec.UpdatedAt)
	if eris.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan component")
	}
	return &rec, nil
}
