package store

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockCatalog(t *testing.T) (*PostgresCatalog, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresWithPool(mock), mock
}

func TestPostgresCatalog_SaveResult(t *testing.T) {
	cat, mock := newMockCatalog(t)

	mock.ExpectQuery(`INSERT INTO components`).
		WithArgs("LM358", "TI", "op-amp", "Dual op-amp", 89, "digikey", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("comp-1"))

	id, err := cat.SaveResult(context.Background(), sampleResult(89))
	require.NoError(t, err)
	assert.Equal(t, "comp-1", id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCatalog_GetByPart(t *testing.T) {
	cat, mock := newMockCatalog(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT id, mpn, manufacturer`).
		WithArgs("LM358", "TI").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "mpn", "manufacturer", "category", "description", "quality_score", "source", "created_at", "updated_at",
		}).AddRow("comp-1", "LM358", "TI", "op-amp", "Dual op-amp", 89, "digikey", now, now))

	rec, err := cat.GetByPart(context.Background(), "LM358", "TI")
	require.NoError(t, err)
	assert.Equal(t, "comp-1", rec.ID)
	assert.Equal(t, 89, rec.QualityScore)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCatalog_GetComponentNotFound(t *testing.T) {
	cat, mock := newMockCatalog(t)

	mock.ExpectQuery(`SELECT id, mpn, manufacturer`).
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "mpn", "manufacturer", "category", "description", "quality_score", "source", "created_at", "updated_at",
		}))

	_, err := cat.GetComponent(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCatalog_ListComponents(t *testing.T) {
	cat, mock := newMockCatalog(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT id, mpn, manufacturer`).
		WithArgs(2, 0).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "mpn", "manufacturer", "category", "description", "quality_score", "source", "created_at", "updated_at",
		}).
			AddRow("comp-1", "LM358", "TI", "op-amp", "", 89, "digikey", now, now).
			AddRow("comp-2", "NE555", "TI", "timer", "", 75, "mouser", now, now))

	list, err := cat.ListComponents(context.Background(), 2, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "NE555", list[1].MPN)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCatalog_Migrate(t *testing.T) {
	cat, mock := newMockCatalog(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS components`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, cat.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
