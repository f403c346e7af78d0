package watermark

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tower_bot/internal/logging"
	"tower_bot/internal/models"
)

func TestPostgresBackendLoad(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(selectWatermark)).
		WithArgs("posts").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow("1699999999"))
	mock.ExpectQuery(regexp.QuoteMeta(selectWatermark)).
		WithArgs("messages").
		WillReturnError(sql.ErrNoRows)

	store := NewStore(NewPostgresBackend(db), logging.Discard())
	assert.Equal(t, int64(1699999999), mustGet(t, store, models.StreamPosts))
	assert.Equal(t, int64(0), mustGet(t, store, models.StreamMessages))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresBackendSaveUpserts(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(upsertWatermark)).
		WithArgs("messages", "1700000500").
		WillReturnResult(sqlmock.NewResult(0, 1))

	store := NewStore(NewPostgresBackend(db), logging.Discard())
	require.NoError(t, store.Set(context.Background(), models.StreamMessages, 1700000500))

	// rejected writes never reach the database
	assert.Error(t, store.Set(context.Background(), models.StreamMessages, -1))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresBackendEnsureSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(createWatermarkTable)).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, NewPostgresBackend(db).EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
