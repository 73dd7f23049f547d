package aggregator

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/catalog-suggest/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/catalog-suggest/pkg/postgres"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(postgres.Wrap(db)), mock
}

func TestEnsureSchema(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS suggest_analytics_snapshots").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveSnapshot(t *testing.T) {
	store, mock := newMockStore(t)
	captured := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	mock.ExpectExec("INSERT INTO suggest_analytics_snapshots").
		WithArgs(sqlmock.AnyArg(), captured).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.SaveSnapshot(context.Background(), analytics.AggregatedStats{TotalQueries: 3, CapturedAt: captured})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestSnapshot(t *testing.T) {
	store, mock := newMockStore(t)
	data, err := json.Marshal(analytics.AggregatedStats{TotalQueries: 9})
	require.NoError(t, err)
	mock.ExpectQuery("SELECT data FROM suggest_analytics_snapshots").
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow(data))

	got, err := store.LatestSnapshot(context.Background())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(9), got.TotalQueries)
}

func TestLatestSnapshotEmpty(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT data FROM suggest_analytics_snapshots").
		WillReturnRows(sqlmock.NewRows([]string{"data"}))

	got, err := store.LatestSnapshot(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestListSnapshotsSkipsCorruptRows(t *testing.T) {
	store, mock := newMockStore(t)
	good, err := json.Marshal(analytics.AggregatedStats{TotalQueries: 1})
	require.NoError(t, err)
	mock.ExpectQuery("SELECT data FROM suggest_analytics_snapshots").
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow(good).AddRow([]byte("{")))

	got, err := store.ListSnapshots(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].TotalQueries)
}
