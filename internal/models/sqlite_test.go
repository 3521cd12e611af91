package models

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := NewDatabase(filepath.Join(t.TempDir(), "nested", "snapshots.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestLocalDatabase_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	rep := BuildReport(Channel{ID: "UC123", Title: "Chan"}, sampleVideos(), day(10))
	snap, err := NewReportSnapshot(rep, 30, day(10))
	require.NoError(t, err)
	require.NoError(t, store.StoreSnapshot(ctx, snap))

	got, err := store.GetLatestSnapshot(ctx, "UC123", 30)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Chan", got.ChannelTitle)
	assert.Equal(t, 30, got.Requested)
	assert.True(t, got.UpdateDate.Equal(day(10)))

	decoded, err := got.Report()
	require.NoError(t, err)
	assert.Equal(t, rep.Trend, decoded.Trend)
	assert.Len(t, decoded.Ranking, 4)
	assert.Equal(t, "b", decoded.Ranking[0].ID)
}

func TestLocalDatabase_Missing(t *testing.T) {
	store := newTestStore(t)

	got, err := store.GetLatestSnapshot(context.Background(), "UCnope", 30)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestLocalDatabase_UpsertReplaces(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	first, err := NewReportSnapshot(BuildReport(Channel{ID: "UC1", Title: "Old"}, nil, day(1)), 10, day(1))
	require.NoError(t, err)
	require.NoError(t, store.StoreSnapshot(ctx, first))

	second, err := NewReportSnapshot(BuildReport(Channel{ID: "UC1", Title: "New"}, nil, day(2)), 10, day(2))
	require.NoError(t, err)
	require.NoError(t, store.StoreSnapshot(ctx, second))

	got, err := store.GetLatestSnapshot(ctx, "UC1", 10)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "New", got.ChannelTitle)
	assert.True(t, got.CreateDate.Equal(day(1)), "create date is kept on update")
	assert.True(t, got.UpdateDate.Equal(day(2)))

	other, err := store.GetLatestSnapshot(ctx, "UC1", 20)
	require.NoError(t, err)
	assert.Nil(t, other, "snapshots are keyed by requested count")
}

func TestReportSnapshot_IsFromDay(t *testing.T) {
	s := &ReportSnapshot{UpdateDate: time.Date(2024, 3, 1, 23, 30, 0, 0, time.UTC)}
	assert.True(t, s.IsFromDay(time.Date(2024, 3, 1, 0, 5, 0, 0, time.UTC)))
	assert.False(t, s.IsFromDay(time.Date(2024, 3, 2, 0, 5, 0, 0, time.UTC)))
}

func TestMaskConnectionString(t *testing.T) {
	assert.Equal(t, "sqlitecloud://host:8860/db?apikey=***",
		maskConnectionString("sqlitecloud://host:8860/db?apikey=secret"))
	assert.Equal(t, "sqlitecloud://host", maskConnectionString("sqlitecloud://host"))
}
