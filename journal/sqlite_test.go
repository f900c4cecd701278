package journal

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rustyeddy/optrack/trade"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) (*SQLite, string) {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")

	j, err := NewSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })

	return j, path
}

func TestSQLiteStore(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	testStore(t, j)
}

func TestSQLiteSchemaCreated(t *testing.T) {
	t.Parallel()

	j, path := newTestSQLite(t)
	assert.NoError(t, j.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type='table' AND name IN ('trades','price_updates')`)
	require.NoError(t, err)
	defer rows.Close()

	found := map[string]bool{}
	for rows.Next() {
		var name string
		assert.NoError(t, rows.Scan(&name))
		found[name] = true
	}
	assert.NoError(t, rows.Err())

	assert.True(t, found["trades"])
	assert.True(t, found["price_updates"])
}

func TestSQLiteStoresDecimalsAsText(t *testing.T) {
	t.Parallel()

	j, path := newTestSQLite(t)
	_, err := j.InsertTrade(context.Background(), draft(t, "2025-01-02 14:30:00", "BTO", 1, "0.10"))
	require.NoError(t, err)
	require.NoError(t, j.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	var dt, strike, price, commission, action string
	err = db.QueryRow(`SELECT datetime, strike, price, commission, action FROM trades LIMIT 1`).
		Scan(&dt, &strike, &price, &commission, &action)
	require.NoError(t, err)
	assert.Equal(t, "2025-01-02 14:30:00", dt)
	assert.Equal(t, "450", strike)
	assert.Equal(t, "0.1", price)
	assert.Equal(t, "0.65", commission)
	assert.Equal(t, "BTO", action)
}

func TestSQLiteInsertTradesIsAtomic(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	ctx := context.Background()

	good := draft(t, "2025-01-02 14:30:00", "BUY", 1, "1.00")
	bad := good
	bad.Quantity = 0 // violates the CHECK constraint

	_, err := j.InsertTrades(ctx, []trade.Trade{good, bad})
	require.Error(t, err)

	recs, err := j.ListTrades(ctx, Window{})
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	t.Parallel()

	j, path := newTestSQLite(t)
	ctx := context.Background()
	id, err := j.InsertTrade(ctx, draft(t, "2025-01-02 14:30:00", "SELL", 3, "4.50"))
	require.NoError(t, err)
	require.NoError(t, j.Close())

	j2, err := NewSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j2.Close() })

	rec, err := j2.GetTrade(ctx, id)
	require.NoError(t, err)
	got, err := trade.Normalize(rec)
	require.NoError(t, err)
	assert.Equal(t, int64(-3), got.Delta())
	assert.True(t, got.Time.Equal(time.Date(2025, 1, 2, 14, 30, 0, 0, time.UTC)))
}
