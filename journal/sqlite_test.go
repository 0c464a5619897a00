package journal

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"

	"github.com/culda/skalpit/account"
)

func newTestSQLite(t *testing.T) (*SQLite, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	j, err := NewSQLite(path)
	assert.NoError(t, err)

	return j, path
}

func TestSQLiteSchemaCreated(t *testing.T) {
	t.Parallel()

	j, path := newTestSQLite(t)
	assert.NoError(t, j.Close())

	db, err := sql.Open("sqlite3", path)
	assert.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	var name string
	err = db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name='trades'`).Scan(&name)
	assert.NoError(t, err)
	assert.Equal(t, "trades", name)
}

func TestSQLiteExportClose(t *testing.T) {
	t.Parallel()

	j, path := newTestSQLite(t)

	tr := closedTrade()
	orders := map[string]account.OrderEntry{
		"ord-1": {Status: account.OrderFilled},
	}
	assert.NoError(t, j.ExportClose(tr, orders))
	assert.NoError(t, j.Close())

	db, err := sql.Open("sqlite3", path)
	assert.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	var (
		side          string
		profit        float64
		balanceBefore float64
		balanceAfter  float64
		ordersJSON    string
	)
	err = db.QueryRow(`SELECT side, profit, balance_before, balance_after, orders FROM trades WHERE trade_id = ?`, tr.ID).
		Scan(&side, &profit, &balanceBefore, &balanceAfter, &ordersJSON)
	assert.NoError(t, err)

	assert.Equal(t, "long", side)
	assert.Equal(t, 200.0, profit)
	assert.Equal(t, 10000.0, balanceBefore)
	assert.Equal(t, 10200.0, balanceAfter)
	assert.Contains(t, ordersJSON, `"ord-1"`)
}

func TestSQLiteRejectsTradeWithoutResult(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	defer j.Close()

	tr := closedTrade()
	tr.Result = nil
	assert.Error(t, j.ExportClose(tr, nil))
}
