package journal

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/culda/skalpit/account"
)

// SQLite stores closed trades in a single trades table. The order
// audit map is kept alongside each row as a JSON blob; it is audit
// data, not something queried relationally.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (creating if needed) the database at path.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open journal db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create journal schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// ExportClose implements Journal.
func (j *SQLite) ExportClose(t *account.Trade, orders map[string]account.OrderEntry) error {
	if t.Result == nil {
		return fmt.Errorf("trade %s has no result", t.ID)
	}

	ordersJSON, err := json.Marshal(orders)
	if err != nil {
		return fmt.Errorf("marshal orders for trade %s: %w", t.ID, err)
	}

	closedAt := time.Now().UTC()
	if t.ClosedAt != nil {
		closedAt = t.ClosedAt.UTC()
	}

	_, err = j.db.Exec(`
		INSERT INTO trades
		(trade_id, side, entry_price, stop_price, take_profit, risk_percent,
		 size, open_time, close_time, profit, percent, balance_before,
		 balance_after, orders)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, string(t.Side), t.Entry, t.Stop, t.TakeProfit, t.Risk,
		t.Size, t.OpenedAt.UTC(), closedAt, t.Result.Profit, t.Result.Percent,
		t.Result.Balance.Before, t.Result.Balance.After, string(ordersJSON),
	)
	if err != nil {
		return fmt.Errorf("insert trade %s: %w", t.ID, err)
	}
	return nil
}

// Close implements Journal.
func (j *SQLite) Close() error {
	return j.db.Close()
}
