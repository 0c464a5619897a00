package journal

const schema = `
CREATE TABLE IF NOT EXISTS trades (
	trade_id TEXT PRIMARY KEY,
	side TEXT NOT NULL,
	entry_price REAL NOT NULL,
	stop_price REAL NOT NULL,
	take_profit REAL NOT NULL,
	risk_percent REAL NOT NULL,
	size REAL NOT NULL,
	open_time DATETIME NOT NULL,
	close_time DATETIME NOT NULL,
	profit REAL NOT NULL,
	percent REAL NOT NULL,
	balance_before REAL NOT NULL,
	balance_after REAL NOT NULL,
	orders TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_close_time ON trades(close_time);
`
