package db

const schemaSQL = `
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS forecast_cache (
    provider TEXT NOT NULL,
    lat REAL NOT NULL,
    lon REAL NOT NULL,
    date TEXT NOT NULL,
    source TEXT NOT NULL,
    value REAL NOT NULL,
    precip REAL NOT NULL,
    unit TEXT NOT NULL,
    fetched_at INTEGER NOT NULL,
    expires_at INTEGER NOT NULL,
    PRIMARY KEY (provider, lat, lon, date)
);
CREATE INDEX IF NOT EXISTS idx_forecast_cache_expiry ON forecast_cache(expires_at);

CREATE TABLE IF NOT EXISTS signals (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    market_id TEXT NOT NULL,
    question TEXT NOT NULL,
    city TEXT NOT NULL,
    outcome TEXT NOT NULL,
    true_prob REAL NOT NULL,
    market_prob REAL NOT NULL,
    edge REAL NOT NULL,
    proximity_pass INTEGER NOT NULL DEFAULT 0,
    forecast_value REAL,
    event_date TEXT,
    created_at TEXT NOT NULL DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_signals_market ON signals(market_id);

CREATE TABLE IF NOT EXISTS positions (
    id TEXT PRIMARY KEY,
    market_id TEXT NOT NULL,
    question TEXT NOT NULL,
    city TEXT NOT NULL,
    outcome TEXT NOT NULL,
    token_id TEXT,
    stake TEXT NOT NULL,
    price REAL NOT NULL,
    true_prob REAL NOT NULL,
    edge REAL NOT NULL,
    event_date TEXT,
    end_date TEXT,
    status TEXT NOT NULL DEFAULT 'pending',
    resolution TEXT,
    payout TEXT,
    pnl TEXT,
    created_at TEXT NOT NULL DEFAULT (datetime('now')),
    opened_at TEXT,
    settled_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_positions_status ON positions(status);
CREATE INDEX IF NOT EXISTS idx_positions_market ON positions(market_id);

CREATE TABLE IF NOT EXISTS cash_ledger (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    position_id TEXT REFERENCES positions(id),
    delta TEXT NOT NULL,
    balance TEXT NOT NULL,
    reason TEXT NOT NULL,
    created_at TEXT NOT NULL DEFAULT (datetime('now'))
);
`
