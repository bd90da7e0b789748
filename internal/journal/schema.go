package journal

// Schema is the sqlite schema. Postgres uses the embedded migrations.
const Schema = `
CREATE TABLE IF NOT EXISTS auth_attempts (
	id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL,
	attempt INTEGER NOT NULL,
	outcome TEXT NOT NULL,
	error_code TEXT NOT NULL DEFAULT '',
	message TEXT NOT NULL DEFAULT '',
	at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS trade_ups (
	id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL,
	success INTEGER NOT NULL,
	input_asset_ids TEXT NOT NULL,
	output_item TEXT,
	error TEXT NOT NULL DEFAULT '',
	at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_auth_attempts_at ON auth_attempts(at);
CREATE INDEX IF NOT EXISTS idx_trade_ups_at ON trade_ups(at);
`
