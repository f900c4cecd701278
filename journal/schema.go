package journal

// Schema is the SQLite layout. Decimals are TEXT so no value passes through a
// float; datetimes are TEXT in trade.TimeLayout and sort lexically.
const Schema = `
CREATE TABLE IF NOT EXISTS trades (
	id INTEGER PRIMARY KEY,
	datetime TEXT NOT NULL,
	symbol TEXT NOT NULL,
	expiry TEXT NOT NULL,
	strike TEXT NOT NULL,
	"right" TEXT NOT NULL CHECK("right" IN ('C','P')),
	action TEXT NOT NULL CHECK(action IN ('BUY','SELL','BTO','STO','BTC','STC')),
	quantity INTEGER NOT NULL CHECK(quantity > 0),
	price TEXT NOT NULL,
	commission TEXT NOT NULL DEFAULT '0',
	fees TEXT NOT NULL DEFAULT '0',
	multiplier INTEGER NOT NULL DEFAULT 100,
	tag TEXT
);

CREATE INDEX IF NOT EXISTS idx_trades_key
	ON trades(symbol, expiry, strike, "right", datetime);

CREATE INDEX IF NOT EXISTS idx_trades_datetime ON trades(datetime, id);

CREATE TABLE IF NOT EXISTS price_updates (
	id INTEGER PRIMARY KEY,
	symbol TEXT NOT NULL,
	expiry TEXT NOT NULL,
	strike TEXT NOT NULL,
	"right" TEXT NOT NULL CHECK("right" IN ('C','P')),
	mark TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_marks_key
	ON price_updates(symbol, expiry, strike, "right", updated_at);
`

// PostgresSchema is the same layout with native types.
var PostgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS trades (
		id BIGSERIAL PRIMARY KEY,
		datetime TIMESTAMPTZ NOT NULL,
		symbol TEXT NOT NULL,
		expiry DATE NOT NULL,
		strike NUMERIC NOT NULL,
		"right" TEXT NOT NULL CHECK("right" IN ('C','P')),
		action TEXT NOT NULL CHECK(action IN ('BUY','SELL','BTO','STO','BTC','STC')),
		quantity BIGINT NOT NULL CHECK(quantity > 0),
		price NUMERIC NOT NULL,
		commission NUMERIC NOT NULL DEFAULT 0,
		fees NUMERIC NOT NULL DEFAULT 0,
		multiplier BIGINT NOT NULL DEFAULT 100,
		tag TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_trades_key
		ON trades(symbol, expiry, strike, "right", datetime)`,
	`CREATE INDEX IF NOT EXISTS idx_trades_datetime ON trades(datetime, id)`,
	`CREATE TABLE IF NOT EXISTS price_updates (
		id BIGSERIAL PRIMARY KEY,
		symbol TEXT NOT NULL,
		expiry DATE NOT NULL,
		strike NUMERIC NOT NULL,
		"right" TEXT NOT NULL CHECK("right" IN ('C','P')),
		mark NUMERIC NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_marks_key
		ON price_updates(symbol, expiry, strike, "right", updated_at)`,
}
