package datastore

// LookupsTable holds one row per finished lookup.
const LookupsTable = "lookups"

// LookupsSchema creates the lookups table.
const LookupsSchema = `CREATE TABLE IF NOT EXISTS lookups (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	query TEXT NOT NULL,
	title TEXT,
	isbn13 TEXT,
	year TEXT,
	buyback_url TEXT,
	buyback_price REAL,
	buy_price REAL,
	profit REAL,
	error_code TEXT,
	looked_up_at TEXT NOT NULL
)`
