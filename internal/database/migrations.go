package database

// migrations run in order on every start; each statement is idempotent and
// valid for both SQLite and PostgreSQL.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS entities (
    pk TEXT NOT NULL,
    sk TEXT NOT NULL,
    kind TEXT NOT NULL,
    name TEXT NOT NULL DEFAULT '',
    age INTEGER NOT NULL DEFAULT 0,
    storage_key TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT '',
    status_reason TEXT NOT NULL DEFAULT '',
    version BIGINT NOT NULL DEFAULT 1,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    expires_at TEXT,
    PRIMARY KEY (pk, sk)
)`,
	`CREATE TABLE IF NOT EXISTS sequences (
    pk TEXT NOT NULL,
    counter TEXT NOT NULL,
    value BIGINT NOT NULL,
    PRIMARY KEY (pk, counter)
)`,
	`CREATE INDEX IF NOT EXISTS idx_entities_expires ON entities (expires_at)`,
}
