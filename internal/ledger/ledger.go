// Package ledger provides the SQLite-backed record store used by the node.
package ledger

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/ansuz/internal/models"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS records (
	program    TEXT NOT NULL,
	key        TEXT NOT NULL,
	owner      TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (program, key)
);

CREATE TABLE IF NOT EXISTS contributions (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	id         TEXT NOT NULL UNIQUE,
	program    TEXT NOT NULL,
	key        TEXT NOT NULL,
	author     TEXT NOT NULL,
	text       TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (program, key) REFERENCES records(program, key)
);

CREATE INDEX IF NOT EXISTS idx_contributions_record ON contributions(program, key, seq);
`

// Ledger defines the record operations served by the node.
// Consumers should depend on this interface rather than *DB.
type Ledger interface {
	InitRecord(ctx context.Context, addr models.RecordAddress, owner models.Identity) (models.Record, error)
	Append(ctx context.Context, addr models.RecordAddress, author models.Identity, text string) (models.Contribution, error)
	Fetch(ctx context.Context, addr models.RecordAddress) (models.Record, error)
	ListRecords(ctx context.Context, program string) ([]models.RecordAddress, error)
	Close() error
}

var _ Ledger = (*DB)(nil)

// DB wraps a sql.DB with ledger operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("ledger: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ledger: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ledger: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
