package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/models"
)

// InitRecord creates an empty record owned by owner. It fails with
// apperr.ErrAlreadyExists when the address is taken.
func (db *DB) InitRecord(ctx context.Context, addr models.RecordAddress, owner models.Identity) (models.Record, error) {
	now := time.Now().UTC()
	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO records (program, key, owner, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(program, key) DO NOTHING
	`, addr.ProgramID, addr.Key, string(owner), now)
	if err != nil {
		return models.Record{}, fmt.Errorf("ledger: init record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return models.Record{}, fmt.Errorf("ledger: init record: %w", err)
	}
	if n == 0 {
		return models.Record{}, apperr.ErrAlreadyExists
	}
	return models.Record{
		Address:       addr,
		Owner:         owner,
		Contributions: []models.Contribution{},
		CreatedAt:     now,
	}, nil
}

// Append adds a contribution at the end of the record. It fails with
// apperr.ErrNotInitialized when the record does not exist.
func (db *DB) Append(ctx context.Context, addr models.RecordAddress, author models.Identity, text string) (models.Contribution, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return models.Contribution{}, fmt.Errorf("ledger: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	var one int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM records WHERE program = ? AND key = ?`,
		addr.ProgramID, addr.Key).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Contribution{}, apperr.ErrNotInitialized
	}
	if err != nil {
		return models.Contribution{}, fmt.Errorf("ledger: lookup record: %w", err)
	}

	c := models.Contribution{
		ID:        ulid.Make().String(),
		Author:    author,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO contributions (id, program, key, author, text, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, c.ID, addr.ProgramID, addr.Key, string(c.Author), c.Text, c.CreatedAt)
	if err != nil {
		return models.Contribution{}, fmt.Errorf("ledger: insert contribution: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return models.Contribution{}, fmt.Errorf("ledger: commit: %w", err)
	}
	return c, nil
}

// Fetch returns the record with its contributions in append order, or
// apperr.ErrNotFound.
func (db *DB) Fetch(ctx context.Context, addr models.RecordAddress) (models.Record, error) {
	rec := models.Record{Address: addr, Contributions: []models.Contribution{}}
	var owner string
	err := db.conn.QueryRowContext(ctx, `SELECT owner, created_at FROM records WHERE program = ? AND key = ?`,
		addr.ProgramID, addr.Key).Scan(&owner, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Record{}, apperr.ErrNotFound
	}
	if err != nil {
		return models.Record{}, fmt.Errorf("ledger: fetch record: %w", err)
	}
	rec.Owner = models.Identity(owner)

	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, author, text, created_at
		FROM contributions
		WHERE program = ? AND key = ?
		ORDER BY seq
	`, addr.ProgramID, addr.Key)
	if err != nil {
		return models.Record{}, fmt.Errorf("ledger: fetch contributions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c models.Contribution
		var author string
		if err := rows.Scan(&c.ID, &author, &c.Text, &c.CreatedAt); err != nil {
			return models.Record{}, err
		}
		c.Author = models.Identity(author)
		rec.Contributions = append(rec.Contributions, c)
	}
	return rec, rows.Err()
}

// ListRecords returns the addresses of every record under program, or of
// every record when program is empty.
func (db *DB) ListRecords(ctx context.Context, program string) ([]models.RecordAddress, error) {
	query := `SELECT program, key FROM records ORDER BY program, key`
	var args []any
	if program != "" {
		query = `SELECT program, key FROM records WHERE program = ? ORDER BY key`
		args = append(args, program)
	}
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ledger: list records: %w", err)
	}
	defer rows.Close()

	out := []models.RecordAddress{}
	for rows.Next() {
		var a models.RecordAddress
		if err := rows.Scan(&a.ProgramID, &a.Key); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
