package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// PostgresBackend stores documents in the documents table created by
// migrations/0001_documents.up.sql.
type PostgresBackend struct {
	db *sqlx.DB
}

// NewPostgresBackend wraps an open connection pool.
func NewPostgresBackend(db *sqlx.DB) *PostgresBackend {
	return &PostgresBackend{db: db}
}

type documentRow struct {
	Body    []byte `db:"body"`
	Version int64  `db:"version"`
}

// Load implements Backend.
func (p *PostgresBackend) Load(ctx context.Context, name string) ([]byte, int64, error) {
	var row documentRow
	err := p.db.GetContext(ctx, &row, `SELECT body, version FROM documents WHERE name = $1`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("select document: %w", err)
	}
	return row.Body, row.Version, nil
}

// Save implements Backend. Version 0 inserts; any other version updates only
// when the stored version still matches.
func (p *PostgresBackend) Save(ctx context.Context, name string, data []byte, expectedVersion int64) (int64, error) {
	var next int64
	var err error
	if expectedVersion == 0 {
		err = p.db.GetContext(ctx, &next, `
			INSERT INTO documents (name, body, version, updated_at)
			VALUES ($1, $2, 1, NOW())
			ON CONFLICT (name) DO NOTHING
			RETURNING version`, name, data)
	} else {
		err = p.db.GetContext(ctx, &next, `
			UPDATE documents
			SET body = $2, version = version + 1, updated_at = NOW()
			WHERE name = $1 AND version = $3
			RETURNING version`, name, data, expectedVersion)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrConflict
	}
	if err != nil {
		return 0, fmt.Errorf("write document: %w", err)
	}
	return next, nil
}
