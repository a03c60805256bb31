package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Sentinel errors returned by storage methods. The storage layer stays
// free of HTTP and domain concerns; callers translate these.
var (
	ErrNotFound      = errors.New("record not found")
	ErrDuplicate     = errors.New("duplicate record")
	ErrQuotaExceeded = errors.New("quota exceeded")
	ErrConflict      = errors.New("conditional update failed")
)

// Storage wraps the Postgres connection and implements all data operations.
type Storage struct {
	db *sqlx.DB
}

// NewStorage creates a Storage over an open connection.
func NewStorage(db *sqlx.DB) *Storage {
	return &Storage{db: db}
}

// Close closes the underlying connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// withTx runs fn inside a transaction, rolling back on error.
func (s *Storage) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// nextReference issues the next human-readable reference of the form
// <kind>-<year>-<5-digit counter>, atomic within the caller's transaction.
func nextReference(ctx context.Context, tx *sqlx.Tx, kind string, year int) (string, error) {
	var counter int
	err := tx.GetContext(ctx, &counter, `
        INSERT INTO reference_counters (kind, year, counter)
        VALUES ($1, $2, 1)
        ON CONFLICT (kind, year)
        DO UPDATE SET counter = reference_counters.counter + 1
        RETURNING counter`, kind, year)
	if err != nil {
		return "", fmt.Errorf("next reference %s-%d: %w", kind, year, err)
	}
	return fmt.Sprintf("%s-%d-%05d", kind, year, counter), nil
}

func mapGetErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
