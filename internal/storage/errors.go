package storage

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound is the store-level sentinel for rows that no longer exist.
// Callers treat it as a benign race ("already handled"), never an escalation.
var ErrNotFound = errors.New("not found")

// IsConflict reports a Postgres exclusion or uniqueness violation. The
// appointments table carries an exclusion constraint over the tolerance
// window, so a losing racer surfaces here.
func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && (pgErr.Code == "23P01" || pgErr.Code == "23505")
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, pgx.ErrNoRows)
}
