package dbx

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// pgUniqueViolation is SQLSTATE 23505.
const pgUniqueViolation = "23505"

// UniqueConstraint reports whether err is a PostgreSQL unique violation and,
// if so, the name of the violated constraint. Repositories use it to map
// duplicate transaction references and duplicate active escrow records to
// the right business error.
func UniqueConstraint(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return pgErr.ConstraintName, true
	}
	return "", false
}

// IsUniqueViolation reports whether err is a PostgreSQL unique violation.
func IsUniqueViolation(err error) bool {
	_, ok := UniqueConstraint(err)
	return ok
}
