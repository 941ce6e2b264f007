package store

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound         = errors.New("store: not found")
	ErrDuplicateReceipt = errors.New("store: duplicate receipt")
	ErrDuplicateRedeem  = errors.New("store: duplicate redeem request")
	ErrJobAlreadyActive = errors.New("store: reference already has an active job")
)

// pgUniqueViolation is Postgres error code 23505.
const pgUniqueViolation = "23505"

// isUniqueViolation reports whether err is a unique-constraint violation,
// the signal callers use to fold an INSERT race into an idempotency hit
// instead of a hard failure.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return false
}
