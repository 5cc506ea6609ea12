package repository

import (
	"errors"
	"strings"

	"github.com/goliatone/go-repository-bun"
	"github.com/jackc/pgx/v5/pgconn"
)

const pgUniqueViolation = "23505"

// isNoRows covers sql.ErrNoRows and the expected count violations raised
// when an update or delete matched nothing.
func isNoRows(err error) bool {
	return repository.IsRecordNotFound(err)
}

// isUniqueViolation recognizes unique constraint errors from postgres and sqlite.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}
