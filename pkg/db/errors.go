package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// uniqueViolationCode is the Postgres class 23 code for unique_violation.
const uniqueViolationCode = "23505"

// IsUniqueViolation reports whether the provided error is a unique
// violation. When constraintName is provided, a typed Postgres error
// only matches a violation of that constraint. The gorm postgres driver
// surfaces *pgconn.PgError; lib/pq connections surface *pq.Error. Other
// drivers fall back to message inspection, where the constraint name is
// matched when the message carries it and the bare unique-violation
// signature is accepted otherwise (sqlite reports the column list, not
// the index name).
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}

	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		if pgxErr.Code != uniqueViolationCode {
			return false
		}
		return constraintName == "" || pgxErr.ConstraintName == constraintName
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if pqErr.Code != uniqueViolationCode {
			return false
		}
		return constraintName == "" || pqErr.Constraint == constraintName
	}

	msg := err.Error()
	if constraintName != "" && strings.Contains(msg, constraintName) {
		return true
	}
	return strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}
