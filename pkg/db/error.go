package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	pgUniqueViolation      = "23505"
	pgCheckViolation       = "23514"
	pgSerializationFailure = "40001"
	pgLockNotAvailable     = "55P03"
)

func IsDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	if pgCode(err) == pgUniqueViolation {
		return true
	}

	// MySQL (error code 1062)
	if strings.Contains(err.Error(), "Error 1062") {
		return true
	}

	// SQLite (error code 2067)
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return true
	}

	return strings.Contains(err.Error(), "duplicate key value violates unique constraint")
}

// IsCheckViolation reports a rejected CHECK constraint, e.g. a balance going negative.
func IsCheckViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrCheckConstraintViolated) || pgCode(err) == pgCheckViolation {
		return true
	}
	return strings.Contains(err.Error(), "CHECK constraint failed")
}

// IsSerializationFailure reports whether the transaction can be retried by the caller.
func IsSerializationFailure(err error) bool {
	return pgCode(err) == pgSerializationFailure
}

// IsLockTimeout reports a lock_timeout cancellation.
func IsLockTimeout(err error) bool {
	return pgCode(err) == pgLockNotAvailable
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
