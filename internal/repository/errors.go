package repository

import (
	"errors"

	"github.com/lib/pq"

	"servio/marketplace-core/internal/apperr"
)

// Postgres error code for unique_violation.
const uniqueViolation = pq.ErrorCode("23505")

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// storeErr wraps a driver failure as a caller-retriable transient error.
func storeErr(err error, msg string) error {
	return apperr.Wrap(apperr.KindTransient, err, msg)
}
