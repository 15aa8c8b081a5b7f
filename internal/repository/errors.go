package repository

import (
	"errors"

	"github.com/lib/pq"
)

// ErrDuplicate reports a uniqueness-constraint violation on create.
// Batch engines catch it specifically and bucket the item instead of
// aborting.
var ErrDuplicate = errors.New("duplicate row")

// uniqueViolation is the Postgres error code for unique_violation.
const uniqueViolation = "23505"

func mapConstraintError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return ErrDuplicate
	}
	return err
}
