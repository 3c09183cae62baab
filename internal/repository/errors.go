package repository

import (
	"errors"

	"github.com/lib/pq"
)

// ErrDuplicate is returned when an insert trips a unique constraint. The
// services translate it into the conflict taxonomy.
var ErrDuplicate = errors.New("duplicate record")

// uniqueViolation is the Postgres error code raised by unique indexes. It is
// what turns concurrent check-then-insert races into deterministic conflicts.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == uniqueViolation
	}
	return false
}
