package store

import (
	"errors"

	"github.com/lib/pq"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalidReference is returned when a write names a participant or
// problem that no longer exists (a dangling foreign key).
var ErrInvalidReference = errors.New("invalid reference")

// ErrAlreadyGraded is returned when grading is attempted on a problem
// whose graded flag is already set. Grading is strictly one-shot.
var ErrAlreadyGraded = errors.New("problem already graded")

// ErrDuplicate is returned when an insert collides with an existing
// unique record, e.g. a taken username.
var ErrDuplicate = errors.New("duplicate record")

// Postgres error codes used to translate constraint violations into
// domain sentinels.
const (
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
)

func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == pgForeignKeyViolation
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == pgUniqueViolation
}
