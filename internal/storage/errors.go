package storage

import "errors"

// Common storage errors
var (
	// ErrEntityNotFound indicates that no row exists for table/id
	ErrEntityNotFound = errors.New("entity not found")

	// ErrDuplicateKey indicates an insert of an id that already exists
	ErrDuplicateKey = errors.New("entity already exists")

	// ErrStorageFailure matches every *Error
	ErrStorageFailure = errors.New("storage failure")

	// ErrSkipWrite can be returned by a ModifyFunc to leave the row untouched
	ErrSkipWrite = errors.New("skip write")

	// ErrInvalidQuery indicates a malformed path, operator or argument
	ErrInvalidQuery = errors.New("invalid query")

	// ErrStorageClosed indicates that storage is closed
	ErrStorageClosed = errors.New("storage is closed")
)

// Error wraps a failure of the underlying database. It is never used for
// "not found" or "already exists".
type Error struct {
	Err error
	Op  string
}

func (e *Error) Error() string {
	return "storage " + e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrStorageFailure) true for every *Error.
func (e *Error) Is(target error) bool {
	return target == ErrStorageFailure
}

// Fail wraps err as a storage failure of op. A nil err stays nil.
func Fail(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}
