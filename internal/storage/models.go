package storage

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// IOError reports a transaction the durability layer rejected. It is always
// returned to the caller of Edit.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// Change is the full committed key/value state after one transaction.
// Values is shared between subscribers and must be treated as read-only.
type Change struct {
	Revision uint64
	Values   map[string]string
}
