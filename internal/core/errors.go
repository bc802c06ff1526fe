package core

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is matched by every NotFoundError via errors.Is.
	ErrNotFound = errors.New("not found")

	// ErrSourceMissing means no raw file exists for an entity. The entity is skipped.
	ErrSourceMissing = errors.New("no source file found")

	// ErrInvalidRequest wraps caller mistakes: unknown columns, missing keys, bad payloads.
	ErrInvalidRequest = errors.New("invalid request")
)

// FormatError reports an input file that no parsing strategy could read.
// It is fatal for that dataset only.
type FormatError struct {
	Path   string
	Format string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Format != "" {
		return fmt.Sprintf("invalid format: %s (%s): %v", e.Path, e.Format, e.Err)
	}
	return fmt.Sprintf("invalid format: %s: %v", e.Path, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// StoreError reports a failed query, load, or statement against the store.
type StoreError struct {
	Table string
	Op    string
	Err   error
}

func (e *StoreError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("store %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Table, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// NotFoundError reports a lookup by key that matched nothing.
type NotFoundError struct {
	Kind string // table, row, report, customer
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Key)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}
