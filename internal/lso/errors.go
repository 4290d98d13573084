package lso

import (
	"errors"
	"fmt"

	"github.com/lindend/lstack/internal/storage"
)

var (
	// ErrAlreadyExists is returned by Create when the bin already holds a valid stack.
	ErrAlreadyExists = errors.New("stack already exists")

	// ErrNotFound is returned when the bin holds no stack or its descriptor fails validation.
	ErrNotFound = errors.New("stack not found")

	ErrInvalidConfig   = errors.New("invalid stack configuration")
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrCapacityExceeded is returned when the store cannot allocate a chunk or directory page.
	ErrCapacityExceeded = errors.New("storage capacity exceeded")

	// ErrStorageFailure wraps any other failure of the underlying store.
	ErrStorageFailure = errors.New("storage failure")

	// ErrCorrupt is returned when the tier structure is inconsistent.
	ErrCorrupt = errors.New("stack structure corrupt")
)

func storageError(op string, h storage.Handle, err error) error {
	if errors.Is(err, storage.ErrCapacity) {
		return fmt.Errorf("%w: %s %v: %w", ErrCapacityExceeded, op, h, err)
	}
	return fmt.Errorf("%w: %s %v: %w", ErrStorageFailure, op, h, err)
}

func corruptError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrCorrupt, fmt.Sprintf(format, args...))
}
