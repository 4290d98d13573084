package storage

import "errors"

var (
	// ErrUnitNotFound is returned when a handle does not name a live unit.
	ErrUnitNotFound = errors.New("storage unit not found")

	// ErrCapacity is returned when the store cannot allocate another unit.
	ErrCapacity = errors.New("storage capacity exhausted")

	// ErrUnitClosed is returned when a closed unit is updated or closed again.
	ErrUnitClosed = errors.New("storage unit is closed")

	// ErrCorruptUnit is returned when a unit fails its checksum or framing checks.
	ErrCorruptUnit = errors.New("corrupted storage unit")
)
