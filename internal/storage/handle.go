package storage

import "github.com/google/uuid"

// Handle is an opaque, comparable and stable reference to a storage unit.
// The zero Handle never names a unit and is used as the terminal sentinel
// in handle chains.
type Handle uuid.UUID

var NilHandle Handle

func NewHandle() Handle {
	return Handle(uuid.New())
}

func ParseHandle(s string) (Handle, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return NilHandle, err
	}
	return Handle(id), nil
}

func (h Handle) IsNil() bool {
	return h == NilHandle
}

func (h Handle) String() string {
	return uuid.UUID(h).String()
}
