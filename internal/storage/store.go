package storage

// Store is the storage substrate the stack engine is layered over. All
// mutations follow Open -> SetData -> Update -> Close, and every opened
// unit must be closed on all exit paths.
type Store interface {
	// Create allocates an empty unit owned by parent and returns its handle.
	Create(parent Handle) (Handle, error)
	Open(h Handle) (*Unit, error)
	// Update persists the current data of an open unit.
	Update(u *Unit) error
	Close(u *Unit) error
	Delete(h Handle) error
}

// Unit is an opened storage unit. Its data is a private copy; changes are
// only visible to other openers after Update.
type Unit struct {
	handle Handle
	parent Handle
	data   []byte
	closed bool
}

func newUnit(h Handle, parent Handle, data []byte) *Unit {
	buf := make([]byte, len(data))
	copy(buf, data)
	return &Unit{handle: h, parent: parent, data: buf}
}

func (u *Unit) Handle() Handle {
	return u.handle
}

func (u *Unit) Parent() Handle {
	return u.parent
}

func (u *Unit) Data() []byte {
	return u.data
}

func (u *Unit) SetData(data []byte) {
	u.data = data
}
