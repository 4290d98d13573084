package storage

import (
	"sync"

	"github.com/lindend/lstack/internal/collections"
)

const memStoreLayers = 16

type memUnit struct {
	parent Handle
	data   []byte
}

// MemStore keeps units in memory, indexed by handle. It is safe for
// concurrent use.
type MemStore struct {
	units    *collections.SkipList[string, *memUnit]
	maxUnits int
	open     int
	lock     sync.Mutex
}

// NewMemStore creates an in-memory store. A maxUnits of zero means unbounded,
// otherwise Create fails with ErrCapacity once maxUnits units are live.
func NewMemStore(maxUnits int) *MemStore {
	return &MemStore{
		units:    collections.NewSkipList[string, *memUnit](memStoreLayers),
		maxUnits: maxUnits,
	}
}

func (s *MemStore) Create(parent Handle) (Handle, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.maxUnits > 0 && s.units.Len() >= s.maxUnits {
		return NilHandle, ErrCapacity
	}

	h := NewHandle()
	s.units.Insert(h.String(), &memUnit{parent: parent})
	return h, nil
}

func (s *MemStore) Open(h Handle) (*Unit, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	mu, exists := s.units.Get(h.String())
	if !exists {
		return nil, ErrUnitNotFound
	}
	s.open++
	return newUnit(h, mu.parent, mu.data), nil
}

func (s *MemStore) Update(u *Unit) error {
	if u.closed {
		return ErrUnitClosed
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	mu, exists := s.units.Get(u.handle.String())
	if !exists {
		return ErrUnitNotFound
	}
	mu.data = make([]byte, len(u.data))
	copy(mu.data, u.data)
	return nil
}

func (s *MemStore) Close(u *Unit) error {
	if u.closed {
		return ErrUnitClosed
	}
	u.closed = true

	s.lock.Lock()
	s.open--
	s.lock.Unlock()
	return nil
}

func (s *MemStore) Delete(h Handle) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if _, removed := s.units.Delete(h.String()); !removed {
		return ErrUnitNotFound
	}
	return nil
}

// Len is the number of live units.
func (s *MemStore) Len() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.units.Len()
}

// OpenUnits is the number of units opened and not yet closed.
func (s *MemStore) OpenUnits() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.open
}

// Handles lists live units in handle order.
func (s *MemStore) Handles() []Handle {
	s.lock.Lock()
	defer s.lock.Unlock()

	handles := make([]Handle, 0, s.units.Len())
	for e := s.units.Iterate(); e != nil; e = e.Next() {
		h, err := ParseHandle(e.Key())
		if err != nil {
			continue
		}
		handles = append(handles, h)
	}
	return handles
}
