package lso

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/lindend/lstack/internal/storage"
)

// Bins is the head record a stack descriptor is kept in.
type Bins interface {
	Get(bin string) ([]byte, bool)
	Put(bin string, data []byte) error
	Delete(bin string) error
}

// A Stack is a large LIFO stack whose descriptor lives in one bin of a head
// record while its older entries live in chunks in a store. A Stack does
// no locking, operations on the same bin must be serialized by the caller.
type Stack struct {
	bins  Bins
	bin   string
	store storage.Store
}

type Stats struct {
	ItemCount  int64
	HotItems   int
	WarmChunks int
	WarmItems  int64
	ColdPages  int
	ColdChunks int
	ColdItems  int64
}

// Create initializes a new stack in bin.
func Create(bins Bins, bin string, store storage.Store, opts Options) (*Stack, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	if data, exists := bins.Get(bin); exists {
		if _, err := decodeDescriptor(data); err == nil {
			return nil, fmt.Errorf("%w: bin %q", ErrAlreadyExists, bin)
		}
	}

	s := &Stack{bins: bins, bin: bin, store: store}
	if err := s.save(newDescriptor(opts)); err != nil {
		return nil, err
	}
	return s, nil
}

// Open binds to the stack already created in bin.
func Open(bins Bins, bin string, store storage.Store) (*Stack, error) {
	s := &Stack{bins: bins, bin: bin, store: store}
	if _, err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Stack) load() (*Descriptor, error) {
	data, exists := s.bins.Get(s.bin)
	if !exists {
		return nil, fmt.Errorf("%w: bin %q is empty", ErrNotFound, s.bin)
	}
	d, err := decodeDescriptor(data)
	if err != nil {
		return nil, fmt.Errorf("%w: bin %q", err, s.bin)
	}
	return d, nil
}

func (s *Stack) save(d *Descriptor) error {
	data, err := d.encode()
	if err != nil {
		return err
	}
	if err := s.bins.Put(s.bin, data); err != nil {
		return fmt.Errorf("%w: write bin %q: %w", ErrStorageFailure, s.bin, err)
	}
	return nil
}

// Push adds value to the top of the stack. When transform drops the value
// nothing is pushed.
func (s *Stack) Push(value []byte, transform Transform) error {
	d, err := s.load()
	if err != nil {
		return err
	}

	if transform != nil {
		v, ok := transform(value)
		if !ok {
			return nil
		}
		value = v
	}

	if d.Options.Mode == ModeBinary && len(value) != d.Options.EntryWidth {
		return fmt.Errorf("%w: value is %d bytes, binary stack entries are %d", ErrInvalidArgument, len(value), d.Options.EntryWidth)
	}

	buf := make([]byte, len(value))
	copy(buf, value)
	d.Hot = append(d.Hot, buf)
	d.ItemCount++

	if len(d.Hot) > d.Options.HotMax {
		if err := s.hotToWarm(d, d.Options.HotTransfer); err != nil {
			return err
		}
		// One transfer can open more chunks than a demotion moves
		for len(d.Warm) > d.Options.WarmMax {
			if err := s.warmToCold(d); err != nil {
				return err
			}
		}
	}

	return s.save(d)
}

// Peek returns up to n values, most recently pushed first. When filter is
// set it maps every candidate and only accepted values count towards n.
func (s *Stack) Peek(n int, filter Transform) ([][]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: peek count %d", ErrInvalidArgument, n)
	}

	d, err := s.load()
	if err != nil {
		return nil, err
	}

	capacity := int64(n)
	if capacity > d.ItemCount {
		capacity = d.ItemCount
	}
	result := make([][]byte, 0, capacity)
	if n == 0 {
		return result, nil
	}

	err = s.walk(d, func(v []byte) bool {
		if v = accept(v, filter); v != nil {
			result = append(result, v)
		}
		return len(result) < n
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Scan returns every value, most recently pushed first.
func (s *Stack) Scan(filter Transform) ([][]byte, error) {
	d, err := s.load()
	if err != nil {
		return nil, err
	}

	result := make([][]byte, 0, d.ItemCount)
	err = s.walk(d, func(v []byte) bool {
		if v = accept(v, filter); v != nil {
			result = append(result, v)
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// accept returns a private copy of the filtered value, nil if it was dropped.
func accept(v []byte, filter Transform) []byte {
	if filter != nil {
		out, ok := filter(v)
		if !ok {
			return nil
		}
		v = out
	}
	buf := make([]byte, len(v))
	copy(buf, v)
	return buf
}

func (s *Stack) Size() (int64, error) {
	d, err := s.load()
	if err != nil {
		return 0, err
	}
	return d.ItemCount, nil
}

func (s *Stack) Config() (Options, error) {
	d, err := s.load()
	if err != nil {
		return Options{}, err
	}
	return d.Options, nil
}

func (s *Stack) Stats() (Stats, error) {
	d, err := s.load()
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		ItemCount:  d.ItemCount,
		HotItems:   len(d.Hot),
		WarmChunks: len(d.Warm),
		WarmItems:  d.warmItems(),
		ColdPages:  d.ColdPages,
		ColdChunks: d.ColdChunks,
		ColdItems:  d.ColdItems,
	}, nil
}

// Destroy releases every chunk and directory page and removes the stack
// from its bin.
func (s *Stack) Destroy() error {
	d, err := s.load()
	if err != nil {
		return err
	}

	handles, err := s.coldUnits(d, d.ColdHead, 0)
	if err != nil {
		return err
	}
	for _, ref := range d.Warm {
		handles = append(handles, ref.Handle)
	}

	if err := s.bins.Delete(s.bin); err != nil {
		return fmt.Errorf("%w: delete bin %q: %w", ErrStorageFailure, s.bin, err)
	}

	log.Info().
		Str("bin", s.bin).
		Int64("items", d.ItemCount).
		Int("units", len(handles)).
		Msg("Destroyed stack")

	return s.release(handles)
}
