package db

import (
	"errors"
	"os"
	"path"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/lindend/lstack/internal/lso"
	"github.com/lindend/lstack/internal/record"
	"github.com/lindend/lstack/internal/storage"
)

const (
	recordFileName = "record.wal"
	unitsDirName   = "units"
)

// Sizes the unit filter of a new collection
const expectedUnits = 1 << 20

// A Collection is one head record on disk whose bins each hold a stack, and
// the file store their chunks and directory pages live in. Operations on the
// same bin are serialized, operations on different bins run in parallel.
type Collection struct {
	rootDir string
	record  *record.Record
	store   *storage.FileStore

	binLocks map[string]*sync.Mutex
	lock     sync.Mutex
}

func NewCollection(rootDir string, name string) (*Collection, error) {
	dir := path.Join(rootDir, name)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, err
	}

	store, err := storage.NewFileStore(path.Join(dir, unitsDirName), expectedUnits)
	if err != nil {
		return nil, err
	}
	rec, err := record.Open(path.Join(dir, recordFileName))
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("dir", dir).
		Int("bins", len(rec.Bins())).
		Msg("Opened collection")

	return &Collection{
		rootDir:  dir,
		record:   rec,
		store:    store,
		binLocks: map[string]*sync.Mutex{},
	}, nil
}

func (c *Collection) binLock(bin string) *sync.Mutex {
	c.lock.Lock()
	defer c.lock.Unlock()

	l, exists := c.binLocks[bin]
	if !exists {
		l = &sync.Mutex{}
		c.binLocks[bin] = l
	}
	return l
}

// withStack runs fn against the stack in bin while holding the bin lock.
func (c *Collection) withStack(bin string, fn func(s *lso.Stack) error) error {
	l := c.binLock(bin)
	l.Lock()
	defer l.Unlock()

	s, err := lso.Open(c.record, bin, c.store)
	if err != nil {
		return err
	}
	return fn(s)
}

// Create starts a new stack in bin.
func (c *Collection) Create(bin string, opts lso.Options) error {
	l := c.binLock(bin)
	l.Lock()
	defer l.Unlock()

	_, err := lso.Create(c.record, bin, c.store, opts)
	return err
}

func (c *Collection) Push(bin string, value []byte, transform lso.Transform) error {
	return c.withStack(bin, func(s *lso.Stack) error {
		return s.Push(value, transform)
	})
}

// PushAll pushes values in order, stopping at the first failure.
func (c *Collection) PushAll(bin string, values [][]byte, transform lso.Transform) error {
	return c.withStack(bin, func(s *lso.Stack) error {
		for _, v := range values {
			if err := s.Push(v, transform); err != nil {
				return err
			}
		}
		return nil
	})
}

func (c *Collection) Peek(bin string, n int, filter lso.Transform) (values [][]byte, err error) {
	err = c.withStack(bin, func(s *lso.Stack) error {
		values, err = s.Peek(n, filter)
		return err
	})
	return values, err
}

func (c *Collection) Scan(bin string, filter lso.Transform) (values [][]byte, err error) {
	err = c.withStack(bin, func(s *lso.Stack) error {
		values, err = s.Scan(filter)
		return err
	})
	return values, err
}

func (c *Collection) Trim(bin string, n int) error {
	return c.withStack(bin, func(s *lso.Stack) error {
		return s.Trim(n)
	})
}

func (c *Collection) Size(bin string) (size int64, err error) {
	err = c.withStack(bin, func(s *lso.Stack) error {
		size, err = s.Size()
		return err
	})
	return size, err
}

func (c *Collection) Config(bin string) (opts lso.Options, err error) {
	err = c.withStack(bin, func(s *lso.Stack) error {
		opts, err = s.Config()
		return err
	})
	return opts, err
}

func (c *Collection) Stats(bin string) (stats lso.Stats, err error) {
	err = c.withStack(bin, func(s *lso.Stack) error {
		stats, err = s.Stats()
		return err
	})
	return stats, err
}

func (c *Collection) Verify(bin string) error {
	return c.withStack(bin, func(s *lso.Stack) error {
		return s.Verify()
	})
}

func (c *Collection) Destroy(bin string) error {
	return c.withStack(bin, func(s *lso.Stack) error {
		return s.Destroy()
	})
}

// Bins lists the bins of the head record in sorted order.
func (c *Collection) Bins() []string {
	return c.record.Bins()
}

// Close saves the unit filter and closes the record log.
func (c *Collection) Close() error {
	return errors.Join(c.store.Sync(), c.record.Close())
}
