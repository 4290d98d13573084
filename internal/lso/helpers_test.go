package lso

import (
	"errors"
	"math/rand"
	"strconv"
	. "testing"

	"github.com/stretchr/testify/require"

	"github.com/lindend/lstack/internal/record"
	"github.com/lindend/lstack/internal/storage"
)

const testBin = "stack"

// Small tiers so that a few dozen pushes cross every threshold.
func smallOptions() Options {
	return Options{
		Mode:          ModeList,
		ChunkEntryMax: 3,
		HotMax:        4,
		HotTransfer:   2,
		WarmMax:       2,
		WarmTransfer:  1,
		ColdFanMax:    2,
	}
}

func newTestStack(t *T, opts Options) (*Stack, *storage.MemStore) {
	store := storage.NewMemStore(0)
	s, err := Create(record.New(), testBin, store, opts)
	require.NoError(t, err)
	return s, store
}

func value(i int) []byte {
	return []byte(strconv.Itoa(i))
}

func pushRange(t *T, s *Stack, from, to int) {
	for i := from; i <= to; i++ {
		require.NoError(t, s.Push(value(i), nil), "push %d", i)
	}
}

// Values from..to, newest first.
func reversed(from, to int) [][]byte {
	out := [][]byte{}
	for i := to; i >= from; i-- {
		out = append(out, value(i))
	}
	return out
}

func cloneDescriptor(t *T, d *Descriptor) *Descriptor {
	data, err := d.encode()
	require.NoError(t, err)
	c, err := decodeDescriptor(data)
	require.NoError(t, err)
	return c
}

func chunkValues(t *T, s *Stack, h storage.Handle) [][]byte {
	c, err := s.readChunk(h)
	require.NoError(t, err)
	out := [][]byte{}
	for i := 0; i < c.Len(); i++ {
		out = append(out, c.Entry(i))
	}
	return out
}

func warmValues(t *T, s *Stack, d *Descriptor) [][]byte {
	out := [][]byte{}
	_, err := s.walkChunks(d.Warm, func(v []byte) bool {
		out = append(out, v)
		return true
	})
	require.NoError(t, err)
	return out
}

var errInjected = errors.New("injected failure")

// faultyStore fails Create and Update calls at random, fails the failAt-th
// call of any kind, and counts opens.
type faultyStore struct {
	*storage.MemStore
	rnd      *rand.Rand
	failRate float64
	failAt   int
	calls    int
	opens    int
}

func newFaultyStore(seed int64, failRate float64) *faultyStore {
	return &faultyStore{
		MemStore: storage.NewMemStore(0),
		rnd:      rand.New(rand.NewSource(seed)),
		failRate: failRate,
	}
}

func (f *faultyStore) fail(random bool) bool {
	f.calls++
	if f.failAt > 0 && f.calls == f.failAt {
		return true
	}
	return random && f.failRate > 0 && f.rnd.Float64() < f.failRate
}

func (f *faultyStore) Create(parent storage.Handle) (storage.Handle, error) {
	if f.fail(true) {
		return storage.NilHandle, errInjected
	}
	return f.MemStore.Create(parent)
}

func (f *faultyStore) Open(h storage.Handle) (*storage.Unit, error) {
	f.opens++
	if f.fail(false) {
		return nil, errInjected
	}
	return f.MemStore.Open(h)
}

func (f *faultyStore) Update(u *storage.Unit) error {
	if f.fail(true) {
		return errInjected
	}
	return f.MemStore.Update(u)
}

func (f *faultyStore) Delete(h storage.Handle) error {
	if f.fail(false) {
		return errInjected
	}
	return f.MemStore.Delete(h)
}
