package record

import (
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/lindend/lstack/internal/wal"
)

const (
	binKindPut    uint64 = 0x2000
	binKindDelete uint64 = 0x2001
)

// Rewrite the log once it holds this many superseded entries
const compactThreshold = 1024

// A Record is a set of named bins, each holding opaque bytes. A record
// opened from a file logs every bin change to a WAL and rebuilds its bins by
// replaying that log.
type Record struct {
	bins       map[string][]byte
	log        *wal.WAL
	superseded int
	lock       sync.RWMutex
}

// New creates a record that only lives in memory.
func New() *Record {
	return &Record{bins: map[string][]byte{}}
}

// Open loads the record logged in fileName, creating it if needed.
func Open(fileName string) (*Record, error) {
	entries, err := wal.LoadWAL(fileName)
	if err != nil {
		return nil, err
	}

	r := New()
	for _, e := range entries {
		r.apply(e.Kind, e.Key, e.Data)
	}

	r.log, err = wal.NewWAL(fileName)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Record) Get(bin string) ([]byte, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	data, exists := r.bins[bin]
	return data, exists
}

func (r *Record) Put(bin string, data []byte) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	buf := make([]byte, len(data))
	copy(buf, data)

	if r.log != nil {
		if err := r.log.Write(binKindPut, bin, buf); err != nil {
			return err
		}
	}
	r.apply(binKindPut, bin, buf)
	r.maybeCompact()
	return nil
}

func (r *Record) Delete(bin string) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if _, exists := r.bins[bin]; !exists {
		return nil
	}
	if r.log != nil {
		if err := r.log.Write(binKindDelete, bin, nil); err != nil {
			return err
		}
	}
	r.apply(binKindDelete, bin, nil)
	r.maybeCompact()
	return nil
}

// apply changes a bin and counts the log entries the change supersedes, the
// same way for live writes and for replay.
func (r *Record) apply(kind uint64, bin string, data []byte) {
	_, exists := r.bins[bin]
	switch kind {
	case binKindPut:
		if exists {
			r.superseded++
		}
		r.bins[bin] = data
	case binKindDelete:
		if exists {
			// The delete entry and the put it removes
			r.superseded += 2
		}
		delete(r.bins, bin)
	}
}

// Bins lists the bin names in sorted order.
func (r *Record) Bins() []string {
	r.lock.RLock()
	defer r.lock.RUnlock()

	names := make([]string, 0, len(r.bins))
	for name := range r.bins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// maybeCompact rewrites the log once enough entries are superseded. The
// change that triggered it is already logged, so a failed rewrite is only
// logged and tried again on the next change.
func (r *Record) maybeCompact() {
	if r.log == nil || r.superseded < compactThreshold {
		return
	}

	entries := make([]wal.WALEntry, 0, len(r.bins))
	for name, data := range r.bins {
		entries = append(entries, wal.WALEntry{Kind: binKindPut, Key: name, Data: data})
	}
	if err := r.log.Rewrite(entries); err != nil {
		log.Warn().Err(err).Int("superseded", r.superseded).Msg("Record log compaction failed")
		return
	}
	r.superseded = 0
}

func (r *Record) Close() error {
	if r.log == nil {
		return nil
	}
	return r.log.Close()
}
