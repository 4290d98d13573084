package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"sync"
	"syscall"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog/log"
	"golang.org/x/exp/mmap"
)

const unitFileExtension = ".unit"
const tmpFileExtension = ".tmp"
const bloomFilterFileName = "units.bloom"

const bloomFalsePositiveRate = 0.01

const (
	dataEntry     byte = 0x01
	checksumEntry byte = 0x13
)

// kind + parent handle + data length
const unitHeaderLength = 1 + len(Handle{}) + 8

// checksum kind + xxhash64
const unitTrailerLength = 1 + 8

// FileStore keeps every unit in its own file under a root directory. A unit
// file is a data entry (parent handle and payload) followed by a checksum
// entry over everything before it. Handles that were ever issued are kept in
// a bloom filter so that lookups of unknown handles never touch the disk.
type FileStore struct {
	root   string
	filter *bloom.BloomFilter
	lock   sync.Mutex
}

// NewFileStore opens or creates a store in root. expectedUnits sizes the
// bloom filter when none exists yet.
func NewFileStore(root string, expectedUnits uint) (*FileStore, error) {
	if err := os.MkdirAll(root, 0750); err != nil {
		return nil, err
	}

	filter, err := loadBloomFilter(root)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if filter != nil {
		// The saved filter only covers units created before the last Sync.
		// Removing it makes a store that is not synced again rebuild on open.
		if err := os.Remove(path.Join(root, bloomFilterFileName)); err != nil {
			return nil, err
		}
	}

	if filter == nil {
		// No saved filter, rebuild it from the unit files on disk
		filter = bloom.NewWithEstimates(expectedUnits, bloomFalsePositiveRate)
		entries, err := os.ReadDir(root)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			name, ok := strings.CutSuffix(e.Name(), unitFileExtension)
			if !ok {
				continue
			}
			h, err := ParseHandle(name)
			if err != nil {
				continue
			}
			filter.Add(h[:])
		}
	}

	return &FileStore{
		root:   root,
		filter: filter,
	}, nil
}

func loadBloomFilter(root string) (*bloom.BloomFilter, error) {
	file, err := os.Open(path.Join(root, bloomFilterFileName))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	filter := &bloom.BloomFilter{}
	if _, err := filter.ReadFrom(file); err != nil {
		return nil, err
	}
	return filter, nil
}

// Sync saves the handle filter so the next NewFileStore does not have to
// rebuild it. The saved filter is consumed by that NewFileStore, so Sync
// must be called again before the store is dropped.
func (s *FileStore) Sync() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	file, err := os.Create(path.Join(s.root, bloomFilterFileName))
	if err != nil {
		return err
	}
	defer file.Close()

	if _, err := s.filter.WriteTo(file); err != nil {
		return err
	}
	return file.Sync()
}

func (s *FileStore) unitPath(h Handle) string {
	return path.Join(s.root, h.String()+unitFileExtension)
}

func encodeUnit(parent Handle, data []byte) []byte {
	buf := make([]byte, unitHeaderLength, unitHeaderLength+len(data)+unitTrailerLength)
	buf[0] = dataEntry
	copy(buf[1:], parent[:])
	binary.BigEndian.PutUint64(buf[1+len(parent):], uint64(len(data)))
	buf = append(buf, data...)

	sum := xxhash.Sum64(buf)
	buf = append(buf, checksumEntry)
	return binary.BigEndian.AppendUint64(buf, sum)
}

func decodeUnit(buf []byte) (parent Handle, data []byte, err error) {
	if len(buf) < unitHeaderLength+unitTrailerLength || buf[0] != dataEntry {
		return NilHandle, nil, ErrCorruptUnit
	}
	copy(parent[:], buf[1:])
	dataLen := binary.BigEndian.Uint64(buf[1+len(parent):])
	if dataLen != uint64(len(buf)-unitHeaderLength-unitTrailerLength) {
		return NilHandle, nil, ErrCorruptUnit
	}

	end := unitHeaderLength + int(dataLen)
	if buf[end] != checksumEntry {
		return NilHandle, nil, ErrCorruptUnit
	}
	if binary.BigEndian.Uint64(buf[end+1:]) != xxhash.Sum64(buf[:end]) {
		return NilHandle, nil, ErrCorruptUnit
	}

	data = make([]byte, dataLen)
	copy(data, buf[unitHeaderLength:end])
	return parent, data, nil
}

func (s *FileStore) writeUnit(h Handle, parent Handle, data []byte) error {
	tmpName := s.unitPath(h) + tmpFileExtension
	file, err := os.Create(tmpName)
	if err != nil {
		return err
	}

	_, err = file.Write(encodeUnit(parent, data))
	if err == nil {
		err = file.Sync()
	}
	err = errors.Join(err, file.Close())
	if err != nil {
		os.Remove(tmpName)
		return err
	}

	return os.Rename(tmpName, s.unitPath(h))
}

func capacityError(err error) error {
	if errors.Is(err, syscall.ENOSPC) {
		return fmt.Errorf("%w: %v", ErrCapacity, err)
	}
	return err
}

func (s *FileStore) Create(parent Handle) (Handle, error) {
	h := NewHandle()
	if err := s.writeUnit(h, parent, nil); err != nil {
		return NilHandle, capacityError(err)
	}

	s.lock.Lock()
	s.filter.Add(h[:])
	s.lock.Unlock()

	return h, nil
}

func (s *FileStore) Open(h Handle) (*Unit, error) {
	s.lock.Lock()
	known := s.filter.Test(h[:])
	s.lock.Unlock()
	if !known {
		return nil, ErrUnitNotFound
	}

	reader, err := mmap.Open(s.unitPath(h))
	if os.IsNotExist(err) {
		return nil, ErrUnitNotFound
	}
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	buf := make([]byte, reader.Len())
	if _, err := reader.ReadAt(buf, 0); err != nil {
		return nil, err
	}

	parent, data, err := decodeUnit(buf)
	if err != nil {
		log.Warn().Str("unit", h.String()).Msg("Unit failed checksum")
		return nil, fmt.Errorf("unit %v: %w", h, err)
	}

	// decodeUnit already copied the payload
	return &Unit{handle: h, parent: parent, data: data}, nil
}

func (s *FileStore) Update(u *Unit) error {
	if u.closed {
		return ErrUnitClosed
	}
	if _, err := os.Stat(s.unitPath(u.handle)); err != nil {
		if os.IsNotExist(err) {
			return ErrUnitNotFound
		}
		return err
	}
	return capacityError(s.writeUnit(u.handle, u.parent, u.data))
}

func (s *FileStore) Close(u *Unit) error {
	if u.closed {
		return ErrUnitClosed
	}
	u.closed = true
	return nil
}

func (s *FileStore) Delete(h Handle) error {
	err := os.Remove(s.unitPath(h))
	if os.IsNotExist(err) {
		return ErrUnitNotFound
	}
	return err
}
