package lso

import (
	"errors"

	"github.com/lindend/lstack/internal/storage"
)

// Scoped access to chunks and directory pages. Every unit opened here is
// closed before the helper returns.

func (s *Stack) closeUnit(u *storage.Unit, err *error) {
	if cerr := s.store.Close(u); cerr != nil && *err == nil {
		*err = storageError("close", u.Handle(), cerr)
	}
}

func (s *Stack) readChunk(h storage.Handle) (c *Chunk, err error) {
	u, err := s.store.Open(h)
	if err != nil {
		return nil, storageError("open chunk", h, err)
	}
	defer s.closeUnit(u, &err)

	c, err = decodeChunk(u.Data())
	if err != nil {
		return nil, wrapDecodeError("chunk", h, err)
	}
	return c, nil
}

// updateChunk applies fn to the chunk and writes it back.
func (s *Stack) updateChunk(h storage.Handle, fn func(c *Chunk) error) (err error) {
	u, err := s.store.Open(h)
	if err != nil {
		return storageError("open chunk", h, err)
	}
	defer s.closeUnit(u, &err)

	c, err := decodeChunk(u.Data())
	if err != nil {
		return wrapDecodeError("chunk", h, err)
	}
	if err := fn(c); err != nil {
		return err
	}
	return s.writeUnit(u, c.encode)
}

// createChunk allocates a chunk owned by parent holding as many of values
// as fit, and returns a reference to it.
func (s *Stack) createChunk(parent storage.Handle, o Options, values [][]byte) (ref ChunkRef, err error) {
	h, err := s.store.Create(parent)
	if err != nil {
		return ChunkRef{}, storageError("create chunk", parent, err)
	}
	u, err := s.store.Open(h)
	if err != nil {
		return ChunkRef{}, storageError("open chunk", h, err)
	}
	defer s.closeUnit(u, &err)

	c := newChunk(parent, o)
	n := c.Append(values)
	if err := s.writeUnit(u, c.encode); err != nil {
		return ChunkRef{}, err
	}
	return ChunkRef{Handle: h, Count: n}, nil
}

func (s *Stack) readDirPage(h storage.Handle) (p *DirPage, err error) {
	u, p, err := s.openDirPage(h)
	if err != nil {
		return nil, err
	}
	defer s.closeUnit(u, &err)
	return p, nil
}

// openDirPage leaves the page unit open for the caller to update and close.
func (s *Stack) openDirPage(h storage.Handle) (*storage.Unit, *DirPage, error) {
	u, err := s.store.Open(h)
	if err != nil {
		return nil, nil, storageError("open directory page", h, err)
	}

	p, err := decodeDirPage(u.Data())
	if err == nil && p.Self != h {
		err = corruptError("directory page %v claims to be %v", h, p.Self)
	}
	if err != nil {
		s.store.Close(u)
		return nil, nil, wrapDecodeError("directory page", h, err)
	}
	return u, p, nil
}

func (s *Stack) writeUnit(u *storage.Unit, encode func() ([]byte, error)) error {
	data, err := encode()
	if err != nil {
		return err
	}
	u.SetData(data)
	if err := s.store.Update(u); err != nil {
		return storageError("update", u.Handle(), err)
	}
	return nil
}

// release deletes units that are no longer referenced. Units that are
// already gone are skipped so a release can be retried.
func (s *Stack) release(handles []storage.Handle) error {
	var errs []error
	for _, h := range handles {
		err := s.store.Delete(h)
		if err != nil && !errors.Is(err, storage.ErrUnitNotFound) {
			errs = append(errs, storageError("delete", h, err))
		}
	}
	return errors.Join(errs...)
}

func wrapDecodeError(what string, h storage.Handle, err error) error {
	if errors.Is(err, ErrCorrupt) {
		return err
	}
	return corruptError("%s %v: %v", what, h, err)
}
