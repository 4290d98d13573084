package storage

import (
	"os"
	"path"
	. "testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreRoundTrip(t *T) {
	s, err := NewFileStore(t.TempDir(), 100)
	require.NoError(t, err)

	parent := NewHandle()
	h, err := s.Create(parent)
	require.NoError(t, err)

	u, err := s.Open(h)
	require.NoError(t, err)
	assert.Equal(t, parent, u.Parent())
	assert.Empty(t, u.Data())

	u.SetData([]byte("chunk data"))
	require.NoError(t, s.Update(u))
	require.NoError(t, s.Close(u))

	u, err = s.Open(h)
	require.NoError(t, err)
	assert.Equal(t, []byte("chunk data"), u.Data())
	assert.Equal(t, parent, u.Parent(), "Parent survives an update")
	require.NoError(t, s.Close(u))
}

func TestFileStoreUnknownHandle(t *T) {
	s, err := NewFileStore(t.TempDir(), 100)
	require.NoError(t, err)

	_, err = s.Open(NewHandle())
	assert.ErrorIs(t, err, ErrUnitNotFound)
	assert.ErrorIs(t, s.Delete(NewHandle()), ErrUnitNotFound)
}

func TestFileStoreDelete(t *T) {
	s, err := NewFileStore(t.TempDir(), 100)
	require.NoError(t, err)

	h, _ := s.Create(NilHandle)
	require.NoError(t, s.Delete(h))

	// The filter still knows the handle, the missing file decides
	_, err = s.Open(h)
	assert.ErrorIs(t, err, ErrUnitNotFound)

	u := &Unit{handle: h}
	assert.ErrorIs(t, s.Update(u), ErrUnitNotFound)
}

func TestFileStoreDetectsCorruption(t *T) {
	root := t.TempDir()
	s, err := NewFileStore(root, 100)
	require.NoError(t, err)

	h, _ := s.Create(NilHandle)
	u, _ := s.Open(h)
	u.SetData([]byte("some bytes that will be damaged"))
	require.NoError(t, s.Update(u))
	s.Close(u)

	fileName := path.Join(root, h.String()+unitFileExtension)
	raw, err := os.ReadFile(fileName)
	require.NoError(t, err)
	raw[unitHeaderLength+3] ^= 0xff
	require.NoError(t, os.WriteFile(fileName, raw, 0640))

	_, err = s.Open(h)
	assert.ErrorIs(t, err, ErrCorruptUnit)
}

func TestFileStoreReopen(t *T) {
	root := t.TempDir()
	s, err := NewFileStore(root, 100)
	require.NoError(t, err)

	saved, _ := s.Create(NilHandle)
	require.NoError(t, s.Sync())

	s, err = NewFileStore(root, 100)
	require.NoError(t, err)
	u, err := s.Open(saved)
	require.NoError(t, err)
	s.Close(u)

	_, err = os.Stat(path.Join(root, bloomFilterFileName))
	assert.True(t, os.IsNotExist(err), "Loaded filter is removed until the next Sync")
}

func TestFileStoreReopenWithoutSync(t *T) {
	root := t.TempDir()
	s, err := NewFileStore(root, 100)
	require.NoError(t, err)
	first, _ := s.Create(NilHandle)
	require.NoError(t, s.Sync())

	// Units created after the filter was loaded, then the process ends
	// without another Sync
	s, err = NewFileStore(root, 100)
	require.NoError(t, err)
	second, err := s.Create(NilHandle)
	require.NoError(t, err)

	s, err = NewFileStore(root, 100)
	require.NoError(t, err)
	for _, h := range []Handle{first, second} {
		u, err := s.Open(h)
		require.NoError(t, err, "Filter rebuilt from unit files")
		s.Close(u)
	}
	_, err = s.Open(NewHandle())
	assert.ErrorIs(t, err, ErrUnitNotFound)
}

func TestDecodeUnitRejectsShortBuffer(t *T) {
	_, _, err := decodeUnit([]byte{dataEntry, 0, 1})
	assert.ErrorIs(t, err, ErrCorruptUnit)

	buf := encodeUnit(NilHandle, []byte("abc"))
	_, data, err := decodeUnit(buf)
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), data)

	_, _, err = decodeUnit(buf[:len(buf)-1])
	assert.ErrorIs(t, err, ErrCorruptUnit)
}
