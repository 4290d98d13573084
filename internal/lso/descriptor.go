package lso

import (
	"github.com/cespare/xxhash/v2"

	"github.com/lindend/lstack/internal/storage"
)

const (
	descriptorMagic   uint32 = 0x4c534f31 // "LSO1"
	descriptorVersion uint16 = 1
)

// Descriptor is the control state of one stack. It lives in a bin of the
// head record and is rewritten at the end of every mutating operation, so
// a failed operation leaves the previous descriptor in place.
type Descriptor struct {
	// Identity of the stack, the parent of its warm chunks and directory pages
	Self    storage.Handle
	Options Options

	ItemCount int64

	// Hot cache in push order, the last entry is the top of the stack
	Hot [][]byte
	// Warm chunks oldest first, the last one is open for appends
	Warm []ChunkRef

	// Newest directory page, and the size of the cold tier
	ColdHead   storage.Handle
	ColdPages  int
	ColdChunks int
	ColdItems  int64
	// Live refs in the head page. Refs past it were left by a failed
	// demotion and are not part of the stack.
	ColdHeadRefs int
	// Trimmed refs at the start of the oldest page, and trimmed entries of
	// the first ref still live there on top of its own Skip
	ColdTailRefSkip   int `cbor:",omitempty"`
	ColdTailEntrySkip int `cbor:",omitempty"`
}

type envelope struct {
	Magic   uint32
	Version uint16
	Sum     uint64
	Body    []byte
}

func newDescriptor(o Options) *Descriptor {
	return &Descriptor{
		Self:    storage.NewHandle(),
		Options: o,
	}
}

func (d *Descriptor) encode() ([]byte, error) {
	body, err := encMode.Marshal(d)
	if err != nil {
		return nil, err
	}
	return encMode.Marshal(envelope{
		Magic:   descriptorMagic,
		Version: descriptorVersion,
		Sum:     xxhash.Sum64(body),
		Body:    body,
	})
}

// decodeDescriptor returns ErrNotFound for anything that is not an intact
// descriptor of the current version.
func decodeDescriptor(data []byte) (*Descriptor, error) {
	env := envelope{}
	if err := decMode.Unmarshal(data, &env); err != nil {
		return nil, ErrNotFound
	}
	if env.Magic != descriptorMagic || env.Version != descriptorVersion {
		return nil, ErrNotFound
	}
	if xxhash.Sum64(env.Body) != env.Sum {
		return nil, ErrNotFound
	}

	d := &Descriptor{}
	if err := decMode.Unmarshal(env.Body, d); err != nil {
		return nil, ErrNotFound
	}
	if d.Options.Validate() != nil {
		return nil, ErrNotFound
	}
	return d, nil
}

func (d *Descriptor) warmItems() int64 {
	return refItems(d.Warm)
}

func (d *Descriptor) clearCold() {
	d.ColdHead = storage.NilHandle
	d.ColdPages = 0
	d.ColdChunks = 0
	d.ColdItems = 0
	d.ColdHeadRefs = 0
	d.ColdTailRefSkip = 0
	d.ColdTailEntrySkip = 0
}

// liveRange is the range of refs of the p-th page of the cold chain,
// counting from the head, that are part of the stack.
func (d *Descriptor) liveRange(p int, page *DirPage) (int, int, error) {
	start, end := 0, len(page.Chunks)
	if p == 0 {
		if end < d.ColdHeadRefs {
			return 0, 0, corruptError("head page %v holds %d chunks, %d recorded", page.Self, end, d.ColdHeadRefs)
		}
		end = d.ColdHeadRefs
	}
	if p == d.ColdPages-1 {
		start = d.ColdTailRefSkip
	}
	if start >= end {
		return 0, 0, corruptError("page %v has no live chunks in [%d, %d)", page.Self, start, end)
	}
	return start, end, nil
}

// pageRefs returns a copy of the live refs of the p-th page, with the
// trimmed entries of the oldest page applied.
func (d *Descriptor) pageRefs(p int, page *DirPage) ([]ChunkRef, error) {
	start, end, err := d.liveRange(p, page)
	if err != nil {
		return nil, err
	}
	refs := append([]ChunkRef(nil), page.Chunks[start:end]...)
	if p == d.ColdPages-1 {
		refs[0].Skip += d.ColdTailEntrySkip
		if refs[0].live() <= 0 {
			return nil, corruptError("chunk %v has %d live entries", refs[0].Handle, refs[0].live())
		}
	}
	return refs, nil
}
