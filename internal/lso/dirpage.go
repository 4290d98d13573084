package lso

import "github.com/lindend/lstack/internal/storage"

// ChunkRef points at a chunk and records which of its entries are live:
// those from Skip up to Count. Entries past Count were left by a failed
// transfer, entries before Skip were trimmed.
type ChunkRef struct {
	Handle storage.Handle
	Count  int
	Skip   int `cbor:",omitempty"`
}

func (r ChunkRef) live() int {
	return r.Count - r.Skip
}

// A DirPage indexes cold chunks, oldest first, and links to the previously
// created page. The oldest page links to the nil handle.
type DirPage struct {
	Self   storage.Handle
	Mode   Mode
	Chunks []ChunkRef
	Next   storage.Handle
}

func decodeDirPage(data []byte) (*DirPage, error) {
	p := &DirPage{}
	if err := decMode.Unmarshal(data, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *DirPage) encode() ([]byte, error) {
	return encMode.Marshal(p)
}

func refItems(refs []ChunkRef) int64 {
	total := int64(0)
	for _, ref := range refs {
		total += int64(ref.live())
	}
	return total
}
