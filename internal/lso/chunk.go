package lso

import (
	"github.com/lindend/lstack/internal/storage"
)

const chunkVersion uint16 = 1

// A Chunk holds a run of stack entries in append order. Exactly one of
// Values (list mode) and Packed (binary mode) is used, chosen at creation.
type Chunk struct {
	Parent     storage.Handle
	Mode       Mode
	Capacity   int // entries in list mode, bytes in binary mode
	EntryWidth int `cbor:",omitempty"`
	Used       int // entries in list mode, bytes in binary mode
	Version    uint16
	Values     [][]byte `cbor:",omitempty"`
	Packed     []byte   `cbor:",omitempty"`
}

func newChunk(parent storage.Handle, o Options) *Chunk {
	c := &Chunk{
		Parent:   parent,
		Mode:     o.Mode,
		Capacity: o.ChunkEntryMax,
		Version:  chunkVersion,
	}
	if o.Mode == ModeBinary {
		c.Capacity = o.ChunkByteMax
		c.EntryWidth = o.EntryWidth
	}
	return c
}

func decodeChunk(data []byte) (*Chunk, error) {
	c := &Chunk{}
	if err := decMode.Unmarshal(data, c); err != nil {
		return nil, err
	}
	if err := c.check(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Chunk) encode() ([]byte, error) {
	return encMode.Marshal(c)
}

func (c *Chunk) check() error {
	switch c.Mode {
	case ModeList:
		if len(c.Packed) > 0 {
			return corruptError("list chunk carries a packed payload")
		}
		if c.Used != len(c.Values) || c.Used > c.Capacity {
			return corruptError("list chunk uses %d of %d entries, holds %d", c.Used, c.Capacity, len(c.Values))
		}
	case ModeBinary:
		if len(c.Values) > 0 {
			return corruptError("binary chunk carries a value list")
		}
		if c.EntryWidth <= 0 || c.Used != len(c.Packed) || c.Used > c.Capacity || c.Used%c.EntryWidth != 0 {
			return corruptError("binary chunk uses %d of %d bytes, holds %d", c.Used, c.Capacity, len(c.Packed))
		}
	default:
		return corruptError("chunk has unknown %v", c.Mode)
	}
	return nil
}

// Len is the number of entries stored.
func (c *Chunk) Len() int {
	if c.Mode == ModeBinary {
		return c.Used / c.EntryWidth
	}
	return len(c.Values)
}

// Free is the number of entries that can still be appended.
func (c *Chunk) Free() int {
	if c.Mode == ModeBinary {
		return (c.Capacity - c.Used) / c.EntryWidth
	}
	return c.Capacity - len(c.Values)
}

// Append adds as many of values as fit and returns how many were added.
func (c *Chunk) Append(values [][]byte) int {
	n := c.Free()
	if n > len(values) {
		n = len(values)
	}

	for _, v := range values[:n] {
		if c.Mode == ModeBinary {
			c.Packed = append(c.Packed, v...)
			c.Used += c.EntryWidth
		} else {
			buf := make([]byte, len(v))
			copy(buf, v)
			c.Values = append(c.Values, buf)
			c.Used++
		}
	}
	return n
}

// Entry returns the i-th entry in append order.
func (c *Chunk) Entry(i int) []byte {
	if c.Mode == ModeBinary {
		return c.Packed[i*c.EntryWidth : (i+1)*c.EntryWidth]
	}
	return c.Values[i]
}

// cut keeps only the first n entries.
func (c *Chunk) cut(n int) {
	if c.Mode == ModeBinary {
		c.Packed = c.Packed[:n*c.EntryWidth]
		c.Used = len(c.Packed)
		return
	}
	c.Values = c.Values[:n]
	c.Used = n
}
