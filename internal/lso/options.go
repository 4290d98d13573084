package lso

import "fmt"

type Mode uint8

const (
	// ModeList stores each entry as a discrete value.
	ModeList Mode = 1
	// ModeBinary packs fixed-width entries into one byte buffer per chunk.
	ModeBinary Mode = 2
)

func (m Mode) String() string {
	switch m {
	case ModeList:
		return "list"
	case ModeBinary:
		return "binary"
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}

const (
	defaultChunkEntryMax = 100
	defaultChunkByteMax  = 2000
	defaultHotMax        = 100
	defaultHotTransfer   = 50
	defaultWarmMax       = 100
	defaultWarmTransfer  = 10
	defaultColdFanMax    = 100
)

// Options configures a stack when it is created. They cannot be changed
// afterwards.
type Options struct {
	Namespace string
	Set       string
	Mode      Mode
	// Entries per chunk in list mode
	ChunkEntryMax int
	// Bytes per chunk and bytes per entry in binary mode
	ChunkByteMax int
	EntryWidth   int
	// Hot cache size, and how many of its oldest entries move to the warm
	// tier when it overflows
	HotMax      int
	HotTransfer int
	// Warm chunk count, and how many of the oldest warm chunks are demoted
	// to the cold tier when it overflows
	WarmMax      int
	WarmTransfer int
	// Chunk references per cold directory page
	ColdFanMax int
}

func DefaultOptions() Options {
	return Options{
		Mode:          ModeList,
		ChunkEntryMax: defaultChunkEntryMax,
		ChunkByteMax:  defaultChunkByteMax,
		HotMax:        defaultHotMax,
		HotTransfer:   defaultHotTransfer,
		WarmMax:       defaultWarmMax,
		WarmTransfer:  defaultWarmTransfer,
		ColdFanMax:    defaultColdFanMax,
	}
}

func (o Options) Validate() error {
	switch o.Mode {
	case ModeList:
		if o.ChunkEntryMax <= 0 {
			return fmt.Errorf("%w: chunk entry max must be positive, got %d", ErrInvalidConfig, o.ChunkEntryMax)
		}
	case ModeBinary:
		if o.EntryWidth <= 0 {
			return fmt.Errorf("%w: entry width must be positive, got %d", ErrInvalidConfig, o.EntryWidth)
		}
		if o.ChunkByteMax < o.EntryWidth {
			return fmt.Errorf("%w: chunk byte max %d cannot hold an entry of %d bytes", ErrInvalidConfig, o.ChunkByteMax, o.EntryWidth)
		}
	default:
		return fmt.Errorf("%w: unknown %v", ErrInvalidConfig, o.Mode)
	}

	if o.HotMax <= 0 {
		return fmt.Errorf("%w: hot max must be positive, got %d", ErrInvalidConfig, o.HotMax)
	}
	if o.HotTransfer <= 0 || o.HotTransfer > o.HotMax {
		return fmt.Errorf("%w: hot transfer %d must be in [1, %d]", ErrInvalidConfig, o.HotTransfer, o.HotMax)
	}
	if o.WarmMax <= 0 {
		return fmt.Errorf("%w: warm max must be positive, got %d", ErrInvalidConfig, o.WarmMax)
	}
	if o.WarmTransfer <= 0 || o.WarmTransfer > o.WarmMax {
		return fmt.Errorf("%w: warm transfer %d must be in [1, %d]", ErrInvalidConfig, o.WarmTransfer, o.WarmMax)
	}
	if o.ColdFanMax <= 0 {
		return fmt.Errorf("%w: cold fan max must be positive, got %d", ErrInvalidConfig, o.ColdFanMax)
	}
	return nil
}

// entriesPerChunk is how many entries fit in one chunk.
func (o Options) entriesPerChunk() int {
	if o.Mode == ModeBinary {
		return o.ChunkByteMax / o.EntryWidth
	}
	return o.ChunkEntryMax
}
