package lso

import (
	"bytes"

	"github.com/rs/zerolog/log"

	"github.com/lindend/lstack/internal/storage"
)

// hotToWarm moves the oldest batch entries of the hot cache, in push
// order, into the open warm chunk and into new chunks once it is full.
//
// The descriptor is only saved after the whole push, so a failed transfer
// is retried from the same descriptor. The open chunk may then already hold
// the head of the batch past its recorded count; those entries are adopted
// instead of appended again.
func (s *Stack) hotToWarm(d *Descriptor, batch int) error {
	if batch > len(d.Hot) {
		batch = len(d.Hot)
	}
	if batch <= 0 {
		return nil
	}
	moving := d.Hot[:batch]
	perChunk := d.Options.entriesPerChunk()

	if n := len(d.Warm); n > 0 && d.Warm[n-1].Count < perChunk {
		tail := &d.Warm[n-1]
		appended := 0
		err := s.updateChunk(tail.Handle, func(c *Chunk) error {
			extra := c.Len() - tail.Count
			if extra < 0 {
				return corruptError("open chunk %v holds %d entries, %d recorded", tail.Handle, c.Len(), tail.Count)
			}

			adopted := 0
			for adopted < extra && adopted < len(moving) && bytes.Equal(c.Entry(tail.Count+adopted), moving[adopted]) {
				adopted++
			}
			if adopted < extra {
				c.cut(tail.Count + adopted)
			}

			appended = adopted + c.Append(moving[adopted:])
			return nil
		})
		if err != nil {
			return err
		}
		tail.Count += appended
		moving = moving[appended:]
	}

	for len(moving) > 0 {
		ref, err := s.createChunk(d.Self, d.Options, moving)
		if err != nil {
			return err
		}
		if ref.Count == 0 {
			return corruptError("new chunk %v accepted no entries", ref.Handle)
		}
		d.Warm = append(d.Warm, ref)
		moving = moving[ref.Count:]
	}

	d.Hot = append([][]byte(nil), d.Hot[batch:]...)

	log.Debug().
		Int("batch", batch).
		Int("hot", len(d.Hot)).
		Int("warmChunks", len(d.Warm)).
		Msg("Moved hot entries to warm tier")

	return nil
}

// warmToCold demotes the oldest warm chunks into the head directory page,
// starting a new head page whenever the current one is full. Chunk contents
// are not rewritten, only their parent moves to the page that now owns them.
// Refs past the recorded head page count were left by an earlier failed
// attempt and are overwritten.
func (s *Stack) warmToCold(d *Descriptor) (err error) {
	n := d.Options.WarmTransfer
	// The open chunk stays warm
	if n > len(d.Warm)-1 {
		n = len(d.Warm) - 1
	}
	if n <= 0 {
		return nil
	}
	demote := d.Warm[:n]

	var unit *storage.Unit
	var page *DirPage
	defer func() {
		if unit != nil {
			s.closeUnit(unit, &err)
		}
	}()

	flush := func() error {
		if err := s.writeUnit(unit, page.encode); err != nil {
			return err
		}
		u := unit
		unit = nil
		if cerr := s.store.Close(u); cerr != nil {
			return storageError("close", u.Handle(), cerr)
		}
		return nil
	}

	if !d.ColdHead.IsNil() {
		if unit, page, err = s.openDirPage(d.ColdHead); err != nil {
			return err
		}
		_, end, err := d.liveRange(0, page)
		if err != nil {
			return err
		}
		page.Chunks = page.Chunks[:end]
	}

	owners := make(map[storage.Handle]storage.Handle, len(demote))
	for _, ref := range demote {
		if page == nil || len(page.Chunks) >= d.Options.ColdFanMax {
			if unit != nil {
				if err := flush(); err != nil {
					return err
				}
			}

			h, err := s.store.Create(d.Self)
			if err != nil {
				return storageError("create directory page", d.Self, err)
			}
			if unit, err = s.store.Open(h); err != nil {
				unit = nil
				return storageError("open directory page", h, err)
			}
			page = &DirPage{Self: h, Mode: d.Options.Mode, Next: d.ColdHead}
			d.ColdHead = h
			d.ColdPages++
		}

		page.Chunks = append(page.Chunks, ref)
		owners[ref.Handle] = page.Self
	}
	if err := flush(); err != nil {
		return err
	}
	d.ColdHeadRefs = len(page.Chunks)

	for _, ref := range demote {
		owner := owners[ref.Handle]
		err := s.updateChunk(ref.Handle, func(c *Chunk) error {
			c.Parent = owner
			return nil
		})
		if err != nil {
			return err
		}
		d.ColdChunks++
		d.ColdItems += int64(ref.live())
	}

	d.Warm = append([]ChunkRef(nil), d.Warm[n:]...)

	log.Debug().
		Int("chunks", n).
		Int("warmChunks", len(d.Warm)).
		Int("coldPages", d.ColdPages).
		Str("coldHead", d.ColdHead.String()).
		Msg("Demoted warm chunks to cold tier")

	return nil
}
