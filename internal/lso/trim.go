package lso

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/lindend/lstack/internal/storage"
)

// Trim keeps the newest n values and discards the rest. No chunk or
// directory page is rewritten, trimmed entries are hidden by the Skip
// watermarks of the new descriptor. Units that no longer hold live values
// are released after it has been saved, so a failed trim leaves the stack
// as it was and a failure while releasing can only orphan units.
func (s *Stack) Trim(n int) error {
	if n < 0 {
		return fmt.Errorf("%w: trim count %d", ErrInvalidArgument, n)
	}

	d, err := s.load()
	if err != nil {
		return err
	}
	if int64(n) >= d.ItemCount {
		return nil
	}

	var released []storage.Handle
	if n <= len(d.Hot) {
		released, err = s.coldUnits(d, d.ColdHead, 0)
		if err != nil {
			return err
		}
		for _, ref := range d.Warm {
			released = append(released, ref.Handle)
		}

		d.Hot = append([][]byte(nil), d.Hot[len(d.Hot)-n:]...)
		d.Warm = nil
		d.clearCold()
	} else {
		released, err = s.trimTiers(d, n-len(d.Hot))
		if err != nil {
			return err
		}
	}
	d.ItemCount = int64(n)

	if err := s.save(d); err != nil {
		return err
	}

	log.Debug().
		Int("keep", n).
		Int("released", len(released)).
		Msg("Trimmed stack")

	return s.release(released)
}

// keepRefs walks refs newest first keeping remaining entries. It returns
// the index of the oldest kept ref, whose Skip is raised so that only its
// newest entries stay live, and the entries still to keep after refs.
func keepRefs(refs []ChunkRef, remaining int) (int, int) {
	i := len(refs) - 1
	for ; i >= 0 && remaining > 0; i-- {
		ref := &refs[i]
		if ref.live() > remaining {
			ref.Skip = ref.Count - remaining
		}
		remaining -= ref.live()
	}
	return i + 1, remaining
}

// trimTiers keeps the whole hot cache plus remaining entries from the warm
// and cold tiers, and returns the units to release. It only reads units.
func (s *Stack) trimTiers(d *Descriptor, remaining int) ([]storage.Handle, error) {
	released := []storage.Handle{}

	first, remaining := keepRefs(d.Warm, remaining)
	for _, ref := range d.Warm[:first] {
		released = append(released, ref.Handle)
	}
	d.Warm = append([]ChunkRef(nil), d.Warm[first:]...)

	if remaining == 0 {
		cold, err := s.coldUnits(d, d.ColdHead, 0)
		if err != nil {
			return nil, err
		}
		d.clearCold()
		return append(released, cold...), nil
	}

	coldItems := int64(remaining)
	coldChunks := 0
	h := d.ColdHead
	for p := 0; p < d.ColdPages; p++ {
		if h.IsNil() {
			return nil, corruptError("cold chain ends after %d of %d pages", p, d.ColdPages)
		}
		page, err := s.readDirPage(h)
		if err != nil {
			return nil, err
		}
		start, _, err := d.liveRange(p, page)
		if err != nil {
			return nil, err
		}
		refs, err := d.pageRefs(p, page)
		if err != nil {
			return nil, err
		}

		first, remaining = keepRefs(refs, remaining)
		coldChunks += len(refs) - first
		if remaining > 0 {
			h = page.Next
			continue
		}

		// This page becomes the oldest, its older refs and every older page
		// are released
		for _, ref := range refs[:first] {
			released = append(released, ref.Handle)
		}
		older, err := s.coldUnits(d, page.Next, p+1)
		if err != nil {
			return nil, err
		}
		released = append(released, older...)

		d.ColdTailRefSkip = start + first
		d.ColdTailEntrySkip = refs[first].Skip - page.Chunks[start+first].Skip
		d.ColdPages = p + 1
		d.ColdChunks = coldChunks
		d.ColdItems = coldItems
		return released, nil
	}
	return nil, corruptError("stack holds fewer entries than its item count")
}
