package lso

import "github.com/lindend/lstack/internal/storage"

// Verify walks the whole tier structure and checks it against the
// descriptor: chunk owners, recorded entry counts, page fan-out and chain
// length, and the item count. It returns the first inconsistency found as
// ErrCorrupt. Orphaned units are not detected since nothing references them,
// and the chain is only followed for the recorded number of pages since the
// oldest page may still link to pages released by a trim.
func (s *Stack) Verify() error {
	d, err := s.load()
	if err != nil {
		return err
	}
	o := d.Options
	perChunk := o.entriesPerChunk()

	if len(d.Hot) > o.HotMax {
		return corruptError("hot cache holds %d entries, max %d", len(d.Hot), o.HotMax)
	}
	if len(d.Warm) > o.WarmMax {
		return corruptError("warm tier holds %d chunks, max %d", len(d.Warm), o.WarmMax)
	}

	checkChunk := func(ref ChunkRef, owner storage.Handle, open bool) error {
		c, err := s.readChunk(ref.Handle)
		if err != nil {
			return err
		}
		if c.Parent != owner {
			return corruptError("chunk %v is owned by %v, referenced from %v", ref.Handle, c.Parent, owner)
		}
		if c.Mode != o.Mode {
			return corruptError("chunk %v is in %v, stack is in %v", ref.Handle, c.Mode, o.Mode)
		}
		if ref.Count > perChunk || ref.Skip < 0 || ref.live() <= 0 {
			return corruptError("chunk %v records entries [%d, %d), capacity %d", ref.Handle, ref.Skip, ref.Count, perChunk)
		}
		// Only the open chunk may carry entries of an unfinished transfer
		if c.Len() < ref.Count || (!open && c.Len() != ref.Count) {
			return corruptError("chunk %v holds %d entries, %d recorded", ref.Handle, c.Len(), ref.Count)
		}
		return nil
	}

	warmItems := int64(0)
	for i, ref := range d.Warm {
		if err := checkChunk(ref, d.Self, i == len(d.Warm)-1); err != nil {
			return err
		}
		warmItems += int64(ref.live())
	}

	coldItems := int64(0)
	coldChunks := 0
	h := d.ColdHead
	for p := 0; p < d.ColdPages; p++ {
		if h.IsNil() {
			return corruptError("cold chain ends after %d of %d pages", p, d.ColdPages)
		}
		page, err := s.readDirPage(h)
		if err != nil {
			return err
		}
		refs, err := d.pageRefs(p, page)
		if err != nil {
			return err
		}
		if len(page.Chunks) > o.ColdFanMax {
			return corruptError("directory page %v holds %d chunks, max %d", h, len(page.Chunks), o.ColdFanMax)
		}
		for _, ref := range refs {
			if err := checkChunk(ref, page.Self, false); err != nil {
				return err
			}
		}
		coldItems += refItems(refs)
		coldChunks += len(refs)
		h = page.Next
	}

	if coldChunks != d.ColdChunks || coldItems != d.ColdItems {
		return corruptError("cold tier holds %d chunks and %d items, recorded %d and %d", coldChunks, coldItems, d.ColdChunks, d.ColdItems)
	}
	if total := int64(len(d.Hot)) + warmItems + coldItems; total != d.ItemCount {
		return corruptError("tiers hold %d items, item count is %d", total, d.ItemCount)
	}
	return nil
}
