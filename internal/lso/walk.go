package lso

import "github.com/lindend/lstack/internal/storage"

// walk visits live values newest first: the hot cache from its tail, warm
// chunks from the open one back, then cold pages from the head of the
// chain. Within a chunk entries are visited in reverse append order. The
// walk stops as soon as visit returns false, so only the chunks needed to
// answer a bounded read are opened.
func (s *Stack) walk(d *Descriptor, visit func(v []byte) bool) error {
	for i := len(d.Hot) - 1; i >= 0; i-- {
		if !visit(d.Hot[i]) {
			return nil
		}
	}

	more, err := s.walkChunks(d.Warm, visit)
	if err != nil || !more {
		return err
	}

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
		more, err := s.walkChunks(refs, visit)
		if err != nil || !more {
			return err
		}
		h = page.Next
	}
	return nil
}

func (s *Stack) walkChunks(refs []ChunkRef, visit func(v []byte) bool) (bool, error) {
	for i := len(refs) - 1; i >= 0; i-- {
		c, err := s.readChunk(refs[i].Handle)
		if err != nil {
			return false, err
		}
		if c.Len() < refs[i].Count {
			return false, corruptError("chunk %v holds %d entries, %d recorded", refs[i].Handle, c.Len(), refs[i].Count)
		}
		for j := refs[i].Count - 1; j >= refs[i].Skip; j-- {
			if !visit(c.Entry(j)) {
				return false, nil
			}
		}
	}
	return true, nil
}

// coldUnits lists the directory pages of the chain from the p-th page on,
// starting at h, and every live chunk they reference, without opening the
// chunks.
func (s *Stack) coldUnits(d *Descriptor, h storage.Handle, p int) ([]storage.Handle, error) {
	handles := []storage.Handle{}
	for ; p < d.ColdPages && !h.IsNil(); p++ {
		page, err := s.readDirPage(h)
		if err != nil {
			return nil, err
		}
		refs, err := d.pageRefs(p, page)
		if err != nil {
			return nil, err
		}
		handles = append(handles, h)
		for _, ref := range refs {
			handles = append(handles, ref.Handle)
		}
		h = page.Next
	}
	return handles, nil
}
