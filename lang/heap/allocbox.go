package heap

import (
	"fmt"

	"github.com/dolthub/swiss"
	"github.com/mna/nenuphar-gc/lang/binding"
)

// AllocBox is the tri-colour tracing heap: every resident pointee lives in
// exactly one of white (reclaimable), grey (reachable, children not yet
// visited) or black (reachable, children visited). The three sets are kept
// as swiss.Map instances, the same hash table the machine package uses for
// its user-facing Map value, since this is the same "large, churny set of
// comparable keys" shape.
type AllocBox struct {
	white *swiss.Map[binding.UniqueBinding, Pointee]
	grey  *swiss.Map[binding.UniqueBinding, Pointee]
	black *swiss.Map[binding.UniqueBinding, Pointee]
}

// NewAllocBox returns an empty heap.
func NewAllocBox() *AllocBox {
	return &AllocBox{
		white: swiss.NewMap[binding.UniqueBinding, Pointee](0),
		grey:  swiss.NewMap[binding.UniqueBinding, Pointee](0),
		black: swiss.NewMap[binding.UniqueBinding, Pointee](0),
	}
}

// Alloc places ptr in the grey set under u. It fails with ErrAlloc if u is
// already resident in any of the three sets.
func (h *AllocBox) Alloc(u binding.UniqueBinding, ptr Pointee) error {
	if h.IsAllocated(u) {
		return fmt.Errorf("%w: %s", ErrAlloc, u)
	}
	h.grey.Put(u, ptr)
	return nil
}

// UpdatePtr replaces the pointee resident under u with ptr, moving it to
// grey (an update asserts reachability). It fails with ErrHeapUpdate if u is
// absent.
//
// Any child reachable from the old pointee but not from ptr is condemned:
// an in-place edit (e.g. an object losing an entry) is the only way a child
// stops being referenced without an explicit condemn of its own, so the
// write itself must account for it. If the child is still reachable some
// other way, the next mark_ptrs re-greys it.
func (h *AllocBox) UpdatePtr(u binding.UniqueBinding, ptr Pointee) error {
	old, ok := h.takeFromAnySet(u)
	if !ok {
		return fmt.Errorf("%w: %s", ErrHeapUpdate, u)
	}
	h.grey.Put(u, ptr)

	stillChild := make(map[binding.UniqueBinding]struct{})
	for _, c := range ptr.Children() {
		stillChild[c] = struct{}{}
	}
	for _, c := range old.Children() {
		if _, ok := stillChild[c]; !ok {
			_ = h.Condemn(c)
		}
	}
	return nil
}

// Condemn moves u to the white set. It fails with ErrHeapUpdate if u is
// absent.
func (h *AllocBox) Condemn(u binding.UniqueBinding) error {
	p, ok := h.takeFromAnySet(u)
	if !ok {
		return fmt.Errorf("%w: %s", ErrHeapUpdate, u)
	}
	h.white.Put(u, p)
	return nil
}

// Find looks up u across all three sets and returns a structural copy of its
// pointee, safe for the caller to mutate without affecting the heap.
func (h *AllocBox) Find(u binding.UniqueBinding) (Pointee, bool) {
	if p, ok := h.white.Get(u); ok {
		return p.Clone(), true
	}
	if p, ok := h.grey.Get(u); ok {
		return p.Clone(), true
	}
	if p, ok := h.black.Get(u); ok {
		return p.Clone(), true
	}
	return Pointee{}, false
}

// IsAllocated reports whether u is resident in any of the three sets.
func (h *AllocBox) IsAllocated(u binding.UniqueBinding) bool {
	if h.white.Has(u) {
		return true
	}
	if h.grey.Has(u) {
		return true
	}
	return h.black.Has(u)
}

// MarkPtrs advances one wavefront: every grey member moves to black, and
// every white child reachable from a (now-black) former grey member moves to
// grey. A single call is one mark pass; long reference chains may need
// several calls before sweep to fully mark, which matches the source's
// single-wavefront-per-cycle design (see spec.md §4.1).
func (h *AllocBox) MarkPtrs() {
	type entry struct {
		u binding.UniqueBinding
		p Pointee
	}
	var greyEntries []entry
	h.grey.Iter(func(u binding.UniqueBinding, p Pointee) (stop bool) {
		greyEntries = append(greyEntries, entry{u, p})
		return false
	})

	h.grey.Clear()
	for _, e := range greyEntries {
		h.black.Put(e.u, e.p)
		for _, child := range e.p.Children() {
			if wp, ok := h.white.Get(child); ok {
				h.white.Delete(child)
				h.grey.Put(child, wp)
			}
		}
	}
}

// SweepPtrs drops every pointee still in white, then demotes every black
// pointee back to grey so the next mark cycle must re-prove it reachable.
func (h *AllocBox) SweepPtrs() {
	h.white.Clear()

	type entry struct {
		u binding.UniqueBinding
		p Pointee
	}
	var blackEntries []entry
	h.black.Iter(func(u binding.UniqueBinding, p Pointee) (stop bool) {
		blackEntries = append(blackEntries, entry{u, p})
		return false
	})
	h.black.Clear()
	for _, e := range blackEntries {
		h.grey.Put(e.u, e.p)
	}
}

// Len returns the total number of pointees resident in the heap, across all
// three colour sets.
func (h *AllocBox) Len() int {
	return h.white.Count() + h.grey.Count() + h.black.Count()
}

// IsEmpty reports whether the heap holds no pointees at all.
func (h *AllocBox) IsEmpty() bool { return h.Len() == 0 }

// takeFromAnySet deletes u from whichever of the three sets holds it and
// returns its pointee. Used to implement the "move" step of
// UpdatePtr/Condemn, which must act on whichever set currently owns u.
func (h *AllocBox) takeFromAnySet(u binding.UniqueBinding) (Pointee, bool) {
	if p, ok := h.white.Get(u); ok {
		h.white.Delete(u)
		return p, true
	}
	if p, ok := h.grey.Get(u); ok {
		h.grey.Delete(u)
		return p, true
	}
	if p, ok := h.black.Get(u); ok {
		h.black.Delete(u)
		return p, true
	}
	return Pointee{}, false
}
