// Package scopemgr implements the ScopeManager: the single entry point the
// evaluator drives to allocate, look up and update variables across a
// running program's lexical scope stack, coordinating the scope frames, the
// tracing heap, the closure archive and the write-back lookup cache. See
// spec.md §4.3.
package scopemgr

import (
	"errors"
	"fmt"

	"github.com/mna/nenuphar-gc/lang/binding"
	"github.com/mna/nenuphar-gc/lang/cache"
	"github.com/mna/nenuphar-gc/lang/heap"
	"github.com/mna/nenuphar-gc/lang/scope"
)

// Manager is the ScopeManager: it owns the heap, the live scope stack, the
// archive of closure frames detached from the stack, and the lookup cache.
// The evaluator holds the only reference to a Manager and drives it
// synchronously; see spec.md §5 for the single-threaded, non-reentrant
// contract this type assumes.
type Manager struct {
	heap     *heap.AllocBox
	frames   []*scope.Scope
	closures map[binding.UniqueBinding]*scope.Scope
	cache    *cache.Cache
}

// New builds a Manager with a fresh global frame (tagged Call) and a lookup
// cache bounded to cacheCapacity entries.
func New(cacheCapacity int) *Manager {
	h := heap.NewAllocBox()
	global := scope.New(scope.Call, h)
	return &Manager{
		heap:     h,
		frames:   []*scope.Scope{global},
		closures: make(map[binding.UniqueBinding]*scope.Scope),
		cache:    cache.New(cacheCapacity),
	}
}

func (m *Manager) current() *scope.Scope { return m.frames[len(m.frames)-1] }
func (m *Manager) global() *scope.Scope  { return m.frames[0] }

// HeapLen reports the number of pointees currently resident in the heap,
// across all three colour sets. Exposed for introspection and testing.
func (m *Manager) HeapLen() int { return m.heap.Len() }

// PushScope pushes a new frame, tagged Call if isCall (the trigger was a
// call expression) or Block otherwise.
func (m *Manager) PushScope(isCall bool) {
	tag := scope.Block
	if isCall {
		tag = scope.Call
	}
	m.frames = append(m.frames, scope.New(tag, m.heap))
}

// PushClosureScope removes the archived frame associated with fnUnique and
// pushes it as the current frame. It fails ErrScope if no such archive
// exists.
func (m *Manager) PushClosureScope(fnUnique binding.UniqueBinding) error {
	archived, ok := m.closures[fnUnique]
	if !ok {
		return fmt.Errorf("%w: no archived closure for %s", ErrScope, fnUnique)
	}
	delete(m.closures, fnUnique)
	m.frames = append(m.frames, archived)
	return nil
}

// RenameClosure moves the archive entry for oldUnique to newUnique, used
// when a function value is aliased to a new binding.
func (m *Manager) RenameClosure(oldUnique, newUnique binding.UniqueBinding) error {
	archived, ok := m.closures[oldUnique]
	if !ok {
		return fmt.Errorf("%w: no archived closure for %s", ErrScope, oldUnique)
	}
	delete(m.closures, oldUnique)
	m.closures[newUnique] = archived
	return nil
}

// PopScope pops the current frame. If returningClosure is non-nil, all of
// the frame's locals (scalars included) are archived under that unique
// binding instead of being transferred to the parent; otherwise only its
// pointer locals are transferred to the parent. If gcYield, a mark/sweep cycle runs against
// the new current frame once the transfer completes.
//
// Popping the global frame (the last frame on the stack) runs trigger_gc
// once and returns ErrScope signalling end-of-program; it is not popped off
// the stack.
func (m *Manager) PopScope(returningClosure *binding.UniqueBinding, gcYield bool) error {
	cur := m.current()

	for _, bnd := range cur.LocalBindings() {
		entry, ok := m.cache.Remove(bnd)
		if !ok {
			continue
		}
		if entry.Dirty {
			if err := cur.UpdateVar(entry.Value, entry.Ptr); err != nil {
				return err
			}
		}
	}

	if len(m.frames) == 1 {
		cur.TriggerGC()
		return fmt.Errorf("%w: end of program", ErrScope)
	}

	m.frames = m.frames[:len(m.frames)-1]
	parent := m.current()

	var globals []heap.Value
	var err error
	if returningClosure != nil {
		archived := scope.NewClosure(m.heap, *returningClosure)
		globals, err = cur.TransferStack(archived, true)
		if err != nil {
			return err
		}
		m.closures[*returningClosure] = archived
	} else {
		globals, err = cur.TransferStack(parent, false)
		if err != nil {
			return err
		}
	}

	for _, g := range globals {
		m.global().BindVar(g)
	}

	if gcYield {
		parent.TriggerGC()
	}
	return nil
}

// Alloc allocates var_ (with ptr, for pointer variants) into the current
// frame. If var_.Unique is already resident in the heap, the binding is
// simply bound to the existing pointee (BindVar) instead of allocating
// again; ptr is commonly nil on this path (no fresh payload is being
// supplied), so a pointer variant's pointee is read back from the heap
// before caching, the same way Scope.GetVarCopy does. The cache is updated
// to reflect the new binding.
func (m *Manager) Alloc(var_ heap.Value, ptr *heap.Pointee) error {
	cur := m.current()
	if m.heap.IsAllocated(var_.Unique) {
		cur.BindVar(var_)
		if ptr == nil && var_.IsPtr() {
			if found, ok := m.heap.Find(var_.Unique); ok {
				ptr = &found
			}
		}
	} else if err := cur.PushVar(var_, ptr); err != nil {
		return err
	}
	m.insertCacheBestEffort(var_, ptr, cur)
	return nil
}

// Load resolves bnd, preferring the cache. On a cache hit owned by the
// current frame, a copy is returned directly and the entry is promoted to
// most-recently-used. A cache hit owned by some other frame is not
// trustworthy on its own: that frame might be a Block ancestor the walk
// would still reach (transparent lookup, S5) rather than a Call/Closure
// ancestor it must not reach (S4), and the cache does not record frame
// tags. So a foreign hit is simply ignored and the lookup falls through to
// the ordinary scope walk below, which applies the real boundary rules. A
// cache miss walks the live scope stack top-down, falling back to the
// global frame if the walk reaches a Call/Closure boundary or runs out of
// frames without a hit.
func (m *Manager) Load(bnd binding.Binding) (heap.Value, *heap.Pointee, error) {
	cur := m.current()

	if entry, ok := m.cache.Get(bnd); ok && entry.OwnerID == cur.ID() {
		m.cache.Refresh(bnd)
		var ptr *heap.Pointee
		if entry.Ptr != nil {
			p := entry.Ptr.Clone()
			ptr = &p
		}
		return entry.Value, ptr, nil
	}

walk:
	for i := len(m.frames) - 1; i >= 1; i-- {
		var_, ptr, err := m.frames[i].GetVarCopy(bnd)
		switch {
		case err == nil:
			m.insertCacheBestEffort(var_, ptr, m.frames[i])
			return var_, ptr, nil
		case errors.Is(err, scope.FnBoundary):
			// A call frame hides its non-global ancestors; only the global
			// frame is still consulted.
			break walk
		case errors.Is(err, scope.CheckParent):
			continue
		default:
			return heap.Value{}, nil, err
		}
	}

	var_, ptr, err := m.global().GetVarCopy(bnd)
	if err != nil {
		return heap.Value{}, nil, fmt.Errorf("%w: %s", ErrLoad, bnd)
	}
	m.insertCacheBestEffort(var_, ptr, m.global())
	return var_, ptr, nil
}

// Store writes var_ (with ptr, for pointer variants). It prefers the
// cache: if bnd is cached under the current frame, the cache entry is
// updated directly (marked dirty) and no scope is touched yet. Otherwise
// it walks the scope stack exactly as the heap-level contract describes,
// stopping at the global frame if every intermediate frame misses. A
// binding found nowhere is treated as the source language's "assignment to
// an undeclared name creates a global" semantics.
func (m *Manager) Store(var_ heap.Value, ptr *heap.Pointee) error {
	cur := m.current()

	if entry, ok := m.cache.Get(var_.Binding); ok && entry.OwnerID == cur.ID() {
		evictedKey, evicted, hadEviction := m.insertCache(var_, ptr, cur)
		if hadEviction && evicted.Dirty {
			if err := m.writeThrough(evicted.Value, evicted.Ptr); err != nil {
				return fmt.Errorf("scopemgr: writing back evicted entry %s: %w", evictedKey, err)
			}
		}
		return nil
	}

	return m.writeThrough(var_, ptr)
}

// insertCache stores var_/ptr in the cache under owner's identity. The
// caller decides what to do with an evicted entry; Store propagates a
// failed write-back, Alloc and Load treat it as best-effort via
// insertCacheBestEffort.
func (m *Manager) insertCache(var_ heap.Value, ptr *heap.Pointee, owner *scope.Scope) (evictedKey binding.Binding, evicted *cache.Entry, hadEviction bool) {
	return m.cache.Insert(var_.Binding, cache.Entry{
		Value:   var_,
		Ptr:     ptr,
		OwnerID: owner.ID(),
	})
}

// insertCacheBestEffort inserts var_/ptr and, if the insertion evicted a
// dirty entry, writes it back through the scope walk without propagating a
// failure: Alloc and Load's cache bookkeeping should never fail their
// primary operation because of an unrelated eviction.
func (m *Manager) insertCacheBestEffort(var_ heap.Value, ptr *heap.Pointee, owner *scope.Scope) {
	_, evicted, hadEviction := m.insertCache(var_, ptr, owner)
	if hadEviction && evicted.Dirty {
		_ = m.writeThrough(evicted.Value, evicted.Ptr)
	}
}

// writeThrough walks the live scope stack top-down calling UpdateVar, falls
// back to the global frame, and as a last resort, when var_ exists nowhere
// yet, creates a fresh binding in the current frame, marked maybe-global so
// that it moves to the global frame when that frame is popped.
func (m *Manager) writeThrough(var_ heap.Value, ptr *heap.Pointee) error {
	for i := len(m.frames) - 1; i >= 1; i-- {
		err := m.frames[i].UpdateVar(var_, ptr)
		if err == nil {
			return nil
		}

		var cp *scope.CheckParentErr
		if errors.As(err, &cp) {
			var_, ptr = cp.Var, cp.Ptr
			continue
		}
		var fb *scope.FnBoundaryErr
		if errors.As(err, &fb) {
			var_, ptr = fb.Var, fb.Ptr
			break
		}
		return err
	}

	err := m.global().UpdateVar(var_, ptr)
	if err == nil {
		return nil
	}

	var cp *scope.CheckParentErr
	var fb *scope.FnBoundaryErr
	if errors.As(err, &cp) || errors.As(err, &fb) {
		// The binding exists nowhere yet: assignment to an undeclared name
		// creates a fresh binding, local to whichever frame issued the
		// store. MarkGlobal records that this local is a stand-in for a
		// global, so that when its frame is eventually popped,
		// TransferStack routes it to the real global frame instead of the
		// frame's lexical parent.
		cur := m.current()
		cur.MarkGlobal(var_.Binding)
		return cur.PushVar(var_, ptr)
	}
	return err
}
