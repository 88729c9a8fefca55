// Package scope implements a single lexical frame: the locals/stack pair,
// shadowing, call-vs-block lookup semantics, and the transfer of a frame's
// contents into its parent (or into an archived closure environment) on
// return. See spec.md §4.2.
package scope

import (
	"fmt"

	"github.com/mna/nenuphar-gc/lang/binding"
	"github.com/mna/nenuphar-gc/lang/heap"
	"golang.org/x/exp/maps"
)

// Tag is a frame's role, determining whether an unresolved lookup may walk
// into the parent frame.
type Tag uint8

const (
	// Block is a control-flow block: transparent to lookup, i.e. a miss here
	// continues searching the parent.
	Block Tag = iota
	// Call is a function activation: opaque to outer lookups except the
	// global frame, which the manager consults separately.
	Call
	// Closure is an archived frame associated with a particular function
	// value, restored verbatim by scopemgr.Manager.PushClosureScope.
	Closure
)

func (t Tag) String() string {
	switch t {
	case Block:
		return "block"
	case Call:
		return "call"
	case Closure:
		return "closure"
	default:
		return fmt.Sprintf("<invalid Tag %d>", t)
	}
}

// Scope is a single lexical frame.
type Scope struct {
	id   int
	heap *heap.AllocBox

	locals       map[binding.Binding]binding.UniqueBinding
	stack        map[binding.UniqueBinding]heap.Value
	maybeGlobals map[binding.Binding]struct{}

	tag       Tag
	closureOf binding.UniqueBinding // meaningful iff tag == Closure
}

// nextID hands out a process-wide, single-threaded-only monotonic identity
// for each Scope, so the cache can tell which frame currently owns a cached
// entry. Mirrors binding.New's "mangle a counter/uuid at construction time"
// approach, scaled down since frame identities never need to be injective
// across processes, only distinguishable within one.
var nextID int

// New builds an empty frame of the given tag, backed by h for pointer
// allocation and lookup.
func New(tag Tag, h *heap.AllocBox) *Scope {
	nextID++
	return &Scope{
		id:           nextID,
		heap:         h,
		locals:       make(map[binding.Binding]binding.UniqueBinding),
		stack:        make(map[binding.UniqueBinding]heap.Value),
		maybeGlobals: make(map[binding.Binding]struct{}),
		tag:          tag,
	}
}

// ID returns a frame identity unique among frames live in the same process,
// used by the manager's cache to distinguish "owned by the current frame"
// from "owned by some other, foreign frame".
func (s *Scope) ID() int { return s.id }

// NewClosure builds an empty frame archived for function value fn.
func NewClosure(h *heap.AllocBox, fn binding.UniqueBinding) *Scope {
	s := New(Closure, h)
	s.closureOf = fn
	return s
}

// Tag returns the frame's role.
func (s *Scope) Tag() Tag { return s.tag }

// Len returns the number of variables resident on the stack.
func (s *Scope) Len() int { return len(s.stack) }

// PushVar pushes var onto the stack, allocating its heap payload if var is a
// pointer variant. If var.Binding is already local, this updates the
// existing binding instead (see UpdateVar) and clears any maybe-global mark
// on it.
func (s *Scope) PushVar(var_ heap.Value, ptr *heap.Pointee) error {
	if _, isLocal := s.locals[var_.Binding]; isLocal {
		delete(s.maybeGlobals, var_.Binding)
		return s.UpdateVar(var_, ptr)
	}

	if var_.IsPtr() {
		if ptr == nil {
			return fmt.Errorf("%w: pointer value %s with no payload", ErrPtrAlloc, var_.Binding)
		}
		if err := s.heap.Alloc(var_.Unique, *ptr); err != nil {
			return err
		}
	} else if ptr != nil {
		return fmt.Errorf("%w: scalar value %s given a payload", ErrPtrAlloc, var_.Binding)
	}

	s.BindVar(var_)
	return nil
}

// BindVar registers an already-heap-allocated (or scalar) value as local to
// this frame, without touching the heap. Used by the manager to promote
// pre-existing allocations (e.g. from a parent frame) into the current one.
func (s *Scope) BindVar(var_ heap.Value) {
	s.locals[var_.Binding] = var_.Unique
	s.stack[var_.Unique] = var_
}

func (s *Scope) rebindVar(local binding.Binding, unique binding.UniqueBinding, var_ heap.Value) {
	s.locals[local] = unique
	s.stack[unique] = var_
}

// LocalBindings returns the user bindings currently local to this frame, in
// no particular order. Used by the manager to walk a frame's locals without
// reaching into its internals (e.g. to flush cache entries on pop_scope).
func (s *Scope) LocalBindings() []binding.Binding {
	out := make([]binding.Binding, 0, len(s.locals))
	for b := range s.locals {
		out = append(out, b)
	}
	return out
}

// MarkGlobal marks bnd as potentially belonging to the global frame: the
// assignment fell through all scopes during a store. The decision is only
// realised on frame exit, in TransferStack.
func (s *Scope) MarkGlobal(bnd binding.Binding) {
	s.maybeGlobals[bnd] = struct{}{}
}

// LookupError is the closed sum of ways GetVarCopy can fail to find bnd
// locally.
type LookupError uint8

const (
	// FnBoundary means the current frame is a Call or Closure frame: the
	// caller must not walk into the parent and should fall back to the
	// global scope.
	FnBoundary LookupError = iota
	// CheckParent means the current frame is a Block frame: the caller
	// should continue walking outward.
	CheckParent
	// Unreachable means bnd resolved to a pointer value with no
	// corresponding heap entry, an internal inconsistency.
	Unreachable
)

func (e LookupError) Error() string {
	switch e {
	case FnBoundary:
		return "scope: binding not local, call frame boundary reached"
	case CheckParent:
		return "scope: binding not local, check parent scope"
	case Unreachable:
		return ErrUnreachable.Error()
	default:
		return fmt.Sprintf("<invalid LookupError %d>", e)
	}
}

// GetVarCopy looks up bnd locally. On a hit it returns a copy of the value
// and, for pointer variants, a copy of its pointee read through the heap.
// On a miss it returns a LookupError telling the caller whether to keep
// walking outward.
func (s *Scope) GetVarCopy(bnd binding.Binding) (heap.Value, *heap.Pointee, error) {
	unique, isLocal := s.locals[bnd]
	if !isLocal {
		if s.tag != Block {
			return heap.Value{}, nil, FnBoundary
		}
		return heap.Value{}, nil, CheckParent
	}

	var_, ok := s.stack[unique]
	if !ok {
		return heap.Value{}, nil, Unreachable
	}
	if !var_.IsPtr() {
		return var_, nil, nil
	}
	ptr, ok := s.heap.Find(unique)
	if !ok {
		return heap.Value{}, nil, Unreachable
	}
	return var_, &ptr, nil
}

// CheckParentErr carries a value/pointer pair back to the caller when
// UpdateVar finds the binding is not local to a Block frame: the caller
// should retry the update against the parent scope.
type CheckParentErr struct {
	Var heap.Value
	Ptr *heap.Pointee
}

func (e *CheckParentErr) Error() string { return "scope: binding not local, check parent scope" }

// FnBoundaryErr carries a value/pointer pair back to the caller when
// UpdateVar finds the binding is not local to a Call or Closure frame: the
// caller should stop walking and write the value into the global frame
// instead.
type FnBoundaryErr struct {
	Var heap.Value
	Ptr *heap.Pointee
}

func (e *FnBoundaryErr) Error() string {
	return "scope: binding not local, call frame boundary reached"
}

// UpdateVar writes into an already-local binding. For pointer variants the
// pointee's tag must match the value's tag. For scalars, any previously
// allocated pointee under the same unique binding is condemned (best
// effort: failure is ignored, since there may never have been one).
//
// If var_.Binding is not local to this frame, UpdateVar returns
// *CheckParentErr (Block frame: try the parent) or *FnBoundaryErr (Call
// frame: write the global instead) so the caller can continue the walk.
func (s *Scope) UpdateVar(var_ heap.Value, ptr *heap.Pointee) error {
	unique, isLocal := s.locals[var_.Binding]
	if !isLocal {
		if s.tag != Block {
			return &FnBoundaryErr{Var: var_, Ptr: ptr}
		}
		return &CheckParentErr{Var: var_, Ptr: ptr}
	}

	if var_.IsPtr() {
		if ptr == nil {
			return fmt.Errorf("%w: pointer value %s with no payload", ErrPtrAlloc, var_.Binding)
		}
		if !ptr.EqTag(var_.PtrTag) {
			return fmt.Errorf("%w: value tag %s, payload tag %s", ErrPtrAlloc, var_.PtrTag, ptr.Tag)
		}
		if err := s.heap.UpdatePtr(var_.Unique, *ptr); err != nil {
			return err
		}
	} else {
		if ptr != nil {
			return fmt.Errorf("%w: scalar value %s given a payload", ErrPtrAlloc, var_.Binding)
		}
		// A root may have just been removed; best-effort, there may never
		// have been a heap entry for this unique binding.
		_ = s.heap.Condemn(var_.Unique)
	}

	if _, ok := s.stack[var_.Unique]; !ok {
		return fmt.Errorf("%w: %s", ErrBadStore, var_.Binding)
	}
	s.stack[unique] = var_
	return nil
}

// TriggerGC runs one mark/sweep cycle on the heap, then drops from this
// frame's locals/stack any binding whose unique binding no longer has a
// heap entry.
func (s *Scope) TriggerGC() {
	s.heap.MarkPtrs()
	s.heap.SweepPtrs()

	for _, bnd := range maps.Keys(s.locals) {
		unique := s.locals[bnd]
		if _, ok := s.heap.Find(unique); !ok {
			delete(s.locals, bnd)
			delete(s.stack, unique)
		}
	}
}

// TransferStack drains this frame's locals into parent on scope exit.
//
//   - A binding marked maybe-global is not given to parent; instead it is
//     collected into the returned set, for the manager to rebind into the
//     global frame.
//   - If returningClosure is true, every other binding is unconditionally
//     re-bound into parent: a closure conservatively keeps everything
//     lexically visible.
//   - Otherwise, a binding is re-bound into parent only if its value is a
//     pointer variant; scalars die with the frame.
func (s *Scope) TransferStack(parent *Scope, returningClosure bool) ([]heap.Value, error) {
	var globals []heap.Value

	for local, unique := range s.locals {
		var_, ok := s.stack[unique]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrBadStore, local)
		}

		if _, isGlobal := s.maybeGlobals[local]; isGlobal {
			globals = append(globals, var_)
		} else if returningClosure {
			parent.rebindVar(local, unique, var_)
		} else if var_.IsPtr() {
			parent.rebindVar(local, unique, var_)
		}
	}

	s.locals = make(map[binding.Binding]binding.UniqueBinding)
	s.stack = make(map[binding.UniqueBinding]heap.Value)
	s.maybeGlobals = make(map[binding.Binding]struct{})

	return globals, nil
}
