package scope

import "errors"

// ErrPtrAlloc is returned when a pointer value is pushed or updated without
// a matching payload, a scalar is given one, or a pointer's payload tag does
// not match the value's own tag.
var ErrPtrAlloc = errors.New("scope: pointer/payload mismatch")

// ErrUnreachable signals an internal inconsistency: a pointer value resident
// on a scope's stack with no corresponding heap entry. Per spec.md §3
// invariant (ii) this should never happen; seeing it means a prior
// operation broke the heap/stack coherence invariant.
var ErrUnreachable = errors.New("scope: pointer value has no heap entry")

// ErrBadStore is returned by UpdateVar when a binding is local but its
// stack entry cannot be found, which the contract says should be
// impossible given locals' range is always a subset of stack's domain.
var ErrBadStore = errors.New("scope: local binding missing its stack entry")
