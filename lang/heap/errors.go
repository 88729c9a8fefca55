package heap

import "errors"

// ErrAlloc is returned by Alloc when the unique binding is already resident
// in the heap (any of the three colour sets). It is a logic error: the
// caller minted a colliding unique binding, which should never happen given
// an injective binding.New.
var ErrAlloc = errors.New("heap: unique binding already allocated")

// ErrHeapUpdate is returned by UpdatePtr and Condemn when the unique binding
// they are asked to mutate is absent from the heap.
var ErrHeapUpdate = errors.New("heap: unique binding not allocated")
