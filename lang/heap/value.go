package heap

import (
	"fmt"

	"github.com/mna/nenuphar-gc/lang/binding"
)

// Kind is the closed sum of variants a Value may hold.
type Kind uint8

const (
	KindUndefined Kind = iota
	KindNull
	KindNum
	KindBool
	KindPtr
)

func (k Kind) String() string {
	switch k {
	case KindUndefined:
		return "undefined"
	case KindNull:
		return "null"
	case KindNum:
		return "num"
	case KindBool:
		return "bool"
	case KindPtr:
		return "ptr"
	default:
		return fmt.Sprintf("<invalid Kind %d>", k)
	}
}

// PtrTag distinguishes the three pointee shapes a Ptr value may refer to.
type PtrTag uint8

const (
	PtrStr PtrTag = iota
	PtrObj
	PtrFn
)

func (t PtrTag) String() string {
	switch t {
	case PtrStr:
		return "str"
	case PtrObj:
		return "obj"
	case PtrFn:
		return "fn"
	default:
		return fmt.Sprintf("<invalid PtrTag %d>", t)
	}
}

// Value is a JsVar: a user binding, an injective unique binding, and a tagged
// scalar or pointer variant. Scalars live entirely in the Value; a Ptr
// variant refers to a Pointee resident in an AllocBox under Unique.
//
// The zero Value is not meaningful; always build one with one of the New*
// constructors so Unique is assigned.
type Value struct {
	Binding binding.Binding
	Unique  binding.UniqueBinding
	Kind    Kind
	Num     float64
	Bool    bool
	PtrTag  PtrTag // meaningful iff Kind == KindPtr
}

// NewUndefined builds an Undefined value bound to bnd.
func NewUndefined(bnd binding.Binding) Value {
	return Value{Binding: bnd, Unique: binding.New(bnd), Kind: KindUndefined}
}

// NewNull builds a Null value bound to bnd.
func NewNull(bnd binding.Binding) Value {
	return Value{Binding: bnd, Unique: binding.New(bnd), Kind: KindNull}
}

// NewNum builds a Num value bound to bnd.
func NewNum(bnd binding.Binding, n float64) Value {
	return Value{Binding: bnd, Unique: binding.New(bnd), Kind: KindNum, Num: n}
}

// NewBool builds a Bool value bound to bnd.
func NewBool(bnd binding.Binding, b bool) Value {
	return Value{Binding: bnd, Unique: binding.New(bnd), Kind: KindBool, Bool: b}
}

// NewPtr builds a Ptr value of the given tag, bound to bnd. The caller is
// responsible for allocating the corresponding Pointee under the returned
// value's Unique (see Scope.PushVar and AllocBox.Alloc).
func NewPtr(bnd binding.Binding, tag PtrTag) Value {
	return Value{Binding: bnd, Unique: binding.New(bnd), Kind: KindPtr, PtrTag: tag}
}

// IsPtr reports whether v is a pointer variant.
func (v Value) IsPtr() bool { return v.Kind == KindPtr }

// Rebind returns a copy of v with a new user binding but the same unique
// binding and payload, for re-exposing a value already resident on the heap
// under a different name.
func (v Value) Rebind(bnd binding.Binding) Value {
	v.Binding = bnd
	return v
}

func (v Value) String() string {
	switch v.Kind {
	case KindUndefined:
		return "undefined"
	case KindNull:
		return "null"
	case KindNum:
		return fmt.Sprintf("%g", v.Num)
	case KindBool:
		return fmt.Sprintf("%t", v.Bool)
	case KindPtr:
		return fmt.Sprintf("ptr(%s %s)", v.PtrTag, v.Unique)
	default:
		return v.Kind.String()
	}
}
