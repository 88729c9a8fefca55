package heap

import (
	"fmt"

	"github.com/mna/nenuphar-gc/lang/binding"
)

// Pointee is a JsPtr: the heap-resident payload referred to by a Ptr Value.
// Exactly one of Str, Obj, Fn is meaningful, selected by Tag.
type Pointee struct {
	Tag PtrTag
	Str string
	Obj *Object
	Fn  *Fn
}

// NewStrPointee builds a string pointee.
func NewStrPointee(s string) Pointee { return Pointee{Tag: PtrStr, Str: s} }

// NewObjPointee builds an object pointee.
func NewObjPointee(o *Object) Pointee { return Pointee{Tag: PtrObj, Obj: o} }

// NewFnPointee builds a function pointee.
func NewFnPointee(fn *Fn) Pointee { return Pointee{Tag: PtrFn, Fn: fn} }

// EqTag reports whether the pointee's tag matches tag, used to validate a
// Ptr Value against the payload it is meant to describe.
func (p Pointee) EqTag(tag PtrTag) bool { return p.Tag == tag }

// Children returns the unique bindings directly reachable from p. Per the
// reachability contract, only Obj pointees have out-edges; strings and
// functions are leaves.
func (p Pointee) Children() []binding.UniqueBinding {
	if p.Tag != PtrObj || p.Obj == nil {
		return nil
	}
	return p.Obj.children()
}

// Clone returns a structural copy of p, independent of the stored pointee:
// mutating the result never mutates what is resident in the heap.
func (p Pointee) Clone() Pointee {
	switch p.Tag {
	case PtrObj:
		if p.Obj != nil {
			c := p
			c.Obj = p.Obj.clone()
			return c
		}
	case PtrFn:
		if p.Fn != nil {
			c := p
			c.Fn = p.Fn.clone()
			return c
		}
	}
	return p
}

func (p Pointee) String() string {
	switch p.Tag {
	case PtrStr:
		return fmt.Sprintf("%q", p.Str)
	case PtrObj:
		return "object"
	case PtrFn:
		return "function"
	default:
		return p.Tag.String()
	}
}

// Object is an ordered mapping from a hashable Key to a Value, plus an
// optional prototype link back into the heap by unique binding. Insertion
// order is preserved across Set so iteration (and the source language's
// for-in semantics) is deterministic.
type Object struct {
	Proto *binding.UniqueBinding

	entries map[Key]Value
	order   []Key
}

// NewObject builds an empty object, optionally chained to proto.
func NewObject(proto *binding.UniqueBinding) *Object {
	return &Object{Proto: proto, entries: make(map[Key]Value)}
}

// Get returns the value stored under k, if any.
func (o *Object) Get(k Key) (Value, bool) {
	v, ok := o.entries[k]
	return v, ok
}

// Set stores v under k, appending k to the insertion order on first use.
func (o *Object) Set(k Key, v Value) {
	if _, exists := o.entries[k]; !exists {
		o.order = append(o.order, k)
	}
	o.entries[k] = v
}

// Delete removes k, if present, preserving the relative order of the
// remaining keys.
func (o *Object) Delete(k Key) {
	if _, exists := o.entries[k]; !exists {
		return
	}
	delete(o.entries, k)
	for i, ok := range o.order {
		if ok == k {
			o.order = append(o.order[:i], o.order[i+1:]...)
			break
		}
	}
}

// Len returns the number of entries in o.
func (o *Object) Len() int { return len(o.entries) }

// Keys returns the object's keys in insertion order. The caller must not
// modify the result.
func (o *Object) Keys() []Key { return o.order }

func (o *Object) children() []binding.UniqueBinding {
	var out []binding.UniqueBinding
	for _, k := range o.order {
		if v := o.entries[k]; v.Kind == KindPtr {
			out = append(out, v.Unique)
		}
	}
	return out
}

func (o *Object) clone() *Object {
	c := &Object{Proto: o.Proto, entries: make(map[Key]Value, len(o.entries)), order: append([]Key(nil), o.order...)}
	for k, v := range o.entries {
		c.entries[k] = v
	}
	return c
}

// Fn is the captured shape of a function value: its (optional) declared
// name, its parameter names, and an opaque body token supplied by the
// evaluator. The core never interprets Body; it exists only so that a
// closure's Pointee can be archived and restored intact.
type Fn struct {
	Name   *string
	Params []string
	Body   any
}

func (fn *Fn) clone() *Fn {
	c := &Fn{Body: fn.Body, Params: append([]string(nil), fn.Params...)}
	if fn.Name != nil {
		name := *fn.Name
		c.Name = &name
	}
	return c
}
