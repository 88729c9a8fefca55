package heap_test

import (
	"testing"

	"github.com/mna/nenuphar-gc/lang/heap"
	"github.com/stretchr/testify/assert"
)

func TestObjectPreservesInsertionOrder(t *testing.T) {
	o := heap.NewObject(nil)
	o.Set(heap.SymKey("z"), heap.NewNum("z", 1))
	o.Set(heap.SymKey("a"), heap.NewNum("a", 2))
	o.Set(heap.SymKey("m"), heap.NewNum("m", 3))

	assert.Equal(t, []heap.Key{heap.SymKey("z"), heap.SymKey("a"), heap.SymKey("m")}, o.Keys())
}

func TestObjectDeletePreservesOrder(t *testing.T) {
	o := heap.NewObject(nil)
	o.Set(heap.SymKey("z"), heap.NewNum("z", 1))
	o.Set(heap.SymKey("a"), heap.NewNum("a", 2))
	o.Delete(heap.SymKey("z"))
	assert.Equal(t, []heap.Key{heap.SymKey("a")}, o.Keys())
	assert.Equal(t, 1, o.Len())
}

func TestObjectChildrenOnlyPtrValues(t *testing.T) {
	o := heap.NewObject(nil)
	o.Set(heap.NumKey(1), heap.NewNum("n", 1))
	strVal := heap.NewPtr("s", heap.PtrStr)
	o.Set(heap.SymKey("s"), strVal)

	p := heap.NewObjPointee(o)
	children := p.Children()
	assert.Len(t, children, 1)
	assert.Equal(t, strVal.Unique, children[0])
}

func TestCloneIsIndependent(t *testing.T) {
	name := "f"
	fn := &heap.Fn{Name: &name, Params: []string{"x", "y"}}
	p := heap.NewFnPointee(fn)
	c := p.Clone()
	c.Fn.Params[0] = "mutated"
	assert.Equal(t, "x", p.Fn.Params[0])
}
