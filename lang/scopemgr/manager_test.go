package scopemgr_test

import (
	"testing"

	"github.com/mna/nenuphar-gc/lang/binding"
	"github.com/mna/nenuphar-gc/lang/heap"
	"github.com/mna/nenuphar-gc/lang/scopemgr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// S1 Alloc-load-scalar.
func TestAllocLoadScalar(t *testing.T) {
	mgr := scopemgr.New(8)
	mgr.PushScope(false)

	x := heap.NewNum("x", 1)
	require.NoError(t, mgr.Alloc(x, nil))

	got, ptr, err := mgr.Load("x")
	require.NoError(t, err)
	assert.Nil(t, ptr)
	assert.Equal(t, float64(1), got.Num)
}

// S2 Alloc-load-string.
func TestAllocLoadString(t *testing.T) {
	mgr := scopemgr.New(8)

	x := heap.NewPtr("x", heap.PtrStr)
	payload := heap.NewStrPointee("hi")
	require.NoError(t, mgr.Alloc(x, &payload))

	got, ptr, err := mgr.Load("x")
	require.NoError(t, err)
	require.NotNil(t, ptr)
	assert.Equal(t, "hi", ptr.Str)
	assert.Equal(t, x.Unique, got.Unique)
}

// S3 GC leaks string: an object's string-valued entry, once overwritten and
// dropped, is collected across a pop_scope(gc_yield=true).
func TestGCLeaksString(t *testing.T) {
	mgr := scopemgr.New(8)

	o := heap.NewObject(nil)
	str := heap.NewPtr(binding.Anon, heap.PtrStr)
	o.Set(heap.BoolKey(false), str)
	objVal := heap.NewPtr("o", heap.PtrObj)

	objPayload := heap.NewObjPointee(o)
	strPayload := heap.NewStrPointee("test")
	require.NoError(t, mgr.Alloc(str, &strPayload))
	require.NoError(t, mgr.Alloc(objVal, &objPayload))
	assert.Equal(t, 2, mgr.HeapLen())

	mgr.PushScope(false)
	// Move the object binding into the new (current) block scope.
	require.NoError(t, mgr.Alloc(objVal, nil))

	_, ptr, err := mgr.Load("o")
	require.NoError(t, err)
	require.NotNil(t, ptr)
	require.Equal(t, 1, ptr.Obj.Len())

	updatedObj := ptr.Obj
	updatedObj.Set(heap.BoolKey(false), heap.NewNum(binding.Anon, -1))
	updatedObjPayload := heap.NewObjPointee(updatedObj)
	require.NoError(t, mgr.Store(objVal, &updatedObjPayload))

	require.NoError(t, mgr.PopScope(nil, true))

	assert.Equal(t, 1, mgr.HeapLen(), "the dropped string must be collected")

	parentVal, parentPtr, err := mgr.Load("o")
	require.NoError(t, err)
	require.NotNil(t, parentPtr)
	assert.Equal(t, objVal.Unique, parentVal.Unique)
}

// S4 Call boundary.
func TestCallBoundary(t *testing.T) {
	mgr := scopemgr.New(8)
	mgr.PushScope(true)

	x := heap.NewPtr("x", heap.PtrStr)
	payload := heap.NewStrPointee("x")
	require.NoError(t, mgr.Alloc(x, &payload))

	mgr.PushScope(true)

	_, _, err := mgr.Load("x")
	assert.ErrorIs(t, err, scopemgr.ErrLoad)
}

// S5 Block boundary.
func TestBlockBoundary(t *testing.T) {
	mgr := scopemgr.New(8)
	mgr.PushScope(true)

	x := heap.NewPtr("x", heap.PtrStr)
	payload := heap.NewStrPointee("x")
	require.NoError(t, mgr.Alloc(x, &payload))

	mgr.PushScope(false)

	got, ptr, err := mgr.Load("x")
	require.NoError(t, err)
	require.NotNil(t, ptr)
	assert.Equal(t, "x", ptr.Str)
	assert.Equal(t, x.Unique, got.Unique)
}

// S6 Closure return.
func TestClosureReturn(t *testing.T) {
	mgr := scopemgr.New(8)
	mgr.PushScope(true)

	fn := heap.NewPtr("f", heap.PtrFn)
	fnPayload := heap.NewFnPointee(&heap.Fn{})
	require.NoError(t, mgr.Alloc(fn, &fnPayload))

	c := heap.NewNum("c", 1)
	require.NoError(t, mgr.Alloc(c, nil))

	s := heap.NewPtr("s", heap.PtrStr)
	sPayload := heap.NewStrPointee("t")
	require.NoError(t, mgr.Alloc(s, &sPayload))

	uf := fn.Unique
	require.NoError(t, mgr.PopScope(&uf, false))
	require.NoError(t, mgr.PushClosureScope(uf))

	got, ptr, err := mgr.Load("c")
	require.NoError(t, err)
	assert.Nil(t, ptr)
	assert.Equal(t, float64(1), got.Num)
}

// S7 Undeclared assignment to global.
func TestUndeclaredAssignmentToGlobal(t *testing.T) {
	mgr := scopemgr.New(8)

	y := heap.NewNum("y", 1)
	require.NoError(t, mgr.Store(y, nil))

	got, ptr, err := mgr.Load("y")
	require.NoError(t, err)
	assert.Nil(t, ptr)
	assert.Equal(t, float64(1), got.Num)
}

func TestUndeclaredAssignmentToGlobalFromNestedBlock(t *testing.T) {
	mgr := scopemgr.New(8)
	mgr.PushScope(false)
	mgr.PushScope(false)

	y := heap.NewNum("y", 2)
	require.NoError(t, mgr.Store(y, nil))

	require.NoError(t, mgr.PopScope(nil, false))
	require.NoError(t, mgr.PopScope(nil, false))

	got, _, err := mgr.Load("y")
	require.NoError(t, err)
	assert.Equal(t, float64(2), got.Num)
}

func TestRenameClosure(t *testing.T) {
	mgr := scopemgr.New(8)
	mgr.PushScope(true)

	fn := heap.NewPtr("f", heap.PtrFn)
	fnPayload := heap.NewFnPointee(&heap.Fn{})
	require.NoError(t, mgr.Alloc(fn, &fnPayload))

	uf := fn.Unique
	require.NoError(t, mgr.PopScope(&uf, false))

	newUnique := binding.New("g")
	require.NoError(t, mgr.RenameClosure(uf, newUnique))
	require.NoError(t, mgr.PushClosureScope(newUnique))
}

func TestPushClosureScopeMissingArchiveFails(t *testing.T) {
	mgr := scopemgr.New(8)
	err := mgr.PushClosureScope(binding.New("ghost"))
	assert.ErrorIs(t, err, scopemgr.ErrScope)
}

func TestPopScopeEndOfProgram(t *testing.T) {
	mgr := scopemgr.New(8)
	err := mgr.PopScope(nil, false)
	assert.ErrorIs(t, err, scopemgr.ErrScope)
}
