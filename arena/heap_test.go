// Copyright (c) 2026, Tracekit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package arena

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocAdvances(t *testing.T) {
	h := NewHeap()

	a := h.Alloc(16, 8)
	b := h.Alloc(16, 8)

	require.False(t, a.IsNil())
	require.False(t, b.IsNil())
	assert.NotEqual(t, a, b)
	assert.Len(t, a.Bytes(16), 16)
}

func TestAllocAlignment(t *testing.T) {
	h := NewHeap()

	h.Alloc(3, 1)
	p := h.Alloc(8, 16)
	assert.Zero(t, p.off%16)
}

func TestReserveDoesNotAdvance(t *testing.T) {
	h := NewHeap()

	r := h.Reserve(64, 8)
	a := h.Alloc(8, 8)

	// the next alloc begins in the reserved area
	assert.Equal(t, r, a)
}

func TestReleaseRoundTrip(t *testing.T) {
	h := NewHeap()

	// spec invariant: release(ptr) followed by re-alloc from ptr
	// yields the same address set for the same sizes
	mark := h.Reserve(1024, 16)

	var first []Ptr
	for i := 0; i < 8; i++ {
		first = append(first, h.Alloc(48, 16))
	}

	require.True(t, h.Release(mark))

	for i := 0; i < 8; i++ {
		assert.Equal(t, first[i], h.Alloc(48, 16), "alloc %d", i)
	}
}

func TestReleaseDeepNest(t *testing.T) {
	h := NewHeap()

	// allocate N records, reserve a working area, allocate M more,
	// then release the reservation: the N stay, a fresh alloc
	// reoccupies the M region starting at the reservation
	var pre []Ptr
	for i := 0; i < 4; i++ {
		pre = append(pre, h.Alloc(32, 8))
	}
	for i, p := range pre {
		p.Bytes(32)[0] = byte(i + 1)
	}

	mark := h.Reserve(8192, 8)

	for i := 0; i < 100; i++ {
		h.Alloc(64, 8)
	}

	require.True(t, h.Release(mark))

	for i, p := range pre {
		assert.Equal(t, byte(i+1), p.Bytes(32)[0])
	}

	fresh := h.Alloc(64, 8)
	assert.Equal(t, mark, fresh)
}

func TestObjAllocFreeReuse(t *testing.T) {
	h := NewHeap()

	// spec invariant: free then alloc of the same size returns the
	// same pointer
	a := h.ObjAlloc(40, 8)
	require.True(t, h.ObjFree(a))

	b := h.ObjAlloc(40, 8)
	assert.Equal(t, a, b)

	// double free of a live object only succeeds once
	require.True(t, h.ObjFree(b))
	assert.False(t, h.ObjFree(b))
}

func TestObjAllocSkipsSmallerSlots(t *testing.T) {
	h := NewHeap()

	small := h.ObjAlloc(16, 8)
	big := h.ObjAlloc(128, 8)
	h.ObjFree(small)
	h.ObjFree(big)

	// a large request cannot reuse the small slot
	p := h.ObjAlloc(128, 8)
	assert.Equal(t, big, p)
}

func TestReleasePurgesFreeObjects(t *testing.T) {
	h := NewHeap()

	mark := h.Reserve(256, 8)
	obj := h.ObjAlloc(64, 8)
	h.ObjFree(obj)

	require.True(t, h.Release(mark))

	// the freed object above the mark is purged, so a same-size
	// alloc comes from the rewound linear area instead
	p := h.ObjAlloc(64, 8)
	assert.Equal(t, mark.c, p.c)
	assert.GreaterOrEqual(t, p.off, mark.off)
}

func TestChunkGrowth(t *testing.T) {
	h := NewHeap()

	// larger than one chunk, forces a dedicated chunk
	p := h.Alloc(3*ChunkSize, 8)
	assert.Len(t, p.Bytes(3*ChunkSize), 3*ChunkSize)

	// and the heap keeps serving small allocations
	q := h.Alloc(16, 8)
	assert.False(t, q.IsNil())
}

func TestPoolMarkRelease(t *testing.T) {
	var p Pool[[4]int]

	a := p.Get()
	a[0] = 7

	m := p.Mark()

	b := p.Get()
	b[0] = 9

	p.Release(m)

	// the record handed out after the mark is reused zeroed
	c := p.Get()
	assert.Same(t, b, c)
	assert.Zero(t, c[0])

	// the record before the mark is untouched
	assert.Equal(t, 7, a[0])
}

func TestPoolGrowth(t *testing.T) {
	var p Pool[int]

	m := p.Mark()

	seen := map[*int]bool{}
	for i := 0; i < 3*poolSlab; i++ {
		r := p.Get()
		require.False(t, seen[r], "record %d handed out twice", i)
		seen[r] = true
	}

	p.Release(m)

	r := p.Get()
	assert.True(t, seen[r], "released records are reused")
}
