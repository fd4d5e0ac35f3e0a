// Copyright (c) 2026, Tracekit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package arena implements the engine's two-layer frame allocator:
// a linear chunked heap with releasable checkpoints for per-frame
// scratch data, and an object free-list sub-allocator for long-lived
// records whose lifetime is independent of frames.
package arena

import "encoding/binary"

// ChunkSize is the heap chunk size granularity in bytes.
const ChunkSize = 4096

// Magic words stamped behind object allocations.
const (
	magicGoodObj = 0x1600D0B7
	magicFreeObj = 0x1F3EE0B7
)

// objHeader is the number of bytes reserved in front of every object
// allocation for the magic and size words.
const objHeader = 8

type chunk struct {
	buf  []byte
	ptr  int
	next *chunk
}

// Ptr addresses a byte range inside a heap chunk. The zero Ptr is nil.
type Ptr struct {
	c   *chunk
	off int
}

// IsNil reports whether the pointer addresses nothing.
func (p Ptr) IsNil() bool {
	return p.c == nil
}

// Bytes returns the n bytes addressed by p.
func (p Ptr) Bytes(n int) []byte {
	return p.c.buf[p.off : p.off+n]
}

type freeRec struct {
	p    Ptr
	next *freeRec
}

// Heap is a linear allocator over a prepended chunk list. Alloc
// advances the head pointer; Reserve reserves without advancing so the
// next Alloc begins inside the reserved area; Release frees every
// chunk allocated after the given checkpoint and rewinds the head
// pointer to it.
//
// A Heap is confined to one goroutine; the scene manager gives each
// worker its own.
type Heap struct {
	head  *chunk
	frees *freeRec
}

// NewHeap returns a heap with its first chunk in place.
func NewHeap() *Heap {
	h := &Heap{}
	h.chunkAlloc(0, 1)
	return h
}

// chunkAlloc links a new chunk of at least size bytes as the list
// head.
func (h *Heap) chunkAlloc(size, align int) {
	mask := 0
	if align > 0 {
		mask = align - 1
	}
	realSize := (size + mask + ChunkSize - 1) / ChunkSize * ChunkSize
	h.head = &chunk{
		buf:  make([]byte, realSize),
		next: h.head,
	}
}

// Alloc reserves size bytes with the given alignment and moves the
// heap pointer past them.
func (h *Heap) Alloc(size, align int) Ptr {
	p := h.Reserve(size, align)
	h.head.ptr = p.off + size
	return p
}

// Reserve reserves size bytes with the given alignment without moving
// the heap pointer. The next Alloc begins in the reserved area.
func (h *Heap) Reserve(size, align int) Ptr {
	mask := 0
	if align > 0 {
		mask = align - 1
	}
	off := (h.head.ptr + mask) &^ mask

	// allocate a bigger chunk if the current one doesn't fit
	if len(h.head.buf) < off+size {
		h.chunkAlloc(size, align)
		off = h.head.ptr
	} else {
		h.head.ptr = off
	}

	return Ptr{c: h.head, off: off}
}

// Release frees all chunks allocated after p was reserved and rewinds
// the heap pointer to it. Free-list objects living in the released
// region are purged. It reports whether p's chunk was found.
func (h *Heap) Release(p Ptr) bool {
	// free chunks allocated after p's chunk
	for h.head != nil && h.head != p.c {
		h.purgeFrees(h.head, 0)
		h.head = h.head.next
	}

	if h.head == nil {
		return false
	}

	h.purgeFrees(h.head, p.off)
	h.head.ptr = p.off
	return true
}

// purgeFrees drops free objects of chunk c at or above off, clearing
// their magic words.
func (h *Heap) purgeFrees(c *chunk, off int) {
	for obj := &h.frees; *obj != nil; {
		r := *obj
		if r.p.c == c && r.p.off >= off {
			binary.LittleEndian.PutUint32(c.buf[r.p.off-objHeader:], 0)
			*obj = r.next
			continue
		}
		obj = &r.next
	}
}

// ObjAlloc allocates size bytes with the given alignment, reusing a
// matching entry of the free-object list when one exists. The
// allocation is stamped with a magic word and its size so that ObjFree
// can validate it.
func (h *Heap) ObjAlloc(size, align int) Ptr {
	// each object must be capable of holding a pointer
	if size < 8 {
		size = 8
	}

	// search the list of free objects
	for obj := &h.frees; *obj != nil; obj = &(*obj).next {
		r := *obj
		hdr := r.p.c.buf[r.p.off-objHeader:]
		if binary.LittleEndian.Uint32(hdr) != magicFreeObj {
			continue
		}
		realSize := int(binary.LittleEndian.Uint32(hdr[4:]))
		if realSize < size {
			continue
		}

		*obj = r.next

		binary.LittleEndian.PutUint32(hdr, magicGoodObj)
		binary.LittleEndian.PutUint32(hdr[4:], uint32(realSize))
		return r.p
	}

	if align < 8 {
		align = 8
	}
	p := h.Reserve(size+align, align)
	h.head.ptr = p.off + size + align
	p.off += align

	hdr := p.c.buf[p.off-objHeader:]
	binary.LittleEndian.PutUint32(hdr, magicGoodObj)
	binary.LittleEndian.PutUint32(hdr[4:], uint32(size))

	return p
}

// ObjFree releases the object at p, adding its memory to the
// free-object list. It reports whether p carried a live object.
func (h *Heap) ObjFree(p Ptr) bool {
	hdr := p.c.buf[p.off-objHeader:]
	if binary.LittleEndian.Uint32(hdr) != magicGoodObj {
		return false
	}
	binary.LittleEndian.PutUint32(hdr, magicFreeObj)

	h.frees = &freeRec{p: p, next: h.frees}
	return true
}
