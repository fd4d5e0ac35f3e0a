// Copyright (c) 2026, Tracekit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package arena

// poolSlab is the number of records per pool slab.
const poolSlab = 256

// Pool is a slab allocator for typed per-frame records. It carries the
// same checkpoint discipline as Heap: records are never freed
// individually, the whole pool is rewound to a Mark at frame end and
// the records are reused in place.
//
// A Pool is confined to one goroutine.
type Pool[T any] struct {
	slabs [][]T
	slab  int
	used  int
}

// Mark is a pool checkpoint.
type Mark struct {
	slab int
	used int
}

// Get returns a zeroed record, growing the pool when the current slab
// is full.
func (p *Pool[T]) Get() *T {
	if p.slab == len(p.slabs) {
		p.slabs = append(p.slabs, make([]T, poolSlab))
	}
	s := p.slabs[p.slab]
	t := &s[p.used]
	p.used++
	if p.used == len(s) {
		p.slab++
		p.used = 0
	}

	var zero T
	*t = zero
	return t
}

// Mark returns the current checkpoint.
func (p *Pool[T]) Mark() Mark {
	return Mark{slab: p.slab, used: p.used}
}

// Release rewinds the pool to m. Records handed out after the mark are
// reused by subsequent Gets.
func (p *Pool[T]) Release(m Mark) {
	p.slab = m.slab
	p.used = m.used
}
