// Copyright (c) 2026, Tracekit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scene

import (
	"github.com/chewxy/math32"
	"github.com/tracekit/tracekit/geom"
)

// Update flags propagated down the hierarchy.
const (
	// UpdateFlagScl marks non-trivial scaling after rotation
	// (other than +/-1 scalers).
	UpdateFlagScl = 1 << 0
	// UpdateFlagRot marks non-trivial rotation
	// (other than a multiple of 90 degrees).
	UpdateFlagRot = 1 << 1
	// UpdateFlagObj marks an object some of whose parents changed.
	UpdateFlagObj = 1 << 2
)

// Node is one object of the hierarchy: a camera, light, array or
// surface.
type Node interface {
	// Base returns the shared object core.
	Base() *Object

	// UpdateObject propagates time, change flags, the current
	// trnode and the parent matrix down the hierarchy
	// (sequential phase 0.5).
	UpdateObject(time int64, flags int32, trnode Node, mtx *geom.Mat4)

	// UpdateFields updates the object's derived and backend fields
	// (parallel phase 1).
	UpdateFields()

	// AddRelation feeds a relations template list to the object.
	AddRelation(lst *geom.Elem)

	// UpdateBVNode enables or disables the given bvnode for the
	// object (and its sub-objects for arrays).
	UpdateBVNode(bv *Array, mode bool)
}

// Object is the core shared by every node in the hierarchy. It is
// mainly responsible for properly passing transform from the root
// through the branches to all the leaves.
type Object struct {
	sc   *Scene
	data *ObjectData
	self Node

	// matrix pointer for/from the hierarchy
	pmtx *geom.Mat4

	// axis mapping for trivial transform
	Map [4]int32
	Sgn [4]int32
	Scl geom.Vec4

	// axis mapping shorteners
	mpI int32
	mpJ int32
	mpK int32
	mpL int32

	// BvBox is used in arrays for the outer part of a split bvnode,
	// and as the generic boundary in other objects.
	BvBox *geom.Bound

	Trm *geom.Transform
	Tag geom.Tag

	Inv geom.Mat4
	Mtx geom.Mat4

	// non-zero if the object itself or some of its parents changed
	ObjChanged int32

	// non-zero if the object itself or some of its parents has
	// non-trivial transform (rotation or scaling after rotation)
	ObjHasTrm int32

	// non-zero if the object's own matrix has non-trivial transform
	MtxHasTrm int32

	Parent *Array

	// Trnode is the node up in the hierarchy with non-trivial
	// transform, relative to which this object's transform is
	// trivial.
	Trnode Node

	// Bvnode is the node up in the hierarchy with bounding volume
	// enabled, to which this object contributes its own bounds.
	Bvnode *Array
}

// Pos returns the object's position (the fourth matrix column).
func (o *Object) Pos() *geom.Vec4 {
	return (*geom.Vec4)(&o.Mtx[3])
}

// initObject wires the shared core and allocates the object's bvbox.
func (o *Object) initObject(sc *Scene, self Node, parent *Array, data *ObjectData) error {
	if data == nil {
		return ErrNilObject
	}

	o.sc = sc
	o.data = data
	o.self = self
	o.Trm = &data.Trm
	o.Tag = data.Tag
	o.Parent = parent

	var bv geom.Bound
	if o.Tag.IsSurface() {
		shp := &geom.Shape{}
		o.BvBox = &shp.Bound
		o.BvBox.Shp = shp
	} else {
		o.BvBox = &bv
	}
	o.BvBox.Obj = self
	o.BvBox.Tag = o.Tag
	o.BvBox.Pinv = &o.Inv
	o.BvBox.Pmtx = &o.Mtx
	o.BvBox.Pos = (*geom.Vec4)(&o.Mtx[3])
	o.BvBox.Map = &o.Map
	o.BvBox.Sgn = &o.Sgn
	o.BvBox.Opts = &sc.opts

	data.time = -1
	return nil
}

// AddRelation is a no-op on the shared core.
func (o *Object) AddRelation(lst *geom.Elem) {}

// UpdateBVNode updates the object's bvnode pointer with the given
// mode. A bvnode cannot be its own bvnode and boundless surfaces have
// none.
func (o *Object) UpdateBVNode(bv *Array, mode bool) {
	if Node(bv) == o.self || len(o.BvBox.Verts) == 0 {
		return
	}

	if mode {
		if o.Bvnode == nil {
			o.Bvnode = bv
			return
		}
		// allow re-bounding objects to inner bvnodes
		for par := bv.Parent; par != nil; par = par.Parent {
			if o.Bvnode == par {
				o.Bvnode = bv
				break
			}
		}
		return
	}

	if o.Bvnode == bv {
		o.Bvnode = nil
	}
}

// updateStatus runs the animator and inherits change flags and the
// trnode from the hierarchy. Animators are called once per frame and
// only from the sequential phase.
func (o *Object) updateStatus(time int64, flags int32, trnode Node) {
	if o.data.Anm != nil && o.data.time != time {
		last := o.data.time
		if last < 0 {
			last = 0
		}
		o.data.Anm(time, last, o.Trm)
	}

	// always update time in scene data to distinguish the first
	// update from all subsequent ones
	o.data.time = time

	o.ObjChanged = flags & UpdateFlagObj

	if o.data.Anm != nil {
		o.ObjChanged |= UpdateFlagObj
	}

	if o.ObjChanged == 0 {
		return
	}

	// inherit transform flags and trnode from the hierarchy
	o.ObjHasTrm = flags & (UpdateFlagScl | UpdateFlagRot)
	o.Trnode = trnode
}

// trivialScale reports whether every scaler is exactly +/-1.
func trivialScale(scl geom.Vec4) bool {
	for i := 0; i < 3; i++ {
		if scl[i] != -1 && scl[i] != +1 {
			return false
		}
	}
	return true
}

// trivialRot reports whether every Euler angle is exactly a multiple
// of 90 degrees within [-270, +270].
func trivialRot(rot geom.Vec4) bool {
	for i := 0; i < 3; i++ {
		r := rot[i]
		if r != -270 && r != -180 && r != -90 && r != 0 &&
			r != +90 && r != +180 && r != +270 {
			return false
		}
	}
	return true
}

// updateMatrix determines the object's own transform for transform
// caching, which lets the backend apply a single matrix transform to a
// group of objects with trivial transform relative to their trnode.
func (o *Object) updateMatrix(mtx *geom.Mat4) {
	if o.ObjChanged == 0 {
		return
	}

	o.MtxHasTrm = 0
	if !trivialScale(o.Trm.Scl) {
		o.MtxHasTrm |= UpdateFlagScl
	}
	if !trivialRot(o.Trm.Rot) {
		o.MtxHasTrm |= UpdateFlagRot
	}

	// the object's own matrix doesn't have rotation
	if o.MtxHasTrm&UpdateFlagRot == 0 {
		var trmMtx geom.Mat4
		geom.MatFromTransform(&trmMtx, o.Trm, true)
		geom.MatMulMat(&o.Mtx, mtx, &trmMtx)

		if o.ObjHasTrm == UpdateFlagScl {
			o.MtxHasTrm = o.ObjHasTrm
			o.ObjHasTrm = 0
		}

		// determine axis mapping for trivial transform (multiple
		// of 90 degree rotation, scalers), applicable to objects
		// without trnode or with trnode other than the object
		// itself; scalers before rotation do not qualify for
		// trnode as solvers handle them without transform matrix
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				if (o.Mtx[i][0] != 0) == (geom.Iden4[j][0] != 0) &&
					(o.Mtx[i][1] != 0) == (geom.Iden4[j][1] != 0) &&
					(o.Mtx[i][2] != 0) == (geom.Iden4[j][2] != 0) {
					o.Map[i] = int32(j)
					if o.Mtx[i][j] < 0 {
						o.Sgn[i] = -1
					} else {
						o.Sgn[i] = 1
					}
					o.Scl[j] = math32.Abs(o.Mtx[i][j])
				}
			}
		}

		o.Map[geom.L] = geom.W
		o.Sgn[geom.L] = 1
		o.Scl[geom.W] = 1
	}

	// the object's own matrix has non-trivial rotation
	if o.MtxHasTrm&UpdateFlagRot != 0 {
		var trmMtx geom.Mat4
		geom.MatFromTransform(&trmMtx, o.Trm, false)

		if o.Trnode == nil {
			geom.MatMulMat(&o.Mtx, mtx, &trmMtx)
		} else {
			var tmp geom.Mat4
			geom.MatMulMat(&tmp, &o.Trnode.Base().Mtx, mtx)
			geom.MatMulMat(&o.Mtx, &tmp, &trmMtx)
		}

		o.Trnode = o.self
		o.ObjHasTrm |= UpdateFlagRot

		o.Map = [4]int32{geom.X, geom.Y, geom.Z, geom.W}
		o.Sgn = [4]int32{1, 1, 1, 1}
		o.Scl = geom.Vec4{o.Trm.Scl[geom.X], o.Trm.Scl[geom.Y], o.Trm.Scl[geom.Z], 1}
	}

	if o.ObjHasTrm&UpdateFlagRot != 0 && !o.sc.opts.Has(geom.OptsFScale) {
		o.ObjHasTrm |= UpdateFlagScl
	}

	// collapse the deferred trnode into the object's own matrix
	// unless tagged arrays may carry it for surfaces
	if o.Trnode != nil && o.Trnode != o.self &&
		(!o.sc.opts.Has(geom.OptsTArray) || !o.Tag.IsSurface()) {
		var tmp geom.Mat4
		geom.MatMulMat(&tmp, &o.Trnode.Base().Mtx, &o.Mtx)
		o.Mtx = tmp

		o.Trnode = o.self
		o.ObjHasTrm |= o.MtxHasTrm

		o.Map = [4]int32{geom.X, geom.Y, geom.Z, geom.W}
		o.Sgn = [4]int32{1, 1, 1, 1}
		o.Scl = geom.Vec4{1, 1, 1, 1}
	}

	// set bvbox's trnode for the geometry predicates
	if o.Trnode != nil {
		o.BvBox.Trnode = o.Trnode.Base().BvBox
	} else {
		o.BvBox.Trnode = nil
	}

	o.mpI = o.Map[geom.I]
	o.mpJ = o.Map[geom.J]
	o.mpK = o.Map[geom.K]
	o.mpL = o.Map[geom.L]
}
