// Copyright (c) 2026, Tracekit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scene

import "github.com/tracekit/tracekit/geom"

// node is the shared layer of renderable objects (arrays and
// surfaces): per-side materials, the relations template and the
// backend surface record.
type node struct {
	Object

	Outer *Material
	Inner *Material

	// Rel is the reusable relations template for this node.
	Rel *geom.Elem

	// SSrf is the backend surface record; arrays use it for their
	// trnode part.
	SSrf *Surf
}

// initNode wires the shared node layer.
func (n *node) initNode(sc *Scene, self Node, parent *Array, data *ObjectData) error {
	if err := n.initObject(sc, self, parent, data); err != nil {
		return err
	}
	n.SSrf = &Surf{Tag: n.Tag}
	return nil
}

// updateNodeFields computes the object's inverted transform matrix and
// stores it into the backend record along with the current position.
func (n *node) updateNodeFields() {
	if n.Trnode == n.self {
		geom.MatInverse(&n.Inv, &n.Mtx)

		n.SSrf.Tci = geom.Vec4{n.Inv[geom.X][geom.I], n.Inv[geom.Y][geom.I], n.Inv[geom.Z][geom.I]}
		n.SSrf.Tcj = geom.Vec4{n.Inv[geom.X][geom.J], n.Inv[geom.Y][geom.J], n.Inv[geom.Z][geom.J]}
		n.SSrf.Tck = geom.Vec4{n.Inv[geom.X][geom.K], n.Inv[geom.Y][geom.K], n.Inv[geom.Z][geom.K]}
	}

	n.SSrf.Pos = n.Mtx[3]
}

// setAxisMapping publishes the trivial-transform axis mapping into a
// backend record. Objects under a trnode select the aux vector fields
// via the shift.
func (o *Object) setAxisMapping(s *Surf) {
	shift := int32(0)
	if o.Trnode != nil {
		shift = 3
	}

	s.AMap = [4]int32{o.mpI, o.mpJ, o.mpK, 0}
	s.AShift = shift
	s.HasTrm = o.ObjHasTrm

	for i := 0; i < 3; i++ {
		if o.Sgn[i] >= 0 {
			s.ASgn[i] = 0
		} else {
			s.ASgn[i] = 1
		}
	}
	s.ASgn[geom.L] = shift
}

// defaultArrayMaterial is the built-in translucent material of array
// bounding volumes.
var defaultArrayMaterial = MaterialData{
	Tag: MatLight,
	Tex: Tex{Col: Col{Val: 0xFF8F00}},
	Lgt: [3]float32{1, 0, 1},
	Prp: [4]float32{0, 0.9, 1, 0},
}

var defaultArraySide = SideData{
	Scl: [2]float32{1, 1},
	Mat: &defaultArrayMaterial,
}

// Array is a node which contains a group of objects under the same
// branch in the hierarchy: renderables (surfaces), other arrays
// (recursive) and special objects (cameras, lights).
type Array struct {
	node

	// scalers matrix passed to sub-objects when the array is a
	// trnode
	scm geom.Mat4

	Objs []Node

	// non-zero if the array itself or some of its sub-objects
	// changed
	ArrChanged int32
	ScnChanged int32

	// Col accumulates the luminosity of contained lights.
	Col Col

	// TrBox is used for the trnode when present and with contents
	// outside the bvnode, in which case the bvnode is split. InBox
	// holds the inner part of a split bvnode, or the trnode
	// contents when it is not split.
	TrBox *geom.Bound
	InBox *geom.Bound

	// SBvb and SInb are the backend records of the bvbox and inbox
	// parts of the bvnode.
	SBvb *Surf
	SInb *Surf
}

// fullBoxGeom sizes a bound for full box geometry.
func fullBoxGeom(b *geom.Bound) {
	b.Verts = make([]geom.Vert, 8)
	b.Edges = make([]geom.Edge, 12)
	copy(b.Edges, geom.BoxEdges[:])
	b.Faces = make([]geom.Face, 6)
	copy(b.Faces, geom.BoxFaces[:])
}

func newArray(sc *Scene, parent *Array, data *ObjectData) (*Array, error) {
	a := &Array{}
	if err := a.initNode(sc, a, parent, data); err != nil {
		return nil, err
	}
	sc.arrs = append(sc.arrs, a)

	fullBoxGeom(a.BvBox)

	// trbox and inbox share the array's matrices and axis mapping
	for _, box := range []**geom.Bound{&a.TrBox, &a.InBox} {
		b := &geom.Bound{
			Obj:  Node(a),
			Tag:  a.Tag,
			Pinv: &a.Inv,
			Pmtx: &a.Mtx,
			Pos:  (*geom.Vec4)(&a.Mtx[3]),
			Map:  &a.Map,
			Sgn:  &a.Sgn,
			Opts: &sc.opts,
		}
		fullBoxGeom(b)
		*box = b
	}

	// instantiate every object in the array from scene data,
	// including sub-arrays (recursive)
	ad := data.Array
	if ad != nil {
		for _, od := range ad.Objs {
			var (
				obj Node
				err error
			)
			switch {
			case od.Tag == geom.TagCamera:
				obj, err = newCamera(sc, a, od)
			case od.Tag == geom.TagLight:
				obj, err = newLight(sc, a, od)
			case od.Tag == geom.TagArray:
				obj, err = newArray(sc, a, od)
			case od.Tag.IsSurface():
				obj, err = newSurface(sc, a, od)
			default:
				continue
			}
			if err != nil {
				return nil, err
			}
			a.Objs = append(a.Objs, obj)
		}
	}

	// assign accumulated light to emitting surfaces
	for _, obj := range a.Objs {
		srf, ok := obj.(*Surface)
		if !ok {
			continue
		}
		for _, m := range []*Material{srf.Outer, srf.Inner} {
			s := m.SMat
			if m.Props&PropLight != 0 {
				s.ECol[0] = a.Col.HDR[0] * 100
				s.ECol[1] = a.Col.HDR[1] * 100
				s.ECol[2] = a.Col.HDR[2] * 100
				s.ESrc = a.Col.HDR[3] * 100
			} else {
				s.ECol = [3]float32{}
				s.ESrc = 0
			}
		}
	}

	if ad != nil {
		a.addRelations(sc, ad.Rels)
	}

	var err error
	a.Outer, err = newMaterial(sc, &defaultArraySide, &defaultArrayMaterial)
	if err != nil {
		return nil, err
	}
	a.Inner, err = newMaterial(sc, &defaultArraySide, &defaultArrayMaterial)
	if err != nil {
		return nil, err
	}

	for _, s := range []**Surf{&a.SInb, &a.SBvb} {
		rec := &Surf{Tag: geom.TagSurfaceMax}
		rec.MatOuter = a.Outer.SMat
		rec.PropsOuter = a.Outer.Props
		rec.MatInner = a.Inner.SMat
		rec.PropsInner = a.Inner.Props
		*s = rec
	}

	return a, nil
}

// addRelations builds relations templates (custom clippers) and bvnode
// assignments from scene data. A reusable template list linked through
// the Sub field keeps accum segments from being reallocated per
// surface.
func (a *Array) addRelations(sc *Scene, rels []Relation) {
	var lst, prv *geom.Elem
	ptr := &sc.rel
	acc := 0

	objArrL := a.Objs // left  sub-array
	objArrR := a.Objs // right sub-array

	grab := func() *geom.Elem {
		elm := *ptr
		if elm == nil {
			elm = &geom.Elem{}
			*ptr = elm
			elm.Sub = nil
		}
		return elm
	}

	for i := range rels {
		rel := &rels[i]

		if int(rel.Obj1) >= len(objArrL) || int(rel.Obj2) >= len(objArrR) {
			continue
		}

		var elm *geom.Elem
		var obj Node
		var arr *Array
		mode := false

		switch rel.Rel {
		case geom.RelIndexArray:
			if rel.Obj1 >= 0 && rel.Obj2 >= -1 {
				if sub, ok := objArrL[rel.Obj1].(*Array); ok {
					objArrL = sub.Objs // select left sub-array
				}
			}
			if rel.Obj1 >= -1 && rel.Obj2 >= 0 {
				if sub, ok := objArrR[rel.Obj2].(*Array); ok {
					objArrR = sub.Objs // select right sub-array
				}
			}

		case geom.RelMinusInner, geom.RelMinusOuter:
			if rel.Obj1 == -1 && rel.Obj2 >= 0 && acc == 0 {
				acc = 1
				elm = grab()
				// accum markers keep their original values as the
				// template is inverted twice before reaching the
				// backend, once in AddRelation and once in sclip
				elm.Data = geom.AccumEnter
				elm.Temp = nil
				elm.Next = nil
				lst = elm
				prv = elm
				ptr = &elm.Sub
			}
			if rel.Obj1 >= -1 && rel.Obj2 >= 0 {
				elm = grab()
				elm.Data = rel.Rel
				elm.Temp = objArrR[rel.Obj2].Base().BvBox
				elm.Next = nil
				objArrR = a.Objs // reset right sub-array after use
			}
			if rel.Obj1 == -1 && rel.Obj2 >= 0 {
				prv.Next = elm
				prv = elm
				ptr = &elm.Sub
			}

		case geom.RelMinusAccum:
			if rel.Obj1 >= 0 && rel.Obj2 == -1 && acc == 1 {
				acc = 0
				elm = grab()
				elm.Data = geom.AccumLeave
				elm.Temp = nil
				elm.Next = nil
				prv.Next = elm
				elm = lst
				lst = nil
				prv = nil
				ptr = &sc.rel
			}

		case geom.RelBoundArray, geom.RelUntieArray:
			mode = rel.Rel == geom.RelBoundArray
			if rel.Obj1 == -1 && rel.Obj2 == -1 {
				obj, arr = a, a
			}
			if rel.Obj1 == -1 && rel.Obj2 >= 0 {
				if sub, ok := objArrR[rel.Obj2].(*Array); ok {
					obj, arr = sub, sub
				}
			}

		case geom.RelBoundIndex, geom.RelUntieIndex:
			mode = rel.Rel == geom.RelBoundIndex
			if rel.Obj1 == -1 && rel.Obj2 >= 0 {
				obj = objArrR[rel.Obj2]
				arr = a
			}
			if rel.Obj1 >= 0 && rel.Obj2 >= 0 {
				if sub, ok := objArrL[rel.Obj1].(*Array); ok {
					obj = objArrR[rel.Obj2]
					arr = sub
				}
			}
		}

		if rel.Obj1 >= 0 && elm != nil {
			objArrL[rel.Obj1].AddRelation(elm)
			objArrL = a.Objs // reset left sub-array after use
		}
		if obj != nil && arr != nil {
			if sc.opts.Has(geom.OptsVArray) {
				obj.UpdateBVNode(arr, mode)
			}
			if rel.Obj1 >= 0 {
				objArrL = a.Objs
			}
			if rel.Obj2 >= 0 {
				objArrR = a.Objs
			}
		}
	}
}

// Base returns the shared object core.
func (a *Array) Base() *Object { return &a.Object }

// AddRelation passes the relations template to every sub-object.
func (a *Array) AddRelation(lst *geom.Elem) {
	for _, obj := range a.Objs {
		obj.AddRelation(lst)
	}
}

// UpdateBVNode updates the bvnode pointer for the array and all its
// sub-objects, including sub-arrays (recursive).
func (a *Array) UpdateBVNode(bv *Array, mode bool) {
	a.Object.UpdateBVNode(bv, mode)

	for _, obj := range a.Objs {
		obj.UpdateBVNode(bv, mode)
	}
}

func (a *Array) updateArrayStatus(time int64, flags int32, trnode Node) {
	// trigger update of the whole hierarchy when called for the
	// first time or when the update optimization is off
	if !a.sc.opts.Has(geom.OptsUpdate) || (a.data.time == -1 && a.Parent == nil) {
		flags |= UpdateFlagObj
	}

	a.updateStatus(time, flags, trnode)

	a.ArrChanged = a.ObjChanged
}

func (a *Array) updateArrayMatrix(mtx *geom.Mat4) {
	if a.ObjChanged == 0 {
		return
	}

	a.updateMatrix(mtx)

	// the array's bvbox is always in world space; its trbox and
	// inbox live in the trnode's frame
	a.BvBox.Trnode = nil

	if a.Trnode != nil {
		trn := a.Trnode.(*Array)
		a.TrBox.Trnode = trn.TrBox
		a.InBox.Trnode = trn.InBox
	} else {
		a.TrBox.Trnode = nil
		a.InBox.Trnode = nil
	}

	// pass the array's own matrix to sub-objects, or only the
	// scalers when the array is a trnode
	a.pmtx = &a.Mtx

	if a.Trnode == Node(a) {
		a.scm = geom.Iden4
		a.scm[0][0] = a.Scl[0]
		a.scm[1][1] = a.Scl[1]
		a.scm[2][2] = a.Scl[2]

		a.pmtx = &a.scm
	}
}

// UpdateObject updates the array and every object in it, including
// sub-arrays (recursive), passing the array's own transform flags,
// changed status, updated trnode and matrix down.
func (a *Array) UpdateObject(time int64, flags int32, trnode Node, mtx *geom.Mat4) {
	a.updateArrayStatus(time, flags, trnode)
	a.updateArrayMatrix(mtx)

	a.ScnChanged = 0

	for _, obj := range a.Objs {
		obj.UpdateObject(time, flags|a.MtxHasTrm|a.ObjChanged, a.Trnode, a.pmtx)

		if sub, ok := obj.(*Array); ok {
			a.ScnChanged |= sub.ScnChanged
		} else {
			a.ScnChanged |= obj.Base().ObjChanged
		}
	}
}

// UpdateFields updates the array's backend records.
func (a *Array) UpdateFields() {
	if a.ObjChanged == 0 {
		return
	}

	a.updateNodeFields()

	a.setAxisMapping(a.SSrf)
	a.setTrnodeRec(a.SSrf)

	a.setAxisMapping(a.SInb)
	a.setTrnodeRec(a.SInb)
	a.SInb.Scj = geom.Vec4{}

	a.SBvb.AMap = [4]int32{geom.X, geom.Y, geom.Z, 0}
	a.SBvb.ASgn = [4]int32{}
	a.SBvb.AShift = 0
	a.SBvb.HasTrm = 0
	a.SBvb.Trnode = nil
	a.SBvb.Scj = geom.Vec4{}
}

// setTrnodeRec points the record at its trnode's record so the backend
// can check whether a surface and its clippers share a cached
// transform.
func (o *Object) setTrnodeRec(s *Surf) {
	if o.Trnode == nil {
		s.Trnode = nil
		return
	}
	switch t := o.Trnode.(type) {
	case *Array:
		s.Trnode = t.SSrf
	case *Surface:
		s.Trnode = t.SSrf
	}
}

// resetBox empties a box for bounds accumulation.
func resetBox(b *geom.Bound) {
	b.BMin = geom.Vec4{+geom.Inf, +geom.Inf, +geom.Inf}
	b.BMax = geom.Vec4{-geom.Inf, -geom.Inf, -geom.Inf}
	b.Rad = 0
	b.Fln = 0
	b.Flm = 0
	b.Flf = 0
}

// fuseMinmax merges the source box extent into the destination,
// stripping face-coverage flags along every axis where the source
// grows the destination, and re-deriving them when the source is a
// fully flagged plane. The rad fields merge as tags for
// empty/finite/infinite.
func fuseMinmax(dst, src *geom.Bound, opts geom.Opts) {
	if src.Rad != geom.Inf {
		switch {
		case opts.Has(geom.OptsRemove) && src.Tag.IsPlane() && src.Flm != 0:
			b, c, m := int32(0), int32(0), int32(3)

			for k := 0; k < 3; k++ {
				if int(src.Map[geom.K]) == k {
					m = int32(k)
				}

				switch {
				case dst.BMin[k] > src.BMin[k]:
					dst.BMin[k] = src.BMin[k]
					dst.Flm &= 2 << (k * 2)
					if int32(k) == m {
						c |= 1
					}
				case dst.BMin[k] < src.BMin[k]:
					if int32(k) != m {
						b = 1
					}
				default:
					if int32(k) == m {
						c |= 1
					}
				}

				switch {
				case dst.BMax[k] < src.BMax[k]:
					dst.BMax[k] = src.BMax[k]
					dst.Flm &= 1 << (k * 2)
					if int32(k) == m {
						c |= 2
					}
				case dst.BMax[k] > src.BMax[k]:
					if int32(k) != m {
						b = 1
					}
				default:
					if int32(k) == m {
						c |= 2
					}
				}
			}

			if b == 0 && m < 3 {
				dst.Flm |= c << (m * 2)
			}

		case opts.Has(geom.OptsRemove):
			for k := 0; k < 3; k++ {
				if dst.BMin[k] > src.BMin[k] {
					dst.BMin[k] = src.BMin[k]
					dst.Flm &= 2 << (k * 2)
				}
				if dst.BMax[k] < src.BMax[k] {
					dst.BMax[k] = src.BMax[k]
					dst.Flm &= 1 << (k * 2)
				}
			}

		default:
			for k := 0; k < 3; k++ {
				if dst.BMin[k] > src.BMin[k] {
					dst.BMin[k] = src.BMin[k]
				}
				if dst.BMax[k] < src.BMax[k] {
					dst.BMax[k] = src.BMax[k]
				}
			}
		}
	}

	if dst.Rad < src.Rad {
		dst.Rad = src.Rad
	}
}

// fuseVerts merges the source box's transformed vertex data into the
// destination, crossing a trnode boundary (8x slower than fuseMinmax).
func fuseVerts(dst, src *geom.Bound) {
	if src.Rad != geom.Inf {
		for j := range src.Verts {
			for k := 0; k < 3; k++ {
				v := src.Verts[j].Pos[k]
				if dst.BMin[k] > v {
					dst.BMin[k] = v
				}
				if dst.BMax[k] < v {
					dst.BMax[k] = v
				}
			}
		}
	}

	if dst.Rad < src.Rad {
		dst.Rad = src.Rad
	}
}

// UpdateBounds accumulates the array's bounding boxes and volumes from
// its sub-objects bottom-up (sequential phase 2.5) and refreshes the
// related backend records.
func (a *Array) UpdateBounds() error {
	if a.ArrChanged == 0 {
		return nil
	}

	resetBox(a.BvBox)
	resetBox(a.TrBox)
	resetBox(a.InBox)

	opts := a.sc.opts

	for _, obj := range a.Objs {
		var nd *Object
		var sub *Array

		switch n := obj.(type) {
		case *Array:
			sub = n
			nd = &n.Object
			if err := n.UpdateBounds(); err != nil {
				return err
			}
		case *Surface:
			nd = &n.Object
		default:
			continue
		}

		// contribute bounds to the trnode's trbox, or to the
		// bvnode's inbox when the bvnode shares the trnode
		var srcBox, dstBox *geom.Bound
		if nd.Trnode != nil && nd.Trnode != obj {
			trn := nd.Trnode.(*Array)

			if sub != nil {
				srcBox = sub.InBox
			} else {
				srcBox = nd.BvBox
			}
			if nd.Bvnode != nil && nd.Bvnode.Trnode == Node(trn) {
				dstBox = nd.Bvnode.InBox
			} else {
				dstBox = trn.TrBox
			}
		}

		if srcBox != nil && srcBox.Rad != 0 && dstBox != nil {
			fuseMinmax(dstBox, srcBox, opts)
		}

		// contribute bounds to the bvnode's bvbox
		srcBox, dstBox = nil, nil
		arr := nd.Bvnode

		if arr != nil {
			if sub == nil && nd.Trnode != nil && nd.Trnode != obj &&
				sameTrnode(nd.Trnode, arr.Trnode) {
				srcBox = nil
			} else {
				srcBox = nd.BvBox
			}
			dstBox = arr.BvBox
		}

		if srcBox != nil && srcBox.Rad != 0 && dstBox != nil &&
			(nd.Trnode == nil || sub != nil) {
			fuseMinmax(dstBox, srcBox, opts)
		}

		if arr != nil && sub != nil {
			if sub.Trnode != obj || sub.TrBox.Rad != 0 || sub.BvBox.Rad == 0 {
				srcBox = sub.InBox
			} else {
				srcBox = nil
			}
		}

		if srcBox != nil && srcBox.Rad != 0 && dstBox != nil &&
			nd.Trnode != nil && !sameTrnode(nd.Trnode, arr.Trnode) {
			fuseVerts(dstBox, srcBox)
		}
	}

	// update the inbox's geometry
	if a.InBox.Rad != 0 && a.InBox.Rad != geom.Inf {
		if err := a.InBox.SetBBGeom(); err != nil {
			return err
		}

		a.SInb.Pos = geom.Vec4{
			(a.InBox.BMin[geom.X] + a.InBox.BMax[geom.X]) * 0.5,
			(a.InBox.BMin[geom.Y] + a.InBox.BMax[geom.Y]) * 0.5,
			(a.InBox.BMin[geom.Z] + a.InBox.BMax[geom.Z]) * 0.5,
		}

		var dff geom.Vec4
		geom.Sub3(&dff, a.InBox.BMax, a.InBox.BMin)

		a.SInb.Sci = geom.Vec4{
			1 / (dff[geom.X] * dff[geom.X]),
			1 / (dff[geom.Y] * dff[geom.Y]),
			1 / (dff[geom.Z] * dff[geom.Z]),
			0.75, // unit cube's radius squared
		}

		switch {
		// contribute the trnode array's inbox to its trbox when
		// the trbox has contents; it has priority over the bvbox
		// here as the bvbox might get split
		case a.Trnode == Node(a) && a.TrBox.Rad != 0:
			fuseMinmax(a.TrBox, a.InBox, 0)

		// otherwise to the bvbox through transformed vertices
		case a.Trnode == Node(a) && a.BvBox.Rad != 0:
			fuseVerts(a.BvBox, a.InBox)

		// a standalone trnode keeps a world-frame bounding
		// sphere in its record
		case a.Trnode == Node(a):
			a.SInb.AMap = [4]int32{geom.X, geom.Y, geom.Z, 0}
			a.SInb.ASgn = [4]int32{}
			a.SInb.AShift = 0
			a.SInb.HasTrm = 0
			a.SInb.Trnode = nil

			a.SInb.Pos = a.InBox.Mid
			a.SInb.Sci = geom.Vec4{1, 1, 1, a.InBox.Rad * a.InBox.Rad}
		}
	}

	// update the bvbox's geometry
	if a.BvBox.Rad != 0 && a.BvBox.Rad != geom.Inf {
		if err := a.BvBox.SetBBGeom(); err != nil {
			return err
		}

		a.SBvb.Pos = geom.Vec4{
			(a.BvBox.BMin[geom.X] + a.BvBox.BMax[geom.X]) * 0.5,
			(a.BvBox.BMin[geom.Y] + a.BvBox.BMax[geom.Y]) * 0.5,
			(a.BvBox.BMin[geom.Z] + a.BvBox.BMax[geom.Z]) * 0.5,
		}

		var dff geom.Vec4
		geom.Sub3(&dff, a.BvBox.BMax, a.BvBox.BMin)

		a.SBvb.Sci = geom.Vec4{
			1 / (dff[geom.X] * dff[geom.X]),
			1 / (dff[geom.Y] * dff[geom.Y]),
			1 / (dff[geom.Z] * dff[geom.Z]),
			0.75, // unit cube's radius squared
		}
	}

	// update the trbox's geometry
	if a.TrBox.Rad != 0 && a.TrBox.Rad != geom.Inf {
		if err := a.TrBox.SetBBGeom(); err != nil {
			return err
		}
	}

	return nil
}

// sameTrnode compares trnodes, treating nil arrays and nil interfaces
// alike.
func sameTrnode(n Node, arr Node) bool {
	if n == nil && arr == nil {
		return true
	}
	if n == nil || arr == nil {
		return false
	}
	return n == arr
}
