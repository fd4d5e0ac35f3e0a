// Copyright (c) 2026, Tracekit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scene

import (
	"sync/atomic"

	"github.com/tracekit/tracekit/geom"
)

// Surface is a node which represents a renderable shape.
type Surface struct {
	node

	Srf *SurfaceData

	// non-zero if the surface itself or some of its clippers
	// changed
	srfChanged int32

	// Top is the surface's trnode/bvnode chain from the outermost
	// node down; Trn holds the single trnode element for contexts
	// where bvnodes are not allowed.
	Top *geom.Elem
	Trn *geom.Elem

	// Shape extends the surface's bvbox with quadric coefficients
	// and the custom clippers list.
	Shape *geom.Shape

	// Tls is the per-frame list of screen tiles the surface
	// projects onto.
	Tls *geom.Elem
}

func newSurface(sc *Scene, parent *Array, data *ObjectData) (*Surface, error) {
	s := &Surface{Srf: data.Surface}
	if err := s.initNode(sc, s, parent, data); err != nil {
		return nil, err
	}
	sc.srfs = append(sc.srfs, s)

	var err error
	s.Outer, err = newMaterial(sc, &s.Srf.OuterSide, s.Srf.OuterSide.Mat)
	if err != nil {
		return nil, err
	}
	s.Inner, err = newMaterial(sc, &s.Srf.InnerSide, s.Srf.InnerSide.Mat)
	if err != nil {
		return nil, err
	}

	// the surface's bvbox is unbounded until clipping reduces it
	s.BvBox.Rad = geom.Inf

	s.Shape = s.BvBox.Shp
	s.Shape.Clp = &s.SSrf.Clip

	s.SSrf.MatOuter = s.Outer.SMat
	s.SSrf.PropsOuter = s.Outer.Props
	s.SSrf.MatInner = s.Inner.SMat
	s.SSrf.PropsInner = s.Inner.Props

	if s.boundedByClips() {
		if s.Tag.IsPlane() {
			s.BvBox.Verts = make([]geom.Vert, 4)
			s.BvBox.Edges = make([]geom.Edge, 4)
			copy(s.BvBox.Edges, geom.BoxEdges[:4])
			s.BvBox.Faces = make([]geom.Face, 1)
			copy(s.BvBox.Faces, geom.BoxFaces[:1])
		} else {
			fullBoxGeom(s.BvBox)
		}
	}

	return s, nil
}

// boundedByClips reports whether the surface's axis clippers together
// with its shape yield a finite bounding box.
func (s *Surface) boundedByClips() bool {
	min, max := &s.Srf.Min, &s.Srf.Max

	finI := min[geom.I] != -geom.Inf && max[geom.I] != +geom.Inf
	finJ := min[geom.J] != -geom.Inf && max[geom.J] != +geom.Inf
	finK := min[geom.K] != -geom.Inf && max[geom.K] != +geom.Inf

	switch s.Tag {
	case geom.TagPlane:
		return finI && finJ
	case geom.TagCylinder:
		// radius bounds I and J
		return finK
	case geom.TagSphere:
		return true
	case geom.TagCone, geom.TagHyperboloid:
		return finI && finJ || finK
	case geom.TagParaboloid:
		return finI && finJ ||
			min[geom.K] != -geom.Inf && s.Srf.Par < 0 ||
			max[geom.K] != +geom.Inf && s.Srf.Par > 0
	case geom.TagParaCylinder:
		return finJ && (finI ||
			min[geom.K] != -geom.Inf && s.Srf.Par < 0 ||
			max[geom.K] != +geom.Inf && s.Srf.Par > 0)
	case geom.TagHyperCylinder:
		return finJ && (finI || finK)
	case geom.TagHyperParaboloid:
		return finI && finJ
	}
	return false
}

// Base returns the shared object core.
func (s *Surface) Base() *Object { return &s.Object }

// AddRelation builds the surface's relations template from the given
// template list. The template is inverted here and inverted again in
// sclip, so accum enter/leave markers end up in their original order.
func (s *Surface) AddRelation(lst *geom.Elem) {
	for ; lst != nil; lst = lst.Next {
		rel := lst.Data

		var obj Node
		if lst.Temp != nil {
			obj = lst.Temp.Obj.(Node)
		}

		switch {
		case obj == nil:
			// accum marker
			elm := &geom.Elem{Data: rel}
			elm.Next = s.Rel
			s.Rel = elm

		case obj.Base().Tag.IsArray():
			arr := obj.(*Array)

			// expand the array into its sub-objects via the
			// array's reusable template to avoid reallocs
			ptr := &arr.Rel
			for _, sub := range arr.Objs {
				elm := *ptr
				if elm == nil {
					elm = &geom.Elem{}
					*ptr = elm
					elm.Sub = nil
				}
				elm.Data = rel
				elm.Temp = sub.Base().BvBox
				elm.Next = nil

				s.AddRelation(elm)
				ptr = &elm.Sub
			}

		case obj.Base().Tag.IsSurface():
			srf := obj.(*Surface)

			elm := &geom.Elem{Data: rel}
			elm.Simd = srf.SSrf
			elm.Temp = srf.BvBox
			elm.Next = s.Rel
			s.Rel = elm
		}
	}
}

// UpdateObject records the parent matrix; the surface's own matrix is
// refreshed in UpdateFields.
func (s *Surface) UpdateObject(time int64, flags int32, trnode Node, mtx *geom.Mat4) {
	s.updateStatus(time, flags, trnode)
	s.pmtx = mtx
}

// UpdateFields updates the surface's matrix, axis mapping and shape
// coefficients.
func (s *Surface) UpdateFields() {
	if s.ObjChanged == 0 {
		return
	}

	s.updateMatrix(s.pmtx)
	s.updateNodeFields()

	s.setAxisMapping(s.SSrf)
	s.setTrnodeRec(s.SSrf)

	s.updateShape()
}

// adjustMinmax adjusts the local space bounding and clipping boxes
// according to the surface shape; the shape-specific cores live in
// quadric.go.
func (s *Surface) adjustMinmax(smin, smax, bmin, bmax, cmin, cmax *geom.Vec4) {
	// cbox adjust below is not currently used in clip_side as all
	// custom clippers are considered surface holes for now
	if cmin != nil && cmax != nil {
		srf := s.Srf

		for _, k := range [3]int{geom.I, geom.J, geom.K} {
			if smin[k] > srf.Min[k] {
				cmin[k] = -geom.Inf
			} else {
				cmin[k] = smin[k]
			}
			if smax[k] < srf.Max[k] {
				cmax[k] = +geom.Inf
			} else {
				cmax[k] = smax[k]
			}
		}
	}

	s.adjustShapeMinmax(smin, smax, bmin, bmax, cmin, cmax)
}

// invertMinmax transforms a sub-world space bounding or clipping box
// to local space by applying the axis mapping. Sub-world space does
// not include the trnode's matrix, so minmax data stays axis-aligned
// within it.
func (s *Surface) invertMinmax(smin, smax, dmin, dmax *geom.Vec4) {
	var tmin, tmax geom.Vec4

	zro := geom.Vec4{}
	pps := s.Pos()
	if s.Trnode == Node(s) {
		pps = &zro
	}

	for k := 0; k < 3; k++ {
		if smin[k] == -geom.Inf {
			tmin[k] = -geom.Inf
		} else {
			tmin[k] = (smin[k] - pps[k]) / s.Scl[k]
		}
		if smax[k] == +geom.Inf {
			tmax[k] = +geom.Inf
		} else {
			tmax[k] = (smax[k] - pps[k]) / s.Scl[k]
		}
	}

	for _, ax := range [3]int32{geom.I, geom.J, geom.K} {
		mp := s.Map[ax]
		if s.Sgn[ax] > 0 {
			dmin[ax] = +tmin[mp]
			dmax[ax] = +tmax[mp]
		} else {
			dmin[ax] = -tmax[mp]
			dmax[ax] = -tmin[mp]
		}
	}
}

// directMinmax transforms a local space bounding or clipping box to
// sub-world space by applying the axis mapping.
func (s *Surface) directMinmax(smin, smax, dmin, dmax *geom.Vec4) {
	var tmin, tmax geom.Vec4

	zro := geom.Vec4{}
	pps := s.Pos()
	if s.Trnode == Node(s) {
		pps = &zro
	}

	for _, ax := range [3]int32{geom.I, geom.J, geom.K} {
		mp := s.Map[ax]
		if s.Sgn[ax] > 0 {
			tmin[mp] = +smin[ax]
			tmax[mp] = +smax[ax]
		} else {
			tmin[mp] = -smax[ax]
			tmax[mp] = -smin[ax]
		}
	}

	for k := 0; k < 3; k++ {
		if tmin[k] == -geom.Inf {
			dmin[k] = -geom.Inf
		} else {
			dmin[k] = tmin[k]*s.Scl[k] + pps[k]
		}
		if tmax[k] == +geom.Inf {
			dmax[k] = +geom.Inf
		} else {
			dmax[k] = tmax[k]*s.Scl[k] + pps[k]
		}
	}
}

// recalcMinmax recalculates the bounding and clipping boxes from the
// given source box. With a nil source the original axis clippers seed
// the computation; with source and cbox the source accumulates into
// the cbox; with source and bbox the accumulated adjustments apply.
func (s *Surface) recalcMinmax(smin, smax, bmin, bmax, cmin, cmax *geom.Vec4) {
	var tmin, tmax geom.Vec4
	var lmin, lmax geom.Vec4

	var pmin, pmax *geom.Vec4

	switch {
	// accumulate bbox adjustments into cbox
	case smin != nil && smax != nil && bmin == nil && bmax == nil:
		s.invertMinmax(smin, smax, &tmin, &tmax)

		bmin = &lmin
		bmax = &lmax

		pmin = cmin
		pmax = cmax

		cmin = nil
		cmax = nil

	// apply bbox adjustments from cbox
	case smin != nil && smax != nil && cmin != nil && cmax != nil:
		s.invertMinmax(smin, smax, &tmin, &tmax)

		for k := 0; k < 3; k++ {
			if tmin[k] < s.Srf.Min[k] {
				tmin[k] = s.Srf.Min[k]
			}
			if tmax[k] > s.Srf.Max[k] {
				tmax[k] = s.Srf.Max[k]
			}
		}

	// init bbox with original axis clippers
	case smin == nil && smax == nil:
		tmin = s.Srf.Min
		tmax = s.Srf.Max
	}

	s.adjustMinmax(&tmin, &tmax, bmin, bmax, cmin, cmax)

	// accumulate bbox adjustments into cbox
	if pmin != nil && pmax != nil {
		for _, ax := range [3]int{geom.I, geom.J, geom.K} {
			if tmin[ax] == bmin[ax] {
				tmin[ax] = -geom.Inf
			} else {
				tmin[ax] = bmin[ax]
			}
			if tmax[ax] == bmax[ax] {
				tmax[ax] = +geom.Inf
			} else {
				tmax[ax] = bmax[ax]
			}
		}

		s.directMinmax(&tmin, &tmax, &tmin, &tmax)

		for k := 0; k < 3; k++ {
			if pmin[k] < tmin[k] {
				pmin[k] = tmin[k]
			}
			if pmax[k] > tmax[k] {
				pmax[k] = tmax[k]
			}
		}

		bmin = nil
		bmax = nil
	}

	if bmin != nil && bmax != nil {
		s.directMinmax(bmin, bmax, bmin, bmax)
	}

	if cmin != nil && cmax != nil {
		s.directMinmax(cmin, cmax, cmin, cmax)
	}
}

// updateMinmax updates the bounding and clipping box data, letting
// custom clippers tighten the bbox when the adjust optimization is on.
func (s *Surface) updateMinmax() {
	// inherit the surface's changed status from the object
	s.srfChanged = s.ObjChanged

	elm := *s.Shape.Clp

	// no custom clippers, or the surface itself has non-trivial
	// transform
	if !s.sc.opts.Has(geom.OptsAdjust) || elm == nil || s.Trnode == Node(s) {
		s.recalcMinmax(nil, nil,
			&s.Shape.BMin, &s.Shape.BMax,
			&s.Shape.CMin, &s.Shape.CMax)
		return
	}

	clipAdjusts := func(obj Node, data int32, skip bool) bool {
		return obj != nil && !skip &&
			!obj.Base().Tag.IsArray() &&
			!obj.Base().Tag.IsPlane() &&
			sameTrnode(obj.Base().Trnode, s.Trnode) &&
			data == geom.RelMinusOuter
	}

	skip := false
	for ; elm != nil; elm = elm.Next {
		var obj Node
		if elm.Temp != nil {
			obj = elm.Temp.Obj.(Node)
		} else {
			skip = !skip
		}

		if !clipAdjusts(obj, elm.Data, skip) {
			continue
		}

		// update the surface's changed status from clippers
		s.srfChanged |= obj.Base().ObjChanged
	}

	if s.srfChanged == 0 {
		return
	}

	// first calculate only the bbox from the original axis clippers
	// and the surface shape
	s.recalcMinmax(nil, nil,
		&s.Shape.BMin, &s.Shape.BMax,
		nil, nil)

	// prepare the cbox as temporary storage for bbox adjustments by
	// custom clippers
	s.Shape.CMin = geom.Vec4{-geom.Inf, -geom.Inf, -geom.Inf}
	s.Shape.CMax = geom.Vec4{+geom.Inf, +geom.Inf, +geom.Inf}

	skip = false
	for elm = *s.Shape.Clp; elm != nil; elm = elm.Next {
		var obj Node
		if elm.Temp != nil {
			obj = elm.Temp.Obj.(Node)
		} else {
			skip = !skip
		}

		if !clipAdjusts(obj, elm.Data, skip) {
			continue
		}

		// accumulate bbox adjustments from individual outer
		// clippers into the cbox
		clp := obj.(*Surface)
		clp.recalcMinmax(&s.Shape.BMin, &s.Shape.BMax,
			nil, nil,
			&s.Shape.CMin, &s.Shape.CMax)
	}

	// apply the accumulated adjustments, calculate the final bbox
	// and cbox for the surface
	s.recalcMinmax(&s.Shape.CMin, &s.Shape.CMax,
		&s.Shape.BMin, &s.Shape.BMax,
		&s.Shape.CMin, &s.Shape.CMax)
}

// UpdateBounds updates the surface's bounding box, volume and related
// backend fields (parallel phase 2).
func (s *Surface) UpdateBounds() error {
	s.updateMinmax()

	if s.srfChanged == 0 {
		return nil
	}

	// raise the changed status up the branch; only ever set to the
	// same non-zero value from the parallel phase, checked in the
	// next sequential phase
	for par := s.Parent; par != nil; par = par.Parent {
		atomic.StoreInt32(&par.ArrChanged, UpdateFlagObj)
	}

	if len(s.BvBox.Verts) != 0 {
		if err := s.BvBox.SetBBGeom(); err != nil {
			return err
		}
	}

	for k := 0; k < 3; k++ {
		if s.Shape.CMin[k] == -geom.Inf {
			s.SSrf.MinT[k] = 0
		} else {
			s.SSrf.MinT[k] = 1
		}
		if s.Shape.CMax[k] == +geom.Inf {
			s.SSrf.MaxT[k] = 0
		} else {
			s.SSrf.MaxT[k] = 1
		}
	}

	zro := geom.Vec4{}
	pps := s.Pos()
	if s.Trnode == Node(s) {
		pps = &zro
	}

	geom.Sub3(&s.SSrf.Min, s.Shape.BMin, *pps)
	geom.Sub3(&s.SSrf.Max, s.Shape.BMax, *pps)

	return nil
}
