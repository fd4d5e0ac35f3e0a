// Copyright (c) 2026, Tracekit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package geom

// surfHole determines if there are holes in srf not related to ref or
// inside accum segments of the custom clippers list. Holes are either
// minmax clippers or custom clippers potentially allowing to see the
// surface's inner side from outside.
//
//	0 - no
//	1 - yes, minmax only
//	2 - yes, custom only
//	3 - yes, both
func surfHole(srf *Shape, ref *Bound) int32 {
	var c int32

	if srf.Tag.IsPlane() {
		return c
	}

	// check minmax clippers
	if srf.CMin[X] != -Inf || srf.CMax[X] != +Inf ||
		srf.CMin[Y] != -Inf || srf.CMax[Y] != +Inf ||
		srf.CMin[Z] != -Inf || srf.CMax[Z] != +Inf {
		c |= 1
	}

	skip := false

	for elm := *srf.Clp; elm != nil; elm = elm.Next {
		obj := elm.Temp

		// skip accum markers
		if obj == nil {
			skip = !skip
			continue
		}

		// skip trnode elements
		if obj.Tag.IsArray() {
			continue
		}

		// if there is a clipper other than "ref"
		// or inside an accum segment, stop
		if obj != ref || skip {
			c |= 2
			break
		}
	}

	return c
}

// SurfClip determines whether surface clp outside of any accum segment
// clips surface srf and which of clp's sides srf is clipped by.
//
//	0 - no, might be inside accum segment
//	1 - yes, inner
//	2 - yes, outer
func SurfClip(srf *Shape, clp *Bound) int32 {
	var c int32

	skip := false

	for elm := *srf.Clp; elm != nil; elm = elm.Next {
		obj := elm.Temp

		if obj == nil {
			skip = !skip
			continue
		}

		if obj.Tag.IsArray() {
			continue
		}

		if obj == clp && !skip {
			c = elm.Data
			break
		}
	}

	// convert inner/outer from (-1, +1) to (1, 2) notation
	if c == 0 {
		return 0
	}
	return 1 + ((1 + c) >> 1)
}

// surfConc determines whether the non-clipped surface is concave.
func surfConc(srf *Shape) int32 {
	if srf.Tag == TagCone ||
		srf.Tag == TagHyperboloid ||
		srf.Tag == TagHyperCylinder ||
		srf.Tag == TagHyperParaboloid {
		return 1
	}
	return 0
}

// clipConc determines whether the clipped surface is concave.
func clipConc(srf *Shape) int32 {
	var pps *Vec4
	zro := Vec4{}
	if srf.Trnode == &srf.Bound {
		pps = &zro
	} else {
		pps = srf.Pos
	}
	mpK := srf.Map[K]

	if (srf.Tag == TagCone ||
		srf.Tag == TagHyperboloid ||
		srf.Tag == TagHyperCylinder) &&
		(srf.Sci[W] <= 0 &&
			srf.BMin[mpK] < pps[mpK] &&
			srf.BMax[mpK] > pps[mpK] ||
			srf.Sci[W] > 0) ||
		srf.Tag == TagHyperParaboloid {
		return 1
	}
	return 0
}

// nodeTran transforms pos into obj's trnode sub-world space, returning
// pos unchanged when no trnode is present.
func nodeTran(obj *Bound, pos Vec4) Vec4 {
	if obj.Trnode == nil {
		return pos
	}

	var dff, loc Vec4
	Sub3(&dff, pos, *obj.Trnode.Pos)
	dff[W] = 0 // inverse matrix is 3x3 only

	MatMulVec(&loc, obj.Trnode.Pinv, dff)

	return loc
}

// surfCbox determines if pos is outside the surface's cbox plus
// margin.
//
//	0 - no
//	1 - yes
//	2 - yes, on the border with margin
func surfCbox(srf *Shape, pos Vec4) int32 {
	// transform "pos" to the trnode sub-world space,
	// where cbox is defined
	pps := nodeTran(&srf.Bound, pos)

	// margin is applied to "pps" as cmin/cmax might be infinite
	switch {
	case pps[X]+CullThreshold < srf.CMin[X] ||
		pps[Y]+CullThreshold < srf.CMin[Y] ||
		pps[Z]+CullThreshold < srf.CMin[Z] ||
		pps[X]-CullThreshold > srf.CMax[X] ||
		pps[Y]-CullThreshold > srf.CMax[Y] ||
		pps[Z]-CullThreshold > srf.CMax[Z]:
		return 1
	case pps[X]-CullThreshold <= srf.CMin[X] ||
		pps[Y]-CullThreshold <= srf.CMin[Y] ||
		pps[Z]-CullThreshold <= srf.CMin[Z] ||
		pps[X]+CullThreshold >= srf.CMax[X] ||
		pps[Y]+CullThreshold >= srf.CMax[Y] ||
		pps[Z]+CullThreshold >= srf.CMax[Z]:
		return 2
	}
	return 0
}

// nodeBBox determines if pos is inside obj's bbox minus margin.
//
//	0 - no
//	1 - yes
//	2 - yes, on the border with margin
func nodeBBox(obj *Bound, pos Vec4) int32 {
	pps := nodeTran(obj, pos)

	// margin is applied to "pps" for consistency with surfCbox
	switch {
	case pps[X]-CullThreshold > obj.BMin[X] &&
		pps[Y]-CullThreshold > obj.BMin[Y] &&
		pps[Z]-CullThreshold > obj.BMin[Z] &&
		pps[X]+CullThreshold < obj.BMax[X] &&
		pps[Y]+CullThreshold < obj.BMax[Y] &&
		pps[Z]+CullThreshold < obj.BMax[Z]:
		return 1
	case pps[X]+CullThreshold >= obj.BMin[X] &&
		pps[Y]+CullThreshold >= obj.BMin[Y] &&
		pps[Z]+CullThreshold >= obj.BMin[Z] &&
		pps[X]-CullThreshold <= obj.BMax[X] &&
		pps[Y]-CullThreshold <= obj.BMax[Y] &&
		pps[Z]-CullThreshold <= obj.BMax[Z]:
		return 2
	}
	return 0
}

// SurfSide determines which side of the non-clipped surface is seen
// from pos.
//
//	0 - none, on the surface with margin
//	1 - inner
//	2 - outer
func SurfSide(srf *Shape, pos Vec4) int32 {
	loc := nodeTran(&srf.Bound, pos)

	// translate "pos" to the surface's local space
	if srf.Trnode != &srf.Bound {
		Sub3(&loc, loc, *srf.Pos)
	}

	var d float32

	// surface's axis mapping (trivial transform)
	// is contained in "sci", "scj", "sck" fields
	if srf.Tag.IsPlane() {
		d = Dot3(loc, srf.Sck)
	} else {
		dcj := Dot3(loc, srf.Scj)
		dci := loc[X]*loc[X]*srf.Sci[X] +
			loc[Y]*loc[Y]*srf.Sci[Y] +
			loc[Z]*loc[Z]*srf.Sci[Z]
		d = dci - dcj - srf.Sci[W]
	}

	//    inner   | s |   outer
	// -----------|-*-|-----------
	//      1     | 0 |     2
	switch {
	case d > 0+CullThreshold:
		return 2
	case d >= 0-CullThreshold:
		return 0
	}
	return 1
}

// ClipSide determines which side of the clipped surface is seen from
// pos.
//
//	1 - inner
//	2 - outer
//	3 - both, also if on the surface with margin
func ClipSide(srf *Shape, pos Vec4) int32 {
	c := SurfSide(srf, pos)

	// if "pos" is on the surface with margin, both sides
	if c == 0 {
		return 3
	}

	// if the surface is a plane, only one side can be seen
	if srf.Tag.IsPlane() {
		return c
	}

	// if the surface is convex and "pos" is inside,
	// only one side can be seen
	if surfConc(srf) == 0 && c == 1 {
		return c
	}

	k := surfHole(srf, &srf.Bound)

	if k == 0 {
		return c
	}
	if k&2 != 0 {
		return 3
	}

	// check if "pos" is outside of the surface's cbox
	if surfCbox(srf, pos) != 0 {
		return 3
	}

	return c
}

// BBoxFuse determines if the two bboxes intersect.
//
//	0 - no
//	1 - yes, quick - might be fully inside
//	2 - yes, thorough - borders intersect
func BBoxFuse(nd1, nd2 *Bound) int32 {
	// check if nodes differ and have bounds
	if nd1.Rad == Inf || nd2.Rad == Inf || nd1 == nd2 {
		return 2
	}

	// check if bounding spheres don't intersect
	var dff Vec4
	Sub3(&dff, nd1.Mid, nd2.Mid)
	if nd1.Rad+nd2.Rad < Len3(dff) {
		return 0
	}

	// check if nodes don't have bounding boxes or bbox relations
	// for per-side optimization are disabled in runtime
	if !nd1.Opts.Has(Opts2SidedExt1) ||
		len(nd1.Verts) == 0 || len(nd2.Verts) == 0 {
		return 1
	}

	// check if one bbox's mid is inside another
	if nodeBBox(nd1, nd2.Mid) != 0 {
		return 1
	}
	if nodeBBox(nd2, nd1.Mid) != 0 {
		return 1
	}

	// check if edges of one bbox intersect faces of another

	for i := range nd1.Edges {
		ei := &nd1.Edges[i]
		for j := range nd2.Faces {
			fc := &nd2.Faces[j]
			k := VertFace(nd1.Verts[ei.Index[0]].Pos,
				nd1.Verts[ei.Index[1]].Pos, +1,
				nd2.Verts[fc.Index[0]].Pos,
				nd2.Verts[fc.Index[1]].Pos,
				nd2.Verts[fc.Index[3]].Pos,
				fc.K, fc.I, fc.J)
			if k == 2 {
				return 2
			}
		}
	}

	for i := range nd2.Edges {
		ei := &nd2.Edges[i]
		for j := range nd1.Faces {
			fc := &nd1.Faces[j]
			k := VertFace(nd2.Verts[ei.Index[0]].Pos,
				nd2.Verts[ei.Index[1]].Pos, +1,
				nd1.Verts[fc.Index[0]].Pos,
				nd1.Verts[fc.Index[1]].Pos,
				nd1.Verts[fc.Index[3]].Pos,
				fc.K, fc.I, fc.J)
			if k == 2 {
				return 2
			}
		}
	}

	return 0
}

// BBoxSide determines which side of the clipped surface srf is seen
// from obj's entire bbox (from its position alone for lights and
// cameras).
//
//	0 - none, if both surfaces are the same plane
//	1 - inner
//	2 - outer
//	3 - both, also if on the surface with margin
func BBoxSide(obj *Bound, srf *Shape) int32 {
	if obj.Tag == TagLight || obj.Tag == TagCamera {
		return ClipSide(srf, obj.Mid)
	}

	var c int32

	p := int32(0)
	if srf.Tag.IsPlane() {
		p = 1
	}
	k := surfHole(srf, obj)
	m := surfConc(srf)

	// check if "obj" is a surface and clip relations
	// for per-side optimization are enabled in runtime
	if obj.Opts.Has(Opts2SidedExt2) && obj.Tag.IsSurface() {
		ref := obj.Shp

		// check if surfaces are the same
		if srf == ref {
			if p == 0 {
				c |= 1
				if clipConc(ref) == 1 {
					c |= 2
				}
			}
			return c
		}

		i := SurfClip(ref, &srf.Bound)
		j := SurfClip(srf, &ref.Bound)

		switch {
		case i == 2 && j == 2, i == 2 && j == 0:
			c |= 1
			if m == 1 && k != 0 {
				c |= 2
			}
			return c
		case i == 2 && j == 1:
			c |= 1
			if m == 1 {
				c |= 2
			}
			return c
		case i == 1 && j == 2:
			n := surfConc(ref)
			c |= 2
			if p == 0 && (n == 1 || k != 0) {
				c |= 1
			}
			return c
		case i == 1 && j == 1:
			c |= 2
			if p == 0 {
				c |= 1
			}
			return c
		case i == 1 && j == 0:
			c |= 2
			if p == 0 && k != 0 {
				c |= 1
			}
			return c
		case i == 0 && j == 2, i == 0 && j == 1:
			c |= 3
			return c
		}
	}

	// check if all of obj's verts are on the same side
	if p == 1 {
		if len(obj.Verts) == 0 {
			c |= 3
		}
		for i := range obj.Verts {
			c |= SurfSide(srf, obj.Verts[i].Pos)
			if c == 3 {
				break
			}
		}
		return c
	}

	// check if bboxes intersect
	n := BBoxFuse(obj, &srf.Bound)

	if n != 0 && m == 1 || n == 2 {
		c |= 3
		return c
	}

	// check if all of obj's verts are inside the surface
	if n == 1 && m == 0 {
		c |= 1
		for i := range obj.Verts {
			if SurfSide(srf, obj.Verts[i].Pos) == 2 {
				c |= 2
				break
			}
		}
		return c
	}

	// check if the surface has holes
	if k == 0 {
		c |= 2
		return c
	}
	if k&2 != 0 {
		c |= 3
		return c
	}

	// check if all of obj's verts are inside the surface's cbox
	if k == 1 {
		c |= 2
		for i := range obj.Verts {
			if surfCbox(srf, obj.Verts[i].Pos) != 0 {
				c |= 1
				break
			}
		}
	}

	return c
}
