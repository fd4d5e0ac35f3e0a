// Copyright (c) 2026, Tracekit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package geom

import "github.com/chewxy/math32"

// coneAngles computes the half-angles of the cones from pps to the two
// bounding spheres and the angle between the cone axes. A viewpoint
// inside or touching a sphere yields a full-circle half-angle so the
// separation test never culls it.
func coneAngles(pps Vec4, nd1, nd2 *Bound) (nd1Ang, nd2Ang, dffAng, nd1Len, nd2Len float32) {
	var nd1Vec, nd2Vec Vec4
	Sub3(&nd1Vec, nd1.Mid, pps)
	nd1Len = Len3(nd1Vec)

	Sub3(&nd2Vec, nd2.Mid, pps)
	nd2Len = Len3(nd2Vec)

	dff := Dot3(nd1Vec, nd2Vec)

	if nd1Len <= CullThreshold {
		dff = 0
	} else {
		dff /= nd1Len
	}
	if nd1Len >= nd1.Rad && nd1Len > CullThreshold {
		nd1Ang = math32.Asin(nd1.Rad / nd1Len)
	} else {
		nd1Ang = 2 * math32.Pi
	}

	if nd2Len <= CullThreshold {
		dff = 0
	} else {
		dff /= nd2Len
	}
	if nd2Len >= nd2.Rad && nd2Len > CullThreshold {
		nd2Ang = math32.Asin(nd2.Rad / nd2Len)
	} else {
		nd2Ang = 2 * math32.Pi
	}

	dffAng = math32.Acos(math32.Max(-1, math32.Min(1, dff)))
	return
}

// bboxConv determines whether obj's bbox projection is convex as seen
// from pos. Only faces fully covered by a plane are counted.
//
//	0 - concave
//	* - convex mask in face-index format
func bboxConv(obj *Bound, pos Vec4) int32 {
	if obj.Fln == 0 {
		return 0
	}

	// if only one bbox face is fully covered by a plane,
	// the bbox projection is always convex
	if obj.Tag.IsPlane() || (obj.Tag.IsArray() && obj.Fln == 1) {
		return obj.Flf
	}

	// transform "pos" to obj's trnode sub-world space,
	// where bbox is defined
	pps := nodeTran(obj, pos)

	var flm int32

	// determine which bbox faces are visible from "pps",
	// in minmax data format
	for i := 0; i < 3; i++ {
		if pps[i] < obj.BMin[i] {
			flm |= 1 << (i * 2)
		} else if pps[i] > obj.BMax[i] {
			flm |= 2 << (i * 2)
		}
	}

	// visible faces only make a convex projection
	// when each is fully covered by a plane
	if flm != 0 && flm == flm&obj.Flm {
		return BBoxFlag(obj.Map, flm)
	}

	return 0
}

// BBoxShad determines if nd1's bbox casts a shadow on nd2's bbox as
// seen from obj's mid (the light position).
//
//	0 - no
//	1 - yes
func BBoxShad(obj, nd1, nd2 *Bound) int32 {
	// check if nodes differ and have bounds
	if nd1.Rad == Inf || nd2.Rad == Inf || nd1 == nd2 {
		return 1
	}

	pps := obj.Mid

	// check if both nodes are surfaces and clip relations
	// for shadow optimization are enabled in runtime
	if obj.Opts.Has(OptsShadowExt2) &&
		nd1.Tag.IsSurface() && nd2.Tag.IsSurface() {
		srf := nd1.Shp
		ref := nd2.Shp

		if SurfClip(ref, nd1) != 0 || SurfClip(srf, nd2) != 0 {
			return 1
		}
	}

	// check if cones from bounding spheres don't intersect
	nd1Ang, nd2Ang, dffAng, nd1Len, nd2Len := coneAngles(pps, nd1, nd2)
	if nd1Ang+nd2Ang < dffAng {
		return 0
	}

	// check if bounding spheres themselves don't intersect
	var dff Vec4
	Sub3(&dff, nd1.Mid, nd2.Mid)
	dffLen := Len3(dff)

	// check if the shadow bounding sphere is fully behind
	if nd1.Rad+nd2.Rad < dffLen && nd1Len > nd2Len {
		return 0
	}

	// check if nodes don't have bounding boxes or bbox relations
	// for shadow optimization are disabled in runtime
	if !obj.Opts.Has(OptsShadowExt1) ||
		len(nd1.Verts) == 0 || len(nd2.Verts) == 0 {
		return 1
	}

	// check if the light position is inside nd1's bbox
	if nodeBBox(nd1, pps) != 0 {
		return 1
	}

	// check if bounding boxes cast shadow

	// run through nd1's verts and nd2's faces
	for i := range nd1.Verts {
		for j := range nd2.Faces {
			fc := &nd2.Faces[j]
			k := VertFace(pps, nd1.Verts[i].Pos, +1,
				nd2.Verts[fc.Index[0]].Pos,
				nd2.Verts[fc.Index[1]].Pos,
				nd2.Verts[fc.Index[3]].Pos,
				fc.K, fc.I, fc.J)
			if k == 1 {
				return 1
			}
		}
	}

	// run through nd2's verts and nd1's faces
	for i := range nd2.Verts {
		for j := range nd1.Faces {
			fc := &nd1.Faces[j]
			k := VertFace(pps, nd2.Verts[i].Pos, +1,
				nd1.Verts[fc.Index[0]].Pos,
				nd1.Verts[fc.Index[1]].Pos,
				nd1.Verts[fc.Index[3]].Pos,
				fc.K, fc.I, fc.J)
			if k == 2 || k == 4 {
				return 1
			}
		}
	}

	// run through nd1's edges and nd2's edges
	for i := range nd1.Edges {
		ei := &nd1.Edges[i]
		for j := range nd2.Edges {
			ej := &nd2.Edges[j]
			k := EdgeEdge(pps, +1,
				nd1.Verts[ei.Index[0]].Pos,
				nd1.Verts[ei.Index[1]].Pos, ei.K,
				nd2.Verts[ej.Index[0]].Pos,
				nd2.Verts[ej.Index[1]].Pos, ej.K)
			if k == 1 {
				return 1
			}
		}
	}

	return 0
}

// sortClipTable resolves the order of two surfaces tied by custom clip
// relations. It is the dense case table of the sorting predicate and
// must be kept entry-for-entry: i and j are the clip relations in both
// directions, s and t the viewpoint sides, p and q plane-ness, m and n
// concavity of the two surfaces. The second return value is false when
// the table is inconclusive and the geometric protocol must continue.
func sortClipTable(i, j, s, t, p, q, m, n int32) (int32, bool) {
	u := int32(8)

	switch {
	case i == 2 && j == 2:
		if s == 2 && t == 1 {
			return 1, true
		}
		if s == 1 && t == 2 {
			return 2, true
		}
		if s == 1 && t == 1 {
			if m == 0 && n == 0 {
				return 3, true
			}
			if m == 0 {
				return 2, true
			}
			if n == 0 {
				return 1, true
			}
		}
		if s == 2 && t == 2 {
			if p == 1 && q == 1 {
				return 3, true
			}
			if q == 1 {
				return 2, true
			}
			if p == 1 {
				return 1, true
			}
		}
	case i == 1 && j == 1:
		if s == 2 && t == 1 {
			return 2, true
		}
		if s == 1 && t == 2 {
			return 1, true
		}
		if s == 1 && t == 1 {
			if m == 0 && n == 0 {
				return 3, true
			}
			if n == 0 {
				return 2, true
			}
			if m == 0 {
				return 1, true
			}
		}
		if s == 2 && t == 2 {
			if p == 1 && q == 1 {
				return 3, true
			}
			if p == 1 {
				return 2, true
			}
			if q == 1 {
				return 1, true
			}
		}
	case i == 2 && j == 1:
		if s == 2 && t == 2 ||
			s == 2 && p == 1 && t == 1 && n == 1 ||
			s == 1 && m == 1 && t == 2 && q == 1 {
			if s == 1 || p == 1 {
				u = 0
			}
			return u | 1, true
		}
		if s == 1 && t == 1 ||
			s == 1 && m == 0 && q == 0 ||
			s == 2 && p == 0 && t == 1 && n == 0 {
			return 2, true
		}
		if s == 2 && p == 1 && t == 1 ||
			s == 1 && m == 0 && t == 2 && q == 1 {
			return 3, true
		}
	case i == 1 && j == 2:
		if t == 2 && s == 2 ||
			t == 2 && q == 1 && s == 1 && m == 1 ||
			t == 1 && n == 1 && s == 2 && p == 1 {
			if t == 1 || q == 1 {
				u = 0
			}
			return u | 2, true
		}
		if t == 1 && s == 1 ||
			t == 1 && n == 0 && p == 0 ||
			t == 2 && q == 0 && s == 1 && m == 0 {
			return 1, true
		}
		if t == 2 && q == 1 && s == 1 ||
			t == 1 && n == 0 && s == 2 && p == 1 {
			return 3, true
		}
	case i == 2 && j == 0:
		if s == 2 {
			return 1, true
		}
		if s == 1 && m == 0 {
			return 2, true
		}
	case i == 0 && j == 2:
		if t == 2 {
			return 2, true
		}
		if t == 1 && n == 0 {
			return 1, true
		}
	case i == 1 && j == 0:
		if s == 1 ||
			s == 2 && p == 0 && q == 1 ||
			s == 2 && p == 0 && t == 1 && n == 0 {
			return 1, true
		}
		if s == 2 && p == 1 {
			return 2, true
		}
	case i == 0 && j == 1:
		if t == 1 ||
			t == 2 && q == 0 && p == 1 ||
			t == 2 && q == 0 && s == 1 && m == 0 {
			return 2, true
		}
		if t == 2 && q == 1 {
			return 1, true
		}
	}

	return 0, false
}

// BBoxSort determines the order of nd1's and nd2's bboxes as seen from
// obj's bbox mid.
//
//	  1 - no swap
//	  2 - do swap
//	  3 - neutral
//	4|1 - no swap, remove (nd1 fully obscures nd2)
//	4|2 - do swap, remove (nd2 fully obscures nd1)
//	8|1 - no swap, unsortable
//	8|2 - do swap, unsortable
func BBoxSort(obj, nd1, nd2 *Bound) int32 {
	// check if nodes differ and have bounds
	if nd1.Rad == Inf || nd2.Rad == Inf || nd1 == nd2 {
		return 8 | 1
	}

	pps := obj.Mid
	u := int32(8)
	f := int32(0)
	c := int32(0)
	r := int32(0)
	var m1, m2 int32

	// check if both nodes are surfaces and clip relations
	// for sorting optimization are enabled in runtime
	if obj.Opts.Has(OptsInsertExt2) &&
		nd1.Tag.IsSurface() && nd2.Tag.IsSurface() {
		srf := nd1.Shp
		ref := nd2.Shp

		p := int32(0)
		if srf.Tag.IsPlane() {
			p = 1
		}
		q := int32(0)
		if ref.Tag.IsPlane() {
			q = 1
		}

		i := SurfClip(ref, nd1)
		j := SurfClip(srf, nd2)

		if i != 0 || j != 0 {
			m := surfConc(srf)
			n := surfConc(ref)

			s := SurfSide(srf, pps)
			t := SurfSide(ref, pps)

			if obj == nd1 {
				s = 0
			}
			if obj == nd2 {
				t = 0
			}

			if s != 0 && t != 0 {
				if op, ok := sortClipTable(i, j, s, t, p, q, m, n); ok {
					return op
				}
			}
		}
	}

	// check if cones from bounding spheres don't intersect
	nd1Ang, nd2Ang, dffAng, nd1Len, nd2Len := coneAngles(pps, nd1, nd2)
	if nd1Ang+nd2Ang < dffAng {
		return 3
	}

	// check if bounding spheres themselves don't intersect
	var dff Vec4
	Sub3(&dff, nd1.Mid, nd2.Mid)
	if nd1.Rad+nd2.Rad < Len3(dff) {
		u = 0
	}

	// check the order for bounding spheres
	s := int32(2)
	if nd1Len < nd2Len {
		s = 1
	}

	// check if nodes don't have bounding boxes or bbox relations
	// for sorting optimization are disabled in runtime
	if !obj.Opts.Has(OptsInsertExt1) ||
		len(nd1.Verts) == 0 || len(nd2.Verts) == 0 {
		return u | s
	}

	// check if nodes are capable of removing each other,
	// if hidden-surface removal is enabled
	if obj.Opts.Has(OptsRemove) {
		if obj != nd1 {
			if m1 = bboxConv(nd1, pps); m1 != 0 {
				r |= 1
			}
		}
		if obj != nd2 {
			if m2 = bboxConv(nd2, pps); m2 != 0 {
				r |= 2
			}
		}
	}

	// check the order for bounding boxes

	var d int32

	// run through nd1's verts and nd2's faces, additional rounds
	// re-check the removal candidate from each of obj's own verts
	for q, m := int32(0), int32(1); q < m && (f == 0 || r&2 != 0); q++ {
		n := 0
		for i := 0; i < len(nd1.Verts); i++ {
			p := int32(0)

			for j := 0; j < len(nd2.Faces); j++ {
				t := int32(0)

				fc := &nd2.Faces[j]
				k := VertFace(pps, nd1.Verts[i].Pos, +1,
					nd2.Verts[fc.Index[0]].Pos,
					nd2.Verts[fc.Index[1]].Pos,
					nd2.Verts[fc.Index[3]].Pos,
					fc.K, fc.I, fc.J)

				// ignore nd2's face if not fully covered by a
				// plane when attempting to remove nd1
				if m2&(1<<j) != 0 &&
					(k == 3 || k == 2 || (k == 4 && q != 0)) {
					t = 1
				}
				if k == 4 {
					k = 2
				}
				if k == 1 || k == 2 {
					if c == 0 {
						c = k
					} else if c != k {
						f = 8
						if r&2 == 0 {
							i = len(nd1.Verts)
							break
						}
					}
					// early out, if spheres don't intersect
					if u == 0 && r == 0 {
						return c
					}
				}

				p |= t
			}
			if p != 0 {
				n++
			}
		}

		if q == 0 {
			d = c
		}

		// removal with margins (th: +1) and the on-surface class
		// (k == 3) is the aggressive level on the edges and on the
		// surface respectively
		if r&2 != 0 && c == 2 && n == len(nd1.Verts) {
			if obj.Tag.IsSurface() || obj.Tag.IsArray() {
				if len(obj.Verts) == 0 {
					break
				}
				if q < int32(len(obj.Verts)) {
					pps = obj.Verts[q].Pos
					m2 = bboxConv(nd2, pps)
					c = 0
				} else {
					return 4 | 2
				}
				if m2 == 0 {
					break
				}
				if q == 0 {
					m = int32(len(obj.Verts)) + 1
				}
			} else {
				// camera or light viewpoint is a single point
				return 4 | 2
			}
		} else {
			break
		}
	}

	pps = obj.Mid
	c = d

	// run through nd2's verts and nd1's faces
	for q, m := int32(0), int32(1); q < m && (f == 0 || r&1 != 0); q++ {
		n := 0
		for i := 0; i < len(nd2.Verts); i++ {
			p := int32(0)

			for j := 0; j < len(nd1.Faces); j++ {
				t := int32(0)

				fc := &nd1.Faces[j]
				k := VertFace(pps, nd2.Verts[i].Pos, +1,
					nd1.Verts[fc.Index[0]].Pos,
					nd1.Verts[fc.Index[1]].Pos,
					nd1.Verts[fc.Index[3]].Pos,
					fc.K, fc.I, fc.J)

				// ignore nd1's face if not fully covered by a
				// plane when attempting to remove nd2
				if m1&(1<<j) != 0 &&
					(k == 3 || k == 2 || (k == 4 && q != 0)) {
					t = 1
				}
				if k == 4 {
					k = 2
				}
				k ^= 3
				if k == 1 || k == 2 {
					if c == 0 {
						c = k
					} else if c != k {
						f = 8
						if r&1 == 0 {
							i = len(nd2.Verts)
							break
						}
					}
					// early out, if spheres don't intersect
					if u == 0 && r == 0 {
						return c
					}
				}

				p |= t
			}
			if p != 0 {
				n++
			}
		}

		if q == 0 {
			d = c
		}

		if r&1 != 0 && c == 1 && n == len(nd2.Verts) {
			if obj.Tag.IsSurface() || obj.Tag.IsArray() {
				if len(obj.Verts) == 0 {
					break
				}
				if q < int32(len(obj.Verts)) {
					pps = obj.Verts[q].Pos
					m1 = bboxConv(nd1, pps)
				} else {
					return 4 | 1
				}
				if m1 == 0 {
					break
				}
				if q == 0 {
					m = int32(len(obj.Verts)) + 1
				}
			} else {
				return 4 | 1
			}
		} else {
			break
		}
	}

	pps = obj.Mid
	c = d

	if f == 0 {
		// run through nd1's edges and nd2's edges
		for i := 0; i < len(nd1.Edges); i++ {
			ei := &nd1.Edges[i]

			for j := 0; j < len(nd2.Edges); j++ {
				ej := &nd2.Edges[j]

				k := EdgeEdge(pps, +1,
					nd1.Verts[ei.Index[0]].Pos,
					nd1.Verts[ei.Index[1]].Pos, ei.K,
					nd2.Verts[ej.Index[0]].Pos,
					nd2.Verts[ej.Index[1]].Pos, ej.K)
				if k == 4 {
					k = 2
				}
				if k == 1 || k == 2 {
					if c == 0 {
						c = k
					} else if c != k {
						f = 8
						i = len(nd1.Edges)
						break
					}
					// early out, if spheres don't intersect
					if u == 0 {
						return c
					}
				}
			}
		}
	}

	// rough approximation of the order for intersecting bboxes
	if f != 0 {
		return f | s
	}

	if c == 0 {
		return 3
	}
	return c
}
