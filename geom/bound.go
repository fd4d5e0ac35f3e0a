// Copyright (c) 2026, Tracekit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package geom

import (
	"errors"

	"github.com/chewxy/math32"
)

// Tag identifies the variant of an object in the hierarchy. Surfaces
// occupy the range [TagPlane, TagSurfaceMax].
type Tag int32

const (
	TagCamera Tag = iota
	TagLight
	TagArray

	TagPlane
	TagCylinder
	TagSphere
	TagCone
	TagParaboloid
	TagHyperboloid
	TagParaCylinder
	TagHyperCylinder
	TagHyperParaboloid

	// TagSurfaceMax tags the synthetic box "surfaces" that stand in
	// for array bounding volumes in backend lists.
	TagSurfaceMax
)

// IsSurface reports whether the tag is one of the renderable shapes.
func (t Tag) IsSurface() bool {
	return t >= TagPlane && t <= TagHyperParaboloid
}

// IsArray reports whether the tag is an array node.
func (t Tag) IsArray() bool {
	return t == TagArray
}

// IsPlane reports whether the tag is the 1st order surface.
func (t Tag) IsPlane() bool {
	return t == TagPlane
}

// Bounding box geometry limits.
const (
	VertsLimit = 8
	EdgesLimit = 12
	FacesLimit = 6
)

// ErrBoxGeometry reports a bounding box whose geometry tables exceed
// the fixed limits.
var ErrBoxGeometry = errors.New("bbox geometry limits exceeded")

// Vert is a vertex in world space.
type Vert struct {
	Pos Vec4
}

// Edge is a line segment between two box vertices. K is the world axis
// of the edge direction, or 3 when the edge is not axis-aligned.
type Edge struct {
	Index [2]int32
	K     int32
}

// Face is a rectangle on a plane between four box vertices. K is the
// world axis of the face normal, I and J span the face base; each is 3
// when the face is not axis-aligned.
type Face struct {
	Index [4]int32
	K     int32
	I     int32
	J     int32
}

// BoxEdges is the canonical edge index table of a full box.
var BoxEdges = [12]Edge{
	{Index: [2]int32{0x0, 0x1}},
	{Index: [2]int32{0x1, 0x2}},
	{Index: [2]int32{0x2, 0x3}},
	{Index: [2]int32{0x3, 0x0}},
	{Index: [2]int32{0x0, 0x4}},
	{Index: [2]int32{0x1, 0x5}},
	{Index: [2]int32{0x2, 0x6}},
	{Index: [2]int32{0x3, 0x7}},
	{Index: [2]int32{0x7, 0x6}},
	{Index: [2]int32{0x6, 0x5}},
	{Index: [2]int32{0x5, 0x4}},
	{Index: [2]int32{0x4, 0x7}},
}

// BoxFaces is the canonical face index table of a full box.
var BoxFaces = [6]Face{
	{Index: [4]int32{0x0, 0x1, 0x2, 0x3}},
	{Index: [4]int32{0x0, 0x4, 0x5, 0x1}},
	{Index: [4]int32{0x1, 0x5, 0x6, 0x2}},
	{Index: [4]int32{0x2, 0x6, 0x7, 0x3}},
	{Index: [4]int32{0x3, 0x7, 0x4, 0x0}},
	{Index: [4]int32{0x7, 0x6, 0x5, 0x4}},
}

// Bound represents an object's boundary: the bounding box's local
// minmax, its world-space geometry, the bounding sphere around it, and
// links back to the owning object's matrices and axis mapping.
//
// Rad == 0 means "empty"; Rad == +Inf means "unbounded".
type Bound struct {
	// Obj points back at the owning scene object.
	Obj any
	Tag Tag

	// Map and Sgn alias the owning object's trivial-transform
	// axis mapping.
	Map *[4]int32
	Sgn *[4]int32

	// Pinv and Pmtx alias the owning object's matrices, Pos its
	// world (or sub-world) position.
	Pinv *Mat4
	Pmtx *Mat4
	Pos  *Vec4

	// Opts aliases the owning scene's runtime optimization flags.
	Opts *Opts

	// Trnode is the bound of the object's trnode, nil when the
	// object's frame is axis-aligned in world space.
	Trnode *Bound

	// Shp is the shape extension when the bound belongs to a
	// surface, nil otherwise.
	Shp *Shape

	// BMin and BMax hold the axis-aligned extent, in world space or
	// in the trnode's sub-world space when Trnode is set.
	BMin Vec4
	BMax Vec4

	// Bounding box geometry; empty tables mean a boundless object.
	Verts []Vert
	Edges []Edge
	Faces []Face

	// Mid and Rad are the bounding sphere around the box geometry.
	Mid Vec4
	Rad float32

	// Fln counts the bbox faces fully covered by a plane; Flm holds
	// the same in minmax format (1=min, 2=max) << (axis*2); Flf in
	// face-index format 1 << faceIndex.
	Fln int32
	Flm int32
	Flf int32
}

// Shape extends Bound for surfaces with the clipping box, the quadric
// coefficients of the surface in its local frame, and the per-surface
// custom clippers list.
type Shape struct {
	Bound

	// CMin and CMax hold the clipping box; non-clipped sides are at
	// the respective infinity.
	CMin Vec4
	CMax Vec4

	// Sci holds the squared terms and the free term of the quadric,
	// Scj the linear terms, Sck the plane normal for 1st order
	// surfaces.
	Sci Vec4
	Scj Vec4
	Sck Vec4

	// Clp points at the surface's custom clippers list head slot.
	Clp **Elem
}

// Elem is the universal list node of the update pipeline. The list
// engine builds every per-frame list (clippers, tiles, hierarchical
// sort lists, shadow lists) out of these nodes, allocated from
// per-thread per-frame pools.
type Elem struct {
	// Data is the stored order value during sorting, the relation
	// code in clipper lists, or the packed tile coordinate in tile
	// lists. Filter resets it for the backend.
	Data int32

	// Back links a node element up to its enclosing node while
	// hierarchical lists are being built.
	Back *Elem

	// Last is the last leaf of an array element's flattened
	// sub-list, set by filter together with Kind.
	Last *Elem

	// Kind distinguishes trnode (0) from bvnode (1) elements.
	Kind int32

	// Simd points at the backend record of the referenced node:
	// a *scene.Surf for surfaces and array boxes, a *scene.LightRec
	// for lights, nil for accum markers.
	Simd any

	// Sub is the head of a node element's sub-list.
	Sub *Elem

	// Temp is the bound of the referenced object, nil for accum
	// markers.
	Temp *Bound

	Next *Elem
}

// Node element kinds held in Elem.Kind.
const (
	KindTr = 0
	KindBv = 1
)

// Relation codes between scene objects, driving clipper list
// construction and bvnode assignment.
// RelMinusInner and RelMinusOuter double as the side codes stored in
// clipper list elements; the other codes are consumed while building
// the hierarchy and never reach a list.
const (
	RelMinusInner = -1
	RelMinusOuter = +1
	RelIndexArray = 2
	RelMinusAccum = 3
	RelBoundArray = 4
	RelUntieArray = 5
	RelBoundIndex = 6
	RelUntieIndex = 7
)

// Accum segment markers stored in clipper list elements whose Temp is
// nil.
const (
	AccumEnter = -1
	AccumLeave = +1
)

// SetBBGeom fills the bound's world-space box geometry from its minmax
// extent: 8 vertices (4 for planes), 12 edges (4 for planes), 6 faces
// (1 for planes), then recomputes the mid point, the bounding sphere
// radius and the face-coverage flags.
//
// When the owning object sits under a trnode and the box is not an
// array's world-frame bvbox, each vertex is multiplied by the trnode's
// matrix and the aligned-axis tags are reset to 3; otherwise the
// geometry stays axis-aligned under the object's axis map.
func (box *Bound) SetBBGeom() error {
	if len(box.Verts) > VertsLimit ||
		len(box.Edges) > EdgesLimit ||
		len(box.Faces) > FacesLimit {
		return ErrBoxGeometry
	}

	mpI := box.Map[I]
	mpJ := box.Map[J]
	mpK := box.Map[K]
	mpL := box.Map[L]

	if box.Trnode != nil {
		pmtx := box.Trnode.Pmtx

		var vt [8]Vec4
		corner := func(n int, i, j, k float32) {
			vt[n][mpI] = i
			vt[n][mpJ] = j
			vt[n][mpK] = k
			vt[n][mpL] = 1 // takes "pos" in "mtx" into account
		}
		corner(0, box.BMax[mpI], box.BMax[mpJ], box.BMax[mpK])
		corner(1, box.BMin[mpI], box.BMax[mpJ], box.BMax[mpK])
		corner(2, box.BMin[mpI], box.BMin[mpJ], box.BMax[mpK])
		corner(3, box.BMax[mpI], box.BMin[mpJ], box.BMax[mpK])

		for n := 0; n < 4; n++ {
			MatMulVec(&box.Verts[n].Pos, pmtx, vt[n])
			box.Edges[n].K = 3
		}
		box.Faces[0].K = 3
		box.Faces[0].I = 3
		box.Faces[0].J = 3

		if !box.Tag.IsPlane() {
			corner(4, box.BMax[mpI], box.BMax[mpJ], box.BMin[mpK])
			corner(5, box.BMin[mpI], box.BMax[mpJ], box.BMin[mpK])
			corner(6, box.BMin[mpI], box.BMin[mpJ], box.BMin[mpK])
			corner(7, box.BMax[mpI], box.BMin[mpJ], box.BMin[mpK])

			for n := 4; n < 8; n++ {
				MatMulVec(&box.Verts[n].Pos, pmtx, vt[n])
			}
			for n := 4; n < 12; n++ {
				box.Edges[n].K = 3
			}
			for n := 1; n < 6; n++ {
				box.Faces[n].K = 3
				box.Faces[n].I = 3
				box.Faces[n].J = 3
			}
		}
	} else {
		corner := func(n int, i, j, k float32) {
			box.Verts[n].Pos[mpI] = i
			box.Verts[n].Pos[mpJ] = j
			box.Verts[n].Pos[mpK] = k
			box.Verts[n].Pos[mpL] = 1
		}
		corner(0, box.BMax[mpI], box.BMax[mpJ], box.BMax[mpK])
		corner(1, box.BMin[mpI], box.BMax[mpJ], box.BMax[mpK])
		corner(2, box.BMin[mpI], box.BMin[mpJ], box.BMax[mpK])
		corner(3, box.BMax[mpI], box.BMin[mpJ], box.BMax[mpK])

		box.Edges[0].K = mpI
		box.Edges[1].K = mpJ
		box.Edges[2].K = mpI
		box.Edges[3].K = mpJ

		box.Faces[0].K = mpK
		box.Faces[0].I = mpI
		box.Faces[0].J = mpJ

		if !box.Tag.IsPlane() {
			corner(4, box.BMax[mpI], box.BMax[mpJ], box.BMin[mpK])
			corner(5, box.BMin[mpI], box.BMax[mpJ], box.BMin[mpK])
			corner(6, box.BMin[mpI], box.BMin[mpJ], box.BMin[mpK])
			corner(7, box.BMax[mpI], box.BMin[mpJ], box.BMin[mpK])

			box.Edges[4].K = mpK
			box.Edges[5].K = mpK
			box.Edges[6].K = mpK
			box.Edges[7].K = mpK

			box.Edges[8].K = mpI
			box.Edges[9].K = mpJ
			box.Edges[10].K = mpI
			box.Edges[11].K = mpJ

			box.Faces[1].K = mpJ
			box.Faces[1].I = mpK
			box.Faces[1].J = mpI

			box.Faces[2].K = mpI
			box.Faces[2].I = mpK
			box.Faces[2].J = mpJ

			box.Faces[3].K = mpJ
			box.Faces[3].I = mpK
			box.Faces[3].J = mpI

			box.Faces[4].K = mpI
			box.Faces[4].I = mpK
			box.Faces[4].J = mpJ

			box.Faces[5].K = mpK
			box.Faces[5].I = mpI
			box.Faces[5].J = mpJ
		}
	}

	box.Mid = Vec4{}
	box.Rad = 0

	f := 1 / float32(len(box.Verts))
	for i := range box.Verts {
		Mad3(&box.Mid, box.Verts[i].Pos, f)
	}
	for i := range box.Verts {
		var dff Vec4
		Sub3(&dff, box.Mid, box.Verts[i].Pos)
		dot := Dot3(dff, dff)
		if box.Rad < dot {
			box.Rad = dot
		}
	}
	box.Rad = math32.Sqrt(box.Rad)

	if box.Opts.Has(OptsRemove) {
		if box.Tag.IsPlane() && box.Shp != nil && *box.Shp.Clp == nil {
			// plane bbox's only face covers both halves of its
			// normal axis
			box.Fln = 1
			box.Flm = 3 << (mpK * 2)
			box.Flf = 1 << 0
		} else if box.Tag.IsArray() && box.Flm != 0 {
			box.Flf = BBoxFlag(box.Map, box.Flm)

			c := int32(0)
			for i := 0; i < 6; i++ {
				if box.Flf&(1<<i) != 0 {
					c++
				}
			}
			box.Fln = c
		}
	}

	return nil
}

// BBoxFlag converts bbox face-coverage flags from minmax format to
// face-index format under the given axis map.
func BBoxFlag(m *[4]int32, flm int32) int32 {
	var flf int32

	b := func(bit int32, axis int32) int32 {
		if flm&(bit<<(axis*2)) != 0 {
			return 1
		}
		return 0
	}

	flf |= b(2, m[K]) << 0
	flf |= b(2, m[J]) << 1
	flf |= b(1, m[I]) << 2
	flf |= b(1, m[J]) << 3
	flf |= b(2, m[I]) << 4
	flf |= b(1, m[K]) << 5

	return flf
}
