// Copyright (c) 2026, Tracekit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package geom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testIdentMap = [4]int32{X, Y, Z, W}
var testIdentSgn = [4]int32{1, 1, 1, 1}

// testBox builds a bounded axis-aligned box in world space with full
// geometry, the way array and quadric bounds come out of the update.
func testBox(t *testing.T, bmin, bmax Vec4) *Bound {
	t.Helper()

	opts := OptsFull
	box := &Bound{
		Tag:  TagArray,
		Map:  &testIdentMap,
		Sgn:  &testIdentSgn,
		Opts: &opts,
		BMin: bmin,
		BMax: bmax,
	}
	box.Verts = make([]Vert, 8)
	box.Edges = make([]Edge, 12)
	copy(box.Edges, BoxEdges[:])
	box.Faces = make([]Face, 6)
	copy(box.Faces, BoxFaces[:])

	require.NoError(t, box.SetBBGeom())
	return box
}

// testViewpoint builds a point-like bound the way cameras and lights
// are seen by the predicates: mid only, no geometry.
func testViewpoint(pos Vec4) *Bound {
	opts := OptsFull
	return &Bound{
		Tag:  TagCamera,
		Map:  &testIdentMap,
		Sgn:  &testIdentSgn,
		Opts: &opts,
		Mid:  pos,
	}
}

// testSphere builds a sphere surface shape at pos with radius rad,
// clipped to its bounding cube, with world-frame identity mapping.
func testSphere(t *testing.T, pos Vec4, rad float32) *Shape {
	t.Helper()

	opts := OptsFull
	shp := &Shape{}
	shp.Tag = TagSphere
	shp.Map = &testIdentMap
	shp.Sgn = &testIdentSgn
	shp.Opts = &opts
	p := pos
	shp.Pos = &p
	shp.Shp = shp

	var clp *Elem
	shp.Clp = &clp

	shp.Sci = Vec4{1, 1, 1, rad * rad}
	shp.CMin = Vec4{-Inf, -Inf, -Inf}
	shp.CMax = Vec4{+Inf, +Inf, +Inf}

	shp.BMin = Vec4{pos[X] - rad, pos[Y] - rad, pos[Z] - rad}
	shp.BMax = Vec4{pos[X] + rad, pos[Y] + rad, pos[Z] + rad}

	shp.Verts = make([]Vert, 8)
	shp.Edges = make([]Edge, 12)
	copy(shp.Edges, BoxEdges[:])
	shp.Faces = make([]Face, 6)
	copy(shp.Faces, BoxFaces[:])

	require.NoError(t, shp.SetBBGeom())
	return shp
}

// testPlane builds a finite +Z facing plane surface at pos spanning
// [-ext, +ext] in X and Y.
func testPlane(t *testing.T, pos Vec4, ext float32) *Shape {
	t.Helper()

	opts := OptsFull
	shp := &Shape{}
	shp.Tag = TagPlane
	shp.Map = &testIdentMap
	shp.Sgn = &testIdentSgn
	shp.Opts = &opts
	p := pos
	shp.Pos = &p
	shp.Shp = shp

	var clp *Elem
	shp.Clp = &clp

	shp.Sck = Vec4{0, 0, 1}
	shp.CMin = Vec4{-ext, -ext, -Inf}
	shp.CMax = Vec4{+ext, +ext, +Inf}

	shp.BMin = Vec4{pos[X] - ext, pos[Y] - ext, pos[Z]}
	shp.BMax = Vec4{pos[X] + ext, pos[Y] + ext, pos[Z]}

	shp.Verts = make([]Vert, 4)
	shp.Edges = make([]Edge, 4)
	copy(shp.Edges, BoxEdges[:4])
	shp.Faces = make([]Face, 1)
	copy(shp.Faces, BoxFaces[:1])

	require.NoError(t, shp.SetBBGeom())
	return shp
}

func TestVertFaceAxisAligned(t *testing.T) {
	// unit quad in the XY plane at z=1, normal along Z
	q0 := Vec4{-1, -1, 1, 1}
	q1 := Vec4{+1, -1, 1, 1}
	q2 := Vec4{-1, +1, 1, 1}

	p0 := Vec4{0, 0, 0, 1}

	tests := []struct {
		name string
		p1   Vec4
		want int32
	}{
		{"beyond", Vec4{0, 0, 0.5, 1}, 1},
		{"between", Vec4{0, 0, 2, 1}, 2},
		{"coincident", Vec4{0, 0, 1, 1}, 3},
		{"miss", Vec4{5, 0, 0.5, 1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := VertFace(p0, tt.p1, +1, q0, q1, q2, Z, X, Y)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestVertFaceGeneral(t *testing.T) {
	// same quad, general path (axis tags = 3)
	q0 := Vec4{-1, -1, 1, 1}
	q1 := Vec4{+1, -1, 1, 1}
	q2 := Vec4{-1, +1, 1, 1}

	p0 := Vec4{0, 0, 0, 1}

	assert.Equal(t, int32(1), VertFace(p0, Vec4{0, 0, 0.5, 1}, +1, q0, q1, q2, 3, 3, 3))
	assert.Equal(t, int32(2), VertFace(p0, Vec4{0, 0, 2, 1}, +1, q0, q1, q2, 3, 3, 3))
	assert.Equal(t, int32(0), VertFace(p0, Vec4{5, 0, 0.5, 1}, +1, q0, q1, q2, 3, 3, 3))
}

func TestEdgeEdgeAxisAligned(t *testing.T) {
	p0 := Vec4{0, 0, 0, 1}

	// X-directed edge at z=1, Y-directed edge at z=2,
	// both crossing the view axis
	p1 := Vec4{-1, 0, 1, 1}
	p2 := Vec4{+1, 0, 1, 1}
	q1 := Vec4{0, -1, 2, 1}
	q2 := Vec4{0, +1, 2, 1}

	// first edge in front of second
	assert.Equal(t, int32(1), EdgeEdge(p0, +1, p1, p2, X, q1, q2, Y))
	// swapped operands give the reverse order
	assert.Equal(t, int32(2), EdgeEdge(p0, +1, q1, q2, Y, p1, p2, X))
	// parallel axis-aligned edges are left to VertFace
	assert.Equal(t, int32(0), EdgeEdge(p0, +1, p1, p2, X, p1, p2, X))
}

func TestEdgeEdgeGeneral(t *testing.T) {
	p0 := Vec4{0, 0, 0, 1}

	p1 := Vec4{-1, 0, 1, 1}
	p2 := Vec4{+1, 0, 1, 1}
	q1 := Vec4{0, -1, 2, 1}
	q2 := Vec4{0, +1, 2, 1}

	assert.Equal(t, int32(1), EdgeEdge(p0, +1, p1, p2, 3, q1, q2, 3))
	assert.Equal(t, int32(2), EdgeEdge(p0, +1, q1, q2, 3, p1, p2, 3))
}

func TestBBoxFlagRoundTrip(t *testing.T) {
	// identity mapping: min/max of the K axis map onto faces 5 and 0,
	// J onto 3 and 1, I onto 2 and 4 per the canonical face table
	m := [4]int32{X, Y, Z, W}

	tests := []struct {
		flm  int32
		want int32
	}{
		{3 << (Z * 2), 1<<0 | 1<<5},
		{1 << (Z * 2), 1 << 5},
		{2 << (Z * 2), 1 << 0},
		{1 << (X * 2), 1 << 2},
		{2 << (X * 2), 1 << 4},
		{1 << (Y * 2), 1 << 3},
		{2 << (Y * 2), 1 << 1},
		{0, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, BBoxFlag(&m, tt.flm), "flm=%#x", tt.flm)
	}

	// swapped mapping moves the covered axis with it
	ms := [4]int32{Z, Y, X, W}
	assert.Equal(t, int32(1<<0|1<<5), BBoxFlag(&ms, 3<<(X*2)))
}

func TestBBoxSortSameObject(t *testing.T) {
	vp := testViewpoint(Vec4{0, 0, 5, 1})
	a := testBox(t, Vec4{-1, -1, -1}, Vec4{1, 1, 1})

	assert.Equal(t, int32(8|1), BBoxSort(vp, a, a))
}

func TestBBoxSortDisjoint(t *testing.T) {
	vp := testViewpoint(Vec4{0, 0, 5, 1})

	near := testBox(t, Vec4{-1, -1, 1}, Vec4{1, 1, 2})
	far := testBox(t, Vec4{-1, -1, -2}, Vec4{1, 1, -1})

	// the near box sorts in front of the far box
	assert.Equal(t, int32(1), BBoxSort(vp, near, far))
	assert.Equal(t, int32(2), BBoxSort(vp, far, near))

	// side-by-side boxes don't overlap from this viewpoint
	left := testBox(t, Vec4{-4, -1, -1}, Vec4{-2, 1, 1})
	right := testBox(t, Vec4{2, -1, -1}, Vec4{4, 1, 1})
	assert.Equal(t, int32(3), BBoxSort(vp, left, right))
}

func TestBBoxSortUnbounded(t *testing.T) {
	vp := testViewpoint(Vec4{0, 0, 5, 1})

	a := testBox(t, Vec4{-1, -1, -1}, Vec4{1, 1, 1})
	opts := OptsFull
	unb := &Bound{
		Tag:  TagSphere,
		Map:  &testIdentMap,
		Sgn:  &testIdentSgn,
		Opts: &opts,
		Rad:  Inf,
	}

	assert.Equal(t, int32(8|1), BBoxSort(vp, unb, a))
	assert.Equal(t, int32(8|1), BBoxSort(vp, a, unb))
}

func TestBBoxShad(t *testing.T) {
	lgt := testViewpoint(Vec4{0, 5, 0, 1})
	lgt.Tag = TagLight

	sphere := testBox(t, Vec4{-1, 1, -1}, Vec4{1, 3, 1})
	plane := testBox(t, Vec4{-4, -0.1, -4}, Vec4{4, 0, 4})

	// the box under the light shadows the ground box
	assert.Equal(t, int32(1), BBoxShad(lgt, sphere, plane))

	// a ground box far off to the side stays lit
	farPlane := testBox(t, Vec4{40, -0.1, 40}, Vec4{48, 0, 48})
	assert.Equal(t, int32(0), BBoxShad(lgt, sphere, farPlane))

	// the ground box cannot shadow the box above it
	assert.Equal(t, int32(0), BBoxShad(lgt, plane, sphere))
}

func TestBBoxFuse(t *testing.T) {
	a := testBox(t, Vec4{-1, -1, -1}, Vec4{1, 1, 1})
	b := testBox(t, Vec4{0.5, 0.5, 0.5}, Vec4{2.5, 2.5, 2.5})
	c := testBox(t, Vec4{8, 8, 8}, Vec4{9, 9, 9})
	inner := testBox(t, Vec4{-0.25, -0.25, -0.25}, Vec4{0.25, 0.25, 0.25})

	assert.Equal(t, int32(2), BBoxFuse(a, b))
	assert.Equal(t, int32(0), BBoxFuse(a, c))
	assert.Equal(t, int32(1), BBoxFuse(a, inner))
	assert.Equal(t, int32(2), BBoxFuse(a, a))
}

func TestSurfSide(t *testing.T) {
	sph := testSphere(t, Vec4{0, 0, 0, 1}, 1)

	assert.Equal(t, int32(2), SurfSide(sph, Vec4{0, 0, 5, 1}))
	assert.Equal(t, int32(1), SurfSide(sph, Vec4{0, 0, 0.2, 1}))
	assert.Equal(t, int32(0), SurfSide(sph, Vec4{0, 0, 1, 1}))

	pln := testPlane(t, Vec4{0, 0, 0, 1}, 4)

	assert.Equal(t, int32(2), SurfSide(pln, Vec4{0, 0, 5, 1}))
	assert.Equal(t, int32(1), SurfSide(pln, Vec4{0, 0, -5, 1}))
}

func TestClipSide(t *testing.T) {
	sph := testSphere(t, Vec4{0, 0, 0, 1}, 1)

	// convex quadric: single side from either side
	assert.Equal(t, int32(2), ClipSide(sph, Vec4{0, 0, 5, 1}))
	assert.Equal(t, int32(1), ClipSide(sph, Vec4{0, 0, 0.2, 1}))

	// on the surface within margin: both
	assert.Equal(t, int32(3), ClipSide(sph, Vec4{0, 0, 1, 1}))

	// clipping the top half opens the inner side to outside viewers
	sph.CMax[Z] = 0
	assert.Equal(t, int32(3), ClipSide(sph, Vec4{0, 0, 5, 1}))

	// planes always show exactly one side
	pln := testPlane(t, Vec4{0, 0, 0, 1}, 4)
	assert.Equal(t, int32(2), ClipSide(pln, Vec4{0, 0, 5, 1}))
}

func TestBBoxSideCameraAndBox(t *testing.T) {
	pln := testPlane(t, Vec4{0, 0, 0, 1}, 4)

	cam := testViewpoint(Vec4{0, 0, 5, 1})
	assert.Equal(t, int32(2), BBoxSide(cam, pln))

	below := testViewpoint(Vec4{0, 0, -5, 1})
	assert.Equal(t, int32(1), BBoxSide(below, pln))

	// a box above the plane sees only the outer side
	above := testBox(t, Vec4{-1, -1, 1}, Vec4{1, 1, 2})
	assert.Equal(t, int32(2), BBoxSide(above, pln))

	// a box straddling the plane sees both
	straddle := testBox(t, Vec4{-1, -1, -1}, Vec4{1, 1, 1})
	assert.Equal(t, int32(3), BBoxSide(straddle, pln))
}

func TestMatFromTransformComposition(t *testing.T) {
	trm := &Transform{
		Scl: Vec4{2, 3, 4, 1},
		Rot: Vec4{0, 0, 90},
		Pos: Vec4{1, 2, 3},
	}

	var m Mat4
	MatFromTransform(&m, trm, true)

	// local +X maps onto world +Y scaled by 2 after the 90-degree
	// rotation about Z, plus translation
	var v Vec4
	MatMulVec(&v, &m, Vec4{1, 0, 0, 1})
	assert.InDelta(t, 1, v[X], 1e-4)
	assert.InDelta(t, 4, v[Y], 1e-4)
	assert.InDelta(t, 3, v[Z], 1e-4)
}

func TestMatInverse(t *testing.T) {
	trm := &Transform{
		Scl: Vec4{2, 1, 0.5, 1},
		Rot: Vec4{30, 45, 60},
		Pos: Vec4{0, 0, 0},
	}

	var m, inv, prod Mat4
	MatFromTransform(&m, trm, true)
	MatInverse(&inv, &m)
	MatMulMat(&prod, &inv, &m)

	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			assert.InDelta(t, Iden4[i][j], prod[i][j], 1e-4, "i=%d j=%d", i, j)
		}
	}
}

func TestSetBBGeomMidRad(t *testing.T) {
	box := testBox(t, Vec4{-1, -2, -3}, Vec4{1, 2, 3})

	assert.InDelta(t, 0, box.Mid[X], 1e-5)
	assert.InDelta(t, 0, box.Mid[Y], 1e-5)
	assert.InDelta(t, 0, box.Mid[Z], 1e-5)
	assert.InDelta(t, 3.7416573, box.Rad, 1e-4)
}

func TestSetBBGeomLimits(t *testing.T) {
	opts := OptsFull
	box := &Bound{
		Tag:   TagArray,
		Map:   &testIdentMap,
		Sgn:   &testIdentSgn,
		Opts:  &opts,
		Verts: make([]Vert, VertsLimit+1),
	}
	assert.ErrorIs(t, box.SetBBGeom(), ErrBoxGeometry)
}
