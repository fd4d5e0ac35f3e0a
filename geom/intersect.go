// Copyright (c) 2026, Tracekit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package geom

import "github.com/chewxy/math32"

// Intersection classes returned by VertFace and EdgeEdge.
//
//	0 - don't intersect
//	1 - intersect o-p-q (hit strictly beyond p)
//	2 - intersect o-q-p (hit strictly between o and p)
//	3 - intersect o-p=q (hit at p within margin, handles bbox stacking)
//	4 - intersect o=q-p (hit at o within margin, handles bbox stacking)

// VertFace determines if vert p1 and face q0-q1-q2 intersect as seen
// from vert p0. qk, qi, qj are world axis indices of the face's local
// K (normal), I, J axes for an axis-aligned quad; if any equals 3 the
// quad is general and defined by its q0-q1 and q0-q2 edges. th
// controls whether uv-margins are included (+1), excluded (-1) or
// disabled (0).
//
// The general path is the Möller–Trumbore formulation converted to a
// division-less version: every comparison is multiplied through by the
// determinant with its sign folded out, which preserves exact sign
// handling and keeps margins proportional to the parameterization.
func VertFace(p0, p1 Vec4, th int32,
	q0, q1, q2 Vec4, qk, qi, qj int32) int32 {

	var d, s, t, u, v float32
	thf := float32(th)

	if qk < 3 && qi < 3 && qj < 3 {
		// distance from origin to vert
		// in face's normal direction
		d = p1[qk] - p0[qk]

		// distance from origin to face
		// in face's normal direction
		t = q0[qk] - p0[qk]

		// make sure inequality is multiplied
		// by a positive number, so that relations hold
		if d < 0 {
			t = -t
		}
		d = math32.Abs(d)

		// calculate "u" parameter and test bounds
		u = (p1[qi] - p0[qi]) * t

		if u < (math32.Min(q0[qi], q1[qi])-p0[qi]-thf*CullThreshold)*d ||
			u > (math32.Max(q0[qi], q1[qi])-p0[qi]+thf*CullThreshold)*d {
			return 0
		}

		// calculate "v" parameter and test bounds
		v = (p1[qj] - p0[qj]) * t

		if v < (math32.Min(q0[qj], q2[qj])-p0[qj]-thf*CullThreshold)*d ||
			v > (math32.Max(q0[qj], q2[qj])-p0[qj]+thf*CullThreshold)*d {
			return 0
		}
	} else {
		var e1, e2, pr, qr, mx, nx Vec4

		Sub3(&e1, q1, q0)
		Sub3(&e2, q2, q0)
		Sub3(&pr, p1, p0)
		Sub3(&qr, p0, q0)

		// cross product of ray's vector and 2nd edge
		Cross3(&mx, pr, e2)

		// calculate determinant "d"
		d = Dot3(e1, mx)

		if d < 0 {
			s = -1
		} else {
			s = +1
		}
		d = math32.Abs(d)

		// calculate "u" parameter and test bounds
		u = Dot3(qr, mx) * s

		if u < (0-thf*CullThreshold)*d ||
			u > (1+thf*CullThreshold)*d {
			return 0
		}

		// cross product of ray's origin and 1st edge
		Cross3(&nx, qr, e1)

		// calculate "v" parameter and test bounds
		v = Dot3(pr, nx) * s

		if v < (0-thf*CullThreshold)*d ||
			v > (1+thf*CullThreshold)*d {
			return 0
		}

		// calculate "t", analog of distance to intersection
		t = Dot3(e2, nx) * s
	}

	//            | 0 |           | 1 |
	// -----------|-*-|-----------|-*-|-----------
	//      0     | 4 |     2     | 3 |     1
	switch {
	case t > (1+CullThreshold)*d:
		return 1
	case t >= (1-CullThreshold)*d:
		return 3
	case t > (0+CullThreshold)*d:
		return 2
	case t >= (0-CullThreshold)*d:
		return 4
	}
	return 0
}

// orthoAxis selects the third axis orthogonal to two distinct
// axis-aligned edge directions.
var orthoAxis = [3][3]int32{
	{0, 2, 1},
	{2, 1, 0},
	{1, 0, 2},
}

// EdgeEdge determines if edge p1-p2 and edge q1-q2 intersect as seen
// from vert p0. pk, qk are world axis indices of the edges' directions
// when axis-aligned; if either equals 3 the edges are general.
//
// To figure out the "u" and "v" parameters along the 1st and the 2nd
// edges the same ray/triangle scheme is reused: for "u" the ray is
// p1-p2 against face q1-p0-q2, for "v" the ray is q1-q2 against face
// p1-p0-p2, with the common terms shared.
func EdgeEdge(p0 Vec4, th int32,
	p1, p2 Vec4, pk int32,
	q1, q2 Vec4, qk int32) int32 {

	var d, s, t, u, v float32
	thf := float32(th)

	if pk < 3 && qk < 3 {
		// VertFace handles this case for BBoxShad
		if pk == qk {
			return 0
		}

		kk := orthoAxis[pk][qk]

		// distance from origin to 1st edge
		// in common orthogonal direction
		d = p1[kk] - p0[kk]

		// distance from origin to 2nd edge
		// in common orthogonal direction
		t = q1[kk] - p0[kk]

		if t < 0 {
			d = -d
		}
		t = math32.Abs(t)

		// calculate "u" parameter and test bounds
		u = (q1[pk] - p0[pk]) * d

		if u < (math32.Min(p1[pk], p2[pk])-p0[pk]-thf*CullThreshold)*t ||
			u > (math32.Max(p1[pk], p2[pk])-p0[pk]+thf*CullThreshold)*t {
			return 0
		}

		if d < 0 {
			t = -t
		}
		d = math32.Abs(d)

		// calculate "v" parameter and test bounds
		v = (p1[qk] - p0[qk]) * t

		if v < (math32.Min(q1[qk], q2[qk])-p0[qk]-thf*CullThreshold)*d ||
			v > (math32.Max(q1[qk], q2[qk])-p0[qk]+thf*CullThreshold)*d {
			return 0
		}
	} else {
		var ep, eq, pr, qr, mx, nx Vec4

		Sub3(&ep, p2, p1)
		Sub3(&eq, q2, q1)
		Sub3(&pr, p1, p0)
		Sub3(&qr, q1, p0)

		// cross product of 2nd and 1st edge vectors
		Cross3(&mx, eq, ep)

		// cross product of 2nd and 1st edge origins
		Cross3(&nx, qr, pr)

		// distance from origin to 2nd edge
		// in common orthogonal direction
		t = Dot3(qr, mx)

		if t < 0 {
			s = -1
		} else {
			s = +1
		}
		t = math32.Abs(t)

		// calculate "u" parameter and test bounds
		u = Dot3(eq, nx) * s

		if u < (0-thf*CullThreshold)*t ||
			u > (1+thf*CullThreshold)*t {
			return 0
		}

		// apply to "t" the sign of "t"
		t *= s

		// distance from origin to 1st edge
		// in common orthogonal direction
		d = Dot3(pr, mx)

		if d < 0 {
			s = -1
		} else {
			s = +1
		}
		d = math32.Abs(d)

		// calculate "v" parameter and test bounds
		v = Dot3(ep, nx) * s

		if v < (0-thf*CullThreshold)*d ||
			v > (1+thf*CullThreshold)*d {
			return 0
		}

		// apply to "t" the sign of "d"
		t *= s
	}

	//            | 0 |           | 1 |
	// -----------|-*-|-----------|-*-|-----------
	//      0     | 4 |     2     | 3 |     1
	switch {
	case t > (1+CullThreshold)*d:
		return 1
	case t >= (1-CullThreshold)*d:
		return 3
	case t > (0+CullThreshold)*d:
		return 2
	case t >= (0-CullThreshold)*d:
		return 4
	}
	return 0
}
