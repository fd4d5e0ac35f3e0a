// Copyright (c) 2026, Tracekit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package geom implements the geometry utils library of the engine:
// float32 vector and matrix operations, bounding and clipping box
// records, and the predicates that answer bounding-volume ordering,
// shadowing, visibility-side and intersection questions for the
// scene manager.
package geom

import "github.com/chewxy/math32"

// World and local axis indices. Local axes I, J, K, L are mapped onto
// world axes X, Y, Z, W through a per-object axis map when the object's
// transform is trivial (axis swap, sign flip, per-axis scale).
const (
	X = 0
	Y = 1
	Z = 2
	W = 3

	I = 0
	J = 1
	K = 2
	L = 3
)

// Inf is the single-precision positive infinity used to tag unbounded
// box extents and radii.
var Inf = math32.Inf(1)

// Floating point thresholds, selected for single-precision.
const (
	TileThreshold = 0.2
	LineThreshold = 0.01
	ClipThreshold = 0.01
	CullThreshold = 0.0001

	DepsThreshold = 0.00000000001
	TepsThreshold = 0.0000001
)

// Vec2 is a 2-component float32 vector indexed by axis.
type Vec2 [2]float32

// Vec3 is a 3-component float32 vector indexed by axis.
type Vec3 [3]float32

// Vec4 is a 4-component float32 vector indexed by axis. The engine
// stores positions and directions as Vec4 so that per-object axis maps
// can address components by index.
type Vec4 [4]float32

// Mat4 is a 4x4 float32 matrix in column-major layout: m[c][r].
// The fourth column is the translation.
type Mat4 [4][4]float32

// Transform holds an object's local scale, Euler XYZ rotation in
// degrees, and translation.
type Transform struct {
	Scl Vec4
	Rot Vec4
	Pos Vec4
}

// Iden4 is the identity matrix.
var Iden4 = Mat4{
	{1, 0, 0, 0},
	{0, 1, 0, 0},
	{0, 0, 1, 0},
	{0, 0, 0, 1},
}

// Set3 copies the first three components of b into a.
func Set3(a *Vec4, b Vec4) {
	a[0], a[1], a[2] = b[0], b[1], b[2]
}

// Add3 stores a + b into r, first three components only.
func Add3(r *Vec4, a, b Vec4) {
	r[0] = a[0] + b[0]
	r[1] = a[1] + b[1]
	r[2] = a[2] + b[2]
}

// Sub3 stores a - b into r, first three components only.
func Sub3(r *Vec4, a, b Vec4) {
	r[0] = a[0] - b[0]
	r[1] = a[1] - b[1]
	r[2] = a[2] - b[2]
}

// Cross3 stores the cross product of a and b into r.
func Cross3(r *Vec4, a, b Vec4) {
	r[0] = a[1]*b[2] - b[1]*a[2]
	r[1] = a[2]*b[0] - b[2]*a[0]
	r[2] = a[0]*b[1] - b[0]*a[1]
}

// Scale3 stores a * s into r, first three components only.
func Scale3(r *Vec4, a Vec4, s float32) {
	r[0] = a[0] * s
	r[1] = a[1] * s
	r[2] = a[2] * s
}

// Mad3 adds a * s to r, first three components only.
func Mad3(r *Vec4, a Vec4, s float32) {
	r[0] += a[0] * s
	r[1] += a[1] * s
	r[2] += a[2] * s
}

// Dot3 returns the dot product of the first three components.
func Dot3(a, b Vec4) float32 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

// Len3 returns the length of the first three components.
func Len3(a Vec4) float32 {
	return math32.Sqrt(Dot3(a, a))
}

// Min3 stores the per-component minimum of a and b into r.
func Min3(r *Vec4, a, b Vec4) {
	r[0] = math32.Min(a[0], b[0])
	r[1] = math32.Min(a[1], b[1])
	r[2] = math32.Min(a[2], b[2])
}

// Max3 stores the per-component maximum of a and b into r.
func Max3(r *Vec4, a, b Vec4) {
	r[0] = math32.Max(a[0], b[0])
	r[1] = math32.Max(a[1], b[1])
	r[2] = math32.Max(a[2], b[2])
}

// sina and cosa evaluate sine and cosine of an angle in degrees,
// matching the scene description's rotation units.
func sina(deg float32) float32 {
	return math32.Sin(deg * math32.Pi / 180)
}

func cosa(deg float32) float32 {
	return math32.Cos(deg * math32.Pi / 180)
}

// MatMulVec multiplies matrix m by vector v.
func MatMulVec(vp *Vec4, m *Mat4, v Vec4) {
	for i := 0; i < 4; i++ {
		vp[i] = m[0][i]*v[0] + m[1][i]*v[1] + m[2][i]*v[2] + m[3][i]*v[3]
	}
}

// MatMulMat multiplies matrix m1 by matrix m2.
func MatMulMat(mp *Mat4, m1, m2 *Mat4) {
	for i := 0; i < 4; i++ {
		MatMulVec((*Vec4)(&mp[i]), m1, m2[i])
	}
}

// MatFromTransform computes a matrix from transform t. When applyScale
// is false the scale part is left out; the caller then carries scalers
// separately in a diagonal matrix.
func MatFromTransform(mp *Mat4, t *Transform, applyScale bool) {
	sclX, sclY, sclZ := float32(1), float32(1), float32(1)
	if applyScale {
		sclX, sclY, sclZ = t.Scl[X], t.Scl[Y], t.Scl[Z]
	}
	sc := Mat4{
		{sclX, 0, 0, 0},
		{0, sclY, 0, 0},
		{0, 0, sclZ, 0},
		{0, 0, 0, 1},
	}

	sinX, cosX := sina(t.Rot[X]), cosa(t.Rot[X])
	rx := Mat4{
		{1, 0, 0, 0},
		{0, +cosX, +sinX, 0},
		{0, -sinX, +cosX, 0},
		{0, 0, 0, 1},
	}

	sinY, cosY := sina(t.Rot[Y]), cosa(t.Rot[Y])
	ry := Mat4{
		{+cosY, 0, -sinY, 0},
		{0, 1, 0, 0},
		{+sinY, 0, +cosY, 0},
		{0, 0, 0, 1},
	}

	sinZ, cosZ := sina(t.Rot[Z]), cosa(t.Rot[Z])
	rz := Mat4{
		{+cosZ, +sinZ, 0, 0},
		{-sinZ, +cosZ, 0, 0},
		{0, 0, 1, 0},
		{0, 0, 0, 1},
	}

	ps := Mat4{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
		{t.Pos[X], t.Pos[Y], t.Pos[Z], 1},
	}

	var mt Mat4
	MatMulMat(&mt, &rx, &sc)
	MatMulMat(mp, &ry, &mt)
	MatMulMat(&mt, &rz, mp)
	MatMulMat(mp, &ps, &mt)
}

// MatInverse computes the upper-left 3x3 inverse of m1 into mp.
// The translation part of mp is left zero; callers subtract position
// before applying the inverse.
func MatInverse(mp *Mat4, m1 *Mat4) {
	*mp = Mat4{}

	a := m1[1][1]*m1[2][2] - m1[2][1]*m1[1][2]
	b := m1[2][1]*m1[0][2] - m1[0][1]*m1[2][2]
	c := m1[0][1]*m1[1][2] - m1[1][1]*m1[0][2]

	d := m1[2][0]*m1[1][2] - m1[1][0]*m1[2][2]
	e := m1[0][0]*m1[2][2] - m1[2][0]*m1[0][2]
	f := m1[0][2]*m1[1][0] - m1[0][0]*m1[1][2]

	g := m1[1][0]*m1[2][1] - m1[2][0]*m1[1][1]
	h := m1[2][0]*m1[0][1] - m1[0][0]*m1[2][1]
	l := m1[0][0]*m1[1][1] - m1[1][0]*m1[0][1]

	q := 1 / (m1[0][0]*a + m1[1][0]*b + m1[2][0]*c)

	mp[0][0] = a * q
	mp[0][1] = b * q
	mp[0][2] = c * q

	mp[1][0] = d * q
	mp[1][1] = e * q
	mp[1][2] = f * q

	mp[2][0] = g * q
	mp[2][1] = h * q
	mp[2][2] = l * q
}
