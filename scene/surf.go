// Copyright (c) 2026, Tracekit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scene

import "github.com/tracekit/tracekit/geom"

// Surf is the per-surface record handed to the rendering backend. The
// update pipeline fills it each frame; arrays own two extra instances
// standing in for the bvbox and inbox parts of a split bvnode.
type Surf struct {
	Tag geom.Tag

	// Pos is the surface position in world or trnode sub-world
	// space.
	Pos geom.Vec4

	// Tci, Tcj, Tck are the rows of the upper-left 3x3 inverse of
	// the trnode matrix, valid when the owning object is its own
	// trnode.
	Tci geom.Vec4
	Tcj geom.Vec4
	Tck geom.Vec4

	// Quadric coefficients in the surface's local frame. Scj holds
	// the halved linear terms the way the solvers consume them; Sck
	// is the plane normal for 1st order surfaces.
	Sci geom.Vec4
	Scj geom.Vec4
	Sck geom.Vec4

	// Min and Max bound the surface in its local frame, relative to
	// Pos; MinT and MaxT flag which sides actually clip.
	Min  geom.Vec4
	Max  geom.Vec4
	MinT [3]int32
	MaxT [3]int32

	// AMap and ASgn carry the trivial-transform axis mapping for
	// the backend; HasTrm flags residual non-trivial transform.
	AMap   [4]int32
	ASgn   [4]int32
	AShift int32
	HasTrm int32

	// Trnode points at the trnode's record so the backend can batch
	// surfaces and clippers sharing one cached transform.
	Trnode *Surf

	// Clip is the custom clippers list head (msc_p[2] slot).
	Clip *geom.Elem

	// LstP are the per-side list heads: 0 outer lights/shadows,
	// 1 outer surfaces for rfl/rfr, 2 inner lights/shadows, 3 inner
	// surfaces for rfl/rfr.
	LstP [4]*geom.Elem

	// Per-side materials and their property bits.
	MatOuter   *MatRec
	MatInner   *MatRec
	PropsOuter int32
	PropsInner int32
}

// LightRec is the per-light record handed to the rendering backend.
type LightRec struct {
	Pos geom.Vec4

	// Col is the source color scaled by source luminosity.
	Col [3]float32
	Src float32

	// Attenuation: range, constant, linear, quadratic.
	ARng float32
	ACnt float32
	ALnr float32
	AQdr float32
}

// Material property bits.
const (
	PropLight    = 1 << 0
	PropMetal    = 1 << 1
	PropNormal   = 1 << 2
	PropOpaque   = 1 << 3
	PropTransp   = 1 << 4
	PropTexture  = 1 << 5
	PropReflect  = 1 << 6
	PropRefract  = 1 << 7
	PropDiffuse  = 1 << 8
	PropSpecular = 1 << 9
	PropGamma    = 1 << 10
	PropFresnel  = 1 << 11
)

// MatRec is the per-side material record handed to the rendering
// backend.
type MatRec struct {
	Props int32

	// Texture data and uv mapping.
	Tex   []uint32
	XDim  int32
	YDim  int32
	XMask int32
	YMask int32

	TMap  [2]int32
	XScal float32
	YScal float32
	XOffs float32
	YOffs float32

	// Emission for light-emitting surfaces.
	ECol [3]float32
	ESrc float32

	// Shading coefficients.
	LDff float32
	LSpc float32
	LPow float32

	CRfl float32
	CTrn float32
	CRfr float32
	Rfr2 float32
	CRcp float32
	Ext2 float32
}
