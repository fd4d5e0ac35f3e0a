// Copyright (c) 2026, Tracekit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scene

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/tracekit/tracekit/geom"
)

// ErrNilMaterial reports a surface side without material data.
var ErrNilMaterial = fmt.Errorf("null material in surface side")

// Material represents the set of properties of a single side of a
// surface, resolved from its description into the backend record.
type Material struct {
	sd  *SideData
	mat *MaterialData

	// uv mapping from the side's texture rotation
	Map [2]int32
	Scl [2]float32

	SMat  *MatRec
	Props int32
}

// newMaterial resolves one side's material description. The texture
// must already carry pixel data or an inline color; file references
// are resolved by the scene loader.
func newMaterial(sc *Scene, sd *SideData, mat *MaterialData) (*Material, error) {
	if mat == nil {
		return nil, ErrNilMaterial
	}

	m := &Material{sd: sd, mat: mat}
	sc.mats = append(sc.mats, m)

	tx := &mat.Tex
	tx.Col.resolve()

	// texture color defined in place becomes a 1x1 texture
	if tx.XDim == 0 && tx.YDim == 0 {
		tx.Pixels = []uint32{tx.Col.Val}
		tx.XDim = 1
		tx.YDim = 1
	}

	m.Props = PropNormal
	if !sc.opts.Has(geom.OptsGamma) {
		m.Props |= PropGamma
	}
	if !sc.opts.Has(geom.OptsFresnel) {
		m.Props |= PropFresnel
	}
	if mat.Tag == MatLight {
		m.Props |= PropLight
	}
	if mat.Tag == MatMetal {
		m.Props |= PropMetal
	}
	if mat.Prp[1] == 0 {
		m.Props |= PropOpaque
	}
	if mat.Prp[1] == 1 {
		m.Props |= PropTransp
	}
	if tx.XDim != 1 || tx.YDim != 1 {
		m.Props |= PropTexture
	}
	if mat.Prp[0] != 0 {
		m.Props |= PropReflect
	}
	if mat.Prp[2] != 1 {
		m.Props |= PropRefract
	}
	if mat.Lgt[0] != 0 {
		m.Props |= PropDiffuse
	}
	if mat.Lgt[1] != 0 {
		m.Props |= PropSpecular
	}

	// pure reflectors and transmitters carry no local shading
	if mat.Prp[0]+mat.Prp[1] >= 1 {
		m.Props &^= PropDiffuse
		m.Props &^= PropSpecular
	}

	// detect trivial uv rotation for the texture mapping
	mtx := [2][2]float32{
		{+cosaDeg(sd.Rot), +sinaDeg(sd.Rot)},
		{-sinaDeg(sd.Rot), +cosaDeg(sd.Rot)},
	}

	var sgn [2]int32
	match := 0
	iden := [2][2]float32{{1, 0}, {0, 1}}
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			if math32.Abs(mtx[i][0]) == iden[j][0] &&
				math32.Abs(mtx[i][1]) == iden[j][1] {
				m.Map[i] = int32(j)
				if mtx[i][j] < 0 {
					sgn[i] = -1
				} else {
					sgn[i] = 1
				}
				match++
			}
		}
	}
	if match < 2 {
		m.Map[0], m.Map[1] = 0, 1
		sgn[0], sgn[1] = 1, 1
	}

	s := &MatRec{Props: m.Props}
	m.SMat = s

	s.TMap[0] = m.Map[0]
	s.TMap[1] = m.Map[1]

	m.Scl[0] = float32(tx.XDim) / (sd.Scl[0] * float32(sgn[0]))
	m.Scl[1] = float32(tx.YDim) / (sd.Scl[1] * float32(sgn[1]))

	s.XScal = m.Scl[0]
	s.YScal = m.Scl[1]
	s.XOffs = sd.Pos[m.Map[0]]
	s.YOffs = sd.Pos[m.Map[1]]

	s.Tex = tx.Pixels
	s.XDim = tx.XDim
	s.YDim = tx.YDim
	s.XMask = tx.XDim - 1
	s.YMask = tx.YDim - 1

	f := 1 - (mat.Prp[0] + mat.Prp[1])
	f = math32.Max(f, 0)

	s.LDff = mat.Lgt[0] * f
	s.LSpc = mat.Lgt[1] * f
	s.LPow = mat.Lgt[2]

	s.CRfl = mat.Prp[0]
	s.CTrn = mat.Prp[1]
	s.CRfr = mat.Prp[2]
	s.Rfr2 = mat.Prp[2] * mat.Prp[2]
	if mat.Prp[2] != 0 {
		s.CRcp = 1 / mat.Prp[2]
	}
	s.Ext2 = mat.Prp[3] * mat.Prp[3]

	// a partially transparent side with unit refraction index takes
	// its ratio from the extinction slot
	if mat.Prp[1] != 0 && mat.Prp[1] != 1 && mat.Prp[2] == 1 {
		s.CRfr = mat.Prp[3]
		s.Rfr2 = mat.Prp[3] * mat.Prp[3]
	}

	return m, nil
}

func sinaDeg(deg float32) float32 {
	return math32.Sin(deg * math32.Pi / 180)
}

func cosaDeg(deg float32) float32 {
	return math32.Cos(deg * math32.Pi / 180)
}
