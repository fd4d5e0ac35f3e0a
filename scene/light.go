// Copyright (c) 2026, Tracekit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scene

import "github.com/tracekit/tracekit/geom"

// Light is a special object which influences the rendering of other
// objects.
type Light struct {
	Object

	Lgt  *LightData
	SLgt *LightRec
}

func newLight(sc *Scene, parent *Array, data *ObjectData) (*Light, error) {
	l := &Light{Lgt: data.Light}
	if err := l.initObject(sc, l, parent, data); err != nil {
		return nil, err
	}
	sc.lgts = append(sc.lgts, l)

	lgt := l.Lgt
	lgt.Col.resolve()

	s := &LightRec{}
	l.SLgt = s

	s.Col[0] = lgt.Col.HDR[0] * lgt.Lum[1]
	s.Col[1] = lgt.Col.HDR[1] * lgt.Lum[1]
	s.Col[2] = lgt.Col.HDR[2] * lgt.Lum[1]
	s.Src = lgt.Lum[1]

	s.AQdr = lgt.Atn[3]
	s.ALnr = lgt.Atn[2]
	s.ACnt = lgt.Atn[1] + 1
	s.ARng = lgt.Atn[0]

	// accumulate the light's contribution into the parent array,
	// later assigned to emitting surfaces
	parent.Col.HDR[0] += s.Col[0] + lgt.Col.HDR[0]*lgt.Lum[0]
	parent.Col.HDR[1] += s.Col[1] + lgt.Col.HDR[1]*lgt.Lum[0]
	parent.Col.HDR[2] += s.Col[2] + lgt.Col.HDR[2]*lgt.Lum[0]
	parent.Col.HDR[3] += lgt.Lum[0] + lgt.Lum[1]

	return l, nil
}

// Base returns the shared object core.
func (l *Light) Base() *Object { return &l.Object }

// UpdateObject records the parent matrix; the light's own matrix is
// refreshed in UpdateFields.
func (l *Light) UpdateObject(time int64, flags int32, trnode Node, mtx *geom.Mat4) {
	l.updateStatus(time, flags, trnode)
	l.pmtx = mtx
}

// UpdateFields updates the light's matrix and backend record.
func (l *Light) UpdateFields() {
	if l.ObjChanged == 0 {
		return
	}

	l.updateMatrix(l.pmtx)

	geom.Set3(&l.BvBox.Mid, *l.Pos())
	l.SLgt.Pos = *l.Pos()
}
