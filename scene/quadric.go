// Copyright (c) 2026, Tracekit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scene

import (
	"github.com/chewxy/math32"
	"github.com/tracekit/tracekit/geom"
)

// updateShape fills the surface's shape coefficients from its tag and
// parameters, then commits them to the backend record. The axis
// mapping (trivial transform) ends up contained in the sci, scj and
// sck fields.
func (s *Surface) updateShape() {
	shape := s.Shape
	srf := s.Srf

	if s.Tag.IsPlane() {
		// apply axis scalers to texturing
		var asc, isc [2]float32

		asc[0] = s.Scl[s.mpI]
		asc[1] = s.Scl[s.mpJ]

		isc[0] = 1 / asc[0]
		isc[1] = 1 / asc[1]

		for _, m := range []*Material{s.Outer, s.Inner} {
			sm := m.SMat

			sm.XScal = m.Scl[0] * isc[m.Map[0]]
			sm.YScal = m.Scl[1] * isc[m.Map[1]]

			sm.XOffs = m.sd.Pos[m.Map[0]] * asc[m.Map[0]]
			sm.YOffs = m.sd.Pos[m.Map[1]] * asc[m.Map[1]]
		}

		shape.Sci = geom.Vec4{}
		shape.Scj = geom.Vec4{}
		shape.Sck = geom.Vec4{}
		shape.Sck[s.mpK] = float32(s.Sgn[geom.K])

		s.SSrf.Sci = shape.Sci
		s.SSrf.Scj = shape.Scj
		s.SSrf.Sck = shape.Sck
		return
	}

	shape.Sci = geom.Vec4{1, 1, 1, 0}
	shape.Scj = geom.Vec4{}
	shape.Sck = geom.Vec4{}

	switch s.Tag {
	case geom.TagCylinder:
		shape.Sci[s.mpK] = 0
		shape.Sci[geom.W] = srf.Rad * srf.Rad

	case geom.TagSphere:
		shape.Sci[geom.W] = srf.Rad * srf.Rad

	case geom.TagCone:
		shape.Sci[s.mpK] = -(srf.Rat * srf.Rat)

	case geom.TagParaboloid:
		shape.Sci[s.mpK] = 0
		shape.Scj[s.mpK] = srf.Par * float32(s.Sgn[geom.K])

	case geom.TagHyperboloid:
		shape.Sci[s.mpK] = -(srf.Rat * srf.Rat)
		shape.Sci[geom.W] = srf.Hyp

	case geom.TagParaCylinder:
		shape.Sci[s.mpJ] = 0
		shape.Sci[s.mpK] = 0
		shape.Scj[s.mpK] = srf.Par * float32(s.Sgn[geom.K])

	case geom.TagHyperCylinder:
		shape.Sci[s.mpJ] = 0
		shape.Sci[s.mpK] = -(srf.Rat * srf.Rat)
		shape.Sci[geom.W] = srf.Hyp

	case geom.TagHyperParaboloid:
		shape.Sci[s.mpI] = 1 / +math32.Abs(srf.Pr1)
		shape.Sci[s.mpJ] = 1 / -math32.Abs(srf.Pr2)
		shape.Sci[s.mpK] = 0
		shape.Scj[s.mpK] = 1 * float32(s.Sgn[geom.K])
	}

	s.commitShape()
}

// commitShape folds the axis scalers into the quadric coefficients and
// publishes them to the backend record, with the linear terms halved
// the way the solvers consume them.
func (s *Surface) commitShape() {
	shape := s.Shape

	var isc geom.Vec4
	isc[geom.X] = 1 / s.Scl[geom.X]
	isc[geom.Y] = 1 / s.Scl[geom.Y]
	isc[geom.Z] = 1 / s.Scl[geom.Z]

	shape.Sci[geom.X] *= isc[geom.X] * isc[geom.X]
	shape.Sci[geom.Y] *= isc[geom.Y] * isc[geom.Y]
	shape.Sci[geom.Z] *= isc[geom.Z] * isc[geom.Z]

	shape.Scj[geom.X] *= isc[geom.X]
	shape.Scj[geom.Y] *= isc[geom.Y]
	shape.Scj[geom.Z] *= isc[geom.Z]

	s.SSrf.Sci = shape.Sci
	s.SSrf.Scj = geom.Vec4{
		shape.Scj[geom.X] * 0.5,
		shape.Scj[geom.Y] * 0.5,
		shape.Scj[geom.Z] * 0.5,
	}
	s.SSrf.Sck = shape.Sck
}

// adjustShapeMinmax is the shape-specific core of adjustMinmax: it
// tightens the local bbox with the shape's own extent and opens cbox
// sides the shape already bounds.
func (s *Surface) adjustShapeMinmax(smin, smax, bmin, bmax, cmin, cmax *geom.Vec4) {
	srf := s.Srf

	// cb distinguishes self-adjust (cbox passed) from clip-adjust
	cb := cmin != nil && cmax != nil

	switch s.Tag {
	case geom.TagPlane:
		if cb {
			cmin[geom.K] = -geom.Inf
			cmax[geom.K] = +geom.Inf
		}
		if bmin != nil && bmax != nil {
			bmin[geom.I] = smin[geom.I]
			bmin[geom.J] = smin[geom.J]
			bmin[geom.K] = 0

			bmax[geom.I] = smax[geom.I]
			bmax[geom.J] = smax[geom.J]
			bmax[geom.K] = 0
		}

	case geom.TagCylinder:
		rad := math32.Abs(srf.Rad)

		if cb {
			openOut(cmin, cmax, geom.I, rad)
			openOut(cmin, cmax, geom.J, rad)
		}
		if bmin != nil && bmax != nil {
			clampIn(smin, smax, bmin, bmax, geom.I, rad)
			clampIn(smin, smax, bmin, bmax, geom.J, rad)
			bmin[geom.K] = smin[geom.K]
			bmax[geom.K] = smax[geom.K]
		}

	case geom.TagSphere:
		r := math32.Abs(srf.Rad)
		rad := [3]float32{r, r, r}

		// a clipped axis shrinks the two radii orthogonal to it
		for k := 0; k < 3; k++ {
			var top float32
			if smin[k] > 0 {
				top = +smin[k]
			} else if smax[k] < 0 {
				top = -smax[k]
			}
			rr := math32.Sqrt(math32.Max(srf.Rad*srf.Rad-top*top, 0))

			i := (k + 1) % 3
			if rad[i] > rr {
				rad[i] = rr
			}
			j := (k + 2) % 3
			if rad[j] > rr {
				rad[j] = rr
			}
		}

		if cb {
			openOut(cmin, cmax, geom.I, rad[geom.I])
			openOut(cmin, cmax, geom.J, rad[geom.J])
			openOut(cmin, cmax, geom.K, rad[geom.K])
		}
		if bmin != nil && bmax != nil {
			clampIn(smin, smax, bmin, bmax, geom.I, rad[geom.I])
			clampIn(smin, smax, bmin, bmax, geom.J, rad[geom.J])
			clampIn(smin, smax, bmin, bmax, geom.K, rad[geom.K])
		}

	case geom.TagCone:
		rat := math32.Abs(srf.Rat)
		top := math32.Max(math32.Abs(smin[geom.K]), math32.Abs(smax[geom.K]))
		rad := geom.Inf
		if top != geom.Inf {
			rad = top * rat
		}

		mxi := math32.Max(math32.Abs(smin[geom.I]), math32.Abs(smax[geom.I]))
		mxj := math32.Max(math32.Abs(smin[geom.J]), math32.Abs(smax[geom.J]))
		if mxi != geom.Inf && mxj != geom.Inf {
			top = math32.Min(math32.Sqrt(mxi*mxi+mxj*mxj)/rat, top)
		}

		if cb {
			openOut(cmin, cmax, geom.I, rad)
			openOut(cmin, cmax, geom.J, rad)
			if cmin[geom.K] < -top {
				cmin[geom.K] = -geom.Inf
			}
			if cmax[geom.K] > +top {
				cmax[geom.K] = +geom.Inf
			}
		}
		if bmin != nil && bmax != nil {
			clampIn(smin, smax, bmin, bmax, geom.I, rad)
			clampIn(smin, smax, bmin, bmax, geom.J, rad)
			if cb {
				bmin[geom.K] = math32.Max(smin[geom.K], -top)
				bmax[geom.K] = math32.Min(smax[geom.K], +top)
			} else {
				bmin[geom.K] = smin[geom.K]
				bmax[geom.K] = smax[geom.K]
			}
		}

	case geom.TagParaboloid:
		par := srf.Par
		var top float32
		if par < 0 {
			top = math32.Max(-smin[geom.K], 0)
		} else {
			top = math32.Max(+smax[geom.K], 0)
		}
		rad := geom.Inf
		if top != geom.Inf {
			rad = math32.Sqrt(top * math32.Abs(par))
		}

		mxi := math32.Max(math32.Abs(smin[geom.I]), math32.Abs(smax[geom.I]))
		mxj := math32.Max(math32.Abs(smin[geom.J]), math32.Abs(smax[geom.J]))
		if mxi != geom.Inf && mxj != geom.Inf {
			top = math32.Min((mxi*mxi+mxj*mxj)/math32.Abs(par), top)
		}

		if cb {
			openOut(cmin, cmax, geom.I, rad)
			openOut(cmin, cmax, geom.J, rad)
			if cmin[geom.K] <= 0 && par > 0 || cmin[geom.K] < -top && par < 0 {
				cmin[geom.K] = -geom.Inf
			}
			if cmax[geom.K] >= 0 && par < 0 || cmax[geom.K] > +top && par > 0 {
				cmax[geom.K] = +geom.Inf
			}
		}
		if bmin != nil && bmax != nil {
			clampIn(smin, smax, bmin, bmax, geom.I, rad)
			clampIn(smin, smax, bmin, bmax, geom.J, rad)
			switch {
			case par > 0:
				bmin[geom.K] = math32.Max(smin[geom.K], 0)
			case cb:
				bmin[geom.K] = math32.Max(smin[geom.K], -top)
			default:
				bmin[geom.K] = smin[geom.K]
			}
			switch {
			case par < 0:
				bmax[geom.K] = math32.Min(smax[geom.K], 0)
			case cb:
				bmax[geom.K] = math32.Min(smax[geom.K], +top)
			default:
				bmax[geom.K] = smax[geom.K]
			}
		}

	case geom.TagHyperboloid:
		rat := math32.Abs(srf.Rat)
		hyp := srf.Hyp
		top := math32.Max(math32.Abs(smin[geom.K]), math32.Abs(smax[geom.K]))
		rad := geom.Inf
		if top != geom.Inf {
			rad = math32.Sqrt(top*top*rat*rat + hyp)
		}

		mxi := math32.Max(math32.Abs(smin[geom.I]), math32.Abs(smax[geom.I]))
		mxj := math32.Max(math32.Abs(smin[geom.J]), math32.Abs(smax[geom.J]))
		if mxi != geom.Inf && mxj != geom.Inf {
			top = math32.Min(math32.Sqrt(mxi*mxi+mxj*mxj-hyp)/rat, top)
		}

		if cb {
			openOut(cmin, cmax, geom.I, rad)
			openOut(cmin, cmax, geom.J, rad)
			if cmin[geom.K] < -top {
				cmin[geom.K] = -geom.Inf
			}
			if cmax[geom.K] > +top {
				cmax[geom.K] = +geom.Inf
			}
		}
		if bmin != nil && bmax != nil {
			clampIn(smin, smax, bmin, bmax, geom.I, rad)
			clampIn(smin, smax, bmin, bmax, geom.J, rad)
			if cb {
				bmin[geom.K] = math32.Max(smin[geom.K], -top)
				bmax[geom.K] = math32.Min(smax[geom.K], +top)
			} else {
				bmin[geom.K] = smin[geom.K]
				bmax[geom.K] = smax[geom.K]
			}
		}

	case geom.TagParaCylinder:
		par := srf.Par
		var top float32
		if par < 0 {
			top = math32.Max(-smin[geom.K], 0)
		} else {
			top = math32.Max(+smax[geom.K], 0)
		}
		rad := geom.Inf
		if top != geom.Inf {
			rad = math32.Sqrt(top * math32.Abs(par))
		}

		mxi := math32.Max(math32.Abs(smin[geom.I]), math32.Abs(smax[geom.I]))
		if mxi != geom.Inf {
			top = math32.Min((mxi*mxi)/math32.Abs(par), top)
		}

		if cb {
			openOut(cmin, cmax, geom.I, rad)
			if cmin[geom.K] <= 0 && par > 0 || cmin[geom.K] < -top && par < 0 {
				cmin[geom.K] = -geom.Inf
			}
			if cmax[geom.K] >= 0 && par < 0 || cmax[geom.K] > +top && par > 0 {
				cmax[geom.K] = +geom.Inf
			}
		}
		if bmin != nil && bmax != nil {
			clampIn(smin, smax, bmin, bmax, geom.I, rad)
			bmin[geom.J] = smin[geom.J]
			bmax[geom.J] = smax[geom.J]
			switch {
			case par > 0:
				bmin[geom.K] = math32.Max(smin[geom.K], 0)
			case cb:
				bmin[geom.K] = math32.Max(smin[geom.K], -top)
			default:
				bmin[geom.K] = smin[geom.K]
			}
			switch {
			case par < 0:
				bmax[geom.K] = math32.Min(smax[geom.K], 0)
			case cb:
				bmax[geom.K] = math32.Min(smax[geom.K], +top)
			default:
				bmax[geom.K] = smax[geom.K]
			}
		}

	case geom.TagHyperCylinder:
		rat := math32.Abs(srf.Rat)
		hyp := srf.Hyp
		top := math32.Max(math32.Abs(smin[geom.K]), math32.Abs(smax[geom.K]))
		rad := geom.Inf
		if top != geom.Inf {
			rad = math32.Sqrt(top*top*rat*rat + hyp)
		}

		mxi := math32.Max(math32.Abs(smin[geom.I]), math32.Abs(smax[geom.I]))
		if mxi != geom.Inf {
			top = math32.Min(math32.Sqrt(mxi*mxi-hyp)/rat, top)
		}

		if cb {
			openOut(cmin, cmax, geom.I, rad)
			if cmin[geom.K] < -top {
				cmin[geom.K] = -geom.Inf
			}
			if cmax[geom.K] > +top {
				cmax[geom.K] = +geom.Inf
			}
		}
		if bmin != nil && bmax != nil {
			clampIn(smin, smax, bmin, bmax, geom.I, rad)
			bmin[geom.J] = smin[geom.J]
			bmax[geom.J] = smax[geom.J]
			if cb {
				bmin[geom.K] = math32.Max(smin[geom.K], -top)
				bmax[geom.K] = math32.Min(smax[geom.K], +top)
			} else {
				bmin[geom.K] = smin[geom.K]
				bmax[geom.K] = smax[geom.K]
			}
		}

	case geom.TagHyperParaboloid:
		rd1 := math32.Max(-smin[geom.I], +smax[geom.I])
		rd2 := math32.Max(-smin[geom.J], +smax[geom.J])
		tp1 := rd1 * rd1 / math32.Abs(srf.Pr1)
		tp2 := rd2 * rd2 / math32.Abs(srf.Pr2)

		if cb {
			if cmin[geom.K] <= -tp2 {
				cmin[geom.K] = -geom.Inf
			}
			if cmax[geom.K] >= +tp1 {
				cmax[geom.K] = +geom.Inf
			}
		}
		if bmin != nil && bmax != nil {
			bmin[geom.I] = smin[geom.I]
			bmin[geom.J] = smin[geom.J]
			bmax[geom.I] = smax[geom.I]
			bmax[geom.J] = smax[geom.J]
			if cb {
				bmin[geom.K] = math32.Max(smin[geom.K], -tp2)
				bmax[geom.K] = math32.Min(smax[geom.K], +tp1)
			} else {
				bmin[geom.K] = smin[geom.K]
				bmax[geom.K] = smax[geom.K]
			}
		}
	}
}

// openOut opens a cbox side the shape already bounds at the given
// radius.
func openOut(cmin, cmax *geom.Vec4, ax int, rad float32) {
	if cmin[ax] <= -rad {
		cmin[ax] = -geom.Inf
	}
	if cmax[ax] >= +rad {
		cmax[ax] = +geom.Inf
	}
}

// clampIn tightens a bbox side to the given radius.
func clampIn(smin, smax, bmin, bmax *geom.Vec4, ax int, rad float32) {
	bmin[ax] = math32.Max(smin[ax], -rad)
	bmax[ax] = math32.Min(smax[ax], +rad)
}
