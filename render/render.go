// Copyright (c) 2026, Tracekit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package render implements the scalar reference backend of the
// engine. It consumes the data structures the scene manager produces
// each frame: the per-tile surface lists, the per-surface records with
// their quadric coefficients and clippers, and the per-side light,
// shadow, reflection and refraction lists.
package render

import (
	"github.com/chewxy/math32"
	"github.com/tracekit/tracekit/geom"
	"github.com/tracekit/tracekit/scene"
)

// hitEps keeps secondary rays from re-intersecting their origin.
const hitEps = 1e-3

// Scalar is the scalar reference backend. The zero value is ready to
// use.
type Scalar struct{}

// hit describes the nearest intersection along a ray.
type hit struct {
	t     float32
	srf   *scene.Surf
	owner *geom.Bound
	loc   geom.Vec4 // local-frame hit point
	world geom.Vec4
	nrm   geom.Vec4 // world-frame unit normal (outward)
	outer bool
}

// RenderSlice renders the tile rows with index mod thnum matching the
// given worker index.
func (r *Scalar) RenderSlice(sc *scene.Scene, index int) error {
	tiles, inRow, inCol := sc.TileGrid()
	tileW, tileH := sc.TileDims()
	xRes, yRes := sc.Dims()
	pos, dir, hor, ver := sc.Steppers()
	fram := sc.Frame()

	ptR, ptG, ptB, seed, ptsC := sc.PtPlanes()
	ptOn := sc.PtOn()

	offs := sampleOffsets(sc.Fsaa())

	for ty := index; ty < inCol; ty += sc.Threads() {
		for tx := 0; tx < inRow; tx++ {
			lst := tiles[ty*inRow+tx]

			y0 := ty * tileH
			y1 := min(y0+tileH, yRes)
			x0 := tx * tileW
			x1 := min(x0+tileW, xRes)

			for y := y0; y < y1; y++ {
				row := sc.RowStart(y)
				for x := x0; x < x1; x++ {
					var cr, cg, cb float32

					jx, jy := float32(0), float32(0)
					if ptOn {
						// jitter accumulation samples
						s := seed[row+x]
						s = s*214013 + 2531011
						jx = float32(s&0xFFFF)/0x10000 - 0.5
						s = s*214013 + 2531011
						jy = float32(s&0xFFFF)/0x10000 - 0.5
						seed[row+x] = s
					}

					for _, o := range offs {
						var d geom.Vec4
						d = dir
						geom.Mad3(&d, hor, float32(x)+o[0]+jx)
						geom.Mad3(&d, ver, float32(y)+o[1]+jy)

						sr, sg, sb := r.trace(sc, lst, pos, d, sc.Depth())
						cr += sr
						cg += sg
						cb += sb
					}

					f := 1 / float32(len(offs))
					cr *= f
					cg *= f
					cb *= f

					if ptOn {
						// accumulate and average over frames
						ptR[row+x] += cr
						ptG[row+x] += cg
						ptB[row+x] += cb
						n := ptsC + 1
						cr = ptR[row+x] / n
						cg = ptG[row+x] / n
						cb = ptB[row+x] / n
					}

					fram[row+x] = packColor(cr, cg, cb)
				}
			}
		}
	}

	return nil
}

// sampleOffsets returns the subpixel offsets of the antialiasing mode.
func sampleOffsets(fsaa int) [][2]float32 {
	const as = 0.25
	const ar = 0.08

	switch fsaa {
	case scene.Fsaa2X:
		return [][2]float32{
			{-ar + as, +ar + as},
			{+ar - as, -ar - as},
		}
	case scene.Fsaa4X:
		return [][2]float32{
			{-ar - as, +ar - as},
			{-ar + as, -ar - as},
			{+ar - as, +ar + as},
			{+ar + as, -ar + as},
		}
	default:
		return [][2]float32{{0, 0}}
	}
}

func packColor(r, g, b float32) uint32 {
	return 0xFF000000 |
		uint32(clamp255(r))<<16 |
		uint32(clamp255(g))<<8 |
		uint32(clamp255(b))
}

func clamp255(v float32) int32 {
	c := int32(v * 255)
	if c < 0 {
		return 0
	}
	if c > 255 {
		return 255
	}
	return c
}

// trace follows a ray through the given surface list and shades the
// nearest hit.
func (r *Scalar) trace(sc *scene.Scene, lst *geom.Elem, org, d geom.Vec4, depth int) (cr, cg, cb float32) {
	h, ok := nearestHit(lst, org, d, sc.Cam().Pov, geom.Inf)
	if !ok {
		return 0, 0, 0
	}

	return r.shade(sc, &h, d, depth)
}

// nearestHit walks a flat filtered list, skipping array bounding
// volumes the ray misses via their last-leaf links.
func nearestHit(lst *geom.Elem, org, d geom.Vec4, tmin, tmax float32) (hit, bool) {
	var best hit
	best.t = tmax
	found := false

	for elm := lst; elm != nil; {
		srf, _ := elm.Simd.(*scene.Surf)

		// array bounding volumes prune their flattened sub-range
		if srf != nil && srf.Tag == geom.TagSurfaceMax {
			if elm.Last != nil && !sphereHit(srf, org, d, best.t) {
				elm = elm.Last.Next
			} else {
				elm = elm.Next
			}
			continue
		}
		// trnode grouping elements carry no geometry of their own
		if srf == nil || !srf.Tag.IsSurface() {
			elm = elm.Next
			continue
		}

		if h, ok := intersect(srf, elm.Temp, org, d, tmin, best.t); ok {
			best = h
			found = true
		}

		elm = elm.Next
	}

	return best, found
}

// sphereHit conservatively tests the ray against an array box record's
// enclosing ellipsoid.
func sphereHit(s *scene.Surf, org, d geom.Vec4, tmax float32) bool {
	var oc geom.Vec4
	geom.Sub3(&oc, org, s.Pos)

	var a, b, c float32
	for k := 0; k < 3; k++ {
		a += d[k] * d[k] * s.Sci[k]
		b += 2 * oc[k] * d[k] * s.Sci[k]
		c += oc[k] * oc[k] * s.Sci[k]
	}
	c -= s.Sci[geom.W]

	if c <= 0 {
		return true // origin inside
	}
	disc := b*b - 4*a*c
	if disc < 0 {
		return false
	}
	sq := math32.Sqrt(disc)
	t0 := (-b - sq) / (2 * a)
	t1 := (-b + sq) / (2 * a)
	return t1 > 0 && t0 < tmax
}

// toLocal transforms a world point into the surface's local frame.
func toLocal(s *scene.Surf, p geom.Vec4) geom.Vec4 {
	if s.Trnode != nil {
		t := s.Trnode
		var dff geom.Vec4
		geom.Sub3(&dff, p, t.Pos)

		loc := geom.Vec4{
			geom.Dot3(t.Tci, dff),
			geom.Dot3(t.Tcj, dff),
			geom.Dot3(t.Tck, dff),
		}
		if s.Trnode != s {
			geom.Sub3(&loc, loc, s.Pos)
		}
		return loc
	}

	var loc geom.Vec4
	geom.Sub3(&loc, p, s.Pos)
	return loc
}

// dirLocal transforms a world direction into the surface's trnode
// frame.
func dirLocal(s *scene.Surf, d geom.Vec4) geom.Vec4 {
	if s.Trnode == nil {
		return d
	}
	t := s.Trnode
	return geom.Vec4{
		geom.Dot3(t.Tci, d),
		geom.Dot3(t.Tcj, d),
		geom.Dot3(t.Tck, d),
	}
}

// nrmWorld transforms a local normal back into world space through the
// trnode's inverse transpose.
func nrmWorld(s *scene.Surf, n geom.Vec4) geom.Vec4 {
	if s.Trnode == nil {
		return n
	}
	t := s.Trnode
	return geom.Vec4{
		t.Tci[0]*n[0] + t.Tcj[0]*n[1] + t.Tck[0]*n[2],
		t.Tci[1]*n[0] + t.Tcj[1]*n[1] + t.Tck[1]*n[2],
		t.Tci[2]*n[0] + t.Tcj[2]*n[1] + t.Tck[2]*n[2],
	}
}

// intersect solves the surface's quadric (or plane) form along the ray
// and applies the minmax and custom clippers to candidate roots.
func intersect(s *scene.Surf, bnd *geom.Bound, org, d geom.Vec4, tmin, tmax float32) (hit, bool) {
	o := toLocal(s, org)
	dl := dirLocal(s, d)

	var roots [2]float32
	var nroots int

	if s.Tag.IsPlane() {
		den := geom.Dot3(s.Sck, dl)
		if math32.Abs(den) < geom.DepsThreshold {
			return hit{}, false
		}
		roots[0] = -geom.Dot3(s.Sck, o) / den
		nroots = 1
	} else {
		var a, b, c float32
		for k := 0; k < 3; k++ {
			a += dl[k] * dl[k] * s.Sci[k]
			b += 2 * (o[k]*dl[k]*s.Sci[k] - s.Scj[k]*dl[k])
			c += o[k]*o[k]*s.Sci[k] - 2*s.Scj[k]*o[k]
		}
		c -= s.Sci[geom.W]

		if math32.Abs(a) < geom.DepsThreshold {
			// degenerate to linear
			if math32.Abs(b) < geom.DepsThreshold {
				return hit{}, false
			}
			roots[0] = -c / b
			nroots = 1
		} else {
			disc := b*b - 4*a*c
			if disc < 0 {
				return hit{}, false
			}
			sq := math32.Sqrt(disc)
			t0 := (-b - sq) / (2 * a)
			t1 := (-b + sq) / (2 * a)
			if t0 > t1 {
				t0, t1 = t1, t0
			}
			roots[0], roots[1] = t0, t1
			nroots = 2
		}
	}

	for i := 0; i < nroots; i++ {
		t := roots[i]
		if t < tmin+hitEps || t >= tmax {
			continue
		}

		var loc geom.Vec4
		loc = o
		geom.Mad3(&loc, dl, t)

		if !insideClips(s, bnd, loc, org, d, t) {
			continue
		}

		var h hit
		h.t = t
		h.srf = s
		h.owner = bnd
		h.loc = loc
		h.world = org
		geom.Mad3(&h.world, d, t)

		// outward local normal: the quadric gradient, or the plane
		// normal
		var n geom.Vec4
		if s.Tag.IsPlane() {
			n = s.Sck
		} else {
			for k := 0; k < 3; k++ {
				n[k] = 2*s.Sci[k]*loc[k] - 2*s.Scj[k]
			}
		}
		n = nrmWorld(s, n)
		l := geom.Len3(n)
		if l > 0 {
			geom.Scale3(&n, n, 1/l)
		}
		h.nrm = n

		h.outer = geom.Dot3(n, d) < 0

		return h, true
	}

	return hit{}, false
}

// insideClips applies the minmax clippers and the custom clippers list
// (with accum segments) to a candidate hit.
func insideClips(s *scene.Surf, bnd *geom.Bound, loc, org, d geom.Vec4, t float32) bool {
	for k := 0; k < 3; k++ {
		if s.MinT[k] != 0 && loc[k] < s.Min[k] {
			return false
		}
		if s.MaxT[k] != 0 && loc[k] > s.Max[k] {
			return false
		}
	}

	if s.Clip == nil {
		return true
	}

	var world geom.Vec4
	world = org
	geom.Mad3(&world, d, t)

	// inside an accum segment a hit survives unless every clipper of
	// the segment cuts it; outside, each clipper cuts independently
	acc := false
	accCut := true

	for elm := s.Clip; elm != nil; elm = elm.Next {
		if elm.Temp == nil {
			if !acc {
				acc = true
				accCut = true
			} else {
				if accCut {
					return false
				}
				acc = false
			}
			continue
		}

		// trnode grouping elements carry no clipping of their own
		if elm.Temp.Tag.IsArray() {
			continue
		}

		shp := elm.Temp.Shp
		if shp == nil {
			continue
		}

		side := geom.SurfSide(shp, world)
		cut := elm.Data == geom.RelMinusOuter && side == 2 ||
			elm.Data == geom.RelMinusInner && side == 1

		if acc {
			if !cut {
				accCut = false
			}
		} else if cut {
			return false
		}
	}

	return true
}

// shade lights the hit through its side's light/shadow lists, then
// recurses into the reflection and refraction lists.
func (r *Scalar) shade(sc *scene.Scene, h *hit, d geom.Vec4, depth int) (cr, cg, cb float32) {
	s := h.srf

	mat := s.MatOuter
	lights := s.LstP[0]
	surfs := s.LstP[1]
	nrm := h.nrm
	if !h.outer {
		mat = s.MatInner
		lights = s.LstP[2]
		surfs = s.LstP[3]
		geom.Scale3(&nrm, nrm, -1)
	}

	tr, tg, tb := texel(s, mat, h.loc)

	// emission
	cr = mat.ECol[0]
	cg = mat.ECol[1]
	cb = mat.ECol[2]

	// ambient
	amb := sc.Ambient()
	cr += tr * amb[0]
	cg += tg * amb[1]
	cb += tb * amb[2]

	if mat.Props&(PropDiffuse|PropSpecular) != 0 {
		for le := lights; le != nil; le = le.Next {
			lgt, _ := le.Simd.(*scene.LightRec)
			if lgt == nil {
				continue
			}

			var toL geom.Vec4
			geom.Sub3(&toL, lgt.Pos, h.world)
			dist := geom.Len3(toL)
			if dist <= 0 {
				continue
			}
			var ld geom.Vec4
			geom.Scale3(&ld, toL, 1/dist)

			cos := geom.Dot3(nrm, ld)
			if cos <= 0 {
				continue
			}

			// shadow test against the light's candidate list
			if shadowed(le.Sub, h.world, toL) {
				continue
			}

			atn := 1 / (lgt.ACnt + lgt.ALnr*dist + lgt.AQdr*dist*dist)

			if mat.Props&PropDiffuse != 0 {
				f := mat.LDff * cos * atn
				cr += tr * lgt.Col[0] * f
				cg += tg * lgt.Col[1] * f
				cb += tb * lgt.Col[2] * f
			}

			if mat.Props&PropSpecular != 0 {
				var rl geom.Vec4
				reflectDir(&rl, ld, nrm)
				sp := -geom.Dot3(rl, dirNorm(d))
				if sp > 0 {
					f := mat.LSpc * math32.Pow(sp, mat.LPow) * atn
					cr += lgt.Col[0] * f
					cg += lgt.Col[1] * f
					cb += lgt.Col[2] * f
				}
			}
		}
	}

	if depth <= 0 {
		return cr, cg, cb
	}

	// reflection through the per-side surface list
	if mat.Props&PropReflect != 0 && mat.CRfl > 0 {
		dn := dirNorm(d)
		var rd geom.Vec4
		reflectDir(&rd, geom.Vec4{-dn[0], -dn[1], -dn[2]}, nrm)

		rr, rg, rb := r.traceFrom(sc, surfs, h.world, rd, depth-1)
		cr += rr * mat.CRfl
		cg += rg * mat.CRfl
		cb += rb * mat.CRfl
	}

	// transmission and refraction
	if mat.Props&PropOpaque == 0 && mat.CTrn > 0 {
		dn := dirNorm(d)
		rd, ok := refractDir(dn, nrm, mat.CRfr)
		if !ok {
			// total internal reflection
			reflectDir(&rd, geom.Vec4{-dn[0], -dn[1], -dn[2]}, nrm)
		}

		// the ray continues on the other side of the surface
		tlist := s.LstP[3]
		if !h.outer {
			tlist = s.LstP[1]
		}

		rr, rg, rb := r.traceFrom(sc, tlist, h.world, rd, depth-1)
		cr += rr * mat.CTrn
		cg += rg * mat.CTrn
		cb += rb * mat.CTrn
	}

	return cr, cg, cb
}

// Material property bits re-exported for local brevity.
const (
	PropDiffuse  = scene.PropDiffuse
	PropSpecular = scene.PropSpecular
	PropReflect  = scene.PropReflect
	PropOpaque   = scene.PropOpaque
)

// traceFrom traces a secondary ray against a per-side surface list.
func (r *Scalar) traceFrom(sc *scene.Scene, lst *geom.Elem, org, d geom.Vec4, depth int) (cr, cg, cb float32) {
	h, ok := nearestHit(lst, org, d, 0, geom.Inf)
	if !ok {
		return 0, 0, 0
	}
	return r.shade(sc, &h, d, depth)
}

// shadowed walks a light's shadow candidate list for an opaque
// intersection between the point and the light.
func shadowed(lst *geom.Elem, p, toL geom.Vec4) bool {
	for elm := lst; elm != nil; {
		srf, _ := elm.Simd.(*scene.Surf)

		if srf != nil && srf.Tag == geom.TagSurfaceMax {
			if elm.Last != nil && !sphereHit(srf, p, toL, 1) {
				elm = elm.Last.Next
			} else {
				elm = elm.Next
			}
			continue
		}
		if srf == nil || !srf.Tag.IsSurface() {
			elm = elm.Next
			continue
		}

		if h, ok := intersect(srf, elm.Temp, p, toL, 0, 1); ok {
			mat := srf.MatOuter
			if !h.outer {
				mat = srf.MatInner
			}
			if mat.Props&PropOpaque != 0 {
				return true
			}
		}

		elm = elm.Next
	}
	return false
}

// texel samples the material's texture at the hit's local uv.
func texel(s *scene.Surf, mat *scene.MatRec, loc geom.Vec4) (r, g, b float32) {
	c := mat.Tex[0]

	if mat.Props&scene.PropTexture != 0 {
		u := loc[mat.TMap[0]]*mat.XScal + mat.XOffs
		v := loc[mat.TMap[1]]*mat.YScal + mat.YOffs

		x := int32(math32.Floor(u)) & mat.XMask
		y := int32(math32.Floor(v)) & mat.YMask
		c = mat.Tex[y*mat.XDim+x]
	}

	r = float32((c>>16)&0xFF) / 255
	g = float32((c>>8)&0xFF) / 255
	b = float32(c&0xFF) / 255
	return
}

// reflectDir reflects the direction to the light (or the negated view
// vector) about the normal.
func reflectDir(out *geom.Vec4, v, n geom.Vec4) {
	d := 2 * geom.Dot3(v, n)
	out[0] = d*n[0] - v[0]
	out[1] = d*n[1] - v[1]
	out[2] = d*n[2] - v[2]
}

// refractDir bends the incoming unit direction through the surface
// with the given index ratio; ok is false on total internal
// reflection.
func refractDir(d, n geom.Vec4, eta float32) (geom.Vec4, bool) {
	if eta == 0 {
		eta = 1
	}
	cosi := -geom.Dot3(d, n)
	k := 1 - eta*eta*(1-cosi*cosi)
	if k < 0 {
		return geom.Vec4{}, false
	}
	f := eta*cosi - math32.Sqrt(k)

	var out geom.Vec4
	geom.Scale3(&out, d, eta)
	geom.Mad3(&out, n, f)
	return out, true
}

// dirNorm returns the normalized direction.
func dirNorm(d geom.Vec4) geom.Vec4 {
	l := geom.Len3(d)
	if l > 0 {
		geom.Scale3(&d, d, 1/l)
	}
	return d
}
