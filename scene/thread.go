// Copyright (c) 2026, Tracekit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scene

import (
	"github.com/chewxy/math32"
	"github.com/tracekit/tracekit/arena"
	"github.com/tracekit/tracekit/geom"
)

// SceneThread is the per-worker workspace of the scene manager: the
// per-frame element pool and the tile-range scratch of one thread.
// Workers never touch each other's workspace.
type SceneThread struct {
	sc    *Scene
	index int

	// x-coord boundaries for a surface's projected bbox in the
	// tilebuffer
	txmin []int32
	txmax []int32
	// temporary bbox verts buffer
	verts []geom.Vert

	// per-frame element pool and its frame checkpoint
	pool arena.Pool[geom.Elem]
	mark arena.Mark
}

func newSceneThread(sc *Scene, index int) *SceneThread {
	return &SceneThread{
		sc:    sc,
		index: index,
		txmin: make([]int32, sc.tilesInCol),
		txmax: make([]int32, sc.tilesInCol),
		verts: make([]geom.Vert, 2*geom.VertsLimit+geom.EdgesLimit),
	}
}

// newElem allocates a zeroed list element from the frame pool.
func (st *SceneThread) newElem() *geom.Elem {
	return st.pool.Get()
}

// updateTileBounds widens the tile row cy with the x-range [x1, x2].
func (st *SceneThread) updateTileBounds(cy, x1, x2, xmin, xmax int32) {
	if x1 > x2 {
		x1, x2 = x2, x1
	}
	if st.txmin[cy] > x1 {
		st.txmin[cy] = max32(x1, xmin)
	}
	if st.txmax[cy] < x2 {
		st.txmax[cy] = min32(x2, xmax)
	}
}

func max32(a, b int32) int32 {
	if a > b {
		return a
	}
	return b
}

func min32(a, b int32) int32 {
	if a < b {
		return a
	}
	return b
}

// tiling updates the surface's projected bbox boundaries in the
// tilebuffer by processing one bbox edge at a time; bbox faces are not
// used. The tilebuffer is reset per surface by the caller.
func (st *SceneThread) tiling(p1, p2 geom.Vec4) {
	var n1, n2 [3][2]float32
	var rt, xx, yy, px float32
	var n int

	// swap points vertically if needed
	if p1[geom.Y] > p2[geom.Y] {
		p1, p2 = p2, p1
	}

	dx := p2[geom.X] - p1[geom.X]
	dy := p2[geom.Y] - p1[geom.Y]

	// prepare new lines with margins
	switch {
	case math32.Abs(dx) <= geom.LineThreshold &&
		math32.Abs(dy) <= geom.LineThreshold:
		rt = 0
		if dx < 0 {
			xx = -1
		} else {
			xx = 1
		}
		yy = 1
	case math32.Abs(dx) <= geom.LineThreshold ||
		math32.Abs(dy) <= geom.LineThreshold:
		rt = 0
		xx = dx
		yy = dy
	default:
		rt = dx / dy
		xx = dx
		yy = dy
	}

	if st.sc.opts.Has(geom.OptsTilingExt1) {
		px = geom.TileThreshold / math32.Sqrt(xx*xx+yy*yy)
		xx *= px
		yy *= px

		n1[0][geom.X] = p1[geom.X] - xx
		n1[0][geom.Y] = p1[geom.Y] - yy
		n2[0][geom.X] = p2[geom.X] + xx
		n2[0][geom.Y] = p2[geom.Y] + yy

		n1[1][geom.X] = n1[0][geom.X] - yy
		n1[1][geom.Y] = n1[0][geom.Y] + xx
		n2[1][geom.X] = n2[0][geom.X] - yy
		n2[1][geom.Y] = n2[0][geom.Y] + xx

		n1[2][geom.X] = n1[0][geom.X] + yy
		n1[2][geom.Y] = n1[0][geom.Y] - xx
		n2[2][geom.X] = n2[0][geom.X] + yy
		n2[2][geom.Y] = n2[0][geom.Y] - xx

		n = 3
	} else {
		n1[0][geom.X] = p1[geom.X]
		n1[0][geom.Y] = p1[geom.Y]
		n2[0][geom.X] = p2[geom.X]
		n2[0][geom.Y] = p2[geom.Y]

		n = 1
	}

	// inclusive bounds
	xmin := int32(0)
	ymin := int32(0)
	xmax := int32(st.sc.tilesInRow) - 1
	ymax := int32(st.sc.tilesInCol) - 1

	for i := 0; i < n; i++ {
		x1 := int32(math32.Floor(n1[i][geom.X]))
		y1 := int32(math32.Floor(n1[i][geom.Y]))
		x2 := int32(math32.Floor(n2[i][geom.X]))
		y2 := int32(math32.Floor(n2[i][geom.Y]))

		// reject y-outer lines
		if y1 > ymax || y2 < ymin {
			continue
		}

		// nearly vertical, nearly horizontal or x-outer line
		if x1 == x2 || y1 == y2 || rt == 0 ||
			(x1 < xmin && x2 < xmin) ||
			(x1 > xmax && x2 > xmax) {
			if y1 < ymin {
				y1 = ymin
			}
			if y2 > ymax {
				y2 = ymax
			}
			for t := y1; t <= y2; t++ {
				st.updateTileBounds(t, x1, x2, xmin, xmax)
			}
			continue
		}

		// regular line
		if y1 < ymin {
			y1 = ymin
		} else {
			y1++
		}
		if y2 > ymax {
			y2 = ymax
		} else {
			y2--
		}

		px = n1[i][geom.X] + (float32(y1)-n1[i][geom.Y])*rt
		x2 = int32(math32.Floor(px))

		if y1 > ymin {
			st.updateTileBounds(y1-1, x1, x2, xmin, xmax)
		}

		x1 = x2

		for t := y1; t <= y2; t++ {
			px += rt
			x2 = int32(math32.Floor(px))
			st.updateTileBounds(t, x1, x2, xmin, xmax)
			x1 = x2
		}

		if y2 < ymax {
			x2 = int32(math32.Floor(n2[i][geom.X]))
			st.updateTileBounds(y2+1, x1, x2, xmin, xmax)
		}
	}
}

// insertLight inserts a new element for the light at the list's head.
// Its sub-list carries the light's shadow candidates, all surfaces by
// default.
func (st *SceneThread) insertLight(lgt *Light, ptr **geom.Elem) *geom.Elem {
	elm := st.newElem()
	elm.Sub = st.sc.slist // all surfaces are potential shadows
	elm.Simd = lgt.SLgt
	elm.Temp = lgt.BvBox
	elm.Next = *ptr
	*ptr = elm
	return elm
}

// insert inserts a new element derived from the template into the list
// at ptr for the given viewpoint object, then sorts it into position
// to reduce potential overdraw in the backend. With global set the
// element joins the unsorted global hierarchical list instead, growing
// trnode/bvnode node elements along the surface's chain as needed.
//
// It returns the outermost new element (not always the list's head),
// or nil if the new element was removed as fully obscured.
func (st *SceneThread) insert(obj Node, ptr **geom.Elem, tem *geom.Elem, global bool) *geom.Elem {
	// only node elements are allowed in surface lists
	nd := tem.Temp.Obj.(Node)

	elm := st.newElem()
	elm.Kind = tem.Kind
	if srf, ok := nd.(*Surface); ok {
		elm.Simd = srf.SSrf
	}
	elm.Temp = tem.Temp

	if global {
		srf := nd.(*Surface)

		// prepare the surface's trnode/bvnode list for searching
		lst := srf.Trn
		var prv *geom.Elem

		if st.sc.opts.Has(geom.OptsVArray) {
			lst = srf.Top
		}

		// search matching existing trnode/bvnode elements for the
		// insertion point, descending into matched node sub-lists;
		// contents of one array node may split across the boundary
		// of another by inserting two node elements of the same
		// type belonging to the same array
		nxt := *ptr
		for nxt != nil && lst != nil {
			if nxt.Temp == lst.Temp {
				prv = nxt
				ptr = &nxt.Sub
				nxt = *ptr
				lst = lst.Next
			} else {
				nxt = nxt.Next
			}
		}

		// allocate new node elements from outermost to innermost
		for ; lst != nil; lst = lst.Next {
			nxt = st.newElem()
			nxt.Back = prv
			nxt.Kind = lst.Kind
			nxt.Temp = lst.Temp
			nxt.Next = *ptr
			*ptr = nxt
			ptr = &nxt.Sub
			prv = nxt
		}

		elm.Back = prv
	}

	// insert the element as the list's head
	elm.Next = *ptr
	*ptr = elm

	// sorting is always applied to a single flat list, treating
	// both surface and array nodes as whole elements, so it never
	// violates the boundaries of array sub-lists
	if !st.sc.opts.Has(geom.OptsInsert) || obj == nil {
		return elm
	}

	box := obj.Base().BvBox

	// "state" avoids stored-order-value re-computation when a whole
	// run of elements moves without interruption
	var state int32
	var prv *geom.Elem

	// phase 1, push the new element through the list for as long as
	// the pairwise order allows
	for nxt := elm.Next; nxt != nil; {
		op := 7 & geom.BBoxSort(box, elm.Temp, nxt.Temp)
		switch op {
		case 2, 3:
			// move forward on "do swap" or "neutral"; the
			// stored-order-value becomes "no swap" after a swap
			if op == 2 {
				op = 1
			}
			elm.Next = nxt.Next
			if prv != nil {
				if state != 0 {
					prv.Data = state
				} else {
					prv.Data = 3 & geom.BBoxSort(box, prv.Temp, nxt.Temp)
				}
				prv.Next = nxt
			} else {
				*ptr = nxt
			}
			// while the element's position is transitory, "state"
			// keeps the order value between prv and nxt so it can
			// be restored without re-computation
			state = nxt.Data
			nxt.Data = op
			nxt.Next = elm
			prv = nxt
			nxt = elm.Next

		case 4 | 1: // remove nxt, fully obscured by elm
			elm.Next = nxt.Next
			state = 0
			nxt = nxt.Next

		case 4 | 2: // remove elm, fully obscured by nxt
			if prv != nil {
				if state != 0 {
					prv.Data = state
				} else {
					prv.Data = 3 & geom.BBoxSort(box, prv.Temp, nxt.Temp)
				}
				prv.Next = nxt
			} else {
				*ptr = nxt
			}
			return nil

		default: // stop on "no swap"
			elm.Data = op
			state = 0
			nxt = nil
		}
	}

	// phase 2, find the end of the strict-order-chain from the new
	// element; "no swap" is the strict order
	end := elm
	for end.Data == 1 {
		end = end.Next
	}

	// phase 3, move elements from behind the strict-order-chain
	// right in front of the new element as the computed order
	// dictates, with lazily repaired stored-order-values
	tlp := end
	cur := end
	for nxt := end.Next; nxt != nil; {
		gr := false
		op := 7 & geom.BBoxSort(box, elm.Temp, nxt.Temp)
		switch op {
		case 2, 4 | 2:
			// the element's own removal must not happen here
			op = 1

			// repair cur's stored-order-value to see if tlp
			// needs to catch up with nxt
			if cur.Data == 0 && cur != tlp {
				cur.Data = 3 & geom.BBoxSort(box, cur.Temp, nxt.Temp)
			}
			// a "neutral" between cur and nxt breaks the
			// strict-order-chain from tlp.Next up to nxt
			if cur.Data == 3 && cur != tlp {
				if tlp.Data == 0 {
					ipt := tlp.Next
					tlp.Data = 3 & geom.BBoxSort(box, tlp.Temp, ipt.Temp)
				}
				state = 0
				tlp = cur
			}
			// comb the tail area from end.Next up to tlp before
			// moving nxt (with its strict chain) to the front
			if tlp != end {
				var tstate int32
				cur = tlp
				for cur != end {
					mv := false
					// search for cur's previous element
					ipt := end
					for ipt.Next != cur {
						ipt = ipt.Next
					}
					iel := ipt.Next
					// run the strict-order-chain from tlp.Next
					// up to nxt as a comb over the tail element
					for jpt := tlp; jpt != nxt; jpt = jpt.Next {
						var jop int32
						jel := jpt.Next
						switch {
						case cur.Next == jel && cur.Data != 0:
							jop = cur.Data
						case tlp.Next == jel && tstate != 0:
							jop = tstate
						default:
							jop = 3 & geom.BBoxSort(box, cur.Temp, jel.Temp)
						}
						if cur.Next == jel {
							cur.Data = jop
						} else if tlp.Next == jel {
							tstate = jop
						}
						// strict order joins the comb
						if jop == 1 {
							mv = true
							break
						}
					}
					if mv {
						gr = true
						if cur == tlp {
							// the tail shortens by its last
							// element, which joins the comb
							tlp = ipt
						} else {
							// move cur from the middle of the
							// tail to the front of the comb
							cur = tlp.Next
							iel.Data = tstate
							tstate = ipt.Data
							ipt.Data = 0
							ipt.Next = iel.Next
							iel.Next = cur
							tlp.Data = 0
							tlp.Next = iel
						}
					} else {
						// repair cur's stored-order-value before
						// moving to its previous element
						if iel.Data == 0 {
							cur = iel.Next
							iel.Data = 3 & geom.BBoxSort(box, iel.Temp, cur.Temp)
						}
						tstate = 0
					}
					cur = ipt
				}
				// repair end's stored-order-value to the rest of
				// the tail
				if ipt := cur; ipt.Data == 0 {
					cur = ipt.Next
					ipt.Data = 3 & geom.BBoxSort(box, ipt.Temp, cur.Temp)
				}
			}
			// a grown comb breaks the run moving to the front
			if gr {
				state = 0
			}
			// move nxt along with its comb from tlp.Next to the
			// front of the new element
			cur = tlp.Next
			if prv != nil {
				if state != 0 {
					prv.Data = state
				} else {
					prv.Data = 3 & geom.BBoxSort(box, prv.Temp, cur.Temp)
				}
				prv.Next = cur
			} else {
				*ptr = cur
			}
			cur = nxt.Next
			tlp.Data = 0
			tlp.Next = cur
			state = nxt.Data
			nxt.Data = op
			nxt.Next = elm
			prv = nxt
			nxt = cur
			// keep cur right before nxt between the cases
			cur = tlp

		case 4 | 1: // remove nxt, fully obscured by elm
			cur.Data = 0
			// cur is always right before nxt between the cases
			cur.Next = nxt.Next
			if cur == tlp {
				state = 0
			}
			nxt = nxt.Next

		default:
			// move nxt forward on "no swap" or "neutral"
			if cur.Data == 0 && cur != tlp {
				cur.Data = 3 & geom.BBoxSort(box, cur.Temp, nxt.Temp)
			}
			// a "neutral" at nxt or cur breaks the strict chain
			// as nxt moves, so tlp catches up with it
			if nxt.Data == 3 || (cur.Data == 3 && cur != tlp) {
				if tlp.Data == 0 {
					cur = tlp.Next
					tlp.Data = 3 & geom.BBoxSort(box, tlp.Temp, cur.Temp)
				}
				state = 0
				tlp = nxt
			}
			cur = nxt
			// as nxt runs away from tlp it grows the strict
			// chain serving as the comb for the tail area
			nxt = nxt.Next
		}
	}
	// repair tlp's stored-order-value if elements remain behind it
	if cur := tlp.Next; tlp.Data == 0 && cur != nil {
		tlp.Data = 3 & geom.BBoxSort(box, tlp.Temp, cur.Temp)
	}

	return elm
}

// filter converts the hierarchical sorted list at ptr back into a
// single flat list suitable for the rendering backend, clearing the
// stored-order-values and linking each array element to the last leaf
// of its flattened sub-list. It returns the last leaf of the hierarchy
// (recursive).
func (st *SceneThread) filter(obj Node, ptr **geom.Elem) *geom.Elem {
	var elm *geom.Elem

	if ptr == nil {
		return nil
	}

	for nxt := *ptr; nxt != nil; nxt = nxt.Next {
		nd := nxt.Temp.Obj.(Node)

		switch n := nd.(type) {
		case *Surface:
			// reset the stored-order-value for the backend
			elm = nxt
			nxt.Data = 0

		case *Array:
			org := &nxt.Sub
			prv := elm
			elm = st.filter(obj, org)
			k := nxt.Kind
			if elm != nil {
				elm.Next = nxt.Next
				nxt.Data = 0
				nxt.Last = elm
				nxt.Next = *org
				switch {
				case k == geom.KindTr:
					nxt.Simd = n.SSrf
				case nxt.Temp == n.BvBox:
					nxt.Simd = n.SBvb
				case nxt.Temp == n.InBox:
					nxt.Simd = n.SInb
				default:
					nxt.Simd = nil
				}
			} else {
				// drop the empty node element
				if prv != nil {
					prv.Next = nxt.Next
				} else {
					*ptr = nxt.Next
				}
				elm = prv
				continue
			}

			// tiling supersedes bvnode culling for the camera
			if st.sc.opts.Has(geom.OptsTiling) && obj != nil && k == geom.KindBv {
				if _, isCam := obj.(*Camera); isCam {
					if prv != nil {
						prv.Next = nxt.Next
					} else {
						*ptr = nxt.Next
					}
				}
			}

			nxt = elm
		}
	}

	return elm
}

// snode builds the surface's trnode/bvnode chain after all transform
// flags have been set in the field update. The trnode hierarchy is
// flat (objects with non-trivial transform are their own trnodes)
// while bvnodes may nest arbitrarily above and below the trnode.
func (st *SceneThread) snode(srf *Surface) {
	// the temporary pool is released every frame, so the list is
	// always rebuilt even if the scene hasn't changed
	srf.Top = nil
	srf.Trn = nil

	// phase 1, bvnodes below the trnode; when one array serves as
	// both, the trnode counts as above only if the bvnode is split,
	// so the bvnode is inserted first here
	par := srf.Bvnode
	for srf.Trnode != nil && par != nil &&
		sameTrnode(par.Trnode, srf.Trnode) &&
		(par.Trnode != Node(par) || par.TrBox.Rad != 0) {

		elm := st.newElem()
		elm.Kind = geom.KindBv
		elm.Temp = par.InBox
		elm.Next = srf.Top
		srf.Top = elm

		par = par.Bvnode
	}

	// phase 2, the single trnode if any; other trnodes above or
	// below don't form a hierarchy as each is its own trnode
	if srf.Trnode != nil && srf.Trnode != Node(srf) {
		arr := srf.Trnode.(*Array)

		elm := st.newElem()
		elm.Kind = geom.KindTr
		if arr.TrBox.Rad != 0 {
			elm.Temp = arr.TrBox
		} else {
			elm.Temp = arr.InBox
		}
		elm.Next = srf.Top
		srf.Top = elm

		trn := st.newElem()
		trn.Kind = geom.KindTr
		trn.Temp = srf.Top.Temp
		srf.Trn = trn
	}

	// phase 3, bvnodes above the trnode
	for ; par != nil; par = par.Bvnode {
		elm := st.newElem()
		elm.Kind = geom.KindBv
		if par.BvBox.Rad != 0 {
			elm.Temp = par.BvBox
		} else {
			elm.Temp = par.InBox
		}
		elm.Next = srf.Top
		srf.Top = elm
	}
}

// sclip builds the surface's custom clippers list from its relations
// template, grouping same-trnode clippers under a shared trnode
// element so the backend batches their cached transform, and
// preserving accum segment boundaries.
func (st *SceneThread) sclip(srf *Surface) {
	ptr := &srf.SSrf.Clip
	*ptr = nil

	// the template was inverted in AddRelation and elements go in
	// at the head here, so markers end up in their original order
	for lst := srf.Rel; lst != nil; lst = lst.Next {
		rel := lst.Data

		var obj Node
		if lst.Temp != nil {
			obj = lst.Temp.Obj.(Node)
		}

		switch {
		case obj == nil:
			// accum marker
			elm := st.newElem()
			elm.Data = rel
			elm.Next = *ptr
			*ptr = elm

		case obj.Base().Tag.IsSurface():
			clp := obj.(*Surface)

			elm := st.newElem()
			elm.Data = rel
			elm.Simd = clp.SSrf
			elm.Temp = clp.BvBox

			if clp.Trnode != nil && clp.Trnode != Node(clp) {
				arr := clp.Trnode.(*Array)
				trb := arr.TrBox // identity key only, not used as a clipper

				// search a matching trnode either within the
				// current accum segment or outside of any
				acc := 0
				nxt := *ptr
			search:
				for ; nxt != nil; nxt = nxt.Next {
					switch {
					case acc == 0 && nxt.Temp == trb:
						break search
					case nxt.Temp != nil:
						// skip non-marker elements
					case acc == 0 && nxt.Data == geom.AccumLeave:
						// no trnode within this segment
						nxt = nil
						break search
					case acc == 0 && nxt.Data == geom.AccumEnter:
						// skip a foreign accum segment
						acc = 1
					case acc == 1 && nxt.Data == geom.AccumLeave:
						acc = 0
					}
				}

				if nxt == nil {
					elm.Next = *ptr
					*ptr = elm

					// new trnode element heads the group
					trn := st.newElem()
					trn.Last = elm // trnode's last element
					trn.Simd = arr.SSrf
					trn.Temp = trb
					trn.Next = *ptr
					*ptr = trn
				} else {
					// insert under the existing trnode
					elm.Next = nxt.Next
					nxt.Next = elm
				}
			} else {
				elm.Next = *ptr
				*ptr = elm
			}
		}
	}
}

// stile builds the surface's tile list from the area its projected
// bbox occupies in the tilebuffer. A surface without bbox fills the
// entire grid.
func (st *SceneThread) stile(srf *Surface) {
	srf.Tls = nil

	if !st.sc.opts.Has(geom.OptsTiling) {
		return
	}

	sc := st.sc

	// vertsNum may grow as near-plane clipping generates vertices
	vertsNum := len(srf.BvBox.Verts)
	vrt := srf.BvBox.Verts

	if vertsNum != 0 {
		for i := range st.txmin {
			st.txmin[i] = int32(sc.tilesInRow)
			st.txmax[i] = -1
		}

		for i := range st.verts[:2*vertsNum+len(srf.BvBox.Edges)] {
			st.verts[i] = geom.Vert{}
		}

		var vec geom.Vec4

		// project bbox vertices onto the tilebuffer
		for k := 0; k < len(vrt); k++ {
			geom.Sub3(&vec, vrt[k].Pos, sc.org)

			dot := geom.Dot3(vec, sc.nrm)

			st.verts[k].Pos[geom.Z] = dot
			st.verts[k].Pos[geom.W] = -1 // tag: behind screen plane

			// vertices in front of or near the screen plane; the
			// rest are handled with their edges
			if dot >= 0 || math32.Abs(dot) <= geom.ClipThreshold {
				geom.Sub3(&vec, vrt[k].Pos, sc.pos)

				dot = geom.Dot3(vec, sc.nrm) / sc.cam.Pov

				geom.Scale3(&vec, vec, 1/dot)
				geom.Sub3(&vec, vec, sc.dir)

				st.verts[k].Pos[geom.X] = geom.Dot3(vec, sc.htl)
				st.verts[k].Pos[geom.Y] = geom.Dot3(vec, sc.vtl)

				st.verts[k].Pos[geom.W] = +1 // tag: in front

				// slightly behind (near) the screen plane,
				// generate a new vertex
				if st.verts[k].Pos[geom.Z] < 0 {
					st.verts[vertsNum].Pos[geom.X] = st.verts[k].Pos[geom.X]
					st.verts[vertsNum].Pos[geom.Y] = st.verts[k].Pos[geom.Y]
					vertsNum++

					st.verts[k].Pos[geom.W] = 0 // tag: near screen plane
				}
			}
		}

		// process bbox edges
		var ndx [2]int32
		var tag, zed [2]float32

		for k := range srf.BvBox.Edges {
			for i := 0; i < 2; i++ {
				ndx[i] = srf.BvBox.Edges[k].Index[i]
				zed[i] = st.verts[ndx[i]].Pos[geom.Z]
				tag[i] = st.verts[ndx[i]].Pos[geom.W]
			}

			// skip edges with both vertices behind or near the
			// screen plane
			if tag[0] <= 0 && tag[1] <= 0 {
				continue
			}

			for i := 0; i < 2; i++ {
				if tag[i] >= 0 {
					continue
				}

				// clip the edge at the screen plane crossing,
				// generate a new vertex
				j := 1 - i

				geom.Sub3(&vec, vrt[ndx[i]].Pos, vrt[ndx[j]].Pos)

				dot := zed[j] / (zed[j] - zed[i])

				geom.Scale3(&vec, vec, dot)
				geom.Add3(&vec, vec, vrt[ndx[j]].Pos)
				geom.Sub3(&vec, vec, sc.org)

				st.verts[vertsNum].Pos[geom.X] = geom.Dot3(vec, sc.htl)
				st.verts[vertsNum].Pos[geom.Y] = geom.Dot3(vec, sc.vtl)

				ndx[i] = int32(vertsNum)
				vertsNum++
			}

			st.tiling(st.verts[ndx[0]].Pos, st.verts[ndx[1]].Pos)
		}

		// tile all newly generated vertex pairs to cover the
		// near-plane polygon boundary
		for i := len(srf.BvBox.Verts); i < vertsNum-1; i++ {
			for j := i + 1; j < vertsNum; j++ {
				st.tiling(st.verts[i].Pos, st.verts[j].Pos)
			}
		}
	} else {
		// mark all tiles in the entire tilebuffer
		for i := range st.txmin {
			st.txmin[i] = 0
			st.txmax[i] = int32(sc.tilesInRow) - 1
		}
	}

	// fill marked tiles with surface data
	ptr := &srf.Tls
	for i := 0; i < sc.tilesInCol; i++ {
		for j := st.txmin[i]; j <= st.txmax[i]; j++ {
			elm := st.newElem()
			elm.Data = int32(i)<<16 | j
			elm.Simd = srf.SSrf
			elm.Temp = srf.BvBox
			// insert as the list's tail
			*ptr = elm
			ptr = &elm.Next
		}
	}
	*ptr = nil
}

// ssort builds a surface list for the given object: the global
// hierarchical list when obj is nil, the reflection/refraction lists
// per side for a surface, or the camera's list.
func (st *SceneThread) ssort(obj Node) *geom.Elem {
	sc := st.sc

	var srf *Surface
	var pto, pti **geom.Elem

	if s, ok := obj.(*Surface); ok {
		srf = s

		pto = &srf.SSrf.LstP[1]
		pti = &srf.SSrf.LstP[3]

		needs := srf.SSrf.PropsOuter&PropReflect != 0 ||
			srf.SSrf.PropsInner&PropReflect != 0 ||
			srf.SSrf.PropsOuter&PropOpaque == 0 ||
			srf.SSrf.PropsInner&PropOpaque == 0

		if sc.opts.Has(geom.OptsRender) && needs {
			*pto = nil
			*pti = nil
		} else {
			*pto = sc.slist // all surfaces are potential rfl/rfr
			*pti = sc.slist
			return nil
		}
	}

	var lst *geom.Elem
	ptr := &lst

	if obj == nil {
		// linear traversal across surfaces builds the global list
		for _, ref := range sc.srfs {
			var tem geom.Elem
			tem.Temp = ref.BvBox
			st.insert(obj, ptr, &tem, true)
		}
	} else {
		var c, r int32
		var cur, prv *geom.Elem
		var pro, pri *geom.Elem
		var abx *geom.Bound

		// hierarchical traversal across nodes
		for elm := sc.hlist; elm != nil; {
			box := elm.Temp

			if sc.opts.Has(geom.OptsRemove) {
				// array-contents removal by bbox is disabled when
				// building for a surface on the same branch
				if abx != nil && srf != nil {
					for top := srf.Top; top != nil; top = top.Next {
						if abx == top.Temp {
							abx = nil
							break
						}
					}
				}

				r = 0
				if abx != nil && abx != box {
					r = geom.BBoxSort(obj.Base().BvBox, box, abx)
				}
			}

			if sc.opts.Has(geom.Opts2Sided) && srf != nil {
				// bbox_side runs only while every array above is
				// seen from both sides, and not again for a
				// repeated bbox
				if cur == nil && (prv == nil || prv.Temp != box) {
					c = geom.BBoxSide(box, srf.Shape)
				}

				var cuo, cui *geom.Elem
				if c&2 != 0 && r != 6 {
					cuo = st.insert(obj, pto, elm, false)
					if cuo != nil {
						cuo.Back = pro
					}
				}
				if c&1 != 0 && r != 6 {
					cui = st.insert(obj, pti, elm, false)
					if cui != nil {
						cui.Back = pri
					}
				}

				// an array seen from one side only carries all its
				// contents on that side, skipping bbox_side calls
				if box.Tag.IsArray() && (cuo != nil || cui != nil) {
					if cur == nil && c < 3 {
						cur = elm
					}
					if box.Fln > 1 { // insert handles fln == 1
						abx = box
					} else {
						abx = nil
					}

					if cuo != nil {
						pro = cuo
						pto = &cuo.Sub
					}
					if cui != nil {
						pri = cui
						pti = &cui.Sub
					}

					prv = elm
					elm = elm.Sub
				} else {
					// anything but the bbox's faces surviving
					// makes the removal bbox ineffective
					if abx != nil && !box.Tag.IsPlane() && r != 6 {
						abx = nil
					}

					for elm != nil && elm.Next == nil {
						if cur == nil || c&2 != 0 {
							if pro != nil {
								pro = pro.Back
							}
							if pro != nil {
								pto = &pro.Sub
							} else {
								pto = &srf.SSrf.LstP[1]
							}
						}
						if cur == nil || c&1 != 0 {
							if pri != nil {
								pri = pri.Back
							}
							if pri != nil {
								pti = &pri.Sub
							} else {
								pti = &srf.SSrf.LstP[3]
							}
						}

						elm = elm.Back

						if elm == cur {
							cur = nil
						}

						abx = nil
					}

					if elm != nil {
						elm = elm.Next
					}

					prv = nil
				}
			} else {
				cur = nil
				if r != 6 {
					cur = st.insert(obj, ptr, elm, false)
				}
				if cur != nil {
					cur.Back = prv
				}

				if box.Tag.IsArray() && cur != nil {
					if box.Fln > 1 { // insert handles fln == 1
						abx = box
					} else {
						abx = nil
					}

					prv = cur
					ptr = &cur.Sub
					elm = elm.Sub
				} else {
					if abx != nil && !box.Tag.IsPlane() && r != 6 {
						abx = nil
					}

					for elm != nil && elm.Next == nil {
						if prv != nil {
							prv = prv.Back
						}
						if prv != nil {
							ptr = &prv.Sub
						} else {
							ptr = &lst
						}
						elm = elm.Back
						abx = nil
					}

					if elm != nil {
						elm = elm.Next
					}
				}
			}
		}
	}

	if sc.opts.Has(geom.OptsInsert) || sc.opts.Has(geom.OptsTArray) ||
		sc.opts.Has(geom.OptsVArray) {
		if pto != nil && *pto != nil {
			st.filter(obj, pto)
		}
		if pti != nil && *pti != nil {
			st.filter(obj, pti)
		}
		if *ptr != nil && obj != nil { // the global list stays hierarchical
			st.filter(obj, ptr)
		}
	}

	if srf == nil {
		return lst
	}

	if !sc.opts.Has(geom.Opts2Sided) {
		*pto = lst
		*pti = lst
	}

	return nil
}

// lsort builds the light/shadow lists for the given object: the global
// light list when obj is nil, or the per-side per-light shadow lists
// for a surface.
func (st *SceneThread) lsort(obj Node) *geom.Elem {
	sc := st.sc

	var srf *Surface
	var pto, pti **geom.Elem

	if s, ok := obj.(*Surface); ok {
		srf = s

		pto = &srf.SSrf.LstP[0]
		pti = &srf.SSrf.LstP[2]

		if sc.opts.Has(geom.OptsShadow) {
			*pto = nil
			*pti = nil
		} else {
			*pto = sc.llist // all lights are potential sources
			*pti = sc.llist
			return nil
		}
	}

	var lst *geom.Elem
	ptr := &lst

	// linear traversal across light sources
	for _, lgt := range sc.lgts {
		var pso, psi, psr **geom.Elem

		if sc.opts.Has(geom.Opts2Sided) && srf != nil {
			c := geom.BBoxSide(lgt.BvBox, srf.Shape)

			if c&2 != 0 {
				st.insertLight(lgt, pto)
				pso = &(*pto).Sub
				*pso = nil
			}
			if c&1 != 0 {
				st.insertLight(lgt, pti)
				psi = &(*pti).Sub
				*psi = nil
			}
		} else {
			st.insertLight(lgt, ptr)
			psr = &(*ptr).Sub
		}

		if !sc.opts.Has(geom.OptsShadow) || srf == nil {
			continue
		}

		if psr != nil {
			*psr = nil
		}

		var c int32
		var s int32
		var cur, prv *geom.Elem
		var pro, pri *geom.Elem

		// hierarchical traversal across nodes
		for elm := sc.hlist; elm != nil; {
			box := elm.Temp

			// bbox_shad runs only while every array above casts a
			// shadow, and not again for a repeated bbox
			if prv == nil || prv.Temp != box {
				s = geom.BBoxShad(lgt.BvBox, box, srf.BvBox)
			}

			if sc.opts.Has(geom.Opts2Sided) {
				if cur == nil && (prv == nil || prv.Temp != box) && s != 0 {
					c = geom.BBoxSide(box, srf.Shape)
				}

				var cuo, cui *geom.Elem
				if c&2 != 0 && pso != nil && s != 0 {
					cuo = st.insert(obj, pso, elm, false)
					if cuo != nil {
						cuo.Back = pro
					}
				}
				if c&1 != 0 && psi != nil && s != 0 {
					cui = st.insert(obj, psi, elm, false)
					if cui != nil {
						cui.Back = pri
					}
				}

				if box.Tag.IsArray() && c != 0 && s != 0 &&
					(cuo != nil || cui != nil) {
					if cur == nil && c < 3 {
						cur = elm
					}

					if cuo != nil {
						pro = cuo
						pso = &cuo.Sub
					}
					if cui != nil {
						pri = cui
						psi = &cui.Sub
					}

					prv = elm
					elm = elm.Sub
				} else {
					for elm != nil && elm.Next == nil {
						if (cur == nil || c&2 != 0) && pso != nil {
							if pro != nil {
								pro = pro.Back
							}
							if pro != nil {
								pso = &pro.Sub
							} else {
								pso = &(*pto).Sub
							}
						}
						if (cur == nil || c&1 != 0) && psi != nil {
							if pri != nil {
								pri = pri.Back
							}
							if pri != nil {
								psi = &pri.Sub
							} else {
								psi = &(*pti).Sub
							}
						}

						elm = elm.Back

						if elm == cur {
							cur = nil
						}
					}

					if elm != nil {
						elm = elm.Next
					}

					prv = nil
				}
			} else {
				if s != 0 {
					cur = st.insert(obj, psr, elm, false)
					if cur != nil {
						cur.Back = prv
					}
				}

				if box.Tag.IsArray() && cur != nil && s != 0 {
					prv = cur
					psr = &cur.Sub
					elm = elm.Sub
				} else {
					for elm != nil && elm.Next == nil {
						if prv != nil {
							prv = prv.Back
						}
						if prv != nil {
							psr = &prv.Sub
						} else {
							psr = &(*ptr).Sub
						}
						elm = elm.Back
					}

					if elm != nil {
						elm = elm.Next
					}
				}
			}
		}

		if sc.opts.Has(geom.OptsInsert) || sc.opts.Has(geom.OptsTArray) ||
			sc.opts.Has(geom.OptsVArray) {
			if pso != nil && *pso != nil {
				st.filter(nil, pso)
			}
			if psi != nil && *psi != nil {
				st.filter(nil, psi)
			}
			if psr != nil && *psr != nil {
				st.filter(nil, psr)
			}
		}
	}

	if srf == nil {
		return lst
	}

	if !sc.opts.Has(geom.Opts2Sided) {
		*pto = lst
		*pti = lst
	}

	return nil
}
