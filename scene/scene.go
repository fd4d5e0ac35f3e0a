// Copyright (c) 2026, Tracekit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scene

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync/atomic"

	"golang.org/x/image/bmp"
	"golang.org/x/sync/errgroup"

	"github.com/tracekit/tracekit/geom"
)

// Scene construction and validation errors.
var (
	ErrNilObject    = errors.New("null object in scene data")
	ErrSceneLocked  = errors.New("scene data is locked by another instance")
	ErrRootNotArray = errors.New("scene's root is not an array")
	ErrNoCamera     = errors.New("scene doesn't contain camera")
	ErrFrameDims    = errors.New("framebuffer's dimensions are not valid")
)

// Fullscreen antialiasing modes.
const (
	FsaaNo = 0
	Fsaa2X = 1
	Fsaa4X = 2
	Fsaa8X = 3 // reserved
)

// Default tile dimensions in pixels.
const (
	TileW = 8
	TileH = 8
)

// Backend renders a slice of the frame from the data structures the
// update pipeline produced: the tile lists, the camera steppers and
// the per-surface records and lists.
type Backend interface {
	RenderSlice(sc *Scene, index int) error
}

// Config parameterizes a scene instance.
type Config struct {
	// Threads is the worker count; 0 selects a single worker.
	Threads int

	// TileW and TileH are the screen tile dimensions; 0 selects
	// the defaults.
	TileW int
	TileH int

	// Fsaa is the antialiasing mode.
	Fsaa int

	// Opts overrides the runtime optimization flags; 0 selects
	// OptsFull.
	Opts geom.Opts

	// Backend renders frames; nil leaves the produced lists
	// unconsumed.
	Backend Backend

	// Logger receives frame diagnostics; nil selects the default.
	Logger *slog.Logger
}

// Scene is one instance of the engine: the object hierarchy built from
// a scene description, the per-frame lists, the tilebuffer and the
// framebuffer.
type Scene struct {
	data *SceneData
	opts geom.Opts

	// reusable relations template for clipper accum segments
	rel *geom.Elem

	// registry of the object hierarchy
	cams []*Camera
	lgts []*Light
	arrs []*Array
	srfs []*Surface
	mats []*Material

	// framebuffer
	xRes int
	yRes int
	xRow int
	fram []uint32

	// tilebuffer
	tileW      int
	tileH      int
	tilesInRow int
	tilesInCol int
	tiles      []*geom.Elem

	// color planes and seed plane for the path tracer
	ptrR  []float32
	ptrG  []float32
	ptrB  []float32
	pseed []uint32
	ptsC  float32
	ptOn  bool

	aspect float32
	factor float32

	depth int

	backend Backend
	log     *slog.Logger

	thnum int
	tharr []*SceneThread
	therr []error
	eout  atomic.Bool

	// global lists
	hlist *geom.Elem
	slist *geom.Elem
	llist *geom.Elem
	clist *geom.Elem

	// ray-position and stepper variables
	pos geom.Vec4
	dir geom.Vec4
	hor geom.Vec4
	ver geom.Vec4
	nrm geom.Vec4
	// tile-position and stepper variables
	org geom.Vec4
	htl geom.Vec4
	vtl geom.Vec4
	// accumulated ambient color
	amb geom.Vec4

	fsaa     int
	lastFsaa int

	root   *Array
	cam    *Camera
	camIdx int

	pending bool
}

// StackDepth is the ray recursion depth of the backend.
const StackDepth = 10

// New builds a scene instance over the given description with an
// x_res by y_res framebuffer. A negative row stride flips the frame
// vertically.
func New(scn *SceneData, xRes, yRes, xRow int, cfg *Config) (*Scene, error) {
	if scn == nil || scn.Root == nil {
		return nil, ErrNilObject
	}
	if scn.lock != nil {
		return nil, ErrSceneLocked
	}
	if scn.Root.Tag != geom.TagArray {
		return nil, ErrRootNotArray
	}
	if xRes == 0 || yRes == 0 || abs(xRow) < xRes {
		return nil, ErrFrameDims
	}

	if cfg == nil {
		cfg = &Config{}
	}

	sc := &Scene{
		data: scn,
		xRes: xRes,
		yRes: yRes,
		xRow: xRow,
	}

	sc.opts = cfg.Opts
	if sc.opts == 0 {
		sc.opts = geom.OptsFull
	}
	sc.opts &^= scn.OptsOff

	sc.log = cfg.Logger
	if sc.log == nil {
		sc.log = slog.Default()
	}

	sc.thnum = cfg.Threads
	if sc.thnum < 1 {
		sc.thnum = 1
	}

	sc.tileW = cfg.TileW
	if sc.tileW == 0 {
		sc.tileW = TileW
	}
	sc.tileH = cfg.TileH
	if sc.tileH == 0 {
		sc.tileH = TileH
	}

	sc.fsaa = cfg.Fsaa
	sc.lastFsaa = cfg.Fsaa
	sc.backend = cfg.Backend

	sc.fram = make([]uint32, abs(xRow)*yRes)

	sc.tilesInRow = (xRes + sc.tileW - 1) / sc.tileW
	sc.tilesInCol = (yRes + sc.tileH - 1) / sc.tileH
	sc.tiles = make([]*geom.Elem, sc.tilesInRow*sc.tilesInCol)

	sc.factor = 1 / float32(xRes)
	sc.aspect = float32(yRes) * sc.factor
	sc.depth = StackDepth

	n := abs(xRow) * yRes
	sc.ptrR = make([]float32, n)
	sc.ptrG = make([]float32, n)
	sc.ptrB = make([]float32, n)
	sc.pseed = make([]uint32, n)
	sc.resetPseed()

	// instantiate the object hierarchy
	root, err := newArray(sc, nil, scn.Root)
	if err != nil {
		return nil, err
	}
	sc.root = root

	if len(sc.cams) == 0 {
		return nil, ErrNoCamera
	}
	sc.cam = sc.cams[0]

	// lock scene data once construction can no longer fail
	scn.lock = sc

	sc.tharr = make([]*SceneThread, sc.thnum)
	for i := range sc.tharr {
		sc.tharr[i] = newSceneThread(sc, i)
	}
	sc.therr = make([]error, sc.thnum)

	return sc, nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// resetPseed reseeds the path tracer's per-pixel PRNG plane.
func (sc *Scene) resetPseed() {
	for i := range sc.pseed {
		sc.pseed[i] = uint32(i)*2531011 + 214013
	}
}

// resetColor clears the path tracer's accumulation planes and sample
// count.
func (sc *Scene) resetColor() {
	for i := range sc.ptrR {
		sc.ptrR[i] = 0
		sc.ptrG[i] = 0
		sc.ptrB[i] = 0
	}
	sc.ptsC = 0
}

// Render updates the backend data structures and renders the frame
// for the given time.
func (sc *Scene) Render(time int64) error {
	skipUpdate := sc.opts.Has(geom.OptsUpdateExt0) && sc.data.Root.time != -1

	if !skipUpdate {
		if sc.pending {
			sc.pending = false
			sc.releasePools()
		}

		// reserve per-frame memory pools
		for _, st := range sc.tharr {
			st.mark = st.pool.Mark()
		}

		// phase 0.5, hierarchical update of transform matrices
		sc.root.UpdateObject(time, 0, nil, &geom.Iden4)

		if sc.ptOn && (sc.root.ScnChanged != 0 || sc.fsaa != sc.lastFsaa) {
			sc.resetColor()
		}
		sc.lastFsaa = sc.fsaa

		// 1st phase of the multi-threaded update
		if err := sc.dispatchUpdate(1, geom.OptsUpdateExt1); err != nil {
			return err
		}

		sc.updateSteppers()

		// 2nd phase of the multi-threaded update
		if err := sc.dispatchUpdate(2, geom.OptsUpdateExt2); err != nil {
			return err
		}

		// phase 2.5, hierarchical update of array bounds
		if err := sc.root.UpdateBounds(); err != nil {
			return err
		}

		// per-surface trnode/bvnode chains based on transform flags
		// and array bounds
		for _, srf := range sc.srfs {
			sc.tharr[0].snode(srf)
		}

		// global hierarchical list
		sc.hlist = sc.tharr[0].ssort(nil)

		// global surface list, filtered flat
		sc.slist = sc.tharr[0].ssort(nil)
		sc.tharr[0].filter(nil, &sc.slist)

		// global light/shadow list, needs slist
		sc.llist = sc.tharr[0].lsort(nil)

		// camera's surface list, needs slist
		sc.clist = sc.tharr[0].ssort(sc.cam)

		// 3rd phase of the multi-threaded update
		if err := sc.dispatchUpdate(3, geom.OptsUpdateExt3); err != nil {
			return err
		}

		sc.assembleTiles()

		// aim rays at pixel centers
		geom.Scale3(&sc.hor, sc.hor, sc.factor)
		geom.Scale3(&sc.ver, sc.ver, sc.factor)
		geom.Mad3(&sc.dir, sc.hor, 0.5)
		geom.Mad3(&sc.dir, sc.ver, 0.5)

		// accumulate ambient from the camera and all light sources
		cam := sc.cam.Cam
		geom.Scale3(&sc.amb, geom.Vec4{cam.Col.HDR[0], cam.Col.HDR[1], cam.Col.HDR[2]}, cam.Lum[0])
		sc.amb[3] = cam.Lum[0]

		for _, lgt := range sc.lgts {
			l := lgt.Lgt
			geom.Mad3(&sc.amb, geom.Vec4{l.Col.HDR[0], l.Col.HDR[1], l.Col.HDR[2]}, l.Lum[0])
			sc.amb[3] += l.Lum[0]
		}
	}

	if !sc.opts.Has(geom.OptsRenderExt0) && sc.backend != nil {
		if err := sc.dispatchRender(); err != nil {
			return err
		}
		if sc.ptOn {
			sc.ptsC++
		}
	}

	if skipUpdate {
		sc.pending = true
	} else {
		sc.releasePools()
	}

	return nil
}

// releasePools rewinds the per-thread frame pools.
func (sc *Scene) releasePools() {
	for _, st := range sc.tharr {
		st.pool.Release(st.mark)
	}
}

// updateSteppers computes the camera-derived ray and tile stepper
// vectors.
func (sc *Scene) updateSteppers() {
	cam := sc.cam

	geom.Set3(&sc.pos, *cam.Pos())
	geom.Set3(&sc.hor, *cam.Hor())
	geom.Set3(&sc.ver, *cam.Ver())
	geom.Set3(&sc.nrm, *cam.Nrm())

	h := float32(-0.5)
	v := -0.5 * sc.aspect

	// aim rays at the camera's top-left corner
	geom.Scale3(&sc.dir, sc.nrm, cam.Pov)
	geom.Mad3(&sc.dir, sc.hor, h)
	geom.Mad3(&sc.dir, sc.ver, v)

	// tile positioning and steppers
	geom.Add3(&sc.org, sc.pos, sc.dir)

	th := 1 / (sc.factor * float32(sc.tileW)) // x_res / tile_w
	tv := 1 / (sc.factor * float32(sc.tileH)) // x_res / tile_h

	geom.Scale3(&sc.htl, sc.hor, th)
	geom.Scale3(&sc.vtl, sc.ver, tv)
}

// dispatchUpdate runs one update phase across the worker pool, or
// sequentially when threading is off or the phase's debug flag forces
// it.
func (sc *Scene) dispatchUpdate(phase int, seqFlag geom.Opts) error {
	if !sc.opts.Has(geom.OptsThread) || sc.thnum == 1 || sc.opts.Has(seqFlag) {
		for i := 0; i < sc.thnum; i++ {
			if err := sc.updateSlice(i, phase); err != nil {
				return err
			}
		}
		return nil
	}

	return sc.dispatch(func(i int) error {
		return sc.updateSlice(i, phase)
	})
}

// dispatchRender runs the backend across the worker pool.
func (sc *Scene) dispatchRender() error {
	if !sc.opts.Has(geom.OptsThread) || sc.thnum == 1 ||
		sc.opts.Has(geom.OptsRenderExt1) {
		for i := 0; i < sc.thnum; i++ {
			if err := sc.backend.RenderSlice(sc, i); err != nil {
				return err
			}
		}
		return nil
	}

	return sc.dispatch(func(i int) error {
		return sc.backend.RenderSlice(sc, i)
	})
}

// dispatch fans a phase out across the workers. A worker that fails
// records its error by thread index and raises the abort flag; workers
// observing the flag at their phase boundary skip silently. All errors
// surface after the barrier and no partial-frame output is valid.
func (sc *Scene) dispatch(fn func(index int) error) error {
	for i := range sc.therr {
		sc.therr[i] = nil
	}
	sc.eout.Store(false)

	var g errgroup.Group
	for i := 0; i < sc.thnum; i++ {
		g.Go(func() (err error) {
			defer func() {
				if p := recover(); p != nil {
					err = fmt.Errorf("worker %d: %v", i, p)
				}
				if err != nil {
					sc.therr[i] = err
					sc.eout.Store(true)
				}
			}()

			if sc.eout.Load() {
				return nil
			}
			return fn(i)
		})
	}
	_ = g.Wait()

	err := errors.Join(sc.therr...)
	if err != nil {
		sc.log.Error("frame aborted", "err", err)
	}
	return err
}

// updateSlice updates the portion of the scene with the given index as
// part of the multi-threaded update.
func (sc *Scene) updateSlice(index, phase int) error {
	switch phase {
	case 1:
		// update fields from the transform matrices of the
		// sequential phase 0.5
		for i, arr := range sc.arrs {
			if i%sc.thnum == index {
				arr.UpdateFields()
			}
		}
		for i, cam := range sc.cams {
			if i%sc.thnum == index {
				cam.UpdateFields()
			}
		}
		for i, lgt := range sc.lgts {
			if i%sc.thnum == index {
				lgt.UpdateFields()
			}
		}
		for i, srf := range sc.srfs {
			if i%sc.thnum == index {
				srf.UpdateFields()
			}
		}

	case 2:
		for i, srf := range sc.srfs {
			if i%sc.thnum != index {
				continue
			}

			// rebuild the clip list (cross-surface), update bounds
			// with the clippers applied, then the tile list
			sc.tharr[index].sclip(srf)
			if err := srf.UpdateBounds(); err != nil {
				return err
			}
			sc.tharr[index].stile(srf)
		}

	case 3:
		for i, srf := range sc.srfs {
			if i%sc.thnum != index {
				continue
			}

			// rebuild rfl/rfr and light/shadow lists from the
			// bounds of phase 2 and the array bounds of phase 2.5
			sc.tharr[index].ssort(srf)
			sc.tharr[index].lsort(srf)
		}
	}

	return nil
}

// assembleTiles distributes every surface's tile list into the 2D tile
// grid, preserving trnode grouping per tile; with tiling off every
// tile points at the camera's whole list.
func (sc *Scene) assembleTiles() {
	if !sc.opts.Has(geom.OptsTiling) {
		for i := range sc.tiles {
			sc.tiles[i] = sc.clist
		}
		return
	}

	for i := range sc.tiles {
		sc.tiles[i] = nil
	}

	st := sc.tharr[0]

	// build an exact reversed copy of clist (cheap): trnode elements
	// become tailing rather than heading, element grouping for the
	// cached transform is retained
	var ctail *geom.Elem
	for nxt := sc.clist; nxt != nil; nxt = nxt.Next {
		elm := st.newElem()
		elm.Data = nxt.Data
		elm.Kind = nxt.Kind
		elm.Last = nxt.Last
		elm.Simd = nxt.Simd
		elm.Sub = nxt.Sub
		elm.Temp = nxt.Temp
		elm.Next = ctail
		ctail = elm
	}

	// traverse the reversed copy to keep clist's original order and
	// optimize trnode handling per tile
	for elm := ctail; elm != nil; elm = elm.Next {
		srf, ok := elm.Temp.Obj.(*Surface)
		if !ok {
			// trnode elements are handled separately per tile
			continue
		}

		var nxt *geom.Elem
		if srf.Trnode != nil && srf.Trnode != Node(srf) {
			arr := srf.Trnode.(*Array)
			trb := srf.Trn.Temp

			for tls := srf.Tls; tls != nil; tls = nxt {
				i := int(uint32(tls.Data) >> 16)
				j := int(uint32(tls.Data) & 0xFFFF)

				nxt = tls.Next
				tls.Data = 0

				tline := i*sc.tilesInRow + j

				// only the tile list's head needs checking as
				// element grouping is retained from clist
				trn := sc.tiles[tline]

				if trn != nil && trn.Temp == trb {
					// insert under the existing trnode
					tls.Next = trn.Next
					trn.Next = tls
				} else {
					tls.Next = sc.tiles[tline]
					sc.tiles[tline] = tls

					trn = st.newElem()
					trn.Last = tls // trnode's last element
					trn.Simd = arr.SSrf
					trn.Temp = trb
					trn.Next = sc.tiles[tline]
					sc.tiles[tline] = trn
				}
			}
		} else {
			for tls := srf.Tls; tls != nil; tls = nxt {
				i := int(uint32(tls.Data) >> 16)
				j := int(uint32(tls.Data) & 0xFFFF)

				nxt = tls.Next
				tls.Data = 0

				sc.tiles[i*sc.tilesInRow+j] = prepend(tls, sc.tiles[i*sc.tilesInRow+j])
			}
		}
	}
}

func prepend(elm, head *geom.Elem) *geom.Elem {
	elm.Next = head
	return elm
}

// Frame returns the framebuffer pixels in ARGB32.
func (sc *Scene) Frame() []uint32 { return sc.fram }

// RowStart returns the framebuffer index of line y, honoring a
// negative row stride.
func (sc *Scene) RowStart(y int) int {
	if sc.xRow < 0 {
		return (sc.yRes - 1 - y) * -sc.xRow
	}
	return y * sc.xRow
}

// Dims returns the framebuffer resolution.
func (sc *Scene) Dims() (x, y int) { return sc.xRes, sc.yRes }

// TileGrid returns the tilebuffer and its dimensions in tiles.
func (sc *Scene) TileGrid() (tiles []*geom.Elem, inRow, inCol int) {
	return sc.tiles, sc.tilesInRow, sc.tilesInCol
}

// TileDims returns the tile dimensions in pixels.
func (sc *Scene) TileDims() (w, h int) { return sc.tileW, sc.tileH }

// Steppers returns the ray position and stepper vectors of the
// current frame.
func (sc *Scene) Steppers() (pos, dir, hor, ver geom.Vec4) {
	return sc.pos, sc.dir, sc.hor, sc.ver
}

// Ambient returns the frame's accumulated ambient color and level.
func (sc *Scene) Ambient() geom.Vec4 { return sc.amb }

// Cam returns the current camera.
func (sc *Scene) Cam() *Camera { return sc.cam }

// Lights returns the scene's lights.
func (sc *Scene) Lights() []*Light { return sc.lgts }

// Surfaces returns the scene's surfaces.
func (sc *Scene) Surfaces() []*Surface { return sc.srfs }

// Depth returns the ray recursion depth.
func (sc *Scene) Depth() int { return sc.depth }

// Threads returns the worker count.
func (sc *Scene) Threads() int { return sc.thnum }

// Fsaa returns the current antialiasing mode.
func (sc *Scene) Fsaa() int { return sc.fsaa }

// SetFsaa sets the antialiasing mode for subsequent frames.
func (sc *Scene) SetFsaa(fsaa int) { sc.fsaa = fsaa }

// Opts returns the runtime optimization flags.
func (sc *Scene) Opts() geom.Opts { return sc.opts }

// SetOpts replaces the runtime optimization flags and returns the
// previous set. The scene updates fully on the next frame.
func (sc *Scene) SetOpts(opts geom.Opts) geom.Opts {
	old := sc.opts
	sc.opts = opts &^ sc.data.OptsOff
	sc.data.Root.time = -1
	return old
}

// PtOn reports whether path-trace accumulation is active.
func (sc *Scene) PtOn() bool { return sc.ptOn }

// SetPtOn toggles path-trace accumulation, resetting the accumulation
// planes.
func (sc *Scene) SetPtOn(on bool) {
	sc.ptOn = on
	sc.resetColor()
	sc.resetPseed()
}

// PtPlanes returns the path tracer's color planes, seed plane and
// accumulated sample count.
func (sc *Scene) PtPlanes() (r, g, b []float32, seed []uint32, count float32) {
	return sc.ptrR, sc.ptrG, sc.ptrB, sc.pseed, sc.ptsC
}

// CamIdx returns the current camera index.
func (sc *Scene) CamIdx() int { return sc.camIdx }

// NextCam switches to the next camera in the scene.
func (sc *Scene) NextCam() int {
	if sc.camIdx+1 < len(sc.cams) {
		sc.camIdx++
	} else {
		sc.camIdx = 0
	}
	sc.cam = sc.cams[sc.camIdx]
	sc.data.Root.time = -1
	return sc.camIdx
}

// Update applies a camera action for the given time.
func (sc *Scene) Update(time int64, action int) {
	sc.cam.UpdateAction(time, action)
}

// Close unlocks the scene data for another instance.
func (sc *Scene) Close() {
	if sc.data.lock == sc {
		sc.data.lock = nil
	}
}

// WriteFrame encodes the framebuffer to w in the format named by ext
// (".bmp" or ".png").
func (sc *Scene) WriteFrame(w io.Writer, ext string) error {
	img := image.NewRGBA(image.Rect(0, 0, sc.xRes, sc.yRes))

	for y := 0; y < sc.yRes; y++ {
		row := sc.RowStart(y)
		for x := 0; x < sc.xRes; x++ {
			c := sc.fram[row+x]
			o := img.PixOffset(x, y)
			img.Pix[o+0] = byte(c >> 16)
			img.Pix[o+1] = byte(c >> 8)
			img.Pix[o+2] = byte(c)
			img.Pix[o+3] = 0xFF
		}
	}

	switch strings.ToLower(ext) {
	case ".png":
		return png.Encode(w, img)
	default:
		return bmp.Encode(w, img)
	}
}

// SaveFrame writes the framebuffer to the named file, choosing the
// format from the extension.
func (sc *Scene) SaveFrame(name string, open func(string) (io.WriteCloser, error)) error {
	f, err := open(name)
	if err != nil {
		return err
	}
	defer f.Close()

	return sc.WriteFrame(f, filepath.Ext(name))
}
