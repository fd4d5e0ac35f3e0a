// Copyright (c) 2026, Tracekit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scene

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracekit/tracekit/geom"
)

func testMaterial() *MaterialData {
	return &MaterialData{
		Lgt: [3]float32{1, 0, 1},
		Prp: [4]float32{0, 0, 1, 0},
		Tex: Tex{Col: Col{Val: 0xFFFFFF}},
	}
}

func testSide() SideData {
	return SideData{Scl: [2]float32{1, 1}, Mat: testMaterial()}
}

func surfaceData(rad float32) *SurfaceData {
	return &SurfaceData{
		Min:       geom.Vec4{-geom.Inf, -geom.Inf, -geom.Inf},
		Max:       geom.Vec4{+geom.Inf, +geom.Inf, +geom.Inf},
		Rad:       rad,
		OuterSide: testSide(),
		InnerSide: testSide(),
	}
}

func objTrm(pos, rot geom.Vec4) geom.Transform {
	return geom.Transform{Scl: geom.Vec4{1, 1, 1, 1}, Rot: rot, Pos: pos}
}

func sphereAt(pos geom.Vec4, rad float32) *ObjectData {
	return &ObjectData{
		Tag:     geom.TagSphere,
		Trm:     objTrm(pos, geom.Vec4{}),
		Surface: surfaceData(rad),
	}
}

func planeAt(pos, rot geom.Vec4, ext float32) *ObjectData {
	return &ObjectData{
		Tag: geom.TagPlane,
		Trm: objTrm(pos, rot),
		Surface: &SurfaceData{
			Min:       geom.Vec4{-ext, -ext, -geom.Inf},
			Max:       geom.Vec4{+ext, +ext, +geom.Inf},
			OuterSide: testSide(),
			InnerSide: testSide(),
		},
	}
}

func lightAt(pos geom.Vec4) *ObjectData {
	return &ObjectData{
		Tag: geom.TagLight,
		Trm: objTrm(pos, geom.Vec4{}),
		Light: &LightData{
			Col: Col{Val: 0xFFFFFF},
			Lum: [2]float32{0.1, 0.9},
			Atn: [4]float32{0, 1, 0, 0},
		},
	}
}

// cameraAtZ looks down the -Z axis from (0, 0, z) using a trivial
// 180-degree rotation about Y.
func cameraAtZ(z float32) *ObjectData {
	return &ObjectData{
		Tag: geom.TagCamera,
		Trm: objTrm(geom.Vec4{0, 0, z}, geom.Vec4{0, 180, 0}),
		Camera: &CameraData{
			Col: Col{Val: 0xFFFFFF},
			Lum: [1]float32{0.2},
			Dps: [3]float32{0.2, 0.2, 0.2},
			Drt: [3]float32{1, 1, 1},
			Vpt: [1]float32{1},
		},
	}
}

func rootOf(objs ...*ObjectData) *SceneData {
	return &SceneData{
		Root: &ObjectData{
			Tag:   geom.TagArray,
			Trm:   objTrm(geom.Vec4{}, geom.Vec4{}),
			Array: &ArrayData{Objs: objs},
		},
	}
}

func newTestScene(t *testing.T, data *SceneData, cfg *Config) *Scene {
	t.Helper()

	sc, err := New(data, 64, 64, 64, cfg)
	require.NoError(t, err)
	t.Cleanup(sc.Close)
	return sc
}

func TestNewValidation(t *testing.T) {
	_, err := New(nil, 64, 64, 64, nil)
	assert.ErrorIs(t, err, ErrNilObject)

	_, err = New(rootOf(cameraAtZ(5)), 0, 64, 64, nil)
	assert.ErrorIs(t, err, ErrFrameDims)

	_, err = New(rootOf(cameraAtZ(5)), 64, 64, 32, nil)
	assert.ErrorIs(t, err, ErrFrameDims)

	_, err = New(&SceneData{Root: sphereAt(geom.Vec4{}, 1)}, 64, 64, 64, nil)
	assert.ErrorIs(t, err, ErrRootNotArray)

	_, err = New(rootOf(sphereAt(geom.Vec4{}, 1)), 64, 64, 64, nil)
	assert.ErrorIs(t, err, ErrNoCamera)

	data := rootOf(cameraAtZ(5))
	sc, err := New(data, 64, 64, 64, nil)
	require.NoError(t, err)
	defer sc.Close()

	_, err = New(data, 64, 64, 64, nil)
	assert.ErrorIs(t, err, ErrSceneLocked)
}

func TestTransformComposition(t *testing.T) {
	// an array translated and scaled, with a translated sphere child
	child := sphereAt(geom.Vec4{1, 0, 0}, 1)
	arr := &ObjectData{
		Tag: geom.TagArray,
		Trm: geom.Transform{
			Scl: geom.Vec4{2, 2, 2, 1},
			Pos: geom.Vec4{0, 3, 0},
		},
		Array: &ArrayData{Objs: []*ObjectData{child}},
	}

	sc := newTestScene(t, rootOf(cameraAtZ(5), arr), nil)
	require.NoError(t, sc.Render(0))

	arrObj := sc.arrs[1] // root is arrs[0]
	srf := sc.srfs[0]

	var local, want geom.Mat4
	geom.MatFromTransform(&local, &child.Trm, true)
	geom.MatMulMat(&want, &arrObj.Mtx, &local)

	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			assert.InDelta(t, want[i][j], srf.Mtx[i][j], 1e-4, "i=%d j=%d", i, j)
		}
	}

	// the scaled translation lands the sphere at (2, 3, 0)
	assert.InDelta(t, 2, srf.Pos()[geom.X], 1e-4)
	assert.InDelta(t, 3, srf.Pos()[geom.Y], 1e-4)
}

func TestTrnodeInvariant(t *testing.T) {
	rotated := &ObjectData{
		Tag: geom.TagArray,
		Trm: geom.Transform{
			Scl: geom.Vec4{1, 1, 1, 1},
			Rot: geom.Vec4{0, 0, 30},
		},
		Array: &ArrayData{Objs: []*ObjectData{
			sphereAt(geom.Vec4{2, 0, 0}, 1),
		}},
	}

	sc := newTestScene(t, rootOf(cameraAtZ(5), rotated), nil)
	require.NoError(t, sc.Render(0))

	arr := sc.arrs[1]
	srf := sc.srfs[0]

	// a non-trivially rotated array is its own trnode; its child
	// with trivial rotation shares it under the tagged-array option
	assert.Equal(t, Node(arr), arr.Trnode)
	assert.Equal(t, Node(arr), srf.Trnode)

	// the trnode is an ancestor of the surface
	anc := false
	for par := srf.Parent; par != nil; par = par.Parent {
		if Node(par) == srf.Trnode {
			anc = true
		}
	}
	assert.True(t, anc)

	// without tagged arrays the surface collapses into its own
	// trnode
	sc2 := newTestScene(t, rootOf(cameraAtZ(5), &ObjectData{
		Tag: geom.TagArray,
		Trm: rotated.Trm,
		Array: &ArrayData{Objs: []*ObjectData{
			sphereAt(geom.Vec4{2, 0, 0}, 1),
		}},
	}), &Config{Opts: geom.OptsFull &^ geom.OptsTArray})
	require.NoError(t, sc2.Render(0))

	srf2 := sc2.srfs[0]
	assert.Equal(t, Node(srf2), srf2.Trnode)
}

// sceneS1 is the axis-aligned plane at z=0 with one sphere above and
// one below, viewed from (0, 0, 5).
func sceneS1(t *testing.T, opts geom.Opts) *Scene {
	data := rootOf(
		cameraAtZ(5),
		lightAt(geom.Vec4{0, 0, 4}),
		planeAt(geom.Vec4{}, geom.Vec4{}, 10),
		sphereAt(geom.Vec4{0, 0, +2}, 1),
		sphereAt(geom.Vec4{0, 0, -2}, 1),
	)

	cfg := &Config{Threads: 2}
	if opts != 0 {
		cfg.Opts = opts
	}
	sc := newTestScene(t, data, cfg)
	require.NoError(t, sc.Render(0))
	return sc
}

func TestScenarioS1Order(t *testing.T) {
	sc := sceneS1(t, 0)

	plane := sc.srfs[0]
	top := sc.srfs[1]
	bot := sc.srfs[2]
	cam := sc.cam

	assert.Equal(t, int32(1), geom.BBoxSort(cam.BvBox, top.BvBox, plane.BvBox))

	// the plane sorts first and, with removal enabled, fully
	// obscures the sphere below it
	assert.Equal(t, int32(4|1), geom.BBoxSort(cam.BvBox, plane.BvBox, bot.BvBox))
	assert.Equal(t, int32(4|2), geom.BBoxSort(cam.BvBox, bot.BvBox, plane.BvBox))

	assert.Equal(t, int32(2), geom.BBoxSide(cam.BvBox, plane.Shape))
}

func TestScenarioS1Tiles(t *testing.T) {
	sc := sceneS1(t, 0)

	plane := sc.srfs[0]
	top := sc.srfs[1]

	tiles, inRow, inCol := sc.TileGrid()

	surfacesIn := func(idx int) map[*geom.Bound]bool {
		seen := map[*geom.Bound]bool{}
		for elm := tiles[idx]; elm != nil; elm = elm.Next {
			if elm.Temp != nil && elm.Temp.Tag.IsSurface() {
				seen[elm.Temp] = true
			}
		}
		return seen
	}

	center := (inCol/2)*inRow + inRow/2
	seen := surfacesIn(center)
	assert.True(t, seen[plane.BvBox], "plane missing from center tile")
	assert.True(t, seen[top.BvBox], "top sphere missing from center tile")

	corner := surfacesIn(0)
	assert.True(t, corner[plane.BvBox], "plane missing from corner tile")
}

func TestScenarioS1SurfaceLists(t *testing.T) {
	sc := sceneS1(t, 0)

	for _, srf := range sc.srfs {
		// outer light list carries the scene's light with its
		// shadow sub-list slot
		if srf == sc.srfs[0] || srf == sc.srfs[1] {
			require.NotNil(t, srf.SSrf.LstP[0], "outer lights of %v", srf.Tag)
		}
	}

	// the lower sphere sees no light on its outer side facing away
	// (still reachable through the plane's inner side lists)
	assert.NotNil(t, sc.slist)
	assert.NotNil(t, sc.llist)
	assert.NotNil(t, sc.clist)
}

func TestFilterCleanliness(t *testing.T) {
	sc := sceneS1(t, 0)

	var walk func(elm *geom.Elem)
	walk = func(elm *geom.Elem) {
		for ; elm != nil; elm = elm.Next {
			if elm.Temp == nil {
				continue
			}
			if elm.Temp.Tag.IsSurface() {
				assert.Zero(t, elm.Data, "surface element data not reset")
			} else if elm.Temp.Tag.IsArray() {
				assert.NotNil(t, elm.Last, "array element without last leaf")
			}
		}
	}

	walk(sc.clist)
	walk(sc.slist)

	for _, srf := range sc.srfs {
		for side := 0; side < 4; side++ {
			walk(srf.SSrf.LstP[side])
		}
	}
}

func TestInsertSortPermutations(t *testing.T) {
	// three spheres totally ordered in depth from the camera
	data := rootOf(
		cameraAtZ(5),
		sphereAt(geom.Vec4{0, 0, +2}, 0.5),
		sphereAt(geom.Vec4{0, 0, 0}, 0.5),
		sphereAt(geom.Vec4{0, 0, -2}, 0.5),
	)

	sc := newTestScene(t, data, nil)
	require.NoError(t, sc.Render(0))

	near, mid, far := sc.srfs[0], sc.srfs[1], sc.srfs[2]
	st := sc.tharr[0]
	cam := sc.cam

	perms := [][]*Surface{
		{near, mid, far},
		{near, far, mid},
		{mid, near, far},
		{mid, far, near},
		{far, near, mid},
		{far, mid, near},
	}

	for pi, perm := range perms {
		var lst *geom.Elem
		for _, s := range perm {
			tem := &geom.Elem{Temp: s.BvBox}
			st.insert(cam, &lst, tem, false)
		}

		// the final order is the same for every insertion order
		want := []*geom.Bound{near.BvBox, mid.BvBox, far.BvBox}
		i := 0
		for elm := lst; elm != nil; elm = elm.Next {
			require.Less(t, i, len(want), "perm %d: extra element", pi)
			assert.Same(t, want[i], elm.Temp, "perm %d elem %d", pi, i)
			i++
		}
		assert.Equal(t, len(want), i, "perm %d", pi)

		// no adjacent pair wants a swap
		for elm := lst; elm != nil && elm.Next != nil; elm = elm.Next {
			op := 7 & geom.BBoxSort(cam.BvBox, elm.Temp, elm.Next.Temp)
			assert.NotEqual(t, int32(2), op, "perm %d: adjacent do-swap", pi)
		}
	}
}

// sceneS3 builds a cube of six planes fully enclosing a sphere, bound
// as a bvnode, viewed from outside.
func sceneS3(t *testing.T) (*Scene, *Array, *Surface) {
	// each plane's local K axis (its normal) is rotated onto the
	// face's world axis by a trivial rotation
	face := func(pos, rot geom.Vec4) *ObjectData {
		return planeAt(pos, rot, 1)
	}

	cube := &ObjectData{
		Tag: geom.TagArray,
		Trm: objTrm(geom.Vec4{}, geom.Vec4{}),
		Array: &ArrayData{
			Objs: []*ObjectData{
				face(geom.Vec4{0, 0, +1}, geom.Vec4{0, 0, 0}),
				face(geom.Vec4{0, 0, -1}, geom.Vec4{0, 0, 0}),
				face(geom.Vec4{+1, 0, 0}, geom.Vec4{0, 90, 0}),
				face(geom.Vec4{-1, 0, 0}, geom.Vec4{0, 90, 0}),
				face(geom.Vec4{0, +1, 0}, geom.Vec4{90, 0, 0}),
				face(geom.Vec4{0, -1, 0}, geom.Vec4{90, 0, 0}),
				sphereAt(geom.Vec4{}, 0.5),
			},
			// the cube array bounds itself and its contents
			Rels: []Relation{{Obj1: -1, Obj2: -1, Rel: geom.RelBoundArray}},
		},
	}

	data := rootOf(cameraAtZ(5), cube)

	sc := newTestScene(t, data, nil)
	require.NoError(t, sc.Render(0))

	return sc, sc.arrs[1], sc.srfs[6]
}

func TestScenarioS3HiddenSurfaceRemoval(t *testing.T) {
	sc, cube, sphere := sceneS3(t)

	// the cube's bvbox accumulated full face coverage from its six
	// planes
	assert.Equal(t, int32(0x3F), cube.BvBox.Flm)
	assert.Equal(t, int32(6), cube.BvBox.Fln)

	// the cube fully obscures the sphere from the camera
	assert.Equal(t, int32(4|1),
		geom.BBoxSort(sc.cam.BvBox, cube.BvBox, sphere.BvBox))

	// and the sphere does not survive into the camera's list
	for elm := sc.clist; elm != nil; elm = elm.Next {
		assert.NotSame(t, sphere.BvBox, elm.Temp, "sphere not removed")
	}
}

func TestScenarioS6FivePhase(t *testing.T) {
	group := func(objs ...*ObjectData) *ObjectData {
		return &ObjectData{
			Tag:   geom.TagArray,
			Trm:   objTrm(geom.Vec4{}, geom.Vec4{}),
			Array: &ArrayData{Objs: objs},
		}
	}

	build := func() *SceneData {
		return rootOf(
			cameraAtZ(8),
			lightAt(geom.Vec4{3, 3, 5}),
			lightAt(geom.Vec4{-3, -3, 5}),
			group(
				sphereAt(geom.Vec4{-2, 0, 0}, 1),
				sphereAt(geom.Vec4{+2, 0, 0}, 1),
			),
			group(
				sphereAt(geom.Vec4{0, -2, 2}, 0.5),
				sphereAt(geom.Vec4{0, +2, 2}, 0.5),
			),
			group(
				planeAt(geom.Vec4{0, 0, -2}, geom.Vec4{}, 8),
			),
		)
	}

	t.Run("opts on", func(t *testing.T) {
		sc := newTestScene(t, build(), &Config{Threads: 4})
		require.NoError(t, sc.Render(0))

		assert.NotNil(t, sc.slist)
		assert.NotNil(t, sc.llist)
		assert.NotNil(t, sc.clist)

		// filtered lists carry no leftover sort data
		for _, srf := range sc.srfs {
			for side := 0; side < 4; side++ {
				for elm := srf.SSrf.LstP[side]; elm != nil; elm = elm.Next {
					if elm.Temp != nil && elm.Temp.Tag.IsSurface() {
						assert.Zero(t, elm.Data)
					}
				}
			}
		}
	})

	t.Run("opts off", func(t *testing.T) {
		opts := geom.OptsFull &^ (geom.OptsShadow | geom.OptsRender | geom.Opts2Sided)
		sc := newTestScene(t, build(), &Config{Threads: 4, Opts: opts})
		require.NoError(t, sc.Render(0))

		// with shadow and render pruning off, every surface shares
		// the global lists on both sides
		for _, srf := range sc.srfs {
			assert.Equal(t, sc.llist, srf.SSrf.LstP[0], "outer lights")
			assert.Equal(t, sc.llist, srf.SSrf.LstP[2], "inner lights")
			assert.Equal(t, sc.slist, srf.SSrf.LstP[1], "outer surfaces")
			assert.Equal(t, sc.slist, srf.SSrf.LstP[3], "inner surfaces")
		}
	})
}

func TestCustomClippers(t *testing.T) {
	// a sphere minus the outer side of a plane through its middle
	data := rootOf(
		cameraAtZ(5),
		sphereAt(geom.Vec4{}, 1),
		planeAt(geom.Vec4{}, geom.Vec4{}, 2),
	)
	data.Root.Array.Rels = []Relation{
		{Obj1: 1, Obj2: 2, Rel: geom.RelMinusOuter},
	}

	sc := newTestScene(t, data, nil)
	require.NoError(t, sc.Render(0))

	sphere := sc.srfs[0]
	plane := sc.srfs[1]

	clp := *sphere.Shape.Clp
	require.NotNil(t, clp, "clip list empty")
	assert.Equal(t, int32(geom.RelMinusOuter), clp.Data)
	assert.Same(t, plane.BvBox, clp.Temp)

	// the clipper opens the sphere's inner side to outside viewers
	assert.Equal(t, int32(3), geom.ClipSide(sphere.Shape, geom.Vec4{0, 0, 5, 1}))

	// the plane itself reports clipping the sphere by its outer side
	assert.Equal(t, int32(2), geom.SurfClip(sphere.Shape, plane.BvBox))
}

func TestCameraActions(t *testing.T) {
	sc := sceneS1(t, 0)

	cam := sc.cam
	z := cam.Trm.Pos[geom.Z]

	sc.Update(100, CameraMoveUp)
	assert.Greater(t, cam.Trm.Pos[geom.Z], z)

	require.NoError(t, sc.Render(100))
}

func TestSetOptsForcesUpdate(t *testing.T) {
	sc := sceneS1(t, 0)

	old := sc.SetOpts(geom.OptsFull &^ geom.OptsTiling)
	assert.Equal(t, geom.OptsFull, old)

	require.NoError(t, sc.Render(50))

	// with tiling off every tile points at the camera's list
	tiles, _, _ := sc.TileGrid()
	for _, tl := range tiles {
		assert.Equal(t, sc.clist, tl)
	}
}
