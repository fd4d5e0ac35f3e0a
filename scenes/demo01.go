// Copyright (c) 2026, Tracekit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package scenes holds built-in scene descriptions used by the
// front-ends and the tests.
package scenes

import (
	"github.com/tracekit/tracekit/geom"
	"github.com/tracekit/tracekit/scene"
)

var (
	matPlane01 = scene.MaterialData{
		Tag: scene.MatPlain,
		Tex: scene.Tex{Col: scene.Col{Val: 0x8FC8C8}},
		Lgt: [3]float32{0.75, 0.2, 8},
		Prp: [4]float32{0.25, 0, 1, 0},
	}

	matSphere01 = scene.MaterialData{
		Tag: scene.MatPlain,
		Tex: scene.Tex{Col: scene.Col{Val: 0xC81414}},
		Lgt: [3]float32{0.8, 0.5, 16},
		Prp: [4]float32{0.2, 0, 1, 0},
	}

	matSphere02 = scene.MaterialData{
		Tag: scene.MatMetal,
		Tex: scene.Tex{Col: scene.Col{Val: 0xDCDCDC}},
		Lgt: [3]float32{0.2, 0.8, 32},
		Prp: [4]float32{0.8, 0, 1, 0},
	}

	matGlass01 = scene.MaterialData{
		Tag: scene.MatPlain,
		Tex: scene.Tex{Col: scene.Col{Val: 0x8FB4FF}},
		Lgt: [3]float32{0.1, 0.6, 24},
		Prp: [4]float32{0.1, 0.7, 1.1, 0},
	}
)

func side(mat *scene.MaterialData) scene.SideData {
	return scene.SideData{Scl: [2]float32{1, 1}, Mat: mat}
}

func trm(x, y, z float32) geom.Transform {
	return geom.Transform{
		Scl: geom.Vec4{1, 1, 1, 1},
		Pos: geom.Vec4{x, y, z},
	}
}

// Demo01 is a ground plane under three spheres, one light and one
// camera looking down the Y axis.
func Demo01() *scene.SceneData {
	plane := &scene.ObjectData{
		Tag: geom.TagPlane,
		Trm: trm(0, 0, 0),
		Surface: &scene.SurfaceData{
			Min:       geom.Vec4{-12, -12, -geom.Inf},
			Max:       geom.Vec4{+12, +12, +geom.Inf},
			OuterSide: side(&matPlane01),
			InnerSide: side(&matPlane01),
		},
	}

	sphere := func(x, y, z, rad float32, mat *scene.MaterialData) *scene.ObjectData {
		return &scene.ObjectData{
			Tag: geom.TagSphere,
			Trm: trm(x, y, z),
			Surface: &scene.SurfaceData{
				Min:       geom.Vec4{-geom.Inf, -geom.Inf, -geom.Inf},
				Max:       geom.Vec4{+geom.Inf, +geom.Inf, +geom.Inf},
				Rad:       rad,
				OuterSide: side(mat),
				InnerSide: side(mat),
			},
		}
	}

	light := &scene.ObjectData{
		Tag: geom.TagLight,
		Trm: trm(-3, -4, 6),
		Light: &scene.LightData{
			Col: scene.Col{Val: 0xFFFFFF},
			Lum: [2]float32{0.1, 0.9},
			Atn: [4]float32{0, 0.5, 0.05, 0.005},
		},
	}

	camera := &scene.ObjectData{
		Tag: geom.TagCamera,
		Trm: geom.Transform{
			Scl: geom.Vec4{1, 1, 1, 1},
			Rot: geom.Vec4{-90, 0, 0},
			Pos: geom.Vec4{0, -8, 3},
		},
		Camera: &scene.CameraData{
			Col: scene.Col{Val: 0xFFFFFF},
			Lum: [1]float32{0.25},
			Dps: [3]float32{0.2, 0.2, 0.2},
			Drt: [3]float32{1, 1, 1},
			Vpt: [1]float32{1},
		},
	}

	root := &scene.ObjectData{
		Tag: geom.TagArray,
		Trm: trm(0, 0, 0),
		Array: &scene.ArrayData{
			Objs: []*scene.ObjectData{
				camera,
				light,
				plane,
				sphere(-2.5, 1.5, 1.5, 1.5, &matSphere01),
				sphere(+2.0, -0.5, 1.0, 1.0, &matSphere02),
				sphere(+0.0, 2.5, 2.0, 2.0, &matGlass01),
			},
		},
	}

	return &scene.SceneData{Root: root}
}
