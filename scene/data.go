// Copyright (c) 2026, Tracekit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package scene implements the scene manager and its five-phase
// update pipeline: the object hierarchy with transform propagation,
// the hierarchical bounding-volume system, the list-construction
// engine that builds per-surface clip, tile, reflection/refraction and
// shadow lists, and the per-frame dispatch across a worker pool. The
// produced data structures are consumed by a rendering backend through
// the Backend interface.
package scene

import "github.com/tracekit/tracekit/geom"

// Animator mutates an object's transform for the given frame times.
// Animators run in the sequential update phase and need not be
// reentrant.
type Animator func(time, lastTime int64, trm *geom.Transform)

// Col is a color given either as packed 0xRRGGBB or as HDR components.
type Col struct {
	Val uint32
	HDR [4]float32
}

// resolve fills the HDR components from the packed value when set.
func (c *Col) resolve() {
	if c.Val != 0 {
		c.HDR[0] = float32((c.Val>>16)&0xFF) / 255
		c.HDR[1] = float32((c.Val>>8)&0xFF) / 255
		c.HDR[2] = float32(c.Val&0xFF) / 255
	}
}

// Tex describes a texture: an inline color, a bound pixel buffer, or a
// file reference resolved by the loader before the scene is built.
type Tex struct {
	Col  Col
	Name string

	// Pixels is XDim*YDim ARGB texels, row-major. Empty with XDim
	// and YDim zero means the inline color is used.
	Pixels []uint32
	XDim   int32
	YDim   int32
}

// Material tags.
const (
	MatPlain = iota
	MatLight
	MatMetal
)

// MaterialData is the description of one side's material.
type MaterialData struct {
	Tag int32
	Tex Tex

	// Lgt holds diffuse, specular, specular power.
	Lgt [3]float32
	// Prp holds reflection, transparency, refraction index and the
	// extinction coefficient.
	Prp [4]float32
}

// SideData describes texture placement on one side of a surface.
type SideData struct {
	Scl [2]float32
	Rot float32
	Pos [2]float32
	Mat *MaterialData
}

// CameraData is the payload of a camera object.
type CameraData struct {
	Col Col
	// Lum holds the ambient luminosity.
	Lum [1]float32
	// Dps and Drt are the movement and rotation deltas of camera
	// actions.
	Dps [3]float32
	Drt [3]float32
	// Vpt holds the distance from the point of view to the screen
	// plane; zero or negative selects the default.
	Vpt [1]float32
}

// LightData is the payload of a light object.
type LightData struct {
	Col Col
	// Lum holds ambient and source luminosity.
	Lum [2]float32
	// Atn holds range, constant, linear and quadratic attenuation.
	Atn [4]float32
}

// Relation ties two children of an array by index. Obj1 and Obj2 are
// indices into the array's object list, -1 addressing the array
// itself; Rel is one of the geom.Rel codes.
type Relation struct {
	Obj1 int32
	Obj2 int32
	Rel  int32
}

// SurfaceData is the payload of a surface object.
type SurfaceData struct {
	// Min and Max are the axis clippers in the surface's local
	// frame; an open side is at the respective infinity.
	Min geom.Vec4
	Max geom.Vec4

	OuterSide SideData
	InnerSide SideData

	// Shape parameters, used according to the object's tag:
	// Rad for spheres and cylinders, Rat for cones and
	// hyper-surfaces, Par for paraboloids, Hyp the hyperbolic shift,
	// Pr1/Pr2 the hyper-paraboloid parameters.
	Rad float32
	Rat float32
	Par float32
	Hyp float32
	Pr1 float32
	Pr2 float32
}

// ArrayData is the payload of an array object.
type ArrayData struct {
	Objs []*ObjectData
	Rels []Relation
}

// ObjectData describes one node of the scene tree: a tag, a transform,
// an optional animator, and the tag's payload.
type ObjectData struct {
	Tag geom.Tag
	Trm geom.Transform
	Anm Animator

	Camera  *CameraData
	Light   *LightData
	Array   *ArrayData
	Surface *SurfaceData

	// time of the last animator run, -1 before the first update
	time int64
}

// SceneData is a whole scene description: the root array and the
// runtime options the scene opts out of.
type SceneData struct {
	Root *ObjectData
	// OptsOff masks optimizations off for this scene.
	OptsOff geom.Opts

	// lock marks scene data already claimed by a scene instance
	lock *Scene
}
