// Copyright (c) 2026, Tracekit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scene

import "github.com/tracekit/tracekit/geom"

// Camera actions.
const (
	CameraCrouch = iota
	CameraJump

	CameraMoveDown
	CameraMoveUp
	CameraMoveLeft
	CameraMoveRight
	CameraMoveBack
	CameraMoveForward

	CameraLeanLeft
	CameraLeanRight

	CameraRotateDown
	CameraRotateUp
	CameraRotateLeft
	CameraRotateRight
)

// Camera is a special object which facilitates the rendering of other
// objects.
type Camera struct {
	Object

	Cam *CameraData

	// rotation internals for action handling
	horSin float32
	horCos float32

	camChanged int32

	// Pov is the distance from the point of view to the screen
	// plane.
	Pov float32
}

func newCamera(sc *Scene, parent *Array, data *ObjectData) (*Camera, error) {
	c := &Camera{Cam: data.Camera}
	if err := c.initObject(sc, c, parent, data); err != nil {
		return nil, err
	}
	sc.cams = append(sc.cams, c)

	c.Cam.Col.resolve()

	switch vpt := c.Cam.Vpt[0]; {
	case vpt <= 0:
		c.Pov = 1 // default pov
	case vpt <= 2*geom.ClipThreshold:
		c.Pov = 2 * geom.ClipThreshold // minimum positive pov
	default:
		c.Pov = vpt
	}

	return c, nil
}

// Base returns the shared object core.
func (c *Camera) Base() *Object { return &c.Object }

// Hor returns the camera's X axis (left-to-right) in world space.
func (c *Camera) Hor() *geom.Vec4 { return (*geom.Vec4)(&c.Mtx[0]) }

// Ver returns the camera's Y axis (top-to-bottom) in world space.
func (c *Camera) Ver() *geom.Vec4 { return (*geom.Vec4)(&c.Mtx[1]) }

// Nrm returns the camera's Z axis (outwards) in world space.
func (c *Camera) Nrm() *geom.Vec4 { return (*geom.Vec4)(&c.Mtx[2]) }

// UpdateObject records the parent matrix; the camera's own matrix is
// refreshed in UpdateFields.
func (c *Camera) UpdateObject(time int64, flags int32, trnode Node, mtx *geom.Mat4) {
	c.updateStatus(time, flags|c.camChanged, trnode)
	c.pmtx = mtx
}

// UpdateFields updates the camera's matrix and orientation fields.
func (c *Camera) UpdateFields() {
	if c.ObjChanged == 0 {
		return
	}

	c.updateMatrix(c.pmtx)

	geom.Set3(&c.BvBox.Mid, *c.Pos())

	c.horSin = sinaDeg(c.Trm.Rot[geom.Z])
	c.horCos = cosaDeg(c.Trm.Rot[geom.Z])

	c.camChanged = 0
}

// UpdateAction applies a camera action over the time passed since the
// last update, using the camera's movement and rotation deltas.
func (c *Camera) UpdateAction(time int64, action int) {
	t := float32(time-c.data.time) / 50

	trm := c.Trm
	cam := c.Cam

	switch action {
	// vertical movement
	case CameraMoveUp:
		trm.Pos[geom.Z] += cam.Dps[geom.K] * t
	case CameraMoveDown:
		trm.Pos[geom.Z] -= cam.Dps[geom.K] * t

	// horizontal movement
	case CameraMoveLeft:
		trm.Pos[geom.X] -= cam.Dps[geom.I] * t * c.horCos
		trm.Pos[geom.Y] -= cam.Dps[geom.I] * t * c.horSin
	case CameraMoveRight:
		trm.Pos[geom.X] += cam.Dps[geom.I] * t * c.horCos
		trm.Pos[geom.Y] += cam.Dps[geom.I] * t * c.horSin
	case CameraMoveBack:
		trm.Pos[geom.X] += cam.Dps[geom.J] * t * c.horSin
		trm.Pos[geom.Y] -= cam.Dps[geom.J] * t * c.horCos
	case CameraMoveForward:
		trm.Pos[geom.X] -= cam.Dps[geom.J] * t * c.horSin
		trm.Pos[geom.Y] += cam.Dps[geom.J] * t * c.horCos

	// horizontal rotation
	case CameraRotateLeft:
		trm.Rot[geom.Z] += cam.Drt[geom.I] * t
		if trm.Rot[geom.Z] >= +180 {
			trm.Rot[geom.Z] -= 360
		}
	case CameraRotateRight:
		trm.Rot[geom.Z] -= cam.Drt[geom.I] * t
		if trm.Rot[geom.Z] <= -180 {
			trm.Rot[geom.Z] += 360
		}

	// vertical rotation
	case CameraRotateUp:
		if trm.Rot[geom.X] < 0 {
			trm.Rot[geom.X] += cam.Drt[geom.J] * t
			if trm.Rot[geom.X] > 0 {
				trm.Rot[geom.X] = 0
			}
		}
	case CameraRotateDown:
		if trm.Rot[geom.X] > -180 {
			trm.Rot[geom.X] -= cam.Drt[geom.J] * t
			if trm.Rot[geom.X] < -180 {
				trm.Rot[geom.X] = -180
			}
		}
	}

	c.camChanged = UpdateFlagObj
}
