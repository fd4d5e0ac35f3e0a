// Copyright (c) 2026, Tracekit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scenefile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracekit/tracekit/geom"
	"github.com/tracekit/tracekit/scene"
)

const demoDoc = `
[camera]
pos = [0.0, -8.0, 3.0]
rot = [-90.0, 0.0, 0.0]
col = 0xFFFFFF
lum = 0.25
pov = 1.0

[[light]]
pos = [-3.0, -4.0, 6.0]
col = 0xFFFFFF
lum = [0.1, 0.9]
atn = [0.0, 0.5, 0.05, 0.005]

[[surface]]
kind = "plane"
min = [-12.0, -12.0, 0.0]
max = [12.0, 12.0, 0.0]

[surface.outer]
col = 0x8FC8C8
dff = 0.75
spc = 0.2
pow = 8.0

[[surface]]
kind = "sphere"
pos = [1.0, 2.0, 1.5]
rad = 1.5

[surface.outer]
tag = "metal"
col = 0xDCDCDC
rfl = 0.5

[[array]]
pos = [0.0, 4.0, 0.0]

[[array.surface]]
kind = "cylinder"
rad = 0.5
min = [0.0, 0.0, -1.0]
max = [0.0, 0.0, 1.0]
`

func TestParse(t *testing.T) {
	data, err := Parse([]byte(demoDoc), ".")
	require.NoError(t, err)

	objs := data.Root.Array.Objs
	require.Len(t, objs, 5) // camera, light, two surfaces, one array

	assert.Equal(t, geom.TagCamera, objs[0].Tag)
	assert.Equal(t, geom.TagLight, objs[1].Tag)
	assert.Equal(t, geom.TagPlane, objs[2].Tag)

	// the plane's Z clippers collapse to the finite values given
	plane := objs[2].Surface
	assert.Equal(t, float32(-12), plane.Min[geom.X])
	assert.Equal(t, float32(0), plane.Max[geom.Z])
	assert.Equal(t, float32(0.75), plane.OuterSide.Mat.Lgt[0])

	// a missing side falls back to matte white
	assert.Equal(t, uint32(0xFFFFFF), plane.InnerSide.Mat.Tex.Col.Val)
}

func TestParseNested(t *testing.T) {
	data, err := Parse([]byte(demoDoc), ".")
	require.NoError(t, err)

	objs := data.Root.Array.Objs
	require.Len(t, objs, 5)

	sphere := objs[3]
	assert.Equal(t, geom.TagSphere, sphere.Tag)
	assert.Equal(t, float32(1.5), sphere.Surface.Rad)
	assert.Equal(t, int32(scene.MatMetal), sphere.Surface.OuterSide.Mat.Tag)

	arr := objs[4]
	require.Equal(t, geom.TagArray, arr.Tag)
	require.Len(t, arr.Array.Objs, 1)
	assert.Equal(t, geom.TagCylinder, arr.Array.Objs[0].Tag)
	assert.Equal(t, float32(4), arr.Trm.Pos[geom.Y])
}

func TestParseBuildsScene(t *testing.T) {
	data, err := Parse([]byte(demoDoc), ".")
	require.NoError(t, err)

	sc, err := scene.New(data, 64, 64, 64, nil)
	require.NoError(t, err)
	defer sc.Close()

	require.NoError(t, sc.Render(0))
}

func TestParseErrors(t *testing.T) {
	_, err := Parse([]byte(`[[surface]]`+"\n"+`kind = "sphere"`), ".")
	assert.ErrorIs(t, err, scene.ErrNoCamera)

	_, err = Parse([]byte(demoDoc+"\n[[surface]]\nkind = \"torus\"\n"), ".")
	assert.ErrorContains(t, err, "unknown surface kind")

	_, err = Parse([]byte("camera = 5"), ".")
	assert.Error(t, err)
}
