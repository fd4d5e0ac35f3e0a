// Copyright (c) 2026, Tracekit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracekit/tracekit/scene"
	"github.com/tracekit/tracekit/scenes"
)

func renderDemo(t *testing.T, cfg *scene.Config) *scene.Scene {
	t.Helper()

	if cfg == nil {
		cfg = &scene.Config{}
	}
	cfg.Backend = &Scalar{}

	sc, err := scene.New(scenes.Demo01(), 96, 64, 96, cfg)
	require.NoError(t, err)
	t.Cleanup(sc.Close)

	require.NoError(t, sc.Render(0))
	return sc
}

func TestRenderDemoFrame(t *testing.T) {
	sc := renderDemo(t, &scene.Config{Threads: 2})

	fram := sc.Frame()
	w, h := sc.Dims()

	lit := 0
	for y := 0; y < h; y++ {
		row := sc.RowStart(y)
		for x := 0; x < w; x++ {
			if fram[row+x]&0xFFFFFF != 0 {
				lit++
			}
		}
	}

	// the ground plane and spheres cover a large part of the frame
	assert.Greater(t, lit, w*h/4, "frame mostly black")
}

func TestRenderDeterministicAcrossThreads(t *testing.T) {
	one := renderDemo(t, &scene.Config{Threads: 1})
	four := renderDemo(t, &scene.Config{Threads: 4})

	assert.Equal(t, one.Frame(), four.Frame(),
		"thread count changed the image")
}

func TestRenderFsaaModes(t *testing.T) {
	plain := renderDemo(t, &scene.Config{Fsaa: scene.FsaaNo})
	smooth := renderDemo(t, &scene.Config{Fsaa: scene.Fsaa4X})

	// antialiasing changes edge pixels but not the overall coverage
	diff := 0
	for i := range plain.Frame() {
		if plain.Frame()[i] != smooth.Frame()[i] {
			diff++
		}
	}
	assert.Greater(t, diff, 0, "4x sampling produced an identical image")
}

func TestRenderAccumulation(t *testing.T) {
	sc := renderDemo(t, &scene.Config{})
	sc.SetPtOn(true)

	require.NoError(t, sc.Render(0))
	require.NoError(t, sc.Render(0))

	_, _, _, _, count := sc.PtPlanes()
	assert.Equal(t, float32(2), count)
}

func TestSampleOffsets(t *testing.T) {
	assert.Len(t, sampleOffsets(scene.FsaaNo), 1)
	assert.Len(t, sampleOffsets(scene.Fsaa2X), 2)
	assert.Len(t, sampleOffsets(scene.Fsaa4X), 4)
}
