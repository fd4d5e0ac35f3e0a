// Copyright (c) 2026, Tracekit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command tracekit renders a scene description to image files.
//
// Usage:
//
//	tracekit [-scene scene.toml] [-out frame.png] [-size 800x480]
//	         [-frames 1] [-threads N] [-fsaa 0|2|4] [-pt]
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/tracekit/tracekit/render"
	"github.com/tracekit/tracekit/scene"
	"github.com/tracekit/tracekit/scenefile"
	"github.com/tracekit/tracekit/scenes"
)

func main() {
	var (
		sceneFile = flag.String("scene", "", "TOML scene description (builtin demo if empty)")
		out       = flag.String("out", "frame.png", "output image file (.png or .bmp)")
		size      = flag.String("size", "800x480", "framebuffer dimensions WxH")
		frames    = flag.Int("frames", 1, "number of frames to render")
		threads   = flag.Int("threads", runtime.NumCPU(), "worker thread count")
		fsaa      = flag.Int("fsaa", 0, "antialiasing mode: 0, 2 or 4")
		pt        = flag.Bool("pt", false, "enable path-trace accumulation")
	)
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(log)

	if err := run(*sceneFile, *out, *size, *frames, *threads, *fsaa, *pt, log); err != nil {
		log.Error("render failed", "err", err)
		os.Exit(1)
	}
}

func run(sceneFile, out, size string, frames, threads, fsaa int, pt bool, log *slog.Logger) error {
	var w, h int
	if _, err := fmt.Sscanf(size, "%dx%d", &w, &h); err != nil || w <= 0 || h <= 0 {
		return fmt.Errorf("invalid -size %q", size)
	}

	data := scenes.Demo01()
	if sceneFile != "" {
		var err error
		data, err = scenefile.Load(sceneFile)
		if err != nil {
			return err
		}
	}

	mode := scene.FsaaNo
	switch fsaa {
	case 2:
		mode = scene.Fsaa2X
	case 4:
		mode = scene.Fsaa4X
	}

	sc, err := scene.New(data, w, h, w, &scene.Config{
		Threads: threads,
		Fsaa:    mode,
		Backend: &render.Scalar{},
		Logger:  log,
	})
	if err != nil {
		return err
	}
	defer sc.Close()

	if pt {
		sc.SetPtOn(true)
	}

	open := func(name string) (io.WriteCloser, error) {
		return os.Create(name)
	}

	for i := 0; i < frames; i++ {
		start := time.Now()
		if err := sc.Render(int64(i) * 50); err != nil {
			return err
		}
		log.Info("frame rendered", "frame", i, "took", time.Since(start))

		name := out
		if frames > 1 {
			name = frameName(out, i)
		}
		if err := sc.SaveFrame(name, open); err != nil {
			return err
		}
	}

	return nil
}

// frameName numbers the output file for multi-frame runs.
func frameName(out string, i int) string {
	dot := strings.LastIndexByte(out, '.')
	if dot < 0 {
		return fmt.Sprintf("%s_%04d", out, i)
	}
	return fmt.Sprintf("%s_%04d%s", out[:dot], i, out[dot:])
}
