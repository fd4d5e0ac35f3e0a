// Copyright (c) 2026, Tracekit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command traceview opens an interactive viewer window for a scene
// description. WASD and the arrow keys drive the camera, Tab switches
// cameras, P toggles path-trace accumulation. A scene file given with
// -scene reloads automatically when it changes on disk.
package main

import (
	"flag"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hajimehoshi/ebiten/v2"

	"github.com/tracekit/tracekit/render"
	"github.com/tracekit/tracekit/scene"
	"github.com/tracekit/tracekit/scenefile"
	"github.com/tracekit/tracekit/scenes"
)

func main() {
	var (
		sceneFile = flag.String("scene", "", "TOML scene description (builtin demo if empty)")
		width     = flag.Int("w", 640, "window width")
		height    = flag.Int("h", 400, "window height")
		threads   = flag.Int("threads", runtime.NumCPU(), "worker thread count")
	)
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(log)

	v := &viewer{
		sceneFile: *sceneFile,
		width:     *width,
		height:    *height,
		threads:   *threads,
		log:       log,
		start:     time.Now(),
	}

	if err := v.loadScene(); err != nil {
		log.Error("scene load failed", "err", err)
		os.Exit(1)
	}

	if *sceneFile != "" {
		if err := v.watch(); err != nil {
			log.Warn("scene watch disabled", "err", err)
		}
	}

	ebiten.SetWindowSize(*width, *height)
	ebiten.SetWindowTitle("traceview")

	if err := ebiten.RunGame(v); err != nil {
		log.Error("viewer failed", "err", err)
		os.Exit(1)
	}
}

type viewer struct {
	sceneFile string
	width     int
	height    int
	threads   int
	log       *slog.Logger
	start     time.Time

	sc     *scene.Scene
	img    *ebiten.Image
	pix    []byte
	reload chan struct{}
}

func (v *viewer) loadScene() error {
	data := scenes.Demo01()
	if v.sceneFile != "" {
		var err error
		data, err = scenefile.Load(v.sceneFile)
		if err != nil {
			return err
		}
	}

	sc, err := scene.New(data, v.width, v.height, v.width, &scene.Config{
		Threads: v.threads,
		Backend: &render.Scalar{},
		Logger:  v.log,
	})
	if err != nil {
		return err
	}

	if v.sc != nil {
		v.sc.Close()
	}
	v.sc = sc
	return nil
}

// watch reloads the scene when its file changes on disk.
func (v *viewer) watch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(v.sceneFile); err != nil {
		w.Close()
		return err
	}

	v.reload = make(chan struct{}, 1)

	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					select {
					case v.reload <- struct{}{}:
					default:
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				v.log.Warn("scene watch", "err", err)
			}
		}
	}()

	return nil
}

var actionKeys = map[ebiten.Key]int{
	ebiten.KeyW:     scene.CameraMoveForward,
	ebiten.KeyS:     scene.CameraMoveBack,
	ebiten.KeyA:     scene.CameraMoveLeft,
	ebiten.KeyD:     scene.CameraMoveRight,
	ebiten.KeyQ:     scene.CameraMoveDown,
	ebiten.KeyE:     scene.CameraMoveUp,
	ebiten.KeyLeft:  scene.CameraRotateLeft,
	ebiten.KeyRight: scene.CameraRotateRight,
	ebiten.KeyUp:    scene.CameraRotateUp,
	ebiten.KeyDown:  scene.CameraRotateDown,
}

func (v *viewer) Update() error {
	select {
	case <-v.reload:
		if err := v.loadScene(); err != nil {
			v.log.Error("scene reload failed", "err", err)
		} else {
			v.log.Info("scene reloaded", "file", v.sceneFile)
		}
	default:
	}

	now := time.Since(v.start).Milliseconds()

	for key, action := range actionKeys {
		if ebiten.IsKeyPressed(key) {
			v.sc.Update(now, action)
		}
	}
	if ebiten.IsKeyPressed(ebiten.KeyTab) {
		v.sc.NextCam()
	}
	if ebiten.IsKeyPressed(ebiten.KeyP) {
		v.sc.SetPtOn(!v.sc.PtOn())
	}

	return v.sc.Render(now)
}

func (v *viewer) Draw(screen *ebiten.Image) {
	fram := v.sc.Frame()
	w, h := v.sc.Dims()

	if v.pix == nil {
		v.pix = make([]byte, w*h*4)
		v.img = ebiten.NewImage(w, h)
	}

	for y := 0; y < h; y++ {
		row := v.sc.RowStart(y)
		o := y * w * 4
		for x := 0; x < w; x++ {
			c := fram[row+x]
			v.pix[o+0] = byte(c >> 16)
			v.pix[o+1] = byte(c >> 8)
			v.pix[o+2] = byte(c)
			v.pix[o+3] = 0xFF
			o += 4
		}
	}

	v.img.WritePixels(v.pix)
	screen.DrawImage(v.img, nil)
}

func (v *viewer) Layout(outsideWidth, outsideHeight int) (int, int) {
	return v.width, v.height
}
