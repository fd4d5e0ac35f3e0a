// Copyright (c) 2026, Tracekit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package scenefile loads TOML scene descriptions into the scene
// data model. A document holds one camera, lights, surfaces and
// nested arrays with relations; texture references resolve against
// the document's directory.
package scenefile

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	_ "image/jpeg"
	_ "image/png"

	"github.com/pelletier/go-toml/v2"
	_ "golang.org/x/image/bmp"

	"github.com/tracekit/tracekit/geom"
	"github.com/tracekit/tracekit/scene"
)

// file-level document structures mapped by the TOML decoder

type vec3 [3]float32

type sideDoc struct {
	Tag string   `toml:"tag"`
	Col *int64   `toml:"col"`
	Tex string   `toml:"tex"`
	Dff *float32 `toml:"dff"`
	Spc *float32 `toml:"spc"`
	Pow *float32 `toml:"pow"`
	Rfl *float32 `toml:"rfl"`
	Trn *float32 `toml:"trn"`
	Rfr *float32 `toml:"rfr"`
	Ext *float32 `toml:"ext"`
	Scl *[2]float32
	Rot float32
	Pos [2]float32
}

type surfaceDoc struct {
	Kind string `toml:"kind"`

	Pos vec3  `toml:"pos"`
	Rot vec3  `toml:"rot"`
	Scl *vec3 `toml:"scl"`

	Min *vec3 `toml:"min"`
	Max *vec3 `toml:"max"`

	Rad float32 `toml:"rad"`
	Rat float32 `toml:"rat"`
	Par float32 `toml:"par"`
	Hyp float32 `toml:"hyp"`
	Pr1 float32 `toml:"pr1"`
	Pr2 float32 `toml:"pr2"`

	Outer *sideDoc `toml:"outer"`
	Inner *sideDoc `toml:"inner"`
}

type lightDoc struct {
	Pos vec3       `toml:"pos"`
	Col int64      `toml:"col"`
	Lum [2]float32 `toml:"lum"`
	Atn [4]float32 `toml:"atn"`
}

type cameraDoc struct {
	Pos vec3       `toml:"pos"`
	Rot vec3       `toml:"rot"`
	Col int64      `toml:"col"`
	Lum float32    `toml:"lum"`
	Dps [3]float32 `toml:"dps"`
	Drt [3]float32 `toml:"drt"`
	Pov float32    `toml:"pov"`
}

type relationDoc struct {
	Obj1 int32  `toml:"obj1"`
	Obj2 int32  `toml:"obj2"`
	Rel  string `toml:"rel"`
}

type arrayDoc struct {
	Pos vec3  `toml:"pos"`
	Rot vec3  `toml:"rot"`
	Scl *vec3 `toml:"scl"`

	Surfaces  []surfaceDoc  `toml:"surface"`
	Arrays    []arrayDoc    `toml:"array"`
	Relations []relationDoc `toml:"relation"`
}

type sceneDoc struct {
	Camera    *cameraDoc    `toml:"camera"`
	Lights    []lightDoc    `toml:"light"`
	Surfaces  []surfaceDoc  `toml:"surface"`
	Arrays    []arrayDoc    `toml:"array"`
	Relations []relationDoc `toml:"relation"`
}

var surfaceKinds = map[string]geom.Tag{
	"plane":           geom.TagPlane,
	"cylinder":        geom.TagCylinder,
	"sphere":          geom.TagSphere,
	"cone":            geom.TagCone,
	"paraboloid":      geom.TagParaboloid,
	"hyperboloid":     geom.TagHyperboloid,
	"paracylinder":    geom.TagParaCylinder,
	"hypercylinder":   geom.TagHyperCylinder,
	"hyperparaboloid": geom.TagHyperParaboloid,
}

var relationKinds = map[string]int32{
	"index_array": geom.RelIndexArray,
	"minus_inner": geom.RelMinusInner,
	"minus_outer": geom.RelMinusOuter,
	"minus_accum": geom.RelMinusAccum,
	"bound_array": geom.RelBoundArray,
	"untie_array": geom.RelUntieArray,
	"bound_index": geom.RelBoundIndex,
	"untie_index": geom.RelUntieIndex,
}

// Load reads and converts the named TOML scene description. Texture
// references resolve relative to the file's directory.
func Load(name string) (*scene.SceneData, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, err
	}
	return Parse(data, filepath.Dir(name))
}

// Parse converts a TOML scene description, resolving texture
// references against dir.
func Parse(data []byte, dir string) (*scene.SceneData, error) {
	var doc sceneDoc
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("scene description: %w", err)
	}

	if doc.Camera == nil {
		return nil, scene.ErrNoCamera
	}

	ld := &loader{dir: dir}

	root := &scene.ObjectData{
		Tag:   geom.TagArray,
		Trm:   identTransform(),
		Array: &scene.ArrayData{},
	}

	cam := doc.Camera
	pov := cam.Pov
	camData := &scene.ObjectData{
		Tag: geom.TagCamera,
		Trm: transform(cam.Pos, cam.Rot, nil),
		Camera: &scene.CameraData{
			Col: scene.Col{Val: uint32(cam.Col)},
			Lum: [1]float32{cam.Lum},
			Dps: cam.Dps,
			Drt: cam.Drt,
			Vpt: [1]float32{pov},
		},
	}
	root.Array.Objs = append(root.Array.Objs, camData)

	for i := range doc.Lights {
		l := &doc.Lights[i]
		root.Array.Objs = append(root.Array.Objs, &scene.ObjectData{
			Tag: geom.TagLight,
			Trm: transform(l.Pos, vec3{}, nil),
			Light: &scene.LightData{
				Col: scene.Col{Val: uint32(l.Col)},
				Lum: l.Lum,
				Atn: l.Atn,
			},
		})
	}

	objs, err := ld.convertChildren(doc.Surfaces, doc.Arrays)
	if err != nil {
		return nil, err
	}
	root.Array.Objs = append(root.Array.Objs, objs...)

	rels, err := convertRelations(doc.Relations)
	if err != nil {
		return nil, err
	}
	root.Array.Rels = rels

	return &scene.SceneData{Root: root}, nil
}

type loader struct {
	dir string

	// textures are loaded once and shared
	texs map[string]*scene.Tex
}

func (ld *loader) convertChildren(srfs []surfaceDoc, arrs []arrayDoc) ([]*scene.ObjectData, error) {
	var objs []*scene.ObjectData

	for i := range srfs {
		od, err := ld.convertSurface(&srfs[i])
		if err != nil {
			return nil, err
		}
		objs = append(objs, od)
	}

	for i := range arrs {
		od, err := ld.convertArray(&arrs[i])
		if err != nil {
			return nil, err
		}
		objs = append(objs, od)
	}

	return objs, nil
}

func (ld *loader) convertArray(a *arrayDoc) (*scene.ObjectData, error) {
	objs, err := ld.convertChildren(a.Surfaces, a.Arrays)
	if err != nil {
		return nil, err
	}
	rels, err := convertRelations(a.Relations)
	if err != nil {
		return nil, err
	}

	return &scene.ObjectData{
		Tag: geom.TagArray,
		Trm: transform(a.Pos, a.Rot, a.Scl),
		Array: &scene.ArrayData{
			Objs: objs,
			Rels: rels,
		},
	}, nil
}

func (ld *loader) convertSurface(s *surfaceDoc) (*scene.ObjectData, error) {
	tag, ok := surfaceKinds[s.Kind]
	if !ok {
		return nil, fmt.Errorf("scene description: unknown surface kind %q", s.Kind)
	}

	sd := &scene.SurfaceData{
		Min: geom.Vec4{-geom.Inf, -geom.Inf, -geom.Inf},
		Max: geom.Vec4{+geom.Inf, +geom.Inf, +geom.Inf},
		Rad: s.Rad,
		Rat: s.Rat,
		Par: s.Par,
		Hyp: s.Hyp,
		Pr1: s.Pr1,
		Pr2: s.Pr2,
	}

	if s.Min != nil {
		for k := 0; k < 3; k++ {
			sd.Min[k] = s.Min[k]
		}
	}
	if s.Max != nil {
		for k := 0; k < 3; k++ {
			sd.Max[k] = s.Max[k]
		}
	}

	var err error
	sd.OuterSide, err = ld.convertSide(s.Outer)
	if err != nil {
		return nil, err
	}
	sd.InnerSide, err = ld.convertSide(s.Inner)
	if err != nil {
		return nil, err
	}

	return &scene.ObjectData{
		Tag:     tag,
		Trm:     transform(s.Pos, s.Rot, s.Scl),
		Surface: sd,
	}, nil
}

// convertSide resolves one surface side; a missing side falls back to
// a matte white.
func (ld *loader) convertSide(sd *sideDoc) (scene.SideData, error) {
	out := scene.SideData{Scl: [2]float32{1, 1}}
	mat := &scene.MaterialData{
		Lgt: [3]float32{1, 0, 1},
		Prp: [4]float32{0, 0, 1, 0},
		Tex: scene.Tex{Col: scene.Col{Val: 0xFFFFFF}},
	}
	out.Mat = mat

	if sd == nil {
		return out, nil
	}

	switch sd.Tag {
	case "", "plain":
		mat.Tag = scene.MatPlain
	case "light":
		mat.Tag = scene.MatLight
	case "metal":
		mat.Tag = scene.MatMetal
	default:
		return out, fmt.Errorf("scene description: unknown material tag %q", sd.Tag)
	}

	if sd.Col != nil {
		mat.Tex.Col.Val = uint32(*sd.Col)
	}
	if sd.Tex != "" {
		tex, err := ld.loadTexture(sd.Tex)
		if err != nil {
			return out, err
		}
		mat.Tex = *tex
	}

	set := func(dst *float32, src *float32) {
		if src != nil {
			*dst = *src
		}
	}
	set(&mat.Lgt[0], sd.Dff)
	set(&mat.Lgt[1], sd.Spc)
	set(&mat.Lgt[2], sd.Pow)
	set(&mat.Prp[0], sd.Rfl)
	set(&mat.Prp[1], sd.Trn)
	set(&mat.Prp[2], sd.Rfr)
	set(&mat.Prp[3], sd.Ext)

	if sd.Scl != nil {
		out.Scl = *sd.Scl
	}
	out.Rot = sd.Rot
	out.Pos = sd.Pos

	return out, nil
}

// loadTexture decodes an image file into an ARGB texel buffer.
func (ld *loader) loadTexture(name string) (*scene.Tex, error) {
	if ld.texs == nil {
		ld.texs = map[string]*scene.Tex{}
	}
	if tex, ok := ld.texs[name]; ok {
		return tex, nil
	}

	f, err := os.Open(filepath.Join(ld.dir, name))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("texture %s: %w", name, err)
	}

	b := img.Bounds()
	tex := &scene.Tex{
		Name: name,
		XDim: int32(b.Dx()),
		YDim: int32(b.Dy()),
	}
	tex.Pixels = make([]uint32, b.Dx()*b.Dy())

	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			tex.Pixels[i] = 0xFF000000 |
				uint32(r>>8)<<16 | uint32(g>>8)<<8 | uint32(bl>>8)
			i++
		}
	}

	ld.texs[name] = tex
	return tex, nil
}

func convertRelations(docs []relationDoc) ([]scene.Relation, error) {
	var rels []scene.Relation
	for i := range docs {
		code, ok := relationKinds[docs[i].Rel]
		if !ok {
			return nil, fmt.Errorf("scene description: unknown relation %q", docs[i].Rel)
		}
		rels = append(rels, scene.Relation{
			Obj1: docs[i].Obj1,
			Obj2: docs[i].Obj2,
			Rel:  code,
		})
	}
	return rels, nil
}

func transform(pos, rot vec3, scl *vec3) geom.Transform {
	t := identTransform()
	for k := 0; k < 3; k++ {
		t.Pos[k] = pos[k]
		t.Rot[k] = rot[k]
		if scl != nil {
			t.Scl[k] = scl[k]
		}
	}
	return t
}

func identTransform() geom.Transform {
	return geom.Transform{Scl: geom.Vec4{1, 1, 1, 1}}
}
