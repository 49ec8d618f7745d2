// Copyright 2015 Dorival Pedroso and Raul Durand. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package inp

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"

	"github.com/cpmech/gosl/chk"
	"github.com/cpmech/gosl/utl"
)

// shape types
const (
	ShapeBox   = "box"   // axis-aligned box given by two opposite corners
	ShapePrism = "prism" // polygon in the x-y plane extruded from zmin to zmax
)

// Shape holds one solid primitive of a region
type Shape struct {
	Type string      `json:"type"` // "box" or "prism"
	Min  []float64   `json:"min"`  // box: lower corner (size==2 or 3)
	Max  []float64   `json:"max"`  // box: upper corner (size==2 or 3)
	Poly [][]float64 `json:"poly"` // prism: [nverts][2] footprint vertices; closed implicitly
	Zmin float64     `json:"zmin"` // prism: bottom
	Zmax float64     `json:"zmax"` // prism: top
}

// Geometry holds the solid primitives describing one region file
type Geometry struct {

	// from JSON
	Desc   string   `json:"desc"`   // description; e.g. "left fixture"
	Shapes []*Shape `json:"shapes"` // primitives

	// derived
	FnamePath  string  // complete filename path
	Xmin, Xmax float64 // min and max x-coordinate
	Ymin, Ymax float64 // min and max y-coordinate
	Zmin, Zmax float64 // min and max z-coordinate
}

// ReadGeo reads a region geometry file
//  Note: errors are of kind ErrGeometry
func ReadGeo(dir, fn string) (o *Geometry, err error) {

	// read file
	fnpath := filepath.Join(dir, fn)
	b, err := os.ReadFile(fnpath)
	if err != nil {
		return nil, GeometryErr("cannot read geometry file %q", fnpath)
	}

	// decode
	o, err = DecodeGeo(b)
	if err != nil {
		return nil, GeometryErr("geometry file %q: %v", fnpath, err)
	}
	o.FnamePath = fnpath
	return
}

// DecodeGeo decodes and checks geometry data given in JSON format
func DecodeGeo(b []byte) (o *Geometry, err error) {

	// decode
	o = new(Geometry)
	err = json.Unmarshal(b, o)
	if err != nil {
		return nil, chk.Err("cannot unmarshal geometry data: %v", err)
	}

	// check and compute limits
	if len(o.Shapes) < 1 {
		return nil, chk.Err("geometry has no shapes")
	}
	o.Xmin, o.Ymin, o.Zmin = math.Inf(1), math.Inf(1), math.Inf(1)
	o.Xmax, o.Ymax, o.Zmax = math.Inf(-1), math.Inf(-1), math.Inf(-1)
	for i, s := range o.Shapes {
		err = s.check()
		if err != nil {
			return nil, chk.Err("shape # %d: %v", i, err)
		}
		xmin, xmax, ymin, ymax, zmin, zmax := s.Limits()
		o.Xmin, o.Xmax = utl.Min(o.Xmin, xmin), utl.Max(o.Xmax, xmax)
		o.Ymin, o.Ymax = utl.Min(o.Ymin, ymin), utl.Max(o.Ymax, ymax)
		o.Zmin, o.Zmax = utl.Min(o.Zmin, zmin), utl.Max(o.Zmax, zmax)
	}
	return
}

// Limits returns the bounding box of a shape. 2D boxes span all z
func (o *Shape) Limits() (xmin, xmax, ymin, ymax, zmin, zmax float64) {
	switch o.Type {
	case ShapeBox:
		xmin, xmax = o.Min[0], o.Max[0]
		ymin, ymax = o.Min[1], o.Max[1]
		zmin, zmax = math.Inf(-1), math.Inf(1)
		if len(o.Min) > 2 {
			zmin, zmax = o.Min[2], o.Max[2]
		}
	case ShapePrism:
		xmin, ymin = math.Inf(1), math.Inf(1)
		xmax, ymax = math.Inf(-1), math.Inf(-1)
		for _, p := range o.Poly {
			xmin, xmax = utl.Min(xmin, p[0]), utl.Max(xmax, p[0])
			ymin, ymax = utl.Min(ymin, p[1]), utl.Max(ymax, p[1])
		}
		zmin, zmax = o.Zmin, o.Zmax
	}
	return
}

// check checks the consistency of shape data
func (o *Shape) check() error {
	switch o.Type {
	case ShapeBox:
		if len(o.Min) < 2 || len(o.Min) > 3 || len(o.Min) != len(o.Max) {
			return chk.Err("box corners must have 2 or 3 coordinates each. len(min)=%d len(max)=%d", len(o.Min), len(o.Max))
		}
		for i := range o.Min {
			if o.Max[i] < o.Min[i] {
				return chk.Err("box upper corner is below lower corner along axis %d", i)
			}
		}
	case ShapePrism:
		if len(o.Poly) < 3 {
			return chk.Err("prism footprint needs at least 3 vertices. %d given", len(o.Poly))
		}
		for j, p := range o.Poly {
			if len(p) != 2 {
				return chk.Err("prism vertex # %d must have 2 coordinates", j)
			}
		}
		if o.Zmax < o.Zmin {
			return chk.Err("prism top is below bottom. zmin=%g zmax=%g", o.Zmin, o.Zmax)
		}
	default:
		return chk.Err("unknown shape type %q. options: box, prism", o.Type)
	}
	return nil
}
