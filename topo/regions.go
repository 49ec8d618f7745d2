// Copyright 2015 Dorival Pedroso and Raul Durand. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package topo

import (
	"log/slog"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
	"github.com/ljuillen/TopADD-2D-3D-Arbitrary-TopOpt-in-PETSc/inp"
	"github.com/ljuillen/TopADD-2D-3D-Arbitrary-TopOpt-in-PETSc/mesh"
)

// Region is the final classification of an element
type Region int

// regions
const (
	Design Region = iota // optimizable
	Solid                // solid, not optimizable
	Fixed                // next to supports
	Load                 // next to loads
	NumRegions
)

// String returns the region name as used in input files
func (o Region) String() string {
	switch o {
	case Design:
		return inp.RegionDesign
	case Solid:
		return inp.RegionSolid
	case Fixed:
		return inp.RegionFixed
	case Load:
		return inp.RegionLoad
	}
	return "unknown"
}

// ParseRegion returns the region with the given name
func ParseRegion(name string) (Region, error) {
	for r := Design; r < NumRegions; r++ {
		if r.String() == name {
			return r, nil
		}
	}
	return 0, inp.ConfigErr("unknown region %q", name)
}

// ParsePrecedence converts a list of region names
func ParsePrecedence(names []string) (prec []Region, err error) {
	seen := make(map[Region]bool)
	for _, name := range names {
		r, err := ParseRegion(name)
		if err != nil {
			return nil, err
		}
		if seen[r] {
			return nil, inp.ConfigErr("region %q appears twice in precedence list", name)
		}
		seen[r] = true
		prec = append(prec, r)
	}
	return
}

// DefaultPrecedence returns fixed > load > solid > design
func DefaultPrecedence() []Region {
	return []Region{Fixed, Load, Solid, Design}
}

// Geometries holds the geometry inputs of each region
type Geometries struct {
	Inputs    [NumRegions][]*inp.Geometry // loaded geometries
	Requested [NumRegions]bool            // region has files in the input data
}

// LoadGeometries reads the geometry files of all regions. Files that cannot be
// read are reported, logged and skipped; the corresponding region loses them.
func LoadGeometries(sim *inp.Simulation, log *slog.Logger) (geos *Geometries, errs []error) {
	geos = new(Geometries)
	for r := Design; r < NumRegions; r++ {
		for _, fn := range sim.RegionFiles(r.String()) {
			geos.Requested[r] = true
			g, err := inp.ReadGeo("", fn)
			if err != nil {
				log.Warn("region treated as empty", "region", r.String(), "file", fn, "err", err)
				errs = append(errs, err)
				continue
			}
			geos.Inputs[r] = append(geos.Inputs[r], g)
		}
	}
	return
}

// Add adds a geometry to region r
func (o *Geometries) Add(r Region, g *inp.Geometry) {
	o.Inputs[r] = append(o.Inputs[r], g)
	o.Requested[r] = true
}

// Regions holds the classification of the owned elements and the
// node-level aggregation of element densities
type Regions struct {
	Pair *mesh.Pair // grids

	// raw membership in each region; may overlap. [nloc]
	Design []float64
	Solid  []float64
	Fixed  []float64
	Load   []float64

	// final classification. [nloc]
	Kind []Region

	// nodes. [nnodloc]
	NodeDensity []float64 // average density of incident elements
	NodeCounts  []float64 // number of incident elements

	// global number of elements of each final kind
	Count [NumRegions]int

	work []float64 // global nodal buffer
}

// Classify classifies the owned elements of p by testing each element center
// against the geometries of each region in precedence order; the first region
// that contains the center wins and unmatched elements are design elements.
// Regions with loaded geometries matching no element are reported and logged. Collective
//  Note: the returned error is of kind inp.ErrConfig; geometry problems are
//        reported in errs and never stop the classification
func Classify(p *mesh.Pair, geos *Geometries, prec []Region, log *slog.Logger) (o *Regions, errs []error, err error) {

	// check precedence
	seen := make(map[Region]bool)
	for _, r := range prec {
		if r < Design || r >= NumRegions || seen[r] {
			return nil, nil, inp.ConfigErr("invalid precedence list %v", prec)
		}
		seen[r] = true
	}

	// spatial indices
	var idx [NumRegions]*shapeIndex
	for r := Design; r < NumRegions; r++ {
		idx[r] = newShapeIndex(p.Ndim, geos.Inputs[r])
	}

	// allocate
	nloc := p.Elems.Nlocal()
	o = &Regions{Pair: p, Kind: make([]Region, nloc)}
	o.Design = make([]float64, nloc)
	o.Solid = make([]float64, nloc)
	o.Fixed = make([]float64, nloc)
	o.Load = make([]float64, nloc)
	raw := [NumRegions][]float64{o.Design, o.Solid, o.Fixed, o.Load}

	// membership
	p.Elems.Each(func(loc, i, j, k int) {
		x := p.ElemCenter(i, j, k)
		for r := Design; r < NumRegions; r++ {
			if idx[r].contains(x) {
				raw[r][loc] = 1
			}
		}
		o.Kind[loc] = Design
		for _, r := range prec {
			if raw[r][loc] > 0 {
				o.Kind[loc] = r
				break
			}
		}
	})

	// count matches
	counts := make([]float64, 2*NumRegions)
	for loc, kind := range o.Kind {
		counts[kind]++
		for r := Design; r < NumRegions; r++ {
			counts[int(NumRegions)+int(r)] += raw[r][loc]
		}
	}
	p.Comm.AllReduceSum(counts, counts)
	for r := Design; r < NumRegions; r++ {
		o.Count[r] = int(counts[r])
		if len(geos.Inputs[r]) > 0 && counts[int(NumRegions)+int(r)] == 0 {
			e := inp.GeometryErr("region %q matches no element", r.String())
			log.Warn("region treated as empty", "region", r.String(), "err", e)
			errs = append(errs, e)
		}
	}

	// node counts
	o.NodeCounts = make([]float64, p.Nodes.Nlocal())
	o.NodeDensity = make([]float64, p.Nodes.Nlocal())
	o.work = make([]float64, p.Nodes.Nglobal())
	p.Elems.Each(func(loc, i, j, k int) {
		for _, n := range p.ElemNodes(i, j, k) {
			o.work[n]++
		}
	})
	p.Comm.AllReduceSum(o.work, o.work)
	p.Nodes.Each(func(loc, i, j, k int) {
		o.NodeCounts[loc] = o.work[p.Nodes.Index(i, j, k)]
	})
	return
}

// Passive returns a 0/1 field marking the elements whose final kind is not design
func (o *Regions) Passive() (v []float64) {
	v = make([]float64, len(o.Kind))
	for i, kind := range o.Kind {
		if kind != Design {
			v[i] = 1
		}
	}
	return
}

// UpdateNodeDensity sums the element densities into the incident nodes, over
// all ranks, and divides by the number of incident elements. Collective
//  Note: errors are of kind ErrAllocation
func (o *Regions) UpdateNodeDensity(xPhys []float64) error {
	p := o.Pair
	err := agree(p.Comm, checkLen("xPhys", xPhys, len(o.Kind)), "node density")
	if err != nil {
		return err
	}
	for i := range o.work {
		o.work[i] = 0
	}
	p.Elems.Each(func(loc, i, j, k int) {
		for _, n := range p.ElemNodes(i, j, k) {
			o.work[n] += xPhys[loc]
		}
	})
	p.Comm.AllReduceSum(o.work, o.work)
	p.Nodes.Each(func(loc, i, j, k int) {
		o.NodeDensity[loc] = o.work[p.Nodes.Index(i, j, k)] / o.NodeCounts[loc]
	})
	return nil
}

// spatial index ///////////////////////////////////////////////////////////////////////////////////

// indexedShape holds one shape prepared for point queries. The embedded
// footprint lies in the x-y plane
type indexedShape struct {
	geom.Polygonal
	zmin, zmax float64 // vertical extent
}

// shapeIndex holds the shapes of one region in an R-tree
type shapeIndex struct {
	ndim int
	tree *rtree.Rtree
	size int
	eps  float64
}

// newShapeIndex builds the R-tree of all shapes in geos
func newShapeIndex(ndim int, geos []*inp.Geometry) (o *shapeIndex) {
	o = &shapeIndex{ndim: ndim, tree: rtree.NewTree(25, 50)}
	for _, g := range geos {
		for _, s := range g.Shapes {
			item := new(indexedShape)
			switch s.Type {
			case inp.ShapeBox:
				item.Polygonal = &geom.Bounds{Min: geom.Point{X: s.Min[0], Y: s.Min[1]}, Max: geom.Point{X: s.Max[0], Y: s.Max[1]}}
			case inp.ShapePrism:
				path := make([]geom.Point, len(s.Poly))
				for i, v := range s.Poly {
					path[i] = geom.Point{X: v[0], Y: v[1]}
				}
				item.Polygonal = geom.Polygon{path}
			default:
				continue
			}
			_, _, _, _, item.zmin, item.zmax = s.Limits()
			o.tree.Insert(item)
			o.size++
			b := item.Bounds()
			w := b.Max.X - b.Min.X + b.Max.Y - b.Min.Y
			if w*1e-12 > o.eps {
				o.eps = w * 1e-12
			}
		}
	}
	return
}

// contains tells whether any shape contains point x
func (o *shapeIndex) contains(x [3]float64) bool {
	if o.size == 0 {
		return false
	}
	pt := geom.Point{X: x[0], Y: x[1]}
	query := &geom.Bounds{Min: geom.Point{X: x[0] - o.eps, Y: x[1] - o.eps}, Max: geom.Point{X: x[0] + o.eps, Y: x[1] + o.eps}}
	for _, item := range o.tree.SearchIntersect(query) {
		s := item.(*indexedShape)
		if o.ndim == 3 && (x[2] < s.zmin || x[2] > s.zmax) {
			continue
		}
		if pt.Within(s.Polygonal) != geom.Outside {
			return true
		}
	}
	return false
}
