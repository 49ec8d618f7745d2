// Copyright 2015 Dorival Pedroso and Raul Durand. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mesh

import (
	"math"

	"github.com/cpmech/gosl/io"
	"github.com/ljuillen/TopADD-2D-3D-Arbitrary-TopOpt-in-PETSc/comm"
	"github.com/ljuillen/TopADD-2D-3D-Arbitrary-TopOpt-in-PETSc/inp"
)

// Pair holds the nodal and element grids of one domain. Both grids share the
// process grid and the ownership ranges; along each axis, the last process
// owns one extra layer of nodes.
type Pair struct {
	Comm  comm.Comm  // communicator
	Ndim  int        // space dimension
	Xc    [6]float64 // domain corners: xmin, xmax, ymin, ymax, zmin, zmax
	H     [3]float64 // element sizes dx, dy, dz. dz == 0 in 2D
	Nlvls int        // number of multigrid levels, including this one
	Nodes *DA        // nodal grid
	Elems *DA        // element grid
}

// SetUp builds the co-partitioned grids for all ranks of c
//  Note: errors are of kind inp.ErrConfig
func SetUp(data inp.MeshData, c comm.Comm) (o *Pair, err error) {

	// dimension
	ndim := 3
	if data.Nel[2] == 0 {
		ndim = 2
	}

	// check input
	if data.Nlvls < 1 {
		return nil, inp.ConfigErr("number of multigrid levels must be at least 1. nlvls=%d", data.Nlvls)
	}
	if data.Nlvls > 30 {
		return nil, inp.ConfigErr("too many multigrid levels. nlvls=%d", data.Nlvls)
	}
	f := 1 << uint(data.Nlvls-1)
	var blocks [3]int
	blocks[2] = 1
	for d := 0; d < ndim; d++ {
		if data.Nel[d] <= 0 {
			return nil, inp.ConfigErr("number of elements along axis %d must be positive. nel=%v", d, data.Nel)
		}
		if data.Nel[d]%f != 0 {
			return nil, inp.ConfigErr("number of elements along axis %d (%d) is not divisible by 2^(nlvls-1) = %d", d, data.Nel[d], f)
		}
		xmin, xmax := data.Xc[2*d], data.Xc[2*d+1]
		if !(xmax > xmin) || math.IsInf(xmax-xmin, 0) {
			return nil, inp.ConfigErr("domain extent along axis %d is degenerate. xc=%v", d, data.Xc)
		}
		blocks[d] = data.Nel[d] / f
	}

	// process grid
	p, ok := ProcessGrid(ndim, blocks, data.Nel, c.Size())
	if !ok {
		return nil, inp.ConfigErr("cannot lay out %d ranks so that each one owns whole coarse blocks. coarse blocks = %v", c.Size(), blocks[:ndim])
	}

	// ownership ranges
	var lel [3][]int
	for d := 0; d < 3; d++ {
		lel[d] = distribute(blocks[d], p[d], f)
		if d >= ndim {
			lel[d] = []int{1}
		}
	}
	o, err = newPair(c, ndim, data.Xc, data.Nlvls, lel)
	if err != nil {
		return nil, err
	}

	// assert co-partitioning
	err = o.CheckCoPartition()
	if err != nil {
		return nil, err
	}
	return
}

// newPair returns a new pair given the element ownership counts
func newPair(c comm.Comm, ndim int, xc [6]float64, nlvls int, lel [3][]int) (o *Pair, err error) {
	o = &Pair{Comm: c, Ndim: ndim, Xc: xc, Nlvls: nlvls}
	var lnd [3][]int
	for d := 0; d < 3; d++ {
		lnd[d] = append([]int{}, lel[d]...)
		if d < ndim {
			lnd[d][len(lnd[d])-1]++
		}
	}
	o.Elems, err = NewDA(ndim, lel, c.Rank())
	if err != nil {
		return nil, inp.ConfigErr("element grid: %v", err)
	}
	o.Nodes, err = NewDA(ndim, lnd, c.Rank())
	if err != nil {
		return nil, inp.ConfigErr("nodal grid: %v", err)
	}
	for d := 0; d < ndim; d++ {
		o.H[d] = (xc[2*d+1] - xc[2*d]) / float64(o.Elems.M[d])
	}
	return
}

// ProcessGrid factorizes the number of ranks into a process grid such that every
// process owns at least one coarse block along each axis. Among the admissible
// grids, the one with the smallest largest-subdomain is selected, then the one
// with the smallest interface area. Returns ok == false if no grid is admissible.
func ProcessGrid(ndim int, blocks, nel [3]int, nranks int) (p [3]int, ok bool) {
	bestLoad, bestArea := math.MaxInt64, math.MaxInt64
	for px := 1; px <= nranks; px++ {
		if nranks%px != 0 {
			continue
		}
		for py := 1; py <= nranks/px; py++ {
			if (nranks/px)%py != 0 {
				continue
			}
			pz := nranks / (px * py)
			q := [3]int{px, py, pz}
			if ndim == 2 && pz != 1 {
				continue
			}
			admissible := true
			load, area := 1, 0
			for d := 0; d < ndim; d++ {
				if q[d] > blocks[d] {
					admissible = false
					break
				}
				load *= (blocks[d] + q[d] - 1) / q[d]
				face := 1
				for e := 0; e < ndim; e++ {
					if e != d {
						face *= nel[e]
					}
				}
				area += (q[d] - 1) * face
			}
			if !admissible {
				continue
			}
			if load < bestLoad || (load == bestLoad && area < bestArea) {
				bestLoad, bestArea = load, area
				p, ok = q, true
			}
		}
	}
	return
}

// distribute splits nblocks blocks of size bsize among np processes; the first
// processes take one extra block when the division is not exact
func distribute(nblocks, np, bsize int) (l []int) {
	l = make([]int, np)
	for i := 0; i < np; i++ {
		n := nblocks / np
		if i < nblocks%np {
			n++
		}
		l[i] = n * bsize
	}
	return
}

// CheckCoPartition checks that the nodal and element grids share the same
// partitioning. Collective: all ranks must call it and all get an error if any
// rank fails.
//  Note: errors are of kind inp.ErrConfig
func (o *Pair) CheckCoPartition() (err error) {
	err = o.checkLocal()
	failed := comm.Any(o.Comm, err != nil)
	if err != nil {
		return err
	}
	if failed {
		return inp.ConfigErr("nodal and element grids are not co-partitioned on another rank")
	}

	// global counts
	ne := comm.SumInt(o.Comm, o.Elems.Nlocal())
	nn := comm.SumInt(o.Comm, o.Nodes.Nlocal())
	if ne != o.Elems.Nglobal() || nn != o.Nodes.Nglobal() {
		return inp.ConfigErr("sum of local counts differs from global counts. elements: %d != %d. nodes: %d != %d", ne, o.Elems.Nglobal(), nn, o.Nodes.Nglobal())
	}
	return
}

// checkLocal performs the checks that do not need communication
func (o *Pair) checkLocal() error {
	if o.Nodes.P != o.Elems.P {
		return inp.ConfigErr("process grids differ. nodes: %v elements: %v", o.Nodes.P, o.Elems.P)
	}
	if o.Nodes.Nprocs() != o.Comm.Size() {
		return inp.ConfigErr("process grid %v does not match %d ranks", o.Nodes.P, o.Comm.Size())
	}
	if o.Nodes.Coords != o.Elems.Coords {
		return inp.ConfigErr("rank %d has different process coordinates. nodes: %v elements: %v", o.Comm.Rank(), o.Nodes.Coords, o.Elems.Coords)
	}
	for d := 0; d < 3; d++ {
		extra := 0
		if d < o.Ndim {
			extra = 1
		}
		if o.Nodes.M[d] != o.Elems.M[d]+extra {
			return inp.ConfigErr("axis %d: %d nodes for %d elements", d, o.Nodes.M[d], o.Elems.M[d])
		}

		// lowest-corner node of every element belongs to the element's owner
		for i := 0; i < o.Elems.M[d]; i++ {
			if o.Nodes.OwnerAlong(d, i) != o.Elems.OwnerAlong(d, i) {
				return inp.ConfigErr("axis %d: node %d and element %d have different owners", d, i, i)
			}
		}

		// extra node layer goes to the last process
		if extra == 1 && o.Nodes.OwnerAlong(d, o.Elems.M[d]) != o.Nodes.P[d]-1 {
			return inp.ConfigErr("axis %d: last node layer is not owned by the last process", d)
		}
	}
	return nil
}

// Hierarchy returns the pairs of all multigrid levels; [0] is this (finest) one.
// Coarser levels halve the number of elements along each axis and keep the
// process grid and the ownership of coarse blocks.
func (o *Pair) Hierarchy() (pairs []*Pair, err error) {
	pairs = make([]*Pair, o.Nlvls)
	pairs[0] = o
	for l := 1; l < o.Nlvls; l++ {
		f := 1 << uint(l)
		var lel [3][]int
		for d := 0; d < 3; d++ {
			lel[d] = make([]int, o.Elems.P[d])
			for p, n := range o.Elems.L[d] {
				lel[d][p] = n
				if d < o.Ndim {
					lel[d][p] = n / f
				}
			}
		}
		pairs[l], err = newPair(o.Comm, o.Ndim, o.Xc, o.Nlvls-l, lel)
		if err != nil {
			return nil, err
		}
	}
	return
}

// Nen returns the number of nodes per element
func (o *Pair) Nen() int {
	if o.Ndim == 2 {
		return 4
	}
	return 8
}

// ElemCenter returns the coordinates of the center of element (i,j,k)
func (o *Pair) ElemCenter(i, j, k int) (x [3]float64) {
	x[0] = o.Xc[0] + (float64(i)+0.5)*o.H[0]
	x[1] = o.Xc[2] + (float64(j)+0.5)*o.H[1]
	x[2] = o.Xc[4]
	if o.Ndim == 3 {
		x[2] += (float64(k) + 0.5) * o.H[2]
	}
	return
}

// NodeCoords returns the coordinates of node (i,j,k)
func (o *Pair) NodeCoords(i, j, k int) (x [3]float64) {
	x[0] = o.Xc[0] + float64(i)*o.H[0]
	x[1] = o.Xc[2] + float64(j)*o.H[1]
	x[2] = o.Xc[4] + float64(k)*o.H[2]
	return
}

// ElemNodes returns the natural global indices of the nodes of element (i,j,k)
// ordered counter-clockwise on the bottom face, then on the top face (3D)
func (o *Pair) ElemNodes(i, j, k int) (ids []int) {
	n := o.Nodes
	ids = []int{n.Index(i, j, k), n.Index(i+1, j, k), n.Index(i+1, j+1, k), n.Index(i, j+1, k)}
	if o.Ndim == 3 {
		ids = append(ids, n.Index(i, j, k+1), n.Index(i+1, j, k+1), n.Index(i+1, j+1, k+1), n.Index(i, j+1, k+1))
	}
	return
}

// Stats holds load balance statistics of the element grid
type Stats struct {
	NumRanks    int
	MinElements int
	MaxElements int
	AvgElements float64
	Imbalance   float64 // MaxElements / AvgElements
	MinNodes    int
	MaxNodes    int
}

// Stats computes load balance statistics. Collective
func (o *Pair) Stats() (s Stats) {
	ne, nn := float64(o.Elems.Nlocal()), float64(o.Nodes.Nlocal())
	s.NumRanks = o.Comm.Size()
	s.MinElements = int(comm.Min(o.Comm, ne))
	s.MaxElements = int(comm.Max(o.Comm, ne))
	s.MinNodes = int(comm.Min(o.Comm, nn))
	s.MaxNodes = int(comm.Max(o.Comm, nn))
	s.AvgElements = float64(o.Elems.Nglobal()) / float64(s.NumRanks)
	s.Imbalance = float64(s.MaxElements) / s.AvgElements
	return
}

// String returns a summary of the grids
func (o *Pair) String() string {
	return io.Sf("%dD grids: %v elements, %v nodes, %v processes, %d levels, h=%v", o.Ndim, o.Elems.M[:o.Ndim], o.Nodes.M[:o.Ndim], o.Elems.P[:o.Ndim], o.Nlvls, o.H[:o.Ndim])
}
