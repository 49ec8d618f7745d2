// Copyright 2015 Dorival Pedroso and Raul Durand. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// package mesh implements the co-partitioned structured grids of nodes and elements
package mesh

import (
	"sort"

	"github.com/cpmech/gosl/chk"
)

// DA holds a structured grid of points distributed over a Cartesian grid of processes.
// Each process owns a box of points; boxes are given by per-axis ownership counts.
// Points and processes are numbered with x running fastest.
type DA struct {
	Ndim   int      // space dimension (2 or 3). z has one point in 2D
	M      [3]int   // global number of points along each axis
	P      [3]int   // number of processes along each axis
	L      [3][]int // number of points owned by each process along each axis
	Rank   int      // rank of this process
	Coords [3]int   // coordinates of this process in the process grid
	Start  [3]int   // first owned point along each axis
	Count  [3]int   // number of owned points along each axis

	offs [3][]int // offs[d][p] = first point of process p along axis d; len == P[d]+1
}

// NewDA returns a new distributed grid
//  Input:
//   ndim -- space dimension
//   l    -- ownership counts along each axis; len(l[d]) is the number of processes along d
//   rank -- rank of this process
func NewDA(ndim int, l [3][]int, rank int) (o *DA, err error) {
	o = new(DA)
	o.Ndim = ndim
	o.Rank = rank
	for d := 0; d < 3; d++ {
		o.P[d] = len(l[d])
		if o.P[d] < 1 {
			return nil, chk.Err("axis %d has no processes", d)
		}
		o.L[d] = make([]int, o.P[d])
		o.offs[d] = make([]int, o.P[d]+1)
		for p, n := range l[d] {
			if n < 1 {
				return nil, chk.Err("process %d owns no points along axis %d", p, d)
			}
			o.L[d][p] = n
			o.offs[d][p+1] = o.offs[d][p] + n
		}
		o.M[d] = o.offs[d][o.P[d]]
	}
	nproc := o.P[0] * o.P[1] * o.P[2]
	if rank < 0 || rank >= nproc {
		return nil, chk.Err("rank %d is out of process grid with %d processes", rank, nproc)
	}
	o.Coords = [3]int{rank % o.P[0], (rank / o.P[0]) % o.P[1], rank / (o.P[0] * o.P[1])}
	for d := 0; d < 3; d++ {
		o.Start[d] = o.offs[d][o.Coords[d]]
		o.Count[d] = o.L[d][o.Coords[d]]
	}
	return
}

// Nglobal returns the global number of points
func (o *DA) Nglobal() int {
	return o.M[0] * o.M[1] * o.M[2]
}

// Nlocal returns the number of points owned by this process
func (o *DA) Nlocal() int {
	return o.Count[0] * o.Count[1] * o.Count[2]
}

// Nprocs returns the number of processes in the process grid
func (o *DA) Nprocs() int {
	return o.P[0] * o.P[1] * o.P[2]
}

// Index returns the natural global index of point (i,j,k)
func (o *DA) Index(i, j, k int) int {
	return i + o.M[0]*(j+o.M[1]*k)
}

// Ijk returns the grid indices of the point with natural global index n
func (o *DA) Ijk(n int) (i, j, k int) {
	i = n % o.M[0]
	j = (n / o.M[0]) % o.M[1]
	k = n / (o.M[0] * o.M[1])
	return
}

// OwnerAlong returns the process coordinate owning index i along axis d
func (o *DA) OwnerAlong(d, i int) int {
	return sort.Search(o.P[d], func(p int) bool { return o.offs[d][p+1] > i })
}

// Owner returns the rank owning point (i,j,k)
func (o *DA) Owner(i, j, k int) int {
	return o.RankOf(o.OwnerAlong(0, i), o.OwnerAlong(1, j), o.OwnerAlong(2, k))
}

// RankOf returns the rank of the process with grid coordinates (px,py,pz)
func (o *DA) RankOf(px, py, pz int) int {
	return px + o.P[0]*(py+o.P[1]*pz)
}

// Owns tells whether this process owns point (i,j,k)
func (o *DA) Owns(i, j, k int) bool {
	return i >= o.Start[0] && i < o.Start[0]+o.Count[0] &&
		j >= o.Start[1] && j < o.Start[1]+o.Count[1] &&
		k >= o.Start[2] && k < o.Start[2]+o.Count[2]
}

// Local returns the local index of the owned point (i,j,k)
func (o *DA) Local(i, j, k int) int {
	return (i - o.Start[0]) + o.Count[0]*((j-o.Start[1])+o.Count[1]*(k-o.Start[2]))
}

// Each calls fn for every owned point in local order
func (o *DA) Each(fn func(loc, i, j, k int)) {
	loc := 0
	for k := o.Start[2]; k < o.Start[2]+o.Count[2]; k++ {
		for j := o.Start[1]; j < o.Start[1]+o.Count[1]; j++ {
			for i := o.Start[0]; i < o.Start[0]+o.Count[0]; i++ {
				fn(loc, i, j, k)
				loc++
			}
		}
	}
}

// LocalToGlobal returns the natural global indices of all owned points in local order
func (o *DA) LocalToGlobal() (ids []int) {
	ids = make([]int, o.Nlocal())
	o.Each(func(loc, i, j, k int) {
		ids[loc] = o.Index(i, j, k)
	})
	return
}
