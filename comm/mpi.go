// Copyright 2015 Dorival Pedroso and Raul Durand. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build mpi

package comm

import "github.com/cpmech/gosl/mpi"

// MPI implements Comm with the world communicator of gosl/mpi
type MPI struct {
	c   *mpi.Communicator
	buf []float64 // copy of orig; MPI reductions cannot work in place
}

// Start initialises MPI and returns the world communicator
func Start() Comm {
	mpi.Start()
	return &MPI{c: mpi.NewCommunicator(nil)}
}

// Stop finalises MPI
func Stop() {
	if mpi.IsOn() {
		mpi.Stop()
	}
}

func (o *MPI) Rank() int                 { return o.c.Rank() }
func (o *MPI) Size() int                 { return o.c.Size() }
func (o *MPI) Barrier()                  { o.c.Barrier() }
func (o *MPI) BcastFromRoot(x []float64) { o.c.BcastFromRoot(x) }

func (o *MPI) AllReduceSum(dest, orig []float64) { o.c.AllReduceSum(dest, o.scratch(orig)) }
func (o *MPI) AllReduceMin(dest, orig []float64) { o.c.AllReduceMin(dest, o.scratch(orig)) }
func (o *MPI) AllReduceMax(dest, orig []float64) { o.c.AllReduceMax(dest, o.scratch(orig)) }

func (o *MPI) scratch(orig []float64) []float64 {
	o.buf = append(o.buf[:0], orig...)
	return o.buf
}
