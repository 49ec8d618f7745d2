// Copyright 2015 Dorival Pedroso and Raul Durand. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// package comm implements the collective operations shared by all ranks of a run
package comm

// Comm defines the collective operations needed by the optimization loop.
// All ranks of a communicator must call every collective in the same order.
//  Note: dest and orig must have the same length; dest may alias orig
type Comm interface {
	Rank() int                         // rank of this process; 0 is root
	Size() int                         // number of ranks
	Barrier()                          // wait for all ranks
	AllReduceSum(dest, orig []float64) // dest[i] = sum over ranks of orig[i]
	AllReduceMin(dest, orig []float64) // dest[i] = min over ranks of orig[i]
	AllReduceMax(dest, orig []float64) // dest[i] = max over ranks of orig[i]
	BcastFromRoot(x []float64)         // x on all ranks := x on root
}

// Serial implements Comm for a single process
type Serial struct{}

func (o Serial) Rank() int { return 0 }
func (o Serial) Size() int { return 1 }
func (o Serial) Barrier()  {}

func (o Serial) AllReduceSum(dest, orig []float64) { copy(dest, orig) }
func (o Serial) AllReduceMin(dest, orig []float64) { copy(dest, orig) }
func (o Serial) AllReduceMax(dest, orig []float64) { copy(dest, orig) }
func (o Serial) BcastFromRoot(x []float64)         {}

// Root tells whether c is the root rank
func Root(c Comm) bool {
	return c.Rank() == 0
}

// Sum returns the sum of v over all ranks
func Sum(c Comm, v float64) float64 {
	buf := []float64{v}
	c.AllReduceSum(buf, buf)
	return buf[0]
}

// Max returns the max of v over all ranks
func Max(c Comm, v float64) float64 {
	buf := []float64{v}
	c.AllReduceMax(buf, buf)
	return buf[0]
}

// Min returns the min of v over all ranks
func Min(c Comm, v float64) float64 {
	buf := []float64{v}
	c.AllReduceMin(buf, buf)
	return buf[0]
}

// SumInt returns the sum of n over all ranks
func SumInt(c Comm, n int) int {
	return int(Sum(c, float64(n)))
}

// Any returns true on all ranks if flag is true on at least one rank
func Any(c Comm, flag bool) bool {
	v := 0.0
	if flag {
		v = 1
	}
	return Max(c, v) > 0
}

// All returns true on all ranks if flag is true on every rank
func All(c Comm, flag bool) bool {
	v := 0.0
	if flag {
		v = 1
	}
	return Min(c, v) > 0
}
