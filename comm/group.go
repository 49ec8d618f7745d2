// Copyright 2015 Dorival Pedroso and Raul Durand. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package comm

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/cpmech/gosl/chk"
)

// errBroken is raised inside ranks blocked on a collective after another rank has failed
var errBroken = errors.New("rank group aborted")

// group holds the state shared by the ranks of an in-process run
type group struct {
	size   int
	mu     sync.Mutex
	cond   *sync.Cond
	count  int         // ranks waiting at the barrier
	gen    int         // barrier generation
	broken bool        // a rank has failed
	slots  [][]float64 // one contribution per rank
}

// member implements Comm for one rank of a group
type member struct {
	g    *group
	rank int
}

// Run runs fn on n ranks, each one in its own goroutine, with a communicator
// connecting them. Reductions combine contributions in rank order, so results
// are identical on all ranks and between runs.
//  Note: if any rank returns an error or panics, the other ranks are released
//        from their pending collective and the error of the lowest failing rank
//        is returned
func Run(n int, fn func(c Comm) error) (err error) {
	if n < 1 {
		return chk.Err("number of ranks must be at least 1. n=%d", n)
	}
	g := &group{size: n, slots: make([][]float64, n)}
	g.cond = sync.NewCond(&g.mu)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for r := 0; r < n; r++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			defer func() {
				if p := recover(); p != nil {
					if pe, ok := p.(error); ok && errors.Is(pe, errBroken) {
						return
					}
					errs[rank] = chk.Err("rank %d panicked: %v", rank, p)
					g.abort()
				}
			}()
			errs[rank] = fn(&member{g, rank})
			if errs[rank] != nil {
				g.abort()
			}
		}(r)
	}
	wg.Wait()
	for rank, e := range errs {
		if e != nil {
			return fmt.Errorf("rank %d: %w", rank, e)
		}
	}
	return nil
}

// abort releases all waiting ranks
func (o *group) abort() {
	o.mu.Lock()
	o.broken = true
	o.cond.Broadcast()
	o.mu.Unlock()
}

// barrier blocks until all ranks arrive. panics with errBroken if the group is aborted
func (o *group) barrier() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.broken {
		panic(errBroken)
	}
	gen := o.gen
	o.count++
	if o.count == o.size {
		o.count = 0
		o.gen++
		o.cond.Broadcast()
		return
	}
	for gen == o.gen && !o.broken {
		o.cond.Wait()
	}
	if gen == o.gen {
		panic(errBroken)
	}
}

func (o *member) Rank() int { return o.rank }
func (o *member) Size() int { return o.g.size }
func (o *member) Barrier()  { o.g.barrier() }

func (o *member) AllReduceSum(dest, orig []float64) {
	o.reduce(dest, orig, 0, func(a, b float64) float64 { return a + b })
}

func (o *member) AllReduceMin(dest, orig []float64) {
	o.reduce(dest, orig, math.Inf(1), math.Min)
}

func (o *member) AllReduceMax(dest, orig []float64) {
	o.reduce(dest, orig, math.Inf(-1), math.Max)
}

func (o *member) BcastFromRoot(x []float64) {
	if o.rank == 0 {
		o.g.slots[0] = append(o.g.slots[0][:0], x...)
	}
	o.g.barrier()
	if o.rank != 0 {
		copy(x, o.g.slots[0])
	}
	o.g.barrier()
}

// reduce publishes orig, then combines all contributions in rank order
func (o *member) reduce(dest, orig []float64, zero float64, op func(a, b float64) float64) {
	if len(dest) != len(orig) {
		chk.Panic("reduction buffers must have the same length. %d != %d", len(dest), len(orig))
	}
	o.g.slots[o.rank] = append(o.g.slots[o.rank][:0], orig...)
	o.g.barrier()
	for i := range dest {
		res := zero
		for r := 0; r < o.g.size; r++ {
			res = op(res, o.g.slots[r][i])
		}
		dest[i] = res
	}
	o.g.barrier()
}
