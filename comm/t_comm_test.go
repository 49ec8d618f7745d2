// Copyright 2015 Dorival Pedroso and Raul Durand. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package comm

import (
	"testing"

	"github.com/cpmech/gosl/chk"
	"github.com/cpmech/gosl/io"
	"github.com/stretchr/testify/require"
)

func init() {
	io.Verbose = false
}

func Test_comm01(tst *testing.T) {

	//verbose()
	chk.PrintTitle("comm01. serial")

	var c Comm = Serial{}
	chk.Int(tst, "rank", c.Rank(), 0)
	chk.Int(tst, "size", c.Size(), 1)
	chk.Float64(tst, "sum", 1e-15, Sum(c, 2.5), 2.5)
	require.True(tst, Any(c, true))
	require.False(tst, All(c, false))
	require.True(tst, Root(c))
}

func Test_comm02(tst *testing.T) {

	//verbose()
	chk.PrintTitle("comm02. in-process group")

	for _, n := range []int{1, 2, 3, 5} {
		sums := make([][]float64, n)
		err := Run(n, func(c Comm) error {
			r := float64(c.Rank())
			v := []float64{r, 1, -r}
			c.AllReduceSum(v, v)
			sums[c.Rank()] = v

			mn := []float64{r + 10}
			c.AllReduceMin(mn, mn)
			mx := []float64{r + 10}
			c.AllReduceMax(mx, mx)
			if mn[0] != 10 || mx[0] != float64(n-1)+10 {
				return chk.Err("wrong min/max: %v %v", mn, mx)
			}

			b := []float64{-1, -1}
			if Root(c) {
				b = []float64{7, 8}
			}
			c.BcastFromRoot(b)
			if b[0] != 7 || b[1] != 8 {
				return chk.Err("wrong broadcast on rank %d: %v", c.Rank(), b)
			}

			c.Barrier()
			if !Any(c, c.Rank() == n-1) {
				return chk.Err("Any failed")
			}
			if All(c, c.Rank() == 0) != (n == 1) {
				return chk.Err("All failed")
			}
			return nil
		})
		require.NoError(tst, err)
		tot := float64(n*(n-1)) / 2
		for r := 0; r < n; r++ {
			chk.Array(tst, io.Sf("sums(n=%d,r=%d)", n, r), 1e-15, sums[r], []float64{tot, float64(n), -tot})
		}
	}
}

func Test_comm03(tst *testing.T) {

	//verbose()
	chk.PrintTitle("comm03. failing rank releases the others")

	err := Run(3, func(c Comm) error {
		if c.Rank() == 1 {
			return chk.Err("cannot continue")
		}
		c.Barrier()
		c.Barrier()
		return nil
	})
	require.Error(tst, err)
	io.Pforan("%v\n", err)

	err = Run(2, func(c Comm) error {
		if c.Rank() == 0 {
			panic("boom")
		}
		Sum(c, 1)
		return nil
	})
	require.Error(tst, err)

	require.Error(tst, Run(0, func(c Comm) error { return nil }))
}
