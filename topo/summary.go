// Copyright 2015 Dorival Pedroso and Raul Durand. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package topo

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/cpmech/gosl/chk"
	"github.com/cpmech/gosl/io"
)

// Summary records the history of an optimization run
type Summary struct {

	// main data
	Nproc    int         // number of processors used in the last run
	Itrs     []int       // [nitr] iteration numbers (completed iterations)
	Fx       []float64   // [nitr] scaled objective
	Gx       [][]float64 // [nitr][m] constraint values
	Change   []float64   // [nitr] max change of design variables
	Volume   []float64   // [nitr] mean physical density
	Beta     []float64   // [nitr] projection sharpness
	Restarts []int       // iterations at which the run was restored
	Dirout   string      // directory where results are stored
	Fnkey    string      // filename key of simulation
}

// Add appends the results of one iteration
func (o *Summary) Add(itr int, st *State, change, volume float64) {
	o.Itrs = append(o.Itrs, itr)
	o.Fx = append(o.Fx, st.Fx)
	o.Gx = append(o.Gx, append([]float64{}, st.Gx...))
	o.Change = append(o.Change, change)
	o.Volume = append(o.Volume, volume)
	o.Beta = append(o.Beta, st.Beta)
}

// Truncate removes the entries after iteration itr
func (o *Summary) Truncate(itr int) {
	n := 0
	for n < len(o.Itrs) && o.Itrs[n] <= itr {
		n++
	}
	o.Itrs, o.Fx, o.Gx = o.Itrs[:n], o.Fx[:n], o.Gx[:n]
	o.Change, o.Volume, o.Beta = o.Change[:n], o.Volume[:n], o.Beta[:n]
}

// Save saves summary to disc. Only the root rank must call it
func (o *Summary) Save(enctype string) (err error) {

	// buffer and encoder
	var buf bytes.Buffer
	enc := GetEncoder(&buf, enctype)

	// encode summary
	err = enc.Encode(o)
	if err != nil {
		return chk.Err("cannot encode summary:\n%v", err)
	}

	// save file
	fn := out_sum_path(o.Dirout, o.Fnkey, enctype)
	return save_file(fn, &buf)
}

// ReadSum reads summary back
func ReadSum(dir, fnkey, enctype string) (o *Summary, err error) {

	// open file
	fn := out_sum_path(dir, fnkey, enctype)
	fil, err := os.Open(fn)
	if err != nil {
		return
	}
	defer fil.Close()

	// decode summary
	o = new(Summary)
	dec := GetDecoder(fil, enctype)
	err = dec.Decode(o)
	if err != nil {
		return nil, chk.Err("cannot decode summary:\n%v", err)
	}
	return
}

// auxiliary ///////////////////////////////////////////////////////////////////////////////////////

func out_sum_path(dir, fnkey, enctype string) string {
	return filepath.Join(dir, io.Sf("%s_sum.%s", fnkey, enctype))
}

func save_file(filename string, buf *bytes.Buffer) (err error) {
	tmp := filename + ".tmp"
	err = os.WriteFile(tmp, buf.Bytes(), 0644)
	if err != nil {
		return
	}
	return os.Rename(tmp, filename)
}
