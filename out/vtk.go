// Copyright 2015 Dorival Pedroso and Raul Durand. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// package out implements the output of results to VTK files
package out

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/cpmech/gosl/chk"
	"github.com/cpmech/gosl/io"
	"github.com/ljuillen/TopADD-2D-3D-Arbitrary-TopOpt-in-PETSc/mesh"
)

// Field holds the global values of one scalar field in natural ordering
type Field struct {
	Name   string
	Values []float64
}

// WriteVTS writes a VTK structured grid (.vts) file with the nodes of p as
// points and its elements as cells
func WriteVTS(fn string, p *mesh.Pair, cells, points []Field) (err error) {

	// check sizes
	nc, np := p.Elems.Nglobal(), p.Nodes.Nglobal()
	for _, f := range cells {
		if len(f.Values) != nc {
			return chk.Err("cell field %q has %d values; expected %d", f.Name, len(f.Values), nc)
		}
	}
	for _, f := range points {
		if len(f.Values) != np {
			return chk.Err("point field %q has %d values; expected %d", f.Name, len(f.Values), np)
		}
	}

	// header
	var buf bytes.Buffer
	ext := extent(p)
	io.Ff(&buf, "<?xml version=\"1.0\"?>\n<VTKFile type=\"StructuredGrid\" version=\"0.1\" byte_order=\"LittleEndian\">\n")
	io.Ff(&buf, "<StructuredGrid WholeExtent=\"%s\">\n<Piece Extent=\"%s\">\n", ext, ext)

	// data
	data_write(&buf, "PointData", points)
	data_write(&buf, "CellData", cells)

	// coordinates
	io.Ff(&buf, "<Points>\n<DataArray type=\"Float64\" NumberOfComponents=\"3\" format=\"ascii\">\n")
	n := p.Nodes
	for k := 0; k < n.M[2]; k++ {
		for j := 0; j < n.M[1]; j++ {
			for i := 0; i < n.M[0]; i++ {
				x := p.NodeCoords(i, j, k)
				io.Ff(&buf, "%23.15e %23.15e %23.15e ", x[0], x[1], x[2])
			}
		}
	}
	io.Ff(&buf, "\n</DataArray>\n</Points>\n")

	// footer
	io.Ff(&buf, "</Piece>\n</StructuredGrid>\n</VTKFile>\n")

	// save file
	err = os.MkdirAll(filepath.Dir(fn), 0777)
	if err != nil {
		return
	}
	return os.WriteFile(fn, buf.Bytes(), 0644)
}

// extent returns the extent string of the node grid
func extent(p *mesh.Pair) string {
	m := p.Nodes.M
	return io.Sf("0 %d 0 %d 0 %d", m[0]-1, m[1]-1, m[2]-1)
}

func data_write(buf *bytes.Buffer, tag string, fields []Field) {
	if len(fields) == 0 {
		return
	}
	io.Ff(buf, "<%s Scalars=\"%s\">\n", tag, fields[0].Name)
	for _, f := range fields {
		io.Ff(buf, "<DataArray type=\"Float64\" Name=\"%s\" NumberOfComponents=\"1\" format=\"ascii\">\n", f.Name)
		for _, v := range f.Values {
			io.Ff(buf, "%g ", v)
		}
		io.Ff(buf, "\n</DataArray>\n")
	}
	io.Ff(buf, "</%s>\n", tag)
}
