// Copyright 2015 Dorival Pedroso and Raul Durand. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package topo

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"encoding/json"
	goio "io"
	"math"

	"github.com/cpmech/gosl/chk"
	"github.com/cpmech/gosl/io"
	"github.com/ljuillen/TopADD-2D-3D-Arbitrary-TopOpt-in-PETSc/comm"
	"github.com/ljuillen/TopADD-2D-3D-Arbitrary-TopOpt-in-PETSc/mesh"
)

// Encoder defines encoders; e.g. gob or json
type Encoder interface {
	Encode(e interface{}) error
}

// Decoder defines decoders; e.g. gob or json
type Decoder interface {
	Decode(e interface{}) error
}

// GetEncoder returns a new encoder
func GetEncoder(w goio.Writer, enctype string) Encoder {
	if enctype == "json" {
		return json.NewEncoder(w)
	}
	return gob.NewEncoder(w)
}

// GetDecoder returns a new decoder
func GetDecoder(r goio.Reader, enctype string) Decoder {
	if enctype == "json" {
		return json.NewDecoder(r)
	}
	return gob.NewDecoder(r)
}

// checkpoint file format
const (
	CkptMagic   = "TOPOCKPT" // first bytes of every checkpoint file
	CkptVersion = 1          // format version
	HeaderSize  = 40         // bytes before the first field value
)

// Header holds the fixed-size data at the beginning of a checkpoint file.
// Fields follow the header, one after the other; each field holds Length
// little-endian float64 values in natural ordering of the grid, so files do
// not depend on the number of ranks.
type Header struct {
	Magic   [8]byte
	Version uint32
	Nfields uint32  // number of fields in file
	Itr     int64   // number of completed iterations
	Length  int64   // global length of each field
	Fscale  float64 // objective scaling
}

// NewHeader returns a new header
func NewHeader(nfields, itr, length int, fscale float64) (o *Header) {
	o = &Header{Version: CkptVersion, Nfields: uint32(nfields), Itr: int64(itr), Length: int64(length), Fscale: fscale}
	copy(o.Magic[:], CkptMagic)
	return
}

// FileSize returns the size of a file with this header
func (o *Header) FileSize() int64 {
	return HeaderSize + 8*o.Length*int64(o.Nfields)
}

// ReadHeader reads and checks the header of a checkpoint file
func ReadHeader(fb FileBackend, path string) (o *Header, err error) {
	f, err := fb.Open(path)
	if err != nil {
		return nil, chk.Err("cannot open %q: %v", path, err)
	}
	defer f.Close()
	b := make([]byte, HeaderSize)
	if _, err = f.ReadAt(b, 0); err != nil {
		return nil, chk.Err("cannot read header of %q: %v", path, err)
	}
	o = new(Header)
	if err = binary.Read(bytes.NewReader(b), binary.LittleEndian, o); err != nil {
		return nil, chk.Err("cannot decode header of %q: %v", path, err)
	}
	if string(o.Magic[:]) != CkptMagic {
		return nil, chk.Err("%q is not a checkpoint file", path)
	}
	if o.Version != CkptVersion {
		return nil, chk.Err("%q has format version %d; expected %d", path, o.Version, CkptVersion)
	}
	if o.Itr < 0 || o.Length < 0 {
		return nil, chk.Err("%q has invalid header: itr=%d length=%d", path, o.Itr, o.Length)
	}
	size, err := fb.Size(path)
	if err != nil {
		return nil, chk.Err("cannot stat %q: %v", path, err)
	}
	if size != o.FileSize() {
		return nil, chk.Err("%q has %d bytes; header requires %d", path, size, o.FileSize())
	}
	return
}

// rows returns the natural index of the first point of each owned x-row, in
// local order, and the number of owned points per row
func rows(da *mesh.DA) (first []int, width int) {
	width = da.Count[0]
	for k := da.Start[2]; k < da.Start[2]+da.Count[2]; k++ {
		for j := da.Start[1]; j < da.Start[1]+da.Count[1]; j++ {
			first = append(first, da.Index(da.Start[0], j, k))
		}
	}
	return
}

// agree makes all ranks fail if one rank fails. Collective
func agree(c comm.Comm, err error, action string) error {
	failed := comm.Any(c, err != nil)
	if err != nil {
		return err
	}
	if failed {
		return chk.Err("%s failed on another rank", action)
	}
	return nil
}

// WriteFields writes the owned parts of fields distributed as da to a
// checkpoint file. The file is first written under a temporary name and then
// renamed, so path holds either the previous or the new contents. Collective
func WriteFields(c comm.Comm, fb FileBackend, da *mesh.DA, path string, itr int, fscale float64, fields ...[]float64) (err error) {

	// check
	for i, fld := range fields {
		if len(fld) != da.Nlocal() {
			err = chk.Err("field %d has length %d; expected %d", i, len(fld), da.Nlocal())
		}
	}
	if err = agree(c, err, "checking fields"); err != nil {
		return
	}
	tmp := path + ".tmp"

	// header
	if comm.Root(c) {
		err = createWithHeader(fb, tmp, NewHeader(len(fields), itr, da.Nglobal(), fscale))
	}
	if err = agree(c, err, io.Sf("creating %q", tmp)); err != nil {
		return
	}

	// values
	err = writeSegments(fb, tmp, da, fields)
	if err = agree(c, err, io.Sf("writing %q", tmp)); err != nil {
		return
	}

	// replace
	if comm.Root(c) {
		err = fb.Rename(tmp, path)
		if err != nil {
			err = chk.Err("cannot rename %q: %v", tmp, err)
		}
	}
	return agree(c, err, io.Sf("renaming %q", tmp))
}

// ReadFields reads the owned parts of fields distributed as da from a checkpoint file. Collective
func ReadFields(c comm.Comm, fb FileBackend, da *mesh.DA, path string, fields ...[]float64) (hdr *Header, err error) {
	hdr, err = ReadHeader(fb, path)
	if err == nil {
		if int(hdr.Nfields) != len(fields) || hdr.Length != int64(da.Nglobal()) {
			err = chk.Err("%q holds %d fields of length %d; expected %d fields of length %d", path, hdr.Nfields, hdr.Length, len(fields), da.Nglobal())
		}
	}
	for i, fld := range fields {
		if err == nil && len(fld) != da.Nlocal() {
			err = chk.Err("field %d has length %d; expected %d", i, len(fld), da.Nlocal())
		}
	}
	if err == nil {
		err = readSegments(fb, path, da, fields)
	}
	if err = agree(c, err, io.Sf("reading %q", path)); err != nil {
		return nil, err
	}
	return
}

// createWithHeader creates file and writes header
func createWithHeader(fb FileBackend, path string, hdr *Header) (err error) {
	f, err := fb.Create(path)
	if err != nil {
		return chk.Err("cannot create %q: %v", path, err)
	}
	var buf bytes.Buffer
	if err = binary.Write(&buf, binary.LittleEndian, hdr); err != nil {
		f.Close()
		return chk.Err("cannot encode header: %v", err)
	}
	if _, err = f.WriteAt(buf.Bytes(), 0); err != nil {
		f.Close()
		return chk.Err("cannot write header to %q: %v", path, err)
	}
	return f.Close()
}

// writeSegments writes the owned values of each field, one x-row at a time
func writeSegments(fb FileBackend, path string, da *mesh.DA, fields [][]float64) (err error) {
	f, err := fb.OpenWrite(path)
	if err != nil {
		return chk.Err("cannot open %q for writing: %v", path, err)
	}
	first, width := rows(da)
	length := int64(da.Nglobal())
	for k, fld := range fields {
		b := make([]byte, 8*len(fld))
		for i, v := range fld {
			binary.LittleEndian.PutUint64(b[8*i:], math.Float64bits(v))
		}
		for r, n := range first {
			pos := int64(HeaderSize) + 8*(int64(k)*length+int64(n))
			if _, err = f.WriteAt(b[8*r*width:8*(r+1)*width], pos); err != nil {
				f.Close()
				return chk.Err("cannot write field %d to %q: %v", k, path, err)
			}
		}
	}
	if err = f.Sync(); err != nil {
		f.Close()
		return chk.Err("cannot sync %q: %v", path, err)
	}
	return f.Close()
}

// readSegments reads the owned values of each field, one x-row at a time
func readSegments(fb FileBackend, path string, da *mesh.DA, fields [][]float64) (err error) {
	f, err := fb.Open(path)
	if err != nil {
		return chk.Err("cannot open %q: %v", path, err)
	}
	defer f.Close()
	first, width := rows(da)
	length := int64(da.Nglobal())
	for k, fld := range fields {
		b := make([]byte, 8*len(fld))
		for r, n := range first {
			pos := int64(HeaderSize) + 8*(int64(k)*length+int64(n))
			if _, err = f.ReadAt(b[8*r*width:8*(r+1)*width], pos); err != nil {
				return chk.Err("cannot read field %d from %q: %v", k, path, err)
			}
		}
		for i := range fld {
			fld[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[8*i:]))
		}
	}
	return
}
