// Copyright 2015 Dorival Pedroso and Raul Durand. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// package inp implements the input data read from a (.topo) JSON file
package inp

import (
	"encoding/json"
	goio "io"
	"os"
	"path/filepath"

	"github.com/cpmech/gosl/io"
)

// filter types
const (
	FilterNone       = "none"       // xTilde == xPhys == x
	FilterLinear     = "linear"     // density filter; xPhys == xTilde
	FilterProjection = "projection" // density filter followed by smooth Heaviside projection
)

// passive element policies for fixed and load regions
const (
	PolicySolid = "solid" // pinned to 1
	PolicyVoid  = "void"  // pinned to 0
	PolicyFree  = "free"  // not pinned
)

// restart fallback modes
const (
	FallbackAbort = "abort" // inconsistent checkpoints stop the run
	FallbackFresh = "fresh" // inconsistent checkpoints are ignored and the run starts from scratch
)

// region names used in Regions.Precedence
const (
	RegionDesign = "design"
	RegionSolid  = "solid"
	RegionFixed  = "fixed"
	RegionLoad   = "load"
)

// Data holds global data for simulations
type Data struct {
	Desc    string `json:"desc"`    // description of simulation
	DirOut  string `json:"dirout"`  // directory for output; e.g. /tmp/topopt
	Encoder string `json:"encoder"` // encoder name for the summary file; e.g. "gob" "json"
	Verbose bool   `json:"verbose"` // show messages on root processor
	Vtk     bool   `json:"vtk"`     // write VTK files with element fields and node density
}

// MeshData holds data for the structured nodal and element meshes
type MeshData struct {
	Xc    [6]float64 `json:"xc"`    // domain corners: xmin, xmax, ymin, ymax, zmin, zmax
	Nel   [3]int     `json:"nel"`   // number of elements along x, y and z. nz == 0 => 2D
	Nlvls int        `json:"nlvls"` // number of multigrid levels
}

// MaterialData holds the (modified SIMP) material parameters
type MaterialData struct {
	E     float64 `json:"E"`     // Young's modulus
	Nu    float64 `json:"nu"`    // Poisson's ratio
	Emin  float64 `json:"Emin"`  // stiffness of void
	Emax  float64 `json:"Emax"`  // stiffness of solid
	Penal float64 `json:"penal"` // penalization exponent
}

// OptData holds optimization parameters
type OptData struct {
	Volfrac     float64 `json:"volfrac"`     // volume fraction
	Xmin        float64 `json:"xmin"`        // min value of design variables
	Xmax        float64 `json:"xmax"`        // max value of design variables
	Movlim      float64 `json:"movlim"`      // max change of design variables per iteration
	MaxItr      int     `json:"maxitr"`      // max number of iterations
	Tolx        float64 `json:"tolx"`        // stop when max change is smaller than this. 0 => never
	Nconstraint int     `json:"nconstraint"` // number of constraints m
	Fscale      float64 `json:"fscale"`      // objective scaling. 0 => 1/fx of first iteration
}

// FilterData holds data for the density filter
type FilterData struct {
	Type      string  `json:"type"`      // "none", "linear" or "projection"
	Rmin      float64 `json:"rmin"`      // filter radius
	Beta      float64 `json:"beta"`      // projection sharpness
	BetaFinal float64 `json:"betafinal"` // final projection sharpness
	BetaEvery int     `json:"betaevery"` // double beta every n iterations. 0 => keep beta fixed
	Eta       float64 `json:"eta"`       // projection threshold
}

// RegionsData holds the geometry files defining each region
type RegionsData struct {
	Design      []string `json:"design"`      // files with design domains
	Fixed       []string `json:"fixed"`       // files with fixture domains
	Load        []string `json:"load"`        // files with loading domains
	Solid       []string `json:"solid"`       // files with solid non-designable domains
	Precedence  []string `json:"precedence"`  // classification order; first match wins
	FixedPolicy string   `json:"fixedpolicy"` // passive policy of fixed elements
	LoadPolicy  string   `json:"loadpolicy"`  // passive policy of load elements
	AbsPath     bool     `json:"abspath"`     // filenames are given with absolute paths
}

// RestartData holds checkpoint/restart settings
type RestartData struct {
	On       bool   `json:"on"`       // read checkpoints at startup, if any
	Dir      string `json:"dir"`      // directory with checkpoint files. "" => DirOut
	Interval int    `json:"interval"` // write checkpoints every n iterations
	Fallback string `json:"fallback"` // "abort" or "fresh"
}

// CollabData holds the names of the external collaborators
type CollabData struct {
	Solver    string `json:"solver"`    // FEM solver
	Optimizer string `json:"optimizer"` // optimizer; e.g. "oc"
	Filter    string `json:"filter"`    // density filter; "" => use filter type
}

// MetricsData holds monitoring settings
type MetricsData struct {
	Addr string `json:"addr"` // address to serve /metrics; e.g. ":9090". "" => off
}

// Simulation holds all simulation data
type Simulation struct {

	// input
	Data     Data         `json:"data"`     // global simulation data
	Mesh     MeshData     `json:"mesh"`     // mesh data
	Material MaterialData `json:"material"` // material parameters
	Opt      OptData      `json:"opt"`      // optimization parameters
	Filter   FilterData   `json:"filter"`   // filter parameters
	Regions  RegionsData  `json:"regions"`  // region files
	Restart  RestartData  `json:"restart"`  // checkpoint/restart data
	Collab   CollabData   `json:"collab"`   // external collaborators
	Metrics  MetricsData  `json:"metrics"`  // monitoring

	// derived
	DirIn      string // directory of .topo file
	DirOut     string // directory to save results
	DirRestart string // directory with checkpoint files
	Key        string // simulation key; e.g. cantilever.topo => cantilever or cantilever-alias
	EncType    string // encoder type
	Ndim       int    // space dimension
}

// ReadSim reads all simulation data from a .topo JSON file
func ReadSim(simfilepath, alias string, erasefiles bool) (o *Simulation, err error) {

	// read file
	b, err := os.ReadFile(simfilepath)
	if err != nil {
		return nil, ConfigErr("cannot read simulation file %q", simfilepath)
	}

	// decode
	o, err = DecodeSim(b)
	if err != nil {
		return nil, err
	}

	// input directory and filename key
	dir := os.ExpandEnv(filepath.Dir(simfilepath))
	fnkey := io.FnKey(filepath.Base(simfilepath))
	o.DirIn = dir
	o.Key = fnkey
	if alias != "" {
		o.Key += "-" + alias
	}

	// output directories
	o.DirOut = o.Data.DirOut
	if o.DirOut == "" {
		o.DirOut = "/tmp/topopt/" + fnkey
	}
	o.DirRestart = o.Restart.Dir
	if o.DirRestart == "" {
		o.DirRestart = o.DirOut
	}

	// create directory and erase previous results. checkpoints are kept and,
	// when restarting, so is the summary
	if erasefiles {
		err = os.MkdirAll(o.DirOut, 0777)
		if err != nil {
			return nil, ConfigErr("cannot create directory for output results (%s): %v", o.DirOut, err)
		}
		io.RemoveAll(io.Sf("%s/%s*.vts", o.DirOut, o.Key))
		if !o.Restart.On {
			io.RemoveAll(io.Sf("%s/%s_sum.*", o.DirOut, o.Key))
		}
	}
	if o.Restart.Interval > 0 || o.Restart.On {
		err = os.MkdirAll(o.DirRestart, 0777)
		if err != nil {
			return nil, ConfigErr("cannot create directory for checkpoints (%s): %v", o.DirRestart, err)
		}
	}
	return
}

// DecodeSim decodes simulation data from JSON, sets defaults and validates
// all parameters that do not depend on the mesh
func DecodeSim(b []byte) (o *Simulation, err error) {
	o = new(Simulation)
	o.SetDefault()
	err = json.Unmarshal(b, o)
	if err != nil {
		return nil, ConfigErr("cannot unmarshal simulation data: %v", err)
	}
	o.PostProcess()
	err = o.Validate()
	if err != nil {
		return nil, err
	}
	return
}

// SetDefault sets defaults values
func (o *Simulation) SetDefault() {
	o.Data.Encoder = "gob"
	o.Data.Verbose = true
	o.Mesh.Nlvls = 1
	o.Material.SetDefault()
	o.Opt.SetDefault()
	o.Filter.SetDefault()
	o.Restart.SetDefault()
	o.Collab.Solver = "springs"
	o.Collab.Optimizer = "oc"
}

// PostProcess sets derived values after the JSON file has been decoded
func (o *Simulation) PostProcess() {
	o.EncType = o.Data.Encoder
	if o.EncType != "gob" && o.EncType != "json" {
		o.EncType = "gob"
	}
	o.Ndim = 3
	if o.Mesh.Nel[2] == 0 {
		o.Ndim = 2
	}
	if len(o.Regions.Precedence) == 0 {
		o.Regions.Precedence = []string{RegionFixed, RegionLoad, RegionSolid, RegionDesign}
	}
	if o.Regions.FixedPolicy == "" {
		o.Regions.FixedPolicy = PolicySolid
	}
	if o.Regions.LoadPolicy == "" {
		o.Regions.LoadPolicy = PolicySolid
	}
	if o.Filter.BetaFinal < o.Filter.Beta {
		o.Filter.BetaFinal = o.Filter.Beta
	}
}

// Validate checks parameters that do not depend on the mesh
func (o *Simulation) Validate() error {

	// material
	if o.Material.Emin < 0 || o.Material.Emax <= o.Material.Emin {
		return ConfigErr("stiffness bounds must satisfy 0 <= Emin < Emax. Emin=%g Emax=%g", o.Material.Emin, o.Material.Emax)
	}
	if o.Material.Penal < 1 {
		return ConfigErr("penalization exponent must be >= 1. penal=%g", o.Material.Penal)
	}
	if o.Material.Nu <= -1 || o.Material.Nu >= 0.5 {
		return ConfigErr("Poisson's ratio must be in (-1, 0.5). nu=%g", o.Material.Nu)
	}

	// optimization
	if o.Opt.Volfrac <= 0 || o.Opt.Volfrac > 1 {
		return ConfigErr("volume fraction must be in (0, 1]. volfrac=%g", o.Opt.Volfrac)
	}
	if o.Opt.Xmin < 0 || o.Opt.Xmax <= o.Opt.Xmin || o.Opt.Xmax > 1 {
		return ConfigErr("design bounds must satisfy 0 <= xmin < xmax <= 1. xmin=%g xmax=%g", o.Opt.Xmin, o.Opt.Xmax)
	}
	if o.Opt.Movlim <= 0 {
		return ConfigErr("move limit must be positive. movlim=%g", o.Opt.Movlim)
	}
	if o.Opt.MaxItr < 0 {
		return ConfigErr("max number of iterations must be non-negative. maxitr=%d", o.Opt.MaxItr)
	}
	if o.Opt.Nconstraint < 1 {
		return ConfigErr("number of constraints must be at least 1. nconstraint=%d", o.Opt.Nconstraint)
	}
	if o.Opt.Fscale < 0 {
		return ConfigErr("objective scaling must be non-negative. fscale=%g", o.Opt.Fscale)
	}

	// filter
	switch o.Filter.Type {
	case FilterNone:
	case FilterLinear, FilterProjection:
		if o.Filter.Rmin <= 0 {
			return ConfigErr("filter radius must be positive for filter %q. rmin=%g", o.Filter.Type, o.Filter.Rmin)
		}
		if o.Filter.Type == FilterProjection {
			if o.Filter.Beta <= 0 {
				return ConfigErr("projection sharpness must be positive. beta=%g", o.Filter.Beta)
			}
			if o.Filter.Eta <= 0 || o.Filter.Eta >= 1 {
				return ConfigErr("projection threshold must be in (0, 1). eta=%g", o.Filter.Eta)
			}
		}
	default:
		return ConfigErr("unknown filter type %q. options: none, linear, projection", o.Filter.Type)
	}

	// regions
	seen := make(map[string]bool)
	for _, name := range o.Regions.Precedence {
		switch name {
		case RegionDesign, RegionSolid, RegionFixed, RegionLoad:
		default:
			return ConfigErr("unknown region %q in precedence list", name)
		}
		if seen[name] {
			return ConfigErr("region %q appears twice in precedence list", name)
		}
		seen[name] = true
	}
	for _, pol := range []string{o.Regions.FixedPolicy, o.Regions.LoadPolicy} {
		if pol != PolicySolid && pol != PolicyVoid && pol != PolicyFree {
			return ConfigErr("unknown passive policy %q. options: solid, void, free", pol)
		}
	}

	// restart
	if o.Restart.Interval < 0 {
		return ConfigErr("restart interval must be non-negative. interval=%d", o.Restart.Interval)
	}
	if o.Restart.Fallback != FallbackAbort && o.Restart.Fallback != FallbackFresh {
		return ConfigErr("unknown restart fallback %q. options: abort, fresh", o.Restart.Fallback)
	}
	return nil
}

// GetInfo returns formatted information
func (o *Simulation) GetInfo(w goio.Writer) (err error) {
	b, err := json.MarshalIndent(o, "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return
}

// RegionFiles returns the geometry files of a region with their full path
func (o *Simulation) RegionFiles(region string) (fnames []string) {
	var list []string
	switch region {
	case RegionDesign:
		list = o.Regions.Design
	case RegionSolid:
		list = o.Regions.Solid
	case RegionFixed:
		list = o.Regions.Fixed
	case RegionLoad:
		list = o.Regions.Load
	}
	for _, fn := range list {
		if !o.Regions.AbsPath {
			fn = filepath.Join(o.DirIn, fn)
		}
		fnames = append(fnames, fn)
	}
	return
}

// extra settings //////////////////////////////////////////////////////////////////////////////////

// SetDefault sets defaults values
func (o *MaterialData) SetDefault() {
	o.E = 1.0
	o.Nu = 0.3
	o.Emin = 1.0e-9
	o.Emax = 1.0
	o.Penal = 3.0
}

// SetDefault sets defaults values
func (o *OptData) SetDefault() {
	o.Volfrac = 0.12
	o.Xmin = 0.0
	o.Xmax = 1.0
	o.Movlim = 0.2
	o.MaxItr = 400
	o.Nconstraint = 1
}

// SetDefault sets defaults values
func (o *FilterData) SetDefault() {
	o.Type = FilterLinear
	o.Rmin = 0.08
	o.Beta = 0.1
	o.BetaFinal = 48
	o.Eta = 0.0
}

// SetDefault sets defaults values
func (o *RestartData) SetDefault() {
	o.Interval = 1
	o.Fallback = FallbackAbort
}
