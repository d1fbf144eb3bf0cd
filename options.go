package main

import (
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/ttpr0/go-gridmaker/grid"
	"github.com/ttpr0/go-gridmaker/parser"
	"github.com/ttpr0/go-gridmaker/writer"
	"golang.org/x/exp/slices"
	"golang.org/x/exp/slog"
)

//**********************************************************
// command line options
//**********************************************************

const (
	DEFAULT_RESOLUTION = 100000
	DEFAULT_EPSG       = "3035"
	DEFAULT_OUTPUT     = "out.geojson"
	DEFAULT_REGION_ATT = "CNTR_ID"
	// side of the default coverage square anchored at the origin
	DEFAULT_EXTENT = 10000000
)

// GridOptions holds the parsed grid command line.
type GridOptions struct {
	Resolution      float64
	EPSG            string
	Input           string
	InputCode       string
	Tolerance       float64
	GeometryType    grid.CellGeometryType
	Output          string
	Regions         string
	RegionAttribute string
	RegionTolerance float64
	CellAttribute   string
	KeepUnassigned  bool
	Workers         int
	Config          string
	LogLevel        string
}

// DefaultWorkers reads GRIDMAKER_WORKERS, falling back to the CPU count.
func DefaultWorkers() int {
	if value := os.Getenv("GRIDMAKER_WORKERS"); value != "" {
		workers, err := strconv.Atoi(value)
		if err == nil && workers > 0 {
			return workers
		}
		slog.Warn(fmt.Sprintf("ignoring GRIDMAKER_WORKERS=%q", value))
	}
	return runtime.NumCPU()
}

// ParseOptions reads the grid command line. Invalid values are reported as
// warnings and replaced by their defaults, only malformed flags fail.
func ParseOptions(args []string, usage io.Writer) (GridOptions, error) {
	fs := flag.NewFlagSet("gridmaker", flag.ContinueOnError)
	fs.SetOutput(usage)

	res := fs.String("res", strconv.Itoa(DEFAULT_RESOLUTION), "grid resolution, a positive integer in CRS units")
	epsg := fs.String("epsg", DEFAULT_EPSG, "EPSG code of the grid CRS, used in cell identifiers")
	input := fs.String("i", "", "coverage file (geojson, shp, pbf); default the square [0,1e7]")
	input_code := fs.String("ic", "", "only use the coverage feature whose -ra attribute has this value")
	tol := fs.String("tol", "0", "coverage tolerance distance, may be negative")
	gt := fs.String("gt", grid.SURFACE.String(), "cell geometry type: SURFACE or CENTER_POINT")
	output := fs.String("o", DEFAULT_OUTPUT, "output file (geojson, shp, csv, gpkg)")
	regions := fs.String("r", "", "regions file for cell assignment")
	region_att := fs.String("ra", DEFAULT_REGION_ATT, "region code attribute")
	rtol := fs.String("rtol", "0", "region tolerance distance, may be negative")
	cell_att := fs.String("ca", "", "cell attribute receiving the region codes (default -ra)")
	keep := fs.Bool("keep", false, "keep cells without region")
	workers := fs.String("w", "", "number of workers (default GRIDMAKER_WORKERS or CPU count)")
	config := fs.String("config", "", "YAML batch configuration, other flags are ignored")
	log_level := fs.String("log", "", "log level: debug, info, warn, error")

	if err := fs.Parse(args); err != nil {
		return GridOptions{}, err
	}
	if fs.NArg() > 0 {
		slog.Warn(fmt.Sprintf("ignoring extra arguments %v", fs.Args()))
	}

	opts := GridOptions{
		EPSG:            strings.TrimSpace(*epsg),
		Input:           *input,
		InputCode:       *input_code,
		Regions:         *regions,
		RegionAttribute: *region_att,
		CellAttribute:   *cell_att,
		KeepUnassigned:  *keep,
		Config:          *config,
		LogLevel:        *log_level,
	}

	opts.Resolution = _ParseResolution(*res)
	if _, err := strconv.Atoi(opts.EPSG); err != nil {
		slog.Warn(fmt.Sprintf("invalid EPSG code %q, using %s", *epsg, DEFAULT_EPSG))
		opts.EPSG = DEFAULT_EPSG
	}
	opts.Tolerance = _ParseDistance("tol", *tol)
	opts.RegionTolerance = _ParseDistance("rtol", *rtol)

	typ, err := grid.CellGeometryTypeFromString(*gt)
	if err != nil {
		slog.Warn(fmt.Sprintf("%v, using %s", err, grid.SURFACE))
		typ = grid.SURFACE
	}
	opts.GeometryType = typ

	opts.Output = _CheckOutput(*output)
	if opts.RegionAttribute == "" {
		opts.RegionAttribute = DEFAULT_REGION_ATT
	}
	if opts.CellAttribute == "" {
		opts.CellAttribute = opts.RegionAttribute
	}

	opts.Workers = DefaultWorkers()
	if *workers != "" {
		w, err := strconv.Atoi(*workers)
		if err != nil || w < 1 {
			slog.Warn(fmt.Sprintf("invalid worker count %q, using %d", *workers, opts.Workers))
		} else {
			opts.Workers = w
		}
	}
	return opts, nil
}

func _ValidResolution(res float64) bool {
	return !math.IsNaN(res) && !math.IsInf(res, 0) && res > 0 && res == math.Trunc(res)
}

func _ParseResolution(value string) float64 {
	res, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || !_ValidResolution(res) {
		slog.Warn(fmt.Sprintf("invalid resolution %q, using %d", value, DEFAULT_RESOLUTION))
		return DEFAULT_RESOLUTION
	}
	return res
}

func _ParseDistance(name, value string) float64 {
	d, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || math.IsNaN(d) || math.IsInf(d, 0) {
		slog.Warn(fmt.Sprintf("invalid %s %q, using 0", name, value))
		return 0
	}
	return d
}

// _CheckOutput falls back to the default output for unsupported formats.
func _CheckOutput(output string) string {
	format := parser.Format(output)
	if format == "json" || slices.Contains(writer.Formats, format) {
		return output
	}
	slog.Warn(fmt.Sprintf("unsupported output format %q, writing %s", format, DEFAULT_OUTPUT))
	return DEFAULT_OUTPUT
}
