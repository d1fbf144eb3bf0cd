package main

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/ttpr0/go-gridmaker/geo"
	"github.com/ttpr0/go-gridmaker/grid"
	"github.com/ttpr0/go-gridmaker/parser"
	"github.com/ttpr0/go-gridmaker/preproc"
	"github.com/ttpr0/go-gridmaker/union"
	"github.com/ttpr0/go-gridmaker/writer"
	"github.com/twpayne/go-geos"
	"golang.org/x/exp/slices"
	"golang.org/x/exp/slog"
)

//**********************************************************
// grid command
//**********************************************************

// RunGrid builds one grid from the command line options and saves it.
func RunGrid(ctx context.Context, opts GridOptions) error {
	start := time.Now()
	gctx := geos.NewContext()

	coverage, err := LoadCoverage(ctx, gctx, SourceConfig{File: opts.Input, Attribute: opts.RegionAttribute, Code: opts.InputCode})
	if err != nil {
		return err
	}
	spec := grid.GridSpec{
		Resolution:   opts.Resolution,
		CRS:          opts.EPSG,
		Coverage:     coverage,
		Tolerance:    opts.Tolerance,
		GeometryType: opts.GeometryType,
	}
	cells, err := grid.BuildCellsParallel(ctx, spec, opts.Workers)
	if err != nil {
		return err
	}

	attrs := []string{}
	if opts.Regions != "" {
		region_cfg := RegionsConfig{
			File:             opts.Regions,
			CodeAttribute:    opts.RegionAttribute,
			CellAttribute:    opts.CellAttribute,
			Tolerance:        opts.RegionTolerance,
			FilterUnassigned: !opts.KeepUnassigned,
		}
		regions, err := LoadRegions(ctx, gctx, region_cfg)
		if err != nil {
			return err
		}
		cells, err = LabelCells(ctx, cells, regions, region_cfg, opts.Workers)
		if err != nil {
			return err
		}
		attrs = append(attrs, opts.CellAttribute)
	}

	if err := writer.SaveCells(opts.Output, cells, opts.EPSG, attrs); err != nil {
		return err
	}
	slog.Info(fmt.Sprintf("grid done in %v", time.Since(start).Round(time.Millisecond)))
	return nil
}

// LabelCells assigns the region codes to cells and drops the unassigned
// ones unless the config keeps them.
func LabelCells(ctx context.Context, cells []*grid.Cell, regions []geo.Feature, cfg RegionsConfig, workers int) ([]*grid.Cell, error) {
	err := grid.AssignRegionsParallel(ctx, cells, cfg.CellAttribute, regions, cfg.Tolerance, cfg.CodeAttribute, workers)
	if err != nil {
		return nil, errors.Wrap(err, "assign regions")
	}
	if cfg.FilterUnassigned {
		cells = grid.FilterUnassigned(cells, cfg.CellAttribute)
	}
	return cells, nil
}

//**********************************************************
// inputs
//**********************************************************

// LoadCoverage returns the area to tile: the whole source file unioned,
// a single feature of it, or the default square when no file is given.
func LoadCoverage(ctx context.Context, gctx *geos.Context, source SourceConfig) (*geos.Geom, error) {
	if source.File == "" {
		slog.Info(fmt.Sprintf("no coverage file, using [0,%d]x[0,%d]", DEFAULT_EXTENT, DEFAULT_EXTENT))
		return geo.NewEnvelope(0, 0, DEFAULT_EXTENT, DEFAULT_EXTENT).ToPolygon(gctx), nil
	}
	features, err := parser.LoadFeatures(ctx, gctx, source.File, geo.Filter{})
	if err != nil {
		return nil, errors.Wrap(err, "load coverage")
	}
	if source.Code != "" {
		feature, err := grid.FindRegion(features, source.Attribute, source.Code)
		if err != nil {
			return nil, err
		}
		features = []geo.Feature{feature}
	}
	features, err = preproc.Repair(features)
	if err != nil {
		return nil, errors.Wrap(err, "repair coverage")
	}
	switch len(features) {
	case 0:
		return nil, errors.Errorf("coverage file %s has no features", source.File)
	case 1:
		return features[0].Geometry(), nil
	default:
		return union.UnionAll(gctx, geo.Geometries(features), union.Options{})
	}
}

// LoadRegions reads the regions, merging dataset versions when several are
// configured.
func LoadRegions(ctx context.Context, gctx *geos.Context, cfg RegionsConfig) ([]geo.Feature, error) {
	filter := geo.Filter{}
	if len(cfg.Codes) > 0 {
		filter = geo.Filter{Attribute: cfg.CodeAttribute, Values: cfg.Codes}
	}

	var regions []geo.Feature
	if len(cfg.Versions) > 0 {
		versions := make([][]geo.Feature, len(cfg.Versions))
		for i, file := range cfg.Versions {
			features, err := parser.LoadFeatures(ctx, gctx, file, filter)
			if err != nil {
				return nil, errors.Wrap(err, "load region version")
			}
			versions[i] = features
		}
		codes := cfg.Codes
		if len(codes) == 0 {
			codes = _CollectCodes(versions, cfg.CodeAttribute)
		}
		merged, err := preproc.MergeVersions(gctx, versions, cfg.CodeAttribute, codes)
		if err != nil {
			return nil, err
		}
		regions = merged
	} else {
		features, err := parser.LoadFeatures(ctx, gctx, cfg.File, filter)
		if err != nil {
			return nil, errors.Wrap(err, "load regions")
		}
		regions, err = preproc.Repair(features)
		if err != nil {
			return nil, errors.Wrap(err, "repair regions")
		}
	}

	if cfg.Buffer != 0 {
		return preproc.Buffer(regions, cfg.Buffer)
	}
	return regions, nil
}

// LoadLand unions the land polygons of file.
func LoadLand(ctx context.Context, gctx *geos.Context, file string) (*geos.Geom, error) {
	features, err := parser.LoadFeatures(ctx, gctx, file, geo.Filter{})
	if err != nil {
		return nil, errors.Wrap(err, "load land")
	}
	features, err = preproc.Repair(features)
	if err != nil {
		return nil, errors.Wrap(err, "repair land")
	}
	return union.UnionAll(gctx, geo.Geometries(features), union.Options{})
}

func _CollectCodes(versions [][]geo.Feature, attr string) []string {
	seen := map[string]bool{}
	for _, features := range versions {
		for _, f := range features {
			if code, ok := f.GetString(attr); ok {
				seen[code] = true
			}
		}
	}
	codes := make([]string, 0, len(seen))
	for code := range seen {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	return codes
}
