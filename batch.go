package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/ttpr0/go-gridmaker/geo"
	"github.com/ttpr0/go-gridmaker/grid"
	. "github.com/ttpr0/go-gridmaker/util"
	"github.com/ttpr0/go-gridmaker/writer"
	"github.com/twpayne/go-geos"
	"golang.org/x/exp/slog"
)

//**********************************************************
// batch run
//**********************************************************

// upper bound of cached cells over all resolutions of a batch
const _BatchCacheCells = 50_000_000

// GridSummary describes one produced grid in meta.json.
type GridSummary struct {
	Resolution   float64               `json:"resolution"`
	EPSG         string                `json:"epsg"`
	GeometryType grid.CellGeometryType `json:"geometry_type"`
	Cells        int                   `json:"cells"`
	File         string                `json:"file"`
	Seconds      float64               `json:"seconds"`
}

// RunBatch produces one grid per configured resolution. Inputs are loaded
// once and shared by all resolutions.
func RunBatch(ctx context.Context, config Config) ([]GridSummary, error) {
	gctx := geos.NewContext()
	coverage, err := LoadCoverage(ctx, gctx, config.Grid.Coverage)
	if err != nil {
		return nil, err
	}
	var regions []geo.Feature
	if config.Regions.IsSet() {
		regions, err = LoadRegions(ctx, gctx, config.Regions)
		if err != nil {
			return nil, err
		}
	}
	var land *geos.Geom
	if config.Land.File != "" {
		land, err = LoadLand(ctx, gctx, config.Land.File)
		if err != nil {
			return nil, err
		}
	}

	cache, err := grid.NewCellCache(_BatchCacheCells, config.Workers)
	if err != nil {
		return nil, err
	}
	defer cache.Close()

	summaries := NewList[GridSummary](len(config.Grid.Resolutions))
	for _, res := range config.Grid.Resolutions {
		start := time.Now()
		slog.Info(fmt.Sprintf("grid %vm...", res))
		spec := grid.GridSpec{
			Resolution:   res,
			CRS:          config.Grid.EPSG,
			Coverage:     coverage,
			Tolerance:    config.Grid.Tolerance,
			GeometryType: config.Grid.GeometryType.CellGeometryType,
		}
		cells, err := cache.Get(ctx, spec)
		if err != nil {
			return nil, errors.Wrapf(err, "grid %vm", res)
		}

		attrs := []string{}
		if config.Regions.IsSet() {
			cells, err = LabelCells(ctx, cells, regions, config.Regions, config.Workers)
			if err != nil {
				return nil, errors.Wrapf(err, "grid %vm", res)
			}
			attrs = append(attrs, config.Regions.CellAttribute)
		}
		if land != nil {
			if err := grid.AssignLandProportion(cells, config.Land.Attribute, land, config.Land.Decimals); err != nil {
				return nil, errors.Wrapf(err, "grid %vm", res)
			}
			attrs = append(attrs, config.Land.Attribute)
		}

		file := config.Output.OutputFile(res)
		if err := writer.SaveCells(file, cells, config.Grid.EPSG, attrs); err != nil {
			return nil, err
		}
		summaries.Add(GridSummary{
			Resolution:   res,
			EPSG:         config.Grid.EPSG,
			GeometryType: spec.GeometryType,
			Cells:        len(cells),
			File:         file,
			Seconds:      time.Since(start).Seconds(),
		})
		slog.Info(fmt.Sprintf("grid %vm: %s cells", res, humanize.Comma(int64(len(cells)))))
	}

	meta := filepath.Join(config.Output.Dir, "meta.json")
	if err := WriteJSONToFile(summaries, meta); err != nil {
		return nil, err
	}
	return summaries, nil
}
