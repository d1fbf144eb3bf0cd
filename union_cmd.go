package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/ttpr0/go-gridmaker/geo"
	"github.com/ttpr0/go-gridmaker/parser"
	"github.com/ttpr0/go-gridmaker/preproc"
	. "github.com/ttpr0/go-gridmaker/util"
	"github.com/ttpr0/go-gridmaker/writer"
	"github.com/twpayne/go-geos"
	"golang.org/x/exp/slog"
)

//**********************************************************
// union command
//**********************************************************

// RunUnion merges all polygons of a file into one multi-polygon:
//
//	gridmaker union -i regions.shp -o mask.geojson [-buffer 1000]
func RunUnion(ctx context.Context, args []string, usage io.Writer) error {
	fs := flag.NewFlagSet("gridmaker union", flag.ContinueOnError)
	fs.SetOutput(usage)
	input := fs.String("i", "", "input polygons (geojson, shp, pbf)")
	output := fs.String("o", "union.geojson", "output file (geojson, shp)")
	buffer := fs.Float64("buffer", 0, "buffer distance applied to the union")
	epsg := fs.String("epsg", "", "EPSG code written to the GeoJSON output")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *input == "" {
		return errors.New("union: missing input file (-i)")
	}

	gctx := geos.NewContext()
	features, err := parser.LoadFeatures(ctx, gctx, *input, geo.Filter{})
	if err != nil {
		return err
	}
	features, err = preproc.Repair(features)
	if err != nil {
		return err
	}
	mask, err := preproc.Mask(gctx, features, *buffer)
	if err != nil {
		return err
	}

	props := NewDict[string, any](2)
	props["SOURCE"] = *input
	props["PARTS"] = mask.NumGeometries()
	if err := writer.SaveGeometry(*output, mask, *epsg, props); err != nil {
		return err
	}
	slog.Info(fmt.Sprintf("union of %d features saved to %s", len(features), *output))
	return nil
}
