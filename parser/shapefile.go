package parser

import (
	"fmt"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	goshp "github.com/jonas-p/go-shp"
	"github.com/pkg/errors"
	"github.com/ttpr0/go-gridmaker/geo"
	. "github.com/ttpr0/go-gridmaker/util"
	"github.com/twpayne/go-geos"
	"golang.org/x/exp/slog"
)

//*******************************************
// shapefile
//*******************************************

// LoadShapefile reads all records of an ESRI shapefile with their dbf
// attributes. Attribute values are kept as strings.
func LoadShapefile(gctx *geos.Context, path string) ([]geo.Feature, error) {
	names, err := _ShapefileFields(path)
	if err != nil {
		return nil, err
	}
	decoder, err := shp.NewDecoder(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open shapefile %s", path)
	}
	defer decoder.Close()

	features := NewList[geo.Feature](100)
	for row := 0; ; row++ {
		shape, fields, more := decoder.DecodeRowFields(names...)
		if !more {
			break
		}
		g, err := _FromShapeGeom(gctx, shape)
		if err != nil {
			slog.Warn(fmt.Sprintf("record %d of %s skipped: %v", row, path, err))
			continue
		}
		props := NewDict[string, any](len(fields))
		for k, v := range fields {
			props[k] = strings.Trim(v, " \x00")
		}
		features.Add(geo.NewFeature(g, props))
	}
	if err := decoder.Error(); err != nil {
		return nil, errors.Wrapf(err, "read shapefile %s", path)
	}
	return features, nil
}

func _ShapefileFields(path string) ([]string, error) {
	reader, err := goshp.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open shapefile %s", path)
	}
	defer reader.Close()
	fields := reader.Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.String()
	}
	return names, nil
}

func _FromShapeGeom(gctx *geos.Context, g geom.Geom) (*geos.Geom, error) {
	switch t := g.(type) {
	case geom.Polygon:
		return _FromShapeRings(gctx, t)
	case geom.MultiPolygon:
		polygons := make([]*geos.Geom, 0, len(t))
		for _, p := range t {
			part, err := _FromShapeRings(gctx, p)
			if err != nil {
				return nil, err
			}
			polygons = append(polygons, geo.Polygons(part)...)
		}
		return geo.NewMultiPolygon(gctx, polygons), nil
	case geom.Point:
		return gctx.NewPointFromXY(t.X, t.Y), nil
	case nil:
		return nil, errors.New("null shape")
	default:
		return nil, errors.Errorf("unsupported shape type %T", g)
	}
}

// _FromShapeRings groups shapefile rings into polygons: a clockwise ring
// starts a polygon, the counter-clockwise rings after it are its holes.
func _FromShapeRings(gctx *geos.Context, rings geom.Polygon) (*geos.Geom, error) {
	polygons := NewList[[][][]float64](1)
	for _, ring := range rings {
		if len(ring) < 4 {
			continue
		}
		coords := make([][]float64, len(ring))
		for i, p := range ring {
			coords[i] = []float64{p.X, p.Y}
		}
		if _SignedArea(ring) <= 0 || polygons.Length() == 0 {
			polygons.Add([][][]float64{coords})
		} else {
			last := polygons.Length() - 1
			polygons[last] = append(polygons[last], coords)
		}
	}
	if polygons.Length() == 0 {
		return nil, errors.New("polygon without rings")
	}
	if polygons.Length() == 1 {
		return gctx.NewPolygon(polygons[0]), nil
	}
	parts := make([]*geos.Geom, polygons.Length())
	for i, p := range polygons {
		parts[i] = gctx.NewPolygon(p)
	}
	return gctx.NewCollection(geos.TypeIDMultiPolygon, parts), nil
}

// shoelace formula, negative for clockwise rings
func _SignedArea(ring geom.Path) float64 {
	area := 0.0
	for i := 0; i < len(ring)-1; i++ {
		area += ring[i].X*ring[i+1].Y - ring[i+1].X*ring[i].Y
	}
	return area / 2
}
