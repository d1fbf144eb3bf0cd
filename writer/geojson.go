package writer

import (
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/pkg/errors"
	"github.com/ttpr0/go-gridmaker/geo"
	"github.com/ttpr0/go-gridmaker/grid"
	"github.com/ttpr0/go-gridmaker/parser"
	. "github.com/ttpr0/go-gridmaker/util"
	"github.com/twpayne/go-geos"
)

//*******************************************
// geojson
//*******************************************

func _SaveCellsGeoJSON(path string, cells []*grid.Cell, crs string, attrs []string) error {
	return _WriteGeoJSON(path, CellsToGeoJSON(cells, crs, attrs))
}

// CellsToGeoJSON converts cells into features carrying GRD_ID, X_LLC, Y_LLC
// and the attributes named in attrs. A non-empty crs is added as named
// crs member.
func CellsToGeoJSON(cells []*grid.Cell, crs string, attrs []string) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, cell := range cells {
		f := geojson.NewFeature(_CellToOrb(cell))
		f.Properties["GRD_ID"] = cell.ID
		f.Properties["X_LLC"] = cell.X
		f.Properties["Y_LLC"] = cell.Y
		for _, attr := range attrs {
			f.Properties[attr] = cell.Attributes[attr]
		}
		fc.Append(f)
	}
	if crs != "" {
		fc.ExtraMembers = geojson.Properties{"crs": _NamedCRS(crs)}
	}
	return fc
}

// SaveGeometry writes a single geometry with its properties as GeoJSON or
// shapefile.
func SaveGeometry(path string, g *geos.Geom, crs string, props Dict[string, any]) error {
	o, err := geo.ToOrb(g)
	if err != nil {
		return err
	}
	switch format := parser.Format(path); format {
	case "geojson", "json":
		fc := geojson.NewFeatureCollection()
		f := geojson.NewFeature(o)
		for k, v := range props {
			f.Properties[k] = v
		}
		fc.Append(f)
		if crs != "" {
			fc.ExtraMembers = geojson.Properties{"crs": _NamedCRS(crs)}
		}
		return _WriteGeoJSON(path, fc)
	case "shp":
		return _SaveGeometryShapefile(path, o, props)
	default:
		return &parser.UnsupportedFormatError{Path: path, Format: format}
	}
}

func _CellToOrb(cell *grid.Cell) orb.Geometry {
	if cell.GeometryType == grid.CENTER_POINT {
		cx, cy := cell.Center()
		return orb.Point{cx, cy}
	}
	env := cell.Envelope()
	return orb.Polygon{orb.Ring{
		{env.MinX, env.MinY},
		{env.MaxX, env.MinY},
		{env.MaxX, env.MaxY},
		{env.MinX, env.MaxY},
		{env.MinX, env.MinY},
	}}
}

func _NamedCRS(crs string) map[string]any {
	return map[string]any{
		"type": "name",
		"properties": map[string]any{
			"name": fmt.Sprintf("urn:ogc:def:crs:EPSG::%s", crs),
		},
	}
}

func _WriteGeoJSON(path string, fc *geojson.FeatureCollection) error {
	data, err := fc.MarshalJSON()
	if err != nil {
		return errors.Wrap(err, "encode geojson")
	}
	if err := EnsureParentDir(path); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	return nil
}
