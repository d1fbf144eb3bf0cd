package parser

import (
	"context"
	"testing"

	"github.com/ctessum/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ttpr0/go-gridmaker/geo"
	. "github.com/ttpr0/go-gridmaker/util"
	"github.com/twpayne/go-geos"
)

func TestLoadGeoJSON(t *testing.T) {
	gctx := geos.NewContext()
	features, err := LoadFeatures(context.Background(), gctx, "testdata/regions.geojson", geo.Filter{})
	require.NoError(t, err)
	require.Len(t, features, 3)

	code, ok := features[1].GetString("CNTR_ID")
	assert.True(t, ok)
	assert.Equal(t, "NL", code)
	assert.Equal(t, geos.TypeIDMultiPolygon, features[1].Geometry().TypeID())
	assert.InDelta(t, 25100, features[1].Geometry().Area(), 1e-9)
	assert.Equal(t, true, features[0].Properties()["EU"])
}

func TestLoadFiltered(t *testing.T) {
	gctx := geos.NewContext()
	filter := geo.Filter{Attribute: "CNTR_ID", Values: []string{"CH", "BE"}}
	features, err := LoadFeatures(context.Background(), gctx, "testdata/regions.geojson", filter)
	require.NoError(t, err)
	require.Len(t, features, 2)
	code, _ := features[1].GetString("CNTR_ID")
	assert.Equal(t, "CH", code)
}

func TestLoadErrors(t *testing.T) {
	gctx := geos.NewContext()
	_, err := LoadFeatures(context.Background(), gctx, "testdata/regions.gpkg", geo.Filter{})
	var unsupported *UnsupportedFormatError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "gpkg", unsupported.Format)

	_, err = LoadFeatures(context.Background(), gctx, "testdata/missing.geojson", geo.Filter{})
	assert.Error(t, err)
}

func TestLoadOSMBoundaries(t *testing.T) {
	gctx := geos.NewContext()
	features, err := LoadFeatures(context.Background(), gctx, "testdata/boundaries.osm.pbf", geo.Filter{})
	require.NoError(t, err)
	// the level 4 boundary and the bus route are not countries
	require.Len(t, features, 1)
	code, _ := features[0].GetString("CNTR_ID")
	assert.Equal(t, "AA", code)
	name, _ := features[0].GetString("NAME")
	assert.Equal(t, "Aland", name)
	level, _ := features[0].GetString("ADMIN_LEVEL")
	assert.Equal(t, "2", level)
	g := features[0].Geometry()
	assert.True(t, geo.IsPolygonal(g))
	assert.InDelta(t, 1.0, g.Area(), 1e-6)
	env := geo.EnvelopeOf(g)
	assert.InDelta(t, 10.0, env.MinX, 1e-6)
	assert.InDelta(t, 51.0, env.MaxY, 1e-6)

	features, err = LoadOSMBoundaries(context.Background(), gctx, "testdata/boundaries.osm.pbf", &AdminBoundaryDecoder{MaxLevel: 4})
	require.NoError(t, err)
	require.Len(t, features, 2)
	areas := map[string]float64{}
	for _, f := range features {
		code, _ := f.GetString("CNTR_ID")
		areas[code] = f.Geometry().Area()
	}
	assert.InDelta(t, 1.0, areas["AA"], 1e-6)
	assert.InDelta(t, 0.25, areas["AA-01"], 1e-6)
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "shp", Format("data/CNTR.SHP"))
	assert.Equal(t, "geojson", Format("out.geojson"))
	assert.Equal(t, "", Format("noext"))
	assert.Equal(t, "pbf", Format("boundaries.osm.pbf"))
}

func TestAdminBoundaryDecoder(t *testing.T) {
	decoder := &AdminBoundaryDecoder{}
	country := Dict[string, string]{
		"type":             "boundary",
		"boundary":         "administrative",
		"admin_level":      "2",
		"name":             "België",
		"ISO3166-1:alpha2": "BE",
	}
	assert.True(t, decoder.IsValidBoundary(country))
	props := decoder.DecodeProperties(country)
	assert.Equal(t, "BE", props["CNTR_ID"])
	assert.Equal(t, "België", props["NAME"])

	province := Dict[string, string]{"type": "boundary", "boundary": "administrative", "admin_level": "4", "ISO3166-2": "BE-VLG"}
	assert.False(t, decoder.IsValidBoundary(province))
	assert.True(t, (&AdminBoundaryDecoder{MaxLevel: 4}).IsValidBoundary(province))
	assert.Equal(t, "BE-VLG", decoder.DecodeProperties(province)["CNTR_ID"])

	assert.False(t, decoder.IsValidBoundary(Dict[string, string]{"type": "route"}))
}

func TestShapeRings(t *testing.T) {
	gctx := geos.NewContext()
	// clockwise outer ring with a counter-clockwise hole, then a second outer ring
	rings := shapeRings(
		[][2]float64{{0, 0}, {0, 10}, {10, 10}, {10, 0}, {0, 0}},
		[][2]float64{{2, 2}, {4, 2}, {4, 4}, {2, 4}, {2, 2}},
		[][2]float64{{20, 0}, {20, 5}, {25, 5}, {25, 0}, {20, 0}},
	)
	g, err := _FromShapeRings(gctx, rings)
	require.NoError(t, err)
	assert.Equal(t, geos.TypeIDMultiPolygon, g.TypeID())
	assert.Equal(t, 2, g.NumGeometries())
	assert.InDelta(t, 100-4+25, g.Area(), 1e-9)
	assert.True(t, g.IsValid())
}

func shapeRings(rings ...[][2]float64) geom.Polygon {
	polygon := make(geom.Polygon, len(rings))
	for i, ring := range rings {
		path := make(geom.Path, len(ring))
		for j, p := range ring {
			path[j] = geom.Point{X: p[0], Y: p[1]}
		}
		polygon[i] = path
	}
	return polygon
}
