package writer

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ttpr0/go-gridmaker/geo"
	"github.com/ttpr0/go-gridmaker/grid"
	"github.com/ttpr0/go-gridmaker/parser"
	"github.com/twpayne/go-geos"
)

func testCells(typ grid.CellGeometryType) []*grid.Cell {
	a := grid.NewCell("3035", 100, 0, 0, typ)
	a.Attributes["CNTR_ID"] = "BE"
	a.Attributes["LAND_PC"] = 100.0
	b := grid.NewCell("3035", 100, 100, 0, typ)
	b.Attributes["CNTR_ID"] = "BE-NL"
	b.Attributes["LAND_PC"] = 33.5
	return []*grid.Cell{a, b}
}

func TestSaveCellsGeoJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "grid.geojson")
	require.NoError(t, SaveCells(path, testCells(grid.SURFACE), "3035", []string{"CNTR_ID"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	crs := raw["crs"].(map[string]any)["properties"].(map[string]any)["name"]
	assert.Equal(t, "urn:ogc:def:crs:EPSG::3035", crs)

	features, err := parser.LoadFeatures(context.Background(), geos.NewContext(), path, geo.Filter{})
	require.NoError(t, err)
	require.Len(t, features, 2)
	id, _ := features[1].GetString("GRD_ID")
	assert.Equal(t, "CRS3035RES100mN100E0", id)
	code, _ := features[1].GetString("CNTR_ID")
	assert.Equal(t, "BE-NL", code)
	x, _ := features[1].GetString("X_LLC")
	assert.Equal(t, "100", x)
	assert.InDelta(t, 10000, features[1].Geometry().Area(), 1e-9)
	_, ok := features[1].Properties()["LAND_PC"]
	assert.False(t, ok)
}

func TestSaveCellsCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grid.csv")
	require.NoError(t, SaveCells(path, testCells(grid.SURFACE), "3035", []string{"CNTR_ID", "LAND_PC", "MISSING"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Equal(t, []string{
		"GRD_ID,X_LLC,Y_LLC,CNTR_ID,LAND_PC,MISSING",
		"CRS3035RES100mN0E0,0,0,BE,100,",
		"CRS3035RES100mN100E0,100,0,BE-NL,33.5,",
	}, lines)
}

func TestSaveCellsShapefile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grid.shp")
	require.NoError(t, SaveCells(path, testCells(grid.SURFACE), "3035", []string{"CNTR_ID", "LAND_PC"}))

	features, err := parser.LoadShapefile(geos.NewContext(), path)
	require.NoError(t, err)
	require.Len(t, features, 2)
	id, _ := features[0].GetString("GRD_ID")
	assert.Equal(t, "CRS3035RES100mN0E0", id)
	code, _ := features[1].GetString("CNTR_ID")
	assert.Equal(t, "BE-NL", code)
	assert.InDelta(t, 10000, features[0].Geometry().Area(), 1e-9)
}

func TestVerifyShapefile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grid.shp")
	require.NoError(t, SaveCells(path, testCells(grid.SURFACE), "3035", []string{"CNTR_ID"}))
	require.NoError(t, _VerifyShapefile(path))

	// bytes past the length written in the header
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.Write([]byte{0, 0, 0, 0})
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.Error(t, _VerifyShapefile(path))

	require.NoError(t, SaveCells(path, testCells(grid.SURFACE), "3035", nil))
	require.NoError(t, os.Remove(strings.TrimSuffix(path, ".shp")+".dbf"))
	assert.Error(t, _VerifyShapefile(path))
}

func TestSaveCenterPointsShapefile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "points.shp")
	require.NoError(t, SaveCells(path, testCells(grid.CENTER_POINT), "3035", nil))

	features, err := parser.LoadShapefile(geos.NewContext(), path)
	require.NoError(t, err)
	require.Len(t, features, 2)
	g := features[1].Geometry()
	assert.Equal(t, geos.TypeIDPoint, g.TypeID())
	assert.Equal(t, 150.0, g.X())
}

func TestSaveCellsGeoPackage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grid.gpkg")
	// a second save replaces the first file
	require.NoError(t, SaveCells(path, testCells(grid.SURFACE)[:1], "3035", nil))
	require.NoError(t, SaveCells(path, testCells(grid.SURFACE), "3035", []string{"CNTR_ID", "LAND_PC"}))

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM "grid"`).Scan(&count))
	assert.Equal(t, 2, count)

	var id, code string
	var x int64
	var land float64
	row := db.QueryRow(`SELECT "GRD_ID", "X_LLC", "CNTR_ID", "LAND_PC" FROM "grid" ORDER BY "fid" DESC LIMIT 1`)
	require.NoError(t, row.Scan(&id, &x, &code, &land))
	assert.Equal(t, "CRS3035RES100mN100E0", id)
	assert.Equal(t, int64(100), x)
	assert.Equal(t, "BE-NL", code)
	assert.Equal(t, 33.5, land)

	var column string
	var srs int
	row = db.QueryRow(`SELECT column_name, srs_id FROM gpkg_geometry_columns WHERE table_name = 'grid'`)
	require.NoError(t, row.Scan(&column, &srs))
	assert.Equal(t, "geom", column)
	assert.Equal(t, 3035, srs)

	err = SaveCells(filepath.Join(t.TempDir(), "grid.gpkg"), testCells(grid.SURFACE), "lambert", nil)
	assert.Error(t, err)
}

func TestSaveUnsupported(t *testing.T) {
	err := SaveCells(filepath.Join(t.TempDir(), "grid.kml"), testCells(grid.SURFACE), "3035", nil)
	var unsupported *parser.UnsupportedFormatError
	assert.ErrorAs(t, err, &unsupported)
}

func TestSaveGeometry(t *testing.T) {
	ctx := geos.NewContext()
	g, err := ctx.NewGeomFromWKT("MULTIPOLYGON (((0 0, 10 0, 10 10, 0 10, 0 0), (2 2, 2 4, 4 4, 4 2, 2 2)), ((20 0, 25 0, 25 5, 20 5, 20 0)))")
	require.NoError(t, err)
	props := map[string]any{"NAME": "mask"}

	dir := t.TempDir()
	for _, name := range []string{"mask.geojson", "mask.shp"} {
		path := filepath.Join(dir, name)
		require.NoError(t, SaveGeometry(path, g, "3035", props))
		features, err := parser.LoadFeatures(context.Background(), ctx, path, geo.Filter{})
		require.NoError(t, err)
		require.Len(t, features, 1, name)
		assert.InDelta(t, 121, features[0].Geometry().Area(), 1e-9, name)
		assert.True(t, features[0].Geometry().IsValid(), name)
		n, _ := features[0].GetString("NAME")
		assert.Equal(t, "mask", n, name)
	}
}
