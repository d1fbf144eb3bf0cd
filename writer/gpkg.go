package writer

import (
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-spatial/geom"
	"github.com/go-spatial/geom/encoding/gpkg"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/ttpr0/go-gridmaker/grid"
	. "github.com/ttpr0/go-gridmaker/util"
)

//*******************************************
// geopackage
//*******************************************

// GeoPackageTable is the feature table cells are written to.
const GeoPackageTable = "grid"

// _SaveCellsGeoPackage writes the cells into a new GeoPackage. An existing
// file at path is replaced.
func _SaveCellsGeoPackage(path string, cells []*grid.Cell, crs string, attrs []string) (err error) {
	srs, err := strconv.Atoi(crs)
	if err != nil {
		return errors.Errorf("geopackage needs a numeric EPSG code, got %q", crs)
	}
	if err := EnsureParentDir(path); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "replace %s", path)
	}

	h, err := gpkg.Open(path)
	if err != nil {
		return errors.Wrapf(err, "create geopackage %s", path)
	}
	defer func() {
		if cerr := h.Close(); err == nil && cerr != nil {
			err = errors.Wrapf(cerr, "close geopackage %s", path)
		}
	}()

	geometry_type := gpkg.Polygon
	geometry_sql := "POLYGON"
	if len(cells) > 0 && cells[0].GeometryType == grid.CENTER_POINT {
		geometry_type = gpkg.Point
		geometry_sql = "POINT"
	}
	numeric := NewArray[bool](len(attrs))
	columns := []string{`"fid" INTEGER PRIMARY KEY AUTOINCREMENT`, `"geom" ` + geometry_sql, `"GRD_ID" TEXT`, `"X_LLC" INTEGER`, `"Y_LLC" INTEGER`}
	for i, attr := range attrs {
		if len(cells) > 0 {
			_, numeric[i] = cells[0].Attributes[attr].(float64)
		}
		if numeric[i] {
			columns = append(columns, _QuoteIdent(attr)+" REAL")
		} else {
			columns = append(columns, _QuoteIdent(attr)+" TEXT")
		}
	}

	// srs_id of gpkg_geometry_columns references gpkg_spatial_ref_sys
	_, err = h.Exec(`INSERT OR IGNORE INTO gpkg_spatial_ref_sys
		(srs_name, srs_id, organization, organization_coordsys_id, definition, description)
		VALUES (?, ?, 'EPSG', ?, 'undefined', ?)`,
		"EPSG:"+crs, srs, srs, "grid CRS")
	if err != nil {
		return errors.Wrap(err, "register srs")
	}
	create := fmt.Sprintf(`CREATE TABLE %s (%s)`, _QuoteIdent(GeoPackageTable), strings.Join(columns, ", "))
	if _, err := h.Exec(create); err != nil {
		return errors.Wrap(err, "create cell table")
	}
	err = h.AddGeometryTable(gpkg.TableDescription{
		Name:          GeoPackageTable,
		ShortName:     GeoPackageTable,
		Description:   fmt.Sprintf("grid cells, EPSG:%s", crs),
		GeometryField: "geom",
		GeometryType:  geometry_type,
		SRS:           int32(srs),
		Z:             gpkg.Prohibited,
		M:             gpkg.Prohibited,
	})
	if err != nil {
		return errors.Wrap(err, "register cell table")
	}

	names := []string{`"geom"`, `"GRD_ID"`, `"X_LLC"`, `"Y_LLC"`}
	for _, attr := range attrs {
		names = append(names, _QuoteIdent(attr))
	}
	insert := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (?%s)`,
		_QuoteIdent(GeoPackageTable), strings.Join(names, ", "), strings.Repeat(", ?", len(names)-1))

	tx, err := h.Begin()
	if err != nil {
		return errors.Wrap(err, "begin cell insert")
	}
	if err := _InsertCells(tx, insert, cells, int32(srs), attrs, numeric); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit cells")
	}
	return nil
}

func _InsertCells(tx *sql.Tx, insert string, cells []*grid.Cell, srs int32, attrs []string, numeric Array[bool]) error {
	stmt, err := tx.Prepare(insert)
	if err != nil {
		return errors.Wrap(err, "prepare cell insert")
	}
	defer stmt.Close()

	for _, cell := range cells {
		sb, err := gpkg.NewBinary(srs, _CellToGeom(cell))
		if err != nil {
			return errors.Wrapf(err, "encode %s", cell.ID)
		}
		values := make([]any, 0, 4+len(attrs))
		values = append(values, sb, cell.ID, cell.X, cell.Y)
		for i, attr := range attrs {
			value := cell.Attributes[attr]
			if numeric[i] {
				values = append(values, value)
			} else {
				values = append(values, _AttributeString(value))
			}
		}
		if _, err := stmt.Exec(values...); err != nil {
			return errors.Wrapf(err, "insert %s", cell.ID)
		}
	}
	return nil
}

func _CellToGeom(cell *grid.Cell) geom.Geometry {
	if cell.GeometryType == grid.CENTER_POINT {
		cx, cy := cell.Center()
		return geom.Point{cx, cy}
	}
	env := cell.Envelope()
	return geom.Polygon{{
		{env.MinX, env.MinY},
		{env.MaxX, env.MinY},
		{env.MaxX, env.MaxY},
		{env.MinX, env.MaxY},
	}}
}

func _QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
