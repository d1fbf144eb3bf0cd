package writer

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"

	goshp "github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/pkg/errors"
	"github.com/ttpr0/go-gridmaker/grid"
	. "github.com/ttpr0/go-gridmaker/util"
	"golang.org/x/exp/slices"
)

//*******************************************
// shapefile
//*******************************************

// dbf field names are limited to 10 characters
const _MaxFieldName = 10

func _FieldName(name string) string {
	if len(name) > _MaxFieldName {
		return name[:_MaxFieldName]
	}
	return name
}

func _SaveCellsShapefile(path string, cells []*grid.Cell, attrs []string) (err error) {
	shape_type := goshp.POLYGON
	if len(cells) > 0 && cells[0].GeometryType == grid.CENTER_POINT {
		shape_type = goshp.POINT
	}
	fields := []goshp.Field{
		goshp.StringField("GRD_ID", 64),
		goshp.NumberField("X_LLC", 18),
		goshp.NumberField("Y_LLC", 18),
	}
	numeric := NewArray[bool](len(attrs))
	for i, attr := range attrs {
		if len(cells) > 0 {
			_, numeric[i] = cells[0].Attributes[attr].(float64)
		}
		if numeric[i] {
			fields = append(fields, goshp.FloatField(_FieldName(attr), 18, 6))
		} else {
			fields = append(fields, goshp.StringField(_FieldName(attr), 80))
		}
	}

	if err := EnsureParentDir(path); err != nil {
		return err
	}
	w, err := goshp.Create(path, shape_type)
	if err != nil {
		return errors.Wrapf(err, "create shapefile %s", path)
	}
	defer func() {
		if cerr := _CloseShapefile(w, path); err == nil {
			err = cerr
		}
	}()
	if err := w.SetFields(fields); err != nil {
		return errors.Wrap(err, "set shapefile fields")
	}

	for _, cell := range cells {
		row := int(w.Write(_CellShape(cell)))
		values := make([]any, 0, len(fields))
		values = append(values, cell.ID, int(cell.X), int(cell.Y))
		for i, attr := range attrs {
			value := cell.Attributes[attr]
			if numeric[i] {
				f, _ := value.(float64)
				values = append(values, f)
			} else {
				values = append(values, _AttributeString(value))
			}
		}
		for field, value := range values {
			if err := w.WriteAttribute(row, field, value); err != nil {
				return errors.Wrapf(err, "write attributes of %s", cell.ID)
			}
		}
	}
	return nil
}

// _CellShape builds the shapefile record of a cell, outer rings clockwise.
func _CellShape(cell *grid.Cell) goshp.Shape {
	if cell.GeometryType == grid.CENTER_POINT {
		cx, cy := cell.Center()
		return &goshp.Point{X: cx, Y: cy}
	}
	env := cell.Envelope()
	ring := []goshp.Point{
		{X: env.MinX, Y: env.MinY},
		{X: env.MinX, Y: env.MaxY},
		{X: env.MaxX, Y: env.MaxY},
		{X: env.MaxX, Y: env.MinY},
		{X: env.MinX, Y: env.MinY},
	}
	polygon := goshp.Polygon(*goshp.NewPolyLine([][]goshp.Point{ring}))
	return &polygon
}

func _SaveGeometryShapefile(path string, g orb.Geometry, props Dict[string, any]) (err error) {
	var polygons []orb.Polygon
	switch t := g.(type) {
	case orb.Polygon:
		polygons = []orb.Polygon{t}
	case orb.MultiPolygon:
		polygons = t
	default:
		return errors.Errorf("cannot save %s as polygon shapefile", g.GeoJSONType())
	}
	parts := make([][]goshp.Point, 0, len(polygons))
	for _, polygon := range polygons {
		for i, ring := range polygon {
			// outer rings clockwise, holes counter-clockwise
			r := ring.Clone()
			if (i == 0) != (r.Orientation() == orb.CW) {
				r.Reverse()
			}
			part := make([]goshp.Point, len(r))
			for j, p := range r {
				part[j] = goshp.Point{X: p[0], Y: p[1]}
			}
			parts = append(parts, part)
		}
	}

	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	fields := make([]goshp.Field, len(keys))
	for i, k := range keys {
		fields[i] = goshp.StringField(_FieldName(k), 80)
	}

	if err := EnsureParentDir(path); err != nil {
		return err
	}
	w, err := goshp.Create(path, goshp.POLYGON)
	if err != nil {
		return errors.Wrapf(err, "create shapefile %s", path)
	}
	defer func() {
		if cerr := _CloseShapefile(w, path); err == nil {
			err = cerr
		}
	}()
	if err := w.SetFields(fields); err != nil {
		return errors.Wrap(err, "set shapefile fields")
	}
	polygon := goshp.Polygon(*goshp.NewPolyLine(parts))
	row := int(w.Write(&polygon))
	for i, k := range keys {
		if err := w.WriteAttribute(row, i, _AttributeString(props[k])); err != nil {
			return errors.Wrapf(err, "write attribute %s", k)
		}
	}
	return nil
}

// _CloseShapefile flushes the file headers and checks the result. go-shp
// reports nothing from Close, a failed flush shows up as a header length
// that does not match the file size.
func _CloseShapefile(w *goshp.Writer, path string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("close shapefile %s: %v", path, r)
		}
	}()
	w.Close()
	return _VerifyShapefile(path)
}

// _VerifyShapefile compares the length stored in the .shp and .shx headers
// (16-bit words at offset 24) with the file sizes, and checks the .dbf.
func _VerifyShapefile(path string) error {
	base := strings.TrimSuffix(path, filepath.Ext(path))
	for _, ext := range []string{".shp", ".shx"} {
		file := base + ext
		data, err := os.ReadFile(file)
		if err != nil {
			return errors.Wrap(err, "verify shapefile")
		}
		if len(data) < 100 {
			return errors.Errorf("shapefile %s: truncated header", file)
		}
		words := binary.BigEndian.Uint32(data[24:28])
		if int64(words)*2 != int64(len(data)) {
			return errors.Errorf("shapefile %s: header length %d, file size %d", file, int64(words)*2, len(data))
		}
	}
	if _, err := os.Stat(base + ".dbf"); err != nil {
		return errors.Wrap(err, "verify shapefile")
	}
	return nil
}
