package writer

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/ttpr0/go-gridmaker/grid"
	"github.com/ttpr0/go-gridmaker/parser"
	"golang.org/x/exp/slog"
)

// Formats lists the output formats SaveCells accepts.
var Formats = []string{"geojson", "shp", "csv", "gpkg"}

// CellColumns are exported for every cell, ahead of the requested
// attributes.
var CellColumns = []string{"GRD_ID", "X_LLC", "Y_LLC"}

// SaveCells writes cells to path, the format following the extension.
// Besides the identifier and the lower-left corner the attributes named in
// attrs are exported, cells missing one get an empty value.
func SaveCells(path string, cells []*grid.Cell, crs string, attrs []string) error {
	var err error
	switch format := parser.Format(path); format {
	case "geojson", "json":
		err = _SaveCellsGeoJSON(path, cells, crs, attrs)
	case "shp":
		err = _SaveCellsShapefile(path, cells, attrs)
	case "csv":
		err = _SaveCellsCSV(path, cells, attrs)
	case "gpkg":
		err = _SaveCellsGeoPackage(path, cells, crs, attrs)
	default:
		return &parser.UnsupportedFormatError{Path: path, Format: format}
	}
	if err != nil {
		return err
	}
	slog.Info(fmt.Sprintf("%s cells saved to %s", humanize.Comma(int64(len(cells))), path))
	return nil
}

// _AttributeString formats a cell attribute for text outputs.
func _AttributeString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
