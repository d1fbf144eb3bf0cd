package writer

import (
	"strconv"

	"github.com/ttpr0/go-gridmaker/grid"
	. "github.com/ttpr0/go-gridmaker/util"
)

// _SaveCellsCSV writes the attribute table without geometry.
func _SaveCellsCSV(path string, cells []*grid.Cell, attrs []string) error {
	header := make([]string, 0, len(CellColumns)+len(attrs))
	header = append(header, CellColumns...)
	header = append(header, attrs...)

	rows := make([][]string, len(cells))
	for i, cell := range cells {
		row := make([]string, 0, len(header))
		row = append(row, cell.ID, strconv.FormatInt(cell.X, 10), strconv.FormatInt(cell.Y, 10))
		for _, attr := range attrs {
			row = append(row, _AttributeString(cell.Attributes[attr]))
		}
		rows[i] = row
	}
	return WriteCSVToFile(path, ',', header, rows)
}
