package grid

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"golang.org/x/exp/slog"
)

// FilterUnassigned returns the cells whose attribute attr holds a non-empty
// string, in input order. The input is left untouched.
func FilterUnassigned(cells []*Cell, attr string) []*Cell {
	kept := make([]*Cell, 0, len(cells))
	for _, cell := range cells {
		code, ok := cell.GetString(attr)
		if !ok || code == "" {
			continue
		}
		kept = append(kept, cell)
	}
	slog.Debug(fmt.Sprintf("%s of %s cells assigned", humanize.Comma(int64(len(kept))), humanize.Comma(int64(len(cells)))))
	return kept
}
