package parser

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/ttpr0/go-gridmaker/geo"
	"github.com/twpayne/go-geos"
	"golang.org/x/exp/slog"
)

// UnsupportedFormatError reports a file extension no loader exists for.
type UnsupportedFormatError struct {
	Path   string
	Format string
}

func (self *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported vector format %q: %s", self.Format, self.Path)
}

// Format returns the lower-case extension of path without the dot.
func Format(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}

// LoadFeatures reads the features of a vector file into the GEOS context
// gctx. The format follows the file extension. Features not matching
// filter are dropped.
func LoadFeatures(ctx context.Context, gctx *geos.Context, path string, filter geo.Filter) ([]geo.Feature, error) {
	var features []geo.Feature
	var err error
	switch format := Format(path); format {
	case "geojson", "json":
		features, err = LoadGeoJSON(gctx, path)
	case "shp":
		features, err = LoadShapefile(gctx, path)
	case "pbf":
		features, err = LoadOSMBoundaries(ctx, gctx, path, &AdminBoundaryDecoder{})
	default:
		return nil, &UnsupportedFormatError{Path: path, Format: format}
	}
	if err != nil {
		return nil, err
	}
	kept := filter.Apply(features)
	slog.Debug(fmt.Sprintf("loaded %s of %s features from %s", humanize.Comma(int64(len(kept))), humanize.Comma(int64(len(features))), path))
	return kept, nil
}
