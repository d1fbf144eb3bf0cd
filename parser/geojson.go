package parser

import (
	"fmt"
	"os"

	"github.com/paulmach/orb/geojson"
	"github.com/pkg/errors"
	"github.com/ttpr0/go-gridmaker/geo"
	. "github.com/ttpr0/go-gridmaker/util"
	"github.com/twpayne/go-geos"
	"golang.org/x/exp/slog"
)

//*******************************************
// geojson
//*******************************************

func LoadGeoJSON(gctx *geos.Context, path string) ([]geo.Feature, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read geojson")
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, errors.Wrapf(err, "parse geojson %s", path)
	}
	return FeaturesFromGeoJSON(gctx, fc), nil
}

// FeaturesFromGeoJSON converts the features of fc, skipping the ones
// without a usable geometry.
func FeaturesFromGeoJSON(gctx *geos.Context, fc *geojson.FeatureCollection) []geo.Feature {
	features := NewList[geo.Feature](len(fc.Features))
	for i, f := range fc.Features {
		if f.Geometry == nil {
			slog.Warn(fmt.Sprintf("feature %d has no geometry, skipped", i))
			continue
		}
		g, err := geo.FromOrb(gctx, f.Geometry)
		if err != nil {
			slog.Warn(fmt.Sprintf("feature %d skipped: %v", i, err))
			continue
		}
		props := NewDict[string, any](len(f.Properties))
		for k, v := range f.Properties {
			props[k] = v
		}
		features.Add(geo.NewFeature(g, props))
	}
	return features
}
