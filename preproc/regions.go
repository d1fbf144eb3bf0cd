package preproc

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/ttpr0/go-gridmaker/geo"
	"github.com/ttpr0/go-gridmaker/union"
	. "github.com/ttpr0/go-gridmaker/util"
	"github.com/twpayne/go-geos"
	"golang.org/x/exp/slog"
)

//*******************************************
// region preparation
//*******************************************

// Repair replaces invalid region geometries by their zero-distance buffer.
// Features without geometry are kept as they are.
func Repair(features []geo.Feature) ([]geo.Feature, error) {
	repaired := make([]geo.Feature, len(features))
	count := 0
	for i, f := range features {
		g := f.Geometry()
		if g == nil || g.IsValid() {
			repaired[i] = f
			continue
		}
		r, err := geo.Repair(g)
		if err != nil {
			return nil, errors.Wrapf(err, "feature %d", i)
		}
		repaired[i] = f.WithGeometry(r)
		count += 1
	}
	slog.Debug(fmt.Sprintf("%d of %s geometries repaired", count, humanize.Comma(int64(len(features)))))
	return repaired, nil
}

// MergeVersions builds one region per code from several versions of the
// same dataset: the geometries carrying the code in each version are
// unioned. A code absent from a version is skipped with a warning, a code
// absent from every version is an error.
func MergeVersions(ctx *geos.Context, versions [][]geo.Feature, attr string, codes []string) ([]geo.Feature, error) {
	merged := make([]geo.Feature, 0, len(codes))
	for _, code := range codes {
		parts := make([]*geos.Geom, 0, len(versions))
		for v, features := range versions {
			found := false
			for _, f := range features {
				value, ok := f.GetString(attr)
				if !ok || value != code || f.Geometry() == nil {
					continue
				}
				parts = append(parts, f.Geometry())
				found = true
			}
			if !found {
				slog.Warn(fmt.Sprintf("region %s missing in version %d", code, v))
			}
		}
		if len(parts) == 0 {
			return nil, errors.Errorf("region %s not found in any version", code)
		}
		u, err := union.UnionAll(ctx, parts, union.Options{})
		if err != nil {
			return nil, errors.Wrapf(err, "merge region %s", code)
		}
		u, err = geo.Repair(u)
		if err != nil {
			return nil, errors.Wrapf(err, "merge region %s", code)
		}
		props := NewDict[string, any](1)
		props[attr] = code
		merged = append(merged, geo.NewFeature(u, props))
	}
	return merged, nil
}

// Mask unions all feature geometries and buffers the result by dist when
// dist is not zero.
func Mask(ctx *geos.Context, features []geo.Feature, dist float64) (*geos.Geom, error) {
	mask, err := union.UnionAll(ctx, geo.Geometries(features), union.Options{})
	if err != nil {
		return nil, errors.Wrap(err, "build mask")
	}
	if dist == 0 || mask.IsEmpty() {
		return mask, nil
	}
	return geo.Safe("buffer mask", func() *geos.Geom {
		return mask.Buffer(dist, 8)
	})
}

// Buffer returns the features with their geometries buffered by dist.
func Buffer(features []geo.Feature, dist float64) ([]geo.Feature, error) {
	buffered := make([]geo.Feature, len(features))
	for i, f := range features {
		g := f.Geometry()
		if g == nil {
			buffered[i] = f
			continue
		}
		b, err := geo.Safe("buffer", func() *geos.Geom {
			return g.Buffer(dist, 8)
		})
		if err != nil {
			return nil, errors.Wrapf(err, "feature %d", i)
		}
		buffered[i] = f.WithGeometry(b)
	}
	return buffered, nil
}
