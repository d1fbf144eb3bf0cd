package union

import (
	"fmt"
	"math"

	"github.com/dustin/go-humanize"
	"github.com/ttpr0/go-gridmaker/geo"
	"github.com/twpayne/go-geos"
	"golang.org/x/exp/slices"
	"golang.org/x/exp/slog"
)

//*******************************************
// union engine
//*******************************************

// DefaultEpsilon is the buffer distance applied to an operand when a
// pairwise union fails.
const DefaultEpsilon = 0.01

type Options struct {
	// buffer distance for the single retry of a failed pairwise union,
	// DefaultEpsilon when zero
	Epsilon float64
}

// UnionError reports a pairwise union that failed twice.
type UnionError struct {
	Step  int
	Cause error
}

func (self *UnionError) Error() string {
	return fmt.Sprintf("union failed at step %d: %v", self.Step, self.Cause)
}
func (self *UnionError) Unwrap() error {
	return self.Cause
}

// UnionAll merges geoms into one multi-polygon.
//
// Geometries are sorted along a coarse locality key and merged in groups of
// four, level by level, until one geometry remains. Unioning neighbours
// first keeps the intermediate results small. The inputs must belong to ctx
// and are not modified.
func UnionAll(ctx *geos.Context, geoms []*geos.Geom, opts Options) (*geos.Geom, error) {
	epsilon := opts.Epsilon
	if epsilon == 0 {
		epsilon = DefaultEpsilon
	}

	current := make([]*geos.Geom, 0, len(geoms))
	for _, g := range geoms {
		if g == nil || g.IsEmpty() {
			continue
		}
		current = append(current, g)
	}
	if len(current) == 0 {
		return ctx.NewEmptyCollection(geos.TypeIDMultiPolygon), nil
	}
	slog.Debug(fmt.Sprintf("union of %s geometries", humanize.Comma(int64(len(current)))))

	k := 1 + math.Floor(math.Sqrt(float64(len(current))))
	step := 0
	for len(current) > 1 {
		keys := make(map[*geos.Geom]float64, len(current))
		for _, g := range current {
			keys[g] = _LocalityKey(g, k)
		}
		slices.SortStableFunc(current, func(a, b *geos.Geom) int {
			ka, kb := keys[a], keys[b]
			switch {
			case ka < kb:
				return -1
			case ka > kb:
				return 1
			default:
				return 0
			}
		})

		next := make([]*geos.Geom, 0, (len(current)+3)/4)
		for start := 0; start < len(current); start += 4 {
			end := min(start+4, len(current))
			merged := current[start]
			for _, g := range current[start+1 : end] {
				step += 1
				var err error
				merged, err = _SafeUnion(merged, g, epsilon)
				if err != nil {
					return nil, &UnionError{Step: step, Cause: err}
				}
			}
			next = append(next, merged)
		}
		current = next
		slog.Debug(fmt.Sprintf("union level done, %s geometries left", humanize.Comma(int64(len(current)))))
	}

	return geo.NewMultiPolygon(ctx, geo.Polygons(current[0])), nil
}

// _LocalityKey maps the lower-left corner of g onto a coarse k by k
// raster, row-major.
func _LocalityKey(g *geos.Geom, k float64) float64 {
	env := geo.EnvelopeOf(g)
	return math.Floor(env.MinX/k) + k*math.Floor(env.MinY/k)
}

// pairwise union, replaced in tests to simulate GEOS failures
var _union = func(a, b *geos.Geom) *geos.Geom {
	return a.Union(b)
}

// _SafeUnion unions a and b, retrying once with b slightly buffered.
func _SafeUnion(a, b *geos.Geom, epsilon float64) (*geos.Geom, error) {
	u, err := geo.Safe("union", func() *geos.Geom {
		return _union(a, b)
	})
	if err == nil {
		return u, nil
	}
	slog.Warn(fmt.Sprintf("union failed (%v), retrying with buffer %v", err, epsilon))
	return geo.Safe("union", func() *geos.Geom {
		return _union(a, b.Buffer(epsilon, 8))
	})
}
