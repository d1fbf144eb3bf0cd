package geo

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/twpayne/go-geos"
	"golang.org/x/exp/slog"
)

// InvalidGeometryError reports an operand that broke a topological
// operation.
type InvalidGeometryError struct {
	Op     string
	Reason string
}

func (self *InvalidGeometryError) Error() string {
	return fmt.Sprintf("invalid geometry in %s: %s", self.Op, self.Reason)
}

// NewSquare creates the closed square polygon with lower-left corner (x, y).
func NewSquare(ctx *geos.Context, x, y, size float64) *geos.Geom {
	return ctx.NewPolygon([][][]float64{{
		{x, y},
		{x + size, y},
		{x + size, y + size},
		{x, y + size},
		{x, y},
	}})
}

// Safe runs a GEOS operation and turns a GEOS failure into an
// InvalidGeometryError. go-geos panics when GEOS raises an exception.
func Safe(op string, f func() *geos.Geom) (result *geos.Geom, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = &InvalidGeometryError{Op: op, Reason: fmt.Sprint(r)}
		}
	}()
	result = f()
	if result == nil {
		return nil, &InvalidGeometryError{Op: op, Reason: "no result"}
	}
	return result, nil
}

// Repair returns g if it is valid, otherwise its zero-distance buffer.
func Repair(g *geos.Geom) (*geos.Geom, error) {
	if g == nil {
		return nil, &InvalidGeometryError{Op: "repair", Reason: "nil geometry"}
	}
	if g.IsValid() {
		return g, nil
	}
	repaired, err := Safe("repair", func() *geos.Geom {
		return g.Buffer(0, 8)
	})
	if err != nil {
		return nil, err
	}
	if repaired.IsEmpty() && !g.IsEmpty() {
		return nil, &InvalidGeometryError{Op: "repair", Reason: "zero-distance buffer is empty"}
	}
	return repaired, nil
}

// Transfer copies g into the context ctx.
//
// GEOS contexts are not shared between goroutines: workers get their own
// context and a copy of the shared geometries. Encode with ToWKB on the
// owning goroutine and decode with FromWKB on the worker.
func Transfer(ctx *geos.Context, g *geos.Geom) (*geos.Geom, error) {
	if g == nil {
		return nil, nil
	}
	return FromWKB(ctx, g.ToWKB())
}

func FromWKB(ctx *geos.Context, data []byte) (*geos.Geom, error) {
	g, err := ctx.NewGeomFromWKB(data)
	if err != nil {
		return nil, errors.Wrap(err, "decode wkb")
	}
	return g, nil
}

// Polygons decomposes g into its polygons, recursing through multi
// geometries and collections. Non-polygonal parts are dropped.
func Polygons(g *geos.Geom) []*geos.Geom {
	polygons := make([]*geos.Geom, 0, 4)
	_CollectPolygons(g, &polygons)
	return polygons
}

func _CollectPolygons(g *geos.Geom, polygons *[]*geos.Geom) {
	if g == nil || g.IsEmpty() {
		return
	}
	switch g.TypeID() {
	case geos.TypeIDPolygon:
		*polygons = append(*polygons, g.Clone())
	case geos.TypeIDMultiPolygon, geos.TypeIDGeometryCollection:
		for i := 0; i < g.NumGeometries(); i++ {
			_CollectPolygons(g.Geometry(i), polygons)
		}
	default:
		slog.Warn(fmt.Sprintf("dropping non-polygonal part of type %v", g.TypeID()))
	}
}

// NewMultiPolygon packages polygons into one multi-polygon. The inputs are
// cloned.
func NewMultiPolygon(ctx *geos.Context, polygons []*geos.Geom) *geos.Geom {
	if len(polygons) == 0 {
		return ctx.NewEmptyCollection(geos.TypeIDMultiPolygon)
	}
	parts := make([]*geos.Geom, len(polygons))
	for i, p := range polygons {
		parts[i] = p.Clone()
	}
	return ctx.NewCollection(geos.TypeIDMultiPolygon, parts)
}

// IsPolygonal reports whether g is a polygon or multi-polygon.
func IsPolygonal(g *geos.Geom) bool {
	if g == nil {
		return false
	}
	typ := g.TypeID()
	return typ == geos.TypeIDPolygon || typ == geos.TypeIDMultiPolygon
}
