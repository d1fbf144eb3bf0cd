package geo

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/pkg/errors"
	"github.com/twpayne/go-geos"
)

// FromOrb converts an orb geometry into a GEOS geometry of ctx.
func FromOrb(ctx *geos.Context, g orb.Geometry) (*geos.Geom, error) {
	if g == nil {
		return nil, errors.New("nil geometry")
	}
	data, err := wkb.Marshal(g)
	if err != nil {
		return nil, errors.Wrapf(err, "encode %s", g.GeoJSONType())
	}
	geom, err := ctx.NewGeomFromWKB(data)
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", g.GeoJSONType())
	}
	return geom, nil
}

// ToOrb converts a GEOS geometry into an orb geometry.
func ToOrb(g *geos.Geom) (orb.Geometry, error) {
	if g == nil {
		return nil, errors.New("nil geometry")
	}
	geom, err := wkb.Unmarshal(g.ToWKB())
	if err != nil {
		return nil, errors.Wrap(err, "convert geometry")
	}
	return geom, nil
}
