package grid

import (
	"github.com/ttpr0/go-gridmaker/geo"
	"github.com/twpayne/go-geos"
)

//*******************************************
// tolerance test
//*******************************************

// _ToleranceTest decides whether a geometry lies within a signed tolerance
// distance of a target geometry.
//
//	tol == 0: the geometries intersect
//	tol > 0:  distance(g, target) <= tol
//	tol < 0:  g intersects the target eroded by |tol|
type _ToleranceTest struct {
	target    *geos.Geom
	prepared  *geos.PrepGeom
	tolerance float64
	empty     bool
}

// _NewToleranceTest prepares target, which must belong to the context the
// tested geometries are created in.
func _NewToleranceTest(target *geos.Geom, tolerance float64) (*_ToleranceTest, error) {
	if tolerance < 0 {
		eroded, err := geo.Safe("erode", func() *geos.Geom {
			return target.Buffer(tolerance, 8)
		})
		if err != nil {
			return nil, err
		}
		target = eroded
	}
	if target.IsEmpty() {
		return &_ToleranceTest{target: target, tolerance: tolerance, empty: true}, nil
	}
	return &_ToleranceTest{
		target:    target,
		prepared:  target.Prepare(),
		tolerance: tolerance,
	}, nil
}

// Envelope returns the region where tested geometries can match.
func (self *_ToleranceTest) Envelope() geo.Envelope {
	if self.empty {
		return geo.EmptyEnvelope()
	}
	env := geo.EnvelopeOf(self.target)
	if self.tolerance > 0 {
		env = env.Expand(self.tolerance)
	}
	return env
}

func (self *_ToleranceTest) Match(g *geos.Geom) bool {
	if self.empty {
		return false
	}
	if self.prepared.Intersects(g) {
		return true
	}
	if self.tolerance > 0 {
		return self.target.Distance(g) <= self.tolerance
	}
	return false
}
