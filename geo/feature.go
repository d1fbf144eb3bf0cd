package geo

import (
	"fmt"

	. "github.com/ttpr0/go-gridmaker/util"
	"github.com/twpayne/go-geos"
)

//*******************************************
// feature
//*******************************************

type Feature struct {
	geom  *geos.Geom
	props Dict[string, any]
}

func NewFeature(geom *geos.Geom, props Dict[string, any]) Feature {
	if props == nil {
		props = NewDict[string, any](4)
	}
	return Feature{
		geom:  geom,
		props: props,
	}
}

func (self Feature) Geometry() *geos.Geom {
	return self.geom
}
func (self Feature) Properties() Dict[string, any] {
	return self.props
}

// GetString returns the property as a string. Numbers are formatted, nil
// and missing properties report false.
func (self Feature) GetString(name string) (string, bool) {
	value, ok := self.props[name]
	if !ok || value == nil {
		return "", false
	}
	switch v := value.(type) {
	case string:
		return v, true
	case fmt.Stringer:
		return v.String(), true
	default:
		return fmt.Sprint(v), true
	}
}

func (self Feature) WithGeometry(geom *geos.Geom) Feature {
	return Feature{geom: geom, props: self.props}
}

// Geometries returns the geometries of all features in order.
func Geometries(features []Feature) []*geos.Geom {
	geoms := make([]*geos.Geom, len(features))
	for i, f := range features {
		geoms[i] = f.geom
	}
	return geoms
}

//*******************************************
// attribute filter
//*******************************************

// Filter keeps features whose attribute equals one of Values. An empty
// filter keeps everything.
type Filter struct {
	Attribute string
	Values    []string
}

func (self Filter) IsEmpty() bool {
	return self.Attribute == ""
}

func (self Filter) Match(f Feature) bool {
	if self.IsEmpty() {
		return true
	}
	value, ok := f.GetString(self.Attribute)
	if !ok {
		return false
	}
	for _, v := range self.Values {
		if v == value {
			return true
		}
	}
	return false
}

func (self Filter) Apply(features []Feature) []Feature {
	if self.IsEmpty() {
		return features
	}
	result := make([]Feature, 0, len(features))
	for _, f := range features {
		if self.Match(f) {
			result = append(result, f)
		}
	}
	return result
}
