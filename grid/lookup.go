package grid

import (
	"fmt"

	"github.com/ttpr0/go-gridmaker/geo"
)

// RegionLookupError reports a code that does not select exactly one region.
type RegionLookupError struct {
	Attribute string
	Code      string
	Count     int
}

func (self *RegionLookupError) Error() string {
	return fmt.Sprintf("expected one region with %s=%q, found %d", self.Attribute, self.Code, self.Count)
}

// FindRegion returns the only region whose attribute attr equals code.
func FindRegion(regions []geo.Feature, attr string, code string) (geo.Feature, error) {
	found := -1
	count := 0
	for i, region := range regions {
		value, ok := region.GetString(attr)
		if !ok || value != code {
			continue
		}
		if found < 0 {
			found = i
		}
		count += 1
	}
	if count != 1 {
		return geo.Feature{}, &RegionLookupError{Attribute: attr, Code: code, Count: count}
	}
	return regions[found], nil
}
