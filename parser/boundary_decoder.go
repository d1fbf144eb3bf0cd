package parser

import (
	"strconv"

	. "github.com/ttpr0/go-gridmaker/util"
)

// IBoundaryDecoder selects the OSM relations to load and maps their tags
// to feature properties.
type IBoundaryDecoder interface {
	IsValidBoundary(tags Dict[string, string]) bool
	DecodeProperties(tags Dict[string, string]) Dict[string, any]
}

// AdminBoundaryDecoder keeps administrative boundaries up to MaxLevel
// (country level 2 when zero).
type AdminBoundaryDecoder struct {
	MaxLevel int
}

func (self *AdminBoundaryDecoder) IsValidBoundary(tags Dict[string, string]) bool {
	if tags.Get("type") != "boundary" && tags.Get("type") != "multipolygon" {
		return false
	}
	if tags.Get("boundary") != "administrative" {
		return false
	}
	level, err := strconv.Atoi(tags.Get("admin_level"))
	if err != nil {
		return false
	}
	max_level := self.MaxLevel
	if max_level == 0 {
		max_level = 2
	}
	return level <= max_level
}

// DecodeProperties exposes the ISO code as CNTR_ID, next to NAME and
// ADMIN_LEVEL.
func (self *AdminBoundaryDecoder) DecodeProperties(tags Dict[string, string]) Dict[string, any] {
	props := NewDict[string, any](4)
	code := tags.Get("ISO3166-1:alpha2")
	if code == "" {
		code = tags.Get("ISO3166-2")
	}
	if code == "" {
		code = tags.Get("ref")
	}
	props["CNTR_ID"] = code
	props["NAME"] = tags.Get("name")
	props["ADMIN_LEVEL"] = tags.Get("admin_level")
	return props
}
