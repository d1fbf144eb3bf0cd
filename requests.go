package main

import (
	"github.com/paulmach/orb/geojson"
)

// GridRequest asks for the cells covering a geometry.
type GridRequest struct {
	// *************************************
	// grid params
	// *************************************
	Resolution   float64           `json:"resolution"`
	EPSG         string            `json:"epsg"`
	Coverage     *geojson.Geometry `json:"coverage"`
	Tolerance    float64           `json:"tolerance"`
	GeometryType string            `json:"geometry_type"`

	// *************************************
	// region assignment params
	// *************************************
	Regions         *geojson.FeatureCollection `json:"regions"`
	RegionAttribute string                     `json:"region_attribute"`
	RegionTolerance float64                    `json:"region_tolerance"`
	KeepUnassigned  bool                       `json:"keep_unassigned"`
}

// CellRequest decodes a cell identifier, optionally checking it against a
// parent cell.
type CellRequest struct {
	ID     string `json:"id"`
	Parent string `json:"parent"`
}
