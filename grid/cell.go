package grid

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/dgryski/go-farm"
	"github.com/ttpr0/go-gridmaker/geo"
	. "github.com/ttpr0/go-gridmaker/util"
	"github.com/twpayne/go-geos"
)

//*******************************************
// cell geometry type
//*******************************************

type CellGeometryType byte

const (
	SURFACE      CellGeometryType = 0
	CENTER_POINT CellGeometryType = 1
)

func (self CellGeometryType) String() string {
	switch self {
	case SURFACE:
		return "SURFACE"
	case CENTER_POINT:
		return "CENTER_POINT"
	default:
		return fmt.Sprintf("CellGeometryType(%d)", byte(self))
	}
}
func (self CellGeometryType) MarshalJSON() ([]byte, error) {
	return json.Marshal(self.String())
}

func CellGeometryTypeFromString(s string) (CellGeometryType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "SURFACE":
		return SURFACE, nil
	case "CENTER_POINT":
		return CENTER_POINT, nil
	default:
		return SURFACE, fmt.Errorf("unknown cell geometry type: %q", s)
	}
}

//*******************************************
// grid spec
//*******************************************

// ConfigurationError reports a grid request that cannot be built.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (self *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid grid configuration: %s %s", self.Field, self.Reason)
}

// GridSpec describes one tiling request. It is treated as an immutable
// value, a changed field is a different spec.
type GridSpec struct {
	// cell size in CRS units, must be a positive integer
	Resolution float64
	// opaque CRS code, only used for cell identifiers
	CRS string
	// polygonal geometry the grid has to cover
	Coverage *geos.Geom
	// cells within this distance of the coverage are kept, may be negative
	Tolerance    float64
	GeometryType CellGeometryType
}

// Validate checks the spec before any cell is built.
func (self GridSpec) Validate() error {
	res := self.Resolution
	if math.IsNaN(res) || math.IsInf(res, 0) || res <= 0 {
		return &ConfigurationError{Field: "resolution", Reason: fmt.Sprintf("must be positive, got %v", res)}
	}
	if res != math.Trunc(res) {
		return &ConfigurationError{Field: "resolution", Reason: fmt.Sprintf("must be an integer, got %v", res)}
	}
	if strings.TrimSpace(self.CRS) == "" {
		return &ConfigurationError{Field: "crs", Reason: "must not be empty"}
	}
	if self.Coverage == nil || self.Coverage.IsEmpty() {
		return &ConfigurationError{Field: "coverage", Reason: "must not be empty"}
	}
	if math.IsNaN(self.Tolerance) || math.IsInf(self.Tolerance, 0) {
		return &ConfigurationError{Field: "tolerance", Reason: fmt.Sprintf("must be finite, got %v", self.Tolerance)}
	}
	if self.GeometryType != SURFACE && self.GeometryType != CENTER_POINT {
		return &ConfigurationError{Field: "geometry type", Reason: self.GeometryType.String()}
	}
	return nil
}

// Key identifies the spec for memoization. Two specs with equal fields and
// equal coverage WKB share a key.
func (self GridSpec) Key() string {
	var fingerprint uint64
	if self.Coverage != nil {
		fingerprint = farm.Fingerprint64(self.Coverage.ToWKB())
	}
	return fmt.Sprintf("%s|%v|%v|%s|%016x", self.CRS, self.Resolution, self.Tolerance, self.GeometryType, fingerprint)
}

//*******************************************
// cell
//*******************************************

// Cell is a square of the grid keyed by its lower-left corner.
//
// Its geometry is not stored, it is derived from the corner and the
// resolution when needed.
type Cell struct {
	X            int64
	Y            int64
	Resolution   int64
	CRS          string
	ID           string
	GeometryType CellGeometryType
	Attributes   Dict[string, any]
}

func NewCell(crs string, resolution, x, y int64, typ CellGeometryType) *Cell {
	return &Cell{
		X:            x,
		Y:            y,
		Resolution:   resolution,
		CRS:          crs,
		ID:           EncodeCellID(crs, float64(resolution), float64(x), float64(y)),
		GeometryType: typ,
		Attributes:   NewDict[string, any](2),
	}
}

// Envelope returns the envelope of the cell square.
func (self *Cell) Envelope() geo.Envelope {
	x := float64(self.X)
	y := float64(self.Y)
	r := float64(self.Resolution)
	return geo.Envelope{MinX: x, MinY: y, MaxX: x + r, MaxY: y + r}
}

func (self *Cell) Center() (float64, float64) {
	half := float64(self.Resolution) / 2
	return float64(self.X) + half, float64(self.Y) + half
}

// GeometryEnvelope returns the envelope of the cell geometry, a single
// point for center-point cells.
func (self *Cell) GeometryEnvelope() geo.Envelope {
	if self.GeometryType == CENTER_POINT {
		cx, cy := self.Center()
		return geo.Envelope{MinX: cx, MinY: cy, MaxX: cx, MaxY: cy}
	}
	return self.Envelope()
}

func (self *Cell) Square(ctx *geos.Context) *geos.Geom {
	return geo.NewSquare(ctx, float64(self.X), float64(self.Y), float64(self.Resolution))
}

// Geometry materializes the cell geometry in ctx: the square or its
// centroid, depending on the geometry type.
func (self *Cell) Geometry(ctx *geos.Context) *geos.Geom {
	if self.GeometryType == CENTER_POINT {
		cx, cy := self.Center()
		return ctx.NewPointFromXY(cx, cy)
	}
	return self.Square(ctx)
}

// Clone copies the cell with its own attribute map.
func (self *Cell) Clone() *Cell {
	attributes := NewDict[string, any](len(self.Attributes))
	for k, v := range self.Attributes {
		attributes[k] = v
	}
	c := *self
	c.Attributes = attributes
	return &c
}

// GetString returns a string attribute of the cell.
func (self *Cell) GetString(name string) (string, bool) {
	value, ok := self.Attributes[name]
	if !ok || value == nil {
		return "", false
	}
	s, ok := value.(string)
	return s, ok
}
