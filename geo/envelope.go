package geo

import (
	"math"

	"github.com/twpayne/go-geos"
)

//*******************************************
// envelope
//*******************************************

// Envelope is an axis-aligned bounding box. A zero-area envelope is valid,
// an envelope with Min > Max on any axis is empty.
type Envelope struct {
	MinX float64
	MinY float64
	MaxX float64
	MaxY float64
}

// NewEnvelope creates an envelope from two corners given in any order.
func NewEnvelope(x1, y1, x2, y2 float64) Envelope {
	return Envelope{
		MinX: math.Min(x1, x2),
		MinY: math.Min(y1, y2),
		MaxX: math.Max(x1, x2),
		MaxY: math.Max(y1, y2),
	}
}

// EmptyEnvelope returns an envelope that intersects nothing.
func EmptyEnvelope() Envelope {
	return Envelope{
		MinX: math.Inf(1),
		MinY: math.Inf(1),
		MaxX: math.Inf(-1),
		MaxY: math.Inf(-1),
	}
}

// EnvelopeOf returns the bounding box of g, or an empty envelope for an
// empty or nil geometry.
func EnvelopeOf(g *geos.Geom) Envelope {
	if g == nil || g.IsEmpty() {
		return EmptyEnvelope()
	}
	b := g.Bounds()
	return Envelope{MinX: b.MinX, MinY: b.MinY, MaxX: b.MaxX, MaxY: b.MaxY}
}

func (self Envelope) IsEmpty() bool {
	return self.MinX > self.MaxX || self.MinY > self.MaxY
}

func (self Envelope) Width() float64 {
	return self.MaxX - self.MinX
}
func (self Envelope) Height() float64 {
	return self.MaxY - self.MinY
}

// Expand grows every side by d. A negative d shrinks the envelope and may
// leave it empty.
func (self Envelope) Expand(d float64) Envelope {
	if self.IsEmpty() {
		return self
	}
	return Envelope{
		MinX: self.MinX - d,
		MinY: self.MinY - d,
		MaxX: self.MaxX + d,
		MaxY: self.MaxY + d,
	}
}

// Intersects treats both envelopes as closed boxes.
func (self Envelope) Intersects(other Envelope) bool {
	if self.IsEmpty() || other.IsEmpty() {
		return false
	}
	return self.MinX <= other.MaxX && other.MinX <= self.MaxX &&
		self.MinY <= other.MaxY && other.MinY <= self.MaxY
}

func (self Envelope) Contains(other Envelope) bool {
	if self.IsEmpty() || other.IsEmpty() {
		return false
	}
	return self.MinX <= other.MinX && other.MaxX <= self.MaxX &&
		self.MinY <= other.MinY && other.MaxY <= self.MaxY
}

// ToPolygon builds the rectangle polygon of the envelope.
func (self Envelope) ToPolygon(ctx *geos.Context) *geos.Geom {
	return ctx.NewPolygon([][][]float64{{
		{self.MinX, self.MinY},
		{self.MaxX, self.MinY},
		{self.MaxX, self.MaxY},
		{self.MinX, self.MaxY},
		{self.MinX, self.MinY},
	}})
}
