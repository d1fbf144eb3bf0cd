package main

import (
	"github.com/ttpr0/go-gridmaker/geo"
	"github.com/ttpr0/go-gridmaker/grid"
)

type ErrorResponse struct {
	Request string `json:"request"`
	Error   any    `json:"error"`
}

func NewErrorResponse(request string, error any) ErrorResponse {
	return ErrorResponse{
		Request: request,
		Error:   error,
	}
}

// CellResponse describes a decoded cell identifier.
type CellResponse struct {
	ID         string     `json:"id"`
	CRS        string     `json:"crs"`
	Resolution int64      `json:"resolution"`
	X          int64      `json:"x"`
	Y          int64      `json:"y"`
	Bounds     [4]float64 `json:"bounds"`
	Parent     string     `json:"parent,omitempty"`
	InParent   *bool      `json:"in_parent,omitempty"`
}

func NewCellResponse(id string, key grid.CellKey, env geo.Envelope) CellResponse {
	return CellResponse{
		ID:         id,
		CRS:        key.CRS,
		Resolution: key.Resolution,
		X:          key.X,
		Y:          key.Y,
		Bounds:     [4]float64{env.MinX, env.MinY, env.MaxX, env.MaxY},
	}
}
