package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/ttpr0/go-gridmaker/geo"
	"github.com/ttpr0/go-gridmaker/grid"
	"github.com/ttpr0/go-gridmaker/parser"
	"github.com/ttpr0/go-gridmaker/writer"
	"github.com/twpayne/go-geos"
	"golang.org/x/exp/slog"
)

//**********************************************************
// grid service
//**********************************************************

type GridServer struct {
	cache     *grid.CellCache
	workers   int
	// upper bound of lattice candidates a request may build
	max_cells float64
}

// NewGridServer registers the service routes:
//
//	POST /v0/grid   cells covering a GeoJSON geometry, optionally labeled
//	GET  /v0/cell   decode a cell identifier
//
// Requests whose lattice exceeds max_cells candidate squares are rejected
// before any cell is built.
func NewGridServer(cache *grid.CellCache, workers int, max_cells int64) *http.ServeMux {
	server := &GridServer{cache: cache, workers: workers, max_cells: float64(max_cells)}
	app := http.NewServeMux()
	MapPost(app, "/v0/grid", server.HandleGridRequest)
	MapGet(app, "/v0/cell", server.HandleCellRequest)
	return app
}

func (self *GridServer) HandleGridRequest(r *http.Request, req GridRequest) Result {
	if req.Coverage == nil || req.Coverage.Geometry() == nil {
		return BadRequest("missing coverage geometry")
	}
	gctx := geos.NewContext()
	coverage, err := geo.FromOrb(gctx, req.Coverage.Geometry())
	if err != nil {
		return BadRequest(err.Error())
	}
	typ := grid.SURFACE
	if req.GeometryType != "" {
		typ, err = grid.CellGeometryTypeFromString(req.GeometryType)
		if err != nil {
			return BadRequest(err.Error())
		}
	}
	epsg := req.EPSG
	if epsg == "" {
		epsg = DEFAULT_EPSG
	}
	spec := grid.GridSpec{
		Resolution:   req.Resolution,
		CRS:          epsg,
		Coverage:     coverage,
		Tolerance:    req.Tolerance,
		GeometryType: typ,
	}
	candidates, err := grid.CountCandidates(spec)
	if err != nil {
		return BadRequest(err.Error())
	}
	if candidates > self.max_cells {
		return BadRequest(fmt.Sprintf("grid too large: %s candidate cells, at most %s allowed",
			humanize.Ftoa(candidates), humanize.Comma(int64(self.max_cells))))
	}
	cells, err := self.cache.Get(r.Context(), spec)
	if err != nil {
		var config *grid.ConfigurationError
		if errors.As(err, &config) {
			return BadRequest(err.Error())
		}
		return InternalError(err.Error())
	}

	attrs := []string{}
	if req.Regions != nil {
		region_attr := req.RegionAttribute
		if region_attr == "" {
			region_attr = DEFAULT_REGION_ATT
		}
		cfg := RegionsConfig{
			CodeAttribute:    region_attr,
			CellAttribute:    region_attr,
			Tolerance:        req.RegionTolerance,
			FilterUnassigned: !req.KeepUnassigned,
		}
		regions := parser.FeaturesFromGeoJSON(gctx, req.Regions)
		cells, err = LabelCells(r.Context(), cells, regions, cfg, self.workers)
		if err != nil {
			var missing *grid.RegionAttributeError
			if errors.As(err, &missing) {
				return BadRequest(err.Error())
			}
			return InternalError(err.Error())
		}
		attrs = append(attrs, region_attr)
	}
	return OK(writer.CellsToGeoJSON(cells, epsg, attrs))
}

func (self *GridServer) HandleCellRequest(r *http.Request, req CellRequest) Result {
	key, err := grid.DecodeCellID(req.ID)
	if err != nil {
		return BadRequest(err.Error())
	}
	env, _ := grid.CellEnvelope(req.ID)
	resp := NewCellResponse(req.ID, key, env)
	if req.Parent != "" {
		inside, err := grid.ContainsCell(req.Parent, req.ID)
		if err != nil {
			return BadRequest(err.Error())
		}
		resp.Parent = req.Parent
		resp.InParent = &inside
	}
	return OK(resp)
}

// RunServe starts the grid service and blocks until ctx is done.
func RunServe(ctx context.Context, args []string, usage io.Writer) error {
	fs := flag.NewFlagSet("gridmaker serve", flag.ContinueOnError)
	fs.SetOutput(usage)
	addr := fs.String("addr", ":5002", "listen address")
	cache_cells := fs.Int64("cache", 10_000_000, "maximum number of cached cells")
	max_cells := fs.Int64("max-cells", 10_000_000, "maximum number of candidate cells per request")
	workers := fs.Int("w", DefaultWorkers(), "workers per request")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cache, err := grid.NewCellCache(*cache_cells, *workers)
	if err != nil {
		return err
	}
	defer cache.Close()

	server := &http.Server{
		Addr:              *addr,
		Handler:           NewGridServer(cache, *workers, *max_cells),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdown)
	}()
	slog.Info(fmt.Sprintf("listening on %s", *addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
