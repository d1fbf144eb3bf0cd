package grid

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/ttpr0/go-gridmaker/geo"
	. "github.com/ttpr0/go-gridmaker/util"
	"github.com/twpayne/go-geos"
	"golang.org/x/exp/slices"
	"golang.org/x/exp/slog"
	"golang.org/x/sync/errgroup"
)

//*******************************************
// region assignment
//*******************************************

// RegionAttributeError reports a region without a code.
type RegionAttributeError struct {
	Index     int
	Attribute string
}

func (self *RegionAttributeError) Error() string {
	return fmt.Sprintf("region %d has no attribute %q", self.Index, self.Attribute)
}

// AssignRegions labels every cell with the codes of the regions within
// tolerance of the cell geometry.
//
// The codes are stored in the cell attribute cell_attr, joined with "-" in
// region order. Cells without region get "". A region listed twice appends
// its code twice.
func AssignRegions(cells []*Cell, cell_attr string, regions []geo.Feature, tolerance float64, region_attr string) error {
	return AssignRegionsParallel(context.Background(), cells, cell_attr, regions, tolerance, region_attr, 1)
}

// AssignRegionsParallel works like AssignRegions with the regions split
// across workers. The resulting codes are the same as with one worker.
func AssignRegionsParallel(ctx context.Context, cells []*Cell, cell_attr string, regions []geo.Feature, tolerance float64, region_attr string, workers int) error {
	slog.Debug(fmt.Sprintf("assign %s cells to %d regions...", humanize.Comma(int64(len(cells))), len(regions)))

	// read all codes first, a bad region must not leave half-labeled cells
	codes := make([]string, len(regions))
	geoms := make([][]byte, len(regions))
	for i, region := range regions {
		code, ok := region.GetString(region_attr)
		if !ok {
			return &RegionAttributeError{Index: i, Attribute: region_attr}
		}
		codes[i] = code
		if g := region.Geometry(); g != nil && !g.IsEmpty() {
			geoms[i] = g.ToWKB()
		}
	}

	for _, cell := range cells {
		cell.Attributes[cell_attr] = ""
	}

	index := geo.NewIndex[int32]()
	for i, cell := range cells {
		index.Insert(cell.GeometryEnvelope(), int32(i))
	}

	if workers < 1 {
		workers = 1
	}
	if workers > len(regions) {
		workers = max(len(regions), 1)
	}
	chunk := (len(regions) + workers - 1) / max(workers, 1)
	results := make([][]_RegionMatch, workers)
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		w := w
		start := w * chunk
		end := min(start+chunk, len(regions))
		if start >= end {
			continue
		}
		g.Go(func() error {
			matcher := _RegionMatcher{
				ctx:       geos.NewContext(),
				cells:     cells,
				index:     index,
				tolerance: tolerance,
			}
			matches := NewList[_RegionMatch](100)
			for r := start; r < end; r++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				if err := matcher.Match(int32(r), geoms[r], &matches); err != nil {
					return errors.Wrapf(err, "region %s", codes[r])
				}
			}
			results[w] = matches
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	// each region appends in input order, whatever worker matched it
	count := 0
	for _, part := range results {
		count += len(part)
	}
	matches := make([]_RegionMatch, 0, count)
	for _, part := range results {
		matches = append(matches, part...)
	}
	slices.SortFunc(matches, func(a, b _RegionMatch) int {
		if a.cell != b.cell {
			return int(a.cell - b.cell)
		}
		return int(a.region - b.region)
	})
	var b strings.Builder
	for i := 0; i < len(matches); {
		cell := matches[i].cell
		b.Reset()
		for ; i < len(matches) && matches[i].cell == cell; i++ {
			if b.Len() > 0 {
				b.WriteString("-")
			}
			b.WriteString(codes[matches[i].region])
		}
		cells[cell].Attributes[cell_attr] = b.String()
	}
	slog.Debug(fmt.Sprintf("%s region matches", humanize.Comma(int64(len(matches)))))
	return nil
}

type _RegionMatch struct {
	cell   int32
	region int32
}

// _RegionMatcher tests regions against the cell index within its own GEOS
// context.
type _RegionMatcher struct {
	ctx       *geos.Context
	cells     []*Cell
	index     *geo.Index[int32]
	tolerance float64
}

// Match appends the cells within tolerance of the region given as WKB.
func (self *_RegionMatcher) Match(region int32, geom_wkb []byte, matches *List[_RegionMatch]) error {
	if geom_wkb == nil {
		slog.Warn(fmt.Sprintf("region %d has no geometry, skipped", region))
		return nil
	}
	local, err := geo.FromWKB(self.ctx, geom_wkb)
	if err != nil {
		return err
	}
	test, err := _NewToleranceTest(local, self.tolerance)
	if err != nil {
		return err
	}
	env := test.Envelope()
	if env.IsEmpty() {
		return nil
	}
	for _, c := range self.index.Query(env) {
		cell_geom := self.cells[c].Geometry(self.ctx)
		keep := test.Match(cell_geom)
		cell_geom.Destroy()
		if keep {
			matches.Add(_RegionMatch{cell: c, region: region})
		}
	}
	return nil
}
