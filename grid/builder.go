package grid

import (
	"context"
	"fmt"
	"math"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/ttpr0/go-gridmaker/geo"
	"github.com/twpayne/go-geos"
	"golang.org/x/exp/slices"
	"golang.org/x/exp/slog"
	"golang.org/x/sync/errgroup"
)

//*******************************************
// grid builder
//*******************************************

// BuildCells tiles the coverage of spec into grid cells.
func BuildCells(spec GridSpec) ([]*Cell, error) {
	return BuildCellsParallel(context.Background(), spec, 1)
}

// BuildCellsParallel tiles the coverage of spec, splitting the lattice
// columns across workers. The result is sorted by lower-left corner (x
// first) and does not depend on the number of workers.
func BuildCellsParallel(ctx context.Context, spec GridSpec, workers int) ([]*Cell, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if workers < 1 {
		workers = 1
	}
	slog.Debug(fmt.Sprintf("build grid cells (resolution %v, tolerance %v, %v)", spec.Resolution, spec.Tolerance, spec.GeometryType))

	// the envelope only depends on the spec, workers rebuild the same one
	coverage_wkb := spec.Coverage.ToWKB()
	tester, err := _NewCoverageTester(spec, coverage_wkb)
	if err != nil {
		return nil, err
	}
	env := tester.test.Envelope()
	if env.IsEmpty() {
		slog.Debug("nothing to cover, 0 cells built")
		return []*Cell{}, nil
	}
	res := int64(spec.Resolution)
	lattice := SnapToGrid(env, res)
	columns := int((lattice.MaxX - lattice.MinX) / float64(res))

	var cells []*Cell
	if workers == 1 || columns < 2 {
		cells, err = tester.BuildColumns(ctx, env, lattice, 0, columns)
		if err != nil {
			return nil, err
		}
	} else {
		if workers > columns {
			workers = columns
		}
		chunk := (columns + workers - 1) / workers
		results := make([][]*Cell, workers)
		g, gctx := errgroup.WithContext(ctx)
		for w := 0; w < workers; w++ {
			w := w
			start := w * chunk
			end := min(start+chunk, columns)
			if start >= end {
				continue
			}
			g.Go(func() error {
				worker_tester, err := _NewCoverageTester(spec, coverage_wkb)
				if err != nil {
					return err
				}
				part, err := worker_tester.BuildColumns(gctx, env, lattice, start, end)
				if err != nil {
					return err
				}
				results[w] = part
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		count := 0
		for _, part := range results {
			count += len(part)
		}
		cells = make([]*Cell, 0, count)
		for _, part := range results {
			cells = append(cells, part...)
		}
	}

	slices.SortFunc(cells, _CompareCells)
	slog.Debug(fmt.Sprintf("%s cells built", humanize.Comma(int64(len(cells)))))
	return cells, nil
}

// CountCandidates returns the number of lattice squares BuildCells would
// test for spec, an upper bound of the cell count. It is computed from the
// coverage envelope without building anything.
func CountCandidates(spec GridSpec) (float64, error) {
	if err := spec.Validate(); err != nil {
		return 0, err
	}
	env := geo.EnvelopeOf(spec.Coverage)
	if spec.Tolerance > 0 {
		env = env.Expand(spec.Tolerance)
	}
	if env.IsEmpty() {
		return 0, nil
	}
	res := spec.Resolution
	lattice := SnapToGrid(env, int64(res))
	columns := math.Round(lattice.Width() / res)
	rows := math.Round(lattice.Height() / res)
	return columns * rows, nil
}

// SnapToGrid enlarges env to the lattice of multiples of res, so that every
// point of env falls into a lattice cell. The max side always gets one
// extra row and column, candidates beyond env are rejected while tiling.
func SnapToGrid(env geo.Envelope, res int64) geo.Envelope {
	r := float64(res)
	return geo.Envelope{
		MinX: r * math.Floor(env.MinX/r),
		MinY: r * math.Floor(env.MinY/r),
		MaxX: r * (1 + math.Floor(env.MaxX/r)),
		MaxY: r * (1 + math.Floor(env.MaxY/r)),
	}
}

func _CompareCells(a, b *Cell) int {
	switch {
	case a.X < b.X:
		return -1
	case a.X > b.X:
		return 1
	case a.Y < b.Y:
		return -1
	case a.Y > b.Y:
		return 1
	default:
		return 0
	}
}

//*******************************************
// coverage tester
//*******************************************

// _CoverageTester owns a GEOS context holding a copy of the coverage.
type _CoverageTester struct {
	spec GridSpec
	ctx  *geos.Context
	test *_ToleranceTest
}

func _NewCoverageTester(spec GridSpec, coverage_wkb []byte) (*_CoverageTester, error) {
	ctx := geos.NewContext()
	coverage, err := geo.FromWKB(ctx, coverage_wkb)
	if err != nil {
		return nil, errors.Wrap(err, "copy coverage")
	}
	test, err := _NewToleranceTest(coverage, spec.Tolerance)
	if err != nil {
		return nil, errors.Wrap(err, "prepare coverage")
	}
	return &_CoverageTester{
		spec: spec,
		ctx:  ctx,
		test: test,
	}, nil
}

// BuildColumns tiles the lattice columns [start, end).
//
// Candidates are half-open squares [x, x+res) x [y, y+res): one starting
// on the max edge of env is rejected, one ending on the min edge too.
func (self *_CoverageTester) BuildColumns(ctx context.Context, env, lattice geo.Envelope, start, end int) ([]*Cell, error) {
	res := int64(self.spec.Resolution)
	r := float64(res)
	x0 := int64(lattice.MinX)
	y0 := int64(lattice.MinY)
	y1 := int64(lattice.MaxY)

	cells := make([]*Cell, 0, 64)
	for col := start; col < end; col++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		x := x0 + int64(col)*res
		fx := float64(x)
		if fx >= env.MaxX || fx+r <= env.MinX {
			continue
		}
		for y := y0; y < y1; y += res {
			fy := float64(y)
			if fy >= env.MaxY || fy+r <= env.MinY {
				continue
			}
			square := geo.NewSquare(self.ctx, fx, fy, r)
			keep := self.test.Match(square)
			square.Destroy()
			if !keep {
				continue
			}
			cells = append(cells, NewCell(self.spec.CRS, res, x, y, self.spec.GeometryType))
		}
	}
	return cells, nil
}
