package grid

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ttpr0/go-gridmaker/geo"
	"github.com/twpayne/go-geos"
)

func mustWKT(t *testing.T, ctx *geos.Context, wkt string) *geos.Geom {
	t.Helper()
	g, err := ctx.NewGeomFromWKT(wkt)
	require.NoError(t, err)
	return g
}

func cellIDs(cells []*Cell) []string {
	ids := make([]string, len(cells))
	for i, c := range cells {
		ids[i] = c.ID
	}
	return ids
}

func squareSpec(ctx *geos.Context, size, res float64) GridSpec {
	return GridSpec{
		Resolution: res,
		CRS:        "3035",
		Coverage:   geo.NewSquare(ctx, 0, 0, size),
	}
}

//*******************************************
// builder
//*******************************************

func TestBuildLargeEnvelope(t *testing.T) {
	ctx := geos.NewContext()
	cells, err := BuildCells(squareSpec(ctx, 1e7, 1e5))
	require.NoError(t, err)
	assert.Len(t, cells, 10000)
}

func TestBuildFourCells(t *testing.T) {
	ctx := geos.NewContext()
	cells, err := BuildCells(squareSpec(ctx, 200, 100))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"CRS3035RES100mN0E0",
		"CRS3035RES100mN0E100",
		"CRS3035RES100mN100E0",
		"CRS3035RES100mN100E100",
	}, cellIDs(cells))
	for _, c := range cells {
		assert.Equal(t, SURFACE, c.GeometryType)
		assert.Equal(t, int64(100), c.Resolution)
		g := c.Geometry(ctx)
		assert.InDelta(t, 10000, g.Area(), 1e-9)
	}
}

func TestBuildCenterPoints(t *testing.T) {
	ctx := geos.NewContext()
	spec := squareSpec(ctx, 200, 100)
	spec.GeometryType = CENTER_POINT
	cells, err := BuildCells(spec)
	require.NoError(t, err)
	require.Len(t, cells, 4)

	g := cells[0].Geometry(ctx)
	assert.Equal(t, geos.TypeIDPoint, g.TypeID())
	assert.Equal(t, 50.0, g.X())
	assert.Equal(t, 50.0, g.Y())
	assert.Equal(t, geo.Envelope{MinX: 50, MinY: 50, MaxX: 50, MaxY: 50}, cells[0].GeometryEnvelope())
}

func TestBuildTolerance(t *testing.T) {
	ctx := geos.NewContext()
	spec := squareSpec(ctx, 1000, 100)

	counts := map[float64]int{}
	for _, tol := range []float64{-150, 0, 50, 150} {
		spec.Tolerance = tol
		cells, err := BuildCells(spec)
		require.NoError(t, err)
		counts[tol] = len(cells)
	}
	assert.Equal(t, 64, counts[-150])
	assert.Equal(t, 100, counts[0])
	assert.Equal(t, 144, counts[50])
	assert.Equal(t, 196, counts[150])
}

func TestBuildMonotonicInTolerance(t *testing.T) {
	ctx := geos.NewContext()
	spec := GridSpec{
		Resolution: 50,
		CRS:        "3035",
		Coverage:   mustWKT(t, ctx, "POLYGON ((13 7, 420 60, 380 330, 140 410, 13 7))"),
	}
	last := -1
	for _, tol := range []float64{-60, -20, 0, 10, 35, 80, 200} {
		spec.Tolerance = tol
		cells, err := BuildCells(spec)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, len(cells), last, "tolerance %v", tol)
		last = len(cells)
	}
}

func TestBuildNegativeCoordinates(t *testing.T) {
	ctx := geos.NewContext()
	spec := GridSpec{
		Resolution: 100,
		CRS:        "3035",
		Coverage:   mustWKT(t, ctx, "POLYGON ((-150 -150, 50 -150, 50 50, -150 50, -150 -150))"),
	}
	cells, err := BuildCells(spec)
	require.NoError(t, err)
	// columns -200, -100, 0 and the same rows
	assert.Len(t, cells, 9)
	assert.Equal(t, "CRS3035RES100mN-200E-200", cells[0].ID)
}

func TestBuildParallelMatchesSequential(t *testing.T) {
	ctx := geos.NewContext()
	spec := GridSpec{
		Resolution: 10,
		CRS:        "4258",
		Coverage:   mustWKT(t, ctx, "MULTIPOLYGON (((0 0, 300 20, 250 260, 0 0)), ((400 400, 520 410, 480 530, 400 400)))"),
		Tolerance:  7,
	}
	sequential, err := BuildCells(spec)
	require.NoError(t, err)
	parallel, err := BuildCellsParallel(context.Background(), spec, 4)
	require.NoError(t, err)
	assert.NotEmpty(t, sequential)
	assert.Equal(t, cellIDs(sequential), cellIDs(parallel))
}

func TestBuildInvalidSpec(t *testing.T) {
	ctx := geos.NewContext()
	tests := []struct {
		name string
		spec GridSpec
	}{
		{"zero resolution", squareSpec(ctx, 100, 0)},
		{"negative resolution", squareSpec(ctx, 100, -5)},
		{"fractional resolution", squareSpec(ctx, 100, 2.5)},
		{"nan resolution", squareSpec(ctx, 100, math.NaN())},
		{"nil coverage", GridSpec{Resolution: 10, CRS: "3035"}},
		{"empty coverage", GridSpec{Resolution: 10, CRS: "3035", Coverage: mustWKT(t, ctx, "POLYGON EMPTY")}},
		{"empty crs", GridSpec{Resolution: 10, Coverage: geo.NewSquare(ctx, 0, 0, 10)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildCells(tt.spec)
			var config *ConfigurationError
			assert.ErrorAs(t, err, &config)
		})
	}
}

func TestSnapToGrid(t *testing.T) {
	snapped := SnapToGrid(geo.Envelope{MinX: -150, MinY: 20, MaxX: 200, MaxY: 299}, 100)
	assert.Equal(t, geo.Envelope{MinX: -200, MinY: 0, MaxX: 300, MaxY: 300}, snapped)
}

func TestSpecKey(t *testing.T) {
	ctx := geos.NewContext()
	a := squareSpec(ctx, 200, 100)
	b := squareSpec(ctx, 200, 100)
	assert.Equal(t, a.Key(), b.Key())

	b.Tolerance = 1
	assert.NotEqual(t, a.Key(), b.Key())
	c := squareSpec(ctx, 300, 100)
	assert.NotEqual(t, a.Key(), c.Key())
}

func TestCellGeometryTypeFromString(t *testing.T) {
	typ, err := CellGeometryTypeFromString("center_point")
	require.NoError(t, err)
	assert.Equal(t, CENTER_POINT, typ)
	_, err = CellGeometryTypeFromString("HEXAGON")
	assert.Error(t, err)
}

//*******************************************
// cache
//*******************************************

func TestCellCache(t *testing.T) {
	ctx := geos.NewContext()
	cache, err := NewCellCache(1000, 2)
	require.NoError(t, err)
	defer cache.Close()

	first, err := cache.Get(context.Background(), squareSpec(ctx, 200, 100))
	require.NoError(t, err)
	first[0].Attributes["CNTR_ID"] = "BE"

	second, err := cache.Get(context.Background(), squareSpec(ctx, 200, 100))
	require.NoError(t, err)
	assert.Equal(t, int64(1), cache.Builds())
	assert.Equal(t, cellIDs(first), cellIDs(second))
	_, ok := second[0].GetString("CNTR_ID")
	assert.False(t, ok, "cached cells are copied")

	_, err = cache.Get(context.Background(), squareSpec(ctx, 200, 50))
	require.NoError(t, err)
	assert.Equal(t, int64(2), cache.Builds())

	_, err = cache.Get(context.Background(), squareSpec(ctx, 200, 0))
	var config *ConfigurationError
	assert.ErrorAs(t, err, &config)
}

//*******************************************
// cell ids
//*******************************************

func TestEncodeCellID(t *testing.T) {
	id := EncodeCellID("5248", 1000, 14645, 165184)
	assert.Equal(t, "CRS5248RES1000mN14645E165184", id)

	key, err := DecodeCellID(id)
	require.NoError(t, err)
	assert.Equal(t, CellKey{CRS: "5248", Resolution: 1000, X: 14645, Y: 165184}, key)
	assert.Equal(t, id, key.String())

	assert.Equal(t, "CRS3035RES100mN12E-3", EncodeCellID("3035", 100.9, 12.7, -3.2))
	key, err = DecodeCellID(EncodeCellID("3035", 100, -200, -300))
	require.NoError(t, err)
	assert.Equal(t, CellKey{CRS: "3035", Resolution: 100, X: -200, Y: -300}, key)
}

func TestDecodeMalformedCellID(t *testing.T) {
	for _, id := range []string{
		"",
		"CRS3035",
		"CRSRES100mN0E0",
		"CRS3035RESxmN0E0",
		"CRS3035RES100mN0.5E0",
		"CRS3035RES100mN0E",
		"CRS3035RES0mN0E0",
		"3035RES100mN0E0",
		"CRS3035RES100mN+05E0",
		"CRS3035RES100mN05E0",
		"CRS3035RES0100mN0E0",
		"CRS3035RES100mN0E-0",
		"CRS3035RES+100mN0E0",
	} {
		_, err := DecodeCellID(id)
		var malformed *MalformedIDError
		assert.ErrorAs(t, err, &malformed, "id %q", id)
	}
}

func TestBuildErodedCoverage(t *testing.T) {
	ctx := geos.NewContext()
	spec := squareSpec(ctx, 100, 10)
	spec.Tolerance = -60
	cells, err := BuildCells(spec)
	require.NoError(t, err)
	assert.Empty(t, cells)
}

func TestCountCandidates(t *testing.T) {
	ctx := geos.NewContext()
	spec := squareSpec(ctx, 200, 100)
	count, err := CountCandidates(spec)
	require.NoError(t, err)
	// the snapped lattice always carries one extra row and column
	assert.Equal(t, 9.0, count)
	cells, err := BuildCells(spec)
	require.NoError(t, err)
	assert.LessOrEqual(t, float64(len(cells)), count)

	spec.Tolerance = 150
	count, err = CountCandidates(spec)
	require.NoError(t, err)
	assert.Equal(t, 36.0, count)

	spec = squareSpec(ctx, 1e7, 1)
	count, err = CountCandidates(spec)
	require.NoError(t, err)
	assert.Greater(t, count, 1e14)

	spec.Resolution = 0
	_, err = CountCandidates(spec)
	var config *ConfigurationError
	assert.ErrorAs(t, err, &config)
}

func TestDecodeCellIDRoundTrip(t *testing.T) {
	for _, id := range []string{
		"CRS3035RES100mN0E0",
		"CRS3035RES100mN-200E-200",
		"CRS5248RES1000mN14645E165184",
	} {
		key, err := DecodeCellID(id)
		require.NoError(t, err, id)
		assert.Equal(t, id, key.String())
	}
}

func TestCellFromID(t *testing.T) {
	cell, err := CellFromID("CRS3035RES1000mN4000E2000", CENTER_POINT)
	require.NoError(t, err)
	assert.Equal(t, int64(4000), cell.X)
	assert.Equal(t, int64(2000), cell.Y)
	assert.Equal(t, CENTER_POINT, cell.GeometryType)
	cx, cy := cell.Center()
	assert.Equal(t, 4500.0, cx)
	assert.Equal(t, 2500.0, cy)

	env, err := CellEnvelope("CRS3035RES1000mN4000E2000")
	require.NoError(t, err)
	assert.Equal(t, geo.Envelope{MinX: 4000, MinY: 2000, MaxX: 5000, MaxY: 3000}, env)

	_, err = CellFromID("nonsense", SURFACE)
	assert.Error(t, err)
}

func TestContainsCell(t *testing.T) {
	parent := "CRS3035RES1000mN0E0"
	ok, err := ContainsCell(parent, "CRS3035RES100mN900E900")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ContainsCell(parent, "CRS3035RES100mN1000E0")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = ContainsCell(parent, "CRS4258RES100mN0E0")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = ContainsCell(parent, "CRS3035")
	assert.Error(t, err)
}

//*******************************************
// region assignment
//*******************************************

func rowCells(t *testing.T, ctx *geos.Context) []*Cell {
	t.Helper()
	cells, err := BuildCells(GridSpec{
		Resolution: 100,
		CRS:        "3035",
		Coverage:   mustWKT(t, ctx, "POLYGON ((0 0, 400 0, 400 100, 0 100, 0 0))"),
	})
	require.NoError(t, err)
	require.Len(t, cells, 4)
	return cells
}

func region(t *testing.T, ctx *geos.Context, code, wkt string) geo.Feature {
	t.Helper()
	return geo.NewFeature(mustWKT(t, ctx, wkt), map[string]any{"CNTR_ID": code})
}

func codes(cells []*Cell, attr string) []string {
	values := make([]string, len(cells))
	for i, c := range cells {
		values[i], _ = c.GetString(attr)
	}
	return values
}

func TestAssignRegions(t *testing.T) {
	ctx := geos.NewContext()
	a := region(t, ctx, "A", "POLYGON ((0 0, 150 0, 150 100, 0 100, 0 0))")
	b := region(t, ctx, "B", "POLYGON ((150 0, 400 0, 400 100, 150 100, 150 0))")

	cells := rowCells(t, ctx)
	require.NoError(t, AssignRegions(cells, "CNTR_ID", []geo.Feature{a, b}, 0, "CNTR_ID"))
	assert.Equal(t, []string{"A", "A-B", "B", "B"}, codes(cells, "CNTR_ID"))

	// codes follow the region order
	require.NoError(t, AssignRegions(cells, "CNTR_ID", []geo.Feature{b, a}, 0, "CNTR_ID"))
	assert.Equal(t, []string{"A", "B-A", "B", "B"}, codes(cells, "CNTR_ID"))

	// duplicates are kept
	require.NoError(t, AssignRegions(cells, "CNTR_ID", []geo.Feature{a, a}, 0, "CNTR_ID"))
	assert.Equal(t, []string{"A-A", "A-A", "", ""}, codes(cells, "CNTR_ID"))
}

func TestAssignRegionsTouching(t *testing.T) {
	ctx := geos.NewContext()
	a := region(t, ctx, "A", "POLYGON ((0 0, 100 0, 100 100, 0 100, 0 0))")

	cells := rowCells(t, ctx)
	require.NoError(t, AssignRegions(cells, "CNTR_ID", []geo.Feature{a}, 0, "CNTR_ID"))
	assert.Equal(t, []string{"A", "A", "", ""}, codes(cells, "CNTR_ID"))
}

func TestAssignRegionsTolerance(t *testing.T) {
	ctx := geos.NewContext()
	c := region(t, ctx, "C", "POLYGON ((450 0, 500 0, 500 100, 450 100, 450 0))")

	cells := rowCells(t, ctx)
	require.NoError(t, AssignRegions(cells, "CNTR_ID", []geo.Feature{c}, 0, "CNTR_ID"))
	assert.Equal(t, []string{"", "", "", ""}, codes(cells, "CNTR_ID"))

	require.NoError(t, AssignRegions(cells, "CNTR_ID", []geo.Feature{c}, 100, "CNTR_ID"))
	assert.Equal(t, []string{"", "", "", "C"}, codes(cells, "CNTR_ID"))

	// the eroded region only reaches the middle cells
	wide := region(t, ctx, "W", "POLYGON ((0 -100, 400 -100, 400 200, 0 200, 0 -100))")
	require.NoError(t, AssignRegions(cells, "CNTR_ID", []geo.Feature{wide}, -120, "CNTR_ID"))
	assert.Equal(t, []string{"", "W", "W", ""}, codes(cells, "CNTR_ID"))
}

func TestAssignRegionsCenterPoints(t *testing.T) {
	ctx := geos.NewContext()
	cells, err := BuildCells(GridSpec{
		Resolution:   100,
		CRS:          "3035",
		Coverage:     mustWKT(t, ctx, "POLYGON ((0 0, 400 0, 400 100, 0 100, 0 0))"),
		GeometryType: CENTER_POINT,
	})
	require.NoError(t, err)
	a := region(t, ctx, "A", "POLYGON ((0 0, 150 0, 150 100, 0 100, 0 0))")
	require.NoError(t, AssignRegions(cells, "CNTR_ID", []geo.Feature{a}, 0, "CNTR_ID"))
	assert.Equal(t, []string{"A", "A", "", ""}, codes(cells, "CNTR_ID"))
}

func TestAssignRegionsMissingCode(t *testing.T) {
	ctx := geos.NewContext()
	cells := rowCells(t, ctx)
	cells[0].Attributes["CNTR_ID"] = "old"
	a := region(t, ctx, "A", "POLYGON ((0 0, 150 0, 150 100, 0 100, 0 0))")
	nameless := geo.NewFeature(mustWKT(t, ctx, "POLYGON ((0 0, 10 0, 10 10, 0 0))"), map[string]any{"NAME": "x"})

	err := AssignRegions(cells, "CNTR_ID", []geo.Feature{a, nameless}, 0, "CNTR_ID")
	var missing *RegionAttributeError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, 1, missing.Index)
	code, _ := cells[0].GetString("CNTR_ID")
	assert.Equal(t, "old", code)
}

func TestAssignRegionsParallelMatchesSequential(t *testing.T) {
	ctx := geos.NewContext()
	spec := GridSpec{
		Resolution: 20,
		CRS:        "3035",
		Coverage:   geo.NewSquare(ctx, 0, 0, 600),
	}
	regions := []geo.Feature{
		region(t, ctx, "A", "POLYGON ((0 0, 310 0, 280 290, 0 330, 0 0))"),
		region(t, ctx, "B", "POLYGON ((280 0, 600 0, 600 300, 280 290, 280 0))"),
		region(t, ctx, "C", "POLYGON ((0 330, 280 290, 600 300, 600 600, 0 600, 0 330))"),
		region(t, ctx, "D", "POLYGON ((250 250, 350 250, 350 350, 250 350, 250 250))"),
		region(t, ctx, "A", "POLYGON ((500 500, 560 500, 560 560, 500 560, 500 500))"),
	}

	sequential, err := BuildCells(spec)
	require.NoError(t, err)
	require.NoError(t, AssignRegions(sequential, "CNTR_ID", regions, 5, "CNTR_ID"))

	parallel, err := BuildCells(spec)
	require.NoError(t, err)
	require.NoError(t, AssignRegionsParallel(context.Background(), parallel, "CNTR_ID", regions, 5, "CNTR_ID", 3))

	assert.Equal(t, codes(sequential, "CNTR_ID"), codes(parallel, "CNTR_ID"))
	assert.Contains(t, codes(parallel, "CNTR_ID"), "A-B-C-D")
}

//*******************************************
// filter, land, lookup
//*******************************************

func TestFilterUnassigned(t *testing.T) {
	ctx := geos.NewContext()
	cells := rowCells(t, ctx)
	cells[0].Attributes["CNTR_ID"] = "BE"
	cells[1].Attributes["CNTR_ID"] = ""
	cells[2].Attributes["CNTR_ID"] = 12
	// cells[3] has no attribute

	kept := FilterUnassigned(cells, "CNTR_ID")
	require.Len(t, kept, 1)
	assert.Same(t, cells[0], kept[0])
	assert.Len(t, cells, 4)
	for _, c := range kept {
		code, ok := c.GetString("CNTR_ID")
		assert.True(t, ok)
		assert.NotEmpty(t, code)
	}
	assert.Empty(t, FilterUnassigned(nil, "CNTR_ID"))
}

func TestAssignLandProportion(t *testing.T) {
	ctx := geos.NewContext()
	cells := rowCells(t, ctx)
	land := mustWKT(t, ctx, "POLYGON ((0 0, 133.333 0, 133.333 100, 0 100, 0 0))")

	require.NoError(t, AssignLandProportion(cells, "LAND_PC", land, 2))
	assert.Equal(t, 100.0, cells[0].Attributes["LAND_PC"])
	assert.InDelta(t, 33.33, cells[1].Attributes["LAND_PC"], 1e-9)
	assert.Equal(t, 0.0, cells[2].Attributes["LAND_PC"])

	require.NoError(t, AssignLandProportion(cells, "LAND_PC", land, 0))
	assert.Equal(t, 33.0, cells[1].Attributes["LAND_PC"])

	require.NoError(t, AssignLandProportion(cells, "LAND_PC", nil, 2))
	assert.Equal(t, 0.0, cells[0].Attributes["LAND_PC"])
}

func TestFindRegion(t *testing.T) {
	ctx := geos.NewContext()
	regions := []geo.Feature{
		region(t, ctx, "BE", "POLYGON ((0 0, 1 0, 1 1, 0 0))"),
		region(t, ctx, "NL", "POLYGON ((0 0, 1 0, 1 1, 0 0))"),
		region(t, ctx, "NL", "POLYGON ((0 0, 2 0, 2 2, 0 0))"),
	}
	found, err := FindRegion(regions, "CNTR_ID", "BE")
	require.NoError(t, err)
	code, _ := found.GetString("CNTR_ID")
	assert.Equal(t, "BE", code)

	var lookup *RegionLookupError
	_, err = FindRegion(regions, "CNTR_ID", "NL")
	require.ErrorAs(t, err, &lookup)
	assert.Equal(t, 2, lookup.Count)

	_, err = FindRegion(regions, "CNTR_ID", "LU")
	require.ErrorAs(t, err, &lookup)
	assert.Equal(t, 0, lookup.Count)
}
