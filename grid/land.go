package grid

import (
	"math"

	"github.com/pkg/errors"
	"github.com/ttpr0/go-gridmaker/geo"
	"github.com/twpayne/go-geos"
)

//*******************************************
// land proportion
//*******************************************

// AssignLandProportion stores in attr the share of each cell square that
// is covered by land, in percent rounded to decimals places.
//
// A nil or empty land geometry gives 0 for every cell.
func AssignLandProportion(cells []*Cell, attr string, land *geos.Geom, decimals int) error {
	if land == nil || land.IsEmpty() {
		for _, cell := range cells {
			cell.Attributes[attr] = 0.0
		}
		return nil
	}
	ctx := geos.NewContext()
	local, err := geo.Transfer(ctx, land)
	if err != nil {
		return err
	}
	prepared := local.Prepare()
	scale := math.Pow(10, float64(decimals))

	for _, cell := range cells {
		square := cell.Square(ctx)
		area := square.Area()
		var share float64
		switch {
		case !prepared.Intersects(square):
			share = 0
		case prepared.Contains(square):
			share = 100
		default:
			inter, err := geo.Safe("land intersection", func() *geos.Geom {
				return square.Intersection(local)
			})
			if err != nil {
				square.Destroy()
				return errors.Wrapf(err, "cell %s", cell.ID)
			}
			share = 100 * inter.Area() / area
			inter.Destroy()
		}
		square.Destroy()
		cell.Attributes[attr] = math.Round(share*scale) / scale
	}
	return nil
}
