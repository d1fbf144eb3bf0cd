package grid

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ttpr0/go-gridmaker/geo"
)

//*******************************************
// cell identifiers
//*******************************************

// MalformedIDError reports a cell identifier that does not follow
// CRS{crs}RES{res}mN{x}E{y}.
type MalformedIDError struct {
	ID     string
	Reason string
}

func (self *MalformedIDError) Error() string {
	return fmt.Sprintf("malformed cell id %q: %s", self.ID, self.Reason)
}

// CellKey holds the parts of a cell identifier.
type CellKey struct {
	CRS        string
	Resolution int64
	X          int64
	Y          int64
}

func (self CellKey) String() string {
	return EncodeCellID(self.CRS, float64(self.Resolution), float64(self.X), float64(self.Y))
}

// EncodeCellID builds the identifier of a cell, e.g.
// CRS3035RES200mN1453400E1452800.
//
// Resolution and corner coordinates are truncated toward zero. N and E
// label the X and Y coordinate by position, they are not geographic
// directions.
func EncodeCellID(crs string, resolution, x, y float64) string {
	var b strings.Builder
	b.Grow(len(crs) + 32)
	b.WriteString("CRS")
	b.WriteString(crs)
	b.WriteString("RES")
	b.WriteString(strconv.FormatInt(int64(resolution), 10))
	b.WriteString("m")
	b.WriteString("N")
	b.WriteString(strconv.FormatInt(int64(x), 10))
	b.WriteString("E")
	b.WriteString(strconv.FormatInt(int64(y), 10))
	return b.String()
}

// the CRS segment is greedy, the numeric segments follow the last "RES"
var _CellIDPattern = regexp.MustCompile(`^CRS(.+)RES([^m]*)mN([^E]*)E(.*)$`)

// DecodeCellID parses an identifier built by EncodeCellID.
func DecodeCellID(id string) (CellKey, error) {
	parts := _CellIDPattern.FindStringSubmatch(id)
	if parts == nil {
		return CellKey{}, &MalformedIDError{ID: id, Reason: "expected CRS{crs}RES{res}mN{x}E{y}"}
	}
	res, err := _ParseIDSegment(id, "resolution", parts[2])
	if err != nil {
		return CellKey{}, err
	}
	if res <= 0 {
		return CellKey{}, &MalformedIDError{ID: id, Reason: fmt.Sprintf("resolution %d is not positive", res)}
	}
	x, err := _ParseIDSegment(id, "x", parts[3])
	if err != nil {
		return CellKey{}, err
	}
	y, err := _ParseIDSegment(id, "y", parts[4])
	if err != nil {
		return CellKey{}, err
	}
	return CellKey{CRS: parts[1], Resolution: res, X: x, Y: y}, nil
}

// _ParseIDSegment reads an integer written the way EncodeCellID writes it:
// no plus sign, no leading zeros.
func _ParseIDSegment(id, name, segment string) (int64, error) {
	v, err := strconv.ParseInt(segment, 10, 64)
	if err != nil {
		return 0, &MalformedIDError{ID: id, Reason: fmt.Sprintf("%s %q is not an integer", name, segment)}
	}
	if strconv.FormatInt(v, 10) != segment {
		return 0, &MalformedIDError{ID: id, Reason: fmt.Sprintf("%s %q is not in canonical form", name, segment)}
	}
	return v, nil
}

// CellFromID rebuilds a cell from its identifier.
func CellFromID(id string, typ CellGeometryType) (*Cell, error) {
	key, err := DecodeCellID(id)
	if err != nil {
		return nil, err
	}
	cell := NewCell(key.CRS, key.Resolution, key.X, key.Y, typ)
	// keep the identifier as given
	cell.ID = id
	return cell, nil
}

// CellEnvelope returns the square envelope of the identified cell.
func CellEnvelope(id string) (geo.Envelope, error) {
	key, err := DecodeCellID(id)
	if err != nil {
		return geo.Envelope{}, err
	}
	x := float64(key.X)
	y := float64(key.Y)
	r := float64(key.Resolution)
	return geo.Envelope{MinX: x, MinY: y, MaxX: x + r, MaxY: y + r}, nil
}

// ContainsCell reports whether the square of parent_id covers the square
// of child_id. Cells of different CRS never contain each other.
func ContainsCell(parent_id, child_id string) (bool, error) {
	parent, err := DecodeCellID(parent_id)
	if err != nil {
		return false, err
	}
	child, err := DecodeCellID(child_id)
	if err != nil {
		return false, err
	}
	if parent.CRS != child.CRS {
		return false, nil
	}
	return parent.X <= child.X && child.X+child.Resolution <= parent.X+parent.Resolution &&
		parent.Y <= child.Y && child.Y+child.Resolution <= parent.Y+parent.Resolution, nil
}
