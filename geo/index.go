package geo

import (
	"math"

	"github.com/dhconnelly/rtreego"
)

//*******************************************
// spatial index
//*******************************************

// Index is a bounding-box R-tree over values of type T.
//
// Query returns every value whose box intersects the query box, possibly
// with a few extra candidates: boxes are padded slightly because rtreego
// cannot store degenerate boxes and treats touching boxes as disjoint.
// Callers apply their exact predicate on the result.
type Index[T any] struct {
	tree *rtreego.Rtree
	size int
}

type _IndexEntry[T any] struct {
	rect  rtreego.Rect
	value T
}

func (self *_IndexEntry[T]) Bounds() rtreego.Rect {
	return self.rect
}

func NewIndex[T any]() *Index[T] {
	return &Index[T]{
		tree: rtreego.NewTree(2, 25, 50),
	}
}

// Insert adds value under env. Empty envelopes are ignored.
func (self *Index[T]) Insert(env Envelope, value T) bool {
	rect, ok := _ToRect(env)
	if !ok {
		return false
	}
	self.tree.Insert(&_IndexEntry[T]{rect: rect, value: value})
	self.size += 1
	return true
}

func (self *Index[T]) Query(env Envelope) []T {
	rect, ok := _ToRect(env)
	if !ok {
		return nil
	}
	results := self.tree.SearchIntersect(rect)
	values := make([]T, len(results))
	for i, item := range results {
		values[i] = item.(*_IndexEntry[T]).value
	}
	return values
}

func (self *Index[T]) Size() int {
	return self.size
}

// pad relative to the coordinate magnitude so that p+length stays distinct
// from p in float64
const _RelativePad = 1e-9

func _ToRect(env Envelope) (rtreego.Rect, bool) {
	if env.IsEmpty() {
		return rtreego.Rect{}, false
	}
	scale := math.Max(1, math.Max(math.Max(math.Abs(env.MinX), math.Abs(env.MaxX)), math.Max(math.Abs(env.MinY), math.Abs(env.MaxY))))
	pad := scale * _RelativePad
	env = env.Expand(pad)
	rect, err := rtreego.NewRect(
		rtreego.Point{env.MinX, env.MinY},
		[]float64{env.Width(), env.Height()},
	)
	if err != nil {
		return rtreego.Rect{}, false
	}
	return rect, true
}
