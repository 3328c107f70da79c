package index

import (
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/quadtree"
	"go.uber.org/zap"

	"github.com/2chong/Change-Detection/internal/core/common"
	"github.com/2chong/Change-Detection/internal/core/geometry"
	"github.com/2chong/Change-Detection/internal/core/model"
)

// Indexed is the output of the indexing step.
type Indexed struct {
	A, B       *model.PolygonSet
	PreparedA  *geometry.Prepared
	PreparedB  *geometry.Prepared
	Rows       []model.IntersectionRow
	PairCount  int
	Candidates int
}

type Indexer struct {
	Engine *geometry.Engine
	Logger *zap.Logger
}

func NewIndexer(engine *geometry.Engine, logger *zap.Logger) *Indexer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Indexer{Engine: engine, Logger: logger}
}

// AssignIDs numbers the polygons 1..n in input order. It never looks at
// geometry, so invalid shapes still get a stable identifier.
func AssignIDs(set *model.PolygonSet) {
	for i := range set.Polygons {
		set.Polygons[i].ID = i + 1
		set.Polygons[i].Annotation = model.NewAnnotation()
	}
}

// Index copies both sets, assigns identifiers and builds the outer-joined
// intersection table: every intersecting pair, then one half-null row per
// polygon that intersects nothing on the other side.
func (ix *Indexer) Index(a, b *model.PolygonSet) (*Indexed, error) {
	a, b = a.Clone(), b.Clone()
	a.Side, b.Side = model.SideA, model.SideB
	AssignIDs(a)
	AssignIDs(b)

	for _, set := range []*model.PolygonSet{a, b} {
		for _, p := range set.Polygons {
			if p.Geometry == nil {
				continue
			}
			if err := geometry.CheckPolygonal(p.Geometry); err != nil {
				return nil, common.GeometryError("index.Index", "%s_%d: %v", set.Side.Prefix(), p.ID, err)
			}
		}
	}

	prepA, err := ix.Engine.Prepare(a)
	if err != nil {
		return nil, common.GeometryError("index.Index", "%v", err)
	}
	prepB, err := ix.Engine.Prepare(b)
	if err != nil {
		return nil, common.GeometryError("index.Index", "%v", err)
	}

	out := &Indexed{A: a, B: b, PreparedA: prepA, PreparedB: prepB}
	search := newBoxSearch(b, prepB)
	matchedB := make([]bool, b.Len()+1)

	for _, pa := range a.Polygons {
		ga := prepA.Get(pa.ID)
		var hits []int
		if !geometry.Empty(ga) {
			candidates := search.Query(pa.Geometry.Bound())
			out.Candidates += len(candidates)
			for _, id := range candidates {
				if ix.Engine.Intersects(ga, prepB.Get(id)) {
					hits = append(hits, id)
				}
			}
		}
		if len(hits) == 0 {
			out.Rows = append(out.Rows, model.IntersectionRow{Poly1: pa.ID})
			continue
		}
		for _, id := range hits {
			out.Rows = append(out.Rows, model.IntersectionRow{Poly1: pa.ID, Poly2: id})
			matchedB[id] = true
			out.PairCount++
		}
	}
	for _, pb := range b.Polygons {
		if !matchedB[pb.ID] {
			out.Rows = append(out.Rows, model.IntersectionRow{Poly2: pb.ID})
		}
	}

	ix.Logger.Debug("indexed polygon sets",
		zap.Int("poly1", a.Len()),
		zap.Int("poly2", b.Len()),
		zap.Int("candidates", out.Candidates),
		zap.Int("pairs", out.PairCount))

	return out, nil
}

// Pairs is a convenience for callers that only need the intersecting
// (id_A, id_B) pairs of two already indexed sets.
func (ix *Indexer) Pairs(a, b *model.PolygonSet) ([]model.IntersectionRow, error) {
	prepA, err := ix.Engine.Prepare(a)
	if err != nil {
		return nil, common.GeometryError("index.Pairs", "%v", err)
	}
	prepB, err := ix.Engine.Prepare(b)
	if err != nil {
		return nil, common.GeometryError("index.Pairs", "%v", err)
	}
	search := newBoxSearch(b, prepB)

	var rows []model.IntersectionRow
	for _, pa := range a.Polygons {
		ga := prepA.Get(pa.ID)
		if geometry.Empty(ga) {
			continue
		}
		for _, id := range search.Query(pa.Geometry.Bound()) {
			if ix.Engine.Intersects(ga, prepB.Get(id)) {
				rows = append(rows, model.IntersectionRow{Poly1: pa.ID, Poly2: id})
			}
		}
	}
	return rows, nil
}

// boxPointer stores a polygon bound in the quadtree under its center.
type boxPointer struct {
	id    int
	bound orb.Bound
}

func (p boxPointer) Point() orb.Point {
	return p.bound.Center()
}

// boxSearch finds polygons whose bounds overlap a query bound. Bounds are
// indexed by center, so queries are widened by the largest half extent.
type boxSearch struct {
	tree         *quadtree.Quadtree
	halfW, halfH float64
	buf          []orb.Pointer
}

func newBoxSearch(set *model.PolygonSet, prepared *geometry.Prepared) *boxSearch {
	var boxes []boxPointer
	var all orb.Bound
	for _, p := range set.Polygons {
		if geometry.Empty(prepared.Get(p.ID)) {
			continue
		}
		bound := p.Geometry.Bound()
		if len(boxes) == 0 {
			all = bound
		} else {
			all = all.Union(bound)
		}
		boxes = append(boxes, boxPointer{id: p.ID, bound: bound})
	}

	s := &boxSearch{}
	if len(boxes) == 0 {
		return s
	}
	s.tree = quadtree.New(all)
	for _, box := range boxes {
		w, h := box.bound.Max[0]-box.bound.Min[0], box.bound.Max[1]-box.bound.Min[1]
		if w/2 > s.halfW {
			s.halfW = w / 2
		}
		if h/2 > s.halfH {
			s.halfH = h / 2
		}
		// centers lie inside the union bound, so Add cannot fail
		_ = s.tree.Add(box)
	}
	return s
}

// Query returns the ids whose bounds intersect q, ascending.
func (s *boxSearch) Query(q orb.Bound) []int {
	if s.tree == nil {
		return nil
	}
	wide := orb.Bound{
		Min: orb.Point{q.Min[0] - s.halfW, q.Min[1] - s.halfH},
		Max: orb.Point{q.Max[0] + s.halfW, q.Max[1] + s.halfH},
	}
	s.buf = s.tree.InBound(s.buf[:0], wide)

	ids := make([]int, 0, len(s.buf))
	for _, p := range s.buf {
		box := p.(boxPointer)
		if box.bound.Intersects(q) {
			ids = append(ids, box.id)
		}
	}
	sort.Ints(ids)
	return ids
}
