package index

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2chong/Change-Detection/internal/core/common"
	"github.com/2chong/Change-Detection/internal/core/geometry"
	"github.com/2chong/Change-Detection/internal/core/model"
)

func rect(x0, y0, x1, y1 float64) orb.Polygon {
	return orb.Polygon{orb.Ring{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}, {x0, y0}}}
}

func set(side model.Side, geoms ...orb.Geometry) *model.PolygonSet {
	return model.NewPolygonSet(side, geoms, nil)
}

func TestIndex_OuterJoin(t *testing.T) {
	ix := NewIndexer(geometry.NewEngine(), nil)

	a := set(model.SideA,
		rect(0, 0, 10, 10),       // 1: hits b1, b2
		rect(100, 100, 110, 110), // 2: nothing
	)
	b := set(model.SideB,
		rect(5, 0, 15, 10),   // 1
		rect(-5, -5, 2, 2),   // 2
		rect(50, 50, 60, 60), // 3: nothing
	)

	out, err := ix.Index(a, b)
	require.NoError(t, err)

	assert.Equal(t, []model.IntersectionRow{
		{Poly1: 1, Poly2: 1},
		{Poly1: 1, Poly2: 2},
		{Poly1: 2},
		{Poly2: 3},
	}, out.Rows)
	assert.Equal(t, 2, out.PairCount)

	// caller sets untouched, copies numbered
	assert.Equal(t, 0, a.Polygons[0].ID)
	assert.Equal(t, 2, out.A.Polygons[1].ID)
	assert.Equal(t, 3, out.B.Polygons[2].ID)
}

func TestIndex_TouchingIsCandidate(t *testing.T) {
	ix := NewIndexer(geometry.NewEngine(), nil)
	out, err := ix.Index(
		set(model.SideA, rect(0, 0, 10, 10)),
		set(model.SideB, rect(10, 0, 20, 10)),
	)
	require.NoError(t, err)
	assert.Equal(t, []model.IntersectionRow{{Poly1: 1, Poly2: 1}}, out.Rows)
}

func TestIndex_BoundsOverlapButShapesDoNot(t *testing.T) {
	ix := NewIndexer(geometry.NewEngine(), nil)
	// L-shaped footprint whose bbox covers the small square, shapes disjoint
	l := orb.Polygon{orb.Ring{{0, 0}, {10, 0}, {10, 2}, {2, 2}, {2, 10}, {0, 10}, {0, 0}}}
	out, err := ix.Index(
		set(model.SideA, l),
		set(model.SideB, rect(6, 6, 8, 8)),
	)
	require.NoError(t, err)
	assert.Equal(t, []model.IntersectionRow{{Poly1: 1}, {Poly2: 1}}, out.Rows)
	assert.Equal(t, 1, out.Candidates)
}

func TestIndex_EmptySides(t *testing.T) {
	ix := NewIndexer(geometry.NewEngine(), nil)

	out, err := ix.Index(set(model.SideA), set(model.SideB, rect(0, 0, 1, 1)))
	require.NoError(t, err)
	assert.Equal(t, []model.IntersectionRow{{Poly2: 1}}, out.Rows)

	out, err = ix.Index(set(model.SideA), set(model.SideB))
	require.NoError(t, err)
	assert.Empty(t, out.Rows)
}

func TestIndex_NilGeometryIsUnmatched(t *testing.T) {
	ix := NewIndexer(geometry.NewEngine(), nil)
	out, err := ix.Index(
		set(model.SideA, nil, rect(0, 0, 1, 1)),
		set(model.SideB, rect(0, 0, 1, 1)),
	)
	require.NoError(t, err)
	assert.Equal(t, []model.IntersectionRow{{Poly1: 1}, {Poly1: 2, Poly2: 1}}, out.Rows)
}

func TestIndex_RejectsNonPolygonal(t *testing.T) {
	ix := NewIndexer(geometry.NewEngine(), nil)
	_, err := ix.Index(
		set(model.SideA, rect(0, 0, 1, 1)),
		set(model.SideB, orb.LineString{{0, 0}, {1, 1}}),
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrGeometry)
	assert.Contains(t, err.Error(), "p2_1")
}

func TestIndex_RejectsInvalidGeometry(t *testing.T) {
	ix := NewIndexer(geometry.NewEngine(), nil)
	bowtie := orb.Polygon{orb.Ring{{0, 0}, {10, 10}, {10, 0}, {0, 10}, {0, 0}}}
	_, err := ix.Index(
		set(model.SideA, bowtie),
		set(model.SideB, rect(0, 0, 10, 10)),
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrGeometry)
	assert.Contains(t, err.Error(), "p1_1")
}

func TestIndex_ManyCandidatesAgainstBruteForce(t *testing.T) {
	e := geometry.NewEngine()
	ix := NewIndexer(e, nil)

	var ga, gb []orb.Geometry
	for i := 0; i < 12; i++ {
		for j := 0; j < 12; j++ {
			x, y := float64(i*10), float64(j*10)
			ga = append(ga, rect(x, y, x+8, y+8))
			gb = append(gb, rect(x+4, y+4, x+11, y+11+float64(i%3)))
		}
	}
	out, err := ix.Index(set(model.SideA, ga...), set(model.SideB, gb...))
	require.NoError(t, err)

	pa, err := e.Prepare(out.A)
	require.NoError(t, err)
	pb, err := e.Prepare(out.B)
	require.NoError(t, err)

	want := 0
	for _, p := range out.A.Polygons {
		for _, q := range out.B.Polygons {
			if e.Intersects(pa.Get(p.ID), pb.Get(q.ID)) {
				want++
			}
		}
	}
	assert.Equal(t, want, out.PairCount)

	pairs, err := ix.Pairs(out.A, out.B)
	require.NoError(t, err)
	assert.Len(t, pairs, want)
}
