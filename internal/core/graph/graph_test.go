package graph

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

func indexed(side model.Side, geoms ...orb.Geometry) *model.PolygonSet {
	set := model.NewPolygonSet(side, geoms, nil)
	for i := range set.Polygons {
		set.Polygons[i].ID = i + 1
	}
	return set
}

func TestBuild(t *testing.T) {
	g := Build([]model.IntersectionRow{
		{Poly1: 2, Poly2: 1},
		{Poly1: 1},
		{Poly1: 2, Poly2: 3},
		{Poly2: 2},
	})

	assert.Equal(t, []model.NodeID{
		{Side: model.SideA, ID: 1},
		{Side: model.SideA, ID: 2},
		{Side: model.SideB, ID: 1},
		{Side: model.SideB, ID: 2},
		{Side: model.SideB, ID: 3},
	}, g.Nodes)
	require.Len(t, g.Edges, 2)
	assert.Equal(t, "p1_2", g.Edges[0].Source().String())
	assert.Equal(t, "p2_3", g.Edges[1].Target().String())
	assert.Equal(t, -1, g.Edges[0].CompIdx)
}

func TestBuild_Empty(t *testing.T) {
	g := Build(nil)
	assert.Empty(t, g.Nodes)
	assert.Empty(t, g.Edges)
}

func TestAddEnergy(t *testing.T) {
	e := geometry.NewEngine()
	a, err := e.Prepare(indexed(model.SideA, rect(0, 0, 10, 10)))
	require.NoError(t, err)
	b, err := e.Prepare(indexed(model.SideB, rect(0, 0, 10, 10), rect(5, 0, 15, 10)))
	require.NoError(t, err)

	g := Build([]model.IntersectionRow{{Poly1: 1, Poly2: 1}, {Poly1: 1, Poly2: 2}})
	require.NoError(t, AddEnergy(e, a, b, g))

	assert.InDelta(t, 1.0, g.Edges[0].Energy, 1e-9)
	assert.InDelta(t, 1.0/3.0, g.Edges[1].Energy, 1e-9)
}

func TestAddEnergy_MissingGeometry(t *testing.T) {
	e := geometry.NewEngine()
	a, err := e.Prepare(indexed(model.SideA, nil))
	require.NoError(t, err)
	b, err := e.Prepare(indexed(model.SideB, rect(0, 0, 1, 1)))
	require.NoError(t, err)

	g := Build([]model.IntersectionRow{{Poly1: 1, Poly2: 1}})
	err = AddEnergy(e, a, b, g)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrGeometry)
	assert.Contains(t, err.Error(), "p1_1-p2_1")
}
