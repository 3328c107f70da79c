package combination

import (
	"context"
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2chong/Change-Detection/internal/core/common"
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

func kinds(rows []model.CombinationRow) []model.CombinationKind {
	out := make([]model.CombinationKind, len(rows))
	for i, r := range rows {
		out[i] = r.Kind
	}
	return out
}

func TestEnumerate(t *testing.T) {
	tests := []struct {
		name  string
		comp  model.Component
		kinds []model.CombinationKind
	}{
		{
			name:  "1:1",
			comp:  model.Component{Poly1Set: []int{1}, Poly2Set: []int{4}},
			kinds: []model.CombinationKind{model.KindSinglePair},
		},
		{
			name: "1:N",
			comp: model.Component{Poly1Set: []int{1}, Poly2Set: []int{2, 3}},
			kinds: []model.CombinationKind{
				model.KindSinglePair, model.KindSinglePair, model.KindUnionPoly2,
			},
		},
		{
			name: "N:1",
			comp: model.Component{Poly1Set: []int{1, 2, 3}, Poly2Set: []int{7}},
			kinds: []model.CombinationKind{
				model.KindSinglePair, model.KindSinglePair, model.KindSinglePair, model.KindUnionPoly1,
			},
		},
		{
			name: "N:N",
			comp: model.Component{Poly1Set: []int{1, 2}, Poly2Set: []int{3, 4}},
			kinds: []model.CombinationKind{
				model.KindSinglePair, model.KindSinglePair, model.KindSinglePair, model.KindSinglePair,
				model.KindUnionPoly1, model.KindUnionPoly1,
				model.KindUnionPoly2, model.KindUnionPoly2,
				model.KindUnionBoth,
			},
		},
		{
			name:  "1:0",
			comp:  model.Component{Poly1Set: []int{5}},
			kinds: []model.CombinationKind{model.KindNone},
		},
		{
			name:  "0:1 with several members",
			comp:  model.Component{Poly2Set: []int{5, 6}},
			kinds: []model.CombinationKind{model.KindNone, model.KindNone},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := Enumerate(tt.comp)
			require.NoError(t, err)
			assert.Equal(t, tt.kinds, kinds(rows))
			for _, r := range rows {
				if r.Kind == model.KindNone {
					assert.False(t, r.Metrics.Defined())
				}
			}
		})
	}
}

func TestEnumerate_NNSubsets(t *testing.T) {
	rows, err := Enumerate(model.Component{Index: 3, Poly1Set: []int{1, 2}, Poly2Set: []int{3, 4}})
	require.NoError(t, err)

	assert.Equal(t, []int{1}, rows[1].Poly1Set)
	assert.Equal(t, []int{4}, rows[1].Poly2Set)
	assert.Equal(t, []int{1, 2}, rows[4].Poly1Set)
	assert.Equal(t, []int{3}, rows[4].Poly2Set)
	assert.Equal(t, []int{2}, rows[7].Poly1Set)
	assert.Equal(t, []int{3, 4}, rows[7].Poly2Set)
	for _, r := range rows {
		assert.Equal(t, 3, r.CompIdx)
	}
}

func TestEnumerate_EmptyComponent(t *testing.T) {
	_, err := Enumerate(model.Component{})
	assert.ErrorIs(t, err, common.ErrConfig)
}

func TestCompute_OneToMany(t *testing.T) {
	// A covers two disjoint B halves plus a strip no B touches
	a := indexed(model.SideA, rect(0, 0, 20, 10))
	b := indexed(model.SideB, rect(0, 0, 8, 10), rect(10, 0, 18, 10))
	comps := []model.Component{{Index: 0, Poly1Set: []int{1}, Poly2Set: []int{1, 2}, Relation: model.OneToMany}}

	rows, err := NewCalculator(2, nil).Compute(context.Background(), a, b, comps)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.InDelta(t, 80.0/200.0, rows[0].Metrics.IoU, 1e-9)
	assert.InDelta(t, 1.0, rows[0].Metrics.OverlapB, 1e-9)
	assert.InDelta(t, 160.0/200.0, rows[2].Metrics.IoU, 1e-9)
	assert.InDelta(t, 0.8, rows[2].Metrics.OverlapA, 1e-9)
	assert.Equal(t, model.OneToMany, rows[2].Relation)
}

func TestCompute_DeterministicAcrossWorkerCounts(t *testing.T) {
	var ga, gb []orb.Geometry
	var comps []model.Component
	for i := 0; i < 25; i++ {
		x := float64(i * 100)
		ga = append(ga, rect(x, 0, x+10, 10), rect(x+10, 0, x+20, 10))
		gb = append(gb, rect(x+2, 0, x+18, 10))
		comps = append(comps, model.Component{
			Index:    len(comps),
			Poly1Set: []int{2*i + 1, 2*i + 2},
			Poly2Set: []int{i + 1},
			Relation: model.ManyToOne,
		})
	}
	comps = append(comps, model.Component{Index: len(comps), Poly2Set: []int{99}, Relation: model.ZeroToOne})
	a, b := indexed(model.SideA, ga...), indexed(model.SideB, gb...)

	serial, err := NewCalculator(1, nil).Compute(context.Background(), a, b, comps)
	require.NoError(t, err)
	parallel, err := NewCalculator(8, nil).Compute(context.Background(), a, b, comps)
	require.NoError(t, err)

	require.Equal(t, len(serial), len(parallel))
	for i := range serial {
		assert.Equal(t, serial[i].CompIdx, parallel[i].CompIdx)
		assert.Equal(t, serial[i].Kind, parallel[i].Kind)
		if serial[i].Metrics.Defined() {
			assert.InDelta(t, serial[i].Metrics.IoU, parallel[i].Metrics.IoU, 1e-12)
		} else {
			assert.True(t, math.IsNaN(parallel[i].Metrics.IoU))
		}
	}
	for i := 1; i < len(parallel); i++ {
		assert.LessOrEqual(t, parallel[i-1].CompIdx, parallel[i].CompIdx)
	}
}

func TestCompute_Cancelled(t *testing.T) {
	a := indexed(model.SideA, rect(0, 0, 1, 1))
	b := indexed(model.SideB, rect(0, 0, 1, 1))
	comps := []model.Component{{Poly1Set: []int{1}, Poly2Set: []int{1}}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewCalculator(1, nil).Compute(ctx, a, b, comps)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCompute_UnknownMember(t *testing.T) {
	a := indexed(model.SideA, rect(0, 0, 1, 1))
	b := indexed(model.SideB, rect(0, 0, 1, 1))
	comps := []model.Component{{Poly1Set: []int{1}, Poly2Set: []int{2}}}

	_, err := NewCalculator(1, nil).Compute(context.Background(), a, b, comps)
	assert.ErrorIs(t, err, common.ErrSchema)
}
