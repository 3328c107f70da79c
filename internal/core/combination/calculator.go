// Package combination enumerates and measures the subset pairings of each
// component.
package combination

import (
	"context"
	"runtime"

	"github.com/twpayne/go-geos"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/2chong/Change-Detection/internal/core/common"
	"github.com/2chong/Change-Detection/internal/core/geometry"
	"github.com/2chong/Change-Detection/internal/core/model"
)

// Calculator computes combination metrics with a pool of workers. Each
// worker owns a geometry.Engine, so no GEOS state crosses goroutines.
type Calculator struct {
	Workers int
	Logger  *zap.Logger
}

func NewCalculator(workers int, logger *zap.Logger) *Calculator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Calculator{Workers: workers, Logger: logger}
}

// Enumerate lists the combination rows a component needs, dispatching on
// the member counts:
//
//	1:1  one single_pair
//	1:N  single_pair per B member, one union_poly2
//	N:1  single_pair per A member, one union_poly1
//	N:N  every pair, union_poly1 per B member, union_poly2 per A member, one union_both
//	1:0 / 0:1  one metric-less row per member
func Enumerate(c model.Component) ([]model.CombinationRow, error) {
	n1, n2 := c.Cardinality()
	row := func(kind model.CombinationKind, p1, p2 []int) model.CombinationRow {
		return model.CombinationRow{
			CompIdx:  c.Index,
			Relation: c.Relation,
			Poly1Set: p1,
			Poly2Set: p2,
			Kind:     kind,
			Metrics:  model.UndefinedTriplet(),
		}
	}

	var rows []model.CombinationRow
	switch {
	case n1 == 0 && n2 == 0:
		return nil, common.ConfigError("combination.Enumerate", "component %d has no members", c.Index)

	case n2 == 0:
		for _, a := range c.Poly1Set {
			rows = append(rows, row(model.KindNone, []int{a}, nil))
		}
	case n1 == 0:
		for _, b := range c.Poly2Set {
			rows = append(rows, row(model.KindNone, nil, []int{b}))
		}

	case n1 == 1 && n2 == 1:
		rows = append(rows, row(model.KindSinglePair, c.Poly1Set, c.Poly2Set))

	case n1 == 1:
		for _, b := range c.Poly2Set {
			rows = append(rows, row(model.KindSinglePair, c.Poly1Set, []int{b}))
		}
		rows = append(rows, row(model.KindUnionPoly2, c.Poly1Set, c.Poly2Set))

	case n2 == 1:
		for _, a := range c.Poly1Set {
			rows = append(rows, row(model.KindSinglePair, []int{a}, c.Poly2Set))
		}
		rows = append(rows, row(model.KindUnionPoly1, c.Poly1Set, c.Poly2Set))

	default:
		for _, a := range c.Poly1Set {
			for _, b := range c.Poly2Set {
				rows = append(rows, row(model.KindSinglePair, []int{a}, []int{b}))
			}
		}
		for _, b := range c.Poly2Set {
			rows = append(rows, row(model.KindUnionPoly1, c.Poly1Set, []int{b}))
		}
		for _, a := range c.Poly1Set {
			rows = append(rows, row(model.KindUnionPoly2, []int{a}, c.Poly2Set))
		}
		rows = append(rows, row(model.KindUnionBoth, c.Poly1Set, c.Poly2Set))
	}
	return rows, nil
}

// Compute enumerates and evaluates the rows of every component. Rows come
// back grouped by component index in ascending order whatever the worker
// count. A cancelled ctx stops dispatching further components.
func (c *Calculator) Compute(ctx context.Context, a, b *model.PolygonSet, components []model.Component) ([]model.CombinationRow, error) {
	workers := c.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(components) {
		workers = len(components)
	}

	results := make([][]model.CombinationRow, len(components))
	jobs := make(chan int)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(jobs)
		for i := range components {
			if err := ctx.Err(); err != nil {
				return err
			}
			select {
			case jobs <- i:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	for w := 0; w < workers; w++ {
		g.Go(func() error {
			engine := geometry.NewEngine()
			for i := range jobs {
				rows, err := computeComponent(engine, a, b, components[i])
				if err != nil {
					return err
				}
				results[i] = rows
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []model.CombinationRow
	for _, rows := range results {
		out = append(out, rows...)
	}
	c.Logger.Debug("computed combination metrics",
		zap.Int("components", len(components)),
		zap.Int("rows", len(out)),
		zap.Int("workers", workers))
	return out, nil
}

func computeComponent(engine *geometry.Engine, a, b *model.PolygonSet, comp model.Component) ([]model.CombinationRow, error) {
	rows, err := Enumerate(comp)
	if err != nil {
		return nil, err
	}
	if len(comp.Poly1Set) == 0 || len(comp.Poly2Set) == 0 {
		return rows, nil
	}

	geomsA, err := convert(engine, a, comp.Poly1Set)
	if err != nil {
		return nil, err
	}
	defer destroy(geomsA)
	geomsB, err := convert(engine, b, comp.Poly2Set)
	if err != nil {
		return nil, err
	}
	defer destroy(geomsB)

	for i := range rows {
		rows[i].Metrics = engine.Overlay(pick(geomsA, rows[i].Poly1Set), pick(geomsB, rows[i].Poly2Set))
	}
	return rows, nil
}

func convert(engine *geometry.Engine, set *model.PolygonSet, ids []int) (map[int]*geos.Geom, error) {
	out := make(map[int]*geos.Geom, len(ids))
	for _, id := range ids {
		p := set.Get(id)
		if p == nil {
			return nil, common.SchemaError("combination.Compute", "%s_%d is not in the polygon set", set.Side.Prefix(), id)
		}
		if p.Geometry == nil {
			continue
		}
		g, err := engine.Geom(p.Geometry)
		if err != nil {
			return nil, common.GeometryError("combination.Compute", "%s_%d: %v", set.Side.Prefix(), id, err)
		}
		out[id] = g
	}
	return out, nil
}

func pick(geoms map[int]*geos.Geom, ids []int) []*geos.Geom {
	out := make([]*geos.Geom, 0, len(ids))
	for _, id := range ids {
		if g, ok := geoms[id]; ok {
			out = append(out, g)
		}
	}
	return out
}

func destroy(geoms map[int]*geos.Geom) {
	for _, g := range geoms {
		g.Destroy()
	}
}
