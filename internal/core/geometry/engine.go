// Package geometry runs the planar overlay operations of the matcher
// (intersects, intersection, union, area) on GEOS.
//
// Polygons live in the data model as orb geometries and are copied into a
// GEOS context through WKB. A GEOS context must not be shared between
// goroutines, so every Engine owns its own context and parallel callers
// create one Engine per worker. Geometries produced by one Engine must not
// be passed to another.
package geometry

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/paulmach/orb/planar"
	"github.com/twpayne/go-geos"

	"github.com/2chong/Change-Detection/internal/core/model"
)

type Engine struct {
	ctx *geos.Context
}

func NewEngine() *Engine {
	return &Engine{ctx: geos.NewContext()}
}

// Geom copies a Polygon or MultiPolygon into the engine's context.
// Invalid shapes such as bow-tie rings or zero-area slivers are rejected,
// never repaired. An empty polygon is accepted and stays empty.
func (e *Engine) Geom(g orb.Geometry) (*geos.Geom, error) {
	if err := CheckPolygonal(g); err != nil {
		return nil, err
	}
	data, err := wkb.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s as WKB: %w", g.GeoJSONType(), err)
	}
	geom, err := e.ctx.NewGeomFromWKB(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode WKB: %w", err)
	}
	if geom.IsEmpty() {
		return geom, nil
	}
	if !geom.IsValid() {
		reason := geom.IsValidReason()
		geom.Destroy()
		return nil, fmt.Errorf("invalid geometry: %s", reason)
	}
	if geom.Area() == 0 {
		geom.Destroy()
		return nil, fmt.Errorf("zero-area geometry")
	}
	return geom, nil
}

// Prepared is a polygon set converted once, addressed by polygon ID.
type Prepared struct {
	geoms map[int]*geos.Geom
}

// Prepare converts every polygon of the set. Polygons with nil geometry
// get no entry; callers treat them as empty. The set may be a filtered
// subset whose identifiers are no longer dense, but identifiers must be
// positive and unique.
func (e *Engine) Prepare(set *model.PolygonSet) (*Prepared, error) {
	p := &Prepared{geoms: make(map[int]*geos.Geom, len(set.Polygons))}
	seen := make(map[int]bool, len(set.Polygons))
	for _, poly := range set.Polygons {
		if poly.ID < 1 {
			return nil, fmt.Errorf("%s_%d: identifier must be positive", set.Side.Prefix(), poly.ID)
		}
		if seen[poly.ID] {
			return nil, fmt.Errorf("%s_%d: duplicate identifier", set.Side.Prefix(), poly.ID)
		}
		seen[poly.ID] = true
		if poly.Geometry == nil {
			continue
		}
		g, err := e.Geom(poly.Geometry)
		if err != nil {
			return nil, fmt.Errorf("%s_%d: %w", set.Side.Prefix(), poly.ID, err)
		}
		p.geoms[poly.ID] = g
	}
	return p, nil
}

// Get returns the prepared geometry for id, or nil.
func (p *Prepared) Get(id int) *geos.Geom {
	return p.geoms[id]
}

// Pick returns the prepared geometries for ids, skipping missing ones.
func (p *Prepared) Pick(ids []int) []*geos.Geom {
	out := make([]*geos.Geom, 0, len(ids))
	for _, id := range ids {
		if g := p.Get(id); g != nil {
			out = append(out, g)
		}
	}
	return out
}

func Empty(g *geos.Geom) bool {
	return g == nil || g.IsEmpty()
}

// Intersects reports whether two non-empty geometries share any point.
func (e *Engine) Intersects(a, b *geos.Geom) bool {
	if Empty(a) || Empty(b) {
		return false
	}
	return a.Intersects(b)
}

// Energy is the IoU of a raw pair. It fails when either side is empty or
// the union has no area, since no ratio can be formed.
func (e *Engine) Energy(a, b *geos.Geom) (float64, error) {
	if Empty(a) || Empty(b) {
		return 0, fmt.Errorf("empty geometry")
	}
	inter := a.Intersection(b)
	defer inter.Destroy()
	union := a.Union(b)
	defer union.Destroy()

	unionArea := union.Area()
	if unionArea == 0 {
		return 0, fmt.Errorf("zero-area union")
	}
	return clamp01(inter.Area() / unionArea), nil
}

// Union merges geometries into one shape. The result is owned by the
// caller only when owned is true; a single input is returned as is.
func (e *Engine) Union(geoms []*geos.Geom) (result *geos.Geom, owned bool) {
	switch len(geoms) {
	case 0:
		return nil, false
	case 1:
		return geoms[0], false
	}
	acc := geoms[0].Union(geoms[1])
	for _, g := range geoms[2:] {
		next := acc.Union(g)
		acc.Destroy()
		acc = next
	}
	return acc, true
}

// Overlay computes the metric triplet of union(a) against union(b).
// An empty union on either side yields a defined all-zero triplet.
func (e *Engine) Overlay(a, b []*geos.Geom) model.Triplet {
	ga, ownA := e.Union(a)
	if ownA {
		defer ga.Destroy()
	}
	gb, ownB := e.Union(b)
	if ownB {
		defer gb.Destroy()
	}
	if Empty(ga) || Empty(gb) {
		return model.Triplet{}
	}

	inter := ga.Intersection(gb)
	defer inter.Destroy()
	union := ga.Union(gb)
	defer union.Destroy()

	interArea := inter.Area()
	return model.Triplet{
		IoU:      ratio(interArea, union.Area()),
		OverlapA: ratio(interArea, ga.Area()),
		OverlapB: ratio(interArea, gb.Area()),
	}
}

func ratio(num, den float64) float64 {
	if den <= 0 {
		return 0
	}
	return clamp01(num / den)
}

// clamp01 absorbs floating-point drift such as 1.0000000000000002.
func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// CheckPolygonal accepts only Polygon and MultiPolygon.
func CheckPolygonal(g orb.Geometry) error {
	switch g.(type) {
	case orb.Polygon, orb.MultiPolygon:
		return nil
	case nil:
		return fmt.Errorf("missing geometry")
	default:
		return fmt.Errorf("unsupported geometry type %s", g.GeoJSONType())
	}
}

// Area is the planar area of a polygonal geometry; nil has zero area.
func Area(g orb.Geometry) float64 {
	if g == nil {
		return 0
	}
	return math.Abs(planar.Area(g))
}
