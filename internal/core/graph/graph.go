// Package graph holds the bipartite correspondence graph built from the
// intersection table.
package graph

import (
	"github.com/2chong/Change-Detection/internal/core/common"
	"github.com/2chong/Change-Detection/internal/core/geometry"
	"github.com/2chong/Change-Detection/internal/core/model"
)

// Graph is undirected; every edge runs from an A node to a B node.
// Nodes are ordered all A ids ascending, then all B ids ascending.
type Graph struct {
	Nodes []model.NodeID
	Edges []model.Edge
}

// Build creates one node per referenced identifier and one edge per paired
// row. Unpaired rows contribute isolated nodes only.
func Build(rows []model.IntersectionRow) *Graph {
	var maxA, maxB int
	for _, r := range rows {
		if r.Poly1 > maxA {
			maxA = r.Poly1
		}
		if r.Poly2 > maxB {
			maxB = r.Poly2
		}
	}
	seenA := make([]bool, maxA+1)
	seenB := make([]bool, maxB+1)

	g := &Graph{}
	for _, r := range rows {
		if r.Poly1 > 0 {
			seenA[r.Poly1] = true
		}
		if r.Poly2 > 0 {
			seenB[r.Poly2] = true
		}
		if r.Paired() {
			g.Edges = append(g.Edges, model.Edge{Poly1: r.Poly1, Poly2: r.Poly2, CompIdx: -1})
		}
	}
	for id, ok := range seenA {
		if ok {
			g.Nodes = append(g.Nodes, model.NodeID{Side: model.SideA, ID: id})
		}
	}
	for id, ok := range seenB {
		if ok {
			g.Nodes = append(g.Nodes, model.NodeID{Side: model.SideB, ID: id})
		}
	}
	return g
}

// AddEnergy sets every edge's energy to the IoU of its raw pair. a and b
// are the geometries of the indexed sets, prepared by engine.
func AddEnergy(engine *geometry.Engine, a, b *geometry.Prepared, g *Graph) error {
	for i := range g.Edges {
		e := &g.Edges[i]
		energy, err := engine.Energy(a.Get(e.Poly1), b.Get(e.Poly2))
		if err != nil {
			return common.GeometryError("graph.AddEnergy", "edge %s-%s: %v", e.Source(), e.Target(), err)
		}
		e.Energy = energy
	}
	return nil
}
