package community

import (
	"sort"

	"go.uber.org/zap"

	"github.com/2chong/Change-Detection/internal/core/common"
	"github.com/2chong/Change-Detection/internal/core/graph"
	"github.com/2chong/Change-Detection/internal/core/model"
)

// Partitioner splits a correspondence graph into components.
type Partitioner interface {
	Partition(g *graph.Graph, threshold float64) (*Partition, error)
}

type Summary struct {
	Components int `json:"components"`
	CutLinks   int `json:"cut_links"`
}

// Partition is the component arena plus the edges on either side of the cut.
// Components[i].Index == i.
type Partition struct {
	Components []model.Component
	Kept       []model.Edge
	Cut        []model.Edge
	Summary    Summary

	membership map[model.NodeID]int
	cutNodes   map[model.NodeID]bool
}

// ComponentOf returns the component index of a node, or -1.
func (p *Partition) ComponentOf(n model.NodeID) int {
	if idx, ok := p.membership[n]; ok {
		return idx
	}
	return -1
}

// HasCutLink reports whether any edge touching n was cut.
func (p *Partition) HasCutLink(n model.NodeID) bool {
	return p.cutNodes[n]
}

// ThresholdPartitioner keeps an edge iff its energy is at least the
// threshold and returns the connected components over the kept edges.
// Every node ends up in exactly one component, isolated nodes included.
type ThresholdPartitioner struct {
	Logger *zap.Logger
}

func NewThresholdPartitioner(logger *zap.Logger) *ThresholdPartitioner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ThresholdPartitioner{Logger: logger}
}

func (d *ThresholdPartitioner) Partition(g *graph.Graph, threshold float64) (*Partition, error) {
	if err := common.CheckThreshold("community.Partition", "cut threshold", threshold); err != nil {
		return nil, err
	}

	p := &Partition{
		membership: make(map[model.NodeID]int, len(g.Nodes)),
		cutNodes:   make(map[model.NodeID]bool),
	}

	adj := make(map[model.NodeID][]model.NodeID)
	for _, e := range g.Edges {
		if e.Energy >= threshold {
			adj[e.Source()] = append(adj[e.Source()], e.Target())
			adj[e.Target()] = append(adj[e.Target()], e.Source())
			continue
		}
		p.cutNodes[e.Source()] = true
		p.cutNodes[e.Target()] = true
	}

	visited := make(map[model.NodeID]bool, len(g.Nodes))
	for _, n := range sortedNodes(g.Nodes) {
		if visited[n] {
			continue
		}
		var members []model.NodeID
		d.dfs(n, adj, visited, &members)

		comp := model.Component{Index: len(p.Components)}
		for _, m := range members {
			p.membership[m] = comp.Index
			if m.Side == model.SideA {
				comp.Poly1Set = append(comp.Poly1Set, m.ID)
			} else {
				comp.Poly2Set = append(comp.Poly2Set, m.ID)
			}
		}
		sort.Ints(comp.Poly1Set)
		sort.Ints(comp.Poly2Set)
		p.Components = append(p.Components, comp)
	}

	for _, e := range g.Edges {
		if e.Energy >= threshold {
			e.Cut = false
			e.CompIdx = p.membership[e.Source()]
			p.Kept = append(p.Kept, e)
		} else {
			e.Cut = true
			e.CompIdx = -1
			p.Cut = append(p.Cut, e)
		}
	}

	p.Summary = Summary{Components: len(p.Components), CutLinks: len(p.Cut)}
	d.Logger.Debug("partitioned correspondence graph",
		zap.Float64("threshold", threshold),
		zap.Int("nodes", len(g.Nodes)),
		zap.Int("components", p.Summary.Components),
		zap.Int("cut_links", p.Summary.CutLinks))

	return p, nil
}

func (d *ThresholdPartitioner) dfs(u model.NodeID, adj map[model.NodeID][]model.NodeID, visited map[model.NodeID]bool, component *[]model.NodeID) {
	visited[u] = true
	*component = append(*component, u)
	for _, v := range adj[u] {
		if !visited[v] {
			d.dfs(v, adj, visited, component)
		}
	}
}

// sortedNodes orders A nodes before B nodes, each by id, so component
// numbering does not depend on the order rows arrived in.
func sortedNodes(nodes []model.NodeID) []model.NodeID {
	out := append([]model.NodeID(nil), nodes...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Side != out[j].Side {
			return out[i].Side < out[j].Side
		}
		return out[i].ID < out[j].ID
	})
	return out
}
