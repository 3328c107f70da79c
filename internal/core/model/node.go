package model

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// Side tells which input layer a polygon belongs to.
type Side int

const (
	SideA Side = 1 // prior map / ground truth
	SideB Side = 2 // current map / prediction
)

// Prefix is the graph node prefix for the side ("p1" or "p2").
func (s Side) Prefix() string {
	if s == SideA {
		return "p1"
	}
	return "p2"
}

// IDColumn is the identifier column name used in exported tables.
func (s Side) IDColumn() string {
	if s == SideA {
		return "poly1_idx"
	}
	return "poly2_idx"
}

func (s Side) String() string {
	switch s {
	case SideA:
		return "A"
	case SideB:
		return "B"
	default:
		return "?"
	}
}

// Polygon is one building footprint. ID is dense and 1-based within its set.
type Polygon struct {
	ID         int                    `json:"id"`
	Geometry   orb.Geometry           `json:"-"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
	Annotation Annotation             `json:"annotation"`
}

type PolygonSet struct {
	Side     Side      `json:"side"`
	Polygons []Polygon `json:"polygons"`
}

// NewPolygonSet builds an unindexed set from geometries and their attributes.
// attrs may be nil or shorter than geoms.
func NewPolygonSet(side Side, geoms []orb.Geometry, attrs []map[string]interface{}) *PolygonSet {
	set := &PolygonSet{Side: side, Polygons: make([]Polygon, len(geoms))}
	for i, g := range geoms {
		set.Polygons[i] = Polygon{Geometry: g, Annotation: NewAnnotation()}
		if i < len(attrs) {
			set.Polygons[i].Attributes = attrs[i]
		}
	}
	return set
}

func (s *PolygonSet) Len() int {
	return len(s.Polygons)
}

// Get returns the polygon with the given identifier, or nil.
// Identifiers are dense after indexing, so this is a direct slot lookup.
func (s *PolygonSet) Get(id int) *Polygon {
	if id < 1 || id > len(s.Polygons) {
		return nil
	}
	p := &s.Polygons[id-1]
	if p.ID != id {
		return nil
	}
	return p
}

// Clone copies the set so annotation passes never mutate caller data.
// Geometries are shared; orb geometries are treated as immutable here.
func (s *PolygonSet) Clone() *PolygonSet {
	out := &PolygonSet{Side: s.Side, Polygons: make([]Polygon, len(s.Polygons))}
	for i, p := range s.Polygons {
		cp := p
		if p.Attributes != nil {
			cp.Attributes = make(map[string]interface{}, len(p.Attributes))
			for k, v := range p.Attributes {
				cp.Attributes[k] = v
			}
		}
		out.Polygons[i] = cp
	}
	return out
}

// NodeID identifies a graph node: one polygon on one side.
type NodeID struct {
	Side Side
	ID   int
}

func (n NodeID) String() string {
	return fmt.Sprintf("%s_%d", n.Side.Prefix(), n.ID)
}

// ParseNodeID is the inverse of NodeID.String.
func ParseNodeID(s string) (NodeID, error) {
	prefix, num, ok := strings.Cut(s, "_")
	if !ok {
		return NodeID{}, fmt.Errorf("malformed node id %q", s)
	}
	id, err := strconv.Atoi(num)
	if err != nil {
		return NodeID{}, fmt.Errorf("malformed node id %q: %w", s, err)
	}
	switch prefix {
	case "p1":
		return NodeID{Side: SideA, ID: id}, nil
	case "p2":
		return NodeID{Side: SideB, ID: id}, nil
	}
	return NodeID{}, fmt.Errorf("unknown node prefix in %q", s)
}
