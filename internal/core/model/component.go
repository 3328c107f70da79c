package model

// Relation is the cardinality class of a component.
type Relation string

const (
	RelationNone Relation = ""
	OneToZero    Relation = "1:0"
	ZeroToOne    Relation = "0:1"
	OneToOne     Relation = "1:1"
	OneToMany    Relation = "1:N"
	ManyToOne    Relation = "N:1"
	ManyToMany   Relation = "N:N"
)

// Relations lists every defined relation in report order.
var Relations = []Relation{OneToZero, ZeroToOne, OneToOne, OneToMany, ManyToOne, ManyToMany}

// Component is a maximal cluster of corresponding polygons after the cut.
// Member sets are sorted ascending; at most one of them is empty.
type Component struct {
	Index    int      `json:"comp_idx"`
	Poly1Set []int    `json:"poly1_set"`
	Poly2Set []int    `json:"poly2_set"`
	Relation Relation `json:"relation"`
}

func (c Component) Cardinality() (int, int) {
	return len(c.Poly1Set), len(c.Poly2Set)
}

// CombinationKind names the subset pairing a combination row evaluates.
type CombinationKind string

const (
	KindNone       CombinationKind = ""
	KindSinglePair CombinationKind = "single_pair"
	KindUnionPoly1 CombinationKind = "union_poly1"
	KindUnionPoly2 CombinationKind = "union_poly2"
	KindUnionBoth  CombinationKind = "union_both"
)

// Family is the metric triplet slot a combination kind is written to.
type Family string

const (
	FamilyNN Family = "nn" // single pair
	Family1N Family = "1n" // union of A side vs one B polygon
	FamilyN1 Family = "n1" // one A polygon vs union of B side
	Family11 Family = "11" // union vs union
)

// Families lists the triplet slots in export order.
var Families = []Family{FamilyNN, Family1N, FamilyN1, Family11}

// Family maps a kind to its triplet slot; ok is false for KindNone.
func (k CombinationKind) Family() (Family, bool) {
	switch k {
	case KindSinglePair:
		return FamilyNN, true
	case KindUnionPoly1:
		return Family1N, true
	case KindUnionPoly2:
		return FamilyN1, true
	case KindUnionBoth:
		return Family11, true
	}
	return "", false
}

// CombinationRow is one evaluated subset pairing, kept for audit.
type CombinationRow struct {
	CompIdx  int             `json:"comp_idx"`
	Relation Relation        `json:"relation"`
	Poly1Set []int           `json:"poly1_set"`
	Poly2Set []int           `json:"poly2_set"`
	Kind     CombinationKind `json:"combi"`
	Metrics  Triplet         `json:"metrics"`
}
