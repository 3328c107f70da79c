package model

// IntersectionRow is one row of the outer-joined intersection table.
// A zero identifier stands for the null side of an unmatched polygon.
type IntersectionRow struct {
	Poly1 int `json:"poly1_idx,omitempty"`
	Poly2 int `json:"poly2_idx,omitempty"`
}

func (r IntersectionRow) Paired() bool {
	return r.Poly1 > 0 && r.Poly2 > 0
}

// Edge is a correspondence between an A polygon and a B polygon.
// Energy is the IoU of the raw pair and never changes after creation.
type Edge struct {
	Poly1   int     `json:"poly1_idx"`
	Poly2   int     `json:"poly2_idx"`
	Energy  float64 `json:"energy"`
	Cut     bool    `json:"cut"`
	CompIdx int     `json:"comp_idx"` // -1 when cut
}

func (e Edge) Source() NodeID {
	return NodeID{Side: SideA, ID: e.Poly1}
}

func (e Edge) Target() NodeID {
	return NodeID{Side: SideB, ID: e.Poly2}
}
