package model

import (
	"encoding/json"
	"math"
)

// Triplet holds IoU and the two one-sided overlap ratios of a combination.
// NaN marks "no data" (1:0 / 0:1 rows); 0 marks a defined empty overlap.
type Triplet struct {
	IoU      float64
	OverlapA float64
	OverlapB float64
}

func UndefinedTriplet() Triplet {
	return Triplet{IoU: math.NaN(), OverlapA: math.NaN(), OverlapB: math.NaN()}
}

func (t Triplet) Defined() bool {
	return !math.IsNaN(t.IoU)
}

type tripletJSON struct {
	IoU      *float64 `json:"iou"`
	OverlapA *float64 `json:"ol_pl1"`
	OverlapB *float64 `json:"ol_pl2"`
}

func nullable(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

func fromNullable(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

// MarshalJSON writes NaN as null; encoding/json rejects NaN outright.
func (t Triplet) MarshalJSON() ([]byte, error) {
	return json.Marshal(tripletJSON{
		IoU:      nullable(t.IoU),
		OverlapA: nullable(t.OverlapA),
		OverlapB: nullable(t.OverlapB),
	})
}

func (t *Triplet) UnmarshalJSON(data []byte) error {
	var raw tripletJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	t.IoU = fromNullable(raw.IoU)
	t.OverlapA = fromNullable(raw.OverlapA)
	t.OverlapB = fromNullable(raw.OverlapB)
	return nil
}

type ChangeClass string

const (
	ChangeNew       ChangeClass = "new"
	ChangeRemoved   ChangeClass = "removed"
	ChangeUpdated   ChangeClass = "updated"
	ChangeUnchanged ChangeClass = "unchanged"
)

type DetectionClass string

const (
	DetectionTP DetectionClass = "TP"
	DetectionFN DetectionClass = "FN"
	DetectionFP DetectionClass = "FP"
)

// Unclassified is the explicit label for relation/class pairs with no
// fine-grained class.
const Unclassified = "unclassified"

// Annotation is everything the engine attaches to a polygon.
// CompIdx is a back-reference into the component arena; -1 until matched.
type Annotation struct {
	CompIdx        int            `json:"comp_idx"`
	Relation       Relation       `json:"relation"`
	CutLink        bool           `json:"cut_link"`
	NN             Triplet        `json:"nn"`
	OneN           Triplet        `json:"1n"`
	NOne           Triplet        `json:"n1"`
	OneOne         Triplet        `json:"11"`
	ChangeClass    ChangeClass    `json:"cd_class,omitempty"`
	DetectionClass DetectionClass `json:"bd_class,omitempty"`
	Class10        string         `json:"class_10,omitempty"`
}

func NewAnnotation() Annotation {
	return Annotation{
		CompIdx: -1,
		NN:      UndefinedTriplet(),
		OneN:    UndefinedTriplet(),
		NOne:    UndefinedTriplet(),
		OneOne:  UndefinedTriplet(),
	}
}

// Triplet returns the slot for a family.
func (a *Annotation) Triplet(f Family) *Triplet {
	switch f {
	case FamilyNN:
		return &a.NN
	case Family1N:
		return &a.OneN
	case FamilyN1:
		return &a.NOne
	case Family11:
		return &a.OneOne
	}
	return nil
}
