// Package layer converts polygon sets to and from vector and tabular
// formats with a fixed column order.
package layer

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/2chong/Change-Detection/internal/core/model"
)

const (
	ColCompIdx        = "comp_idx"
	ColPoly1Set       = "poly1_set"
	ColPoly2Set       = "poly2_set"
	ColCutLink        = "cut_link"
	ColRelation       = "Relation"
	ColChangeClass    = "cd_class"
	ColDetectionClass = "bd_class"
	ColClass10        = "class_10"

	// ColGroundTruthClass is read as a fallback for cd_class.
	ColGroundTruthClass = "gt_class"
)

// MetricColumns lists the triplet columns in export order:
// iou_nn, ol_pl1_nn, ol_pl2_nn, iou_1n, ... ol_pl2_11.
func MetricColumns() []string {
	var cols []string
	for _, f := range model.Families {
		cols = append(cols, "iou_"+string(f), "ol_pl1_"+string(f), "ol_pl2_"+string(f))
	}
	return cols
}

// matchColumns are the bookkeeping columns a ground-truth export drops.
func matchColumns() []string {
	return append([]string{ColCompIdx, ColPoly1Set, ColPoly2Set, ColCutLink}, MetricColumns()...)
}

func reserved(side model.Side) map[string]bool {
	out := map[string]bool{
		side.IDColumn():     true,
		ColRelation:         true,
		ColChangeClass:      true,
		ColDetectionClass:   true,
		ColClass10:          true,
		ColGroundTruthClass: true,
	}
	for _, c := range matchColumns() {
		out[c] = true
	}
	return out
}

// Columns returns the export header for a set: domain attributes sorted by
// name, then identifier, component, relation and class columns, then the
// metric triplets.
func Columns(set *model.PolygonSet) []string {
	skip := reserved(set.Side)
	seen := make(map[string]bool)
	var attrs []string
	for _, p := range set.Polygons {
		for k := range p.Attributes {
			if !skip[k] && !seen[k] {
				seen[k] = true
				attrs = append(attrs, k)
			}
		}
	}
	sort.Strings(attrs)

	cols := append(attrs,
		set.Side.IDColumn(), ColCompIdx, ColPoly1Set, ColPoly2Set, ColCutLink,
		ColRelation, ColChangeClass, ColDetectionClass, ColClass10)
	return append(cols, MetricColumns()...)
}

// Values returns the match columns of one polygon keyed by column name.
// NaN metrics and unset classes are nil. comp may be nil.
func Values(side model.Side, p model.Polygon, comp *model.Component) map[string]interface{} {
	ann := p.Annotation
	out := map[string]interface{}{
		side.IDColumn():   p.ID,
		ColCompIdx:        nil,
		ColPoly1Set:       nil,
		ColPoly2Set:       nil,
		ColCutLink:        ann.CutLink,
		ColRelation:       nilIfEmpty(string(ann.Relation)),
		ColChangeClass:    nilIfEmpty(string(ann.ChangeClass)),
		ColDetectionClass: nilIfEmpty(string(ann.DetectionClass)),
		ColClass10:        nilIfEmpty(ann.Class10),
	}
	if ann.CompIdx >= 0 {
		out[ColCompIdx] = ann.CompIdx
	}
	if comp != nil {
		out[ColPoly1Set] = comp.Poly1Set
		out[ColPoly2Set] = comp.Poly2Set
	}
	for _, f := range model.Families {
		t := *ann.Triplet(f)
		out["iou_"+string(f)] = nilIfNaN(t.IoU)
		out["ol_pl1_"+string(f)] = nilIfNaN(t.OverlapA)
		out["ol_pl2_"+string(f)] = nilIfNaN(t.OverlapB)
	}
	return out
}

func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nilIfNaN(v float64) interface{} {
	if math.IsNaN(v) {
		return nil
	}
	return v
}

// formatCell renders a value for delimited text. nil is an empty cell and
// id lists are joined with commas.
func formatCell(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case []int:
		parts := make([]string, len(x))
		for i, id := range x {
			parts[i] = strconv.Itoa(id)
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(x)
	}
}
