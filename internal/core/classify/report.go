package classify

import (
	"sort"

	"github.com/2chong/Change-Detection/internal/core/geometry"
	"github.com/2chong/Change-Detection/internal/core/index"
	"github.com/2chong/Change-Detection/internal/core/model"
)

// ClassRow is one line of a class report. Percentages are 0..100.
type ClassRow struct {
	Class        string  `json:"class_10"`
	Count        int     `json:"count"`
	CountPercent float64 `json:"count_percent"`
	Area         float64 `json:"area"`
	AreaPercent  float64 `json:"area_percent"`
}

// ClassReport groups both sets by fine-grained class. Polygons without a
// class are reported as unclassified.
func ClassReport(a, b *model.PolygonSet) []ClassRow {
	byClass := make(map[string]*ClassRow)
	var totalCount int
	var totalArea float64

	for _, set := range []*model.PolygonSet{a, b} {
		if set == nil {
			continue
		}
		for _, p := range set.Polygons {
			cls := p.Annotation.Class10
			if cls == "" {
				cls = model.Unclassified
			}
			row, ok := byClass[cls]
			if !ok {
				row = &ClassRow{Class: cls}
				byClass[cls] = row
			}
			area := geometry.Area(p.Geometry)
			row.Count++
			row.Area += area
			totalCount++
			totalArea += area
		}
	}

	out := make([]ClassRow, 0, len(byClass))
	for _, row := range byClass {
		row.CountPercent = percent(float64(row.Count), float64(totalCount))
		row.AreaPercent = percent(row.Area, totalArea)
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Class < out[j].Class })
	return out
}

// DetectionScore summarizes a detection evaluation. Recall is taken from
// the ground-truth side, precision from the prediction side.
type DetectionScore struct {
	GroundTruth int     `json:"gt"`
	Predicted   int     `json:"pred"`
	TP          int     `json:"tp"`
	FN          int     `json:"fn"`
	FP          int     `json:"fp"`
	Recall      float64 `json:"recall"`
	Precision   float64 `json:"precision"`
	F1          float64 `json:"f1"`
	Threshold   float64 `json:"threshold"`
}

func ScoreDetection(gt, pred *model.PolygonSet, threshold float64) DetectionScore {
	s := DetectionScore{Threshold: threshold}
	var predTP int
	for _, p := range gt.Polygons {
		switch p.Annotation.DetectionClass {
		case model.DetectionTP:
			s.TP++
		case model.DetectionFN:
			s.FN++
		}
	}
	for _, p := range pred.Polygons {
		switch p.Annotation.DetectionClass {
		case model.DetectionTP:
			predTP++
		case model.DetectionFP:
			s.FP++
		}
	}
	s.GroundTruth = s.TP + s.FN
	s.Predicted = predTP + s.FP
	s.Recall = safeDiv(float64(s.TP), float64(s.GroundTruth))
	s.Precision = safeDiv(float64(predTP), float64(s.Predicted))
	if s.Recall+s.Precision > 0 {
		s.F1 = 2 * s.Recall * s.Precision / (s.Recall + s.Precision)
	}
	return s
}

// ConfusionRow pairs a ground-truth polygon with a predicted one. A zero
// index means that side has no polygon; empty statuses mean the row was
// not scored.
type ConfusionRow struct {
	GTIdx      int                  `json:"gt_idx,omitempty"`
	CDIdx      int                  `json:"cd_idx,omitempty"`
	GTClass    model.ChangeClass    `json:"gt_class,omitempty"`
	CDClass    model.ChangeClass    `json:"cd_class,omitempty"`
	GTStatus   model.DetectionClass `json:"gt_status,omitempty"`
	PredStatus model.DetectionClass `json:"pred_status,omitempty"`
}

// ChangeScore is the per-class line of a change-detection evaluation.
type ChangeScore struct {
	Class       model.ChangeClass `json:"class"`
	GroundTruth int               `json:"gt"`
	Predicted   int               `json:"pred"`
	TP          int               `json:"tp"`
	FN          int               `json:"fn"`
	FP          int               `json:"fp"`
	Recall      float64           `json:"recall"`
	Precision   float64           `json:"precision"`
}

type ChangeEvaluation struct {
	Matrix []ConfusionRow `json:"matrix"`
	Report []ChangeScore  `json:"report"`
}

// EvaluateChange scores a change detection against ground truth.
//
// gtPrev and cdPrev are the same prior map labelled twice, so they are
// joined by polygon identifier. New buildings only exist on the current
// side, where predicted and true "new" polygons are paired geometrically.
func EvaluateChange(ix *index.Indexer, gtPrev, cdPrev, gtCur, cdCur *model.PolygonSet) (*ChangeEvaluation, error) {
	ev := &ChangeEvaluation{}

	gtClasses, cdClasses := classesByID(gtPrev), classesByID(cdPrev)
	ids := make([]int, 0, len(gtClasses)+len(cdClasses))
	for id := range gtClasses {
		ids = append(ids, id)
	}
	for id := range cdClasses {
		if _, ok := gtClasses[id]; !ok {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)

	for _, id := range ids {
		row := ConfusionRow{GTIdx: id, CDIdx: id, GTClass: gtClasses[id], CDClass: cdClasses[id]}
		if row.GTClass != "" && row.CDClass != "" {
			if row.GTClass == row.CDClass {
				row.GTStatus, row.PredStatus = model.DetectionTP, model.DetectionTP
			} else {
				row.GTStatus, row.PredStatus = model.DetectionFN, model.DetectionFP
			}
		}
		ev.Matrix = append(ev.Matrix, row)
	}

	gtNew, cdNew := filterClass(gtCur, model.ChangeNew), filterClass(cdCur, model.ChangeNew)
	pairs, err := ix.Pairs(gtNew, cdNew)
	if err != nil {
		return nil, err
	}
	matchedGT, matchedCD := make(map[int]bool), make(map[int]bool)
	for _, pair := range pairs {
		matchedGT[pair.Poly1], matchedCD[pair.Poly2] = true, true
		ev.Matrix = append(ev.Matrix, ConfusionRow{
			GTIdx: pair.Poly1, CDIdx: pair.Poly2,
			GTClass: model.ChangeNew, CDClass: model.ChangeNew,
			GTStatus: model.DetectionTP, PredStatus: model.DetectionTP,
		})
	}
	for _, p := range gtNew.Polygons {
		if !matchedGT[p.ID] {
			ev.Matrix = append(ev.Matrix, ConfusionRow{GTIdx: p.ID, GTClass: model.ChangeNew, GTStatus: model.DetectionFN})
		}
	}
	for _, p := range cdNew.Polygons {
		if !matchedCD[p.ID] {
			ev.Matrix = append(ev.Matrix, ConfusionRow{CDIdx: p.ID, CDClass: model.ChangeNew, PredStatus: model.DetectionFP})
		}
	}

	ev.Report = scoreChange(ev.Matrix)
	return ev, nil
}

func scoreChange(matrix []ConfusionRow) []ChangeScore {
	byClass := make(map[model.ChangeClass]*ChangeScore)
	get := func(cls model.ChangeClass) *ChangeScore {
		s, ok := byClass[cls]
		if !ok {
			s = &ChangeScore{Class: cls}
			byClass[cls] = s
		}
		return s
	}

	for _, row := range matrix {
		if row.GTClass != "" {
			s := get(row.GTClass)
			switch row.GTStatus {
			case model.DetectionTP:
				s.TP++
			case model.DetectionFN:
				s.FN++
			}
		}
		if row.CDClass != "" {
			s := get(row.CDClass)
			switch row.PredStatus {
			case model.DetectionTP:
				s.Predicted++
			case model.DetectionFP:
				s.FP++
				s.Predicted++
			}
		}
	}

	out := make([]ChangeScore, 0, len(byClass))
	for _, s := range byClass {
		s.GroundTruth = s.TP + s.FN
		s.Recall = safeDiv(float64(s.TP), float64(s.GroundTruth))
		s.Precision = safeDiv(float64(s.Predicted-s.FP), float64(s.Predicted))
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Class < out[j].Class })
	return out
}

func classesByID(set *model.PolygonSet) map[int]model.ChangeClass {
	out := make(map[int]model.ChangeClass, set.Len())
	for _, p := range set.Polygons {
		out[p.ID] = p.Annotation.ChangeClass
	}
	return out
}

// filterClass keeps the polygons of one change class, identifiers intact.
func filterClass(set *model.PolygonSet, cls model.ChangeClass) *model.PolygonSet {
	out := &model.PolygonSet{Side: set.Side}
	for _, p := range set.Polygons {
		if p.Annotation.ChangeClass == cls {
			out.Polygons = append(out.Polygons, p)
		}
	}
	return out
}

func safeDiv(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

func percent(part, total float64) float64 {
	return safeDiv(part, total) * 100
}
