package classify

import (
	"math"

	"github.com/2chong/Change-Detection/internal/core/common"
	"github.com/2chong/Change-Detection/internal/core/model"
)

// Role tells which side of a detection evaluation a set plays.
type Role int

const (
	RoleGroundTruth Role = iota
	RolePrediction
)

func (r Role) String() string {
	if r == RolePrediction {
		return "prediction"
	}
	return "ground_truth"
}

// Mode selects which class family AssignClass10 reads.
type Mode string

const (
	ModeChange    Mode = "change"
	ModeDetection Mode = "detection"
)

// AssignChange labels every polygon new, removed, updated or unchanged by
// comparing the IoU of its relation's family against threshold. A missing
// metric yields "unclassified".
func AssignChange(set *model.PolygonSet, threshold float64) error {
	if err := common.CheckThreshold("classify.AssignChange", "change threshold", threshold); err != nil {
		return err
	}
	for i := range set.Polygons {
		ann := &set.Polygons[i].Annotation
		switch ann.Relation {
		case model.RelationNone:
			return common.SchemaError("classify.AssignChange", "%s_%d has no relation", set.Side.Prefix(), set.Polygons[i].ID)
		case model.ZeroToOne:
			ann.ChangeClass = model.ChangeNew
		case model.OneToZero:
			ann.ChangeClass = model.ChangeRemoved
		default:
			iou := relationMetric(ann).IoU
			switch {
			case math.IsNaN(iou):
				ann.ChangeClass = model.ChangeClass(model.Unclassified)
			case iou > threshold:
				ann.ChangeClass = model.ChangeUnchanged
			default:
				ann.ChangeClass = model.ChangeUpdated
			}
		}
	}
	return nil
}

// AssignDetection labels polygons TP/FN (ground truth) or TP/FP
// (prediction). Ground truth is judged by the share of its own area that
// is covered, predictions by the share of theirs.
func AssignDetection(set *model.PolygonSet, role Role, threshold float64) error {
	if err := common.CheckThreshold("classify.AssignDetection", "detection threshold", threshold); err != nil {
		return err
	}
	hit, miss, unmatched := model.DetectionTP, model.DetectionFN, model.OneToZero
	if role == RolePrediction {
		miss, unmatched = model.DetectionFP, model.ZeroToOne
	}

	for i := range set.Polygons {
		ann := &set.Polygons[i].Annotation
		if ann.Relation == model.RelationNone {
			return common.SchemaError("classify.AssignDetection", "%s_%d has no relation", set.Side.Prefix(), set.Polygons[i].ID)
		}
		if ann.Relation == unmatched {
			ann.DetectionClass = miss
			continue
		}

		t := relationMetric(ann)
		overlap := t.OverlapA
		if role == RolePrediction {
			overlap = t.OverlapB
		}
		switch {
		case math.IsNaN(overlap):
			ann.DetectionClass = model.DetectionClass(model.Unclassified)
		case overlap > threshold:
			ann.DetectionClass = hit
		default:
			ann.DetectionClass = miss
		}
	}
	return nil
}

// AssignClass10 derives the fine-grained reporting class from relation and
// the class assigned in mode.
func AssignClass10(set *model.PolygonSet, mode Mode) error {
	for i := range set.Polygons {
		ann := &set.Polygons[i].Annotation
		if ann.Relation == model.RelationNone {
			return common.SchemaError("classify.AssignClass10", "%s_%d has no relation", set.Side.Prefix(), set.Polygons[i].ID)
		}
		switch mode {
		case ModeChange:
			if ann.ChangeClass == "" {
				return common.SchemaError("classify.AssignClass10", "%s_%d has no change class", set.Side.Prefix(), set.Polygons[i].ID)
			}
			ann.Class10 = changeClass10(ann.Relation, ann.ChangeClass)
		case ModeDetection:
			if ann.DetectionClass == "" {
				return common.SchemaError("classify.AssignClass10", "%s_%d has no detection class", set.Side.Prefix(), set.Polygons[i].ID)
			}
			ann.Class10 = detectionClass10(ann.Relation, ann.DetectionClass)
		default:
			return common.ConfigError("classify.AssignClass10", "unknown mode %q", mode)
		}
	}
	return nil
}

func changeClass10(rel model.Relation, cls model.ChangeClass) string {
	switch {
	case rel == model.OneToZero && cls == model.ChangeRemoved:
		return string(cls)
	case rel == model.ZeroToOne && cls == model.ChangeNew:
		return string(cls)
	case isMatched(rel) && (cls == model.ChangeUpdated || cls == model.ChangeUnchanged):
		return string(rel) + " " + string(cls)
	}
	return model.Unclassified
}

func detectionClass10(rel model.Relation, cls model.DetectionClass) string {
	switch {
	case rel == model.OneToZero && cls == model.DetectionFN:
		return string(cls)
	case rel == model.ZeroToOne && cls == model.DetectionFP:
		return string(cls)
	case isMatched(rel) && (cls == model.DetectionTP || cls == model.DetectionFN || cls == model.DetectionFP):
		return string(rel) + " " + string(cls)
	}
	return model.Unclassified
}

func isMatched(rel model.Relation) bool {
	_, ok := MetricFamily(rel)
	return ok
}

func relationMetric(ann *model.Annotation) model.Triplet {
	family, ok := MetricFamily(ann.Relation)
	if !ok {
		return model.UndefinedTriplet()
	}
	return *ann.Triplet(family)
}
