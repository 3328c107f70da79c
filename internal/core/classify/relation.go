// Package classify labels components and polygons: cardinality relations,
// metric annotation, change and detection classes, and the reports built
// on top of them.
package classify

import (
	"github.com/2chong/Change-Detection/internal/core/common"
	"github.com/2chong/Change-Detection/internal/core/model"
)

// Relation maps member counts to a cardinality label.
func Relation(n1, n2 int) (model.Relation, error) {
	switch {
	case n1 < 0 || n2 < 0 || (n1 == 0 && n2 == 0):
		return model.RelationNone, common.ConfigError("classify.Relation", "no relation for member counts (%d, %d)", n1, n2)
	case n1 == 0:
		return model.ZeroToOne, nil
	case n2 == 0:
		return model.OneToZero, nil
	case n1 == 1 && n2 == 1:
		return model.OneToOne, nil
	case n1 == 1:
		return model.OneToMany, nil
	case n2 == 1:
		return model.ManyToOne, nil
	default:
		return model.ManyToMany, nil
	}
}

// LabelComponents sets the relation of every component in the arena.
func LabelComponents(components []model.Component) error {
	for i := range components {
		rel, err := Relation(components[i].Cardinality())
		if err != nil {
			return err
		}
		components[i].Relation = rel
	}
	return nil
}

// MetricFamily is the triplet slot a relation is judged by.
func MetricFamily(rel model.Relation) (model.Family, bool) {
	switch rel {
	case model.OneToOne:
		return model.FamilyNN, true
	case model.OneToMany:
		return model.FamilyN1, true
	case model.ManyToOne:
		return model.Family1N, true
	case model.ManyToMany:
		return model.Family11, true
	}
	return "", false
}
