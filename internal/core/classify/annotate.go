package classify

import (
	"github.com/2chong/Change-Detection/internal/core/common"
	"github.com/2chong/Change-Detection/internal/core/community"
	"github.com/2chong/Change-Detection/internal/core/model"
)

type slot struct {
	side   model.Side
	id     int
	family model.Family
}

// Annotate writes component index, relation, cut-link flag and metric
// triplets onto the polygons of a and b. Relations must already be set on
// the partition's components.
//
// A polygon can be covered by several rows of one family (a 1:N source
// against each target). The row with the highest IoU wins, ties going to
// the row with the lowest subset identifiers, so the result does not
// depend on row order.
func Annotate(a, b *model.PolygonSet, p *community.Partition, rows []model.CombinationRow) error {
	for _, c := range p.Components {
		if c.Relation == model.RelationNone {
			return common.SchemaError("classify.Annotate", "component %d has no relation", c.Index)
		}
		if err := annotateMembers(a, c.Poly1Set, c, p); err != nil {
			return err
		}
		if err := annotateMembers(b, c.Poly2Set, c, p); err != nil {
			return err
		}
	}

	holders := make(map[slot]*model.CombinationRow)
	for i := range rows {
		row := &rows[i]
		family, ok := row.Kind.Family()
		if !ok {
			continue
		}
		for _, set := range []struct {
			polys *model.PolygonSet
			ids   []int
		}{{a, row.Poly1Set}, {b, row.Poly2Set}} {
			for _, id := range set.ids {
				poly := set.polys.Get(id)
				if poly == nil {
					return common.SchemaError("classify.Annotate", "%s_%d is not in the polygon set", set.polys.Side.Prefix(), id)
				}
				key := slot{side: set.polys.Side, id: id, family: family}
				if cur, ok := holders[key]; ok && !better(row, cur) {
					continue
				}
				holders[key] = row
				*poly.Annotation.Triplet(family) = row.Metrics
			}
		}
	}
	return nil
}

func annotateMembers(set *model.PolygonSet, ids []int, c model.Component, p *community.Partition) error {
	for _, id := range ids {
		poly := set.Get(id)
		if poly == nil {
			return common.SchemaError("classify.Annotate", "%s_%d is not in the polygon set", set.Side.Prefix(), id)
		}
		poly.Annotation.CompIdx = c.Index
		poly.Annotation.Relation = c.Relation
		poly.Annotation.CutLink = p.HasCutLink(model.NodeID{Side: set.Side, ID: id})
	}
	return nil
}

func better(row, cur *model.CombinationRow) bool {
	if row.Metrics.IoU != cur.Metrics.IoU {
		return row.Metrics.IoU > cur.Metrics.IoU
	}
	if c := compareIDs(row.Poly1Set, cur.Poly1Set); c != 0 {
		return c < 0
	}
	return compareIDs(row.Poly2Set, cur.Poly2Set) < 0
}

func compareIDs(x, y []int) int {
	for i := 0; i < len(x) && i < len(y); i++ {
		if x[i] != y[i] {
			if x[i] < y[i] {
				return -1
			}
			return 1
		}
	}
	return len(x) - len(y)
}
