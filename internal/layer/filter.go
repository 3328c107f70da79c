package layer

import (
	"github.com/2chong/Change-Detection/internal/core/geometry"
	"github.com/2chong/Change-Detection/internal/core/model"
)

// FilterByArea keeps polygons whose planar area lies within [min, max].
// A zero max means no upper bound; min and max both zero keeps everything.
// Polygons without geometry have zero area. The result is a new set.
func FilterByArea(set *model.PolygonSet, min, max float64) *model.PolygonSet {
	out := &model.PolygonSet{Side: set.Side}
	for _, p := range set.Clone().Polygons {
		area := geometry.Area(p.Geometry)
		if area < min || (max > 0 && area > max) {
			continue
		}
		out.Polygons = append(out.Polygons, p)
	}
	return out
}
