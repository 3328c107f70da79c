package layer

import (
	"fmt"
	"io"
	"math"

	"github.com/paulmach/orb/geojson"

	"github.com/2chong/Change-Detection/internal/core/common"
	"github.com/2chong/Change-Detection/internal/core/model"
)

// FromFeatureCollection builds a polygon set from features. Match columns
// written by ToFeatureCollection are parsed back into the annotation; all
// other properties become attributes. Polygons without an identifier
// column are numbered by position. Identifiers must be positive integers
// and unique within the layer; anything else is a SchemaError.
//
// Ground-truth layers may carry their change class in gt_class instead of
// cd_class.
func FromFeatureCollection(fc *geojson.FeatureCollection, side model.Side) (*model.PolygonSet, error) {
	set := &model.PolygonSet{Side: side, Polygons: make([]model.Polygon, len(fc.Features))}
	skip := reserved(side)
	seen := make(map[int]int, len(fc.Features))

	for i, f := range fc.Features {
		p := model.Polygon{ID: i + 1, Geometry: f.Geometry, Annotation: model.NewAnnotation()}
		props := f.Properties
		if raw, present := props[side.IDColumn()]; present && raw != nil {
			id, ok := intProp(props, side.IDColumn())
			if !ok || id < 1 {
				return nil, common.SchemaError("layer.FromFeatureCollection",
					"feature %d: %s must be a positive integer, got %v", i, side.IDColumn(), raw)
			}
			p.ID = id
		}
		if first, dup := seen[p.ID]; dup {
			return nil, common.SchemaError("layer.FromFeatureCollection",
				"features %d and %d share %s %d", first, i, side.IDColumn(), p.ID)
		}
		seen[p.ID] = i
		if idx, ok := intProp(props, ColCompIdx); ok {
			p.Annotation.CompIdx = idx
		}
		p.Annotation.Relation = model.Relation(stringProp(props, ColRelation))
		p.Annotation.CutLink = boolProp(props, ColCutLink)
		p.Annotation.ChangeClass = model.ChangeClass(stringProp(props, ColChangeClass))
		if p.Annotation.ChangeClass == "" {
			p.Annotation.ChangeClass = model.ChangeClass(stringProp(props, ColGroundTruthClass))
		}
		p.Annotation.DetectionClass = model.DetectionClass(stringProp(props, ColDetectionClass))
		p.Annotation.Class10 = stringProp(props, ColClass10)
		for _, fam := range model.Families {
			t := p.Annotation.Triplet(fam)
			t.IoU = floatProp(props, "iou_"+string(fam))
			t.OverlapA = floatProp(props, "ol_pl1_"+string(fam))
			t.OverlapB = floatProp(props, "ol_pl2_"+string(fam))
		}

		for k, v := range props {
			if skip[k] {
				continue
			}
			if p.Attributes == nil {
				p.Attributes = make(map[string]interface{})
			}
			p.Attributes[k] = v
		}
		set.Polygons[i] = p
	}
	return set, nil
}

// ToFeatureCollection exports a set with its match columns. components is
// the arena the polygons' CompIdx values point into; it may be nil.
func ToFeatureCollection(set *model.PolygonSet, components []model.Component) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, p := range set.Polygons {
		f := geojson.NewFeature(p.Geometry)
		for k, v := range p.Attributes {
			f.Properties[k] = v
		}
		for k, v := range Values(set.Side, p, componentOf(p, components)) {
			f.Properties[k] = v
		}
		fc.Append(f)
	}
	return fc
}

// StripMatchColumns removes matching bookkeeping and the relation from
// exported features, leaving attributes, identifier and class columns. Used when a
// labelled pair of maps becomes change-detection ground truth.
func StripMatchColumns(fc *geojson.FeatureCollection) {
	drop := append(matchColumns(), ColRelation)
	for _, f := range fc.Features {
		for _, c := range drop {
			delete(f.Properties, c)
		}
	}
}

func ReadGeoJSON(r io.Reader, side model.Side) (*model.PolygonSet, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read layer: %w", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse GeoJSON: %w", err)
	}
	return FromFeatureCollection(fc, side)
}

func WriteGeoJSON(w io.Writer, set *model.PolygonSet, components []model.Component) error {
	data, err := ToFeatureCollection(set, components).MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to encode GeoJSON: %w", err)
	}
	_, err = w.Write(data)
	return err
}

func componentOf(p model.Polygon, components []model.Component) *model.Component {
	idx := p.Annotation.CompIdx
	if idx < 0 || idx >= len(components) {
		return nil
	}
	return &components[idx]
}

// maxID bounds identifiers read from client layers.
const maxID = 1 << 31

func intProp(props geojson.Properties, key string) (int, bool) {
	switch v := props[key].(type) {
	case float64:
		if v != math.Trunc(v) || v < -maxID || v > maxID {
			return 0, false
		}
		return int(v), true
	case int:
		return v, true
	}
	return 0, false
}

func floatProp(props geojson.Properties, key string) float64 {
	if v, ok := props[key].(float64); ok {
		return v
	}
	return model.UndefinedTriplet().IoU
}

func stringProp(props geojson.Properties, key string) string {
	s, _ := props[key].(string)
	return s
}

func boolProp(props geojson.Properties, key string) bool {
	b, _ := props[key].(bool)
	return b
}
