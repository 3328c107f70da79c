package core

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/2chong/Change-Detection/internal/core/geometry"
	"github.com/2chong/Change-Detection/internal/core/model"
	"github.com/2chong/Change-Detection/internal/driver"
)

// Persist stores a run as a property graph: a MatchRun node, one Footprint
// node per polygon, CORRESPONDS edges (kept and cut) and Component nodes
// linked to their members. It is a no-op without a driver. When a write
// after the MatchRun node fails, everything stored for the run is removed
// again before the error is returned.
func (m *Matcher) Persist(ctx context.Context, res *Result) (err error) {
	if m.Driver == nil {
		return nil
	}

	runParams := map[string]interface{}{
		"uuid":            res.RunID,
		"created_at":      res.CreatedAt,
		"cut_threshold":   res.CutThreshold,
		"mode":            string(res.Mode),
		"class_threshold": res.ClassThreshold,
		"poly1_count":     int64(res.A.Len()),
		"poly2_count":     int64(res.B.Len()),
		"components":      int64(res.Summary.Components),
		"cut_links":       int64(res.Summary.CutLinks),
	}
	if _, err := m.Driver.ExecuteQuery(ctx, driver.SaveMatchRunQuery, runParams); err != nil {
		return fmt.Errorf("failed to save match run: %w", err)
	}
	defer func() {
		if err == nil {
			return
		}
		if cleanupErr := m.DeleteRun(context.WithoutCancel(ctx), res.RunID); cleanupErr != nil {
			m.Logger.Warn("failed to remove partial match run",
				zap.String("run_id", res.RunID), zap.Error(cleanupErr))
		}
	}()

	var footprints []map[string]interface{}
	for _, set := range []*model.PolygonSet{res.A, res.B} {
		for _, p := range set.Polygons {
			footprints = append(footprints, footprintParams(set.Side, p))
		}
	}
	if _, err := m.Driver.ExecuteQuery(ctx, driver.SaveFootprintsQuery, map[string]interface{}{
		"run_id":     res.RunID,
		"footprints": footprints,
	}); err != nil {
		return fmt.Errorf("failed to save footprints: %w", err)
	}

	edges := make([]map[string]interface{}, 0, len(res.Edges)+len(res.CutEdges))
	for _, list := range [][]model.Edge{res.Edges, res.CutEdges} {
		for _, e := range list {
			edges = append(edges, map[string]interface{}{
				"source":   e.Source().String(),
				"target":   e.Target().String(),
				"energy":   e.Energy,
				"cut":      e.Cut,
				"comp_idx": int64(e.CompIdx),
			})
		}
	}
	if _, err := m.Driver.ExecuteQuery(ctx, driver.SaveCorrespondencesQuery, map[string]interface{}{
		"run_id": res.RunID,
		"edges":  edges,
	}); err != nil {
		return fmt.Errorf("failed to save correspondences: %w", err)
	}

	components := make([]map[string]interface{}, 0, len(res.Components))
	for _, c := range res.Components {
		var members []string
		for _, id := range c.Poly1Set {
			members = append(members, model.NodeID{Side: model.SideA, ID: id}.String())
		}
		for _, id := range c.Poly2Set {
			members = append(members, model.NodeID{Side: model.SideB, ID: id}.String())
		}
		components = append(components, map[string]interface{}{
			"comp_idx":  int64(c.Index),
			"relation":  string(c.Relation),
			"poly1_set": int64s(c.Poly1Set),
			"poly2_set": int64s(c.Poly2Set),
			"members":   members,
		})
	}
	if _, err := m.Driver.ExecuteQuery(ctx, driver.SaveComponentsQuery, map[string]interface{}{
		"run_id":     res.RunID,
		"components": components,
	}); err != nil {
		return fmt.Errorf("failed to save components: %w", err)
	}

	m.Logger.Debug("persisted match run")
	return nil
}

func footprintParams(side model.Side, p model.Polygon) map[string]interface{} {
	ann := p.Annotation
	return map[string]interface{}{
		"node_id":  model.NodeID{Side: side, ID: p.ID}.String(),
		"side":     side.Prefix(),
		"poly_idx": int64(p.ID),
		"comp_idx": int64(ann.CompIdx),
		"relation": string(ann.Relation),
		"cut_link": ann.CutLink,
		"area":     geometry.Area(p.Geometry),
		"cd_class": string(ann.ChangeClass),
		"bd_class": string(ann.DetectionClass),
		"class_10": ann.Class10,
	}
}

func int64s(ids []int) []int64 {
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return out
}

// RunSummary is a persisted run as read back from the graph.
type RunSummary struct {
	RunID          string           `json:"run_id"`
	CutThreshold   float64          `json:"cut_threshold"`
	Mode           string           `json:"mode,omitempty"`
	ClassThreshold float64          `json:"class_threshold,omitempty"`
	Poly1Count     int64            `json:"poly1_count"`
	Poly2Count     int64            `json:"poly2_count"`
	Components     int64            `json:"components"`
	CutLinks       int64            `json:"cut_links"`
	Relations      map[string]int64 `json:"relations"`
}

// GetRun loads the summary of a persisted run. found is false when no run
// with that id exists.
func (m *Matcher) GetRun(ctx context.Context, runID string) (summary *RunSummary, found bool, err error) {
	if m.Driver == nil {
		return nil, false, nil
	}

	res, err := m.Driver.ExecuteQuery(ctx, driver.GetMatchRunQuery, map[string]interface{}{"uuid": runID})
	if err != nil {
		return nil, false, fmt.Errorf("failed to load match run: %w", err)
	}
	if len(res.Records) == 0 {
		return nil, false, nil
	}

	rec := res.Records[0]
	summary = &RunSummary{RunID: runID, Relations: make(map[string]int64)}
	summary.CutThreshold, _, _ = neo4j.GetRecordValue[float64](rec, "cut_threshold")
	summary.Mode, _, _ = neo4j.GetRecordValue[string](rec, "mode")
	summary.ClassThreshold, _, _ = neo4j.GetRecordValue[float64](rec, "class_threshold")
	summary.Poly1Count, _, _ = neo4j.GetRecordValue[int64](rec, "poly1_count")
	summary.Poly2Count, _, _ = neo4j.GetRecordValue[int64](rec, "poly2_count")
	summary.Components, _, _ = neo4j.GetRecordValue[int64](rec, "components")
	summary.CutLinks, _, _ = neo4j.GetRecordValue[int64](rec, "cut_links")

	counts, err := m.Driver.ExecuteQuery(ctx, driver.GetRunRelationCountsQuery, map[string]interface{}{"uuid": runID})
	if err != nil {
		return nil, false, fmt.Errorf("failed to load relation counts: %w", err)
	}
	for _, r := range counts.Records {
		rel, _, _ := neo4j.GetRecordValue[string](r, "relation")
		n, _, _ := neo4j.GetRecordValue[int64](r, "count")
		summary.Relations[rel] = n
	}
	return summary, true, nil
}

// DeleteRun removes every node stored for a run.
func (m *Matcher) DeleteRun(ctx context.Context, runID string) error {
	if m.Driver == nil {
		return nil
	}
	if _, err := m.Driver.ExecuteQuery(ctx, driver.DeleteMatchRunQuery, map[string]interface{}{"uuid": runID}); err != nil {
		return fmt.Errorf("failed to delete match run: %w", err)
	}
	return nil
}
