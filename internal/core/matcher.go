package core

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/2chong/Change-Detection/internal/core/classify"
	"github.com/2chong/Change-Detection/internal/core/combination"
	"github.com/2chong/Change-Detection/internal/core/common"
	"github.com/2chong/Change-Detection/internal/core/community"
	"github.com/2chong/Change-Detection/internal/core/geometry"
	"github.com/2chong/Change-Detection/internal/core/graph"
	"github.com/2chong/Change-Detection/internal/core/index"
	"github.com/2chong/Change-Detection/internal/core/model"
	"github.com/2chong/Change-Detection/internal/driver"
)

// Matcher runs the matching pipeline. It holds no per-run state and is
// safe for concurrent use; every call gets its own geometry engine.
type Matcher struct {
	Driver        driver.GraphDriver
	Logger        *zap.Logger
	Partitioner   community.Partitioner
	Calculator    *combination.Calculator
	UUIDGenerator func() string
}

// NewMatcher wires the default pipeline. d may be nil, in which case runs
// are not persisted.
func NewMatcher(d driver.GraphDriver, logger *zap.Logger, workers int) *Matcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Matcher{
		Driver:        d,
		Logger:        logger,
		Partitioner:   community.NewThresholdPartitioner(logger),
		Calculator:    combination.NewCalculator(workers, logger),
		UUIDGenerator: func() string { return uuid.New().String() },
	}
}

// Result is everything one run produces. A and B are annotated copies of
// the inputs; Components is the arena their CompIdx values point into.
type Result struct {
	RunID          string                   `json:"run_id"`
	CreatedAt      time.Time                `json:"created_at"`
	CutThreshold   float64                  `json:"cut_threshold"`
	Mode           classify.Mode            `json:"mode,omitempty"`
	ClassThreshold float64                  `json:"class_threshold,omitempty"`
	Components     []model.Component        `json:"components"`
	A              *model.PolygonSet        `json:"poly1"`
	B              *model.PolygonSet        `json:"poly2"`
	Combinations   []model.CombinationRow   `json:"combinations"`
	Edges          []model.Edge             `json:"edges"`
	CutEdges       []model.Edge             `json:"cut_edges"`
	Summary        community.Summary        `json:"summary"`
	Report         []classify.ClassRow      `json:"report,omitempty"`
	Detection      *classify.DetectionScore `json:"detection,omitempty"`
}

// Component returns the arena record of a polygon, or nil.
func (r *Result) Component(p *model.Polygon) *model.Component {
	if p.Annotation.CompIdx < 0 || p.Annotation.CompIdx >= len(r.Components) {
		return nil
	}
	return &r.Components[p.Annotation.CompIdx]
}

// Match indexes both sets, builds the energy-weighted correspondence graph,
// cuts it at cutThreshold and annotates every polygon with its component,
// relation and metric triplets. The inputs are not modified.
func (m *Matcher) Match(ctx context.Context, a, b *model.PolygonSet, cutThreshold float64) (*Result, error) {
	if err := common.CheckThreshold("core.Match", "cut threshold", cutThreshold); err != nil {
		return nil, err
	}
	start := time.Now()

	engine := geometry.NewEngine()
	indexed, err := index.NewIndexer(engine, m.Logger).Index(a, b)
	if err != nil {
		return nil, err
	}

	g := graph.Build(indexed.Rows)
	if err := graph.AddEnergy(engine, indexed.PreparedA, indexed.PreparedB, g); err != nil {
		return nil, err
	}

	partition, err := m.Partitioner.Partition(g, cutThreshold)
	if err != nil {
		return nil, err
	}
	if err := classify.LabelComponents(partition.Components); err != nil {
		return nil, err
	}

	rows, err := m.Calculator.Compute(ctx, indexed.A, indexed.B, partition.Components)
	if err != nil {
		return nil, err
	}
	if err := classify.Annotate(indexed.A, indexed.B, partition, rows); err != nil {
		return nil, err
	}

	res := &Result{
		RunID:        m.UUIDGenerator(),
		CreatedAt:    time.Now().UTC(),
		CutThreshold: cutThreshold,
		Components:   partition.Components,
		A:            indexed.A,
		B:            indexed.B,
		Combinations: rows,
		Edges:        partition.Kept,
		CutEdges:     partition.Cut,
		Summary:      partition.Summary,
	}

	m.Logger.Info("matched polygon sets",
		zap.String("run_id", res.RunID),
		zap.Int("poly1", res.A.Len()),
		zap.Int("poly2", res.B.Len()),
		zap.Int("components", res.Summary.Components),
		zap.Int("cut_links", res.Summary.CutLinks),
		zap.Duration("elapsed", time.Since(start)))

	return res, nil
}

// ClassifyOptions configures MatchAndClassify.
type ClassifyOptions struct {
	CutThreshold   float64
	Mode           classify.Mode
	ClassThreshold float64
}

// MatchAndClassify runs Match and then assigns change classes (A is the
// prior map, B the current one) or detection classes (A is ground truth,
// B the prediction), followed by the fine-grained class and its report.
func (m *Matcher) MatchAndClassify(ctx context.Context, a, b *model.PolygonSet, opts ClassifyOptions) (*Result, error) {
	if err := common.CheckThreshold("core.MatchAndClassify", "class threshold", opts.ClassThreshold); err != nil {
		return nil, err
	}
	if opts.Mode != classify.ModeChange && opts.Mode != classify.ModeDetection {
		return nil, common.ConfigError("core.MatchAndClassify", "unknown mode %q", opts.Mode)
	}

	res, err := m.Match(ctx, a, b, opts.CutThreshold)
	if err != nil {
		return nil, err
	}
	res.Mode = opts.Mode
	res.ClassThreshold = opts.ClassThreshold

	switch opts.Mode {
	case classify.ModeChange:
		for _, set := range []*model.PolygonSet{res.A, res.B} {
			if err := classify.AssignChange(set, opts.ClassThreshold); err != nil {
				return nil, err
			}
		}
	case classify.ModeDetection:
		if err := classify.AssignDetection(res.A, classify.RoleGroundTruth, opts.ClassThreshold); err != nil {
			return nil, err
		}
		if err := classify.AssignDetection(res.B, classify.RolePrediction, opts.ClassThreshold); err != nil {
			return nil, err
		}
		score := classify.ScoreDetection(res.A, res.B, opts.ClassThreshold)
		res.Detection = &score
	}

	for _, set := range []*model.PolygonSet{res.A, res.B} {
		if err := classify.AssignClass10(set, opts.Mode); err != nil {
			return nil, err
		}
	}
	res.Report = classify.ClassReport(res.A, res.B)
	return res, nil
}

// EvaluateChange scores a change detection run against ground truth. See
// classify.EvaluateChange for how the four layers are paired.
func (m *Matcher) EvaluateChange(gtPrev, cdPrev, gtCur, cdCur *model.PolygonSet) (*classify.ChangeEvaluation, error) {
	ix := index.NewIndexer(geometry.NewEngine(), m.Logger)
	return classify.EvaluateChange(ix, gtPrev, cdPrev, gtCur, cdCur)
}
