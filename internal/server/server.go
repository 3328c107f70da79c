package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/paulmach/orb/geojson"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/2chong/Change-Detection/internal/cache"
	"github.com/2chong/Change-Detection/internal/config"
	"github.com/2chong/Change-Detection/internal/core"
	"github.com/2chong/Change-Detection/internal/core/classify"
	"github.com/2chong/Change-Detection/internal/core/common"
	"github.com/2chong/Change-Detection/internal/core/community"
	"github.com/2chong/Change-Detection/internal/core/model"
	"github.com/2chong/Change-Detection/internal/layer"
	"github.com/2chong/Change-Detection/internal/logging"
)

// Cache stores serialized match responses. A miss is (nil, false, nil).
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte) error
}

type Server struct {
	Matcher *core.Matcher
	Cache   Cache
	Config  *config.Config
	Logger  *zap.Logger

	metrics *metrics
}

// NewServer wires the HTTP layer. c may be nil to disable caching.
func NewServer(m *core.Matcher, c Cache, cfg *config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg == nil {
		cfg = config.Default()
	}
	return &Server{
		Matcher: m,
		Cache:   c,
		Config:  cfg,
		Logger:  logger,
		metrics: newMetrics(),
	}
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), logging.Middleware(s.Logger), s.countRequests())

	r.GET("/health", s.Health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{})))
	r.POST("/match", s.Match)
	r.POST("/evaluate/change", s.EvaluateChange)
	r.GET("/runs/:id", s.GetRun)
	r.DELETE("/runs/:id", s.DeleteRun)

	return r
}

func (s *Server) countRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		s.metrics.requests.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
	}
}

func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"persistence": s.Matcher.Driver != nil,
		"cache":       s.Cache != nil,
	})
}

// MatchRequest carries two layers and optional overrides of the configured
// thresholds. Mode "" runs matching only.
type MatchRequest struct {
	Poly1          *geojson.FeatureCollection `json:"poly1"`
	Poly2          *geojson.FeatureCollection `json:"poly2"`
	CutThreshold   *float64                   `json:"cut_threshold"`
	Mode           classify.Mode              `json:"mode"`
	ClassThreshold *float64                   `json:"class_threshold"`
	MinArea        *float64                   `json:"min_area"`
	MaxArea        *float64                   `json:"max_area"`
	Persist        bool                       `json:"persist"`
}

type MatchResponse struct {
	RunID          string                     `json:"run_id"`
	CreatedAt      time.Time                  `json:"created_at"`
	CutThreshold   float64                    `json:"cut_threshold"`
	Mode           classify.Mode              `json:"mode,omitempty"`
	ClassThreshold float64                    `json:"class_threshold,omitempty"`
	Summary        community.Summary          `json:"summary"`
	Components     []model.Component          `json:"components"`
	Combinations   []model.CombinationRow     `json:"combinations"`
	Edges          []model.Edge               `json:"edges"`
	CutEdges       []model.Edge               `json:"cut_edges"`
	Report         []classify.ClassRow        `json:"report,omitempty"`
	Detection      *classify.DetectionScore   `json:"detection,omitempty"`
	Poly1          *geojson.FeatureCollection `json:"poly1"`
	Poly2          *geojson.FeatureCollection `json:"poly2"`
	Persisted      bool                       `json:"persisted"`
}

func (s *Server) Match(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	var req MatchRequest
	if err := json.Unmarshal(body, &req); err != nil || req.Poly1 == nil || req.Poly2 == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: poly1 and poly2 feature collections are required"})
		return
	}

	settings := s.resolve(&req)

	// persisted runs get a fresh run id every time, so they bypass the cache
	key := settings.cacheKey(body)
	useCache := s.Cache != nil && !req.Persist
	if useCache {
		data, hit, err := s.Cache.Get(c.Request.Context(), key)
		switch {
		case err != nil:
			s.metrics.cache.WithLabelValues("error").Inc()
			s.Logger.Warn("cache lookup failed", zap.Error(err))
		case hit:
			s.metrics.cache.WithLabelValues("hit").Inc()
			c.Header("X-Cache", "HIT")
			c.Data(http.StatusOK, "application/json; charset=utf-8", data)
			return
		default:
			s.metrics.cache.WithLabelValues("miss").Inc()
		}
	}

	resp, err := s.match(c.Request.Context(), &req, settings)
	if err != nil {
		s.Logger.Error("failed to match layers", zap.Error(err))
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	data, err := json.Marshal(resp)
	if err != nil {
		s.Logger.Error("failed to encode match response", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to encode response"})
		return
	}
	if useCache {
		// Set logs its own failures
		_ = s.Cache.Set(c.Request.Context(), key, data)
		c.Header("X-Cache", "MISS")
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}

// matchSettings are the request overrides resolved against the config.
type matchSettings struct {
	CutThreshold   float64       `json:"cut"`
	Mode           classify.Mode `json:"mode"`
	ClassThreshold float64       `json:"class"`
	MinArea        float64       `json:"min_area"`
	MaxArea        float64       `json:"max_area"`
}

func (s *Server) resolve(req *MatchRequest) matchSettings {
	cfg := s.Config.Matching
	out := matchSettings{
		CutThreshold: cfg.CutThreshold,
		Mode:         req.Mode,
		MinArea:      cfg.MinArea,
		MaxArea:      cfg.MaxArea,
	}
	if req.CutThreshold != nil {
		out.CutThreshold = *req.CutThreshold
	}
	if req.MinArea != nil {
		out.MinArea = *req.MinArea
	}
	if req.MaxArea != nil {
		out.MaxArea = *req.MaxArea
	}
	switch {
	case req.Mode == "":
	case req.ClassThreshold != nil:
		out.ClassThreshold = *req.ClassThreshold
	case req.Mode == classify.ModeDetection:
		out.ClassThreshold = cfg.DetectionThreshold
	default:
		out.ClassThreshold = cfg.ChangeThreshold
	}
	return out
}

// cacheKey covers the body and the settings it resolved to, so a config
// change never serves results computed under the old thresholds.
func (m matchSettings) cacheKey(body []byte) string {
	prefix, _ := json.Marshal(m)
	return cache.Key("match", append(append(prefix, '\n'), body...))
}

// invalidLayer marks a request layer that could not be read.
type invalidLayer struct {
	err error
}

func (e *invalidLayer) Error() string { return e.err.Error() }
func (e *invalidLayer) Unwrap() error { return e.err }

func (s *Server) match(ctx context.Context, req *MatchRequest, settings matchSettings) (*MatchResponse, error) {
	a, err := layer.FromFeatureCollection(req.Poly1, model.SideA)
	if err != nil {
		return nil, &invalidLayer{err: err}
	}
	b, err := layer.FromFeatureCollection(req.Poly2, model.SideB)
	if err != nil {
		return nil, &invalidLayer{err: err}
	}
	a = layer.FilterByArea(a, settings.MinArea, settings.MaxArea)
	b = layer.FilterByArea(b, settings.MinArea, settings.MaxArea)

	start := time.Now()
	var res *core.Result
	if settings.Mode == "" {
		res, err = s.Matcher.Match(ctx, a, b, settings.CutThreshold)
	} else {
		res, err = s.Matcher.MatchAndClassify(ctx, a, b, core.ClassifyOptions{
			CutThreshold:   settings.CutThreshold,
			Mode:           settings.Mode,
			ClassThreshold: settings.ClassThreshold,
		})
	}
	if err != nil {
		return nil, err
	}
	s.metrics.duration.WithLabelValues("/match").Observe(time.Since(start).Seconds())
	s.metrics.polygons.WithLabelValues("poly1").Add(float64(res.A.Len()))
	s.metrics.polygons.WithLabelValues("poly2").Add(float64(res.B.Len()))
	for _, comp := range res.Components {
		s.metrics.relations.WithLabelValues(string(comp.Relation)).Inc()
	}

	persisted := false
	if req.Persist {
		if s.Matcher.Driver == nil {
			return nil, common.ConfigError("server.Match", "persistence requested but no graph database is configured")
		}
		if err := s.Matcher.Persist(ctx, res); err != nil {
			return nil, err
		}
		persisted = true
	}

	return &MatchResponse{
		RunID:          res.RunID,
		CreatedAt:      res.CreatedAt,
		CutThreshold:   res.CutThreshold,
		Mode:           res.Mode,
		ClassThreshold: res.ClassThreshold,
		Summary:        res.Summary,
		Components:     res.Components,
		Combinations:   res.Combinations,
		Edges:          res.Edges,
		CutEdges:       res.CutEdges,
		Report:         res.Report,
		Detection:      res.Detection,
		Poly1:          layer.ToFeatureCollection(res.A, res.Components),
		Poly2:          layer.ToFeatureCollection(res.B, res.Components),
		Persisted:      persisted,
	}, nil
}

// EvaluateChangeRequest holds ground truth and predicted change layers for
// both vintages. Every layer needs a cd_class property.
type EvaluateChangeRequest struct {
	GTPrev *geojson.FeatureCollection `json:"gt_prev"`
	CDPrev *geojson.FeatureCollection `json:"cd_prev"`
	GTCur  *geojson.FeatureCollection `json:"gt_cur"`
	CDCur  *geojson.FeatureCollection `json:"cd_cur"`
}

func (s *Server) EvaluateChange(c *gin.Context) {
	var req EvaluateChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.GTPrev == nil || req.CDPrev == nil || req.GTCur == nil || req.CDCur == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: gt_prev, cd_prev, gt_cur and cd_cur are required"})
		return
	}

	var sets [4]*model.PolygonSet
	for i, fc := range []*geojson.FeatureCollection{req.GTPrev, req.CDPrev, req.GTCur, req.CDCur} {
		side := model.SideA
		if i >= 2 {
			side = model.SideB
		}
		set, err := layer.FromFeatureCollection(fc, side)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		sets[i] = set
	}

	eval, err := s.Matcher.EvaluateChange(sets[0], sets[1], sets[2], sets[3])
	if err != nil {
		s.Logger.Error("failed to evaluate change detection", zap.Error(err))
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, eval)
}

func (s *Server) GetRun(c *gin.Context) {
	if s.Matcher.Driver == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Persistence is not configured"})
		return
	}
	summary, found, err := s.Matcher.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.Logger.Error("failed to load run", zap.String("run_id", c.Param("id")), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load run"})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "Run not found"})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) DeleteRun(c *gin.Context) {
	if s.Matcher.Driver == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Persistence is not configured"})
		return
	}
	if err := s.Matcher.DeleteRun(c.Request.Context(), c.Param("id")); err != nil {
		s.Logger.Error("failed to delete run", zap.String("run_id", c.Param("id")), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete run"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// statusFor maps classified errors to client errors; anything else is a
// server fault.
func statusFor(err error) int {
	var bad *invalidLayer
	switch {
	case errors.As(err, &bad):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrConfig):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrGeometry), errors.Is(err, common.ErrSchema):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
