package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/2chong/Change-Detection/internal/cache"
	"github.com/2chong/Change-Detection/internal/config"
	"github.com/2chong/Change-Detection/internal/core"
	"github.com/2chong/Change-Detection/internal/driver"
	"github.com/2chong/Change-Detection/internal/logging"
	"github.com/2chong/Change-Detection/internal/server"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using defaults")
	}

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config/config.toml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Printf("Warning: %v. Using built-in defaults", err)
		cfg = config.Default()
	}
	if err := cfg.ApplyEnv(); err != nil {
		log.Fatalf("Invalid environment: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, err := logging.New(cfg.Log.Mode)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var graph driver.GraphDriver
	if cfg.Memgraph.URI != "" {
		d, err := driver.NewMemgraphDriver(ctx, cfg.Memgraph.URI, cfg.Memgraph.User, cfg.Memgraph.Password, logger)
		if err != nil {
			logger.Warn("memgraph unavailable, runs will not be persisted", zap.Error(err))
		} else {
			if err := d.BuildIndices(ctx); err != nil {
				logger.Warn("failed to build indices", zap.Error(err))
			}
			defer d.Close(context.Background())
			graph = d
		}
	}

	var results server.Cache
	if cfg.Redis.Addr != "" {
		rc := cache.NewRedisCache(cfg.Redis, logger)
		if err := rc.Ping(ctx); err != nil {
			logger.Warn("redis unavailable, caching disabled", zap.Error(err))
			rc.Close()
		} else {
			defer rc.Close()
			results = rc
		}
	}

	gin.SetMode(cfg.Server.Mode)
	m := core.NewMatcher(graph, logger, cfg.Matching.Workers)
	srv := server.NewServer(m, results, cfg, logger)
	r := srv.SetupRouter()

	logger.Info("starting server",
		zap.String("port", cfg.Server.Port),
		zap.Bool("persistence", graph != nil),
		zap.Bool("cache", results != nil))
	if err := r.Run(":" + cfg.Server.Port); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
