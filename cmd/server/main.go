package main

import (
	"context"

	"github.com/mentorhub/matching/internal/app"
	"github.com/mentorhub/matching/internal/cache"
	"github.com/mentorhub/matching/internal/config"
	"github.com/mentorhub/matching/internal/db"
	"github.com/mentorhub/matching/internal/logger"
	"github.com/mentorhub/matching/internal/repository"
	"github.com/mentorhub/matching/internal/scheduler"
	"github.com/mentorhub/matching/internal/scoring"
	"github.com/mentorhub/matching/internal/server"
	"github.com/mentorhub/matching/internal/service/matching"
	"github.com/mentorhub/matching/internal/service/override"
)

func main() {
	cfg := config.New()

	// Init logger (global singleton)
	logger.InitFromConfig(cfg)
	log := logger.L()

	// Init DB
	database, err := db.NewDB(cfg)
	if err != nil {
		log.Error("failed to init db", "err", err)
		return
	}

	// Init Redis
	redisCache := cache.NewRedisCache(cfg)
	if err := redisCache.Ping(context.Background()); err != nil {
		log.Error("failed to connect to redis", "err", err)
		return
	}

	appCtx := app.New(database, redisCache, log, cfg)

	// Register scorers and resolve the configured reference algorithm
	scoring.Register(scoring.NewTagOverlap())
	scorer := scoring.Lookup(cfg.Matching.AlgorithmVersion)
	if scorer == nil {
		log.Error("unknown algorithm version", "algorithm_version", cfg.Matching.AlgorithmVersion)
		return
	}

	recalc := scheduler.NewRecalculator(
		repository.NewUserRepository(database),
		repository.NewMatchCacheRepository(database),
		redisCache,
		scorer,
		log,
	)

	registrars := []server.Registrar{
		matching.NewRegistrar(matching.NewService(appCtx, recalc)),
		override.NewRegistrar(override.NewService(appCtx)),
	}

	addr := cfg.HTTP.Host + ":" + cfg.HTTP.Port
	log.Info("starting HTTP server", "addr", addr)

	if err := server.StartHTTPServer(cfg, registrars...); err != nil {
		log.Error("failed to start HTTP server", "err", err)
	}
}
