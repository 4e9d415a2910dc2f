package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mentorhub/matching/internal/config"
	"github.com/mentorhub/matching/internal/db"
	"github.com/mentorhub/matching/internal/logger"
	"github.com/mentorhub/matching/internal/repository"
	"github.com/mentorhub/matching/internal/scheduler"
	"github.com/mentorhub/matching/internal/scoring"
)

// cmd/recalc is the bulk recalculation job, meant to run as a single active
// cron/one-off task. Deployment keeps runs non-overlapping; overlap is still
// safe because cache writes are per-key upserts.
func main() {
	limit := flag.Int("limit", 0, "cap total subjects processed (0 = all)")
	modifiedAfter := flag.String("modified-after", "", "only subjects modified strictly after this RFC3339 timestamp")
	batchSize := flag.Int("batch-size", 0, "subjects per batch (0 = config default)")
	chunkSize := flag.Int("chunk-size", 0, "candidates per chunk (0 = config default)")
	flag.Parse()

	cfg := config.New()
	cfg.Log.Component = "recalc_job"
	logger.InitFromConfig(cfg)
	log := logger.L()

	database, err := db.NewDB(cfg)
	if err != nil {
		log.Error("failed to init db", "err", err)
		os.Exit(1)
	}

	scoring.Register(scoring.NewTagOverlap())
	scorer := scoring.Lookup(cfg.Matching.AlgorithmVersion)
	if scorer == nil {
		log.Error("unknown algorithm version", "algorithm_version", cfg.Matching.AlgorithmVersion)
		os.Exit(1)
	}

	opts := scheduler.Options{
		Limit:               *limit,
		BatchSize:           orDefault(*batchSize, cfg.Matching.BatchSize),
		DelayBetweenBatches: cfg.Matching.DelayBetweenBatches,
		ChunkSize:           orDefault(*chunkSize, cfg.Matching.ChunkSize),
		DelayBetweenChunks:  cfg.Matching.DelayBetweenChunks,
	}
	if *modifiedAfter != "" {
		ts, err := time.Parse(time.RFC3339, *modifiedAfter)
		if err != nil {
			log.Error("invalid -modified-after", "value", *modifiedAfter, "err", err)
			os.Exit(1)
		}
		opts.ModifiedAfter = &ts
	}

	// SIGINT/SIGTERM stops the run at the next batch boundary
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	recalc := scheduler.NewRecalculator(
		repository.NewUserRepository(database),
		repository.NewMatchCacheRepository(database),
		nil,
		scorer,
		log,
	)

	summary, err := recalc.RunAll(ctx, opts)
	if err != nil {
		log.Error("bulk recalculation aborted", "processed", summary.Processed, "err", err)
		os.Exit(1)
	}
	log.Info("done", "processed", summary.Processed, "elapsed_ms", summary.ElapsedMs)
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}
