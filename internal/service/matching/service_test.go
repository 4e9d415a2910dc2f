package matching_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mentorhub/matching/internal/app"
	"github.com/mentorhub/matching/internal/cache"
	"github.com/mentorhub/matching/internal/config"
	"github.com/mentorhub/matching/internal/db"
	errs "github.com/mentorhub/matching/internal/errors"
	"github.com/mentorhub/matching/internal/repository"
	"github.com/mentorhub/matching/internal/scheduler"
	"github.com/mentorhub/matching/internal/scoring"
	"github.com/mentorhub/matching/internal/service/matching"
)

// seedMatchingUsers inserts a deterministic dataset:
//   - user 1: mentee, tags {industry:fintech, tech:react}
//   - user 2: mentor, tags {industry:fintech, tech:react, tech:go} (2 shared with user 1)
//   - user 3: mentor, tags {industry:gaming} (0 shared with user 1)
func seedMatchingUsers(t *testing.T, gdb *gorm.DB) {
	t.Helper()

	users := []db.User{
		{ID: 1, Username: "mentee1", Email: "m1@test.com", PasswordHash: "x", Role: db.RoleMentee, Tier: db.TierBronze, Active: true},
		{ID: 2, Username: "mentor2", Email: "m2@test.com", PasswordHash: "x", Role: db.RoleMentor, Tier: db.TierSilver, Active: true},
		{ID: 3, Username: "mentor3", Email: "m3@test.com", PasswordHash: "x", Role: db.RoleMentor, Tier: db.TierSilver, Active: true},
	}
	require.NoError(t, gdb.Create(&users).Error)

	tags := []db.UserTag{
		{UserID: 1, Category: "industry", Value: "fintech"},
		{UserID: 1, Category: "tech", Value: "react"},
		{UserID: 2, Category: "industry", Value: "fintech"},
		{UserID: 2, Category: "tech", Value: "react"},
		{UserID: 2, Category: "tech", Value: "go"},
		{UserID: 3, Category: "industry", Value: "gaming"},
	}
	require.NoError(t, gdb.Create(&tags).Error)
}

// setupService spins up an in-memory SQLite DB, a miniredis, and wires a
// matching service the way cmd/server does. Each test gets its own stack.
func setupService(t *testing.T) (*matching.Service, *gorm.DB) {
	t.Helper()

	dbName := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	gdb, err := gorm.Open(sqlite.Open(dbName), &gorm.Config{
		NowFunc:                func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.Migrate(gdb))
	seedMatchingUsers(t, gdb)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(func() { mr.Close() })

	cfg := config.New()
	cfg.Redis.Addr = mr.Addr()
	cfg.Matching.AlgorithmVersion = scoring.TagOverlapVersion

	redisCache := cache.NewRedisCache(cfg)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // discard logs in tests

	scoring.Register(scoring.NewTagOverlap())
	recalc := scheduler.NewRecalculator(
		repository.NewUserRepository(gdb),
		repository.NewMatchCacheRepository(gdb),
		redisCache,
		scoring.Lookup(scoring.TagOverlapVersion),
		logger,
	)

	appCtx := app.New(gdb, redisCache, logger, cfg)
	return matching.NewService(appCtx, recalc), gdb
}

func TestRecalculateAndGetTopMatches(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupService(t)

	written, err := svc.RecalculateMatches(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, written)

	results, err := svc.GetTopMatches(ctx, 1, scoring.TagOverlapVersion, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)

	// user 2 shares 2 tags, user 3 shares none
	assert.Equal(t, uint64(2), results[0].RecommendedUserID)
	assert.Greater(t, results[0].Score, results[1].Score)
	require.Len(t, results[0].Explanation.SharedTags, 2)
	assert.Equal(t, scoring.SharedTag{Category: "industry", Value: "fintech"}, results[0].Explanation.SharedTags[0])
	assert.Equal(t, scoring.SharedTag{Category: "tech", Value: "react"}, results[0].Explanation.SharedTags[1])
	assert.Equal(t, scoring.TagOverlapVersion, results[0].AlgorithmVersion)
}

func TestGetTopMatchesUnknownVersion(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupService(t)

	_, err := svc.GetTopMatches(ctx, 1, "score_v999", 10)
	assert.True(t, errs.IsValidation(err))
}

func TestGetTopMatchesEmptyForColdSubject(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupService(t)

	// no recalculation ran; a miss is an empty list, not an error
	results, err := svc.GetTopMatches(ctx, 1, scoring.TagOverlapVersion, 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestGetTopMatchesServedFromCache(t *testing.T) {
	ctx := context.Background()
	svc, gdb := setupService(t)

	_, err := svc.RecalculateMatches(ctx, 1)
	require.NoError(t, err)

	first, err := svc.GetTopMatches(ctx, 1, scoring.TagOverlapVersion, 10)
	require.NoError(t, err)
	require.Len(t, first, 2)

	// wipe the DB rows: the second read must come from redis
	require.NoError(t, gdb.Exec("DELETE FROM match_cache_entries").Error)

	second, err := svc.GetTopMatches(ctx, 1, scoring.TagOverlapVersion, 10)
	require.NoError(t, err)
	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].RecommendedUserID, second[i].RecommendedUserID)
		assert.Equal(t, first[i].Score, second[i].Score)
		assert.Equal(t, first[i].Explanation, second[i].Explanation)
	}
}

func TestRecalculateInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	svc, gdb := setupService(t)

	_, err := svc.RecalculateMatches(ctx, 1)
	require.NoError(t, err)
	_, err = svc.GetTopMatches(ctx, 1, scoring.TagOverlapVersion, 10)
	require.NoError(t, err)

	// user 3 picks up the mentee's tags, then a recalculation runs
	newTags := []db.UserTag{
		{UserID: 3, Category: "industry", Value: "fintech"},
		{UserID: 3, Category: "tech", Value: "react"},
	}
	require.NoError(t, gdb.Create(&newTags).Error)

	_, err = svc.RecalculateMatches(ctx, 1)
	require.NoError(t, err)

	results, err := svc.GetTopMatches(ctx, 1, scoring.TagOverlapVersion, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	// stale redis data would still rank user 3 at score 0
	assert.Greater(t, results[1].Score, 0)
}

func TestRecalculateAllSummary(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupService(t)

	summary, err := svc.RecalculateAll(ctx, scheduler.Options{
		BatchSize:           2,
		DelayBetweenBatches: time.Millisecond,
		ChunkSize:           10,
		DelayBetweenChunks:  time.Millisecond,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Processed)
}
