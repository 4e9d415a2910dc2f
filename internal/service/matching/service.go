package matching

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mentorhub/matching/internal/app"
	svcErr "github.com/mentorhub/matching/internal/errors"
	"github.com/mentorhub/matching/internal/repository"
	"github.com/mentorhub/matching/internal/scheduler"
	"github.com/mentorhub/matching/internal/scoring"
)

const (
	// DefaultLimit is the page size when the caller doesn't ask for one.
	DefaultLimit = 10

	// topCacheSize is how many entries the redis list cache holds per
	// subject; requests up to this limit are served by slicing it.
	topCacheSize = 50
)

// MatchResult is one recommendation served from the match cache.
type MatchResult struct {
	RecommendedUserID uint64              `json:"recommended_user_id"`
	Score             int                 `json:"score"`
	Explanation       scoring.Explanation `json:"explanation"`
	AlgorithmVersion  string              `json:"algorithm_version"`
	CalculatedAt      time.Time           `json:"calculated_at"`
}

// Service serves match recommendations and recalculation entry points.
// Reads never compute: every list comes from the cache store, warmed by the
// scheduler. Redis shields hot subjects; the DB row set is the truth.
type Service struct {
	appCtx  *app.AppContext
	matches *repository.MatchCacheRepository
	recalc  *scheduler.Recalculator
}

// NewService creates the matching service with dependencies from AppContext.
func NewService(appCtx *app.AppContext, recalc *scheduler.Recalculator) *Service {
	return &Service{
		appCtx:  appCtx,
		matches: repository.NewMatchCacheRepository(appCtx.DB),
		recalc:  recalc,
	}
}

// GetTopMatches returns a subject's best cached matches for one algorithm
// version, best score first.
//
// Behavior:
//   - Unknown algorithm versions are rejected before touching any store;
//     mixing scores from two algorithms into one list is never possible.
//   - Serves from the redis list cache when it can, falling back to the DB
//     and repopulating the cache.
//   - A subject with no cached rows gets an empty list, not an error.
func (s *Service) GetTopMatches(ctx context.Context, userID uint64, version string, limit int) ([]MatchResult, error) {
	s.appCtx.Logger.Debug("GetTopMatches called", "subject_id", userID, "algorithm_version", version, "limit", limit)

	if version == "" {
		version = s.appCtx.Config.Matching.AlgorithmVersion
	}
	if scoring.Lookup(version) == nil {
		return nil, svcErr.Validation("unknown algorithm version %q", version)
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	// try cache first
	if limit <= topCacheSize {
		if cached, err := s.appCtx.RedisCache.GetTopMatches(ctx, userID, version); err == nil && cached != "" {
			var results []MatchResult
			if err := json.Unmarshal([]byte(cached), &results); err == nil {
				if len(results) > limit {
					results = results[:limit]
				}
				return results, nil
			}
		}
	}

	fetch := max(limit, topCacheSize)
	entries, err := s.matches.GetTopMatches(ctx, userID, version, fetch)
	if err != nil {
		s.appCtx.Logger.Error("GetTopMatches failed", "subject_id", userID, "err", err)
		return nil, err
	}

	results := make([]MatchResult, 0, len(entries))
	for _, e := range entries {
		var explanation scoring.Explanation
		if err := json.Unmarshal(e.Explanation, &explanation); err != nil {
			s.appCtx.Logger.Warn("unreadable explanation payload",
				"subject_id", e.SubjectUserID, "recommended_id", e.RecommendedUserID, "err", err)
		}
		results = append(results, MatchResult{
			RecommendedUserID: e.RecommendedUserID,
			Score:             e.MatchScore,
			Explanation:       explanation,
			AlgorithmVersion:  e.AlgorithmVersion,
			CalculatedAt:      e.CalculatedAt,
		})
	}

	if payload, err := json.Marshal(results); err == nil {
		_ = s.appCtx.RedisCache.SetTopMatches(ctx, userID, version, string(payload))
	}

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// RecalculateMatches synchronously refreshes one subject's cache rows, e.g.
// right after a profile edit. Returns the number of candidates scored.
func (s *Service) RecalculateMatches(ctx context.Context, userID uint64) (int, error) {
	s.appCtx.Logger.Debug("RecalculateMatches called", "subject_id", userID)

	written, err := s.recalc.RecalculateUser(ctx, userID)
	if err != nil {
		s.appCtx.Logger.Error("RecalculateMatches failed", "subject_id", userID, "err", err)
		return 0, err
	}
	return written, nil
}

// RecalculateAll runs the bulk job. Deployment keeps runs non-overlapping;
// overlap is still safe here because every write is a per-key upsert.
func (s *Service) RecalculateAll(ctx context.Context, opts scheduler.Options) (scheduler.Summary, error) {
	return s.recalc.RunAll(ctx, opts)
}
