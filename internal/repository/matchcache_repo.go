package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mentorhub/matching/internal/db"
	errs "github.com/mentorhub/matching/internal/errors"
)

// matchCacheConflict is the composite key every upsert resolves on.
// Last write wins; the store's native conflict primitive makes concurrent
// writes to the same key safe.
var matchCacheConflict = clause.OnConflict{
	Columns: []clause.Column{
		{Name: "subject_user_id"},
		{Name: "recommended_user_id"},
		{Name: "algorithm_version"},
	},
	DoUpdates: clause.AssignmentColumns([]string{
		"match_score", "explanation", "calculated_at", "updated_at",
	}),
}

// MatchCacheRepository provides data access for MatchCacheEntry rows.
// All read-path match queries go through here; nothing in this layer ever
// computes a score.
type MatchCacheRepository struct {
	db *gorm.DB
}

// NewMatchCacheRepository creates a new repository bound to the given DB connection.
func NewMatchCacheRepository(database *gorm.DB) *MatchCacheRepository {
	return &MatchCacheRepository{db: database}
}

// Upsert inserts or overwrites the entry for its composite key.
//
// Behavior:
//   - If (subject, recommended, algorithm_version) exists → score,
//     explanation and calculated_at are overwritten.
//   - If it doesn't exist → a new row is inserted.
//   - Self-matches and out-of-range scores are rejected before any write.
func (r *MatchCacheRepository) Upsert(ctx context.Context, entry *db.MatchCacheEntry) error {
	if err := validateEntry(entry); err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Clauses(matchCacheConflict).
		Create(entry).Error
}

// BatchUpsert writes one chunk of entries in a single statement. This is what
// keeps bulk recalculation from degenerating into one write per candidate.
func (r *MatchCacheRepository) BatchUpsert(ctx context.Context, entries []db.MatchCacheEntry) error {
	if len(entries) == 0 {
		return nil
	}
	for i := range entries {
		if err := validateEntry(&entries[i]); err != nil {
			return err
		}
	}
	return r.db.WithContext(ctx).
		Clauses(matchCacheConflict).
		Create(&entries).Error
}

// GetTopMatches returns a subject's best cached matches for one algorithm
// version, score descending, ties broken by calculated_at descending
// (freshest first). Rows from other algorithm versions are never mixed in.
//
// A cache miss is an empty slice, not an error: new users legitimately have
// no rows until the next recalculation pass.
func (r *MatchCacheRepository) GetTopMatches(
	ctx context.Context,
	subjectID uint64,
	version string,
	limit int,
) ([]db.MatchCacheEntry, error) {
	var entries []db.MatchCacheEntry
	err := r.db.WithContext(ctx).
		Where("subject_user_id = ? AND algorithm_version = ?", subjectID, version).
		Order("match_score DESC, calculated_at DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Get returns the cached entry for one (subject, candidate) pair under one
// algorithm version, or nil on a miss.
func (r *MatchCacheRepository) Get(
	ctx context.Context,
	subjectID, candidateID uint64,
	version string,
) (*db.MatchCacheEntry, error) {
	var entry db.MatchCacheEntry
	err := r.db.WithContext(ctx).
		Where(
			"subject_user_id = ? AND recommended_user_id = ? AND algorithm_version = ?",
			subjectID, candidateID, version,
		).
		Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func validateEntry(entry *db.MatchCacheEntry) error {
	if entry.SubjectUserID == entry.RecommendedUserID {
		return errs.Validation("self-match entry for user %d", entry.SubjectUserID)
	}
	if entry.MatchScore < 0 || entry.MatchScore > 100 {
		return errs.Validation("match score %d out of range", entry.MatchScore)
	}
	if entry.AlgorithmVersion == "" {
		return errs.Validation("missing algorithm version")
	}
	return nil
}
