package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/mentorhub/matching/internal/db"
	errs "github.com/mentorhub/matching/internal/errors"
)

// OverrideRepository provides data access for OverrideRequest rows.
//
// Liveness is never stored: a request is "active" iff status = pending AND
// expires_at > now, with a strict comparison. A never-reviewed request keeps
// row status "pending" forever and simply drops out of active queries once
// its horizon passes.
type OverrideRepository struct {
	db *gorm.DB
}

// NewOverrideRepository creates a new repository bound to the given DB connection.
func NewOverrideRepository(database *gorm.DB) *OverrideRepository {
	return &OverrideRepository{db: database}
}

// Create inserts a new request. Status and expiry are set by the service.
func (r *OverrideRepository) Create(ctx context.Context, req *db.OverrideRequest) error {
	return r.db.WithContext(ctx).Create(req).Error
}

// GetByID loads one request.
func (r *OverrideRepository) GetByID(ctx context.Context, id string) (*db.OverrideRequest, error) {
	var req db.OverrideRequest
	err := r.db.WithContext(ctx).Take(&req, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("override request %s: %w", id, errs.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// ListActive returns the coordinator queue: pending requests whose expiry is
// strictly in the future, oldest first.
func (r *OverrideRepository) ListActive(ctx context.Context, now time.Time) ([]db.OverrideRequest, error) {
	var reqs []db.OverrideRequest
	err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at > ?", db.OverrideStatusPending, now).
		Order("created_at ASC, id ASC").
		Find(&reqs).Error
	return reqs, err
}

// CountActive returns the active-queue depth.
func (r *OverrideRepository) CountActive(ctx context.Context, now time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.OverrideRequest{}).
		Where("status = ? AND expires_at > ?", db.OverrideStatusPending, now).
		Count(&count).Error
	return count, err
}

// HasActivePending reports whether the pair already has an active pending
// request, to stop mentees queueing duplicates.
func (r *OverrideRepository) HasActivePending(ctx context.Context, menteeID, mentorID uint64, now time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.OverrideRequest{}).
		Where(
			"mentee_id = ? AND mentor_id = ? AND status = ? AND expires_at > ?",
			menteeID, mentorID, db.OverrideStatusPending, now,
		).
		Count(&count).Error
	return count > 0, err
}

// Decide applies a coordinator decision as a single compare-and-set: the
// update only lands while the row is still pending and unexpired, so two
// reviewers can never both succeed.
//
// On a zero-row update the row is re-read to report the precise condition:
// ErrNotFound, ErrAlreadyDecided, or ErrExpired.
func (r *OverrideRepository) Decide(
	ctx context.Context,
	id, status string,
	reviewerID uint64,
	notes string,
	now time.Time,
) error {
	res := r.db.WithContext(ctx).
		Model(&db.OverrideRequest{}).
		Where("id = ? AND status = ? AND expires_at > ?", id, db.OverrideStatusPending, now).
		Updates(map[string]interface{}{
			"status":       status,
			"reviewed_by":  reviewerID,
			"reviewed_at":  now,
			"review_notes": notes,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}

	req, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if req.Status != db.OverrideStatusPending {
		return fmt.Errorf("override request %s: %w", id, errs.ErrAlreadyDecided)
	}
	return fmt.Errorf("override request %s: %w", id, errs.ErrExpired)
}

// FindConsumable returns the newest approved, unused override for the pair,
// or nil when none exists.
func (r *OverrideRepository) FindConsumable(ctx context.Context, menteeID, mentorID uint64) (*db.OverrideRequest, error) {
	var req db.OverrideRequest
	err := r.db.WithContext(ctx).
		Where(
			"mentee_id = ? AND mentor_id = ? AND status = ? AND used_at IS NULL",
			menteeID, mentorID, db.OverrideStatusApproved,
		).
		Order("reviewed_at DESC").
		Take(&req).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// Consume marks the newest approved, unused override for the pair as used.
// The used_at write is itself conditional on used_at still being NULL, so an
// override books exactly one session even under concurrent booking attempts.
func (r *OverrideRepository) Consume(ctx context.Context, menteeID, mentorID uint64, now time.Time) (*db.OverrideRequest, error) {
	for {
		req, err := r.FindConsumable(ctx, menteeID, mentorID)
		if err != nil {
			return nil, err
		}
		if req == nil {
			return nil, fmt.Errorf("consumable override for mentee %d mentor %d: %w", menteeID, mentorID, errs.ErrNotFound)
		}

		res := r.db.WithContext(ctx).
			Model(&db.OverrideRequest{}).
			Where("id = ? AND status = ? AND used_at IS NULL", req.ID, db.OverrideStatusApproved).
			Update("used_at", now)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected > 0 {
			req.UsedAt = &now
			return req, nil
		}
		// lost the race on this row; try the next consumable if any
	}
}
