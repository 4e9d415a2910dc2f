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

// UserRepository is read-only access to users and their tag sets. Users are
// owned by the user-management subsystem; this service never mutates them.
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new repository bound to the given DB connection.
func NewUserRepository(database *gorm.DB) *UserRepository {
	return &UserRepository{db: database}
}

// GetUser loads one user with tags preloaded.
func (r *UserRepository) GetUser(ctx context.Context, id uint64) (*db.User, error) {
	var user db.User
	err := r.db.WithContext(ctx).
		Preload("Tags").
		Take(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("user %d: %w", id, errs.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ListCandidates returns the active potential-match pool for a subject:
// every active user of the given role, excluding the subject itself.
func (r *UserRepository) ListCandidates(ctx context.Context, role string, excludeID uint64) ([]db.User, error) {
	var users []db.User
	err := r.db.WithContext(ctx).
		Preload("Tags").
		Where("role = ? AND active = ? AND id <> ?", role, true, excludeID).
		Order("id").
		Find(&users).Error
	return users, err
}

// ListSubjects returns the users a bulk recalculation run iterates:
// active mentors and mentees, optionally only those modified strictly after
// modifiedAfter, capped at limit (0 = no cap).
func (r *UserRepository) ListSubjects(ctx context.Context, limit int, modifiedAfter *time.Time) ([]db.User, error) {
	query := r.db.WithContext(ctx).
		Preload("Tags").
		Where("role IN ? AND active = ?", []string{db.RoleMentor, db.RoleMentee}, true).
		Order("id")

	if modifiedAfter != nil {
		query = query.Where("updated_at > ?", *modifiedAfter)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var users []db.User
	err := query.Find(&users).Error
	return users, err
}
