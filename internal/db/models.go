package db

import (
	"time"

	"gorm.io/datatypes"
)

// User roles
const (
	RoleMentee      = "mentee"
	RoleMentor      = "mentor"
	RoleCoordinator = "coordinator"
)

// Reputation tiers. An empty Tier means the user has not been ranked yet.
const (
	TierBronze   = "bronze"
	TierSilver   = "silver"
	TierGold     = "gold"
	TierPlatinum = "platinum"
)

// Override request statuses. "Expired" is never stored: a pending row whose
// expires_at has elapsed simply stops matching the active-queue predicate.
const (
	OverrideStatusPending  = "pending"
	OverrideStatusApproved = "approved"
	OverrideStatusDenied   = "denied"
)

// OverrideScopeOneTime is the only scope currently issued.
const OverrideScopeOneTime = "one_time"

// User table. Owned by the user-management subsystem; this service only
// reads it (seeding aside). UpdatedAt doubles as the modified marker for
// incremental recalculation runs.
type User struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement"`
	Username     string    `gorm:"uniqueIndex;size:64;not null"`
	Email        string    `gorm:"uniqueIndex;size:128;not null"`
	PasswordHash string    `gorm:"size:255;not null"`
	Active       bool      `gorm:"default:true"`
	Role         string    `gorm:"size:16;not null;index"`
	Tier         string    `gorm:"size:16"`
	Tags         []UserTag `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime;index"`
}

// UserTag is one (category, value) attribute on a user's profile, the raw
// signal for tag-overlap scoring.
//
// Composite PK: (UserID, Category, Value) — a tag appears at most once per user.
type UserTag struct {
	UserID   uint64 `gorm:"primaryKey"`
	Category string `gorm:"primaryKey;size:64"`
	Value    string `gorm:"primaryKey;size:128"`
}

// MatchCacheEntry holds the latest score one algorithm produced for a
// (subject, recommended) pair. Exactly one row per key: recalculation
// overwrites, never appends.
//
// Composite PK: (SubjectUserID, RecommendedUserID, AlgorithmVersion)
//   - Ensures a single row per pair per algorithm (overwrite guarantee).
//
// Indexes:
//   - idx_subject_version_score(subject_user_id, algorithm_version, match_score DESC)
//     Optimizes top-N reads for one subject under one algorithm.
//
// CalculatedAt is the authoritative recency marker; CreatedAt/UpdatedAt only
// track row lifecycle.
type MatchCacheEntry struct {
	SubjectUserID     uint64         `gorm:"primaryKey;index:idx_subject_version_score,priority:1"`
	RecommendedUserID uint64         `gorm:"primaryKey"`
	AlgorithmVersion  string         `gorm:"primaryKey;size:64;index:idx_subject_version_score,priority:2"`
	MatchScore        int            `gorm:"not null;index:idx_subject_version_score,priority:3,sort:desc"`
	Explanation       datatypes.JSON `gorm:"not null"`
	CalculatedAt      time.Time      `gorm:"not null"`
	CreatedAt         time.Time      `gorm:"autoCreateTime"`
	UpdatedAt         time.Time      `gorm:"autoUpdateTime"`
}

// OverrideRequest is a mentee's time-bound request to bypass the tier access
// policy for one specific mentor.
//
// Lifecycle: created pending with a fixed expiry horizon; mutated only by a
// coordinator decision (approve/deny) or by the booking path consuming an
// approved override (UsedAt). A pending row whose expiry elapses is filtered
// out of active queues at read time; its stored status stays "pending".
type OverrideRequest struct {
	ID          string    `gorm:"primaryKey;size:36"`
	MenteeID    uint64    `gorm:"not null;index:idx_override_pair,priority:1"`
	MentorID    uint64    `gorm:"not null;index:idx_override_pair,priority:2"`
	Reason      string    `gorm:"type:text;not null"`
	Status      string    `gorm:"size:16;not null;index:idx_override_status_expiry,priority:1"`
	Scope       string    `gorm:"size:16;not null"`
	ExpiresAt   time.Time `gorm:"not null;index:idx_override_status_expiry,priority:2"`
	UsedAt      *time.Time
	ReviewedBy  *uint64
	ReviewedAt  *time.Time
	ReviewNotes *string   `gorm:"type:text"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}
