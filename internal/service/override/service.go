package override

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mentorhub/matching/internal/app"
	"github.com/mentorhub/matching/internal/db"
	svcErr "github.com/mentorhub/matching/internal/errors"
	"github.com/mentorhub/matching/internal/policy"
	"github.com/mentorhub/matching/internal/repository"
)

// ActiveOverride is one coordinator-queue entry, enriched with the latest
// cached match score for the pair. MatchScore is nil on a cache miss — a new
// pair legitimately has no score yet.
type ActiveOverride struct {
	db.OverrideRequest
	MatchScore *int `json:"match_score"`
}

// BookingAccess is the booking path's gate decision.
type BookingAccess struct {
	Allowed bool `json:"allowed"`
	// Via is "tier" when the policy allows directly, "override" when an
	// approved override would carry the booking.
	Via              string `json:"via,omitempty"`
	OverrideID       string `json:"override_id,omitempty"`
	OverrideRequired bool   `json:"override_required,omitempty"`
}

// Service implements the tier-gated override workflow: requests, the
// coordinator queue, decisions, and the booking path's one-time consumption
// of approved overrides.
type Service struct {
	appCtx    *app.AppContext
	users     *repository.UserRepository
	overrides *repository.OverrideRepository
	matches   *repository.MatchCacheRepository
	access    policy.Access
	ttl       time.Duration
	now       func() time.Time
}

// NewService creates the override service with dependencies from AppContext.
func NewService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:    appCtx,
		users:     repository.NewUserRepository(appCtx.DB),
		overrides: repository.NewOverrideRepository(appCtx.DB),
		matches:   repository.NewMatchCacheRepository(appCtx.DB),
		access:    policy.Access{MaxGap: appCtx.Config.Policy.MaxTierGap},
		ttl:       appCtx.Config.Override.TTL,
		now:       time.Now,
	}
}

// RequestOverride creates a pending request for one (mentee, mentor) pair.
//
// Behavior:
//   - Both users must exist and carry the right roles.
//   - Rejected when the tier policy already allows direct booking: an
//     override only exists as an exception to a denial.
//   - Rejected when the pair already has an active pending request.
//   - The expiry horizon is fixed at creation; nothing ever extends it.
func (s *Service) RequestOverride(ctx context.Context, menteeID, mentorID uint64, reason string) (*db.OverrideRequest, error) {
	s.appCtx.Logger.Debug("RequestOverride called", "mentee_id", menteeID, "mentor_id", mentorID)

	if menteeID == mentorID {
		return nil, svcErr.Validation("cannot request an override for yourself")
	}
	if reason == "" {
		return nil, svcErr.Validation("reason is required")
	}

	mentee, err := s.users.GetUser(ctx, menteeID)
	if err != nil {
		return nil, err
	}
	mentor, err := s.users.GetUser(ctx, mentorID)
	if err != nil {
		return nil, err
	}
	if mentee.Role != db.RoleMentee {
		return nil, svcErr.Validation("user %d is not a mentee", menteeID)
	}
	if mentor.Role != db.RoleMentor {
		return nil, svcErr.Validation("user %d is not a mentor", mentorID)
	}

	if s.access.CanBookDirectly(mentee.Tier, mentor.Tier) {
		return nil, svcErr.Validation("direct booking is already permitted for this pair")
	}

	now := s.now().UTC()
	exists, err := s.overrides.HasActivePending(ctx, menteeID, mentorID, now)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, svcErr.Validation("an active override request already exists for this pair")
	}

	req := &db.OverrideRequest{
		ID:        uuid.NewString(),
		MenteeID:  menteeID,
		MentorID:  mentorID,
		Reason:    reason,
		Status:    db.OverrideStatusPending,
		Scope:     db.OverrideScopeOneTime,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.overrides.Create(ctx, req); err != nil {
		s.appCtx.Logger.Error("failed to create override request", "mentee_id", menteeID, "mentor_id", mentorID, "err", err)
		return nil, err
	}

	_ = s.appCtx.RedisCache.InvalidateActiveOverrideCount(ctx)

	s.appCtx.Logger.Info("override request created", "request_id", req.ID, "mentee_id", menteeID, "mentor_id", mentorID)
	return req, nil
}

// ListActiveOverrides returns the coordinator queue: pending requests whose
// expiry is strictly in the future, each enriched with the latest cached
// match score for the pair under the configured reference algorithm.
//
// Enrichment is all-or-nothing: the coordinator dashboard needs a single
// retry-or-not signal, so any store failure fails the whole listing. A plain
// cache miss is not a failure — the score is just nil.
func (s *Service) ListActiveOverrides(ctx context.Context) ([]ActiveOverride, error) {
	now := s.now().UTC()
	reqs, err := s.overrides.ListActive(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list active overrides: %w", err)
	}

	version := s.appCtx.Config.Matching.AlgorithmVersion
	out := make([]ActiveOverride, 0, len(reqs))
	for _, req := range reqs {
		entry, err := s.matches.Get(ctx, req.MenteeID, req.MentorID, version)
		if err != nil {
			return nil, fmt.Errorf("failed to enrich override %s with match score: %w", req.ID, err)
		}
		item := ActiveOverride{OverrideRequest: req}
		if entry != nil {
			score := entry.MatchScore
			item.MatchScore = &score
		}
		out = append(out, item)
	}
	return out, nil
}

// CountActiveOverrides returns the active-queue depth, cache-first.
func (s *Service) CountActiveOverrides(ctx context.Context) (int64, error) {
	if count, found, err := s.appCtx.RedisCache.GetActiveOverrideCount(ctx); err == nil && found {
		return count, nil
	}

	count, err := s.overrides.CountActive(ctx, s.now().UTC())
	if err != nil {
		return 0, err
	}
	_ = s.appCtx.RedisCache.UpdateActiveOverrideCount(ctx, count)
	return count, nil
}

// DecideOverride applies a coordinator's approve/deny. The underlying write
// is a compare-and-set on status = pending: when two coordinators race,
// exactly one succeeds and the other gets ErrAlreadyDecided.
func (s *Service) DecideOverride(ctx context.Context, requestID, decision string, reviewerID uint64, notes string) (*db.OverrideRequest, error) {
	s.appCtx.Logger.Debug("DecideOverride called", "request_id", requestID, "decision", decision, "reviewer_id", reviewerID)

	var status string
	switch decision {
	case "approve", db.OverrideStatusApproved:
		status = db.OverrideStatusApproved
	case "deny", db.OverrideStatusDenied:
		status = db.OverrideStatusDenied
	default:
		return nil, svcErr.Validation("decision must be approve or deny, got %q", decision)
	}

	reviewer, err := s.users.GetUser(ctx, reviewerID)
	if err != nil {
		return nil, err
	}
	if reviewer.Role != db.RoleCoordinator {
		return nil, fmt.Errorf("user %d is not a coordinator: %w", reviewerID, svcErr.ErrForbidden)
	}

	now := s.now().UTC()
	if err := s.overrides.Decide(ctx, requestID, status, reviewerID, notes, now); err != nil {
		return nil, err
	}

	_ = s.appCtx.RedisCache.InvalidateActiveOverrideCount(ctx)

	s.appCtx.Logger.Info("override request decided", "request_id", requestID, "status", status, "reviewer_id", reviewerID)
	return s.overrides.GetByID(ctx, requestID)
}

// CheckBookingAccess gates a booking attempt: tier policy first, then a
// consumable approved override as the exception path.
func (s *Service) CheckBookingAccess(ctx context.Context, menteeID, mentorID uint64) (*BookingAccess, error) {
	mentee, err := s.users.GetUser(ctx, menteeID)
	if err != nil {
		return nil, err
	}
	mentor, err := s.users.GetUser(ctx, mentorID)
	if err != nil {
		return nil, err
	}

	if s.access.CanBookDirectly(mentee.Tier, mentor.Tier) {
		return &BookingAccess{Allowed: true, Via: "tier"}, nil
	}

	override, err := s.overrides.FindConsumable(ctx, menteeID, mentorID)
	if err != nil {
		return nil, err
	}
	if override != nil {
		return &BookingAccess{Allowed: true, Via: "override", OverrideID: override.ID}, nil
	}
	return &BookingAccess{Allowed: false, OverrideRequired: true}, nil
}

// ConsumeOverride marks the pair's approved override as used when a booking
// is actually confirmed. One override carries exactly one booking.
func (s *Service) ConsumeOverride(ctx context.Context, menteeID, mentorID uint64) (*db.OverrideRequest, error) {
	req, err := s.overrides.Consume(ctx, menteeID, mentorID, s.now().UTC())
	if err != nil {
		return nil, err
	}
	s.appCtx.Logger.Info("override consumed", "request_id", req.ID, "mentee_id", menteeID, "mentor_id", mentorID)
	return req, nil
}
