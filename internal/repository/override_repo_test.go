package repository_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mentorhub/matching/internal/db"
	errs "github.com/mentorhub/matching/internal/errors"
	"github.com/mentorhub/matching/internal/repository"
)

func pendingRequest(t *testing.T, gdb *gorm.DB, menteeID, mentorID uint64, expiresAt time.Time) *db.OverrideRequest {
	t.Helper()
	req := &db.OverrideRequest{
		ID:        uuid.NewString(),
		MenteeID:  menteeID,
		MentorID:  mentorID,
		Reason:    "tier gap too wide",
		Status:    db.OverrideStatusPending,
		Scope:     db.OverrideScopeOneTime,
		ExpiresAt: expiresAt,
	}
	require.NoError(t, gdb.Create(req).Error)
	return req
}

func TestListActiveExcludesExpiredPending(t *testing.T) {
	ctx := context.Background()
	gdb := setupTestDB(t)
	repo := repository.NewOverrideRepository(gdb)

	now := time.Now().UTC()
	live := pendingRequest(t, gdb, 1, 2, now.Add(time.Hour))
	expired := pendingRequest(t, gdb, 3, 4, now.Add(-time.Hour))

	active, err := repo.ListActive(ctx, now)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, live.ID, active[0].ID)

	// the expired row keeps its stored status; only the read filters it
	stored, err := repo.GetByID(ctx, expired.ID)
	require.NoError(t, err)
	assert.Equal(t, db.OverrideStatusPending, stored.Status)

	count, err := repo.CountActive(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestListActiveExpiryIsStrict(t *testing.T) {
	ctx := context.Background()
	gdb := setupTestDB(t)
	repo := repository.NewOverrideRepository(gdb)

	boundary := time.Now().UTC().Truncate(time.Millisecond)
	pendingRequest(t, gdb, 1, 2, boundary)

	// expires_at == now is not active
	active, err := repo.ListActive(ctx, boundary)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestDecideIsCompareAndSet(t *testing.T) {
	ctx := context.Background()
	gdb := setupTestDB(t)
	repo := repository.NewOverrideRepository(gdb)

	now := time.Now().UTC()
	req := pendingRequest(t, gdb, 1, 2, now.Add(time.Hour))

	require.NoError(t, repo.Decide(ctx, req.ID, db.OverrideStatusApproved, 99, "looks fine", now))

	decided, err := repo.GetByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, db.OverrideStatusApproved, decided.Status)
	require.NotNil(t, decided.ReviewedBy)
	assert.Equal(t, uint64(99), *decided.ReviewedBy)
	require.NotNil(t, decided.ReviewNotes)
	assert.Equal(t, "looks fine", *decided.ReviewNotes)

	// a second reviewer's write must not land
	err = repo.Decide(ctx, req.ID, db.OverrideStatusDenied, 100, "", now)
	assert.ErrorIs(t, err, errs.ErrAlreadyDecided)

	final, err := repo.GetByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, db.OverrideStatusApproved, final.Status)
}

func TestDecideExpiredPending(t *testing.T) {
	ctx := context.Background()
	gdb := setupTestDB(t)
	repo := repository.NewOverrideRepository(gdb)

	now := time.Now().UTC()
	req := pendingRequest(t, gdb, 1, 2, now.Add(-time.Minute))

	err := repo.Decide(ctx, req.ID, db.OverrideStatusApproved, 99, "", now)
	assert.ErrorIs(t, err, errs.ErrExpired)
}

func TestDecideUnknownRequest(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewOverrideRepository(setupTestDB(t))

	err := repo.Decide(ctx, uuid.NewString(), db.OverrideStatusApproved, 99, "", time.Now().UTC())
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestConcurrentDecidesExactlyOneWins(t *testing.T) {
	ctx := context.Background()
	gdb := setupTestDB(t)
	repo := repository.NewOverrideRepository(gdb)

	now := time.Now().UTC()
	req := pendingRequest(t, gdb, 1, 2, now.Add(time.Hour))

	decisions := []string{db.OverrideStatusApproved, db.OverrideStatusDenied}
	errsCh := make(chan error, len(decisions))
	var wg sync.WaitGroup
	for i, status := range decisions {
		wg.Add(1)
		go func(reviewer uint64, status string) {
			defer wg.Done()
			errsCh <- repo.Decide(ctx, req.ID, status, reviewer, "", now)
		}(uint64(100+i), status)
	}
	wg.Wait()
	close(errsCh)

	successes, conflicts := 0, 0
	for err := range errsCh {
		switch {
		case err == nil:
			successes++
		case assert.ErrorIs(t, err, errs.ErrAlreadyDecided):
			conflicts++
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, conflicts)

	final, err := repo.GetByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Contains(t, decisions, final.Status)
	require.NotNil(t, final.ReviewedBy)
}

func TestConsumeIsOneShot(t *testing.T) {
	ctx := context.Background()
	gdb := setupTestDB(t)
	repo := repository.NewOverrideRepository(gdb)

	now := time.Now().UTC()
	req := pendingRequest(t, gdb, 1, 2, now.Add(time.Hour))
	require.NoError(t, repo.Decide(ctx, req.ID, db.OverrideStatusApproved, 99, "", now))

	found, err := repo.FindConsumable(ctx, 1, 2)
	require.NoError(t, err)
	require.NotNil(t, found)

	used, err := repo.Consume(ctx, 1, 2, now)
	require.NoError(t, err)
	assert.Equal(t, req.ID, used.ID)
	require.NotNil(t, used.UsedAt)

	// one override carries exactly one booking
	_, err = repo.Consume(ctx, 1, 2, now)
	assert.ErrorIs(t, err, errs.ErrNotFound)

	none, err := repo.FindConsumable(ctx, 1, 2)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestHasActivePending(t *testing.T) {
	ctx := context.Background()
	gdb := setupTestDB(t)
	repo := repository.NewOverrideRepository(gdb)

	now := time.Now().UTC()
	pendingRequest(t, gdb, 1, 2, now.Add(time.Hour))

	exists, err := repo.HasActivePending(ctx, 1, 2, now)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.HasActivePending(ctx, 1, 3, now)
	require.NoError(t, err)
	assert.False(t, exists)
}
