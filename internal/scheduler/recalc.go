package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mentorhub/matching/internal/cache"
	"github.com/mentorhub/matching/internal/db"
	errs "github.com/mentorhub/matching/internal/errors"
	"github.com/mentorhub/matching/internal/repository"
	"github.com/mentorhub/matching/internal/scoring"
)

// Defaults for a bulk run. The delays are deliberate backpressure on the
// shared store, not parallelism knobs.
const (
	DefaultBatchSize           = 50
	DefaultDelayBetweenBatches = 100 * time.Millisecond
	DefaultChunkSize           = 100
	DefaultDelayBetweenChunks  = 10 * time.Millisecond

	// scoreWorkers bounds concurrent score computation inside one chunk.
	// Upserts stay per-chunk regardless.
	scoreWorkers = 8
)

// Options configures one bulk recalculation run. Zero values fall back to
// defaults at invocation.
type Options struct {
	// Limit caps total subjects processed (0 = all). Supports staged rollout.
	Limit int
	// ModifiedAfter restricts the run to subjects changed strictly after the
	// timestamp. Supports incremental runs.
	ModifiedAfter *time.Time
	// BatchSize is subjects per batch.
	BatchSize int
	// DelayBetweenBatches is the pause after each subject batch.
	DelayBetweenBatches time.Duration
	// ChunkSize is candidates per upsert chunk within a subject.
	ChunkSize int
	// DelayBetweenChunks is the pause between candidate chunks.
	DelayBetweenChunks time.Duration
}

func (o Options) withDefaults() (Options, error) {
	if o.Limit < 0 {
		return o, errs.Validation("limit must not be negative")
	}
	if o.DelayBetweenBatches < 0 || o.DelayBetweenChunks < 0 {
		return o, errs.Validation("delays must not be negative")
	}
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.DelayBetweenBatches == 0 {
		o.DelayBetweenBatches = DefaultDelayBetweenBatches
	}
	if o.DelayBetweenChunks == 0 {
		o.DelayBetweenChunks = DefaultDelayBetweenChunks
	}
	return o, nil
}

// Summary reports what a bulk run accomplished.
type Summary struct {
	Processed int   `json:"processed"`
	ElapsedMs int64 `json:"elapsed_ms"`
}

// Recalculator drives the score calculator over the user base and keeps the
// match cache warm. It runs as a single logical pass: sequential batches,
// sequential chunks, bounded sleeps in between. Only score computation
// inside a chunk fans out, and only up to scoreWorkers.
type Recalculator struct {
	users   *repository.UserRepository
	matches *repository.MatchCacheRepository
	redis   *cache.RedisCache
	scorer  scoring.Scorer
	log     *slog.Logger
}

// NewRecalculator wires a recalculator. redisCache may be nil (cmd/recalc
// runs without one); invalidation is then skipped.
func NewRecalculator(
	users *repository.UserRepository,
	matches *repository.MatchCacheRepository,
	redisCache *cache.RedisCache,
	scorer scoring.Scorer,
	log *slog.Logger,
) *Recalculator {
	return &Recalculator{
		users:   users,
		matches: matches,
		redis:   redisCache,
		scorer:  scorer,
		log:     log,
	}
}

// RunAll executes one bulk pass over all (or the selected) subjects.
//
// A single subject's failure never aborts the run: it is logged with enough
// context to replay and the pass moves on. Partial progress always persists
// because writes land per-chunk.
func (r *Recalculator) RunAll(ctx context.Context, opts Options) (Summary, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return Summary{}, err
	}

	start := time.Now()

	subjects, err := r.users.ListSubjects(ctx, opts.Limit, opts.ModifiedAfter)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to list subjects: %w", err)
	}

	r.log.Info("bulk recalculation started",
		"subjects", len(subjects),
		"batch_size", opts.BatchSize,
		"chunk_size", opts.ChunkSize,
		"algorithm_version", r.scorer.Version(),
	)

	processed := 0
	for batchStart := 0; batchStart < len(subjects); batchStart += opts.BatchSize {
		// an operator-triggered stop takes effect within one batch interval
		if err := ctx.Err(); err != nil {
			return r.summarize(processed, start), err
		}

		batchEnd := min(batchStart+opts.BatchSize, len(subjects))
		for i := batchStart; i < batchEnd; i++ {
			subject := subjects[i]
			if _, err := r.processSubject(ctx, &subject, opts.ChunkSize, opts.DelayBetweenChunks); err != nil {
				if ctx.Err() != nil {
					return r.summarize(processed, start), ctx.Err()
				}
				r.log.Error("subject recalculation failed, skipping",
					"subject_id", subject.ID,
					"algorithm_version", r.scorer.Version(),
					"err", err,
				)
				continue
			}
			processed++
		}

		if batchEnd < len(subjects) {
			if err := sleepCtx(ctx, opts.DelayBetweenBatches); err != nil {
				return r.summarize(processed, start), err
			}
		}
	}

	summary := r.summarize(processed, start)
	r.log.Info("bulk recalculation finished", "processed", summary.Processed, "elapsed_ms", summary.ElapsedMs)
	return summary, nil
}

// RecalculateUser synchronously refreshes one subject's cache rows, e.g.
// after a profile edit. Returns the number of candidates scored.
func (r *Recalculator) RecalculateUser(ctx context.Context, userID uint64) (int, error) {
	subject, err := r.users.GetUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	if subject.Role != db.RoleMentor && subject.Role != db.RoleMentee {
		return 0, errs.Validation("user %d has role %q, only mentors and mentees are matched", userID, subject.Role)
	}
	return r.processSubject(ctx, subject, DefaultChunkSize, DefaultDelayBetweenChunks)
}

// processSubject scores the subject against its full candidate pool in
// chunks, upserting each chunk before moving to the next.
func (r *Recalculator) processSubject(ctx context.Context, subject *db.User, chunkSize int, chunkDelay time.Duration) (int, error) {
	candidates, err := r.users.ListCandidates(ctx, candidateRole(subject.Role), subject.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to list candidates for subject %d: %w", subject.ID, err)
	}

	written := 0
	for chunkStart := 0; chunkStart < len(candidates); chunkStart += chunkSize {
		chunkEnd := min(chunkStart+chunkSize, len(candidates))
		chunk := candidates[chunkStart:chunkEnd]

		entries, err := r.scoreChunk(ctx, subject, chunk)
		if err != nil {
			return written, err
		}

		if err := r.matches.BatchUpsert(ctx, entries); err != nil {
			return written, fmt.Errorf(
				"chunk upsert failed for subject %d (algorithm %s, candidates %d-%d): %w",
				subject.ID, r.scorer.Version(), chunk[0].ID, chunk[len(chunk)-1].ID, err,
			)
		}
		written += len(entries)

		if chunkEnd < len(candidates) {
			if err := sleepCtx(ctx, chunkDelay); err != nil {
				return written, err
			}
		}
	}

	if r.redis != nil {
		if err := r.redis.InvalidateTopMatches(ctx, subject.ID, r.scorer.Version()); err != nil {
			r.log.Warn("failed to invalidate top-match cache", "subject_id", subject.ID, "err", err)
		}
	}

	return written, nil
}

// scoreChunk computes one chunk's scores, fanning out across scoreWorkers.
// The scorer is pure, so concurrent computation cannot reorder results:
// entries land at fixed indices.
func (r *Recalculator) scoreChunk(ctx context.Context, subject *db.User, chunk []db.User) ([]db.MatchCacheEntry, error) {
	entries := make([]db.MatchCacheEntry, len(chunk))
	calculatedAt := time.Now().UTC()

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(scoreWorkers)
	for i := range chunk {
		g.Go(func() error {
			candidate := &chunk[i]
			score, explanation := r.scorer.Score(subject, candidate)
			payload, err := json.Marshal(explanation)
			if err != nil {
				return fmt.Errorf("failed to marshal explanation for pair (%d,%d): %w", subject.ID, candidate.ID, err)
			}
			entries[i] = db.MatchCacheEntry{
				SubjectUserID:     subject.ID,
				RecommendedUserID: candidate.ID,
				AlgorithmVersion:  r.scorer.Version(),
				MatchScore:        score,
				Explanation:       payload,
				CalculatedAt:      calculatedAt,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *Recalculator) summarize(processed int, start time.Time) Summary {
	return Summary{Processed: processed, ElapsedMs: time.Since(start).Milliseconds()}
}

// candidateRole maps a subject to its potential-match pool: mentors are
// matched against mentees and vice versa.
func candidateRole(role string) string {
	if role == db.RoleMentor {
		return db.RoleMentee
	}
	return db.RoleMentor
}

// sleepCtx pauses for d but aborts early when ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
