package scoring

import (
	"math"
	"sort"

	"github.com/mentorhub/matching/internal/db"
)

// TagOverlapVersion tags every cache row produced by TagOverlap.
const TagOverlapVersion = "tag_overlap_v1"

// halfScoreWeight is the weighted overlap at which the score curve crosses
// 50. Smaller values saturate the 0-100 range faster.
const halfScoreWeight = 3.0

// TagOverlap is the reference scorer: count shared (category, value) tag
// pairs, weight them by category, and map the weighted count onto 0-100
// through a monotonic saturating curve.
type TagOverlap struct {
	// Weights maps a tag category to its weight. Categories not present
	// weigh 1.
	Weights map[string]int
}

// NewTagOverlap creates the reference scorer with default category weights.
func NewTagOverlap() *TagOverlap {
	return &TagOverlap{
		Weights: map[string]int{
			"industry": 2,
			"goal":     2,
		},
	}
}

func (t *TagOverlap) Version() string { return TagOverlapVersion }

// Score implements Scorer.
//
// An empty tag set on either side is not an error: the pair simply has no
// overlap signal, so the floor score is returned with a reason.
func (t *TagOverlap) Score(subject, candidate *db.User) (int, Explanation) {
	if len(subject.Tags) == 0 || len(candidate.Tags) == 0 {
		return 0, Explanation{
			SharedTags: []SharedTag{},
			Reason:     "one or both users have no profile tags",
		}
	}

	subjectTags := make(map[SharedTag]bool, len(subject.Tags))
	for _, tag := range subject.Tags {
		subjectTags[SharedTag{Category: tag.Category, Value: tag.Value}] = true
	}

	shared := []SharedTag{}
	weighted := 0
	for _, tag := range candidate.Tags {
		key := SharedTag{Category: tag.Category, Value: tag.Value}
		if !subjectTags[key] {
			continue
		}
		shared = append(shared, key)
		weighted += t.weight(tag.Category)
	}

	if len(shared) == 0 {
		return 0, Explanation{
			SharedTags: []SharedTag{},
			Reason:     "no shared profile tags",
		}
	}

	// stable ordering keeps the explanation deterministic
	sort.Slice(shared, func(i, j int) bool {
		if shared[i].Category != shared[j].Category {
			return shared[i].Category < shared[j].Category
		}
		return shared[i].Value < shared[j].Value
	})

	return mapToScore(weighted), Explanation{SharedTags: shared}
}

func (t *TagOverlap) weight(category string) int {
	if w, ok := t.Weights[category]; ok && w > 0 {
		return w
	}
	return 1
}

// mapToScore maps a positive weighted overlap onto (0,100) monotonically:
// w/(w+k) saturates toward 1, so more overlap always scores at least as high
// and the result never leaves the range.
func mapToScore(weighted int) int {
	w := float64(weighted)
	return int(math.Round(100 * w / (w + halfScoreWeight)))
}
