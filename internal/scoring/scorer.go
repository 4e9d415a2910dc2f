package scoring

import (
	"sort"
	"sync"

	"github.com/mentorhub/matching/internal/db"
)

// SharedTag is one (category, value) attribute both users carry.
type SharedTag struct {
	Category string `json:"category"`
	Value    string `json:"value"`
}

// Explanation is the structured payload persisted alongside every score.
// It is never free text: the UI renders it, ops tooling greps it.
type Explanation struct {
	SharedTags []SharedTag `json:"shared_tags"`
	Reason     string      `json:"reason,omitempty"`
}

// Scorer computes a 0-100 compatibility score for a (subject, candidate)
// pair. Implementations must be pure functions of their inputs: same users,
// same score, same explanation, every time. Scoring is total — missing
// signal yields a floor score with a reason, never an error. Implementations
// must be safe for concurrent use; the scheduler scores chunks in parallel.
//
// Version is an immutable tag persisted with every cache row the scorer
// produces. Callers only ever filter by it; nothing branches on it.
type Scorer interface {
	Version() string
	Score(subject, candidate *db.User) (int, Explanation)
}

var (
	registryMu sync.RWMutex
	registry   = map[string]Scorer{}
)

// Register adds a scorer to the version registry. Called from init or wiring
// code; a duplicate version overwrites.
func Register(s Scorer) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[s.Version()] = s
}

// Lookup returns the scorer for a version, or nil if unknown.
func Lookup(version string) Scorer {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return registry[version]
}

// Versions lists all registered algorithm versions, sorted.
func Versions() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]string, 0, len(registry))
	for v := range registry {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
