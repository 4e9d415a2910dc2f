package policy

import "github.com/mentorhub/matching/internal/db"

// tierRanks is the ordered reputation ladder. Absent or unknown tiers rank
// as bronze; "unknown" must never mean "allow".
var tierRanks = map[string]int{
	db.TierBronze:   0,
	db.TierSilver:   1,
	db.TierGold:     2,
	db.TierPlatinum: 3,
}

// Rank returns a tier's position on the ladder, treating anything
// unrecognized (including empty) as bronze.
func Rank(tier string) int {
	if r, ok := tierRanks[tier]; ok {
		return r
	}
	return 0
}

// Access is the tier access policy. MaxGap is policy data sourced from
// config, not behavior.
type Access struct {
	MaxGap int
}

// CanBookDirectly decides whether a mentee may book a mentor without an
// override. Denied when the mentor sits more than MaxGap tiers above the
// mentee; a mentee at or above the mentor's tier always passes.
func (a Access) CanBookDirectly(menteeTier, mentorTier string) bool {
	gap := Rank(mentorTier) - Rank(menteeTier)
	return gap <= a.MaxGap
}
