package rules

import (
	"math"
	"time"

	"github.com/schamil355/nokhchi-znakomstva-sub002/internal/domain/model"
)

const (
	scoreBaseline       = 50.0
	scoreAgePenalty     = 1.5
	scoreSharedInterest = 10.0
	scoreIntentionBonus = 15.0
	scorePremiumBonus   = 5.0
	scoreMin, scoreMax  = 0.0, 100.0
)

// CompatibilityScore rates two profiles on a 0..100 scale. The result is
// symmetric in its arguments. A profile without a usable birthday skips the
// age penalty.
func CompatibilityScore(a, b model.Profile, now time.Time) float64 {
	score := scoreBaseline

	ageA, okA := AgeAt(a.Birthday, now)
	ageB, okB := AgeAt(b.Birthday, now)
	if okA && okB {
		score -= scoreAgePenalty * math.Abs(float64(ageA-ageB))
	}

	score += scoreSharedInterest * float64(SharedInterests(a.Interests, b.Interests))

	if a.Intention != "" && a.Intention == b.Intention {
		score += scoreIntentionBonus
	}
	if a.IsPremium || b.IsPremium {
		score += scorePremiumBonus
	}

	return math.Min(scoreMax, math.Max(scoreMin, score))
}

// SharedInterests counts distinct case-sensitive interests present in both lists.
func SharedInterests(a, b []string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	set := make(map[string]struct{}, len(a))
	for _, item := range a {
		set[item] = struct{}{}
	}

	shared := 0
	for _, item := range b {
		if _, ok := set[item]; ok {
			shared++
			delete(set, item)
		}
	}
	return shared
}
