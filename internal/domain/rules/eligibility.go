package rules

import (
	"errors"
	"time"

	"github.com/schamil355/nokhchi-znakomstva-sub002/internal/domain/model"
)

var ErrInvalidBirthday = errors.New("invalid birthday")

// CheckEligibility reports whether candidate passes the gender and age filters.
// A missing or future birthday fails closed with ErrInvalidBirthday so callers
// can log the row.
func CheckEligibility(candidate model.Profile, filters model.DiscoveryFilters, now time.Time) (bool, error) {
	age, ok := AgeAt(candidate.Birthday, now)
	if !ok {
		return false, ErrInvalidBirthday
	}
	if !filters.HasGender(candidate.Gender) {
		return false, nil
	}
	return age >= filters.AgeRange.Min && age <= filters.AgeRange.Max, nil
}

func IsEligible(candidate model.Profile, filters model.DiscoveryFilters, now time.Time) bool {
	ok, _ := CheckEligibility(candidate, filters, now)
	return ok
}
