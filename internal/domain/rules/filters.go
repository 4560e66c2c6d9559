package rules

import (
	"errors"
	"fmt"
	"math"

	"github.com/schamil355/nokhchi-znakomstva-sub002/internal/domain/enums"
	"github.com/schamil355/nokhchi-znakomstva-sub002/internal/domain/model"
)

const (
	MinAdultAge   = 18
	MaxFilterAge  = 120
	MaxDistanceKM = 20000
)

var ErrInvalidFilters = errors.New("invalid discovery filters")

func ValidateFilters(f model.DiscoveryFilters) error {
	if len(f.Genders) == 0 {
		return fmt.Errorf("genders must not be empty: %w", ErrInvalidFilters)
	}
	for _, g := range f.Genders {
		if !g.Valid() {
			return fmt.Errorf("unknown gender %q: %w", g, ErrInvalidFilters)
		}
	}
	if len(f.Intentions) == 0 {
		return fmt.Errorf("intentions must not be empty: %w", ErrInvalidFilters)
	}
	for _, i := range f.Intentions {
		if !i.Valid() {
			return fmt.Errorf("unknown intention %q: %w", i, ErrInvalidFilters)
		}
	}
	if f.AgeRange.Min < MinAdultAge || f.AgeRange.Max > MaxFilterAge || f.AgeRange.Min > f.AgeRange.Max {
		return fmt.Errorf("age range %d-%d out of bounds: %w", f.AgeRange.Min, f.AgeRange.Max, ErrInvalidFilters)
	}
	if f.Region != "" && !f.Region.Valid() {
		return fmt.Errorf("unknown region %q: %w", f.Region, ErrInvalidFilters)
	}
	if invalidDistance(f.MinDistanceKM) || invalidDistance(f.MaxDistanceKM) {
		return fmt.Errorf("distance out of bounds: %w", ErrInvalidFilters)
	}
	if f.MaxDistanceKM > 0 && f.MinDistanceKM > f.MaxDistanceKM {
		return fmt.Errorf("min distance exceeds max distance: %w", ErrInvalidFilters)
	}
	return nil
}

func invalidDistance(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v > MaxDistanceKM
}

// ParseGenders keeps the known values of raw and reports whether any were dropped.
func ParseGenders(raw []string) ([]enums.Gender, bool) {
	out := make([]enums.Gender, 0, len(raw))
	clean := true
	for _, item := range raw {
		g := enums.Gender(item)
		if !g.Valid() {
			clean = false
			continue
		}
		out = append(out, g)
	}
	return out, clean
}

func ParseIntentions(raw []string) ([]enums.Intention, bool) {
	out := make([]enums.Intention, 0, len(raw))
	clean := true
	for _, item := range raw {
		i := enums.Intention(item)
		if !i.Valid() {
			clean = false
			continue
		}
		out = append(out, i)
	}
	return out, clean
}
