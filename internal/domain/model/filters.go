package model

import (
	"github.com/schamil355/nokhchi-znakomstva-sub002/internal/domain/enums"
)

type AgeRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// DiscoveryFilters is the viewer scoped filter set applied to the feed.
type DiscoveryFilters struct {
	Genders       []enums.Gender    `json:"genders"`
	Intentions    []enums.Intention `json:"intentions"`
	AgeRange      AgeRange          `json:"age_range"`
	Region        enums.Region      `json:"region,omitempty"`
	MinDistanceKM float64           `json:"min_distance_km"`
	MaxDistanceKM float64           `json:"max_distance_km"`
}

func (f DiscoveryFilters) HasGender(g enums.Gender) bool {
	for _, item := range f.Genders {
		if item == g {
			return true
		}
	}
	return false
}

func (f DiscoveryFilters) HasIntention(i enums.Intention) bool {
	for _, item := range f.Intentions {
		if item == i {
			return true
		}
	}
	return false
}

func (f DiscoveryFilters) Clone() DiscoveryFilters {
	out := f
	out.Genders = append([]enums.Gender(nil), f.Genders...)
	out.Intentions = append([]enums.Intention(nil), f.Intentions...)
	return out
}

// Origin is the viewer position used for distance bounds.
type Origin struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}
