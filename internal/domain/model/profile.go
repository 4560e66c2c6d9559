package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/schamil355/nokhchi-znakomstva-sub002/internal/domain/enums"
)

// Profile is a discoverable user as seen by the matching engine.
type Profile struct {
	UserID      uuid.UUID       `json:"user_id"`
	DisplayName string          `json:"display_name"`
	Birthday    time.Time       `json:"birthday"`
	Gender      enums.Gender    `json:"gender"`
	Intention   enums.Intention `json:"intention"`
	Interests   []string        `json:"interests"`
	Photos      []Photo         `json:"photos"`
	IsPremium   bool            `json:"is_premium"`
	Verified    bool            `json:"verified"`
	Latitude    *float64        `json:"latitude,omitempty"`
	Longitude   *float64        `json:"longitude,omitempty"`
	Country     string          `json:"country,omitempty"`
	RegionCode  string          `json:"region_code,omitempty"`
}

func (p Profile) HasCoordinates() bool {
	return p.Latitude != nil && p.Longitude != nil
}

// HasLocation reports whether any location signal is known for the profile.
func (p Profile) HasLocation() bool {
	return p.HasCoordinates() || p.Country != "" || p.RegionCode != ""
}

// CandidateRow is a raw discovery row as returned by the data store.
type CandidateRow struct {
	UserID      uuid.UUID
	DisplayName string
	Birthday    *time.Time
	Gender      string
	Intention   string
	Interests   []string
	IsPremium   bool
	Verified    bool
	Latitude    *float64
	Longitude   *float64
	Country     string
	RegionCode  string
	Photos      []Photo
	CreatedAt   time.Time
}
