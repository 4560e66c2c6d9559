package dto

import "time"

type FeedPhotoResponse struct {
	ID             int64  `json:"id"`
	AssetID        *int64 `json:"asset_id,omitempty"`
	URL            string `json:"url,omitempty"`
	VisibilityMode string `json:"visibility_mode"`
}

type FeedProfileResponse struct {
	UserID      string              `json:"user_id"`
	DisplayName string              `json:"display_name"`
	Age         int                 `json:"age"`
	Gender      string              `json:"gender"`
	Intention   string              `json:"intention"`
	Interests   []string            `json:"interests"`
	Verified    bool                `json:"verified"`
	IsPremium   bool                `json:"is_premium"`
	DistanceKM  *float64            `json:"distance_km,omitempty"`
	Photos      []FeedPhotoResponse `json:"photos"`
}

type FeedResponse struct {
	Items       []FeedProfileResponse `json:"items"`
	NextCursor  *string               `json:"next_cursor"`
	GeneratedAt time.Time             `json:"generated_at"`
}

type AgeRangeDTO struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

type FiltersResponse struct {
	Genders       []string    `json:"genders"`
	Intentions    []string    `json:"intentions"`
	AgeRange      AgeRangeDTO `json:"age_range"`
	Region        *string     `json:"region"`
	MinDistanceKM float64     `json:"min_distance_km"`
	MaxDistanceKM float64     `json:"max_distance_km"`
}

type FiltersUpdateRequest struct {
	Genders       []string     `json:"genders,omitempty"`
	Intentions    []string     `json:"intentions,omitempty"`
	AgeRange      *AgeRangeDTO `json:"age_range,omitempty"`
	Region        *string      `json:"region,omitempty"`
	MinDistanceKM *float64     `json:"min_distance_km,omitempty"`
	MaxDistanceKM *float64     `json:"max_distance_km,omitempty"`
}
