package dto

import "time"

type TargetRequest struct {
	TargetID string `json:"target_id"`
}

type MatchResponse struct {
	ID        string    `json:"id"`
	UserA     string    `json:"user_a"`
	UserB     string    `json:"user_b"`
	CreatedAt time.Time `json:"created_at"`
	IsActive  bool      `json:"is_active"`
}

type LikeResponse struct {
	Matched            bool           `json:"matched"`
	Match              *MatchResponse `json:"match,omitempty"`
	CompatibilityScore *float64       `json:"compatibility_score,omitempty"`
}
