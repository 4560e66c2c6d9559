package dto

import "time"

type SessionResponse struct {
	UserID    string    `json:"user_id"`
	StartedAt time.Time `json:"started_at"`
}

type OKResponse struct {
	OK bool `json:"ok"`
}
