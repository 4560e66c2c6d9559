package model

import (
	"time"

	"github.com/google/uuid"
)

type Event struct {
	ID         int64          `json:"id"`
	UserID     *uuid.UUID     `json:"user_id,omitempty"`
	Name       string         `json:"name"`
	OccurredAt time.Time      `json:"occurred_at"`
	Payload    map[string]any `json:"payload"`
}
