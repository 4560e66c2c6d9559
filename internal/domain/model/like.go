package model

import (
	"time"

	"github.com/google/uuid"
)

type Like struct {
	LikerID   uuid.UUID `json:"liker_id"`
	LikedID   uuid.UUID `json:"liked_id"`
	CreatedAt time.Time `json:"created_at"`
}

type Pass struct {
	PasserID  uuid.UUID `json:"passer_id"`
	PasseeID  uuid.UUID `json:"passee_id"`
	CreatedAt time.Time `json:"created_at"`
}
