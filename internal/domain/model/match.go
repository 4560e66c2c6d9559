package model

import (
	"time"

	"github.com/google/uuid"
)

// Match is the undirected result of two reciprocal likes. UserA sorts before UserB.
type Match struct {
	ID        uuid.UUID `json:"id"`
	UserA     uuid.UUID `json:"user_a"`
	UserB     uuid.UUID `json:"user_b"`
	CreatedAt time.Time `json:"created_at"`
	IsActive  bool      `json:"is_active"`
}

func (m Match) Participants() [2]uuid.UUID {
	return [2]uuid.UUID{m.UserA, m.UserB}
}

func (m Match) Other(userID uuid.UUID) uuid.UUID {
	if m.UserA == userID {
		return m.UserB
	}
	return m.UserA
}

// CanonicalPair orders two user ids so that the same unordered pair always
// maps to the same key.
func CanonicalPair(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if a.String() > b.String() {
		return b, a
	}
	return a, b
}
