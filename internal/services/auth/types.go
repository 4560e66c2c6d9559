package auth

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
)

type AccessClaims struct {
	UserID    uuid.UUID
	Role      string
	ExpiresAt time.Time
}
