package auth

import (
	"context"

	"github.com/google/uuid"
)

type identityContextKey string

const identityKey identityContextKey = "auth_identity"

type Identity struct {
	UserID uuid.UUID
	Role   string
}

func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityKey).(Identity)
	return identity, ok && identity.UserID != uuid.Nil
}
