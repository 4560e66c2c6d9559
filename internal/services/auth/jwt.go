package auth

import (
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const defaultRole = "authenticated"

// JWTManager verifies HS256 bearer tokens whose subject is the user uuid, as
// issued by the identity provider. It can also mint tokens for tests and
// local tooling.
type JWTManager struct {
	secret    []byte
	issuer    string
	accessTTL time.Duration
	now       func() time.Time
}

type tokenClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func NewJWTManager(secret, issuer string, accessTTL time.Duration) *JWTManager {
	if accessTTL <= 0 {
		accessTTL = time.Hour
	}

	return &JWTManager{
		secret:    []byte(secret),
		issuer:    strings.TrimSpace(issuer),
		accessTTL: accessTTL,
		now:       time.Now,
	}
}

func (m *JWTManager) GenerateAccessToken(userID uuid.UUID, role string) (string, time.Time, error) {
	if len(m.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("jwt secret is empty")
	}
	if userID == uuid.Nil {
		return "", time.Time{}, fmt.Errorf("invalid access token payload: %w", ErrInvalidInput)
	}
	if strings.TrimSpace(role) == "" {
		role = defaultRole
	}

	now := m.now().UTC()
	expiresAt := now.Add(m.accessTTL)
	claims := tokenClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}

	return signed, expiresAt, nil
}

func (m *JWTManager) ParseAccessToken(raw string) (AccessClaims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || len(m.secret) == 0 {
		return AccessClaims{}, ErrUnauthorized
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}

	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(_ *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, opts...)
	if err != nil || token == nil || !token.Valid {
		return AccessClaims{}, ErrUnauthorized
	}

	userID, parseErr := uuid.Parse(claims.Subject)
	if parseErr != nil || userID == uuid.Nil {
		return AccessClaims{}, ErrUnauthorized
	}

	role := claims.Role
	if role == "" {
		role = defaultRole
	}

	return AccessClaims{
		UserID:    userID,
		Role:      role,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
