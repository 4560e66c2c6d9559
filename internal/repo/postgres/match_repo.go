package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/schamil355/nokhchi-znakomstva-sub002/internal/domain/model"
)

type MatchRepo struct {
	pool *pgxpool.Pool
}

func NewMatchRepo(pool *pgxpool.Pool) *MatchRepo {
	return &MatchRepo{pool: pool}
}

// Upsert creates the match for the unordered pair in one statement. The
// unique constraint on the canonical pair serialises concurrent callers: the
// loser waits for the winner's row and gets its id back with created=false.
func (r *MatchRepo) Upsert(ctx context.Context, userID, targetID uuid.UUID) (uuid.UUID, bool, error) {
	if userID == uuid.Nil || targetID == uuid.Nil || userID == targetID {
		return uuid.Nil, false, fmt.Errorf("invalid match payload")
	}
	if r.pool == nil {
		return uuid.Nil, false, fmt.Errorf("postgres pool is nil")
	}

	userA, userB := model.CanonicalPair(userID, targetID)

	var (
		matchID uuid.UUID
		created bool
	)
	err := r.pool.QueryRow(ctx, `
INSERT INTO matches (
	user_a,
	user_b,
	is_active,
	created_at
) VALUES ($1, $2, TRUE, NOW())
ON CONFLICT (user_a, user_b) DO UPDATE SET
	is_active = matches.is_active
RETURNING id, (xmax = 0) AS created
`, userA, userB).Scan(&matchID, &created)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("upsert match: %w", err)
	}

	return matchID, created, nil
}

func (r *MatchRepo) GetByID(ctx context.Context, matchID uuid.UUID) (model.Match, error) {
	if matchID == uuid.Nil {
		return model.Match{}, fmt.Errorf("invalid match id")
	}
	if r.pool == nil {
		return model.Match{}, fmt.Errorf("postgres pool is nil")
	}

	var m model.Match
	err := r.pool.QueryRow(ctx, `
SELECT id, user_a, user_b, created_at, is_active
FROM matches
WHERE id = $1
`, matchID).Scan(&m.ID, &m.UserA, &m.UserB, &m.CreatedAt, &m.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Match{}, ErrNotFound
		}
		return model.Match{}, fmt.Errorf("get match: %w", err)
	}

	return m, nil
}

// IsMatched reports whether an active match exists for the unordered pair.
func (r *MatchRepo) IsMatched(ctx context.Context, userID, targetID uuid.UUID) (bool, error) {
	if r.pool == nil {
		return false, fmt.Errorf("postgres pool is nil")
	}
	userA, userB := model.CanonicalPair(userID, targetID)

	var one int
	err := r.pool.QueryRow(ctx, `
SELECT 1
FROM matches
WHERE user_a = $1 AND user_b = $2 AND is_active = TRUE
`, userA, userB).Scan(&one)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("lookup match: %w", err)
	}
	return true, nil
}

// Deactivate marks the pair's match inactive inside tx.
func (r *MatchRepo) Deactivate(ctx context.Context, tx pgx.Tx, userID, targetID uuid.UUID) (bool, error) {
	if tx == nil {
		return false, fmt.Errorf("transaction is required")
	}
	userA, userB := model.CanonicalPair(userID, targetID)

	tag, err := tx.Exec(ctx, `
UPDATE matches
SET is_active = FALSE
WHERE user_a = $1 AND user_b = $2 AND is_active = TRUE
`, userA, userB)
	if err != nil {
		return false, fmt.Errorf("deactivate match: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
