package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type LikeRepo struct {
	pool *pgxpool.Pool
}

func NewLikeRepo(pool *pgxpool.Pool) *LikeRepo {
	return &LikeRepo{pool: pool}
}

// Insert stores a like and reports whether a new row was written. A repeated
// like for the same ordered pair is absorbed and returns false.
func (r *LikeRepo) Insert(ctx context.Context, likerID, likedID uuid.UUID) (bool, error) {
	if likerID == uuid.Nil || likedID == uuid.Nil || likerID == likedID {
		return false, fmt.Errorf("invalid like payload")
	}
	if r.pool == nil {
		return false, fmt.Errorf("postgres pool is nil")
	}

	tag, err := r.pool.Exec(ctx, `
INSERT INTO likes (
	liker_id,
	liked_id,
	created_at
) VALUES ($1, $2, NOW())
ON CONFLICT (liker_id, liked_id) DO NOTHING
`, likerID, likedID)
	if err != nil {
		if IsUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("insert like: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

func (r *LikeRepo) Exists(ctx context.Context, likerID, likedID uuid.UUID) (bool, error) {
	if likerID == uuid.Nil || likedID == uuid.Nil {
		return false, fmt.Errorf("invalid like lookup payload")
	}
	if r.pool == nil {
		return false, fmt.Errorf("postgres pool is nil")
	}

	var one int
	err := r.pool.QueryRow(ctx, `
SELECT 1
FROM likes
WHERE liker_id = $1 AND liked_id = $2
LIMIT 1
`, likerID, likedID).Scan(&one)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("lookup like: %w", err)
	}

	return true, nil
}

type PassRepo struct {
	pool *pgxpool.Pool
}

func NewPassRepo(pool *pgxpool.Pool) *PassRepo {
	return &PassRepo{pool: pool}
}

// Insert records a pass; duplicates are absorbed and return false.
func (r *PassRepo) Insert(ctx context.Context, passerID, passeeID uuid.UUID) (bool, error) {
	if passerID == uuid.Nil || passeeID == uuid.Nil || passerID == passeeID {
		return false, fmt.Errorf("invalid pass payload")
	}
	if r.pool == nil {
		return false, fmt.Errorf("postgres pool is nil")
	}

	tag, err := r.pool.Exec(ctx, `
INSERT INTO passes (
	passer_id,
	passee_id,
	created_at
) VALUES ($1, $2, NOW())
ON CONFLICT (passer_id, passee_id) DO NOTHING
`, passerID, passeeID)
	if err != nil {
		if IsUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("insert pass: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}
