package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type BlockRepo struct {
	pool    *pgxpool.Pool
	matches *MatchRepo
}

func NewBlockRepo(pool *pgxpool.Pool, matches *MatchRepo) *BlockRepo {
	return &BlockRepo{pool: pool, matches: matches}
}

// Block records the block and deactivates any match between the pair in one
// transaction. A repeated block is absorbed.
func (r *BlockRepo) Block(ctx context.Context, blockerID, blockedID uuid.UUID) (bool, error) {
	if blockerID == uuid.Nil || blockedID == uuid.Nil || blockerID == blockedID {
		return false, fmt.Errorf("invalid block payload")
	}

	created := false
	err := WithTx(ctx, r.pool, func(txCtx context.Context, tx pgx.Tx) error {
		tag, err := tx.Exec(txCtx, `
INSERT INTO blocks (
	blocker_id,
	blocked_id,
	created_at
) VALUES ($1, $2, NOW())
ON CONFLICT (blocker_id, blocked_id) DO NOTHING
`, blockerID, blockedID)
		if err != nil {
			return fmt.Errorf("insert block: %w", err)
		}
		created = tag.RowsAffected() > 0

		if r.matches != nil {
			if _, err := r.matches.Deactivate(txCtx, tx, blockerID, blockedID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

func (r *BlockRepo) Unblock(ctx context.Context, blockerID, blockedID uuid.UUID) (bool, error) {
	if r.pool == nil {
		return false, fmt.Errorf("postgres pool is nil")
	}
	tag, err := r.pool.Exec(ctx, `
DELETE FROM blocks
WHERE blocker_id = $1 AND blocked_id = $2
`, blockerID, blockedID)
	if err != nil {
		return false, fmt.Errorf("delete block: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// IsBlockedEitherWay reports whether either user blocked the other.
func (r *BlockRepo) IsBlockedEitherWay(ctx context.Context, userID, otherID uuid.UUID) (bool, error) {
	if r.pool == nil {
		return false, fmt.Errorf("postgres pool is nil")
	}

	var one int
	err := r.pool.QueryRow(ctx, `
SELECT 1
FROM blocks
WHERE (blocker_id = $1 AND blocked_id = $2)
	OR (blocker_id = $2 AND blocked_id = $1)
LIMIT 1
`, userID, otherID).Scan(&one)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("lookup block: %w", err)
	}
	return true, nil
}
