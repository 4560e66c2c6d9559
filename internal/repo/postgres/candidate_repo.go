package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/schamil355/nokhchi-znakomstva-sub002/internal/domain/model"
)

const defaultCandidateLimit = 50

type CandidateRepo struct {
	pool   *pgxpool.Pool
	photos *PhotoRepo
}

func NewCandidateRepo(pool *pgxpool.Pool, photos *PhotoRepo) *CandidateRepo {
	return &CandidateRepo{pool: pool, photos: photos}
}

// CandidateQuery narrows the discovery page on the database side. Birthday
// bounds are inclusive and derived from the viewer's age range.
type CandidateQuery struct {
	ViewerID       uuid.UUID
	Genders        []string
	Intentions     []string
	BornAfter      time.Time
	BornBefore     time.Time
	AfterCreatedAt *time.Time
	AfterUserID    uuid.UUID
	Limit          int
}

// ListCandidates returns one page of discovery rows. The viewer, users they
// already liked or passed, users blocked in either direction, and existing
// matches are excluded. Rows keep creation order so pages are stable.
func (r *CandidateRepo) ListCandidates(ctx context.Context, q CandidateQuery) ([]model.CandidateRow, error) {
	if q.ViewerID == uuid.Nil {
		return nil, fmt.Errorf("invalid viewer id")
	}
	if q.Limit <= 0 {
		q.Limit = defaultCandidateLimit
	}
	if r.pool == nil {
		return []model.CandidateRow{}, nil
	}

	var afterCreated any
	if q.AfterCreatedAt != nil {
		afterCreated = q.AfterCreatedAt.UTC()
	}

	rows, err := r.pool.Query(ctx, `
SELECT`+profileColumns+`, created_at
FROM profiles p
WHERE
	p.user_id <> $1
	AND (cardinality($2::text[]) = 0 OR p.gender = ANY($2::text[]))
	AND (cardinality($3::text[]) = 0 OR p.intention = ANY($3::text[]))
	AND (p.birthday IS NULL OR p.birthday BETWEEN $4::date AND $5::date)
	AND ($6::timestamptz IS NULL OR (p.created_at, p.user_id) > ($6::timestamptz, $7::uuid))
	AND NOT EXISTS (SELECT 1 FROM likes l WHERE l.liker_id = $1 AND l.liked_id = p.user_id)
	AND NOT EXISTS (SELECT 1 FROM passes s WHERE s.passer_id = $1 AND s.passee_id = p.user_id)
	AND NOT EXISTS (
		SELECT 1 FROM blocks b
		WHERE (b.blocker_id = $1 AND b.blocked_id = p.user_id)
			OR (b.blocker_id = p.user_id AND b.blocked_id = $1)
	)
	AND NOT EXISTS (
		SELECT 1 FROM matches m
		WHERE m.is_active = TRUE
			AND ((m.user_a = $1 AND m.user_b = p.user_id) OR (m.user_a = p.user_id AND m.user_b = $1))
	)
ORDER BY p.created_at, p.user_id
LIMIT $8
`, q.ViewerID, nonNil(q.Genders), nonNil(q.Intentions), q.BornAfter, q.BornBefore, afterCreated, q.AfterUserID, q.Limit)
	if err != nil {
		return nil, fmt.Errorf("list discovery candidates: %w", err)
	}
	defer rows.Close()

	items := make([]model.CandidateRow, 0, q.Limit)
	ids := make([]uuid.UUID, 0, q.Limit)
	for rows.Next() {
		var createdAt time.Time
		item, err := scanCandidate(rows, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("scan discovery candidate: %w", err)
		}
		item.CreatedAt = createdAt
		items = append(items, item)
		ids = append(ids, item.UserID)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate discovery candidates: %w", rows.Err())
	}

	if r.photos != nil && len(ids) > 0 {
		byOwner, err := r.photos.ListByOwners(ctx, ids)
		if err != nil {
			return nil, err
		}
		for i := range items {
			items[i].Photos = byOwner[items[i].UserID]
		}
	}

	return items, nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
