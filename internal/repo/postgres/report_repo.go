package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/schamil355/nokhchi-znakomstva-sub002/internal/domain/enums"
)

type ReportRepo struct {
	pool *pgxpool.Pool
}

func NewReportRepo(pool *pgxpool.Pool) *ReportRepo {
	return &ReportRepo{pool: pool}
}

func (r *ReportRepo) Create(ctx context.Context, reporterID, reportedID uuid.UUID, reason enums.ReportReason, details string) (int64, error) {
	if reporterID == uuid.Nil || reportedID == uuid.Nil || reporterID == reportedID || !reason.Valid() {
		return 0, fmt.Errorf("invalid report payload")
	}
	if r.pool == nil {
		return 0, fmt.Errorf("postgres pool is nil")
	}

	var id int64
	if err := r.pool.QueryRow(ctx, `
INSERT INTO reports (
	reporter_id,
	reported_id,
	reason,
	details,
	created_at
) VALUES ($1, $2, $3, $4, NOW())
RETURNING id
`, reporterID, reportedID, string(reason), strings.TrimSpace(details)).Scan(&id); err != nil {
		return 0, fmt.Errorf("create report: %w", err)
	}
	return id, nil
}
