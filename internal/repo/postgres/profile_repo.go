package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/schamil355/nokhchi-znakomstva-sub002/internal/domain/enums"
	"github.com/schamil355/nokhchi-znakomstva-sub002/internal/domain/model"
)

type ProfileRepo struct {
	pool *pgxpool.Pool
}

func NewProfileRepo(pool *pgxpool.Pool) *ProfileRepo {
	return &ProfileRepo{pool: pool}
}

const profileColumns = `
	user_id,
	display_name,
	birthday,
	gender,
	intention,
	interests,
	is_premium,
	verified,
	latitude,
	longitude,
	country,
	region_code`

func (r *ProfileRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (model.Profile, error) {
	if userID == uuid.Nil {
		return model.Profile{}, fmt.Errorf("invalid user id")
	}
	if r.pool == nil {
		return model.Profile{}, fmt.Errorf("postgres pool is nil")
	}

	row, err := scanCandidate(r.pool.QueryRow(ctx, `SELECT`+profileColumns+`
FROM profiles
WHERE user_id = $1
`, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Profile{}, ErrNotFound
		}
		return model.Profile{}, fmt.Errorf("get profile: %w", err)
	}

	return ProfileFromRow(row), nil
}

// SaveLocation stores the latest location signals reported by the user.
func (r *ProfileRepo) SaveLocation(ctx context.Context, userID uuid.UUID, lat, lon *float64, country, regionCode string) error {
	if userID == uuid.Nil {
		return fmt.Errorf("invalid user id")
	}
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}

	tag, err := r.pool.Exec(ctx, `
UPDATE profiles
SET
	latitude = COALESCE($2, latitude),
	longitude = COALESCE($3, longitude),
	country = CASE WHEN $4 = '' THEN country ELSE $4 END,
	region_code = CASE WHEN $5 = '' THEN region_code ELSE $5 END,
	updated_at = NOW()
WHERE user_id = $1
`, userID, lat, lon, strings.TrimSpace(country), strings.ToUpper(strings.TrimSpace(regionCode)))
	if err != nil {
		return fmt.Errorf("save profile location: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ProfileFromRow converts a raw row into a Profile. A missing birthday stays
// zero so eligibility checks fail closed.
func ProfileFromRow(row model.CandidateRow) model.Profile {
	p := model.Profile{
		UserID:      row.UserID,
		DisplayName: row.DisplayName,
		Gender:      enums.Gender(strings.ToLower(strings.TrimSpace(row.Gender))),
		Intention:   enums.Intention(strings.ToLower(strings.TrimSpace(row.Intention))),
		Interests:   append([]string(nil), row.Interests...),
		Photos:      append([]model.Photo(nil), row.Photos...),
		IsPremium:   row.IsPremium,
		Verified:    row.Verified,
		Latitude:    row.Latitude,
		Longitude:   row.Longitude,
		Country:     row.Country,
		RegionCode:  row.RegionCode,
	}
	if row.Birthday != nil {
		p.Birthday = *row.Birthday
	}
	return p
}

// scanCandidate reads profileColumns followed by any extra destinations.
func scanCandidate(row pgx.Row, extra ...any) (model.CandidateRow, error) {
	var (
		item     model.CandidateRow
		birthday *time.Time
	)
	dest := []any{
		&item.UserID,
		&item.DisplayName,
		&birthday,
		&item.Gender,
		&item.Intention,
		&item.Interests,
		&item.IsPremium,
		&item.Verified,
		&item.Latitude,
		&item.Longitude,
		&item.Country,
		&item.RegionCode,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return model.CandidateRow{}, err
	}
	item.Birthday = birthday
	return item, nil
}
