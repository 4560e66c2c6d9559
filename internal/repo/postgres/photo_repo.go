package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/schamil355/nokhchi-znakomstva-sub002/internal/domain/enums"
	"github.com/schamil355/nokhchi-znakomstva-sub002/internal/domain/model"
)

type PhotoRepo struct {
	pool *pgxpool.Pool
}

func NewPhotoRepo(pool *pgxpool.Pool) *PhotoRepo {
	return &PhotoRepo{pool: pool}
}

const photoColumns = `id, owner_id, storage_path, blurred_path, public_url, visibility_mode, created_at`

func (r *PhotoRepo) Create(ctx context.Context, photo model.Photo) (model.Photo, error) {
	if photo.OwnerID == uuid.Nil || photo.StoragePath == "" {
		return model.Photo{}, fmt.Errorf("invalid photo payload")
	}
	if !photo.VisibilityMode.Valid() {
		return model.Photo{}, fmt.Errorf("invalid photo visibility %q", photo.VisibilityMode)
	}
	if r.pool == nil {
		return model.Photo{}, fmt.Errorf("postgres pool is nil")
	}

	saved, err := scanPhoto(r.pool.QueryRow(ctx, `
INSERT INTO photos (
	owner_id,
	storage_path,
	blurred_path,
	public_url,
	visibility_mode,
	sort_order,
	created_at
) VALUES (
	$1, $2, $3, $4, $5,
	(SELECT COALESCE(MAX(sort_order) + 1, 0) FROM photos WHERE owner_id = $1),
	NOW()
)
RETURNING `+photoColumns, photo.OwnerID, photo.StoragePath, photo.BlurredPath, photo.URL, string(photo.VisibilityMode)))
	if err != nil {
		return model.Photo{}, fmt.Errorf("create photo: %w", err)
	}
	return saved, nil
}

func (r *PhotoRepo) GetByID(ctx context.Context, photoID int64) (model.Photo, error) {
	if photoID <= 0 {
		return model.Photo{}, fmt.Errorf("invalid photo id")
	}
	if r.pool == nil {
		return model.Photo{}, fmt.Errorf("postgres pool is nil")
	}

	photo, err := scanPhoto(r.pool.QueryRow(ctx, `SELECT `+photoColumns+` FROM photos WHERE id = $1`, photoID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Photo{}, ErrNotFound
		}
		return model.Photo{}, fmt.Errorf("get photo: %w", err)
	}
	return photo, nil
}

func (r *PhotoRepo) SetBlurredPath(ctx context.Context, photoID int64, path string) error {
	if photoID <= 0 {
		return fmt.Errorf("invalid photo id")
	}
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	tag, err := r.pool.Exec(ctx, `UPDATE photos SET blurred_path = $2 WHERE id = $1`, photoID, path)
	if err != nil {
		return fmt.Errorf("set blurred path: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateVisibility changes the mode of a photo owned by ownerID.
func (r *PhotoRepo) UpdateVisibility(ctx context.Context, ownerID uuid.UUID, photoID int64, mode enums.VisibilityMode) error {
	if ownerID == uuid.Nil || photoID <= 0 || !mode.Valid() {
		return fmt.Errorf("invalid photo visibility payload")
	}
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	tag, err := r.pool.Exec(ctx, `
UPDATE photos
SET visibility_mode = $3
WHERE id = $2 AND owner_id = $1
`, ownerID, photoID, string(mode))
	if err != nil {
		return fmt.Errorf("update photo visibility: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByOwners groups photos by owner in display order.
func (r *PhotoRepo) ListByOwners(ctx context.Context, ownerIDs []uuid.UUID) (map[uuid.UUID][]model.Photo, error) {
	out := make(map[uuid.UUID][]model.Photo, len(ownerIDs))
	if len(ownerIDs) == 0 || r.pool == nil {
		return out, nil
	}

	ids := make([]string, 0, len(ownerIDs))
	for _, id := range ownerIDs {
		ids = append(ids, id.String())
	}

	rows, err := r.pool.Query(ctx, `
SELECT `+photoColumns+`
FROM photos
WHERE owner_id = ANY($1::uuid[])
ORDER BY owner_id, sort_order, id
`, ids)
	if err != nil {
		return nil, fmt.Errorf("list photos by owners: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		photo, err := scanPhoto(rows)
		if err != nil {
			return nil, fmt.Errorf("scan photo: %w", err)
		}
		out[photo.OwnerID] = append(out[photo.OwnerID], photo)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate photos: %w", rows.Err())
	}
	return out, nil
}

func (r *PhotoRepo) GetPermission(ctx context.Context, photoID int64, viewerID uuid.UUID) (model.PhotoPermission, bool, error) {
	if r.pool == nil {
		return model.PhotoPermission{}, false, fmt.Errorf("postgres pool is nil")
	}

	perm := model.PhotoPermission{PhotoID: photoID, ViewerID: viewerID}
	err := r.pool.QueryRow(ctx, `
SELECT expires_at
FROM photo_permissions
WHERE photo_id = $1 AND viewer_id = $2
`, photoID, viewerID).Scan(&perm.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.PhotoPermission{}, false, nil
		}
		return model.PhotoPermission{}, false, fmt.Errorf("get photo permission: %w", err)
	}
	return perm, true, nil
}

func (r *PhotoRepo) UpsertPermission(ctx context.Context, perm model.PhotoPermission) error {
	if perm.PhotoID <= 0 || perm.ViewerID == uuid.Nil {
		return fmt.Errorf("invalid photo permission payload")
	}
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}

	var expiresAt any
	if perm.ExpiresAt != nil {
		expiresAt = perm.ExpiresAt.UTC()
	}
	if _, err := r.pool.Exec(ctx, `
INSERT INTO photo_permissions (
	photo_id,
	viewer_id,
	expires_at,
	created_at
) VALUES ($1, $2, $3, NOW())
ON CONFLICT (photo_id, viewer_id) DO UPDATE SET
	expires_at = EXCLUDED.expires_at
`, perm.PhotoID, perm.ViewerID, expiresAt); err != nil {
		return fmt.Errorf("upsert photo permission: %w", err)
	}
	return nil
}

func (r *PhotoRepo) DeletePermission(ctx context.Context, photoID int64, viewerID uuid.UUID) (bool, error) {
	if r.pool == nil {
		return false, fmt.Errorf("postgres pool is nil")
	}
	tag, err := r.pool.Exec(ctx, `
DELETE FROM photo_permissions
WHERE photo_id = $1 AND viewer_id = $2
`, photoID, viewerID)
	if err != nil {
		return false, fmt.Errorf("delete photo permission: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteExpiredPermissions drops whitelist entries that expired before cutoff.
func (r *PhotoRepo) DeleteExpiredPermissions(ctx context.Context, cutoff time.Time) (int64, error) {
	if r.pool == nil {
		return 0, nil
	}
	tag, err := r.pool.Exec(ctx, `
DELETE FROM photo_permissions
WHERE expires_at IS NOT NULL AND expires_at < $1
`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired photo permissions: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanPhoto(row pgx.Row) (model.Photo, error) {
	var (
		photo model.Photo
		mode  string
	)
	if err := row.Scan(
		&photo.ID,
		&photo.OwnerID,
		&photo.StoragePath,
		&photo.BlurredPath,
		&photo.URL,
		&mode,
		&photo.CreatedAt,
	); err != nil {
		return model.Photo{}, err
	}
	photo.VisibilityMode = enums.VisibilityMode(mode)
	id := photo.ID
	photo.AssetID = &id
	return photo, nil
}

// Delete removes a photo owned by ownerID together with its permissions and
// returns the deleted row so the caller can drop the stored objects.
func (r *PhotoRepo) Delete(ctx context.Context, ownerID uuid.UUID, photoID int64) (model.Photo, error) {
	if ownerID == uuid.Nil || photoID <= 0 {
		return model.Photo{}, fmt.Errorf("invalid photo delete payload")
	}
	if r.pool == nil {
		return model.Photo{}, fmt.Errorf("postgres pool is nil")
	}

	photo, err := scanPhoto(r.pool.QueryRow(ctx, `
DELETE FROM photos
WHERE id = $2 AND owner_id = $1
RETURNING `+photoColumns, ownerID, photoID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Photo{}, ErrNotFound
		}
		return model.Photo{}, fmt.Errorf("delete photo: %w", err)
	}
	return photo, nil
}
