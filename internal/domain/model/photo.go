package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/schamil355/nokhchi-znakomstva-sub002/internal/domain/enums"
)

type Photo struct {
	ID             int64                `json:"id"`
	OwnerID        uuid.UUID            `json:"owner_id"`
	URL            string               `json:"url,omitempty"`
	AssetID        *int64               `json:"asset_id,omitempty"`
	StoragePath    string               `json:"storage_path,omitempty"`
	BlurredPath    string               `json:"blurred_path,omitempty"`
	VisibilityMode enums.VisibilityMode `json:"visibility_mode"`
	CreatedAt      time.Time            `json:"created_at"`
}

// PhotoPermission whitelists a viewer for a photo until ExpiresAt (nil means no expiry).
type PhotoPermission struct {
	PhotoID   int64      `json:"photo_id"`
	ViewerID  uuid.UUID  `json:"viewer_id"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func (p PhotoPermission) ActiveAt(now time.Time) bool {
	return p.ExpiresAt == nil || p.ExpiresAt.After(now)
}

// SignedPhotoGrant is a short lived URL for one variant of a photo.
type SignedPhotoGrant struct {
	URL       string          `json:"url"`
	Mode      enums.GrantMode `json:"mode"`
	ExpiresAt time.Time       `json:"expires_at"`
}
