package dto

import "time"

type PhotoViewRequest struct {
	PhotoID int64  `json:"photo_id"`
	Variant string `json:"variant,omitempty"`
}

type PhotoViewResponse struct {
	URL          string `json:"url"`
	ModeReturned string `json:"mode_returned"`
	TTL          int64  `json:"ttl"`
}

type PhotoRegisterRequest struct {
	StoragePath    string `json:"storage_path"`
	VisibilityMode string `json:"visibility_mode,omitempty"`
}

type PhotoResponse struct {
	ID             int64     `json:"id"`
	OwnerID        string    `json:"owner_id"`
	StoragePath    string    `json:"storage_path"`
	BlurredPath    string    `json:"blurred_path,omitempty"`
	VisibilityMode string    `json:"visibility_mode"`
	CreatedAt      time.Time `json:"created_at"`
}

type PhotoVisibilityRequest struct {
	PhotoID        int64  `json:"photo_id"`
	VisibilityMode string `json:"visibility_mode"`
}

type PhotoPermissionRequest struct {
	PhotoID      int64  `json:"photo_id"`
	ViewerID     string `json:"viewer_id"`
	ExpiresInSec *int64 `json:"expires_in_sec,omitempty"`
}

type PhotoPermissionResponse struct {
	PhotoID   int64      `json:"photo_id"`
	ViewerID  string     `json:"viewer_id"`
	ExpiresAt *time.Time `json:"expires_at"`
}

type PhotoRevokeResponse struct {
	Revoked bool `json:"revoked"`
}

type PhotoResolveRequest struct {
	AssetID     *int64 `json:"asset_id,omitempty"`
	StoragePath string `json:"storage_path,omitempty"`
	URL         string `json:"url,omitempty"`
	Retry       bool   `json:"retry,omitempty"`
}

type PhotoResolveResponse struct {
	URL       string     `json:"url"`
	Mode      string     `json:"mode"`
	Blurred   bool       `json:"blurred"`
	ExpiresAt *time.Time `json:"expires_at"`
}
