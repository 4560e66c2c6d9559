package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/schamil355/nokhchi-znakomstva-sub002/internal/domain/enums"
	"github.com/schamil355/nokhchi-znakomstva-sub002/internal/domain/model"
	"github.com/schamil355/nokhchi-znakomstva-sub002/internal/services/guardedphoto"
	photossvc "github.com/schamil355/nokhchi-znakomstva-sub002/internal/services/photos"
	sessionsvc "github.com/schamil355/nokhchi-znakomstva-sub002/internal/services/session"
	"github.com/schamil355/nokhchi-znakomstva-sub002/internal/transport/http/dto"
	httperrors "github.com/schamil355/nokhchi-znakomstva-sub002/internal/transport/http/errors"
)

type PhotosHandler struct {
	service  *photossvc.Service
	sessions *sessionsvc.Manager
	now      func() time.Time
}

func NewPhotosHandler(service *photossvc.Service, sessions *sessionsvc.Manager) *PhotosHandler {
	return &PhotosHandler{service: service, sessions: sessions, now: time.Now}
}

// View serves POST /v1/photos/view.
func (h *PhotosHandler) View(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.service == nil {
		writeInternal(w, "PHOTOS_SERVICE_UNAVAILABLE", "photos service is unavailable")
		return
	}

	var req dto.PhotoViewRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}
	mode := enums.GrantModeOriginal
	if req.Variant != "" {
		mode = enums.GrantMode(req.Variant)
		if !mode.Valid() {
			writeBadRequest(w, "VALIDATION_ERROR", "variant must be original or blur")
			return
		}
	}

	grant, err := h.service.View(r.Context(), identity.UserID, req.PhotoID, mode)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.PhotoViewResponse{
		URL:          grant.URL,
		ModeReturned: string(grant.Mode),
		TTL:          int64(grant.TTL / time.Second),
	})
}

// Register serves POST /v1/photos/register.
func (h *PhotosHandler) Register(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.service == nil {
		writeInternal(w, "PHOTOS_SERVICE_UNAVAILABLE", "photos service is unavailable")
		return
	}

	var req dto.PhotoRegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}
	visibility := enums.VisibilityBlurredUntilMatch
	if req.VisibilityMode != "" {
		visibility = enums.VisibilityMode(req.VisibilityMode)
	}

	photo, err := h.service.Register(r.Context(), identity.UserID, req.StoragePath, visibility)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httperrors.Write(w, http.StatusCreated, mapPhoto(photo))
}

// Visibility serves POST /v1/photos/visibility.
func (h *PhotosHandler) Visibility(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.service == nil {
		writeInternal(w, "PHOTOS_SERVICE_UNAVAILABLE", "photos service is unavailable")
		return
	}

	var req dto.PhotoVisibilityRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	if err := h.service.ChangeVisibility(r.Context(), identity.UserID, req.PhotoID, enums.VisibilityMode(req.VisibilityMode)); err != nil {
		h.writeError(w, r, err)
		return
	}
	httperrors.Write(w, http.StatusOK, dto.OKResponse{OK: true})
}

// Grant serves POST /v1/photos/permissions.
func (h *PhotosHandler) Grant(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.service == nil {
		writeInternal(w, "PHOTOS_SERVICE_UNAVAILABLE", "photos service is unavailable")
		return
	}

	var req dto.PhotoPermissionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}
	viewerID, ok := parseUUID(req.ViewerID)
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "viewer_id must be a uuid")
		return
	}
	var expiresIn time.Duration
	if req.ExpiresInSec != nil {
		if *req.ExpiresInSec <= 0 {
			writeBadRequest(w, "VALIDATION_ERROR", "expires_in_sec must be positive")
			return
		}
		expiresIn = time.Duration(*req.ExpiresInSec) * time.Second
	}

	perm, err := h.service.GrantAccess(r.Context(), identity.UserID, req.PhotoID, viewerID, expiresIn)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httperrors.Write(w, http.StatusOK, dto.PhotoPermissionResponse{
		PhotoID:   perm.PhotoID,
		ViewerID:  perm.ViewerID.String(),
		ExpiresAt: perm.ExpiresAt,
	})
}

// Revoke serves DELETE /v1/photos/permissions.
func (h *PhotosHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.service == nil {
		writeInternal(w, "PHOTOS_SERVICE_UNAVAILABLE", "photos service is unavailable")
		return
	}

	var req dto.PhotoPermissionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}
	viewerID, ok := parseUUID(req.ViewerID)
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "viewer_id must be a uuid")
		return
	}

	revoked, err := h.service.RevokeAccess(r.Context(), identity.UserID, req.PhotoID, viewerID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httperrors.Write(w, http.StatusOK, dto.PhotoRevokeResponse{Revoked: revoked})
}

// Delete serves DELETE /v1/photos/{photoID}.
func (h *PhotosHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.service == nil {
		writeInternal(w, "PHOTOS_SERVICE_UNAVAILABLE", "photos service is unavailable")
		return
	}

	photoID, err := strconv.ParseInt(chi.URLParam(r, "photoID"), 10, 64)
	if err != nil || photoID <= 0 {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid photo id")
		return
	}

	if err := h.service.Delete(r.Context(), identity.UserID, photoID); err != nil {
		h.writeError(w, r, err)
		return
	}
	httperrors.Write(w, http.StatusOK, dto.OKResponse{OK: true})
}

// Resolve serves POST /v1/photos/resolve through the caller's session
// resolver, which keeps the signed url fresh between calls.
func (h *PhotosHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.sessions == nil {
		writeInternal(w, "SESSION_SERVICE_UNAVAILABLE", "session service is unavailable")
		return
	}

	var req dto.PhotoResolveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	resolver, err := h.sessions.Resolver(identity.UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	ref := guardedphoto.Ref{AssetID: req.AssetID, StoragePath: req.StoragePath, URL: req.URL}
	var grant guardedphoto.Grant
	if req.Retry {
		grant, err = resolver.Retry(r.Context(), ref)
	} else {
		grant, err = resolver.Resolve(r.Context(), ref)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := dto.PhotoResolveResponse{
		URL:     grant.URL,
		Mode:    string(grant.Mode),
		Blurred: grant.Blurred(),
	}
	if !grant.ExpiresAt.IsZero() {
		expiresAt := grant.ExpiresAt.UTC()
		resp.ExpiresAt = &expiresAt
	}
	httperrors.Write(w, http.StatusOK, resp)
}

func (h *PhotosHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var limited photossvc.RateLimitedError
	if errors.As(err, &limited) {
		until := h.now().Add(time.Duration(limited.RetryAfterSec) * time.Second).UTC()
		httperrors.Write(w, http.StatusTooManyRequests, httperrors.RateLimitError{
			Code:          "RATE_LIMITED",
			Message:       "too many photo views",
			RetryAfterSec: limited.RetryAfterSec,
			CooldownUntil: &until,
		})
		return
	}
	if writeThrottled(w, r, err) {
		return
	}

	switch {
	case errors.Is(err, photossvc.ErrValidation), errors.Is(err, guardedphoto.ErrNoSource):
		writeBadRequest(w, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, photossvc.ErrNotFound):
		writeNotFound(w, "PHOTO_NOT_FOUND", "photo not found")
	case errors.Is(err, photossvc.ErrSourceMissing):
		writeNotFound(w, "PHOTO_SOURCE_MISSING", "photo source missing")
	case errors.Is(err, photossvc.ErrNotOwner):
		writeForbidden(w, "NOT_OWNER", "photo belongs to another user")
	case errors.Is(err, photossvc.ErrForeignPath):
		writeForbidden(w, "CANNOT_REGISTER_FOREIGN_PHOTO", "storage path belongs to another user")
	case errors.Is(err, photossvc.ErrBlocked):
		writeForbidden(w, "BLOCKED", "photo is not available")
	case errors.Is(err, photossvc.ErrNoBlurredVariant):
		writeForbidden(w, "NO_BLURRED_VARIANT", "no blurred variant available")
	case errors.Is(err, sessionsvc.ErrNoSession):
		httperrors.Write(w, http.StatusConflict, httperrors.APIError{
			Code:    "SESSION_REQUIRED",
			Message: "start a session first",
		})
	case errors.Is(err, guardedphoto.ErrResolverClosed), errors.Is(err, sessionsvc.ErrManagerClosed):
		httperrors.Write(w, http.StatusConflict, httperrors.APIError{
			Code:    "SESSION_ENDED",
			Message: "session ended",
		})
	default:
		writeInternal(w, "INTERNAL_ERROR", "photo request failed")
	}
}

func mapPhoto(p model.Photo) dto.PhotoResponse {
	return dto.PhotoResponse{
		ID:             p.ID,
		OwnerID:        p.OwnerID.String(),
		StoragePath:    p.StoragePath,
		BlurredPath:    p.BlurredPath,
		VisibilityMode: string(p.VisibilityMode),
		CreatedAt:      p.CreatedAt,
	}
}
