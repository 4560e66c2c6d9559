package photos

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/schamil355/nokhchi-znakomstva-sub002/internal/domain/enums"
	"github.com/schamil355/nokhchi-znakomstva-sub002/internal/domain/model"
	"github.com/schamil355/nokhchi-znakomstva-sub002/internal/pkg/validate"
	pgrepo "github.com/schamil355/nokhchi-znakomstva-sub002/internal/repo/postgres"
	"github.com/schamil355/nokhchi-znakomstva-sub002/internal/services/media"
	ratesvc "github.com/schamil355/nokhchi-znakomstva-sub002/internal/services/rate"
)

var (
	ErrValidation       = errors.New("validation error")
	ErrNotFound         = errors.New("photo not found")
	ErrNotOwner         = errors.New("not photo owner")
	ErrForeignPath      = errors.New("cannot register foreign photo")
	ErrBlocked          = errors.New("blocked")
	ErrNoBlurredVariant = errors.New("no blurred variant")
	ErrSourceMissing    = errors.New("photo source missing")
	ErrDependenciesNil  = errors.New("photo dependencies are not configured")
)

const (
	defaultGrantTTL       = 120 * time.Second
	defaultRequestTimeout = 15 * time.Second
	blurredContentType    = "image/jpeg"
)

type PhotoStore interface {
	Create(ctx context.Context, photo model.Photo) (model.Photo, error)
	GetByID(ctx context.Context, photoID int64) (model.Photo, error)
	UpdateVisibility(ctx context.Context, ownerID uuid.UUID, photoID int64, mode enums.VisibilityMode) error
	Delete(ctx context.Context, ownerID uuid.UUID, photoID int64) (model.Photo, error)
	GetPermission(ctx context.Context, photoID int64, viewerID uuid.UUID) (model.PhotoPermission, bool, error)
	UpsertPermission(ctx context.Context, perm model.PhotoPermission) error
	DeletePermission(ctx context.Context, photoID int64, viewerID uuid.UUID) (bool, error)
}

type MatchChecker interface {
	IsMatched(ctx context.Context, userID, targetID uuid.UUID) (bool, error)
}

type BlockChecker interface {
	IsBlockedEitherWay(ctx context.Context, userID, otherID uuid.UUID) (bool, error)
}

// ViewGuard caps how often a viewer may sign the same photo.
type ViewGuard interface {
	Allow(ctx context.Context, key string) (int64, bool, error)
}

type ObjectStorage interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}

type Blurrer interface {
	Blur(src io.Reader) ([]byte, error)
}

// RateLimitedError is returned when the view guard rejects a request.
type RateLimitedError struct {
	RetryAfterSec int64
}

func (e RateLimitedError) Error() string {
	return fmt.Sprintf("photo view rate limited, retry after %ds", e.RetryAfterSec)
}

type Config struct {
	GrantTTL       time.Duration
	RequestTimeout time.Duration
}

// Grant is a signed URL for one variant of a photo.
type Grant struct {
	PhotoID   int64
	URL       string
	Mode      enums.GrantMode
	TTL       time.Duration
	ExpiresAt time.Time
}

type Dependencies struct {
	Photos    PhotoStore
	Matches   MatchChecker
	Blocks    BlockChecker
	ViewGuard ViewGuard
	Originals ObjectStorage
	Blurred   ObjectStorage
	Blurrer   Blurrer
	Limits    *ratesvc.Registry
	Logger    *zap.Logger
}

type Service struct {
	photos    PhotoStore
	matches   MatchChecker
	blocks    BlockChecker
	viewGuard ViewGuard
	originals ObjectStorage
	blurred   ObjectStorage
	blurrer   Blurrer
	limits    *ratesvc.Registry
	logger    *zap.Logger
	cfg       Config
	now       func() time.Time
}

func NewService(deps Dependencies, cfg Config) *Service {
	if cfg.GrantTTL <= 0 {
		cfg.GrantTTL = defaultGrantTTL
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		photos:    deps.Photos,
		matches:   deps.Matches,
		blocks:    deps.Blocks,
		viewGuard: deps.ViewGuard,
		originals: deps.Originals,
		blurred:   deps.Blurred,
		blurrer:   deps.Blurrer,
		limits:    deps.Limits,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// View signs the variant of photoID the viewer is entitled to. A request for
// the original by a viewer without access is downgraded to the blurred
// variant; that is a successful result, not an error. Signing is throttled
// per viewer.
func (s *Service) View(ctx context.Context, viewerID uuid.UUID, photoID int64, requested enums.GrantMode) (Grant, error) {
	if viewerID == uuid.Nil || photoID <= 0 {
		return Grant{}, ErrValidation
	}
	if requested == "" {
		requested = enums.GrantModeOriginal
	}
	if !requested.Valid() {
		return Grant{}, ErrValidation
	}
	if s.photos == nil || s.originals == nil {
		return Grant{}, ErrDependenciesNil
	}

	if s.limits == nil {
		return s.view(ctx, viewerID, photoID, requested)
	}
	return ratesvc.Throttle(ctx, s.limits, ratesvc.ActionPhotoView, viewerID, func(ctx context.Context) (Grant, error) {
		return s.view(ctx, viewerID, photoID, requested)
	})
}

func (s *Service) view(ctx context.Context, viewerID uuid.UUID, photoID int64, requested enums.GrantMode) (Grant, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	if s.viewGuard != nil {
		retryAfter, allowed, err := s.viewGuard.Allow(ctx, fmt.Sprintf("photo:view:%s:%d", viewerID, photoID))
		if err != nil {
			return Grant{}, fmt.Errorf("check photo view limit: %w", err)
		}
		if !allowed {
			return Grant{}, RateLimitedError{RetryAfterSec: retryAfter}
		}
	}

	photo, err := s.getPhoto(ctx, photoID)
	if err != nil {
		return Grant{}, err
	}

	if viewerID != photo.OwnerID && s.blocks != nil {
		blocked, err := s.blocks.IsBlockedEitherWay(ctx, viewerID, photo.OwnerID)
		if err != nil {
			return Grant{}, fmt.Errorf("check blocks: %w", err)
		}
		if blocked {
			return Grant{}, ErrBlocked
		}
	}

	entitled, err := s.canViewOriginal(ctx, viewerID, photo)
	if err != nil {
		return Grant{}, err
	}

	mode := requested
	if requested == enums.GrantModeOriginal && !entitled {
		mode = enums.GrantModeBlur
	}
	if requested == enums.GrantModeBlur && !entitled && photo.BlurredPath == "" {
		return Grant{}, ErrNoBlurredVariant
	}
	if mode == enums.GrantModeBlur && photo.BlurredPath == "" && entitled {
		mode = enums.GrantModeOriginal
	}

	storage, key := s.originals, photo.StoragePath
	if mode == enums.GrantModeBlur {
		storage, key = s.blurred, photo.BlurredPath
	}
	if storage == nil || key == "" {
		return Grant{}, ErrSourceMissing
	}

	signed, err := storage.PresignGet(ctx, key, s.cfg.GrantTTL)
	if err != nil {
		return Grant{}, fmt.Errorf("sign photo url: %w", err)
	}

	return Grant{
		PhotoID:   photo.ID,
		URL:       signed,
		Mode:      mode,
		TTL:       s.cfg.GrantTTL,
		ExpiresAt: s.now().UTC().Add(s.cfg.GrantTTL),
	}, nil
}

// Register records an uploaded original stored under "<owner>/..." and
// stores its blurred variant next to it.
func (s *Service) Register(ctx context.Context, ownerID uuid.UUID, storagePath string, visibility enums.VisibilityMode) (model.Photo, error) {
	storagePath = strings.TrimSpace(storagePath)
	if ownerID == uuid.Nil || !validate.ObjectKey(storagePath) {
		return model.Photo{}, ErrValidation
	}
	if visibility == "" {
		visibility = enums.VisibilityPublic
	}
	if !visibility.Valid() {
		return model.Photo{}, ErrValidation
	}
	if !validate.OwnedKey(storagePath, ownerID.String()) {
		return model.Photo{}, ErrForeignPath
	}
	if s.photos == nil || s.originals == nil || s.blurred == nil || s.blurrer == nil {
		return model.Photo{}, ErrDependenciesNil
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	original, err := s.originals.Get(ctx, storagePath)
	if err != nil {
		return model.Photo{}, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	blurred, err := s.blurrer.Blur(original)
	_ = original.Close()
	if err != nil {
		return model.Photo{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	blurredPath := media.BlurredPath(storagePath)
	if err := s.blurred.Put(ctx, blurredPath, bytes.NewReader(blurred), int64(len(blurred)), blurredContentType); err != nil {
		return model.Photo{}, fmt.Errorf("upload blurred variant: %w", err)
	}

	photo, err := s.photos.Create(ctx, model.Photo{
		OwnerID:        ownerID,
		StoragePath:    storagePath,
		BlurredPath:    blurredPath,
		VisibilityMode: visibility,
	})
	if err != nil {
		if delErr := s.blurred.Delete(ctx, blurredPath); delErr != nil {
			s.logger.Warn("failed to drop orphan blurred variant", zap.String("path", blurredPath), zap.Error(delErr))
		}
		return model.Photo{}, fmt.Errorf("create photo: %w", err)
	}

	return photo, nil
}

func (s *Service) ChangeVisibility(ctx context.Context, ownerID uuid.UUID, photoID int64, mode enums.VisibilityMode) error {
	if ownerID == uuid.Nil || photoID <= 0 || !mode.Valid() {
		return ErrValidation
	}
	if s.photos == nil {
		return ErrDependenciesNil
	}

	if err := s.photos.UpdateVisibility(ctx, ownerID, photoID, mode); err != nil {
		if errors.Is(err, pgrepo.ErrNotFound) {
			return s.ownershipError(ctx, photoID)
		}
		return fmt.Errorf("update visibility: %w", err)
	}
	return nil
}

// GrantAccess whitelists viewerID for the owner's photo. A non-positive
// expiresIn grants access until revoked.
func (s *Service) GrantAccess(ctx context.Context, ownerID uuid.UUID, photoID int64, viewerID uuid.UUID, expiresIn time.Duration) (model.PhotoPermission, error) {
	if ownerID == uuid.Nil || viewerID == uuid.Nil || photoID <= 0 || ownerID == viewerID {
		return model.PhotoPermission{}, ErrValidation
	}
	if s.photos == nil {
		return model.PhotoPermission{}, ErrDependenciesNil
	}

	if _, err := s.ownedPhoto(ctx, ownerID, photoID); err != nil {
		return model.PhotoPermission{}, err
	}

	perm := model.PhotoPermission{PhotoID: photoID, ViewerID: viewerID}
	if expiresIn > 0 {
		expiresAt := s.now().UTC().Add(expiresIn)
		perm.ExpiresAt = &expiresAt
	}
	if err := s.photos.UpsertPermission(ctx, perm); err != nil {
		return model.PhotoPermission{}, fmt.Errorf("grant photo access: %w", err)
	}
	return perm, nil
}

func (s *Service) RevokeAccess(ctx context.Context, ownerID uuid.UUID, photoID int64, viewerID uuid.UUID) (bool, error) {
	if ownerID == uuid.Nil || viewerID == uuid.Nil || photoID <= 0 {
		return false, ErrValidation
	}
	if s.photos == nil {
		return false, ErrDependenciesNil
	}

	if _, err := s.ownedPhoto(ctx, ownerID, photoID); err != nil {
		return false, err
	}

	revoked, err := s.photos.DeletePermission(ctx, photoID, viewerID)
	if err != nil {
		return false, fmt.Errorf("revoke photo access: %w", err)
	}
	return revoked, nil
}

// Delete removes the photo and both stored variants. Storage failures are
// logged once the row is gone.
func (s *Service) Delete(ctx context.Context, ownerID uuid.UUID, photoID int64) error {
	if ownerID == uuid.Nil || photoID <= 0 {
		return ErrValidation
	}
	if s.photos == nil {
		return ErrDependenciesNil
	}

	photo, err := s.photos.Delete(ctx, ownerID, photoID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrNotFound) {
			return s.ownershipError(ctx, photoID)
		}
		return fmt.Errorf("delete photo: %w", err)
	}

	s.dropObject(ctx, s.originals, photo.StoragePath)
	s.dropObject(ctx, s.blurred, photo.BlurredPath)
	return nil
}

func (s *Service) canViewOriginal(ctx context.Context, viewerID uuid.UUID, photo model.Photo) (bool, error) {
	if viewerID == photo.OwnerID {
		return true, nil
	}

	switch photo.VisibilityMode {
	case enums.VisibilityPublic:
		return true, nil
	case enums.VisibilityMatchOnly:
		return s.isMatched(ctx, viewerID, photo.OwnerID)
	case enums.VisibilityWhitelist:
		return s.isWhitelisted(ctx, photo.ID, viewerID)
	case enums.VisibilityBlurredUntilMatch:
		matched, err := s.isMatched(ctx, viewerID, photo.OwnerID)
		if err != nil || matched {
			return matched, err
		}
		return s.isWhitelisted(ctx, photo.ID, viewerID)
	default:
		return false, nil
	}
}

func (s *Service) isMatched(ctx context.Context, viewerID, ownerID uuid.UUID) (bool, error) {
	if s.matches == nil {
		return false, nil
	}
	matched, err := s.matches.IsMatched(ctx, viewerID, ownerID)
	if err != nil {
		return false, fmt.Errorf("check match: %w", err)
	}
	return matched, nil
}

func (s *Service) isWhitelisted(ctx context.Context, photoID int64, viewerID uuid.UUID) (bool, error) {
	perm, found, err := s.photos.GetPermission(ctx, photoID, viewerID)
	if err != nil {
		return false, fmt.Errorf("check photo permission: %w", err)
	}
	return found && perm.ActiveAt(s.now()), nil
}

func (s *Service) getPhoto(ctx context.Context, photoID int64) (model.Photo, error) {
	photo, err := s.photos.GetByID(ctx, photoID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrNotFound) {
			return model.Photo{}, ErrNotFound
		}
		return model.Photo{}, fmt.Errorf("load photo: %w", err)
	}
	return photo, nil
}

func (s *Service) ownedPhoto(ctx context.Context, ownerID uuid.UUID, photoID int64) (model.Photo, error) {
	photo, err := s.getPhoto(ctx, photoID)
	if err != nil {
		return model.Photo{}, err
	}
	if photo.OwnerID != ownerID {
		return model.Photo{}, ErrNotOwner
	}
	return photo, nil
}

// ownershipError tells a missing photo apart from a foreign one after an
// owner-scoped write touched no rows.
func (s *Service) ownershipError(ctx context.Context, photoID int64) error {
	if _, err := s.getPhoto(ctx, photoID); err != nil {
		return err
	}
	return ErrNotOwner
}

func (s *Service) dropObject(ctx context.Context, storage ObjectStorage, key string) {
	if storage == nil || key == "" {
		return
	}
	if err := storage.Delete(ctx, key); err != nil {
		s.logger.Warn("failed to delete photo object", zap.String("key", key), zap.Error(err))
	}
}
