package photos

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/schamil355/nokhchi-znakomstva-sub002/internal/config"
	"github.com/schamil355/nokhchi-znakomstva-sub002/internal/domain/enums"
	"github.com/schamil355/nokhchi-znakomstva-sub002/internal/domain/model"
	pgrepo "github.com/schamil355/nokhchi-znakomstva-sub002/internal/repo/postgres"
	ratesvc "github.com/schamil355/nokhchi-znakomstva-sub002/internal/services/rate"
)

type permKey struct {
	photoID  int64
	viewerID uuid.UUID
}

type photoStoreStub struct {
	nextID  int64
	photos  map[int64]model.Photo
	perms   map[permKey]model.PhotoPermission
	created []model.Photo
}

func newPhotoStoreStub() *photoStoreStub {
	return &photoStoreStub{
		nextID: 100,
		photos: make(map[int64]model.Photo),
		perms:  make(map[permKey]model.PhotoPermission),
	}
}

func (s *photoStoreStub) add(photo model.Photo) model.Photo {
	s.nextID++
	photo.ID = s.nextID
	s.photos[photo.ID] = photo
	return photo
}

func (s *photoStoreStub) Create(_ context.Context, photo model.Photo) (model.Photo, error) {
	saved := s.add(photo)
	s.created = append(s.created, saved)
	return saved, nil
}

func (s *photoStoreStub) GetByID(_ context.Context, photoID int64) (model.Photo, error) {
	photo, ok := s.photos[photoID]
	if !ok {
		return model.Photo{}, pgrepo.ErrNotFound
	}
	return photo, nil
}

func (s *photoStoreStub) UpdateVisibility(_ context.Context, ownerID uuid.UUID, photoID int64, mode enums.VisibilityMode) error {
	photo, ok := s.photos[photoID]
	if !ok || photo.OwnerID != ownerID {
		return pgrepo.ErrNotFound
	}
	photo.VisibilityMode = mode
	s.photos[photoID] = photo
	return nil
}

func (s *photoStoreStub) Delete(_ context.Context, ownerID uuid.UUID, photoID int64) (model.Photo, error) {
	photo, ok := s.photos[photoID]
	if !ok || photo.OwnerID != ownerID {
		return model.Photo{}, pgrepo.ErrNotFound
	}
	delete(s.photos, photoID)
	return photo, nil
}

func (s *photoStoreStub) GetPermission(_ context.Context, photoID int64, viewerID uuid.UUID) (model.PhotoPermission, bool, error) {
	perm, ok := s.perms[permKey{photoID, viewerID}]
	return perm, ok, nil
}

func (s *photoStoreStub) UpsertPermission(_ context.Context, perm model.PhotoPermission) error {
	s.perms[permKey{perm.PhotoID, perm.ViewerID}] = perm
	return nil
}

func (s *photoStoreStub) DeletePermission(_ context.Context, photoID int64, viewerID uuid.UUID) (bool, error) {
	key := permKey{photoID, viewerID}
	_, ok := s.perms[key]
	delete(s.perms, key)
	return ok, nil
}

type relationStub struct {
	matched map[[2]uuid.UUID]bool
	blocked map[[2]uuid.UUID]bool
}

func newRelationStub() *relationStub {
	return &relationStub{
		matched: make(map[[2]uuid.UUID]bool),
		blocked: make(map[[2]uuid.UUID]bool),
	}
}

func (r *relationStub) IsMatched(_ context.Context, a, b uuid.UUID) (bool, error) {
	return r.matched[[2]uuid.UUID{a, b}] || r.matched[[2]uuid.UUID{b, a}], nil
}

func (r *relationStub) IsBlockedEitherWay(_ context.Context, a, b uuid.UUID) (bool, error) {
	return r.blocked[[2]uuid.UUID{a, b}] || r.blocked[[2]uuid.UUID{b, a}], nil
}

type guardStub struct {
	keys  []string
	allow bool
	retry int64
}

func (g *guardStub) Allow(_ context.Context, key string) (int64, bool, error) {
	g.keys = append(g.keys, key)
	return g.retry, g.allow, nil
}

type storageStub struct {
	bucket  string
	objects map[string][]byte
	deleted []string
}

func newStorageStub(bucket string) *storageStub {
	return &storageStub{bucket: bucket, objects: make(map[string][]byte)}
}

func (s *storageStub) Put(_ context.Context, key string, body io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	s.objects[key] = data
	return nil
}

func (s *storageStub) Get(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := s.objects[key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *storageStub) PresignGet(_ context.Context, key string, ttl time.Duration) (string, error) {
	return fmt.Sprintf("https://s3.test/%s/%s?ttl=%d", s.bucket, key, int(ttl.Seconds())), nil
}

func (s *storageStub) Delete(_ context.Context, key string) error {
	s.deleted = append(s.deleted, key)
	delete(s.objects, key)
	return nil
}

type blurrerStub struct{}

func (blurrerStub) Blur(src io.Reader) ([]byte, error) {
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, err
	}
	return append([]byte("blurred:"), data...), nil
}

type fixture struct {
	svc       *Service
	store     *photoStoreStub
	relations *relationStub
	guard     *guardStub
	originals *storageStub
	blurred   *storageStub
	owner     uuid.UUID
	viewer    uuid.UUID
}

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newFixture() *fixture {
	f := &fixture{
		store:     newPhotoStoreStub(),
		relations: newRelationStub(),
		guard:     &guardStub{allow: true},
		originals: newStorageStub("photos-private"),
		blurred:   newStorageStub("photos-blurred"),
		owner:     uuid.New(),
		viewer:    uuid.New(),
	}
	f.svc = NewService(Dependencies{
		Photos:    f.store,
		Matches:   f.relations,
		Blocks:    f.relations,
		ViewGuard: f.guard,
		Originals: f.originals,
		Blurred:   f.blurred,
		Blurrer:   blurrerStub{},
	}, Config{GrantTTL: 120 * time.Second})
	f.svc.now = func() time.Time { return fixedNow }
	return f
}

func (f *fixture) photo(mode enums.VisibilityMode, blurredPath string) model.Photo {
	return f.store.add(model.Photo{
		OwnerID:        f.owner,
		StoragePath:    f.owner.String() + "/a.jpg",
		BlurredPath:    blurredPath,
		VisibilityMode: mode,
	})
}

func TestViewEntitlementMatrix(t *testing.T) {
	tests := []struct {
		name      string
		mode      enums.VisibilityMode
		matched   bool
		permitted *time.Time
		owner     bool
		want      enums.GrantMode
	}{
		{name: "public", mode: enums.VisibilityPublic, want: enums.GrantModeOriginal},
		{name: "match only without match", mode: enums.VisibilityMatchOnly, want: enums.GrantModeBlur},
		{name: "match only matched", mode: enums.VisibilityMatchOnly, matched: true, want: enums.GrantModeOriginal},
		{name: "whitelist without permission", mode: enums.VisibilityWhitelist, want: enums.GrantModeBlur},
		{name: "whitelist active", mode: enums.VisibilityWhitelist, permitted: ptrTime(fixedNow.Add(time.Hour)), want: enums.GrantModeOriginal},
		{name: "whitelist expired", mode: enums.VisibilityWhitelist, permitted: ptrTime(fixedNow.Add(-time.Minute)), want: enums.GrantModeBlur},
		{name: "blurred until match", mode: enums.VisibilityBlurredUntilMatch, want: enums.GrantModeBlur},
		{name: "blurred until match matched", mode: enums.VisibilityBlurredUntilMatch, matched: true, want: enums.GrantModeOriginal},
		{name: "blurred until match whitelisted", mode: enums.VisibilityBlurredUntilMatch, permitted: ptrTime(fixedNow.Add(time.Hour)), want: enums.GrantModeOriginal},
		{name: "owner", mode: enums.VisibilityMatchOnly, owner: true, want: enums.GrantModeOriginal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			photo := f.photo(tt.mode, f.owner.String()+"/a_blur.jpg")
			if tt.matched {
				f.relations.matched[[2]uuid.UUID{f.owner, f.viewer}] = true
			}
			if tt.permitted != nil {
				f.store.perms[permKey{photo.ID, f.viewer}] = model.PhotoPermission{PhotoID: photo.ID, ViewerID: f.viewer, ExpiresAt: tt.permitted}
			}
			viewer := f.viewer
			if tt.owner {
				viewer = f.owner
			}

			grant, err := f.svc.View(context.Background(), viewer, photo.ID, enums.GrantModeOriginal)
			if err != nil {
				t.Fatalf("view: %v", err)
			}
			if grant.Mode != tt.want {
				t.Fatalf("unexpected mode: got %s want %s", grant.Mode, tt.want)
			}
			wantBucket := "photos-private"
			if tt.want == enums.GrantModeBlur {
				wantBucket = "photos-blurred"
			}
			if !strings.Contains(grant.URL, wantBucket) {
				t.Fatalf("url signed from wrong bucket: %s", grant.URL)
			}
			if grant.TTL != 120*time.Second || !grant.ExpiresAt.Equal(fixedNow.Add(120*time.Second)) {
				t.Fatalf("unexpected grant ttl: %+v", grant)
			}
		})
	}
}

func TestViewBlurRequestedWithoutVariant(t *testing.T) {
	f := newFixture()
	photo := f.photo(enums.VisibilityMatchOnly, "")

	if _, err := f.svc.View(context.Background(), f.viewer, photo.ID, enums.GrantModeBlur); !errors.Is(err, ErrNoBlurredVariant) {
		t.Fatalf("expected ErrNoBlurredVariant, got %v", err)
	}
}

func TestViewBlurFallsBackToOriginalForEntitledViewer(t *testing.T) {
	f := newFixture()
	photo := f.photo(enums.VisibilityPublic, "")

	grant, err := f.svc.View(context.Background(), f.viewer, photo.ID, enums.GrantModeBlur)
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if grant.Mode != enums.GrantModeOriginal {
		t.Fatalf("expected original fallback, got %s", grant.Mode)
	}
}

func TestViewOriginalWithoutAnyVariantForUnentitledViewer(t *testing.T) {
	f := newFixture()
	photo := f.photo(enums.VisibilityMatchOnly, "")

	if _, err := f.svc.View(context.Background(), f.viewer, photo.ID, enums.GrantModeOriginal); !errors.Is(err, ErrSourceMissing) {
		t.Fatalf("expected ErrSourceMissing, got %v", err)
	}
}

func TestViewRejectsBlockedViewer(t *testing.T) {
	f := newFixture()
	photo := f.photo(enums.VisibilityPublic, "")
	f.relations.blocked[[2]uuid.UUID{f.owner, f.viewer}] = true

	if _, err := f.svc.View(context.Background(), f.viewer, photo.ID, ""); !errors.Is(err, ErrBlocked) {
		t.Fatalf("expected ErrBlocked, got %v", err)
	}
}

func TestViewRateLimitedByGuard(t *testing.T) {
	f := newFixture()
	photo := f.photo(enums.VisibilityPublic, "")
	f.guard.allow = false
	f.guard.retry = 42

	_, err := f.svc.View(context.Background(), f.viewer, photo.ID, "")
	var rl RateLimitedError
	if !errors.As(err, &rl) || rl.RetryAfterSec != 42 {
		t.Fatalf("expected RateLimitedError with retry 42, got %v", err)
	}
	wantKey := fmt.Sprintf("photo:view:%s:%d", f.viewer, photo.ID)
	if len(f.guard.keys) != 1 || f.guard.keys[0] != wantKey {
		t.Fatalf("unexpected guard keys: %v", f.guard.keys)
	}
}

func TestViewQueuesViewerPastPhotoViewPolicy(t *testing.T) {
	limits := ratesvc.NewRegistry(config.LimitsConfig{
		PhotoView: config.RatePolicy{Interval: time.Minute, MaxCalls: 20},
	})
	defer limits.Close()

	f := newFixture()
	f.svc.limits = limits
	photo := f.photo(enums.VisibilityPublic, "")

	for i := 0; i < 20; i++ {
		if _, err := f.svc.View(context.Background(), f.viewer, photo.ID, ""); err != nil {
			t.Fatalf("view #%d: %v", i, err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if _, err := f.svc.View(ctx, f.viewer, photo.ID, ""); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected 21st view to stay queued until deadline, got %v", err)
	}
	if len(f.guard.keys) != 20 {
		t.Fatalf("queued view must not run: got %d signed views want 20", len(f.guard.keys))
	}

	if _, err := f.svc.View(context.Background(), f.owner, photo.ID, ""); err != nil {
		t.Fatalf("other viewer must not share the window: %v", err)
	}
}

func TestViewUnknownPhoto(t *testing.T) {
	f := newFixture()
	if _, err := f.svc.View(context.Background(), f.viewer, 999, ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRegisterStoresBlurredVariant(t *testing.T) {
	f := newFixture()
	path := f.owner.String() + "/pic.png"
	f.originals.objects[path] = []byte("raw")

	photo, err := f.svc.Register(context.Background(), f.owner, path, enums.VisibilityBlurredUntilMatch)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	wantBlur := f.owner.String() + "/pic_blur.png"
	if photo.BlurredPath != wantBlur || photo.StoragePath != path {
		t.Fatalf("unexpected photo paths: %+v", photo)
	}
	if got := string(f.blurred.objects[wantBlur]); got != "blurred:raw" {
		t.Fatalf("unexpected blurred object: %q", got)
	}
	if photo.VisibilityMode != enums.VisibilityBlurredUntilMatch {
		t.Fatalf("unexpected visibility: %s", photo.VisibilityMode)
	}
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture()

	if _, err := f.svc.Register(context.Background(), f.owner, "nopath.jpg", enums.VisibilityPublic); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for flat path, got %v", err)
	}
	if _, err := f.svc.Register(context.Background(), f.owner, uuid.NewString()+"/a.jpg", enums.VisibilityPublic); !errors.Is(err, ErrForeignPath) {
		t.Fatalf("expected ErrForeignPath, got %v", err)
	}
	if _, err := f.svc.Register(context.Background(), f.owner, f.owner.String()+"/missing.jpg", enums.VisibilityPublic); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing original, got %v", err)
	}
}

func TestGrantAndRevokeAccess(t *testing.T) {
	f := newFixture()
	photo := f.photo(enums.VisibilityWhitelist, "")

	perm, err := f.svc.GrantAccess(context.Background(), f.owner, photo.ID, f.viewer, time.Hour)
	if err != nil {
		t.Fatalf("grant: %v", err)
	}
	if perm.ExpiresAt == nil || !perm.ExpiresAt.Equal(fixedNow.Add(time.Hour)) {
		t.Fatalf("unexpected expiry: %v", perm.ExpiresAt)
	}

	grant, err := f.svc.View(context.Background(), f.viewer, photo.ID, "")
	if err != nil || grant.Mode != enums.GrantModeOriginal {
		t.Fatalf("whitelisted viewer must see original: %+v %v", grant, err)
	}

	revoked, err := f.svc.RevokeAccess(context.Background(), f.owner, photo.ID, f.viewer)
	if err != nil || !revoked {
		t.Fatalf("revoke: %v %v", revoked, err)
	}
	if _, ok := f.store.perms[permKey{photo.ID, f.viewer}]; ok {
		t.Fatalf("permission must be removed")
	}
}

func TestGrantAccessRequiresOwner(t *testing.T) {
	f := newFixture()
	photo := f.photo(enums.VisibilityWhitelist, "")

	if _, err := f.svc.GrantAccess(context.Background(), uuid.New(), photo.ID, f.viewer, 0); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
}

func TestChangeVisibility(t *testing.T) {
	f := newFixture()
	photo := f.photo(enums.VisibilityPublic, "")

	if err := f.svc.ChangeVisibility(context.Background(), f.owner, photo.ID, enums.VisibilityMatchOnly); err != nil {
		t.Fatalf("change visibility: %v", err)
	}
	if f.store.photos[photo.ID].VisibilityMode != enums.VisibilityMatchOnly {
		t.Fatalf("visibility not updated")
	}
	if err := f.svc.ChangeVisibility(context.Background(), f.viewer, photo.ID, enums.VisibilityPublic); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	if err := f.svc.ChangeVisibility(context.Background(), f.owner, 12345, enums.VisibilityPublic); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteDropsBothVariants(t *testing.T) {
	f := newFixture()
	photo := f.photo(enums.VisibilityPublic, f.owner.String()+"/a_blur.jpg")

	if err := f.svc.Delete(context.Background(), f.owner, photo.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(f.originals.deleted) != 1 || len(f.blurred.deleted) != 1 {
		t.Fatalf("expected both variants deleted: %v %v", f.originals.deleted, f.blurred.deleted)
	}
}

func ptrTime(v time.Time) *time.Time {
	return &v
}
