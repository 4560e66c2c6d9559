package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/schamil355/nokhchi-znakomstva-sub002/internal/domain/enums"
	"github.com/schamil355/nokhchi-znakomstva-sub002/internal/services/guardedphoto"
	"github.com/schamil355/nokhchi-znakomstva-sub002/internal/services/photos"
	ratesvc "github.com/schamil355/nokhchi-znakomstva-sub002/internal/services/rate"
)

const (
	defaultIdleTTL     = 30 * time.Minute
	defaultMaxSessions = 10000
)

var (
	ErrNoSession     = errors.New("no active session")
	ErrManagerClosed = errors.New("session manager closed")
)

type PhotoViewer interface {
	View(ctx context.Context, viewerID uuid.UUID, photoID int64, requested enums.GrantMode) (photos.Grant, error)
}

type FiltersForgetter interface {
	Forget(userID uuid.UUID)
}

type Config struct {
	IdleTTL     time.Duration
	MaxSessions int
	Photos      guardedphoto.Config
}

type Dependencies struct {
	Photos      PhotoViewer
	Limits      *ratesvc.Registry
	Preferences FiltersForgetter
	Logger      *zap.Logger
}

// Session is the in-memory state of one signed-in user.
type Session struct {
	UserID    uuid.UUID
	StartedAt time.Time
	resolver  *guardedphoto.Resolver
}

func (s *Session) Resolver() *guardedphoto.Resolver {
	return s.resolver
}

// Manager owns per-user sessions. Sessions idle for longer than IdleTTL, or
// pushed out by MaxSessions, are torn down like an explicit End.
type Manager struct {
	viewer PhotoViewer
	limits *ratesvc.Registry
	prefs  FiltersForgetter
	cfg    Config
	logger *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	sessions *expirable.LRU[uuid.UUID, *Session]
	closed   bool
}

func NewManager(deps Dependencies, cfg Config) (*Manager, error) {
	if deps.Photos == nil {
		return nil, fmt.Errorf("photo viewer is nil")
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = defaultIdleTTL
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = defaultMaxSessions
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Manager{
		viewer: deps.Photos,
		limits: deps.Limits,
		prefs:  deps.Preferences,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
	m.sessions = expirable.NewLRU[uuid.UUID, *Session](cfg.MaxSessions, m.teardown, cfg.IdleTTL)
	return m, nil
}

// Activate starts a session for userID, or refreshes the idle deadline of the
// existing one. It runs under the auth limiter.
func (m *Manager) Activate(ctx context.Context, userID uuid.UUID) (*Session, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("invalid user id")
	}
	if m.limits == nil {
		return m.activate(userID)
	}
	return ratesvc.Throttle(ctx, m.limits, ratesvc.ActionAuth, userID, func(context.Context) (*Session, error) {
		return m.activate(userID)
	})
}

func (m *Manager) activate(userID uuid.UUID) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrManagerClosed
	}

	if s, ok := m.sessions.Get(userID); ok {
		m.sessions.Add(userID, s)
		return s, nil
	}

	resolver, err := guardedphoto.NewResolver(photoSigner(m.viewer, userID), m.cfg.Photos, m.logger.With(zap.String("viewer_id", userID.String())))
	if err != nil {
		return nil, err
	}
	s := &Session{UserID: userID, StartedAt: m.now(), resolver: resolver}
	m.sessions.Add(userID, s)
	m.logger.Debug("session started", zap.String("user_id", userID.String()))
	return s, nil
}

// Resolver returns the photo resolver of the active session and marks the
// session as used.
func (m *Manager) Resolver(userID uuid.UUID) (*guardedphoto.Resolver, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrManagerClosed
	}
	s, ok := m.sessions.Get(userID)
	if !ok {
		return nil, ErrNoSession
	}
	m.sessions.Add(userID, s)
	return s.resolver, nil
}

// End signs userID out. Ending a missing session is a no-op.
func (m *Manager) End(userID uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions.Remove(userID)
}

func (m *Manager) Len() int {
	return m.sessions.Len()
}

// Close ends every session.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	m.sessions.Purge()
}

func (m *Manager) teardown(userID uuid.UUID, s *Session) {
	s.resolver.Close()
	if m.limits != nil {
		m.limits.Forget(userID)
	}
	if m.prefs != nil {
		m.prefs.Forget(userID)
	}
	m.logger.Debug("session ended", zap.String("user_id", userID.String()))
}

// photoSigner asks the photo service for the best variant the viewer may see.
// Outcomes that cannot change on retry are marked permanent.
func photoSigner(viewer PhotoViewer, viewerID uuid.UUID) guardedphoto.Signer {
	return guardedphoto.SignerFunc(func(ctx context.Context, ref guardedphoto.Ref) (guardedphoto.SignedGrant, error) {
		if ref.AssetID == nil {
			return guardedphoto.SignedGrant{}, backoff.Permanent(guardedphoto.ErrNoSource)
		}
		grant, err := viewer.View(ctx, viewerID, *ref.AssetID, enums.GrantModeOriginal)
		if err != nil {
			if isPermanent(err) {
				return guardedphoto.SignedGrant{}, backoff.Permanent(err)
			}
			return guardedphoto.SignedGrant{}, err
		}
		return guardedphoto.SignedGrant{URL: grant.URL, Mode: grant.Mode, TTL: grant.TTL}, nil
	})
}

func isPermanent(err error) bool {
	for _, target := range []error{
		photos.ErrNotFound,
		photos.ErrBlocked,
		photos.ErrNoBlurredVariant,
		photos.ErrSourceMissing,
		photos.ErrValidation,
		photos.ErrNotOwner,
		ratesvc.ErrLimiterClosed,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
