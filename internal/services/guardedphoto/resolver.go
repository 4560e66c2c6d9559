package guardedphoto

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/schamil355/nokhchi-znakomstva-sub002/internal/domain/enums"
)

const (
	defaultTTL            = 120 * time.Second
	defaultGuardWindow    = 10 * time.Second
	defaultRetryBase      = 2 * time.Second
	defaultRetryMax       = 60 * time.Second
	defaultCacheSize      = 200
	defaultRequestTimeout = 15 * time.Second
)

var (
	ErrResolverClosed = errors.New("photo resolver closed")
	ErrNoSource       = errors.New("photo has no source")
)

// Ref identifies a photo as rendered by a client.
type Ref struct {
	AssetID     *int64
	StoragePath string
	URL         string
}

// Key is the cache key of the ref. Only refs with an asset id are cached;
// others resolve to their public url and have no key.
func (r Ref) Key() string {
	if r.AssetID == nil {
		return ""
	}
	return "asset:" + strconv.FormatInt(*r.AssetID, 10)
}

// SignedGrant is what the signing service returns for a ref.
type SignedGrant struct {
	URL  string
	Mode enums.GrantMode
	TTL  time.Duration
}

// Signer issues signed urls. Errors wrapped with backoff.Permanent are not
// retried in the background.
type Signer interface {
	Sign(ctx context.Context, ref Ref) (SignedGrant, error)
}

type SignerFunc func(ctx context.Context, ref Ref) (SignedGrant, error)

func (f SignerFunc) Sign(ctx context.Context, ref Ref) (SignedGrant, error) {
	return f(ctx, ref)
}

// Grant is a resolved photo url.
type Grant struct {
	URL       string
	Mode      enums.GrantMode
	ExpiresAt time.Time
}

func (g Grant) Blurred() bool {
	return g.Mode == enums.GrantModeBlur
}

type Config struct {
	GuardWindow    time.Duration
	RetryBase      time.Duration
	RetryMax       time.Duration
	CacheSize      int
	RequestTimeout time.Duration
}

type stopper interface {
	Stop() bool
}

type entry struct {
	ref     Ref
	grant   Grant
	loaded  bool
	lastErr error
	backoff *backoff.ExponentialBackOff
	timer   stopper
}

func (e *entry) stop() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

// Resolver keeps signed photo urls fresh for one viewer. Entries are refreshed
// shortly before they expire and retried with exponential backoff after a
// failed fetch until the entry is evicted or the resolver is closed.
type Resolver struct {
	signer Signer
	cfg    Config
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	group  singleflight.Group

	mu     sync.Mutex
	cache  *lru.Cache[string, *entry]
	closed bool

	now       func() time.Time
	afterFunc func(time.Duration, func()) stopper
}

func NewResolver(signer Signer, cfg Config, logger *zap.Logger) (*Resolver, error) {
	if signer == nil {
		return nil, fmt.Errorf("photo signer is nil")
	}
	if cfg.GuardWindow <= 0 {
		cfg.GuardWindow = defaultGuardWindow
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = defaultRetryBase
	}
	if cfg.RetryMax < cfg.RetryBase {
		cfg.RetryMax = max(defaultRetryMax, cfg.RetryBase)
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = defaultCacheSize
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cache, err := lru.NewWithEvict[string, *entry](cfg.CacheSize, func(_ string, e *entry) {
		e.stop()
	})
	if err != nil {
		return nil, fmt.Errorf("create photo cache: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Resolver{
		signer: signer,
		cfg:    cfg,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		cache:  cache,
		now:    time.Now,
		afterFunc: func(d time.Duration, f func()) stopper {
			return time.AfterFunc(d, f)
		},
	}, nil
}

// Resolve returns a usable url for ref, fetching a grant when none is cached
// or the cached one expired. A ref without an asset id is public and resolves
// to its own url.
func (r *Resolver) Resolve(ctx context.Context, ref Ref) (Grant, error) {
	if ref.AssetID == nil {
		return publicGrant(ref)
	}
	key := ref.Key()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return Grant{}, ErrResolverClosed
	}
	if e, ok := r.cache.Get(key); ok && e.loaded && r.now().Before(e.grant.ExpiresAt) {
		grant := e.grant
		r.mu.Unlock()
		return grant, nil
	}
	r.mu.Unlock()

	return r.load(ctx, key, ref)
}

// Retry fetches ref now, dropping any pending backoff.
func (r *Resolver) Retry(ctx context.Context, ref Ref) (Grant, error) {
	if ref.AssetID == nil {
		return publicGrant(ref)
	}
	key := ref.Key()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return Grant{}, ErrResolverClosed
	}
	if e, ok := r.cache.Get(key); ok {
		e.stop()
		e.backoff.Reset()
	}
	r.mu.Unlock()

	return r.load(ctx, key, ref)
}

// Peek returns the cached grant for ref without fetching.
func (r *Resolver) Peek(ref Ref) (Grant, bool) {
	if ref.AssetID == nil {
		return Grant{}, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.cache.Peek(ref.Key())
	if !ok || !e.loaded || !r.now().Before(e.grant.ExpiresAt) {
		return Grant{}, false
	}
	return e.grant, true
}

func (r *Resolver) Len() int {
	return r.cache.Len()
}

// Close stops every refresh and retry timer and cancels in-flight fetches.
func (r *Resolver) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.mu.Unlock()

	r.cache.Purge()
	r.cancel()
}

// load joins or starts the single fetch for key. The fetch itself runs on the
// resolver context so one caller giving up does not fail the others.
func (r *Resolver) load(ctx context.Context, key string, ref Ref) (Grant, error) {
	ch := r.group.DoChan(key, func() (any, error) {
		return r.fetch(key, ref)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return Grant{}, res.Err
		}
		return res.Val.(Grant), nil
	case <-ctx.Done():
		return Grant{}, ctx.Err()
	}
}

func (r *Resolver) fetch(key string, ref Ref) (Grant, error) {
	ctx, cancel := context.WithTimeout(r.ctx, r.cfg.RequestTimeout)
	defer cancel()

	signed, err := r.signer.Sign(ctx, ref)
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return Grant{}, ErrResolverClosed
	}

	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		r.cache.Remove(key)
		return Grant{}, permanent.Unwrap()
	}

	e := r.entryLocked(key, ref)
	if err != nil {
		e.lastErr = err
		delay := e.backoff.NextBackOff()
		r.scheduleLocked(e, key, delay)
		r.logger.Warn("photo grant fetch failed",
			zap.String("key", key),
			zap.Duration("retry_in", delay),
			zap.Error(err),
		)
		return Grant{}, err
	}

	ttl := signed.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	mode := signed.Mode
	if mode == "" {
		mode = enums.GrantModeOriginal
	}
	e.grant = Grant{URL: signed.URL, Mode: mode, ExpiresAt: now.Add(ttl)}
	e.loaded = true
	e.lastErr = nil
	e.backoff.Reset()
	r.scheduleLocked(e, key, refreshDelay(ttl, r.cfg.GuardWindow))

	return e.grant, nil
}

func (r *Resolver) refresh(key string) {
	r.mu.Lock()
	e, ok := r.cache.Peek(key)
	if r.closed || !ok {
		r.mu.Unlock()
		return
	}
	e.timer = nil
	ref := e.ref
	r.mu.Unlock()

	_, _ = r.load(r.ctx, key, ref)
}

// entryLocked leaves recency untouched; only Resolve and Retry mark an entry
// as used.
func (r *Resolver) entryLocked(key string, ref Ref) *entry {
	if e, ok := r.cache.Peek(key); ok {
		e.ref = ref
		return e
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.cfg.RetryBase
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = r.cfg.RetryMax
	b.MaxElapsedTime = 0
	b.Reset()

	e := &entry{ref: ref, backoff: b}
	r.cache.Add(key, e)
	return e
}

func (r *Resolver) scheduleLocked(e *entry, key string, delay time.Duration) {
	e.stop()
	e.timer = r.afterFunc(delay, func() {
		r.refresh(key)
	})
}

// refreshDelay is max(guard, ttl-guard), pulled to half the ttl when that
// would land at or after expiry.
func refreshDelay(ttl, guard time.Duration) time.Duration {
	delay := max(guard, ttl-guard)
	if delay >= ttl {
		delay = ttl / 2
	}
	return delay
}

func publicGrant(ref Ref) (Grant, error) {
	if ref.URL == "" {
		return Grant{}, ErrNoSource
	}
	return Grant{URL: ref.URL, Mode: enums.GrantModeOriginal}, nil
}
