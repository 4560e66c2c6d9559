package apiapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/schamil355/nokhchi-znakomstva-sub002/internal/config"
	s3infra "github.com/schamil355/nokhchi-znakomstva-sub002/internal/infra/s3"
	"github.com/schamil355/nokhchi-znakomstva-sub002/internal/jobs/cleanup"
	pgrepo "github.com/schamil355/nokhchi-znakomstva-sub002/internal/repo/postgres"
	redrepo "github.com/schamil355/nokhchi-znakomstva-sub002/internal/repo/redis"
	analyticsvc "github.com/schamil355/nokhchi-znakomstva-sub002/internal/services/analytics"
	authsvc "github.com/schamil355/nokhchi-znakomstva-sub002/internal/services/auth"
	feedsvc "github.com/schamil355/nokhchi-znakomstva-sub002/internal/services/feed"
	geosvc "github.com/schamil355/nokhchi-znakomstva-sub002/internal/services/geo"
	"github.com/schamil355/nokhchi-znakomstva-sub002/internal/services/guardedphoto"
	matchingsvc "github.com/schamil355/nokhchi-znakomstva-sub002/internal/services/matching"
	mediasvc "github.com/schamil355/nokhchi-znakomstva-sub002/internal/services/media"
	photossvc "github.com/schamil355/nokhchi-znakomstva-sub002/internal/services/photos"
	prefsvc "github.com/schamil355/nokhchi-znakomstva-sub002/internal/services/preferences"
	ratesvc "github.com/schamil355/nokhchi-znakomstva-sub002/internal/services/rate"
	reportssvc "github.com/schamil355/nokhchi-znakomstva-sub002/internal/services/reports"
	sessionsvc "github.com/schamil355/nokhchi-znakomstva-sub002/internal/services/session"
	"github.com/schamil355/nokhchi-znakomstva-sub002/internal/transport/http/handlers"
)

type App struct {
	cfg        config.Config
	logger     *zap.Logger
	server     *http.Server
	postgres   *pgxpool.Pool
	redis      *goredis.Client
	limits     *ratesvc.Registry
	sessions   *sessionsvc.Manager
	cleanup    *cleanup.Job
	httpRouter http.Handler

	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	r := chi.NewRouter()
	ApplyMiddlewares(r, log, cfg.HTTP.RequestTimeout)

	var pool *pgxpool.Pool
	if p, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN); err != nil {
		log.Warn("postgres init failed, continuing in degraded mode", zap.Error(err))
	} else {
		pool = p
		if cfg.Postgres.AutoMigrate {
			if err := pgrepo.Migrate(ctx, pool); err != nil {
				pool.Close()
				return nil, fmt.Errorf("migrate postgres: %w", err)
			}
		}
	}

	redisClient := redrepo.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	rateRepo := redrepo.NewRateRepo(redisClient)
	filtersRepo := redrepo.NewFiltersRepo(redisClient)

	likeRepo := pgrepo.NewLikeRepo(pool)
	passRepo := pgrepo.NewPassRepo(pool)
	matchRepo := pgrepo.NewMatchRepo(pool)
	blockRepo := pgrepo.NewBlockRepo(pool, matchRepo)
	reportRepo := pgrepo.NewReportRepo(pool)
	profileRepo := pgrepo.NewProfileRepo(pool)
	photoRepo := pgrepo.NewPhotoRepo(pool)
	candidateRepo := pgrepo.NewCandidateRepo(pool, photoRepo)
	eventRepo := pgrepo.NewEventRepo(pool)

	s3Client, err := s3infra.NewClient(s3infra.Config{
		Endpoint:  cfg.S3.Endpoint,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
		UseSSL:    cfg.S3.UseSSL,
	})
	if err != nil {
		log.Warn("s3 init failed, continuing in degraded mode", zap.Error(err))
	} else if err := s3infra.EnsureBuckets(ctx, s3Client, cfg.S3.OriginalBucket, cfg.S3.BlurredBucket); err != nil {
		log.Warn("s3 bucket check failed", zap.Error(err))
	}
	originals := mediasvc.NewS3Storage(s3Client, cfg.S3.OriginalBucket)
	blurred := mediasvc.NewS3Storage(s3Client, cfg.S3.BlurredBucket)

	limits := ratesvc.NewRegistry(cfg.Limits)
	jwtManager := authsvc.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, 0)
	classifier := geosvc.NewClassifier(cfg.Geo)

	analyticsService := analyticsvc.NewService(eventRepo, analyticsvc.Config{
		MaxBatchSize: 100,
	}, log.Named("analytics"))
	preferencesService := prefsvc.NewService(filtersRepo, limits, prefsvc.DefaultsFromConfig(cfg.Discovery), log.Named("preferences"))
	matchingService := matchingsvc.NewService(matchingsvc.Dependencies{
		Likes:    likeRepo,
		Passes:   passRepo,
		Matches:  matchRepo,
		Profiles: profileRepo,
		Blocks:   blockRepo,
		Events:   analyticsService,
		Limits:   limits,
		Logger:   log.Named("matching"),
	}, matchingsvc.Config{RequestTimeout: cfg.Match.RequestTimeout})
	feedService := feedsvc.NewService(feedsvc.Dependencies{
		Assembler: feedsvc.NewAssembler(classifier, log.Named("feed")),
		Source:    candidateRepo,
		Filters:   preferencesService,
		Limits:    limits,
	}, feedsvc.Config{
		PageSize:       cfg.Discovery.PageSize,
		RequestTimeout: cfg.Match.RequestTimeout,
	})
	photosService := photossvc.NewService(photossvc.Dependencies{
		Photos:    photoRepo,
		Matches:   matchRepo,
		Blocks:    blockRepo,
		ViewGuard: ratesvc.NewWindowGuard(rateRepo, cfg.Photos.ViewLimit, cfg.Photos.ViewWindow),
		Originals: originals,
		Blurred:   blurred,
		Blurrer:   mediasvc.NewBlurrer(cfg.Photos.BlurWidth, cfg.Photos.BlurSigma, cfg.Photos.BlurJPEGQuality),
		Limits:    limits,
		Logger:    log.Named("photos"),
	}, photossvc.Config{
		GrantTTL:       cfg.Photos.GrantTTL,
		RequestTimeout: cfg.Photos.RequestTimeout,
	})
	reportsService := reportssvc.NewService(reportssvc.Dependencies{
		Reports: reportRepo,
		Blocks:  blockRepo,
		Events:  analyticsService,
		Limits:  limits,
		Logger:  log.Named("reports"),
	})
	sessions, err := sessionsvc.NewManager(sessionsvc.Dependencies{
		Photos:      photosService,
		Limits:      limits,
		Preferences: preferencesService,
		Logger:      log.Named("session"),
	}, sessionsvc.Config{
		IdleTTL:     cfg.Sessions.IdleTTL,
		MaxSessions: cfg.Sessions.MaxSessions,
		Photos: guardedphoto.Config{
			GuardWindow:    cfg.Photos.GuardWindow,
			RetryBase:      cfg.Photos.RetryBase,
			RetryMax:       cfg.Photos.RetryMax,
			CacheSize:      cfg.Photos.CacheSize,
			RequestTimeout: cfg.Photos.RequestTimeout,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create session manager: %w", err)
	}

	healthChecks := map[string]handlers.HealthCheck{
		"redis": func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		},
	}
	healthChecks["postgres"] = func(ctx context.Context) error {
		if pool == nil {
			return errors.New("postgres pool is not configured")
		}
		return pool.Ping(ctx)
	}

	RegisterRoutes(r, Dependencies{
		Tokens:             jwtManager,
		Sessions:           sessions,
		FeedService:        feedService,
		PreferencesService: preferencesService,
		MatchingService:    matchingService,
		PhotosService:      photosService,
		ReportsService:     reportsService,
		AnalyticsService:   analyticsService,
		Classifier:         classifier,
		LocationStore:      profileRepo,
		HealthChecks:       healthChecks,
		Logger:             log,
	})

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	return &App{
		cfg:        cfg,
		logger:     log,
		server:     server,
		postgres:   pool,
		redis:      redisClient,
		limits:     limits,
		sessions:   sessions,
		cleanup:    cleanup.New(photoRepo, cfg.Cleanup.Interval, log.Named("cleanup")),
		httpRouter: r,
	}, nil
}

func (a *App) Run() error {
	bgCtx, cancel := context.WithCancel(context.Background())
	a.bgCancel = cancel
	if a.postgres != nil {
		a.bgWG.Add(1)
		go func() {
			defer a.bgWG.Done()
			a.cleanup.Loop(bgCtx)
		}()
	}

	a.logger.Info("api server started", zap.String("addr", a.cfg.HTTP.Addr))
	err := a.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error

	if err := a.server.Shutdown(ctx); err != nil {
		shutdownErr = err
	}
	if a.bgCancel != nil {
		a.bgCancel()
	}
	a.bgWG.Wait()

	a.sessions.Close()
	a.limits.Close()

	if a.postgres != nil {
		a.postgres.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil && shutdownErr == nil {
			shutdownErr = err
		}
	}

	return shutdownErr
}

func (a *App) Handler() http.Handler {
	return a.httpRouter
}
