package apiapp

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	analyticsvc "github.com/schamil355/nokhchi-znakomstva-sub002/internal/services/analytics"
	feedsvc "github.com/schamil355/nokhchi-znakomstva-sub002/internal/services/feed"
	geosvc "github.com/schamil355/nokhchi-znakomstva-sub002/internal/services/geo"
	matchingsvc "github.com/schamil355/nokhchi-znakomstva-sub002/internal/services/matching"
	photossvc "github.com/schamil355/nokhchi-znakomstva-sub002/internal/services/photos"
	prefsvc "github.com/schamil355/nokhchi-znakomstva-sub002/internal/services/preferences"
	reportssvc "github.com/schamil355/nokhchi-znakomstva-sub002/internal/services/reports"
	sessionsvc "github.com/schamil355/nokhchi-znakomstva-sub002/internal/services/session"
	"github.com/schamil355/nokhchi-znakomstva-sub002/internal/transport/http/handlers"
)

type Dependencies struct {
	Tokens             TokenParser
	Sessions           *sessionsvc.Manager
	FeedService        *feedsvc.Service
	PreferencesService *prefsvc.Service
	MatchingService    *matchingsvc.Service
	PhotosService      *photossvc.Service
	ReportsService     *reportssvc.Service
	AnalyticsService   *analyticsvc.Service
	Classifier         *geosvc.Classifier
	LocationStore      handlers.LocationStore
	HealthChecks       map[string]handlers.HealthCheck
	Logger             *zap.Logger
}

func RegisterRoutes(r chi.Router, deps Dependencies) {
	healthHandler := handlers.NewHealthHandler(deps.HealthChecks)
	sessionHandler := handlers.NewSessionHandler(deps.Sessions)
	feedHandler := handlers.NewFeedHandler(deps.FeedService)
	filtersHandler := handlers.NewFiltersHandler(deps.PreferencesService)
	likesHandler := handlers.NewLikesHandler(deps.MatchingService)
	photosHandler := handlers.NewPhotosHandler(deps.PhotosService, deps.Sessions)
	reportsHandler := handlers.NewReportsHandler(deps.ReportsService)
	locationHandler := handlers.NewLocationHandler(deps.Classifier, deps.LocationStore, deps.Logger)
	eventsHandler := handlers.NewEventsHandler(deps.AnalyticsService)
	authMW := AuthMiddleware(deps.Tokens, deps.Logger)
	optionalAuthMW := OptionalAuthMiddleware(deps.Tokens, deps.Logger)

	r.Get("/healthz", healthHandler.Get)

	r.Route("/v1", func(r chi.Router) {
		r.With(optionalAuthMW).Post("/events", eventsHandler.Batch)

		r.Group(func(r chi.Router) {
			r.Use(authMW)

			r.Post("/session", sessionHandler.Start)
			r.Delete("/session", sessionHandler.End)

			r.Get("/feed", feedHandler.Handle)
			r.Get("/filters", filtersHandler.Get)
			r.Put("/filters", filtersHandler.Update)

			r.Post("/likes", likesHandler.Like)
			r.Post("/passes", likesHandler.Pass)

			r.Post("/photos/view", photosHandler.View)
			r.Post("/photos/register", photosHandler.Register)
			r.Post("/photos/visibility", photosHandler.Visibility)
			r.Post("/photos/permissions", photosHandler.Grant)
			r.Delete("/photos/permissions", photosHandler.Revoke)
			r.Post("/photos/resolve", photosHandler.Resolve)
			r.Delete("/photos/{photoID}", photosHandler.Delete)

			r.Post("/reports", reportsHandler.Report)
			r.Post("/blocks", reportsHandler.Block)
			r.Delete("/blocks", reportsHandler.Unblock)

			r.Post("/location/region", locationHandler.Region)
		})
	})
}
