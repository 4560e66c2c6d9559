package apiapp

import (
	"context"
	"net/http"
	"strings"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	authsvc "github.com/schamil355/nokhchi-znakomstva-sub002/internal/services/auth"
	httperrors "github.com/schamil355/nokhchi-znakomstva-sub002/internal/transport/http/errors"
)

const defaultRequestTimeout = 30 * time.Second

type TokenParser interface {
	ParseAccessToken(raw string) (authsvc.AccessClaims, error)
}

func ApplyMiddlewares(r chiRouter, log *zap.Logger, requestTimeout time.Duration) {
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestDeadline(requestTimeout))
	r.Use(requestLogger(log))
}

// requestDeadline bounds the request context. Unlike chimiddleware.Timeout it
// does not write a 504 itself, so handlers can still report queued rate
// limited calls as 429.
func requestDeadline(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AuthMiddleware requires a valid bearer token and stores the caller identity
// on the request context.
func AuthMiddleware(tokens TokenParser, log *zap.Logger) func(http.Handler) http.Handler {
	return authMiddleware(tokens, log, true)
}

// OptionalAuthMiddleware attaches the identity when a valid token is present
// and lets anonymous requests through.
func OptionalAuthMiddleware(tokens TokenParser, log *zap.Logger) func(http.Handler) http.Handler {
	return authMiddleware(tokens, log, false)
}

func authMiddleware(tokens TokenParser, log *zap.Logger, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tokens == nil {
				httperrors.Write(w, http.StatusInternalServerError, httperrors.APIError{
					Code:    "AUTH_SERVICE_UNAVAILABLE",
					Message: "auth service is unavailable",
				})
				return
			}

			accessToken, ok := extractBearerToken(r.Header.Get("Authorization"))
			if !ok {
				if !required {
					next.ServeHTTP(w, r)
					return
				}
				httperrors.Write(w, http.StatusUnauthorized, httperrors.APIError{
					Code:    "UNAUTHORIZED",
					Message: "missing bearer token",
				})
				return
			}

			claims, err := tokens.ParseAccessToken(accessToken)
			if err != nil {
				if log != nil {
					log.Debug("auth middleware validation failed", zap.Error(err))
				}
				httperrors.Write(w, http.StatusUnauthorized, httperrors.APIError{
					Code:    "UNAUTHORIZED",
					Message: "invalid access token",
				})
				return
			}

			ctx := authsvc.WithIdentity(r.Context(), authsvc.Identity{
				UserID: claims.UserID,
				Role:   claims.Role,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func extractBearerToken(value string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(value), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return parts[1], true
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			if log != nil {
				log.Info("http_request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.String("request_id", chimiddleware.GetReqID(r.Context())),
					zap.Duration("duration", time.Since(start)),
				)
			}
		})
	}
}

type chiRouter interface {
	Use(middlewares ...func(http.Handler) http.Handler)
}
