package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	authsvc "github.com/schamil355/nokhchi-znakomstva-sub002/internal/services/auth"
	ratesvc "github.com/schamil355/nokhchi-znakomstva-sub002/internal/services/rate"
	httperrors "github.com/schamil355/nokhchi-znakomstva-sub002/internal/transport/http/errors"
)

const maxBodyBytes = 1 << 20

func decodeJSON(r *http.Request, target any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

func requireIdentity(w http.ResponseWriter, r *http.Request) (authsvc.Identity, bool) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return authsvc.Identity{}, false
	}
	return identity, true
}

func parseUUID(raw string) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

// writeThrottled handles errors that come out of a rate limited action. The
// limiters queue callers, so a request only fails as too fast when its own
// context ends while waiting. It reports whether err was handled.
func writeThrottled(w http.ResponseWriter, r *http.Request, err error) bool {
	switch {
	case errors.Is(err, ratesvc.ErrLimiterClosed):
		httperrors.Write(w, http.StatusConflict, httperrors.APIError{
			Code:    "SESSION_ENDED",
			Message: "session ended while the request was queued",
		})
		return true
	case r.Context().Err() != nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)):
		httperrors.Write(w, http.StatusTooManyRequests, httperrors.APIError{
			Code:    "TOO_FAST",
			Message: "too many requests, slow down",
		})
		return true
	case errors.Is(err, context.DeadlineExceeded):
		httperrors.Write(w, http.StatusGatewayTimeout, httperrors.APIError{
			Code:    "BACKEND_TIMEOUT",
			Message: "backend did not answer in time",
		})
		return true
	default:
		return false
	}
}

func writeBadRequest(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusBadRequest, httperrors.APIError{Code: code, Message: message})
}

func writeUnauthorized(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusUnauthorized, httperrors.APIError{Code: code, Message: message})
}

func writeForbidden(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusForbidden, httperrors.APIError{Code: code, Message: message})
}

func writeNotFound(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusNotFound, httperrors.APIError{Code: code, Message: message})
}

func writeInternal(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusInternalServerError, httperrors.APIError{Code: code, Message: message})
}
