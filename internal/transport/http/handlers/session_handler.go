package handlers

import (
	"errors"
	"net/http"

	sessionsvc "github.com/schamil355/nokhchi-znakomstva-sub002/internal/services/session"
	"github.com/schamil355/nokhchi-znakomstva-sub002/internal/transport/http/dto"
	httperrors "github.com/schamil355/nokhchi-znakomstva-sub002/internal/transport/http/errors"
)

type SessionHandler struct {
	sessions *sessionsvc.Manager
}

func NewSessionHandler(sessions *sessionsvc.Manager) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.sessions == nil {
		writeInternal(w, "SESSION_SERVICE_UNAVAILABLE", "session service is unavailable")
		return
	}

	session, err := h.sessions.Activate(r.Context(), identity.UserID)
	if err != nil {
		if writeThrottled(w, r, err) {
			return
		}
		if errors.Is(err, sessionsvc.ErrManagerClosed) {
			httperrors.Write(w, http.StatusServiceUnavailable, httperrors.APIError{
				Code:    "SHUTTING_DOWN",
				Message: "server is shutting down",
			})
			return
		}
		writeInternal(w, "INTERNAL_ERROR", "failed to start session")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.SessionResponse{
		UserID:    session.UserID.String(),
		StartedAt: session.StartedAt,
	})
}

func (h *SessionHandler) End(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.sessions == nil {
		writeInternal(w, "SESSION_SERVICE_UNAVAILABLE", "session service is unavailable")
		return
	}

	h.sessions.End(identity.UserID)
	httperrors.Write(w, http.StatusOK, dto.OKResponse{OK: true})
}
