package handlers

import (
	"errors"
	"net/http"

	"github.com/schamil355/nokhchi-znakomstva-sub002/internal/domain/model"
	matchingsvc "github.com/schamil355/nokhchi-znakomstva-sub002/internal/services/matching"
	"github.com/schamil355/nokhchi-znakomstva-sub002/internal/transport/http/dto"
	httperrors "github.com/schamil355/nokhchi-znakomstva-sub002/internal/transport/http/errors"
)

type LikesHandler struct {
	service *matchingsvc.Service
}

func NewLikesHandler(service *matchingsvc.Service) *LikesHandler {
	return &LikesHandler{service: service}
}

// Like serves POST /v1/likes.
func (h *LikesHandler) Like(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.service == nil {
		writeInternal(w, "MATCHING_SERVICE_UNAVAILABLE", "matching service is unavailable")
		return
	}

	var req dto.TargetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}
	targetID, ok := parseUUID(req.TargetID)
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "target_id must be a uuid")
		return
	}

	result, err := h.service.SendLike(r.Context(), identity.UserID, targetID)
	if err != nil {
		h.writeError(w, r, err, "failed to send like")
		return
	}

	resp := dto.LikeResponse{
		Matched:            result.Matched(),
		CompatibilityScore: result.CompatibilityScore,
	}
	if result.Match != nil {
		resp.Match = mapMatch(*result.Match)
	}
	httperrors.Write(w, http.StatusOK, resp)
}

// Pass serves POST /v1/passes.
func (h *LikesHandler) Pass(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.service == nil {
		writeInternal(w, "MATCHING_SERVICE_UNAVAILABLE", "matching service is unavailable")
		return
	}

	var req dto.TargetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}
	targetID, ok := parseUUID(req.TargetID)
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "target_id must be a uuid")
		return
	}

	if err := h.service.Pass(r.Context(), identity.UserID, targetID); err != nil {
		h.writeError(w, r, err, "failed to pass profile")
		return
	}
	httperrors.Write(w, http.StatusOK, dto.OKResponse{OK: true})
}

func (h *LikesHandler) writeError(w http.ResponseWriter, r *http.Request, err error, message string) {
	if writeThrottled(w, r, err) {
		return
	}
	switch {
	case errors.Is(err, matchingsvc.ErrValidation):
		writeBadRequest(w, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, matchingsvc.ErrBlocked):
		writeForbidden(w, "BLOCKED", "interaction is not allowed")
	default:
		writeInternal(w, "INTERNAL_ERROR", message)
	}
}

func mapMatch(m model.Match) *dto.MatchResponse {
	return &dto.MatchResponse{
		ID:        m.ID.String(),
		UserA:     m.UserA.String(),
		UserB:     m.UserB.String(),
		CreatedAt: m.CreatedAt,
		IsActive:  m.IsActive,
	}
}
