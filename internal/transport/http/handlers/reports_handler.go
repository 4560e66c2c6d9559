package handlers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/schamil355/nokhchi-znakomstva-sub002/internal/domain/enums"
	reportssvc "github.com/schamil355/nokhchi-znakomstva-sub002/internal/services/reports"
	"github.com/schamil355/nokhchi-znakomstva-sub002/internal/transport/http/dto"
	httperrors "github.com/schamil355/nokhchi-znakomstva-sub002/internal/transport/http/errors"
)

type ReportsHandler struct {
	service *reportssvc.Service
}

func NewReportsHandler(service *reportssvc.Service) *ReportsHandler {
	return &ReportsHandler{service: service}
}

// Report serves POST /v1/reports.
func (h *ReportsHandler) Report(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.service == nil {
		writeInternal(w, "REPORTS_SERVICE_UNAVAILABLE", "reports service is unavailable")
		return
	}

	var req dto.ReportRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}
	targetID, ok := parseUUID(req.TargetID)
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "target_id must be a uuid")
		return
	}

	id, err := h.service.Report(r.Context(), identity.UserID, targetID, enums.ReportReason(req.Reason), req.Details)
	if err != nil {
		h.writeError(w, r, err, "failed to file report")
		return
	}
	httperrors.Write(w, http.StatusCreated, dto.ReportResponse{ID: id})
}

// Block serves POST /v1/blocks.
func (h *ReportsHandler) Block(w http.ResponseWriter, r *http.Request) {
	identity, targetID, ok := h.decodeTarget(w, r)
	if !ok {
		return
	}
	if err := h.service.Block(r.Context(), identity, targetID); err != nil {
		h.writeError(w, r, err, "failed to block user")
		return
	}
	httperrors.Write(w, http.StatusOK, dto.OKResponse{OK: true})
}

// Unblock serves DELETE /v1/blocks.
func (h *ReportsHandler) Unblock(w http.ResponseWriter, r *http.Request) {
	identity, targetID, ok := h.decodeTarget(w, r)
	if !ok {
		return
	}
	removed, err := h.service.Unblock(r.Context(), identity, targetID)
	if err != nil {
		h.writeError(w, r, err, "failed to unblock user")
		return
	}
	httperrors.Write(w, http.StatusOK, dto.UnblockResponse{Unblocked: removed})
}

func (h *ReportsHandler) decodeTarget(w http.ResponseWriter, r *http.Request) (userID, targetID uuid.UUID, ok bool) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return userID, targetID, false
	}
	if h.service == nil {
		writeInternal(w, "REPORTS_SERVICE_UNAVAILABLE", "reports service is unavailable")
		return userID, targetID, false
	}

	var req dto.TargetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return userID, targetID, false
	}
	target, ok := parseUUID(req.TargetID)
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "target_id must be a uuid")
		return userID, targetID, false
	}
	return identity.UserID, target, true
}

func (h *ReportsHandler) writeError(w http.ResponseWriter, r *http.Request, err error, message string) {
	if writeThrottled(w, r, err) {
		return
	}
	if errors.Is(err, reportssvc.ErrValidation) {
		writeBadRequest(w, "VALIDATION_ERROR", err.Error())
		return
	}
	writeInternal(w, "INTERNAL_ERROR", message)
}
