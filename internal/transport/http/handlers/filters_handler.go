package handlers

import (
	"errors"
	"net/http"

	"github.com/schamil355/nokhchi-znakomstva-sub002/internal/domain/enums"
	"github.com/schamil355/nokhchi-znakomstva-sub002/internal/domain/model"
	"github.com/schamil355/nokhchi-znakomstva-sub002/internal/domain/rules"
	prefsvc "github.com/schamil355/nokhchi-znakomstva-sub002/internal/services/preferences"
	"github.com/schamil355/nokhchi-znakomstva-sub002/internal/transport/http/dto"
	httperrors "github.com/schamil355/nokhchi-znakomstva-sub002/internal/transport/http/errors"
)

type FiltersHandler struct {
	service *prefsvc.Service
}

func NewFiltersHandler(service *prefsvc.Service) *FiltersHandler {
	return &FiltersHandler{service: service}
}

func (h *FiltersHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.service == nil {
		writeInternal(w, "FILTERS_SERVICE_UNAVAILABLE", "filters service is unavailable")
		return
	}

	filters, err := h.service.Get(r.Context(), identity.UserID)
	if err != nil {
		writeInternal(w, "INTERNAL_ERROR", "failed to load filters")
		return
	}
	httperrors.Write(w, http.StatusOK, mapFilters(filters))
}

func (h *FiltersHandler) Update(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.service == nil {
		writeInternal(w, "FILTERS_SERVICE_UNAVAILABLE", "filters service is unavailable")
		return
	}

	var req dto.FiltersUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}
	patch, ok := buildPatch(req)
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "unknown gender or intention")
		return
	}

	filters, err := h.service.Update(r.Context(), identity.UserID, patch)
	if err != nil {
		if writeThrottled(w, r, err) {
			return
		}
		if errors.Is(err, prefsvc.ErrValidation) {
			writeBadRequest(w, "VALIDATION_ERROR", err.Error())
			return
		}
		writeInternal(w, "INTERNAL_ERROR", "failed to update filters")
		return
	}
	httperrors.Write(w, http.StatusOK, mapFilters(filters))
}

func buildPatch(req dto.FiltersUpdateRequest) (prefsvc.Patch, bool) {
	var patch prefsvc.Patch
	if req.Genders != nil {
		genders, clean := rules.ParseGenders(req.Genders)
		if !clean {
			return prefsvc.Patch{}, false
		}
		patch.Genders = genders
	}
	if req.Intentions != nil {
		intentions, clean := rules.ParseIntentions(req.Intentions)
		if !clean {
			return prefsvc.Patch{}, false
		}
		patch.Intentions = intentions
	}
	if req.AgeRange != nil {
		minAge, maxAge := req.AgeRange.Min, req.AgeRange.Max
		patch.AgeMin = &minAge
		patch.AgeMax = &maxAge
	}
	if req.Region != nil {
		region := enums.Region(*req.Region)
		patch.Region = &region
	}
	patch.MinDistanceKM = req.MinDistanceKM
	patch.MaxDistanceKM = req.MaxDistanceKM
	return patch, true
}

func mapFilters(f model.DiscoveryFilters) dto.FiltersResponse {
	out := dto.FiltersResponse{
		Genders:       make([]string, 0, len(f.Genders)),
		Intentions:    make([]string, 0, len(f.Intentions)),
		AgeRange:      dto.AgeRangeDTO{Min: f.AgeRange.Min, Max: f.AgeRange.Max},
		MinDistanceKM: f.MinDistanceKM,
		MaxDistanceKM: f.MaxDistanceKM,
	}
	for _, g := range f.Genders {
		out.Genders = append(out.Genders, string(g))
	}
	for _, i := range f.Intentions {
		out.Intentions = append(out.Intentions, string(i))
	}
	if f.Region != "" {
		region := string(f.Region)
		out.Region = &region
	}
	return out
}
