package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	geosvc "github.com/schamil355/nokhchi-znakomstva-sub002/internal/services/geo"
	"github.com/schamil355/nokhchi-znakomstva-sub002/internal/transport/http/dto"
	httperrors "github.com/schamil355/nokhchi-znakomstva-sub002/internal/transport/http/errors"
)

type LocationStore interface {
	SaveLocation(ctx context.Context, userID uuid.UUID, lat, lon *float64, country, regionCode string) error
}

type LocationHandler struct {
	classifier *geosvc.Classifier
	store      LocationStore
	logger     *zap.Logger
}

func NewLocationHandler(classifier *geosvc.Classifier, store LocationStore, logger *zap.Logger) *LocationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocationHandler{classifier: classifier, store: store, logger: logger}
}

// Region serves POST /v1/location/region: it classifies the reported signals,
// compares them with the IP country and stores them on the profile.
func (h *LocationHandler) Region(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.classifier == nil {
		writeInternal(w, "LOCATION_SERVICE_UNAVAILABLE", "location service is unavailable")
		return
	}

	var req dto.LocationRegionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}
	if (req.Lat == nil) != (req.Lon == nil) {
		writeBadRequest(w, "VALIDATION_ERROR", "lat and lon must be given together")
		return
	}
	if req.Lat != nil {
		if err := geosvc.ValidateCoordinates(*req.Lat, *req.Lon); err != nil {
			writeBadRequest(w, "VALIDATION_ERROR", "invalid lat/lon")
			return
		}
	}

	input := geosvc.Input{
		Latitude:    req.Lat,
		Longitude:   req.Lon,
		CountryName: req.CountryName,
		CountryCode: req.CountryCode,
		RegionCode:  req.RegionCode,
	}
	consistency := h.classifier.CheckConsistency(input, req.IPCountryCode)

	if h.store != nil {
		country := strings.TrimSpace(req.CountryCode)
		if country == "" {
			country = strings.TrimSpace(req.CountryName)
		}
		if err := h.store.SaveLocation(r.Context(), identity.UserID, req.Lat, req.Lon, country, req.RegionCode); err != nil {
			h.logger.Warn("save location failed", zap.String("user_id", identity.UserID.String()), zap.Error(err))
		}
	}

	resp := dto.LocationRegionResponse{
		Region:       string(consistency.DeviceRegion),
		VPNSuspected: consistency.Mismatch,
	}
	if strings.TrimSpace(req.IPCountryCode) != "" {
		ipRegion := string(consistency.IPRegion)
		resp.IPRegion = &ipRegion
	}
	httperrors.Write(w, http.StatusOK, resp)
}
