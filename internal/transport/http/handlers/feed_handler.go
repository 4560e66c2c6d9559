package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/schamil355/nokhchi-znakomstva-sub002/internal/domain/model"
	"github.com/schamil355/nokhchi-znakomstva-sub002/internal/domain/rules"
	feedsvc "github.com/schamil355/nokhchi-znakomstva-sub002/internal/services/feed"
	geosvc "github.com/schamil355/nokhchi-znakomstva-sub002/internal/services/geo"
	"github.com/schamil355/nokhchi-znakomstva-sub002/internal/transport/http/dto"
	httperrors "github.com/schamil355/nokhchi-znakomstva-sub002/internal/transport/http/errors"
)

type FeedHandler struct {
	service *feedsvc.Service
	now     func() time.Time
}

func NewFeedHandler(service *feedsvc.Service) *FeedHandler {
	return &FeedHandler{service: service, now: time.Now}
}

// Handle serves GET /v1/feed?lat=..&lon=..&cursor=..
func (h *FeedHandler) Handle(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.service == nil {
		writeInternal(w, "FEED_SERVICE_UNAVAILABLE", "feed service is unavailable")
		return
	}

	origin, err := parseOrigin(r)
	if err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "lat and lon must be valid coordinates given together")
		return
	}

	page, err := h.service.Fetch(r.Context(), identity.UserID, origin, r.URL.Query().Get("cursor"))
	if err != nil {
		if writeThrottled(w, r, err) {
			return
		}
		switch {
		case errors.Is(err, feedsvc.ErrInvalidCursor):
			writeBadRequest(w, "INVALID_CURSOR", "invalid cursor")
		case errors.Is(err, feedsvc.ErrValidation):
			writeBadRequest(w, "VALIDATION_ERROR", "invalid feed request")
		default:
			writeInternal(w, "INTERNAL_ERROR", "failed to load feed")
		}
		return
	}

	now := h.now()
	items := make([]dto.FeedProfileResponse, 0, len(page.Profiles))
	for _, p := range page.Profiles {
		items = append(items, mapFeedProfile(p, origin, now))
	}

	resp := dto.FeedResponse{Items: items, GeneratedAt: now.UTC()}
	if page.NextCursor != "" {
		next := page.NextCursor
		resp.NextCursor = &next
	}
	httperrors.Write(w, http.StatusOK, resp)
}

func parseOrigin(r *http.Request) (*model.Origin, error) {
	q := r.URL.Query()
	rawLat, rawLon := strings.TrimSpace(q.Get("lat")), strings.TrimSpace(q.Get("lon"))
	if rawLat == "" && rawLon == "" {
		return nil, nil
	}
	lat, err := strconv.ParseFloat(rawLat, 64)
	if err != nil {
		return nil, err
	}
	lon, err := strconv.ParseFloat(rawLon, 64)
	if err != nil {
		return nil, err
	}
	if err := geosvc.ValidateCoordinates(lat, lon); err != nil {
		return nil, err
	}
	return &model.Origin{Lat: lat, Lon: lon}, nil
}

func mapFeedProfile(p model.Profile, origin *model.Origin, now time.Time) dto.FeedProfileResponse {
	age, _ := rules.AgeAt(p.Birthday, now)
	out := dto.FeedProfileResponse{
		UserID:      p.UserID.String(),
		DisplayName: p.DisplayName,
		Age:         age,
		Gender:      string(p.Gender),
		Intention:   string(p.Intention),
		Interests:   append([]string{}, p.Interests...),
		Verified:    p.Verified,
		IsPremium:   p.IsPremium,
		Photos:      make([]dto.FeedPhotoResponse, 0, len(p.Photos)),
	}
	if origin != nil && p.HasCoordinates() {
		d := geosvc.DistanceKM(origin.Lat, origin.Lon, *p.Latitude, *p.Longitude)
		out.DistanceKM = &d
	}
	for _, photo := range p.Photos {
		out.Photos = append(out.Photos, dto.FeedPhotoResponse{
			ID:             photo.ID,
			AssetID:        photo.AssetID,
			URL:            photo.URL,
			VisibilityMode: string(photo.VisibilityMode),
		})
	}
	return out
}
