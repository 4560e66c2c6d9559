package feed

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/schamil355/nokhchi-znakomstva-sub002/internal/domain/model"
	"github.com/schamil355/nokhchi-znakomstva-sub002/internal/domain/rules"
	"github.com/schamil355/nokhchi-znakomstva-sub002/internal/services/geo"
	pgrepo "github.com/schamil355/nokhchi-znakomstva-sub002/internal/repo/postgres"
)

// Assembler turns raw candidate rows into the viewer's feed. The feed is not
// ranked: surviving profiles keep the order the data store returned.
type Assembler struct {
	classifier *geo.Classifier
	logger     *zap.Logger
	now        func() time.Time
}

func NewAssembler(classifier *geo.Classifier, logger *zap.Logger) *Assembler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Assembler{
		classifier: classifier,
		logger:     logger,
		now:        time.Now,
	}
}

// Assemble filters rows for viewerID. origin may be nil when the viewer's
// position is unknown, in which case distance bounds are not applied.
func (a *Assembler) Assemble(viewerID uuid.UUID, filters model.DiscoveryFilters, rows []model.CandidateRow, origin *model.Origin) []model.Profile {
	now := a.now()
	out := make([]model.Profile, 0, len(rows))

	for _, row := range rows {
		profile := pgrepo.ProfileFromRow(row)
		if profile.UserID == viewerID {
			continue
		}
		if !filters.HasIntention(profile.Intention) {
			continue
		}

		eligible, err := rules.CheckEligibility(profile, filters, now)
		if err != nil {
			if errors.Is(err, rules.ErrInvalidBirthday) {
				a.logger.Warn("candidate excluded: invalid birthday", zap.String("user_id", profile.UserID.String()))
			}
			continue
		}
		if !eligible {
			continue
		}
		if !withinDistance(profile, filters, origin) {
			continue
		}
		if !a.inRegion(profile, filters) {
			continue
		}

		out = append(out, profile)
	}

	return out
}

func withinDistance(p model.Profile, filters model.DiscoveryFilters, origin *model.Origin) bool {
	if origin == nil || !p.HasCoordinates() {
		return true
	}
	d := geo.DistanceKM(origin.Lat, origin.Lon, *p.Latitude, *p.Longitude)
	if d < filters.MinDistanceKM {
		return false
	}
	return filters.MaxDistanceKM <= 0 || d <= filters.MaxDistanceKM
}

// inRegion only rejects candidates whose location is known and classifies
// into a different region than the one requested.
func (a *Assembler) inRegion(p model.Profile, filters model.DiscoveryFilters) bool {
	if filters.Region == "" || a.classifier == nil || !p.HasLocation() {
		return true
	}
	region := a.classifier.Classify(geo.Input{
		Latitude:    p.Latitude,
		Longitude:   p.Longitude,
		CountryName: p.Country,
		CountryCode: p.Country,
		RegionCode:  p.RegionCode,
	})
	return region == filters.Region
}
