package geo

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/schamil355/nokhchi-znakomstva-sub002/internal/config"
	"github.com/schamil355/nokhchi-znakomstva-sub002/internal/domain/enums"
)

const earthRadiusKM = 6371.0

var ErrValidation = errors.New("validation error")

// Input carries every location signal known for a user. All fields are optional.
type Input struct {
	Latitude    *float64
	Longitude   *float64
	CountryName string
	CountryCode string
	RegionCode  string
}

type Classifier struct {
	refLat      float64
	refLon      float64
	radiusKM    float64
	sentinel    string
	targetNames []string
	homeCode    string
	homeNames   []string
	blocCodes   map[string]struct{}
	blocNames   map[string]struct{}
}

func NewClassifier(cfg config.GeoConfig) *Classifier {
	c := &Classifier{
		refLat:      cfg.ReferenceLat,
		refLon:      cfg.ReferenceLon,
		radiusKM:    cfg.RadiusKM,
		sentinel:    normalizeCode(cfg.SentinelRegionCode),
		targetNames: normalizeNames(cfg.TargetNames),
		homeCode:    normalizeCode(cfg.HomeCountryCode),
		homeNames:   normalizeNames(cfg.HomeCountryNames),
		blocCodes:   make(map[string]struct{}, len(cfg.BlocCodes)),
		blocNames:   make(map[string]struct{}, len(cfg.BlocNames)),
	}
	for _, code := range cfg.BlocCodes {
		if code = normalizeCode(code); code != "" {
			c.blocCodes[code] = struct{}{}
		}
	}
	for _, name := range normalizeNames(cfg.BlocNames) {
		c.blocNames[name] = struct{}{}
	}
	return c
}

// Classify maps location signals to a region. Coordinates inside the
// reference radius win over every other signal.
func (c *Classifier) Classify(in Input) enums.Region {
	if in.Latitude != nil && in.Longitude != nil && validateCoordinates(*in.Latitude, *in.Longitude) == nil {
		if DistanceKM(*in.Latitude, *in.Longitude, c.refLat, c.refLon) <= c.radiusKM {
			return enums.RegionTargetMetro
		}
	}

	region := normalizeCode(in.RegionCode)
	if c.sentinel != "" && region == c.sentinel {
		return enums.RegionTargetMetro
	}

	name := normalizeName(in.CountryName)
	code := normalizeCode(in.CountryCode)

	if containsAny(name, c.targetNames) || containsAny(normalizeName(in.RegionCode), c.targetNames) {
		return enums.RegionTargetMetro
	}

	if c.homeCode != "" && (code == c.homeCode || region == c.homeCode) {
		return enums.RegionHomeCountry
	}
	if containsAny(name, c.homeNames) {
		return enums.RegionHomeCountry
	}

	if _, ok := c.blocCodes[code]; ok && code != "" {
		return enums.RegionPartnerBloc
	}
	if _, ok := c.blocNames[name]; ok && name != "" {
		return enums.RegionPartnerBloc
	}

	return enums.RegionOther
}

// Consistency is the outcome of comparing device reported location with the
// country derived from the client IP.
type Consistency struct {
	DeviceRegion enums.Region
	IPRegion     enums.Region
	Mismatch     bool
}

// CheckConsistency flags a likely VPN when the device and IP signals land in
// different regions. Missing signals never count as a mismatch.
func (c *Classifier) CheckConsistency(device Input, ipCountryCode string) Consistency {
	out := Consistency{
		DeviceRegion: c.Classify(device),
		IPRegion:     enums.RegionOther,
	}
	if strings.TrimSpace(ipCountryCode) == "" {
		return out
	}
	out.IPRegion = c.Classify(Input{CountryCode: ipCountryCode})

	deviceKnown := (device.Latitude != nil && device.Longitude != nil) ||
		strings.TrimSpace(device.CountryCode) != "" ||
		strings.TrimSpace(device.CountryName) != "" ||
		strings.TrimSpace(device.RegionCode) != ""
	if !deviceKnown {
		return out
	}

	// GPS inside the metro still sits in the home country.
	if out.DeviceRegion == enums.RegionTargetMetro && out.IPRegion == enums.RegionHomeCountry {
		return out
	}
	out.Mismatch = out.DeviceRegion != out.IPRegion
	return out
}

func ValidateCoordinates(lat, lon float64) error {
	return validateCoordinates(lat, lon)
}

func validateCoordinates(lat, lon float64) error {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return fmt.Errorf("invalid coordinates: %w", ErrValidation)
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return fmt.Errorf("coordinates out of range: %w", ErrValidation)
	}
	return nil
}

// DistanceKM is the haversine great circle distance between two points.
func DistanceKM(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := func(v float64) float64 { return v * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKM * c
}

func normalizeCode(v string) string {
	return strings.ToUpper(strings.TrimSpace(v))
}

func normalizeName(v string) string {
	return strings.Join(strings.Fields(strings.ToLower(v)), " ")
}

func normalizeNames(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = normalizeName(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func containsAny(value string, needles []string) bool {
	if value == "" {
		return false
	}
	for _, needle := range needles {
		if strings.Contains(value, needle) {
			return true
		}
	}
	return false
}
