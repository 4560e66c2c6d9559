package geo

import (
	"testing"

	"github.com/schamil355/nokhchi-znakomstva-sub002/internal/config"
	"github.com/schamil355/nokhchi-znakomstva-sub002/internal/domain/enums"
)

func ptr(v float64) *float64 { return &v }

func TestClassify(t *testing.T) {
	c := NewClassifier(config.Default().Geo)

	tests := []struct {
		name string
		in   Input
		want enums.Region
	}{
		{name: "gps inside radius beats country", in: Input{Latitude: ptr(43.31), Longitude: ptr(45.70), CountryCode: "DE", CountryName: "Germany"}, want: enums.RegionTargetMetro},
		{name: "gps near edge", in: Input{Latitude: ptr(43.9), Longitude: ptr(46.6)}, want: enums.RegionTargetMetro},
		{name: "gps outside falls through to country", in: Input{Latitude: ptr(52.52), Longitude: ptr(13.40), CountryCode: "de"}, want: enums.RegionPartnerBloc},
		{name: "sentinel region code", in: Input{RegionCode: "chechnya", CountryCode: "FR"}, want: enums.RegionTargetMetro},
		{name: "german transliteration", in: Input{CountryName: "Republik Tschetschenien"}, want: enums.RegionTargetMetro},
		{name: "cyrillic name", in: Input{CountryName: "Чечня"}, want: enums.RegionTargetMetro},
		{name: "home by code", in: Input{CountryCode: "ru"}, want: enums.RegionHomeCountry},
		{name: "home by region code", in: Input{RegionCode: "RU"}, want: enums.RegionHomeCountry},
		{name: "home by name", in: Input{CountryName: "Russian Federation"}, want: enums.RegionHomeCountry},
		{name: "bloc by name", in: Input{CountryName: "  Bosnia and   Herzegovina "}, want: enums.RegionPartnerBloc},
		{name: "bloc by code", in: Input{CountryCode: "VA"}, want: enums.RegionPartnerBloc},
		{name: "outside everything", in: Input{CountryCode: "US", CountryName: "United States"}, want: enums.RegionOther},
		{name: "no signals", in: Input{}, want: enums.RegionOther},
		{name: "invalid coordinates ignored", in: Input{Latitude: ptr(143.31), Longitude: ptr(45.70), CountryCode: "RU"}, want: enums.RegionHomeCountry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Classify(tt.in); got != tt.want {
				t.Fatalf("unexpected region: got %s want %s", got, tt.want)
			}
		})
	}
}

func TestClassifyEveryPointInsideRadius(t *testing.T) {
	cfg := config.Default().Geo
	c := NewClassifier(cfg)

	for dLat := -1.0; dLat <= 1.0; dLat += 0.1 {
		for dLon := -1.4; dLon <= 1.4; dLon += 0.1 {
			lat := cfg.ReferenceLat + dLat
			lon := cfg.ReferenceLon + dLon
			inside := DistanceKM(lat, lon, cfg.ReferenceLat, cfg.ReferenceLon) <= cfg.RadiusKM
			got := c.Classify(Input{Latitude: &lat, Longitude: &lon, CountryCode: "US"})
			if inside && got != enums.RegionTargetMetro {
				t.Fatalf("point %.2f,%.2f is inside radius but classified %s", lat, lon, got)
			}
			if !inside && got != enums.RegionOther {
				t.Fatalf("point %.2f,%.2f is outside radius but classified %s", lat, lon, got)
			}
		}
	}
}

func TestDistanceKM(t *testing.T) {
	// Grozny to Makhachkala is roughly 155 km.
	got := DistanceKM(43.3189, 45.6981, 42.9849, 47.5047)
	if got < 145 || got > 165 {
		t.Fatalf("unexpected distance: %.1f", got)
	}
	if DistanceKM(10, 10, 10, 10) != 0 {
		t.Fatalf("distance to self must be zero")
	}
}

func TestCheckConsistency(t *testing.T) {
	c := NewClassifier(config.Default().Geo)

	inMetro := Input{Latitude: ptr(43.31), Longitude: ptr(45.70)}
	if got := c.CheckConsistency(inMetro, "RU"); got.Mismatch {
		t.Fatalf("metro gps with home ip must not mismatch: %+v", got)
	}
	if got := c.CheckConsistency(inMetro, "NL"); !got.Mismatch {
		t.Fatalf("metro gps with foreign ip must mismatch: %+v", got)
	}
	if got := c.CheckConsistency(Input{CountryCode: "DE"}, "FR"); got.Mismatch {
		t.Fatalf("same bloc must not mismatch: %+v", got)
	}
	if got := c.CheckConsistency(Input{}, "US"); got.Mismatch {
		t.Fatalf("missing device signal must not mismatch: %+v", got)
	}
	if got := c.CheckConsistency(Input{CountryCode: "RU"}, ""); got.Mismatch {
		t.Fatalf("missing ip signal must not mismatch: %+v", got)
	}
}
