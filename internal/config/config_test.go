package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadUsesDefaultsAndYAMLOverrides(t *testing.T) {
	clearConfigEnv(t)

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")
	yaml := `
geo:
  radius_km: 90
  home_country_code: KZ
limits:
  like:
    interval: 1s
    max_calls: 2
photos:
  grant_ttl: 5m
  cache_size: 50
discovery:
  age_max: 60
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Geo.RadiusKM != 90 {
		t.Fatalf("unexpected geo radius: %v", cfg.Geo.RadiusKM)
	}
	if cfg.Geo.HomeCountryCode != "KZ" {
		t.Fatalf("unexpected home country code: %s", cfg.Geo.HomeCountryCode)
	}
	if cfg.Limits.Like.Interval != time.Second || cfg.Limits.Like.MaxCalls != 2 {
		t.Fatalf("unexpected like policy: %+v", cfg.Limits.Like)
	}
	if cfg.Photos.GrantTTL != 5*time.Minute {
		t.Fatalf("unexpected grant ttl: %s", cfg.Photos.GrantTTL)
	}
	if cfg.Photos.CacheSize != 50 {
		t.Fatalf("unexpected cache size: %d", cfg.Photos.CacheSize)
	}
	if cfg.Discovery.AgeMax != 60 {
		t.Fatalf("unexpected age max: %d", cfg.Discovery.AgeMax)
	}

	if cfg.Geo.SentinelRegionCode != "CHECHNYA" {
		t.Fatalf("sentinel region code default should stay CHECHNYA")
	}
	if cfg.Limits.Report.MaxCalls != 2 {
		t.Fatalf("report policy default should stay 2 calls")
	}
	if cfg.Photos.GuardWindow != 10*time.Second {
		t.Fatalf("guard window default should stay 10s")
	}
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	clearConfigEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load config with missing file: %v", err)
	}

	if cfg.Geo.RadiusKM != 130 {
		t.Fatalf("unexpected default radius: %v", cfg.Geo.RadiusKM)
	}
	if len(cfg.Geo.BlocCodes) != 50 {
		t.Fatalf("unexpected bloc size: %d", len(cfg.Geo.BlocCodes))
	}
	if cfg.Discovery.AgeMin != 18 || cfg.Discovery.AgeMax != 45 {
		t.Fatalf("unexpected age defaults: %d-%d", cfg.Discovery.AgeMin, cfg.Discovery.AgeMax)
	}
	if cfg.Photos.GrantTTL != 120*time.Second {
		t.Fatalf("unexpected default grant ttl: %s", cfg.Photos.GrantTTL)
	}
	if cfg.Photos.RetryBase != 2*time.Second || cfg.Photos.RetryMax != time.Minute {
		t.Fatalf("unexpected retry bounds: %s-%s", cfg.Photos.RetryBase, cfg.Photos.RetryMax)
	}
	if cfg.Limits.Like.MaxCalls != 5 || cfg.Limits.Like.Interval != 3*time.Second {
		t.Fatalf("unexpected like policy default: %+v", cfg.Limits.Like)
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("PHOTO_GRANT_TTL", "45s")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("POSTGRES_AUTO_MIGRATE", "false")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Photos.GrantTTL != 45*time.Second {
		t.Fatalf("unexpected grant ttl: %s", cfg.Photos.GrantTTL)
	}
	if cfg.Redis.DB != 3 {
		t.Fatalf("unexpected redis db: %d", cfg.Redis.DB)
	}
	if cfg.Postgres.AutoMigrate {
		t.Fatalf("expected auto migrate to be disabled")
	}
}

func TestLoadRejectsInvalidEnvValue(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("SESSION_IDLE_TTL", "soon")

	if _, err := Load(""); err == nil {
		t.Fatalf("expected parse error for invalid duration")
	}
}

func TestLoadRejectsDefaultSecretInProduction(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("APP_ENV", "prod")

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatalf("expected error when auth.jwt_secret is the default in production")
	}
}

func TestValidateRejectsBrokenRatePolicy(t *testing.T) {
	cfg := Default()
	cfg.Limits.Feed.MaxCalls = 0

	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error for zero max_calls")
	}
}

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"APP_ENV",
		"HTTP_ADDR",
		"HTTP_READ_TIMEOUT",
		"HTTP_WRITE_TIMEOUT",
		"HTTP_IDLE_TIMEOUT",
		"HTTP_REQUEST_TIMEOUT",
		"LOG_LEVEL",
		"POSTGRES_DSN",
		"POSTGRES_AUTO_MIGRATE",
		"REDIS_ADDR",
		"REDIS_PASSWORD",
		"REDIS_DB",
		"S3_ENDPOINT",
		"S3_ACCESS_KEY",
		"S3_SECRET_KEY",
		"S3_ORIGINAL_BUCKET",
		"S3_BLURRED_BUCKET",
		"S3_USE_SSL",
		"AUTH_JWT_SECRET",
		"AUTH_ISSUER",
		"PHOTO_GRANT_TTL",
		"PHOTO_GUARD_WINDOW",
		"PHOTO_CACHE_SIZE",
		"MATCH_REQUEST_TIMEOUT",
		"SESSION_IDLE_TTL",
		"CLEANUP_INTERVAL",
	} {
		t.Setenv(key, "")
	}
}
