package config_test

import (
	"strings"
	"testing"

	"novadream/internal/config"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if !cfg.ValidSegment("saas") || !cfg.ValidSegment(config.FallbackSegment) {
		t.Fatalf("segments = %v", cfg.Segments)
	}
	if cfg.ValidSegment("crypto") {
		t.Fatal("unknown segment must not validate")
	}
	if cfg.Threshold() != 0.85 {
		t.Fatalf("threshold = %v", cfg.Threshold())
	}
}

func TestGenerateDefaultRoundTrips(t *testing.T) {
	cfg, err := config.FromYAML([]byte(config.GenerateDefault()))
	if err != nil {
		t.Fatalf("generated default does not parse: %v", err)
	}
	if cfg.Owner.ID != "local-user" {
		t.Fatalf("owner = %q", cfg.Owner.ID)
	}
	if !cfg.Auth.AllowLegacyOwnerHeader {
		t.Fatal("default must allow the legacy owner header")
	}
}

func TestValidateRejectsMissingFallback(t *testing.T) {
	_, err := config.FromYAML([]byte("segments:\n  - saas\n  - freelance\n"))
	if err == nil || !strings.Contains(err.Error(), config.FallbackSegment) {
		t.Fatalf("err = %v", err)
	}
}

func TestValidateRejectsBadThreshold(t *testing.T) {
	_, err := config.FromYAML([]byte("segments:\n  - other\nmatcher:\n  threshold: 1.5\n"))
	if err == nil {
		t.Fatal("threshold above 1 must be rejected")
	}
}

func TestValidateRejectsWebhookWithoutURL(t *testing.T) {
	_, err := config.FromYAML([]byte("segments:\n  - other\nwebhooks:\n  - secret: s\n"))
	if err == nil {
		t.Fatal("webhook without url must be rejected")
	}
}

func TestThresholdDefaultsWhenUnset(t *testing.T) {
	cfg, err := config.FromYAML([]byte("segments:\n  - other\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Threshold() != config.DefaultThreshold {
		t.Fatalf("threshold = %v", cfg.Threshold())
	}
}
