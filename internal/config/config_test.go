package config

import (
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.AutoThreshold != 95.0 || cfg.ReviewThreshold != 70.0 {
		t.Fatalf("unexpected thresholds: %v / %v", cfg.AutoThreshold, cfg.ReviewThreshold)
	}
	if cfg.MaxTries != 3 {
		t.Fatalf("unexpected max tries: %d", cfg.MaxTries)
	}
	want := []time.Duration{time.Second, 5 * time.Second, 25 * time.Second}
	if len(cfg.RetryDelays) != len(want) {
		t.Fatalf("unexpected delays: %v", cfg.RetryDelays)
	}
	for i, d := range want {
		if cfg.RetryDelays[i] != d {
			t.Fatalf("delay[%d] = %v, want %v", i, cfg.RetryDelays[i], d)
		}
	}
}

func TestThresholdOrderingValidated(t *testing.T) {
	t.Setenv("MATCH_REVIEW_THRESHOLD", "96")
	t.Setenv("MATCH_AUTO_THRESHOLD", "95")
	if _, err := Load(); err == nil {
		t.Fatal("review threshold above auto threshold must be rejected")
	}
}

func TestParseDelays(t *testing.T) {
	delays, err := parseDelays("500ms, 2s,1m")
	if err != nil {
		t.Fatal(err)
	}
	if len(delays) != 3 || delays[0] != 500*time.Millisecond || delays[2] != time.Minute {
		t.Fatalf("unexpected delays: %v", delays)
	}

	if _, err := parseDelays("1s,soon"); err == nil {
		t.Fatal("garbage delay must be rejected")
	}
}
