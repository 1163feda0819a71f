package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/maine/youtube_blog_worker/internal/scoring"
)

const sampleYAML = `
gates:
  require_eligible: true
niches:
  - key: "Weight Loss"
    keywords: ["weight loss tips", "fat loss"]
  - key: personal_finance
    name: Money
    tier: weekly
    keywords: ["budgeting"]
`

func TestLoadRoot_AppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadRoot(path)
	if err != nil {
		t.Fatalf("LoadRoot() error = %v", err)
	}

	if cfg.Niches[0].Key != "weight_loss" {
		t.Errorf("niche key = %q, want weight_loss", cfg.Niches[0].Key)
	}
	if cfg.Niches[0].Name != "Weight Loss" {
		t.Errorf("niche name = %q, want Weight Loss", cfg.Niches[0].Name)
	}
	if cfg.Niches[0].Tier != "daily" {
		t.Errorf("niche tier = %q, want daily", cfg.Niches[0].Tier)
	}
	if cfg.Niches[1].Name != "Money" {
		t.Errorf("explicit name overwritten: %q", cfg.Niches[1].Name)
	}
	if cfg.Pipeline.DetailBatchSize != 50 {
		t.Errorf("DetailBatchSize = %d, want 50", cfg.Pipeline.DetailBatchSize)
	}
	if cfg.State.Backend != "file" || cfg.State.Path == "" {
		t.Errorf("state defaults not applied: %+v", cfg.State)
	}
	if cfg.Gates.Threshold() != 0.8 || cfg.Gates.MinFinalScore == nil {
		t.Errorf("MinFinalScore = %v, want 0.8", cfg.Gates.MinFinalScore)
	}
	if cfg.Scoring != scoring.DefaultConfig() {
		t.Errorf("Scoring = %+v, want defaults", cfg.Scoring)
	}
	if cfg.TierDays("weekly") != 7 {
		t.Errorf("TierDays(weekly) = %d, want 7", cfg.TierDays("weekly"))
	}
}

func TestValidate(t *testing.T) {
	base := func() Root {
		r := Root{Niches: []Niche{{Key: "fitness", Keywords: []string{"workout"}}}}
		r.ApplyDefaults()
		return r
	}

	tests := []struct {
		name   string
		mutate func(*Root)
		want   error
	}{
		{"valid", func(*Root) {}, nil},
		{"no niches", func(r *Root) { r.Niches = nil }, ErrNoNiches},
		{"no keywords", func(r *Root) { r.Niches[0].Keywords = nil }, ErrNicheNoKeywords},
		{"unknown tier", func(r *Root) { r.Niches[0].Tier = "hourly" }, ErrUnknownTier},
		{"bad tier days", func(r *Root) { r.Tiers["daily"] = 0 }, ErrInvalidTierDays},
		{"bad backend", func(r *Root) { r.State.Backend = "mongo" }, ErrInvalidBackend},
		{"postgres without dsn", func(r *Root) { r.State.Backend = "postgres" }, ErrMissingStateTarget},
		{"threshold out of range", func(r *Root) { r.Gates.MinFinalScore = Float(1.5) }, ErrInvalidThreshold},
		{"threshold gate alone", func(r *Root) { r.Gates.RequireEligible = Bool(false); r.Gates.ThresholdEnabled = true }, nil},
		{"no publish gate", func(r *Root) { r.Gates.RequireEligible = Bool(false) }, ErrNoPublishGate},
		{"broken scoring window", func(r *Root) { r.Scoring.MaxAgeWeeks = 1 }, scoring.ErrInvalidConfig},
		{"bad log level", func(r *Root) { r.Logging.Level = "trace" }, ErrInvalidLogLevel},
		{"feeds without channels", func(r *Root) { r.Search.Provider = "feeds" }, ErrNoChannelFeeds},
		{"unknown provider", func(r *Root) { r.Search.Provider = "bing" }, ErrInvalidProvider},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := base()
			tt.mutate(&r)
			err := r.Validate()
			if tt.want == nil {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("Validate() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestHistoryTTL(t *testing.T) {
	day := 24 * time.Hour
	thirty := 30
	zero := 0

	tests := []struct {
		name string
		root Root
		want time.Duration
	}{
		{"gate off keeps forever", Root{Gates: Gates{RequireEligible: Bool(false), ThresholdEnabled: true}}, 0},
		{"default gate derives from age window", Root{}, 546 * day},
		{"gate on derives from age window", Root{Gates: Gates{RequireEligible: Bool(true)}}, 546 * day},
		{"explicit ttl wins", Root{State: State{HistoryTTLDays: &thirty}}, 30 * day},
		{"explicit zero disables", Root{Gates: Gates{RequireEligible: Bool(true)}, State: State{HistoryTTLDays: &zero}}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.root.HistoryTTL(); got != tt.want {
				t.Errorf("HistoryTTL() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNormalizeNicheKey(t *testing.T) {
	tests := map[string]string{
		"Weight Loss":     "weight_loss",
		`"fitness"`:       "fitness",
		"  Side Hustle  ": "side_hustle",
	}
	for in, want := range tests {
		if got := NormalizeNicheKey(in); got != want {
			t.Errorf("NormalizeNicheKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRetryPolicy(t *testing.T) {
	r := Root{}
	r.ApplyDefaults()
	p := r.Retry.RetryPolicy()
	if p.MaxAttempts != 3 || p.InitialDelay != time.Second || p.MaxDelay != 10*time.Second {
		t.Errorf("RetryPolicy() = %+v", p)
	}
}

func TestLoadEnvConfig(t *testing.T) {
	t.Setenv("YOUTUBE_API_KEY", "yt")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("SKIP_WRITER", "1")
	t.Setenv("DRY_RUN", "1")
	t.Setenv("CONFIG_PATH", "")

	env, err := LoadEnvConfig()
	if err != nil {
		t.Fatalf("LoadEnvConfig() error = %v", err)
	}
	if env.ConfigPath != "configs/pipeline.yaml" {
		t.Errorf("ConfigPath = %q", env.ConfigPath)
	}

	t.Setenv("DRY_RUN", "")
	t.Setenv("GOOGLE_CLIENT_ID", "")
	if _, err := LoadEnvConfig(); err == nil {
		t.Error("expected error without blogger credentials")
	}
}

func TestLoad_EnvOverridesBeforeValidation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	yaml := sampleYAML + "state:\n  backend: postgres\n"
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadRoot(path); !errors.Is(err, ErrMissingStateTarget) {
		t.Fatalf("LoadRoot() error = %v, want ErrMissingStateTarget", err)
	}

	cfg, err := Load(path, &EnvConfig{StateDSN: "postgres://localhost/blog"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.State.DSN != "postgres://localhost/blog" {
		t.Errorf("State.DSN = %q", cfg.State.DSN)
	}
	if cfg.Output.FeedPath != "out/posts.atom" {
		t.Errorf("Output.FeedPath = %q", cfg.Output.FeedPath)
	}
}

func TestLoadRoot_ShippedConfig(t *testing.T) {
	cfg, err := LoadRoot(filepath.Join("..", "..", "configs", "pipeline.yaml"))
	if err != nil {
		t.Fatalf("LoadRoot() error = %v", err)
	}
	if len(cfg.Niches) == 0 {
		t.Fatal("shipped config has no niches")
	}
	for _, n := range cfg.Niches {
		if _, ok := cfg.Tiers[n.Tier]; !ok {
			t.Errorf("niche %s uses unknown tier %q", n.Key, n.Tier)
		}
	}
	if cfg.HistoryTTL() != 546*24*time.Hour {
		t.Errorf("HistoryTTL() = %v", cfg.HistoryTTL())
	}
}

func TestLoadRoot_ExplicitZerosKept(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	yaml := `
scoring:
  min_age_weeks: 0
  stale_age_score: 0
gates:
  require_eligible: false
  threshold_enabled: true
  min_final_score: 0
niches:
  - key: fitness
    keywords: ["workout"]
`
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadRoot(path)
	if err != nil {
		t.Fatalf("LoadRoot() error = %v", err)
	}
	if cfg.Scoring.MinAgeWeeks != 0 || cfg.Scoring.StaleAgeScore != 0 {
		t.Errorf("explicit zeros replaced: min_age_weeks=%v stale_age_score=%v", cfg.Scoring.MinAgeWeeks, cfg.Scoring.StaleAgeScore)
	}
	// Не указанные ключи секции берутся из эталона
	if cfg.Scoring.MaxAgeWeeks != 78 || cfg.Scoring.MinDurationMinutes != 9 {
		t.Errorf("Scoring = %+v, want reference windows", cfg.Scoring)
	}
	if cfg.Gates.EligibleRequired() {
		t.Error("require_eligible: false ignored")
	}
	if cfg.Gates.Threshold() != 0 {
		t.Errorf("Threshold() = %v, want 0", cfg.Gates.Threshold())
	}
}

func TestLoadRoot_BothGatesOffRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	yaml := "gates:\n  require_eligible: false\nniches:\n  - key: fitness\n    keywords: [workout]\n"
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadRoot(path); !errors.Is(err, ErrNoPublishGate) {
		t.Fatalf("LoadRoot() error = %v, want ErrNoPublishGate", err)
	}
}
