package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const fullYAML = `
discord:
  token: bot-token-123

database:
  host: 10.0.0.5
  port: 3307
  user: conjure
  password: hunter2
  name: conjure_prod

brains:
  anthropic_api_key: sk-ant-test
  openai_api_key: sk-oa-test

scheduler:
  interval_seconds: 5
  cooldown_seconds: 20
  inactivity_minutes: 12
  history_limit: 10

pricing:
  price_per_reply: 7
  price_per_invocation: 3
  creator_share: 0.05

arena:
  price_per_arena: 30
  price_per_action: 12
  input_timeout_seconds: 60
`

const minimalYAML = `
discord:
  token: bot-token-min
`

func TestParse_FullConfig(t *testing.T) {
	cfg, err := Parse([]byte(fullYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Discord.Token != "bot-token-123" {
		t.Errorf("Discord.Token = %q, want bot-token-123", cfg.Discord.Token)
	}
	if cfg.Database.Host != "10.0.0.5" {
		t.Errorf("Database.Host = %q, want 10.0.0.5", cfg.Database.Host)
	}
	if cfg.Database.Port != 3307 {
		t.Errorf("Database.Port = %d, want 3307", cfg.Database.Port)
	}
	if cfg.Scheduler.IntervalSeconds != 5 {
		t.Errorf("Scheduler.IntervalSeconds = %d, want 5", cfg.Scheduler.IntervalSeconds)
	}
	if cfg.Scheduler.CooldownSeconds != 20 {
		t.Errorf("Scheduler.CooldownSeconds = %d, want 20", cfg.Scheduler.CooldownSeconds)
	}
	if cfg.Pricing.PricePerReply != 7 {
		t.Errorf("Pricing.PricePerReply = %d, want 7", cfg.Pricing.PricePerReply)
	}
	if cfg.Pricing.CreatorShare != 0.05 {
		t.Errorf("Pricing.CreatorShare = %v, want 0.05", cfg.Pricing.CreatorShare)
	}
	if cfg.Arena.PricePerAction != 12 {
		t.Errorf("Arena.PricePerAction = %d, want 12", cfg.Arena.PricePerAction)
	}
}

func TestParse_MinimalConfigAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Database.Host != "127.0.0.1" {
		t.Errorf("Database.Host = %q, want 127.0.0.1", cfg.Database.Host)
	}
	if cfg.Database.Port != 3306 {
		t.Errorf("Database.Port = %d, want 3306", cfg.Database.Port)
	}
	if cfg.Database.Name != "conjure" {
		t.Errorf("Database.Name = %q, want conjure", cfg.Database.Name)
	}
	if cfg.Scheduler.IntervalSeconds != 10 {
		t.Errorf("Scheduler.IntervalSeconds = %d, want 10", cfg.Scheduler.IntervalSeconds)
	}
	if cfg.Scheduler.CooldownSeconds != 10 {
		t.Errorf("Scheduler.CooldownSeconds = %d, want 10", cfg.Scheduler.CooldownSeconds)
	}
	if cfg.Scheduler.InactivityMinutes != 8 {
		t.Errorf("Scheduler.InactivityMinutes = %d, want 8", cfg.Scheduler.InactivityMinutes)
	}
	if cfg.Scheduler.MaxErrorCount != 10 {
		t.Errorf("Scheduler.MaxErrorCount = %d, want 10", cfg.Scheduler.MaxErrorCount)
	}
	if cfg.Scheduler.HistoryLimit != 15 {
		t.Errorf("Scheduler.HistoryLimit = %d, want 15", cfg.Scheduler.HistoryLimit)
	}
	if cfg.Pricing.PricePerReply != 5 {
		t.Errorf("Pricing.PricePerReply = %d, want 5", cfg.Pricing.PricePerReply)
	}
	if cfg.Pricing.ImageSurcharge != 5 {
		t.Errorf("Pricing.ImageSurcharge = %d, want 5", cfg.Pricing.ImageSurcharge)
	}
	if cfg.Arena.PricePerArena != 25 {
		t.Errorf("Arena.PricePerArena = %d, want 25", cfg.Arena.PricePerArena)
	}
	if cfg.Arena.TurnWindow != 6 {
		t.Errorf("Arena.TurnWindow = %d, want 6", cfg.Arena.TurnWindow)
	}
	if cfg.Arena.ScenarioBrainKind != "claude" {
		t.Errorf("Arena.ScenarioBrainKind = %q, want claude", cfg.Arena.ScenarioBrainKind)
	}
}

func TestParse_MissingTokenFails(t *testing.T) {
	t.Setenv("CONJURE_DISCORD_TOKEN", "")
	_, err := Parse([]byte("database:\n  host: localhost\n"))
	if err == nil {
		t.Fatal("expected validation error for missing token")
	}
	if !strings.Contains(err.Error(), "discord.token") {
		t.Errorf("error %q does not mention discord.token", err)
	}
}

func TestParse_TokenFromEnv(t *testing.T) {
	t.Setenv("CONJURE_DISCORD_TOKEN", "env-token")
	cfg, err := Parse([]byte("database:\n  host: localhost\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Discord.Token != "env-token" {
		t.Errorf("Discord.Token = %q, want env-token", cfg.Discord.Token)
	}
}

func TestParse_InvalidCreatorShare(t *testing.T) {
	yaml := minimalYAML + "\npricing:\n  creator_share: 1.5\n"
	_, err := Parse([]byte(yaml))
	if err == nil {
		t.Fatal("expected validation error for creator_share > 1")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conjure.yaml")
	if err := os.WriteFile(path, []byte(fullYAML), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.Name != "conjure_prod" {
		t.Errorf("Database.Name = %q, want conjure_prod", cfg.Database.Name)
	}
}
