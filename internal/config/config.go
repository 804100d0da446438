// Package config provides YAML-based configuration loading for Conjure.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level Conjure configuration, loaded from conjure.yaml.
type Config struct {
	Discord   DiscordConfig   `yaml:"discord"`
	Database  DatabaseConfig  `yaml:"database"`
	Brains    BrainsConfig    `yaml:"brains"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Pricing   PricingConfig   `yaml:"pricing"`
	Arena     ArenaConfig     `yaml:"arena"`
}

// DiscordConfig holds the bot credentials. The token may be omitted from the
// file and supplied via the CONJURE_DISCORD_TOKEN environment variable.
type DiscordConfig struct {
	Token string `yaml:"token"`
}

// DatabaseConfig holds connection settings for the MySQL-compatible server.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

// BrainsConfig holds per-vendor API keys. Every key falls back to its
// environment variable when empty.
type BrainsConfig struct {
	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	OpenAIAPIKey    string `yaml:"openai_api_key"`
	GeminiAPIKey    string `yaml:"gemini_api_key"`
	CohereAPIKey    string `yaml:"cohere_api_key"`
}

// SchedulerConfig holds the sweep cadence and instance lifecycle tunables.
type SchedulerConfig struct {
	IntervalSeconds   int    `yaml:"interval_seconds"`   // reply sweep period
	CooldownSeconds   int    `yaml:"cooldown_seconds"`   // quiet period after a reply
	InactivityMinutes int    `yaml:"inactivity_minutes"` // reap instances idle this long
	MaxErrorCount     int    `yaml:"max_error_count"`    // consecutive backend failures before exit
	HistoryLimit      int    `yaml:"history_limit"`      // messages kept per instance
	ReapCron          string `yaml:"reap_cron"`          // 5-field cron for the reaper pass
	PurgeCron         string `yaml:"purge_cron"`         // 5-field cron for the purge pass
}

// PricingConfig holds the credit prices for conversation instances.
type PricingConfig struct {
	PricePerReply      int64   `yaml:"price_per_reply"`
	PricePerInvocation int64   `yaml:"price_per_invocation"`
	ImageSurcharge     int64   `yaml:"image_surcharge"`
	CreatorShare       float64 `yaml:"creator_share"` // fraction of invocation price paid to the agent creator
}

// ArenaConfig holds the arena battle tunables.
type ArenaConfig struct {
	PricePerArena     int64  `yaml:"price_per_arena"`
	PricePerAction    int64  `yaml:"price_per_action"`
	InputTimeoutSecs  int    `yaml:"input_timeout_seconds"`
	TurnWindow        int    `yaml:"turn_window"` // events kept in the prompt window
	MaxActionLength   int    `yaml:"max_action_length"`
	ScenarioBrainKind string `yaml:"scenario_brain"` // brain used when no scenario is supplied
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values, including environment
// fallbacks for credentials.
func (c *Config) applyDefaults() {
	if c.Discord.Token == "" {
		c.Discord.Token = os.Getenv("CONJURE_DISCORD_TOKEN")
	}
	if c.Database.Host == "" {
		c.Database.Host = "127.0.0.1"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 3306
	}
	if c.Database.User == "" {
		c.Database.User = "root"
	}
	if c.Database.Name == "" {
		c.Database.Name = "conjure"
	}

	if c.Brains.AnthropicAPIKey == "" {
		c.Brains.AnthropicAPIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if c.Brains.OpenAIAPIKey == "" {
		c.Brains.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.Brains.GeminiAPIKey == "" {
		c.Brains.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	}
	if c.Brains.CohereAPIKey == "" {
		c.Brains.CohereAPIKey = os.Getenv("COHERE_API_KEY")
	}

	if c.Scheduler.IntervalSeconds == 0 {
		c.Scheduler.IntervalSeconds = 10
	}
	if c.Scheduler.CooldownSeconds == 0 {
		c.Scheduler.CooldownSeconds = 10
	}
	if c.Scheduler.InactivityMinutes == 0 {
		c.Scheduler.InactivityMinutes = 8
	}
	if c.Scheduler.MaxErrorCount == 0 {
		c.Scheduler.MaxErrorCount = 10
	}
	if c.Scheduler.HistoryLimit == 0 {
		c.Scheduler.HistoryLimit = 15
	}
	if c.Scheduler.ReapCron == "" {
		c.Scheduler.ReapCron = "* * * * *"
	}
	if c.Scheduler.PurgeCron == "" {
		c.Scheduler.PurgeCron = "* * * * *"
	}

	if c.Pricing.PricePerReply == 0 {
		c.Pricing.PricePerReply = 5
	}
	if c.Pricing.ImageSurcharge == 0 {
		c.Pricing.ImageSurcharge = 5
	}
	if c.Pricing.CreatorShare == 0 {
		c.Pricing.CreatorShare = 0.025
	}

	if c.Arena.PricePerArena == 0 {
		c.Arena.PricePerArena = 25
	}
	if c.Arena.PricePerAction == 0 {
		c.Arena.PricePerAction = 10
	}
	if c.Arena.InputTimeoutSecs == 0 {
		c.Arena.InputTimeoutSecs = 120
	}
	if c.Arena.TurnWindow == 0 {
		c.Arena.TurnWindow = 6
	}
	if c.Arena.MaxActionLength == 0 {
		c.Arena.MaxActionLength = 128
	}
	if c.Arena.ScenarioBrainKind == "" {
		c.Arena.ScenarioBrainKind = "claude"
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.Discord.Token == "" {
		errs = append(errs, "discord.token is required (or set CONJURE_DISCORD_TOKEN)")
	}
	if c.Scheduler.IntervalSeconds < 0 {
		errs = append(errs, "scheduler.interval_seconds must not be negative")
	}
	if c.Pricing.PricePerReply < 0 || c.Pricing.PricePerInvocation < 0 {
		errs = append(errs, "pricing values must not be negative")
	}
	if c.Pricing.CreatorShare < 0 || c.Pricing.CreatorShare > 1 {
		errs = append(errs, "pricing.creator_share must be between 0 and 1")
	}
	if c.Arena.PricePerArena < 0 || c.Arena.PricePerAction < 0 {
		errs = append(errs, "arena prices must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
