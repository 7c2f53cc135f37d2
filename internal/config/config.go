package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the whole process's tunables, loaded once at startup from the
// environment. Every duration-shaped setting except SaturationCapDays (a
// float64 count of days) lands here in time.Duration form, and the rest of
// the program never parses an env var itself.
type Config struct {
	HTTPAddr string
	DBPath   string

	TickIntervalSeconds  time.Duration
	DecayStepSeconds     time.Duration
	InertiaThreshold     float64
	InertiaFactor        float64
	IdleThresholdSeconds time.Duration
	SaturationCapDays    float64

	DampeningWindow       int
	DampeningSlope        float64
	MomentumAmplification float64

	VarianceLow  float64
	VarianceHigh float64

	SnapshotEveryNInteractions int
	SnapshotWallCadenceMinutes time.Duration

	GenerateTimeoutSeconds time.Duration
	SendTimeoutSeconds     time.Duration
	ShutdownDrainSeconds   time.Duration

	LLMProvider   string
	LLMModel      string
	OpenAIBaseURL string
	OpenAIAPIKey  string
	ClaudeBaseURL string
	ClaudeAPIKey  string

	MQTTEnabled     bool
	MQTTBrokerURL   string
	MQTTClientID    string
	MQTTUsername    string
	MQTTPassword    string
	MQTTTopicPrefix string

	DiscordEnabled   bool
	DiscordBotToken  string
	DiscordChannelID string

	WebSocketEnabled bool
	WebSocketPath    string
}

func Load() (Config, error) {
	cfg := Config{
		HTTPAddr: getenvDefault("AFFECTD_HTTP_ADDR", ":9020"),
		DBPath:   getenvDefault("AFFECTD_DB_PATH", "affect.db"),

		TickIntervalSeconds:  time.Duration(clampInt(getenvIntDefault("AFFECTD_TICK_INTERVAL_SECONDS", 5), 1, 60)) * time.Second,
		DecayStepSeconds:     time.Duration(getenvIntDefault("AFFECTD_DECAY_STEP_SECONDS", 300)) * time.Second,
		InertiaThreshold:     getenvFloatDefault("AFFECTD_INERTIA_THRESHOLD", 0.8),
		InertiaFactor:        getenvFloatDefault("AFFECTD_INERTIA_FACTOR", 0.5),
		IdleThresholdSeconds: time.Duration(getenvIntDefault("AFFECTD_IDLE_THRESHOLD_SECONDS", 300)) * time.Second,
		SaturationCapDays:    getenvFloatDefault("AFFECTD_SATURATION_CAP_DAYS", 30),

		DampeningWindow:       getenvIntDefault("AFFECTD_DAMPENING_WINDOW", 8),
		DampeningSlope:        getenvFloatDefault("AFFECTD_DAMPENING_SLOPE", 0.2),
		MomentumAmplification: getenvFloatDefault("AFFECTD_MOMENTUM_AMPLIFICATION", 0.5),

		VarianceLow:  getenvFloatDefault("AFFECTD_VARIANCE_LOW", 0.7),
		VarianceHigh: getenvFloatDefault("AFFECTD_VARIANCE_HIGH", 1.3),

		SnapshotEveryNInteractions: getenvIntDefault("AFFECTD_SNAPSHOT_EVERY_N_INTERACTIONS", 20),
		SnapshotWallCadenceMinutes: time.Duration(getenvIntDefault("AFFECTD_SNAPSHOT_WALL_CADENCE_MINUTES", 60)) * time.Minute,

		GenerateTimeoutSeconds: time.Duration(getenvIntDefault("AFFECTD_GENERATE_TIMEOUT_SECONDS", 30)) * time.Second,
		SendTimeoutSeconds:     time.Duration(getenvIntDefault("AFFECTD_SEND_TIMEOUT_SECONDS", 10)) * time.Second,
		ShutdownDrainSeconds:   time.Duration(getenvIntDefault("AFFECTD_SHUTDOWN_DRAIN_SECONDS", 5)) * time.Second,

		LLMProvider:   getenvDefault("AFFECTD_LLM_PROVIDER", "openai"),
		LLMModel:      getenvDefault("AFFECTD_LLM_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL: strings.TrimRight(getenvDefault("OPENAI_BASE_URL", "https://api.openai.com/v1"), "/"),
		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
		ClaudeBaseURL: strings.TrimRight(getenvDefault("ANTHROPIC_BASE_URL", "https://api.anthropic.com"), "/"),
		ClaudeAPIKey:  os.Getenv("ANTHROPIC_API_KEY"),

		MQTTEnabled:     getenvBoolDefault("AFFECTD_MQTT_ENABLED", false),
		MQTTBrokerURL:   getenvDefault("MQTT_BROKER_URL", "tcp://localhost:1883"),
		MQTTClientID:    getenvDefault("AFFECTD_MQTT_CLIENT_ID", "affectd"),
		MQTTUsername:    os.Getenv("MQTT_USERNAME"),
		MQTTPassword:    os.Getenv("MQTT_PASSWORD"),
		MQTTTopicPrefix: getenvDefault("MQTT_TOPIC_PREFIX", "affect"),

		DiscordEnabled:   getenvBoolDefault("AFFECTD_DISCORD_ENABLED", false),
		DiscordBotToken:  os.Getenv("DISCORD_BOT_TOKEN"),
		DiscordChannelID: os.Getenv("DISCORD_CHANNEL_ID"),

		WebSocketEnabled: getenvBoolDefault("AFFECTD_WEBSOCKET_ENABLED", true),
		WebSocketPath:    getenvDefault("AFFECTD_WEBSOCKET_PATH", "/ws"),
	}

	if cfg.LLMProvider == "openai" && cfg.OpenAIAPIKey == "" {
		return Config{}, fmt.Errorf("OPENAI_API_KEY is required when AFFECTD_LLM_PROVIDER=openai")
	}
	if cfg.LLMProvider == "claude" && cfg.ClaudeAPIKey == "" {
		return Config{}, fmt.Errorf("ANTHROPIC_API_KEY is required when AFFECTD_LLM_PROVIDER=claude")
	}
	if cfg.DiscordEnabled && cfg.DiscordBotToken == "" {
		return Config{}, fmt.Errorf("DISCORD_BOT_TOKEN is required when AFFECTD_DISCORD_ENABLED=true")
	}

	return cfg, nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func getenvDefault(key, val string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return val
}

func getenvIntDefault(key string, val int) int {
	v := os.Getenv(key)
	if v == "" {
		return val
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return val
	}
	return n
}

func getenvFloatDefault(key string, val float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return val
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return val
	}
	return n
}

func getenvBoolDefault(key string, val bool) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if v == "" {
		return val
	}
	switch v {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return val
	}
}
