package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"regimetrader/internal/domain"
	"regimetrader/internal/strategy"
)

// Config holds all application configuration for the live trading loop.
type Config struct {
	// Instruments
	PrimarySymbol   string
	LeveragedSymbol string // empty disables the leveraged variant

	// Capital used when no persisted session state exists yet
	StartingCash float64

	// Scheduling (robfig/cron specs)
	CycleSchedule string // decision cycle
	FlowSchedule  string // supplementary flow refresh
	Timezone      string // exchange timezone for cutoff hours

	// Decision policy thresholds
	Policy strategy.PolicyConfig

	// External services
	FlowAPIURL        string
	FlowAPITimeout    time.Duration
	DiscordWebhookURL string // optional
	CommentaryURL     string // optional
	CommentaryAPIKey  string

	// Regime report files (YYYY-MM-DD.yaml per day); empty disables file-based
	// report ingestion
	ReportsDir string

	// Persistence
	DBPath string

	// Logging
	LogLevel string
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env if present; pure env vars are fine too.
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string

	cfg.PrimarySymbol = getEnv("PRIMARY_SYMBOL", "QQQ")
	if cfg.PrimarySymbol == "" {
		errs = append(errs, "PRIMARY_SYMBOL must be set")
	}
	cfg.LeveragedSymbol = getEnv("LEVERAGED_SYMBOL", "TQQQ")

	cfg.StartingCash, err = getEnvAsFloatRequired("STARTING_CASH", 100000)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid STARTING_CASH: %v", err))
	} else if cfg.StartingCash <= 0 {
		errs = append(errs, "STARTING_CASH must be positive")
	}

	cfg.CycleSchedule = getEnv("CYCLE_SCHEDULE", "@every 5m")
	cfg.FlowSchedule = getEnv("FLOW_SCHEDULE", "@every 30m")
	cfg.Timezone = getEnv("TIMEZONE", "America/New_York")
	if _, tzErr := time.LoadLocation(cfg.Timezone); tzErr != nil {
		errs = append(errs, fmt.Sprintf("invalid TIMEZONE: %v", tzErr))
	}

	// Policy thresholds start from the live defaults; individual values can
	// be overridden from the environment.
	policy := strategy.DefaultLiveConfig()
	policy.MaxTradesPerDay = getEnvAsInt("MAX_TRADES_PER_DAY", policy.MaxTradesPerDay)
	policy.EntryCutoffHour = getEnvAsInt("ENTRY_CUTOFF_HOUR", policy.EntryCutoffHour)
	policy.LateDayCutoffHour = getEnvAsInt("LATE_DAY_CUTOFF_HOUR", policy.LateDayCutoffHour)
	policy.MinRewardRisk = getEnvAsFloat("MIN_REWARD_RISK", policy.MinRewardRisk)
	policy.SupportTolerance = getEnvAsFloat("SUPPORT_TOLERANCE", policy.SupportTolerance)
	policy.TargetTolerance = getEnvAsFloat("TARGET_TOLERANCE", policy.TargetTolerance)
	policy.FlowEntryFloor = getEnvAsFloat("FLOW_ENTRY_FLOOR", policy.FlowEntryFloor)
	policy.FlowExitPercentile = getEnvAsFloat("FLOW_EXIT_PERCENTILE", policy.FlowExitPercentile)
	policy.LeveragedSizingRatio = getEnvAsFloat("LEVERAGED_SIZING_RATIO", policy.LeveragedSizingRatio)
	if zone := getEnv("MIN_LEVERAGED_ZONE", ""); zone != "" {
		policy.MinLeveragedZone = domain.CompositeZone(zone)
	}
	if policyErr := policy.Validate(); policyErr != nil {
		errs = append(errs, policyErr.Error())
	}
	cfg.Policy = policy

	cfg.FlowAPIURL = getEnv("FLOW_API_URL", "")
	if cfg.FlowAPIURL == "" {
		errs = append(errs, "FLOW_API_URL must be set")
	}
	flowTimeoutSeconds := getEnvAsInt("FLOW_API_TIMEOUT_SECONDS", 10)
	if flowTimeoutSeconds <= 0 {
		errs = append(errs, "FLOW_API_TIMEOUT_SECONDS must be positive")
	}
	cfg.FlowAPITimeout = time.Duration(flowTimeoutSeconds) * time.Second

	cfg.DiscordWebhookURL = getEnv("DISCORD_WEBHOOK_URL", "")
	cfg.CommentaryURL = getEnv("COMMENTARY_URL", "")
	cfg.CommentaryAPIKey = getEnv("COMMENTARY_API_KEY", "")

	cfg.ReportsDir = getEnv("REPORTS_DIR", "")

	cfg.DBPath = getEnv("DB_PATH", "./data/regimetrader.db")
	if cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}

	cfg.LogLevel = getEnv("LOG_LEVEL", "info")

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}
