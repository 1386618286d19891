package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"parimutuel/database"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Metrics exporters
const (
	MetricsExporterNone    = "none"
	MetricsExporterConsole = "console"
	MetricsExporterOTLP    = "otlp"
)

// Ledger backends
const (
	LedgerBackendPostgres = "postgres"
	LedgerBackendRedis    = "redis"
	LedgerBackendMemory   = "memory"
)

// Duration lets TOML files use strings like "5s" or "1h"
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config holds all application configuration
type Config struct {
	// Discord configuration
	DiscordToken    string   `toml:"discord_token"`
	GuildID         string   `toml:"guild_id"`
	OperatorRoleIDs []string `toml:"operator_role_ids"`

	// Storage configuration
	LedgerBackend string `toml:"ledger_backend"`
	DatabaseURL   string `toml:"database_url"`
	DatabaseName  string `toml:"database_name"`
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`

	// NATS, empty disables event forwarding
	NATSServers string `toml:"nats_servers"`

	// OpenTelemetry metrics
	MetricsExporter       string   `toml:"metrics_exporter"` // "none", "console" or "otlp"
	OTLPEndpoint          string   `toml:"otlp_endpoint"`
	MetricsExportInterval Duration `toml:"metrics_export_interval"`
	ServiceName           string   `toml:"service_name"`

	// Round configuration
	StartingBalance       int64    `toml:"starting_balance"`
	RetainedFraction      float64  `toml:"retained_fraction"` // share of the losing pool kept by the house, in [0,1)
	ZeroWinnerPolicy      string   `toml:"zero_winner_policy"`
	StatusRefreshInterval Duration `toml:"status_refresh_interval"`
	DeadlinePollInterval  Duration `toml:"deadline_poll_interval"`
	SettlementGracePeriod Duration `toml:"settlement_grace_period"`

	// Environment
	Environment string `toml:"environment"` // "development", "production" or "test"
	LogLevel    string `toml:"log_level"`
}

var (
	instance *Config
	once     sync.Once
	mu       sync.Mutex // Protects instance for test setup
)

// Get returns the global configuration instance
func Get() *Config {
	mu.Lock()
	defer mu.Unlock()

	if instance != nil {
		return instance
	}

	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			if os.Getenv("ENVIRONMENT") == "test" {
				instance = NewTestConfig()
			} else {
				panic(fmt.Sprintf("failed to load config: %v", err))
			}
		}
	})
	return instance
}

// GetDatabaseURL combines the base URL and database name
func (c *Config) GetDatabaseURL() string {
	return database.ConstructDatabaseURL(c.DatabaseURL, c.DatabaseName)
}

// Defaults returns the built-in configuration
func Defaults() Config {
	return Config{
		LedgerBackend:         LedgerBackendPostgres,
		RedisAddr:             "localhost:6379",
		StartingBalance:       1000,
		ZeroWinnerPolicy:      "forfeit",
		StatusRefreshInterval: Duration{5 * time.Second},
		DeadlinePollInterval:  Duration{time.Second},
		SettlementGracePeriod: Duration{time.Hour},
		MetricsExporter:       MetricsExporterNone,
		OTLPEndpoint:          "localhost:4317",
		MetricsExportInterval: Duration{30 * time.Second},
		ServiceName:           "parimutuel",
		Environment:           "development",
		LogLevel:              "info",
	}
}

// load reads the optional TOML file, then .env, then the environment
func load() (*Config, error) {
	config := Defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if _, err := toml.DecodeFile(path, &config); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", path, err)
		}
	}

	// .env is optional
	_ = godotenv.Load()

	applyEnvOverrides(&config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func applyEnvOverrides(c *Config) {
	setStr(&c.DiscordToken, "DISCORD_TOKEN")
	setStr(&c.GuildID, "GUILD_ID")
	setStringSlice(&c.OperatorRoleIDs, "OPERATOR_ROLE_IDS")

	setStr(&c.LedgerBackend, "LEDGER_BACKEND")
	setStr(&c.DatabaseURL, "DATABASE_URL")
	setStr(&c.DatabaseName, "DATABASE_NAME")
	setStr(&c.RedisAddr, "REDIS_ADDR")
	setStr(&c.RedisPassword, "REDIS_PASSWORD")
	setInt(&c.RedisDB, "REDIS_DB")
	setStr(&c.NATSServers, "NATS_SERVERS")

	setStr(&c.MetricsExporter, "METRICS_EXPORTER")
	setStr(&c.OTLPEndpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setDuration(&c.MetricsExportInterval, "METRICS_EXPORT_INTERVAL")
	setStr(&c.ServiceName, "OTEL_SERVICE_NAME")

	setInt64(&c.StartingBalance, "STARTING_BALANCE")
	setFloat64(&c.RetainedFraction, "RETAINED_FRACTION")
	setStr(&c.ZeroWinnerPolicy, "ZERO_WINNER_POLICY")
	setDuration(&c.StatusRefreshInterval, "STATUS_REFRESH_INTERVAL")
	setDuration(&c.DeadlinePollInterval, "DEADLINE_POLL_INTERVAL")
	setDuration(&c.SettlementGracePeriod, "SETTLEMENT_GRACE_PERIOD")

	setStr(&c.Environment, "ENVIRONMENT")
	setStr(&c.LogLevel, "LOG_LEVEL")
}

// Validate checks value ranges and required settings
func (c *Config) Validate() error {
	if c.RetainedFraction < 0 || c.RetainedFraction >= 1 {
		return fmt.Errorf("RETAINED_FRACTION must be in [0, 1), got %v", c.RetainedFraction)
	}
	if c.ZeroWinnerPolicy != "forfeit" && c.ZeroWinnerPolicy != "refund" {
		return fmt.Errorf("ZERO_WINNER_POLICY must be forfeit or refund, got %q", c.ZeroWinnerPolicy)
	}
	if c.StartingBalance < 0 {
		return fmt.Errorf("STARTING_BALANCE must not be negative")
	}
	if c.StatusRefreshInterval.Duration <= 0 || c.DeadlinePollInterval.Duration <= 0 {
		return fmt.Errorf("refresh and poll intervals must be positive")
	}
	if c.SettlementGracePeriod.Duration <= 0 {
		return fmt.Errorf("SETTLEMENT_GRACE_PERIOD must be positive")
	}

	switch c.LedgerBackend {
	case LedgerBackendPostgres:
		if c.DatabaseURL == "" && c.Environment != "test" {
			return fmt.Errorf("DATABASE_URL is required for the postgres ledger")
		}
	case LedgerBackendRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required for the redis ledger")
		}
	case LedgerBackendMemory:
	default:
		return fmt.Errorf("unknown LEDGER_BACKEND %q", c.LedgerBackend)
	}

	switch c.MetricsExporter {
	case MetricsExporterNone, MetricsExporterConsole:
	case MetricsExporterOTLP:
		if c.OTLPEndpoint == "" {
			return fmt.Errorf("OTEL_EXPORTER_OTLP_ENDPOINT is required for the otlp exporter")
		}
	default:
		return fmt.Errorf("unknown METRICS_EXPORTER %q", c.MetricsExporter)
	}
	if c.MetricsExporter != MetricsExporterNone && c.MetricsExportInterval.Duration <= 0 {
		return fmt.Errorf("METRICS_EXPORT_INTERVAL must be positive")
	}

	if c.Environment != "test" && c.DiscordToken == "" {
		return fmt.Errorf("DISCORD_TOKEN is required")
	}
	return nil
}

// IsOperatorRole reports whether the role ID grants operator permissions
func (c *Config) IsOperatorRole(roleID string) bool {
	for _, id := range c.OperatorRoleIDs {
		if id == roleID {
			return true
		}
	}
	return false
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setDuration(dst *Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		var out []string
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		*dst = out
	}
}

// SetTestConfig overrides the global config instance for testing
func SetTestConfig(testConfig *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = testConfig
}

// ResetConfig resets the global config instance and sync.Once for testing
func ResetConfig() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
	once = sync.Once{}
}

// NewTestConfig creates a minimal config suitable for unit tests
func NewTestConfig() *Config {
	c := Defaults()
	c.Environment = "test"
	c.LedgerBackend = LedgerBackendMemory
	c.DiscordToken = "test-token"
	return &c
}
