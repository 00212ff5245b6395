// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes server timeouts,
// logging, the shared webhook secret, Discord and Roblox settings, remote
// store persistence tuning, rate limiting, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/avendel/go-delivery-backend/internal/sysutil"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// DiscordConfig groups the chat-platform bot settings.
type DiscordConfig struct {
	Token            string        // DISCORD_TOKEN (required)
	GuildID          string        // DISCORD_GUILD_ID
	CommandChannelID string        // DISCORD_COMMAND_CHANNEL_ID
	ProofChannelID   string        // DISCORD_PROOF_CHANNEL_ID (optional broadcast target)
	CommandPrefix    string        // DISCORD_COMMAND_PREFIX
	NoticeTTL        time.Duration // DISCORD_NOTICE_TTL: auto-delete delay for transient notices
}

// StoreConfig groups the remote record store and flush policy settings.
type StoreConfig struct {
	URL          string        // STORE_URL (required): document endpoint, GET/PUT full JSON
	AccessKey    string        // STORE_ACCESS_KEY (required)
	Timeout      time.Duration // STORE_TIMEOUT: outbound HTTP client timeout
	Debounce     time.Duration // STORE_DEBOUNCE: delay before a scheduled flush fires
	FlushRetries int           // STORE_FLUSH_RETRIES: attempts per flush cycle
	FlushBackoff time.Duration // STORE_FLUSH_BACKOFF: linear backoff unit between attempts
}

// RobloxConfig groups the game-platform API endpoints. The defaults point at
// the public APIs; tests point them at local fakes.
type RobloxConfig struct {
	UsersAPIURL     string        // ROBLOX_USERS_API_URL
	InventoryAPIURL string        // ROBLOX_INVENTORY_API_URL
	Timeout         time.Duration // ROBLOX_TIMEOUT
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	GinMode           string // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route

	// Webhook authentication
	DeliverySecret string // DELIVERY_SECRET (required): shared secret for /payment and /map

	// App
	AuditDBPath string // local SQLite audit database path

	// Integrations
	Discord DiscordConfig
	Store   StoreConfig
	Roblox  RobloxConfig

	// Rate limiting
	RateRPS   float64
	RateBurst int

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables, applies defaults,
// normalizes values, and validates the result. Missing required credentials
// (shared secret, bot token, store URL/key) are validation errors: the
// process must not start without them.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),

		// Webhook authentication
		DeliverySecret: getenv("DELIVERY_SECRET", ""),

		// App
		AuditDBPath: getenv("AUDIT_DB_PATH", "delivery_audit.db"),

		Discord: DiscordConfig{
			Token:            getenv("DISCORD_TOKEN", ""),
			GuildID:          getenv("DISCORD_GUILD_ID", ""),
			CommandChannelID: getenv("DISCORD_COMMAND_CHANNEL_ID", ""),
			ProofChannelID:   getenv("DISCORD_PROOF_CHANNEL_ID", ""),
			CommandPrefix:    getenv("DISCORD_COMMAND_PREFIX", "!"),
			NoticeTTL:        getdur("DISCORD_NOTICE_TTL", 15*time.Second),
		},

		Store: StoreConfig{
			URL:          getenv("STORE_URL", ""),
			AccessKey:    getenv("STORE_ACCESS_KEY", ""),
			Timeout:      getdur("STORE_TIMEOUT", 30*time.Second),
			Debounce:     getdur("STORE_DEBOUNCE", time.Second),
			FlushRetries: getint("STORE_FLUSH_RETRIES", 3),
			FlushBackoff: getdur("STORE_FLUSH_BACKOFF", 500*time.Millisecond),
		},

		Roblox: RobloxConfig{
			UsersAPIURL:     getenv("ROBLOX_USERS_API_URL", "https://users.roblox.com"),
			InventoryAPIURL: getenv("ROBLOX_INVENTORY_API_URL", "https://inventory.roblox.com"),
			Timeout:         getdur("ROBLOX_TIMEOUT", 30*time.Second),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-delivery-backend"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	cfg.Discord.CommandPrefix = sysutil.FirstNonEmpty(cfg.Discord.CommandPrefix, "!")

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DeliverySecret) == "" {
		return cfg, errors.New("DELIVERY_SECRET is required")
	}
	if strings.TrimSpace(cfg.Discord.Token) == "" {
		return cfg, errors.New("DISCORD_TOKEN is required")
	}
	if strings.TrimSpace(cfg.Store.URL) == "" {
		return cfg, errors.New("STORE_URL is required")
	}
	if strings.TrimSpace(cfg.Store.AccessKey) == "" {
		return cfg, errors.New("STORE_ACCESS_KEY is required")
	}
	if strings.TrimSpace(cfg.AuditDBPath) == "" {
		return cfg, errors.New("AUDIT_DB_PATH must not be empty")
	}
	if cfg.Store.Debounce <= 0 {
		return cfg, errors.New("STORE_DEBOUNCE must be > 0")
	}
	if cfg.Store.FlushRetries < 1 {
		return cfg, errors.New("STORE_FLUSH_RETRIES must be >= 1")
	}
	if cfg.Store.FlushBackoff < 0 {
		return cfg, errors.New("STORE_FLUSH_BACKOFF must be >= 0")
	}
	if cfg.Discord.NoticeTTL <= 0 {
		return cfg, errors.New("DISCORD_NOTICE_TTL must be > 0")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if sysutil.IsTruthy(v) {
			return true
		}
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
