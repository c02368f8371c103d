package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // TIMEZONE must resolve on hosts without zoneinfo

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Port           string
	AllowedOrigins []string
	WSReadTimeout  time.Duration
	WSWriteTimeout time.Duration
	LogLevel       string
	PingPeriod     time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	MaxMessageSize int64

	// Telephony database
	VoipDBHost     string
	VoipDBPort     string
	VoipDBUser     string
	VoipDBPassword string
	VoipDBName     string
	VoipDBTimeout  time.Duration

	// Report
	Queues   []string
	MaxGap   time.Duration
	Location *time.Location

	// Caching and roster
	CacheTTL    time.Duration
	RedisURL    string
	RosterPath  string
	RosterSheet string
	RosterTTL   time.Duration

	// Auth
	JWTSecret  string
	TokenTTL   time.Duration
	OIDCIssuer string
	SkipAuth   bool
	LoginRate  int

	BoardInterval time.Duration
}

// ReportFile is the optional TOML file named by REPORT_CONFIG. Values set
// there override the environment.
type ReportFile struct {
	Queues   []string `toml:"queues"`
	MaxGap   string   `toml:"max_gap"`
	Timezone string   `toml:"timezone"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	config := &Config{
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:5173")),
		LogLevel:       getEnv("LOG_LEVEL", "info"),

		VoipDBHost:     getEnv("VOIP_DB_HOST", "localhost"),
		VoipDBPort:     getEnv("VOIP_DB_PORT", "3306"),
		VoipDBUser:     getEnv("VOIP_DB_USER", ""),
		VoipDBPassword: getEnv("VOIP_DB_PASSWORD", ""),
		VoipDBName:     getEnv("VOIP_DB_NAME", "asteriskcdrdb"),

		Queues:      splitList(getEnv("QUEUES", "5100,5200,5300,5600")),
		RedisURL:    getEnv("REDIS_URL", ""),
		RosterPath:  getEnv("ROSTER_PATH", "roster.xlsx"),
		RosterSheet: getEnv("ROSTER_SHEET", "Users"),

		JWTSecret:  getEnv("JWT_SECRET", ""),
		OIDCIssuer: getEnv("OIDC_ISSUER", ""),
		SkipAuth:   getEnv("SKIP_AUTH", "") == "true",
	}

	// Parse WebSocket timeouts
	wsReadTimeout, err := strconv.Atoi(getEnv("WS_READ_TIMEOUT", "60"))
	if err != nil {
		return nil, fmt.Errorf("invalid WS_READ_TIMEOUT: %w", err)
	}
	config.WSReadTimeout = time.Duration(wsReadTimeout) * time.Second

	wsWriteTimeout, err := strconv.Atoi(getEnv("WS_WRITE_TIMEOUT", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid WS_WRITE_TIMEOUT: %w", err)
	}
	config.WSWriteTimeout = time.Duration(wsWriteTimeout) * time.Second

	// Calculate WebSocket constants
	config.PongWait = config.WSReadTimeout
	config.PingPeriod = (config.PongWait * 9) / 10 // Must be less than pongWait
	config.WriteWait = config.WSWriteTimeout
	config.MaxMessageSize = 512

	durations := []struct {
		key      string
		def      string
		field    *time.Duration
		positive bool
	}{
		{"VOIP_DB_TIMEOUT", "10s", &config.VoipDBTimeout, false},
		{"MAX_GAP", "4h", &config.MaxGap, false},
		{"CACHE_TTL", "600s", &config.CacheTTL, true},
		{"ROSTER_TTL", "600s", &config.RosterTTL, true},
		{"TOKEN_TTL", "12h", &config.TokenTTL, true},
		{"BOARD_INTERVAL", "30s", &config.BoardInterval, true},
	}
	for _, d := range durations {
		v, err := time.ParseDuration(getEnv(d.key, d.def))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", d.key, err)
		}
		if d.positive && v <= 0 {
			return nil, fmt.Errorf("%s must be positive, got %s", d.key, v)
		}
		*d.field = v
	}

	config.LoginRate, err = strconv.Atoi(getEnv("LOGIN_RATE", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOGIN_RATE: %w", err)
	}

	timezone := getEnv("TIMEZONE", "Asia/Tehran")

	if path := getEnv("REPORT_CONFIG", ""); path != "" {
		var file ReportFile
		if _, err := toml.DecodeFile(path, &file); err != nil {
			return nil, fmt.Errorf("invalid REPORT_CONFIG %s: %w", path, err)
		}
		if len(file.Queues) > 0 {
			config.Queues = file.Queues
		}
		if file.MaxGap != "" {
			if config.MaxGap, err = time.ParseDuration(file.MaxGap); err != nil {
				return nil, fmt.Errorf("invalid max_gap in %s: %w", path, err)
			}
		}
		if file.Timezone != "" {
			timezone = file.Timezone
		}
	}

	config.Location, err = time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	if len(config.Queues) == 0 {
		return nil, fmt.Errorf("QUEUES must name at least one queue")
	}
	if !config.SkipAuth && config.OIDCIssuer == "" && config.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required unless OIDC_ISSUER or SKIP_AUTH is set")
	}

	return config, nil
}

// getEnv gets an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// splitList splits a comma separated value, dropping blanks
func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
