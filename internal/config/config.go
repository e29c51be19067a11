package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port           string   `mapstructure:"PORT"`
	Env            string   `mapstructure:"ENV"`
	DatabaseURL    string   `mapstructure:"DATABASE_URL"`
	DBMaxConns     int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns     int32    `mapstructure:"DB_MIN_CONNS"`
	CORSOrigins    []string `mapstructure:"CORS_ORIGINS"`
	AuthMode       string   `mapstructure:"AUTH_MODE"`
	JWTSecret      string   `mapstructure:"JWT_SECRET"`
	RateLimitRPS   float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int      `mapstructure:"RATE_LIMIT_BURST"`
	BodyLimit      string   `mapstructure:"BODY_LIMIT"`
	UploadLimit    string   `mapstructure:"UPLOAD_LIMIT"`
	UploadsDir     string   `mapstructure:"UPLOADS_DIR"`
	Categories     []string `mapstructure:"CATEGORIES"`
	Hospitals      []string `mapstructure:"HOSPITALS"`
	TokenTTLHours  int      `mapstructure:"TOKEN_TTL_HOURS"`

	NarrativeAPIURL         string `mapstructure:"NARRATIVE_API_URL"`
	NarrativeAPIKey         string `mapstructure:"NARRATIVE_API_KEY"`
	NarrativeModel          string `mapstructure:"NARRATIVE_MODEL"`
	NarrativeTimeoutSeconds int    `mapstructure:"NARRATIVE_TIMEOUT_SECONDS"`
	RequestTimeoutSeconds   int    `mapstructure:"REQUEST_TIMEOUT_SECONDS"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("AUTH_MODE", "") // auto-detect: "" -> inferred from ENV
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("BODY_LIMIT", "1M")
	v.SetDefault("UPLOAD_LIMIT", "10M")
	v.SetDefault("UPLOADS_DIR", "uploads")
	v.SetDefault("CATEGORIES", "vitals,labs,meds,encounters")
	v.SetDefault("HOSPITALS", "Hospital A,Hospital B,Hospital C")
	v.SetDefault("TOKEN_TTL_HOURS", 24)
	v.SetDefault("NARRATIVE_MODEL", "gpt-4o")
	v.SetDefault("NARRATIVE_TIMEOUT_SECONDS", 30)
	// Must cover a narrative call including its retries.
	v.SetDefault("REQUEST_TIMEOUT_SECONDS", 120)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("AUTH_MODE")
	v.BindEnv("JWT_SECRET")
	v.BindEnv("RATE_LIMIT_RPS")
	v.BindEnv("RATE_LIMIT_BURST")
	v.BindEnv("BODY_LIMIT")
	v.BindEnv("UPLOAD_LIMIT")
	v.BindEnv("UPLOADS_DIR")
	v.BindEnv("CATEGORIES")
	v.BindEnv("HOSPITALS")
	v.BindEnv("TOKEN_TTL_HOURS")
	v.BindEnv("NARRATIVE_API_URL")
	v.BindEnv("NARRATIVE_API_KEY")
	v.BindEnv("NARRATIVE_MODEL")
	v.BindEnv("NARRATIVE_TIMEOUT_SECONDS")
	v.BindEnv("REQUEST_TIMEOUT_SECONDS")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Comma-separated list values arrive as single strings when set via env
	if cfg.CORSOrigins == nil {
		cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))
	}
	if cfg.Categories == nil {
		cfg.Categories = splitList(v.GetString("CATEGORIES"))
	}
	if cfg.Hospitals == nil {
		cfg.Hospitals = splitList(v.GetString("HOSPITALS"))
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		log.Println("WARNING: ============================================================")
		log.Println("WARNING: Server is running in DEVELOPMENT mode (ENV=development).")
		log.Println("WARNING: The patient API accepts unauthenticated requests.")
		log.Println("WARNING: Set ENV=production and configure JWT_SECRET for production.")
		log.Println("WARNING: ============================================================")
	}

	return cfg, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// ResolvedAuthMode returns the effective auth mode. If AUTH_MODE is explicitly
// set, it is returned. Otherwise, the mode is inferred:
//   - ENV=development → "development" (no auth, a default identity is injected)
//   - Otherwise       → "jwt" (HS256 bearer tokens signed with JWT_SECRET)
func (c *Config) ResolvedAuthMode() string {
	if c.AuthMode != "" {
		return c.AuthMode
	}
	if c.IsDev() {
		return "development"
	}
	return "jwt"
}

// Validate checks that the configuration is safe to run. In jwt mode the
// signing secret must be present; category and hospital lists must be
// non-empty because the pipeline, token scopes, and sample loader all
// derive from them.
func (c *Config) Validate() error {
	mode := c.ResolvedAuthMode()
	if mode != "development" && mode != "jwt" {
		return fmt.Errorf("AUTH_MODE must be \"development\" or \"jwt\", got %q", mode)
	}
	if mode == "jwt" && c.JWTSecret == "" {
		return fmt.Errorf(
			"JWT_SECRET must be set when AUTH_MODE is \"jwt\" (current ENV=%q). "+
				"Refusing to start without authentication configuration", c.Env)
	}
	if len(c.Categories) == 0 {
		return fmt.Errorf("CATEGORIES must name at least one record category")
	}
	if len(c.Hospitals) == 0 {
		return fmt.Errorf("HOSPITALS must name at least one hospital")
	}
	if c.TokenTTLHours <= 0 {
		return fmt.Errorf("TOKEN_TTL_HOURS must be positive, got %d", c.TokenTTLHours)
	}
	if c.NarrativeTimeoutSeconds <= 0 {
		return fmt.Errorf("NARRATIVE_TIMEOUT_SECONDS must be positive, got %d", c.NarrativeTimeoutSeconds)
	}
	if c.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT_SECONDS must be positive, got %d", c.RequestTimeoutSeconds)
	}
	return nil
}
