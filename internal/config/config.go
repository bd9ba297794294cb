package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the annotation service and tooling.
type Config struct {
	AppName          string
	AppEnv           string
	AppPort          string
	DatabaseDriver   string
	DatabaseURL      string
	RedisURL         string
	NATSURL          string
	EventSubject     string
	JWTSecret        string
	TokenTTL         time.Duration
	AdminEmail       string
	AdminPassword    string
	CatalogSeedPath  string
	TestCategories   []string
	ReconcileLockTTL time.Duration
	SaveRateLimit    int
	MaxUploadBytes   int64
	AllowedOrigins   string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// RequireServerSecrets reports an error when settings needed only by the HTTP
// server are missing.
func (c Config) RequireServerSecrets() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("jwt secret must be provided")
	}
	if strings.TrimSpace(c.AdminPassword) == "" {
		return fmt.Errorf("admin password must be provided")
	}
	return nil
}

// New returns a viper instance with defaults and environment binding applied.
// Callers may bind command-line flags into it before calling FromViper.
func New() *viper.Viper {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("ANNOTATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("app.name", "Annotation API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "5001")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.url", "app.db")
	v.SetDefault("nats.subject", "annotation.events")
	v.SetDefault("jwt.ttl", "12h")
	v.SetDefault("admin.email", "admin@local")
	v.SetDefault("reconcile.test_categories", "CatX,CatZ")
	v.SetDefault("reconcile.lock_ttl", "10m")
	v.SetDefault("feedback.save_rate_limit", 30)
	v.SetDefault("upload.max_bytes", 10<<20)
	v.SetDefault("cors.allowed_origins", "*")

	return v
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	return FromViper(New())
}

// FromViper converts a populated viper instance into a Config.
func FromViper(v *viper.Viper) (Config, error) {
	tokenTTL, err := parseDuration(v.GetString("jwt.ttl"), 12*time.Hour)
	if err != nil {
		return Config{}, fmt.Errorf("invalid jwt ttl: %w", err)
	}

	lockTTL, err := parseDuration(v.GetString("reconcile.lock_ttl"), 10*time.Minute)
	if err != nil {
		return Config{}, fmt.Errorf("invalid reconcile lock ttl: %w", err)
	}

	cfg := Config{
		AppName:          v.GetString("app.name"),
		AppEnv:           v.GetString("app.env"),
		AppPort:          v.GetString("app.port"),
		DatabaseDriver:   strings.ToLower(v.GetString("database.driver")),
		DatabaseURL:      v.GetString("database.url"),
		RedisURL:         v.GetString("redis.url"),
		NATSURL:          v.GetString("nats.url"),
		EventSubject:     v.GetString("nats.subject"),
		JWTSecret:        v.GetString("jwt.secret"),
		TokenTTL:         tokenTTL,
		AdminEmail:       strings.ToLower(strings.TrimSpace(v.GetString("admin.email"))),
		AdminPassword:    v.GetString("admin.password"),
		CatalogSeedPath:  v.GetString("catalog.seed_path"),
		TestCategories:   splitList(v.GetString("reconcile.test_categories")),
		ReconcileLockTTL: lockTTL,
		SaveRateLimit:    v.GetInt("feedback.save_rate_limit"),
		MaxUploadBytes:   v.GetInt64("upload.max_bytes"),
		AllowedOrigins:   strings.Join(splitList(v.GetString("cors.allowed_origins")), ","),
	}

	if cfg.SaveRateLimit <= 0 {
		cfg.SaveRateLimit = 30
	}

	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 10 << 20
	}

	return cfg, nil
}

func parseDuration(raw string, fallback time.Duration) (time.Duration, error) {
	if strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	return time.ParseDuration(raw)
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
