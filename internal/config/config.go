package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the messaging API.
type Config struct {
	AppName           string
	AppEnv            string
	AppPort           string
	RedisURL          string
	NATSURL           string
	EventChannel      string
	SeedFile          string
	SeedToken         string
	CORSAllowOrigins  string
	StrictInvariants  bool
	MessageRateLimit  int
	MessageRateWindow time.Duration
	ShutdownTimeout   time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// IsDevelopment reports whether the service runs with development defaults.
func (c Config) IsDevelopment() bool {
	return strings.EqualFold(c.AppEnv, "development")
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("DOSSIER")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Dossier Messaging API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("events.channel", "dossier")
	v.SetDefault("messaging.rate_limit", 30)
	v.SetDefault("messaging.rate_window", "1m")
	v.SetDefault("shutdown.timeout", "5s")
	v.SetDefault("cors.allow_origins", "*")

	window, err := parseDuration(v.GetString("messaging.rate_window"), time.Minute)
	if err != nil {
		return Config{}, fmt.Errorf("invalid messaging rate window: %w", err)
	}

	shutdown, err := parseDuration(v.GetString("shutdown.timeout"), 5*time.Second)
	if err != nil {
		return Config{}, fmt.Errorf("invalid shutdown timeout: %w", err)
	}

	cfg := Config{
		AppName:           v.GetString("app.name"),
		AppEnv:            strings.ToLower(v.GetString("app.env")),
		AppPort:           v.GetString("app.port"),
		RedisURL:          v.GetString("redis.url"),
		NATSURL:           v.GetString("nats.url"),
		EventChannel:      v.GetString("events.channel"),
		SeedFile:          v.GetString("seed.file"),
		SeedToken:         v.GetString("seed.token"),
		CORSAllowOrigins:  v.GetString("cors.allow_origins"),
		MessageRateLimit:  v.GetInt("messaging.rate_limit"),
		MessageRateWindow: window,
		ShutdownTimeout:   shutdown,
	}

	// Strict invariant checking follows the environment unless set explicitly.
	if v.IsSet("messaging.strict_invariants") {
		cfg.StrictInvariants = v.GetBool("messaging.strict_invariants")
	} else {
		cfg.StrictInvariants = cfg.IsDevelopment()
	}

	if strings.TrimSpace(cfg.AppPort) == "" {
		return Config{}, fmt.Errorf("app port must be provided")
	}

	if cfg.MessageRateLimit <= 0 {
		cfg.MessageRateLimit = 30
	}

	return cfg, nil
}

func parseDuration(raw string, fallback time.Duration) (time.Duration, error) {
	if strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	return time.ParseDuration(raw)
}
