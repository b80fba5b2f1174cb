package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is read when Load is called with an empty path.
const ConfigPath = "configs/folio.yaml"

// Config represents configuration loaded from YAML and FOLIO_* environment variables.
type Config struct {
	HTTPAddr string `yaml:"httpAddr"`
	GRPCAddr string `yaml:"grpcAddr"`
	LogLevel string `yaml:"logLevel"`

	DatabaseURL      string `yaml:"databaseURL"`
	DatabaseMaxConns int    `yaml:"databaseMaxConns"`
	RedisAddr        string `yaml:"redisAddr"`
	RedisPassword    string `yaml:"redisPassword"`

	TokenSecret string        `yaml:"tokenSecret"`
	TokenIssuer string        `yaml:"tokenIssuer"`
	TokenTTL    time.Duration `yaml:"tokenTTL"`

	LoginDelay      time.Duration `yaml:"loginDelay"`
	RequirePassword bool          `yaml:"requirePassword"`
	AppBaseURL      string        `yaml:"appBaseURL"`

	SeedEnabled       bool          `yaml:"seedEnabled"`
	SeedDelay         time.Duration `yaml:"seedDelay"`
	SchedulerInterval time.Duration `yaml:"schedulerInterval"`

	AuthRateLimit float64  `yaml:"authRateLimit"`
	AuthRateBurst int      `yaml:"authRateBurst"`
	CORSOrigins   []string `yaml:"corsOrigins"`
	MaxBodyBytes  int64    `yaml:"maxBodyBytes"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		HTTPAddr:          ":8080",
		GRPCAddr:          ":9090",
		LogLevel:          "info",
		TokenIssuer:       "folio",
		TokenTTL:          24 * time.Hour,
		LoginDelay:        500 * time.Millisecond,
		AppBaseURL:        "http://localhost:4200",
		SeedEnabled:       true,
		SeedDelay:         0,
		SchedulerInterval: time.Minute,
		AuthRateLimit:     5,
		AuthRateBurst:     10,
		MaxBodyBytes:      1 << 20,
		DatabaseMaxConns:  20,
	}
}

// Load reads config from path (defaults to ConfigPath). A missing default file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	case explicit || !errors.Is(err, os.ErrNotExist):
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	str := map[string]*string{
		"FOLIO_HTTP_ADDR":      &cfg.HTTPAddr,
		"FOLIO_GRPC_ADDR":      &cfg.GRPCAddr,
		"FOLIO_LOG_LEVEL":      &cfg.LogLevel,
		"FOLIO_DATABASE_URL":   &cfg.DatabaseURL,
		"FOLIO_REDIS_ADDR":     &cfg.RedisAddr,
		"FOLIO_REDIS_PASSWORD": &cfg.RedisPassword,
		"FOLIO_TOKEN_SECRET":   &cfg.TokenSecret,
		"FOLIO_TOKEN_ISSUER":   &cfg.TokenIssuer,
		"FOLIO_APP_BASE_URL":   &cfg.AppBaseURL,
	}
	for key, dst := range str {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	durations := map[string]*time.Duration{
		"FOLIO_TOKEN_TTL":          &cfg.TokenTTL,
		"FOLIO_LOGIN_DELAY":        &cfg.LoginDelay,
		"FOLIO_SEED_DELAY":         &cfg.SeedDelay,
		"FOLIO_SCHEDULER_INTERVAL": &cfg.SchedulerInterval,
	}
	for key, dst := range durations {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("config: %s: %w", key, err)
			}
			*dst = d
		}
	}
	bools := map[string]*bool{
		"FOLIO_SEED_ENABLED":     &cfg.SeedEnabled,
		"FOLIO_REQUIRE_PASSWORD": &cfg.RequirePassword,
	}
	for key, dst := range bools {
		if v := os.Getenv(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("config: %s: %w", key, err)
			}
			*dst = b
		}
	}
	if v := os.Getenv("FOLIO_MAX_BODY_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("config: FOLIO_MAX_BODY_BYTES: %w", err)
		}
		cfg.MaxBodyBytes = n
	}
	if v := os.Getenv("FOLIO_AUTH_RATE_LIMIT"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("config: FOLIO_AUTH_RATE_LIMIT: %w", err)
		}
		cfg.AuthRateLimit = f
	}
	ints := map[string]*int{
		"FOLIO_AUTH_RATE_BURST":    &cfg.AuthRateBurst,
		"FOLIO_DATABASE_MAX_CONNS": &cfg.DatabaseMaxConns,
	}
	for key, dst := range ints {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("config: %s: %w", key, err)
			}
			*dst = n
		}
	}
	if v := os.Getenv("FOLIO_CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = splitCSV(v)
	}
	return nil
}

func validate(cfg Config) error {
	if cfg.HTTPAddr == "" {
		return errors.New("config: httpAddr is required")
	}
	if cfg.TokenTTL <= 0 {
		return errors.New("config: tokenTTL must be positive")
	}
	if cfg.SchedulerInterval <= 0 {
		return errors.New("config: schedulerInterval must be positive")
	}
	if cfg.LoginDelay < 0 || cfg.SeedDelay < 0 {
		return errors.New("config: delays must not be negative")
	}
	return nil
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
