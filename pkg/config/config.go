package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/sitemgmt/pkg/observability"
)

// Store types
const (
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite3"
	StoreMemory   = "memory"
)

// Notifier types
const (
	NotifierLog   = "log"
	NotifierSES   = "ses"
	NotifierRedis = "redis"
)

// MinSessionSecretLength is the shortest accepted HMAC key
const MinSessionSecretLength = 32

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Auth          AuthConfig          `yaml:"auth"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	Notify        NotifyConfig        `yaml:"notify"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Health/metrics server (separate port for k8s probes)
	HealthPort string `yaml:"health_port"`

	// BaseURL is the externally visible origin; the OAuth redirect URI is
	// BaseURL + "/callback"
	BaseURL       string `yaml:"base_url"`
	SecureCookies bool   `yaml:"secure_cookies"`
}

// AuthConfig holds sign-in and session settings
type AuthConfig struct {
	ClientSecretsFile string        `yaml:"client_secrets_file"`
	ClientID          string        `yaml:"client_id"`
	ClientSecret      string        `yaml:"client_secret"`
	IssuerURL         string        `yaml:"issuer_url"`
	ProviderTimeout   time.Duration `yaml:"provider_timeout"`

	SessionSecret string        `yaml:"session_secret"`
	SessionTTL    time.Duration `yaml:"session_ttl"`
	SessionIssuer string        `yaml:"session_issuer"`
}

// RedirectURL returns the OAuth callback URL for base
func RedirectURL(base string) string {
	return strings.TrimRight(base, "/") + "/callback"
}

// DatabaseConfig holds admin directory storage settings
type DatabaseConfig struct {
	Store       string        `yaml:"store"`
	DSN         string        `yaml:"dsn"`
	MaxConns    int           `yaml:"max_conns"`
	MaxIdle     int           `yaml:"max_idle"`
	MaxLifetime time.Duration `yaml:"max_lifetime"`
	Timeout     time.Duration `yaml:"timeout"`
	AutoMigrate bool          `yaml:"auto_migrate"`
}

// RedisConfig holds the shared Redis connection
type RedisConfig struct {
	URL        string `yaml:"url"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db"`
	MaxRetries int    `yaml:"max_retries"`
	PoolSize   int    `yaml:"pool_size"`
}

// NotifyConfig holds deactivation notice settings
type NotifyConfig struct {
	Type    string        `yaml:"type"`
	Timeout time.Duration `yaml:"timeout"`

	SESRegion     string   `yaml:"ses_region"`
	SESEndpoint   string   `yaml:"ses_endpoint"`
	SESAccessKey  string   `yaml:"ses_access_key"`
	SESSecretKey  string   `yaml:"ses_secret_key"`
	SESFrom       string   `yaml:"ses_from"`
	SESRecipients []string `yaml:"ses_recipients"`
	SESSubject    string   `yaml:"ses_subject"`

	RedisChannel string `yaml:"redis_channel"`
}

// RateLimitConfig throttles the sign-in endpoints
type RateLimitConfig struct {
	Enabled           bool   `yaml:"enabled"`
	Backend           string `yaml:"backend"`
	RequestsPerMinute int    `yaml:"requests_per_minute"`
	Burst             int    `yaml:"burst"`
	// TrustedProxies lists the CIDRs whose X-Forwarded-For is believed
	TrustedProxies []string `yaml:"trusted_proxies"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel string `yaml:"log_level"`

	// Metrics
	MetricsEnabled bool `yaml:"metrics_enabled"`
	// RosterGaugeSchedule is the cron schedule for refreshing the admin
	// count gauges; empty disables the job
	RosterGaugeSchedule string `yaml:"roster_gauge_schedule"`

	// OpenTelemetry
	OTelEnabled        bool   `yaml:"otel_enabled"`
	OTelEndpoint       string `yaml:"otel_endpoint"`
	OTelServiceName    string `yaml:"otel_service_name"`
	OTelServiceVersion string `yaml:"otel_service_version"`
	OTelInsecure       bool   `yaml:"otel_insecure"` // Use insecure gRPC connection
}

// Level returns the parsed log level
func (c ObservabilityConfig) Level() observability.LogLevel {
	return observability.ParseLogLevel(c.LogLevel)
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			HealthPort:      "9090",
			BaseURL:         "http://localhost:8080",
		},
		Auth: AuthConfig{
			IssuerURL:       "https://accounts.google.com",
			ProviderTimeout: 10 * time.Second,
			SessionTTL:      15 * time.Minute,
			SessionIssuer:   "sitemgmt",
		},
		Database: DatabaseConfig{
			Store:       StorePostgres,
			MaxConns:    10,
			MaxIdle:     5,
			MaxLifetime: 30 * time.Minute,
			Timeout:     5 * time.Second,
			AutoMigrate: true,
		},
		Redis: RedisConfig{
			MaxRetries: 3,
			PoolSize:   10,
		},
		Notify: NotifyConfig{
			Type:         NotifierLog,
			Timeout:      5 * time.Second,
			SESRegion:    "us-east-2",
			RedisChannel: "sitemgmt:admin-events",
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			Backend:           "memory",
			RequestsPerMinute: 30,
			Burst:             10,
		},
		Observability: ObservabilityConfig{
			LogLevel:            "info",
			MetricsEnabled:      true,
			RosterGaugeSchedule: "@every 1m",
			OTelEndpoint:        "localhost:4317",
			OTelServiceName:     "sitemgmt",
			OTelServiceVersion:  "1.0.0",
			OTelInsecure:        true,
		},
	}
}

// LoadConfig builds the configuration from defaults, the optional YAML file
// named by SITEMGMT_CONFIG_FILE, environment variables and the client
// secrets file, in that order of increasing precedence
func LoadConfig() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("SITEMGMT_CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if cfg.Auth.ClientSecretsFile != "" {
		secrets, err := LoadClientSecrets(cfg.Auth.ClientSecretsFile)
		if err != nil {
			return nil, err
		}
		if cfg.Auth.ClientID == "" {
			cfg.Auth.ClientID = secrets.ClientID
		}
		if cfg.Auth.ClientSecret == "" {
			cfg.Auth.ClientSecret = secrets.ClientSecret
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides every field whose environment variable is set
func (c *Config) applyEnv() {
	s := &c.Server
	s.Host = getEnv("SITEMGMT_HOST", s.Host)
	s.Port = getEnv("SITEMGMT_PORT", s.Port)
	s.ReadTimeout = getEnvDuration("SITEMGMT_READ_TIMEOUT", s.ReadTimeout)
	s.WriteTimeout = getEnvDuration("SITEMGMT_WRITE_TIMEOUT", s.WriteTimeout)
	s.IdleTimeout = getEnvDuration("SITEMGMT_IDLE_TIMEOUT", s.IdleTimeout)
	s.ShutdownTimeout = getEnvDuration("SITEMGMT_SHUTDOWN_TIMEOUT", s.ShutdownTimeout)
	s.HealthPort = getEnv("SITEMGMT_HEALTH_PORT", s.HealthPort)
	s.BaseURL = getEnv("SITEMGMT_BASE_URL", s.BaseURL)
	s.SecureCookies = getEnvBool("SITEMGMT_SECURE_COOKIES", s.SecureCookies)

	a := &c.Auth
	a.ClientSecretsFile = getEnv("SITEMGMT_CLIENT_SECRETS_FILE", a.ClientSecretsFile)
	a.ClientID = getEnv("SITEMGMT_CLIENT_ID", a.ClientID)
	a.ClientSecret = getEnv("SITEMGMT_CLIENT_SECRET", a.ClientSecret)
	a.IssuerURL = getEnv("SITEMGMT_ISSUER_URL", a.IssuerURL)
	a.ProviderTimeout = getEnvDuration("SITEMGMT_PROVIDER_TIMEOUT", a.ProviderTimeout)
	a.SessionSecret = getEnv("SITEMGMT_SESSION_SECRET", a.SessionSecret)
	a.SessionTTL = getEnvDuration("SITEMGMT_SESSION_TTL", a.SessionTTL)
	a.SessionIssuer = getEnv("SITEMGMT_SESSION_ISSUER", a.SessionIssuer)

	d := &c.Database
	d.Store = getEnv("SITEMGMT_STORE", d.Store)
	d.DSN = getEnv("SITEMGMT_DATABASE_DSN", d.DSN)
	d.MaxConns = getEnvInt("SITEMGMT_DATABASE_MAX_CONNS", d.MaxConns)
	d.MaxIdle = getEnvInt("SITEMGMT_DATABASE_MAX_IDLE", d.MaxIdle)
	d.MaxLifetime = getEnvDuration("SITEMGMT_DATABASE_MAX_LIFETIME", d.MaxLifetime)
	d.Timeout = getEnvDuration("SITEMGMT_DATABASE_TIMEOUT", d.Timeout)
	d.AutoMigrate = getEnvBool("SITEMGMT_AUTO_MIGRATE", d.AutoMigrate)

	r := &c.Redis
	r.URL = getEnv("SITEMGMT_REDIS_URL", r.URL)
	r.Password = getEnv("SITEMGMT_REDIS_PASSWORD", r.Password)
	r.DB = getEnvInt("SITEMGMT_REDIS_DB", r.DB)
	r.MaxRetries = getEnvInt("SITEMGMT_REDIS_MAX_RETRIES", r.MaxRetries)
	r.PoolSize = getEnvInt("SITEMGMT_REDIS_POOL_SIZE", r.PoolSize)

	n := &c.Notify
	n.Type = getEnv("SITEMGMT_NOTIFIER", n.Type)
	n.Timeout = getEnvDuration("SITEMGMT_NOTIFY_TIMEOUT", n.Timeout)
	n.SESRegion = getEnv("SITEMGMT_SES_REGION", n.SESRegion)
	n.SESEndpoint = getEnv("SITEMGMT_SES_ENDPOINT", n.SESEndpoint)
	n.SESAccessKey = getEnv("SITEMGMT_SES_ACCESS_KEY", n.SESAccessKey)
	n.SESSecretKey = getEnv("SITEMGMT_SES_SECRET_KEY", n.SESSecretKey)
	n.SESFrom = getEnv("SITEMGMT_SES_FROM", n.SESFrom)
	n.SESRecipients = getEnvList("SITEMGMT_SES_RECIPIENTS", n.SESRecipients)
	n.SESSubject = getEnv("SITEMGMT_SES_SUBJECT", n.SESSubject)
	n.RedisChannel = getEnv("SITEMGMT_REDIS_CHANNEL", n.RedisChannel)

	l := &c.RateLimit
	l.Enabled = getEnvBool("SITEMGMT_RATE_LIMIT_ENABLED", l.Enabled)
	l.Backend = getEnv("SITEMGMT_RATE_LIMIT_BACKEND", l.Backend)
	l.RequestsPerMinute = getEnvInt("SITEMGMT_RATE_LIMIT_PER_MINUTE", l.RequestsPerMinute)
	l.Burst = getEnvInt("SITEMGMT_RATE_LIMIT_BURST", l.Burst)
	l.TrustedProxies = getEnvList("SITEMGMT_RATE_LIMIT_TRUSTED_PROXIES", l.TrustedProxies)

	o := &c.Observability
	o.LogLevel = getEnv("SITEMGMT_LOG_LEVEL", o.LogLevel)
	o.MetricsEnabled = getEnvBool("SITEMGMT_METRICS_ENABLED", o.MetricsEnabled)
	o.RosterGaugeSchedule = getEnv("SITEMGMT_ROSTER_GAUGE_SCHEDULE", o.RosterGaugeSchedule)
	o.OTelEnabled = getEnvBool("SITEMGMT_OTEL_ENABLED", o.OTelEnabled)
	o.OTelEndpoint = getEnv("SITEMGMT_OTEL_ENDPOINT", o.OTelEndpoint)
	o.OTelServiceName = getEnv("SITEMGMT_OTEL_SERVICE_NAME", o.OTelServiceName)
	o.OTelServiceVersion = getEnv("SITEMGMT_OTEL_SERVICE_VERSION", o.OTelServiceVersion)
	o.OTelInsecure = getEnvBool("SITEMGMT_OTEL_INSECURE", o.OTelInsecure)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}
	if c.Server.BaseURL == "" {
		return fmt.Errorf("base URL is required")
	}

	// Validate sign-in config
	if c.Auth.ClientID == "" || c.Auth.ClientSecret == "" {
		return fmt.Errorf("OAuth client id and secret are required (set SITEMGMT_CLIENT_SECRETS_FILE or SITEMGMT_CLIENT_ID/SITEMGMT_CLIENT_SECRET)")
	}
	if c.Auth.IssuerURL == "" {
		return fmt.Errorf("issuer URL is required")
	}
	if len(c.Auth.SessionSecret) < MinSessionSecretLength {
		return fmt.Errorf("session secret must be at least %d bytes", MinSessionSecretLength)
	}
	if c.Auth.SessionTTL <= 0 {
		return fmt.Errorf("session TTL must be positive")
	}

	if err := c.Database.Validate(); err != nil {
		return err
	}

	// Validate notifier config based on type
	switch c.Notify.Type {
	case NotifierLog:
	case NotifierSES:
		if c.Notify.SESFrom == "" || len(c.Notify.SESRecipients) == 0 {
			return fmt.Errorf("SES sender and recipients are required for the ses notifier")
		}
	case NotifierRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("redis URL is required for the redis notifier")
		}
	default:
		return fmt.Errorf("invalid notifier type: %s (must be log, ses, or redis)", c.Notify.Type)
	}

	if c.RateLimit.Enabled {
		switch c.RateLimit.Backend {
		case "memory":
		case "redis":
			if c.Redis.URL == "" {
				return fmt.Errorf("redis URL is required for the redis rate limiter")
			}
		default:
			return fmt.Errorf("invalid rate limit backend: %s (must be memory or redis)", c.RateLimit.Backend)
		}
		if c.RateLimit.RequestsPerMinute <= 0 {
			return fmt.Errorf("rate limit requests per minute must be positive")
		}
		for _, proxy := range c.RateLimit.TrustedProxies {
			if !validProxy(proxy) {
				return fmt.Errorf("invalid trusted proxy: %s (must be an address or CIDR)", proxy)
			}
		}
	}

	if c.Observability.RosterGaugeSchedule != "" {
		if _, err := cron.ParseStandard(c.Observability.RosterGaugeSchedule); err != nil {
			return fmt.Errorf("invalid roster gauge schedule %q: %w", c.Observability.RosterGaugeSchedule, err)
		}
	}

	// Validate OpenTelemetry config
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// Validate checks the storage settings on their own; the admin CLI needs
// nothing else
func (d DatabaseConfig) Validate() error {
	switch d.Store {
	case StorePostgres, StoreSQLite:
		if d.DSN == "" {
			return fmt.Errorf("database DSN is required for %s store", d.Store)
		}
	case StoreMemory:
	default:
		return fmt.Errorf("invalid store type: %s (must be postgres, sqlite3, or memory)", d.Store)
	}
	return nil
}

// ClientSecrets are the OAuth client credentials
type ClientSecrets struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

// LoadClientSecrets reads a client secrets file in the format issued by the
// Google API console: {"web": {"client_id": ..., "client_secret": ...}}
func LoadClientSecrets(path string) (*ClientSecrets, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read client secrets %s: %w", path, err)
	}

	var file struct {
		Web       *ClientSecrets `json:"web"`
		Installed *ClientSecrets `json:"installed"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse client secrets %s: %w", path, err)
	}

	secrets := file.Web
	if secrets == nil {
		secrets = file.Installed
	}
	if secrets == nil || secrets.ClientID == "" || secrets.ClientSecret == "" {
		return nil, errors.New("client secrets file has no web client_id/client_secret")
	}
	return secrets, nil
}

// LoadDatabaseConfig reads only the storage settings from the environment
func LoadDatabaseConfig() (DatabaseConfig, error) {
	cfg := Default()
	if path := os.Getenv("SITEMGMT_CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return DatabaseConfig{}, err
		}
	}
	cfg.applyEnv()
	if err := cfg.Database.Validate(); err != nil {
		return DatabaseConfig{}, err
	}
	return cfg.Database, nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvList returns a comma separated environment variable or a default
func validProxy(value string) bool {
	value = strings.TrimSpace(value)
	if _, err := netip.ParsePrefix(value); err == nil {
		return true
	}
	_, err := netip.ParseAddr(value)
	return err == nil
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
