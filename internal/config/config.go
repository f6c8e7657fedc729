package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/querypilot/querypilot/internal/conn"
)

type LookupFunc func(string) (string, bool)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

const envPrefix = "QUERYPILOT_"

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	HTTP          HTTPConfig
	Database      DatabaseConfig
	Query         QueryConfig
	Session       SessionConfig
	AI            AIConfig
	Archive       ArchiveConfig
	ObjectStore   ObjectStoreConfig
	Observability ObservabilityConfig
}

type ServiceConfig struct {
	Name string
}

type HTTPConfig struct {
	Address            string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	IdleTimeout        time.Duration
	CORSAllowedOrigins []string
}

type DatabaseConfig struct {
	DefaultDialect  conn.Dialect
	PingTimeout     time.Duration
	ConnMaxLifetime time.Duration
}

type QueryConfig struct {
	// MaxRows caps rows returned by a read. Zero means unlimited.
	MaxRows int
}

// AIConfig leaves BaseURL and Model empty unless configured so each
// provider's completer picks its own defaults.
type SessionConfig struct {
	// Capacity bounds the schema snapshots held in memory, one per connection.
	Capacity int
}

type AIConfig struct {
	Provider string
	BaseURL  string
	APIKey   string
	Model    string
	// Temperature is nil unless configured, in which case it is sent with every call.
	Temperature *float64
	Timeout     time.Duration
}

type ArchiveConfig struct {
	Enabled      bool
	KeepVersions int
}

type ObjectStoreConfig struct {
	Endpoint         string
	Region           string
	Bucket           string
	AccessKeyID      string
	SecretAccessKey  string
	UseSSL           bool
	Prefix           string
	AutoCreateBucket bool
}

type ObservabilityConfig struct {
	LogLevel slog.Level
	LogJSON  bool
}

func LoadFromEnv(serviceName string) (Config, error) {
	return Load(serviceName, os.LookupEnv)
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	profile := ProfileDev
	if raw, ok := lookup(envPrefix + "PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid %sPROFILE: %q", envPrefix, profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	var dialect string
	steps := []func() error{
		func() error { return applyString(lookup, envPrefix+"SERVICE_NAME", &cfg.Service.Name) },
		func() error { return applyString(lookup, envPrefix+"HTTP_ADDR", &cfg.HTTP.Address) },
		func() error { return applyDuration(lookup, envPrefix+"HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout) },
		func() error { return applyDuration(lookup, envPrefix+"HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout) },
		func() error { return applyDuration(lookup, envPrefix+"HTTP_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout) },
		func() error { return applyList(lookup, envPrefix+"CORS_ALLOWED_ORIGINS", &cfg.HTTP.CORSAllowedOrigins) },
		func() error { return applyString(lookup, envPrefix+"DB_DEFAULT_DIALECT", &dialect) },
		func() error { return applyDuration(lookup, envPrefix+"DB_PING_TIMEOUT", &cfg.Database.PingTimeout) },
		func() error { return applyDuration(lookup, envPrefix+"DB_CONN_MAX_LIFETIME", &cfg.Database.ConnMaxLifetime) },
		func() error { return applyInt(lookup, envPrefix+"QUERY_MAX_ROWS", &cfg.Query.MaxRows) },
		func() error { return applyInt(lookup, envPrefix+"SESSION_CAPACITY", &cfg.Session.Capacity) },
		func() error { return applyString(lookup, envPrefix+"AI_PROVIDER", &cfg.AI.Provider) },
		func() error { return applyString(lookup, envPrefix+"AI_BASE_URL", &cfg.AI.BaseURL) },
		func() error { return applyString(lookup, envPrefix+"AI_API_KEY", &cfg.AI.APIKey) },
		func() error { return applyString(lookup, envPrefix+"AI_MODEL", &cfg.AI.Model) },
		func() error { return applyOptionalFloat(lookup, envPrefix+"AI_TEMPERATURE", &cfg.AI.Temperature) },
		func() error { return applyDuration(lookup, envPrefix+"AI_TIMEOUT", &cfg.AI.Timeout) },
		func() error { return applyBool(lookup, envPrefix+"ARCHIVE_ENABLED", &cfg.Archive.Enabled) },
		func() error { return applyInt(lookup, envPrefix+"ARCHIVE_KEEP_VERSIONS", &cfg.Archive.KeepVersions) },
		func() error { return applyString(lookup, envPrefix+"OBJECTSTORE_ENDPOINT", &cfg.ObjectStore.Endpoint) },
		func() error { return applyString(lookup, envPrefix+"OBJECTSTORE_REGION", &cfg.ObjectStore.Region) },
		func() error { return applyString(lookup, envPrefix+"OBJECTSTORE_BUCKET", &cfg.ObjectStore.Bucket) },
		func() error { return applyString(lookup, envPrefix+"OBJECTSTORE_ACCESS_KEY", &cfg.ObjectStore.AccessKeyID) },
		func() error { return applyString(lookup, envPrefix+"OBJECTSTORE_SECRET_KEY", &cfg.ObjectStore.SecretAccessKey) },
		func() error { return applyBool(lookup, envPrefix+"OBJECTSTORE_USE_SSL", &cfg.ObjectStore.UseSSL) },
		func() error { return applyString(lookup, envPrefix+"OBJECTSTORE_PREFIX", &cfg.ObjectStore.Prefix) },
		func() error { return applyBool(lookup, envPrefix+"OBJECTSTORE_AUTO_CREATE_BUCKET", &cfg.ObjectStore.AutoCreateBucket) },
		func() error { return applyBool(lookup, envPrefix+"LOG_JSON", &cfg.Observability.LogJSON) },
		func() error { return applyLogLevel(lookup, envPrefix+"LOG_LEVEL", &cfg.Observability.LogLevel) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return Config{}, err
		}
	}

	if dialect != "" {
		parsed, err := conn.ParseDialect(dialect)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %sDB_DEFAULT_DIALECT: %w", envPrefix, err)
		}
		cfg.Database.DefaultDialect = parsed
	}
	cfg.AI.Provider = strings.ToLower(cfg.AI.Provider)
	if cfg.AI.APIKey == "" {
		cfg.AI.APIKey = providerKeyFallback(lookup, cfg.AI.Provider)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Service.Name == "" {
		return fmt.Errorf("service name is required")
	}
	if c.HTTP.Address == "" {
		return fmt.Errorf("http address is required")
	}
	switch c.AI.Provider {
	case "openai", "gemini":
	default:
		return fmt.Errorf("invalid %sAI_PROVIDER: %q", envPrefix, c.AI.Provider)
	}
	if c.Query.MaxRows < 0 {
		return fmt.Errorf("%sQUERY_MAX_ROWS must be >= 0", envPrefix)
	}
	if c.Session.Capacity <= 0 {
		return fmt.Errorf("%sSESSION_CAPACITY must be > 0", envPrefix)
	}
	if c.Archive.KeepVersions < 0 {
		return fmt.Errorf("%sARCHIVE_KEEP_VERSIONS must be >= 0", envPrefix)
	}
	if c.Archive.Enabled {
		if c.ObjectStore.Endpoint == "" {
			return fmt.Errorf("object store endpoint is required when the archive is enabled")
		}
		if c.ObjectStore.Bucket == "" {
			return fmt.Errorf("object store bucket is required when the archive is enabled")
		}
	}
	return nil
}

// providerKeyFallback reads the key variable each provider's own tooling uses.
func providerKeyFallback(lookup LookupFunc, provider string) string {
	name := "OPENAI_API_KEY"
	if provider == "gemini" {
		name = "GEMINI_API_KEY"
	}
	raw, ok := lookup(name)
	if !ok {
		return ""
	}
	return strings.TrimSpace(raw)
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "querypilot-api"},
		HTTP: HTTPConfig{
			Address:            ":8000",
			ReadTimeout:        5 * time.Second,
			WriteTimeout:       90 * time.Second,
			IdleTimeout:        60 * time.Second,
			CORSAllowedOrigins: []string{"http://localhost:3000"},
		},
		Database: DatabaseConfig{
			DefaultDialect:  conn.DefaultDialect,
			PingTimeout:     5 * time.Second,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Query: QueryConfig{
			MaxRows: 0,
		},
		Session: SessionConfig{
			Capacity: 1000,
		},
		AI: AIConfig{
			Provider: "openai",
			Timeout:  30 * time.Second,
		},
		Archive: ArchiveConfig{
			Enabled:      false,
			KeepVersions: 10,
		},
		ObjectStore: ObjectStoreConfig{
			Endpoint:         "localhost:9000",
			Region:           "us-east-1",
			Bucket:           "querypilot",
			AccessKeyID:      "minio",
			SecretAccessKey:  "miniostorage",
			UseSSL:           false,
			Prefix:           "",
			AutoCreateBucket: true,
		},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelDebug,
			LogJSON:  true,
		},
	}

	switch profile {
	case ProfileTest:
		cfg.HTTP.Address = ":18000"
		cfg.Observability.LogLevel = slog.LevelWarn
		cfg.AI.Timeout = 5 * time.Second
	case ProfileProd:
		cfg.Observability.LogLevel = slog.LevelInfo
		cfg.Query.MaxRows = 10000
		cfg.ObjectStore.UseSSL = true
		cfg.ObjectStore.AutoCreateBucket = false
	}

	return cfg
}

func isValidProfile(profile Profile) bool {
	switch profile {
	case ProfileDev, ProfileTest, ProfileProd:
		return true
	default:
		return false
	}
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyList(lookup LookupFunc, key string, dst *[]string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	values := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	*dst = values
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyOptionalFloat(lookup LookupFunc, key string, dst **float64) error {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return nil
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = &value
	return nil
}

func applyLogLevel(lookup LookupFunc, key string, dst *slog.Level) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	level := strings.ToLower(strings.TrimSpace(raw))
	switch level {
	case "debug":
		*dst = slog.LevelDebug
	case "info":
		*dst = slog.LevelInfo
	case "warn", "warning":
		*dst = slog.LevelWarn
	case "error":
		*dst = slog.LevelError
	default:
		return fmt.Errorf("invalid %s: %q", key, raw)
	}
	return nil
}
