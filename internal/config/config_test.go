package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/querypilot/querypilot/internal/conn"
)

func TestLoadDefaultsForDevProfile(t *testing.T) {
	cfg, err := Load("querypilot-api", mapLookup(map[string]string{}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileDev {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileDev)
	}
	if cfg.HTTP.Address != ":8000" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if len(cfg.HTTP.CORSAllowedOrigins) != 1 || cfg.HTTP.CORSAllowedOrigins[0] != "http://localhost:3000" {
		t.Fatalf("HTTP.CORSAllowedOrigins = %#v", cfg.HTTP.CORSAllowedOrigins)
	}
	if cfg.Observability.LogLevel != slog.LevelDebug {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if cfg.Database.DefaultDialect != conn.DialectMySQL {
		t.Fatalf("Database.DefaultDialect = %q", cfg.Database.DefaultDialect)
	}
	if cfg.Query.MaxRows != 0 {
		t.Fatalf("Query.MaxRows = %d", cfg.Query.MaxRows)
	}
	if cfg.Session.Capacity != 1000 {
		t.Fatalf("Session.Capacity = %d", cfg.Session.Capacity)
	}
	if cfg.AI.Provider != "openai" || cfg.AI.Temperature != nil || cfg.AI.APIKey != "" || cfg.AI.Model != "" {
		t.Fatalf("AI = %#v", cfg.AI)
	}
	if cfg.Archive.Enabled {
		t.Fatal("Archive.Enabled should default to false")
	}
}

func TestLoadProdProfileDefaults(t *testing.T) {
	cfg, err := Load("querypilot-api", mapLookup(map[string]string{"QUERYPILOT_PROFILE": "prod"}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Observability.LogLevel != slog.LevelInfo {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if cfg.Query.MaxRows != 10000 {
		t.Fatalf("Query.MaxRows = %d", cfg.Query.MaxRows)
	}
	if !cfg.ObjectStore.UseSSL || cfg.ObjectStore.AutoCreateBucket {
		t.Fatalf("ObjectStore = %#v", cfg.ObjectStore)
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	lookup := mapLookup(map[string]string{
		"QUERYPILOT_PROFILE":               "test",
		"QUERYPILOT_SERVICE_NAME":          "qp-custom",
		"QUERYPILOT_HTTP_ADDR":             ":9999",
		"QUERYPILOT_HTTP_READ_TIMEOUT":     "3s",
		"QUERYPILOT_CORS_ALLOWED_ORIGINS":  "https://app.example.com, http://localhost:5173,",
		"QUERYPILOT_DB_DEFAULT_DIALECT":    "postgresql",
		"QUERYPILOT_DB_PING_TIMEOUT":       "2s",
		"QUERYPILOT_QUERY_MAX_ROWS":        "500",
		"QUERYPILOT_SESSION_CAPACITY":      "25",
		"QUERYPILOT_AI_PROVIDER":           "Gemini",
		"QUERYPILOT_AI_MODEL":              "gemini-1.5-pro",
		"QUERYPILOT_AI_TEMPERATURE":        "0",
		"QUERYPILOT_AI_TIMEOUT":            "45s",
		"QUERYPILOT_ARCHIVE_ENABLED":       "true",
		"QUERYPILOT_ARCHIVE_KEEP_VERSIONS": "3",
		"QUERYPILOT_OBJECTSTORE_BUCKET":    "schemas",
		"QUERYPILOT_LOG_JSON":              "false",
		"QUERYPILOT_LOG_LEVEL":             "error",
	})

	cfg, err := Load("ignored", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileTest || cfg.Service.Name != "qp-custom" || cfg.HTTP.Address != ":9999" {
		t.Fatalf("profile/service/addr = %q/%q/%q", cfg.Profile, cfg.Service.Name, cfg.HTTP.Address)
	}
	if cfg.HTTP.ReadTimeout != 3*time.Second {
		t.Fatalf("HTTP.ReadTimeout = %v", cfg.HTTP.ReadTimeout)
	}
	if got := cfg.HTTP.CORSAllowedOrigins; len(got) != 2 || got[1] != "http://localhost:5173" {
		t.Fatalf("HTTP.CORSAllowedOrigins = %#v", got)
	}
	if cfg.Database.DefaultDialect != conn.DialectPostgres || cfg.Database.PingTimeout != 2*time.Second {
		t.Fatalf("Database = %#v", cfg.Database)
	}
	if cfg.Query.MaxRows != 500 || cfg.Session.Capacity != 25 {
		t.Fatalf("Query/Session = %#v / %#v", cfg.Query, cfg.Session)
	}
	if cfg.AI.Provider != "gemini" || cfg.AI.Model != "gemini-1.5-pro" || cfg.AI.Timeout != 45*time.Second {
		t.Fatalf("AI = %#v", cfg.AI)
	}
	if cfg.AI.Temperature == nil || *cfg.AI.Temperature != 0 {
		t.Fatalf("AI.Temperature = %v", cfg.AI.Temperature)
	}
	if !cfg.Archive.Enabled || cfg.Archive.KeepVersions != 3 || cfg.ObjectStore.Bucket != "schemas" {
		t.Fatalf("Archive/ObjectStore = %#v / %#v", cfg.Archive, cfg.ObjectStore)
	}
	if cfg.Observability.LogJSON || cfg.Observability.LogLevel != slog.LevelError {
		t.Fatalf("Observability = %#v", cfg.Observability)
	}
}

func TestLoadFallsBackToProviderKeyVariables(t *testing.T) {
	cfg, err := Load("querypilot-api", mapLookup(map[string]string{"OPENAI_API_KEY": " sk-test "}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.AI.APIKey != "sk-test" {
		t.Fatalf("AI.APIKey = %q", cfg.AI.APIKey)
	}

	cfg, err = Load("querypilot-api", mapLookup(map[string]string{
		"QUERYPILOT_AI_PROVIDER": "gemini",
		"OPENAI_API_KEY":         "sk-test",
		"GEMINI_API_KEY":         "gm-test",
	}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.AI.APIKey != "gm-test" {
		t.Fatalf("AI.APIKey = %q", cfg.AI.APIKey)
	}

	cfg, err = Load("querypilot-api", mapLookup(map[string]string{
		"QUERYPILOT_AI_API_KEY": "explicit",
		"OPENAI_API_KEY":        "sk-test",
	}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.AI.APIKey != "explicit" {
		t.Fatalf("AI.APIKey = %q", cfg.AI.APIKey)
	}
}

func TestLoadLeavesModelUnsetForProviderDefaults(t *testing.T) {
	for _, provider := range []string{"openai", "gemini"} {
		cfg, err := Load("querypilot-api", mapLookup(map[string]string{
			"QUERYPILOT_AI_PROVIDER": provider,
			"GEMINI_API_KEY":         "gm-test",
		}))
		if err != nil {
			t.Fatalf("Load(%s) error = %v", provider, err)
		}
		if cfg.AI.Model != "" || cfg.AI.BaseURL != "" {
			t.Fatalf("Load(%s) AI = %#v, want empty model and base url", provider, cfg.AI)
		}
	}
}

func TestLoadErrorsOnInvalidValues(t *testing.T) {
	tests := []map[string]string{
		{"QUERYPILOT_PROFILE": "oops"},
		{"QUERYPILOT_HTTP_READ_TIMEOUT": "NaN"},
		{"QUERYPILOT_DB_DEFAULT_DIALECT": "oracle"},
		{"QUERYPILOT_QUERY_MAX_ROWS": "oops"},
		{"QUERYPILOT_QUERY_MAX_ROWS": "-1"},
		{"QUERYPILOT_SESSION_CAPACITY": "0"},
		{"QUERYPILOT_AI_PROVIDER": "llama"},
		{"QUERYPILOT_AI_TEMPERATURE": "bad"},
		{"QUERYPILOT_ARCHIVE_ENABLED": "not-bool"},
		{"QUERYPILOT_ARCHIVE_ENABLED": "true", "QUERYPILOT_OBJECTSTORE_BUCKET": ""},
		{"QUERYPILOT_LOG_LEVEL": "verbose"},
		{"QUERYPILOT_HTTP_ADDR": ""},
	}
	for _, env := range tests {
		_, err := Load("querypilot-api", mapLookup(env))
		if err == nil {
			t.Fatalf("Load() expected error for env %#v", env)
		}
	}
}

func mapLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}
