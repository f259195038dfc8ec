package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

func mapLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}

func TestLoadDevDefaults(t *testing.T) {
	cfg, err := Load("finquery-api", mapLookup(nil))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Profile != ProfileDev {
		t.Fatalf("Profile = %q, want dev", cfg.Profile)
	}
	if cfg.HTTP.Address != ":8080" {
		t.Fatalf("HTTP.Address = %q, want :8080", cfg.HTTP.Address)
	}
	if cfg.HTTP.ReadTimeout != 5*time.Second {
		t.Fatalf("HTTP.ReadTimeout = %v", cfg.HTTP.ReadTimeout)
	}
	if cfg.LLM.Enabled {
		t.Fatal("LLM.Enabled = true, want false in dev")
	}
	if cfg.LLM.BaseURL != "https://api.openai.com" {
		t.Fatalf("LLM.BaseURL = %q", cfg.LLM.BaseURL)
	}
	if cfg.LLM.Model != "gpt-5" {
		t.Fatalf("LLM.Model = %q", cfg.LLM.Model)
	}
	if cfg.Pipeline.MinConfidence != 0.5 || cfg.Pipeline.FastPathThreshold != 0.8 {
		t.Fatalf("Pipeline = %+v", cfg.Pipeline)
	}
	if cfg.Pipeline.RowLimit != 100 {
		t.Fatalf("Pipeline.RowLimit = %d, want 100", cfg.Pipeline.RowLimit)
	}
	if cfg.Data.LocalDir != "data/parquet" || cfg.Data.CompaniesFile != "companies.parquet" {
		t.Fatalf("Data = %+v", cfg.Data)
	}
	if cfg.Data.MemoryLimit != "4GB" || cfg.Data.Threads != 4 {
		t.Fatalf("Data = %+v", cfg.Data)
	}
	if cfg.Auth.Required {
		t.Fatal("Auth.Required = true, want false in dev")
	}
	if cfg.Observability.LogLevel != slog.LevelDebug {
		t.Fatalf("LogLevel = %v, want debug", cfg.Observability.LogLevel)
	}
}

func TestLoadProfileOverrides(t *testing.T) {
	testCfg, err := Load("finquery-api", mapLookup(map[string]string{"FINQUERY_PROFILE": "test"}))
	if err != nil {
		t.Fatalf("Load(test) error = %v", err)
	}
	if testCfg.HTTP.Address != ":18080" {
		t.Fatalf("test HTTP.Address = %q, want :18080", testCfg.HTTP.Address)
	}
	if testCfg.Observability.LogLevel != slog.LevelWarn {
		t.Fatalf("test LogLevel = %v, want warn", testCfg.Observability.LogLevel)
	}

	prodCfg, err := Load("finquery-api", mapLookup(map[string]string{"FINQUERY_PROFILE": "prod"}))
	if err != nil {
		t.Fatalf("Load(prod) error = %v", err)
	}
	if !prodCfg.Auth.Required {
		t.Fatal("prod Auth.Required = false, want true")
	}
	if !prodCfg.ObjectStore.UseSSL {
		t.Fatal("prod ObjectStore.UseSSL = false, want true")
	}
	if prodCfg.Observability.LogLevel != slog.LevelInfo {
		t.Fatalf("prod LogLevel = %v, want info", prodCfg.Observability.LogLevel)
	}
}

func TestLoadInvalidProfile(t *testing.T) {
	if _, err := Load("finquery-api", mapLookup(map[string]string{"FINQUERY_PROFILE": "staging"})); err == nil {
		t.Fatal("Load() expected error for unknown profile")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	cfg, err := Load("finquery-api", mapLookup(map[string]string{
		"FINQUERY_HTTP_ADDR":                    ":9090",
		"FINQUERY_HTTP_WRITE_TIMEOUT":           "90s",
		"FINQUERY_TEMPLATES_DSN":                "postgres://localhost/templates",
		"FINQUERY_DATA_LOCAL_DIR":               "/var/lib/finquery",
		"FINQUERY_DATA_THREADS":                 "8",
		"FINQUERY_OBJECTSTORE_ENDPOINT":         "minio:9000",
		"FINQUERY_LLM_ENABLED":                  "true",
		"FINQUERY_LLM_API_KEY":                  "sk-test",
		"FINQUERY_LLM_MODEL":                    "gpt-5-mini",
		"FINQUERY_PIPELINE_FAST_PATH_THRESHOLD": "0.9",
		"FINQUERY_PIPELINE_ROW_LIMIT":           "250",
		"FINQUERY_LOG_LEVEL":                    "error",
		"FINQUERY_AUTH_REQUIRED":                "true",
		"FINQUERY_AUTH_STATIC_KEYS":             "k:analyst:asker",
		"FINQUERY_TEMPLATES_CONN_MAX_IDLE_TIME": "2m",
	}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.HTTP.Address != ":9090" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.HTTP.WriteTimeout != 90*time.Second {
		t.Fatalf("HTTP.WriteTimeout = %v", cfg.HTTP.WriteTimeout)
	}
	if cfg.Templates.DSN != "postgres://localhost/templates" {
		t.Fatalf("Templates.DSN = %q", cfg.Templates.DSN)
	}
	if cfg.Templates.ConnMaxIdleTime != 2*time.Minute {
		t.Fatalf("Templates.ConnMaxIdleTime = %v", cfg.Templates.ConnMaxIdleTime)
	}
	if cfg.Data.LocalDir != "/var/lib/finquery" || cfg.Data.Threads != 8 {
		t.Fatalf("Data = %+v", cfg.Data)
	}
	if cfg.ObjectStore.Endpoint != "minio:9000" {
		t.Fatalf("ObjectStore.Endpoint = %q", cfg.ObjectStore.Endpoint)
	}
	if !cfg.LLM.Enabled || cfg.LLM.Model != "gpt-5-mini" {
		t.Fatalf("LLM = %+v", cfg.LLM)
	}
	if cfg.Pipeline.FastPathThreshold != 0.9 || cfg.Pipeline.RowLimit != 250 {
		t.Fatalf("Pipeline = %+v", cfg.Pipeline)
	}
	if cfg.Observability.LogLevel != slog.LevelError {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if !cfg.Auth.Required || cfg.Auth.StaticKeys != "k:analyst:asker" {
		t.Fatalf("Auth = %+v", cfg.Auth)
	}
}

func TestLoadLLMEnabledRequiresAPIKey(t *testing.T) {
	_, err := Load("finquery-api", mapLookup(map[string]string{"FINQUERY_LLM_ENABLED": "true"}))
	if err == nil {
		t.Fatal("Load() expected error when LLM enabled without api key")
	}
	if !strings.Contains(err.Error(), "FINQUERY_LLM_API_KEY") {
		t.Fatalf("error = %v, want api key requirement", err)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad duration", map[string]string{"FINQUERY_HTTP_READ_TIMEOUT": "fast"}},
		{"bad bool", map[string]string{"FINQUERY_LLM_ENABLED": "sure"}},
		{"bad int", map[string]string{"FINQUERY_DATA_THREADS": "many"}},
		{"bad float", map[string]string{"FINQUERY_PIPELINE_MIN_CONFIDENCE": "high"}},
		{"bad log level", map[string]string{"FINQUERY_LOG_LEVEL": "verbose"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load("finquery-api", mapLookup(tt.env)); err == nil {
				t.Fatal("Load() expected error")
			}
		})
	}
}

func TestLoadRequiresServiceName(t *testing.T) {
	if _, err := Load("", mapLookup(map[string]string{"FINQUERY_SERVICE_NAME": ""})); err == nil {
		t.Fatal("Load() expected error for empty service name")
	}
}

func TestLoadNilLookup(t *testing.T) {
	if _, err := Load("finquery-api", nil); err == nil {
		t.Fatal("Load() expected error for nil lookup")
	}
}
