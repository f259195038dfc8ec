package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	HTTP          HTTPConfig
	Templates     TemplatesConfig
	Data          DataConfig
	ObjectStore   ObjectStoreConfig
	LLM           LLMConfig
	Pipeline      PipelineConfig
	Observability ObservabilityConfig
	Auth          AuthConfig
}

type ServiceConfig struct {
	Name string
}

type HTTPConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// TemplatesConfig controls where the query template catalog is loaded from.
// When DSN is empty (or the load fails) the built-in template set is used.
type TemplatesConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

// DataConfig points at the parquet datasets backing the analytical relations.
// LocalDir takes precedence; otherwise files are fetched from the object store.
type DataConfig struct {
	LocalDir      string
	CompaniesFile string
	SubFile       string
	NumFile       string
	TagFile       string
	PreFile       string
	MemoryLimit   string
	Threads       int
}

type ObjectStoreConfig struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	Prefix          string
}

type LLMConfig struct {
	Enabled     bool
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	MaxRetries  int
	RetryDelay  time.Duration
}

// PipelineConfig carries the confidence gates of the hybrid selector.
type PipelineConfig struct {
	MinConfidence     float64
	FastPathThreshold float64
	LLMThreshold      float64
	RowLimit          int
}

type ObservabilityConfig struct {
	LogLevel slog.Level
	LogJSON  bool
}

type AuthConfig struct {
	Required   bool
	StaticKeys string
}

func LoadFromEnv(serviceName string) (Config, error) {
	return Load(serviceName, os.LookupEnv)
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	profile := ProfileDev
	if raw, ok := lookup("FINQUERY_PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid FINQUERY_PROFILE: %q", profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	if err := applyString(lookup, "FINQUERY_SERVICE_NAME", &cfg.Service.Name); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "FINQUERY_HTTP_ADDR", &cfg.HTTP.Address); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "FINQUERY_HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "FINQUERY_HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "FINQUERY_HTTP_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "FINQUERY_TEMPLATES_DSN", &cfg.Templates.DSN); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "FINQUERY_TEMPLATES_MAX_OPEN_CONNS", &cfg.Templates.MaxOpenConns); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "FINQUERY_TEMPLATES_MAX_IDLE_CONNS", &cfg.Templates.MaxIdleConns); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "FINQUERY_TEMPLATES_CONN_MAX_IDLE_TIME", &cfg.Templates.ConnMaxIdleTime); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "FINQUERY_TEMPLATES_CONN_MAX_LIFETIME", &cfg.Templates.ConnMaxLifetime); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "FINQUERY_DATA_LOCAL_DIR", &cfg.Data.LocalDir); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "FINQUERY_DATA_COMPANIES_FILE", &cfg.Data.CompaniesFile); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "FINQUERY_DATA_SUB_FILE", &cfg.Data.SubFile); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "FINQUERY_DATA_NUM_FILE", &cfg.Data.NumFile); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "FINQUERY_DATA_TAG_FILE", &cfg.Data.TagFile); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "FINQUERY_DATA_PRE_FILE", &cfg.Data.PreFile); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "FINQUERY_DATA_MEMORY_LIMIT", &cfg.Data.MemoryLimit); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "FINQUERY_DATA_THREADS", &cfg.Data.Threads); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "FINQUERY_OBJECTSTORE_ENDPOINT", &cfg.ObjectStore.Endpoint); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "FINQUERY_OBJECTSTORE_REGION", &cfg.ObjectStore.Region); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "FINQUERY_OBJECTSTORE_BUCKET", &cfg.ObjectStore.Bucket); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "FINQUERY_OBJECTSTORE_ACCESS_KEY", &cfg.ObjectStore.AccessKeyID); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "FINQUERY_OBJECTSTORE_SECRET_KEY", &cfg.ObjectStore.SecretAccessKey); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "FINQUERY_OBJECTSTORE_USE_SSL", &cfg.ObjectStore.UseSSL); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "FINQUERY_OBJECTSTORE_PREFIX", &cfg.ObjectStore.Prefix); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "FINQUERY_LLM_ENABLED", &cfg.LLM.Enabled); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "FINQUERY_LLM_BASE_URL", &cfg.LLM.BaseURL); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "FINQUERY_LLM_API_KEY", &cfg.LLM.APIKey); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "FINQUERY_LLM_MODEL", &cfg.LLM.Model); err != nil {
		return Config{}, err
	}
	if err := applyFloat(lookup, "FINQUERY_LLM_TEMPERATURE", &cfg.LLM.Temperature); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "FINQUERY_LLM_MAX_TOKENS", &cfg.LLM.MaxTokens); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "FINQUERY_LLM_TIMEOUT", &cfg.LLM.Timeout); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "FINQUERY_LLM_MAX_RETRIES", &cfg.LLM.MaxRetries); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "FINQUERY_LLM_RETRY_DELAY", &cfg.LLM.RetryDelay); err != nil {
		return Config{}, err
	}
	if err := applyFloat(lookup, "FINQUERY_PIPELINE_MIN_CONFIDENCE", &cfg.Pipeline.MinConfidence); err != nil {
		return Config{}, err
	}
	if err := applyFloat(lookup, "FINQUERY_PIPELINE_FAST_PATH_THRESHOLD", &cfg.Pipeline.FastPathThreshold); err != nil {
		return Config{}, err
	}
	if err := applyFloat(lookup, "FINQUERY_PIPELINE_LLM_THRESHOLD", &cfg.Pipeline.LLMThreshold); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "FINQUERY_PIPELINE_ROW_LIMIT", &cfg.Pipeline.RowLimit); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "FINQUERY_LOG_JSON", &cfg.Observability.LogJSON); err != nil {
		return Config{}, err
	}
	if err := applyLogLevel(lookup, "FINQUERY_LOG_LEVEL", &cfg.Observability.LogLevel); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "FINQUERY_AUTH_REQUIRED", &cfg.Auth.Required); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "FINQUERY_AUTH_STATIC_KEYS", &cfg.Auth.StaticKeys); err != nil {
		return Config{}, err
	}

	if cfg.Service.Name == "" {
		return Config{}, fmt.Errorf("service name is required")
	}
	if cfg.HTTP.Address == "" {
		return Config{}, fmt.Errorf("http address is required")
	}
	if cfg.LLM.Enabled && strings.TrimSpace(cfg.LLM.APIKey) == "" {
		return Config{}, fmt.Errorf("FINQUERY_LLM_API_KEY is required when the LLM is enabled")
	}
	return cfg, nil
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "finquery-api"},
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Templates: TemplatesConfig{
			DSN:             "",
			MaxOpenConns:    10,
			MaxIdleConns:    10,
			ConnMaxIdleTime: 5 * time.Minute,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Data: DataConfig{
			LocalDir:      "data/parquet",
			CompaniesFile: "companies.parquet",
			SubFile:       "sub.parquet",
			NumFile:       "num.parquet",
			TagFile:       "tag.parquet",
			PreFile:       "pre.parquet",
			MemoryLimit:   "4GB",
			Threads:       4,
		},
		ObjectStore: ObjectStoreConfig{
			Region: "us-east-1",
			Bucket: "finquery",
		},
		LLM: LLMConfig{
			Enabled:     false,
			BaseURL:     "https://api.openai.com",
			Model:       "gpt-5",
			Temperature: 0.1,
			MaxTokens:   4000,
			Timeout:     30 * time.Second,
			MaxRetries:  3,
			RetryDelay:  time.Second,
		},
		Pipeline: PipelineConfig{
			MinConfidence:     0.5,
			FastPathThreshold: 0.8,
			LLMThreshold:      0.5,
			RowLimit:          100,
		},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelDebug,
			LogJSON:  true,
		},
		Auth: AuthConfig{
			Required:   false,
			StaticKeys: "",
		},
	}

	switch profile {
	case ProfileTest:
		cfg.HTTP.Address = ":18080"
		cfg.Observability.LogLevel = slog.LevelWarn
	case ProfileProd:
		cfg.Observability.LogLevel = slog.LevelInfo
		cfg.Auth.Required = true
		cfg.ObjectStore.UseSSL = true
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

func applyFloat(lookup LookupFunc, key string, dst *float64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
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
