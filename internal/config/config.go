package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	APIPort  string
	LogLevel string

	BackendURL     string
	BackendToken   string
	BackendTimeout time.Duration

	OrgID         string
	ActorEmail    string
	ActorElevated bool

	TransferBytesPerSecond int
	TransferTimeout        time.Duration

	PostgresDSN string

	NATSURL     string
	NATSSubject string

	OllamaURL     string
	OllamaModel   string
	OllamaTimeout time.Duration

	ExtractMaxBytes int
	ExtractMaxChars int

	AuditLimit     int
	AuditCoalesce  bool
	AuditCacheSize int

	GatewayRateLimit   float64
	GatewayRateBurst   int
	GatewayMaxUploadMB int

	WorkerMetricsPort   string
	LedgerSweepInterval time.Duration
	LedgerStaleAfter    time.Duration
}

// overlay holds values from the DOCLIFE_CONFIG file, keyed by environment
// variable name. Real environment variables take precedence.
type overlay map[string]string

// Load reads configuration from the environment, falling back to the YAML
// file named by DOCLIFE_CONFIG and then to built-in defaults.
func Load() (Config, error) {
	values, err := loadOverlay(os.Getenv("DOCLIFE_CONFIG"))
	if err != nil {
		return Config{}, err
	}

	return Config{
		APIPort:  values.mustEnv("API_PORT", "8080"),
		LogLevel: values.mustEnv("LOG_LEVEL", "info"),

		BackendURL:     values.mustEnv("BACKEND_URL", "http://localhost:54321/functions/v1"),
		BackendToken:   values.mustEnv("BACKEND_TOKEN", ""),
		BackendTimeout: values.mustEnvDuration("BACKEND_TIMEOUT", 30*time.Second),

		OrgID:         values.mustEnv("DOCLIFE_ORG_ID", ""),
		ActorEmail:    values.mustEnv("DOCLIFE_ACTOR_EMAIL", ""),
		ActorElevated: values.mustEnvBool("DOCLIFE_ACTOR_ELEVATED", false),

		TransferBytesPerSecond: values.mustEnvInt("TRANSFER_BYTES_PER_SECOND", 0),
		TransferTimeout:        values.mustEnvDuration("TRANSFER_TIMEOUT", 10*time.Minute),

		PostgresDSN: values.mustEnv("POSTGRES_DSN", ""),

		NATSURL:     values.mustEnv("NATS_URL", ""),
		NATSSubject: values.mustEnv("NATS_SUBJECT", "doclife.lifecycle"),

		OllamaURL:     values.mustEnv("OLLAMA_URL", "http://localhost:11434"),
		OllamaModel:   values.mustEnv("OLLAMA_MODEL", "llama3.1:8b"),
		OllamaTimeout: values.mustEnvDuration("OLLAMA_TIMEOUT", 120*time.Second),

		ExtractMaxBytes: values.mustEnvInt("EXTRACT_MAX_BYTES", 32<<20),
		ExtractMaxChars: values.mustEnvInt("EXTRACT_MAX_CHARS", 200000),

		AuditLimit:     values.mustEnvInt("AUDIT_LIMIT", 500),
		AuditCoalesce:  values.mustEnvBool("AUDIT_COALESCE", true),
		AuditCacheSize: values.mustEnvInt("AUDIT_CACHE_SIZE", 256),

		GatewayRateLimit:   values.mustEnvFloat("GATEWAY_RATE_LIMIT", 20),
		GatewayRateBurst:   values.mustEnvInt("GATEWAY_RATE_BURST", 40),
		GatewayMaxUploadMB: values.mustEnvInt("GATEWAY_MAX_UPLOAD_MB", 64),

		WorkerMetricsPort:   values.mustEnv("WORKER_METRICS_PORT", "9090"),
		LedgerSweepInterval: values.mustEnvDuration("LEDGER_SWEEP_INTERVAL", 5*time.Minute),
		LedgerStaleAfter:    values.mustEnvDuration("LEDGER_STALE_AFTER", 15*time.Minute),
	}, nil
}

func loadOverlay(path string) (overlay, error) {
	if strings.TrimSpace(path) == "" {
		return overlay{}, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config overlay: %w", err)
	}
	var decoded map[string]any
	if err := yaml.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("parse config overlay %s: %w", path, err)
	}
	out := make(overlay, len(decoded))
	for key, value := range decoded {
		if value == nil {
			continue
		}
		out[strings.ToUpper(strings.TrimSpace(key))] = fmt.Sprint(value)
	}
	return out, nil
}

func (o overlay) lookup(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return o[key]
}

func (o overlay) mustEnv(key, fallback string) string {
	v := o.lookup(key)
	if v == "" {
		return fallback
	}
	return v
}

func (o overlay) mustEnvInt(key string, fallback int) int {
	v := o.lookup(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func (o overlay) mustEnvFloat(key string, fallback float64) float64 {
	v := o.lookup(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return n
}

func (o overlay) mustEnvBool(key string, fallback bool) bool {
	v := o.lookup(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func (o overlay) mustEnvDuration(key string, fallback time.Duration) time.Duration {
	v := o.lookup(key)
	if v == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return parsed
}
