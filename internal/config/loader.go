package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the YAML file read when FLOURISHA_CONFIG is unset.
const DefaultConfigFile = "flourisha.yaml"

// Load resolves configuration as defaults < YAML < environment. The YAML path comes
// from FLOURISHA_CONFIG, falling back to DefaultConfigFile.
func Load() (*Config, error) {
	path := os.Getenv("FLOURISHA_CONFIG")
	if path == "" {
		path = DefaultConfigFile
	}
	return LoadFrom(path)
}

// LoadFrom is Load with an explicit YAML path. A missing file is not an error;
// unknown YAML keys and unparsable environment values are.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()
	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}
	if err := loadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config env: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}
	return &cfg, nil
}

func loadYAML(cfg *Config, path string) error {
	f, err := os.Open(path) //nolint:gosec // operator-supplied path
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// envBinding ties an environment variable to a config field. dst is a pointer to
// string, bool, int, int32, int64, float64 or time.Duration.
type envBinding struct {
	key string
	dst any
}

func envBindings(cfg *Config) []envBinding {
	return []envBinding{
		{"FLOURISHA_PORT", &cfg.Server.Port},
		{"FLOURISHA_CORS_ORIGIN", &cfg.Server.CORSOrigin},

		{"DATABASE_URL", &cfg.Postgres.DSN},
		{"FLOURISHA_PG_MAX_CONNS", &cfg.Postgres.MaxConns},
		{"FLOURISHA_PG_MIN_CONNS", &cfg.Postgres.MinConns},
		{"FLOURISHA_PG_MAX_CONN_LIFETIME", &cfg.Postgres.MaxConnLifetime},
		{"FLOURISHA_PG_MAX_CONN_IDLE_TIME", &cfg.Postgres.MaxConnIdleTime},
		{"FLOURISHA_PG_HEALTH_CHECK", &cfg.Postgres.HealthCheck},

		{"FLOURISHA_NATS_ENABLED", &cfg.NATS.Enabled},
		{"NATS_URL", &cfg.NATS.URL},

		{"FLOURISHA_LOG_LEVEL", &cfg.Logging.Level},
		{"FLOURISHA_LOG_SERVICE", &cfg.Logging.Service},
		{"FLOURISHA_LOG_ASYNC", &cfg.Logging.Async},

		{"FLOURISHA_AUTH_ENABLED", &cfg.Auth.Enabled},
		{"FLOURISHA_JWT_SECRET", &cfg.Auth.JWTSecret},
		{"FLOURISHA_JWT_ISSUER", &cfg.Auth.JWTIssuer},
		{"FLOURISHA_JWT_TENANT_CLAIM", &cfg.Auth.TenantClaim},
		{"FLOURISHA_DEV_TENANT_ID", &cfg.Auth.DevTenantID},
		{"FLOURISHA_DEV_SUBJECT", &cfg.Auth.DevSubject},

		{"FLOURISHA_CACHE_L1_SIZE_MB", &cfg.Cache.L1MaxSizeMB},
		{"FLOURISHA_CACHE_L2_BUCKET", &cfg.Cache.L2Bucket},
		{"FLOURISHA_CACHE_L2_TTL", &cfg.Cache.L2TTL},
		{"FLOURISHA_CACHE_TENANT_TTL", &cfg.Cache.TenantTTL},

		{"FLOURISHA_BREAKER_MAX_FAILURES", &cfg.Breaker.MaxFailures},
		{"FLOURISHA_BREAKER_TIMEOUT", &cfg.Breaker.Timeout},

		{"FLOURISHA_RATE_RPS", &cfg.Rate.RequestsPerSecond},
		{"FLOURISHA_RATE_BURST", &cfg.Rate.Burst},
		{"FLOURISHA_RATE_CLEANUP_INTERVAL", &cfg.Rate.CleanupInterval},
		{"FLOURISHA_RATE_MAX_IDLE_TIME", &cfg.Rate.MaxIdleTime},

		{"FLOURISHA_IDEMPOTENCY_BUCKET", &cfg.Idempotency.Bucket},
		{"FLOURISHA_IDEMPOTENCY_TTL", &cfg.Idempotency.TTL},

		{"OTEL_ENABLED", &cfg.OTel.Enabled},
		{"OTEL_EXPORTER_OTLP_ENDPOINT", &cfg.OTel.Endpoint},
		{"OTEL_EXPORTER_OTLP_INSECURE", &cfg.OTel.Insecure},
		{"OTEL_SAMPLER_RATIO", &cfg.OTel.SampleRatio},

		{"FLOURISHA_MCP_ENABLED", &cfg.MCP.Enabled},
		{"FLOURISHA_MCP_ADDR", &cfg.MCP.Addr},
		{"FLOURISHA_MCP_API_KEY", &cfg.MCP.APIKey},
		{"FLOURISHA_MCP_TENANT_ID", &cfg.MCP.TenantID},
		{"FLOURISHA_MCP_SUBJECT", &cfg.MCP.Subject},

		{"FLOURISHA_OKR_AT_RISK_DAYS", &cfg.OKR.AtRiskDays},
	}
}

// loadEnv overlays non-empty environment variables onto cfg. Every malformed
// value is reported; fields with malformed values keep their previous setting.
func loadEnv(cfg *Config) error {
	var errs []error
	for _, b := range envBindings(cfg) {
		v := os.Getenv(b.key)
		if v == "" {
			continue
		}
		if err := assign(b.dst, v); err != nil {
			errs = append(errs, fmt.Errorf("%s=%q: %w", b.key, v, err))
		}
	}
	return errors.Join(errs...)
}

func assign(dst any, v string) error {
	switch p := dst.(type) {
	case *string:
		*p = v
	case *bool:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*p = b
	case *int:
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*p = n
	case *int32:
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			return err
		}
		*p = int32(n)
	case *int64:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return err
		}
		*p = n
	case *float64:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		*p = f
	case *time.Duration:
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*p = d
	default:
		return fmt.Errorf("unsupported field type %T", dst)
	}
	return nil
}

// validate reports every violated constraint at once.
func validate(cfg *Config) error {
	var errs []error
	check := func(ok bool, msg string) {
		if !ok {
			errs = append(errs, errors.New(msg))
		}
	}

	check(cfg.Server.Port != "", "server.port is required")
	check(cfg.Postgres.DSN != "", "postgres.dsn is required")
	check(cfg.Postgres.MaxConns >= 1, "postgres.max_conns must be >= 1")
	check(cfg.Postgres.MinConns <= cfg.Postgres.MaxConns, "postgres.min_conns must not exceed max_conns")
	check(!cfg.NATS.Enabled || cfg.NATS.URL != "", "nats.url is required when nats is enabled")
	check(!cfg.Auth.Enabled || cfg.Auth.JWTSecret != "", "auth.jwt_secret is required when auth is enabled")
	check(cfg.Auth.Enabled || (cfg.Auth.DevTenantID != "" && cfg.Auth.DevSubject != ""),
		"auth.dev_tenant_id and auth.dev_subject are required when auth is disabled")
	check(cfg.Breaker.MaxFailures >= 1, "breaker.max_failures must be >= 1")
	check(cfg.Rate.Burst >= 1, "rate.burst must be >= 1")
	check(cfg.OTel.SampleRatio >= 0 && cfg.OTel.SampleRatio <= 1, "otel.sample_ratio must be within [0,1]")
	check(!cfg.MCP.Enabled || (cfg.MCP.TenantID != "" && cfg.MCP.Subject != ""),
		"mcp.tenant_id and mcp.subject are required when mcp is enabled")
	check(cfg.OKR.AtRiskDays >= 0, "okr.at_risk_days must be >= 0")
	return errors.Join(errs...)
}
