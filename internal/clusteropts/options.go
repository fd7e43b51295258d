// Package clusteropts loads cluster-level defaults from environment
// variables, generalizing config.EnvConfig's GetString/GetInt/GetBool/
// GetDuration/buildKey shape into the per-service timeout table, the
// signal bridge buffer limits, and the range-scan load balancer seed
// that every other core package is constructed with.
package clusteropts

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvConfig loads environment variables under an optional prefix,
// mirroring config.EnvConfig's MustGet*/Get* ergonomics.
type EnvConfig struct {
	prefix string
}

// NewEnvConfig builds an EnvConfig that reads PREFIX_KEY when prefix is
// non-empty, or KEY otherwise.
func NewEnvConfig(prefix string) *EnvConfig {
	return &EnvConfig{prefix: prefix}
}

func (ec *EnvConfig) buildKey(key string) string {
	if ec.prefix != "" {
		return ec.prefix + "_" + key
	}
	return key
}

// GetString retrieves a string value from environment with optional default.
func (ec *EnvConfig) GetString(key, defaultValue string) string {
	if value := os.Getenv(ec.buildKey(key)); value != "" {
		return value
	}
	return defaultValue
}

// GetInt retrieves an integer value from environment with optional default.
func (ec *EnvConfig) GetInt(key string, defaultValue int) int {
	if value := os.Getenv(ec.buildKey(key)); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

// GetBool retrieves a boolean value from environment with optional default.
func (ec *EnvConfig) GetBool(key string, defaultValue bool) bool {
	if value := os.Getenv(ec.buildKey(key)); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// GetDuration retrieves a duration value from environment with optional default.
func (ec *EnvConfig) GetDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(ec.buildKey(key)); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// GetInt64 retrieves an int64 value from environment with optional default.
func (ec *EnvConfig) GetInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(ec.buildKey(key)); value != "" {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return n
		}
	}
	return defaultValue
}

// MustGetString retrieves a required string value from environment or panics.
func (ec *EnvConfig) MustGetString(key string) string {
	fullKey := ec.buildKey(key)
	value := os.Getenv(fullKey)
	if value == "" {
		panic("required environment variable " + fullKey + " not set")
	}
	return value
}

// ServiceTimeouts holds the default per-service timeout used when a
// call site does not override it explicitly.
type ServiceTimeouts struct {
	Bootstrap  time.Duration
	Connect    time.Duration
	KV         time.Duration
	KVDurable  time.Duration
	Query      time.Duration
	Analytics  time.Duration
	Search     time.Duration
	View       time.Duration
	Management time.Duration
}

// TracingOptions are the environment-sourced settings NewTracerProvider
// is built from: whether tracing is enabled at all, where spans are
// exported, and at what ratio they are sampled.
type TracingOptions struct {
	Enabled       bool
	OTLPEndpoint  string
	SamplingRatio float64
	Environment   string
}

// ClusterOptions is the set of cluster-level defaults every core
// package (dispatcher, signalbridge, rangescan) is constructed with.
// It is the Go-native analogue of the options a cluster connection is
// opened with, minus the connection-string parsing itself, which lives
// with the entry point that owns the connection string.
type ClusterOptions struct {
	Timeouts ServiceTimeouts

	// SignalBridgeBufferLimit and SignalBridgeNotificationThreshold size
	// the in-process signal bridge (signalbridge.New's bufferLimit and
	// notificationThreshold).
	SignalBridgeBufferLimit          int
	SignalBridgeNotificationThreshold int

	// RangeScanLoadBalancerSeed seeds the range-scan load balancer's
	// shuffle for deterministic node-selection ordering in tests and
	// reproducible debugging; zero means "let the balancer seed itself
	// from the clock on first use."
	RangeScanLoadBalancerSeed int64

	Tracing TracingOptions
}

const (
	defaultBootstrapTimeout  = 10 * time.Second
	defaultConnectTimeout    = 10 * time.Second
	defaultKVTimeout         = 2500 * time.Millisecond
	defaultKVDurableTimeout  = 10 * time.Second
	defaultQueryTimeout      = 75 * time.Second
	defaultAnalyticsTimeout  = 75 * time.Second
	defaultSearchTimeout     = 75 * time.Second
	defaultViewTimeout       = 75 * time.Second
	defaultManagementTimeout = 75 * time.Second

	defaultSignalBridgeBufferLimit          = 10000
	defaultSignalBridgeNotificationThreshold = 0.7

	defaultOTLPEndpoint  = "http://localhost:4318"
	defaultSamplingRatio = 1.0
	defaultEnvironment   = "development"
)

// Load reads ClusterOptions from the environment under prefix, falling
// back to the documented per-service defaults and buffer sizes for any
// key that is unset or fails to parse.
func Load(prefix string) ClusterOptions {
	env := NewEnvConfig(prefix)

	bufferLimit := env.GetInt("SIGNAL_BRIDGE_BUFFER_LIMIT", defaultSignalBridgeBufferLimit)
	threshold := thresholdToCount(env.GetString("SIGNAL_BRIDGE_NOTIFICATION_THRESHOLD", ""), bufferLimit)

	return ClusterOptions{
		Timeouts: ServiceTimeouts{
			Bootstrap:  env.GetDuration("BOOTSTRAP_TIMEOUT", defaultBootstrapTimeout),
			Connect:    env.GetDuration("CONNECT_TIMEOUT", defaultConnectTimeout),
			KV:         env.GetDuration("KV_TIMEOUT", defaultKVTimeout),
			KVDurable:  env.GetDuration("KV_DURABLE_TIMEOUT", defaultKVDurableTimeout),
			Query:      env.GetDuration("QUERY_TIMEOUT", defaultQueryTimeout),
			Analytics:  env.GetDuration("ANALYTICS_TIMEOUT", defaultAnalyticsTimeout),
			Search:     env.GetDuration("SEARCH_TIMEOUT", defaultSearchTimeout),
			View:       env.GetDuration("VIEW_TIMEOUT", defaultViewTimeout),
			Management: env.GetDuration("MANAGEMENT_TIMEOUT", defaultManagementTimeout),
		},
		SignalBridgeBufferLimit:           bufferLimit,
		SignalBridgeNotificationThreshold: threshold,
		RangeScanLoadBalancerSeed:         env.GetInt64("RANGE_SCAN_LOAD_BALANCER_SEED", 0),

		Tracing: ClusterTracingOptions(env),
	}
}

// ClusterTracingOptions reads the OTEL_*-named keys under env's own prefix
// (for example PREFIX_OTEL_ENABLED), the same four settings
// otel/init.go's Init used to parse inline before tracer construction
// moved to internal/telemetry.NewTracerProvider.
func ClusterTracingOptions(env *EnvConfig) TracingOptions {
	return TracingOptions{
		Enabled:       env.GetBool("OTEL_ENABLED", true),
		OTLPEndpoint:  env.GetString("OTEL_EXPORTER_OTLP_ENDPOINT", defaultOTLPEndpoint),
		SamplingRatio: parseRatio(env.GetString("OTEL_SAMPLING_RATIO", ""), defaultSamplingRatio),
		Environment:   env.GetString("OTEL_ENVIRONMENT", defaultEnvironment),
	}
}

func parseRatio(raw string, fallback float64) float64 {
	if raw == "" {
		return fallback
	}
	if f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
		return f
	}
	return fallback
}

// thresholdToCount turns a fractional threshold like "0.7" into an
// absolute signal count against bufferLimit, the same ratio
// signalbridge.New's notificationThreshold argument expects as a count.
// An empty or unparsable raw value falls back to the documented 0.7
// ratio of bufferLimit.
func thresholdToCount(raw string, bufferLimit int) int {
	ratio := defaultSignalBridgeNotificationThreshold
	if raw != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil && f > 0 {
			ratio = f
		}
	}
	count := int(ratio * float64(bufferLimit))
	if count <= 0 {
		count = 1
	}
	return count
}
