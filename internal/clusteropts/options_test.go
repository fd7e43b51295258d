package clusteropts

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadUsesDefaultsWhenUnset(t *testing.T) {
	opts := Load("COUCHKIT_TEST_UNSET")

	assert.Equal(t, defaultBootstrapTimeout, opts.Timeouts.Bootstrap)
	assert.Equal(t, defaultKVTimeout, opts.Timeouts.KV)
	assert.Equal(t, defaultManagementTimeout, opts.Timeouts.Management)
	assert.Equal(t, defaultSignalBridgeBufferLimit, opts.SignalBridgeBufferLimit)
	assert.Equal(t, int(defaultSignalBridgeNotificationThreshold*float64(defaultSignalBridgeBufferLimit)), opts.SignalBridgeNotificationThreshold)
	assert.Equal(t, int64(0), opts.RangeScanLoadBalancerSeed)
	assert.True(t, opts.Tracing.Enabled)
	assert.Equal(t, defaultOTLPEndpoint, opts.Tracing.OTLPEndpoint)
	assert.Equal(t, defaultSamplingRatio, opts.Tracing.SamplingRatio)
	assert.Equal(t, defaultEnvironment, opts.Tracing.Environment)
}

func TestLoadReadsOverridesWithPrefix(t *testing.T) {
	const prefix = "COUCHKIT_TEST_OVERRIDE"
	t.Setenv(prefix+"_KV_TIMEOUT", "4s2ms")
	t.Setenv(prefix+"_BOOTSTRAP_TIMEOUT", "30s")
	t.Setenv(prefix+"_SIGNAL_BRIDGE_BUFFER_LIMIT", "500")
	t.Setenv(prefix+"_SIGNAL_BRIDGE_NOTIFICATION_THRESHOLD", "0.5")
	t.Setenv(prefix+"_RANGE_SCAN_LOAD_BALANCER_SEED", "42")
	t.Setenv(prefix+"_OTEL_ENABLED", "false")
	t.Setenv(prefix+"_OTEL_EXPORTER_OTLP_ENDPOINT", "otel-collector:4318")
	t.Setenv(prefix+"_OTEL_SAMPLING_RATIO", "0.25")
	t.Setenv(prefix+"_OTEL_ENVIRONMENT", "production")

	opts := Load(prefix)

	assert.Equal(t, 4*time.Second+2*time.Millisecond, opts.Timeouts.KV)
	assert.Equal(t, 30*time.Second, opts.Timeouts.Bootstrap)
	assert.Equal(t, 500, opts.SignalBridgeBufferLimit)
	assert.Equal(t, 250, opts.SignalBridgeNotificationThreshold)
	assert.Equal(t, int64(42), opts.RangeScanLoadBalancerSeed)
	assert.False(t, opts.Tracing.Enabled)
	assert.Equal(t, "otel-collector:4318", opts.Tracing.OTLPEndpoint)
	assert.Equal(t, 0.25, opts.Tracing.SamplingRatio)
	assert.Equal(t, "production", opts.Tracing.Environment)
}

func TestLoadFallsBackOnUnparsableValues(t *testing.T) {
	const prefix = "COUCHKIT_TEST_BADVALUES"
	t.Setenv(prefix+"_KV_TIMEOUT", "not-a-duration")
	t.Setenv(prefix+"_SIGNAL_BRIDGE_BUFFER_LIMIT", "not-a-number")

	opts := Load(prefix)

	assert.Equal(t, defaultKVTimeout, opts.Timeouts.KV)
	assert.Equal(t, defaultSignalBridgeBufferLimit, opts.SignalBridgeBufferLimit)
}

func TestEnvConfigBuildsPrefixedKeys(t *testing.T) {
	ec := NewEnvConfig("MYAPP")
	t.Setenv("MYAPP_FOO", "bar")
	assert.Equal(t, "bar", ec.GetString("FOO", "default"))
	assert.Equal(t, "default", ec.GetString("MISSING", "default"))
}

func TestEnvConfigNoPrefixUsesBareKey(t *testing.T) {
	ec := NewEnvConfig("")
	os.Unsetenv("BARE_KEY")
	assert.Equal(t, "fallback", ec.GetString("BARE_KEY", "fallback"))
}

func TestMustGetStringPanicsWhenUnset(t *testing.T) {
	ec := NewEnvConfig("COUCHKIT_TEST_MUSTGET")
	assert.Panics(t, func() {
		ec.MustGetString("MISSING_REQUIRED")
	})
}
