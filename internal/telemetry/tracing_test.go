package telemetry

import (
	"bytes"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestLogRangeScanBatchLimitsHumanizesByteCount(t *testing.T) {
	r := &Recorder{Logger: logrus.New(), Metrics: newTestMetrics(t)}
	var buf bytes.Buffer
	r.Logger.SetOutput(&buf)
	r.Logger.SetFormatter(&logrus.JSONFormatter{})

	r.LogRangeScanBatchLimits("scope", "coll", 1000, 2*1000*1000, 5*time.Second)

	out := buf.String()
	assert.Contains(t, out, `"batch_item_limit":1000`)
	assert.Contains(t, out, "2.0 MB")
	assert.Contains(t, out, `"scope":"scope"`)
}
