// Package telemetry is the observability recorder for the dispatch and
// replica-coordination engine: span/child-span creation, a duration
// metric broken down by operation and outcome, and structured logging
// with the same stdout/stderr stream split the rest of this codebase
// uses.
package telemetry

import (
	"bytes"
	"os"

	"github.com/sirupsen/logrus"
)

// outputSplitter routes error-level log lines to stderr and everything
// else to stdout, so container log collectors can treat the two streams
// differently without parsing structured fields.
type outputSplitter struct{}

func (outputSplitter) Write(p []byte) (int, error) {
	if bytes.Contains(p, []byte("level=error")) || bytes.Contains(p, []byte(`"level":"error"`)) {
		return os.Stderr.Write(p)
	}
	return os.Stdout.Write(p)
}

// NewLogger returns a logrus.Logger preconfigured with the output
// splitter and JSON formatting, the shape every other component in this
// module logs through.
func NewLogger(level logrus.Level) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(outputSplitter{})
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(level)
	return logger
}
