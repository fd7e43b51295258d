package signalbridge

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/evalgo-org/couchkit/internal/chronoutil"
)

// fileSinkRecord is the exact JSON-lines shape written for each drained
// Signal: flat, so downstream log shippers don't need to unnest errctx.
type fileSinkRecord struct {
	Timestamp   string  `json:"timestamp"`
	OperationID string  `json:"operation_id"`
	Operation   string  `json:"operation"`
	Outcome     string  `json:"outcome"`
	DurationMS  float64 `json:"duration_ms"`
	Category    string  `json:"category,omitempty"`
	Code        string  `json:"code,omitempty"`
	RetryCount  int     `json:"retry_attempts,omitempty"`
}

// FileSink drains a Bridge and appends one JSON object per line to w.
type FileSink struct {
	w      io.Writer
	mu     sync.Mutex
	bridge *Bridge
}

// NewFileSink wraps w (typically an os.File opened for append) as the
// destination for signals drained from bridge.
func NewFileSink(w io.Writer, bridge *Bridge) *FileSink {
	return &FileSink{w: w, bridge: bridge}
}

// WriteSignal appends one signal immediately, independent of draining.
func (s *FileSink) WriteSignal(sig Signal, at time.Time) error {
	rec := fileSinkRecord{
		Timestamp:   chronoutil.Format(at),
		OperationID: sig.OperationID,
		Operation:   sig.Operation,
		Outcome:     sig.Outcome,
		DurationMS:  sig.DurationMS,
	}
	if sig.Ctx != nil {
		rec.Category = string(sig.Ctx.Category)
		rec.Code = string(sig.Ctx.Code)
		rec.RetryCount = sig.Ctx.RetryAttempts
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling signal record: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.w.Write(line)
	return err
}

// DrainOnce takes everything currently buffered and writes it, in order,
// as one JSON-lines batch. It returns the number of signals written.
func (s *FileSink) DrainOnce(at time.Time) (int, error) {
	signals := s.bridge.TakeBuffer()
	for _, sig := range signals {
		if err := s.WriteSignal(sig, at); err != nil {
			return 0, err
		}
	}
	return len(signals), nil
}
