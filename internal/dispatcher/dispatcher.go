// Package dispatcher resolves one document operation to a node, sends it
// over a wire.Session, and retries it against the configuration's current
// topology when the response calls for that — the single chokepoint every
// key-value operation in this module passes through.
package dispatcher

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/evalgo-org/couchkit/internal/configcache"
	"github.com/evalgo-org/couchkit/internal/errctx"
	"github.com/evalgo-org/couchkit/internal/router"
	"github.com/evalgo-org/couchkit/internal/telemetry"
	"github.com/evalgo-org/couchkit/internal/wire"
	"github.com/evalgo-org/couchkit/pkg/docid"
)

// RetryDecision is what a RetryStrategy returns after inspecting a
// failed attempt.
type RetryDecision struct {
	Retry  bool
	After  time.Duration
	Reason string
}

// RetryStrategy decides whether to retry attempt N (0-based) of an
// operation that failed with err.
type RetryStrategy interface {
	ShouldRetry(attempt int, err *errctx.Error) RetryDecision
}

// DefaultRetryStrategy retries temporary and ambiguous-timeout failures
// with a fixed backoff, for at most MaxAttempts attempts in total
// (the first attempt included), and never retries
// anything else (CAS mismatches, not-found, permission errors).
type DefaultRetryStrategy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// NewDefaultRetryStrategy returns a strategy with sane defaults (3
// attempts, 50ms backoff) when either argument is non-positive.
func NewDefaultRetryStrategy(maxAttempts int, backoff time.Duration) DefaultRetryStrategy {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if backoff <= 0 {
		backoff = 50 * time.Millisecond
	}
	return DefaultRetryStrategy{MaxAttempts: maxAttempts, Backoff: backoff}
}

func (s DefaultRetryStrategy) ShouldRetry(attempt int, err *errctx.Error) RetryDecision {
	if attempt >= s.MaxAttempts-1 {
		return RetryDecision{Retry: false}
	}
	if err.IsTemporary() {
		return RetryDecision{Retry: true, After: s.Backoff, Reason: string(err.Ctx.Code)}
	}
	if err.Ctx.Code == errctx.CodeAmbiguousTimeout {
		return RetryDecision{Retry: true, After: s.Backoff, Reason: string(err.Ctx.Code)}
	}
	return RetryDecision{Retry: false}
}

// NodeResolver returns a Session bound to nodeIndex. A typical
// implementation holds one Session per node and looks it up by index.
type NodeResolver func(nodeIndex int) (wire.Session, error)

// Dispatcher wires together configuration lookup, key routing, replica
// selection (for the active copy — compound.GetAnyReplica and
// compound.GetAllReplicas drive fan-out themselves), transport, and retry policy for single-target operations.
type Dispatcher struct {
	Cache     *configcache.Cache
	Resolve   NodeResolver
	Retry     RetryStrategy
	Recorder  *telemetry.Recorder
	Operation string // used as the metric/span name, e.g. "get", "upsert"
}

// Execute routes req against bucket's current configuration, sends it,
// and retries per Retry until the strategy gives up or the request
// succeeds. The returned *errctx.Error is nil on success.
func (d *Dispatcher) Execute(ctx context.Context, bucket string, req wire.Request) (wire.Response, *errctx.Error) {
	operationID := generateOperationID(req.ID)
	start := time.Now()

	var lastErr *errctx.Error
	for attempt := 0; ; attempt++ {
		cfg, ok := d.Cache.WithBucketConfiguration(bucket)
		if !ok {
			lastErr = errctx.New(errctx.CodeConfigUnavailable, req.ID, operationID)
			break
		}

		target, ok := router.Route(cfg, req.ID)
		if !ok {
			lastErr = errctx.New(errctx.CodeRequestCanceled, req.ID, operationID)
			break
		}

		session, sessErr := d.Resolve(target.NodeIndex)
		if sessErr != nil {
			ce := errctx.New(errctx.CodeResolveFailure, req.ID, operationID)
			if lastErr != nil {
				ce.Ctx.RetryAttempts, ce.Ctx.RetryReasons = lastErr.Ctx.RetryAttempts, lastErr.Ctx.RetryReasons
			}

			retry, canceled := d.retryOrCancel(ctx, attempt, ce, req.ID, operationID, start)
			if canceled != nil {
				return wire.Response{}, canceled
			}
			lastErr = ce
			if retry {
				ce.WithRetry("", string(ce.Ctx.Code))
				continue
			}
			break
		}

		resp, err := session.Send(ctx, req)
		if err == nil {
			d.finish(start, "Success")
			return resp, nil
		}

		ce, ok := err.(*errctx.Error)
		if !ok {
			ce = errctx.New(errctx.CodeInternalServerFail, req.ID, operationID)
		}
		ce.Ctx.OperationID = operationID
		ce.Ctx.LastDispatchedTo = firstEndpoint(session)
		if lastErr != nil {
			ce.Ctx.RetryAttempts, ce.Ctx.RetryReasons = lastErr.Ctx.RetryAttempts, lastErr.Ctx.RetryReasons
		}

		retry, canceled := d.retryOrCancel(ctx, attempt, ce, req.ID, operationID, start)
		if canceled != nil {
			return wire.Response{}, canceled
		}
		lastErr = ce
		if retry {
			ce.WithRetry(ce.Ctx.LastDispatchedTo, string(ce.Ctx.Code))
			continue
		}
		break
	}

	d.finish(start, errctx.Outcome(lastErr.Ctx.Code))
	return wire.Response{}, lastErr
}

// retryOrCancel asks Retry whether attempt should be retried given ce,
// and if so waits out the backoff (or reports a context cancellation in
// its place). The bool return is only meaningful when canceled is nil.
func (d *Dispatcher) retryOrCancel(ctx context.Context, attempt int, ce *errctx.Error, id docid.ID, operationID string, start time.Time) (bool, *errctx.Error) {
	decision := d.Retry.ShouldRetry(attempt, ce)
	if !decision.Retry {
		return false, nil
	}
	if d.Recorder != nil {
		d.Recorder.Metrics.RecordRetry(d.Operation, decision.Reason)
	}
	select {
	case <-ctx.Done():
		canceled := errctx.New(errctx.CodeRequestCanceled, id, operationID)
		d.finish(start, errctx.Outcome(canceled.Ctx.Code))
		return false, canceled
	case <-time.After(decision.After):
		return true, nil
	}
}

func (d *Dispatcher) finish(start time.Time, outcome string) {
	if d.Recorder == nil {
		return
	}
	d.Recorder.Metrics.RecordOperation(d.Operation, outcome, time.Since(start))
}

func firstEndpoint(s wire.Session) string {
	eps := s.LastEndpoints()
	if len(eps) == 0 {
		return ""
	}
	return eps[0]
}

func generateOperationID(id docid.ID) string {
	return id.String() + "#" + uuid.NewString()
}
