// Package observeloop polls observe_seqno after a non-durable mutation
// that requested persist/replicate durability thresholds, backing off
// between polls until the requirement is met or the deadline passes.
package observeloop

import (
	"context"
	"time"

	"github.com/evalgo-org/couchkit/internal/errctx"
	"github.com/evalgo-org/couchkit/internal/replicaset"
	"github.com/evalgo-org/couchkit/internal/telemetry"
	"github.com/evalgo-org/couchkit/pkg/docid"
)

const (
	initialInterval = 10 * time.Millisecond
	maxInterval     = 100 * time.Millisecond
)

// ObserveResult is one node's answer to an observe_seqno poll for a
// partition.
type ObserveResult struct {
	PartitionUUID  uint64
	PersistedSeqno uint64
	CurrentSeqno   uint64
}

// ObserveSession polls a single node for a partition's observe_seqno
// state. It is a narrow, node-addressed interface the same way
// rangescan.ScanSession is — callers don't resolve a wire.Session
// themselves, the implementation owns that.
type ObserveSession interface {
	ObserveSeqno(ctx context.Context, nodeIndex, partition int) (ObserveResult, *errctx.Error)
}

// MutationToken identifies the write whose durability is being
// confirmed: the partition, the partition's UUID at mutation time, and
// the sequence number the mutation produced.
type MutationToken struct {
	Partition     int
	PartitionUUID uint64
	Seqno         uint64
}

// Requirement is the durability threshold a mutation requested.
type Requirement struct {
	PersistTo   int
	ReplicateTo int
}

// Wait polls every copy in copies until token's mutation is persisted
// on at least PersistTo nodes (the active copy counts toward this) and
// present on at least ReplicateTo replica nodes, or until ctx is done.
// A partition UUID change on any copy makes the durability outcome
// indeterminate and returns CodeDurabilityAmbiguous immediately, as
// does reaching the deadline before the requirement is met.
func Wait(ctx context.Context, token MutationToken, req Requirement, copies []replicaset.Copy, session ObserveSession, metrics *telemetry.Metrics) *errctx.Error {
	interval := initialInterval
	loopStart := time.Now()

	for {
		persisted, present, ambiguous := poll(ctx, token, copies, session)
		met := persisted >= req.PersistTo && present >= req.ReplicateTo
		done := met || ambiguous

		if metrics != nil {
			metrics.RecordObserveLoopPoll(pollOutcome(ambiguous, met), done, time.Since(loopStart))
		}

		if ambiguous {
			return errctx.New(errctx.CodeDurabilityAmbiguous, docid.ID{}, "")
		}
		if met {
			return nil
		}

		select {
		case <-ctx.Done():
			return errctx.New(errctx.CodeDurabilityAmbiguous, docid.ID{}, "")
		case <-time.After(interval):
		}

		interval *= 2
		if interval > maxInterval {
			interval = maxInterval
		}
	}
}

func poll(ctx context.Context, token MutationToken, copies []replicaset.Copy, session ObserveSession) (persisted, present int, ambiguous bool) {
	for _, c := range copies {
		res, err := session.ObserveSeqno(ctx, c.NodeIndex, token.Partition)
		if err != nil {
			continue
		}
		if res.PartitionUUID != token.PartitionUUID {
			return persisted, present, true
		}
		if res.PersistedSeqno >= token.Seqno {
			persisted++
		}
		if c.Rank != 0 && res.CurrentSeqno >= token.Seqno {
			present++
		}
	}
	return persisted, present, false
}

func pollOutcome(ambiguous, met bool) string {
	switch {
	case ambiguous:
		return "ambiguous"
	case met:
		return "met"
	default:
		return "pending"
	}
}
