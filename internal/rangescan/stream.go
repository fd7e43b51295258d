package rangescan

import (
	"context"

	"github.com/evalgo-org/couchkit/internal/errctx"
)

// ContinueStatus is the terminal status a ContinueScan call reports for
// one batch.
type ContinueStatus string

const (
	// ContinueMore means the partition has more items; call
	// ContinueScan again.
	ContinueMore ContinueStatus = "more"
	// ContinueComplete means the partition has drained.
	ContinueComplete ContinueStatus = "complete"
)

// ScanSession is the narrow per-node protocol surface a Scanner drives:
// create a scan on a partition, pull batches from it until it
// completes, and cancel it early. It is deliberately separate from
// wire.Session — range scanning has no document-store analogue, so
// nothing in internal/wire implements it.
type ScanSession interface {
	CreateScan(ctx context.Context, nodeIndex, partition int, scope, collection string, scanType ScanType, idsOnly bool, snapshot *SnapshotRequirement) (scanUUID string, err *errctx.Error)
	ContinueScan(ctx context.Context, nodeIndex, partition int, scanUUID string, opts Options, onItem func(Item)) (ContinueStatus, *errctx.Error)
	CancelScan(ctx context.Context, nodeIndex, partition int, scanUUID string)
}
