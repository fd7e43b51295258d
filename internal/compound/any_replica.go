package compound

import (
	"context"

	"github.com/evalgo-org/couchkit/internal/dispatcher"
	"github.com/evalgo-org/couchkit/internal/errctx"
	"github.com/evalgo-org/couchkit/internal/replicaset"
	"github.com/evalgo-org/couchkit/internal/topology"
	"github.com/evalgo-org/couchkit/internal/wire"
	"github.com/evalgo-org/couchkit/pkg/docid"
)

// GetAnyReplica fans out one active read plus one read per replica rank
// and completes with the first successful response; the remaining
// branches keep running to completion but their results are dropped.
// If every branch fails, the last branch's error is surfaced rewritten
// to CodeDocumentIrretrievable.
func GetAnyReplica(ctx context.Context, cfg *topology.Configuration, id docid.ID, pref replicaset.ReadPreference, serverGroup string, resolve dispatcher.NodeResolver) (Result, *errctx.Error) {
	copies, out := branches(ctx, cfg, id, pref, serverGroup, resolve, func(c replicaset.Copy) wire.Request {
		return wire.Request{ID: id.WithNodeIndex(uint32(c.Rank)), Kind: wire.OpGet}
	})
	if len(copies) == 0 {
		return Result{}, errctx.New(errctx.CodeDocumentIrretrievable, id, "")
	}

	var lastErr *errctx.Error
	received := 0
	for o := range out {
		received++
		if o.err == nil {
			return o.res, nil
		}
		lastErr = o.err
		if received == len(copies) {
			break
		}
	}
	return Result{}, irretrievable(id, lastErr)
}
