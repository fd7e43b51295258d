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

// GetAllReplicas fans out the same way GetAnyReplica does but waits for
// every branch, accumulating successes into a list. It completes with
// that list once non-empty, or with the last branch's error rewritten
// to CodeDocumentIrretrievable if every branch failed.
func GetAllReplicas(ctx context.Context, cfg *topology.Configuration, id docid.ID, pref replicaset.ReadPreference, serverGroup string, resolve dispatcher.NodeResolver) ([]Result, *errctx.Error) {
	copies, out := branches(ctx, cfg, id, pref, serverGroup, resolve, func(c replicaset.Copy) wire.Request {
		return wire.Request{ID: id.WithNodeIndex(uint32(c.Rank)), Kind: wire.OpGet}
	})
	if len(copies) == 0 {
		return nil, errctx.New(errctx.CodeDocumentIrretrievable, id, "")
	}

	var successes []Result
	var lastErr *errctx.Error
	for o := range out {
		if o.err != nil {
			lastErr = o.err
			continue
		}
		successes = append(successes, o.res)
	}
	if len(successes) > 0 {
		return successes, nil
	}
	return nil, irretrievable(id, lastErr)
}
