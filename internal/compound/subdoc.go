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

// capabilitySubdocReadReplica is the bucket capability compound
// sub-document reads require before dispatching any branch.
const capabilitySubdocReadReplica = "supports_subdoc_read_replica"

// SubdocGetAnyReplica is the sub-document equivalent of GetAnyReplica:
// it pre-flights the bucket capability and, if absent, fails immediately
// with CodeFeatureNotAvailable without dispatching a single frame. A
// branch that resolves against a tombstone carrying only the looked-up
// path's extended attributes counts as a success, matching
// errctx.IsSubdocDeletedSuccess.
func SubdocGetAnyReplica(ctx context.Context, cfg *topology.Configuration, id docid.ID, path string, pref replicaset.ReadPreference, serverGroup string, resolve dispatcher.NodeResolver) (Result, *errctx.Error) {
	if !hasBucketCapability(cfg, capabilitySubdocReadReplica) {
		return Result{}, errctx.New(errctx.CodeFeatureNotAvailable, id, "")
	}

	copies, out := branches(ctx, cfg, id, pref, serverGroup, resolve, func(c replicaset.Copy) wire.Request {
		return wire.Request{ID: id.WithNodeIndex(uint32(c.Rank)), Kind: wire.OpSubdocGet, Path: path}
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

// SubdocGetAllReplicas is the sub-document equivalent of GetAllReplicas,
// with the same capability pre-flight as SubdocGetAnyReplica.
func SubdocGetAllReplicas(ctx context.Context, cfg *topology.Configuration, id docid.ID, path string, pref replicaset.ReadPreference, serverGroup string, resolve dispatcher.NodeResolver) ([]Result, *errctx.Error) {
	if !hasBucketCapability(cfg, capabilitySubdocReadReplica) {
		return nil, errctx.New(errctx.CodeFeatureNotAvailable, id, "")
	}

	copies, out := branches(ctx, cfg, id, pref, serverGroup, resolve, func(c replicaset.Copy) wire.Request {
		return wire.Request{ID: id.WithNodeIndex(uint32(c.Rank)), Kind: wire.OpSubdocGet, Path: path}
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
