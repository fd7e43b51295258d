// Package compound implements the multi-source read operations that fan
// a single logical request out to the active copy plus its replicas:
// read-from-any-replica (first success wins), read-from-all-replicas
// (wait for every branch), and their sub-document equivalents.
package compound

import (
	"context"
	"sync"

	"github.com/evalgo-org/couchkit/internal/dispatcher"
	"github.com/evalgo-org/couchkit/internal/errctx"
	"github.com/evalgo-org/couchkit/internal/replicaset"
	"github.com/evalgo-org/couchkit/internal/router"
	"github.com/evalgo-org/couchkit/internal/topology"
	"github.com/evalgo-org/couchkit/internal/wire"
	"github.com/evalgo-org/couchkit/pkg/docid"
)

// Result is the outcome of one successful branch of a compound read.
type Result struct {
	Value     []byte
	CAS       uint64
	IsReplica bool
	NodeIndex int
	Deleted   bool
}

type branchOutcome struct {
	res Result
	err *errctx.Error
}

// branches resolves the candidate copies for id's vbucket under pref and
// serverGroup, returning a channel that receives exactly one
// branchOutcome per dispatched fan-out goroutine before closing.
func branches(ctx context.Context, cfg *topology.Configuration, id docid.ID, pref replicaset.ReadPreference, serverGroup string, resolve dispatcher.NodeResolver, build func(c replicaset.Copy) wire.Request) ([]replicaset.Copy, <-chan branchOutcome) {
	vb := router.VBucketFor(cfg, id.Key)
	copies := replicaset.Select(cfg, vb, pref, serverGroup)
	if len(copies) == 0 {
		return copies, nil
	}

	out := make(chan branchOutcome, len(copies))
	var wg sync.WaitGroup
	for _, c := range copies {
		c := c
		wg.Add(1)
		go func() {
			defer wg.Done()
			session, sessErr := resolve(c.NodeIndex)
			if sessErr != nil {
				out <- branchOutcome{err: errctx.New(errctx.CodeResolveFailure, id, "")}
				return
			}

			resp, err := session.Send(ctx, build(c))
			if err != nil {
				ce, ok := err.(*errctx.Error)
				if !ok {
					ce = errctx.New(errctx.CodeInternalServerFail, id, "")
				}
				out <- branchOutcome{err: ce}
				return
			}
			out <- branchOutcome{res: Result{
				Value:     resp.Value,
				CAS:       resp.CAS,
				IsReplica: c.Rank != 0,
				NodeIndex: c.NodeIndex,
				Deleted:   resp.Deleted,
			}}
		}()
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return copies, out
}

// hasBucketCapability reports whether cfg advertises name among its
// bucket-level capabilities.
func hasBucketCapability(cfg *topology.Configuration, name string) bool {
	for _, c := range cfg.BucketCapabilities {
		if c == name {
			return true
		}
	}
	return false
}

func irretrievable(id docid.ID, lastErr *errctx.Error) *errctx.Error {
	if lastErr == nil {
		lastErr = errctx.New(errctx.CodeDocumentIrretrievable, id, "")
		return lastErr
	}
	lastErr.Ctx.Code = errctx.CodeDocumentIrretrievable
	return lastErr
}
