// Package router resolves a document id to a vbucket and, from there, to
// the node that should receive a request for a given replica rank. It is
// a thin layer over topology.Configuration — the routing decision itself
// is just topology.MapKey plus a vbucket-map lookup.
package router

import (
	"github.com/evalgo-org/couchkit/internal/topology"
	"github.com/evalgo-org/couchkit/pkg/docid"
)

// Target is the outcome of routing one id: which vbucket it falls in and
// which node index currently owns the requested replica rank.
type Target struct {
	VBucket   int
	Rank      int
	NodeIndex int
}

// Route resolves id against cfg. If id is pinned to a replica
// (id.IsReplicaTarget), that rank is used; otherwise rank 0 (active) is
// used. ok is false when the owning rank currently has no node assigned.
func Route(cfg *topology.Configuration, id docid.ID) (Target, bool) {
	vb := topology.MapKey(id.Key, cfg.PartitionCount())
	rank := 0
	if id.IsReplicaTarget() {
		rank = int(id.NodeIndex)
	}
	nodeIndex, ok := cfg.ServerByVBucket(vb, rank)
	return Target{VBucket: vb, Rank: rank, NodeIndex: nodeIndex}, ok
}

// VBucketFor is the pure key->partition mapping, exposed separately from
// Route for callers (compound-operation replica fan-out) that need the
// partition without resolving a node.
func VBucketFor(cfg *topology.Configuration, key string) int {
	return topology.MapKey(key, cfg.PartitionCount())
}
