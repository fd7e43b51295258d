// Package replicaset selects which copies of a document (the active node
// plus its replicas) a compound read should fan out to, honoring a
// caller's server-group read preference.
package replicaset

import (
	"github.com/sirupsen/logrus"

	"github.com/evalgo-org/couchkit/internal/topology"
)

// ReadPreference controls how Select filters candidate nodes by server
// group before returning them.
type ReadPreference int

const (
	// NoPreference returns every node holding a copy, regardless of
	// server group.
	NoPreference ReadPreference = iota
	// SelectedServerGroup restricts the result to nodes in ServerGroup;
	// Select returns an empty, non-nil slice if none match.
	SelectedServerGroup
	// PreferredServerGroup returns only nodes in ServerGroup when at
	// least one exists there, otherwise falls back to every node.
	PreferredServerGroup
)

// Copy names one replica-set member: its rank (0 = active) and node
// index into the configuration's node list.
type Copy struct {
	Rank      int
	NodeIndex int
}

// Select returns the copies of the vbucket vb that satisfy pref, in rank
// order. A rank with no current owner (-1 in the vbucket map) is skipped.
func Select(cfg *topology.Configuration, vb int, pref ReadPreference, serverGroup string) []Copy {
	if vb < 0 || vb >= len(cfg.VBucketMap) {
		return []Copy{}
	}
	row := cfg.VBucketMap[vb]

	all := make([]Copy, 0, len(row))
	for rank, nodeIndex := range row {
		if nodeIndex < 0 || !cfg.NodeIndexInRange(nodeIndex) {
			continue
		}
		all = append(all, Copy{Rank: rank, NodeIndex: nodeIndex})
	}

	if pref == NoPreference {
		return all
	}
	if serverGroup == "" {
		logrus.WithField("preference", pref).Warn("replica read preference set without a server group, returning no copies")
		return []Copy{}
	}

	local := make([]Copy, 0, len(all))
	for _, c := range all {
		if cfg.Nodes[c.NodeIndex].ServerGroup == serverGroup {
			local = append(local, c)
		}
	}

	switch pref {
	case SelectedServerGroup:
		return local
	case PreferredServerGroup:
		if len(local) > 0 {
			return local
		}
		return all
	default:
		return all
	}
}

// ActiveOnly is the degenerate single-copy selection used by plain
// (non-compound) operations: rank 0 if it has an owner.
func ActiveOnly(cfg *topology.Configuration, vb int) (Copy, bool) {
	idx, ok := cfg.ServerByVBucket(vb, 0)
	if !ok {
		return Copy{}, false
	}
	return Copy{Rank: 0, NodeIndex: idx}, true
}
