// Package docid defines the document identifier shared across the dispatch
// and replica-coordination engine.
package docid

// ID names a document within a bucket/scope/collection tuple.
//
// NodeIndex is non-zero when the id has been re-targeted to a specific
// replica rank by the replica fan-out machinery; zero means the active
// copy. Everything else is immutable for the lifetime of a request.
type ID struct {
	Bucket     string
	Scope      string
	Collection string
	Key        string

	// NodeIndex, when non-zero, pins this id to a specific replica rank
	// (1-based: rank 0 is the active copy and is never encoded here).
	NodeIndex uint32
}

// WithNodeIndex returns a copy of id re-targeted to the given replica rank.
func (id ID) WithNodeIndex(index uint32) ID {
	id.NodeIndex = index
	return id
}

// IsReplicaTarget reports whether this id has been pinned to a replica.
func (id ID) IsReplicaTarget() bool {
	return id.NodeIndex != 0
}

func (id ID) String() string {
	return id.Bucket + "." + id.Scope + "." + id.Collection + "." + id.Key
}
