// Package wire is the transport abstraction the dispatcher sends requests
// through. Session hides the concrete protocol (a document-store driver
// connection, in this module's case) behind the narrow surface dispatch
// needs: send one request, get one response or a structured error back.
package wire

import (
	"context"

	"github.com/evalgo-org/couchkit/pkg/docid"
)

// OpKind names the wire-level operation Send performs.
type OpKind string

const (
	OpGet         OpKind = "get"
	OpUpsert      OpKind = "upsert"
	OpInsert      OpKind = "insert"
	OpRemove      OpKind = "remove"
	OpSubdocGet   OpKind = "subdoc_get"
	OpSubdocMutate OpKind = "subdoc_mutate"
)

// Request is one unit of work sent to a node. Path is set only for the
// Subdoc* kinds and names the sub-document path the operation targets.
type Request struct {
	ID     docid.ID
	Kind   OpKind
	Value  []byte
	CAS    uint64
	Opaque uint32
	Path   string
}

// Response is what a node returned for a Request.
type Response struct {
	CAS     uint64
	Value   []byte
	Deleted bool
}

// Session sends requests to one node and reports which endpoints it is
// currently connected through, for error-context population.
type Session interface {
	Send(ctx context.Context, req Request) (Response, error)
	LastEndpoints() []string
}
