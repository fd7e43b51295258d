package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/evalgo-org/couchkit/internal/errctx"
	"github.com/evalgo-org/couchkit/internal/observeloop"
	"github.com/evalgo-org/couchkit/internal/rangescan"
	"github.com/evalgo-org/couchkit/internal/topology"
	"github.com/evalgo-org/couchkit/internal/wire"
)

// inMemoryStore is the demo's stand-in for a live document-store
// connection: a mutex-guarded map playing the same role KivikSession
// plays against a real server, so the demo runs without one.
type inMemoryStore struct {
	mu   sync.Mutex
	docs map[string][]byte
	cas  map[string]uint64
	next uint64
}

func newInMemoryStore() *inMemoryStore {
	return &inMemoryStore{docs: make(map[string][]byte), cas: make(map[string]uint64)}
}

func (s *inMemoryStore) handle(req wire.Request) (wire.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch req.Kind {
	case wire.OpUpsert, wire.OpInsert:
		s.next++
		s.docs[req.ID.Key] = req.Value
		s.cas[req.ID.Key] = s.next
		return wire.Response{CAS: s.next}, nil
	case wire.OpGet:
		value, ok := s.docs[req.ID.Key]
		if !ok {
			return wire.Response{}, errctx.New(errctx.CodeDocumentNotFound, req.ID, "")
		}
		return wire.Response{Value: value, CAS: s.cas[req.ID.Key]}, nil
	case wire.OpRemove:
		if _, ok := s.docs[req.ID.Key]; !ok {
			return wire.Response{}, errctx.New(errctx.CodeDocumentNotFound, req.ID, "")
		}
		delete(s.docs, req.ID.Key)
		delete(s.cas, req.ID.Key)
		return wire.Response{Deleted: true}, nil
	default:
		return wire.Response{}, errctx.New(errctx.CodeUnsupportedOperation, req.ID, "")
	}
}

// demoConfiguration builds a small, fixed three-node topology with four
// vbuckets split across two server groups, enough to exercise replica
// selection and the range-scan load balancer without a live cluster.
func demoConfiguration() *topology.Configuration {
	return &topology.Configuration{
		Epoch:  1,
		Rev:    1,
		Bucket: bucketName,
		Nodes: []topology.Node{
			{Hostname: "node-a", ServerGroup: "group-1"},
			{Hostname: "node-b", ServerGroup: "group-2"},
			{Hostname: "node-c", ServerGroup: "group-1"},
		},
		VBucketMap: [][]int{
			{0, 1, 2},
			{1, 2, 0},
			{2, 0, 1},
			{0, 2, 1},
		},
		BucketCapabilities: []string{"couchapi"},
	}
}

// demoScanSession answers every range-scan partition with a handful of
// deterministic items instead of a live scan stream.
type demoScanSession struct{}

func (demoScanSession) CreateScan(_ context.Context, nodeIndex, partition int, scope, collection string, scanType rangescan.ScanType, idsOnly bool, snapshot *rangescan.SnapshotRequirement) (string, *errctx.Error) {
	return fmt.Sprintf("demo-scan-%d", partition), nil
}

func (demoScanSession) ContinueScan(_ context.Context, nodeIndex, partition int, scanUUID string, opts rangescan.Options, onItem func(rangescan.Item)) (rangescan.ContinueStatus, *errctx.Error) {
	for i := 0; i < 3; i++ {
		onItem(rangescan.Item{Key: []byte(fmt.Sprintf("demo-%d-%d", partition, i))})
	}
	return rangescan.ContinueComplete, nil
}

func (demoScanSession) CancelScan(_ context.Context, nodeIndex, partition int, scanUUID string) {}

// demoObserveSession reports every copy as already caught up, so the
// demo's durability wait resolves immediately.
type demoObserveSession struct{}

func (demoObserveSession) ObserveSeqno(_ context.Context, nodeIndex, partition int) (observeloop.ObserveResult, *errctx.Error) {
	return observeloop.ObserveResult{PartitionUUID: 1, PersistedSeqno: ^uint64(0), CurrentSeqno: ^uint64(0)}, nil
}
