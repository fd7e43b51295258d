package compound

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evalgo-org/couchkit/internal/dispatcher"
	"github.com/evalgo-org/couchkit/internal/errctx"
	"github.com/evalgo-org/couchkit/internal/replicaset"
	"github.com/evalgo-org/couchkit/internal/topology"
	"github.com/evalgo-org/couchkit/internal/wire"
	"github.com/evalgo-org/couchkit/pkg/docid"
)

func groupedConfig() *topology.Configuration {
	return &topology.Configuration{
		Bucket: "default",
		Nodes: []topology.Node{
			{Hostname: "node-a", ServerGroup: "A"},
			{Hostname: "node-b", ServerGroup: "B"},
			{Hostname: "node-c", ServerGroup: "A"},
		},
		VBucketMap:         [][]int{{0, 1, 2}},
		BucketCapabilities: []string{"supports_subdoc_read_replica"},
	}
}

func resolverFor(sessions map[int]wire.Session) dispatcher.NodeResolver {
	return func(idx int) (wire.Session, error) {
		s, ok := sessions[idx]
		if !ok {
			return nil, errctx.New(errctx.CodeResolveFailure, docid.ID{}, "")
		}
		return s, nil
	}
}

func TestGetAnyReplicaFirstSuccessWins(t *testing.T) {
	cfg := groupedConfig()
	id := docid.ID{Bucket: "default", Key: "k1"}

	active := wire.NewMockSession("node-a", func(req wire.Request) (wire.Response, error) {
		time.Sleep(50 * time.Millisecond)
		return wire.Response{CAS: 1}, nil
	})
	replica1 := wire.NewMockSession("node-b", func(req wire.Request) (wire.Response, error) {
		return wire.Response{CAS: 2}, nil
	})
	replica2 := wire.NewMockSession("node-c", func(req wire.Request) (wire.Response, error) {
		return wire.Response{CAS: 3}, nil
	})

	resolve := resolverFor(map[int]wire.Session{0: active, 1: replica1, 2: replica2})

	start := time.Now()
	res, errCtx := GetAnyReplica(context.Background(), cfg, id, replicaset.NoPreference, "", resolve)
	elapsed := time.Since(start)

	require.Nil(t, errCtx)
	assert.True(t, res.IsReplica)
	assert.Less(t, elapsed, 40*time.Millisecond)
}

func TestGetAnyReplicaAllFail(t *testing.T) {
	cfg := groupedConfig()
	id := docid.ID{Bucket: "default", Key: "k1"}

	fail := func(req wire.Request) (wire.Response, error) {
		return wire.Response{}, errctx.New(errctx.CodeDocumentNotFound, req.ID, "")
	}
	resolve := resolverFor(map[int]wire.Session{
		0: wire.NewMockSession("node-a", fail),
		1: wire.NewMockSession("node-b", fail),
		2: wire.NewMockSession("node-c", fail),
	})

	_, errCtx := GetAnyReplica(context.Background(), cfg, id, replicaset.NoPreference, "", resolve)
	require.NotNil(t, errCtx)
	assert.Equal(t, errctx.CodeDocumentIrretrievable, errCtx.Ctx.Code)
}

func TestGetAllReplicasAccumulatesSuccesses(t *testing.T) {
	cfg := groupedConfig()
	id := docid.ID{Bucket: "default", Key: "k1"}

	resolve := resolverFor(map[int]wire.Session{
		0: wire.NewMockSession("node-a", func(req wire.Request) (wire.Response, error) {
			return wire.Response{CAS: 1}, nil
		}),
		1: wire.NewMockSession("node-b", func(req wire.Request) (wire.Response, error) {
			return wire.Response{}, errctx.New(errctx.CodeDocumentNotFound, req.ID, "")
		}),
		2: wire.NewMockSession("node-c", func(req wire.Request) (wire.Response, error) {
			return wire.Response{CAS: 3}, nil
		}),
	})

	results, errCtx := GetAllReplicas(context.Background(), cfg, id, replicaset.NoPreference, "", resolve)
	require.Nil(t, errCtx)
	assert.Len(t, results, 2)
}

func TestGetAllReplicasAllFail(t *testing.T) {
	cfg := groupedConfig()
	id := docid.ID{Bucket: "default", Key: "k1"}

	fail := func(req wire.Request) (wire.Response, error) {
		return wire.Response{}, errctx.New(errctx.CodeDocumentNotFound, req.ID, "")
	}
	resolve := resolverFor(map[int]wire.Session{
		0: wire.NewMockSession("node-a", fail),
		1: wire.NewMockSession("node-b", fail),
		2: wire.NewMockSession("node-c", fail),
	})

	results, errCtx := GetAllReplicas(context.Background(), cfg, id, replicaset.NoPreference, "", resolve)
	require.NotNil(t, errCtx)
	assert.Nil(t, results)
	assert.Equal(t, errctx.CodeDocumentIrretrievable, errCtx.Ctx.Code)
}

func TestServerGroupEnforcedShortCircuitsWithNoDispatch(t *testing.T) {
	cfg := groupedConfig()
	id := docid.ID{Bucket: "default", Key: "k1"}

	dispatched := 0
	track := func(req wire.Request) (wire.Response, error) {
		dispatched++
		return wire.Response{CAS: 1}, nil
	}
	resolve := resolverFor(map[int]wire.Session{
		0: wire.NewMockSession("node-a", track),
		1: wire.NewMockSession("node-b", track),
		2: wire.NewMockSession("node-c", track),
	})

	_, errCtx := GetAllReplicas(context.Background(), cfg, id, replicaset.SelectedServerGroup, "Z", resolve)
	require.NotNil(t, errCtx)
	assert.Equal(t, errctx.CodeDocumentIrretrievable, errCtx.Ctx.Code)
	assert.Equal(t, 0, dispatched)
}

func TestSubdocGetAnyReplicaFailsFeatureNotAvailable(t *testing.T) {
	cfg := groupedConfig()
	cfg.BucketCapabilities = nil
	id := docid.ID{Bucket: "default", Key: "k1"}

	dispatched := 0
	track := func(req wire.Request) (wire.Response, error) {
		dispatched++
		return wire.Response{CAS: 1}, nil
	}
	resolve := resolverFor(map[int]wire.Session{
		0: wire.NewMockSession("node-a", track),
	})

	_, errCtx := SubdocGetAnyReplica(context.Background(), cfg, id, "address.city", replicaset.NoPreference, "", resolve)
	require.NotNil(t, errCtx)
	assert.Equal(t, errctx.CodeFeatureNotAvailable, errCtx.Ctx.Code)
	assert.Equal(t, 0, dispatched)
}

func TestSubdocGetAnyReplicaDispatchesPath(t *testing.T) {
	cfg := groupedConfig()
	id := docid.ID{Bucket: "default", Key: "k1"}

	var gotPath string
	resolve := resolverFor(map[int]wire.Session{
		0: wire.NewMockSession("node-a", func(req wire.Request) (wire.Response, error) {
			gotPath = req.Path
			return wire.Response{Value: []byte(`"Berlin"`)}, nil
		}),
		1: wire.NewMockSession("node-b", func(req wire.Request) (wire.Response, error) {
			return wire.Response{}, errctx.New(errctx.CodeDocumentNotFound, req.ID, "")
		}),
		2: wire.NewMockSession("node-c", func(req wire.Request) (wire.Response, error) {
			return wire.Response{}, errctx.New(errctx.CodeDocumentNotFound, req.ID, "")
		}),
	})

	res, errCtx := SubdocGetAnyReplica(context.Background(), cfg, id, "address.city", replicaset.NoPreference, "", resolve)
	require.Nil(t, errCtx)
	assert.Equal(t, "address.city", gotPath)
	assert.Equal(t, []byte(`"Berlin"`), res.Value)
}
