package topology

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func sampleConfig() *Configuration {
	return &Configuration{
		Epoch:       1,
		Rev:         5,
		ID:          "default",
		NumReplicas: 1,
		Nodes: []Node{
			{Hostname: "node-a", NodeUUID: "uuid-a", Ports: PortSet{KV: 11210}},
			{Hostname: "node-b", NodeUUID: "uuid-b", Ports: PortSet{KV: 11210},
				Alternate: map[string]AlternateAddress{
					"external": {Hostname: "node-b.external", Ports: PortSet{KV: 31210}},
				}},
		},
		VBucketMap:         [][]int{{0, 1}, {1, 0}, {0, -1}},
		BucketCapabilities: []string{"couchapi", "xattr"},
		ClusterCapabilities: map[string][]string{
			"n1ql": {"enhancedPreparedStatements"},
		},
	}
}

func TestMapKeyIsStableForSameKey(t *testing.T) {
	first := MapKey("user::42", 1024)
	second := MapKey("user::42", 1024)
	assert.Equal(t, first, second)
	assert.GreaterOrEqual(t, first, 0)
	assert.Less(t, first, 1024)
}

func TestMapKeyZeroPartitionsIsSafe(t *testing.T) {
	assert.Equal(t, 0, MapKey("anything", 0))
}

func TestServerByVBucket(t *testing.T) {
	cfg := sampleConfig()

	idx, ok := cfg.ServerByVBucket(0, 0)
	assert.True(t, ok)
	assert.Equal(t, 0, idx)

	idx, ok = cfg.ServerByVBucket(0, 1)
	assert.True(t, ok)
	assert.Equal(t, 1, idx)

	_, ok = cfg.ServerByVBucket(2, 1)
	assert.False(t, ok, "rank 1 of partition 2 has no owner (-1)")

	_, ok = cfg.ServerByVBucket(99, 0)
	assert.False(t, ok, "out of range partition")
}

func TestNodeIndexInRange(t *testing.T) {
	cfg := sampleConfig()
	assert.True(t, cfg.NodeIndexInRange(0))
	assert.True(t, cfg.NodeIndexInRange(1))
	assert.False(t, cfg.NodeIndexInRange(2))
	assert.False(t, cfg.NodeIndexInRange(-1))
}

func TestHasNodeMatchesAddress(t *testing.T) {
	cfg := sampleConfig()

	assert.True(t, cfg.HasNode("", "kv", false, "node-a", 11210))
	assert.False(t, cfg.HasNode("", "kv", false, "node-a", 9999))
	assert.False(t, cfg.HasNode("", "query", false, "node-a", 11210), "node-a exposes no query port")

	assert.True(t, cfg.HasNode("external", "kv", false, "node-b.external", 31210))
	assert.False(t, cfg.HasNode("", "kv", false, "node-b.external", 31210), "external address is only visible under the external network")
}

func TestEphemeral(t *testing.T) {
	cfg := sampleConfig()
	assert.False(t, cfg.Ephemeral())

	cfg.BucketCapabilities = []string{"xattr"}
	assert.True(t, cfg.Ephemeral())
}

func TestHasClusterCapability(t *testing.T) {
	cfg := sampleConfig()
	assert.True(t, cfg.HasClusterCapability("n1ql", "enhancedPreparedStatements"))
	assert.False(t, cfg.HasClusterCapability("n1ql", "costBasedOptimizer"))
	assert.False(t, cfg.HasClusterCapability("missing", "anything"))
	assert.True(t, cfg.SupportsEnhancedPreparedStatements())
}

func TestSelectNetworkFallsBackToDefault(t *testing.T) {
	cfg := sampleConfig()

	host, plain, _ := SelectNetwork(cfg.Nodes[1], "external")
	assert.Equal(t, "node-b.external", host)
	assert.Equal(t, 31210, plain.KV)

	host, plain, _ = SelectNetwork(cfg.Nodes[1], "unknown-network")
	assert.Equal(t, "node-b", host)
	assert.Equal(t, 11210, plain.KV)

	host, plain, _ = SelectNetwork(cfg.Nodes[0], "")
	assert.Equal(t, "node-a", host)
	assert.Equal(t, 11210, plain.KV)
}

func TestConfigurationSelectNetworkByBootstrapHost(t *testing.T) {
	cfg := sampleConfig()

	assert.Equal(t, "", cfg.SelectNetwork("node-a"), "primary hostname is on the default network")
	assert.Equal(t, "external", cfg.SelectNetwork("node-b.external"))
	assert.Equal(t, "", cfg.SelectNetwork("unknown-host"))
}

func TestIndexForThisNode(t *testing.T) {
	cfg := sampleConfig()
	idx, ok := cfg.IndexForThisNode("uuid-b")
	assert.True(t, ok)
	assert.Equal(t, 1, idx)

	_, ok = cfg.IndexForThisNode("unknown")
	assert.False(t, ok)
}

func TestLessOrdersByEpochThenRev(t *testing.T) {
	older := &Configuration{Epoch: 1, Rev: 5}
	newer := &Configuration{Epoch: 1, Rev: 6}
	assert.True(t, older.Less(newer))
	assert.False(t, newer.Less(older))

	newerEpoch := &Configuration{Epoch: 2, Rev: 0}
	assert.True(t, newer.Less(newerEpoch))
}

func TestRevStr(t *testing.T) {
	cfg := &Configuration{Epoch: 3, Rev: 7}
	assert.Equal(t, "3:7", cfg.RevStr())
}

// A rebalance only ever changes a handful of vbucket ownership entries;
// cmp.Diff reports exactly which rows moved instead of just "not equal",
// which matters once the map grows past a few rows.
func TestVBucketMapDiffAfterRebalance(t *testing.T) {
	before := sampleConfig()
	after := sampleConfig()
	after.Rev++
	after.VBucketMap = [][]int{{0, 1}, {1, 0}, {1, 0}}

	if diff := cmp.Diff(before.VBucketMap, after.VBucketMap); diff == "" {
		t.Fatal("expected a diff after partition 2's owner changed")
	}

	after.VBucketMap[2] = before.VBucketMap[2]
	if diff := cmp.Diff(before.VBucketMap, after.VBucketMap); diff != "" {
		t.Errorf("expected no diff once the map matches again, got:\n%s", diff)
	}
}
