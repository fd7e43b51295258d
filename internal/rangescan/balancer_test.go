package rangescan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evalgo-org/couchkit/internal/topology"
)

func balancedConfig() *topology.Configuration {
	return &topology.Configuration{
		Nodes: []topology.Node{{Hostname: "a"}, {Hostname: "b"}},
		VBucketMap: [][]int{
			{0}, {0}, {0}, {0},
			{1}, {1}, {1}, {1},
		},
	}
}

func TestNewLoadBalancerGroupsByOwner(t *testing.T) {
	lb := NewLoadBalancer(balancedConfig())
	assert.Equal(t, 8, lb.TotalPartitions())
}

func TestSelectPartitionDrainsAllPartitionsExactlyOnce(t *testing.T) {
	lb := NewLoadBalancer(balancedConfig())
	lb.Seed(1)

	seen := map[int]bool{}
	for {
		_, partition, ok := lb.SelectPartition()
		if !ok {
			break
		}
		require.False(t, seen[partition], "partition %d selected twice", partition)
		seen[partition] = true
		lb.NotifyStreamEnded(0)
	}
	assert.Len(t, seen, 8)
}

func TestSelectPartitionKeepsActiveCountsBalanced(t *testing.T) {
	lb := NewLoadBalancer(balancedConfig())
	lb.Seed(7)

	counts := map[int]int{}
	for i := 0; i < 6; i++ {
		nodeIndex, _, ok := lb.SelectPartition()
		require.True(t, ok)
		counts[nodeIndex]++
	}

	min, max := counts[0], counts[0]
	for _, c := range counts {
		if c < min {
			min = c
		}
		if c > max {
			max = c
		}
	}
	assert.LessOrEqual(t, max-min, 1)
}

func TestSelectPartitionReturnsFalseWhenEmpty(t *testing.T) {
	lb := NewLoadBalancer(&topology.Configuration{VBucketMap: [][]int{}})
	_, _, ok := lb.SelectPartition()
	assert.False(t, ok)
}

func TestEnqueuePartitionRequeues(t *testing.T) {
	lb := NewLoadBalancer(&topology.Configuration{
		Nodes:      []topology.Node{{Hostname: "a"}},
		VBucketMap: [][]int{{0}},
	})
	nodeIndex, partition, ok := lb.SelectPartition()
	require.True(t, ok)
	_, _, ok = lb.SelectPartition()
	assert.False(t, ok)

	lb.NotifyStreamEnded(nodeIndex)
	lb.EnqueuePartition(nodeIndex, partition)

	_, p2, ok := lb.SelectPartition()
	require.True(t, ok)
	assert.Equal(t, partition, p2)
}
