// Package topology models a cluster configuration: the node list, the
// vbucket (partition) map, and the capability/versioning metadata a
// dispatcher needs to pick a target for a request and to know when a newer
// configuration has superseded an older one.
package topology

import (
	"fmt"
	"hash/crc32"
)

// PortSet names the service ports a node exposes on one network
// (plain or TLS). A zero value means the service is not exposed.
type PortSet struct {
	KV        int
	Mgmt      int
	Query     int
	Search    int
	Analytics int
	Views     int
	Eventing  int
}

// AlternateAddress is one entry in a node's "external" address map, keyed
// by network name (e.g. "external", "customNetwork1") in Node.Alternate.
type AlternateAddress struct {
	Hostname string
	Ports    PortSet
	PortsTLS PortSet
}

// Node describes one cluster member.
type Node struct {
	Hostname    string
	NodeUUID    string
	ServerGroup string

	Ports    PortSet
	PortsTLS PortSet

	// Alternate holds additional routable addresses for this node, keyed
	// by network name; SelectNetwork resolves which one a caller sees.
	Alternate map[string]AlternateAddress
}

// Configuration is one immutable snapshot of cluster topology. Revisions
// are totally ordered by (Epoch, Rev); Less implements that order.
type Configuration struct {
	Epoch int64
	Rev   int64

	ID     string
	UUID   string
	Bucket string

	NumReplicas int
	Nodes       []Node

	// VBucketMap[partition] lists node indices into Nodes, active copy
	// first, then replicas in rank order. A -1 entry means no node
	// currently owns that copy.
	VBucketMap [][]int

	BucketCapabilities     []string
	ClusterCapabilities    map[string][]string
	CollectionsManifestUID string
}

// PartitionCount is the number of vbuckets this configuration maps over.
func (c *Configuration) PartitionCount() int {
	return len(c.VBucketMap)
}

// MapKey computes the vbucket (partition) a key falls into, the same
// CRC32/IEEE-over-partition-count scheme the original topology model
// uses for key routing.
func MapKey(key string, partitionCount int) int {
	if partitionCount == 0 {
		return 0
	}
	return int(crc32.ChecksumIEEE([]byte(key))) % partitionCount
}

// ServerByVBucket returns the node index holding rank (0 = active, 1..N =
// replicas) of partition vb, or ok=false if that rank has no owner in the
// current map or the arguments are out of range.
func (c *Configuration) ServerByVBucket(vb, rank int) (nodeIndex int, ok bool) {
	if vb < 0 || vb >= len(c.VBucketMap) {
		return 0, false
	}
	row := c.VBucketMap[vb]
	if rank < 0 || rank >= len(row) {
		return 0, false
	}
	idx := row[rank]
	if idx < 0 {
		return 0, false
	}
	return idx, true
}

// NodeIndexInRange reports whether index names a valid slot in c.Nodes.
// This is a bounds check only, used to guard indexing after a vbucket
// map lookup; it says nothing about whether an address is reachable.
func (c *Configuration) NodeIndexInRange(index int) bool {
	return index >= 0 && index < len(c.Nodes)
}

// HasNode reports whether some node in this configuration exposes
// service (e.g. "kv", "mgmt", "query", "search", "analytics", "views",
// "eventing") at host:port on the given network, over TLS or plain
// ports as requested.
func (c *Configuration) HasNode(network, service string, tls bool, host string, port int) bool {
	for _, n := range c.Nodes {
		nodeHost, plain, plainTLS := SelectNetwork(n, network)
		if nodeHost != host {
			continue
		}
		ports := plain
		if tls {
			ports = plainTLS
		}
		if p, ok := portForService(ports, service); ok && p == port {
			return true
		}
	}
	return false
}

// portForService looks up one named service's port within a PortSet.
func portForService(ports PortSet, service string) (int, bool) {
	switch service {
	case "kv":
		return ports.KV, ports.KV != 0
	case "mgmt":
		return ports.Mgmt, ports.Mgmt != 0
	case "query":
		return ports.Query, ports.Query != 0
	case "search":
		return ports.Search, ports.Search != 0
	case "analytics":
		return ports.Analytics, ports.Analytics != 0
	case "views":
		return ports.Views, ports.Views != 0
	case "eventing":
		return ports.Eventing, ports.Eventing != 0
	default:
		return 0, false
	}
}

// Ephemeral reports whether this bucket is an ephemeral (memory-only,
// non-persistent) bucket, signaled by the absence of the "couchapi"
// bucket capability that persistent buckets always advertise.
func (c *Configuration) Ephemeral() bool {
	for _, cap := range c.BucketCapabilities {
		if cap == "couchapi" {
			return false
		}
	}
	return true
}

// HasClusterCapability reports whether the cluster advertises capability
// within category (e.g. category "n1ql", capability "enhancedPreparedStatements").
func (c *Configuration) HasClusterCapability(category, capability string) bool {
	caps, ok := c.ClusterCapabilities[category]
	if !ok {
		return false
	}
	for _, cap := range caps {
		if cap == capability {
			return true
		}
	}
	return false
}

// SupportsEnhancedPreparedStatements is a named convenience over the n1ql
// capability lookup query planners check before caching a prepared plan.
func (c *Configuration) SupportsEnhancedPreparedStatements() bool {
	return c.HasClusterCapability("n1ql", "enhancedPreparedStatements")
}

// SelectNetwork resolves the hostname and ports a caller on the named
// network should use for node n, falling back to the node's default
// (internal) address when no matching alternate address is registered.
func SelectNetwork(n Node, network string) (hostname string, plain, tls PortSet) {
	if network == "" || network == "default" {
		return n.Hostname, n.Ports, n.PortsTLS
	}
	if alt, ok := n.Alternate[network]; ok {
		return alt.Hostname, alt.Ports, alt.PortsTLS
	}
	return n.Hostname, n.Ports, n.PortsTLS
}

// SelectNetwork scans every node's primary and alternate addresses to
// determine which network name bootstrapHost belongs to, the way a
// client resolves which of its configured addresses it was reached on.
// Returns "" (the default/internal network) if no alternate address
// matches; callers that need "no match at all" can additionally check
// against the node's primary hostname themselves.
func (c *Configuration) SelectNetwork(bootstrapHost string) string {
	for _, n := range c.Nodes {
		if n.Hostname == bootstrapHost {
			return ""
		}
		for network, alt := range n.Alternate {
			if alt.Hostname == bootstrapHost {
				return network
			}
		}
	}
	return ""
}

// IndexForThisNode finds the Nodes index whose NodeUUID matches uuid.
func (c *Configuration) IndexForThisNode(uuid string) (int, bool) {
	for i, n := range c.Nodes {
		if n.NodeUUID == uuid {
			return i, true
		}
	}
	return 0, false
}

// Less implements the (Epoch, Rev) ordering: a newer configuration
// compares greater, so the config cache can discard a Less update
// arriving out of order.
func (c *Configuration) Less(other *Configuration) bool {
	if c.Epoch != other.Epoch {
		return c.Epoch < other.Epoch
	}
	return c.Rev < other.Rev
}

// RevStr renders the revision as the "epoch:rev" string callers log and
// compare against without reaching into both fields separately.
func (c *Configuration) RevStr() string {
	return fmt.Sprintf("%d:%d", c.Epoch, c.Rev)
}
