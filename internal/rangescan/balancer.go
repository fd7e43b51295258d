package rangescan

import (
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/evalgo-org/couchkit/internal/topology"
)

// nodeState tracks one node's pending partition queue and active
// stream count, guarded by its own mutex the way the load balancer's
// per-node state does.
type nodeState struct {
	mu                sync.Mutex
	pending           []int
	activeStreamCount int
}

func newNodeState(pending []int) *nodeState {
	return &nodeState{pending: pending}
}

func (s *nodeState) fetchPartition() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return 0, false
	}
	s.activeStreamCount++
	p := s.pending[0]
	s.pending = s.pending[1:]
	return p, true
}

func (s *nodeState) notifyStreamEnded() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeStreamCount > 0 {
		s.activeStreamCount--
	}
}

func (s *nodeState) enqueue(partition int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, partition)
}

func (s *nodeState) activeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeStreamCount
}

func (s *nodeState) pendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// LoadBalancer hands out partitions from the least-busy node, shuffling
// candidate nodes on every call so that nodes tied on active-stream
// count take turns fairly. The shuffle source is seeded lazily, once,
// the first time a seed is set or a selection is made — never reseeded
// call-to-call — so that a configured seed makes the whole scan's
// partition order reproducible.
type LoadBalancer struct {
	mu        sync.Mutex
	nodes     map[int]*nodeState
	nodeOrder []int
	rng       *rand.Rand
}

// NewLoadBalancer groups every partition in cfg's vbucket map under its
// active owner (rank 0) and builds the per-node pending queues from
// that grouping.
func NewLoadBalancer(cfg *topology.Configuration) *LoadBalancer {
	grouping := map[int][]int{}
	for partition, row := range cfg.VBucketMap {
		if len(row) == 0 || row[0] < 0 {
			continue
		}
		owner := row[0]
		grouping[owner] = append(grouping[owner], partition)
	}

	nodes := make(map[int]*nodeState, len(grouping))
	order := make([]int, 0, len(grouping))
	for nodeIndex, partitions := range grouping {
		nodes[nodeIndex] = newNodeState(partitions)
		order = append(order, nodeIndex)
	}
	sort.Ints(order)

	return &LoadBalancer{nodes: nodes, nodeOrder: order}
}

// Seed fixes the shuffle source used by SelectPartition. Call it before
// the first SelectPartition to get a reproducible partition order.
func (lb *LoadBalancer) Seed(seed int64) {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	lb.rng = rand.New(rand.NewSource(seed))
}

func (lb *LoadBalancer) rngLocked() *rand.Rand {
	if lb.rng == nil {
		lb.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return lb.rng
}

// SelectPartition returns the partition belonging to the least-busy
// node with pending work, or ok=false if every node's queue is empty.
func (lb *LoadBalancer) SelectPartition() (nodeIndex, partition int, ok bool) {
	lb.mu.Lock()
	order := append([]int(nil), lb.nodeOrder...)
	rng := lb.rngLocked()
	rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	lb.mu.Unlock()

	minCount := -1
	selected := -1
	for _, idx := range order {
		ns := lb.nodes[idx]
		if ns.pendingCount() == 0 {
			continue
		}
		c := ns.activeCount()
		if minCount == -1 || c < minCount {
			minCount = c
			selected = idx
		}
	}
	if selected == -1 {
		return 0, 0, false
	}

	p, ok := lb.nodes[selected].fetchPartition()
	if !ok {
		return 0, 0, false
	}
	return selected, p, true
}

// NotifyStreamEnded decrements nodeIndex's active stream count.
func (lb *LoadBalancer) NotifyStreamEnded(nodeIndex int) {
	lb.mu.Lock()
	ns := lb.nodes[nodeIndex]
	lb.mu.Unlock()
	if ns != nil {
		ns.notifyStreamEnded()
	}
}

// EnqueuePartition re-queues partition onto nodeIndex, used when a
// retryable error aborts an in-flight stream.
func (lb *LoadBalancer) EnqueuePartition(nodeIndex, partition int) {
	lb.mu.Lock()
	ns := lb.nodes[nodeIndex]
	lb.mu.Unlock()
	if ns != nil {
		ns.enqueue(partition)
	}
}

// TotalPartitions reports how many partitions are still pending, summed
// across every node's queue; before the first selection this is the
// number the balancer started with.
func (lb *LoadBalancer) TotalPartitions() int {
	total := 0
	for _, ns := range lb.nodes {
		total += ns.pendingCount()
	}
	return total
}
