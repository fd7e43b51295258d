// Package rangescan implements the bulk range/prefix/sampling scan path:
// a per-node load balancer that keeps partition concurrency spread
// evenly (internal/rangescan.LoadBalancer), and an orchestrator that
// drives each partition through its create/continue state machine and
// exposes the results as a lazy, cancellable item sequence.
package rangescan

import "time"

// ScanTerm is one endpoint of a Range scan, with an inclusive/exclusive
// flag on the bound.
type ScanTerm struct {
	Term      []byte
	Exclusive bool
}

// RangeBounds are the optional from/to terms of a Range scan; a nil
// bound is open-ended on that side.
type RangeBounds struct {
	From *ScanTerm
	To   *ScanTerm
}

// SamplingScan draws up to Limit items, optionally from a fixed Seed.
type SamplingScan struct {
	Limit uint64
	Seed  *uint64
}

// ScanType is the tagged variant of the three scan kinds a Scanner can
// run: exactly one field is set.
type ScanType struct {
	Range    *RangeBounds
	Prefix   []byte
	Sampling *SamplingScan
}

// ItemBody is the per-item payload returned when the scan is not
// ids-only.
type ItemBody struct {
	CAS            uint64
	Value          []byte
	Flags          uint32
	SequenceNumber uint64
	ExpiryTime     uint32
}

// Item is one key (and, unless ids-only, body) yielded by a scan.
type Item struct {
	Key  []byte
	Body *ItemBody
}

// SnapshotRequirement pins a partition's create call to a minimum
// sequence number, for consistent-with-mutation scans.
type SnapshotRequirement struct {
	PartitionUUID  uint64
	SequenceNumber uint64
}

// Options configures one scan. Concurrency must be at least 1.
type Options struct {
	IDsOnly        bool
	ConsistentWith map[int]SnapshotRequirement
	// Sort requests global ascending-key order across partitions
	// instead of the default (items emitted as each partition
	// produces them, ordered only within a single partition). Setting
	// it makes the Scanner buffer the full result set in memory and
	// release it only once every partition has finished.
	Sort           bool
	BatchItemLimit int
	BatchByteLimit int
	BatchTimeLimit time.Duration
	Concurrency    int
	Timeout        time.Duration
}
