package rangescan

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/evalgo-org/couchkit/internal/errctx"
	"github.com/evalgo-org/couchkit/pkg/docid"
)

// Scanner owns one scan's per-partition state machines and exposes the
// results as a lazy, cancellable sequence. Construct one with New,
// then drive it with Next and, optionally, Cancel.
type Scanner struct {
	balancer          *LoadBalancer
	session           ScanSession
	scope, collection string
	scanType          ScanType
	opts              Options

	items chan Item
	errc  chan *errctx.Error
	done  chan struct{}

	cancelOnce sync.Once
	canceled   atomic.Bool
	remaining  atomic.Int64

	seenMu sync.Mutex
	seen   map[string]struct{}

	// sortBuf accumulates every item under Options.Sort instead of
	// forwarding it to items directly; flushSorted drains it in key
	// order once every partition has finished.
	sortMu  sync.Mutex
	sortBuf []Item

	wg sync.WaitGroup
}

// New validates opts and builds a Scanner over balancer's partitions.
// A non-positive Concurrency fails synchronously with
// CodeInvalidArgument, before any partition is touched.
func New(scope, collection string, scanType ScanType, opts Options, balancer *LoadBalancer, session ScanSession) (*Scanner, *errctx.Error) {
	if opts.Concurrency <= 0 {
		return nil, errctx.New(errctx.CodeInvalidArgument, docid.ID{Scope: scope, Collection: collection}, "")
	}

	total := balancer.TotalPartitions()
	s := &Scanner{
		balancer:   balancer,
		session:    session,
		scope:      scope,
		collection: collection,
		scanType:   scanType,
		opts:       opts,
		items:      make(chan Item, opts.Concurrency),
		errc:       make(chan *errctx.Error, 1),
		done:       make(chan struct{}),
		seen:       make(map[string]struct{}),
	}
	s.remaining.Store(int64(total))
	return s, nil
}

// Start launches opts.Concurrency worker goroutines that drain
// balancer's partitions until the scan completes or is cancelled.
// Start returns immediately; consume results with Next. With
// Options.Sort, per-partition order is not preserved: items are held
// back and released through Next in ascending key order only once
// every partition has finished, trading the scan's normal streaming
// behavior for a full buffer of the result set.
func (s *Scanner) Start(ctx context.Context) {
	if s.remaining.Load() == 0 {
		close(s.items)
		return
	}
	for i := 0; i < s.opts.Concurrency; i++ {
		s.wg.Add(1)
		go s.worker(ctx)
	}
	go func() {
		s.wg.Wait()
		if s.opts.Sort {
			s.flushSorted()
		}
		close(s.items)
	}()
}

func (s *Scanner) worker(ctx context.Context) {
	defer s.wg.Done()
	for {
		if s.canceled.Load() || s.remaining.Load() <= 0 {
			return
		}

		nodeIndex, partition, ok := s.balancer.SelectPartition()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-s.done:
				return
			case <-time.After(time.Millisecond):
				continue
			}
		}

		if s.runPartition(ctx, nodeIndex, partition) {
			if s.remaining.Add(-1) == 0 {
				return
			}
		}
	}
}

// runPartition drives one partition's create/continue state machine to
// a terminal outcome and reports whether that outcome was terminal
// (true) or a retryable re-enqueue (false).
func (s *Scanner) runPartition(ctx context.Context, nodeIndex, partition int) bool {
	defer s.balancer.NotifyStreamEnded(nodeIndex)

	var snapshot *SnapshotRequirement
	if s.opts.ConsistentWith != nil {
		if sr, ok := s.opts.ConsistentWith[partition]; ok {
			snapshot = &sr
		}
	}

	scanUUID, err := s.session.CreateScan(ctx, nodeIndex, partition, s.scope, s.collection, s.scanType, s.opts.IDsOnly, snapshot)
	if err != nil {
		return s.handlePartitionError(nodeIndex, partition, err)
	}

	for {
		if s.canceled.Load() {
			s.session.CancelScan(ctx, nodeIndex, partition, scanUUID)
			return true
		}

		status, err := s.session.ContinueScan(ctx, nodeIndex, partition, scanUUID, s.opts, s.emit)
		if err != nil {
			return s.handlePartitionError(nodeIndex, partition, err)
		}
		if status == ContinueComplete {
			return true
		}
	}
}

func (s *Scanner) handlePartitionError(nodeIndex, partition int, err *errctx.Error) bool {
	if err.IsTemporary() || err.Ctx.Code == errctx.CodeCollectionNotFound || err.Ctx.Code == errctx.CodeConfigUnavailable {
		s.balancer.EnqueuePartition(nodeIndex, partition)
		return false
	}
	s.fail(err)
	return true
}

func (s *Scanner) emit(item Item) {
	key := string(item.Key)
	s.seenMu.Lock()
	if _, dup := s.seen[key]; dup {
		s.seenMu.Unlock()
		return
	}
	s.seen[key] = struct{}{}
	s.seenMu.Unlock()

	if s.opts.Sort {
		s.sortMu.Lock()
		s.sortBuf = append(s.sortBuf, item)
		s.sortMu.Unlock()
		return
	}

	select {
	case s.items <- item:
	case <-s.done:
	}
}

// flushSorted drains the items buffered by emit under Options.Sort, in
// ascending key order, onto the items channel. Called once every
// worker has exited, after the last partition either completed or was
// abandoned.
func (s *Scanner) flushSorted() {
	s.sortMu.Lock()
	items := s.sortBuf
	s.sortBuf = nil
	s.sortMu.Unlock()

	sort.Slice(items, func(i, j int) bool {
		return bytes.Compare(items[i].Key, items[j].Key) < 0
	})

	for _, item := range items {
		select {
		case s.items <- item:
		case <-s.done:
			return
		}
	}
}

func (s *Scanner) fail(err *errctx.Error) {
	select {
	case s.errc <- err:
	default:
	}
	s.cancelOnce.Do(func() {
		s.canceled.Store(true)
		close(s.done)
	})
}

// Next resolves the next item in arrival order, a CodeRangeScanCompleted
// error once every partition has drained or Cancel has been called, or
// the first fatal error recorded by any partition. A caller-supplied
// ctx that is done before either of those resolves with
// CodeRequestCanceled instead — ctx cancellation and an explicit Cancel
// call are reported differently on purpose, since a cancelled scan is
// an orderly stop, not a failure.
func (s *Scanner) Next(ctx context.Context) (Item, *errctx.Error) {
	// errc is checked first, and rechecked ahead of every other
	// terminal branch below, so a fatal error never loses a select race
	// against the done channel fail() also closes. done is checked next,
	// so items still buffered after Cancel or a fatal error are not
	// handed out.
	select {
	case err := <-s.errc:
		return Item{}, err
	default:
	}

	select {
	case <-s.done:
		return Item{}, s.terminalError()
	default:
	}

	select {
	case item, ok := <-s.items:
		if ok {
			return item, nil
		}
		return Item{}, s.terminalError()
	case err := <-s.errc:
		return Item{}, err
	case <-s.done:
		return Item{}, s.terminalError()
	case <-ctx.Done():
		return Item{}, errctx.New(errctx.CodeRequestCanceled, docid.ID{}, "")
	}
}

func (s *Scanner) terminalError() *errctx.Error {
	select {
	case err := <-s.errc:
		return err
	default:
		return errctx.New(errctx.CodeRangeScanCompleted, docid.ID{}, "")
	}
}

// Cancel stops further continues and best-effort cancels every
// in-flight stream. It is idempotent.
func (s *Scanner) Cancel() {
	s.cancelOnce.Do(func() {
		s.canceled.Store(true)
		close(s.done)
	})
}
