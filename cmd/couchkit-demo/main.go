// Command couchkit-demo wires the dispatch and replica-coordination
// engine together end to end against a small in-memory topology: it
// parses a connection string, loads cluster options, opens a bucket,
// dispatches a handful of key-value operations, runs a compound
// any-replica read, drives a short range scan, and waits for
// durability on a mutation — one pass through every core component.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/evalgo-org/couchkit/internal/buildinfo"
	"github.com/evalgo-org/couchkit/internal/clusteropts"
	"github.com/evalgo-org/couchkit/internal/compound"
	"github.com/evalgo-org/couchkit/internal/configcache"
	"github.com/evalgo-org/couchkit/internal/dispatcher"
	"github.com/evalgo-org/couchkit/internal/errctx"
	"github.com/evalgo-org/couchkit/internal/observeloop"
	"github.com/evalgo-org/couchkit/internal/rangescan"
	"github.com/evalgo-org/couchkit/internal/replicaset"
	"github.com/evalgo-org/couchkit/internal/signalbridge"
	"github.com/evalgo-org/couchkit/internal/telemetry"
	"github.com/evalgo-org/couchkit/internal/topology"
	"github.com/evalgo-org/couchkit/internal/wire"
	"github.com/evalgo-org/couchkit/pkg/docid"
)

const bucketName = "demo"

func main() {
	logger := telemetry.NewLogger(logrus.InfoLevel)

	bi := buildinfo.Get()
	kivikDep := buildinfo.Dependency("github.com/go-kivik/kivik/v4")
	kivikVersion := "unknown"
	if kivikDep != nil {
		kivikVersion = kivikDep.Version
	}
	logger.WithFields(logrus.Fields{
		"go_version":    bi.GoVersion,
		"module":        bi.MainModule,
		"kivik_version": kivikVersion,
	}).Info("build info")

	connStr := os.Getenv("COUCHKIT_CONNECTION_STRING")
	if connStr == "" {
		connStr = "couchbase://node-a,node-b,node-c?kv_timeout=4s2ms&enable_tls=false"
	}
	connOpts, err := ParseConnectionString(logger, connStr)
	if err != nil {
		logger.WithError(err).Fatal("parsing connection string")
	}

	clusterOpts := clusteropts.Load("COUCHKIT")
	if connOpts.KVTimeout > 0 {
		clusterOpts.Timeouts.KV = connOpts.KVTimeout
	}
	logger.WithFields(logrus.Fields{
		"hosts":      connOpts.Hosts,
		"kv_timeout": clusterOpts.Timeouts.KV,
	}).Info("starting couchkit-demo")

	recorder := telemetry.NewRecorder("couchkit-demo", "couchkit_demo", logrus.InfoLevel)
	recorder.Logger = logger

	store := newInMemoryStore()
	sessions := map[int]wire.Session{
		0: wire.NewMockSession(connOpts.Hosts[0], store.handle),
	}
	if len(connOpts.Hosts) > 1 {
		sessions[1] = wire.NewMockSession(connOpts.Hosts[1%len(connOpts.Hosts)], store.handle)
	}
	if len(connOpts.Hosts) > 2 {
		sessions[2] = wire.NewMockSession(connOpts.Hosts[2%len(connOpts.Hosts)], store.handle)
	}
	resolve := func(nodeIndex int) (wire.Session, error) {
		s, ok := sessions[nodeIndex]
		if !ok {
			return nil, fmt.Errorf("no session for node %d", nodeIndex)
		}
		return s, nil
	}

	cache := configcache.New()
	cache.OpenBucket(bucketName)
	cache.UpdateConfig(demoConfiguration())

	bridge := signalbridge.New(clusterOpts.SignalBridgeBufferLimit, clusterOpts.SignalBridgeNotificationThreshold)
	defer bridge.Close()
	sink := signalbridge.NewFileSink(os.Stdout, bridge)

	d := &dispatcher.Dispatcher{
		Cache:     cache,
		Resolve:   resolve,
		Retry:     dispatcher.NewDefaultRetryStrategy(3, 20*time.Millisecond),
		Recorder:  recorder,
		Operation: "upsert",
	}

	ctx := context.Background()
	id := docid.ID{Bucket: bucketName, Scope: "_default", Collection: "_default", Key: "demo-doc"}

	start := time.Now()
	_, upsertErr := d.Execute(ctx, bucketName, wire.Request{ID: id, Kind: wire.OpUpsert, Value: []byte(`{"greeting":"hello"}`)})
	emitSignal(bridge, sink, "upsert", start, upsertErr)
	if upsertErr != nil {
		logger.WithError(upsertErr).Fatal("upsert failed")
	}
	logger.Info("upserted demo-doc")

	d.Operation = "get"
	start = time.Now()
	resp, getErr := d.Execute(ctx, bucketName, wire.Request{ID: id, Kind: wire.OpGet})
	emitSignal(bridge, sink, "get", start, getErr)
	if getErr != nil {
		logger.WithError(getErr).Fatal("get failed")
	}
	logger.WithField("value", string(resp.Value)).Info("fetched demo-doc")

	cfg, _ := cache.WithBucketConfiguration(bucketName)
	demoCompoundRead(ctx, logger, cfg, id, resolve)
	demoRangeScan(ctx, logger, recorder, resolve)
	demoDurabilityWait(ctx, logger, resp.CAS)

	drained := bridge.TakeBuffer()
	logger.WithField("count", len(drained)).Info("drained signal bridge")
}

func demoCompoundRead(ctx context.Context, logger *logrus.Logger, cfg *topology.Configuration, id docid.ID, resolve dispatcher.NodeResolver) {
	result, err := compound.GetAnyReplica(ctx, cfg, id, replicaset.NoPreference, "", resolve)
	if err != nil {
		logger.WithError(err).Warn("get-any-replica failed")
		return
	}
	logger.WithFields(logrus.Fields{
		"node":       result.NodeIndex,
		"is_replica": result.IsReplica,
	}).Info("get-any-replica succeeded")
}

func demoRangeScan(ctx context.Context, logger *logrus.Logger, recorder *telemetry.Recorder, resolve dispatcher.NodeResolver) {
	cfg := demoConfiguration()
	lb := rangescan.NewLoadBalancer(cfg)

	opts := rangescan.Options{Concurrency: 2, BatchItemLimit: 1000, BatchByteLimit: 2 * 1024 * 1024, BatchTimeLimit: 5 * time.Second}
	recorder.LogRangeScanBatchLimits("_default", "_default", opts.BatchItemLimit, opts.BatchByteLimit, opts.BatchTimeLimit)

	session := &demoScanSession{}
	scanner, err := rangescan.New("_default", "_default", rangescan.ScanType{Prefix: []byte("demo-")}, opts, lb, session)
	if err != nil {
		logger.WithError(err).Warn("range scan setup failed")
		return
	}

	scanCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	scanner.Start(scanCtx)

	count := 0
	for {
		_, scanErr := scanner.Next(scanCtx)
		if scanErr != nil {
			break
		}
		count++
	}
	logger.WithField("items", count).Info("range scan completed")
}

func demoDurabilityWait(ctx context.Context, logger *logrus.Logger, cas uint64) {
	token := observeloop.MutationToken{Partition: 0, PartitionUUID: 1, Seqno: cas}
	req := observeloop.Requirement{PersistTo: 1, ReplicateTo: 0}
	copies := []replicaset.Copy{{Rank: 0, NodeIndex: 0}}
	session := &demoObserveSession{}

	waitCtx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	if err := observeloop.Wait(waitCtx, token, req, copies, session, nil); err != nil {
		logger.WithError(err).Warn("durability wait did not complete")
		return
	}
	logger.Info("durability requirement met")
}

func emitSignal(bridge *signalbridge.Bridge, sink *signalbridge.FileSink, op string, start time.Time, opErr *errctx.Error) {
	sig := signalbridge.Signal{
		Operation:  op,
		Outcome:    "Success",
		DurationMS: float64(time.Since(start).Milliseconds()),
	}
	if opErr != nil {
		sig.Outcome = "Failure"
		sig.Ctx = &opErr.Ctx
	}
	bridge.Emplace(sig)
	_ = sink.WriteSignal(sig, time.Now())
}
