// Package pushmonitor is the cluster-scoped control-plane component that
// tracks the lifecycle of offline pushes: it aggregates per-partition
// replica progress from the durable accessor and routing layer, decides
// when a push reaches a terminal state, persists that decision, and
// drives the store metadata registry and its cleanup collaborators.
package pushmonitor

import (
	"sync"
	"sync/atomic"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/jgeraigery/venice/internal/pushmonitor/accessor"
	"github.com/jgeraigery/venice/internal/pushmonitor/decider"
	"github.com/jgeraigery/venice/internal/pushmonitor/health"
	"github.com/jgeraigery/venice/internal/pushmonitor/routing"
	"github.com/jgeraigery/venice/internal/pushmonitor/status"
	"github.com/jgeraigery/venice/internal/pushmonitor/store"
)

// Monitor is the cluster-scoped orchestrator that tracks offline push
// lifecycle. A single Monitor instance owns the topic->push map behind a
// fair read/write lock (Go's sync.RWMutex blocks new readers once a
// writer is waiting, which is the starvation-prevention property this
// component relies on — see DESIGN.md).
//
// Monitor implements both accessor.PartitionStatusListener and
// routing.Listener; it subscribes itself to both feeds per push.
type Monitor struct {
	cfg    Config
	logger log.Logger
	warn   *rateLimitedLogger

	acc        accessor.Accessor
	routingSub routing.Subscription
	storeRepo  store.Repository
	cleaner    store.Cleaner
	replicator store.Replicator // nil means "not configured"
	healthSink health.Sink
	deciders   *decider.Registry

	mu     sync.RWMutex
	pushes map[string]*status.OfflinePushStatus

	// snapshot publishes a point-in-time copy of pushes for the one read
	// path that is exempt from locking (GetOfflinePushProgress). It is
	// replaced, never mutated, every time pushes changes under mu, so
	// readers never observe a partially written map.
	snapshot atomic.Pointer[map[string]*status.OfflinePushStatus]
}

// New builds a Monitor. replicator may be nil if no TopicReplicator is
// configured for this cluster; that is a legitimate, if degraded,
// configuration the hybrid buffer-replay path handles explicitly.
func New(
	cfg Config,
	logger log.Logger,
	acc accessor.Accessor,
	routingSub routing.Subscription,
	storeRepo store.Repository,
	cleaner store.Cleaner,
	replicator store.Replicator,
	healthSink health.Sink,
	deciders *decider.Registry,
) *Monitor {
	if logger == nil {
		logger = log.NewNopLogger()
	}

	m := &Monitor{
		cfg:        cfg,
		logger:     logger,
		warn:       newRateLimitedLogger(cfg.UnknownTopicWarnLimit, logger),
		acc:        acc,
		routingSub: routingSub,
		storeRepo:  storeRepo,
		cleaner:    cleaner,
		replicator: replicator,
		healthSink: healthSink,
		deciders:   deciders,
		pushes:     make(map[string]*status.OfflinePushStatus),
	}
	m.publishSnapshotLocked()
	return m
}

// publishSnapshotLocked must be called with mu held (for read or write;
// in practice only writers call it) after every change to pushes.
func (m *Monitor) publishSnapshotLocked() {
	cp := make(map[string]*status.OfflinePushStatus, len(m.pushes))
	for k, v := range m.pushes {
		cp[k] = v
	}
	m.snapshot.Store(&cp)
}

func (m *Monitor) logWarn(msg string, keyvals ...interface{}) {
	args := append([]interface{}{"msg", msg}, keyvals...)
	level.Warn(m.warn).Log(args...)
}
