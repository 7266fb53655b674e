package pushmonitor

import (
	"fmt"

	"github.com/go-kit/log/level"

	"github.com/jgeraigery/venice/internal/pushmonitor/optional"
	"github.com/jgeraigery/venice/internal/pushmonitor/routing"
	"github.com/jgeraigery/venice/internal/pushmonitor/status"
	"github.com/jgeraigery/venice/internal/pushmonitor/store"
	"github.com/jgeraigery/venice/internal/pushmonitor/topicname"
)

// OnPartitionStatusChange implements accessor.PartitionStatusListener. A
// replica reporting progress for a topic the monitor isn't tracking (for
// example one an in-flight event still names after the push was removed)
// is dropped with a rate-limited warning; such events are not buffered.
func (m *Monitor) OnPartitionStatusChange(topic string, partitionStatus *status.PartitionStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.pushes[topic]
	if !ok {
		m.logWarn("dropping partition status change for unknown topic", "topic", topic)
		return
	}

	clone := p.Clone()
	clone.Partitions[partitionStatus.PartitionID] = partitionStatus.Clone()
	m.pushes[topic] = clone
	m.publishSnapshotLocked()

	m.checkWhetherToStartBufferReplayForHybridLocked(clone)
}

// OnExternalViewChange implements routing.Listener. Non-terminal
// decisions observed here are intentionally not applied: only a terminal
// decision that differs from the current status triggers
// handleOfflinePushUpdate.
func (m *Monitor) OnExternalViewChange(assignment routing.PartitionAssignment) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.pushes[assignment.Topic]
	if !ok {
		m.logWarn("dropping external view change for unknown topic", "topic", assignment.Topic)
		return
	}
	if p.IsTerminal() {
		return
	}

	d, ok := m.deciders.Get(p.Strategy)
	if !ok {
		level.Error(m.logger).Log("msg", "no decider registered for strategy", "topic", p.Topic, "strategy", p.Strategy)
		return
	}

	decided, detail := d.CheckPushStatusAndDetails(p, assignment)
	if decided.IsTerminal() && decided != p.CurrentStatus {
		m.handleOfflinePushUpdateLocked(p, decided, detail)
	}
}

// OnRoutingDataDeleted implements routing.Listener. The initial map
// lookup is read-locked; if it turns out a mutation is needed, the read
// lock is released and the write lock re-acquired, with the push's state
// re-validated under the write lock before acting, since sync.RWMutex
// offers no atomic upgrade from a read lock to a write lock.
func (m *Monitor) OnRoutingDataDeleted(topic string) {
	if m.routingSub.DoesResourceExistInIdealState(topic) {
		return // the cluster manager will recover it
	}

	m.mu.RLock()
	p, ok := m.pushes[topic]
	m.mu.RUnlock()
	if !ok || p.CurrentStatus != status.Started {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok = m.pushes[topic]
	if !ok || p.CurrentStatus != status.Started {
		return
	}
	m.handleOfflinePushUpdateLocked(p, status.Error, optional.Some(fmt.Sprintf("Helix resource %s is deleted", topic)))
}

// checkWhetherToStartBufferReplayForHybridLocked implements the hybrid
// buffer-replay kickoff. Must be called with mu held.
func (m *Monitor) checkWhetherToStartBufferReplayForHybridLocked(p *status.OfflinePushStatus) {
	storeName, _, ok := topicname.Parse(p.Topic)
	if !ok {
		level.Error(m.logger).Log("msg", "cannot parse store name from topic", "topic", p.Topic)
		return
	}

	s, err := m.getStoreWithRefresh(storeName)
	if err != nil {
		level.Error(m.logger).Log("msg", "store lookup failed while checking buffer replay readiness", "store", storeName, "topic", p.Topic, "err", err)
		return
	}
	if !s.IsHybrid {
		return
	}
	if !p.IsReadyToStartBufferReplay() {
		return
	}

	switch {
	case m.replicator != nil:
		if err := m.safeStartReplication(s.RealTimeTopic, p.Topic, s); err != nil {
			level.Error(m.logger).Log("msg", "failed to kick off buffer replay", "topic", p.Topic, "err", err)
			m.handleOfflinePushUpdateLocked(p, status.Error, optional.Some("Failed to kick off the buffer replay"))
			return
		}
		m.updatePushStatusLocked(p, status.EndOfPushReceived, optional.Some("kicked off buffer replay"))

	case m.cfg.SkipBufferReplayForHybrid:
		m.updatePushStatusLocked(p, status.EndOfPushReceived, optional.Some("skipped buffer replay"))

	default:
		m.handleOfflinePushUpdateLocked(p, status.Error, optional.Some("The TopicReplicator was not properly initialized!"))
	}
}

// safeStartReplication recovers a panicking replicator, converting it
// into an error instead of taking the monitor's write lock holder down
// with it.
func (m *Monitor) safeStartReplication(realTimeTopic, versionTopic string, s *store.Store) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic starting buffer replay: %v", r)
		}
	}()
	return m.replicator.PrepareAndStartReplication(realTimeTopic, versionTopic, s)
}

// getStoreWithRefresh looks up storeName, refreshing the repository
// exactly once on a miss before giving up. A miss that survives the
// refresh returns ErrFatalStoreMissing; the buffer-replay caller, being on
// the event path, logs it and leaves the push's status as it is.
func (m *Monitor) getStoreWithRefresh(storeName string) (*store.Store, error) {
	s, err := m.storeRepo.GetStore(storeName)
	if err != nil {
		return nil, err
	}
	if s != nil {
		return s, nil
	}

	if err := m.storeRepo.Refresh(); err != nil {
		return nil, err
	}

	s, err = m.storeRepo.GetStore(storeName)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, ErrFatalStoreMissing
	}
	return s, nil
}
