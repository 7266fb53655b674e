package pushmonitor

import (
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"

	"github.com/jgeraigery/venice/internal/pushmonitor/optional"
	"github.com/jgeraigery/venice/internal/pushmonitor/routing"
	"github.com/jgeraigery/venice/internal/pushmonitor/status"
	"github.com/jgeraigery/venice/internal/pushmonitor/topicname"
)

// StartMonitorOfflinePush begins tracking a new push for topic. If the
// topic already has a push in ERROR it is cleaned up first; any other
// live push for the topic is an IllegalState error.
func (m *Monitor) StartMonitorOfflinePush(topic string, partitionCount, replicationFactor int, strategy status.Strategy) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.pushes[topic]; ok {
		if existing.CurrentStatus != status.Error {
			return errAlreadyExists(topic)
		}
		m.cleanupPushLocked(existing)
		m.publishSnapshotLocked()
	}

	p := status.New(topic, partitionCount, replicationFactor, strategy, nowSec())
	if err := p.UpdateStatus(status.Started, optional.None[string]()); err != nil {
		return errors.Wrapf(err, "failed to start push %s", topic)
	}

	if err := m.acc.CreateOfflinePushStatusAndItsPartitionStatuses(p); err != nil {
		return errors.Wrapf(err, "failed to persist new push status for topic %s", topic)
	}

	if err := m.subscribeBothLocked(p); err != nil {
		// Roll back the durable create so a failed start doesn't leave a
		// ghost STARTED push nothing is watching.
		if delErr := m.acc.DeleteOfflinePushStatusAndItsPartitionStatuses(p); delErr != nil {
			level.Error(m.logger).Log("msg", "failed to roll back push status after subscribe failure", "topic", topic, "err", delErr)
		}
		return errors.Wrapf(err, "failed to subscribe to push %s", topic)
	}

	m.pushes[topic] = p
	m.publishSnapshotLocked()
	level.Info(m.logger).Log("msg", "started monitoring push", "topic", topic, "partitions", partitionCount, "replication_factor", replicationFactor, "strategy", strategy)
	return nil
}

// subscribeBothLocked acquires the partition-status and routing
// subscriptions atomically: if routing fails, the partition-status
// subscription is rolled back so the push never ends up subscribed to
// exactly one of the two feeds.
func (m *Monitor) subscribeBothLocked(p *status.OfflinePushStatus) error {
	if err := m.acc.SubscribePartitionStatusChange(p, m); err != nil {
		return errors.Wrap(err, "partition status subscribe failed")
	}
	if err := m.routingSub.SubscribeRoutingDataChange(p.Topic, m); err != nil {
		if unsubErr := m.acc.UnsubscribePartitionStatusChange(p, m); unsubErr != nil {
			level.Error(m.logger).Log("msg", "failed to roll back partition status subscription", "topic", p.Topic, "err", unsubErr)
		}
		return errors.Wrap(err, "routing data subscribe failed")
	}
	return nil
}

// cleanupPushLocked unsubscribes both feeds (idempotent if one or both are
// already gone) and removes p from the in-memory map. It does not delete
// durably; callers that want that also call m.acc.Delete... themselves.
func (m *Monitor) cleanupPushLocked(p *status.OfflinePushStatus) {
	if err := m.routingSub.UnsubscribeRoutingDataChange(p.Topic, m); err != nil {
		level.Warn(m.logger).Log("msg", "failed to unsubscribe routing data change during cleanup", "topic", p.Topic, "err", err)
	}
	if err := m.acc.UnsubscribePartitionStatusChange(p, m); err != nil {
		level.Warn(m.logger).Log("msg", "failed to unsubscribe partition status change during cleanup", "topic", p.Topic, "err", err)
	}
	delete(m.pushes, p.Topic)
}

// StopMonitorOfflinePush stops tracking topic. An ERROR push is routed
// through retention instead of being removed outright; any other push is
// removed, and durably deleted only if deletePushStatus is set. An
// unknown topic is logged, not returned as an error.
func (m *Monitor) StopMonitorOfflinePush(topic string, deletePushStatus bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.pushes[topic]
	if !ok {
		level.Warn(m.logger).Log("msg", "stopMonitorOfflinePush called for unknown topic", "topic", topic)
		return nil
	}

	if err := m.routingSub.UnsubscribeRoutingDataChange(topic, m); err != nil {
		level.Warn(m.logger).Log("msg", "failed to unsubscribe routing data change", "topic", topic, "err", err)
	}
	if err := m.acc.UnsubscribePartitionStatusChange(p, m); err != nil {
		level.Warn(m.logger).Log("msg", "failed to unsubscribe partition status change", "topic", topic, "err", err)
	}

	if p.CurrentStatus == status.Error {
		storeName, _, ok := topicname.Parse(topic)
		if ok {
			m.retireOldErrorPushesLocked(storeName)
		}
		return nil
	}

	delete(m.pushes, topic)
	m.publishSnapshotLocked()

	if deletePushStatus {
		if err := m.acc.DeleteOfflinePushStatusAndItsPartitionStatuses(p); err != nil {
			return errors.Wrapf(err, "failed to delete push status for topic %s", topic)
		}
	}
	return nil
}

// StopAllMonitoring best-effort stops every tracked push with
// deletePushStatus=false. A failure stopping one push is logged and does
// not abort the loop.
func (m *Monitor) StopAllMonitoring() {
	m.mu.RLock()
	topics := make([]string, 0, len(m.pushes))
	for t := range m.pushes {
		topics = append(topics, t)
	}
	m.mu.RUnlock()

	for _, topic := range topics {
		if err := m.StopMonitorOfflinePush(topic, false); err != nil {
			level.Error(m.logger).Log("msg", "failed to stop monitoring push", "topic", topic, "err", err)
		}
	}
}

// CleanupStoreStatus removes and durably deletes every push belonging to
// storeName, unconditionally.
func (m *Monitor) CleanupStoreStatus(storeName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	for topic, p := range m.pushes {
		s, _, ok := topicname.Parse(topic)
		if !ok || s != storeName {
			continue
		}
		m.cleanupPushLocked(p)
		if err := m.acc.DeleteOfflinePushStatusAndItsPartitionStatuses(p); err != nil && firstErr == nil {
			firstErr = errors.Wrapf(err, "failed to delete push status for topic %s", topic)
		}
	}
	m.publishSnapshotLocked()
	return firstErr
}

// GetOfflinePush returns a logical clone of the tracked push for topic.
func (m *Monitor) GetOfflinePush(topic string) (*status.OfflinePushStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.pushes[topic]
	if !ok {
		return nil, errNotFound(topic)
	}
	return p.Clone(), nil
}

// GetPushStatusAndDetails returns the overall status, or, if
// incrementalVersion is present, the tracked status of that specific
// incremental push layered on top of the (necessarily already-COMPLETED)
// version.
func (m *Monitor) GetPushStatusAndDetails(topic string, incrementalVersion optional.Optional[string]) (status.ExecutionStatus, optional.Optional[string]) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.pushes[topic]
	if !ok {
		return status.NotCreated, optional.None[string]()
	}

	if v, present := incrementalVersion.Get(); present {
		return p.GetIncrementalPushStatus(v), optional.None[string]()
	}
	return p.CurrentStatus, p.StatusDetails
}

// GetTopicsOfOngoingOfflinePushes returns the topics currently in STARTED.
func (m *Monitor) GetTopicsOfOngoingOfflinePushes() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var topics []string
	for topic, p := range m.pushes {
		if p.CurrentStatus == status.Started {
			topics = append(topics, topic)
		}
	}
	return topics
}

// GetOfflinePushProgress returns replicaID -> messagesConsumed for topic,
// with replicas on dead instances filtered out. This is the one read path
// that takes no lock: it reads the lock-free snapshot published by the
// write path and tolerates being slightly stale.
func (m *Monitor) GetOfflinePushProgress(topic string) (map[string]int64, error) {
	snap := m.snapshot.Load()
	if snap == nil {
		return nil, errNotFound(topic)
	}

	p, ok := (*snap)[topic]
	if !ok {
		return nil, errNotFound(topic)
	}

	progress := p.Progress() // already a defensive copy
	live := m.routingSub.GetLiveInstancesMap()

	for replicaID := range progress {
		_, instanceID := status.ParseReplicaID(replicaID)
		if !live[instanceID] {
			delete(progress, replicaID)
		}
	}
	return progress, nil
}

// MarkOfflinePushAsError forces topic into ERROR with details. A missing
// topic is logged, not returned as an error.
func (m *Monitor) MarkOfflinePushAsError(topic, details string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.pushes[topic]
	if !ok {
		level.Warn(m.logger).Log("msg", "markOfflinePushAsError called for unknown topic", "topic", topic)
		return
	}
	m.handleOfflinePushUpdateLocked(p, status.Error, optional.Some(details))
}

// WouldJobFail is a pure dry run: it asks the decider what it would
// decide against a hypothetical partition assignment, without mutating
// any state, and reports whether that decision is ERROR.
func (m *Monitor) WouldJobFail(topic string, hypotheticalAssignment routing.PartitionAssignment) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.pushes[topic]
	if !ok {
		return false, errNotFound(topic)
	}

	d, ok := m.deciders.Get(p.Strategy)
	if !ok {
		return false, errors.Errorf("no decider registered for strategy %q", p.Strategy)
	}

	decided, _ := d.CheckPushStatusAndDetails(p, hypotheticalAssignment)
	return decided == status.Error, nil
}
