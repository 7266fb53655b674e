package pushmonitor

import (
	"github.com/go-kit/log/level"

	"github.com/jgeraigery/venice/internal/pushmonitor/status"
	"github.com/jgeraigery/venice/internal/pushmonitor/topicname"
)

// LoadAllPushes reconstructs the in-memory map from a durably-persisted
// snapshot on controller startup. For every push, the routing
// subscription is acquired before this function re-derives anything about
// current partition assignment, so there is no gap in which a routing
// event could be missed. A push whose topic has since vanished from
// routing entirely is logged as legacy and kept, never deleted: deleting
// it here would cause premature data loss across controller failovers.
func (m *Monitor) LoadAllPushes(initialList []*status.OfflinePushStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	touchedStores := make(map[string]bool)

	for _, loaded := range initialList {
		p := loaded.Clone()

		if err := m.routingSub.SubscribeRoutingDataChange(p.Topic, m); err != nil {
			level.Error(m.logger).Log("msg", "failed to subscribe routing data change while loading push", "topic", p.Topic, "err", err)
			continue
		}

		if storeName, _, ok := topicname.Parse(p.Topic); ok {
			touchedStores[storeName] = true
		}

		if p.IsTerminal() {
			// A terminal push never keeps an active subscription; it is
			// kept in the map purely so the retention pass below can see
			// it.
			if err := m.routingSub.UnsubscribeRoutingDataChange(p.Topic, m); err != nil {
				level.Warn(m.logger).Log("msg", "failed to unsubscribe routing data change for terminal push", "topic", p.Topic, "err", err)
			}
			m.pushes[p.Topic] = p
			continue
		}

		m.pushes[p.Topic] = p
		if err := m.acc.SubscribePartitionStatusChange(p, m); err != nil {
			level.Error(m.logger).Log("msg", "failed to subscribe partition status change while loading push", "topic", p.Topic, "err", err)
		}

		if !m.routingSub.ContainsKafkaTopic(p.Topic) {
			level.Warn(m.logger).Log("msg", "push references a topic absent from routing; treating as legacy", "topic", p.Topic)
			continue
		}

		assignment, err := m.routingSub.GetPartitionAssignments(p.Topic)
		if err != nil {
			level.Error(m.logger).Log("msg", "failed to read partition assignment while loading push", "topic", p.Topic, "err", err)
			continue
		}

		d, ok := m.deciders.Get(p.Strategy)
		if !ok {
			level.Error(m.logger).Log("msg", "no decider registered for strategy", "topic", p.Topic, "strategy", p.Strategy)
			continue
		}

		decided, detail := d.CheckPushStatusAndDetails(p, assignment)
		if decided.IsTerminal() {
			m.handleOfflinePushUpdateLocked(p, decided, detail)
		}
	}

	m.publishSnapshotLocked()

	for storeName := range touchedStores {
		m.retireOldErrorPushesLocked(storeName)
	}

	return nil
}
