package pushmonitor

import (
	"sort"

	"github.com/go-kit/log/level"

	"github.com/jgeraigery/venice/internal/pushmonitor/status"
	"github.com/jgeraigery/venice/internal/pushmonitor/topicname"
)

// retireOldErrorPushesLocked is the retention gardener: while the store
// has more tracked versions than cfg.MaxPushToKeep and at least one of
// them is in ERROR, the smallest-versioned ERROR push is dropped.
// Ordering is by version number, not by time, so the outcome is
// deterministic across restarts. Must be called with mu held.
func (m *Monitor) retireOldErrorPushesLocked(storeName string) {
	type versionedPush struct {
		version int
		topic   string
	}

	var versions []versionedPush
	for topic, p := range m.pushes {
		s, v, ok := topicname.Parse(topic)
		if !ok || s != storeName {
			continue
		}
		versions = append(versions, versionedPush{version: v, topic: topic})
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i].version < versions[j].version })

	for len(versions) > m.cfg.MaxPushToKeep {
		errIdx := -1
		for i, v := range versions {
			if m.pushes[v.topic].CurrentStatus == status.Error {
				errIdx = i
				break
			}
		}
		if errIdx < 0 {
			break // nothing left in ERROR to drop
		}

		victim := versions[errIdx]
		p := m.pushes[victim.topic]
		m.cleanupPushLocked(p)
		if err := m.acc.DeleteOfflinePushStatusAndItsPartitionStatuses(p); err != nil {
			level.Error(m.logger).Log("msg", "failed to delete retired error push", "topic", victim.topic, "err", err)
		}
		level.Info(m.logger).Log("msg", "retired error push", "topic", victim.topic, "store", storeName)

		versions = append(versions[:errIdx], versions[errIdx+1:]...)
	}

	m.publishSnapshotLocked()
}
