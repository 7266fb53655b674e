package pushmonitor

import (
	"fmt"
	"runtime/debug"

	"github.com/go-kit/log/level"

	"github.com/jgeraigery/venice/internal/pushmonitor/optional"
	"github.com/jgeraigery/venice/internal/pushmonitor/status"
	"github.com/jgeraigery/venice/internal/pushmonitor/store"
	"github.com/jgeraigery/venice/internal/pushmonitor/topicname"
)

// updatePushStatusLocked clones p, validates and applies the transition on
// the clone, persists the clone durably, and only then swaps it into the
// map. An illegal transition, or a failed durable write, is logged and
// the map is left untouched — durable state must never trail in-memory
// state, so a persist failure cannot be papered over by applying the
// change in memory anyway. Must be called with mu held.
func (m *Monitor) updatePushStatusLocked(p *status.OfflinePushStatus, newStatus status.ExecutionStatus, details optional.Optional[string]) (*status.OfflinePushStatus, bool) {
	clone := p.Clone()
	if err := clone.UpdateStatus(newStatus, details); err != nil {
		level.Warn(m.logger).Log("msg", "skipping illegal push status transition", "topic", p.Topic, "from", p.CurrentStatus, "to", newStatus, "err", err)
		return p, false
	}

	if err := m.acc.UpdateOfflinePushStatus(clone); err != nil {
		level.Error(m.logger).Log("msg", "failed to persist push status update", "topic", p.Topic, "to", newStatus, "err", err)
		return p, false
	}

	m.pushes[clone.Topic] = clone
	m.publishSnapshotLocked()
	return clone, true
}

// handleOfflinePushUpdateLocked applies a terminal status transition and
// its downstream side effects. Must be called with mu held, and only
// with a terminal newStatus
// (COMPLETED or ERROR) — non-terminal transitions (e.g. the hybrid
// buffer-replay EndOfPushReceived kickoff) go through updatePushStatusLocked
// directly so routing stays subscribed.
func (m *Monitor) handleOfflinePushUpdateLocked(p *status.OfflinePushStatus, newStatus status.ExecutionStatus, details optional.Optional[string]) {
	// Unsubscribing first guarantees no late routing event can reopen a
	// terminal state, even if this call itself turns out to be a no-op
	// (e.g. a second markOfflinePushAsError on an already-ERROR push).
	if err := m.routingSub.UnsubscribeRoutingDataChange(p.Topic, m); err != nil {
		level.Warn(m.logger).Log("msg", "failed to unsubscribe routing data change", "topic", p.Topic, "err", err)
	}

	updated, changed := m.updatePushStatusLocked(p, newStatus, details)
	if !changed {
		return
	}

	switch newStatus {
	case status.Completed:
		m.handleCompletedPushLocked(updated)
	case status.Error:
		m.handleErrorPushLocked(updated, details)
	}
}

func (m *Monitor) handleCompletedPushLocked(p *status.OfflinePushStatus) {
	storeName, versionNumber, ok := topicname.Parse(p.Topic)
	if !ok {
		level.Error(m.logger).Log("msg", "cannot parse store name from topic", "topic", p.Topic)
		return
	}

	s, err := m.storeRepo.GetStore(storeName)
	if err != nil || s == nil {
		level.Error(m.logger).Log("msg", "store missing while completing push", "store", storeName, "topic", p.Topic, "err", err)
	} else {
		if v := s.GetVersion(versionNumber); v != nil {
			if s.WritesDisabled {
				v.Status = store.VersionPushed
			} else {
				v.Status = store.VersionOnline
			}
		}
		if versionNumber > s.CurrentVersion {
			s.CurrentVersion = versionNumber
		}
		if err := m.storeRepo.UpdateStore(s); err != nil {
			level.Error(m.logger).Log("msg", "failed to persist store after push completion", "store", storeName, "err", err)
		}
		if s.MetadataSystemStoreEnabled {
			level.Info(m.logger).Log("msg", "emitting current version state record", "store", storeName, "version", versionNumber)
		}
	}

	m.healthSink.RecordPushCompleted(storeName, nowSec()-p.StartTimeSec)

	m.bestEffort("topicCleanupWhenPushComplete", func() error {
		return m.cleaner.TopicCleanupWhenPushComplete(storeName, versionNumber)
	})
	m.bestEffort("retireOldStoreVersions", func() error {
		return m.cleaner.RetireOldStoreVersions(storeName)
	})
}

func (m *Monitor) handleErrorPushLocked(p *status.OfflinePushStatus, details optional.Optional[string]) {
	storeName, versionNumber, ok := topicname.Parse(p.Topic)
	if !ok {
		level.Error(m.logger).Log("msg", "cannot parse store name from topic", "topic", p.Topic)
		return
	}

	if _, present := details.Get(); !present {
		level.Error(m.logger).Log("msg", "missing status details on ERROR terminal transition", "topic", p.Topic, "stack", string(debug.Stack()))
	}

	var isMetadataSystemStore bool
	s, err := m.storeRepo.GetStore(storeName)
	if err != nil || s == nil {
		level.Error(m.logger).Log("msg", "store missing while failing push", "store", storeName, "topic", p.Topic, "err", err)
	} else {
		isMetadataSystemStore = s.IsMetadataSystemStore
		if v := s.GetVersion(versionNumber); v != nil {
			v.Status = store.VersionError
		}
		if err := m.storeRepo.UpdateStore(s); err != nil {
			level.Error(m.logger).Log("msg", "failed to persist store after push error", "store", storeName, "err", err)
		}
	}

	m.healthSink.RecordPushFailed(storeName, nowSec()-p.StartTimeSec)

	if !isMetadataSystemStore {
		m.bestEffort("deleteOneStoreVersion", func() error {
			return m.cleaner.DeleteOneStoreVersion(storeName, versionNumber)
		})
	}

	m.retireOldErrorPushesLocked(storeName)
}

// bestEffort runs fn, logging (and recovering from a panic in) any
// failure rather than letting it abort the terminal-handling path that
// called it. An accessor/cleaner I/O failure here is treated as
// transient: the next retention pass will re-collect whatever was left
// dangling.
func (m *Monitor) bestEffort(name string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			level.Error(m.logger).Log("msg", "panic in best-effort terminal side effect", "name", name, "panic", fmt.Sprint(r))
		}
	}()
	if err := fn(); err != nil {
		level.Error(m.logger).Log("msg", "best-effort terminal side effect failed", "name", name, "err", err)
	}
}
