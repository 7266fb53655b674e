package accessor

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/jgeraigery/venice/internal/pushmonitor/status"
)

// InMemory is a test-only Accessor backed by a map, standing in for the
// real KV-store client. It is safe for concurrent use.
type InMemory struct {
	mu        sync.Mutex
	byTopic   map[string]*status.OfflinePushStatus
	listeners map[string][]PartitionStatusListener
}

// NewInMemory returns an empty in-memory accessor.
func NewInMemory() *InMemory {
	return &InMemory{
		byTopic:   make(map[string]*status.OfflinePushStatus),
		listeners: make(map[string][]PartitionStatusListener),
	}
}

func (m *InMemory) CreateOfflinePushStatusAndItsPartitionStatuses(push *status.OfflinePushStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byTopic[push.Topic] = push.Clone()
	return nil
}

func (m *InMemory) UpdateOfflinePushStatus(push *status.OfflinePushStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byTopic[push.Topic]; !ok {
		return errors.Errorf("update of unknown topic %s", push.Topic)
	}
	m.byTopic[push.Topic] = push.Clone()
	return nil
}

func (m *InMemory) DeleteOfflinePushStatusAndItsPartitionStatuses(push *status.OfflinePushStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byTopic, push.Topic)
	delete(m.listeners, push.Topic)
	return nil
}

func (m *InMemory) LoadOfflinePushStatusesAndPartitionStatuses() ([]*status.OfflinePushStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*status.OfflinePushStatus, 0, len(m.byTopic))
	for _, p := range m.byTopic {
		out = append(out, p.Clone())
	}
	return out, nil
}

func (m *InMemory) GetOfflinePushStatusAndItsPartitionStatuses(topic string) (*status.OfflinePushStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byTopic[topic]
	if !ok {
		return nil, errors.Errorf("no status persisted for topic %s", topic)
	}
	return p.Clone(), nil
}

func (m *InMemory) SubscribePartitionStatusChange(push *status.OfflinePushStatus, listener PartitionStatusListener) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners[push.Topic] = append(m.listeners[push.Topic], listener)
	return nil
}

func (m *InMemory) UnsubscribePartitionStatusChange(push *status.OfflinePushStatus, listener PartitionStatusListener) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ls := m.listeners[push.Topic]
	for i, l := range ls {
		if l == listener {
			m.listeners[push.Topic] = append(ls[:i], ls[i+1:]...)
			break
		}
	}
	return nil
}

// FirePartitionStatusChange is a test helper simulating a replica progress
// report arriving from the durable accessor's watcher thread.
func (m *InMemory) FirePartitionStatusChange(topic string, ps *status.PartitionStatus) {
	m.mu.Lock()
	ls := append([]PartitionStatusListener(nil), m.listeners[topic]...)
	m.mu.Unlock()

	for _, l := range ls {
		l.OnPartitionStatusChange(topic, ps)
	}
}
