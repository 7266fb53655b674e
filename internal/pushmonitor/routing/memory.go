package routing

import (
	"sync"

	"github.com/pkg/errors"
)

// InMemory is a test-only Subscription implementation.
type InMemory struct {
	mu               sync.Mutex
	assignments      map[string]PartitionAssignment
	idealStateExists map[string]bool
	liveInstances    map[string]bool
	listeners        map[string][]Listener
}

// NewInMemory returns an in-memory routing subscription with no topics
// registered.
func NewInMemory() *InMemory {
	return &InMemory{
		assignments:      make(map[string]PartitionAssignment),
		idealStateExists: make(map[string]bool),
		liveInstances:    make(map[string]bool),
		listeners:        make(map[string][]Listener),
	}
}

func (m *InMemory) SubscribeRoutingDataChange(topic string, listener Listener) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners[topic] = append(m.listeners[topic], listener)
	return nil
}

func (m *InMemory) UnsubscribeRoutingDataChange(topic string, listener Listener) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ls := m.listeners[topic]
	for i, l := range ls {
		if l == listener {
			m.listeners[topic] = append(ls[:i], ls[i+1:]...)
			break
		}
	}
	return nil
}

func (m *InMemory) ContainsKafkaTopic(topic string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.assignments[topic]
	return ok
}

func (m *InMemory) DoesResourceExistInIdealState(topic string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.idealStateExists[topic]
}

func (m *InMemory) GetPartitionAssignments(topic string) (PartitionAssignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assignments[topic]
	if !ok {
		return PartitionAssignment{}, errors.Errorf("no partition assignment for topic %s", topic)
	}
	return a, nil
}

func (m *InMemory) GetLiveInstancesMap() map[string]bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]bool, len(m.liveInstances))
	for k, v := range m.liveInstances {
		out[k] = v
	}
	return out
}

// --- test/fixture setup helpers ---

// SetIdealState records whether topic is present in the ideal state.
func (m *InMemory) SetIdealState(topic string, exists bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.idealStateExists[topic] = exists
}

// SetLiveInstance marks instanceID as live or dead.
func (m *InMemory) SetLiveInstance(instanceID string, live bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.liveInstances[instanceID] = live
}

// PushExternalViewChange records a new assignment and fires
// OnExternalViewChange to every listener subscribed to its topic.
func (m *InMemory) PushExternalViewChange(assignment PartitionAssignment) {
	m.mu.Lock()
	m.assignments[assignment.Topic] = assignment
	ls := append([]Listener(nil), m.listeners[assignment.Topic]...)
	m.mu.Unlock()

	for _, l := range ls {
		l.OnExternalViewChange(assignment)
	}
}

// DeleteRoutingData fires OnRoutingDataDeleted to every listener
// subscribed to topic, simulating the routing repository observing the
// resource disappear.
func (m *InMemory) DeleteRoutingData(topic string) {
	m.mu.Lock()
	delete(m.assignments, topic)
	ls := append([]Listener(nil), m.listeners[topic]...)
	m.mu.Unlock()

	for _, l := range ls {
		l.OnRoutingDataDeleted(topic)
	}
}
