package store

import (
	"strconv"
	"sync"

	"github.com/pkg/errors"
)

// InMemoryRepository is a test-only Repository.
type InMemoryRepository struct {
	mu          sync.Mutex
	stores      map[string]*Store
	refreshes   int
	refreshFunc func() error
}

// NewInMemoryRepository returns a repository seeded with stores.
func NewInMemoryRepository(stores ...*Store) *InMemoryRepository {
	m := make(map[string]*Store, len(stores))
	for _, s := range stores {
		m[s.Name] = s
	}
	return &InMemoryRepository{stores: m}
}

func (r *InMemoryRepository) GetStore(storeName string) (*Store, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.stores[storeName]
	if !ok {
		return nil, nil
	}
	return s, nil
}

func (r *InMemoryRepository) UpdateStore(s *Store) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.stores[s.Name]; !ok {
		return errors.Errorf("unknown store %s", s.Name)
	}
	r.stores[s.Name] = s
	return nil
}

func (r *InMemoryRepository) Refresh() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refreshes++
	if r.refreshFunc != nil {
		return r.refreshFunc()
	}
	return nil
}

// RefreshCount reports how many times Refresh was called, for asserting
// the "refresh exactly once on store miss" rule in tests.
func (r *InMemoryRepository) RefreshCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.refreshes
}

// SeedAfterRefresh installs s into the repository the next time Refresh is
// called, simulating a store that only becomes visible after a reload.
func (r *InMemoryRepository) SeedAfterRefresh(s *Store) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refreshFunc = func() error {
		r.stores[s.Name] = s
		return nil
	}
}

// FakeCleaner is a test-only Cleaner recording invocations.
type FakeCleaner struct {
	mu                    sync.Mutex
	DeletedVersions       []string
	CleanedUpTopics       []string
	RetiredStores         []string
	DeleteOneStoreVersionErr error
}

func (f *FakeCleaner) DeleteOneStoreVersion(storeName string, versionNumber int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.DeleteOneStoreVersionErr != nil {
		return f.DeleteOneStoreVersionErr
	}
	f.DeletedVersions = append(f.DeletedVersions, key(storeName, versionNumber))
	return nil
}

func (f *FakeCleaner) TopicCleanupWhenPushComplete(storeName string, versionNumber int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CleanedUpTopics = append(f.CleanedUpTopics, key(storeName, versionNumber))
	return nil
}

func (f *FakeCleaner) RetireOldStoreVersions(storeName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.RetiredStores = append(f.RetiredStores, storeName)
	return nil
}

func key(storeName string, versionNumber int) string {
	return storeName + "#" + strconv.Itoa(versionNumber)
}

// FakeReplicator is a test-only Replicator.
type FakeReplicator struct {
	mu       sync.Mutex
	Calls    int
	Err      error
	LastArgs [3]string
}

func (f *FakeReplicator) PrepareAndStartReplication(realTimeTopic, versionTopic string, s *Store) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls++
	f.LastArgs = [3]string{realTimeTopic, versionTopic, s.Name}
	return f.Err
}
