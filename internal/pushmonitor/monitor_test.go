package pushmonitor

import (
	"strconv"
	"sync"
	"testing"

	"github.com/go-kit/log"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/jgeraigery/venice/internal/pushmonitor/accessor"
	"github.com/jgeraigery/venice/internal/pushmonitor/decider"
	"github.com/jgeraigery/venice/internal/pushmonitor/health"
	"github.com/jgeraigery/venice/internal/pushmonitor/optional"
	"github.com/jgeraigery/venice/internal/pushmonitor/routing"
	"github.com/jgeraigery/venice/internal/pushmonitor/status"
	"github.com/jgeraigery/venice/internal/pushmonitor/store"
)

type harness struct {
	m         *Monitor
	acc       *accessor.InMemory
	routingS  *routing.InMemory
	storeRepo *store.InMemoryRepository
	cleaner   *store.FakeCleaner
	replicato *store.FakeReplicator
	healthS   *health.NoOp
}

func newHarness(t *testing.T, stores ...*store.Store) *harness {
	t.Helper()
	h := &harness{
		acc:       accessor.NewInMemory(),
		routingS:  routing.NewInMemory(),
		storeRepo: store.NewInMemoryRepository(stores...),
		cleaner:   &store.FakeCleaner{},
		replicato: &store.FakeReplicator{},
		healthS:   &health.NoOp{},
	}
	cfg := Config{MaxPushToKeep: 5, UnknownTopicWarnLimit: 1000}
	h.m = New(cfg, log.NewNopLogger(), h.acc, h.routingS, h.storeRepo, h.cleaner, h.replicato, h.healthS, decider.NewRegistry())
	return h
}

func waitAllReplicasAssignment(topic string, partitionCount, replicationFactor int) routing.PartitionAssignment {
	parts := make(map[int][]string, partitionCount)
	for p := 0; p < partitionCount; p++ {
		var instances []string
		for r := 0; r < replicationFactor; r++ {
			instances = append(instances, instanceID(p, r))
		}
		parts[p] = instances
	}
	return routing.PartitionAssignment{Topic: topic, Partitions: parts}
}

func instanceID(partition, replica int) string {
	return "host-" + string(rune('a'+partition)) + "-" + string(rune('0'+replica))
}

// reportReplica fires a partition-status event for one replica. The monitor
// replaces the whole partition entry with the event, so the event carries
// the replicas already reported for that partition as well.
func reportReplica(t *testing.T, h *harness, topic string, partitionID int, instanceID string, st status.ExecutionStatus) {
	t.Helper()
	ps := status.NewPartitionStatus(partitionID)
	if current, err := h.m.GetOfflinePush(topic); err == nil {
		if existing, ok := current.Partitions[partitionID]; ok && existing != nil {
			ps = existing
		}
	}
	require.NoError(t, ps.SetReplicaStatus(status.BuildReplicaID(partitionID, instanceID), st, optional.None[string](), 0))
	h.acc.FirePartitionStatusChange(topic, ps)
}

func TestHappyPathCompletion(t *testing.T) {
	s := &store.Store{Name: "myStore", Versions: map[int]*store.Version{1: {Number: 1, Status: store.VersionStarted}}}
	h := newHarness(t, s)

	require.NoError(t, h.m.StartMonitorOfflinePush("myStore_v1", 2, 2, decider.WaitAllReplicas))
	h.routingS.SetIdealState("myStore_v1", true)

	for p := 0; p < 2; p++ {
		for r := 0; r < 2; r++ {
			reportReplica(t, h, "myStore_v1", p, instanceID(p, r), status.Completed)
		}
	}
	assignment := waitAllReplicasAssignment("myStore_v1", 2, 2)
	h.routingS.PushExternalViewChange(assignment)

	got, err := h.m.GetOfflinePush("myStore_v1")
	require.NoError(t, err)
	require.Equal(t, status.Completed, got.CurrentStatus)

	updatedStore, err := h.storeRepo.GetStore("myStore")
	require.NoError(t, err)
	require.Equal(t, store.VersionOnline, updatedStore.GetVersion(1).Status)
	require.Equal(t, 1, updatedStore.CurrentVersion)

	require.Contains(t, h.cleaner.CleanedUpTopics, "myStore#1")
	require.Contains(t, h.cleaner.RetiredStores, "myStore")
}

func TestFailurePathError(t *testing.T) {
	s := &store.Store{Name: "myStore", Versions: map[int]*store.Version{1: {Number: 1, Status: store.VersionStarted}}}
	h := newHarness(t, s)

	require.NoError(t, h.m.StartMonitorOfflinePush("myStore_v1", 1, 1, decider.WaitAllReplicas))
	h.routingS.SetIdealState("myStore_v1", true)

	reportReplica(t, h, "myStore_v1", 0, instanceID(0, 0), status.Error)
	assignment := waitAllReplicasAssignment("myStore_v1", 1, 1)
	h.routingS.PushExternalViewChange(assignment)

	got, err := h.m.GetOfflinePush("myStore_v1")
	require.NoError(t, err)
	require.Equal(t, status.Error, got.CurrentStatus)

	updatedStore, err := h.storeRepo.GetStore("myStore")
	require.NoError(t, err)
	require.Equal(t, store.VersionError, updatedStore.GetVersion(1).Status)

	require.Contains(t, h.cleaner.DeletedVersions, "myStore#1")
}

func TestRoutingDataDeletedRecovered(t *testing.T) {
	s := &store.Store{Name: "myStore", Versions: map[int]*store.Version{1: {Number: 1}}}
	h := newHarness(t, s)

	require.NoError(t, h.m.StartMonitorOfflinePush("myStore_v1", 1, 1, decider.WaitAllReplicas))
	h.routingS.SetIdealState("myStore_v1", true)

	h.routingS.DeleteRoutingData("myStore_v1")

	got, err := h.m.GetOfflinePush("myStore_v1")
	require.NoError(t, err)
	require.Equal(t, status.Started, got.CurrentStatus, "ideal state still present, deletion is treated as recoverable")
}

func TestRoutingDataDeletedGenuine(t *testing.T) {
	s := &store.Store{Name: "myStore", Versions: map[int]*store.Version{1: {Number: 1}}}
	h := newHarness(t, s)

	require.NoError(t, h.m.StartMonitorOfflinePush("myStore_v1", 1, 1, decider.WaitAllReplicas))
	h.routingS.SetIdealState("myStore_v1", false)

	h.routingS.DeleteRoutingData("myStore_v1")

	got, err := h.m.GetOfflinePush("myStore_v1")
	require.NoError(t, err)
	require.Equal(t, status.Error, got.CurrentStatus)
	detail, ok := got.StatusDetails.Get()
	require.True(t, ok)
	require.Contains(t, detail, "is deleted")
}

func TestRetentionKeepsOnlyNewestErrorPushes(t *testing.T) {
	s := &store.Store{Name: "myStore"}
	h := newHarness(t, s)

	for v := 1; v <= 7; v++ {
		topic := topicOf("myStore", v)
		require.NoError(t, h.m.StartMonitorOfflinePush(topic, 1, 1, decider.WaitAllReplicas))
		h.routingS.SetIdealState(topic, false)
		h.routingS.DeleteRoutingData(topic) // drives each to ERROR
	}
	require.NoError(t, h.m.StartMonitorOfflinePush(topicOf("myStore", 8), 1, 1, decider.WaitAllReplicas))

	for v := 1; v <= 2; v++ {
		_, err := h.m.GetOfflinePush(topicOf("myStore", v))
		require.Error(t, err, "oldest error pushes beyond MaxPushToKeep must be retired")
	}
	for v := 3; v <= 7; v++ {
		got, err := h.m.GetOfflinePush(topicOf("myStore", v))
		require.NoError(t, err)
		require.Equal(t, status.Error, got.CurrentStatus)
	}
	got, err := h.m.GetOfflinePush(topicOf("myStore", 8))
	require.NoError(t, err)
	require.Equal(t, status.Started, got.CurrentStatus, "the non-terminal push is never a retention target")
}

func topicOf(storeName string, version int) string {
	return storeName + "_v" + strconv.Itoa(version)
}

func TestHybridBufferReplayKickoff(t *testing.T) {
	s := &store.Store{
		Name:          "hybridStore",
		IsHybrid:      true,
		RealTimeTopic: "hybridStore_rt",
		Versions:      map[int]*store.Version{1: {Number: 1}},
	}
	h := newHarness(t, s)

	require.NoError(t, h.m.StartMonitorOfflinePush("hybridStore_v1", 1, 1, decider.WaitAllReplicas))
	reportReplica(t, h, "hybridStore_v1", 0, instanceID(0, 0), status.EndOfPushReceived)

	got, err := h.m.GetOfflinePush("hybridStore_v1")
	require.NoError(t, err)
	require.Equal(t, status.EndOfPushReceived, got.CurrentStatus)
	detail, ok := got.StatusDetails.Get()
	require.True(t, ok)
	require.Equal(t, "kicked off buffer replay", detail)

	require.Equal(t, 1, h.replicato.Calls)
	require.Equal(t, [3]string{"hybridStore_rt", "hybridStore_v1", "hybridStore"}, h.replicato.LastArgs)
}

func TestHybridBufferReplaySkipWithoutReplicator(t *testing.T) {
	s := &store.Store{
		Name:          "hybridStore",
		IsHybrid:      true,
		RealTimeTopic: "hybridStore_rt",
		Versions:      map[int]*store.Version{1: {Number: 1}},
	}
	h := newHarness(t, s)
	h.m = New(Config{MaxPushToKeep: 5, SkipBufferReplayForHybrid: true, UnknownTopicWarnLimit: 1000},
		log.NewNopLogger(), h.acc, h.routingS, h.storeRepo, h.cleaner, nil, h.healthS, decider.NewRegistry())

	require.NoError(t, h.m.StartMonitorOfflinePush("hybridStore_v1", 1, 1, decider.WaitAllReplicas))
	reportReplica(t, h, "hybridStore_v1", 0, instanceID(0, 0), status.EndOfPushReceived)

	got, err := h.m.GetOfflinePush("hybridStore_v1")
	require.NoError(t, err)
	require.Equal(t, status.EndOfPushReceived, got.CurrentStatus)
	detail, _ := got.StatusDetails.Get()
	require.Equal(t, "skipped buffer replay", detail)
}

func TestUnknownTopicNotFound(t *testing.T) {
	h := newHarness(t)
	_, err := h.m.GetOfflinePush("nonexistent_v1")
	require.Error(t, err)

	_, err = h.m.GetOfflinePushProgress("nonexistent_v1")
	require.Error(t, err)
}

func TestMarkOfflinePushAsErrorIsIdempotent(t *testing.T) {
	s := &store.Store{Name: "myStore", Versions: map[int]*store.Version{1: {Number: 1}}}
	h := newHarness(t, s)

	require.NoError(t, h.m.StartMonitorOfflinePush("myStore_v1", 1, 1, decider.WaitAllReplicas))
	h.m.MarkOfflinePushAsError("myStore_v1", "first failure")
	h.m.MarkOfflinePushAsError("myStore_v1", "second failure")

	got, err := h.m.GetOfflinePush("myStore_v1")
	require.NoError(t, err)
	require.Equal(t, status.Error, got.CurrentStatus)
	detail, ok := got.StatusDetails.Get()
	require.True(t, ok)
	require.Equal(t, "first failure", detail, "the second markError call must be a no-op")

	require.Len(t, h.cleaner.DeletedVersions, 1, "terminal side effects run exactly once")
}

func TestWouldJobFailDoesNotMutateState(t *testing.T) {
	s := &store.Store{Name: "myStore", Versions: map[int]*store.Version{1: {Number: 1}}}
	h := newHarness(t, s)

	require.NoError(t, h.m.StartMonitorOfflinePush("myStore_v1", 1, 2, decider.WaitAllReplicas))
	reportReplica(t, h, "myStore_v1", 0, instanceID(0, 0), status.Completed)

	hypothetical := waitAllReplicasAssignment("myStore_v1", 1, 2)
	hypothetical.Partitions[0] = []string{instanceID(0, 0), instanceID(0, 1)}
	// replica 1 never reported: WAIT_ALL_REPLICAS keeps this assignment at
	// STARTED, which is not a failure.

	wouldFail, err := h.m.WouldJobFail("myStore_v1", hypothetical)
	require.NoError(t, err)
	require.False(t, wouldFail, "one of two replicas still pending is STARTED, not ERROR, under WAIT_ALL_REPLICAS")

	got, err := h.m.GetOfflinePush("myStore_v1")
	require.NoError(t, err)
	require.Equal(t, status.Started, got.CurrentStatus, "a dry run must never mutate the tracked push")
}

func TestLoadAllPushesKeepsLegacyTopics(t *testing.T) {
	h := newHarness(t)

	legacy := status.New("gone_v1", 1, 1, decider.WaitAllReplicas, 0)
	require.NoError(t, legacy.UpdateStatus(status.Started, optional.None[string]()))

	require.NoError(t, h.m.LoadAllPushes([]*status.OfflinePushStatus{legacy}))

	got, err := h.m.GetOfflinePush("gone_v1")
	require.NoError(t, err)
	require.Equal(t, status.Started, got.CurrentStatus, "a push whose topic vanished from routing is kept, not deleted")
}

func TestWaitNMinusOneReplicaEndToEnd(t *testing.T) {
	s := &store.Store{Name: "myStore", Versions: map[int]*store.Version{1: {Number: 1}}}
	h := newHarness(t, s)

	// Real serving instance IDs are UUIDs, not "host-a-0" fixtures; this
	// test exercises the strategy against ids shaped like the real thing.
	instances := []string{uuid.NewString(), uuid.NewString(), uuid.NewString()}

	require.NoError(t, h.m.StartMonitorOfflinePush("myStore_v1", 1, 3, decider.WaitNMinusOneReplicaPerPartition))
	h.routingS.SetIdealState("myStore_v1", true)

	reportReplica(t, h, "myStore_v1", 0, instances[0], status.Completed)
	reportReplica(t, h, "myStore_v1", 0, instances[1], status.Error)
	reportReplica(t, h, "myStore_v1", 0, instances[2], status.Completed)

	assignment := routing.PartitionAssignment{Topic: "myStore_v1", Partitions: map[int][]string{0: instances}}
	h.routingS.PushExternalViewChange(assignment)

	got, err := h.m.GetOfflinePush("myStore_v1")
	require.NoError(t, err)
	require.Equal(t, status.Completed, got.CurrentStatus, "2 of 3 replicas completed tolerates the one error")
}

func TestStoreLookupRefreshesOnceThenSucceeds(t *testing.T) {
	h := newHarness(t) // no stores seeded yet
	hybridStore := &store.Store{
		Name:          "hybridStore",
		IsHybrid:      true,
		RealTimeTopic: "hybridStore_rt",
		Versions:      map[int]*store.Version{1: {Number: 1}},
	}
	h.storeRepo.SeedAfterRefresh(hybridStore)

	require.NoError(t, h.m.StartMonitorOfflinePush("hybridStore_v1", 1, 1, decider.WaitAllReplicas))
	reportReplica(t, h, "hybridStore_v1", 0, instanceID(0, 0), status.EndOfPushReceived)

	require.Equal(t, 1, h.storeRepo.RefreshCount(), "a store miss triggers exactly one refresh")
	require.Equal(t, 1, h.replicato.Calls, "the store becomes visible after refresh and buffer replay proceeds")

	got, err := h.m.GetOfflinePush("hybridStore_v1")
	require.NoError(t, err)
	require.Equal(t, status.EndOfPushReceived, got.CurrentStatus)
}

func TestStoreLookupFatalAfterSecondMiss(t *testing.T) {
	h := newHarness(t) // no stores seeded, and no SeedAfterRefresh: the miss persists

	require.NoError(t, h.m.StartMonitorOfflinePush("hybridStore_v1", 1, 1, decider.WaitAllReplicas))
	reportReplica(t, h, "hybridStore_v1", 0, instanceID(0, 0), status.EndOfPushReceived)

	require.Equal(t, 1, h.storeRepo.RefreshCount(), "still refreshes exactly once even though the second lookup also misses")
	require.Zero(t, h.replicato.Calls, "a fatal store lookup must never reach the replicator")

	got, err := h.m.GetOfflinePush("hybridStore_v1")
	require.NoError(t, err)
	require.Equal(t, status.Started, got.CurrentStatus, "a fatal store lookup leaves the push state untouched")
}

func TestDebugStatusTable(t *testing.T) {
	s := &store.Store{Name: "myStore", Versions: map[int]*store.Version{1: {Number: 1}}}
	h := newHarness(t, s)

	require.NoError(t, h.m.StartMonitorOfflinePush("myStore_v1", 1, 1, decider.WaitAllReplicas))
	h.m.MarkOfflinePushAsError("myStore_v1", "boom")

	out := h.m.DebugStatusTable()
	require.Contains(t, out, "myStore_v1")
	require.Contains(t, out, "ERROR")
	require.Contains(t, out, "boom")
}

func TestConcurrentStartStop(t *testing.T) {
	h := newHarness(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			topic := topicOf("concurrentStore", i)
			if err := h.m.StartMonitorOfflinePush(topic, 1, 1, decider.WaitAllReplicas); err != nil {
				return
			}
			_ = h.m.StopMonitorOfflinePush(topic, true)
		}(i)
	}
	wg.Wait()

	require.Empty(t, h.m.GetTopicsOfOngoingOfflinePushes())
}
