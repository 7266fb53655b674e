package decider

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jgeraigery/venice/internal/pushmonitor/optional"
	"github.com/jgeraigery/venice/internal/pushmonitor/routing"
	"github.com/jgeraigery/venice/internal/pushmonitor/status"
)

func buildAssignment(topic string, partitionCount, replicationFactor int) routing.PartitionAssignment {
	parts := make(map[int][]string, partitionCount)
	for p := 0; p < partitionCount; p++ {
		var instances []string
		for r := 0; r < replicationFactor; r++ {
			instances = append(instances, fmt.Sprintf("host-%d-%d", p, r))
		}
		parts[p] = instances
	}
	return routing.PartitionAssignment{Topic: topic, Partitions: parts}
}

func setReplica(t *testing.T, p *status.OfflinePushStatus, partitionID int, instanceID string, st status.ExecutionStatus) {
	t.Helper()
	require.NoError(t, p.SetPartitionStatus(partitionID, status.BuildReplicaID(partitionID, instanceID), st, optional.None[string](), 0))
}

func TestWaitAllReplicas(t *testing.T) {
	d := waitAllReplicasDecider{}
	assignment := buildAssignment("s_v1", 2, 2)
	p := status.New("s_v1", 2, 2, WaitAllReplicas, 0)

	st, _ := d.CheckPushStatusAndDetails(p, assignment)
	require.Equal(t, status.Started, st, "nothing reported yet")

	for partitionID, instances := range assignment.Partitions {
		for _, instance := range instances {
			setReplica(t, p, partitionID, instance, status.Completed)
		}
	}
	st, _ = d.CheckPushStatusAndDetails(p, assignment)
	require.Equal(t, status.Completed, st)

	setReplica(t, p, 0, assignment.Partitions[0][0], status.Error)
	st, detail := d.CheckPushStatusAndDetails(p, assignment)
	require.Equal(t, status.Error, st)
	_, ok := detail.Get()
	require.True(t, ok)
}

func TestWaitNMinusOneReplicaPerPartition(t *testing.T) {
	d := waitNMinusOneReplicaDecider{}
	assignment := buildAssignment("s_v1", 1, 3)
	p := status.New("s_v1", 1, 3, WaitNMinusOneReplicaPerPartition, 0)

	instances := assignment.Partitions[0]
	setReplica(t, p, 0, instances[0], status.Completed)
	setReplica(t, p, 0, instances[1], status.Error)
	// Third replica still pending: 2 of 3 accounted for, need 2 completed (n-1).
	st, _ := d.CheckPushStatusAndDetails(p, assignment)
	require.Equal(t, status.Started, st)

	setReplica(t, p, 0, instances[2], status.Completed)
	st, _ = d.CheckPushStatusAndDetails(p, assignment)
	require.Equal(t, status.Completed, st, "2 of 3 completed tolerates the 1 error")

	setReplica(t, p, 0, instances[2], status.Error)
	st, _ = d.CheckPushStatusAndDetails(p, assignment)
	require.Equal(t, status.Error, st, "2 errors out of 3 cannot reach n-1")
}

func TestWaitNMinusOnePartition(t *testing.T) {
	d := waitNMinusOnePartitionDecider{}
	assignment := buildAssignment("s_v1", 3, 1)
	p := status.New("s_v1", 3, 1, WaitNMinusOnePartition, 0)

	for partitionID := 0; partitionID < 3; partitionID++ {
		setReplica(t, p, partitionID, assignment.Partitions[partitionID][0], status.Completed)
	}
	st, _ := d.CheckPushStatusAndDetails(p, assignment)
	require.Equal(t, status.Completed, st)

	setReplica(t, p, 0, assignment.Partitions[0][0], status.Error)
	st, _ = d.CheckPushStatusAndDetails(p, assignment)
	require.Equal(t, status.Completed, st, "one failed partition is tolerated")

	setReplica(t, p, 1, assignment.Partitions[1][0], status.Error)
	st, _ = d.CheckPushStatusAndDetails(p, assignment)
	require.Equal(t, status.Error, st, "a second failed partition exceeds tolerance")
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	for _, strat := range []status.Strategy{WaitAllReplicas, WaitNMinusOneReplicaPerPartition, WaitNMinusOnePartition} {
		_, ok := r.Get(strat)
		require.True(t, ok, strat)
	}
	_, ok := r.Get("unknown")
	require.False(t, ok)
}
