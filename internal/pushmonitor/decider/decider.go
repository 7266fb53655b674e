// Package decider implements the strategy-dispatched push status
// decisions. The monitor never branches on the strategy itself; it looks
// the decider up by status.Strategy in a Registry.
package decider

import (
	"github.com/jgeraigery/venice/internal/pushmonitor/optional"
	"github.com/jgeraigery/venice/internal/pushmonitor/routing"
	"github.com/jgeraigery/venice/internal/pushmonitor/status"
)

// Decider computes the decided status for a push given its current
// snapshot and partition assignment, and tells the query-routing side
// which instances are ready to serve a given partition.
type Decider interface {
	CheckPushStatusAndDetails(push *status.OfflinePushStatus, assignment routing.PartitionAssignment) (status.ExecutionStatus, optional.Optional[string])
	GetReadyToServeInstances(assignment routing.PartitionAssignment, push *status.OfflinePushStatus, partitionID int) []string
}

// The three strategies Venice-style offline pushes support: every replica
// must catch up, all but one replica per partition must catch up, or all
// but one whole partition must fully catch up.
const (
	WaitAllReplicas                status.Strategy = "WAIT_ALL_REPLICAS"
	WaitNMinusOneReplicaPerPartition status.Strategy = "WAIT_N_MINUS_ONE_REPLICA_PER_PARTITION"
	WaitNMinusOnePartition         status.Strategy = "WAIT_N_MINUS_ONE_PARTITION"
)

// Registry dispatches a push's Strategy tag to its Decider. Callers that
// need a decider for a strategy the registry doesn't know about get a
// nil, false - the monitor logs an error and makes no decision for that
// push (WouldJobFail returns an error) rather than guessing a default,
// since guessing wrong would silently change the completion criteria of a
// push.
type Registry struct {
	deciders map[status.Strategy]Decider
}

// NewRegistry returns a Registry preloaded with the three built-in
// strategies.
func NewRegistry() *Registry {
	r := &Registry{deciders: make(map[status.Strategy]Decider)}
	r.Register(WaitAllReplicas, waitAllReplicasDecider{})
	r.Register(WaitNMinusOneReplicaPerPartition, waitNMinusOneReplicaDecider{})
	r.Register(WaitNMinusOnePartition, waitNMinusOnePartitionDecider{})
	return r
}

// Register installs (or overwrites) the decider for strategy.
func (r *Registry) Register(strategy status.Strategy, d Decider) {
	r.deciders[strategy] = d
}

// Get looks up the decider for strategy.
func (r *Registry) Get(strategy status.Strategy) (Decider, bool) {
	d, ok := r.deciders[strategy]
	return d, ok
}

// partitionStats summarizes one partition's replica outcomes against its
// current assignment, the shared computation every strategy decides on.
type partitionStats struct {
	assigned  int
	completed int
	errored   int
}

func computePartitionStats(push *status.OfflinePushStatus, assignment routing.PartitionAssignment, partitionID int) partitionStats {
	instances := assignment.Instances(partitionID)
	stats := partitionStats{assigned: len(instances)}

	ps := push.Partitions[partitionID]
	if ps == nil {
		return stats
	}

	for _, instanceID := range instances {
		replicaID := status.BuildReplicaID(partitionID, instanceID)
		r, ok := ps.Replicas[replicaID]
		if !ok {
			continue
		}
		switch r.CurrentStatus {
		case status.Completed:
			stats.completed++
		case status.Error:
			stats.errored++
		}
	}

	return stats
}

// readyToServeInstances returns the assigned instances of partitionID
// whose replica has reported COMPLETED, the common notion of
// "ready-to-serve replica" across all three strategies.
func readyToServeInstances(push *status.OfflinePushStatus, assignment routing.PartitionAssignment, partitionID int) []string {
	instances := assignment.Instances(partitionID)
	ps := push.Partitions[partitionID]
	if ps == nil {
		return nil
	}

	var ready []string
	for _, instanceID := range instances {
		replicaID := status.BuildReplicaID(partitionID, instanceID)
		if r, ok := ps.Replicas[replicaID]; ok && r.CurrentStatus == status.Completed {
			ready = append(ready, instanceID)
		}
	}
	return ready
}
