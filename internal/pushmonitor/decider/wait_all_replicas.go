package decider

import (
	"fmt"

	"github.com/jgeraigery/venice/internal/pushmonitor/optional"
	"github.com/jgeraigery/venice/internal/pushmonitor/routing"
	"github.com/jgeraigery/venice/internal/pushmonitor/status"
)

// waitAllReplicasDecider requires every assigned replica of every
// partition to reach COMPLETED; a single replica error fails the whole
// push. This is the strictest, zero-tolerance strategy.
type waitAllReplicasDecider struct{}

func (waitAllReplicasDecider) CheckPushStatusAndDetails(push *status.OfflinePushStatus, assignment routing.PartitionAssignment) (status.ExecutionStatus, optional.Optional[string]) {
	allDone := true

	for partitionID := 0; partitionID < push.PartitionCount; partitionID++ {
		stats := computePartitionStats(push, assignment, partitionID)

		if stats.errored > 0 {
			return status.Error, optional.Some(fmt.Sprintf(
				"partition %d has %d errored replica(s) under WAIT_ALL_REPLICAS", partitionID, stats.errored))
		}

		if stats.assigned == 0 || stats.completed < push.ReplicationFactor {
			allDone = false
		}
	}

	if allDone {
		return status.Completed, optional.None[string]()
	}
	return status.Started, optional.None[string]()
}

func (waitAllReplicasDecider) GetReadyToServeInstances(assignment routing.PartitionAssignment, push *status.OfflinePushStatus, partitionID int) []string {
	return readyToServeInstances(push, assignment, partitionID)
}
