package decider

import (
	"fmt"

	"github.com/jgeraigery/venice/internal/pushmonitor/optional"
	"github.com/jgeraigery/venice/internal/pushmonitor/routing"
	"github.com/jgeraigery/venice/internal/pushmonitor/status"
)

// waitNMinusOneReplicaDecider tolerates one replica failure per
// partition: a partition is done once all but at most one of its
// assigned replicas reach COMPLETED. It fails only once enough replicas
// have errored that the partition can no longer reach that bar.
type waitNMinusOneReplicaDecider struct{}

func (waitNMinusOneReplicaDecider) CheckPushStatusAndDetails(push *status.OfflinePushStatus, assignment routing.PartitionAssignment) (status.ExecutionStatus, optional.Optional[string]) {
	allDone := true

	for partitionID := 0; partitionID < push.PartitionCount; partitionID++ {
		stats := computePartitionStats(push, assignment, partitionID)
		if stats.assigned == 0 {
			allDone = false
			continue
		}

		required := stats.assigned - 1
		if required < 1 {
			required = 1
		}

		if stats.assigned-stats.errored < required {
			return status.Error, optional.Some(fmt.Sprintf(
				"partition %d cannot reach %d ready replica(s): %d errored out of %d assigned",
				partitionID, required, stats.errored, stats.assigned))
		}

		if stats.completed < required {
			allDone = false
		}
	}

	if allDone {
		return status.Completed, optional.None[string]()
	}
	return status.Started, optional.None[string]()
}

func (waitNMinusOneReplicaDecider) GetReadyToServeInstances(assignment routing.PartitionAssignment, push *status.OfflinePushStatus, partitionID int) []string {
	return readyToServeInstances(push, assignment, partitionID)
}
