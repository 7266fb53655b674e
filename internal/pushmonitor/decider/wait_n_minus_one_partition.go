package decider

import (
	"fmt"

	"github.com/jgeraigery/venice/internal/pushmonitor/optional"
	"github.com/jgeraigery/venice/internal/pushmonitor/routing"
	"github.com/jgeraigery/venice/internal/pushmonitor/status"
)

// waitNMinusOnePartitionDecider tolerates at most one partition, out of
// the whole push, failing to fully replicate; every other partition must
// have every assigned replica COMPLETED. A second failed partition fails
// the push.
type waitNMinusOnePartitionDecider struct{}

func (waitNMinusOnePartitionDecider) CheckPushStatusAndDetails(push *status.OfflinePushStatus, assignment routing.PartitionAssignment) (status.ExecutionStatus, optional.Optional[string]) {
	failedPartitions := 0
	pendingPartitions := 0

	for partitionID := 0; partitionID < push.PartitionCount; partitionID++ {
		stats := computePartitionStats(push, assignment, partitionID)

		switch {
		case stats.assigned == 0:
			pendingPartitions++
		case stats.errored > 0:
			failedPartitions++
		case stats.completed < stats.assigned:
			pendingPartitions++
		}
	}

	if failedPartitions > 1 {
		return status.Error, optional.Some(fmt.Sprintf(
			"%d partitions failed, exceeding the 1-partition tolerance of WAIT_N_MINUS_ONE_PARTITION", failedPartitions))
	}

	if pendingPartitions == 0 {
		return status.Completed, optional.None[string]()
	}
	return status.Started, optional.None[string]()
}

func (waitNMinusOnePartitionDecider) GetReadyToServeInstances(assignment routing.PartitionAssignment, push *status.OfflinePushStatus, partitionID int) []string {
	return readyToServeInstances(push, assignment, partitionID)
}
