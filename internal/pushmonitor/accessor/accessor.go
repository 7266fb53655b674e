// Package accessor defines the durable-storage boundary the push monitor
// consumes. The production implementation is a KV-store client owned
// elsewhere; this package only carries the interface plus an in-memory
// reference implementation used by tests.
package accessor

import (
	"github.com/jgeraigery/venice/internal/pushmonitor/status"
)

// PartitionStatusListener is notified whenever a replica reports progress
// for a partition it owns.
type PartitionStatusListener interface {
	OnPartitionStatusChange(topic string, partitionStatus *status.PartitionStatus)
}

// Accessor is the durable store for push status and per-partition status.
// Every method may block on network I/O; callers hold the monitor's write
// lock across these calls by design.
type Accessor interface {
	CreateOfflinePushStatusAndItsPartitionStatuses(push *status.OfflinePushStatus) error
	UpdateOfflinePushStatus(push *status.OfflinePushStatus) error
	DeleteOfflinePushStatusAndItsPartitionStatuses(push *status.OfflinePushStatus) error

	LoadOfflinePushStatusesAndPartitionStatuses() ([]*status.OfflinePushStatus, error)
	GetOfflinePushStatusAndItsPartitionStatuses(topic string) (*status.OfflinePushStatus, error)

	SubscribePartitionStatusChange(push *status.OfflinePushStatus, listener PartitionStatusListener) error
	UnsubscribePartitionStatusChange(push *status.OfflinePushStatus, listener PartitionStatusListener) error
}
