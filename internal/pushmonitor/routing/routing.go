// Package routing defines the boundary to the routing-data repository: the
// external-view/ideal-state publisher the monitor subscribes to for
// partition assignment changes. The production implementation is owned by
// the cluster manager; this package carries the interface plus an
// in-memory reference implementation.
package routing

// PartitionAssignment is the routing system's current mapping of
// partition -> assigned serving instances for one version topic.
type PartitionAssignment struct {
	Topic      string
	Partitions map[int][]string // partitionID -> instance IDs currently assigned
}

// Instances returns the assigned instances for partitionID, or nil if the
// partition is unassigned.
func (a PartitionAssignment) Instances(partitionID int) []string {
	if a.Partitions == nil {
		return nil
	}
	return a.Partitions[partitionID]
}

// Listener receives routing events for one subscribed topic.
type Listener interface {
	OnExternalViewChange(assignment PartitionAssignment)
	OnRoutingDataDeleted(topic string)
}

// Subscription is the routing-data repository's published surface.
type Subscription interface {
	SubscribeRoutingDataChange(topic string, listener Listener) error
	UnsubscribeRoutingDataChange(topic string, listener Listener) error

	ContainsKafkaTopic(topic string) bool
	DoesResourceExistInIdealState(topic string) bool

	GetPartitionAssignments(topic string) (PartitionAssignment, error)
	// GetLiveInstancesMap returns the set of instance IDs currently
	// reporting live to the cluster manager.
	GetLiveInstancesMap() map[string]bool
}
