package status

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/jgeraigery/venice/internal/pushmonitor/optional"
)

// ReplicaStatus is the progress of one partition replica hosted on one
// serving instance.
type ReplicaStatus struct {
	ReplicaID        string
	InstanceID       string
	PartitionID      int
	CurrentStatus    ExecutionStatus
	Detail           optional.Optional[string]
	MessagesConsumed int64
}

func (r ReplicaStatus) clone() ReplicaStatus {
	return r
}

// BuildReplicaID encodes the replica identifier convention the routing
// layer and the durable accessor agree on: "<partitionID>_<instanceID>".
func BuildReplicaID(partitionID int, instanceID string) string {
	return fmt.Sprintf("%d_%s", partitionID, instanceID)
}

// ParseReplicaID is total on any string the durable accessor or routing
// subscription can hand back: a malformed id decodes to partition -1 and
// the whole string as the instance, rather than failing.
func ParseReplicaID(replicaID string) (partitionID int, instanceID string) {
	idx := strings.IndexByte(replicaID, '_')
	if idx < 0 {
		return -1, replicaID
	}
	n, err := strconv.Atoi(replicaID[:idx])
	if err != nil {
		return -1, replicaID
	}
	return n, replicaID[idx+1:]
}

// PartitionStatus aggregates the replica statuses reported for one
// partition of a push.
type PartitionStatus struct {
	PartitionID int
	Replicas    map[string]ReplicaStatus
}

// NewPartitionStatus returns an empty partition status for partitionID.
func NewPartitionStatus(partitionID int) *PartitionStatus {
	return &PartitionStatus{
		PartitionID: partitionID,
		Replicas:    make(map[string]ReplicaStatus),
	}
}

func (p *PartitionStatus) Clone() *PartitionStatus {
	if p == nil {
		return nil
	}
	c := &PartitionStatus{
		PartitionID: p.PartitionID,
		Replicas:    make(map[string]ReplicaStatus, len(p.Replicas)),
	}
	for id, r := range p.Replicas {
		c.Replicas[id] = r.clone()
	}
	return c
}

// SetReplicaStatus records (or overwrites) one replica's reported state.
// replicaID must be well formed; callers should build it with
// BuildReplicaID rather than constructing it by hand.
func (p *PartitionStatus) SetReplicaStatus(replicaID string, st ExecutionStatus, detail optional.Optional[string], messagesConsumed int64) error {
	partitionID, instanceID := ParseReplicaID(replicaID)
	if partitionID != p.PartitionID {
		return errors.Errorf("replica id %q does not belong to partition %d", replicaID, p.PartitionID)
	}

	p.Replicas[replicaID] = ReplicaStatus{
		ReplicaID:        replicaID,
		InstanceID:       instanceID,
		PartitionID:      partitionID,
		CurrentStatus:    st,
		Detail:           detail,
		MessagesConsumed: messagesConsumed,
	}
	return nil
}
