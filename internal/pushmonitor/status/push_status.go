package status

import (
	"github.com/pkg/errors"

	"github.com/jgeraigery/venice/internal/pushmonitor/optional"
)

// Strategy identifies which decider variant governs a push's terminal
// decision. The monitor never branches on it directly; it is only used as
// a registry key (see package decider).
type Strategy string

// OfflinePushStatus is the immutable-by-convention snapshot of one push's
// progress. Every mutation goes through Clone: callers obtain a copy,
// mutate the copy, and the monitor swaps the copy into its map under its
// write lock. A value handed to a caller outside the monitor must never be
// mutated in place.
type OfflinePushStatus struct {
	Topic             string
	PartitionCount    int
	ReplicationFactor int
	Strategy          Strategy
	CurrentStatus     ExecutionStatus
	StatusDetails     optional.Optional[string]
	StartTimeSec      int64

	Partitions map[int]*PartitionStatus

	// IncrementalPushVersions tracks the status of incremental pushes
	// layered on top of this (already-COMPLETED) version, keyed by the
	// incremental push's version label. getPushStatusAndDetails consults
	// this map instead of CurrentStatus when a caller asks about a
	// specific incremental version.
	IncrementalPushVersions map[string]ExecutionStatus
}

// New creates a push status in NOT_CREATED with no partitions populated
// yet; StartMonitor immediately transitions it to STARTED.
func New(topic string, partitionCount, replicationFactor int, strategy Strategy, startTimeSec int64) *OfflinePushStatus {
	partitions := make(map[int]*PartitionStatus, partitionCount)
	for i := 0; i < partitionCount; i++ {
		partitions[i] = NewPartitionStatus(i)
	}

	return &OfflinePushStatus{
		Topic:                   topic,
		PartitionCount:          partitionCount,
		ReplicationFactor:       replicationFactor,
		Strategy:                strategy,
		CurrentStatus:           NotCreated,
		StartTimeSec:            startTimeSec,
		Partitions:              partitions,
		IncrementalPushVersions: make(map[string]ExecutionStatus),
	}
}

// Clone returns a deep copy safe to mutate without affecting the
// original. Every write path in the monitor clones before mutating.
func (p *OfflinePushStatus) Clone() *OfflinePushStatus {
	if p == nil {
		return nil
	}

	c := &OfflinePushStatus{
		Topic:             p.Topic,
		PartitionCount:    p.PartitionCount,
		ReplicationFactor: p.ReplicationFactor,
		Strategy:          p.Strategy,
		CurrentStatus:     p.CurrentStatus,
		StatusDetails:     p.StatusDetails,
		StartTimeSec:      p.StartTimeSec,
		Partitions:        make(map[int]*PartitionStatus, len(p.Partitions)),
		IncrementalPushVersions: make(map[string]ExecutionStatus, len(p.IncrementalPushVersions)),
	}
	for id, ps := range p.Partitions {
		c.Partitions[id] = ps.Clone()
	}
	for v, st := range p.IncrementalPushVersions {
		c.IncrementalPushVersions[v] = st
	}
	return c
}

// IsTerminal reports whether the push can no longer change status.
func (p *OfflinePushStatus) IsTerminal() bool {
	return p.CurrentStatus.IsTerminal()
}

// UpdateStatus validates and applies a status transition in place. It is
// meant to be called on a freshly Cloned value, never on a value still
// published in the monitor's map. An illegal transition (including any
// transition attempted from a terminal state, even to the same status) is
// rejected with ErrIllegalTransition; the caller is expected to log a
// warning and discard the clone rather than persist or publish it.
func (p *OfflinePushStatus) UpdateStatus(newStatus ExecutionStatus, details optional.Optional[string]) error {
	if !CanTransition(p.CurrentStatus, newStatus) {
		return errors.Wrapf(ErrIllegalTransition, "topic %s: %s -> %s", p.Topic, p.CurrentStatus, newStatus)
	}

	p.CurrentStatus = newStatus
	if d, ok := details.Get(); ok {
		p.StatusDetails = optional.Some(d)
	}
	return nil
}

// ErrIllegalTransition is returned (wrapped with context) by UpdateStatus
// when the requested edge is not in the state machine.
var ErrIllegalTransition = errors.New("illegal push status transition")

// SetPartitionStatus overwrites one replica's reported progress within
// partitionID, creating the partition entry if the push was constructed
// before PartitionCount was known to be accurate (defensive: New always
// pre-populates partitions, but loadAllPushes reconstructs from a durable
// record that may predate a partition-count change).
func (p *OfflinePushStatus) SetPartitionStatus(partitionID int, replicaID string, st ExecutionStatus, detail optional.Optional[string], messagesConsumed int64) error {
	ps, ok := p.Partitions[partitionID]
	if !ok {
		ps = NewPartitionStatus(partitionID)
		p.Partitions[partitionID] = ps
	}
	return ps.SetReplicaStatus(replicaID, st, detail, messagesConsumed)
}

// Progress returns a defensive copy of replicaID -> messagesConsumed
// across every partition. Defensive because getOfflinePushProgress reads
// without the monitor's lock.
func (p *OfflinePushStatus) Progress() map[string]int64 {
	out := make(map[string]int64)
	for _, ps := range p.Partitions {
		for id, r := range ps.Replicas {
			out[id] = r.MessagesConsumed
		}
	}
	return out
}

// IsReadyToStartBufferReplay reports whether every replica of every
// partition has reported consuming its end-of-push marker, meaning the
// bulk portion of a hybrid push is done and buffer replay from the
// real-time topic can begin. A push that is already terminal, or one with
// zero partitions reported, is never ready.
func (p *OfflinePushStatus) IsReadyToStartBufferReplay() bool {
	if p.CurrentStatus != Started {
		return false
	}
	if len(p.Partitions) == 0 || len(p.Partitions) < p.PartitionCount {
		return false
	}

	for _, ps := range p.Partitions {
		if len(ps.Replicas) == 0 {
			return false
		}
		for _, r := range ps.Replicas {
			if r.CurrentStatus != EndOfPushReceived && r.CurrentStatus != Completed {
				return false
			}
		}
	}
	return true
}

// GetIncrementalPushStatus returns the tracked status of incrementalVersion,
// or NOT_CREATED if no such incremental push has been observed.
func (p *OfflinePushStatus) GetIncrementalPushStatus(incrementalVersion string) ExecutionStatus {
	if st, ok := p.IncrementalPushVersions[incrementalVersion]; ok {
		return st
	}
	return NotCreated
}

// SetIncrementalPushStatus records the status of an incremental push
// layered on top of this version.
func (p *OfflinePushStatus) SetIncrementalPushStatus(incrementalVersion string, st ExecutionStatus) {
	p.IncrementalPushVersions[incrementalVersion] = st
}
