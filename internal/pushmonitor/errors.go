package pushmonitor

import (
	"github.com/gogo/status"
	"google.golang.org/grpc/codes"
)

// Admin-facing operations (GetOfflinePush, GetOfflinePushProgress,
// WouldJobFail, StartMonitorOfflinePush) return the NotFound and
// AlreadyExists errors below as gRPC status errors so a caller
// across a network boundary gets the same taxonomy a local caller does,
// matching the convention backendscheduler.Next/UpdateJob use for
// ErrNoJobsFound/ErrJobNotFound.
var (
	// ErrFatalStoreMissing is raised when a store required by an
	// in-progress push is truly absent even after a metadata refresh.
	ErrFatalStoreMissing = status.Error(codes.Internal, "store metadata missing for in-progress push after refresh")
)

// errNotFound builds a NotFound status error for topic.
func errNotFound(topic string) error {
	return status.Errorf(codes.NotFound, "no push status found for topic %s", topic)
}

// errAlreadyExists builds an IllegalState status error for a duplicate
// startMonitorOfflinePush call on a non-ERROR push.
func errAlreadyExists(topic string) error {
	return status.Errorf(codes.AlreadyExists, "push for topic %s already exists and is not in ERROR", topic)
}
