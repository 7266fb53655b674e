package pushmonitor

import (
	"flag"
	"time"
)

// Config carries the monitor's runtime knobs, registered via a flag
// prefix the same way the rest of this codebase registers component
// config.
type Config struct {
	// MaxPushToKeep bounds how many pushes (of any status) a store keeps
	// tracked: while a store has more than this, retireOldErrorPushesLocked
	// drops its lowest-versioned ERROR push. Non-ERROR pushes are never
	// dropped, so a store can stay above the limit. Default 5.
	MaxPushToKeep int

	// SkipBufferReplayForHybrid, when set, makes a hybrid push that is
	// ready for buffer replay skip straight to END_OF_PUSH_RECEIVED
	// instead of invoking the replicator.
	SkipBufferReplayForHybrid bool

	// UnknownTopicWarnLimit caps how many "dropping event for unknown
	// topic" warnings are logged per second on the hot event path, via a
	// rate-limited logger, so a replay storm against an unmonitored topic
	// cannot flood the log.
	UnknownTopicWarnLimit int
}

// RegisterFlagsAndApplyDefaults registers cfg's flags under prefix and
// sets field defaults.
func (cfg *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.IntVar(&cfg.MaxPushToKeep, prefix+"max-push-to-keep", 5,
		"Maximum number of pushes tracked per store; above it, the oldest ERROR pushes are dropped.")
	f.BoolVar(&cfg.SkipBufferReplayForHybrid, prefix+"skip-buffer-replay-for-hybrid", false,
		"Skip kicking off buffer replay for hybrid stores once the bulk push is ready.")
	f.IntVar(&cfg.UnknownTopicWarnLimit, prefix+"unknown-topic-warn-limit", 1,
		"Maximum unknown-topic warnings logged per second on the event-handling path.")
}

// nowSec returns the wall-clock time in Unix seconds. It is a package
// variable and can be replaced.
var nowSec = func() int64 { return time.Now().Unix() }
