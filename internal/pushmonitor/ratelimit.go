package pushmonitor

import (
	"time"

	"github.com/go-kit/log"
	"golang.org/x/time/rate"
)

// rateLimitedLogger throttles a go-kit logger so a burst of events for an
// unmonitored or already-terminal topic cannot flood the log.
type rateLimitedLogger struct {
	limiter *rate.Limiter
	logger  log.Logger
}

func newRateLimitedLogger(logsPerSecond int, logger log.Logger) *rateLimitedLogger {
	if logsPerSecond <= 0 {
		logsPerSecond = 1
	}
	return &rateLimitedLogger{
		limiter: rate.NewLimiter(rate.Limit(logsPerSecond), 1),
		logger:  logger,
	}
}

func (l *rateLimitedLogger) Log(keyvals ...interface{}) error {
	if !l.limiter.AllowN(time.Now(), 1) {
		return nil
	}
	return l.logger.Log(keyvals...)
}
