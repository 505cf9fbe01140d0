package application

import (
	"context"
	"log/slog"
	"time"
)

// Default bounds for waiting on a free-publish job.
const (
	DefaultPollAttempts = 10
	DefaultPollInterval = 2 * time.Second
)

// PollPolicy bounds the wait for a free-publish job to produce its URL.
type PollPolicy struct {
	Attempts int
	Interval time.Duration
}

// DefaultPollPolicy returns 10 attempts two seconds apart.
func DefaultPollPolicy() PollPolicy {
	return PollPolicy{Attempts: DefaultPollAttempts, Interval: DefaultPollInterval}
}

func (p PollPolicy) normalized() PollPolicy {
	if p.Attempts <= 0 {
		p.Attempts = DefaultPollAttempts
	}
	if p.Interval < 0 {
		p.Interval = 0
	}
	return p
}

// pollURL calls fetch until it yields a non-empty URL or the attempts run out.
// Errors from fetch are logged and count as an attempt. It returns "" on
// exhaustion or cancellation.
func pollURL(ctx context.Context, policy PollPolicy, logger *slog.Logger, fetch func(context.Context) (string, error)) string {
	policy = policy.normalized()

	for attempt := 1; attempt <= policy.Attempts; attempt++ {
		url, err := fetch(ctx)
		switch {
		case err != nil:
			logger.Warn("publish status poll failed", "attempt", attempt, "error", err)
		case url != "":
			return url
		}

		if attempt == policy.Attempts {
			break
		}

		timer := time.NewTimer(policy.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			logger.Info("publish status poll cancelled", "attempt", attempt)
			return ""
		case <-timer.C:
		}
	}

	logger.Info("publish status poll exhausted", "attempts", policy.Attempts)
	return ""
}
