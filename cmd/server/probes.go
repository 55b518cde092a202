package main

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"github.com/yourorg/wallet-checkout/internal/payment"
)

// probeLimiter throttles readiness probes requested over HTTP, one limiter
// per provider so a busy wallet cannot starve the other.
type probeLimiter struct {
	mu       sync.Mutex
	every    rate.Limit
	limiters map[payment.Provider]*rate.Limiter
}

func newProbeLimiter(minInterval time.Duration) *probeLimiter {
	every := rate.Inf
	if minInterval > 0 {
		every = rate.Every(minInterval)
	}
	return &probeLimiter{every: every, limiters: make(map[payment.Provider]*rate.Limiter)}
}

func (l *probeLimiter) Allow(p payment.Provider) bool {
	l.mu.Lock()
	limiter, ok := l.limiters[p]
	if !ok {
		limiter = rate.NewLimiter(l.every, 1)
		l.limiters[p] = limiter
	}
	l.mu.Unlock()
	return limiter.Allow()
}

// startProbeSchedule re-probes every routed provider on the cron schedule.
// The returned stop function waits for a running job to finish.
func startProbeSchedule(a *app, schedule string) (func(), error) {
	job := cron.New(cron.WithLocation(time.Local))
	_, err := job.AddFunc(schedule, func() {
		a.log.Debug("scheduled readiness probe")
		for _, p := range a.router.Providers() {
			a.coordinator.ProbeReadiness(context.Background(), p)
		}
	})
	if err != nil {
		return nil, err
	}
	job.Start()
	a.log.WithField("schedule", schedule).Info("readiness re-probe scheduled")
	return func() { <-job.Stop().Done() }, nil
}
