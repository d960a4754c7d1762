package janitor

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"delivery-service/internal/observability"
)

const (
	jobMessages = "messages"
	jobSessions = "sessions"
)

// Reaper is a reap operation run on a timer. Both reaps are idempotent.
type Reaper interface {
	Reap(ctx context.Context, now time.Time) (int64, error)
}

// Janitor schedules the periodic queue and session reaps. When a redis
// client is supplied, a short lease elects a single runner across
// replicas; without one the loops run unguarded, which is tolerable
// because both reaps are idempotent.
type Janitor struct {
	queues          Reaper
	sessions        Reaper
	msgInterval     time.Duration
	sessionInterval time.Duration
	locker          *redis.Client

	msgRunning     atomic.Bool
	sessionRunning atomic.Bool
}

// New constructs a Janitor. locker may be nil.
func New(queues, sessions Reaper, msgInterval, sessionInterval time.Duration, locker *redis.Client) *Janitor {
	return &Janitor{
		queues:          queues,
		sessions:        sessions,
		msgInterval:     msgInterval,
		sessionInterval: sessionInterval,
		locker:          locker,
	}
}

// Start launches the reap loops until ctx is cancelled.
func (j *Janitor) Start(ctx context.Context) {
	go j.loop(ctx, jobMessages, j.msgInterval, &j.msgRunning, j.queues)
	go j.loop(ctx, jobSessions, j.sessionInterval, &j.sessionRunning, j.sessions)
	log.Printf("janitor started msg_interval=%s session_interval=%s", j.msgInterval, j.sessionInterval)
}

func (j *Janitor) loop(ctx context.Context, job string, interval time.Duration, running *atomic.Bool, reaper Reaper) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.runOnce(ctx, job, interval, running, reaper)
		}
	}
}

// runOnce executes a single reap, skipping when the previous run is still
// in flight or when another replica holds the lease. Errors are logged and
// swallowed; the next tick retries.
func (j *Janitor) runOnce(ctx context.Context, job string, interval time.Duration, running *atomic.Bool, reaper Reaper) {
	if !running.CompareAndSwap(false, true) {
		observability.IncJanitorRun(job, "skipped")
		return
	}
	defer running.Store(false)

	if !j.acquireLease(ctx, job, interval) {
		observability.IncJanitorRun(job, "not_leader")
		return
	}

	count, err := reaper.Reap(ctx, time.Now())
	if err != nil {
		observability.IncJanitorRun(job, "error")
		log.Printf("janitor %s reap failed: %v", job, err)
		return
	}

	observability.IncJanitorRun(job, "ok")
	observability.AddJanitorReaped(job, count)
	if count > 0 {
		log.Printf("janitor %s reaped %d", job, count)
	}
}

func (j *Janitor) acquireLease(ctx context.Context, job string, interval time.Duration) bool {
	if j.locker == nil {
		return true
	}

	// Lease slightly shorter than the interval so a crashed holder frees
	// the slot before the next tick.
	ttl := interval - interval/10
	ok, err := j.locker.SetNX(ctx, "delivery:janitor:"+job, "1", ttl).Result()
	if err != nil {
		log.Printf("janitor %s lease check failed, running anyway: %v", job, err)
		return true
	}
	return ok
}

// RunMessageReap triggers the message reap outside the schedule.
func (j *Janitor) RunMessageReap(ctx context.Context) {
	j.runOnce(ctx, jobMessages, j.msgInterval, &j.msgRunning, j.queues)
}

// RunSessionReap triggers the session reap outside the schedule.
func (j *Janitor) RunSessionReap(ctx context.Context) {
	j.runOnce(ctx, jobSessions, j.sessionInterval, &j.sessionRunning, j.sessions)
}
