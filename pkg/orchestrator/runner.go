// Pass runner: drives periodic scheduling and matching passes. A pass runs
// the job scheduler first, then the order matcher, so jobs drain the pool
// before marketplace orders compete for the remainder.

package orchestrator

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/orion-compute/orion-engine/pkg/logger"
	"github.com/orion-compute/orion-engine/pkg/matcher"
	"github.com/orion-compute/orion-engine/pkg/scheduler"
	"github.com/orion-compute/orion-engine/pkg/store/redis"
)

const (
	leaderKey = "orion:scheduler:leader"
	leaderTTL = 30 * time.Second
)

// PassResult: Outcome of one combined pass
type PassResult struct {
	Assignments   int       `json:"assignments"`
	MatchedOrders int       `json:"matched_orders"`
	StartedAt     time.Time `json:"started_at"`
	Duration      string    `json:"duration"`
}

// Runner: Runs scheduling and matching passes, on a ticker or on demand
type Runner struct {
	scheduler   *scheduler.AllocationScheduler
	matcher     *matcher.OrderMatcher
	redisClient *redis.Client // nil disables the leader gate
	log         *logger.Logger

	instanceID string
	interval   time.Duration

	passCount  atomic.Int64
	stopCh     chan struct{}
	doneCh     chan struct{}
	startMutex sync.Mutex
	running    bool
}

// NewRunner: Create a pass runner. redisClient may be nil for single-node
// deployments, in which case every instance runs passes unconditionally.
func NewRunner(sched *scheduler.AllocationScheduler, match *matcher.OrderMatcher,
	redisClient *redis.Client, interval time.Duration) *Runner {
	return &Runner{
		scheduler:   sched,
		matcher:     match,
		redisClient: redisClient,
		log:         logger.Get(),
		instanceID:  uuid.NewString(),
		interval:    interval,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
}

// RunOnce: Execute a single scheduling pass followed by a matching pass.
// Partial results are returned alongside the error: assignments committed
// before a failure stay committed.
func (r *Runner) RunOnce(ctx context.Context) (*PassResult, error) {
	start := time.Now()
	result := &PassResult{StartedAt: start}

	assignments, err := r.scheduler.Run(ctx)
	result.Assignments = len(assignments)
	if err != nil {
		result.Duration = time.Since(start).String()
		return result, err
	}

	matched, err := r.matcher.Match(ctx)
	result.MatchedOrders = len(matched)
	result.Duration = time.Since(start).String()
	if err != nil {
		return result, err
	}

	n := r.passCount.Add(1)
	r.log.Info("Pass %d complete: %d assignments, %d orders matched (%s)",
		n, result.Assignments, result.MatchedOrders, result.Duration)
	return result, nil
}

// PassCount: Number of successfully completed passes since start
func (r *Runner) PassCount() int64 {
	return r.passCount.Load()
}

// Start: Begin running passes every interval until Stop or ctx cancellation
func (r *Runner) Start(ctx context.Context) {
	r.startMutex.Lock()
	if r.running {
		r.startMutex.Unlock()
		return
	}
	r.running = true
	r.startMutex.Unlock()

	r.log.Info("Pass runner started (instance=%s, interval=%s)", r.instanceID, r.interval)

	go func() {
		defer close(r.doneCh)
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				r.log.Info("Pass runner stopping: context cancelled")
				return
			case <-r.stopCh:
				r.log.Info("Pass runner stopping: stop requested")
				return
			case <-ticker.C:
				if !r.isLeader(ctx) {
					r.log.Debug("Not the leader this round, skipping pass")
					continue
				}
				if _, err := r.RunOnce(ctx); err != nil {
					r.log.Error("Pass failed: %v", err)
				}
			}
		}
	}()
}

// Stop: Halt the ticker loop and wait for the in-flight pass to finish
func (r *Runner) Stop() {
	r.startMutex.Lock()
	defer r.startMutex.Unlock()
	if !r.running {
		return
	}
	close(r.stopCh)
	<-r.doneCh
	r.running = false
}

// isLeader: At most one engine instance runs ticker passes at a time.
// The lock auto-expires so a crashed leader is replaced within leaderTTL.
func (r *Runner) isLeader(ctx context.Context) bool {
	if r.redisClient == nil {
		return true
	}

	acquired, err := r.redisClient.SetNX(ctx, leaderKey, r.instanceID, leaderTTL)
	if err != nil {
		r.log.Warn("Leader check failed, running pass anyway: %v", err)
		return true
	}
	if acquired {
		return true
	}

	// Holder refreshes its own TTL each round
	holder, found, err := r.redisClient.Get(ctx, leaderKey)
	if err != nil || !found {
		return false
	}
	if holder == r.instanceID {
		if err := r.redisClient.Set(ctx, leaderKey, r.instanceID, leaderTTL); err != nil {
			r.log.Warn("Failed to refresh leader lease: %v", err)
		}
		return true
	}
	return false
}
