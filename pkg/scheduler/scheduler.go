// Allocation scheduler: one discrete pass binds pending jobs to available
// GPUs. Jobs are processed strictly in creation order; when the pool runs
// dry the pass stops and everything behind stays pending. Greedy and
// non-optimal on purpose: no preemption, no backfilling.

package scheduler

import (
	"context"
	"fmt"

	"github.com/orion-compute/orion-engine/pkg/engine/common"
	"github.com/orion-compute/orion-engine/pkg/logger"
	"github.com/orion-compute/orion-engine/pkg/store"
)

// AllocationScheduler: Matches the pending job queue against the GPU pool
type AllocationScheduler struct {
	directory store.GPUDirectory
	jobs      store.JobQueue
	allocator store.Allocator
	policy    Policy
	log       *logger.Logger
}

// NewAllocationScheduler: Create a scheduler with the given policy
func NewAllocationScheduler(st store.Store, policy Policy) *AllocationScheduler {
	return &AllocationScheduler{
		directory: st,
		jobs:      st,
		allocator: st,
		policy:    policy,
		log:       logger.Get(),
	}
}

// Run: Execute one scheduling pass over a snapshot of the pending queue.
//
// Returned assignments are exactly the bindings that committed: claims are
// atomic in the store, so a GPU another pass snatched first simply drops out
// of our pool and the job gets the next candidate. A commit error aborts the
// pass; assignments already committed are still reported.
func (as *AllocationScheduler) Run(ctx context.Context) ([]common.Assignment, error) {
	pending, err := as.jobs.ListPendingJobs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pending jobs: %w", err)
	}

	pool, err := as.directory.ListAvailableGPUs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list available GPUs: %w", err)
	}

	as.log.Debug("Scheduling pass: %d pending jobs, %d available GPUs (policy=%s)",
		len(pending), len(pool), as.policy.Name())

	assignments := make([]common.Assignment, 0)

	for _, job := range pending {
		// Pool exhausted: stop, don't skip ahead to later jobs
		if len(pool) == 0 {
			as.log.Debug("GPU pool exhausted, %d jobs stay pending",
				len(pending)-len(assignments))
			break
		}

		assigned := false
		for len(pool) > 0 {
			gpu := as.policy.Select(pool)
			if gpu == nil {
				break
			}

			ok, err := as.allocator.AssignJob(ctx, job.ID, gpu.ID)
			if err != nil {
				// Commit failed: the decision never happened.
				// Report what did commit and let the caller retry
				// the pass.
				return assignments, fmt.Errorf("assign job %s: %w", job.ID, err)
			}

			// Claimed or not, this GPU is out of our pass
			pool = removeGPU(pool, gpu.ID)

			if ok {
				assignments = append(assignments, common.Assignment{
					JobID: job.ID,
					GPUID: gpu.ID,
				})
				assigned = true
				break
			}

			// Lost the claim to a concurrent pass; try the next
			// candidate for this job
			as.log.Debug("GPU %s claimed elsewhere, retrying job %s", gpu.ID, job.ID)
		}

		if !assigned && len(pool) == 0 {
			// Nothing left for this or any later job
			break
		}
	}

	as.log.Info("Scheduling pass complete: %d assignments (policy=%s)",
		len(assignments), as.policy.Name())

	return assignments, nil
}

// removeGPU: Drop one GPU from the pass-local pool
func removeGPU(pool []*common.GPU, id string) []*common.GPU {
	for i, gpu := range pool {
		if gpu.ID == id {
			return append(pool[:i], pool[i+1:]...)
		}
	}
	return pool
}
