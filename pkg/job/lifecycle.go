// Job lifecycle transitions and validation.
// A demand unit moves PENDING → RUNNING at most once and never backward;
// these guards are what enforce that outside the scheduler's atomic claim.

package job

import (
	"context"
	"fmt"
	"time"

	"github.com/orion-compute/orion-engine/pkg/engine/common"
	"github.com/orion-compute/orion-engine/pkg/logger"
	"github.com/orion-compute/orion-engine/pkg/store"
)

// Manager: Lifecycle operations on jobs outside the scheduling pass
type Manager struct {
	jobs      store.JobQueue
	directory store.GPUDirectory
	log       *logger.Logger
}

// NewManager: Create a job lifecycle manager
func NewManager(st store.Store) *Manager {
	return &Manager{
		jobs:      st,
		directory: st,
		log:       logger.Get(),
	}
}

// ============================================================================
// SUBMISSION
// ============================================================================

// Submit: Create a new job in PENDING state
func (m *Manager) Submit(ctx context.Context, requesterID, command string) (*common.Job, error) {
	if requesterID == "" {
		return nil, fmt.Errorf("requester id cannot be empty")
	}
	if command == "" {
		return nil, fmt.Errorf("command cannot be empty")
	}

	job := &common.Job{
		RequesterID: requesterID,
		Command:     command,
		Status:      common.JobPending,
		CreatedAt:   time.Now(),
	}

	if err := m.jobs.AddJob(ctx, job); err != nil {
		return nil, fmt.Errorf("submit job: %w", err)
	}

	m.log.Info("Submitted job %s (requester=%s)", job.ID, requesterID)
	return job, nil
}

// ============================================================================
// TRANSITIONS
// ============================================================================

// Complete: Mark a RUNNING job COMPLETED and release its GPU
func (m *Manager) Complete(ctx context.Context, jobID string) (*common.Job, error) {
	job, err := m.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !job.IsRunning() {
		return nil, fmt.Errorf("job %s: can only complete from RUNNING, current: %s",
			jobID, job.Status)
	}

	job.Status = common.JobCompleted
	job.EndedAt = time.Now()
	if err := m.jobs.UpdateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("complete job %s: %w", jobID, err)
	}

	// The GPU goes back into the pool once its job is done
	if job.GPUID != "" {
		if err := m.directory.SetAvailability(ctx, job.GPUID, true); err != nil {
			m.log.Warn("Failed to release GPU %s after job %s: %v", job.GPUID, jobID, err)
		}
	}

	m.log.Info("Job %s COMPLETED (ran on GPU %s)", jobID, job.GPUID)
	return job, nil
}

// Reject: Refuse a PENDING job; it never ran and holds no GPU
func (m *Manager) Reject(ctx context.Context, jobID string) (*common.Job, error) {
	job, err := m.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !job.IsPending() {
		return nil, fmt.Errorf("job %s: can only reject from PENDING, current: %s",
			jobID, job.Status)
	}

	job.Status = common.JobRejected
	job.EndedAt = time.Now()
	if err := m.jobs.UpdateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("reject job %s: %w", jobID, err)
	}

	m.log.Info("Job %s REJECTED", jobID)
	return job, nil
}
