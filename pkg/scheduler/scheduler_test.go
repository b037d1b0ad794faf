package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orion-compute/orion-engine/pkg/engine/common"
	"github.com/orion-compute/orion-engine/pkg/store/memory"
)

func newFIFOScheduler(t *testing.T) (*AllocationScheduler, *memory.MemoryStore) {
	t.Helper()
	st := memory.NewMemoryStore()
	policy, err := NewPolicy("fifo")
	require.NoError(t, err)
	return NewAllocationScheduler(st, policy), st
}

func addGPU(t *testing.T, st *memory.MemoryStore, id string, memGB int, price float64) {
	t.Helper()
	err := st.AddGPU(context.Background(), &common.GPU{
		ID:           id,
		Model:        "A100",
		MemoryGB:     memGB,
		PricePerHour: price,
	})
	require.NoError(t, err)
}

func addPendingJob(t *testing.T, st *memory.MemoryStore, id string, createdAt time.Time) {
	t.Helper()
	err := st.AddJob(context.Background(), &common.Job{
		ID:          id,
		RequesterID: "tenant-1",
		Command:     "python train.py",
		Status:      common.JobPending,
		CreatedAt:   createdAt,
	})
	require.NoError(t, err)
}

func TestRunAssignsInCreationOrder(t *testing.T) {
	sched, st := newFIFOScheduler(t)
	ctx := context.Background()

	base := time.Now()
	addPendingJob(t, st, "job-late", base.Add(time.Minute))
	addPendingJob(t, st, "job-early", base)
	addGPU(t, st, "gpu-1", 40, 2.0)

	assignments, err := sched.Run(ctx)
	require.NoError(t, err)
	require.Len(t, assignments, 1)
	assert.Equal(t, "job-early", assignments[0].JobID)
	assert.Equal(t, "gpu-1", assignments[0].GPUID)

	early, err := st.GetJob(ctx, "job-early")
	require.NoError(t, err)
	assert.Equal(t, common.JobRunning, early.Status)
	assert.Equal(t, "gpu-1", early.GPUID)

	late, err := st.GetJob(ctx, "job-late")
	require.NoError(t, err)
	assert.Equal(t, common.JobPending, late.Status)
	assert.Empty(t, late.GPUID)
}

func TestRunAssignmentCountIsMinOfJobsAndGPUs(t *testing.T) {
	sched, st := newFIFOScheduler(t)
	ctx := context.Background()

	base := time.Now()
	for i, id := range []string{"job-1", "job-2", "job-3", "job-4", "job-5"} {
		addPendingJob(t, st, id, base.Add(time.Duration(i)*time.Second))
	}
	addGPU(t, st, "gpu-1", 40, 2.0)
	addGPU(t, st, "gpu-2", 40, 2.0)

	assignments, err := sched.Run(ctx)
	require.NoError(t, err)
	assert.Len(t, assignments, 2)

	// No GPU handed out twice
	seen := make(map[string]bool)
	for _, a := range assignments {
		assert.False(t, seen[a.GPUID], "GPU %s assigned twice", a.GPUID)
		seen[a.GPUID] = true
	}

	pending, err := st.ListPendingJobs(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 3)
}

func TestRunEmptyQueueAndEmptyPool(t *testing.T) {
	sched, st := newFIFOScheduler(t)
	ctx := context.Background()

	// No jobs, no GPUs
	assignments, err := sched.Run(ctx)
	require.NoError(t, err)
	assert.Empty(t, assignments)

	// Jobs but no GPUs: not an error, everything stays pending
	addPendingJob(t, st, "job-1", time.Now())
	assignments, err = sched.Run(ctx)
	require.NoError(t, err)
	assert.Empty(t, assignments)

	j, err := st.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, common.JobPending, j.Status)
}

func TestRunIsIdempotentAcrossPasses(t *testing.T) {
	sched, st := newFIFOScheduler(t)
	ctx := context.Background()

	addPendingJob(t, st, "job-1", time.Now())
	addGPU(t, st, "gpu-1", 40, 2.0)

	first, err := sched.Run(ctx)
	require.NoError(t, err)
	require.Len(t, first, 1)

	// Second pass sees no pending work and no free pool
	second, err := sched.Run(ctx)
	require.NoError(t, err)
	assert.Empty(t, second)
}

func TestRunScorePolicyPicksBestValueGPU(t *testing.T) {
	st := memory.NewMemoryStore()
	policy, err := NewPolicy("score")
	require.NoError(t, err)
	sched := NewAllocationScheduler(st, policy)
	ctx := context.Background()

	addGPU(t, st, "gpu-big", 80, 4.0)   // score 20
	addGPU(t, st, "gpu-cheap", 40, 1.0) // score 40
	addPendingJob(t, st, "job-1", time.Now())

	assignments, err := sched.Run(ctx)
	require.NoError(t, err)
	require.Len(t, assignments, 1)
	assert.Equal(t, "gpu-cheap", assignments[0].GPUID)
}

func TestConcurrentPassesAssignGPUExactlyOnce(t *testing.T) {
	st := memory.NewMemoryStore()
	ctx := context.Background()

	addGPU(t, st, "gpu-1", 40, 2.0)
	base := time.Now()
	addPendingJob(t, st, "job-1", base)
	addPendingJob(t, st, "job-2", base.Add(time.Second))

	policy, err := NewPolicy("fifo")
	require.NoError(t, err)

	schedA := NewAllocationScheduler(st, policy)
	schedB := NewAllocationScheduler(st, policy)

	var wg sync.WaitGroup
	results := make([][]common.Assignment, 2)
	errs := make([]error, 2)

	wg.Add(2)
	go func() {
		defer wg.Done()
		results[0], errs[0] = schedA.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		results[1], errs[1] = schedB.Run(ctx)
	}()
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	// One GPU, two racing passes: exactly one binding total
	total := len(results[0]) + len(results[1])
	assert.Equal(t, 1, total, "expected exactly one assignment across both passes")

	running := 0
	pendingCount := 0
	for _, id := range []string{"job-1", "job-2"} {
		j, err := st.GetJob(ctx, id)
		require.NoError(t, err)
		switch j.Status {
		case common.JobRunning:
			running++
			assert.Equal(t, "gpu-1", j.GPUID)
		case common.JobPending:
			pendingCount++
			assert.Empty(t, j.GPUID)
		default:
			t.Fatalf("unexpected status %s for %s", j.Status, id)
		}
	}
	assert.Equal(t, 1, running)
	assert.Equal(t, 1, pendingCount)

	gpu, err := st.GetGPU(ctx, "gpu-1")
	require.NoError(t, err)
	assert.False(t, gpu.Available)
}
