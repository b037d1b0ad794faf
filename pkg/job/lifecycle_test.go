package job

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orion-compute/orion-engine/pkg/engine/common"
	"github.com/orion-compute/orion-engine/pkg/store/memory"
)

func setup(t *testing.T) (*Manager, *memory.MemoryStore) {
	t.Helper()
	st := memory.NewMemoryStore()
	return NewManager(st), st
}

func TestSubmitCreatesPendingJob(t *testing.T) {
	mgr, st := setup(t)
	ctx := context.Background()

	job, err := mgr.Submit(ctx, "tenant-1", "python train.py")
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, common.JobPending, job.Status)
	assert.Empty(t, job.GPUID)

	stored, err := st.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, common.JobPending, stored.Status)
}

func TestSubmitValidation(t *testing.T) {
	mgr, _ := setup(t)
	ctx := context.Background()

	_, err := mgr.Submit(ctx, "", "cmd")
	assert.Error(t, err)

	_, err = mgr.Submit(ctx, "tenant-1", "")
	assert.Error(t, err)
}

func TestCompleteReleasesGPU(t *testing.T) {
	mgr, st := setup(t)
	ctx := context.Background()

	require.NoError(t, st.AddGPU(ctx, &common.GPU{ID: "gpu-1", Model: "A100", MemoryGB: 40}))
	job, err := mgr.Submit(ctx, "tenant-1", "cmd")
	require.NoError(t, err)

	ok, err := st.AssignJob(ctx, job.ID, "gpu-1")
	require.NoError(t, err)
	require.True(t, ok)

	done, err := mgr.Complete(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, common.JobCompleted, done.Status)
	assert.False(t, done.EndedAt.IsZero())

	// GPU back in the pool
	gpu, err := st.GetGPU(ctx, "gpu-1")
	require.NoError(t, err)
	assert.True(t, gpu.Available)
}

func TestCompleteRequiresRunning(t *testing.T) {
	mgr, _ := setup(t)
	ctx := context.Background()

	job, err := mgr.Submit(ctx, "tenant-1", "cmd")
	require.NoError(t, err)

	// Still PENDING, cannot complete
	_, err = mgr.Complete(ctx, job.ID)
	assert.Error(t, err)

	_, err = mgr.Complete(ctx, "job-ghost")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestRejectRequiresPending(t *testing.T) {
	mgr, st := setup(t)
	ctx := context.Background()

	job, err := mgr.Submit(ctx, "tenant-1", "cmd")
	require.NoError(t, err)

	rejected, err := mgr.Reject(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, common.JobRejected, rejected.Status)

	// Rejecting twice fails: the job is no longer pending
	_, err = mgr.Reject(ctx, job.ID)
	assert.Error(t, err)

	// A running job cannot be rejected either
	require.NoError(t, st.AddGPU(ctx, &common.GPU{ID: "gpu-1", Model: "A100", MemoryGB: 40}))
	running, err := mgr.Submit(ctx, "tenant-1", "cmd")
	require.NoError(t, err)
	ok, err := st.AssignJob(ctx, running.ID, "gpu-1")
	require.NoError(t, err)
	require.True(t, ok)

	_, err = mgr.Reject(ctx, running.ID)
	assert.Error(t, err)
}

func TestRejectedJobLeavesSchedulingQueue(t *testing.T) {
	mgr, st := setup(t)
	ctx := context.Background()

	job, err := mgr.Submit(ctx, "tenant-1", "cmd")
	require.NoError(t, err)
	_, err = mgr.Reject(ctx, job.ID)
	require.NoError(t, err)

	pending, err := st.ListPendingJobs(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
