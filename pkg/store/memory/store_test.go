package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orion-compute/orion-engine/pkg/engine/common"
)

func TestAddAndGetGPU(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	gpu := &common.GPU{Model: "H100", Manufacturer: "NVIDIA", MemoryGB: 80, PricePerHour: 8.0}
	require.NoError(t, st.AddGPU(ctx, gpu))
	assert.NotEmpty(t, gpu.ID, "id assigned on insert")

	got, err := st.GetGPU(ctx, gpu.ID)
	require.NoError(t, err)
	assert.Equal(t, "H100", got.Model)
	assert.True(t, got.Available, "new GPU starts available")

	// Duplicate id refused
	assert.Error(t, st.AddGPU(ctx, &common.GPU{ID: gpu.ID, Model: "H100", MemoryGB: 80}))

	_, err = st.GetGPU(ctx, "nope")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestListGPUsOrderedAndFiltered(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	for _, id := range []string{"gpu-c", "gpu-a", "gpu-b"} {
		require.NoError(t, st.AddGPU(ctx, &common.GPU{ID: id, Model: "A100", MemoryGB: 40}))
	}
	require.NoError(t, st.SetAvailability(ctx, "gpu-b", false))

	all, err := st.ListGPUs(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "gpu-a", all[0].ID)
	assert.Equal(t, "gpu-b", all[1].ID)
	assert.Equal(t, "gpu-c", all[2].ID)

	avail, err := st.ListAvailableGPUs(ctx)
	require.NoError(t, err)
	require.Len(t, avail, 2)
	assert.Equal(t, "gpu-a", avail[0].ID)
	assert.Equal(t, "gpu-c", avail[1].ID)
}

func TestListPendingJobsFIFO(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	base := time.Now()
	require.NoError(t, st.AddJob(ctx, &common.Job{ID: "job-2", Status: common.JobPending, CreatedAt: base.Add(time.Second)}))
	require.NoError(t, st.AddJob(ctx, &common.Job{ID: "job-1", Status: common.JobPending, CreatedAt: base}))
	require.NoError(t, st.AddJob(ctx, &common.Job{ID: "job-3", Status: common.JobRunning, CreatedAt: base.Add(-time.Hour)}))

	pending, err := st.ListPendingJobs(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2, "running jobs excluded")
	assert.Equal(t, "job-1", pending[0].ID)
	assert.Equal(t, "job-2", pending[1].ID)
}

func TestStoreReturnsCopies(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, st.AddGPU(ctx, &common.GPU{ID: "gpu-1", Model: "A100", MemoryGB: 40}))

	got, err := st.GetGPU(ctx, "gpu-1")
	require.NoError(t, err)
	got.Model = "mutated"

	again, err := st.GetGPU(ctx, "gpu-1")
	require.NoError(t, err)
	assert.Equal(t, "A100", again.Model, "caller mutation must not leak into the store")
}

func TestAssignJobClaimAndBind(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, st.AddGPU(ctx, &common.GPU{ID: "gpu-1", Model: "A100", MemoryGB: 40}))
	require.NoError(t, st.AddJob(ctx, &common.Job{ID: "job-1", Status: common.JobPending}))

	ok, err := st.AssignJob(ctx, "job-1", "gpu-1")
	require.NoError(t, err)
	require.True(t, ok)

	job, err := st.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, common.JobRunning, job.Status)
	assert.Equal(t, "gpu-1", job.GPUID)
	assert.False(t, job.StartedAt.IsZero())

	gpu, err := st.GetGPU(ctx, "gpu-1")
	require.NoError(t, err)
	assert.False(t, gpu.Available)

	// A second claim on the same GPU loses cleanly
	require.NoError(t, st.AddJob(ctx, &common.Job{ID: "job-2", Status: common.JobPending}))
	ok, err = st.AssignJob(ctx, "job-2", "gpu-1")
	require.NoError(t, err)
	assert.False(t, ok)

	loser, err := st.GetJob(ctx, "job-2")
	require.NoError(t, err)
	assert.Equal(t, common.JobPending, loser.Status)
}

func TestAssignJobUnknownJob(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, st.AddGPU(ctx, &common.GPU{ID: "gpu-1", Model: "A100", MemoryGB: 40}))

	_, err := st.AssignJob(ctx, "job-ghost", "gpu-1")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestMatchOrderClaimAndBind(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, st.AddGPU(ctx, &common.GPU{ID: "gpu-1", Model: "A100", MemoryGB: 40}))
	require.NoError(t, st.AddOrder(ctx, &common.Order{ID: "order-1", GPUID: "gpu-1", Status: common.OrderOpen}))

	ok, err := st.MatchOrder(ctx, "order-1", "gpu-1")
	require.NoError(t, err)
	require.True(t, ok)

	order, err := st.GetOrder(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, common.OrderMatched, order.Status)

	// Matching again is a lost claim, not an error
	ok, err = st.MatchOrder(ctx, "order-1", "gpu-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCountOpenOrdersForGPU(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, st.AddOrder(ctx, &common.Order{ID: "o1", GPUID: "gpu-1", Status: common.OrderOpen}))
	require.NoError(t, st.AddOrder(ctx, &common.Order{ID: "o2", GPUID: "gpu-1", Status: common.OrderOpen}))
	require.NoError(t, st.AddOrder(ctx, &common.Order{ID: "o3", GPUID: "gpu-1", Status: common.OrderMatched}))
	require.NoError(t, st.AddOrder(ctx, &common.Order{ID: "o4", GPUID: "gpu-2", Status: common.OrderOpen}))

	count, err := st.CountOpenOrdersForGPU(ctx, "gpu-1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestCreateBookingOverlapRejected(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, st.AddGPU(ctx, &common.GPU{ID: "gpu-1", Model: "A100", MemoryGB: 40}))

	start := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	require.NoError(t, st.CreateBooking(ctx, &common.Booking{
		GPUID:     "gpu-1",
		StartTime: start,
		EndTime:   start.Add(time.Hour),
	}))

	err := st.CreateBooking(ctx, &common.Booking{
		GPUID:     "gpu-1",
		StartTime: start.Add(30 * time.Minute),
		EndTime:   start.Add(90 * time.Minute),
	})
	assert.ErrorIs(t, err, common.ErrConflictingReservation)

	// Same window on a different GPU is independent
	require.NoError(t, st.AddGPU(ctx, &common.GPU{ID: "gpu-2", Model: "A100", MemoryGB: 40}))
	require.NoError(t, st.CreateBooking(ctx, &common.Booking{
		GPUID:     "gpu-2",
		StartTime: start,
		EndTime:   start.Add(time.Hour),
	}))
}

func TestReviewAndDisputeRequireBooking(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	err := st.AddReview(ctx, &common.Review{BookingID: "bk-ghost", Rating: 5})
	assert.ErrorIs(t, err, common.ErrNotFound)

	err = st.AddDispute(ctx, &common.Dispute{BookingID: "bk-ghost"})
	assert.ErrorIs(t, err, common.ErrNotFound)
}
