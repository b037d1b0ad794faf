package booking

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

func setup(t *testing.T) (*Service, *memory.MemoryStore) {
	t.Helper()
	st := memory.NewMemoryStore()
	err := st.AddGPU(context.Background(), &common.GPU{
		ID:           "gpu-1",
		Model:        "A100",
		MemoryGB:     40,
		PricePerHour: 2.0,
	})
	require.NoError(t, err)
	return NewService(st), st
}

func at(t *testing.T, hour, minute int) time.Time {
	t.Helper()
	return time.Date(2026, 8, 31, hour, minute, 0, 0, time.UTC)
}

func TestIsAvailableEmptyCalendar(t *testing.T) {
	svc, _ := setup(t)

	ok, err := svc.IsAvailable(context.Background(), "gpu-1", at(t, 9, 0), at(t, 10, 0))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestIsAvailableOverlapDetection(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "tenant-1", "gpu-1", at(t, 10, 0), at(t, 11, 0))
	require.NoError(t, err)

	// Window fully inside the existing booking
	ok, err := svc.IsAvailable(ctx, "gpu-1", at(t, 10, 30), at(t, 10, 45))
	require.NoError(t, err)
	assert.False(t, ok)

	// Half-open intervals: a window ending exactly at the start is free
	ok, err = svc.IsAvailable(ctx, "gpu-1", at(t, 9, 0), at(t, 10, 0))
	require.NoError(t, err)
	assert.True(t, ok)

	// And one starting exactly at the end is free too
	ok, err = svc.IsAvailable(ctx, "gpu-1", at(t, 11, 0), at(t, 12, 0))
	require.NoError(t, err)
	assert.True(t, ok)

	// Straddling the start is taken
	ok, err = svc.IsAvailable(ctx, "gpu-1", at(t, 9, 30), at(t, 10, 30))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIsAvailableDegenerateWindow(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	// end == start is never available, and not an error
	ok, err := svc.IsAvailable(ctx, "gpu-1", at(t, 10, 0), at(t, 10, 0))
	require.NoError(t, err)
	assert.False(t, ok)

	// end < start likewise
	ok, err = svc.IsAvailable(ctx, "gpu-1", at(t, 11, 0), at(t, 10, 0))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCreateInvalidInterval(t *testing.T) {
	svc, _ := setup(t)

	_, err := svc.Create(context.Background(), "tenant-1", "gpu-1", at(t, 11, 0), at(t, 10, 0))
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrInvalidInterval)
}

func TestCreateUnknownGPU(t *testing.T) {
	svc, _ := setup(t)

	_, err := svc.Create(context.Background(), "tenant-1", "gpu-missing", at(t, 10, 0), at(t, 11, 0))
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestCreateConflictingReservation(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, "tenant-1", "gpu-1", at(t, 10, 0), at(t, 11, 0))
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)

	_, err = svc.Create(ctx, "tenant-2", "gpu-1", at(t, 10, 30), at(t, 11, 30))
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrConflictingReservation)

	// Back-to-back windows commit fine
	_, err = svc.Create(ctx, "tenant-2", "gpu-1", at(t, 11, 0), at(t, 12, 0))
	require.NoError(t, err)
}

func TestConcurrentCreateSameWindow(t *testing.T) {
	svc, st := setup(t)
	ctx := context.Background()

	start, end := at(t, 14, 0), at(t, 15, 0)

	var wg sync.WaitGroup
	errs := make([]error, 2)

	wg.Add(2)
	for i := 0; i < 2; i++ {
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Create(ctx, "tenant", "gpu-1", start, end)
		}(i)
	}
	wg.Wait()

	// Exactly one request wins the window
	conflicts := 0
	for _, err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, common.ErrConflictingReservation)
			conflicts++
		}
	}
	assert.Equal(t, 1, conflicts)

	bookings, err := st.ListBookings(ctx)
	require.NoError(t, err)
	assert.Len(t, bookings, 1)
}
