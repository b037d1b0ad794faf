// Booking service: point-in-time availability queries and booking creation.
//
// IsAvailable is a pure read and reserves nothing; Create re-runs the
// overlap check inside the store's per-GPU serialization, which is what
// closes the race window between checking and reserving.

package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/orion-compute/orion-engine/pkg/engine/common"
	"github.com/orion-compute/orion-engine/pkg/logger"
	"github.com/orion-compute/orion-engine/pkg/store"
)

// Service: Availability checks and booking creation for one GPU pool
type Service struct {
	directory store.GPUDirectory
	bookings  store.BookingStore
	log       *logger.Logger
}

// NewService: Create a booking service over the given store
func NewService(st store.Store) *Service {
	return &Service{
		directory: st,
		bookings:  st,
		log:       logger.Get(),
	}
}

// IsAvailable: True iff no committed booking for the GPU overlaps
// [start, end). A degenerate window (end <= start) is never available;
// malformed input is rejected, not errored.
func (s *Service) IsAvailable(ctx context.Context, gpuID string, start, end time.Time) (bool, error) {
	if !end.After(start) {
		return false, nil
	}

	overlapping, err := s.bookings.ListOverlapping(ctx, gpuID, start, end)
	if err != nil {
		return false, fmt.Errorf("list overlapping bookings: %w", err)
	}
	return len(overlapping) == 0, nil
}

// Create: Validate and commit a booking for [start, end).
//
// Returns common.ErrInvalidInterval before touching the store when
// end <= start, common.ErrNotFound for an unknown GPU, and
// common.ErrConflictingReservation when the window is already taken;
// the caller may retry with a different window.
func (s *Service) Create(ctx context.Context, requesterID, gpuID string, start, end time.Time) (*common.Booking, error) {
	if !end.After(start) {
		return nil, fmt.Errorf("booking [%s, %s): %w",
			start.Format(time.RFC3339), end.Format(time.RFC3339),
			common.ErrInvalidInterval)
	}

	if _, err := s.directory.GetGPU(ctx, gpuID); err != nil {
		return nil, fmt.Errorf("create booking: %w", err)
	}

	booking := &common.Booking{
		RequesterID: requesterID,
		GPUID:       gpuID,
		StartTime:   start,
		EndTime:     end,
	}

	if err := s.bookings.CreateBooking(ctx, booking); err != nil {
		return nil, fmt.Errorf("create booking: %w", err)
	}

	return booking, nil
}
