// Storage contracts for the allocation engine.
// The engine never talks to etcd or Redis directly; it works against these
// interfaces so a database-backed implementation can be swapped in later.

package store

import (
	"context"
	"time"

	"github.com/orion-compute/orion-engine/pkg/engine/common"
)

// GPUDirectory: The pool registry. Exclusive owner of the availability flag.
type GPUDirectory interface {
	// AddGPU registers a GPU in the pool. A new GPU starts available.
	AddGPU(ctx context.Context, gpu *common.GPU) error

	// GetGPU returns a GPU by id, or common.ErrNotFound.
	GetGPU(ctx context.Context, id string) (*common.GPU, error)

	// ListGPUs returns every registered GPU, ordered by id.
	ListGPUs(ctx context.Context) ([]*common.GPU, error)

	// ListAvailableGPUs returns available GPUs, ordered by id.
	ListAvailableGPUs(ctx context.Context) ([]*common.GPU, error)

	// SetAvailability flips the availability flag unconditionally.
	// Used by the booking release path, not by schedulers.
	SetAvailability(ctx context.Context, id string, available bool) error
}

// JobQueue: Pending compute jobs, FIFO by creation time.
type JobQueue interface {
	AddJob(ctx context.Context, job *common.Job) error
	GetJob(ctx context.Context, id string) (*common.Job, error)

	// ListPendingJobs returns PENDING jobs in ascending creation-time
	// order. Already-running jobs are excluded, which is what makes a
	// repeated pass idempotent.
	ListPendingJobs(ctx context.Context) ([]*common.Job, error)

	// UpdateJob persists a status transition (start, complete, reject).
	UpdateJob(ctx context.Context, job *common.Job) error
}

// OrderBook: Marketplace orders for specific GPUs.
type OrderBook interface {
	AddOrder(ctx context.Context, order *common.Order) error
	GetOrder(ctx context.Context, id string) (*common.Order, error)

	// ListOpenOrders returns OPEN orders in ascending id order.
	ListOpenOrders(ctx context.Context) ([]*common.Order, error)

	// CountOpenOrdersForGPU counts open orders demanding one exact GPU.
	// Feeds the pricing engine's demand term.
	CountOpenOrdersForGPU(ctx context.Context, gpuID string) (int, error)
}

// Allocator: Atomic commit of allocation decisions.
//
// Both operations claim the GPU and transition the demand unit in one
// transaction: an observer never sees a GPU marked unavailable without the
// corresponding unit bound, or vice versa. They return false (no error) when
// the GPU was no longer available, which is how a losing concurrent pass
// finds out it lost.
type Allocator interface {
	AssignJob(ctx context.Context, jobID, gpuID string) (bool, error)
	MatchOrder(ctx context.Context, orderID, gpuID string) (bool, error)
}

// BookingStore: Time-boxed reservations.
type BookingStore interface {
	// ListOverlapping returns committed bookings for the GPU whose
	// half-open interval overlaps [start, end).
	ListOverlapping(ctx context.Context, gpuID string, start, end time.Time) ([]*common.Booking, error)

	// CreateBooking inserts a booking, serializing the overlap check
	// against concurrent inserts for the same GPU. Returns
	// common.ErrConflictingReservation when the window is taken.
	CreateBooking(ctx context.Context, booking *common.Booking) error

	ListBookings(ctx context.Context) ([]*common.Booking, error)
}

// HistoryStore: Read-only allocation history for the fairness scorer.
type HistoryStore interface {
	ListGPUs(ctx context.Context) ([]*common.GPU, error)
	ListBookings(ctx context.Context) ([]*common.Booking, error)
	ListReviews(ctx context.Context) ([]*common.Review, error)
	ListDisputes(ctx context.Context) ([]*common.Dispute, error)

	AddReview(ctx context.Context, review *common.Review) error
	AddDispute(ctx context.Context, dispute *common.Dispute) error
}

// Store: Everything the engine needs from its backing store.
type Store interface {
	GPUDirectory
	JobQueue
	OrderBook
	Allocator
	BookingStore
	HistoryStore
}
