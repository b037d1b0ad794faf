// In-memory store backed by Go maps behind a single mutex.
// Used by unit tests and single-node deployments; the etcd store is the
// production backend. Claim-and-bind runs under the lock, so the
// availability flag behaves like a row-locked column.

package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/orion-compute/orion-engine/pkg/engine/common"
)

// MemoryStore: Mutex-guarded implementation of store.Store
type MemoryStore struct {
	mu sync.Mutex

	gpus     map[string]*common.GPU
	jobs     map[string]*common.Job
	orders   map[string]*common.Order
	bookings map[string]*common.Booking
	reviews  map[string]*common.Review
	disputes map[string]*common.Dispute
}

// NewMemoryStore: Create an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		gpus:     make(map[string]*common.GPU),
		jobs:     make(map[string]*common.Job),
		orders:   make(map[string]*common.Order),
		bookings: make(map[string]*common.Booking),
		reviews:  make(map[string]*common.Review),
		disputes: make(map[string]*common.Dispute),
	}
}

// ============================================================================
// GPU DIRECTORY
// ============================================================================

// AddGPU: Register a GPU in the pool (starts available)
func (ms *MemoryStore) AddGPU(ctx context.Context, gpu *common.GPU) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if gpu.ID == "" {
		gpu.ID = uuid.NewString()
	}
	if _, exists := ms.gpus[gpu.ID]; exists {
		return fmt.Errorf("gpu %s already registered", gpu.ID)
	}
	if gpu.CreatedAt.IsZero() {
		gpu.CreatedAt = time.Now()
	}
	gpu.Available = true

	cp := *gpu
	ms.gpus[gpu.ID] = &cp
	return nil
}

// GetGPU: Look up a GPU by id
func (ms *MemoryStore) GetGPU(ctx context.Context, id string) (*common.GPU, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	gpu, exists := ms.gpus[id]
	if !exists {
		return nil, fmt.Errorf("gpu %s: %w", id, common.ErrNotFound)
	}
	cp := *gpu
	return &cp, nil
}

// ListGPUs: All registered GPUs, ordered by id
func (ms *MemoryStore) ListGPUs(ctx context.Context) ([]*common.GPU, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.listGPUsLocked(false), nil
}

// ListAvailableGPUs: Available GPUs only, ordered by id
func (ms *MemoryStore) ListAvailableGPUs(ctx context.Context) ([]*common.GPU, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.listGPUsLocked(true), nil
}

func (ms *MemoryStore) listGPUsLocked(onlyAvailable bool) []*common.GPU {
	result := make([]*common.GPU, 0, len(ms.gpus))
	for _, gpu := range ms.gpus {
		if onlyAvailable && !gpu.Available {
			continue
		}
		cp := *gpu
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	return result
}

// SetAvailability: Flip the availability flag unconditionally
func (ms *MemoryStore) SetAvailability(ctx context.Context, id string, available bool) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	gpu, exists := ms.gpus[id]
	if !exists {
		return fmt.Errorf("gpu %s: %w", id, common.ErrNotFound)
	}
	gpu.Available = available
	return nil
}

// ============================================================================
// JOB QUEUE
// ============================================================================

// AddJob: Enqueue a new job in PENDING state
func (ms *MemoryStore) AddJob(ctx context.Context, job *common.Job) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if _, exists := ms.jobs[job.ID]; exists {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	if job.Status == "" {
		job.Status = common.JobPending
	}

	cp := *job
	ms.jobs[job.ID] = &cp
	return nil
}

// GetJob: Look up a job by id
func (ms *MemoryStore) GetJob(ctx context.Context, id string) (*common.Job, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	job, exists := ms.jobs[id]
	if !exists {
		return nil, fmt.Errorf("job %s: %w", id, common.ErrNotFound)
	}
	cp := *job
	return &cp, nil
}

// ListPendingJobs: PENDING jobs in ascending creation-time order
func (ms *MemoryStore) ListPendingJobs(ctx context.Context) ([]*common.Job, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	result := make([]*common.Job, 0)
	for _, job := range ms.jobs {
		if job.Status == common.JobPending {
			cp := *job
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// UpdateJob: Persist a job status transition
func (ms *MemoryStore) UpdateJob(ctx context.Context, job *common.Job) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, exists := ms.jobs[job.ID]; !exists {
		return fmt.Errorf("job %s: %w", job.ID, common.ErrNotFound)
	}
	cp := *job
	ms.jobs[job.ID] = &cp
	return nil
}

// ============================================================================
// ORDER BOOK
// ============================================================================

// AddOrder: Record a new marketplace order in OPEN state
func (ms *MemoryStore) AddOrder(ctx context.Context, order *common.Order) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	if _, exists := ms.orders[order.ID]; exists {
		return fmt.Errorf("order %s already exists", order.ID)
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now()
	}
	if order.Status == "" {
		order.Status = common.OrderOpen
	}
	if order.Quantity <= 0 {
		order.Quantity = 1
	}

	cp := *order
	ms.orders[order.ID] = &cp
	return nil
}

// GetOrder: Look up an order by id
func (ms *MemoryStore) GetOrder(ctx context.Context, id string) (*common.Order, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	order, exists := ms.orders[id]
	if !exists {
		return nil, fmt.Errorf("order %s: %w", id, common.ErrNotFound)
	}
	cp := *order
	return &cp, nil
}

// ListOpenOrders: OPEN orders in ascending id order
func (ms *MemoryStore) ListOpenOrders(ctx context.Context) ([]*common.Order, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	result := make([]*common.Order, 0)
	for _, order := range ms.orders {
		if order.Status == common.OrderOpen {
			cp := *order
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// CountOpenOrdersForGPU: Demand term for the pricing engine
func (ms *MemoryStore) CountOpenOrdersForGPU(ctx context.Context, gpuID string) (int, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	count := 0
	for _, order := range ms.orders {
		if order.Status == common.OrderOpen && order.GPUID == gpuID {
			count++
		}
	}
	return count, nil
}

// ============================================================================
// ALLOCATOR (atomic claim + bind)
// ============================================================================

// AssignJob: Atomically claim the GPU and bind the job to it.
// Returns false when the GPU is gone or already claimed, so a losing
// concurrent pass leaves its job PENDING instead of failing.
func (ms *MemoryStore) AssignJob(ctx context.Context, jobID, gpuID string) (bool, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	gpu, exists := ms.gpus[gpuID]
	if !exists || !gpu.Available {
		return false, nil
	}
	job, exists := ms.jobs[jobID]
	if !exists {
		return false, fmt.Errorf("job %s: %w", jobID, common.ErrNotFound)
	}
	if job.Status != common.JobPending {
		return false, nil
	}

	gpu.Available = false
	job.Status = common.JobRunning
	job.GPUID = gpuID
	job.StartedAt = time.Now()
	return true, nil
}

// MatchOrder: Atomically claim the GPU and mark the order MATCHED
func (ms *MemoryStore) MatchOrder(ctx context.Context, orderID, gpuID string) (bool, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	gpu, exists := ms.gpus[gpuID]
	if !exists || !gpu.Available {
		return false, nil
	}
	order, exists := ms.orders[orderID]
	if !exists {
		return false, fmt.Errorf("order %s: %w", orderID, common.ErrNotFound)
	}
	if order.Status != common.OrderOpen {
		return false, nil
	}

	gpu.Available = false
	order.Status = common.OrderMatched
	return true, nil
}

// ============================================================================
// BOOKING STORE
// ============================================================================

// ListOverlapping: Committed bookings overlapping [start, end) for a GPU
func (ms *MemoryStore) ListOverlapping(ctx context.Context, gpuID string, start, end time.Time) ([]*common.Booking, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	result := make([]*common.Booking, 0)
	for _, booking := range ms.bookings {
		if booking.GPUID == gpuID && booking.Overlaps(start, end) {
			cp := *booking
			result = append(result, &cp)
		}
	}
	return result, nil
}

// CreateBooking: Overlap check and insert under one lock.
// The lock is what serializes two concurrent requests for the same window;
// exactly one of them commits.
func (ms *MemoryStore) CreateBooking(ctx context.Context, booking *common.Booking) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, exists := ms.gpus[booking.GPUID]; !exists {
		return fmt.Errorf("gpu %s: %w", booking.GPUID, common.ErrNotFound)
	}

	for _, existing := range ms.bookings {
		if existing.GPUID == booking.GPUID && existing.Overlaps(booking.StartTime, booking.EndTime) {
			return fmt.Errorf("gpu %s window [%s, %s): %w",
				booking.GPUID,
				booking.StartTime.Format(time.RFC3339),
				booking.EndTime.Format(time.RFC3339),
				common.ErrConflictingReservation)
		}
	}

	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = time.Now()
	}

	cp := *booking
	ms.bookings[booking.ID] = &cp
	return nil
}

// ListBookings: All committed bookings
func (ms *MemoryStore) ListBookings(ctx context.Context) ([]*common.Booking, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	result := make([]*common.Booking, 0, len(ms.bookings))
	for _, booking := range ms.bookings {
		cp := *booking
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// ============================================================================
// HISTORY (reviews & disputes)
// ============================================================================

// AddReview: Attach a review to a booking
func (ms *MemoryStore) AddReview(ctx context.Context, review *common.Review) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, exists := ms.bookings[review.BookingID]; !exists {
		return fmt.Errorf("booking %s: %w", review.BookingID, common.ErrNotFound)
	}
	if review.ID == "" {
		review.ID = uuid.NewString()
	}
	if review.CreatedAt.IsZero() {
		review.CreatedAt = time.Now()
	}

	cp := *review
	ms.reviews[review.ID] = &cp
	return nil
}

// AddDispute: Attach a dispute to a booking
func (ms *MemoryStore) AddDispute(ctx context.Context, dispute *common.Dispute) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, exists := ms.bookings[dispute.BookingID]; !exists {
		return fmt.Errorf("booking %s: %w", dispute.BookingID, common.ErrNotFound)
	}
	if dispute.ID == "" {
		dispute.ID = uuid.NewString()
	}
	if dispute.CreatedAt.IsZero() {
		dispute.CreatedAt = time.Now()
	}

	cp := *dispute
	ms.disputes[dispute.ID] = &cp
	return nil
}

// ListReviews: All reviews
func (ms *MemoryStore) ListReviews(ctx context.Context) ([]*common.Review, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	result := make([]*common.Review, 0, len(ms.reviews))
	for _, review := range ms.reviews {
		cp := *review
		result = append(result, &cp)
	}
	return result, nil
}

// ListDisputes: All disputes
func (ms *MemoryStore) ListDisputes(ctx context.Context) ([]*common.Dispute, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	result := make([]*common.Dispute, 0, len(ms.disputes))
	for _, dispute := range ms.disputes {
		cp := *dispute
		result = append(result, &cp)
	}
	return result, nil
}
