// etcd-backed implementation of store.Store.
//
// Entity records are JSON values under orion: prefixes. The availability
// flag lives in its own key so allocation commits can be guarded by a
// compare on its value: a claim is a transaction of the form
//
//	If(avail == "true") Then(avail = "false", bind unit) Else(nothing)
//
// which is the row-level locking the allocation path requires. Two
// concurrent passes can both read the GPU as available, but only one
// transaction succeeds; the loser gets ok=false and leaves its unit pending.
//
// Booking inserts serialize the overlap check per GPU through an etcd mutex,
// the moral equivalent of an exclusion constraint over gpu × interval.

package etcd

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/concurrency"

	"github.com/orion-compute/orion-engine/pkg/engine/common"
	"github.com/orion-compute/orion-engine/pkg/logger"
)

// Key prefixes
const (
	gpuPrefix     = "orion:gpus:"
	availPrefix   = "orion:avail:"
	jobPrefix     = "orion:jobs:"
	queuePrefix   = "orion:queue:pending:"
	orderPrefix   = "orion:orders:"
	bookingPrefix = "orion:bookings:"
	reviewPrefix  = "orion:reviews:"
	disputePrefix = "orion:disputes:"

	bookingLockPrefix = "orion:lock:booking:"
	bookingLockTTL    = 30 // seconds
)

// Store: etcd-backed entity store
type Store struct {
	client *Client
	log    *logger.Logger
}

// NewStore: Create a store on top of an etcd client
func NewStore(client *Client) *Store {
	return &Store{
		client: client,
		log:    logger.Get(),
	}
}

func gpuKey(id string) string     { return gpuPrefix + id }
func availKey(id string) string   { return availPrefix + id }
func jobKey(id string) string     { return jobPrefix + id }
func orderKey(id string) string   { return orderPrefix + id }
func reviewKey(id string) string  { return reviewPrefix + id }
func disputeKey(id string) string { return disputePrefix + id }

// queueKey: Zero-padded creation time keeps etcd's lexicographic key order
// identical to FIFO order.
func queueKey(job *common.Job) string {
	return fmt.Sprintf("%s%020d-%s", queuePrefix, job.CreatedAt.UnixNano(), job.ID)
}

func bookingKey(gpuID, bookingID string) string {
	return fmt.Sprintf("%s%s/%s", bookingPrefix, gpuID, bookingID)
}

// ============================================================================
// GPU DIRECTORY
// ============================================================================

// AddGPU: Register a GPU; the availability key starts at "true"
func (s *Store) AddGPU(ctx context.Context, gpu *common.GPU) error {
	if gpu.ID == "" {
		gpu.ID = uuid.NewString()
	}
	if gpu.CreatedAt.IsZero() {
		gpu.CreatedAt = time.Now()
	}
	gpu.Available = true

	data, err := json.Marshal(gpu)
	if err != nil {
		return fmt.Errorf("marshal gpu: %w", err)
	}

	resp, err := s.client.Txn(ctx).
		If(clientv3.Compare(clientv3.CreateRevision(gpuKey(gpu.ID)), "=", 0)).
		Then(
			clientv3.OpPut(gpuKey(gpu.ID), string(data)),
			clientv3.OpPut(availKey(gpu.ID), "true"),
		).
		Commit()
	if err != nil {
		return fmt.Errorf("add gpu %s: %v: %w", gpu.ID, err, common.ErrPersistence)
	}
	if !resp.Succeeded {
		return fmt.Errorf("gpu %s already registered", gpu.ID)
	}

	s.log.Info("Registered GPU %s (%s, %dGB, %.2f/hr)",
		gpu.ID, gpu.Model, gpu.MemoryGB, gpu.PricePerHour)
	return nil
}

// GetGPU: Load a GPU record and compose its availability flag
func (s *Store) GetGPU(ctx context.Context, id string) (*common.GPU, error) {
	raw, err := s.client.Get(ctx, gpuKey(id))
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, fmt.Errorf("gpu %s: %w", id, common.ErrNotFound)
	}

	var gpu common.GPU
	if err := json.Unmarshal([]byte(raw), &gpu); err != nil {
		return nil, fmt.Errorf("unmarshal gpu %s: %w", id, err)
	}

	avail, err := s.client.Get(ctx, availKey(id))
	if err != nil {
		return nil, err
	}
	gpu.Available = avail == "true"
	return &gpu, nil
}

// ListGPUs: All registered GPUs, ordered by id
func (s *Store) ListGPUs(ctx context.Context) ([]*common.GPU, error) {
	return s.listGPUs(ctx, false)
}

// ListAvailableGPUs: Available GPUs only, ordered by id
func (s *Store) ListAvailableGPUs(ctx context.Context) ([]*common.GPU, error) {
	return s.listGPUs(ctx, true)
}

func (s *Store) listGPUs(ctx context.Context, onlyAvailable bool) ([]*common.GPU, error) {
	records, err := s.client.GetAll(ctx, gpuPrefix)
	if err != nil {
		return nil, err
	}
	availability, err := s.client.GetAll(ctx, availPrefix)
	if err != nil {
		return nil, err
	}

	result := make([]*common.GPU, 0, len(records))
	for key, raw := range records {
		var gpu common.GPU
		if err := json.Unmarshal([]byte(raw), &gpu); err != nil {
			s.log.Warn("Skipping corrupt GPU record %s: %v", key, err)
			continue
		}
		gpu.Available = availability[availKey(gpu.ID)] == "true"
		if onlyAvailable && !gpu.Available {
			continue
		}
		result = append(result, &gpu)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// SetAvailability: Unconditional flip, for the release path
func (s *Store) SetAvailability(ctx context.Context, id string, available bool) error {
	exists, err := s.exists(ctx, gpuKey(id))
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("gpu %s: %w", id, common.ErrNotFound)
	}

	value := "false"
	if available {
		value = "true"
	}
	if err := s.client.Put(ctx, availKey(id), value); err != nil {
		return fmt.Errorf("set availability %s: %v: %w", id, err, common.ErrPersistence)
	}
	return nil
}

func (s *Store) exists(ctx context.Context, key string) (bool, error) {
	value, err := s.client.Get(ctx, key)
	if err != nil {
		return false, err
	}
	return value != "", nil
}

// ============================================================================
// JOB QUEUE
// ============================================================================

// AddJob: Create the job record plus its FIFO queue entry in one txn
func (s *Store) AddJob(ctx context.Context, job *common.Job) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	if job.Status == "" {
		job.Status = common.JobPending
	}

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	resp, err := s.client.Txn(ctx).
		If(clientv3.Compare(clientv3.CreateRevision(jobKey(job.ID)), "=", 0)).
		Then(
			clientv3.OpPut(jobKey(job.ID), string(data)),
			clientv3.OpPut(queueKey(job), job.ID),
		).
		Commit()
	if err != nil {
		return fmt.Errorf("add job %s: %v: %w", job.ID, err, common.ErrPersistence)
	}
	if !resp.Succeeded {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	return nil
}

// GetJob: Load a job by id
func (s *Store) GetJob(ctx context.Context, id string) (*common.Job, error) {
	raw, err := s.client.Get(ctx, jobKey(id))
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, fmt.Errorf("job %s: %w", id, common.ErrNotFound)
	}

	var job common.Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return nil, fmt.Errorf("unmarshal job %s: %w", id, err)
	}
	return &job, nil
}

// ListPendingJobs: Walk the queue prefix; key order is FIFO order
func (s *Store) ListPendingJobs(ctx context.Context) ([]*common.Job, error) {
	ids, err := s.client.GetAllOrdered(ctx, queuePrefix)
	if err != nil {
		return nil, err
	}

	jobs := make([]*common.Job, 0, len(ids))
	for _, id := range ids {
		job, err := s.GetJob(ctx, id)
		if err != nil {
			s.log.Warn("Queue entry for missing job %s: %v", id, err)
			continue
		}
		if job.IsPending() {
			jobs = append(jobs, job)
		}
	}
	return jobs, nil
}

// UpdateJob: Persist a lifecycle transition; drops the queue entry once
// the job is no longer pending
func (s *Store) UpdateJob(ctx context.Context, job *common.Job) error {
	exists, err := s.exists(ctx, jobKey(job.ID))
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("job %s: %w", job.ID, common.ErrNotFound)
	}

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	ops := []clientv3.Op{clientv3.OpPut(jobKey(job.ID), string(data))}
	if !job.IsPending() {
		ops = append(ops, clientv3.OpDelete(queueKey(job)))
	}

	if _, err := s.client.Txn(ctx).Then(ops...).Commit(); err != nil {
		return fmt.Errorf("update job %s: %v: %w", job.ID, err, common.ErrPersistence)
	}
	return nil
}

// ============================================================================
// ORDER BOOK
// ============================================================================

// AddOrder: Record a new marketplace order
func (s *Store) AddOrder(ctx context.Context, order *common.Order) error {
	if order.ID == "" {
		order.ID = uuid.NewString()
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

	data, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("marshal order: %w", err)
	}

	created, err := s.client.CreateIfAbsent(ctx, orderKey(order.ID), string(data))
	if err != nil {
		return fmt.Errorf("add order %s: %v: %w", order.ID, err, common.ErrPersistence)
	}
	if !created {
		return fmt.Errorf("order %s already exists", order.ID)
	}
	return nil
}

// GetOrder: Load an order by id
func (s *Store) GetOrder(ctx context.Context, id string) (*common.Order, error) {
	raw, err := s.client.Get(ctx, orderKey(id))
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, fmt.Errorf("order %s: %w", id, common.ErrNotFound)
	}

	var order common.Order
	if err := json.Unmarshal([]byte(raw), &order); err != nil {
		return nil, fmt.Errorf("unmarshal order %s: %w", id, err)
	}
	return &order, nil
}

// ListOpenOrders: OPEN orders in ascending id order (key order)
func (s *Store) ListOpenOrders(ctx context.Context) ([]*common.Order, error) {
	values, err := s.client.GetAllOrdered(ctx, orderPrefix)
	if err != nil {
		return nil, err
	}

	result := make([]*common.Order, 0, len(values))
	for _, raw := range values {
		var order common.Order
		if err := json.Unmarshal([]byte(raw), &order); err != nil {
			s.log.Warn("Skipping corrupt order record: %v", err)
			continue
		}
		if order.IsOpen() {
			result = append(result, &order)
		}
	}
	return result, nil
}

// CountOpenOrdersForGPU: Demand term for the pricing engine
func (s *Store) CountOpenOrdersForGPU(ctx context.Context, gpuID string) (int, error) {
	orders, err := s.ListOpenOrders(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, order := range orders {
		if order.GPUID == gpuID {
			count++
		}
	}
	return count, nil
}

// ============================================================================
// ALLOCATOR (atomic claim + bind)
// ============================================================================

// AssignJob: One transaction claims the GPU, moves the job to RUNNING and
// drops its queue entry. Guards: the availability value must still read
// "true" and the job record must be unchanged since we loaded it.
func (s *Store) AssignJob(ctx context.Context, jobID, gpuID string) (bool, error) {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return false, err
	}
	if !job.IsPending() {
		return false, nil
	}

	_, jobRev, _, err := s.client.GetWithRevision(ctx, jobKey(jobID))
	if err != nil {
		return false, err
	}

	bound := *job
	bound.Status = common.JobRunning
	bound.GPUID = gpuID
	bound.StartedAt = time.Now()

	data, err := json.Marshal(&bound)
	if err != nil {
		return false, fmt.Errorf("marshal job: %w", err)
	}

	resp, err := s.client.Txn(ctx).
		If(
			clientv3.Compare(clientv3.Value(availKey(gpuID)), "=", "true"),
			clientv3.Compare(clientv3.ModRevision(jobKey(jobID)), "=", jobRev),
		).
		Then(
			clientv3.OpPut(availKey(gpuID), "false"),
			clientv3.OpPut(jobKey(jobID), string(data)),
			clientv3.OpDelete(queueKey(job)),
		).
		Commit()
	if err != nil {
		return false, fmt.Errorf("assign job %s: %v: %w", jobID, err, common.ErrPersistence)
	}
	if !resp.Succeeded {
		s.log.Debug("Lost claim on GPU %s for job %s", gpuID, jobID)
		return false, nil
	}

	s.log.Info("Assigned job %s to GPU %s", jobID, gpuID)
	return true, nil
}

// MatchOrder: Same shape as AssignJob for a marketplace order
func (s *Store) MatchOrder(ctx context.Context, orderID, gpuID string) (bool, error) {
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return false, err
	}
	if !order.IsOpen() {
		return false, nil
	}

	_, orderRev, _, err := s.client.GetWithRevision(ctx, orderKey(orderID))
	if err != nil {
		return false, err
	}

	matched := *order
	matched.Status = common.OrderMatched

	data, err := json.Marshal(&matched)
	if err != nil {
		return false, fmt.Errorf("marshal order: %w", err)
	}

	resp, err := s.client.Txn(ctx).
		If(
			clientv3.Compare(clientv3.Value(availKey(gpuID)), "=", "true"),
			clientv3.Compare(clientv3.ModRevision(orderKey(orderID)), "=", orderRev),
		).
		Then(
			clientv3.OpPut(availKey(gpuID), "false"),
			clientv3.OpPut(orderKey(orderID), string(data)),
		).
		Commit()
	if err != nil {
		return false, fmt.Errorf("match order %s: %v: %w", orderID, err, common.ErrPersistence)
	}
	if !resp.Succeeded {
		s.log.Debug("Lost claim on GPU %s for order %s", gpuID, orderID)
		return false, nil
	}

	s.log.Info("Matched order %s with GPU %s", orderID, gpuID)
	return true, nil
}

// ============================================================================
// BOOKING STORE
// ============================================================================

// ListOverlapping: Committed bookings overlapping [start, end) for a GPU
func (s *Store) ListOverlapping(ctx context.Context, gpuID string, start, end time.Time) ([]*common.Booking, error) {
	records, err := s.client.GetAll(ctx, bookingPrefix+gpuID+"/")
	if err != nil {
		return nil, err
	}

	result := make([]*common.Booking, 0)
	for key, raw := range records {
		var booking common.Booking
		if err := json.Unmarshal([]byte(raw), &booking); err != nil {
			s.log.Warn("Skipping corrupt booking record %s: %v", key, err)
			continue
		}
		if booking.Overlaps(start, end) {
			result = append(result, &booking)
		}
	}
	return result, nil
}

// CreateBooking: Overlap check and insert under a per-GPU etcd mutex.
// The mutex serializes concurrent inserts for the same GPU so the check
// and the put behave as one transaction.
func (s *Store) CreateBooking(ctx context.Context, booking *common.Booking) error {
	exists, err := s.exists(ctx, gpuKey(booking.GPUID))
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("gpu %s: %w", booking.GPUID, common.ErrNotFound)
	}

	session, err := s.client.NewSession(bookingLockTTL)
	if err != nil {
		return fmt.Errorf("booking lock session: %v: %w", err, common.ErrPersistence)
	}
	defer session.Close()

	mutex := concurrency.NewMutex(session, bookingLockPrefix+booking.GPUID)
	if err := mutex.Lock(ctx); err != nil {
		return fmt.Errorf("booking lock: %v: %w", err, common.ErrPersistence)
	}
	defer func() {
		if err := mutex.Unlock(context.Background()); err != nil {
			s.log.Warn("Failed to release booking lock for GPU %s: %v", booking.GPUID, err)
		}
	}()

	overlapping, err := s.ListOverlapping(ctx, booking.GPUID, booking.StartTime, booking.EndTime)
	if err != nil {
		return err
	}
	if len(overlapping) > 0 {
		return fmt.Errorf("gpu %s window [%s, %s): %w",
			booking.GPUID,
			booking.StartTime.Format(time.RFC3339),
			booking.EndTime.Format(time.RFC3339),
			common.ErrConflictingReservation)
	}

	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = time.Now()
	}

	data, err := json.Marshal(booking)
	if err != nil {
		return fmt.Errorf("marshal booking: %w", err)
	}
	if err := s.client.Put(ctx, bookingKey(booking.GPUID, booking.ID), string(data)); err != nil {
		return fmt.Errorf("insert booking %s: %v: %w", booking.ID, err, common.ErrPersistence)
	}

	s.log.Info("Booked GPU %s for %s [%s, %s)",
		booking.GPUID, booking.RequesterID,
		booking.StartTime.Format(time.RFC3339), booking.EndTime.Format(time.RFC3339))
	return nil
}

// ListBookings: All committed bookings
func (s *Store) ListBookings(ctx context.Context) ([]*common.Booking, error) {
	records, err := s.client.GetAll(ctx, bookingPrefix)
	if err != nil {
		return nil, err
	}

	result := make([]*common.Booking, 0, len(records))
	for key, raw := range records {
		var booking common.Booking
		if err := json.Unmarshal([]byte(raw), &booking); err != nil {
			s.log.Warn("Skipping corrupt booking record %s: %v", key, err)
			continue
		}
		result = append(result, &booking)
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
func (s *Store) AddReview(ctx context.Context, review *common.Review) error {
	if review.ID == "" {
		review.ID = uuid.NewString()
	}
	if review.CreatedAt.IsZero() {
		review.CreatedAt = time.Now()
	}

	data, err := json.Marshal(review)
	if err != nil {
		return fmt.Errorf("marshal review: %w", err)
	}
	if err := s.client.Put(ctx, reviewKey(review.ID), string(data)); err != nil {
		return fmt.Errorf("add review %s: %v: %w", review.ID, err, common.ErrPersistence)
	}
	return nil
}

// AddDispute: Attach a dispute to a booking
func (s *Store) AddDispute(ctx context.Context, dispute *common.Dispute) error {
	if dispute.ID == "" {
		dispute.ID = uuid.NewString()
	}
	if dispute.CreatedAt.IsZero() {
		dispute.CreatedAt = time.Now()
	}

	data, err := json.Marshal(dispute)
	if err != nil {
		return fmt.Errorf("marshal dispute: %w", err)
	}
	if err := s.client.Put(ctx, disputeKey(dispute.ID), string(data)); err != nil {
		return fmt.Errorf("add dispute %s: %v: %w", dispute.ID, err, common.ErrPersistence)
	}
	return nil
}

// ListReviews: All reviews
func (s *Store) ListReviews(ctx context.Context) ([]*common.Review, error) {
	records, err := s.client.GetAll(ctx, reviewPrefix)
	if err != nil {
		return nil, err
	}

	result := make([]*common.Review, 0, len(records))
	for key, raw := range records {
		var review common.Review
		if err := json.Unmarshal([]byte(raw), &review); err != nil {
			s.log.Warn("Skipping corrupt review record %s: %v", key, err)
			continue
		}
		result = append(result, &review)
	}
	return result, nil
}

// ListDisputes: All disputes
func (s *Store) ListDisputes(ctx context.Context) ([]*common.Dispute, error) {
	records, err := s.client.GetAll(ctx, disputePrefix)
	if err != nil {
		return nil, err
	}

	result := make([]*common.Dispute, 0, len(records))
	for key, raw := range records {
		var dispute common.Dispute
		if err := json.Unmarshal([]byte(raw), &dispute); err != nil {
			s.log.Warn("Skipping corrupt dispute record %s: %v", key, err)
			continue
		}
		result = append(result, &dispute)
	}
	return result, nil
}
