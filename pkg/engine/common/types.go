package common

import "time"

// Foundation types for the allocation and pricing engine.
// Everything else imports from here.

// ============================================================================
// SECTION 1: GPU TYPES
// ============================================================================

// GPU: A single rentable GPU listed in the pool registry
type GPU struct {
	ID           string  `json:"id"`
	Model        string  `json:"model"`        // "A100", "H100", "RTX-4090"
	Manufacturer string  `json:"manufacturer"` // "NVIDIA", "AMD"
	MemoryGB     int     `json:"memory_gb"`
	PricePerHour float64 `json:"price_per_hour"` // Base price, owner-configured
	OwnerID      string  `json:"owner_id"`

	// Available is true iff the GPU is not bound to a running job,
	// an active booking window, or a matched order. Only the pool
	// registry may flip this flag.
	Available bool `json:"available"`

	CreatedAt time.Time `json:"created_at"`
}

// ============================================================================
// SECTION 2: DEMAND TYPES (Jobs & Orders)
// ============================================================================

// JobStatus: Current state of a compute job
type JobStatus string

const (
	JobPending   JobStatus = "PENDING"   // Queued, waiting for a GPU
	JobRunning   JobStatus = "RUNNING"   // Bound to a GPU
	JobCompleted JobStatus = "COMPLETED" // Finished
	JobRejected  JobStatus = "REJECTED"  // Refused, never ran
)

// Job: An asynchronous compute job competing for any suitable GPU
type Job struct {
	ID          string    `json:"id"`
	RequesterID string    `json:"requester_id"`
	Command     string    `json:"command"`
	Status      JobStatus `json:"status"`

	// GPUID is empty until the scheduler binds the job
	GPUID string `json:"gpu_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	StartedAt time.Time `json:"started_at,omitempty"`
	EndedAt   time.Time `json:"ended_at,omitempty"`
}

// IsPending: Check whether the job is still waiting for a GPU
func (j *Job) IsPending() bool {
	return j.Status == JobPending
}

// IsRunning: Check whether the job currently holds a GPU
func (j *Job) IsRunning() bool {
	return j.Status == JobRunning
}

// OrderStatus: Current state of a marketplace order
type OrderStatus string

const (
	OrderOpen      OrderStatus = "OPEN"      // Waiting for its GPU
	OrderMatched   OrderStatus = "MATCHED"   // Bound to its GPU
	OrderCompleted OrderStatus = "COMPLETED" // Fulfilled
	OrderRejected  OrderStatus = "REJECTED"  // Cancelled or refused
)

// Order: A marketplace buy order for one specific GPU identity.
// Unlike a job, an order never accepts a substitute GPU.
type Order struct {
	ID           string      `json:"id"`
	RequesterID  string      `json:"requester_id"`
	GPUID        string      `json:"gpu_id"` // Required GPU, not "any"
	Quantity     int         `json:"quantity"`
	PricePerHour float64     `json:"price_per_hour"` // Bid price
	Status       OrderStatus `json:"status"`
	CreatedAt    time.Time   `json:"created_at"`
}

// IsOpen: Check whether the order is still unmatched
func (o *Order) IsOpen() bool {
	return o.Status == OrderOpen
}

// ============================================================================
// SECTION 3: BOOKING & HISTORY TYPES
// ============================================================================

// Booking: A time-boxed reservation of one GPU.
// The interval is half-open: [StartTime, EndTime), StartTime < EndTime.
type Booking struct {
	ID          string    `json:"id"`
	RequesterID string    `json:"requester_id"`
	GPUID       string    `json:"gpu_id"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	CreatedAt   time.Time `json:"created_at"`
}

// Overlaps: Half-open interval overlap against [start, end)
func (b *Booking) Overlaps(start, end time.Time) bool {
	return b.StartTime.Before(end) && b.EndTime.After(start)
}

// Review: A rating (0-5) left against a completed booking
type Review struct {
	ID        string    `json:"id"`
	BookingID string    `json:"booking_id"`
	Rating    float64   `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Dispute: A conflict raised against a booking
type Dispute struct {
	ID        string    `json:"id"`
	BookingID string    `json:"booking_id"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ============================================================================
// SECTION 4: DERIVED VALUES (never persisted)
// ============================================================================

// Assignment: One job-to-GPU binding committed by a scheduling pass
type Assignment struct {
	JobID string `json:"job_id"`
	GPUID string `json:"gpu_id"`
}

// Quote: Pricing options for a GPU, recomputed fresh on every call
type Quote struct {
	GPUID        string  `json:"gpu_id"`
	BasePrice    float64 `json:"base_price"`
	DynamicPrice float64 `json:"dynamic_price"`
}

// OwnerScore: Fairness ranking entry for one GPU owner
type OwnerScore struct {
	OwnerID     string  `json:"owner_id"`
	Score       float64 `json:"score"`
	AvgRating   float64 `json:"avg_rating"`
	DisputeRate float64 `json:"dispute_rate"`
	Bookings    int     `json:"bookings"`
}

// ============================================================================
// SECTION 5: CONFIGURATION
// ============================================================================

// Config: Engine configuration, loaded from environment variables
type Config struct {
	// Storage backends
	StoreBackend    string // "memory" or "etcd"
	EtcdEndpoints   []string
	EtcdDialTimeout time.Duration
	RedisAddr       string
	RedisPassword   string
	RedisDB         int

	// Scheduling
	SchedulerPolicy string // "fifo" or "score"
	PassInterval    time.Duration

	// HTTP gateway
	GatewayPort int

	// Logging
	LogLevel string

	// Features
	EnableMetrics bool
}
