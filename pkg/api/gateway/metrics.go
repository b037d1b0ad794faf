// Prometheus metrics for the allocation engine. Counters are atomic so the
// HTTP handlers never contend on a mutex; the export path formats the
// text exposition format directly.

package gateway

import (
	"fmt"
	"sync/atomic"
	"time"
)

// ============================================================================
// METRICS STRUCT
// ============================================================================

type Metrics struct {
	// ====================================================================
	// HTTP API METRICS
	// ====================================================================
	TotalRequests   uint64 // Total HTTP requests
	TotalErrors     uint64 // Total HTTP errors
	RequestDuration int64  // Total request duration (nanoseconds)

	// ====================================================================
	// ALLOCATION METRICS
	// ====================================================================
	JobsSubmitted     uint64 // Jobs accepted for scheduling
	OrdersSubmitted   uint64 // Orders accepted for matching
	JobsAssigned      uint64 // Jobs bound to a GPU
	OrdersMatched     uint64 // Orders bound to a GPU
	SchedulingPasses  uint64 // Completed scheduling passes
	DuplicatesBlocked uint64 // Submissions deduplicated by request id

	// ====================================================================
	// MARKETPLACE METRICS
	// ====================================================================
	GPUsRegistered   uint64 // GPUs added to the directory
	BookingsCreated  uint64 // Bookings committed
	BookingConflicts uint64 // Bookings refused for overlap
	QuotesServed     uint64 // Pricing quotes computed
}

// ============================================================================
// RECORDING METHODS
// ============================================================================

func (m *Metrics) RecordRequest(duration time.Duration) {
	atomic.AddUint64(&m.TotalRequests, 1)
	atomic.AddInt64(&m.RequestDuration, duration.Nanoseconds())
}

func (m *Metrics) RecordError() {
	atomic.AddUint64(&m.TotalErrors, 1)
}

func (m *Metrics) RecordJobSubmitted() {
	atomic.AddUint64(&m.JobsSubmitted, 1)
}

func (m *Metrics) RecordOrderSubmitted() {
	atomic.AddUint64(&m.OrdersSubmitted, 1)
}

func (m *Metrics) RecordPass(assignments, matched int) {
	atomic.AddUint64(&m.SchedulingPasses, 1)
	atomic.AddUint64(&m.JobsAssigned, uint64(assignments))
	atomic.AddUint64(&m.OrdersMatched, uint64(matched))
}

func (m *Metrics) RecordDuplicateBlocked() {
	atomic.AddUint64(&m.DuplicatesBlocked, 1)
}

func (m *Metrics) RecordGPURegistered() {
	atomic.AddUint64(&m.GPUsRegistered, 1)
}

func (m *Metrics) RecordBooking(conflict bool) {
	if conflict {
		atomic.AddUint64(&m.BookingConflicts, 1)
	} else {
		atomic.AddUint64(&m.BookingsCreated, 1)
	}
}

func (m *Metrics) RecordQuote() {
	atomic.AddUint64(&m.QuotesServed, 1)
}

// ============================================================================
// COMPUTED METRICS
// ============================================================================

func (m *Metrics) GetSuccessRate() float64 {
	total := atomic.LoadUint64(&m.TotalRequests)
	errors := atomic.LoadUint64(&m.TotalErrors)
	if total == 0 {
		return 0.0
	}
	return float64(total-errors) / float64(total) * 100.0
}

func (m *Metrics) GetAvgDuration() float64 {
	total := atomic.LoadUint64(&m.TotalRequests)
	duration := atomic.LoadInt64(&m.RequestDuration)
	if total == 0 {
		return 0.0
	}
	return float64(duration) / float64(total) / 1e6
}

// ============================================================================
// PROMETHEUS EXPORT
// ============================================================================

func (m *Metrics) ExportPrometheus() string {
	output := ""

	output += promCounter("orion_http_requests_total", "Total HTTP requests", atomic.LoadUint64(&m.TotalRequests))
	output += promCounter("orion_http_errors_total", "Total HTTP errors", atomic.LoadUint64(&m.TotalErrors))
	output += promGaugeF("orion_http_request_duration_avg_ms", "Average request duration in milliseconds", m.GetAvgDuration())
	output += promGaugeF("orion_http_success_rate_percent", "HTTP success rate percentage", m.GetSuccessRate())

	output += promCounter("orion_jobs_submitted_total", "Jobs accepted for scheduling", atomic.LoadUint64(&m.JobsSubmitted))
	output += promCounter("orion_orders_submitted_total", "Orders accepted for matching", atomic.LoadUint64(&m.OrdersSubmitted))
	output += promCounter("orion_jobs_assigned_total", "Jobs bound to a GPU", atomic.LoadUint64(&m.JobsAssigned))
	output += promCounter("orion_orders_matched_total", "Orders bound to a GPU", atomic.LoadUint64(&m.OrdersMatched))
	output += promCounter("orion_scheduling_passes_total", "Completed scheduling passes", atomic.LoadUint64(&m.SchedulingPasses))
	output += promCounter("orion_dedup_blocked_total", "Duplicate submissions blocked by idempotency", atomic.LoadUint64(&m.DuplicatesBlocked))

	output += promCounter("orion_gpus_registered_total", "GPUs added to the directory", atomic.LoadUint64(&m.GPUsRegistered))
	output += promCounter("orion_bookings_created_total", "Bookings committed", atomic.LoadUint64(&m.BookingsCreated))
	output += promCounter("orion_booking_conflicts_total", "Bookings refused for interval overlap", atomic.LoadUint64(&m.BookingConflicts))
	output += promCounter("orion_quotes_served_total", "Pricing quotes computed", atomic.LoadUint64(&m.QuotesServed))

	return output
}

// ============================================================================
// PROMETHEUS FORMAT HELPERS
// ============================================================================

func promCounter(name string, help string, value uint64) string {
	return fmt.Sprintf("# HELP %s %s\n# TYPE %s counter\n%s %d\n\n", name, help, name, name, value)
}

func promGaugeF(name string, help string, value float64) string {
	return fmt.Sprintf("# HELP %s %s\n# TYPE %s gauge\n%s %.4f\n\n", name, help, name, name, value)
}
