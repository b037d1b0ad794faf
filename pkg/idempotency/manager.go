// Request deduplication for submission endpoints. A client retrying a job or
// order submission with the same request id gets the original entity id back
// instead of a second entity. Redis cache misses fail open: a dedup outage
// degrades to at-least-once submission, never to dropped requests.

package idempotency

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/orion-compute/orion-engine/pkg/logger"
	"github.com/orion-compute/orion-engine/pkg/store/redis"
)

// Manager: Deduplicates submissions keyed by client-supplied request id
type Manager struct {
	redisClient *redis.Client
	log         *logger.Logger
	ttl         time.Duration
}

// Result: What the original request produced
type Result struct {
	EntityID   string    `json:"entity_id"`
	Kind       string    `json:"kind"` // "job" or "order"
	SubmitTime time.Time `json:"submit_time"`
}

// NewManager: Create an idempotency manager with a 24 hour dedup window
func NewManager(redisClient *redis.Client) *Manager {
	return &Manager{
		redisClient: redisClient,
		log:         logger.Get(),
		ttl:         24 * time.Hour,
	}
}

// dedupeKey: Namespaced cache key for a request id
func dedupeKey(requestID string) string {
	return fmt.Sprintf("orion:idempotency:%s", requestID)
}

// CheckDuplicate: Look up a previous identical request.
// Returns (previous result, was duplicate, error). Cache errors are logged
// and reported as a miss so the caller proceeds with normal processing.
func (m *Manager) CheckDuplicate(ctx context.Context, requestID string) (*Result, bool, error) {
	if requestID == "" {
		return nil, false, fmt.Errorf("request ID cannot be empty")
	}

	cached, found, err := m.redisClient.Get(ctx, dedupeKey(requestID))
	if err != nil {
		m.log.Warn("Failed to check dedup cache: %v", err)
		return nil, false, nil
	}
	if !found {
		m.log.Debug("Dedup cache miss for request %s", requestID)
		return nil, false, nil
	}

	var result Result
	if err := json.Unmarshal([]byte(cached), &result); err != nil {
		// Treat a corrupt entry as a miss
		m.log.Error("Failed to unmarshal cached result for %s: %v", requestID, err)
		return nil, false, nil
	}

	m.log.Info("Dedup cache hit for request %s (%s=%s)",
		requestID, result.Kind, result.EntityID)
	return &result, true, nil
}

// Record: Store the outcome of a submission under its request id
func (m *Manager) Record(ctx context.Context, requestID, kind, entityID string) error {
	if requestID == "" || entityID == "" {
		return fmt.Errorf("request ID and entity ID cannot be empty")
	}

	result := &Result{
		EntityID:   entityID,
		Kind:       kind,
		SubmitTime: time.Now(),
	}

	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}

	if err := m.redisClient.Set(ctx, dedupeKey(requestID), string(resultJSON), m.ttl); err != nil {
		return fmt.Errorf("store failed: %w", err)
	}

	m.log.Info("Recorded dedup entry: request=%s, %s=%s", requestID, kind, entityID)
	return nil
}

// ValidateRequestID: Enforce the request id format
// Accepted: 8-256 chars of alphanumerics, hyphen, underscore, colon
func (m *Manager) ValidateRequestID(requestID string) error {
	if requestID == "" {
		return fmt.Errorf("request ID cannot be empty")
	}
	if len(requestID) < 8 {
		return fmt.Errorf("request ID too short (min 8 chars)")
	}
	if len(requestID) > 256 {
		return fmt.Errorf("request ID too long (max 256 chars)")
	}
	for _, ch := range requestID {
		if !((ch >= 'a' && ch <= 'z') ||
			(ch >= 'A' && ch <= 'Z') ||
			(ch >= '0' && ch <= '9') ||
			ch == '-' || ch == '_' || ch == ':') {
			return fmt.Errorf("request ID contains invalid character: %c", ch)
		}
	}
	return nil
}

// DeleteEntry: Drop a dedup entry, mainly for tests and manual cleanup
func (m *Manager) DeleteEntry(ctx context.Context, requestID string) error {
	if err := m.redisClient.Delete(ctx, dedupeKey(requestID)); err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}
	m.log.Info("Deleted dedup entry: %s", requestID)
	return nil
}
