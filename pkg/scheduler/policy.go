// GPU selection policies. FIFO and value scoring are two branches of one
// strategy so new scoring functions (fairness-weighted, predicted runtime)
// can be added without touching the matching loop.

package scheduler

import (
	"fmt"

	"github.com/orion-compute/orion-engine/pkg/engine/common"
)

// minPricePerHour: Floor applied to the price term of the value score, so a
// zero-priced GPU does not divide by zero.
const minPricePerHour = 0.01

// Policy: Strategy for picking one GPU out of the still-available pool.
// Select returns nil when the pool is empty.
type Policy interface {
	Name() string
	Select(available []*common.GPU) *common.GPU
}

// NewPolicy: Build a policy by configured name ("fifo" or "score")
func NewPolicy(name string) (Policy, error) {
	switch name {
	case "fifo", "":
		return &FIFOPolicy{}, nil
	case "score":
		return &ScorePolicy{}, nil
	default:
		return nil, fmt.Errorf("unknown scheduler policy: %s", name)
	}
}

// ============================================================================
// FIFO POLICY
// ============================================================================

// FIFOPolicy: Take the first available GPU in pool order.
// The directory lists GPUs sorted by id, so the order is stable. O(1).
type FIFOPolicy struct{}

func (p *FIFOPolicy) Name() string { return "fifo" }

// Select: First GPU in the pool
func (p *FIFOPolicy) Select(available []*common.GPU) *common.GPU {
	if len(available) == 0 {
		return nil
	}
	return available[0]
}

// ============================================================================
// SCORE POLICY
// ============================================================================

// ScorePolicy: Prefer high memory per unit of price.
// score = memory_gb / max(price_per_hour, 0.01); strictly highest wins,
// ties broken by GPU id ascending so passes are deterministic.
type ScorePolicy struct{}

func (p *ScorePolicy) Name() string { return "score" }

// Score: Value score for a single GPU
func (p *ScorePolicy) Score(gpu *common.GPU) float64 {
	price := gpu.PricePerHour
	if price < minPricePerHour {
		price = minPricePerHour
	}
	return float64(gpu.MemoryGB) / price
}

// Select: GPU with the strictly highest score
func (p *ScorePolicy) Select(available []*common.GPU) *common.GPU {
	var best *common.GPU
	bestScore := -1.0

	for _, gpu := range available {
		score := p.Score(gpu)
		if score > bestScore || (score == bestScore && best != nil && gpu.ID < best.ID) {
			best = gpu
			bestScore = score
		}
	}
	return best
}
