// Pricing engine: derives a demand-responsive price for a GPU from live
// supply and demand counts. Quotes are pure reads recomputed on every call,
// never cached, since supply and demand can change between calls.

package pricing

import (
	"context"
	"fmt"
	"math"

	"github.com/orion-compute/orion-engine/pkg/engine/common"
	"github.com/orion-compute/orion-engine/pkg/logger"
	"github.com/orion-compute/orion-engine/pkg/store"
)

// Engine: Computes pricing quotes for GPUs
type Engine struct {
	directory store.GPUDirectory
	orders    store.OrderBook
	log       *logger.Logger
}

// NewEngine: Create a pricing engine over the given store
func NewEngine(st store.Store) *Engine {
	return &Engine{
		directory: st,
		orders:    st,
		log:       logger.Get(),
	}
}

// Quote: Base and dynamic price for one GPU.
//
//	dynamic = base × (demand + 1) / (supply + 1)
//
// supply = available GPUs of the same model, demand = open orders for this
// exact GPU. The +1 on both terms keeps the ratio defined at zero supply or
// zero demand and pulls the dynamic price toward base when data is sparse.
// Returns common.ErrNotFound for an unknown GPU id.
func (e *Engine) Quote(ctx context.Context, gpuID string) (*common.Quote, error) {
	gpu, err := e.directory.GetGPU(ctx, gpuID)
	if err != nil {
		return nil, fmt.Errorf("quote: %w", err)
	}

	supply, err := e.countSupply(ctx, gpu.Model)
	if err != nil {
		return nil, fmt.Errorf("count supply: %w", err)
	}

	demand, err := e.orders.CountOpenOrdersForGPU(ctx, gpuID)
	if err != nil {
		return nil, fmt.Errorf("count demand: %w", err)
	}

	base := gpu.PricePerHour
	dynamic := round2(base * float64(demand+1) / float64(supply+1))

	e.log.Debug("Quote for GPU %s: base=%.2f dynamic=%.2f (supply=%d, demand=%d)",
		gpuID, base, dynamic, supply, demand)

	return &common.Quote{
		GPUID:        gpuID,
		BasePrice:    base,
		DynamicPrice: dynamic,
	}, nil
}

// countSupply: Available GPUs sharing a model name
func (e *Engine) countSupply(ctx context.Context, model string) (int, error) {
	available, err := e.directory.ListAvailableGPUs(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, gpu := range available {
		if gpu.Model == model {
			count++
		}
	}
	return count, nil
}

// round2: Fixed two-decimal currency precision
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
