// Order matcher: binds open marketplace orders to the exact GPU each one
// names. Unlike the job scheduler, a miss does not end the pass: an order
// waiting on an absent GPU must not block orders for different GPUs.

package matcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/orion-compute/orion-engine/pkg/engine/common"
	"github.com/orion-compute/orion-engine/pkg/logger"
	"github.com/orion-compute/orion-engine/pkg/store"
)

// OrderMatcher: Matches open orders against their requested GPUs
type OrderMatcher struct {
	directory store.GPUDirectory
	orders    store.OrderBook
	allocator store.Allocator
	log       *logger.Logger
}

// NewOrderMatcher: Create a matcher over the given store
func NewOrderMatcher(st store.Store) *OrderMatcher {
	return &OrderMatcher{
		directory: st,
		orders:    st,
		allocator: st,
		log:       logger.Get(),
	}
}

// Match: Run one matching pass over all open orders in ascending id order.
// Returns the ids of orders that committed as MATCHED. Orders whose GPU is
// unknown, unavailable, or claimed mid-pass stay open for the next pass.
func (om *OrderMatcher) Match(ctx context.Context) ([]string, error) {
	open, err := om.orders.ListOpenOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("list open orders: %w", err)
	}

	matched := make([]string, 0)

	for _, order := range open {
		gpu, err := om.directory.GetGPU(ctx, order.GPUID)
		if err != nil {
			if errors.Is(err, common.ErrNotFound) {
				om.log.Debug("Order %s wants unknown GPU %s, skipping",
					order.ID, order.GPUID)
				continue
			}
			return matched, fmt.Errorf("lookup GPU %s: %w", order.GPUID, err)
		}

		if !gpu.Available {
			continue
		}

		ok, err := om.allocator.MatchOrder(ctx, order.ID, gpu.ID)
		if err != nil {
			return matched, fmt.Errorf("match order %s: %w", order.ID, err)
		}
		if !ok {
			// Someone claimed the GPU between read and commit;
			// the order stays open
			continue
		}

		matched = append(matched, order.ID)
	}

	om.log.Info("Matching pass complete: %d of %d open orders matched",
		len(matched), len(open))

	return matched, nil
}
