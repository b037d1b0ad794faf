package pricing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orion-compute/orion-engine/pkg/engine/common"
	"github.com/orion-compute/orion-engine/pkg/store/memory"
)

func setup(t *testing.T) (*Engine, *memory.MemoryStore) {
	t.Helper()
	st := memory.NewMemoryStore()
	return NewEngine(st), st
}

func addGPU(t *testing.T, st *memory.MemoryStore, id, model string, price float64) {
	t.Helper()
	err := st.AddGPU(context.Background(), &common.GPU{
		ID:           id,
		Model:        model,
		MemoryGB:     40,
		PricePerHour: price,
	})
	require.NoError(t, err)
}

func addOpenOrder(t *testing.T, st *memory.MemoryStore, id, gpuID string) {
	t.Helper()
	err := st.AddOrder(context.Background(), &common.Order{
		ID:     id,
		GPUID:  gpuID,
		Status: common.OrderOpen,
	})
	require.NoError(t, err)
}

func TestQuoteLoneGPUNoDemand(t *testing.T) {
	e, st := setup(t)
	ctx := context.Background()

	// Supply counts same-model available GPUs including this one:
	// supply=1, demand=0 gives 10 * 1/2 = 5.00
	addGPU(t, st, "gpu-1", "A100", 10.0)

	quote, err := e.Quote(ctx, "gpu-1")
	require.NoError(t, err)
	assert.Equal(t, 10.0, quote.BasePrice)
	assert.Equal(t, 5.0, quote.DynamicPrice)
}

func TestQuoteDemandRaisesPrice(t *testing.T) {
	e, st := setup(t)
	ctx := context.Background()

	// supply=1, demand=3: dynamic = 10 * 4/2 = 20.00
	addGPU(t, st, "gpu-1", "A100", 10.0)
	addOpenOrder(t, st, "order-1", "gpu-1")
	addOpenOrder(t, st, "order-2", "gpu-1")
	addOpenOrder(t, st, "order-3", "gpu-1")

	quote, err := e.Quote(ctx, "gpu-1")
	require.NoError(t, err)
	assert.Equal(t, 20.0, quote.DynamicPrice)
}

func TestQuoteSupplyLowersPrice(t *testing.T) {
	e, st := setup(t)
	ctx := context.Background()

	// supply=3 same-model, demand=1: dynamic = 12 * 2/4 = 6.00
	addGPU(t, st, "gpu-1", "A100", 12.0)
	addGPU(t, st, "gpu-2", "A100", 12.0)
	addGPU(t, st, "gpu-3", "A100", 12.0)
	addGPU(t, st, "gpu-other", "H100", 30.0) // different model, not supply
	addOpenOrder(t, st, "order-1", "gpu-1")

	quote, err := e.Quote(ctx, "gpu-1")
	require.NoError(t, err)
	assert.Equal(t, 6.0, quote.DynamicPrice)
}

func TestQuoteZeroSupplyStaysDefined(t *testing.T) {
	e, st := setup(t)
	ctx := context.Background()

	// The GPU itself is claimed, so same-model supply is zero.
	// demand=0: dynamic = 10 * 1/1 = base, no division error.
	addGPU(t, st, "gpu-1", "A100", 10.0)
	require.NoError(t, st.SetAvailability(ctx, "gpu-1", false))

	quote, err := e.Quote(ctx, "gpu-1")
	require.NoError(t, err)
	assert.Equal(t, 10.0, quote.DynamicPrice)
}

func TestQuoteRoundsToTwoDecimals(t *testing.T) {
	e, st := setup(t)
	ctx := context.Background()

	// supply=2, demand=0: 9.99 * 1/3 = 3.33
	addGPU(t, st, "gpu-1", "A100", 9.99)
	addGPU(t, st, "gpu-2", "A100", 9.99)

	quote, err := e.Quote(ctx, "gpu-1")
	require.NoError(t, err)
	assert.Equal(t, 3.33, quote.DynamicPrice)
}

func TestQuoteUnknownGPU(t *testing.T) {
	e, _ := setup(t)

	_, err := e.Quote(context.Background(), "gpu-missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrNotFound)
}
