package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orion-compute/orion-engine/pkg/engine/common"
)

func TestNewPolicy(t *testing.T) {
	fifo, err := NewPolicy("fifo")
	require.NoError(t, err)
	assert.Equal(t, "fifo", fifo.Name())

	// Empty defaults to FIFO
	def, err := NewPolicy("")
	require.NoError(t, err)
	assert.Equal(t, "fifo", def.Name())

	score, err := NewPolicy("score")
	require.NoError(t, err)
	assert.Equal(t, "score", score.Name())

	_, err = NewPolicy("priority")
	assert.Error(t, err)
}

func TestFIFOPolicySelectsFirst(t *testing.T) {
	policy := &FIFOPolicy{}

	pool := []*common.GPU{
		{ID: "gpu-a", MemoryGB: 16},
		{ID: "gpu-b", MemoryGB: 80},
	}

	selected := policy.Select(pool)
	require.NotNil(t, selected)
	assert.Equal(t, "gpu-a", selected.ID)

	assert.Nil(t, policy.Select(nil))
}

func TestScorePolicyPrefersMemoryPerDollar(t *testing.T) {
	policy := &ScorePolicy{}

	// B: 40/1 = 40 beats A: 80/4 = 20 despite less memory
	pool := []*common.GPU{
		{ID: "gpu-a", MemoryGB: 80, PricePerHour: 4.0},
		{ID: "gpu-b", MemoryGB: 40, PricePerHour: 1.0},
	}

	selected := policy.Select(pool)
	require.NotNil(t, selected)
	assert.Equal(t, "gpu-b", selected.ID)
}

func TestScorePolicyFreeGPUUsesFloor(t *testing.T) {
	policy := &ScorePolicy{}

	// A zero price does not divide by zero: the floor prices it at 0.01
	score := policy.Score(&common.GPU{MemoryGB: 10, PricePerHour: 0})
	assert.InDelta(t, 1000.0, score, 1e-9)
}

func TestScorePolicyTieBreaksByID(t *testing.T) {
	policy := &ScorePolicy{}

	pool := []*common.GPU{
		{ID: "gpu-z", MemoryGB: 40, PricePerHour: 2.0},
		{ID: "gpu-a", MemoryGB: 40, PricePerHour: 2.0},
	}

	selected := policy.Select(pool)
	require.NotNil(t, selected)
	assert.Equal(t, "gpu-a", selected.ID)
}
