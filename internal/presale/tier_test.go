package presale

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTierFor(t *testing.T) {
	tests := []struct {
		amount uint64
		want   uint8
	}{
		{0, 0},
		{999, 0},
		{1_000, 1},
		{9_999, 1},
		{10_000, 2},
		{99_999, 2},
		{100_000, 3},
		{math.MaxUint64, 3},
	}

	for _, tc := range tests {
		if got := TierFor(tc.amount); got != tc.want {
			t.Errorf("TierFor(%d) = %d, want %d", tc.amount, got, tc.want)
		}
	}
}

func TestTierFor_Monotone(t *testing.T) {
	prev := TierFor(0)
	for amount := uint64(0); amount <= 120_000; amount += 37 {
		got := TierFor(amount)
		if got < prev {
			t.Fatalf("tier decreased at %d: %d < %d", amount, got, prev)
		}
		prev = got
	}
}

func TestTierAllocations_ShortfallAtMostTwo(t *testing.T) {
	supplies := []uint64{0, 1, 2, 3, 99, 100, 101, 199, 10_000, 12_345, 1_000_001, math.MaxUint64 / 3, math.MaxUint64}
	for s := uint64(0); s < 500; s++ {
		supplies = append(supplies, s)
	}

	for _, supply := range supplies {
		t1, t2, t3 := TierAllocations(supply)
		sum := t1 + t2 + t3
		assert.LessOrEqual(t, sum, supply, "supply %d", supply)
		assert.LessOrEqual(t, supply-sum, uint64(2), "supply %d", supply)
	}
}

func TestTierAllocations_Exact(t *testing.T) {
	t1, t2, t3 := TierAllocations(10_000)
	assert.Equal(t, uint64(3400), t1)
	assert.Equal(t, uint64(3300), t2)
	assert.Equal(t, uint64(3300), t3)

	// 34 + 33 + 33 of 101 floors to 34 + 33 + 33 = 100; one unit stays out.
	t1, t2, t3 = TierAllocations(101)
	assert.Equal(t, uint64(34), t1)
	assert.Equal(t, uint64(33), t2)
	assert.Equal(t, uint64(33), t3)
}

func TestCanPurchaseFromTier(t *testing.T) {
	s := Sale{Tier1Allocation: 10, Tier2Allocation: 10, Tier3Allocation: 10, Tier2Sold: 10}

	assert.True(t, s.CanPurchaseFromTier(1, 1))
	assert.False(t, s.CanPurchaseFromTier(2, 1))
	assert.False(t, s.CanPurchaseFromTier(2, 3), "exhausted pool")
	assert.True(t, s.CanPurchaseFromTier(3, 3))
	assert.False(t, s.CanPurchaseFromTier(4, 3))
	assert.False(t, s.CanPurchaseFromTier(1, 0))
}

func TestRemainingForTier_Saturates(t *testing.T) {
	s := Sale{Tier1Allocation: 5, Tier1Sold: 7}
	assert.Equal(t, uint64(0), s.RemainingForTier(1))
	assert.Equal(t, uint64(0), s.RemainingForTier(9))
}
