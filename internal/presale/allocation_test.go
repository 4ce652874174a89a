package presale

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buy(t *testing.T, s *Sale, p *Participant, tier uint8, amount uint64) error {
	t.Helper()
	plan, err := s.PlanPurchase(tier, amount, s.SaleStart.Add(time.Minute))
	if err != nil {
		return err
	}
	return s.ApplyPurchase(plan, p, s.SaleStart)
}

func assertCounters(t *testing.T, s Sale) {
	t.Helper()
	assert.Equal(t, s.UnitsSold, s.Tier1Sold+s.Tier2Sold+s.Tier3Sold)
	assert.LessOrEqual(t, s.Tier1Sold, s.Tier1Allocation)
	assert.LessOrEqual(t, s.Tier2Sold, s.Tier2Allocation)
	assert.LessOrEqual(t, s.Tier3Sold, s.Tier3Allocation)
}

func TestPurchase_Tier3DrainsAllPools(t *testing.T) {
	s := liveSale(t, 10_000, 2, true)
	p := NewParticipant("whale", s.ID, epoch)

	require.NoError(t, buy(t, &s, &p, 3, 10_000))

	assert.Equal(t, uint64(3400), s.Tier1Sold)
	assert.Equal(t, uint64(3300), s.Tier2Sold)
	assert.Equal(t, uint64(3300), s.Tier3Sold)
	assert.Equal(t, uint64(10_000), s.UnitsSold)
	assert.Equal(t, uint64(20_000), s.Raised)
	assert.Equal(t, uint64(10_000), p.Purchased)
	assert.Equal(t, uint64(10_000), p.Allocation)
	assertCounters(t, s)

	assert.ErrorIs(t, buy(t, &s, &p, 3, 1), ErrInsufficientAllocation)
}

func TestPurchase_WaterfallOrder(t *testing.T) {
	s := liveSale(t, 10_000, 1, true)
	p := NewParticipant("bob", s.ID, epoch)

	plan, err := s.PlanPurchase(2, 3_500, s.SaleStart)
	require.NoError(t, err)
	assert.Equal(t, []Tranche{{Tier: 1, Amount: 3_400}, {Tier: 2, Amount: 100}}, plan.Tranches)

	require.NoError(t, s.ApplyPurchase(plan, &p, s.SaleStart))
	assert.Equal(t, uint64(3_400), s.Tier1Sold)
	assert.Equal(t, uint64(100), s.Tier2Sold)
	assert.Zero(t, s.Tier3Sold)
}

func TestPurchase_Tier1CannotReachHigherPools(t *testing.T) {
	s := liveSale(t, 10_000, 1, true)
	alice := NewParticipant("alice", s.ID, epoch)

	require.NoError(t, buy(t, &s, &alice, 1, 3_000))
	err := buy(t, &s, &alice, 1, 401)
	assert.ErrorIs(t, err, ErrInsufficientAllocation)
	assert.Equal(t, KindEligibility, KindOf(err))
	assert.Equal(t, uint64(3_000), s.UnitsSold, "failed buy must not mutate")
	assert.Equal(t, uint64(3_000), alice.Purchased)

	require.NoError(t, buy(t, &s, &alice, 1, 400))
	assert.ErrorIs(t, buy(t, &s, &alice, 1, 1), ErrInsufficientAllocation)
	assertCounters(t, s)
}

func TestPurchase_Tier0HasNoPools(t *testing.T) {
	s := liveSale(t, 10_000, 1, true)
	p := NewParticipant("nobody", s.ID, epoch)
	assert.ErrorIs(t, buy(t, &s, &p, 0, 1), ErrInsufficientAllocation)
}

func TestPurchase_Windows(t *testing.T) {
	s := newTestSale(t, 10_000, 1, true)

	_, err := s.PlanPurchase(3, 1, s.SaleStart)
	assert.ErrorIs(t, err, ErrInvalidPresaleStatus)

	require.NoError(t, s.Approve("admin", epoch))
	require.NoError(t, s.Start("admin", epoch))

	_, err = s.PlanPurchase(3, 1, s.SaleStart.Add(-time.Second))
	assert.ErrorIs(t, err, ErrPresaleNotStarted)
	_, err = s.PlanPurchase(3, 1, s.SaleEnd.Add(time.Second))
	assert.ErrorIs(t, err, ErrPresaleEnded)
	assert.Equal(t, KindWindow, KindOf(err))

	_, err = s.PlanPurchase(3, 1, s.SaleStart)
	assert.NoError(t, err)
	_, err = s.PlanPurchase(3, 1, s.SaleEnd)
	assert.NoError(t, err)

	_, err = s.PlanPurchase(3, 0, s.SaleStart)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestPurchase_CostOverflow(t *testing.T) {
	s := liveSale(t, 10_000, math.MaxUint64/2, true)
	p := NewParticipant("alice", s.ID, epoch)

	err := buy(t, &s, &p, 3, 3)
	assert.ErrorIs(t, err, ErrArithmeticOverflow)
	assert.Equal(t, KindArithmetic, KindOf(err))
	assert.Zero(t, s.UnitsSold)
	assert.Zero(t, p.Purchased)
}

func TestPurchase_RaisedOverflowLeavesSaleUntouched(t *testing.T) {
	s := liveSale(t, 10_000, 1, true)
	s.Raised = math.MaxUint64
	p := NewParticipant("alice", s.ID, epoch)

	err := buy(t, &s, &p, 3, 10)
	assert.ErrorIs(t, err, ErrArithmeticOverflow)
	assert.Zero(t, s.Tier1Sold)
	assert.Zero(t, s.UnitsSold)
	assert.Zero(t, p.Purchased)
}

func TestPurchase_RandomSequencesKeepInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 50; round++ {
		supply := uint64(rng.Intn(50_000) + 1)
		s := liveSale(t, supply, uint64(rng.Intn(10)+1), true)
		buyers := []Participant{
			NewParticipant("t1", s.ID, epoch),
			NewParticipant("t2", s.ID, epoch),
			NewParticipant("t3", s.ID, epoch),
		}

		for i := 0; i < 40; i++ {
			idx := rng.Intn(len(buyers))
			amount := uint64(rng.Intn(int(supply)/4+2) + 1)
			_ = buy(t, &s, &buyers[idx], uint8(idx+1), amount)
			assertCounters(t, s)
		}

		var purchased uint64
		for _, b := range buyers {
			purchased += b.Purchased
			assert.Equal(t, b.Purchased, b.Allocation)
		}
		assert.Equal(t, s.UnitsSold, purchased)
	}
}
