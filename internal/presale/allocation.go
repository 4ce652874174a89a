package presale

import "time"

// Tranche is the part of a purchase drawn from one tier pool.
type Tranche struct {
	Tier   uint8  `json:"tier"`
	Amount uint64 `json:"amount"`
}

// Purchase is a validated buy that has not been applied yet.
type Purchase struct {
	Amount   uint64    `json:"amount"`
	Cost     uint64    `json:"cost"`
	Tranches []Tranche `json:"tranches"`
}

// CheckSaleWindow verifies the sale is LIVE and now is inside the sale window.
func (s *Sale) CheckSaleWindow(now time.Time) error {
	if s.Status != StatusLive {
		return ErrInvalidPresaleStatus
	}
	if now.Before(s.SaleStart) {
		return ErrPresaleNotStarted
	}
	if now.After(s.SaleEnd) {
		return ErrPresaleEnded
	}
	return nil
}

// PlanPurchase validates a buy of amount units by a caller of userTier and
// splits it across tier pools in ascending order. The sale is not modified.
func (s *Sale) PlanPurchase(userTier uint8, amount uint64, now time.Time) (Purchase, error) {
	if err := s.CheckSaleWindow(now); err != nil {
		return Purchase{}, err
	}
	if amount == 0 {
		return Purchase{}, ErrInvalidAmount
	}

	available, err := s.AvailableFor(userTier)
	if err != nil {
		return Purchase{}, err
	}
	if available < amount {
		return Purchase{}, ErrInsufficientAllocation
	}

	cost, err := checkedMul(amount, s.UnitPrice)
	if err != nil {
		return Purchase{}, err
	}

	p := Purchase{Amount: amount, Cost: cost}
	remaining := amount
	for tier := uint8(1); tier <= 3 && remaining > 0; tier++ {
		if !s.CanPurchaseFromTier(tier, userTier) {
			continue
		}
		take := min(remaining, s.RemainingForTier(tier))
		if take == 0 {
			continue
		}
		p.Tranches = append(p.Tranches, Tranche{Tier: tier, Amount: take})
		remaining -= take
	}
	return p, nil
}

// ApplyPurchase debits the planned tranches and credits participant. Either
// every counter is updated or none is.
func (s *Sale) ApplyPurchase(p Purchase, participant *Participant, now time.Time) error {
	sold := [3]uint64{s.Tier1Sold, s.Tier2Sold, s.Tier3Sold}
	for _, tr := range p.Tranches {
		if tr.Tier < 1 || tr.Tier > 3 {
			return ErrInsufficientAllocation
		}
		next, err := checkedAdd(sold[tr.Tier-1], tr.Amount)
		if err != nil {
			return err
		}
		sold[tr.Tier-1] = next
	}
	if sold[0] > s.Tier1Allocation || sold[1] > s.Tier2Allocation || sold[2] > s.Tier3Allocation {
		return ErrInsufficientAllocation
	}

	unitsSold, err := checkedAdd(s.UnitsSold, p.Amount)
	if err != nil {
		return err
	}
	raised, err := checkedAdd(s.Raised, p.Cost)
	if err != nil {
		return err
	}
	purchased, err := checkedAdd(participant.Purchased, p.Amount)
	if err != nil {
		return err
	}
	allocation, err := checkedAdd(participant.Allocation, p.Amount)
	if err != nil {
		return err
	}

	s.Tier1Sold, s.Tier2Sold, s.Tier3Sold = sold[0], sold[1], sold[2]
	s.UnitsSold = unitsSold
	s.Raised = raised
	s.UpdatedAt = now.UTC()
	participant.Purchased = purchased
	participant.Allocation = allocation
	return nil
}
