package presale

// TierFor maps a staked amount to a purchase tier.
func TierFor(amount uint64) uint8 {
	switch {
	case amount >= Tier3Requirement:
		return 3
	case amount >= Tier2Requirement:
		return 2
	case amount >= Tier1Requirement:
		return 1
	default:
		return 0
	}
}

// TierAllocations splits supply into the three tier pools. Each pool is
// floored on its own, so up to two units stay outside every pool.
func TierAllocations(supply uint64) (tier1, tier2, tier3 uint64) {
	return percentOf(supply, Tier1AllocationPercent),
		percentOf(supply, Tier2AllocationPercent),
		percentOf(supply, Tier3AllocationPercent)
}

func (s *Sale) tierCounters(tier uint8) (allocation, sold uint64, ok bool) {
	switch tier {
	case 1:
		return s.Tier1Allocation, s.Tier1Sold, true
	case 2:
		return s.Tier2Allocation, s.Tier2Sold, true
	case 3:
		return s.Tier3Allocation, s.Tier3Sold, true
	default:
		return 0, 0, false
	}
}

// CanPurchaseFromTier reports whether a caller of userTier may draw from the
// pool of tier. Callers may use their own pool and every lower one while the
// pool still has capacity.
func (s *Sale) CanPurchaseFromTier(tier, userTier uint8) bool {
	if userTier < tier {
		return false
	}
	allocation, sold, ok := s.tierCounters(tier)
	return ok && sold < allocation
}

// RemainingForTier returns the unsold capacity of a tier pool.
func (s *Sale) RemainingForTier(tier uint8) uint64 {
	allocation, sold, _ := s.tierCounters(tier)
	return saturatingSub(allocation, sold)
}

// AvailableFor sums the remaining capacity of every pool userTier may draw from.
func (s *Sale) AvailableFor(userTier uint8) (uint64, error) {
	var available uint64
	for tier := uint8(1); tier <= 3; tier++ {
		if !s.CanPurchaseFromTier(tier, userTier) {
			continue
		}
		sum, err := checkedAdd(available, s.RemainingForTier(tier))
		if err != nil {
			return 0, err
		}
		available = sum
	}
	return available, nil
}
