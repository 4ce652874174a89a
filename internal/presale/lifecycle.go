package presale

import "time"

// NewSale validates params and returns a PENDING sale with its tier pools
// and release schedule computed.
func NewSale(id, admin, creator, asset string, p SaleParams, now time.Time, offsets VestingOffsets) (Sale, error) {
	if !p.RegistrationStart.Before(p.RegistrationEnd) ||
		!p.RegistrationEnd.Before(p.SaleStart) ||
		!p.SaleStart.Before(p.SaleEnd) ||
		!p.RegistrationStart.After(now) {
		return Sale{}, ErrInvalidTimeSetup
	}

	tier1, tier2, tier3 := TierAllocations(p.SupplyForSale)

	sale := Sale{
		ID:                id,
		Admin:             admin,
		Creator:           creator,
		Asset:             asset,
		Status:            StatusPending,
		UnitPrice:         p.UnitPrice,
		SupplyForSale:     p.SupplyForSale,
		RegistrationStart: p.RegistrationStart.UTC(),
		RegistrationEnd:   p.RegistrationEnd.UTC(),
		SaleStart:         p.SaleStart.UTC(),
		SaleEnd:           p.SaleEnd.UTC(),
		Tier1Allocation:   tier1,
		Tier2Allocation:   tier2,
		Tier3Allocation:   tier3,
		ListingPrice:      p.ListingPrice,
		VestingEnabled:    p.VestingEnabled,
		CreatedAt:         now.UTC(),
		UpdatedAt:         now.UTC(),
	}

	sale.FirstRelease = sale.SaleEnd
	sale.SecondRelease = sale.SaleEnd
	sale.ThirdRelease = sale.SaleEnd
	if p.VestingEnabled {
		sale.SecondRelease = sale.SaleEnd.Add(offsets.Second)
		sale.ThirdRelease = sale.SaleEnd.Add(offsets.Third)
	}

	return sale, nil
}

func (s *Sale) transition(caller string, from []Status, to Status, now time.Time) error {
	if caller != s.Admin {
		return ErrUnauthorized
	}
	for _, st := range from {
		if s.Status == st {
			s.Status = to
			s.UpdatedAt = now.UTC()
			return nil
		}
	}
	return ErrInvalidPresaleStatus
}

// Approve moves a PENDING sale to APPROVED.
func (s *Sale) Approve(caller string, now time.Time) error {
	return s.transition(caller, []Status{StatusPending}, StatusApproved, now)
}

// Start opens an APPROVED sale for purchases.
func (s *Sale) Start(caller string, now time.Time) error {
	return s.transition(caller, []Status{StatusApproved}, StatusLive, now)
}

// End completes a LIVE sale.
func (s *Sale) End(caller string, now time.Time) error {
	return s.transition(caller, []Status{StatusLive}, StatusCompleted, now)
}

// Cancel moves any non-terminal sale to CANCELLED.
func (s *Sale) Cancel(caller string, now time.Time) error {
	return s.transition(caller, []Status{StatusPending, StatusApproved, StatusLive}, StatusCancelled, now)
}

// CheckRegistration gates registration on status, window and tier.
func (s *Sale) CheckRegistration(userTier uint8, now time.Time) error {
	if !s.Status.AcceptsRegistration() {
		return ErrInvalidPresaleStatus
	}
	if now.Before(s.RegistrationStart) {
		return ErrRegistrationNotStarted
	}
	if now.After(s.RegistrationEnd) {
		return ErrRegistrationEnded
	}
	if userTier < 1 {
		return ErrInsufficientTierQualification
	}
	return nil
}

// NewParticipant returns a zeroed participant record.
func NewParticipant(owner, saleID string, now time.Time) Participant {
	return Participant{
		Owner:        owner,
		SaleID:       saleID,
		RegisteredAt: now.UTC(),
	}
}

// ListingPlan is the share of proceeds and units seeded into liquidity.
type ListingPlan struct {
	Proceeds uint64 `json:"proceeds"`
	Units    uint64 `json:"units"`
}

// PlanListing validates a listing and computes the liquidity amounts.
func (s *Sale) PlanListing() (ListingPlan, error) {
	if s.IsListed {
		return ListingPlan{}, ErrTokenAlreadyListed
	}
	if s.Status != StatusCompleted {
		return ListingPlan{}, ErrPresaleNotCompleted
	}
	return ListingPlan{
		Proceeds: percentOf(s.Raised, LiquidityProceedsPercent),
		Units:    percentOf(s.UnitsSold, LiquidityUnitsPercent),
	}, nil
}

// MarkListed records a completed listing.
func (s *Sale) MarkListed(now time.Time) {
	s.IsListed = true
	s.UpdatedAt = now.UTC()
}

// WithdrawalPlan splits the proceeds left after listing.
type WithdrawalPlan struct {
	ProtocolFee  uint64 `json:"protocol_fee"`
	CreatorShare uint64 `json:"creator_share"`
}

// PlanWithdrawal validates a creator withdrawal against the proceeds still
// held by the sale.
func (s *Sale) PlanWithdrawal(caller string, held uint64) (WithdrawalPlan, error) {
	if caller != s.Creator {
		return WithdrawalPlan{}, ErrUnauthorized
	}
	if s.Status != StatusCompleted {
		return WithdrawalPlan{}, ErrPresaleNotCompleted
	}
	if !s.IsListed {
		return WithdrawalPlan{}, ErrTokenNotListed
	}
	if s.FundsWithdrawn {
		return WithdrawalPlan{}, ErrFundsAlreadyWithdrawn
	}

	fee := percentOf(s.Raised, ProtocolFeePercent)
	if fee > held {
		fee = held
	}
	return WithdrawalPlan{ProtocolFee: fee, CreatorShare: held - fee}, nil
}

// MarkWithdrawn records a completed withdrawal.
func (s *Sale) MarkWithdrawn(now time.Time) {
	s.FundsWithdrawn = true
	s.UpdatedAt = now.UTC()
}

// ListingReserve is the number of units a creator deposits on top of the
// supply so that listing can seed liquidity without drawing on units owed
// to buyers.
func ListingReserve(supply uint64) uint64 {
	return ReserveOf(supply, LiquidityUnitsPercent)
}

// ReserveOf is ListingReserve at a deployment-chosen percentage. Zero means
// the creator deposits exactly the supply, and listing then draws on units
// owed to buyers.
func ReserveOf(supply, pct uint64) uint64 {
	return percentOf(supply, pct)
}
