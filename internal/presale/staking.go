package presale

import "time"

// NewStakeRecord returns an empty record for owner.
func NewStakeRecord(owner, asset string) StakeRecord {
	return StakeRecord{Owner: owner, Asset: asset}
}

// Stake adds amount to the record, resets the lock time and recomputes the tier.
func (r *StakeRecord) Stake(amount uint64, now time.Time) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	total, err := checkedAdd(r.Amount, amount)
	if err != nil {
		return err
	}
	r.Amount = total
	r.LockTime = now.UTC()
	r.Tier = TierFor(total)
	return nil
}

// Unstake removes amount from the record and recomputes the tier.
func (r *StakeRecord) Unstake(amount uint64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	if r.Amount < amount {
		return ErrInsufficientAllocation
	}
	r.Amount -= amount
	r.Tier = TierFor(r.Amount)
	return nil
}

// NewGlobalConfig returns the singleton owned by admin.
func NewGlobalConfig(admin, stakingAsset, treasury string) GlobalConfig {
	return GlobalConfig{Admin: admin, StakingAsset: stakingAsset, Treasury: treasury}
}

// UpdateAdmin hands the configuration over to newAdmin.
func (c *GlobalConfig) UpdateAdmin(caller, newAdmin string) error {
	if caller != c.Admin {
		return ErrUnauthorized
	}
	if newAdmin == "" {
		return ErrUnauthorized
	}
	c.Admin = newAdmin
	return nil
}

// SaleCreated bumps the total sales counter.
func (c *GlobalConfig) SaleCreated() error {
	n, err := checkedAdd(c.TotalSales, 1)
	if err != nil {
		return err
	}
	c.TotalSales = n
	return nil
}

// SaleActivated bumps the active sales counter.
func (c *GlobalConfig) SaleActivated() error {
	n, err := checkedAdd(c.ActiveSales, 1)
	if err != nil {
		return err
	}
	c.ActiveSales = n
	return nil
}

// SaleDeactivated decrements the active sales counter, never below zero.
func (c *GlobalConfig) SaleDeactivated() {
	c.ActiveSales = saturatingSub(c.ActiveSales, 1)
}

// StakerAdded bumps the staker counter.
func (c *GlobalConfig) StakerAdded() error {
	n, err := checkedAdd(c.TotalStakers, 1)
	if err != nil {
		return err
	}
	c.TotalStakers = n
	return nil
}
