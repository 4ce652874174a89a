// Package presale implements the allocation and vesting state machine of a
// tiered token sale: tier classification from staked balance, the sale
// lifecycle, the multi-tier purchase waterfall and the three-stage vesting
// release calculator.
//
// The package is pure. It never reads a clock, touches storage or moves
// balances; callers pass the current time and persist the records it returns.
package presale

import "time"

// Tier thresholds in the smallest unit of the staking asset.
const (
	Tier1Requirement uint64 = 1_000
	Tier2Requirement uint64 = 10_000
	Tier3Requirement uint64 = 100_000
)

// Allocation percentages of the supply reserved for each tier pool.
const (
	Tier1AllocationPercent uint64 = 34
	Tier2AllocationPercent uint64 = 33
	Tier3AllocationPercent uint64 = 33
)

// Vesting release percentages of the purchased amount.
const (
	FirstReleasePercent  uint64 = 40
	SecondReleasePercent uint64 = 30
	ThirdReleasePercent  uint64 = 30
)

// Listing and withdrawal splits.
const (
	LiquidityProceedsPercent uint64 = 80
	LiquidityUnitsPercent    uint64 = 20
	ProtocolFeePercent       uint64 = 10
)

// Default offsets of the second and third release from the sale end.
const (
	DefaultSecondReleaseOffset = 5 * time.Minute
	DefaultThirdReleaseOffset  = 10 * time.Minute
)

// StakeRecord tracks a participant's staked balance of the staking asset.
type StakeRecord struct {
	Owner    string    `json:"owner"`
	Asset    string    `json:"asset"`
	Amount   uint64    `json:"amount"`
	LockTime time.Time `json:"lock_time"`
	Tier     uint8     `json:"tier"`
}

// Sale is one presale campaign.
type Sale struct {
	ID      string `json:"id"`
	Admin   string `json:"admin"`
	Creator string `json:"creator"`
	Asset   string `json:"asset"`
	Status  Status `json:"status"`

	UnitPrice     uint64 `json:"unit_price"`
	SupplyForSale uint64 `json:"supply_for_sale"`
	UnitsSold     uint64 `json:"units_sold"`

	RegistrationStart time.Time `json:"registration_start"`
	RegistrationEnd   time.Time `json:"registration_end"`
	SaleStart         time.Time `json:"sale_start"`
	SaleEnd           time.Time `json:"sale_end"`

	Tier1Allocation uint64 `json:"tier1_allocation"`
	Tier2Allocation uint64 `json:"tier2_allocation"`
	Tier3Allocation uint64 `json:"tier3_allocation"`
	Tier1Sold       uint64 `json:"tier1_sold"`
	Tier2Sold       uint64 `json:"tier2_sold"`
	Tier3Sold       uint64 `json:"tier3_sold"`

	Raised         uint64 `json:"raised"`
	ListingPrice   uint64 `json:"listing_price"`
	IsListed       bool   `json:"is_listed"`
	FundsWithdrawn bool   `json:"funds_withdrawn"`

	VestingEnabled bool      `json:"vesting_enabled"`
	FirstRelease   time.Time `json:"first_release"`
	SecondRelease  time.Time `json:"second_release"`
	ThirdRelease   time.Time `json:"third_release"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Participant is a registered buyer's position in one sale.
type Participant struct {
	Owner         string    `json:"owner"`
	SaleID        string    `json:"sale_id"`
	Allocation    uint64    `json:"allocation"`
	Purchased     uint64    `json:"purchased"`
	Claimed       uint64    `json:"claimed"`
	FirstClaimed  bool      `json:"first_claimed"`
	SecondClaimed bool      `json:"second_claimed"`
	ThirdClaimed  bool      `json:"third_claimed"`
	RegisteredAt  time.Time `json:"registered_at"`
}

// GlobalConfig is the admin-owned singleton shared by all sales.
type GlobalConfig struct {
	Admin        string `json:"admin"`
	StakingAsset string `json:"staking_asset"`
	Treasury     string `json:"treasury"`
	TotalSales   uint64 `json:"total_sales"`
	ActiveSales  uint64 `json:"active_sales"`
	TotalStakers uint64 `json:"total_stakers"`
}

// SaleParams are the creator-supplied inputs of a new sale.
type SaleParams struct {
	SupplyForSale     uint64    `json:"supply_for_sale"`
	UnitPrice         uint64    `json:"unit_price"`
	SaleStart         time.Time `json:"sale_start"`
	SaleEnd           time.Time `json:"sale_end"`
	RegistrationStart time.Time `json:"registration_start"`
	RegistrationEnd   time.Time `json:"registration_end"`
	ListingPrice      uint64    `json:"listing_price"`
	VestingEnabled    bool      `json:"vesting_enabled"`
}

// VestingOffsets place the second and third releases relative to the sale end.
type VestingOffsets struct {
	Second time.Duration `json:"second" yaml:"second_release_offset"`
	Third  time.Duration `json:"third" yaml:"third_release_offset"`
}

// DefaultVestingOffsets returns the offsets used when none are configured.
func DefaultVestingOffsets() VestingOffsets {
	return VestingOffsets{Second: DefaultSecondReleaseOffset, Third: DefaultThirdReleaseOffset}
}
