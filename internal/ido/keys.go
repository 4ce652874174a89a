package ido

import (
	"fmt"
	"net/url"
)

// Record keys.
const (
	GlobalStateKey = "global_state"

	salePrefix        = "presale/"
	participantPrefix = "user_info/"
	stakePrefix       = "user_stake/"
)

// Key parts are path escaped so that no two (owner, id) pairs share a key.

func SaleKey(id string) string {
	return salePrefix + url.PathEscape(id)
}

func StakeKey(owner, asset string) string {
	return fmt.Sprintf("%s%s/%s", stakePrefix, url.PathEscape(owner), url.PathEscape(asset))
}

func ParticipantKey(owner, saleID string) string {
	return fmt.Sprintf("%s%s/%s", participantPrefix, url.PathEscape(owner), url.PathEscape(saleID))
}

// Custody holders are ledger identities owned by the service.

// SaleTokens holds the unsold and unclaimed units of a sale.
func SaleTokens(saleID string) string {
	return salePrefix + saleID + "/tokens"
}

// SaleProceeds holds the native currency paid into a sale.
func SaleProceeds(saleID string) string {
	return salePrefix + saleID + "/proceeds"
}

// StakeVault holds an owner's staked tokens.
func StakeVault(owner string) string {
	return stakePrefix + owner + "/tokens"
}
