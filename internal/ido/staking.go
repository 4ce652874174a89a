package ido

import (
	"context"
	"fmt"
	"time"

	"github.com/R3E-Network/presale_layer/internal/events"
	"github.com/R3E-Network/presale_layer/internal/ledger"
	"github.com/R3E-Network/presale_layer/internal/presale"
	"github.com/R3E-Network/presale_layer/internal/store"
)

// Stake locks amount of the staking asset for caller and recomputes the
// caller's tier.
func (s *Service) Stake(ctx context.Context, caller string, amount uint64) (presale.StakeRecord, error) {
	var rec presale.StakeRecord
	now, err := s.atomic(ctx, "stake", func(tx store.Tx, book *ledger.Book, now time.Time) error {
		cfg, err := loadConfig(tx)
		if err != nil {
			return err
		}
		var existed bool
		if rec, existed, err = loadStake(tx, caller, cfg.StakingAsset); err != nil {
			return err
		}
		if err := rec.Stake(amount, now); err != nil {
			return err
		}
		if err := book.Transfer(ctx, ledger.Transfer{
			Asset:     cfg.StakingAsset,
			From:      caller,
			To:        StakeVault(caller),
			Amount:    amount,
			Reference: "stake",
		}); err != nil {
			return fmt.Errorf("lock stake: %w", err)
		}

		if !existed {
			if err := cfg.StakerAdded(); err != nil {
				return err
			}
			if err := tx.Put(GlobalStateKey, cfg); err != nil {
				return err
			}
		}
		return tx.Put(StakeKey(caller, cfg.StakingAsset), rec)
	})
	if err != nil {
		return presale.StakeRecord{}, err
	}

	s.log.WithContext(ctx).
		WithField("owner", caller).
		WithField("amount", amount).
		WithField("staked", rec.Amount).
		WithField("tier", rec.Tier).
		Info("tokens staked")
	s.emit(ctx, events.NewEvent(events.EventStaked).
		Actor(caller).
		Amount(amount).
		Metadata("tier", fmt.Sprint(rec.Tier)), now)

	return rec, nil
}

// Unstake releases amount of the caller's stake and recomputes the tier.
func (s *Service) Unstake(ctx context.Context, caller string, amount uint64) (presale.StakeRecord, error) {
	var rec presale.StakeRecord
	now, err := s.atomic(ctx, "unstake", func(tx store.Tx, book *ledger.Book, _ time.Time) error {
		cfg, err := loadConfig(tx)
		if err != nil {
			return err
		}
		if rec, _, err = loadStake(tx, caller, cfg.StakingAsset); err != nil {
			return err
		}
		if err := rec.Unstake(amount); err != nil {
			return err
		}
		if err := book.Transfer(ctx, ledger.Transfer{
			Asset:     cfg.StakingAsset,
			From:      StakeVault(caller),
			To:        caller,
			Amount:    amount,
			Reference: "unstake",
		}); err != nil {
			return fmt.Errorf("release stake: %w", err)
		}
		return tx.Put(StakeKey(caller, cfg.StakingAsset), rec)
	})
	if err != nil {
		return presale.StakeRecord{}, err
	}

	s.log.WithContext(ctx).
		WithField("owner", caller).
		WithField("amount", amount).
		WithField("staked", rec.Amount).
		WithField("tier", rec.Tier).
		Info("tokens unstaked")
	s.emit(ctx, events.NewEvent(events.EventUnstaked).
		Actor(caller).
		Amount(amount).
		Metadata("tier", fmt.Sprint(rec.Tier)), now)

	return rec, nil
}
