package ido

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/R3E-Network/presale_layer/internal/events"
	"github.com/R3E-Network/presale_layer/internal/ledger"
	"github.com/R3E-Network/presale_layer/internal/presale"
	"github.com/R3E-Network/presale_layer/internal/store"
)

// SaleFilter narrows ListSales. Zero fields match everything.
type SaleFilter struct {
	Status  *presale.Status
	Creator string
}

func (f SaleFilter) match(sale presale.Sale) bool {
	if f.Status != nil && sale.Status != *f.Status {
		return false
	}
	if f.Creator != "" && sale.Creator != f.Creator {
		return false
	}
	return true
}

// ClaimStatus summarises a participant's vesting position.
type ClaimStatus struct {
	Releases presale.Releases  `json:"releases"`
	Claimed  uint64            `json:"claimed"`
	Due      uint64            `json:"due"`
	Upcoming []presale.Release `json:"upcoming"`
}

func (s *Service) GetGlobalConfig(ctx context.Context) (presale.GlobalConfig, error) {
	var cfg presale.GlobalConfig
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		cfg, err = loadConfig(tx)
		return err
	})
	return cfg, err
}

func (s *Service) GetSale(ctx context.Context, id string) (presale.Sale, error) {
	var sale presale.Sale
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		sale, err = loadSale(tx, id)
		return err
	})
	return sale, err
}

// ListSales returns the sales matching filter, oldest first.
func (s *Service) ListSales(ctx context.Context, filter SaleFilter) ([]presale.Sale, error) {
	var out []presale.Sale
	err := s.store.View(ctx, func(tx store.Tx) error {
		recs, err := tx.List(salePrefix)
		if err != nil {
			return fmt.Errorf("list presales: %w", err)
		}
		out = make([]presale.Sale, 0, len(recs))
		for _, r := range recs {
			// only direct children are sale records
			if strings.Contains(strings.TrimPrefix(r.Key, salePrefix), "/") {
				continue
			}
			var sale presale.Sale
			if err := r.Decode(&sale); err != nil {
				return err
			}
			if filter.match(sale) {
				out = append(out, sale)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// GetStake returns owner's stake of the staking asset. An owner who never
// staked has an empty tier 0 record.
func (s *Service) GetStake(ctx context.Context, owner string) (presale.StakeRecord, error) {
	var rec presale.StakeRecord
	err := s.store.View(ctx, func(tx store.Tx) error {
		cfg, err := loadConfig(tx)
		if err != nil {
			return err
		}
		rec, _, err = loadStake(tx, owner, cfg.StakingAsset)
		return err
	})
	return rec, err
}

func (s *Service) GetParticipant(ctx context.Context, owner, saleID string) (presale.Participant, error) {
	var p presale.Participant
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		p, err = loadParticipant(tx, owner, saleID)
		return err
	})
	return p, err
}

// Claimable reports what owner has vested, claimed, may claim now and will
// be able to claim later.
func (s *Service) Claimable(ctx context.Context, owner, saleID string) (ClaimStatus, error) {
	now := s.now().UTC()
	var st ClaimStatus
	err := s.store.View(ctx, func(tx store.Tx) error {
		sale, err := loadSale(tx, saleID)
		if err != nil {
			return err
		}
		p, err := loadParticipant(tx, owner, saleID)
		if err != nil {
			return err
		}

		st = ClaimStatus{
			Releases: presale.Claimable(p, sale),
			Claimed:  p.Claimed,
			Upcoming: presale.UpcomingReleases(p, sale, now),
		}
		plan, err := presale.PlanClaim(p, sale, now)
		switch {
		case err == nil:
			st.Due = plan.Total
		case errors.Is(err, presale.ErrNothingToClaim), errors.Is(err, presale.ErrPresaleNotCompleted):
		default:
			return err
		}
		return nil
	})
	return st, err
}

// UpcomingReleases lists owner's releases that are not yet due.
func (s *Service) UpcomingReleases(ctx context.Context, owner, saleID string) ([]presale.Release, error) {
	st, err := s.Claimable(ctx, owner, saleID)
	if err != nil {
		return nil, err
	}
	return st.Upcoming, nil
}

// Balance returns holder's ledger balance of asset.
func (s *Service) Balance(ctx context.Context, asset, holder string) (uint64, error) {
	var bal uint64
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		bal, err = ledger.NewBook(tx, s.now).Balance(asset, holder)
		return err
	})
	return bal, err
}

// Mint credits holder with amount of asset from outside the ledger. Admin
// only; used to fund accounts on networks without an external bridge.
func (s *Service) Mint(ctx context.Context, caller, asset, holder string, amount uint64) (uint64, error) {
	if amount == 0 {
		return 0, presale.ErrInvalidAmount
	}
	var bal uint64
	now, err := s.atomic(ctx, "mint", func(tx store.Tx, book *ledger.Book, _ time.Time) error {
		cfg, err := loadConfig(tx)
		if err != nil {
			return err
		}
		if caller != cfg.Admin {
			return presale.ErrUnauthorized
		}
		if err := book.Mint(ctx, asset, holder, amount, "mint:"+caller); err != nil {
			return err
		}
		bal, err = book.Balance(asset, holder)
		return err
	})
	if err != nil {
		return 0, err
	}

	s.log.WithContext(ctx).
		WithField("asset", asset).
		WithField("holder", holder).
		WithField("amount", amount).
		Info("funds minted")
	s.emit(ctx, events.NewEvent(events.EventMinted).
		Actor(caller).
		Amount(amount).
		Metadata("asset", asset).
		Metadata("holder", holder), now)

	return bal, nil
}
