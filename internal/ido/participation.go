package ido

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/R3E-Network/presale_layer/internal/events"
	"github.com/R3E-Network/presale_layer/internal/ledger"
	"github.com/R3E-Network/presale_layer/internal/presale"
	"github.com/R3E-Network/presale_layer/internal/store"
)

// RegisterForSale records caller as a participant of an APPROVED or LIVE
// sale. The caller must be inside the registration window and hold tier 1
// or above.
func (s *Service) RegisterForSale(ctx context.Context, caller, saleID string) (presale.Participant, error) {
	var (
		p    presale.Participant
		tier uint8
	)
	now, err := s.atomic(ctx, "register", func(tx store.Tx, _ *ledger.Book, now time.Time) error {
		cfg, err := loadConfig(tx)
		if err != nil {
			return err
		}
		sale, err := loadSale(tx, saleID)
		if err != nil {
			return err
		}
		if tier, err = tierOf(tx, cfg, caller); err != nil {
			return err
		}
		if err := sale.CheckRegistration(tier, now); err != nil {
			return err
		}

		p = presale.NewParticipant(caller, saleID, now)
		if err := tx.Create(ParticipantKey(caller, saleID), p); err != nil {
			if errors.Is(err, store.ErrExists) {
				return ErrAlreadyRegistered
			}
			return fmt.Errorf("create participant: %w", err)
		}
		return nil
	})
	if err != nil {
		return presale.Participant{}, err
	}

	s.log.WithContext(ctx).
		WithField("sale_id", saleID).
		WithField("participant", caller).
		WithField("tier", tier).
		Info("participant registered")
	s.emit(ctx, events.NewEvent(events.EventRegistered).
		Sale(saleID).
		Actor(caller).
		Metadata("tier", fmt.Sprint(tier)), now)

	return p, nil
}

// Buy purchases amount units for caller. The cost is paid in the native
// asset into the sale's proceeds; the units are drawn from the tier pools
// the caller may buy from, lowest tier first.
func (s *Service) Buy(ctx context.Context, caller, saleID string, amount uint64) (presale.Purchase, error) {
	var purchase presale.Purchase
	now, err := s.atomic(ctx, "buy", func(tx store.Tx, book *ledger.Book, now time.Time) error {
		cfg, err := loadConfig(tx)
		if err != nil {
			return err
		}
		sale, err := loadSale(tx, saleID)
		if err != nil {
			return err
		}
		p, err := loadParticipant(tx, caller, saleID)
		if errors.Is(err, ErrParticipantNotFound) {
			return presale.ErrNotRegistered
		}
		if err != nil {
			return err
		}
		tier, err := tierOf(tx, cfg, caller)
		if err != nil {
			return err
		}

		if purchase, err = sale.PlanPurchase(tier, amount, now); err != nil {
			return err
		}
		if err := book.Transfer(ctx, ledger.Transfer{
			Asset:     ledger.NativeAsset,
			From:      caller,
			To:        SaleProceeds(saleID),
			Amount:    purchase.Cost,
			Reference: "purchase:" + saleID,
		}); err != nil {
			return fmt.Errorf("pay purchase: %w", err)
		}
		if err := sale.ApplyPurchase(purchase, &p, now); err != nil {
			return err
		}

		if err := tx.Put(SaleKey(saleID), sale); err != nil {
			return err
		}
		return tx.Put(ParticipantKey(caller, saleID), p)
	})
	if err != nil {
		return presale.Purchase{}, err
	}

	s.metrics.RecordPurchase(saleID, purchase.Amount, purchase.Cost)
	s.log.WithContext(ctx).
		WithField("sale_id", saleID).
		WithField("buyer", caller).
		WithField("amount", purchase.Amount).
		WithField("cost", purchase.Cost).
		Info("tokens purchased")

	b := events.NewEvent(events.EventPurchased).
		Sale(saleID).
		Actor(caller).
		Amount(purchase.Amount).
		Metadata("cost", fmt.Sprint(purchase.Cost))
	for _, tr := range purchase.Tranches {
		b.Metadata(fmt.Sprintf("tier%d", tr.Tier), fmt.Sprint(tr.Amount))
	}
	s.emit(ctx, b, now)

	return purchase, nil
}

// Claim releases every vesting tranche of caller that is due and not yet
// claimed, in one transfer from sale custody.
func (s *Service) Claim(ctx context.Context, caller, saleID string) (presale.ClaimPlan, error) {
	var plan presale.ClaimPlan
	now, err := s.atomic(ctx, "claim", func(tx store.Tx, book *ledger.Book, now time.Time) error {
		sale, err := loadSale(tx, saleID)
		if err != nil {
			return err
		}
		p, err := loadParticipant(tx, caller, saleID)
		if errors.Is(err, ErrParticipantNotFound) {
			return presale.ErrNotRegistered
		}
		if err != nil {
			return err
		}

		if plan, err = presale.PlanClaim(p, sale, now); err != nil {
			return err
		}
		if err := book.Transfer(ctx, ledger.Transfer{
			Asset:     sale.Asset,
			From:      SaleTokens(saleID),
			To:        caller,
			Amount:    plan.Total,
			Reference: "claim:" + saleID,
		}); err != nil {
			return fmt.Errorf("release tokens: %w", err)
		}
		if err := p.ApplyClaim(plan); err != nil {
			return err
		}
		return tx.Put(ParticipantKey(caller, saleID), p)
	})
	if err != nil {
		return presale.ClaimPlan{}, err
	}

	s.metrics.RecordClaim(saleID, plan.Total)
	s.log.WithContext(ctx).
		WithField("sale_id", saleID).
		WithField("participant", caller).
		WithField("amount", plan.Total).
		Info("tokens claimed")
	s.emit(ctx, events.NewEvent(events.EventClaimed).
		Sale(saleID).
		Actor(caller).
		Amount(plan.Total).
		Metadata("first", fmt.Sprint(plan.First)).
		Metadata("second", fmt.Sprint(plan.Second)).
		Metadata("third", fmt.Sprint(plan.Third)), now)

	return plan, nil
}
