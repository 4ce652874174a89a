package ido

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/R3E-Network/presale_layer/internal/events"
	"github.com/R3E-Network/presale_layer/internal/ledger"
	"github.com/R3E-Network/presale_layer/internal/presale"
	"github.com/R3E-Network/presale_layer/internal/store"
)

// CreateSale opens a PENDING sale. The creator's supply plus the listing
// reserve move into sale custody in the same transaction.
func (s *Service) CreateSale(ctx context.Context, caller, asset string, params presale.SaleParams) (presale.Sale, error) {
	if caller == "" || asset == ledger.NativeAsset || !ledger.ValidIdentifier(asset) {
		return presale.Sale{}, presale.ErrInvalidParams
	}
	if params.SupplyForSale == 0 {
		return presale.Sale{}, presale.ErrInvalidAmount
	}

	id := s.newID()
	var sale presale.Sale
	now, err := s.atomic(ctx, "create_sale", func(tx store.Tx, book *ledger.Book, now time.Time) error {
		cfg, err := loadConfig(tx)
		if err != nil {
			return err
		}
		sale, err = presale.NewSale(id, cfg.Admin, caller, asset, params, now, s.offsets)
		if err != nil {
			return err
		}

		deposit := params.SupplyForSale + presale.ReserveOf(params.SupplyForSale, s.reservePercent)
		if deposit < params.SupplyForSale {
			return presale.ErrArithmeticOverflow
		}
		if err := book.Transfer(ctx, ledger.Transfer{
			Asset:     asset,
			From:      caller,
			To:        SaleTokens(id),
			Amount:    deposit,
			Reference: "deposit:" + id,
		}); err != nil {
			return fmt.Errorf("deposit supply: %w", err)
		}

		if err := tx.Create(SaleKey(id), sale); err != nil {
			return fmt.Errorf("create presale: %w", err)
		}
		if err := cfg.SaleCreated(); err != nil {
			return err
		}
		return tx.Put(GlobalStateKey, cfg)
	})
	if err != nil {
		return presale.Sale{}, err
	}

	s.metrics.RecordSaleStatus("", sale.Status.String())
	s.log.WithContext(ctx).
		WithField("sale_id", id).
		WithField("creator", caller).
		WithField("asset", asset).
		WithField("supply", params.SupplyForSale).
		Info("presale created")
	s.emit(ctx, events.NewEvent(events.EventSaleCreated).
		Sale(id).
		Actor(caller).
		Amount(params.SupplyForSale).
		Status(sale.Status.String()).
		Metadata("asset", asset), now)

	return sale, nil
}

// ApproveSale moves a PENDING sale to APPROVED. Admin only.
func (s *Service) ApproveSale(ctx context.Context, caller, saleID string) (presale.Sale, error) {
	return s.transition(ctx, "approve_sale", events.EventSaleApproved, caller, saleID,
		func(sale *presale.Sale, cfg *presale.GlobalConfig, now time.Time) error {
			if err := sale.Approve(caller, now); err != nil {
				return err
			}
			return cfg.SaleActivated()
		})
}

// StartSale opens an APPROVED sale for purchases. Admin only.
func (s *Service) StartSale(ctx context.Context, caller, saleID string) (presale.Sale, error) {
	return s.transition(ctx, "start_sale", events.EventSaleStarted, caller, saleID,
		func(sale *presale.Sale, _ *presale.GlobalConfig, now time.Time) error {
			return sale.Start(caller, now)
		})
}

// EndSale completes a LIVE sale. Admin only.
func (s *Service) EndSale(ctx context.Context, caller, saleID string) (presale.Sale, error) {
	return s.transition(ctx, "end_sale", events.EventSaleCompleted, caller, saleID,
		func(sale *presale.Sale, cfg *presale.GlobalConfig, now time.Time) error {
			if err := sale.End(caller, now); err != nil {
				return err
			}
			cfg.SaleDeactivated()
			return nil
		})
}

// CancelSale cancels a sale that has not reached a terminal status. Admin only.
func (s *Service) CancelSale(ctx context.Context, caller, saleID string) (presale.Sale, error) {
	return s.transition(ctx, "cancel_sale", events.EventSaleCancelled, caller, saleID,
		func(sale *presale.Sale, cfg *presale.GlobalConfig, now time.Time) error {
			wasActive := sale.Status.CountsAsActive()
			if err := sale.Cancel(caller, now); err != nil {
				return err
			}
			if wasActive {
				cfg.SaleDeactivated()
			}
			return nil
		})
}

func (s *Service) transition(
	ctx context.Context,
	op string,
	eventType events.EventType,
	caller, saleID string,
	apply func(sale *presale.Sale, cfg *presale.GlobalConfig, now time.Time) error,
) (presale.Sale, error) {
	var (
		sale presale.Sale
		from presale.Status
	)
	now, err := s.atomic(ctx, op, func(tx store.Tx, _ *ledger.Book, now time.Time) error {
		cfg, err := loadConfig(tx)
		if err != nil {
			return err
		}
		if sale, err = loadSale(tx, saleID); err != nil {
			return err
		}
		if caller != cfg.Admin {
			return presale.ErrUnauthorized
		}
		// Sales follow the admin role, not the identity that held it at creation.
		sale.Admin = cfg.Admin
		from = sale.Status
		if err := apply(&sale, &cfg, now); err != nil {
			return err
		}
		if err := tx.Put(SaleKey(saleID), sale); err != nil {
			return err
		}
		return tx.Put(GlobalStateKey, cfg)
	})
	if err != nil {
		return presale.Sale{}, err
	}

	s.metrics.RecordSaleStatus(from.String(), sale.Status.String())
	s.log.WithContext(ctx).
		WithField("sale_id", saleID).
		WithField("from", from.String()).
		WithField("to", sale.Status.String()).
		Info("presale status changed")
	s.emit(ctx, events.NewEvent(eventType).
		Sale(saleID).
		Actor(caller).
		Status(sale.Status.String()), now)

	return sale, nil
}

// ListToken seeds liquidity from a completed sale: a share of the proceeds
// and a share of the units sold move to the liquidity destination. Admin
// only, once per sale.
func (s *Service) ListToken(ctx context.Context, caller, saleID string) (presale.Sale, presale.ListingPlan, error) {
	var (
		sale presale.Sale
		plan presale.ListingPlan
	)
	now, err := s.atomic(ctx, "list_token", func(tx store.Tx, book *ledger.Book, now time.Time) error {
		cfg, err := loadConfig(tx)
		if err != nil {
			return err
		}
		if caller != cfg.Admin {
			return presale.ErrUnauthorized
		}
		if sale, err = loadSale(tx, saleID); err != nil {
			return err
		}
		if plan, err = sale.PlanListing(); err != nil {
			return err
		}

		ref := "listing:" + saleID
		if err := book.Transfer(ctx, ledger.Transfer{
			Asset:     ledger.NativeAsset,
			From:      SaleProceeds(saleID),
			To:        s.liquidity,
			Amount:    plan.Proceeds,
			Reference: ref,
		}); err != nil {
			return fmt.Errorf("seed proceeds: %w", err)
		}
		if err := book.Transfer(ctx, ledger.Transfer{
			Asset:     sale.Asset,
			From:      SaleTokens(saleID),
			To:        s.liquidity,
			Amount:    plan.Units,
			Reference: ref,
		}); err != nil {
			return fmt.Errorf("seed units: %w", err)
		}

		sale.MarkListed(now)
		return tx.Put(SaleKey(saleID), sale)
	})
	if err != nil {
		return presale.Sale{}, presale.ListingPlan{}, err
	}

	s.log.WithContext(ctx).
		WithField("sale_id", saleID).
		WithField("proceeds", plan.Proceeds).
		WithField("units", plan.Units).
		WithField("destination", s.liquidity).
		Info("token listed")
	s.emit(ctx, events.NewEvent(events.EventListed).
		Sale(saleID).
		Actor(caller).
		Amount(plan.Units).
		Metadata("proceeds", strconv.FormatUint(plan.Proceeds, 10)).
		Metadata("destination", s.liquidity), now)

	return sale, plan, nil
}

// WithdrawFunds pays the protocol fee to the treasury and the remaining
// proceeds to the creator. Creator only, after listing, once per sale.
func (s *Service) WithdrawFunds(ctx context.Context, caller, saleID string) (presale.Sale, presale.WithdrawalPlan, error) {
	var (
		sale presale.Sale
		plan presale.WithdrawalPlan
	)
	now, err := s.atomic(ctx, "withdraw_funds", func(tx store.Tx, book *ledger.Book, now time.Time) error {
		cfg, err := loadConfig(tx)
		if err != nil {
			return err
		}
		if sale, err = loadSale(tx, saleID); err != nil {
			return err
		}
		held, err := book.Balance(ledger.NativeAsset, SaleProceeds(saleID))
		if err != nil {
			return err
		}
		if plan, err = sale.PlanWithdrawal(caller, held); err != nil {
			return err
		}

		ref := "withdrawal:" + saleID
		if err := book.Transfer(ctx, ledger.Transfer{
			Asset:     ledger.NativeAsset,
			From:      SaleProceeds(saleID),
			To:        cfg.Treasury,
			Amount:    plan.ProtocolFee,
			Reference: ref,
		}); err != nil {
			return fmt.Errorf("pay protocol fee: %w", err)
		}
		if err := book.Transfer(ctx, ledger.Transfer{
			Asset:     ledger.NativeAsset,
			From:      SaleProceeds(saleID),
			To:        sale.Creator,
			Amount:    plan.CreatorShare,
			Reference: ref,
		}); err != nil {
			return fmt.Errorf("pay creator: %w", err)
		}

		sale.MarkWithdrawn(now)
		return tx.Put(SaleKey(saleID), sale)
	})
	if err != nil {
		return presale.Sale{}, presale.WithdrawalPlan{}, err
	}

	s.log.WithContext(ctx).
		WithField("sale_id", saleID).
		WithField("protocol_fee", plan.ProtocolFee).
		WithField("creator_share", plan.CreatorShare).
		Info("presale funds withdrawn")
	s.emit(ctx, events.NewEvent(events.EventWithdrawn).
		Sale(saleID).
		Actor(caller).
		Amount(plan.CreatorShare).
		Metadata("protocol_fee", strconv.FormatUint(plan.ProtocolFee, 10)), now)

	return sale, plan, nil
}
