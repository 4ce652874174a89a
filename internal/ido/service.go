// Package ido runs the presale operations against the record store and the
// ledger. Every operation reads the clock once, runs inside one store
// transaction and publishes its events only after that transaction commits.
package ido

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/R3E-Network/presale_layer/internal/events"
	"github.com/R3E-Network/presale_layer/internal/ledger"
	"github.com/R3E-Network/presale_layer/internal/logging"
	"github.com/R3E-Network/presale_layer/internal/metrics"
	"github.com/R3E-Network/presale_layer/internal/presale"
	"github.com/R3E-Network/presale_layer/internal/store"
)

// DefaultLiquidityDestination receives the listing share when none is configured.
const DefaultLiquidityDestination = "liquidity_pool"

// Errors
var (
	ErrNotInitialized      = fmt.Errorf("ido: global config: %w", store.ErrNotFound)
	ErrAlreadyInitialized  = fmt.Errorf("ido: global config: %w", store.ErrExists)
	ErrSaleNotFound        = fmt.Errorf("ido: presale: %w", store.ErrNotFound)
	ErrParticipantNotFound = fmt.Errorf("ido: participant: %w", store.ErrNotFound)
	ErrAlreadyRegistered   = fmt.Errorf("ido: participant: %w", store.ErrExists)
)

// Service provides the presale operations.
type Service struct {
	store     store.Store
	log       *logging.Logger
	metrics   metrics.Recorder
	events    events.EventLogger
	now       func() time.Time
	newID     func() string
	offsets   presale.VestingOffsets
	liquidity string

	reservePercent uint64
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithMetrics(m metrics.Recorder) Option {
	return func(s *Service) { s.metrics = m }
}

func WithEvents(l events.EventLogger) Option {
	return func(s *Service) { s.events = l }
}

// WithVestingOffsets sets the second and third release offsets of new sales.
func WithVestingOffsets(o presale.VestingOffsets) Option {
	return func(s *Service) { s.offsets = o }
}

// WithLiquidityDestination sets the holder that receives listing liquidity.
func WithLiquidityDestination(holder string) Option {
	return func(s *Service) {
		if holder != "" {
			s.liquidity = holder
		}
	}
}

// WithListingReserve sets the percentage of supply a creator deposits on top
// of the supply for listing liquidity. Values above 100 are ignored.
func WithListingReserve(pct uint64) Option {
	return func(s *Service) {
		if pct <= 100 {
			s.reservePercent = pct
		}
	}
}

// WithIDGenerator replaces the sale ID generator.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

// New constructs a presale service.
func New(st store.Store, log *logging.Logger, opts ...Option) *Service {
	if log == nil {
		log = logging.Default()
	}
	s := &Service{
		store:     st,
		log:       log,
		metrics:   metrics.NoOp{},
		events:    events.NoOpLogger{},
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
		offsets:   presale.DefaultVestingOffsets(),
		liquidity: DefaultLiquidityDestination,

		reservePercent: presale.LiquidityUnitsPercent,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Events returns the event logger the service publishes to.
func (s *Service) Events() events.EventLogger {
	return s.events
}

// atomic runs fn in one transaction with a ledger bound to it. now is read
// once and shared by everything fn does.
func (s *Service) atomic(ctx context.Context, op string, fn func(tx store.Tx, book *ledger.Book, now time.Time) error) (time.Time, error) {
	started := time.Now()
	now := s.now().UTC()
	clock := func() time.Time { return now }

	err := s.store.Atomic(ctx, func(tx store.Tx) error {
		return fn(tx, ledger.NewBook(tx, clock), now)
	})
	s.metrics.RecordOperation(op, err, time.Since(started))
	if err != nil {
		s.log.WithContext(ctx).
			WithField("operation", op).
			WithError(err).
			Debug("operation rejected")
	}
	return now, err
}

func (s *Service) emit(ctx context.Context, b *events.EventBuilder, at time.Time) {
	b.At(at).LogToWithContext(ctx, s.events)
}

func loadConfig(tx store.Tx) (presale.GlobalConfig, error) {
	var cfg presale.GlobalConfig
	if err := tx.Get(GlobalStateKey, &cfg); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return cfg, ErrNotInitialized
		}
		return cfg, fmt.Errorf("get global config: %w", err)
	}
	return cfg, nil
}

func loadSale(tx store.Tx, id string) (presale.Sale, error) {
	var sale presale.Sale
	if err := tx.Get(SaleKey(id), &sale); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return sale, ErrSaleNotFound
		}
		return sale, fmt.Errorf("get presale: %w", err)
	}
	return sale, nil
}

func loadParticipant(tx store.Tx, owner, saleID string) (presale.Participant, error) {
	var p presale.Participant
	if err := tx.Get(ParticipantKey(owner, saleID), &p); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return p, ErrParticipantNotFound
		}
		return p, fmt.Errorf("get participant: %w", err)
	}
	return p, nil
}

// loadStake returns the owner's record, or an empty one and false when the
// owner never staked.
func loadStake(tx store.Tx, owner, asset string) (presale.StakeRecord, bool, error) {
	var rec presale.StakeRecord
	err := tx.Get(StakeKey(owner, asset), &rec)
	if errors.Is(err, store.ErrNotFound) {
		return presale.NewStakeRecord(owner, asset), false, nil
	}
	if err != nil {
		return rec, false, fmt.Errorf("get stake: %w", err)
	}
	return rec, true, nil
}

// tierOf is the caller's current tier for the configured staking asset.
func tierOf(tx store.Tx, cfg presale.GlobalConfig, owner string) (uint8, error) {
	rec, _, err := loadStake(tx, owner, cfg.StakingAsset)
	if err != nil {
		return 0, err
	}
	return rec.Tier, nil
}

// Initialize creates the global configuration owned by caller.
func (s *Service) Initialize(ctx context.Context, caller, stakingAsset, treasury string) (presale.GlobalConfig, error) {
	if caller == "" || !ledger.ValidIdentifier(stakingAsset) || treasury == "" {
		return presale.GlobalConfig{}, presale.ErrInvalidParams
	}

	var cfg presale.GlobalConfig
	now, err := s.atomic(ctx, "initialize", func(tx store.Tx, _ *ledger.Book, _ time.Time) error {
		cfg = presale.NewGlobalConfig(caller, stakingAsset, treasury)
		if err := tx.Create(GlobalStateKey, cfg); err != nil {
			if errors.Is(err, store.ErrExists) {
				return ErrAlreadyInitialized
			}
			return fmt.Errorf("create global config: %w", err)
		}
		return nil
	})
	if err != nil {
		return presale.GlobalConfig{}, err
	}

	s.log.WithContext(ctx).
		WithField("admin", caller).
		WithField("staking_asset", stakingAsset).
		Info("presale platform initialized")
	s.emit(ctx, events.NewEvent(events.EventInitialized).
		Actor(caller).
		Metadata("staking_asset", stakingAsset).
		Metadata("treasury", treasury), now)

	return cfg, nil
}

// UpdateAdmin hands the global configuration over to newAdmin.
func (s *Service) UpdateAdmin(ctx context.Context, caller, newAdmin string) (presale.GlobalConfig, error) {
	var cfg presale.GlobalConfig
	now, err := s.atomic(ctx, "update_admin", func(tx store.Tx, _ *ledger.Book, _ time.Time) error {
		var err error
		if cfg, err = loadConfig(tx); err != nil {
			return err
		}
		if err := cfg.UpdateAdmin(caller, newAdmin); err != nil {
			return err
		}
		return tx.Put(GlobalStateKey, cfg)
	})
	if err != nil {
		return presale.GlobalConfig{}, err
	}

	s.log.WithContext(ctx).
		WithField("previous_admin", caller).
		WithField("admin", newAdmin).
		Info("admin updated")
	s.emit(ctx, events.NewEvent(events.EventAdminUpdated).
		Actor(caller).
		Metadata("admin", newAdmin), now)

	return cfg, nil
}
