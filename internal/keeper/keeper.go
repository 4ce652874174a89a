// Package keeper advances sales whose windows have opened or closed without
// waiting for an admin to do it by hand.
package keeper

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/R3E-Network/presale_layer/internal/ido"
	"github.com/R3E-Network/presale_layer/internal/logging"
	"github.com/R3E-Network/presale_layer/internal/presale"
)

// DefaultSchedule runs a pass every thirty seconds.
const DefaultSchedule = "@every 30s"

// Result counts what one pass did.
type Result struct {
	Started int
	Ended   int
	Failed  int
}

// Keeper starts APPROVED sales once their sale window opens and ends LIVE
// sales once it closes. It acts as operator, which must be the admin.
type Keeper struct {
	svc      *ido.Service
	operator string
	log      *logging.Logger
	now      func() time.Time
	cron     *cron.Cron
}

// Option configures a Keeper.
type Option func(*Keeper)

// WithClock overrides the clock used to compare against sale windows.
func WithClock(now func() time.Time) Option {
	return func(k *Keeper) { k.now = now }
}

// New creates a keeper acting as operator.
func New(svc *ido.Service, operator string, log *logging.Logger, opts ...Option) *Keeper {
	if log == nil {
		log = logging.Default()
	}
	k := &Keeper{svc: svc, operator: operator, log: log, now: time.Now}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Start schedules passes on schedule. Overlapping passes are skipped.
func (k *Keeper) Start(schedule string) error {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	cl := cronLogger{k.log}
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	if _, err := c.AddFunc(schedule, func() { k.Tick(context.Background()) }); err != nil {
		return fmt.Errorf("keeper: invalid schedule %q: %w", schedule, err)
	}
	k.cron = c
	c.Start()
	k.log.WithField("schedule", schedule).WithField("operator", k.operator).Info("keeper started")
	return nil
}

// Stop halts scheduling and waits for a running pass to finish or ctx to
// expire.
func (k *Keeper) Stop(ctx context.Context) {
	if k.cron == nil {
		return
	}
	select {
	case <-k.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// Tick runs one pass. Failures are logged and skipped.
func (k *Keeper) Tick(ctx context.Context) Result {
	var res Result
	now := k.now()
	log := k.log.WithContext(ctx).WithField("operator", k.operator)

	sales, err := k.svc.ListSales(ctx, ido.SaleFilter{})
	if err != nil {
		log.WithError(err).Warn("keeper could not list sales")
		res.Failed++
		return res
	}

	for _, sale := range sales {
		var (
			advance func(context.Context, string, string) (presale.Sale, error)
			counter *int
		)
		switch {
		case sale.Status == presale.StatusApproved && !now.Before(sale.SaleStart):
			advance, counter = k.svc.StartSale, &res.Started
		case sale.Status == presale.StatusLive && !now.Before(sale.SaleEnd):
			advance, counter = k.svc.EndSale, &res.Ended
		default:
			continue
		}

		updated, err := advance(ctx, k.operator, sale.ID)
		if err != nil {
			log.WithError(err).WithField("sale_id", sale.ID).Warn("keeper could not advance sale")
			res.Failed++
			continue
		}
		*counter++
		log.WithField("sale_id", sale.ID).WithField("status", updated.Status.String()).Info("keeper advanced sale")
	}

	if res.Started+res.Ended+res.Failed > 0 {
		log.WithFields(map[string]interface{}{
			"started": res.Started,
			"ended":   res.Ended,
			"failed":  res.Failed,
		}).Debug("keeper pass finished")
	}
	return res
}

// cronLogger routes cron's own messages to logrus.
type cronLogger struct {
	log *logging.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.WithFields(pairs(keysAndValues)).Debug("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.WithFields(pairs(keysAndValues)).WithError(err).Error("cron: " + msg)
}

func pairs(kv []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return fields
}
