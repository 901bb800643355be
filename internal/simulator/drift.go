package simulator

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// Drifter varies the temperature sensor and accrues energy on a fixed
// interval until its context is done.
type Drifter struct {
	store    *Store
	interval time.Duration
	delta    func() float64
	logger   *zap.Logger
}

func NewDrifter(store *Store, interval time.Duration, logger *zap.Logger) *Drifter {
	return &Drifter{
		store:    store,
		interval: interval,
		delta:    func() float64 { return float64(rand.Intn(3) - 1) },
		logger:   logger.With(zap.String("component", "drift")),
	}
}

func (d *Drifter) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			d.Step(ctx, now.Sub(last))
			last = now
		}
	}
}

// Step applies one drift round covering elapsed time.
func (d *Drifter) Step(ctx context.Context, elapsed time.Duration) {
	temp, err := d.store.DriftTemperature(ctx, d.delta())
	if err != nil {
		d.logger.Warn("temperature drift failed", zap.Error(err))
	} else {
		d.logger.Debug("temperature updated", zap.Float64("value", temp))
	}
	if err := d.store.AccrueEnergy(ctx, elapsed); err != nil {
		d.logger.Warn("energy accrual failed", zap.Error(err))
	}
}
