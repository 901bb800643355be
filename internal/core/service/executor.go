package service

import (
	"context"
	"fmt"

	"github.com/berfenger/homedash/internal/core/domain"
	"github.com/berfenger/homedash/internal/core/port"

	"go.uber.org/zap"
)

// Executor runs control operations against the backend as explicit step
// lists. A failed step aborts the rest; completed steps are never undone.
type Executor struct {
	api    port.DeviceAPI
	logger *zap.Logger
}

type step struct {
	name string
	run  func(ctx context.Context) (*domain.DeviceRecord, error)
}

func NewExecutor(api port.DeviceAPI, logger *zap.Logger) *Executor {
	return &Executor{
		api:    api,
		logger: logger,
	}
}

func (e *Executor) Execute(ctx context.Context, op domain.Operation) (*domain.DeviceRecord, error) {
	switch op.Kind {
	case domain.OP_TOGGLE:
		return e.Toggle(ctx, op.DeviceId, op.Toggle)
	case domain.OP_ADJUST:
		if op.Adjust == nil {
			return nil, domain.ErrUnsupportedAction
		}
		return e.AdjustValue(ctx, op.DeviceId, op.Delta, *op.Adjust)
	case domain.OP_SET_MODE:
		return e.SetMode(ctx, op.DeviceId, op.Arg)
	case domain.OP_SET_EFFECT:
		return e.SetEffect(ctx, op.DeviceId, op.Arg)
	case domain.OP_SET_AC_MODE:
		return e.SetAcMode(ctx, op.DeviceId, op.Arg)
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedAction, op.Kind)
}

func (e *Executor) Toggle(ctx context.Context, id int, kind domain.ToggleKind) (*domain.DeviceRecord, error) {
	switch kind {
	case domain.TOGGLE_LOCK:
		return e.toggleLatched(ctx, id, domain.STATE_LOCKED, domain.STATE_UNLOCKED)
	case domain.TOGGLE_GARAGE:
		return e.toggleLatched(ctx, id, domain.STATE_OPEN, domain.STATE_CLOSED)
	}
	return e.api.Toggle(ctx, id)
}

// toggleLatched drives devices whose latch is tracked in value, device_mode
// and state at once: set_value, set_mode, toggle. The toggle response wins.
func (e *Executor) toggleLatched(ctx context.Context, id int, engaged, released string) (*domain.DeviceRecord, error) {
	current, err := e.api.GetDevice(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get: %w", err)
	}

	isEngaged := current.State == engaged || current.DeviceMode == engaged
	target, targetValue := engaged, 1.0
	if isEngaged {
		target, targetValue = released, 0.0
	}
	e.logger.Debug("executor: latched toggle", zap.Int("device", id), zap.String("target", target))

	return runSteps(ctx, []step{
		{"set_value", func(ctx context.Context) (*domain.DeviceRecord, error) {
			return e.api.SetValue(ctx, id, targetValue)
		}},
		{"set_mode", func(ctx context.Context) (*domain.DeviceRecord, error) {
			return e.api.SetMode(ctx, id, target)
		}},
		{"toggle", func(ctx context.Context) (*domain.DeviceRecord, error) {
			return e.api.Toggle(ctx, id)
		}},
	})
}

// AdjustValue moves value by delta within the adjust bounds. A device that is
// off is toggled on first when WakeIfOff is set, and its response becomes the
// baseline. If the clamped value does not change no write is issued and the
// baseline is returned.
func (e *Executor) AdjustValue(ctx context.Context, id int, delta float64, adj domain.AdjustSpec) (*domain.DeviceRecord, error) {
	baseline, err := e.api.GetDevice(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get: %w", err)
	}

	if adj.WakeIfOff && !baseline.IsOn() {
		baseline, err = e.api.Toggle(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("wake: %w", err)
		}
	}

	current := adj.Default
	if baseline.Value != nil {
		current = *baseline.Value
	}
	next := Clamp(current+delta, adj.Min, adj.Max)
	if next == current {
		e.logger.Debug("executor: value at bound", zap.Int("device", id), zap.Float64("value", current))
		return baseline, nil
	}

	updated, err := e.api.SetValue(ctx, id, next)
	if err != nil {
		return nil, fmt.Errorf("set_value: %w", err)
	}
	return updated, nil
}

func (e *Executor) SetMode(ctx context.Context, id int, mode string) (*domain.DeviceRecord, error) {
	return e.api.SetMode(ctx, id, mode)
}

func (e *Executor) SetEffect(ctx context.Context, id int, effect string) (*domain.DeviceRecord, error) {
	return e.api.SetEffect(ctx, id, effect)
}

func (e *Executor) SetAcMode(ctx context.Context, id int, mode string) (*domain.DeviceRecord, error) {
	return e.api.SetAcMode(ctx, id, mode)
}

func runSteps(ctx context.Context, steps []step) (*domain.DeviceRecord, error) {
	var last *domain.DeviceRecord
	for _, s := range steps {
		rec, err := s.run(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s.name, err)
		}
		last = rec
	}
	return last, nil
}
