package service

import (
	"fmt"
	"slices"

	"github.com/berfenger/homedash/internal/core/domain"
)

// ResolveOperation maps a card action to a backend operation. last is the
// record the card currently shows; mode toggles flip relative to it.
func ResolveOperation(desc domain.DeviceTypeDescriptor, action, value string, last *domain.DeviceRecord) (domain.Operation, error) {
	spec := domain.SpecFor(desc.Type)
	op := domain.Operation{
		DeviceId: desc.Id,
		Name:     desc.Name,
		Toggle:   spec.Toggle,
	}

	switch action {
	case domain.ACTION_TOGGLE:
		if spec.Toggle == domain.TOGGLE_NONE {
			return op, unsupported(desc, action)
		}
		op.Kind = domain.OP_TOGGLE
	case domain.ACTION_INCREASE, domain.ACTION_DECREASE:
		if spec.Adjust == nil {
			return op, unsupported(desc, action)
		}
		op.Kind = domain.OP_ADJUST
		op.Adjust = spec.Adjust
		op.Quantity = spec.Adjust.Quantity
		op.Delta = spec.Adjust.Step
		if action == domain.ACTION_DECREASE {
			op.Delta = -spec.Adjust.Step
		}
	case domain.ACTION_SET_EFFECT:
		if len(spec.Effects) == 0 {
			return op, unsupported(desc, action)
		}
		if !slices.Contains(spec.Effects, value) {
			return op, invalid(desc, action, value)
		}
		op.Kind = domain.OP_SET_EFFECT
		op.Arg = value
		op.Quantity = "effect"
	case domain.ACTION_SET_AC_MODE:
		if len(spec.AcModes) == 0 {
			return op, unsupported(desc, action)
		}
		if !slices.Contains(spec.AcModes, value) {
			return op, invalid(desc, action, value)
		}
		op.Kind = domain.OP_SET_AC_MODE
		op.Arg = value
		op.Quantity = "mode"
	case domain.ACTION_SET_MODE:
		if spec.Selector == nil {
			return op, unsupported(desc, action)
		}
		if !slices.Contains(spec.Selector.Options, value) {
			return op, invalid(desc, action, value)
		}
		op.Kind = domain.OP_SET_MODE
		op.Arg = value
		op.Quantity = spec.Selector.Quantity
	default:
		idx := slices.IndexFunc(spec.ModeToggles, func(mt domain.ModeToggle) bool { return mt.Action == action })
		if idx < 0 {
			return op, unsupported(desc, action)
		}
		mt := spec.ModeToggles[idx]
		op.Kind = domain.OP_SET_MODE
		op.Arg = mt.Mode
		if last != nil && last.DeviceMode == mt.Mode {
			op.Arg = domain.MODE_IDLE
		}
		op.Quantity = "mode"
	}
	return op, nil
}

// FailureMessage is the user-facing text for a failed operation.
func FailureMessage(op domain.Operation) string {
	switch op.Kind {
	case domain.OP_TOGGLE:
		return fmt.Sprintf("Failed to toggle %s. Please try again.", op.Name)
	default:
		return fmt.Sprintf("Failed to change %s %s. Please try again.", op.Name, op.Quantity)
	}
}

func unsupported(desc domain.DeviceTypeDescriptor, action string) error {
	return fmt.Errorf("%w: %s on %s", domain.ErrUnsupportedAction, action, desc.Type)
}

func invalid(desc domain.DeviceTypeDescriptor, action, value string) error {
	return fmt.Errorf("%w: %s %q on %s", domain.ErrInvalidValue, action, value, desc.Type)
}
