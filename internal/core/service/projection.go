package service

import (
	"math"
	"strconv"

	"github.com/berfenger/homedash/internal/core/domain"
)

// Project derives the view state of a record. It is pure and total: types
// without a specific rule fall back to a generic ON/OFF display.
func Project(record domain.DeviceRecord, desc domain.DeviceTypeDescriptor) domain.ViewState {
	spec := domain.SpecFor(desc.Type)

	view := domain.ViewState{}
	view.DisplayText, view.DisplayClass = display(spec.Display, record)
	view.IsActive = isActive(spec, record)
	if spec.Variant != nil {
		view.CssVariant = spec.Variant(record)
	}
	view.ToggleLabel = toggleLabel(spec, record)
	if spec.Adjust != nil && !spec.SpeedAttr {
		view.Readout = Readout(*spec.Adjust, record)
	}
	if spec.SpeedAttr && record.Value != nil {
		speed := int(math.Round(*record.Value/10) * 10)
		view.Speed = &speed
	}
	return view
}

func display(rule domain.DisplayRule, record domain.DeviceRecord) (string, domain.DisplayClass) {
	if n := rule.Numeric; n != nil {
		if v := n.Field(record); v != nil && (!n.OnlyWhenOn || record.IsOn()) {
			return FormatNumber(*v, n.Decimals) + n.Unit, domain.DISPLAY_CLASS_NUMBER
		}
	}

	on := record.IsOn()
	if rule.On != nil {
		on = rule.On(record)
	}
	onText, offText := "ON", "OFF"
	if rule.OnText != "" {
		onText, offText = rule.OnText, rule.OffText
	}
	text := offText
	if on {
		text = onText
	}
	if rule.Label != nil {
		text = rule.Label(record)
	}
	if on {
		return text, domain.DISPLAY_CLASS_ON
	}
	return text, domain.DISPLAY_CLASS_OFF
}

func isActive(spec domain.TypeSpec, record domain.DeviceRecord) bool {
	if spec.Active != nil {
		return spec.Active(record)
	}
	return record.IsOn()
}

func toggleLabel(spec domain.TypeSpec, record domain.DeviceRecord) string {
	active := isActive(spec, record)
	switch spec.Toggle {
	case domain.TOGGLE_PLAIN:
		if active {
			return "Turn Off"
		}
		return "Turn On"
	case domain.TOGGLE_LOCK:
		if active {
			return "Unlock"
		}
		return "Lock"
	case domain.TOGGLE_GARAGE:
		if active {
			return "Close"
		}
		return "Open"
	}
	return ""
}

// Readout is the adjustable value shown next to the +/- controls.
func Readout(adj domain.AdjustSpec, record domain.DeviceRecord) string {
	v := adj.Default
	if record.Value != nil {
		v = *record.Value
	}
	return FormatNumber(v, -1) + adj.Unit
}

func FormatNumber(v float64, decimals int) string {
	return strconv.FormatFloat(v, 'f', decimals, 64)
}

func Clamp(v, min, max float64) float64 {
	return math.Min(max, math.Max(min, v))
}
