package service

import (
	"strconv"

	"github.com/berfenger/homedash/internal/core/domain"
	"github.com/berfenger/homedash/internal/core/port"
)

// Reconciler applies server records to already-mounted cards in place.
type Reconciler struct {
	registry *domain.Registry
}

func NewReconciler(registry *domain.Registry) *Reconciler {
	return &Reconciler{registry: registry}
}

// Reconcile updates card from record. Records without a descriptor are
// ignored and reported as not applied.
func (r *Reconciler) Reconcile(card port.CardHandle, record domain.DeviceRecord) (domain.ViewState, bool) {
	desc, ok := r.registry.Lookup(record.Id)
	if !ok || card == nil {
		return domain.ViewState{}, false
	}
	view := Project(record, desc)
	Apply(card, domain.SpecFor(desc.Type), record, view)
	return view, true
}

func Apply(card port.CardHandle, spec domain.TypeSpec, record domain.DeviceRecord, view domain.ViewState) {
	// state text and its exclusive display class
	card.SetText(domain.SLOT_STATE_VALUE, view.DisplayText)
	for _, class := range domain.DisplayClasses {
		card.ToggleClass(domain.SLOT_STATE_VALUE, string(class), class == view.DisplayClass)
	}

	card.ToggleClass(domain.SLOT_ROOT, domain.CLASS_ACTIVE, view.IsActive)
	if spec.VariantTag != "" {
		card.SwapClass(domain.SLOT_ROOT, spec.VariantTag, view.CssVariant)
	}

	for _, ctl := range card.Controls(domain.ACTION_TOGGLE) {
		ctl.SetLabel(view.ToggleLabel)
	}

	if view.Readout != "" {
		card.SetText(domain.SLOT_READOUT, view.Readout)
	}

	if spec.SpeedAttr {
		if view.Speed != nil {
			card.SetAttr(domain.ATTR_SPEED, strconv.Itoa(*view.Speed))
		} else {
			card.RemoveAttr(domain.ATTR_SPEED)
		}
	}

	// selector highlighting follows the record field only
	highlight(card, domain.ACTION_SET_EFFECT, "effect", record.LightEffect)
	highlight(card, domain.ACTION_SET_AC_MODE, "mode", record.AcMode)
	if spec.Selector != nil {
		highlight(card, domain.ACTION_SET_MODE, spec.Selector.Attr, record.DeviceMode)
	}
	for _, mt := range spec.ModeToggles {
		for _, ctl := range card.Controls(mt.Action) {
			ctl.SetActive(record.DeviceMode == mt.Mode)
		}
	}
}

func highlight(card port.CardHandle, action, attr, current string) {
	for _, ctl := range card.Controls(action) {
		ctl.SetActive(current != "" && ctl.Data(attr) == current)
	}
}
