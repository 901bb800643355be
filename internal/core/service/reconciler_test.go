package service

import (
	"testing"

	"github.com/berfenger/homedash/internal/core/domain"
	"github.com/berfenger/homedash/internal/render"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	patches []domain.CardPatch
}

func (o *recordingObserver) CardMounted(domain.CardSnapshot) {}
func (o *recordingObserver) CardUnmounted(int)               {}
func (o *recordingObserver) CardPatched(p domain.CardPatch) {
	o.patches = append(o.patches, p)
}

func mount(t *testing.T, board *render.Board, reg *domain.Registry, record domain.DeviceRecord) {
	t.Helper()
	desc, ok := reg.Lookup(record.Id)
	require.True(t, ok)
	board.Mount(desc, record)
}

func TestReconcileSprinklerZoneHighlight(t *testing.T) {

	require := require.New(t)

	reg := domain.DefaultRegistry()
	board := render.NewBoard(nil)
	rec := NewReconciler(reg)

	record := domain.DeviceRecord{Id: 14, Type: domain.DEVICE_TYPE_SPRINKLER, State: "on", DeviceMode: "zone2"}
	mount(t, board, reg, record)
	card, _ := board.Get(14)

	_, applied := rec.Reconcile(card, record)
	require.True(applied)

	snap := card.Snapshot()
	zones := snap.ControlsFor(domain.ACTION_SET_MODE)
	require.Len(zones, 4)
	for _, ctl := range zones {
		require.Equal(ctl.Data["zone"] == "zone2", ctl.Active, ctl.Data["zone"])
	}

	record.DeviceMode = "zone4"
	rec.Reconcile(card, record)
	for _, ctl := range card.Snapshot().ControlsFor(domain.ACTION_SET_MODE) {
		require.Equal(ctl.Data["zone"] == "zone4", ctl.Active, ctl.Data["zone"])
	}
}

func TestReconcileUnknownIdIsNoop(t *testing.T) {

	reg := domain.DefaultRegistry()
	board := render.NewBoard(nil)
	rec := NewReconciler(reg)

	card, ok := board.Get(99)
	assert.False(t, ok)

	_, applied := rec.Reconcile(card, domain.DeviceRecord{Id: 99, State: "on"})
	assert.False(t, applied)
	assert.Empty(t, board.Snapshot())
}

func TestReconcileUpdatesInPlace(t *testing.T) {

	require := require.New(t)

	reg := domain.DefaultRegistry()
	obs := &recordingObserver{}
	board := render.NewBoard(obs)
	rec := NewReconciler(reg)

	record := domain.DeviceRecord{Id: 1, Type: domain.DEVICE_TYPE_LIGHT, State: "off", LightEffect: "natural"}
	mount(t, board, reg, record)
	card, _ := board.Get(1)
	before := card.Controls(domain.ACTION_SET_EFFECT)

	rec.Reconcile(card, record)
	snap := card.Snapshot()
	require.Equal("OFF", snap.Text(domain.SLOT_STATE_VALUE))
	require.True(snap.HasClass(domain.SLOT_STATE_VALUE, "off"))
	require.False(snap.HasClass(domain.SLOT_ROOT, domain.CLASS_ACTIVE))
	require.True(snap.HasClass(domain.SLOT_ROOT, "effect-natural"))

	record.State = "on"
	record.LightEffect = "warm"
	rec.Reconcile(card, record)
	snap = card.Snapshot()
	require.Equal("ON", snap.Text(domain.SLOT_STATE_VALUE))
	require.True(snap.HasClass(domain.SLOT_STATE_VALUE, "on"))
	require.False(snap.HasClass(domain.SLOT_STATE_VALUE, "off"))
	require.True(snap.HasClass(domain.SLOT_ROOT, domain.CLASS_ACTIVE))
	require.True(snap.HasClass(domain.SLOT_ROOT, "effect-warm"))
	require.False(snap.HasClass(domain.SLOT_ROOT, "effect-natural"))
	require.Equal("Turn Off", snap.ControlsFor(domain.ACTION_TOGGLE)[0].Label)

	// the same control handles survive every reconcile
	after := card.Controls(domain.ACTION_SET_EFFECT)
	require.Len(after, len(before))
	for i := range before {
		require.Same(before[i], after[i])
	}
	for _, ctl := range snap.ControlsFor(domain.ACTION_SET_EFFECT) {
		require.Equal(ctl.Data["effect"] == "warm", ctl.Active)
	}

	// re-applying an identical record changes nothing
	n := len(obs.patches)
	rev := card.Snapshot().Revision
	rec.Reconcile(card, record)
	require.Len(obs.patches, n)
	require.Equal(rev, card.Snapshot().Revision)
}

func TestReconcileFanSpeedAttr(t *testing.T) {

	require := require.New(t)

	reg := domain.DefaultRegistry()
	board := render.NewBoard(nil)
	rec := NewReconciler(reg)

	record := domain.DeviceRecord{Id: 2, Type: domain.DEVICE_TYPE_FAN, State: "on", Value: domain.Float(64)}
	mount(t, board, reg, record)
	card, _ := board.Get(2)

	rec.Reconcile(card, record)
	snap := card.Snapshot()
	require.Equal("64%", snap.Text(domain.SLOT_STATE_VALUE))
	require.Equal("60", snap.Attrs[domain.ATTR_SPEED])

	record.State = "off"
	record.Value = nil
	rec.Reconcile(card, record)
	snap = card.Snapshot()
	require.Equal("OFF", snap.Text(domain.SLOT_STATE_VALUE))
	_, has := snap.Attrs[domain.ATTR_SPEED]
	require.False(has)
}

func TestReconcileCameraModeToggles(t *testing.T) {

	require := require.New(t)

	reg := domain.DefaultRegistry()
	board := render.NewBoard(nil)
	rec := NewReconciler(reg)

	record := domain.DeviceRecord{Id: 8, Type: domain.DEVICE_TYPE_CAMERA, State: "on", DeviceMode: "recording"}
	mount(t, board, reg, record)
	card, _ := board.Get(8)

	rec.Reconcile(card, record)
	snap := card.Snapshot()
	require.Equal("RECORDING", snap.Text(domain.SLOT_STATE_VALUE))
	require.True(snap.ControlsFor(domain.ACTION_TOGGLE_RECORDING)[0].Active)
	require.False(snap.ControlsFor(domain.ACTION_TOGGLE_MOTION)[0].Active)
}
