package render

import (
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/berfenger/homedash/internal/core/domain"
	"github.com/berfenger/homedash/internal/core/port"

	"github.com/asynkron/protoactor-go/eventstream"
)

type Observer interface {
	CardMounted(card domain.CardSnapshot)
	CardUnmounted(id int)
	CardPatched(patch domain.CardPatch)
}

// Initializer fills a freshly built card from the record it was mounted with.
type Initializer func(card port.CardHandle, record domain.DeviceRecord)

// Board holds every mounted card, keyed by device id.
type Board struct {
	mu       sync.RWMutex
	cards    map[int]*Card
	observer Observer
	init     Initializer
}

func NewBoard(observer Observer) *Board {
	return &Board{
		cards:    make(map[int]*Card),
		observer: observer,
	}
}

func (b *Board) WithInitializer(fn Initializer) *Board {
	b.init = fn
	return b
}

// Mount builds the card skeleton for desc and renders record into it before
// observers see the card. Mounting an id twice returns the existing card
// untouched.
func (b *Board) Mount(desc domain.DeviceTypeDescriptor, record domain.DeviceRecord) port.CardHandle {
	b.mu.Lock()
	if card, ok := b.cards[desc.Id]; ok {
		b.mu.Unlock()
		return card
	}
	card := buildCard(desc, nil)
	if b.init != nil {
		b.init(card, record)
	}
	card.observer = b.observer
	b.cards[desc.Id] = card
	b.mu.Unlock()

	if b.observer != nil {
		b.observer.CardMounted(card.Snapshot())
	}
	return card
}

func (b *Board) Unmount(id int) {
	b.mu.Lock()
	_, ok := b.cards[id]
	delete(b.cards, id)
	b.mu.Unlock()
	if ok && b.observer != nil {
		b.observer.CardUnmounted(id)
	}
}

func (b *Board) Get(id int) (port.CardHandle, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	card, ok := b.cards[id]
	if !ok {
		return nil, false
	}
	return card, true
}

func (b *Board) Snapshot() []domain.CardSnapshot {
	b.mu.RLock()
	cards := make([]*Card, 0, len(b.cards))
	for _, c := range b.cards {
		cards = append(cards, c)
	}
	b.mu.RUnlock()

	out := make([]domain.CardSnapshot, 0, len(cards))
	for _, c := range cards {
		out = append(out, c.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeviceId < out[j].DeviceId })
	return out
}

func buildCard(desc domain.DeviceTypeDescriptor, observer Observer) *Card {
	spec := domain.SpecFor(desc.Type)
	card := &Card{
		desc:     desc,
		attrs:    map[string]string{domain.ATTR_DEVICE_ID: strconv.Itoa(desc.Id)},
		slots:    make(map[string]*slot),
		observer: observer,
	}
	card.slots[domain.SLOT_ROOT] = &slot{classes: []string{"device-card", desc.CardClass}}
	card.slots[domain.SLOT_NAME] = &slot{text: desc.Name}
	card.slots[domain.SLOT_STATE_VALUE] = &slot{}
	if spec.Adjust != nil && !spec.SpeedAttr {
		card.slots[domain.SLOT_READOUT] = &slot{}
	}

	add := func(action, label string, data map[string]string) {
		card.controls = append(card.controls, &Control{
			card:   card,
			index:  len(card.controls),
			action: action,
			label:  label,
			data:   data,
		})
	}

	if spec.Toggle != domain.TOGGLE_NONE {
		add(domain.ACTION_TOGGLE, "", nil)
	}
	if spec.Adjust != nil {
		add(domain.ACTION_DECREASE, "Decrease", nil)
		add(domain.ACTION_INCREASE, "Increase", nil)
	}
	for _, e := range spec.Effects {
		add(domain.ACTION_SET_EFFECT, title(e), map[string]string{"effect": e})
	}
	for _, m := range spec.AcModes {
		add(domain.ACTION_SET_AC_MODE, title(m), map[string]string{"mode": m})
	}
	if spec.Selector != nil {
		for _, opt := range spec.Selector.Options {
			add(domain.ACTION_SET_MODE, title(opt), map[string]string{spec.Selector.Attr: opt})
		}
	}
	for _, mt := range spec.ModeToggles {
		add(mt.Action, mt.Label, map[string]string{"mode": mt.Mode})
	}
	return card
}

func title(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// EventStreamObserver publishes board changes as dashboard events.
type EventStreamObserver struct {
	Stream *eventstream.EventStream
}

func (o EventStreamObserver) CardMounted(card domain.CardSnapshot) {
	o.Stream.Publish(domain.CardMountedEvent{DashboardEventMixIn: domain.Now(), Card: card})
}

func (o EventStreamObserver) CardUnmounted(id int) {
	o.Stream.Publish(domain.CardUnmountedEvent{DashboardEventMixIn: domain.Now(), DeviceId: id})
}

func (o EventStreamObserver) CardPatched(patch domain.CardPatch) {
	o.Stream.Publish(domain.CardPatchEvent{DashboardEventMixIn: domain.Now(), Patch: patch})
}

// ensure interface compliance
var _ port.CardBoard = (*Board)(nil)
