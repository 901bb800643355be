package render

import (
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/berfenger/homedash/internal/core/domain"
	"github.com/berfenger/homedash/internal/core/port"
)

type slot struct {
	text    string
	classes []string
}

// Card is a mounted device card. All mutations emit a patch only when they
// change something.
type Card struct {
	mu       sync.RWMutex
	desc     domain.DeviceTypeDescriptor
	attrs    map[string]string
	slots    map[string]*slot
	controls []*Control
	busy     bool
	revision uint64
	observer Observer
}

type Control struct {
	card     *Card
	index    int
	action   string
	label    string
	data     map[string]string
	active   bool
	disabled bool
}

func (c *Card) DeviceId() int {
	return c.desc.Id
}

func (c *Card) slot(name string) *slot {
	s, ok := c.slots[name]
	if !ok {
		s = &slot{}
		c.slots[name] = s
	}
	return s
}

func (c *Card) mutate(fn func() []domain.CardPatch) {
	c.mu.Lock()
	patches := fn()
	if len(patches) > 0 {
		c.revision++
	}
	c.mu.Unlock()
	if c.observer == nil {
		return
	}
	for _, p := range patches {
		p.DeviceId = c.desc.Id
		c.observer.CardPatched(p)
	}
}

func (c *Card) SetText(name, text string) {
	c.mutate(func() []domain.CardPatch {
		s := c.slot(name)
		if s.text == text {
			return nil
		}
		s.text = text
		return []domain.CardPatch{{Op: domain.PATCH_TEXT, Slot: name, Value: text}}
	})
}

func (c *Card) ToggleClass(name, class string, on bool) {
	c.mutate(func() []domain.CardPatch {
		s := c.slot(name)
		has := slices.Contains(s.classes, class)
		switch {
		case on && !has:
			s.classes = append(s.classes, class)
			return []domain.CardPatch{{Op: domain.PATCH_CLASS_ADD, Slot: name, Name: class}}
		case !on && has:
			s.classes = slices.DeleteFunc(s.classes, func(cl string) bool { return cl == class })
			return []domain.CardPatch{{Op: domain.PATCH_CLASS_DEL, Slot: name, Name: class}}
		}
		return nil
	})
}

func (c *Card) SwapClass(name, prefix, class string) {
	c.mutate(func() []domain.CardPatch {
		s := c.slot(name)
		var patches []domain.CardPatch
		kept := s.classes[:0]
		found := false
		for _, cl := range s.classes {
			if strings.HasPrefix(cl, prefix) && cl != class {
				patches = append(patches, domain.CardPatch{Op: domain.PATCH_CLASS_DEL, Slot: name, Name: cl})
				continue
			}
			if cl == class {
				found = true
			}
			kept = append(kept, cl)
		}
		s.classes = kept
		if class != "" && !found {
			s.classes = append(s.classes, class)
			patches = append(patches, domain.CardPatch{Op: domain.PATCH_CLASS_ADD, Slot: name, Name: class})
		}
		return patches
	})
}

func (c *Card) SetAttr(name, value string) {
	c.mutate(func() []domain.CardPatch {
		if old, ok := c.attrs[name]; ok && old == value {
			return nil
		}
		c.attrs[name] = value
		return []domain.CardPatch{{Op: domain.PATCH_ATTR_SET, Name: name, Value: value}}
	})
}

func (c *Card) RemoveAttr(name string) {
	c.mutate(func() []domain.CardPatch {
		if _, ok := c.attrs[name]; !ok {
			return nil
		}
		delete(c.attrs, name)
		return []domain.CardPatch{{Op: domain.PATCH_ATTR_DEL, Name: name}}
	})
}

func (c *Card) Controls(action string) []port.ControlHandle {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []port.ControlHandle
	for _, ctl := range c.controls {
		if ctl.action == action {
			out = append(out, ctl)
		}
	}
	return out
}

// SetBusy disables every control while a command is in flight.
func (c *Card) SetBusy(busy bool) {
	c.mutate(func() []domain.CardPatch {
		if c.busy == busy {
			return nil
		}
		c.busy = busy
		root := c.slot(domain.SLOT_ROOT)
		if busy {
			root.classes = append(root.classes, domain.CLASS_BUSY)
		} else {
			root.classes = slices.DeleteFunc(root.classes, func(cl string) bool { return cl == domain.CLASS_BUSY })
		}
		for _, ctl := range c.controls {
			ctl.disabled = busy
		}
		return []domain.CardPatch{{Op: domain.PATCH_BUSY, Value: busy}}
	})
}

func (c *Card) Busy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.busy
}

func (c *Card) Snapshot() domain.CardSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snap := domain.CardSnapshot{
		DeviceId: c.desc.Id,
		Name:     c.desc.Name,
		Type:     c.desc.Type,
		Icon:     c.desc.Icon,
		Attrs:    maps.Clone(c.attrs),
		Slots:    make(map[string]domain.SlotSnapshot, len(c.slots)),
		Controls: make([]domain.ControlSnapshot, 0, len(c.controls)),
		Busy:     c.busy,
		Revision: c.revision,
	}
	for name, s := range c.slots {
		snap.Slots[name] = domain.SlotSnapshot{Text: s.text, Classes: slices.Clone(s.classes)}
	}
	for _, ctl := range c.controls {
		snap.Controls = append(snap.Controls, domain.ControlSnapshot{
			Action:   ctl.action,
			Label:    ctl.label,
			Data:     maps.Clone(ctl.data),
			Active:   ctl.active,
			Disabled: ctl.disabled,
		})
	}
	return snap
}

func (ctl *Control) Action() string {
	return ctl.action
}

func (ctl *Control) Data(name string) string {
	ctl.card.mu.RLock()
	defer ctl.card.mu.RUnlock()
	return ctl.data[name]
}

func (ctl *Control) SetActive(active bool) {
	ctl.card.mutate(func() []domain.CardPatch {
		if ctl.active == active {
			return nil
		}
		ctl.active = active
		return []domain.CardPatch{{Op: domain.PATCH_CTL_ACTIVE, Control: ctl.index, Value: active}}
	})
}

func (ctl *Control) SetLabel(label string) {
	ctl.card.mutate(func() []domain.CardPatch {
		if ctl.label == label {
			return nil
		}
		ctl.label = label
		return []domain.CardPatch{{Op: domain.PATCH_CTL_LABEL, Control: ctl.index, Value: label}}
	})
}

// ensure interface compliance
var _ port.CardHandle = (*Card)(nil)
var _ port.ControlHandle = (*Control)(nil)
