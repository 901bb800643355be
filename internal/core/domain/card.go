package domain

const (
	SLOT_ROOT        = "root"
	SLOT_STATE_VALUE = "state-value"
	SLOT_READOUT     = "readout"
	SLOT_NAME        = "name"

	ATTR_DEVICE_ID = "device-id"
	ATTR_SPEED     = "speed"
	ATTR_ACTION    = "action"

	CLASS_ACTIVE = "active"
	CLASS_BUSY   = "updating"
)

type SlotSnapshot struct {
	Text    string   `json:"text"`
	Classes []string `json:"classes"`
}

type ControlSnapshot struct {
	Action   string            `json:"action"`
	Label    string            `json:"label"`
	Data     map[string]string `json:"data,omitempty"`
	Active   bool              `json:"active"`
	Disabled bool              `json:"disabled"`
}

// CardSnapshot is a point-in-time copy of a mounted card.
type CardSnapshot struct {
	DeviceId int                     `json:"device_id"`
	Name     string                  `json:"name"`
	Type     DeviceType              `json:"type"`
	Icon     string                  `json:"icon"`
	Attrs    map[string]string       `json:"attrs"`
	Slots    map[string]SlotSnapshot `json:"slots"`
	Controls []ControlSnapshot       `json:"controls"`
	Busy     bool                    `json:"busy"`
	Revision uint64                  `json:"revision"`
}

func (c CardSnapshot) Text(slot string) string {
	return c.Slots[slot].Text
}

func (c CardSnapshot) HasClass(slot, class string) bool {
	for _, cl := range c.Slots[slot].Classes {
		if cl == class {
			return true
		}
	}
	return false
}

func (c CardSnapshot) ControlsFor(action string) []ControlSnapshot {
	var out []ControlSnapshot
	for _, ctl := range c.Controls {
		if ctl.Action == action {
			out = append(out, ctl)
		}
	}
	return out
}

type PatchOp string

const (
	PATCH_TEXT        PatchOp = "text"
	PATCH_CLASS_ADD   PatchOp = "class_add"
	PATCH_CLASS_DEL   PatchOp = "class_remove"
	PATCH_ATTR_SET    PatchOp = "attr_set"
	PATCH_ATTR_DEL    PatchOp = "attr_remove"
	PATCH_CTL_ACTIVE  PatchOp = "control_active"
	PATCH_CTL_LABEL   PatchOp = "control_label"
	PATCH_CTL_DISABLE PatchOp = "control_disabled"
	PATCH_BUSY        PatchOp = "busy"
)

// CardPatch is a single in-place change applied to a mounted card.
type CardPatch struct {
	DeviceId int     `json:"device_id"`
	Op       PatchOp `json:"op"`
	Slot     string  `json:"slot,omitempty"`
	Control  int     `json:"control,omitempty"`
	Name     string  `json:"name,omitempty"`
	Value    any     `json:"value,omitempty"`
}
