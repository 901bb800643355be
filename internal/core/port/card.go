package port

import "github.com/berfenger/homedash/internal/core/domain"

// CardHandle is the rendered card of a single device, addressed through named
// slots. Implementations must keep control identity stable across updates.
type CardHandle interface {
	DeviceId() int
	SetText(slot, text string)
	ToggleClass(slot, class string, on bool)
	// SwapClass removes every class of slot starting with prefix and adds class
	// if it is not empty.
	SwapClass(slot, prefix, class string)
	SetAttr(name, value string)
	RemoveAttr(name string)
	Controls(action string) []ControlHandle
	SetBusy(busy bool)
	Snapshot() domain.CardSnapshot
}

type ControlHandle interface {
	Action() string
	Data(name string) string
	SetActive(active bool)
	SetLabel(label string)
}

type CardBoard interface {
	Mount(desc domain.DeviceTypeDescriptor, record domain.DeviceRecord) CardHandle
	Unmount(id int)
	Get(id int) (CardHandle, bool)
	Snapshot() []domain.CardSnapshot
}
