package domain

import (
	"fmt"
	"sort"
)

type ToggleKind int

const (
	TOGGLE_NONE ToggleKind = iota
	TOGGLE_PLAIN
	TOGGLE_LOCK
	TOGGLE_GARAGE
)

// NumericDisplay renders a numeric field with a unit. A nil field falls back
// to the binary display.
type NumericDisplay struct {
	Field      func(DeviceRecord) *float64
	Unit       string
	Decimals   int // -1 for shortest representation
	OnlyWhenOn bool
}

type DisplayRule struct {
	Numeric *NumericDisplay
	OnText  string
	OffText string
	On      func(DeviceRecord) bool
	Label   func(DeviceRecord) string
}

type AdjustSpec struct {
	Step      float64
	Min       float64
	Max       float64
	Default   float64
	WakeIfOff bool
	Unit      string
	Quantity  string
}

type SelectorSpec struct {
	Attr     string
	Options  []string
	Quantity string
}

// ModeToggle flips device_mode between Mode and idle.
type ModeToggle struct {
	Action string
	Mode   string
	Label  string
}

type TypeSpec struct {
	Type        DeviceType
	Icon        string
	CardClass   string
	Display     DisplayRule
	Active      func(DeviceRecord) bool
	Variant     func(DeviceRecord) string
	VariantTag  string
	Toggle      ToggleKind
	Adjust      *AdjustSpec
	Selector    *SelectorSpec
	Effects     []string
	AcModes     []string
	ModeToggles []ModeToggle
	SpeedAttr   bool
}

var (
	LIGHT_EFFECTS    = []string{"vivid", "natural", "warm", "cool", "dim", "bright"}
	AC_MODES         = []string{"cool", "heat", "fan", "dry", "auto"}
	SPEAKER_SOURCES  = []string{"bluetooth", "wifi", "aux", "radio"}
	THERMOSTAT_MODES = []string{"heat", "cool", "auto", "eco"}
	VACUUM_MODES     = []string{"auto", "spot", "edge", "quiet"}
	SPRINKLER_ZONES  = []string{"zone1", "zone2", "zone3", "zone4"}
	TV_INPUTS        = []string{"hdmi1", "hdmi2", "netflix", "youtube"}
)

func value(r DeviceRecord) *float64 { return r.Value }
func power(r DeviceRecord) *float64 { return r.PowerConsumption }
func battery(r DeviceRecord) *float64 { return r.BatteryLevel }
func locked(r DeviceRecord) bool { return r.State == STATE_LOCKED || r.DeviceMode == STATE_LOCKED }
func open(r DeviceRecord) bool { return r.State == STATE_OPEN || r.DeviceMode == STATE_OPEN }
func doorbellMotion(r DeviceRecord) bool { return r.DeviceMode == MODE_MOTION }
func blindsOpen(r DeviceRecord) bool { return r.State == STATE_ON || r.State == STATE_OPEN }

func withPrefix(prefix, v string) string {
	if v == "" {
		return ""
	}
	return prefix + v
}

var typeSpecs = map[DeviceType]TypeSpec{
	DEVICE_TYPE_LIGHT: {
		Icon:       "bi-lightbulb",
		CardClass:  "light-card",
		Toggle:     TOGGLE_PLAIN,
		Effects:    LIGHT_EFFECTS,
		Variant:    func(r DeviceRecord) string { return withPrefix("effect-", r.LightEffect) },
		VariantTag: "effect-",
	},
	DEVICE_TYPE_FAN: {
		Icon:      "bi-fan",
		CardClass: "fan-card",
		Display:   DisplayRule{Numeric: &NumericDisplay{Field: value, Unit: "%", Decimals: -1}},
		Toggle:    TOGGLE_PLAIN,
		Adjust:    &AdjustSpec{Step: 10, Min: 0, Max: 100, Default: 0, WakeIfOff: true, Unit: "%", Quantity: "speed"},
		SpeedAttr: true,
	},
	DEVICE_TYPE_SENSOR: {
		Icon:      "bi-thermometer-half",
		CardClass: "sensor-card",
		Display:   DisplayRule{Numeric: &NumericDisplay{Field: value, Unit: "°C", Decimals: -1}},
	},
	DEVICE_TYPE_AC: {
		Icon:       "bi-snow",
		CardClass:  "ac-card",
		Display:    DisplayRule{Numeric: &NumericDisplay{Field: value, Unit: "°C", Decimals: -1}},
		Toggle:     TOGGLE_PLAIN,
		Adjust:     &AdjustSpec{Step: 1, Min: 16, Max: 30, Default: 24, WakeIfOff: true, Unit: "°C", Quantity: "temperature"},
		AcModes:    AC_MODES,
		Variant:    func(r DeviceRecord) string { return withPrefix("mode-", r.AcMode) },
		VariantTag: "mode-",
	},
	DEVICE_TYPE_LOCK: {
		Icon:      "bi-lock",
		CardClass: "lock-card",
		Display:   DisplayRule{OnText: "LOCKED", OffText: "UNLOCKED", On: locked},
		Active:    locked,
		Toggle:    TOGGLE_LOCK,
	},
	DEVICE_TYPE_BLINDS: {
		Icon:      "bi-window",
		CardClass: "blinds-card",
		Display:   DisplayRule{Numeric: &NumericDisplay{Field: value, Unit: "%", Decimals: -1}, OnText: "OPEN", OffText: "CLOSED", On: blindsOpen},
		Toggle:    TOGGLE_PLAIN,
		Adjust:    &AdjustSpec{Step: 10, Min: 0, Max: 100, Default: 0, Unit: "%", Quantity: "position"},
	},
	DEVICE_TYPE_PLUG: {
		Icon:      "bi-plug",
		CardClass: "plug-card",
		Display:   DisplayRule{Numeric: &NumericDisplay{Field: power, Unit: "W", Decimals: 1}},
		Toggle:    TOGGLE_PLAIN,
	},
	DEVICE_TYPE_CAMERA: {
		Icon:      "bi-camera-video",
		CardClass: "camera-card",
		Display: DisplayRule{Label: func(r DeviceRecord) string {
			switch {
			case !r.IsOn():
				return "OFF"
			case r.DeviceMode == MODE_RECORDING:
				return "RECORDING"
			default:
				return "ON"
			}
		}},
		Toggle: TOGGLE_PLAIN,
		ModeToggles: []ModeToggle{
			{Action: ACTION_TOGGLE_RECORDING, Mode: MODE_RECORDING, Label: "Record"},
			{Action: ACTION_TOGGLE_MOTION, Mode: MODE_MOTION, Label: "Motion"},
		},
	},
	DEVICE_TYPE_SPEAKER: {
		Icon:      "bi-speaker",
		CardClass: "speaker-card",
		Display:   DisplayRule{Numeric: &NumericDisplay{Field: value, Unit: "%", Decimals: -1, OnlyWhenOn: true}},
		Toggle:    TOGGLE_PLAIN,
		Adjust:    &AdjustSpec{Step: 5, Min: 0, Max: 100, Default: 50, WakeIfOff: true, Unit: "%", Quantity: "volume"},
		Selector:  &SelectorSpec{Attr: "source", Options: SPEAKER_SOURCES, Quantity: "source"},
	},
	DEVICE_TYPE_GARAGE: {
		Icon:      "bi-door-closed",
		CardClass: "garage-card",
		Display:   DisplayRule{OnText: "OPEN", OffText: "CLOSED", On: open},
		Active:    open,
		Toggle:    TOGGLE_GARAGE,
	},
	DEVICE_TYPE_THERMOSTAT: {
		Icon:      "bi-thermometer-sun",
		CardClass: "thermostat-card",
		Display:   DisplayRule{Numeric: &NumericDisplay{Field: value, Unit: "°C", Decimals: -1}},
		Toggle:    TOGGLE_PLAIN,
		Adjust:    &AdjustSpec{Step: 1, Min: 16, Max: 30, Default: 22, WakeIfOff: true, Unit: "°C", Quantity: "temperature"},
		Selector:  &SelectorSpec{Attr: "mode", Options: THERMOSTAT_MODES, Quantity: "mode"},
	},
	DEVICE_TYPE_VACUUM: {
		Icon:      "bi-robot",
		CardClass: "vacuum-card",
		Display:   DisplayRule{Numeric: &NumericDisplay{Field: battery, Unit: "%", Decimals: -1}},
		Toggle:    TOGGLE_PLAIN,
		Selector:  &SelectorSpec{Attr: "mode", Options: VACUUM_MODES, Quantity: "mode"},
	},
	DEVICE_TYPE_DOORBELL: {
		Icon:      "bi-bell",
		CardClass: "doorbell-card",
		Display:   DisplayRule{OnText: "MOTION", OffText: "IDLE", On: doorbellMotion},
		Active:    doorbellMotion,
		ModeToggles: []ModeToggle{
			{Action: ACTION_TOGGLE_MOTION, Mode: MODE_MOTION, Label: "Motion"},
		},
	},
	DEVICE_TYPE_SPRINKLER: {
		Icon:      "bi-droplet",
		CardClass: "sprinkler-card",
		Toggle:    TOGGLE_PLAIN,
		Selector:  &SelectorSpec{Attr: "zone", Options: SPRINKLER_ZONES, Quantity: "zone"},
	},
	DEVICE_TYPE_MOTION: {
		Icon:      "bi-activity",
		CardClass: "motion-card",
		Display:   DisplayRule{OnText: "DETECTED", OffText: "NO MOTION"},
	},
	DEVICE_TYPE_TV: {
		Icon:      "bi-tv",
		CardClass: "tv-card",
		Display:   DisplayRule{Numeric: &NumericDisplay{Field: value, Unit: "%", Decimals: -1, OnlyWhenOn: true}},
		Toggle:    TOGGLE_PLAIN,
		Adjust:    &AdjustSpec{Step: 5, Min: 0, Max: 100, Default: 20, WakeIfOff: true, Unit: "%", Quantity: "volume"},
		Selector:  &SelectorSpec{Attr: "input", Options: TV_INPUTS, Quantity: "input"},
	},
}

// genericSpec is used for types missing from the table.
var genericSpec = TypeSpec{
	Icon:      "bi-question-circle",
	CardClass: "generic-card",
	Toggle:    TOGGLE_PLAIN,
}

func SpecFor(t DeviceType) TypeSpec {
	spec, ok := typeSpecs[t]
	if !ok {
		spec = genericSpec
	}
	spec.Type = t
	return spec
}

func KnownType(t DeviceType) bool {
	_, ok := typeSpecs[t]
	return ok
}

type registryEntry struct {
	name string
	typ  DeviceType
}

// Registry maps device ids to their static descriptor. It is immutable once built.
type Registry struct {
	entries map[int]registryEntry
}

var defaultSeed = map[int]registryEntry{
	1:  {"Light", DEVICE_TYPE_LIGHT},
	2:  {"Fan", DEVICE_TYPE_FAN},
	3:  {"Temperature", DEVICE_TYPE_SENSOR},
	4:  {"Air Conditioner", DEVICE_TYPE_AC},
	5:  {"Smart Lock", DEVICE_TYPE_LOCK},
	6:  {"Blinds", DEVICE_TYPE_BLINDS},
	7:  {"Smart Plug", DEVICE_TYPE_PLUG},
	8:  {"Camera", DEVICE_TYPE_CAMERA},
	9:  {"Speaker", DEVICE_TYPE_SPEAKER},
	10: {"Garage Door", DEVICE_TYPE_GARAGE},
	11: {"Thermostat", DEVICE_TYPE_THERMOSTAT},
	12: {"Robot Vacuum", DEVICE_TYPE_VACUUM},
	13: {"Doorbell", DEVICE_TYPE_DOORBELL},
	14: {"Sprinkler", DEVICE_TYPE_SPRINKLER},
	15: {"Motion Sensor", DEVICE_TYPE_MOTION},
	16: {"TV", DEVICE_TYPE_TV},
}

type RegistrySeed struct {
	Id   int
	Name string
	Type DeviceType
}

func DefaultRegistry() *Registry {
	entries := make(map[int]registryEntry, len(defaultSeed))
	for id, e := range defaultSeed {
		entries[id] = e
	}
	return &Registry{entries: entries}
}

func NewRegistry(seed []RegistrySeed) (*Registry, error) {
	entries := make(map[int]registryEntry, len(seed))
	for _, s := range seed {
		if s.Id <= 0 {
			return nil, fmt.Errorf("invalid device id %d", s.Id)
		}
		if !KnownType(s.Type) {
			return nil, fmt.Errorf("device %d: unknown type %q", s.Id, s.Type)
		}
		if _, dup := entries[s.Id]; dup {
			return nil, fmt.Errorf("device %d: duplicated id", s.Id)
		}
		entries[s.Id] = registryEntry{name: s.Name, typ: s.Type}
	}
	return &Registry{entries: entries}, nil
}

func (r *Registry) Lookup(id int) (DeviceTypeDescriptor, bool) {
	e, ok := r.entries[id]
	if !ok {
		return DeviceTypeDescriptor{}, false
	}
	spec := SpecFor(e.typ)
	return DeviceTypeDescriptor{
		Id:        id,
		Name:      e.name,
		Type:      e.typ,
		Icon:      spec.Icon,
		CardClass: spec.CardClass,
	}, true
}

func (r *Registry) Ids() []int {
	ids := make([]int, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
