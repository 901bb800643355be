package domain

import "fmt"

type DeviceType string

const (
	DEVICE_TYPE_LIGHT      DeviceType = "light"
	DEVICE_TYPE_FAN        DeviceType = "fan"
	DEVICE_TYPE_SENSOR     DeviceType = "sensor"
	DEVICE_TYPE_AC         DeviceType = "ac"
	DEVICE_TYPE_LOCK       DeviceType = "lock"
	DEVICE_TYPE_BLINDS     DeviceType = "blinds"
	DEVICE_TYPE_PLUG       DeviceType = "plug"
	DEVICE_TYPE_CAMERA     DeviceType = "camera"
	DEVICE_TYPE_SPEAKER    DeviceType = "speaker"
	DEVICE_TYPE_GARAGE     DeviceType = "garage"
	DEVICE_TYPE_THERMOSTAT DeviceType = "thermostat"
	DEVICE_TYPE_VACUUM     DeviceType = "vacuum"
	DEVICE_TYPE_DOORBELL   DeviceType = "doorbell"
	DEVICE_TYPE_SPRINKLER  DeviceType = "sprinkler"
	DEVICE_TYPE_MOTION     DeviceType = "motion"
	DEVICE_TYPE_TV         DeviceType = "tv"
)

const (
	STATE_ON       = "on"
	STATE_OFF      = "off"
	STATE_LOCKED   = "locked"
	STATE_UNLOCKED = "unlocked"
	STATE_OPEN     = "open"
	STATE_CLOSED   = "closed"

	MODE_IDLE      = "idle"
	MODE_RECORDING = "recording"
	MODE_MOTION    = "motion"
)

// DeviceRecord is the server-owned device state as returned by the backend.
type DeviceRecord struct {
	Id               int        `json:"id"`
	Name             string     `json:"name"`
	Type             DeviceType `json:"type"`
	State            string     `json:"state"`
	Value            *float64   `json:"value"`
	DeviceMode       string     `json:"device_mode,omitempty"`
	LightEffect      string     `json:"light_effect,omitempty"`
	AcMode           string     `json:"ac_mode,omitempty"`
	PowerConsumption *float64   `json:"power_consumption,omitempty"`
	BatteryLevel     *float64   `json:"battery_level,omitempty"`
}

func (r DeviceRecord) IsOn() bool {
	return r.State == STATE_ON
}

func (r DeviceRecord) String() string {
	return fmt.Sprintf("device(%d,%s,%s)", r.Id, r.Type, r.State)
}

// DeviceTypeDescriptor is the client-owned static description of a device.
type DeviceTypeDescriptor struct {
	Id        int
	Name      string
	Type      DeviceType
	Icon      string
	CardClass string
}

type DisplayClass string

const (
	DISPLAY_CLASS_ON     DisplayClass = "on"
	DISPLAY_CLASS_OFF    DisplayClass = "off"
	DISPLAY_CLASS_NUMBER DisplayClass = "number"
)

var DisplayClasses = []DisplayClass{DISPLAY_CLASS_ON, DISPLAY_CLASS_OFF, DISPLAY_CLASS_NUMBER}

// ViewState is derived from a record and its descriptor, never stored.
type ViewState struct {
	DisplayText  string       `json:"display_text"`
	DisplayClass DisplayClass `json:"display_class"`
	IsActive     bool         `json:"is_active"`
	CssVariant   string       `json:"css_variant,omitempty"`
	ToggleLabel  string       `json:"toggle_label,omitempty"`
	Readout      string       `json:"readout,omitempty"`
	Speed        *int         `json:"speed,omitempty"`
}

func Float(v float64) *float64 {
	return &v
}
