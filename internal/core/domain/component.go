package domain

import (
	"fmt"
	"strings"

	"github.com/carlmjohnson/versioninfo"
)

const (
	SENSOR_ID_BRIDGE_STATE = "bridge_state"
	SENSOR_TYPE_SENSOR     = "sensor"
	SENSOR_TYPE_BINARY     = "binary_sensor"
)

type Device struct {
	Id           string
	Name         string
	Version      string
	Model        string
	Manufacturer string
	ViaDevice    string
}

type GenericSensor struct {
	Device            Device
	Id                string
	DeviceId          int
	SensorType        string
	Name              string
	UniqueId          string
	UnitOfMeasurement string
	StateClass        string // measurement, total_increasing
	DeviceClass       string // temperature, power, battery
	ValueTemplate     string
	EntityCategory    string // diagnostic, config, nil
	EnabledByDefault  *bool
	Icon              string
}

// GenericButton publishes a fixed card action when pressed.
type GenericButton struct {
	Device   Device
	Id       string
	DeviceId int
	Action   string
	Name     string
	UniqueId string
	Icon     string
}

func BridgeDevice(baseTopic string) Device {
	return Device{
		Id:           baseTopic,
		Name:         "homedash",
		Version:      versioninfo.Short(),
		Model:        "homedash bridge",
		Manufacturer: "homedash",
	}
}

func BridgeSensors(bridge Device) []GenericSensor {
	return []GenericSensor{
		{
			Device:         bridge,
			Id:             SENSOR_ID_BRIDGE_STATE,
			SensorType:     SENSOR_TYPE_BINARY,
			Name:           "Bridge state",
			UniqueId:       fmt.Sprintf("%s_%s", bridge.Id, SENSOR_ID_BRIDGE_STATE),
			DeviceClass:    "connectivity",
			EntityCategory: "diagnostic",
		},
	}
}

func CardDevice(bridge Device, desc DeviceTypeDescriptor) Device {
	return Device{
		Id:           fmt.Sprintf("%s_device_%d", bridge.Id, desc.Id),
		Name:         desc.Name,
		Model:        string(desc.Type),
		Manufacturer: bridge.Manufacturer,
		ViaDevice:    bridge.Id,
	}
}

// CardSensors describes the entities exposed for a mounted card: the display
// text and, for numeric types, the raw value.
func CardSensors(dev Device, desc DeviceTypeDescriptor) []GenericSensor {
	sensors := []GenericSensor{
		{
			Device:        dev,
			Id:            fmt.Sprintf("device_%d_display", desc.Id),
			DeviceId:      desc.Id,
			SensorType:    SENSOR_TYPE_SENSOR,
			Name:          "State",
			UniqueId:      fmt.Sprintf("%s_display", dev.Id),
			ValueTemplate: "{{ value_json.display_text }}",
			Icon:          mdiIcon(desc.Icon),
		},
	}
	spec := SpecFor(desc.Type)
	if spec.Display.Numeric != nil {
		sensors = append(sensors, GenericSensor{
			Device:            dev,
			Id:                fmt.Sprintf("device_%d_value", desc.Id),
			DeviceId:          desc.Id,
			SensorType:        SENSOR_TYPE_SENSOR,
			Name:              "Value",
			UniqueId:          fmt.Sprintf("%s_value", dev.Id),
			UnitOfMeasurement: spec.Display.Numeric.Unit,
			StateClass:        "measurement",
			DeviceClass:       numericDeviceClass(spec.Display.Numeric.Unit),
			ValueTemplate:     "{{ value_json.value }}",
		})
	}
	return sensors
}

func CardButtons(dev Device, desc DeviceTypeDescriptor) []GenericButton {
	spec := SpecFor(desc.Type)
	var buttons []GenericButton
	if spec.Toggle != TOGGLE_NONE {
		buttons = append(buttons, cardButton(dev, desc, ACTION_TOGGLE, "Toggle"))
	}
	if spec.Adjust != nil {
		buttons = append(buttons,
			cardButton(dev, desc, ACTION_INCREASE, "Increase "+spec.Adjust.Quantity),
			cardButton(dev, desc, ACTION_DECREASE, "Decrease "+spec.Adjust.Quantity))
	}
	for _, mt := range spec.ModeToggles {
		buttons = append(buttons, cardButton(dev, desc, mt.Action, mt.Label))
	}
	return buttons
}

func cardButton(dev Device, desc DeviceTypeDescriptor, action, name string) GenericButton {
	id := strings.ReplaceAll(action, "-", "_")
	return GenericButton{
		Device:   dev,
		Id:       fmt.Sprintf("device_%d_%s", desc.Id, id),
		DeviceId: desc.Id,
		Action:   action,
		Name:     name,
		UniqueId: fmt.Sprintf("%s_%s", dev.Id, id),
	}
}

func numericDeviceClass(unit string) string {
	switch unit {
	case "°C":
		return "temperature"
	case "W":
		return "power"
	}
	return ""
}

func mdiIcon(icon string) string {
	if icon == "" {
		return ""
	}
	return "mdi:" + strings.TrimPrefix(icon, "bi-")
}
