package service

import (
	"testing"

	"github.com/berfenger/homedash/internal/core/domain"

	"github.com/stretchr/testify/assert"
)

func desc(id int, t domain.DeviceType) domain.DeviceTypeDescriptor {
	return domain.DeviceTypeDescriptor{Id: id, Name: string(t), Type: t}
}

func TestProjectDisplay(t *testing.T) {

	cases := []struct {
		name   string
		typ    domain.DeviceType
		record domain.DeviceRecord
		text   string
		class  domain.DisplayClass
		active bool
	}{
		{"light on", domain.DEVICE_TYPE_LIGHT, domain.DeviceRecord{State: "on"}, "ON", domain.DISPLAY_CLASS_ON, true},
		{"light off", domain.DEVICE_TYPE_LIGHT, domain.DeviceRecord{State: "off"}, "OFF", domain.DISPLAY_CLASS_OFF, false},
		{"fan with value", domain.DEVICE_TYPE_FAN, domain.DeviceRecord{State: "on", Value: domain.Float(40)}, "40%", domain.DISPLAY_CLASS_NUMBER, true},
		{"fan null value", domain.DEVICE_TYPE_FAN, domain.DeviceRecord{State: "off"}, "OFF", domain.DISPLAY_CLASS_OFF, false},
		{"sensor", domain.DEVICE_TYPE_SENSOR, domain.DeviceRecord{State: "on", Value: domain.Float(26)}, "26°C", domain.DISPLAY_CLASS_NUMBER, true},
		{"sensor decimal", domain.DEVICE_TYPE_SENSOR, domain.DeviceRecord{State: "on", Value: domain.Float(21.5)}, "21.5°C", domain.DISPLAY_CLASS_NUMBER, true},
		{"ac", domain.DEVICE_TYPE_AC, domain.DeviceRecord{State: "on", Value: domain.Float(24)}, "24°C", domain.DISPLAY_CLASS_NUMBER, true},
		{"lock by state", domain.DEVICE_TYPE_LOCK, domain.DeviceRecord{State: "locked"}, "LOCKED", domain.DISPLAY_CLASS_ON, true},
		{"lock by mode", domain.DEVICE_TYPE_LOCK, domain.DeviceRecord{State: "on", DeviceMode: "locked"}, "LOCKED", domain.DISPLAY_CLASS_ON, true},
		{"lock unlocked", domain.DEVICE_TYPE_LOCK, domain.DeviceRecord{State: "on", DeviceMode: "unlocked"}, "UNLOCKED", domain.DISPLAY_CLASS_OFF, false},
		{"blinds value", domain.DEVICE_TYPE_BLINDS, domain.DeviceRecord{State: "on", Value: domain.Float(70)}, "70%", domain.DISPLAY_CLASS_NUMBER, true},
		{"blinds closed", domain.DEVICE_TYPE_BLINDS, domain.DeviceRecord{State: "off"}, "CLOSED", domain.DISPLAY_CLASS_OFF, false},
		{"plug power", domain.DEVICE_TYPE_PLUG, domain.DeviceRecord{State: "on", PowerConsumption: domain.Float(12)}, "12.0W", domain.DISPLAY_CLASS_NUMBER, true},
		{"camera recording", domain.DEVICE_TYPE_CAMERA, domain.DeviceRecord{State: "on", DeviceMode: "recording"}, "RECORDING", domain.DISPLAY_CLASS_ON, true},
		{"camera on", domain.DEVICE_TYPE_CAMERA, domain.DeviceRecord{State: "on", DeviceMode: "motion"}, "ON", domain.DISPLAY_CLASS_ON, true},
		{"camera off", domain.DEVICE_TYPE_CAMERA, domain.DeviceRecord{State: "off", DeviceMode: "recording"}, "OFF", domain.DISPLAY_CLASS_OFF, false},
		{"speaker on", domain.DEVICE_TYPE_SPEAKER, domain.DeviceRecord{State: "on", Value: domain.Float(35)}, "35%", domain.DISPLAY_CLASS_NUMBER, true},
		{"speaker off", domain.DEVICE_TYPE_SPEAKER, domain.DeviceRecord{State: "off", Value: domain.Float(35)}, "OFF", domain.DISPLAY_CLASS_OFF, false},
		{"garage open", domain.DEVICE_TYPE_GARAGE, domain.DeviceRecord{State: "on", DeviceMode: "open"}, "OPEN", domain.DISPLAY_CLASS_ON, true},
		{"garage closed", domain.DEVICE_TYPE_GARAGE, domain.DeviceRecord{State: "closed"}, "CLOSED", domain.DISPLAY_CLASS_OFF, false},
		{"thermostat", domain.DEVICE_TYPE_THERMOSTAT, domain.DeviceRecord{State: "off", Value: domain.Float(22)}, "22°C", domain.DISPLAY_CLASS_NUMBER, false},
		{"vacuum battery", domain.DEVICE_TYPE_VACUUM, domain.DeviceRecord{State: "on", BatteryLevel: domain.Float(80)}, "80%", domain.DISPLAY_CLASS_NUMBER, true},
		{"doorbell motion", domain.DEVICE_TYPE_DOORBELL, domain.DeviceRecord{State: "on", DeviceMode: "motion"}, "MOTION", domain.DISPLAY_CLASS_ON, true},
		{"doorbell idle", domain.DEVICE_TYPE_DOORBELL, domain.DeviceRecord{State: "on", DeviceMode: "idle"}, "IDLE", domain.DISPLAY_CLASS_OFF, false},
		{"motion detected", domain.DEVICE_TYPE_MOTION, domain.DeviceRecord{State: "on"}, "DETECTED", domain.DISPLAY_CLASS_ON, true},
		{"motion none", domain.DEVICE_TYPE_MOTION, domain.DeviceRecord{State: "off"}, "NO MOTION", domain.DISPLAY_CLASS_OFF, false},
		{"tv on", domain.DEVICE_TYPE_TV, domain.DeviceRecord{State: "on", Value: domain.Float(20)}, "20%", domain.DISPLAY_CLASS_NUMBER, true},
		{"sprinkler", domain.DEVICE_TYPE_SPRINKLER, domain.DeviceRecord{State: "on", DeviceMode: "zone2"}, "ON", domain.DISPLAY_CLASS_ON, true},
		{"unknown type", domain.DeviceType("toaster"), domain.DeviceRecord{State: "on", Value: domain.Float(3)}, "ON", domain.DISPLAY_CLASS_ON, true},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			view := Project(c.record, desc(1, c.typ))
			assert.Equal(t, c.text, view.DisplayText)
			assert.Equal(t, c.class, view.DisplayClass)
			assert.Equal(t, c.active, view.IsActive)
		})
	}
}

func TestProjectIsDeterministic(t *testing.T) {

	record := domain.DeviceRecord{Id: 4, State: "on", Value: domain.Float(19), AcMode: "dry"}
	first := Project(record, desc(4, domain.DEVICE_TYPE_AC))
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Project(record, desc(4, domain.DEVICE_TYPE_AC)))
	}
}

func TestProjectVariants(t *testing.T) {

	assert := assert.New(t)

	light := Project(domain.DeviceRecord{State: "on", LightEffect: "warm"}, desc(1, domain.DEVICE_TYPE_LIGHT))
	assert.Equal("effect-warm", light.CssVariant)

	ac := Project(domain.DeviceRecord{State: "on", AcMode: "heat"}, desc(4, domain.DEVICE_TYPE_AC))
	assert.Equal("mode-heat", ac.CssVariant)

	plain := Project(domain.DeviceRecord{State: "on"}, desc(1, domain.DEVICE_TYPE_LIGHT))
	assert.Empty(plain.CssVariant)
}

func TestProjectToggleLabelsAndReadouts(t *testing.T) {

	assert := assert.New(t)

	assert.Equal("Turn Off", Project(domain.DeviceRecord{State: "on"}, desc(1, domain.DEVICE_TYPE_LIGHT)).ToggleLabel)
	assert.Equal("Turn On", Project(domain.DeviceRecord{State: "off"}, desc(1, domain.DEVICE_TYPE_LIGHT)).ToggleLabel)
	assert.Equal("Unlock", Project(domain.DeviceRecord{State: "locked"}, desc(5, domain.DEVICE_TYPE_LOCK)).ToggleLabel)
	assert.Equal("Lock", Project(domain.DeviceRecord{State: "unlocked"}, desc(5, domain.DEVICE_TYPE_LOCK)).ToggleLabel)
	assert.Equal("Close", Project(domain.DeviceRecord{State: "open"}, desc(10, domain.DEVICE_TYPE_GARAGE)).ToggleLabel)
	assert.Equal("Open", Project(domain.DeviceRecord{State: "closed"}, desc(10, domain.DEVICE_TYPE_GARAGE)).ToggleLabel)
	assert.Empty(Project(domain.DeviceRecord{State: "on"}, desc(3, domain.DEVICE_TYPE_SENSOR)).ToggleLabel)

	assert.Equal("24°C", Project(domain.DeviceRecord{State: "off"}, desc(4, domain.DEVICE_TYPE_AC)).Readout)
	assert.Equal("22°C", Project(domain.DeviceRecord{State: "on"}, desc(11, domain.DEVICE_TYPE_THERMOSTAT)).Readout)
	assert.Equal("45%", Project(domain.DeviceRecord{State: "on", Value: domain.Float(45)}, desc(9, domain.DEVICE_TYPE_SPEAKER)).Readout)
}

func TestProjectFanSpeed(t *testing.T) {

	assert := assert.New(t)

	view := Project(domain.DeviceRecord{State: "on", Value: domain.Float(34)}, desc(2, domain.DEVICE_TYPE_FAN))
	if assert.NotNil(view.Speed) {
		assert.Equal(30, *view.Speed)
	}
	view = Project(domain.DeviceRecord{State: "on", Value: domain.Float(35)}, desc(2, domain.DEVICE_TYPE_FAN))
	if assert.NotNil(view.Speed) {
		assert.Equal(40, *view.Speed)
	}
	view = Project(domain.DeviceRecord{State: "off"}, desc(2, domain.DEVICE_TYPE_FAN))
	assert.Nil(view.Speed)
}

func TestClamp(t *testing.T) {

	assert := assert.New(t)

	assert.Equal(100.0, Clamp(110, 0, 100))
	assert.Equal(0.0, Clamp(-10, 0, 100))
	assert.Equal(16.0, Clamp(15, 16, 30))
	assert.Equal(25.0, Clamp(25, 16, 30))

	// idempotent
	for _, v := range []float64{-50, 0, 15, 16, 23, 30, 31, 200} {
		once := Clamp(v, 16, 30)
		assert.Equal(once, Clamp(once, 16, 30))
	}
}
