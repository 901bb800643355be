package mqtt

import (
	"testing"

	"github.com/berfenger/homedash/internal/core/domain"
	"github.com/berfenger/homedash/internal/util"

	"github.com/stretchr/testify/assert"
)

func TestDeviceCommandParse(t *testing.T) {

	assert := assert.New(t)

	r := deviceCommandExtractor("loremTopic")
	cmd, err := parseDeviceCommand(r, "loremTopic/device/12/set/set-mode", "spot")

	assert.NoError(err)
	assert.Equal(12, cmd.DeviceId, "device extract")
	assert.Equal("set-mode", cmd.Action, "action extract")
	assert.Equal("spot", cmd.Payload)
}

func TestDeviceCommandParsePress(t *testing.T) {

	assert := assert.New(t)

	r := deviceCommandExtractor("loremTopic")
	cmd, err := parseDeviceCommand(r, "loremTopic/device/2/set/increase", MQTT_PAYLOAD_PRESS)

	assert.NoError(err)
	assert.Equal("increase", cmd.Action)
	assert.Empty(cmd.Payload, "press payload is dropped")
}

func TestDeviceCommandParseFail(t *testing.T) {

	assert := assert.New(t)

	r := deviceCommandExtractor("loremTopic")
	for _, topic := range []string{
		"loremTopic/device/12/state",
		"loremTopic/device/abc/set/toggle",
		"otherTopic/device/12/set/toggle",
		"loremTopic/device/12/set/Toggle",
		"prefix/loremTopic/device/12/set/toggle",
	} {
		_, err := parseDeviceCommand(r, topic, "")
		assert.Error(err, topic)
	}
}

func TestTopics(t *testing.T) {

	assert := assert.New(t)

	cfg := util.LoadTestConfig()
	client := CreateMQTTClient(&cfg, OptsFromConfig(&cfg), nil, nil)

	assert.Equal("homedash/bridge/state", client.BridgeStateTopic())
	assert.Equal("homedash/device/5/state", client.DeviceStateTopic(5))
	assert.Equal("homedash/device/5/set/toggle", client.DeviceCommandTopic(5, domain.ACTION_TOGGLE))
	assert.Equal("homedash/notification", client.NotificationTopic())
}

func TestDiscoveryMessages(t *testing.T) {

	assert := assert.New(t)

	cfg := util.LoadTestConfig()
	cfg.MQTT.HADiscoveryTopic = "homeassistant"
	client := CreateMQTTClient(&cfg, OptsFromConfig(&cfg), nil, nil)

	reg := domain.DefaultRegistry()
	desc, _ := reg.Lookup(2)
	bridge := domain.BridgeDevice(cfg.MQTT.BaseTopic)
	dev := domain.CardDevice(bridge, desc)

	sensors := domain.CardSensors(dev, desc)
	assert.Len(sensors, 2, "display and value sensors")
	msg := GenericSensorToHADiscoveryMessage(client, sensors[0])
	assert.Equal("homedash/device/2/state", msg.StateTopic)
	assert.Equal("homedash/bridge/state", msg.AvTopic)
	assert.Equal("{{ value_json.display_text }}", msg.ValueTemplate)
	assert.Equal("homeassistant/sensor/homedash_device_2/device_2_display/config", HADiscoverySensorTopic(client, sensors[0]))

	buttons := domain.CardButtons(dev, desc)
	assert.NotEmpty(buttons)
	btn := GenericButtonToHADiscoveryMessage(client, buttons[0])
	assert.Equal("homedash/device/2/set/toggle", btn.CommandTopic)
	assert.Equal(MQTT_PAYLOAD_PRESS, btn.PayloadPress)
	assert.Equal("homeassistant/button/homedash_device_2/device_2_toggle/config", HADiscoveryButtonTopic(client, buttons[0]))
}
