package actor

import (
	"testing"

	"github.com/berfenger/homedash/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscoveryEntities(t *testing.T) {

	reg := domain.DefaultRegistry()
	sensors, buttons := DiscoveryEntities("homedash", reg)

	require.NotEmpty(t, sensors)
	assert.Equal(t, domain.SENSOR_ID_BRIDGE_STATE, sensors[0].Id)

	// one display sensor per registered device
	display := 0
	for _, s := range sensors {
		if s.ValueTemplate == "{{ value_json.display_text }}" {
			display++
		}
	}
	assert.Equal(t, len(reg.Ids()), display)

	var fanButtons []string
	for _, b := range buttons {
		assert.Equal(t, "homedash", b.Device.ViaDevice)
		if b.DeviceId == 2 {
			fanButtons = append(fanButtons, b.Action)
		}
	}
	assert.Equal(t, []string{domain.ACTION_TOGGLE, domain.ACTION_INCREASE, domain.ACTION_DECREASE}, fanButtons)

	// the temperature sensor has no buttons
	for _, b := range buttons {
		assert.NotEqual(t, 3, b.DeviceId)
	}
}
