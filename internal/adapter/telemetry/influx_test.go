package telemetry

import (
	"sync"
	"testing"
	"time"

	"github.com/berfenger/homedash/internal/config"
	"github.com/berfenger/homedash/internal/core/domain"

	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingWriter struct {
	mu     sync.Mutex
	points []*write.Point
}

func (r *recordingWriter) WritePoint(p *write.Point) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.points = append(r.points, p)
}

func tags(p *write.Point) map[string]string {
	out := map[string]string{}
	for _, t := range p.TagList() {
		out[t.Key] = t.Value
	}
	return out
}

func fields(p *write.Point) map[string]interface{} {
	out := map[string]interface{}{}
	for _, f := range p.FieldList() {
		out[f.Key] = f.Value
	}
	return out
}

func TestDevicePoints(t *testing.T) {
	at := time.Now()
	points := DevicePoints([]domain.DeviceRecord{
		{Id: 2, Name: "Fan", Type: domain.DEVICE_TYPE_FAN, State: domain.STATE_ON, Value: domain.Float(40), PowerConsumption: domain.Float(35)},
		{Id: 15, Name: "Motion Sensor", Type: domain.DEVICE_TYPE_MOTION, State: domain.STATE_OFF, BatteryLevel: domain.Float(80)},
	}, at)

	require.Len(t, points, 2)

	fan := points[0]
	assert.Equal(t, MEASUREMENT_DEVICE_STATE, fan.Name())
	assert.Equal(t, map[string]string{"device_id": "2", "type": "fan", "name": "Fan"}, tags(fan))
	assert.Equal(t, int64(1), fields(fan)["on"])
	assert.Equal(t, 40.0, fields(fan)["value"])
	assert.Equal(t, 35.0, fields(fan)["power"])
	assert.NotContains(t, fields(fan), "battery")
	assert.Equal(t, at, fan.Time())

	motion := fields(points[1])
	assert.Equal(t, int64(0), motion["on"])
	assert.Equal(t, 80.0, motion["battery"])
	assert.NotContains(t, motion, "value")
}

func TestEnergyPoints(t *testing.T) {
	points := EnergyPoints(domain.EnergyReport{
		TotalPower:  120,
		DailyEnergy: 2.5,
		Devices:     []domain.DeviceEnergy{{Name: "Light", Power: 9}, {Name: "TV", Power: 111}},
	}, time.Now())

	require.Len(t, points, 3)
	assert.Equal(t, 120.0, fields(points[0])["total_power"])
	assert.Equal(t, 2.5, fields(points[0])["daily_energy"])
	assert.Equal(t, "TV", tags(points[2])["name"])
	assert.Equal(t, 111.0, fields(points[2])["device_power"])
}

func TestWriterAttach(t *testing.T) {
	es := &eventstream.EventStream{}
	rec := &recordingWriter{}
	w := NewWriter(rec, zap.NewNop())
	w.Attach(es)

	es.Publish(domain.DevicesSnapshotEvent{
		DashboardEventMixIn: domain.Now(),
		Devices:             []domain.DeviceRecord{{Id: 1, Name: "Light", Type: domain.DEVICE_TYPE_LIGHT, State: domain.STATE_ON}},
	})
	es.Publish(domain.EnergySnapshotEvent{DashboardEventMixIn: domain.Now(), Energy: domain.EnergyReport{TotalPower: 9}})
	es.Publish(domain.CardPatchEvent{})

	assert.Len(t, rec.points, 2)

	w.Close(es)
	es.Publish(domain.DevicesSnapshotEvent{Devices: []domain.DeviceRecord{{Id: 1}}})
	assert.Len(t, rec.points, 2)
}

func TestConnectDisabled(t *testing.T) {
	_, err := Connect(config.TelemetryConfig{Enable: false}, zap.NewNop())
	assert.ErrorIs(t, err, ErrDisabled)
}
