package telemetry

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/berfenger/homedash/internal/config"
	"github.com/berfenger/homedash/internal/core/domain"

	"github.com/asynkron/protoactor-go/eventstream"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"go.uber.org/zap"
)

const (
	MEASUREMENT_DEVICE_STATE = "device_state"
	MEASUREMENT_ENERGY       = "energy"

	defaultConnectTimeout = 10 * time.Second
)

var (
	ErrDisabled         = errors.New("telemetry: disabled in configuration")
	ErrConnectionFailed = errors.New("telemetry: connection failed")
)

// PointWriter is the non-blocking write side of an InfluxDB client.
type PointWriter interface {
	WritePoint(point *write.Point)
}

// Writer turns device and energy snapshots into InfluxDB points.
type Writer struct {
	client influxdb2.Client
	points PointWriter
	sub    *eventstream.Subscription
	logger *zap.Logger
}

func Connect(cfg config.TelemetryConfig, logger *zap.Logger) (*Writer, error) {
	if !cfg.Enable {
		return nil, ErrDisabled
	}
	batchSize := cfg.BatchSize
	if batchSize == 0 {
		batchSize = 100
	}
	flushInterval := cfg.FlushIntervalMillis
	if flushInterval == 0 {
		flushInterval = 10000
	}

	client := influxdb2.NewClientWithOptions(
		cfg.Url,
		cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(batchSize).
			SetFlushInterval(flushInterval),
	)

	ctx, cancel := context.WithTimeout(context.Background(), defaultConnectTimeout)
	defer cancel()

	healthy, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping failed: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: server not healthy", ErrConnectionFailed)
	}

	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)
	w := &Writer{
		client: client,
		points: writeAPI,
		logger: logger.With(zap.String("component", "telemetry")),
	}
	go func() {
		for err := range writeAPI.Errors() {
			w.logger.Warn("telemetry write failed", zap.Error(err))
		}
	}()
	return w, nil
}

func NewWriter(points PointWriter, logger *zap.Logger) *Writer {
	return &Writer{
		points: points,
		logger: logger.With(zap.String("component", "telemetry")),
	}
}

// Attach writes a point set for every snapshot published on the stream.
func (w *Writer) Attach(es *eventstream.EventStream) {
	w.sub = es.Subscribe(func(evt any) {
		switch e := evt.(type) {
		case domain.DevicesSnapshotEvent:
			w.write(DevicePoints(e.Devices, e.OccurredAt()))
		case domain.EnergySnapshotEvent:
			w.write(EnergyPoints(e.Energy, e.OccurredAt()))
		}
	})
}

func (w *Writer) Close(es *eventstream.EventStream) {
	if w.sub != nil {
		es.Unsubscribe(w.sub)
		w.sub = nil
	}
	// closing the client flushes pending batches
	if w.client != nil {
		w.client.Close()
	}
}

func (w *Writer) write(points []*write.Point) {
	for _, p := range points {
		w.points.WritePoint(p)
	}
	w.logger.Debug("telemetry points queued", zap.Int("points", len(points)))
}

// DevicePoints builds one device_state point per record. Fields that the
// record does not carry are left out.
func DevicePoints(devices []domain.DeviceRecord, at time.Time) []*write.Point {
	points := make([]*write.Point, 0, len(devices))
	for _, d := range devices {
		on := int64(0)
		if d.IsOn() {
			on = 1
		}
		fields := map[string]interface{}{"on": on}
		if d.Value != nil {
			fields["value"] = *d.Value
		}
		if d.PowerConsumption != nil {
			fields["power"] = *d.PowerConsumption
		}
		if d.BatteryLevel != nil {
			fields["battery"] = *d.BatteryLevel
		}
		points = append(points, write.NewPoint(
			MEASUREMENT_DEVICE_STATE,
			map[string]string{
				"device_id": strconv.Itoa(d.Id),
				"type":      string(d.Type),
				"name":      d.Name,
			},
			fields,
			at,
		))
	}
	return points
}

func EnergyPoints(report domain.EnergyReport, at time.Time) []*write.Point {
	points := make([]*write.Point, 0, len(report.Devices)+1)
	points = append(points, write.NewPoint(
		MEASUREMENT_ENERGY,
		map[string]string{},
		map[string]interface{}{
			"total_power":  report.TotalPower,
			"daily_energy": report.DailyEnergy,
		},
		at,
	))
	for _, d := range report.Devices {
		points = append(points, write.NewPoint(
			MEASUREMENT_ENERGY,
			map[string]string{"name": d.Name},
			map[string]interface{}{"device_power": d.Power},
			at,
		))
	}
	return points
}
