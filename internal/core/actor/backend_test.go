package actor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/berfenger/homedash/internal/core/domain"
	"github.com/berfenger/homedash/internal/core/port"

	"github.com/asynkron/protoactor-go/eventstream"
)

var _ port.Backend = (*fakeBackend)(nil)

// fakeBackend is an in-memory backend. Calls block while gate is set.
type fakeBackend struct {
	mu      sync.Mutex
	devices map[int]*domain.DeviceRecord
	order   []int
	calls   []string
	lists   int
	listErr error
	failOn  map[string]error
	gate    chan struct{}
	entered chan string
}

func newFakeBackend(records ...domain.DeviceRecord) *fakeBackend {
	f := &fakeBackend{
		devices: make(map[int]*domain.DeviceRecord),
		failOn:  make(map[string]error),
		entered: make(chan string, 16),
	}
	f.setDevices(records...)
	return f
}

func (f *fakeBackend) setDevices(records ...domain.DeviceRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.devices = make(map[int]*domain.DeviceRecord)
	f.order = f.order[:0]
	for i := range records {
		r := records[i]
		f.devices[r.Id] = &r
		f.order = append(f.order, r.Id)
	}
}

func (f *fakeBackend) hold() {
	f.mu.Lock()
	f.gate = make(chan struct{})
	f.mu.Unlock()
}

func (f *fakeBackend) release() {
	f.mu.Lock()
	gate := f.gate
	f.gate = nil
	f.mu.Unlock()
	if gate != nil {
		close(gate)
	}
}

func (f *fakeBackend) setListErr(err error) {
	f.mu.Lock()
	f.listErr = err
	f.mu.Unlock()
}

func (f *fakeBackend) fail(call string, err error) {
	f.mu.Lock()
	f.failOn[call] = err
	f.mu.Unlock()
}

func (f *fakeBackend) listCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lists
}

func (f *fakeBackend) recordedCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// enter records call and waits on the gate. The caller must not hold mu.
func (f *fakeBackend) enter(ctx context.Context, call string) error {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	gate := f.gate
	err := f.failOn[call]
	f.mu.Unlock()

	select {
	case f.entered <- call:
	default:
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (f *fakeBackend) mutate(ctx context.Context, call string, id int, fn func(d *domain.DeviceRecord)) (*domain.DeviceRecord, error) {
	if err := f.enter(ctx, call); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.devices[id]
	if !ok {
		return nil, errors.New("Device not found")
	}
	fn(d)
	cp := *d
	return &cp, nil
}

func (f *fakeBackend) ListDevices(ctx context.Context) ([]domain.DeviceRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]domain.DeviceRecord, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, *f.devices[id])
	}
	return out, nil
}

func (f *fakeBackend) GetDevice(ctx context.Context, id int) (*domain.DeviceRecord, error) {
	return f.mutate(ctx, "get", id, func(d *domain.DeviceRecord) {})
}

func (f *fakeBackend) Toggle(ctx context.Context, id int) (*domain.DeviceRecord, error) {
	return f.mutate(ctx, "toggle", id, func(d *domain.DeviceRecord) {
		if d.State == domain.STATE_ON {
			d.State = domain.STATE_OFF
		} else {
			d.State = domain.STATE_ON
		}
	})
}

func (f *fakeBackend) SetValue(ctx context.Context, id int, value float64) (*domain.DeviceRecord, error) {
	return f.mutate(ctx, fmt.Sprintf("set_value:%g", value), id, func(d *domain.DeviceRecord) {
		d.Value = domain.Float(value)
	})
}

func (f *fakeBackend) SetMode(ctx context.Context, id int, mode string) (*domain.DeviceRecord, error) {
	return f.mutate(ctx, "set_mode:"+mode, id, func(d *domain.DeviceRecord) { d.DeviceMode = mode })
}

func (f *fakeBackend) SetEffect(ctx context.Context, id int, effect string) (*domain.DeviceRecord, error) {
	return f.mutate(ctx, "set_effect:"+effect, id, func(d *domain.DeviceRecord) { d.LightEffect = effect })
}

func (f *fakeBackend) SetAcMode(ctx context.Context, id int, mode string) (*domain.DeviceRecord, error) {
	return f.mutate(ctx, "set_ac_mode:"+mode, id, func(d *domain.DeviceRecord) { d.AcMode = mode })
}

func (f *fakeBackend) ListScenes(ctx context.Context) ([]domain.Scene, error) {
	return nil, nil
}

func (f *fakeBackend) ActivateScene(ctx context.Context, id int) error {
	return nil
}

func (f *fakeBackend) GetEnergy(ctx context.Context) (*domain.EnergyReport, error) {
	return &domain.EnergyReport{}, nil
}

// eventRecorder collects every event published on a stream.
type eventRecorder struct {
	mu     sync.Mutex
	events []any
	sub    *eventstream.Subscription
}

func recordEvents(es *eventstream.EventStream) *eventRecorder {
	rec := &eventRecorder{}
	rec.sub = es.Subscribe(func(evt any) {
		rec.mu.Lock()
		rec.events = append(rec.events, evt)
		rec.mu.Unlock()
	})
	return rec
}

func (r *eventRecorder) notifications() []domain.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Notification
	for _, e := range r.events {
		if n, ok := e.(domain.NotificationEvent); ok {
			out = append(out, n.Notification)
		}
	}
	return out
}

func (r *eventRecorder) snapshots() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if _, ok := e.(domain.DevicesSnapshotEvent); ok {
			n++
		}
	}
	return n
}

func waitEntered(f *fakeBackend, call string) bool {
	timeout := time.After(2 * time.Second)
	for {
		select {
		case c := <-f.entered:
			if c == call {
				return true
			}
		case <-timeout:
			return false
		}
	}
}
