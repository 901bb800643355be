package actor

import (
	"context"
	"fmt"
	"time"

	"github.com/berfenger/homedash/internal/config"
	"github.com/berfenger/homedash/internal/core/domain"
	"github.com/berfenger/homedash/internal/core/port"
	. "github.com/berfenger/homedash/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

// PollerActor fetches the full device list on a fixed interval and hands
// each snapshot to its parent.
type PollerActor struct {
	behavior  actor.Behavior
	scheduler *scheduler.TimerScheduler

	config       *config.Config
	source       port.DeviceSource
	scenes       port.SceneAPI
	eventStream  *eventstream.EventStream
	fetching     bool
	fetchingEnrg bool
	lastError    error

	logger *zap.Logger
}

type pollTick struct {
}

type energyTick struct {
}

func NewPollerActor(config *config.Config, source port.DeviceSource, scenes port.SceneAPI, eventStream *eventstream.EventStream, logger *zap.Logger) *PollerActor {
	act := &PollerActor{
		config:      config,
		source:      source,
		scenes:      scenes,
		behavior:    actor.NewBehavior(),
		logger:      ActorLogger(domain.ACTOR_ID_POLLER, logger),
		eventStream: eventStream,
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *PollerActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *PollerActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("poller@starting started")

		state.scheduler = scheduler.NewTimerScheduler(ctx)
		// first poll right away, then on every interval
		ctx.Send(ctx.Self(), pollTick{})
		if state.energyEnabled() {
			ctx.Send(ctx.Self(), energyTick{})
		}
		state.behavior.Become(state.DefaultReceive)
	case *actor.Restarting:
	default:
		state.logger.Debug("poller@starting recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *PollerActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("poller@default: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_POLLER,
			Healthy: true,
			State:   state.stateName(),
		})
	case pollTick:
		state.logger.Debug("poller@default tick")
		state.poll(ctx)
		state.scheduler.RequestOnce(state.interval(), ctx.Self(), pollTick{})
	case domain.RefreshRequest:
		state.logger.Debug("poller@default RefreshRequest")
		state.poll(ctx)
	case energyTick:
		state.pollEnergy(ctx)
		state.scheduler.RequestOnce(time.Duration(state.config.TelemetryConfig.EnergyIntervalMillis)*time.Millisecond, ctx.Self(), energyTick{})
	case domain.ListDevicesResponse:
		state.fetching = false
		if msg.HasResponseError() {
			// transient read failures heal on the next tick
			state.lastError = msg.GetResponseError()
			state.logger.Error("poller@default ListDevicesResponse error", zap.Error(msg.GetResponseError()))
			return
		}
		state.lastError = nil
		state.logger.Debug("poller@default ListDevicesResponse", zap.Int("devices", len(msg.Devices)))
		event := domain.DevicesSnapshotEvent{
			DashboardEventMixIn: domain.Now(),
			Devices:             msg.Devices,
		}
		if ctx.Parent() != nil {
			ctx.Send(ctx.Parent(), event)
		}
		state.eventStream.Publish(event)
	case domain.GetEnergyResponse:
		state.fetchingEnrg = false
		if msg.HasResponseError() {
			state.logger.Error("poller@default GetEnergyResponse error", zap.Error(msg.GetResponseError()))
			return
		}
		if msg.Energy != nil {
			state.eventStream.Publish(domain.EnergySnapshotEvent{
				DashboardEventMixIn: domain.Now(),
				Energy:              *msg.Energy,
			})
		}
	default:
		state.logger.Debug("poller@default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *PollerActor) poll(ctx actor.Context) {
	if state.fetching {
		state.logger.Debug("poller@default skip tick, fetch in flight")
		return
	}
	state.fetching = true

	source := state.source
	timeout := time.Duration(state.config.Backend.TimeoutMillis) * time.Millisecond
	NewBackgroundTask(ctx, func() (*domain.ListDevicesResponse, error) {
		cctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		devices, err := source.ListDevices(cctx)
		if err != nil {
			return nil, err
		}
		return &domain.ListDevicesResponse{Devices: devices}, nil
	}).WithTimeout(timeout + time.Second).Recover(func(err error) domain.ListDevicesResponse {
		return domain.ListDevicesResponse{
			ActorResponseMixIn: domain.ErrorResponse(err),
		}
	}).PipeTo(ctx.Self())
}

func (state *PollerActor) pollEnergy(ctx actor.Context) {
	if state.fetchingEnrg || state.scenes == nil {
		return
	}
	state.fetchingEnrg = true

	scenes := state.scenes
	timeout := time.Duration(state.config.Backend.TimeoutMillis) * time.Millisecond
	NewBackgroundTask(ctx, func() (*domain.GetEnergyResponse, error) {
		cctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		energy, err := scenes.GetEnergy(cctx)
		if err != nil {
			return nil, err
		}
		return &domain.GetEnergyResponse{Energy: energy}, nil
	}).WithTimeout(timeout + time.Second).Recover(func(err error) domain.GetEnergyResponse {
		return domain.GetEnergyResponse{
			ActorResponseMixIn: domain.ErrorResponse(err),
		}
	}).PipeTo(ctx.Self())
}

func (state *PollerActor) interval() time.Duration {
	return time.Duration(state.config.MonitorConfig.PollIntervalMillis) * time.Millisecond
}

func (state *PollerActor) energyEnabled() bool {
	return state.config.TelemetryConfig.Enable && state.config.TelemetryConfig.EnergyIntervalMillis > 0
}

func (state *PollerActor) stateName() string {
	switch {
	case state.fetching:
		return "fetching"
	case state.lastError != nil:
		return "degraded"
	}
	return "idle"
}
