package actor

import (
	"fmt"
	"log"
	"time"

	adactor "github.com/berfenger/homedash/internal/adapter/actor"
	"github.com/berfenger/homedash/internal/config"
	"github.com/berfenger/homedash/internal/core/domain"
	"github.com/berfenger/homedash/internal/core/port"
	"github.com/berfenger/homedash/internal/core/service"
	. "github.com/berfenger/homedash/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"
)

type MQTTActorProvider func(*eventstream.EventStream) *adactor.MQTTActor

// MasterActor supervises the poller, the MQTT bridge and one actor per
// mounted card. It turns device snapshots into mount, reconcile and unmount
// operations on the board.
type MasterActor struct {
	config   config.Config
	behavior actor.Behavior
	stash    *Stash

	backend           port.Backend
	registry          *domain.Registry
	board             port.CardBoard
	reconciler        *service.Reconciler
	executor          *service.Executor
	eventStream       *eventstream.EventStream
	pollerActor       *actor.PID
	mqttActor         *actor.PID
	cards             map[int]*actor.PID
	mqttActorProvider MQTTActorProvider

	currentHealthCheck healthCheckResult
	logger             *zap.Logger
}

type healthCheckResult struct {
	expected       map[string]bool
	checksReceived int
	respondTo      *actor.PID
}

func NewMasterActor(config config.Config, backend port.Backend, registry *domain.Registry, board port.CardBoard,
	eventStream *eventstream.EventStream, mqttActorProvider MQTTActorProvider, logger *zap.Logger) *MasterActor {
	act := &MasterActor{
		config:            config,
		behavior:          actor.NewBehavior(),
		stash:             &Stash{},
		backend:           backend,
		registry:          registry,
		board:             board,
		eventStream:       eventStream,
		cards:             make(map[int]*actor.PID),
		mqttActorProvider: mqttActorProvider,
		logger:            ActorLogger(domain.ACTOR_ID_MASTER, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *MasterActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *MasterActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("master@starting started")

		state.reconciler = service.NewReconciler(state.registry)
		state.executor = service.NewExecutor(state.backend, state.logger)

		// start MQTT child
		if state.mqttEnabled() {
			mqttActorPID, err := state.startMQTTActor(ctx)
			if err != nil {
				panic(err)
			}
			state.mqttActor = mqttActorPID

			// start HA Discovery
			if state.config.MQTT.HADiscoveryEnable {
				_, err := state.startHADiscoveryActor(ctx)
				if err != nil {
					panic(err)
				}
			}
		}

		// start Poller child
		pollerActorPID, err := state.startPollerActor(ctx)
		if err != nil {
			panic(err)
		}
		state.pollerActor = pollerActorPID

		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("master@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("master@default ActorHealthRequest")
		state.currentHealthCheck.reset(state.healthTargets())
		state.currentHealthCheck.respondTo = ctx.Sender()
		for id, pid := range state.healthTargets() {
			id := id
			PipeToSelfWithRecover(ctx, ctx.RequestFuture(pid, domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
				return domain.ActorHealthResponse{
					Id:      id,
					Healthy: false,
				}
			})
		}

		ctx.SetReceiveTimeout(1 * time.Second)

		state.behavior.BecomeStacked(state.HealthCheckReceive)
	case domain.DevicesSnapshotEvent:
		state.logger.Debug("master@default DevicesSnapshotEvent", zap.Int("devices", len(msg.Devices)))
		state.syncCards(ctx, msg.Devices)
	case domain.CardCommandRequest:
		state.logger.Debug("master@default CardCommandRequest", zap.Int("device", msg.DeviceId), zap.String("action", msg.Action))
		pid, ok := state.cards[msg.DeviceId]
		if !ok {
			ForRequest(msg).Respond(ctx, domain.CardCommandResponse{
				ActorResponseMixIn: domain.ErrorResponse(domain.ErrUnknownDevice),
				DeviceId:           msg.DeviceId,
			})
			return
		}
		ctx.RequestWithCustomSender(pid, msg, ForRequest(msg).ReplyTo(ctx))
	case domain.GetCardRequest:
		card, ok := state.board.Get(msg.DeviceId)
		if !ok {
			ForRequest(msg).Respond(ctx, domain.GetCardResponse{
				ActorResponseMixIn: domain.ErrorResponse(domain.ErrUnknownDevice),
			})
			return
		}
		snap := card.Snapshot()
		ForRequest(msg).Respond(ctx, domain.GetCardResponse{Card: &snap})
	case domain.GetCardsRequest:
		ForRequest(msg).Respond(ctx, domain.GetCardsResponse{Cards: state.board.Snapshot()})
	case domain.RefreshRequest:
		state.logger.Debug("master@default RefreshRequest")
		ctx.Send(state.pollerActor, msg)
	case *actor.Terminated:
		state.logger.Debug("master@default terminated", zap.String("who", msg.Who.Id))
	case *actor.Stopping:
		state.logger.Debug("master@default stopping")
	default:
		state.logger.Debug("master@default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *MasterActor) HealthCheckReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.ReceiveTimeout:
		// if some actor does not respond to healthCheck, assume not healthy
		ctx.SetReceiveTimeout(0)
		state.currentHealthCheck.respond(ctx)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case domain.ActorHealthResponse:
		state.logger.Debug("master@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		state.currentHealthCheck.checksReceived++
		if _, ok := state.currentHealthCheck.expected[msg.Id]; ok {
			state.currentHealthCheck.expected[msg.Id] = msg.Healthy
		}
		if state.currentHealthCheck.allReceived() {
			ctx.SetReceiveTimeout(0)
			state.currentHealthCheck.respond(ctx)

			state.behavior.UnbecomeStacked()
			state.stash.UnstashAll(ctx)
		}
	default:
		state.logger.Debug("master@healthcheck stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

// syncCards mounts new devices, reconciles known ones and unmounts the ones
// missing from the snapshot. Ids without a descriptor are skipped.
func (state *MasterActor) syncCards(ctx actor.Context, devices []domain.DeviceRecord) {
	seen := make(map[int]bool, len(devices))
	for _, record := range devices {
		desc, ok := state.registry.Lookup(record.Id)
		if !ok {
			continue
		}
		seen[record.Id] = true
		if pid, ok := state.cards[record.Id]; ok {
			ctx.Send(pid, domain.ReconcileRequest{
				CardRequestMixIn: domain.CardRequestMixIn{DeviceId: record.Id},
				Record:           record,
			})
			continue
		}
		card := state.board.Mount(desc, record)
		pid, err := state.startCardActor(ctx, desc, card, record)
		if err != nil {
			state.logger.Error("master@default could not start card", zap.Int("device", record.Id), zap.Error(err))
			state.board.Unmount(record.Id)
			continue
		}
		state.cards[record.Id] = pid
	}
	for id, pid := range state.cards {
		if !seen[id] {
			state.logger.Info("master@default device vanished", zap.Int("device", id))
			// wait so the name is free if the device comes back
			ctx.StopFuture(pid).Wait()
			state.board.Unmount(id)
			delete(state.cards, id)
		}
	}
}

func (state *MasterActor) startCardActor(ctx actor.Context, desc domain.DeviceTypeDescriptor, card port.CardHandle, record domain.DeviceRecord) (*actor.PID, error) {

	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for card %d. reason: %v", desc.Id, reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(3, 10*time.Second, decider)

	// outlives restarts of the card actor
	memo := NewCardMemo(record)
	cardProps := actor.PropsFromProducer(func() actor.Actor {
		return NewCardActor(desc, card, memo, state.reconciler, state.executor, state.eventStream, state.logger)
	}, actor.WithSupervisor(supervisor))
	return ctx.SpawnNamed(cardProps, CardActorId(desc.Id))
}

func (state *MasterActor) startPollerActor(ctx actor.Context) (*actor.PID, error) {

	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for child. reason: %v", reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(10, 10*time.Second, decider)

	pollerProps := actor.PropsFromProducer(func() actor.Actor {
		return NewPollerActor(&state.config, state.backend, state.backend, state.eventStream, state.logger)
	}, actor.WithSupervisor(supervisor))
	return ctx.SpawnNamed(pollerProps, domain.ACTOR_ID_POLLER)
}

func (state *MasterActor) startHADiscoveryActor(ctx actor.Context) (*actor.PID, error) {

	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for child. reason: %v", reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(1, 10*time.Second, decider)

	haDiscProps := actor.PropsFromProducer(func() actor.Actor {
		return NewHADiscoveryActor(&state.config, state.registry, state.mqttActor, state.logger)
	}, actor.WithSupervisor(supervisor))
	return ctx.SpawnNamed(haDiscProps, domain.ACTOR_ID_HA_DISCOVERY)
}

func (state *MasterActor) startMQTTActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	mqttProps := actor.PropsFromProducer(func() actor.Actor {
		return state.mqttActorProvider(state.eventStream)
	}, actor.WithSupervisor(supervisor))
	return ctx.SpawnNamed(mqttProps, domain.ACTOR_ID_MQTT)
}

func (state *MasterActor) mqttEnabled() bool {
	return state.config.MQTT.Enable && state.mqttActorProvider != nil
}

func (state *MasterActor) healthTargets() map[string]*actor.PID {
	targets := map[string]*actor.PID{
		domain.ACTOR_ID_POLLER: state.pollerActor,
	}
	if state.mqttActor != nil {
		targets[domain.ACTOR_ID_MQTT] = state.mqttActor
	}
	return targets
}

func (state *healthCheckResult) reset(targets map[string]*actor.PID) {
	state.expected = make(map[string]bool, len(targets))
	for id := range targets {
		state.expected[id] = false
	}
	state.checksReceived = 0
	state.respondTo = nil
}

func (state *healthCheckResult) allReceived() bool {
	return state.checksReceived >= len(state.expected)
}

func (state *healthCheckResult) allHealthy() bool {
	for _, healthy := range state.expected {
		if !healthy {
			return false
		}
	}
	return true
}

func (state *healthCheckResult) respond(ctx actor.Context) {
	resp := domain.ActorHealthResponse{
		Id:      domain.ACTOR_ID_MASTER,
		Healthy: state.allHealthy(),
	}
	if state.respondTo != nil {
		ctx.Send(state.respondTo, resp)
	}
}
