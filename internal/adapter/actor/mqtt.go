package actor

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/berfenger/homedash/internal/config"
	"github.com/berfenger/homedash/internal/core/domain"
	"github.com/berfenger/homedash/internal/mqtt"
	"github.com/berfenger/homedash/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

type MQTTActor struct {
	config         *config.Config
	behavior       actor.Behavior
	stash          *actorutil.Stash
	client         *mqtt.MQTTClient
	eventStream    *eventstream.EventStream
	eventStreamSub *eventstream.Subscription
	logger         *zap.Logger

	// dummy mode only
	mu   sync.Mutex
	sent []RawMessage
}

type MQTTConnected struct {
}

type MQTTSubscribed struct {
}

type MQTTConnectionLost struct {
	Error error
}

type publishResult struct {
	ReplyTo *actor.PID
	Error   error
}

type ParsedCommand struct {
	Command *mqtt.ParsedMQTTCommand
}

type OnEventStreamMessage struct {
	message any
}

type RawMessage struct {
	Topic   string
	Message string
	Retain  bool
}

// DeviceStatePayload is the retained JSON document published for each card.
type DeviceStatePayload struct {
	Id           int                 `json:"id"`
	Name         string              `json:"name"`
	Type         domain.DeviceType   `json:"type"`
	State        string              `json:"state"`
	Value        *float64            `json:"value"`
	DeviceMode   string              `json:"device_mode,omitempty"`
	DisplayText  string              `json:"display_text"`
	DisplayClass domain.DisplayClass `json:"display_class"`
	Active       bool                `json:"active"`
	Busy         bool                `json:"busy"`
}

func NewMQTTActor(config *config.Config, eventStream *eventstream.EventStream, logger *zap.Logger) *MQTTActor {
	act := &MQTTActor{
		config:      config,
		behavior:    actor.NewBehavior(),
		stash:       &actorutil.Stash{},
		eventStream: eventStream,
		logger:      actorutil.ActorLogger(domain.ACTOR_ID_MQTT, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *MQTTActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *MQTTActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("mqtt@starting started")

		// callbacks run on paho goroutines
		root := ctx.ActorSystem().Root
		self := ctx.Self()

		// create MQTT client
		state.client = mqtt.CreateMQTTClient(state.config, mqtt.OptsFromConfig(state.config), func(_ pahomqtt.Client) {
		}, func(_ pahomqtt.Client, err error) {
			root.Send(self, MQTTConnectionLost{Error: err})
		})

		// connect to MQTT server
		state.client.Connect(func(err error) {
			if err != nil {
				root.Send(self, MQTTConnectionLost{Error: err})
			} else {
				root.Send(self, MQTTConnected{})
			}
		}, 10*time.Second)

	case MQTTConnected:
		state.logger.Debug("mqtt@starting connected")

		state.client.Publish(state.client.BridgeStateTopic(), mqtt.MQTT_PAYLOAD_ONLINE, 0, true, func(error) {}, 500*time.Millisecond)

		root := ctx.ActorSystem().Root
		self := ctx.Self()

		// subscribe to eventStream
		state.subscribeEventStream(ctx)

		// subscribe to MQTT command topic
		state.client.SubscribeToCommandTopic(func(c pahomqtt.Client, m pahomqtt.Message) {
			cmd, err := state.client.ParseMQTTCommand(m)
			if err == nil && cmd != nil {
				root.Send(self, ParsedCommand{Command: cmd})
			}
		}, func(err error) {
			if err != nil {
				root.Send(self, MQTTConnectionLost{Error: err})
			} else {
				root.Send(self, MQTTSubscribed{})
			}
		}, 1*time.Second)
	case MQTTSubscribed:
		// init completed, transition to default state
		state.logger.Debug("mqtt@starting subscribed")
		state.eventStream.Publish(domain.BridgeStateUpdateEvent{DashboardEventMixIn: domain.Now(), Online: true})
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case MQTTConnectionLost:
		// if connection lost, stop actor and let supervisor decide
		state.logger.Error("mqtt@starting connection lost", zap.Error(msg.Error))
		panic(msg.Error)
	case *actor.Restarting:
		state.stop()
	case *actor.Stopping:
		state.stop()
	case OnEventStreamMessage:
		// not connected yet, newer card states will follow
	default:
		state.logger.Debug("mqtt@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MQTTActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Restarting:
		state.stop()
	case *actor.Stopping:
		state.stop()
	case domain.ActorHealthRequest:
		state.logger.Debug("mqtt@default ActorHealthRequest")
		// respond health check request
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_MQTT,
			Healthy: state.client.IsConnected(),
			State:   "idle",
		})
	case ParsedCommand:
		// route command to parent, the reply comes back here
		state.logger.Debug("mqtt@default parsedCommand", zap.Any("command", msg.Command))
		ctx.Request(ctx.Parent(), ParsedCommandToCardCommand(*msg.Command))
	case domain.CardCommandResponse:
		if msg.HasResponseError() {
			state.logger.Warn("mqtt@default command failed", zap.Int("device", msg.DeviceId), zap.Error(msg.GetResponseError()))
		}
	case domain.PublishMessageRequest:
		state.logger.Debug("mqtt@default PublishMessageRequest", zap.Any("message", msg))
		state.publishMessage(ctx, RawMessage{Topic: msg.Topic, Message: msg.Payload, Retain: msg.Retain}, actorutil.ForRequest(msg).ReplyTo(ctx))
	case OnEventStreamMessage:
		// receive message from event bus and publish to MQTT if needed
		if raw := state.event2MQTTMessage(msg.message); raw != nil {
			state.publishMessage(ctx, *raw, nil)
		}
	case domain.PublishDiscoveryRequest:
		state.logger.Debug("mqtt@default PublishHADiscovery")
		err := state.PublishHomeAssistantDiscovery(msg.Sensors, msg.Buttons)
		if err != nil {
			state.logger.Error("mqtt@default PublishHADiscovery error", zap.Error(err))
		}
	case MQTTConnectionLost:
		// if connection lost, stop actor and let supervisor decide
		state.logger.Error("mqtt@default connection lost", zap.Error(msg.Error))
		panic(msg.Error)
	default:
		state.logger.Debug("mqtt@default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *MQTTActor) PublishResultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case publishResult:
		// log error and return to default state
		if msg.Error != nil {
			state.logger.Error("mqtt@publishing could not publish a message", zap.Error(msg.Error))
		}
		if msg.ReplyTo != nil {
			ctx.Send(msg.ReplyTo, domain.PublishMessageResponse{
				ActorResponseMixIn: domain.ErrorResponse(msg.Error),
			})
		}
		state.behavior.UnbecomeStacked()
		state.stash.UnstashOldest(ctx)
	case MQTTConnectionLost:
		state.logger.Error("mqtt@publishing connection lost", zap.Error(msg.Error))
		panic(msg.Error)
	default:
		state.logger.Debug("mqtt@publishing stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MQTTActor) event2MQTTMessage(event any) *RawMessage {
	switch msg := event.(type) {
	case domain.CardUpdatedEvent:
		payload, err := json.Marshal(DeviceStatePayload{
			Id:           msg.Record.Id,
			Name:         msg.Card.Name,
			Type:         msg.Card.Type,
			State:        msg.Record.State,
			Value:        msg.Record.Value,
			DeviceMode:   msg.Record.DeviceMode,
			DisplayText:  msg.View.DisplayText,
			DisplayClass: msg.View.DisplayClass,
			Active:       msg.View.IsActive,
			Busy:         msg.Card.Busy,
		})
		if err != nil {
			state.logger.Error("mqtt@publish could not encode device state", zap.Error(err))
			return nil
		}
		return &RawMessage{
			Topic:   state.client.DeviceStateTopic(msg.Record.Id),
			Message: string(payload),
			Retain:  true,
		}
	case domain.NotificationEvent:
		payload, err := json.Marshal(msg.Notification)
		if err != nil {
			state.logger.Error("mqtt@publish could not encode notification", zap.Error(err))
			return nil
		}
		return &RawMessage{
			Topic:   state.client.NotificationTopic(),
			Message: string(payload),
		}
	case domain.BridgeStateUpdateEvent:
		var stringMessage string
		if msg.Online {
			stringMessage = mqtt.MQTT_PAYLOAD_ONLINE
		} else {
			stringMessage = mqtt.MQTT_PAYLOAD_OFFLINE
		}
		return &RawMessage{
			Topic:   state.client.BridgeStateTopic(),
			Message: stringMessage,
			Retain:  true,
		}
	default:
		return nil
	}
}

func (state *MQTTActor) publishMessage(ctx actor.Context, msg RawMessage, replyTo *actor.PID) {
	state.logger.Sugar().Debugf("mqtt@publish: message publish %s => %s", msg.Topic, msg.Message)
	root := ctx.ActorSystem().Root
	self := ctx.Self()
	state.client.Publish(msg.Topic, msg.Message, 1, msg.Retain, func(err error) {
		root.Send(self, publishResult{ReplyTo: replyTo, Error: err})
	}, 5*time.Second)
	state.behavior.BecomeStacked(state.PublishResultReceive)
}

func (state *MQTTActor) PublishHomeAssistantDiscovery(sensors []domain.GenericSensor, buttons []domain.GenericButton) error {
	for i := range sensors {
		msg := mqtt.GenericSensorToHADiscoveryMessage(state.client, sensors[i])
		payload, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		topic := mqtt.HADiscoverySensorTopic(state.client, sensors[i])
		state.client.Publish(topic, payload, 0, true, func(error) {}, 1*time.Second)
	}
	for i := range buttons {
		msg := mqtt.GenericButtonToHADiscoveryMessage(state.client, buttons[i])
		payload, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		topic := mqtt.HADiscoveryButtonTopic(state.client, buttons[i])
		state.client.Publish(topic, payload, 0, true, func(error) {}, 1*time.Second)
	}
	return nil
}

func (state *MQTTActor) subscribeEventStream(ctx actor.Context) {
	if state.eventStream == nil || state.eventStreamSub != nil {
		return
	}
	root := ctx.ActorSystem().Root
	self := ctx.Self()
	state.eventStreamSub = state.eventStream.Subscribe(func(value any) {
		root.Send(self, OnEventStreamMessage{
			message: value,
		})
	})
}

func (state *MQTTActor) stop() {
	if state.eventStreamSub != nil {
		state.eventStream.Unsubscribe(state.eventStreamSub)
		state.eventStreamSub = nil
	}
	if state.client == nil {
		return
	}
	state.logger.Debug("mqtt: disconnect")
	if state.client.IsConnected() {
		state.client.Publish(state.client.BridgeStateTopic(), mqtt.MQTT_PAYLOAD_OFFLINE, 0, true, func(error) {}, 500*time.Millisecond)
	}
	state.client.Disconnect(500 * time.Millisecond)
}

func ParsedCommandToCardCommand(cmd mqtt.ParsedMQTTCommand) domain.CardCommandRequest {
	return domain.CardCommandRequest{
		CardRequestMixIn: domain.CardRequestMixIn{DeviceId: cmd.DeviceId},
		Action:           cmd.Action,
		Value:            cmd.Payload,
	}
}

// Dummy actor
func NewTestMQTTActor(config *config.Config, eventStream *eventstream.EventStream, logger *zap.Logger) *MQTTActor {
	act := &MQTTActor{
		config:      config,
		behavior:    actor.NewBehavior(),
		stash:       &actorutil.Stash{},
		eventStream: eventStream,
		logger:      actorutil.ActorLogger(domain.ACTOR_ID_MQTT, logger),
	}
	act.behavior.Become(act.DummyReceive)
	return act
}

func (state *MQTTActor) DummyReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.client = mqtt.CreateMQTTClient(state.config, mqtt.OptsFromConfig(state.config), nil, nil)
		state.subscribeEventStream(ctx)
	case *actor.Stopping:
		if state.eventStreamSub != nil {
			state.eventStream.Unsubscribe(state.eventStreamSub)
			state.eventStreamSub = nil
		}
	case domain.ActorHealthRequest:
		state.logger.Debug("mqtt@dummy ActorHealthRequest")
		// respond health check request
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_MQTT,
			Healthy: true,
			State:   "idle",
		})
	case OnEventStreamMessage:
		if raw := state.event2MQTTMessage(msg.message); raw != nil {
			state.record(*raw)
		}
	case domain.PublishDiscoveryRequest:
		for i := range msg.Sensors {
			state.record(RawMessage{Topic: mqtt.HADiscoverySensorTopic(state.client, msg.Sensors[i]), Retain: true})
		}
		for i := range msg.Buttons {
			state.record(RawMessage{Topic: mqtt.HADiscoveryButtonTopic(state.client, msg.Buttons[i]), Retain: true})
		}
	case domain.PublishMessageRequest:
		state.record(RawMessage{Topic: msg.Topic, Message: msg.Payload, Retain: msg.Retain})
		if msg.ReplyToRef != nil {
			ctx.Send((*actor.PID)(msg.ReplyToRef), domain.PublishMessageResponse{})
		} else if ctx.Sender() != nil {
			ctx.Respond(domain.PublishMessageResponse{})
		}
	}
}

func (state *MQTTActor) record(msg RawMessage) {
	state.mu.Lock()
	defer state.mu.Unlock()
	state.sent = append(state.sent, msg)
}

// Sent returns the messages recorded by a dummy actor.
func (state *MQTTActor) Sent() []RawMessage {
	state.mu.Lock()
	defer state.mu.Unlock()
	out := make([]RawMessage, len(state.sent))
	copy(out, state.sent)
	return out
}
