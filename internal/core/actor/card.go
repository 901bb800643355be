package actor

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/berfenger/homedash/internal/core/domain"
	"github.com/berfenger/homedash/internal/core/port"
	"github.com/berfenger/homedash/internal/core/service"
	. "github.com/berfenger/homedash/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"
)

// CardMemo is the part of a card actor that survives restarts. It is only
// touched from the actor's own mailbox.
type CardMemo struct {
	Last    domain.DeviceRecord
	pending *pendingCommand
}

func NewCardMemo(initial domain.DeviceRecord) *CardMemo {
	return &CardMemo{Last: initial}
}

type pendingCommand struct {
	op      domain.Operation
	action  string
	replyTo *actor.PID
}

// CardActor owns one mounted card. Every mutation of the card goes through
// this actor, so commands against the same device never overlap.
type CardActor struct {
	ActorWithStates
	desc        domain.DeviceTypeDescriptor
	card        port.CardHandle
	memo        *CardMemo
	reconciler  *service.Reconciler
	executor    *service.Executor
	eventStream *eventstream.EventStream

	logger *zap.Logger
}

type commandResult struct {
	op      domain.Operation
	action  string
	record  *domain.DeviceRecord
	err     error
	replyTo *actor.PID
}

func CardActorId(id int) string {
	return domain.ACTOR_ID_CARD_PREFIX + strconv.Itoa(id)
}

func NewCardActor(desc domain.DeviceTypeDescriptor, card port.CardHandle, memo *CardMemo,
	reconciler *service.Reconciler, executor *service.Executor, eventStream *eventstream.EventStream, logger *zap.Logger) *CardActor {
	act := &CardActor{
		desc:        desc,
		card:        card,
		memo:        memo,
		reconciler:  reconciler,
		executor:    executor,
		eventStream: eventStream,
		logger:      ActorLogger(CardActorId(desc.Id), logger),
		ActorWithStates: ActorWithStates{
			Behavior: actor.NewBehavior(),
		},
	}
	act.Become(CardIdleState{
		actor: act,
	})
	return act
}

func (state *CardActor) Receive(context actor.Context) {
	state.Behavior.Receive(context)
}

// Idle state

type CardIdleState struct {
	ActorState
	actor *CardActor
}

func (state CardIdleState) Name() string {
	return "idle"
}

func (state CardIdleState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		act := state.actor
		if pending := act.memo.pending; pending != nil {
			// restarted while a command was in flight: its result still comes here
			act.logger.Info("card@idle resuming in-flight command", zap.String("action", pending.action))
			act.card.SetBusy(true)
			act.BecomeStacked(CardBusyState{actor: act, pending: *pending})
			return
		}
		act.logger.Debug("card@idle started")
		act.reconcile(act.memo.Last)
	case domain.ActorHealthRequest:
		ctx.Respond(state.actor.health(state.Name()))
	case domain.GetCardRequest:
		snap := state.actor.card.Snapshot()
		ForRequest(msg).Respond(ctx, domain.GetCardResponse{Card: &snap})
	case domain.ReconcileRequest:
		state.actor.logger.Debug("card@idle ReconcileRequest")
		state.actor.reconcile(msg.Record)
	case domain.CardCommandRequest:
		state.actor.logger.Debug("card@idle CardCommandRequest", zap.String("action", msg.Action), zap.String("value", msg.Value))
		op, err := service.ResolveOperation(state.actor.desc, msg.Action, msg.Value, &state.actor.memo.Last)
		if err != nil {
			state.actor.logger.Info("card@idle rejected command", zap.String("action", msg.Action), zap.Error(err))
			ForRequest(msg).Respond(ctx, domain.CardCommandResponse{
				ActorResponseMixIn: domain.ErrorResponse(err),
				DeviceId:           state.actor.desc.Id,
			})
			return
		}
		state.actor.BecomeStacked(CardBusyState{
			actor: state.actor,
		}.OnEnterAction(ctx, pendingCommand{op: op, action: msg.Action, replyTo: ForRequest(msg).ReplyTo(ctx)}))
	case commandResult:
		// result of a command whose busy state was lost
		state.actor.logger.Info("card@idle late command result", zap.Error(msg.err))
		state.actor.memo.pending = nil
		state.actor.finish(ctx, msg)
	default:
		state.actor.logger.Debug("card@idle recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

// Busy state

type CardBusyState struct {
	ActorState
	actor   *CardActor
	pending pendingCommand
}

func (state CardBusyState) Name() string {
	return "busy"
}

func (state CardBusyState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		ctx.Respond(state.actor.health(state.Name()))
	case domain.GetCardRequest:
		snap := state.actor.card.Snapshot()
		ForRequest(msg).Respond(ctx, domain.GetCardResponse{Card: &snap})
	case domain.ReconcileRequest:
		// polls are not coordinated with commands: last write wins
		state.actor.logger.Debug("card@busy ReconcileRequest")
		state.actor.reconcile(msg.Record)
	case domain.CardCommandRequest:
		state.actor.logger.Debug("card@busy reject command", zap.String("action", msg.Action))
		ForRequest(msg).Respond(ctx, domain.CardCommandResponse{
			ActorResponseMixIn: domain.ErrorResponse(domain.ErrCardBusy),
			DeviceId:           state.actor.desc.Id,
		})
	case commandResult:
		state.actor.memo.pending = nil
		state.actor.finish(ctx, msg)
		state.actor.UnbecomeStacked()
	case *actor.Restarting:
		if state.actor.memo.pending != nil {
			state.actor.logger.Warn("card@busy restarting with command in flight", zap.String("action", state.pending.action))
			return
		}
		// the crash happened while applying the result
		state.actor.logger.Warn("card@busy restarting while applying result", zap.String("action", state.pending.action))
		state.actor.abort(ctx, state.pending)
	case *actor.Stopping:
		if state.actor.memo.pending != nil {
			state.actor.memo.pending = nil
			state.actor.abort(ctx, state.pending)
			return
		}
		state.actor.card.SetBusy(false)
	default:
		state.actor.logger.Debug("card@busy recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

// OnEnterAction disables the card and runs the command off the actor. The
// backend transport timeout is the only bound on the command.
func (state CardBusyState) OnEnterAction(ctx actor.Context, pending pendingCommand) CardBusyState {
	state.pending = pending
	state.actor.memo.pending = &pending
	state.actor.card.SetBusy(true)

	executor := state.actor.executor
	op, action, replyTo := pending.op, pending.action, pending.replyTo
	recoverFn := func(err error) commandResult {
		return commandResult{op: op, action: action, err: err, replyTo: replyTo}
	}

	NewBackgroundTask(ctx, func() (*commandResult, error) {
		record, err := executor.Execute(context.Background(), op)
		return &commandResult{op: op, action: action, record: record, err: err, replyTo: replyTo}, nil
	}).Recover(recoverFn).PipeTo(ctx.Self())
	return state
}

// Other actor function helpers

// finish applies a command result, re-enables the card and answers the
// requester. It runs whatever the outcome.
func (state *CardActor) finish(ctx actor.Context, msg commandResult) {
	var resp domain.CardCommandResponse
	resp.DeviceId = state.desc.Id

	if msg.err != nil {
		state.logger.Error("card@busy command failed", zap.String("op", msg.op.Kind.String()), zap.Error(msg.err))
		state.notify(msg.action, service.FailureMessage(msg.op))
		resp.ActorResponseMixIn = domain.ErrorResponse(msg.err)
	} else {
		state.logger.Debug("card@busy command done", zap.String("op", msg.op.Kind.String()))
		if msg.record != nil {
			state.reconcile(*msg.record)
			rec := *msg.record
			resp.Record = &rec
		}
	}

	state.card.SetBusy(false)
	snap := state.card.Snapshot()
	resp.Card = &snap

	if msg.replyTo != nil {
		ctx.Send(msg.replyTo, resp)
	}
}

// abort re-enables the card and fails the requester of a command whose
// result will never be applied.
func (state *CardActor) abort(ctx actor.Context, pending pendingCommand) {
	state.card.SetBusy(false)
	if pending.replyTo == nil {
		return
	}
	snap := state.card.Snapshot()
	ctx.Send(pending.replyTo, domain.CardCommandResponse{
		ActorResponseMixIn: domain.ErrorResponse(domain.ErrCommandAborted),
		DeviceId:           state.desc.Id,
		Card:               &snap,
	})
}

func (state *CardActor) reconcile(record domain.DeviceRecord) {
	state.memo.Last = record
	view, ok := state.reconciler.Reconcile(state.card, record)
	if !ok {
		return
	}
	state.eventStream.Publish(domain.CardUpdatedEvent{
		DashboardEventMixIn: domain.Now(),
		Record:              record,
		View:                view,
		Card:                state.card.Snapshot(),
	})
}

func (state *CardActor) notify(action, message string) {
	state.eventStream.Publish(domain.NotificationEvent{
		DashboardEventMixIn: domain.Now(),
		Notification: domain.Notification{
			Level:     domain.NOTIFICATION_ERROR,
			DeviceId:  state.desc.Id,
			Action:    action,
			Message:   message,
			Timestamp: time.Now(),
		},
	})
}

func (state *CardActor) health(name string) domain.ActorHealthResponse {
	return domain.ActorHealthResponse{
		Id:      CardActorId(state.desc.Id),
		Healthy: true,
		State:   name,
	}
}
