package actor

import (
	"testing"
	"time"

	"github.com/berfenger/homedash/internal/core/domain"
	"github.com/berfenger/homedash/internal/render"
	"github.com/berfenger/homedash/internal/util"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func light() domain.DeviceRecord {
	return domain.DeviceRecord{Id: 1, Type: domain.DEVICE_TYPE_LIGHT, State: "off", LightEffect: "natural"}
}

func fan() domain.DeviceRecord {
	return domain.DeviceRecord{Id: 2, Type: domain.DEVICE_TYPE_FAN, State: "on", Value: domain.Float(40)}
}

func cardIds(root *actor.RootContext, pid *actor.PID) []int {
	res, err := root.RequestFuture(pid, domain.GetCardsRequest{}, time.Second).Result()
	if err != nil {
		return nil
	}
	var ids []int
	for _, c := range res.(domain.GetCardsResponse).Cards {
		ids = append(ids, c.DeviceId)
	}
	return ids
}

func TestMasterActor(t *testing.T) {

	as := actor.NewActorSystem()
	root := as.Root
	defer as.Shutdown()

	cfg := util.LoadTestConfig()
	logCfg := zap.NewDevelopmentConfig()
	logCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)
	logger := zap.Must(logCfg.Build())

	// id 99 has no descriptor and never gets a card
	backend := newFakeBackend(light(), fan(), domain.DeviceRecord{Id: 99, Type: domain.DEVICE_TYPE_LIGHT, State: "on"})
	es := eventstream.NewEventStream()
	board := render.NewBoard(render.EventStreamObserver{Stream: es})

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewMasterActor(cfg, backend, domain.DefaultRegistry(), board, es, nil, logger)
	})
	pid, err := root.SpawnNamed(props, domain.ACTOR_ID_MASTER)
	require.NoError(t, err)
	defer root.StopFuture(pid).Wait()

	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]int{1, 2}, cardIds(root, pid))
	}, 3*time.Second, 50*time.Millisecond)

	require.Eventually(t, func() bool {
		res, err := root.RequestFuture(pid, domain.GetCardRequest{CardRequestMixIn: domain.CardRequestMixIn{DeviceId: 2}}, time.Second).Result()
		if err != nil {
			return false
		}
		card := res.(domain.GetCardResponse).Card
		return card != nil && card.Text(domain.SLOT_STATE_VALUE) == "40%"
	}, 2*time.Second, 20*time.Millisecond)

	// commands are routed to the card actor
	res, err := root.RequestFuture(pid, domain.CardCommandRequest{
		CardRequestMixIn: domain.CardRequestMixIn{DeviceId: 1},
		Action:           domain.ACTION_TOGGLE,
	}, 5*time.Second).Result()
	require.NoError(t, err)
	resp := res.(domain.CardCommandResponse)
	require.NoError(t, resp.GetResponseError())
	assert.Equal(t, "on", resp.Record.State)

	res, err = root.RequestFuture(pid, domain.CardCommandRequest{
		CardRequestMixIn: domain.CardRequestMixIn{DeviceId: 99},
		Action:           domain.ACTION_TOGGLE,
	}, time.Second).Result()
	require.NoError(t, err)
	assert.ErrorIs(t, res.(domain.CardCommandResponse).GetResponseError(), domain.ErrUnknownDevice)

	// health covers the poller
	res, err = root.RequestFuture(pid, domain.ActorHealthRequest{}, 5*time.Second).Result()
	require.NoError(t, err)
	health, ok := res.(domain.ActorHealthResponse)
	require.True(t, ok)
	assert.True(t, health.Healthy)

	// a vanished device is unmounted
	backend.setDevices(light())
	root.Send(pid, domain.RefreshRequest{})
	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]int{1}, cardIds(root, pid))
	}, 3*time.Second, 50*time.Millisecond)
	_, mounted := board.Get(2)
	assert.False(t, mounted)

	// and mounted again when it comes back
	backend.setDevices(light(), fan())
	root.Send(pid, domain.RefreshRequest{})
	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]int{1, 2}, cardIds(root, pid))
	}, 3*time.Second, 50*time.Millisecond)
}
