package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/berfenger/homedash/internal/core/domain"
	"github.com/berfenger/homedash/internal/notify"
	"github.com/berfenger/homedash/internal/util"
	"github.com/berfenger/homedash/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var errBackend = errors.New("backend returned status 500")

type fakeMaster struct {
	mu        sync.Mutex
	commands  []domain.CardCommandRequest
	refreshes int
}

func (m *fakeMaster) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{Id: domain.ACTOR_ID_MASTER, Healthy: true})
	case domain.GetCardsRequest:
		ctx.Respond(domain.GetCardsResponse{Cards: []domain.CardSnapshot{lightCard()}})
	case domain.GetCardRequest:
		if msg.DeviceId != 1 {
			ctx.Respond(domain.GetCardResponse{ActorResponseMixIn: domain.ErrorResponse(domain.ErrUnknownDevice)})
			return
		}
		card := lightCard()
		ctx.Respond(domain.GetCardResponse{Card: &card})
	case domain.CardCommandRequest:
		m.mu.Lock()
		m.commands = append(m.commands, msg)
		m.mu.Unlock()
		var err error
		switch msg.DeviceId {
		case 1:
			card := lightCard()
			ctx.Respond(domain.CardCommandResponse{DeviceId: 1, Card: &card})
			return
		case 2:
			err = domain.ErrUnsupportedAction
		case 5:
			err = domain.ErrCardBusy
		case 6:
			err = errBackend
		default:
			err = domain.ErrUnknownDevice
		}
		ctx.Respond(domain.CardCommandResponse{ActorResponseMixIn: domain.ErrorResponse(err), DeviceId: msg.DeviceId})
	case domain.RefreshRequest:
		m.mu.Lock()
		m.refreshes++
		m.mu.Unlock()
	}
}

func (m *fakeMaster) lastCommand() domain.CardCommandRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.commands[len(m.commands)-1]
}

func (m *fakeMaster) refreshCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refreshes
}

func lightCard() domain.CardSnapshot {
	return domain.CardSnapshot{
		DeviceId: 1,
		Name:     "Light",
		Type:     domain.DEVICE_TYPE_LIGHT,
		Attrs:    map[string]string{domain.ATTR_DEVICE_ID: "1"},
		Slots:    map[string]domain.SlotSnapshot{domain.SLOT_STATE_VALUE: {Text: "ON"}},
	}
}

type fakeScenes struct {
	activated []int
	fail      bool
}

func (f *fakeScenes) ListScenes(ctx context.Context) ([]domain.Scene, error) {
	return []domain.Scene{{Id: 1, Name: "Good Morning"}}, nil
}

func (f *fakeScenes) ActivateScene(ctx context.Context, id int) error {
	if f.fail {
		return errBackend
	}
	f.activated = append(f.activated, id)
	return nil
}

func (f *fakeScenes) GetEnergy(ctx context.Context) (*domain.EnergyReport, error) {
	return &domain.EnergyReport{TotalPower: 42}, nil
}

type testEnv struct {
	server *Server
	master *fakeMaster
	scenes *fakeScenes
	store  *notify.Store
	es     *eventstream.EventStream
}

func newTestEnv(t *testing.T) *testEnv {
	cfg := util.LoadTestConfig()
	logger := zap.NewNop()
	as := actorutil.NewActorSystemWithZapLogger(logger)
	t.Cleanup(as.Shutdown)

	master := &fakeMaster{}
	pid := as.Root.Spawn(actor.PropsFromProducer(func() actor.Actor { return master }))

	es := &eventstream.EventStream{}
	store := notify.NewStore(10)
	store.Attach(es)
	scenes := &fakeScenes{}

	srv := NewServer(cfg, as.Root, pid, scenes, store, es, logger)
	t.Cleanup(srv.Close)
	return &testEnv{server: srv, master: master, scenes: scenes, store: store, es: es}
}

func (env *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	env.server.RegisterRoutes().ServeHTTP(rec, req)
	return rec
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/healthcheck", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"OK"`)
	assert.Contains(t, rec.Body.String(), `"version"`)
}

func TestCardsRoutes(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/cards", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var cards []domain.CardSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cards))
	require.Len(t, cards, 1)
	assert.Equal(t, "ON", cards[0].Text(domain.SLOT_STATE_VALUE))

	rec = env.do(http.MethodGet, "/api/cards/1", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodGet, "/api/cards/42", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(http.MethodGet, "/api/cards/abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCardActionStatusCodes(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/api/cards/1/actions/set-effect", `{"value":"vivid"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	cmd := env.master.lastCommand()
	assert.Equal(t, 1, cmd.DeviceId)
	assert.Equal(t, domain.ACTION_SET_EFFECT, cmd.Action)
	assert.Equal(t, "vivid", cmd.Value)

	rec = env.do(http.MethodPost, "/api/cards/1/actions/toggle", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "", env.master.lastCommand().Value)

	for id, code := range map[string]int{
		"2":  http.StatusUnprocessableEntity,
		"5":  http.StatusConflict,
		"6":  http.StatusBadGateway,
		"99": http.StatusNotFound,
	} {
		rec := env.do(http.MethodPost, "/api/cards/"+id+"/actions/toggle", "")
		assert.Equal(t, code, rec.Code, "device %s", id)
	}
}

func TestScenesAndNotifications(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/scenes", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Good Morning")

	rec = env.do(http.MethodPost, "/api/scenes/1/activate", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int{1}, env.scenes.activated)
	require.Eventually(t, func() bool { return env.master.refreshCount() == 1 }, time.Second, 10*time.Millisecond)

	env.scenes.fail = true
	rec = env.do(http.MethodPost, "/api/scenes/1/activate", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	rec = env.do(http.MethodGet, "/api/energy", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total_power":42`)

	env.es.Publish(domain.NotificationEvent{Notification: domain.Notification{Level: domain.NOTIFICATION_ERROR, Message: "Failed to toggle Fan. Please try again."}})
	rec = env.do(http.MethodGet, "/api/notifications", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Failed to toggle Fan")

	rec = env.do(http.MethodGet, "/api/notifications?since=1", "")
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}

func TestValueString(t *testing.T) {
	assert.Equal(t, "", valueString(nil))
	assert.Equal(t, "zone2", valueString("zone2"))
	assert.Equal(t, "10", valueString(10.0))
	assert.Equal(t, "2.5", valueString(2.5))
}

func TestWebSocket(t *testing.T) {
	env := newTestEnv(t)

	ts := httptest.NewServer(env.server.RegisterRoutes())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() WSMessage {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var msg WSMessage
		require.NoError(t, conn.ReadJSON(&msg))
		return msg
	}

	// mounted cards are sent on connect
	msg := read()
	assert.Equal(t, WS_TYPE_MOUNT, msg.Type)

	require.Eventually(t, func() bool { return env.server.hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	env.es.Publish(domain.CardPatchEvent{Patch: domain.CardPatch{DeviceId: 1, Op: domain.PATCH_TEXT, Slot: domain.SLOT_STATE_VALUE, Value: "OFF"}})
	msg = read()
	assert.Equal(t, WS_TYPE_PATCH, msg.Type)

	require.NoError(t, conn.WriteJSON(WSRequest{Type: WS_TYPE_PING, ID: "p1"}))
	msg = read()
	assert.Equal(t, WS_TYPE_PONG, msg.Type)
	assert.Equal(t, "p1", msg.ID)

	require.NoError(t, conn.WriteJSON(WSRequest{Type: WS_TYPE_COMMAND, ID: "c1", DeviceId: 5, Action: domain.ACTION_TOGGLE}))
	msg = read()
	assert.Equal(t, WS_TYPE_RESULT, msg.Type)
	assert.Equal(t, "c1", msg.ID)
	assert.Equal(t, domain.ErrCardBusy.Error(), msg.Error)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "bogus"}))
	msg = read()
	assert.Equal(t, WS_TYPE_ERROR, msg.Type)
}
