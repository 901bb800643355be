package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/berfenger/homedash/internal/config"
	"github.com/berfenger/homedash/internal/core/domain"
	"github.com/berfenger/homedash/internal/core/port"
	"github.com/berfenger/homedash/internal/notify"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	_ "github.com/joho/godotenv/autoload"
	"go.uber.org/zap"
)

const queryTimeout = 5 * time.Second

type Server struct {
	port           uint
	httpLog        bool
	commandTimeout time.Duration
	rootContext    *actor.RootContext
	masterActor    *actor.PID
	scenes         port.SceneAPI
	notifications  *notify.Store
	eventStream    *eventstream.EventStream
	hub            *Hub
	logger         *zap.Logger
}

func NewServer(cfg config.Config, rootContext *actor.RootContext, masterActor *actor.PID, scenes port.SceneAPI,
	notifications *notify.Store, eventStream *eventstream.EventStream, logger *zap.Logger) *Server {
	s := &Server{
		port:           cfg.Port,
		httpLog:        cfg.HttpLog,
		commandTimeout: time.Duration(cfg.CommandConfig.TimeoutMillis) * time.Millisecond,
		rootContext:    rootContext,
		masterActor:    masterActor,
		scenes:         scenes,
		notifications:  notifications,
		eventStream:    eventStream,
		logger:         logger.With(zap.String("component", "server")),
	}
	if s.commandTimeout <= 0 {
		s.commandTimeout = 30 * time.Second
	}
	s.hub = NewHub(cfg.WebSocketConfig, s, s.logger)
	s.hub.Attach(eventStream)
	return s
}

func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: s.commandTimeout + 5*time.Second,
	}
}

// Close disconnects WebSocket clients and stops listening to events.
func (s *Server) Close() {
	s.hub.Close(s.eventStream)
}

// Command runs a card action through the master actor.
func (s *Server) Command(deviceId int, action, value string) (*domain.CardSnapshot, error) {
	req := domain.CardCommandRequest{
		CardRequestMixIn: domain.CardRequestMixIn{DeviceId: deviceId},
		Action:           action,
		Value:            value,
	}
	res, err := s.rootContext.RequestFuture(s.masterActor, req, s.commandTimeout).Result()
	if err != nil {
		return nil, err
	}
	resp, ok := res.(domain.CardCommandResponse)
	if !ok {
		return nil, fmt.Errorf("unexpected response %T", res)
	}
	return resp.Card, resp.GetResponseError()
}

func (s *Server) Cards() ([]domain.CardSnapshot, error) {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.GetCardsRequest{}, queryTimeout).Result()
	if err != nil {
		return nil, err
	}
	resp, ok := res.(domain.GetCardsResponse)
	if !ok {
		return nil, fmt.Errorf("unexpected response %T", res)
	}
	return resp.Cards, resp.GetResponseError()
}

func (s *Server) Card(deviceId int) (*domain.CardSnapshot, error) {
	req := domain.GetCardRequest{CardRequestMixIn: domain.CardRequestMixIn{DeviceId: deviceId}}
	res, err := s.rootContext.RequestFuture(s.masterActor, req, queryTimeout).Result()
	if err != nil {
		return nil, err
	}
	resp, ok := res.(domain.GetCardResponse)
	if !ok {
		return nil, fmt.Errorf("unexpected response %T", res)
	}
	return resp.Card, resp.GetResponseError()
}
