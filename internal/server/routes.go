package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/berfenger/homedash/internal/core/domain"

	"github.com/carlmjohnson/versioninfo"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

type actionBody struct {
	Value any `json:"value"`
}

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	e.HideBanner = true
	if s.httpLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())

	e.GET("/healthcheck", s.HealthCheckHandler)

	api := e.Group("/api")
	api.GET("/cards", s.CardsHandler)
	api.GET("/cards/:id", s.CardHandler)
	api.POST("/cards/:id/actions/:action", s.CardActionHandler)
	api.GET("/notifications", s.NotificationsHandler)
	api.GET("/scenes", s.ScenesHandler)
	api.POST("/scenes/:id/activate", s.ActivateSceneHandler)
	api.GET("/energy", s.EnergyHandler)

	e.GET("/ws", s.WebSocketHandler)

	return e
}

func (s *Server) HealthCheckHandler(c echo.Context) error {
	body := map[string]string{"status": "FAIL", "version": versioninfo.Short()}
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.ActorHealthRequest{}, queryTimeout).Result()
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, body)
	}
	if response, ok := res.(domain.ActorHealthResponse); ok && response.Healthy {
		body["status"] = "OK"
		return c.JSON(http.StatusOK, body)
	}
	return c.JSON(http.StatusServiceUnavailable, body)
}

func (s *Server) CardsHandler(c echo.Context) error {
	cards, err := s.Cards()
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, errorBody{Error: err.Error()})
	}
	if cards == nil {
		cards = []domain.CardSnapshot{}
	}
	return c.JSON(http.StatusOK, cards)
}

func (s *Server) CardHandler(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid device id"})
	}
	card, err := s.Card(id)
	if err != nil {
		return c.JSON(commandStatus(err), errorBody{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, card)
}

func (s *Server) CardActionHandler(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid device id"})
	}
	var body actionBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid body"})
	}
	action := c.Param("action")

	card, err := s.Command(id, action, valueString(body.Value))
	if err != nil {
		s.logger.Info("card action failed", zap.Int("device", id), zap.String("action", action), zap.Error(err))
		return c.JSON(commandStatus(err), errorBody{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, card)
}

func (s *Server) NotificationsHandler(c echo.Context) error {
	if since := c.QueryParam("since"); since != "" {
		lastID, err := strconv.ParseInt(since, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid since"})
		}
		return c.JSON(http.StatusOK, s.notifications.GetSince(lastID))
	}
	return c.JSON(http.StatusOK, s.notifications.GetAll())
}

func (s *Server) ScenesHandler(c echo.Context) error {
	scenes, err := s.scenes.ListScenes(s.requestContext(c))
	if err != nil {
		return c.JSON(http.StatusBadGateway, errorBody{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, scenes)
}

func (s *Server) ActivateSceneHandler(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid scene id"})
	}
	if err := s.scenes.ActivateScene(s.requestContext(c), id); err != nil {
		return c.JSON(http.StatusBadGateway, errorBody{Error: err.Error()})
	}
	// cards catch up with the scene on the next poll, force it now
	s.rootContext.Send(s.masterActor, domain.RefreshRequest{})
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) EnergyHandler(c echo.Context) error {
	energy, err := s.scenes.GetEnergy(s.requestContext(c))
	if err != nil {
		return c.JSON(http.StatusBadGateway, errorBody{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, energy)
}

func (s *Server) WebSocketHandler(c echo.Context) error {
	// the hub logs upgrade failures, the response is already written
	_ = s.hub.ServeWS(c.Response(), c.Request())
	return nil
}

func (s *Server) requestContext(c echo.Context) context.Context {
	return c.Request().Context()
}

func commandStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrCardBusy):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUnknownDevice):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUnsupportedAction), errors.Is(err, domain.ErrInvalidValue):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}

// valueString renders a JSON value the way a control data attribute holds it.
func valueString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}
