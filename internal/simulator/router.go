package simulator

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"mime"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/berfenger/homedash/internal/core/domain"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type Handler struct {
	store  *Store
	logger *zap.Logger
}

func NewRouter(store *Store, httpLog bool, logger *zap.Logger) *chi.Mux {
	h := &Handler{store: store, logger: logger.With(zap.String("component", "simulator"))}

	r := chi.NewRouter()
	if httpLog {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)

	r.Get("/api/devices", h.ListDevices)
	r.Route("/api/device/{id}", func(r chi.Router) {
		r.Get("/", h.GetDevice)
		r.Post("/toggle", h.Toggle)
		r.Post("/set_value", h.SetValue)
		r.Post("/set_mode", h.SetMode)
		r.Post("/set_effect", h.SetEffect)
		r.Post("/set_ac_mode", h.SetAcMode)
	})
	r.Get("/api/scenes", h.ListScenes)
	r.Post("/api/scenes/{id}/activate", h.ActivateScene)
	r.Get("/api/energy", h.Energy)
	return r
}

// ListDevices handles GET /api/devices
func (h *Handler) ListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := h.store.List(r.Context())
	if err != nil {
		h.failure(w, "Failed to fetch devices", err)
		return
	}
	writeJSON(w, http.StatusOK, devices)
}

// GetDevice handles GET /api/device/{id}
func (h *Handler) GetDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := deviceID(w, r)
	if !ok {
		return
	}
	device, err := h.store.Get(r.Context(), id)
	h.deviceResult(w, device, err, "Failed to fetch device")
}

// Toggle handles POST /api/device/{id}/toggle
func (h *Handler) Toggle(w http.ResponseWriter, r *http.Request) {
	id, ok := deviceID(w, r)
	if !ok {
		return
	}
	device, err := h.store.Toggle(r.Context(), id)
	h.deviceResult(w, device, err, "Failed to toggle device")
}

// SetValue handles POST /api/device/{id}/set_value
func (h *Handler) SetValue(w http.ResponseWriter, r *http.Request) {
	id, ok := deviceID(w, r)
	if !ok {
		return
	}
	body, ok := jsonBody(w, r)
	if !ok {
		return
	}
	raw, present := body["value"]
	if !present {
		writeError(w, http.StatusBadRequest, "Value is required")
		return
	}
	value, err := integerValue(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Value must be an integer")
		return
	}
	device, err := h.store.SetValue(r.Context(), id, value)
	h.deviceResult(w, device, err, "Failed to update device value")
}

// SetMode handles POST /api/device/{id}/set_mode
func (h *Handler) SetMode(w http.ResponseWriter, r *http.Request) {
	id, ok := deviceID(w, r)
	if !ok {
		return
	}
	mode, ok := stringField(w, r, "mode", "Mode is required")
	if !ok {
		return
	}
	device, err := h.store.SetMode(r.Context(), id, mode)
	h.deviceResult(w, device, err, "Failed to update device mode")
}

// SetEffect handles POST /api/device/{id}/set_effect
func (h *Handler) SetEffect(w http.ResponseWriter, r *http.Request) {
	id, ok := deviceID(w, r)
	if !ok {
		return
	}
	effect, ok := stringField(w, r, "effect", "Effect is required")
	if !ok {
		return
	}
	if !slices.Contains(domain.LIGHT_EFFECTS, effect) {
		writeError(w, http.StatusBadRequest, "Invalid effect. Must be one of: "+strings.Join(domain.LIGHT_EFFECTS, ", "))
		return
	}
	device, err := h.store.SetEffect(r.Context(), id, effect)
	if errors.Is(err, ErrDeviceNotFound) || errors.Is(err, ErrWrongType) {
		writeError(w, http.StatusNotFound, "Device not found or is not a light")
		return
	}
	h.deviceResult(w, device, err, "Failed to update light effect")
}

// SetAcMode handles POST /api/device/{id}/set_ac_mode
func (h *Handler) SetAcMode(w http.ResponseWriter, r *http.Request) {
	id, ok := deviceID(w, r)
	if !ok {
		return
	}
	mode, ok := stringField(w, r, "mode", "Mode is required")
	if !ok {
		return
	}
	if !slices.Contains(domain.AC_MODES, mode) {
		writeError(w, http.StatusBadRequest, "Invalid mode. Must be one of: "+strings.Join(domain.AC_MODES, ", "))
		return
	}
	device, err := h.store.SetAcMode(r.Context(), id, mode)
	if errors.Is(err, ErrDeviceNotFound) || errors.Is(err, ErrWrongType) {
		writeError(w, http.StatusNotFound, "Device not found or is not an air conditioner")
		return
	}
	h.deviceResult(w, device, err, "Failed to update AC mode")
}

// ListScenes handles GET /api/scenes
func (h *Handler) ListScenes(w http.ResponseWriter, r *http.Request) {
	scenes, err := h.store.Scenes(r.Context())
	if err != nil {
		h.failure(w, "Failed to fetch scenes", err)
		return
	}
	writeJSON(w, http.StatusOK, scenes)
}

// ActivateScene handles POST /api/scenes/{id}/activate
func (h *Handler) ActivateScene(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Scene not found")
		return
	}
	scene, err := h.store.ActivateScene(r.Context(), id)
	if errors.Is(err, ErrSceneNotFound) {
		writeError(w, http.StatusNotFound, "Scene not found")
		return
	}
	if err != nil {
		h.failure(w, "Failed to activate scene", err)
		return
	}
	h.logger.Info("scene activated", zap.String("scene", scene.Name))
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "scene": scene.Name})
}

// Energy handles GET /api/energy
func (h *Handler) Energy(w http.ResponseWriter, r *http.Request) {
	report, err := h.store.Energy(r.Context())
	if err != nil {
		h.failure(w, "Failed to fetch energy", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) deviceResult(w http.ResponseWriter, device *domain.DeviceRecord, err error, failure string) {
	switch {
	case errors.Is(err, ErrDeviceNotFound), errors.Is(err, ErrWrongType):
		writeError(w, http.StatusNotFound, "Device not found")
	case err != nil:
		h.failure(w, failure, err)
	default:
		writeJSON(w, http.StatusOK, device)
	}
}

func (h *Handler) failure(w http.ResponseWriter, message string, err error) {
	h.logger.Error(message, zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": message, "message": err.Error()})
}

func deviceID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Device not found")
		return 0, false
	}
	return id, true
}

func jsonBody(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		writeError(w, http.StatusBadRequest, "Content-Type must be application/json")
		return nil, false
	}
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return nil, false
	}
	return body, true
}

func stringField(w http.ResponseWriter, r *http.Request, key, missing string) (string, bool) {
	body, ok := jsonBody(w, r)
	if !ok {
		return "", false
	}
	v, ok := body[key].(string)
	if !ok || v == "" {
		writeError(w, http.StatusBadRequest, missing)
		return "", false
	}
	return v, true
}

// integerValue accepts JSON numbers, truncated toward zero, and integer
// strings.
func integerValue(raw any) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return math.Trunc(v), nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, err
		}
		return float64(i), nil
	default:
		return 0, fmt.Errorf("not an integer: %v", raw)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
