package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/berfenger/homedash/internal/config"
	"github.com/berfenger/homedash/internal/core/domain"
	"github.com/berfenger/homedash/internal/core/port"

	"github.com/carlmjohnson/versioninfo"
	"go.uber.org/zap"
)

var _ port.Backend = (*Client)(nil)

// StatusError is returned for every non-2xx response, whatever the payload.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend returned status %d: %s", e.Code, e.Body)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
	logger     *zap.Logger
}

func NewClient(cfg config.BackendConfig, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(cfg.Url, "/"),
		httpClient: &http.Client{Timeout: time.Duration(cfg.TimeoutMillis) * time.Millisecond},
		userAgent:  "homedash/" + versioninfo.Short(),
		logger:     logger,
	}
}

func (c *Client) ListDevices(ctx context.Context) ([]domain.DeviceRecord, error) {
	var devices []domain.DeviceRecord
	if err := c.do(ctx, http.MethodGet, "/api/devices", nil, &devices); err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}
	return devices, nil
}

func (c *Client) GetDevice(ctx context.Context, id int) (*domain.DeviceRecord, error) {
	return c.deviceCall(ctx, http.MethodGet, fmt.Sprintf("/api/device/%d", id), nil)
}

func (c *Client) Toggle(ctx context.Context, id int) (*domain.DeviceRecord, error) {
	return c.deviceCall(ctx, http.MethodPost, fmt.Sprintf("/api/device/%d/toggle", id), nil)
}

func (c *Client) SetValue(ctx context.Context, id int, value float64) (*domain.DeviceRecord, error) {
	return c.deviceCall(ctx, http.MethodPost, fmt.Sprintf("/api/device/%d/set_value", id), map[string]any{"value": value})
}

func (c *Client) SetMode(ctx context.Context, id int, mode string) (*domain.DeviceRecord, error) {
	return c.deviceCall(ctx, http.MethodPost, fmt.Sprintf("/api/device/%d/set_mode", id), map[string]any{"mode": mode})
}

func (c *Client) SetEffect(ctx context.Context, id int, effect string) (*domain.DeviceRecord, error) {
	return c.deviceCall(ctx, http.MethodPost, fmt.Sprintf("/api/device/%d/set_effect", id), map[string]any{"effect": effect})
}

func (c *Client) SetAcMode(ctx context.Context, id int, mode string) (*domain.DeviceRecord, error) {
	return c.deviceCall(ctx, http.MethodPost, fmt.Sprintf("/api/device/%d/set_ac_mode", id), map[string]any{"mode": mode})
}

func (c *Client) ListScenes(ctx context.Context) ([]domain.Scene, error) {
	var scenes []domain.Scene
	if err := c.do(ctx, http.MethodGet, "/api/scenes", nil, &scenes); err != nil {
		return nil, fmt.Errorf("listing scenes: %w", err)
	}
	return scenes, nil
}

func (c *Client) ActivateScene(ctx context.Context, id int) error {
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/scenes/%d/activate", id), nil, nil); err != nil {
		return fmt.Errorf("activating scene %d: %w", id, err)
	}
	return nil
}

func (c *Client) GetEnergy(ctx context.Context) (*domain.EnergyReport, error) {
	var report domain.EnergyReport
	if err := c.do(ctx, http.MethodGet, "/api/energy", nil, &report); err != nil {
		return nil, fmt.Errorf("reading energy: %w", err)
	}
	return &report, nil
}

func (c *Client) deviceCall(ctx context.Context, method, path string, body any) (*domain.DeviceRecord, error) {
	var record domain.DeviceRecord
	if err := c.do(ctx, method, path, body, &record); err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return &record, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	c.logger.Debug(fmt.Sprintf("backend %s %s -> %d (%s)", method, path, resp.StatusCode, time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
