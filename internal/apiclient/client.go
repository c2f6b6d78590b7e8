package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kichnu/iotdash/internal/device"
	"github.com/kichnu/iotdash/internal/location"
)

// DefaultTimeout bounds each request when no timeout is configured.
const DefaultTimeout = 5 * time.Second

// maxResponseSize caps how much of a response body is read.
const maxResponseSize = 10 << 20 // 10 MB

// Client talks to the REST API rooted at a base URL such as
// http://localhost:5000/api.
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client for the API at baseURL.
//
// Parameters:
//   - baseURL: API root including its prefix, e.g. http://host:5000/api
//   - timeout: Per-request timeout (DefaultTimeout if zero or negative)
//
// Returns:
//   - *Client: Client ready for use
//   - error: ErrInvalidBaseURL if baseURL is not an absolute http(s) URL
func New(baseURL string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidBaseURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, baseURL)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Status probes GET /status.
func (c *Client) Status(ctx context.Context) (device.ServerStatus, error) {
	var status device.ServerStatus
	if err := c.getJSON(ctx, "/status", &status); err != nil {
		return device.ServerStatus{}, err
	}
	return status, nil
}

// DevicesStatus fetches the status snapshot from GET /devices/status.
func (c *Client) DevicesStatus(ctx context.Context) (device.Snapshot, error) {
	var snap device.Snapshot
	if err := c.getJSON(ctx, "/devices/status", &snap); err != nil {
		return nil, err
	}
	if snap == nil {
		snap = device.Snapshot{}
	}
	return snap, nil
}

// Devices fetches the device catalogue from GET /devices.
func (c *Client) Devices(ctx context.Context) ([]device.Device, error) {
	var devices []device.Device
	if err := c.getJSON(ctx, "/devices", &devices); err != nil {
		return nil, err
	}
	return devices, nil
}

// Rooms fetches the room list from GET /rooms.
func (c *Client) Rooms(ctx context.Context) ([]location.Room, error) {
	var rooms []location.Room
	if err := c.getJSON(ctx, "/rooms", &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

// ControlDevice sends a command with POST /device/{id}/control.
//
// A refusal from the backend (status "error" in the body, whatever the HTTP
// status) is returned as the response with a nil error.
//
// Parameters:
//   - ctx: Context for cancellation
//   - deviceID: Target device
//   - command: Command payload forwarded to the device
//
// Returns:
//   - device.ControlResponse: The backend's answer
//   - error: If the request fails or the answer is not a control response
func (c *Client) ControlDevice(ctx context.Context, deviceID, command string) (device.ControlResponse, error) {
	body, err := json.Marshal(device.ControlRequest{Command: command})
	if err != nil {
		return device.ControlResponse{}, fmt.Errorf("encoding control request: %w", err)
	}

	path := "/device/" + url.PathEscape(deviceID) + "/control"
	status, raw, err := c.do(ctx, http.MethodPost, path, body)
	if err != nil {
		return device.ControlResponse{}, err
	}

	var resp device.ControlResponse
	if err := json.Unmarshal(raw, &resp); err != nil || resp.Status == "" {
		if status < 200 || status >= 300 {
			return device.ControlResponse{}, fmt.Errorf("%w: control %s: HTTP %d", ErrUnexpectedStatus, deviceID, status)
		}
		return device.ControlResponse{}, fmt.Errorf("%w: control %s", ErrDecode, deviceID)
	}
	return resp, nil
}

// getJSON performs a GET and decodes a 200 response into out.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	status, raw, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("%w: GET %s: HTTP %d", ErrUnexpectedStatus, path, status)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: GET %s: %w", ErrDecode, path, err)
	}
	return nil
}

// do executes one request and returns the status code and body.
func (c *Client) do(ctx context.Context, method, path string, body []byte) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return 0, nil, fmt.Errorf("reading response: %w", err)
	}

	return resp.StatusCode, raw, nil
}
