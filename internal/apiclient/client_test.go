package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kichnu/iotdash/internal/device"
	"github.com/kichnu/iotdash/internal/pubsub"
)

var _ pubsub.Transport = (*Client)(nil)

// newTestClient creates a client bound to a test server running handler.
func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := New(server.URL+"/api/", time.Second)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return client
}

func writeBody(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

// ============================================================================
// Constructor
// ============================================================================

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		wantErr bool
	}{
		{"http", "http://localhost:5000/api", false},
		{"https with trailing slash", "https://panel.local/api/", false},
		{"missing scheme", "localhost:5000/api", true},
		{"unsupported scheme", "ftp://host/api", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.baseURL, 0)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New(%q) error = %v, wantErr %v", tt.baseURL, err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidBaseURL) {
					t.Errorf("error = %v, want ErrInvalidBaseURL", err)
				}
				return
			}
			if c.httpClient.Timeout != DefaultTimeout {
				t.Errorf("timeout = %v, want %v", c.httpClient.Timeout, DefaultTimeout)
			}
		})
	}
}

func TestNew_TrimsTrailingSlash(t *testing.T) {
	c, err := New("http://localhost:5000/api/", time.Second)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if got := c.BaseURL(); got != "http://localhost:5000/api" {
		t.Errorf("BaseURL() = %q, want %q", got, "http://localhost:5000/api")
	}
}

// ============================================================================
// Reads
// ============================================================================

func TestStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/status" {
			t.Errorf("request = %s %s, want GET /api/status", r.Method, r.URL.Path)
		}
		writeBody(w, http.StatusOK, `{"status":"ok","mqtt_connected":true}`)
	})

	status, err := client.Status(context.Background())
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if status.Status != "ok" || !status.MQTTConnected {
		t.Errorf("Status() = %+v, want ok and connected", status)
	}
}

func TestStatus_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"server error", http.StatusInternalServerError, `{}`, ErrUnexpectedStatus},
		{"not found", http.StatusNotFound, `{}`, ErrUnexpectedStatus},
		{"invalid JSON", http.StatusOK, `<html>`, ErrDecode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				writeBody(w, tt.status, tt.body)
			})

			if _, err := client.Status(context.Background()); !errors.Is(err, tt.wantErr) {
				t.Errorf("Status() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestStatus_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client, err := New(url+"/api", 200*time.Millisecond)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := client.Status(context.Background()); err == nil {
		t.Error("Status() error = nil for closed server")
	}
}

func TestStatus_ContextCancelled(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeBody(w, http.StatusOK, `{"status":"ok","mqtt_connected":true}`)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := client.Status(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Status() error = %v, want context.Canceled", err)
	}
}

func TestDevicesStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/devices/status" {
			t.Errorf("path = %q, want /api/devices/status", r.URL.Path)
		}
		writeBody(w, http.StatusOK, `{
			"dev7": {"online": true, "last_seen": "2026-10-19T12:00:00Z", "status": "on", "values": {"brightness": "40"}},
			"dev8": {"online": false, "last_seen": null, "status": null, "values": {}}
		}`)
	})

	snap, err := client.DevicesStatus(context.Background())
	if err != nil {
		t.Fatalf("DevicesStatus() error = %v", err)
	}
	if len(snap) != 2 {
		t.Fatalf("len(snapshot) = %d, want 2", len(snap))
	}

	dev7 := snap["dev7"]
	if !dev7.Online || dev7.Status == nil || *dev7.Status != "on" {
		t.Errorf("dev7 = %+v, want online with status on", dev7)
	}
	if dev7.Values["brightness"] != "40" {
		t.Errorf("dev7 brightness = %q, want 40", dev7.Values["brightness"])
	}
	if dev7.LastSeen == nil {
		t.Error("dev7 last_seen = nil, want timestamp")
	}

	if dev8 := snap["dev8"]; dev8.Status != nil || dev8.Online {
		t.Errorf("dev8 = %+v, want offline with null status", dev8)
	}
}

func TestDevicesStatus_Null(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeBody(w, http.StatusOK, `null`)
	})

	snap, err := client.DevicesStatus(context.Background())
	if err != nil {
		t.Fatalf("DevicesStatus() error = %v", err)
	}
	if snap == nil || len(snap) != 0 {
		t.Errorf("DevicesStatus() = %v, want empty snapshot", snap)
	}
}

func TestDevicesAndRooms(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/devices":
			writeBody(w, http.StatusOK, `[{"id":"dev7","name":"Lamp","type":"light","room":"kitchen","panel":"BinaryControl","topic":"iot/device/dev7"}]`)
		case "/api/rooms":
			writeBody(w, http.StatusOK, `[{"id":"kitchen","name":"Kitchen","sort_order":1}]`)
		default:
			writeBody(w, http.StatusNotFound, `{}`)
		}
	})
	ctx := context.Background()

	devices, err := client.Devices(ctx)
	if err != nil {
		t.Fatalf("Devices() error = %v", err)
	}
	if len(devices) != 1 || devices[0].ID != "dev7" || devices[0].Panel != device.PanelBinaryControl {
		t.Errorf("Devices() = %+v, want dev7 BinaryControl", devices)
	}

	rooms, err := client.Rooms(ctx)
	if err != nil {
		t.Fatalf("Rooms() error = %v", err)
	}
	if len(rooms) != 1 || rooms[0].ID != "kitchen" {
		t.Errorf("Rooms() = %+v, want kitchen", rooms)
	}
}

// ============================================================================
// Control
// ============================================================================

func TestControlDevice(t *testing.T) {
	var gotPath, gotContentType string
	var gotBody device.ControlRequest

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decoding body: %v", err)
		}
		writeBody(w, http.StatusOK, `{"status":"ok","message":"command sent to dev7"}`)
	})

	resp, err := client.ControlDevice(context.Background(), "dev7", "on")
	if err != nil {
		t.Fatalf("ControlDevice() error = %v", err)
	}
	if !resp.OK() {
		t.Errorf("ControlDevice() = %+v, want ok", resp)
	}
	if gotPath != "/api/device/dev7/control" {
		t.Errorf("path = %q, want /api/device/dev7/control", gotPath)
	}
	if gotContentType != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", gotContentType)
	}
	if gotBody.Command != "on" {
		t.Errorf("command = %q, want on", gotBody.Command)
	}
}

func TestControlDevice_Responses(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantOK     bool
		wantErr    error
		wantReject bool
	}{
		{"accepted", http.StatusOK, `{"status":"ok","message":"sent"}`, true, nil, false},
		{"rejected with 404", http.StatusNotFound, `{"status":"error","message":"device not found"}`, false, nil, true},
		{"rejected with 500", http.StatusInternalServerError, `{"status":"error","message":"failed to send command"}`, false, nil, true},
		{"error status without body", http.StatusBadGateway, `bad gateway`, false, ErrUnexpectedStatus, false},
		{"success without control body", http.StatusOK, `{}`, false, ErrDecode, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				writeBody(w, tt.status, tt.body)
			})

			resp, err := client.ControlDevice(context.Background(), "dev7", "on")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ControlDevice() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ControlDevice() error = %v", err)
			}
			if resp.OK() != tt.wantOK {
				t.Errorf("OK() = %v, want %v", resp.OK(), tt.wantOK)
			}
			if tt.wantReject && resp.Message == "" {
				t.Error("rejection message is empty")
			}
		})
	}
}

func TestControlDevice_EscapesID(t *testing.T) {
	var gotRawPath string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotRawPath = r.URL.EscapedPath()
		writeBody(w, http.StatusOK, `{"status":"ok","message":"sent"}`)
	})

	if _, err := client.ControlDevice(context.Background(), "a b", "on"); err != nil {
		t.Fatalf("ControlDevice() error = %v", err)
	}
	if gotRawPath != "/api/device/a%20b/control" {
		t.Errorf("path = %q, want /api/device/a%%20b/control", gotRawPath)
	}
}

// ============================================================================
// Emulator integration
// ============================================================================

func TestEmulatorPublishThroughClient(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/device/dev7/control":
			writeBody(w, http.StatusOK, `{"status":"ok","message":"sent"}`)
		case "/api/device/ghost/control":
			writeBody(w, http.StatusNotFound, `{"status":"error","message":"device not found"}`)
		default:
			writeBody(w, http.StatusNotFound, `{}`)
		}
	})

	em := pubsub.New(client)
	ctx := context.Background()

	if err := em.Publish(ctx, "iot/device/dev7/command", "on"); err != nil {
		t.Errorf("Publish() error = %v", err)
	}
	if err := em.Publish(ctx, "iot/device/ghost/command", "on"); !errors.Is(err, pubsub.ErrCommandRejected) {
		t.Errorf("Publish() to unknown device error = %v, want ErrCommandRejected", err)
	}
}
