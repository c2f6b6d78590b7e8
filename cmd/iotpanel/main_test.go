package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/kichnu/iotdash/internal/device"
	"github.com/kichnu/iotdash/internal/pubsub"
)

// fakeBackend serves the REST endpoints the dashboard uses.
type fakeBackend struct {
	mu       sync.Mutex
	commands []string
	reject   bool
}

func (b *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, device.ServerStatus{Status: "ok", MQTTConnected: true})
	})
	mux.HandleFunc("GET /api/devices", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, []device.Device{
			{ID: "lamp", Name: "Lamp", Type: "light", Panel: device.PanelBinaryControl},
			{ID: "climate", Name: "Climate", Type: "sensor", Panel: device.PanelValueDisplay},
		})
	})
	mux.HandleFunc("GET /api/devices/status", func(w http.ResponseWriter, _ *http.Request) {
		on := "on"
		writeJSON(w, http.StatusOK, device.Snapshot{
			"lamp":    {Online: true, Status: &on, Values: map[string]string{}},
			"climate": {Online: false, Values: map[string]string{"temperature": "21.5", "humidity": "40"}},
		})
	})
	mux.HandleFunc("POST /api/device/{id}/control", func(w http.ResponseWriter, r *http.Request) {
		var req device.ControlRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.reject {
			writeJSON(w, http.StatusInternalServerError, device.ControlResponse{Status: "error", Message: "broker down"})
			return
		}
		b.commands = append(b.commands, r.PathValue("id")+"="+req.Command)
		writeJSON(w, http.StatusOK, device.ControlResponse{Status: "ok"})
	})
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// runApp runs the CLI against backend and returns its output.
func runApp(t *testing.T, backend *fakeBackend, args ...string) (string, error) {
	t.Helper()
	t.Setenv("IOTDASH_CONFIG", "")

	srv := httptest.NewServer(backend.handler())
	t.Cleanup(srv.Close)

	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out

	argv := append([]string{"iotpanel", "--api-url", srv.URL + "/api"}, args...)
	err := app.Run(argv)
	return out.String(), err
}

// ==================== status ====================

func TestStatusCommand(t *testing.T) {
	out, err := runApp(t, &fakeBackend{}, "status")
	if err != nil {
		t.Fatalf("status error = %v", err)
	}

	for _, want := range []string{
		"(ok)",
		"MQTT:    connected",
		"Devices: 2",
		"lamp",
		"online",
		"humidity=40 temperature=21.5",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("status output missing %q:\n%s", want, out)
		}
	}
}

func TestStatusCommand_Unreachable(t *testing.T) {
	t.Setenv("IOTDASH_CONFIG", "")

	app := newApp()
	var out bytes.Buffer
	app.Writer = &out
	app.ErrWriter = &out

	err := app.Run([]string{"iotpanel", "--api-url", "http://127.0.0.1:1/api", "status"})
	if err == nil || !strings.Contains(err.Error(), "API unreachable") {
		t.Errorf("status error = %v, want API unreachable", err)
	}
}

func TestStatusCommand_InvalidAPIURL(t *testing.T) {
	_, err := runApp(t, &fakeBackend{}, "--api-url", "not a url", "status")
	if err == nil {
		t.Fatal("status with invalid api url should fail")
	}
}

// ==================== send ====================

func TestSendCommand(t *testing.T) {
	backend := &fakeBackend{}
	out, err := runApp(t, backend, "send", "lamp", "on")
	if err != nil {
		t.Fatalf("send error = %v", err)
	}

	if !strings.Contains(out, "iot/device/lamp/command <- on") {
		t.Errorf("send output = %q", out)
	}
	backend.mu.Lock()
	defer backend.mu.Unlock()
	if len(backend.commands) != 1 || backend.commands[0] != "lamp=on" {
		t.Errorf("commands = %v, want [lamp=on]", backend.commands)
	}
}

func TestSendCommand_Errors(t *testing.T) {
	tests := []struct {
		name    string
		backend *fakeBackend
		args    []string
		wantErr error
	}{
		{name: "missing command", backend: &fakeBackend{}, args: []string{"send", "lamp"}, wantErr: errUsage},
		{name: "too many args", backend: &fakeBackend{}, args: []string{"send", "lamp", "on", "now"}, wantErr: errUsage},
		{name: "rejected", backend: &fakeBackend{reject: true}, args: []string{"send", "lamp", "on"}, wantErr: pubsub.ErrCommandRejected},
		{name: "bad device id", backend: &fakeBackend{}, args: []string{"send", "a/b", "on"}, wantErr: pubsub.ErrInvalidPublishTopic},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runApp(t, tt.backend, tt.args...)
			if err == nil {
				t.Fatal("send should fail")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("send error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// ==================== helpers ====================

func TestFormatValues(t *testing.T) {
	tests := []struct {
		name   string
		values map[string]string
		want   string
	}{
		{name: "empty", values: nil, want: "-"},
		{name: "sorted", values: map[string]string{"b": "2", "a": "1"}, want: "a=1 b=2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatValues(tt.values); got != tt.want {
				t.Errorf("formatValues() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNamespaceFlag(t *testing.T) {
	backend := &fakeBackend{}
	out, err := runApp(t, backend, "--namespace", "home", "send", "lamp", "off")
	if err != nil {
		t.Fatalf("send error = %v", err)
	}
	if !strings.Contains(out, "home/device/lamp/command <- off") {
		t.Errorf("send output = %q", out)
	}
}
