package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kichnu/iotdash/internal/audit"
	"github.com/kichnu/iotdash/internal/device"
)

// handleListDevices returns every device in catalogue order.
//
// Query parameters:
//   - room: filter by room ID
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var (
		devices []device.Device
		err     error
	)
	if roomID := r.URL.Query().Get("room"); roomID != "" {
		devices, err = s.registry.GetDevicesByRoom(ctx, roomID)
	} else {
		devices, err = s.registry.ListDevices(ctx)
	}
	if err != nil {
		failRegistry(w, err, "list devices")
		return
	}
	if devices == nil {
		devices = []device.Device{}
	}
	writeJSON(w, http.StatusOK, devices)
}

// handleGetDevice returns a single device by ID.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	dev, err := s.registry.GetDevice(r.Context(), id)
	if err != nil {
		failRegistry(w, err, "get device")
		return
	}
	writeJSON(w, http.StatusOK, dev)
}

// handleCreateDevice validates and stores a new device descriptor, and
// starts tracking its status.
func (s *Server) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	var dev device.Device
	if err := json.NewDecoder(r.Body).Decode(&dev); err != nil {
		fail(w, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if err := s.registry.CreateDevice(r.Context(), &dev); err != nil {
		failRegistry(w, err, "create device")
		return
	}

	s.tracker.Track(dev.ID)
	s.recordAudit(r.Context(), audit.ActionCreate, dev.ID, map[string]any{"name": dev.Name, "panel": string(dev.Panel)})
	writeJSON(w, http.StatusCreated, dev)
}

// handleUpdateDevice applies a partial update to an existing device.
// The ID in the path always wins over one in the body.
func (s *Server) handleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	existing, err := s.registry.GetDevice(r.Context(), id)
	if err != nil {
		failRegistry(w, err, "get device")
		return
	}
	if err := json.NewDecoder(r.Body).Decode(existing); err != nil {
		fail(w, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	existing.ID = id

	if err := s.registry.UpdateDevice(r.Context(), existing); err != nil {
		failRegistry(w, err, "update device")
		return
	}

	s.recordAudit(r.Context(), audit.ActionUpdate, id, map[string]any{"name": existing.Name, "panel": string(existing.Panel)})
	writeJSON(w, http.StatusOK, existing)
}

// handleDeleteDevice removes a device and its status entry.
func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.registry.DeleteDevice(r.Context(), id); err != nil {
		failRegistry(w, err, "delete device")
		return
	}

	s.tracker.Forget(id)
	s.recordAudit(r.Context(), audit.ActionDelete, id, nil)
	w.WriteHeader(http.StatusNoContent)
}

// handleDevicesStatus returns the status snapshot polled by the dashboard.
func (s *Server) handleDevicesStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.tracker.Snapshot())
}

// controlBody accepts the command as a JSON string or, for structured
// commands, as any other JSON value which is forwarded in compact form.
type controlBody struct {
	Command json.RawMessage `json:"command"`
}

// commandPayload returns the MQTT payload for a control body.
func (b controlBody) commandPayload() (string, error) {
	raw := bytes.TrimSpace(b.Command)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", errors.New("command field is required")
	}

	if raw[0] == '"' {
		var cmd string
		if err := json.Unmarshal(raw, &cmd); err != nil {
			return "", fmt.Errorf("invalid command: %w", err)
		}
		if cmd == "" {
			return "", errors.New("command field is required")
		}
		return cmd, nil
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err != nil {
		return "", fmt.Errorf("invalid command: %w", err)
	}
	return compact.String(), nil
}

// handleControlDevice forwards a command to <device topic>/command.
//
// For gated devices the command is mirrored back as status and value when
// command echo is enabled, for hardware that does not report its state.
func (s *Server) handleControlDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var body controlBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		failControl(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	command, err := body.commandPayload()
	if err != nil {
		failControl(w, http.StatusBadRequest, err.Error())
		return
	}

	dev, err := s.registry.GetDevice(r.Context(), id)
	switch {
	case errors.Is(err, device.ErrDeviceNotFound):
		failControl(w, http.StatusNotFound, "device not found")
		return
	case err != nil:
		failControl(w, http.StatusInternalServerError, "failed to get device")
		return
	}

	if s.mqtt == nil {
		failControl(w, http.StatusInternalServerError, "mqtt not configured")
		return
	}
	if err := s.mqtt.Publish(dev.CommandTopic(), []byte(command), s.qos, false); err != nil {
		s.logger.Warn("command publish failed", "device_id", id, "error", err)
		failControl(w, http.StatusInternalServerError, "failed to send command")
		return
	}

	if s.devices.EchoCommands && dev.Mode() == device.ModeToggleSlider {
		if err := s.tracker.ApplyGatedCommand(dev, command, s.mqtt, s.qos); err != nil {
			s.logger.Warn("gated command echo failed", "device_id", id, "error", err)
		}
	}

	s.logger.Info("device command sent",
		"device_id", id,
		"topic", dev.CommandTopic(),
		"command", command,
		"request_id", requestIDFrom(r.Context()),
	)
	s.recordAudit(r.Context(), audit.ActionCommand, id, map[string]any{
		"command":    command,
		"request_id": requestIDFrom(r.Context()),
	})

	writeJSON(w, http.StatusOK, device.ControlResponse{
		Status:  device.StatusOK,
		Message: fmt.Sprintf("command sent to %s", id),
	})
}
