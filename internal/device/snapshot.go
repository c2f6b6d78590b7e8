package device

import "time"

// Backend response status values.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// ServerStatus is the body of GET /api/status.
type ServerStatus struct {
	Status        string `json:"status"`
	MQTTConnected bool   `json:"mqtt_connected"`
}

// StatusEntry is the last known state of one device as seen by the backend.
//
// Status is nil until the device has published a status message.
type StatusEntry struct {
	Online   bool              `json:"online"`
	LastSeen *time.Time        `json:"last_seen"`
	Status   *string           `json:"status"`
	Values   map[string]string `json:"values"`
}

// Snapshot maps device IDs to their status entries (GET /api/devices/status).
type Snapshot map[string]StatusEntry

// ControlRequest is the body of POST /api/device/{id}/control.
type ControlRequest struct {
	Command string `json:"command" validate:"required"`
}

// ControlResponse is the reply to a control request.
type ControlResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// OK reports whether the backend accepted the command.
func (r ControlResponse) OK() bool {
	return r.Status == StatusOK
}
