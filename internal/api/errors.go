package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kichnu/iotdash/internal/device"
)

// Error is the body of every non-control error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes.
const (
	ErrCodeBadRequest     = "bad_request"
	ErrCodeNotFound       = "not_found"
	ErrCodeConflict       = "conflict"
	ErrCodeInternal       = "internal_error"
	ErrCodeValidation     = "validation_error"
	ErrCodeMethodNotAllow = "method_not_allowed"
)

var codeStatus = map[string]int{
	ErrCodeBadRequest:     http.StatusBadRequest,
	ErrCodeValidation:     http.StatusBadRequest,
	ErrCodeNotFound:       http.StatusNotFound,
	ErrCodeMethodNotAllow: http.StatusMethodNotAllowed,
	ErrCodeConflict:       http.StatusConflict,
	ErrCodeInternal:       http.StatusInternalServerError,
}

// registryErrors classifies catalogue errors; the first match wins.
// An empty message means the error text itself is shown.
var registryErrors = []struct {
	target  error
	code    string
	message string
}{
	{device.ErrDeviceNotFound, ErrCodeNotFound, "device not found"},
	{device.ErrDeviceExists, ErrCodeConflict, "device already exists"},
	{device.ErrInvalidDevice, ErrCodeValidation, ""},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // client may be gone
	}
}

// fail writes an Error with the status belonging to code.
func fail(w http.ResponseWriter, code, message string) {
	status, ok := codeStatus[code]
	if !ok {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, Error{Status: status, Code: code, Message: message})
}

// failRegistry reports a registry error. Unclassified errors become a 500
// saying the operation failed, without leaking the cause.
func failRegistry(w http.ResponseWriter, err error, op string) {
	for _, e := range registryErrors {
		if errors.Is(err, e.target) {
			msg := e.message
			if msg == "" {
				msg = err.Error()
			}
			fail(w, e.code, msg)
			return
		}
	}
	fail(w, ErrCodeInternal, "failed to "+op)
}

// failControl writes a control failure. The dashboard reads the status
// field, so control errors keep the control response shape.
func failControl(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, device.ControlResponse{Status: device.StatusError, Message: message})
}
