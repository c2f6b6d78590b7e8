package dashboard

import "errors"

// Domain errors for the dashboard package.
var (
	// ErrUnknownDevice is returned when an intent targets a device that has
	// no panel on the dashboard.
	ErrUnknownDevice = errors.New("dashboard: unknown device")

	// ErrAlreadyStarted is returned by Start on a running controller.
	ErrAlreadyStarted = errors.New("dashboard: already started")
)
