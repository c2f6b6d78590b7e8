package device

import "errors"

// Sentinel errors; match with errors.Is.
var (
	ErrDeviceNotFound = errors.New("device: not found")
	ErrDeviceExists   = errors.New("device: already exists")

	// ErrInvalidDevice is matched by *ValidationErrors.
	ErrInvalidDevice = errors.New("device: invalid")

	// ErrForeignNamespace means a device topic lives outside the configured
	// namespace, where neither the broker subscriptions nor the dashboard
	// would ever see it.
	ErrForeignNamespace = errors.New("device: topic outside namespace")

	// ErrInvalidCommand means a command payload does not fit the device.
	ErrInvalidCommand = errors.New("device: invalid command")

	// ErrInvalidCatalogue means a seed file could not be decoded.
	ErrInvalidCatalogue = errors.New("device: invalid catalogue")
)
