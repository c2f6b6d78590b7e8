package topic

import "errors"

// Domain errors for topic construction and parsing.
var (
	// ErrMalformedTopic is returned when a topic does not match the
	// <namespace>/device/<deviceId>/<suffix...> contract.
	ErrMalformedTopic = errors.New("topic: malformed")

	// ErrInvalidSegment is returned when a namespace, device ID or value
	// name is empty or contains a separator or wildcard character.
	ErrInvalidSegment = errors.New("topic: invalid segment")
)
