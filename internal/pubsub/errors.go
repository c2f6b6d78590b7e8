package pubsub

import (
	"errors"

	"github.com/kichnu/iotdash/internal/topic"
)

// Domain errors for the pubsub package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, pubsub.ErrCommandRejected) {
//	    // backend refused the command
//	}
var (
	// ErrTransport is returned when a probe, fetch or control request fails
	// at the transport level.
	ErrTransport = errors.New("pubsub: transport failure")

	// ErrInvalidPublishTopic is returned when publishing to a topic that is
	// not a device command topic of the configured namespace.
	ErrInvalidPublishTopic = errors.New("pubsub: invalid publish topic")

	// ErrCommandRejected is returned when the backend answers a control
	// request with a non-ok status.
	ErrCommandRejected = errors.New("pubsub: command rejected")

	// ErrMalformedTopic is returned when a topic cannot be parsed.
	ErrMalformedTopic = topic.ErrMalformedTopic
)
