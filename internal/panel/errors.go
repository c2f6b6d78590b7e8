package panel

import "errors"

var (
	// ErrUnknownPanelType is returned by New for an unrecognised panel tag
	// or mode. No panel is created.
	ErrUnknownPanelType = errors.New("panel: unknown panel type")

	// ErrUnparseablePayload is returned by ReceiveUpdate when a payload
	// cannot be decoded. The panel keeps its previous state.
	ErrUnparseablePayload = errors.New("panel: unparseable payload")

	// ErrUnhandledTopic is returned by ReceiveUpdate for a topic the panel
	// does not listen on.
	ErrUnhandledTopic = errors.New("panel: unhandled topic")

	// ErrReadOnly is returned by IssueCommand on display-only panels.
	ErrReadOnly = errors.New("panel: read-only")

	// ErrUnsupportedIntent is returned by IssueCommand when the intent does
	// not apply to the panel's mode.
	ErrUnsupportedIntent = errors.New("panel: unsupported intent")

	// ErrUnknownOption is returned when a selector intent names an option
	// the device does not declare.
	ErrUnknownOption = errors.New("panel: unknown option")

	// ErrNoPublisher is returned by IssueCommand when the panel was built
	// without a publisher.
	ErrNoPublisher = errors.New("panel: no publisher")
)
