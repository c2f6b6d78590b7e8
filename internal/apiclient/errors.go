package apiclient

import "errors"

// Sentinel errors for REST client operations.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, apiclient.ErrUnexpectedStatus) {
//	    // backend answered with a non-success HTTP status
//	}
var (
	// ErrUnexpectedStatus indicates the backend answered with an HTTP status
	// the client cannot interpret.
	ErrUnexpectedStatus = errors.New("apiclient: unexpected HTTP status")

	// ErrDecode indicates the response body is not the expected JSON.
	ErrDecode = errors.New("apiclient: invalid response body")

	// ErrInvalidBaseURL indicates the configured base URL cannot be used.
	ErrInvalidBaseURL = errors.New("apiclient: invalid base URL")
)
