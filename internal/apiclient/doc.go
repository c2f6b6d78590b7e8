// Package apiclient is the HTTP client for the iotdash REST API.
//
// It implements pubsub.Transport, so the dashboard's pub/sub emulator can
// probe connectivity, poll the device status snapshot, and send commands
// without a broker connection:
//
//	client, err := apiclient.New("http://localhost:5000/api", 5*time.Second)
//	if err != nil {
//	    return err
//	}
//	em := pubsub.New(client, pubsub.WithPollInterval(5*time.Second))
//
// Control requests that the backend refuses are returned as a
// device.ControlResponse with status "error" rather than as a Go error, so
// callers can tell a rejected command from a failed request.
package apiclient
