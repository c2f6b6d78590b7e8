package mqtt

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/kichnu/iotdash/internal/infrastructure/config"
)

const (
	connectTimeout  = 10 * time.Second
	ackTimeout      = 5 * time.Second
	keepAlive       = 60 * time.Second
	disconnectQuiet = 1000 // ms granted to in-flight work on Close

	// Reconnect bounds used when the config leaves them at zero.
	defaultRetryInterval    = 1 * time.Second
	defaultMaxRetryInterval = 60 * time.Second

	maxQoS = 2

	// MaxPayloadSize is the largest payload Publish accepts.
	MaxPayloadSize = 1 << 20
)

// Reasons carried in offline system status messages.
const (
	reasonShutdown   = "graceful_shutdown"
	reasonConnection = "unexpected_disconnect"
)

// systemStatus is the retained payload on <namespace>/system/status.
type systemStatus struct {
	Status    string `json:"status"`
	ClientID  string `json:"client_id"`
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`
}

func statusPayload(status, clientID, reason string, at time.Time) []byte {
	b, err := json.Marshal(systemStatus{
		Status:    status,
		ClientID:  clientID,
		Reason:    reason,
		Timestamp: at.UTC().Format(time.RFC3339),
	})
	if err != nil {
		// Only string fields; Marshal cannot fail.
		return []byte(`{"status":"` + status + `"}`)
	}
	return b
}

// brokerURL formats the broker address, ssl:// when TLS is enabled.
func brokerURL(b config.MQTTBrokerConfig) string {
	scheme := "tcp"
	if b.TLS {
		scheme = "ssl"
	}
	return scheme + "://" + net.JoinHostPort(b.Host, strconv.Itoa(b.Port))
}

func retryIntervals(r config.MQTTReconnectConfig) (initial, maximum time.Duration) {
	initial, maximum = defaultRetryInterval, defaultMaxRetryInterval
	if r.InitialDelay > 0 {
		initial = time.Duration(r.InitialDelay) * time.Second
	}
	if r.MaxDelay > 0 {
		maximum = time.Duration(r.MaxDelay) * time.Second
	}
	if maximum < initial {
		maximum = initial
	}
	return initial, maximum
}

// newClientOptions maps the config onto paho options. The will message
// marks the backend offline on <namespace>/system/status if the session
// drops without a Close.
func newClientOptions(cfg config.MQTTConfig, topics Topics) *pahomqtt.ClientOptions {
	initial, maximum := retryIntervals(cfg.Reconnect)

	opts := pahomqtt.NewClientOptions().
		AddBroker(brokerURL(cfg.Broker)).
		SetClientID(cfg.Broker.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetryInterval(initial).
		SetMaxReconnectInterval(maximum).
		SetConnectTimeout(connectTimeout).
		SetKeepAlive(keepAlive)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username).SetPassword(cfg.Auth.Password)
	}
	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	will := statusPayload("offline", cfg.Broker.ClientID, reasonConnection, time.Now())
	opts.SetBinaryWill(topics.SystemStatus(), will, 1, true)

	return opts
}

// await waits for a paho token and folds its outcome into op.
func await(token pahomqtt.Token, timeout time.Duration, op error) error {
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("%w: %w after %v", op, ErrTimeout, timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", op, err)
	}
	return nil
}
