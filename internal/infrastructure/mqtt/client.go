package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/kichnu/iotdash/internal/infrastructure/config"
)

// Logger receives handler failures and reconnect notices.
// *logging.Logger satisfies it.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// MessageHandler handles one received message. The topic is the concrete
// topic, not the subscription pattern. A returned error is logged.
type MessageHandler func(topic string, payload []byte) error

type subscription struct {
	qos     byte
	handler MessageHandler
}

// Client is a broker session scoped to one topic namespace.
//
// Subscriptions are remembered and replayed after every reconnect, and the
// backend's availability is kept on the retained system status topic.
// All methods are safe for concurrent use.
type Client struct {
	paho   pahomqtt.Client
	cfg    config.MQTTConfig
	topics Topics
	now    func() time.Time

	mu           sync.RWMutex
	connected    bool
	subs         map[string]subscription
	onConnect    func()
	onDisconnect func(error)
	logger       Logger
}

// Connect opens a session with the broker configured in cfg. It fails
// with ErrConnectionFailed when the broker cannot be reached within the
// connect timeout; later drops are retried in the background.
func Connect(cfg config.MQTTConfig, namespace string) (*Client, error) {
	c := &Client{
		cfg:    cfg,
		topics: Topics{Namespace: namespace},
		now:    time.Now,
		subs:   make(map[string]subscription),
	}

	opts := newClientOptions(cfg, c.topics)
	opts.SetOnConnectHandler(func(pahomqtt.Client) { c.connectionUp() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.connectionDown(err) })
	opts.SetReconnectingHandler(func(pahomqtt.Client, *pahomqtt.ClientOptions) {
		if l := c.log(); l != nil {
			l.Warn("mqtt reconnecting", "broker", brokerURL(cfg.Broker))
		}
	})

	c.paho = pahomqtt.NewClient(opts)
	if err := await(c.paho.Connect(), connectTimeout, ErrConnectionFailed); err != nil {
		c.paho.Disconnect(0)
		return nil, err
	}

	// The on-connect handler runs on its own goroutine and may lag behind.
	c.setConnected(true)
	return c, nil
}

func (c *Client) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}

// connectionUp replays subscriptions, announces the backend and then
// notifies the OnConnect callback.
func (c *Client) connectionUp() {
	c.setConnected(true)

	for _, p := range c.Subscriptions() {
		c.mu.RLock()
		sub, ok := c.subs[p]
		c.mu.RUnlock()
		if ok {
			c.paho.Subscribe(p, sub.qos, c.dispatch(sub.handler))
		}
	}
	c.announce("online", "")

	c.mu.RLock()
	notify := c.onConnect
	c.mu.RUnlock()
	if notify != nil {
		notify()
	}
}

func (c *Client) connectionDown(err error) {
	c.setConnected(false)

	c.mu.RLock()
	notify := c.onDisconnect
	c.mu.RUnlock()
	if notify != nil {
		notify(err)
	}
}

// announce publishes the retained system status and returns its token.
func (c *Client) announce(status, reason string) pahomqtt.Token {
	payload := statusPayload(status, c.cfg.Broker.ClientID, reason, c.now())
	return c.paho.Publish(c.topics.SystemStatus(), c.qos(), true, payload)
}

func (c *Client) qos() byte {
	if c.cfg.QoS < 0 || c.cfg.QoS > maxQoS {
		return 1
	}
	return byte(c.cfg.QoS)
}

// Close marks the backend offline and ends the session. Safe on a client
// that never connected.
func (c *Client) Close() error {
	if c.paho == nil {
		return nil
	}
	if c.IsConnected() {
		c.announce("offline", reasonShutdown).WaitTimeout(ackTimeout)
	}
	c.paho.Disconnect(disconnectQuiet)
	c.setConnected(false)
	return nil
}

// HealthCheck reports ErrNotConnected while the session is down.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected reports whether the session is currently up.
func (c *Client) IsConnected() bool {
	if c.paho == nil {
		return false
	}
	c.mu.RLock()
	up := c.connected
	c.mu.RUnlock()
	return up && c.paho.IsConnected()
}

// Topics returns the topic builders for the client's namespace.
func (c *Client) Topics() Topics {
	return c.topics
}

// SetOnConnect registers a callback run after every (re)connect.
func (c *Client) SetOnConnect(fn func()) {
	c.mu.Lock()
	c.onConnect = fn
	c.mu.Unlock()
}

// SetOnDisconnect registers a callback run when the session drops.
// Close does not trigger it.
func (c *Client) SetOnDisconnect(fn func(err error)) {
	c.mu.Lock()
	c.onDisconnect = fn
	c.mu.Unlock()
}

// SetLogger sets the logger for handler failures. nil silences them.
func (c *Client) SetLogger(l Logger) {
	c.mu.Lock()
	c.logger = l
	c.mu.Unlock()
}

func (c *Client) log() Logger {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.logger
}

// dispatch adapts a MessageHandler to paho. Handler errors are logged as
// warnings and panics are recovered and logged as errors.
func (c *Client) dispatch(h MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				if l := c.log(); l != nil {
					l.Error("mqtt handler panicked", "topic", msg.Topic(), "panic", r)
				}
			}
		}()
		if err := h(msg.Topic(), msg.Payload()); err != nil {
			if l := c.log(); l != nil {
				l.Warn("mqtt handler failed", "topic", msg.Topic(), "error", err)
			}
		}
	}
}
