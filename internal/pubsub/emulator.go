package pubsub

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kichnu/iotdash/internal/device"
	"github.com/kichnu/iotdash/internal/topic"
)

// DefaultPollInterval is the snapshot polling period.
const DefaultPollInterval = 5 * time.Second

// State is the emulator's connectivity state.
type State int

// Connectivity states.
const (
	StateDisconnected State = iota
	StateProbing
	StateConnected
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateProbing:
		return "probing"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Transport is the REST surface the emulator polls and sends commands to.
//
// Timeouts are the transport's responsibility; the emulator treats every
// error as "this attempt failed".
type Transport interface {
	Status(ctx context.Context) (device.ServerStatus, error)
	DevicesStatus(ctx context.Context) (device.Snapshot, error)
	ControlDevice(ctx context.Context, deviceID, command string) (device.ControlResponse, error)
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Option configures an Emulator.
type Option func(*Emulator)

// WithNamespace sets the topic namespace (default "iot").
func WithNamespace(ns string) Option {
	return func(e *Emulator) {
		if ns != "" {
			e.namespace = ns
		}
	}
}

// WithPollInterval sets the polling period (default 5s).
func WithPollInterval(d time.Duration) Option {
	return func(e *Emulator) {
		if d > 0 {
			e.interval = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l Logger) Option {
	return func(e *Emulator) {
		if l != nil {
			e.logger = l
		}
	}
}

// Emulator reconstructs publish/subscribe semantics from periodic polling.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - At most one polling timer is active at any time.
type Emulator struct {
	transport Transport
	registry  *Registry
	namespace string
	interval  time.Duration

	// deliverMu is read-held across each generation check and the handler
	// call it admits, and write-held while a generation ends, so no handler
	// runs once Connect or Disconnect has returned.
	deliverMu sync.RWMutex

	// mu guards the loop lifecycle and connectivity state.
	mu         sync.Mutex
	state      State
	generation uint64
	cancel     context.CancelFunc
	ticker     *time.Ticker
	timers     int

	// Callbacks for connectivity events (optional).
	onConnect    func()
	onDisconnect func(err error)
	onError      func(err error)
	callbackMu   sync.RWMutex

	logger   Logger
	loggerMu sync.RWMutex
}

// New creates an emulator over the given transport. The emulator starts
// disconnected; call Connect to start polling.
func New(transport Transport, opts ...Option) *Emulator {
	e := &Emulator{
		transport: transport,
		registry:  NewRegistry(),
		namespace: topic.DefaultNamespace,
		interval:  DefaultPollInterval,
		logger:    noopLogger{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetLogger replaces the logger.
func (e *Emulator) SetLogger(l Logger) {
	if l == nil {
		l = noopLogger{}
	}
	e.loggerMu.Lock()
	e.logger = l
	e.loggerMu.Unlock()
}

func (e *Emulator) log() Logger {
	e.loggerMu.RLock()
	defer e.loggerMu.RUnlock()
	return e.logger
}

// SetOnConnect sets a callback invoked when a probe finds the backend
// connected to its broker. It runs on the polling goroutine before the
// first delivery, so it is the place to (re)subscribe.
func (e *Emulator) SetOnConnect(fn func()) {
	e.callbackMu.Lock()
	e.onConnect = fn
	e.callbackMu.Unlock()
}

// SetOnDisconnect sets a callback invoked when the emulator becomes
// disconnected. err is the probe failure, or nil for Disconnect and for a
// backend that reports its broker as down.
func (e *Emulator) SetOnDisconnect(fn func(err error)) {
	e.callbackMu.Lock()
	e.onDisconnect = fn
	e.callbackMu.Unlock()
}

// SetOnError sets a callback for failures inside the polling loop.
func (e *Emulator) SetOnError(fn func(err error)) {
	e.callbackMu.Lock()
	e.onError = fn
	e.callbackMu.Unlock()
}

// Namespace returns the topic namespace.
func (e *Emulator) Namespace() string {
	return e.namespace
}

// Interval returns the polling period.
func (e *Emulator) Interval() time.Duration {
	return e.interval
}

// State returns the current connectivity state.
func (e *Emulator) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// IsConnected reports whether the last probe succeeded.
func (e *Emulator) IsConnected() bool {
	return e.State() == StateConnected
}

// Connect starts the connectivity probe and the polling loop.
//
// It returns immediately. A loop started by an earlier Connect is stopped
// first, and anything it still has in flight is discarded. The loop runs
// until Disconnect or until ctx is cancelled.
func (e *Emulator) Connect(ctx context.Context) {
	loopCtx, cancel := context.WithCancel(ctx)

	e.deliverMu.Lock()
	e.mu.Lock()
	e.stopLocked()
	e.generation++
	gen := e.generation
	e.cancel = cancel
	e.ticker = time.NewTicker(e.interval)
	e.timers++
	tick := e.ticker.C
	e.state = StateProbing
	e.mu.Unlock()
	e.deliverMu.Unlock()

	e.log().Debug("pubsub connecting", "interval", e.interval)

	go e.run(loopCtx, gen, tick)
}

// Disconnect stops the polling loop, clears all subscriptions and emits a
// disconnect event. Calling it while already disconnected only re-emits
// the event. It waits for a handler that is already running to return.
func (e *Emulator) Disconnect() {
	e.deliverMu.Lock()
	e.mu.Lock()
	e.stopLocked()
	e.generation++
	e.state = StateDisconnected
	e.mu.Unlock()
	e.registry.Clear()
	e.deliverMu.Unlock()
	e.log().Debug("pubsub disconnected")
	e.emitDisconnect(nil)
}

// stopLocked cancels the current loop and its timer. Caller holds e.mu.
func (e *Emulator) stopLocked() {
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	if e.ticker != nil {
		e.ticker.Stop()
		e.ticker = nil
		e.timers--
	}
}

// activeTimers returns the number of running poll timers.
func (e *Emulator) activeTimers() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.timers
}

// Subscribe registers handler for topic. Valid before Connect.
func (e *Emulator) Subscribe(t string, handler Handler) {
	e.registry.Subscribe(t, handler)
}

// Unsubscribe removes the handler for topic.
func (e *Emulator) Unsubscribe(t string) {
	e.registry.Unsubscribe(t)
}

// SubscriptionCount returns the number of subscribed topics.
func (e *Emulator) SubscriptionCount() int {
	return e.registry.Len()
}

// Publish sends message as a command to the device addressed by topic.
//
// Parameters:
//   - ctx: Context for the control request
//   - t: A device command topic, e.g. iot/device/dev7/command
//   - message: The command payload
//
// Returns:
//   - error: ErrMalformedTopic or ErrInvalidPublishTopic for bad topics
//     (no request is made), ErrTransport if the request fails,
//     ErrCommandRejected if the backend answers with a non-ok status
func (e *Emulator) Publish(ctx context.Context, t, message string) error {
	parts, err := topic.Parse(t)
	if err != nil {
		return err
	}
	if !parts.IsCommand() || parts.Namespace != e.namespace {
		return fmt.Errorf("%w: %q", ErrInvalidPublishTopic, t)
	}

	resp, err := e.transport.ControlDevice(ctx, parts.DeviceID, message)
	if err != nil {
		return fmt.Errorf("%w: control %s: %w", ErrTransport, parts.DeviceID, err)
	}
	if !resp.OK() {
		return fmt.Errorf("%w: %s: %s", ErrCommandRejected, parts.DeviceID, resp.Message)
	}

	e.log().Debug("command published", "device_id", parts.DeviceID, "command", message)
	return nil
}

// run is the polling loop for one generation.
func (e *Emulator) run(ctx context.Context, gen uint64, tick <-chan time.Time) {
	e.probe(ctx, gen, StateProbing)

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			e.tick(ctx, gen)
		}
	}
}

// tick polls once while connected, or re-probes while not.
func (e *Emulator) tick(ctx context.Context, gen uint64) {
	e.mu.Lock()
	if e.generation != gen {
		e.mu.Unlock()
		return
	}
	prev := e.state
	if prev != StateConnected {
		e.state = StateProbing
	}
	e.mu.Unlock()

	if prev != StateConnected {
		if !e.probe(ctx, gen, prev) {
			return
		}
	}
	e.poll(ctx, gen)
}

// probe checks backend connectivity and emits an event when the outcome
// differs from prev. Returns true if the emulator is now connected.
func (e *Emulator) probe(ctx context.Context, gen uint64, prev State) bool {
	status, err := e.transport.Status(ctx)

	next := StateConnected
	var cause error
	switch {
	case err != nil:
		next = StateDisconnected
		cause = fmt.Errorf("%w: probe: %w", ErrTransport, err)
	case status.Status != device.StatusOK || !status.MQTTConnected:
		next = StateDisconnected
	}

	e.mu.Lock()
	if e.generation != gen {
		e.mu.Unlock()
		return false
	}
	e.state = next
	e.mu.Unlock()

	if next == StateConnected {
		if prev != StateConnected {
			e.log().Info("pubsub connected")
			e.emitConnect()
		}
		return true
	}

	if cause != nil {
		e.log().Warn("connectivity probe failed", "error", cause)
		e.emitError(cause)
	} else {
		e.log().Warn("backend reports broker disconnected")
	}
	if prev != StateDisconnected {
		e.emitDisconnect(cause)
	}
	return false
}

// poll fetches one snapshot and fans it out.
func (e *Emulator) poll(ctx context.Context, gen uint64) {
	snap, err := e.transport.DevicesStatus(ctx)
	if !e.current(gen) {
		return
	}
	if err != nil {
		err = fmt.Errorf("%w: fetch snapshot: %w", ErrTransport, err)
		e.log().Warn("snapshot fetch failed", "error", err)
		e.emitError(err)
		return
	}
	e.dispatch(gen, snap)
}

// dispatch delivers a snapshot to subscribers in sorted device / value order.
func (e *Emulator) dispatch(gen uint64, snap device.Snapshot) {
	ids := make([]string, 0, len(snap))
	for id := range snap {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	delivered := 0
	for _, id := range ids {
		entry := snap[id]
		if entry.Status != nil {
			ok, invoked := e.deliver(gen, topic.Status(e.namespace, id), *entry.Status)
			if !ok {
				return
			}
			if invoked {
				delivered++
			}
		}

		names := make([]string, 0, len(entry.Values))
		for name := range entry.Values {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			ok, invoked := e.deliver(gen, topic.Value(e.namespace, id, name), entry.Values[name])
			if !ok {
				return
			}
			if invoked {
				delivered++
			}
		}
	}

	e.log().Debug("snapshot dispatched", "devices", len(ids), "delivered", delivered)
}

// deliver notifies t while gen is still the current generation. It reports
// false once the generation has ended. Handlers must not call Connect or
// Disconnect synchronously.
func (e *Emulator) deliver(gen uint64, t, payload string) (current, invoked bool) {
	e.deliverMu.RLock()
	defer e.deliverMu.RUnlock()
	if !e.current(gen) {
		return false, false
	}
	return true, e.notify(t, payload)
}

// notify invokes one handler, recovering from panics so a faulty handler
// cannot stop the loop.
func (e *Emulator) notify(t, payload string) (invoked bool) {
	defer func() {
		if r := recover(); r != nil {
			e.log().Error("handler panic recovered", "topic", t, "panic", r)
			invoked = true
		}
	}()
	return e.registry.Notify(t, payload)
}

func (e *Emulator) current(gen uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.generation == gen
}

func (e *Emulator) emitConnect() {
	e.callbackMu.RLock()
	fn := e.onConnect
	e.callbackMu.RUnlock()
	if fn != nil {
		fn()
	}
}

func (e *Emulator) emitDisconnect(err error) {
	e.callbackMu.RLock()
	fn := e.onDisconnect
	e.callbackMu.RUnlock()
	if fn != nil {
		fn(err)
	}
}

func (e *Emulator) emitError(err error) {
	e.callbackMu.RLock()
	fn := e.onError
	e.callbackMu.RUnlock()
	if fn != nil {
		fn(err)
	}
}
