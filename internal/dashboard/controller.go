package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/kichnu/iotdash/internal/device"
	"github.com/kichnu/iotdash/internal/location"
	"github.com/kichnu/iotdash/internal/panel"
	"github.com/kichnu/iotdash/internal/pubsub"
	"github.com/kichnu/iotdash/internal/topic"
)

// DefaultStatusCheckInterval is the period of the backend health check.
const DefaultStatusCheckInterval = 30 * time.Second

// Filter values that show every panel.
const (
	AllRooms = ""
	AllTypes = ""
)

// Bus is the pub/sub surface the controller drives. Satisfied by
// *pubsub.Emulator.
type Bus interface {
	Subscribe(t string, handler pubsub.Handler)
	Unsubscribe(t string)
	Publish(ctx context.Context, t, message string) error
	Connect(ctx context.Context)
	Disconnect()
	IsConnected() bool
	SetOnConnect(fn func())
	SetOnDisconnect(fn func(err error))
	SetOnError(fn func(err error))
}

// namespacer is implemented by buses bound to one topic namespace.
type namespacer interface {
	Namespace() string
}

// Catalogue supplies the device descriptors and rooms to display.
type Catalogue interface {
	Devices(ctx context.Context) ([]device.Device, error)
	Rooms(ctx context.Context) ([]location.Room, error)
}

// StatusSource answers the backend health check.
type StatusSource interface {
	Status(ctx context.Context) (device.ServerStatus, error)
}

// Logger interface for optional logging support.
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

// Health is the result of the last backend health check.
type Health struct {
	APIReachable  bool
	MQTTConnected bool
	CheckedAt     time.Time
}

// Option configures a Controller.
type Option func(*Controller)

// WithStatusSource enables the periodic backend health check.
func WithStatusSource(s StatusSource) Option {
	return func(c *Controller) { c.status = s }
}

// WithStatusCheckInterval sets the health check period
// (default DefaultStatusCheckInterval).
func WithStatusCheckInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.checkInterval = d
		}
	}
}

// WithNotifier sets the receiver of user-facing notifications.
func WithNotifier(n Notifier) Option {
	return func(c *Controller) { c.notifier = n }
}

// WithLogger sets the logger.
func WithLogger(l Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// Controller owns the dashboard's panels and their subscriptions.
//
// Thread Safety: All methods are safe for concurrent use. Topic handlers
// run on the emulator's loop goroutine.
type Controller struct {
	bus           Bus
	catalogue     Catalogue
	status        StatusSource
	checkInterval time.Duration
	logger        Logger
	namespace     string

	mu         sync.RWMutex
	panels     []panel.Panel            // catalogue order
	byID       map[string]panel.Panel   // device ID -> panel
	routes     map[string][]panel.Panel // topic -> panels depending on it
	rooms      []location.Room
	room       string
	typeFilter string
	online     bool
	health     Health

	loopMu sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	hookMu   sync.RWMutex
	notifier Notifier
	onChange func()
}

// New creates a controller over the given bus and catalogue. No panels
// exist until Load or Build is called.
func New(bus Bus, catalogue Catalogue, opts ...Option) *Controller {
	c := &Controller{
		bus:           bus,
		catalogue:     catalogue,
		checkInterval: DefaultStatusCheckInterval,
		logger:        noopLogger{},
		byID:          make(map[string]panel.Panel),
		routes:        make(map[string][]panel.Panel),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.namespace = topic.DefaultNamespace
	if ns, ok := bus.(namespacer); ok && ns.Namespace() != "" {
		c.namespace = ns.Namespace()
	}
	return c
}

// SetOnChange registers fn to be called after any state change that
// affects rendering.
func (c *Controller) SetOnChange(fn func()) {
	c.hookMu.Lock()
	defer c.hookMu.Unlock()
	c.onChange = fn
}

// SetNotifier replaces the notification receiver.
func (c *Controller) SetNotifier(n Notifier) {
	c.hookMu.Lock()
	defer c.hookMu.Unlock()
	c.notifier = n
}

// Load fetches rooms and devices from the catalogue and builds the panels.
//
// Rooms and devices load independently: a room failure still builds the
// panels. Each failure raises one notification.
//
// Returns:
//   - error: The joined load errors, nil when both succeed
func (c *Controller) Load(ctx context.Context) error {
	var errs []error

	rooms, err := c.catalogue.Rooms(ctx)
	if err != nil {
		c.notify(LevelError, "Cannot load rooms. Check the connection to the server.")
		errs = append(errs, fmt.Errorf("loading rooms: %w", err))
	} else {
		c.mu.Lock()
		c.rooms = rooms
		c.mu.Unlock()
	}

	devices, err := c.catalogue.Devices(ctx)
	if err != nil {
		c.notify(LevelError, "Cannot load devices. Check the connection to the server.")
		errs = append(errs, fmt.Errorf("loading devices: %w", err))
	} else {
		c.Build(devices)
	}

	return errors.Join(errs...)
}

// Build replaces the dashboard's panels with one panel per descriptor.
//
// Descriptors with an unknown panel type, or a topic outside the bus
// namespace, are skipped with a notification; the others still render. The previous panels' topics are unsubscribed and
// the new panels' topics subscribed.
//
// Returns:
//   - []string: IDs of the skipped devices
func (c *Controller) Build(devices []device.Device) []string {
	var skipped []string

	panels := make([]panel.Panel, 0, len(devices))
	byID := make(map[string]panel.Panel, len(devices))
	routes := make(map[string][]panel.Panel)

	c.mu.RLock()
	online := c.online
	c.mu.RUnlock()

	for i := range devices {
		d := devices[i].DeepCopy()
		d.ApplyDefaults(c.namespace)

		err := d.InNamespace(c.namespace)
		var p panel.Panel
		if err == nil {
			p, err = panel.New(d, c.bus)
		}
		if err != nil {
			c.logger.Warn("skipping device", "device_id", d.ID, "error", err)
			c.notify(LevelError, fmt.Sprintf("Device %s skipped: %v", d.ID, err))
			skipped = append(skipped, d.ID)
			continue
		}
		p.SetConnectivity(online)
		panels = append(panels, p)
		byID[d.ID] = p
		for _, t := range p.Topics() {
			routes[t] = append(routes[t], p)
		}
	}

	c.mu.Lock()
	stale := lo.Keys(c.routes)
	c.panels = panels
	c.byID = byID
	c.routes = routes
	c.mu.Unlock()

	for _, t := range stale {
		if _, kept := routes[t]; !kept {
			c.bus.Unsubscribe(t)
		}
	}
	c.subscribeAll()

	c.logger.Info("dashboard built", "panels", len(panels), "skipped", len(skipped))
	c.changed()
	return skipped
}

// Start wires the bus events, subscribes every panel topic, connects the
// bus and, with a status source, starts the periodic health check.
//
// Returns:
//   - error: ErrAlreadyStarted if the controller is running
func (c *Controller) Start(ctx context.Context) error {
	c.loopMu.Lock()
	defer c.loopMu.Unlock()
	if c.cancel != nil {
		return ErrAlreadyStarted
	}

	c.bus.SetOnConnect(c.handleConnect)
	c.bus.SetOnDisconnect(c.handleDisconnect)
	c.bus.SetOnError(c.handleError)

	c.subscribeAll()
	c.bus.Connect(ctx)

	loopCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.statusLoop(loopCtx, c.done)

	return nil
}

// Stop ends the health check and disconnects the bus. Safe to call when
// not started.
func (c *Controller) Stop() {
	c.loopMu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.loopMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	c.bus.Disconnect()
}

// statusLoop runs CheckStatus once, then every check interval.
func (c *Controller) statusLoop(ctx context.Context, done chan struct{}) {
	defer close(done)
	if c.status == nil {
		return
	}

	c.CheckStatus(ctx)

	ticker := time.NewTicker(c.checkInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.CheckStatus(ctx)
		}
	}
}

// CheckStatus asks the status source for API and broker health.
//
// A healthy backend marks every panel online. An unreachable API or a
// disconnected broker raises one notification.
func (c *Controller) CheckStatus(ctx context.Context) Health {
	h := Health{CheckedAt: time.Now()}
	if c.status == nil {
		return h
	}

	status, err := c.status.Status(ctx)
	switch {
	case err != nil:
		c.logger.Warn("status check failed", "error", err)
		c.notify(LevelError, "No connection to the API. Check that the server is running.")
	case status.Status != device.StatusOK:
		h.APIReachable = true
		c.notify(LevelError, "The API reported a problem. Check the server logs.")
	case !status.MQTTConnected:
		h.APIReachable = true
		c.notify(LevelError, "The server has lost its MQTT connection. Check the broker configuration.")
	default:
		h.APIReachable = true
		h.MQTTConnected = true
	}

	c.mu.Lock()
	c.health = h
	c.mu.Unlock()

	if h.MQTTConnected {
		c.setOnline(true)
	}
	c.changed()
	return h
}

// Issue sends a user intent to the panel of a device.
//
// Returns:
//   - error: ErrUnknownDevice, or the panel's error (also raised as a
//     notification)
func (c *Controller) Issue(ctx context.Context, deviceID string, intent panel.Intent) error {
	c.mu.RLock()
	p, ok := c.byID[deviceID]
	c.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDevice, deviceID)
	}

	if err := p.IssueCommand(ctx, intent); err != nil {
		c.logger.Warn("command failed", "device_id", deviceID, "action", intent.Action.String(), "error", err)
		c.notify(LevelError, fmt.Sprintf("Command for %s failed: %v", deviceID, err))
		c.changed()
		return err
	}

	c.changed()
	return nil
}

// SetRoom shows only the panels of one room (AllRooms for every room).
func (c *Controller) SetRoom(roomID string) {
	c.mu.Lock()
	c.room = roomID
	c.mu.Unlock()
	c.changed()
}

// Room returns the current room filter.
func (c *Controller) Room() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.room
}

// SetTypeFilter shows only the panels of one device type (AllTypes for
// every type).
func (c *Controller) SetTypeFilter(deviceType string) {
	c.mu.Lock()
	c.typeFilter = deviceType
	c.mu.Unlock()
	c.changed()
}

// TypeFilter returns the current type filter.
func (c *Controller) TypeFilter() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.typeFilter
}

// Visible returns the panels matching the room and type filters, in
// catalogue order.
func (c *Controller) Visible() []panel.Panel {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return lo.Filter(c.panels, func(p panel.Panel, _ int) bool {
		v := p.Render()
		return (c.room == AllRooms || v.Room == c.room) &&
			(c.typeFilter == AllTypes || v.Type == c.typeFilter)
	})
}

// Panels returns every panel in catalogue order.
func (c *Controller) Panels() []panel.Panel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]panel.Panel(nil), c.panels...)
}

// Panel returns the panel of a device.
func (c *Controller) Panel(deviceID string) (panel.Panel, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.byID[deviceID]
	return p, ok
}

// Rooms returns the loaded rooms.
func (c *Controller) Rooms() []location.Room {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]location.Room(nil), c.rooms...)
}

// RoomName returns the display name of a room, or the ID when the room is
// not loaded.
func (c *Controller) RoomName(roomID string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if r, ok := lo.Find(c.rooms, func(r location.Room) bool { return r.ID == roomID }); ok {
		return r.Name
	}
	return roomID
}

// Types returns the distinct device types of the panels, sorted.
func (c *Controller) Types() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	types := lo.Uniq(lo.Map(c.panels, func(p panel.Panel, _ int) string {
		return p.Render().Type
	}))
	sort.Strings(types)
	return types
}

// Online reports whether the panels are currently marked online.
func (c *Controller) Online() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.online
}

// Health returns the result of the last health check.
func (c *Controller) Health() Health {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.health
}

// subscribeAll registers one handler per panel topic with the bus.
func (c *Controller) subscribeAll() {
	c.mu.RLock()
	topics := lo.Keys(c.routes)
	c.mu.RUnlock()

	sort.Strings(topics)
	for _, t := range topics {
		c.bus.Subscribe(t, c.handleMessage)
	}
}

// handleMessage delivers one notification to every panel depending on the
// topic. A delivered message marks the panel online.
func (c *Controller) handleMessage(t, payload string) {
	c.mu.RLock()
	targets := append([]panel.Panel(nil), c.routes[t]...)
	c.mu.RUnlock()

	for _, p := range targets {
		p.SetConnectivity(true)
		if err := p.ReceiveUpdate(payload, t); err != nil {
			c.logger.Debug("update ignored", "topic", t, "payload", payload, "error", err)
		}
	}
	if len(targets) > 0 {
		c.changed()
	}
}

func (c *Controller) handleConnect() {
	c.logger.Info("dashboard connected")
	c.subscribeAll()
	c.setOnline(true)
	c.changed()
}

func (c *Controller) handleDisconnect(err error) {
	c.setOnline(false)
	if err != nil {
		c.logger.Warn("dashboard disconnected", "error", err)
		c.notify(LevelError, fmt.Sprintf("Disconnected from the system: %v", err))
	} else {
		c.logger.Info("dashboard disconnected")
	}
	c.changed()
}

func (c *Controller) handleError(err error) {
	c.notify(LevelError, fmt.Sprintf("Update failed: %v", err))
}

// setOnline sets the controller's and every panel's online flag.
func (c *Controller) setOnline(online bool) {
	c.mu.Lock()
	c.online = online
	panels := append([]panel.Panel(nil), c.panels...)
	c.mu.Unlock()

	for _, p := range panels {
		p.SetConnectivity(online)
	}
}

func (c *Controller) changed() {
	c.hookMu.RLock()
	fn := c.onChange
	c.hookMu.RUnlock()
	if fn != nil {
		fn()
	}
}
