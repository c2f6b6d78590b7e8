package device

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/samber/lo"

	"github.com/kichnu/iotdash/internal/topic"
)

// Logger is the logging surface of Registry and Tracker.
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

// Registry is the catalogue: validation and defaults on top of a
// Repository, with a write-through cache that keeps catalogue order.
// Until RefreshCache has run, reads go to the repository.
//
// Safe for concurrent use.
type Registry struct {
	repo      Repository
	namespace string

	cacheMu sync.RWMutex
	cache   map[string]*Device
	order   []string
	loaded  bool

	logger Logger
}

// NewRegistry returns a registry that defaults device base topics into
// namespace (topic.DefaultNamespace when empty).
func NewRegistry(repo Repository, namespace string) *Registry {
	if namespace == "" {
		namespace = topic.DefaultNamespace
	}
	return &Registry{
		repo:      repo,
		namespace: namespace,
		cache:     make(map[string]*Device),
		logger:    noopLogger{},
	}
}

// SetLogger replaces the no-op logger.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Namespace returns the topic namespace devices are defaulted into.
func (r *Registry) Namespace() string {
	return r.namespace
}

// RefreshCache loads the whole catalogue into the cache. Call it once at
// startup.
func (r *Registry) RefreshCache(ctx context.Context) error {
	devices, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	r.cache = lo.SliceToMap(devices, func(d Device) (string, *Device) { return d.ID, d.DeepCopy() })
	r.order = lo.Map(devices, func(d Device, _ int) string { return d.ID })
	r.loaded = true

	r.logger.Info("device cache refreshed", "count", len(devices))
	return nil
}

// GetDevice returns a copy of one device, or ErrDeviceNotFound.
func (r *Registry) GetDevice(ctx context.Context, id string) (*Device, error) {
	r.cacheMu.RLock()
	cached, ok := r.cache[id]
	loaded := r.loaded
	r.cacheMu.RUnlock()

	if ok {
		return cached.DeepCopy(), nil
	}
	if loaded {
		return nil, ErrDeviceNotFound
	}

	return r.repo.GetByID(ctx, id)
}

// Exists reports whether a device ID is in the catalogue.
func (r *Registry) Exists(ctx context.Context, id string) bool {
	_, err := r.GetDevice(ctx, id)
	return err == nil
}

// ListDevices returns copies of every device in catalogue order.
func (r *Registry) ListDevices(ctx context.Context) ([]Device, error) {
	r.cacheMu.RLock()
	if !r.loaded {
		r.cacheMu.RUnlock()
		return r.repo.List(ctx)
	}
	defer r.cacheMu.RUnlock()
	return lo.Map(r.order, func(id string, _ int) Device { return *r.cache[id].DeepCopy() }), nil
}

// GetDevicesByRoom returns the devices declaring roomID, in catalogue order.
func (r *Registry) GetDevicesByRoom(ctx context.Context, roomID string) ([]Device, error) {
	all, err := r.ListDevices(ctx)
	if err != nil {
		return nil, err
	}
	return lo.Filter(all, func(d Device, _ int) bool { return d.Room == roomID }), nil
}

// IDs returns the cached device IDs in catalogue order.
func (r *Registry) IDs() []string {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return append([]string(nil), r.order...)
}

// CreateDevice fills defaults, validates and appends a device.
func (r *Registry) CreateDevice(ctx context.Context, device *Device) error {
	device.ApplyDefaults(r.namespace)

	if err := ValidateDevice(device, r.namespace); err != nil {
		return err
	}
	if err := r.repo.Create(ctx, device); err != nil {
		return err
	}

	r.cacheMu.Lock()
	r.cache[device.ID] = device.DeepCopy()
	r.order = append(r.order, device.ID)
	r.cacheMu.Unlock()

	r.logger.Info("device created", "id", device.ID, "name", device.Name)
	return nil
}

// UpdateDevice replaces an existing device, keeping its creation time
// and catalogue position.
func (r *Registry) UpdateDevice(ctx context.Context, device *Device) error {
	existing, err := r.GetDevice(ctx, device.ID)
	if err != nil {
		return err
	}
	device.CreatedAt = existing.CreatedAt
	device.ApplyDefaults(r.namespace)

	if err := ValidateDevice(device, r.namespace); err != nil {
		return err
	}

	if err := r.repo.Update(ctx, device); err != nil {
		return err
	}

	r.cacheMu.Lock()
	if _, cached := r.cache[device.ID]; !cached {
		r.order = append(r.order, device.ID)
	}
	r.cache[device.ID] = device.DeepCopy()
	r.cacheMu.Unlock()

	r.logger.Info("device updated", "id", device.ID, "name", device.Name)
	return nil
}

// DeleteDevice removes a device from the catalogue.
func (r *Registry) DeleteDevice(ctx context.Context, id string) error {
	if err := r.repo.Delete(ctx, id); err != nil {
		return err
	}

	r.cacheMu.Lock()
	delete(r.cache, id)
	if i := slices.Index(r.order, id); i >= 0 {
		r.order = slices.Delete(r.order, i, i+1)
	}
	r.cacheMu.Unlock()

	r.logger.Info("device deleted", "id", id)
	return nil
}

// GetDeviceCount returns the number of cached devices.
func (r *Registry) GetDeviceCount() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.cache)
}
