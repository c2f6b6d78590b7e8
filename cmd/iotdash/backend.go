package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/kichnu/iotdash/internal/api"
	"github.com/kichnu/iotdash/internal/audit"
	"github.com/kichnu/iotdash/internal/device"
	"github.com/kichnu/iotdash/internal/infrastructure/config"
	"github.com/kichnu/iotdash/internal/infrastructure/database"
	"github.com/kichnu/iotdash/internal/infrastructure/influxdb"
	"github.com/kichnu/iotdash/internal/infrastructure/logging"
	"github.com/kichnu/iotdash/internal/infrastructure/mqtt"
	"github.com/kichnu/iotdash/internal/location"
)

// backend holds the services started by run. Each start step registers
// its own closer; shutdown runs them newest first.
type backend struct {
	cfg *config.Config
	log *logging.Logger

	db       *database.DB
	registry *device.Registry
	rooms    *location.SQLiteRepository
	tracker  *device.Tracker
	broker   *mqtt.Client
	influx   *influxdb.Client

	closers []closer
}

type closer struct {
	name  string
	close func() error
}

func (b *backend) onShutdown(name string, fn func() error) {
	b.closers = append(b.closers, closer{name, fn})
}

func (b *backend) shutdown() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		c := b.closers[i]
		b.log.Info("closing " + c.name)
		if err := c.close(); err != nil {
			b.log.Error("error closing "+c.name, "error", err)
		}
	}
	b.closers = nil
}

func (b *backend) openStore(ctx context.Context) error {
	db, err := database.Open(database.Config{
		Path:        b.cfg.Database.Path,
		WALMode:     b.cfg.Database.WALMode,
		BusyTimeout: b.cfg.Database.BusyTimeout,
	})
	if err != nil {
		return err
	}
	b.db = db
	b.onShutdown("database", db.Close)

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	b.log.Info("database ready", "path", b.cfg.Database.Path)
	return nil
}

func (b *backend) loadCatalogue(ctx context.Context) error {
	b.registry = device.NewRegistry(device.NewSQLiteRepository(b.db.DB), b.cfg.Devices.Namespace)
	b.registry.SetLogger(b.log.Component("registry"))
	if err := b.registry.RefreshCache(ctx); err != nil {
		return err
	}
	b.rooms = location.NewSQLiteRepository(b.db.DB)

	if path := b.cfg.Devices.SeedFile; path != "" {
		if err := seedCatalogue(ctx, path, b.registry, b.rooms, b.log); err != nil {
			return err
		}
	}

	b.tracker = device.NewTracker(b.registry)
	b.tracker.SetLogger(b.log.Component("tracker"))
	b.tracker.Sync(b.registry.IDs())
	b.log.Info("device registry initialised", "devices", b.registry.GetDeviceCount())
	return nil
}

func (b *backend) connectBroker(context.Context) error {
	client, err := mqtt.Connect(b.cfg.MQTT, b.cfg.Devices.Namespace)
	if err != nil {
		return err
	}
	b.broker = client
	b.onShutdown("MQTT connection", client.Close)

	log := b.log.Component("mqtt")
	client.SetLogger(log)
	client.SetOnConnect(func() { log.Info("MQTT reconnected") })
	client.SetOnDisconnect(func(err error) { log.Warn("MQTT disconnected", "error", err) })
	log.Info("MQTT connected",
		"broker", net.JoinHostPort(b.cfg.MQTT.Broker.Host, strconv.Itoa(b.cfg.MQTT.Broker.Port)),
		"client_id", b.cfg.MQTT.Broker.ClientID,
		"namespace", b.cfg.Devices.Namespace,
	)

	return subscribeDevices(client, byte(b.cfg.MQTT.QoS), b.tracker)
}

// connectInflux is a no-op unless influxdb.enabled is set.
func (b *backend) connectInflux(context.Context) error {
	client, err := influxdb.Connect(b.cfg.InfluxDB)
	if errors.Is(err, influxdb.ErrDisabled) {
		b.log.Info("InfluxDB disabled")
		return nil
	}
	if err != nil {
		return err
	}
	b.influx = client
	b.onShutdown("InfluxDB connection", client.Close)

	client.SetOnError(func(err error) { b.log.Error("InfluxDB write error", "error", err) })
	b.tracker.SetMetricWriter(client)
	b.log.Info("InfluxDB connected", "url", b.cfg.InfluxDB.URL, "org", b.cfg.InfluxDB.Org, "bucket", b.cfg.InfluxDB.Bucket)
	return nil
}

func (b *backend) serve(ctx context.Context) error {
	server, err := api.New(api.Deps{
		Config:   b.cfg.API,
		Devices:  b.cfg.Devices,
		QoS:      byte(b.cfg.MQTT.QoS),
		Logger:   b.log.Component("api"),
		Registry: b.registry,
		Tracker:  b.tracker,
		Rooms:    b.rooms,
		MQTT:     b.broker,
		Audit:    audit.NewSQLiteRepository(b.db.DB),
		Version:  version,
	})
	if err != nil {
		return err
	}
	if err := server.Start(ctx); err != nil {
		return err
	}
	b.onShutdown("API server", server.Close)
	return nil
}

// probes lists the health checks of the connections that were opened.
func (b *backend) probes() probeSet {
	set := probeSet{
		{"database", b.db.HealthCheck},
		{"mqtt", b.broker.HealthCheck},
	}
	if b.influx != nil {
		set = append(set, probe{"influxdb", b.influx.HealthCheck})
	}
	return set
}

type probe struct {
	name  string
	check func(context.Context) error
}

type probeSet []probe

// run returns the first failing probe.
func (s probeSet) run(ctx context.Context) error {
	for _, p := range s {
		if err := p.check(ctx); err != nil {
			return fmt.Errorf("%s: %w", p.name, err)
		}
	}
	return nil
}

// seedCatalogue imports the seed file into an empty catalogue.
func seedCatalogue(ctx context.Context, path string, registry *device.Registry, rooms device.RoomStore, log *logging.Logger) error {
	seed, err := device.LoadSeedFile(path)
	if err != nil {
		return fmt.Errorf("loading seed file: %w", err)
	}

	result, err := device.Seed(ctx, seed, registry, rooms)
	if err != nil {
		return fmt.Errorf("seeding catalogue: %w", err)
	}
	for _, skipped := range result.Skipped {
		log.Warn("seed entry skipped", "error", skipped)
	}
	log.Info("seed file processed",
		"path", path,
		"devices_created", result.DevicesCreated,
		"rooms_created", result.RoomsCreated,
	)
	return nil
}

// subscribeDevices routes device status and value messages into the
// tracker. The client restores them after a reconnect.
func subscribeDevices(client *mqtt.Client, qos byte, tracker *device.Tracker) error {
	topics := client.Topics()
	for _, pattern := range []string{topics.AllDeviceStatus(), topics.AllDeviceValues()} {
		if err := client.Subscribe(pattern, qos, tracker.HandleMessage); err != nil {
			return fmt.Errorf("subscribing to %s: %w", pattern, err)
		}
	}
	return nil
}
