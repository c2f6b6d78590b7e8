package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"

	"github.com/kichnu/iotdash/internal/apiclient"
	"github.com/kichnu/iotdash/internal/dashboard"
	"github.com/kichnu/iotdash/internal/device"
	"github.com/kichnu/iotdash/internal/infrastructure/config"
	"github.com/kichnu/iotdash/internal/infrastructure/logging"
	"github.com/kichnu/iotdash/internal/pubsub"
	"github.com/kichnu/iotdash/internal/topic"
	"github.com/kichnu/iotdash/internal/tui"
)

const serviceName = "iotpanel"

// errUsage is returned when a command is called with the wrong arguments.
var errUsage = errors.New("usage")

// loadConfig reads the configuration and applies command-line overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.LoadOptional(c.String("config"))
	if err != nil {
		return nil, err
	}
	if v := c.String("api-url"); v != "" {
		cfg.Dashboard.APIURL = v
	}
	if v := c.String("namespace"); v != "" {
		cfg.Devices.Namespace = v
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// watchCommand runs the interactive dashboard until the user quits.
func watchCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	log, closeLog, err := openLog(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	client, err := apiclient.New(cfg.Dashboard.APIURL, cfg.GetRequestTimeout())
	if err != nil {
		return err
	}

	bus := pubsub.New(client,
		pubsub.WithNamespace(cfg.Devices.Namespace),
		pubsub.WithPollInterval(cfg.GetPollInterval()),
		pubsub.WithLogger(log.Component("pubsub")),
	)
	ctrl := dashboard.New(bus, client,
		dashboard.WithStatusSource(client),
		dashboard.WithStatusCheckInterval(cfg.GetStatusCheckInterval()),
		dashboard.WithLogger(log.Component("dashboard")),
	)

	log.Info("dashboard starting", "api_url", client.BaseURL(), "namespace", cfg.Devices.Namespace)

	p := tea.NewProgram(tui.New(c.Context, ctrl), tea.WithAltScreen())
	tui.Bind(ctrl, p)

	_, runErr := p.Run()
	ctrl.Stop()
	log.Info("dashboard stopped")

	if runErr != nil {
		return fmt.Errorf("running dashboard: %w", runErr)
	}
	return nil
}

// openLog points the dashboard log at the configured file, since the
// terminal belongs to the UI while it runs.
func openLog(cfg *config.Config) (*logging.Logger, func(), error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Dashboard.LogFile), 0o750); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(cfg.Dashboard.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	return logging.NewWriter(cfg.Logging, serviceName, version, f), func() { _ = f.Close() }, nil
}

// statusCommand probes the backend once and prints the device snapshot.
func statusCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	client, err := apiclient.New(cfg.Dashboard.APIURL, cfg.GetRequestTimeout())
	if err != nil {
		return err
	}

	status, err := client.Status(c.Context)
	if err != nil {
		return fmt.Errorf("API unreachable at %s: %w", client.BaseURL(), err)
	}
	devices, err := client.Devices(c.Context)
	if err != nil {
		return fmt.Errorf("fetching devices: %w", err)
	}
	snap, err := client.DevicesStatus(c.Context)
	if err != nil {
		return fmt.Errorf("fetching device status: %w", err)
	}

	mqttState := "disconnected"
	if status.MQTTConnected {
		mqttState = "connected"
	}

	out := c.App.Writer
	fmt.Fprintf(out, "API:     %s (%s)\n", client.BaseURL(), status.Status)
	fmt.Fprintf(out, "MQTT:    %s\n", mqttState)
	fmt.Fprintf(out, "Devices: %d\n", len(devices))
	if len(devices) > 0 {
		fmt.Fprintln(out, statusTable(devices, snap))
	}
	return nil
}

// statusTable renders one row per device in catalogue order.
func statusTable(devices []device.Device, snap device.Snapshot) string {
	rows := lo.Map(devices, func(d device.Device, _ int) []string {
		entry, ok := snap[d.ID]
		online := "offline"
		if ok && entry.Online {
			online = "online"
		}
		state := "-"
		if ok && entry.Status != nil {
			state = *entry.Status
		}
		return []string{d.ID, d.Name, online, state, formatValues(entry.Values)}
	})

	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "NAME", "ONLINE", "STATUS", "VALUES").
		Rows(rows...).
		String()
}

// formatValues renders values as sorted name=value pairs.
func formatValues(values map[string]string) string {
	if len(values) == 0 {
		return "-"
	}
	names := lo.Keys(values)
	sort.Strings(names)
	return strings.Join(lo.Map(names, func(name string, _ int) string {
		return name + "=" + values[name]
	}), " ")
}

// sendCommand publishes one command through the emulator.
func sendCommand(c *cli.Context) error {
	if c.NArg() != 2 {
		return fmt.Errorf("%w: iotpanel send <device> <command>", errUsage)
	}
	deviceID, command := c.Args().Get(0), c.Args().Get(1)

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	client, err := apiclient.New(cfg.Dashboard.APIURL, cfg.GetRequestTimeout())
	if err != nil {
		return err
	}

	bus := pubsub.New(client, pubsub.WithNamespace(cfg.Devices.Namespace))
	t := topic.Command(cfg.Devices.Namespace, deviceID)
	if err := bus.Publish(c.Context, t, command); err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "%s <- %s\n", t, command)
	return nil
}
