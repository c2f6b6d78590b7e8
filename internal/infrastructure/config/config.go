package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kichnu/iotdash/internal/topic"
)

// Config is the root configuration structure shared by iotdash (the REST
// backend) and iotpanel (the terminal dashboard).
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Devices   DevicesConfig   `yaml:"devices"`
	Dashboard DashboardConfig `yaml:"dashboard"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig bounds the reconnect backoff, in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// DevicesConfig contains device catalogue settings.
type DevicesConfig struct {
	// Namespace is the first topic segment of every device topic.
	Namespace string `yaml:"namespace"`

	// SeedFile is imported into an empty catalogue on startup.
	SeedFile string `yaml:"seed_file"`

	// EchoCommands makes the backend mirror commands for gated
	// (toggle-slider) devices back as status and value messages, for
	// devices that do not report their own state.
	EchoCommands bool `yaml:"echo_commands"`
}

// DashboardConfig contains settings for the dashboard client.
type DashboardConfig struct {
	// APIURL is the base URL of the REST API including its prefix.
	APIURL string `yaml:"api_url"`

	// PollInterval is the snapshot polling interval in seconds.
	PollInterval int `yaml:"poll_interval"`

	// RequestTimeout bounds each REST request in seconds.
	RequestTimeout int `yaml:"request_timeout"`

	// StatusCheckInterval is the backend health check interval in seconds.
	StatusCheckInterval int `yaml:"status_check_interval"`

	// LogFile receives the dashboard log while the terminal UI runs.
	LogFile string `yaml:"log_file"`
}

// Load reads the YAML file at path over the defaults, applies IOTDASH_*
// environment overrides and validates the result. Unknown keys in the
// file are rejected.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the command line
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return finish(cfg)
}

// LoadOptional is Load for tools that can run without a file: an empty
// path starts from the defaults.
func LoadOptional(path string) (*Config, error) {
	if path != "" {
		return Load(path)
	}
	return finish(Default())
}

func finish(cfg *Config) (*Config, error) {
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Site: SiteConfig{ID: "home", Name: "IoT Dashboard"},
		Database: DatabaseConfig{
			Path:        "./data/iotdash.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker:    MQTTBrokerConfig{Host: "localhost", Port: 1883, ClientID: "iotdash"},
			QoS:       1,
			Reconnect: MQTTReconnectConfig{InitialDelay: 1, MaxDelay: 60},
		},
		API: APIConfig{
			Host:     "0.0.0.0",
			Port:     5000,
			Timeouts: APITimeoutConfig{Read: 30, Write: 30, Idle: 60},
		},
		InfluxDB: InfluxDBConfig{BatchSize: 100, FlushInterval: 10},
		Logging:  LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
		Devices:  DevicesConfig{Namespace: topic.DefaultNamespace},
		Dashboard: DashboardConfig{
			APIURL:              "http://localhost:5000/api",
			PollInterval:        5,
			RequestTimeout:      5,
			StatusCheckInterval: 30,
			LogFile:             "./data/iotpanel.log",
		},
	}
}

// envBinding maps one environment variable onto a config field.
type envBinding struct {
	name string
	set  func(c *Config, v string) error
}

func envString(name string, field func(*Config) *string) envBinding {
	return envBinding{name, func(c *Config, v string) error {
		*field(c) = v
		return nil
	}}
}

func envInt(name string, field func(*Config) *int) envBinding {
	return envBinding{name, func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %q is not an integer", name, v)
		}
		*field(c) = n
		return nil
	}}
}

// envBindings lists the supported overrides, IOTDASH_<SECTION>_<KEY>.
// Secrets belong here rather than in the file.
var envBindings = []envBinding{
	envString("IOTDASH_DATABASE_PATH", func(c *Config) *string { return &c.Database.Path }),
	envString("IOTDASH_MQTT_HOST", func(c *Config) *string { return &c.MQTT.Broker.Host }),
	envInt("IOTDASH_MQTT_PORT", func(c *Config) *int { return &c.MQTT.Broker.Port }),
	envString("IOTDASH_MQTT_USERNAME", func(c *Config) *string { return &c.MQTT.Auth.Username }),
	envString("IOTDASH_MQTT_PASSWORD", func(c *Config) *string { return &c.MQTT.Auth.Password }),
	envString("IOTDASH_API_HOST", func(c *Config) *string { return &c.API.Host }),
	envInt("IOTDASH_API_PORT", func(c *Config) *int { return &c.API.Port }),
	envString("IOTDASH_INFLUXDB_TOKEN", func(c *Config) *string { return &c.InfluxDB.Token }),
	envString("IOTDASH_LOG_LEVEL", func(c *Config) *string { return &c.Logging.Level }),
	envString("IOTDASH_DEVICES_NAMESPACE", func(c *Config) *string { return &c.Devices.Namespace }),
	envString("IOTDASH_DEVICES_SEED_FILE", func(c *Config) *string { return &c.Devices.SeedFile }),
	envString("IOTDASH_DASHBOARD_API_URL", func(c *Config) *string { return &c.Dashboard.APIURL }),
}

func applyEnv(cfg *Config) error {
	for _, b := range envBindings {
		v, ok := os.LookupEnv(b.name)
		if !ok || v == "" {
			continue
		}
		if err := b.set(cfg, v); err != nil {
			return fmt.Errorf("environment override %w", err)
		}
	}
	return nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var problems []string
	check := func(ok bool, problem string) {
		if !ok {
			problems = append(problems, problem)
		}
	}

	check(c.Site.ID != "", "site.id is required")
	check(c.Database.Path != "", "database.path is required")
	check(c.MQTT.QoS >= 0 && c.MQTT.QoS <= 2, "mqtt.qos must be 0, 1, or 2")
	check(c.API.Port >= 1 && c.API.Port <= 65535, "api.port must be between 1 and 65535")
	check(!c.InfluxDB.Enabled || (c.InfluxDB.URL != "" && c.InfluxDB.Org != "" && c.InfluxDB.Bucket != ""),
		"influxdb.url, influxdb.org and influxdb.bucket are required when influxdb is enabled")
	check(topic.ValidSegment(c.Devices.Namespace), "devices.namespace must be a single topic segment")

	u, err := url.Parse(c.Dashboard.APIURL)
	check(err == nil && u.Scheme != "" && u.Host != "", "dashboard.api_url must be an absolute URL")
	check(c.Dashboard.PollInterval >= 1, "dashboard.poll_interval must be at least 1 second")
	check(c.Dashboard.RequestTimeout >= 1, "dashboard.request_timeout must be at least 1 second")
	check(c.Dashboard.StatusCheckInterval >= 0, "dashboard.status_check_interval must not be negative")

	if len(problems) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(problems, "; "))
	}
	return nil
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

// GetReadTimeout returns api.timeouts.read.
func (c *Config) GetReadTimeout() time.Duration { return seconds(c.API.Timeouts.Read) }

// GetWriteTimeout returns api.timeouts.write.
func (c *Config) GetWriteTimeout() time.Duration { return seconds(c.API.Timeouts.Write) }

// GetIdleTimeout returns api.timeouts.idle.
func (c *Config) GetIdleTimeout() time.Duration { return seconds(c.API.Timeouts.Idle) }

// GetPollInterval returns dashboard.poll_interval.
func (c *Config) GetPollInterval() time.Duration { return seconds(c.Dashboard.PollInterval) }

// GetRequestTimeout returns dashboard.request_timeout.
func (c *Config) GetRequestTimeout() time.Duration { return seconds(c.Dashboard.RequestTimeout) }

// GetStatusCheckInterval returns dashboard.status_check_interval; zero
// disables the backend health check.
func (c *Config) GetStatusCheckInterval() time.Duration {
	return seconds(c.Dashboard.StatusCheckInterval)
}
