// Package logging configures structured log/slog output for the backend
// and the terminal dashboard.
//
//	logging:
//	  level: info      # debug, info, warn, error
//	  format: json     # json or text
//	  output: stdout   # stdout or stderr
//
// Every entry carries service and version fields; subsystems add a
// component field:
//
//	log := logging.New(cfg.Logging, version)
//	log.Component("api").Info("listening", "addr", addr)
//
// Do not log credentials. The MQTT password and InfluxDB token never
// leave the config package.
package logging
