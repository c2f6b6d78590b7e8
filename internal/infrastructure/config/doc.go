// Package config loads the YAML configuration shared by iotdash and
// iotpanel.
//
// A file is decoded over Default(), then IOTDASH_<SECTION>_<KEY>
// environment variables are applied and the result is validated. Keep
// secrets (MQTT password, InfluxDB token) in the environment.
//
// iotpanel only reads the dashboard, devices and logging sections and
// can run without a file:
//
//	cfg, err := config.LoadOptional(path)
package config
