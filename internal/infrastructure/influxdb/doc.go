// Package influxdb records device telemetry in InfluxDB 2.x.
//
// Every numeric status or named value the backend receives over MQTT
// becomes one point of the device_values measurement:
//
//	device_values,device_id=living_room_temp,value=temperature value=21.5
//
// Telemetry is optional (influxdb.enabled). Writes are batched per
// influxdb.batch_size and influxdb.flush_interval and never block the
// MQTT handlers; failures surface through SetOnError.
package influxdb
