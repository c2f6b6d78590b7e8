// Package api implements the HTTP REST API consumed by the dashboard.
//
// This package provides:
//   - GET /api/status: API health and broker connectivity
//   - GET /api/devices, GET /api/rooms: the catalogue in display order
//   - GET /api/devices/status: the status snapshot the dashboard polls
//   - POST /api/device/{id}/control: forwards a command over MQTT
//   - POST /api/devices, PUT and DELETE /api/device/{id}: device CRUD
//   - GET /api/audit: catalogue changes and commands, newest first
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Architecture
//
// The dashboard never talks to the broker. It polls the snapshot endpoint
// and sends commands through the control endpoint, which publishes them to
// the device's command topic:
//
//	Dashboard → POST /api/device/kitchen_light/control {"command":"on"}
//	          → MQTT iot/device/kitchen_light/command "on"
//
// # Graceful Degradation
//
// The server operates without MQTT: reads work and /api/status reports
// mqtt_connected=false, only device commands fail.
package api
