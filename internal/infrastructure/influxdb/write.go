package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Telemetry schema: one measurement, one float field, tagged by device
// and reading name.
const (
	MeasurementDeviceValues = "device_values"
	TagDeviceID             = "device_id"
	TagValue                = "value"
	FieldValue              = "value"
)

// WriteDeviceMetric queues one numeric reading. name is "status" for the
// primary state or the name of a sub-value. Dropped after Close.
//
//	client.WriteDeviceMetric("living_room_temp", "temperature", 21.5)
func (c *Client) WriteDeviceMetric(deviceID, name string, value float64) {
	c.write(devicePoint(deviceID, name, value, time.Now()))
}

func (c *Client) write(p *write.Point) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.open {
		c.writer.WritePoint(p)
	}
}

func devicePoint(deviceID, name string, value float64, at time.Time) *write.Point {
	return write.NewPointWithMeasurement(MeasurementDeviceValues).
		AddTag(TagDeviceID, deviceID).
		AddTag(TagValue, name).
		AddField(FieldValue, value).
		SetTime(at)
}
