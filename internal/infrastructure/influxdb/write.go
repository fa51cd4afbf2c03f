package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementPathTransition = "path_transition"
	MeasurementAxisPosition   = "axis_position"
)

// WritePathTransition records one optical path change. from is empty for
// the first transition after startup.
func (c *Client) WritePathTransition(from, to, status string, duration time.Duration, movesFailed int) {
	c.writePoint(transitionPoint(from, to, status, duration, movesFailed, time.Now()))
}

// WriteAxisPosition records the position an actuator axis was sent to.
func (c *Client) WriteAxisPosition(role, axis string, value float64) {
	c.writePoint(axisPoint(role, axis, value, time.Now()))
}

func (c *Client) writePoint(p *write.Point) {
	if !c.IsConnected() || c.writeAPI == nil {
		return
	}
	c.writeAPI.WritePoint(p)
}

func transitionPoint(from, to, status string, duration time.Duration, movesFailed int, at time.Time) *write.Point {
	if from == "" {
		from = "none"
	}
	return write.NewPoint(MeasurementPathTransition,
		map[string]string{
			"from":   from,
			"to":     to,
			"status": status,
		},
		map[string]any{
			"duration_ms":  duration.Milliseconds(),
			"moves_failed": movesFailed,
		},
		at)
}

func axisPoint(role, axis string, value float64, at time.Time) *write.Point {
	return write.NewPoint(MeasurementAxisPosition,
		map[string]string{
			"role": role,
			"axis": axis,
		},
		map[string]any{"value": value},
		at)
}
