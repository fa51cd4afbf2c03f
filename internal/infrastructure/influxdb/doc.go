// Package influxdb records optical path telemetry in InfluxDB.
//
// Two measurements are written:
//
//	path_transition  tags from, to, status   fields duration_ms, moves_failed
//	axis_position    tags role, axis         field  value
//
// Writes are non-blocking and batched (batch_size, flush_interval).
// Asynchronous write failures are delivered to the SetOnError callback.
//
// Usage:
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WritePathTransition("ar", "spectral", "completed", 2*time.Second, 0)
package influxdb
