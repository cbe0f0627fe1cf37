// Package influxdb records turret telemetry in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library. Every point is tagged
// with the device ID and written through the non-blocking batched write API.
//
// # Measurements
//
//   - turret_shot: one point per released ball
//   - turret_magazine: loaded/empty transitions and reloads
//   - turret_motion: completed axis moves
//   - turret_session: fire sequence outcomes
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB, cfg.Device.ID)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteShot("req-42", 5, time.Now())
//
// Write failures arrive asynchronously; register a callback with SetOnError.
package influxdb
