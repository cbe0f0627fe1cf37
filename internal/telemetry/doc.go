// Package telemetry forwards turret notifications to external observers.
//
// The turret publishes events synchronously on its own goroutines; the
// Forwarder copies each event into a bounded queue and returns at once, so a
// slow broker or database never stalls a fire sequence. When the queue is
// full the event is dropped and counted.
//
// A single worker drains the queue and fans each event out to the sinks
// that are configured:
//
//	turret ──► queue ──► worker ─┬─► MQTT   fbot/{device}/event/{type}, status
//	                             ├─► InfluxDB  turret_* measurements
//	                             └─► WebSocket hub  channel = event type
package telemetry
