// Package mqtt connects FBot Core to an MQTT broker.
//
// The broker is both the inbound command channel (operators publish chat
// style messages such as "!abfire 3") and the outbound telemetry channel
// (turret events and a retained status snapshot).
//
// # Topics
//
//	fbot/{device}/command
//	fbot/{device}/event/{type}
//	fbot/{device}/status      (retained)
//	fbot/system/status        (retained, LWT)
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, cfg.Device.ID, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe(client.Topics().Command(), 1,
//	    func(topic string, payload []byte) error {
//	        return listener.Handle(payload)
//	    })
//
// Handlers are wrapped with panic recovery; a panicking handler is logged
// and the client keeps running.
package mqtt
