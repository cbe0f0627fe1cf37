package mqtt

import "fmt"

// systemSegment is the device slot used for process-level topics.
const systemSegment = "system"

// Topics builds the MQTT topic hierarchy for one bot:
//
//	{prefix}/{device}/command       inbound chat-style commands
//	{prefix}/{device}/event/{type}  turret events
//	{prefix}/{device}/status        retained turret snapshot
//	{prefix}/system/status          online/offline (LWT)
type Topics struct {
	Prefix   string
	DeviceID string
}

// NewTopics returns a builder for the given prefix and device, defaulting
// the prefix to "fbot".
func NewTopics(prefix, deviceID string) Topics {
	if prefix == "" {
		prefix = "fbot"
	}
	return Topics{Prefix: prefix, DeviceID: deviceID}
}

// Command is the topic operators publish fire/reload requests to.
func (t Topics) Command() string {
	return fmt.Sprintf("%s/%s/command", t.Prefix, t.DeviceID)
}

// Event is the topic for one turret event type, e.g. fbot/fbot-01/event/fire-done.
func (t Topics) Event(eventType string) string {
	return fmt.Sprintf("%s/%s/event/%s", t.Prefix, t.DeviceID, eventType)
}

// AllEvents matches every event topic of this device.
func (t Topics) AllEvents() string {
	return fmt.Sprintf("%s/%s/event/+", t.Prefix, t.DeviceID)
}

// Status is the retained turret status topic.
func (t Topics) Status() string {
	return fmt.Sprintf("%s/%s/status", t.Prefix, t.DeviceID)
}

// SystemStatus carries the process online/offline state and the LWT.
func (t Topics) SystemStatus() string {
	return fmt.Sprintf("%s/%s/status", t.Prefix, systemSegment)
}
