package command

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nerrad567/fbot-core/internal/infrastructure/mqtt"
)

// Subscriber is the subset of *mqtt.Client the listener needs.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// Listener feeds messages from the MQTT command topic into a Dispatcher.
type Listener struct {
	sub        Subscriber
	topic      string
	qos        byte
	dispatcher *Dispatcher
	logger     Logger
}

// NewListener creates a listener for topic. Call Start to subscribe.
func NewListener(sub Subscriber, topic string, qos byte, d *Dispatcher, logger Logger) *Listener {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Listener{sub: sub, topic: topic, qos: qos, dispatcher: d, logger: logger}
}

// Start subscribes to the command topic.
func (l *Listener) Start() error {
	if err := l.sub.Subscribe(l.topic, l.qos, l.handle); err != nil {
		return fmt.Errorf("subscribing to commands: %w", err)
	}
	l.logger.Info("listening for commands", "topic", l.topic)
	return nil
}

// handle decodes one payload. Ignored messages are logged at debug level;
// only undecodable payloads are reported back to the MQTT client.
func (l *Listener) handle(_ string, payload []byte) error {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}

	_, err := l.dispatcher.Handle(msg)
	switch {
	case err == nil:
	case errors.Is(err, ErrNotAllowed):
		l.logger.Debug("command from unlisted user ignored", "user", msg.User, "id", msg.ID)
	default:
		l.logger.Debug("message ignored", "id", msg.ID, "reason", err)
	}
	return nil
}
