package command

import (
	"context"
	"errors"
	"testing"

	"github.com/nerrad567/fbot-core/internal/infrastructure/mqtt"
)

type fakeSubscriber struct {
	topic   string
	qos     byte
	handler mqtt.MessageHandler
	err     error
}

func (s *fakeSubscriber) Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error {
	if s.err != nil {
		return s.err
	}
	s.topic, s.qos, s.handler = topic, qos, handler
	return nil
}

func TestListener_Start(t *testing.T) {
	sub := &fakeSubscriber{}
	d := NewDispatcher(context.Background(), testCommandConfig(), &fakeTurret{}, nil)
	l := NewListener(sub, "fbot/fbot-01/command", 1, d, nil)

	if err := l.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if sub.topic != "fbot/fbot-01/command" || sub.qos != 1 || sub.handler == nil {
		t.Errorf("subscription = %q qos %d", sub.topic, sub.qos)
	}
}

func TestListener_StartError(t *testing.T) {
	sub := &fakeSubscriber{err: mqtt.ErrNotConnected}
	d := NewDispatcher(context.Background(), testCommandConfig(), &fakeTurret{}, nil)

	if err := NewListener(sub, "t", 1, d, nil).Start(); !errors.Is(err, mqtt.ErrNotConnected) {
		t.Errorf("Start() error = %v, want ErrNotConnected", err)
	}
}

func TestListener_Handle(t *testing.T) {
	ft := &fakeTurret{}
	sub := &fakeSubscriber{}
	d := NewDispatcher(context.Background(), testCommandConfig(), ft, nil)
	if err := NewListener(sub, "t", 1, d, nil).Start(); err != nil {
		t.Fatal(err)
	}

	if err := sub.handler("t", []byte(`{"id":"m9","user":"alice","text":"!abfire 2"}`)); err != nil {
		t.Fatalf("handler error = %v", err)
	}
	if err := sub.handler("t", []byte(`{"id":"m10","user":"mallory","text":"!abfire 2"}`)); err != nil {
		t.Errorf("ignored message returned error = %v", err)
	}
	d.Wait()

	calls := ft.calls()
	if len(calls) != 1 || calls[0] != (fireCall{count: 2, requestID: "m9"}) {
		t.Errorf("Fire calls = %+v", calls)
	}
}

func TestListener_InvalidPayload(t *testing.T) {
	sub := &fakeSubscriber{}
	d := NewDispatcher(context.Background(), testCommandConfig(), &fakeTurret{}, nil)
	if err := NewListener(sub, "t", 1, d, nil).Start(); err != nil {
		t.Fatal(err)
	}

	if err := sub.handler("t", []byte("not json")); !errors.Is(err, ErrInvalidMessage) {
		t.Errorf("handler error = %v, want ErrInvalidMessage", err)
	}
}
