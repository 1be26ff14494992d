package searchevents

import (
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
)

func testConfig() *sarama.Config {
	cfg := mocks.NewTestConfig()
	cfg.Producer.Return.Errors = true
	return cfg
}

func TestPublish_EncodesEventWithSessionKey(t *testing.T) {
	prod := mocks.NewAsyncProducer(t, testConfig())
	prod.ExpectInputWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != "search-issued" {
			return errors.New("wrong topic " + msg.Topic)
		}
		key, err := msg.Key.Encode()
		if err != nil || string(key) != "s1" {
			return errors.New("missing session key")
		}
		b, err := msg.Value.Encode()
		if err != nil {
			return err
		}
		var ev Event
		if err := json.Unmarshal(b, &ev); err != nil {
			return err
		}
		if ev.Outcome != "network" || ev.ItemCount != 3 || ev.TS.IsZero() {
			return errors.New("unexpected event " + string(b))
		}
		return nil
	})

	p := NewWithProducer(prod, "search-issued", 4, nil)
	p.Publish(Event{SessionID: "s1", Payload: "json=true", Outcome: "network", ItemCount: 3})
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestPublish_ProducerErrorDoesNotBlock(t *testing.T) {
	prod := mocks.NewAsyncProducer(t, testConfig())
	prod.ExpectInputAndFail(sarama.ErrOutOfBrokers)
	prod.ExpectInputAndSucceed()

	p := NewWithProducer(prod, "search-issued", 4, nil)
	p.Publish(Event{Payload: "a"})
	p.Publish(Event{Payload: "b"})

	done := make(chan error, 1)
	go func() { done <- p.Close() }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Close: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Close blocked")
	}
}

func TestPublish_DropsWhenQueueFull(t *testing.T) {
	p := &Publisher{events: make(chan Event, 1), logger: slog.New(slog.DiscardHandler)}
	p.Publish(Event{Payload: "kept"})
	p.Publish(Event{Payload: "dropped"})
	if len(p.events) != 1 {
		t.Fatalf("queue len=%d want 1", len(p.events))
	}
	if ev := <-p.events; ev.Payload != "kept" {
		t.Fatalf("kept %q", ev.Payload)
	}
}

func TestPublish_AfterCloseIsDropped(t *testing.T) {
	prod := mocks.NewAsyncProducer(t, testConfig())
	p := NewWithProducer(prod, "search-issued", 4, nil)
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// a search settling during shutdown must not bring the process down
	p.Publish(Event{SessionID: "s1", Outcome: "aborted"})
	if err := p.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestNop(t *testing.T) {
	var s Sink = Nop{}
	s.Publish(Event{})
}
