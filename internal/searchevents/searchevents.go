// Package searchevents publishes settled searches to Kafka.
package searchevents

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"
)

type Event struct {
	SessionID string    `json:"session_id"`
	Query     string    `json:"query,omitempty"`
	Payload   string    `json:"payload"`
	Outcome   string    `json:"outcome"`
	ItemCount int       `json:"item_count"`
	Overview  bool      `json:"overview"`
	PageView  string    `json:"page_view,omitempty"`
	TS        time.Time `json:"ts"`
}

// Sink accepts events without blocking.
type Sink interface {
	Publish(ev Event)
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(Event) {}

type Publisher struct {
	mu     sync.RWMutex
	closed bool

	topic   string
	events  chan Event
	prod    sarama.AsyncProducer
	logger  *slog.Logger
	stopped chan struct{}
	errDone chan struct{}
}

func NewPublisher(brokers []string, topic string, queueSize int, logger *slog.Logger) (*Publisher, error) {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Producer.Return.Errors = true
	cfg.Producer.Return.Successes = false
	cfg.Producer.RequiredAcks = sarama.WaitForLocal

	prod, err := sarama.NewAsyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("searchevents: create async producer: %w", err)
	}
	return NewWithProducer(prod, topic, queueSize, logger), nil
}

// NewWithProducer publishes through an existing producer, which the
// Publisher owns from then on.
func NewWithProducer(prod sarama.AsyncProducer, topic string, queueSize int, logger *slog.Logger) *Publisher {
	if queueSize <= 0 {
		queueSize = 1024
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	p := &Publisher{
		topic:   topic,
		events:  make(chan Event, queueSize),
		prod:    prod,
		logger:  logger,
		stopped: make(chan struct{}),
		errDone: make(chan struct{}),
	}

	go func() {
		defer close(p.stopped)
		for ev := range p.events {
			b, err := json.Marshal(ev)
			if err != nil {
				p.logger.Error("searchevents: marshal", "err", err)
				continue
			}
			msg := &sarama.ProducerMessage{
				Topic: p.topic,
				Value: sarama.ByteEncoder(b),
			}
			// keep a session's events ordered on one partition
			if ev.SessionID != "" {
				msg.Key = sarama.StringEncoder(ev.SessionID)
			}
			p.prod.Input() <- msg
		}
	}()

	go func() {
		defer close(p.errDone)
		for err := range p.prod.Errors() {
			if err != nil {
				p.logger.Warn("searchevents: producer error", "err", err)
			}
		}
	}()

	return p
}

func (p *Publisher) Publish(ev Event) {
	if ev.TS.IsZero() {
		ev.TS = time.Now().UTC()
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		// late completions during shutdown
		p.logger.Debug("searchevents: publisher closed, event dropped", "session_id", ev.SessionID)
		return
	}
	select {
	case p.events <- ev:
	default:
		// queue full: drop rather than block a search
		p.logger.Debug("searchevents: queue full, event dropped", "session_id", ev.SessionID)
	}
}

// Close drains queued events and closes the producer. Events published
// afterwards are dropped. Close is safe to call more than once.
func (p *Publisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.events)
	p.mu.Unlock()
	<-p.stopped

	err := p.prod.Close()
	<-p.errDone
	if err != nil {
		return fmt.Errorf("searchevents: close producer: %w", err)
	}
	return nil
}
