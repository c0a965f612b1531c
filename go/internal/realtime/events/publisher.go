package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// Sink receives lifecycle events. Publish must never block the caller; the
// matchmaking engine calls it while holding its state lock.
type Sink interface {
	Publish(event MatchEvent)
}

// NopSink discards every event
type NopSink struct{}

func (NopSink) Publish(MatchEvent) {}

// JetStreamConfig holds configuration for the JetStream publisher
type JetStreamConfig struct {
	URL           string
	StreamName    string
	SubjectPrefix string // events go to <prefix>.match.<type>
	BufferSize    int
	PublishWait   time.Duration
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultJetStreamConfig returns default publisher configuration
func DefaultJetStreamConfig() JetStreamConfig {
	return JetStreamConfig{
		URL:           nats.DefaultURL,
		StreamName:    "MATCH_EVENTS",
		SubjectPrefix: "pairtalk",
		BufferSize:    1000,
		PublishWait:   5 * time.Second,
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

// Publisher is a JetStream backed Sink. Events are queued on a buffered
// channel and written by a single goroutine started with Start.
type Publisher struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	config JetStreamConfig
	ch     chan MatchEvent

	wg sync.WaitGroup
}

// NewPublisher connects to NATS and makes sure the stream exists
func NewPublisher(ctx context.Context, config JetStreamConfig) (*Publisher, error) {
	opts := []nats.Option{
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        config.StreamName,
		Description: "Match lifecycle events",
		Subjects:    []string{config.SubjectPrefix + ".match.>"},
		MaxAge:      24 * time.Hour,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream: %w", err)
	}

	bufferSize := config.BufferSize
	if bufferSize <= 0 {
		bufferSize = 1
	}

	return &Publisher{
		nc:     nc,
		js:     js,
		config: config,
		ch:     make(chan MatchEvent, bufferSize),
	}, nil
}

// Subject returns the subject an event type is published on
func Subject(prefix string, eventType EventType) string {
	return fmt.Sprintf("%s.match.%s", prefix, strings.ToLower(string(eventType)))
}

// Publish queues an event, dropping it if the buffer is full
func (p *Publisher) Publish(event MatchEvent) {
	select {
	case p.ch <- event:
	default:
		log.Warn().
			Str("match_id", event.MatchID).
			Str("event_type", string(event.EventType)).
			Msg("event buffer full, dropping event")
	}
}

// Start drains the queue until ctx is cancelled
func (p *Publisher) Start(ctx context.Context) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		log.Info().Str("stream", p.config.StreamName).Msg("match event publisher started")
		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("match event publisher shutting down")
				return
			case event := <-p.ch:
				if err := p.write(ctx, event); err != nil {
					log.Error().
						Err(err).
						Str("match_id", event.MatchID).
						Str("event_type", string(event.EventType)).
						Msg("failed to publish match event")
				}
			}
		}
	}()
}

func (p *Publisher) write(ctx context.Context, event MatchEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	pubCtx, cancel := context.WithTimeout(ctx, p.config.PublishWait)
	defer cancel()

	subject := Subject(p.config.SubjectPrefix, event.EventType)
	if _, err := p.js.Publish(pubCtx, subject, data, jetstream.WithMsgID(event.EventID)); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}

	log.Debug().
		Str("subject", subject).
		Str("match_id", event.MatchID).
		Msg("match event published")
	return nil
}

// Close waits for the writer goroutine and closes the NATS connection
func (p *Publisher) Close() error {
	p.wg.Wait()
	if p.nc != nil {
		p.nc.Close()
	}
	return nil
}
