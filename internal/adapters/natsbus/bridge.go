// Package natsbus forwards event bus topics to NATS subjects.
package natsbus

import (
	"strings"
	"sync/atomic"
	"time"

	"github.com/dkeye/Arena/internal/app/events"
	"github.com/dkeye/Arena/internal/config"
	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// Publisher is the part of *nats.Conn the bridge needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

type Bridge struct {
	pub    Publisher
	prefix string
	log    zerolog.Logger

	unsubscribe func()
	sent        atomic.Int64
	failed      atomic.Int64
}

// Connect dials cfg.URL and returns the connection for the caller to drain on shutdown.
func Connect(cfg config.NATSConfig, logger zerolog.Logger) (*nats.Conn, error) {
	l := logger.With().Str("module", "adapters.natsbus").Logger()
	nc, err := nats.Connect(cfg.URL,
		nats.Name("arena"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			l.Warn().Err(err).Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			l.Info().Str("url", nc.ConnectedUrl()).Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, err
	}
	l.Info().Str("url", nc.ConnectedUrl()).Msg("connected to nats")
	return nc, nil
}

func NewBridge(pub Publisher, prefix string, logger zerolog.Logger) *Bridge {
	return &Bridge{
		pub:    pub,
		prefix: strings.TrimSuffix(prefix, "."),
		log:    logger.With().Str("module", "adapters.natsbus").Logger(),
	}
}

// Subject maps a bus topic to its NATS subject.
func (b *Bridge) Subject(topic string) string {
	if b.prefix == "" {
		return topic
	}
	return b.prefix + "." + topic
}

// Attach subscribes the bridge to every topic on bus.
func (b *Bridge) Attach(bus *events.Bus) {
	b.unsubscribe = bus.Subscribe(events.All, b.forward)
}

func (b *Bridge) Detach() {
	if b.unsubscribe != nil {
		b.unsubscribe()
		b.unsubscribe = nil
	}
}

func (b *Bridge) forward(topic string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		b.failed.Add(1)
		b.log.Error().Err(err).Str("topic", topic).Msg("encode event")
		return
	}
	subject := b.Subject(topic)
	if err := b.pub.Publish(subject, data); err != nil {
		b.failed.Add(1)
		b.log.Warn().Err(err).Str("subject", subject).Msg("publish event")
		return
	}
	b.sent.Add(1)
}

func (b *Bridge) Sent() int64   { return b.sent.Load() }
func (b *Bridge) Failed() int64 { return b.failed.Load() }
