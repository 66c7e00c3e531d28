package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/hammerdown-io/hammerdown/internal/broadcast"
)

// ConsumerConfig holds NATS subscription configuration for the viewer
// gateway.
type ConsumerConfig struct {
	URL           string
	SubjectPrefix string
	MaxReconnects int
	ReconnectWait time.Duration
}

func DefaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		URL:           nats.DefaultURL,
		SubjectPrefix: "auction.events",
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
	}
}

// EventConsumer subscribes to the auction event subjects and relays each
// envelope to the websocket viewers of its auction.
type EventConsumer struct {
	manager *ConnectionManager
	nc      *nats.Conn
	sub     *nats.Subscription
	config  ConsumerConfig
}

func NewEventConsumer(manager *ConnectionManager, config ConsumerConfig) (*EventConsumer, error) {
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

	return &EventConsumer{
		manager: manager,
		nc:      nc,
		config:  config,
	}, nil
}

// Start subscribes to every auction event subject.
func (ec *EventConsumer) Start() error {
	subject := ec.config.SubjectPrefix + ".>"
	sub, err := ec.nc.Subscribe(subject, ec.handleMessage)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", subject, err)
	}
	ec.sub = sub

	log.Info().Str("subject", subject).Msg("event consumer started")
	return nil
}

func (ec *EventConsumer) handleMessage(msg *nats.Msg) {
	var env broadcast.Envelope
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		log.Error().Err(err).Str("subject", msg.Subject).Msg("malformed event envelope")
		return
	}
	auctionID, err := uuid.Parse(env.AuctionID)
	if err != nil {
		log.Error().Err(err).Str("subject", msg.Subject).Msg("envelope has invalid auction id")
		return
	}

	ec.manager.Relay(auctionID, msg.Data)
}

// Stop unsubscribes and drains the NATS connection.
func (ec *EventConsumer) Stop() error {
	if ec.sub != nil {
		if err := ec.sub.Unsubscribe(); err != nil {
			log.Warn().Err(err).Msg("failed to unsubscribe")
		}
	}
	if ec.nc != nil {
		return ec.nc.Drain()
	}
	return nil
}
