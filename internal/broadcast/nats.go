package broadcast

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// NATSConfig holds connection settings for the NATS publisher.
type NATSConfig struct {
	URL           string
	SubjectPrefix string
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultNATSConfig returns the settings used when none are configured.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		SubjectPrefix: "auction.events",
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
	}
}

// NATSPublisher publishes auction events on core NATS subjects of the form
// <prefix>.<auctionID>.<event>.
type NATSPublisher struct {
	nc     *nats.Conn
	config NATSConfig
}

// NewNATSPublisher connects to NATS with reconnect handling.
func NewNATSPublisher(cfg NATSConfig) (*NATSPublisher, error) {
	opts := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
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

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return &NATSPublisher{nc: nc, config: cfg}, nil
}

// Subject returns the subject used for one auction's event.
func (p *NATSPublisher) Subject(auctionID uuid.UUID, event string) string {
	return fmt.Sprintf("%s.%s.%s", p.config.SubjectPrefix, auctionID, event)
}

func (p *NATSPublisher) Publish(ctx context.Context, auctionID uuid.UUID, event string, data []byte) error {
	if err := p.nc.Publish(p.Subject(auctionID, event), data); err != nil {
		return fmt.Errorf("publish %s: %w", event, err)
	}
	return nil
}

// Close drains and closes the NATS connection. Buffered publishes are
// flushed before the connection is torn down.
func (p *NATSPublisher) Close() error {
	return p.nc.Drain()
}
