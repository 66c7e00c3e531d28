package main

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/hammerdown-io/hammerdown/internal/api"
	"github.com/hammerdown-io/hammerdown/internal/auction"
	"github.com/hammerdown-io/hammerdown/internal/bidder"
	"github.com/hammerdown-io/hammerdown/internal/broadcast"
	"github.com/hammerdown-io/hammerdown/internal/keylock"
	"github.com/hammerdown-io/hammerdown/internal/ledger"
	"github.com/hammerdown-io/hammerdown/internal/memstore"
	"github.com/hammerdown-io/hammerdown/internal/postgres"
	"github.com/hammerdown-io/hammerdown/internal/sale"
	"github.com/hammerdown-io/hammerdown/internal/timer"
)

// storage is the union of every repository the apps consume; both the
// Postgres store and the in-memory store satisfy it.
type storage interface {
	auction.Repository
	ledger.Repository
	sale.Repository
	bidder.Repository
}

// Services holds the wired application layer.
type Services struct {
	API     *api.API
	Timers  *timer.Service
	cleanup []func()
}

// Close releases broker connections and stops every countdown.
func (s *Services) Close() {
	s.Timers.StopAll()
	for _, fn := range s.cleanup {
		fn()
	}
}

func setupServices(config *Config) (*Services, error) {
	services := &Services{}

	// Storage layer.
	var store storage
	switch config.Storage.Backend {
	case "postgres":
		db, err := setupDatabase()
		if err != nil {
			return nil, err
		}
		services.cleanup = append(services.cleanup, func() { db.Close() })

		pg := postgres.NewStore(db)
		if err := pg.InitSchema(context.Background()); err != nil {
			return nil, err
		}
		store = pg
	case "memory":
		store = memstore.New()
		log.Warn().Msg("using in-memory storage, state is lost on restart")
	default:
		return nil, fmt.Errorf("unknown storage backend %q", config.Storage.Backend)
	}

	// Broadcast layer.
	var pub broadcast.Publisher
	switch config.Broadcast.Backend {
	case "nats":
		natsCfg := broadcast.DefaultNATSConfig()
		if config.Broadcast.NATSURL != "" {
			natsCfg.URL = config.Broadcast.NATSURL
		}
		if config.Broadcast.SubjectPrefix != "" {
			natsCfg.SubjectPrefix = config.Broadcast.SubjectPrefix
		}
		natsPub, err := broadcast.NewNATSPublisher(natsCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect broadcast publisher: %w", err)
		}
		services.cleanup = append(services.cleanup, func() {
			if err := natsPub.Close(); err != nil {
				log.Warn().Err(err).Msg("failed to drain NATS connection")
			}
		})
		pub = natsPub
	case "memory":
		pub = broadcast.NewMemoryPublisher()
		log.Warn().Msg("using in-memory broadcast, no events leave the process")
	default:
		return nil, fmt.Errorf("unknown broadcast backend %q", config.Broadcast.Backend)
	}

	// Shared infrastructure: one key lock and one timer service across the
	// apps so per-auction mutations serialize.
	gw := broadcast.NewGateway(pub)
	locks := keylock.New()
	clock := clockwork.NewRealClock()
	services.Timers = timer.NewService()

	salesApp := sale.NewApp(store, services.Timers, gw, locks, clock)
	salesApp.OnRetirement(bidder.NewProvisioner(store))
	ledgerApp := ledger.NewApp(store, services.Timers, gw, locks, clock)
	auctionApp := auction.NewApp(store, services.Timers, salesApp, gw, locks)
	bidderApp := bidder.NewApp(store)

	services.API = &api.API{
		Auctions:   auctionApp,
		Sales:      salesApp,
		Bids:       ledgerApp,
		Bidders:    bidderApp,
		AdminToken: config.Server.AdminToken,
	}
	return services, nil
}
