// Package api exposes the auction engine over HTTP. Admin operations require
// the configured admin token; bid placement identifies the acting bidder from
// the request body and everything else is readable by any viewer.
package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/hammerdown-io/hammerdown/internal/apperrors"
	"github.com/hammerdown-io/hammerdown/internal/auction"
	"github.com/hammerdown-io/hammerdown/internal/auth"
	"github.com/hammerdown-io/hammerdown/internal/bidder"
	"github.com/hammerdown-io/hammerdown/internal/ledger"
	"github.com/hammerdown-io/hammerdown/internal/sale"
)

// API bundles the app layer behind the HTTP handlers.
type API struct {
	Auctions *auction.App
	Sales    *sale.App
	Bids     *ledger.App
	Bidders  *bidder.App

	// AdminToken guards admin operations. Empty means every caller is
	// treated as admin, for local development only.
	AdminToken string
}

// RegisterRoutes mounts all endpoints under /api.
func (a *API) RegisterRoutes(app *fiber.App) {
	api := app.Group("/api")

	api.Post("/auctions", a.createAuction)
	api.Get("/auctions/:id", a.getAuction)
	api.Delete("/auctions/:id", a.deleteAuction)

	api.Post("/auctions/:id/start", a.startAuction)
	api.Post("/auctions/:id/pause", a.pauseAuction)
	api.Post("/auctions/:id/resume", a.resumeAuction)
	api.Post("/auctions/:id/next-player", a.nextPlayer)
	api.Post("/auctions/:id/end", a.endAuction)
	api.Post("/auctions/:id/reset", a.resetAuction)

	api.Post("/auctions/:id/bids", a.placeBid)
	api.Post("/auctions/:id/bids/undo", a.undoBid)
	api.Get("/auctions/:id/bids", a.bidHistory)
	api.Get("/auctions/:id/bids/highest", a.highestBid)

	api.Get("/auctions/:id/players", a.listPlayers)
	api.Post("/auctions/:id/players", a.registerPlayer)
	api.Post("/auctions/:id/players/:playerId/sold", a.markSold)
	api.Post("/auctions/:id/players/:playerId/unsold", a.markUnsold)
	api.Post("/auctions/:id/players/:playerId/retire", a.retirePlayer)
	api.Post("/auctions/:id/players/:playerId/unretire", a.unretirePlayer)
	api.Post("/auctions/:id/sales/undo", a.undoSale)

	api.Get("/auctions/:id/bidders", a.listBidders)
	api.Post("/auctions/:id/bidders", a.registerBidder)
	api.Delete("/bidders/:id", a.removeBidder)
}

// identity derives the caller's role from the Authorization header.
func (a *API) identity(c *fiber.Ctx) auth.Identity {
	if a.AdminToken == "" {
		return auth.Identity{Role: auth.RoleAdmin}
	}
	if c.Get("Authorization") == "Bearer "+a.AdminToken {
		return auth.Identity{Role: auth.RoleAdmin}
	}
	return auth.Identity{Role: auth.RoleViewer}
}

// ErrorHandler maps domain errors onto HTTP status codes. Taxonomy errors
// carry curated reason strings and are returned as-is; anything else stays in
// the logs, and only administrators see the underlying reason.
func (a *API) ErrorHandler(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case apperrors.IsValidation(err):
		status = fiber.StatusBadRequest
	case apperrors.IsAuthorization(err):
		status = fiber.StatusForbidden
	case apperrors.IsNotFound(err):
		status = fiber.StatusNotFound
	case apperrors.IsConsistency(err):
		status = fiber.StatusConflict
	case apperrors.IsTransient(err):
		status = fiber.StatusServiceUnavailable
	default:
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			status = fiberErr.Code
		} else {
			log.Error().Err(err).Str("path", c.Path()).Msg("unhandled error")
		}
		if !a.identity(c).IsAdmin() {
			return c.Status(status).JSON(fiber.Map{"error": "request failed, please retry"})
		}
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
