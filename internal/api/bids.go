package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/hammerdown-io/hammerdown/internal/apperrors"
)

type placeBidRequest struct {
	PlayerID uuid.UUID `json:"player_id"`
	BidderID uuid.UUID `json:"bidder_id"`
	Amount   int64     `json:"amount"`
}

func (a *API) placeBid(c *fiber.Ctx) error {
	auctionID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req placeBidRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.Validationf("invalid request body: %v", err)
	}

	ev, err := a.Bids.PlaceBid(c.Context(), auctionID, req.PlayerID, req.BidderID, req.Amount)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(ev)
}

type undoBidRequest struct {
	BidderID uuid.UUID `json:"bidder_id"`
}

func (a *API) undoBid(c *fiber.Ctx) error {
	auctionID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req undoBidRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.Validationf("invalid request body: %v", err)
	}

	highest, err := a.Bids.UndoLastBid(c.Context(), auctionID, req.BidderID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"current_bid": highest})
}

func (a *API) bidHistory(c *fiber.Ctx) error {
	auctionID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	history, err := a.Bids.History(c.Context(), auctionID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"events": history})
}

func (a *API) highestBid(c *fiber.Ctx) error {
	auctionID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	highest, err := a.Bids.HighestBid(c.Context(), auctionID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"current_bid": highest})
}
