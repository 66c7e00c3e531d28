package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/hammerdown-io/hammerdown/internal/apperrors"
	"github.com/hammerdown-io/hammerdown/internal/models"
)

type registerPlayerRequest struct {
	Name       string            `json:"name"`
	BasePrice  int64             `json:"base_price"`
	IsIcon     bool              `json:"is_icon"`
	Attributes map[string]string `json:"attributes"`
}

func (a *API) registerPlayer(c *fiber.Ctx) error {
	auctionID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req registerPlayerRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.Validationf("invalid request body: %v", err)
	}

	created, err := a.Sales.RegisterPlayer(c.Context(), &models.Player{
		AuctionID:  auctionID,
		Name:       req.Name,
		BasePrice:  req.BasePrice,
		IsIcon:     req.IsIcon,
		Attributes: req.Attributes,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

func (a *API) listPlayers(c *fiber.Ctx) error {
	auctionID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	players, err := a.Auctions.ListPlayers(c.Context(), auctionID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"players": players})
}

type markSoldRequest struct {
	BidderID uuid.UUID `json:"bidder_id"`
	Amount   int64     `json:"amount"`
}

func (a *API) markSold(c *fiber.Ctx) error {
	auctionID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	playerID, err := parseID(c, "playerId")
	if err != nil {
		return err
	}
	var req markSoldRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.Validationf("invalid request body: %v", err)
	}

	sold, err := a.Sales.MarkSold(c.Context(), a.identity(c), auctionID, playerID, req.BidderID, req.Amount)
	if err != nil {
		return err
	}
	return c.JSON(sold)
}

func (a *API) markUnsold(c *fiber.Ctx) error {
	auctionID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	playerID, err := parseID(c, "playerId")
	if err != nil {
		return err
	}
	unsold, err := a.Sales.MarkUnsold(c.Context(), a.identity(c), auctionID, playerID)
	if err != nil {
		return err
	}
	return c.JSON(unsold)
}

func (a *API) undoSale(c *fiber.Ctx) error {
	auctionID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	restored, err := a.Sales.UndoSale(c.Context(), a.identity(c), auctionID)
	if err != nil {
		return err
	}
	return c.JSON(restored)
}

func (a *API) retirePlayer(c *fiber.Ctx) error {
	auctionID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	playerID, err := parseID(c, "playerId")
	if err != nil {
		return err
	}
	if err := a.Sales.RetirePlayer(c.Context(), a.identity(c), auctionID, playerID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (a *API) unretirePlayer(c *fiber.Ctx) error {
	auctionID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	playerID, err := parseID(c, "playerId")
	if err != nil {
		return err
	}
	if err := a.Sales.UnretirePlayer(c.Context(), a.identity(c), auctionID, playerID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
