package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/hammerdown-io/hammerdown/internal/apperrors"
	"github.com/hammerdown-io/hammerdown/internal/models"
)

type registerBidderRequest struct {
	Slug        string     `json:"slug"`
	TeamName    string     `json:"team_name"`
	PhotoURL    string     `json:"photo_url"`
	PurseAmount int64      `json:"purse_amount"`
	UserID      *uuid.UUID `json:"user_id"`
}

func (a *API) registerBidder(c *fiber.Ctx) error {
	auctionID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req registerBidderRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.Validationf("invalid request body: %v", err)
	}

	created, err := a.Bidders.Register(c.Context(), &models.Bidder{
		AuctionID:   auctionID,
		UserID:      req.UserID,
		Slug:        req.Slug,
		TeamName:    req.TeamName,
		PhotoURL:    req.PhotoURL,
		PurseAmount: req.PurseAmount,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

func (a *API) listBidders(c *fiber.Ctx) error {
	auctionID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	bidders, err := a.Bidders.List(c.Context(), auctionID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"bidders": bidders})
}

func (a *API) removeBidder(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if ident := a.identity(c); !ident.IsAdmin() {
		return apperrors.Authorizationf("role %s may not remove bidders", ident.Role)
	}
	if err := a.Bidders.Remove(c.Context(), id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
