package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/hammerdown-io/hammerdown/internal/apperrors"
	"github.com/hammerdown-io/hammerdown/internal/models"
)

type createAuctionRequest struct {
	Name  string              `json:"name"`
	Rules models.AuctionRules `json:"rules"`
}

func (a *API) createAuction(c *fiber.Ctx) error {
	var req createAuctionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.Validationf("invalid request body: %v", err)
	}

	created, err := a.Auctions.Create(c.Context(), a.identity(c), &models.Auction{
		Name:  req.Name,
		Rules: req.Rules,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

func (a *API) getAuction(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	auction, err := a.Auctions.Get(c.Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(auction)
}

func (a *API) deleteAuction(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := a.Auctions.Delete(c.Context(), a.identity(c), id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (a *API) startAuction(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	first, err := a.Auctions.Start(c.Context(), a.identity(c), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"current_player": first})
}

func (a *API) pauseAuction(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := a.Auctions.Pause(c.Context(), a.identity(c), id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (a *API) resumeAuction(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := a.Auctions.Resume(c.Context(), a.identity(c), id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (a *API) nextPlayer(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	next, err := a.Auctions.NextPlayer(c.Context(), a.identity(c), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"current_player": next})
}

func (a *API) endAuction(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := a.Auctions.End(c.Context(), a.identity(c), id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (a *API) resetAuction(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := a.Auctions.Reset(c.Context(), a.identity(c), id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func parseID(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, apperrors.Validationf("invalid %s: %v", name, err)
	}
	return id, nil
}
