package limits

import (
	"github.com/gofiber/fiber/v2"
	"github.com/greenmile/dispensary-backend/internal/user"
)

// Handler exposes the advisory limit endpoints used by the storefront.
type Handler struct {
	fetcher Fetcher
}

func NewHandler(fetcher Fetcher) *Handler {
	return &Handler{fetcher: fetcher}
}

func (h *Handler) RegisterProtectedRoutes(app *fiber.App) {
	app.Get("/api/v1/purchase-limit", h.getLimit)
	app.Post("/api/v1/purchase-limit/check", h.checkLimit)
}

func (h *Handler) getLimit(c *fiber.Ctx) error {
	userID, err := user.GetUserIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}

	state := h.stateFor(c, userID)
	if state == nil {
		// advisory only: an unreachable compliance service is not an error
		return c.JSON(fiber.Map{"available": false})
	}
	return c.JSON(fiber.Map{"available": true, "limit": state})
}

type checkRequest struct {
	WeightGrams float64 `json:"weightGrams"`
	Quantity    int     `json:"quantity"`
}

func (h *Handler) checkLimit(c *fiber.Ctx) error {
	userID, err := user.GetUserIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}

	payload := new(checkRequest)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}

	state := h.stateFor(c, userID)
	return c.JSON(Evaluate(payload.WeightGrams, payload.Quantity, state))
}

func (h *Handler) stateFor(c *fiber.Ctx, userID int) *State {
	if h.fetcher == nil {
		return nil
	}
	state, err := h.fetcher.Remaining(c.Context(), userID)
	if err != nil {
		return nil
	}
	return state
}
