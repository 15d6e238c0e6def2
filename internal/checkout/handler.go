package checkout

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/greenmile/dispensary-backend/internal/user"
)

// Handler exposes the checkout flow. Validation errors never leave the
// process; submission errors surface on the step they happened on.
type Handler struct {
	sessions *Sessions
}

func NewHandler(sessions *Sessions) *Handler {
	return &Handler{sessions: sessions}
}

func (h *Handler) RegisterProtectedRoutes(app *fiber.App) {
	app.Get("/api/v1/checkout", h.getState)
	app.Post("/api/v1/checkout/fulfillment", h.submitFulfillment)
	app.Post("/api/v1/checkout/payment", h.submitPayment)
	app.Post("/api/v1/checkout/back", h.back)
	app.Post("/api/v1/checkout/submit", h.submit)
	app.Post("/api/v1/checkout/reset", h.reset)
}

func (h *Handler) getState(c *fiber.Ctx) error {
	o, err := h.flow(c)
	if err != nil {
		return unauthorized(c)
	}
	return c.JSON(o.View())
}

func (h *Handler) submitFulfillment(c *fiber.Ctx) error {
	o, err := h.flow(c)
	if err != nil {
		return unauthorized(c)
	}

	payload := new(FulfillmentIntent)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}

	if err := o.SubmitFulfillment(*payload); err != nil {
		return stepError(c, err)
	}
	return c.JSON(o.View())
}

func (h *Handler) submitPayment(c *fiber.Ctx) error {
	o, err := h.flow(c)
	if err != nil {
		return unauthorized(c)
	}

	payload := new(PaymentSelection)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}

	if err := o.SubmitPayment(*payload); err != nil {
		return stepError(c, err)
	}
	return c.JSON(o.View())
}

func (h *Handler) back(c *fiber.Ctx) error {
	o, err := h.flow(c)
	if err != nil {
		return unauthorized(c)
	}

	if err := o.Back(); err != nil {
		return stepError(c, err)
	}
	return c.JSON(o.View())
}

func (h *Handler) submit(c *fiber.Ctx) error {
	o, err := h.flow(c)
	if err != nil {
		return unauthorized(c)
	}

	receipt, err := o.Submit(c.Context())
	if err != nil {
		switch {
		case errors.Is(err, ErrWrongStep), errors.Is(err, ErrEmptyCart):
			return stepError(c, err)
		case errors.Is(err, ErrSubmitInFlight):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"message": err.Error()})
		default:
			// definite server rejection: the flow is in Failed, the cart is
			// intact, and the user decides whether to retry
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"message": err.Error(),
				"state":   o.View(),
			})
		}
	}

	return c.JSON(fiber.Map{"receipt": receipt, "state": o.View()})
}

func (h *Handler) reset(c *fiber.Ctx) error {
	o, err := h.flow(c)
	if err != nil {
		return unauthorized(c)
	}
	o.Reset()
	return c.JSON(o.View())
}

func (h *Handler) flow(c *fiber.Ctx) (*Orchestrator, error) {
	userID, err := user.GetUserIDFromCtx(c)
	if err != nil {
		return nil, err
	}
	return h.sessions.Get(c.Context(), userID), nil
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
}

func stepError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ErrWrongStep):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"message": err.Error()})
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
}
