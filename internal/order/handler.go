package order

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/greenmile/dispensary-backend/internal/user"
)

// Handler exposes the order routes for both the storefront and the operator
// console. A rejected transition never changes the displayed order; the 409
// body carries the authoritative current state so the client can re-render.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterProtectedRoutes(app *fiber.App) {
	app.Get("/api/v1/orders", h.listOrders)
	app.Get("/api/v1/orders/:id<[0-9]+>", h.getOrder)
	app.Post("/api/v1/orders/:id<[0-9]+>/cancel", h.cancelOrder)
	// operator console
	app.Get("/api/v1/admin/orders", h.adminListOrders)
	app.Post("/api/v1/admin/orders/:id<[0-9]+>/advance", h.advanceOrder)
	app.Post("/api/v1/admin/orders/:id<[0-9]+>/cancel", h.adminCancelOrder)
}

type cancelRequest struct {
	Note string `json:"note,omitempty"`
}

var errInvalidOrderID = errors.New("invalid order id")

func (h *Handler) listOrders(c *fiber.Ctx) error {
	userID, err := user.GetUserIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}

	orders, err := h.service.ListByCustomer(userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": err.Error()})
	}
	return c.JSON(orders)
}

func (h *Handler) getOrder(c *fiber.Ctx) error {
	userID, err := user.GetUserIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}

	ord, err := h.loadOwned(c, userID)
	if err != nil {
		return ownedError(c, err)
	}
	return c.JSON(ord)
}

func (h *Handler) cancelOrder(c *fiber.Ctx) error {
	userID, err := user.GetUserIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}

	ord, err := h.loadOwned(c, userID)
	if err != nil {
		return ownedError(c, err)
	}

	payload := new(cancelRequest)
	if err := c.BodyParser(payload); err != nil && len(c.Body()) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}

	updated, err := h.service.Cancel(c.Context(), ord.OrderID, ord.Customer.Name, payload.Note)
	if err != nil {
		return transitionError(c, h.service, ord.OrderID, err)
	}
	return c.JSON(updated)
}

func (h *Handler) adminListOrders(c *fiber.Ctx) error {
	orders, err := h.service.List()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": err.Error()})
	}
	return c.JSON(orders)
}

func (h *Handler) advanceOrder(c *fiber.Ctx) error {
	actor, err := actorName(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}

	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "invalid order id"})
	}

	updated, err := h.service.Advance(c.Context(), id, actor)
	if err != nil {
		return transitionError(c, h.service, id, err)
	}
	return c.JSON(updated)
}

func (h *Handler) adminCancelOrder(c *fiber.Ctx) error {
	actor, err := actorName(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}

	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "invalid order id"})
	}

	payload := new(cancelRequest)
	if err := c.BodyParser(payload); err != nil && len(c.Body()) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}

	updated, err := h.service.Cancel(c.Context(), id, actor, payload.Note)
	if err != nil {
		return transitionError(c, h.service, id, err)
	}
	return c.JSON(updated)
}

// loadOwned fetches the order and enforces ownership. A foreign order reads
// as not-found so order ids don't leak across customers.
func (h *Handler) loadOwned(c *fiber.Ctx, userID int) (Order, error) {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return Order{}, errInvalidOrderID
	}

	ord, err := h.service.GetByID(id)
	if err != nil {
		return Order{}, err
	}
	if ord.Customer.CustomerID != userID {
		return Order{}, ErrNotFound
	}
	return ord, nil
}

func ownedError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, errInvalidOrderID):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": errInvalidOrderID.Error()})
	case errors.Is(err, ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "order not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": err.Error()})
	}
}

func transitionError(c *fiber.Ctx, svc *Service, id int, err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "order not found"})
	case errors.Is(err, ErrConflict):
		// another actor already transitioned; hand back the current state
		// instead of letting the client retry blindly
		res := fiber.Map{"message": "order was updated by another actor"}
		if current, gerr := svc.GetByID(id); gerr == nil {
			res["order"] = current
		}
		return c.Status(fiber.StatusConflict).JSON(res)
	case errors.Is(err, ErrTerminalStatus), errors.Is(err, ErrInvalidTransition):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"message": err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": err.Error()})
	}
}

func actorName(c *fiber.Ctx) (string, error) {
	if _, err := user.GetUserIDFromCtx(c); err != nil {
		return "", err
	}
	if name := c.Get("X-Actor-Name"); name != "" {
		return name, nil
	}
	return "operator", nil
}
