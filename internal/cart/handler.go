package cart

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/greenmile/dispensary-backend/internal/limits"
	"github.com/greenmile/dispensary-backend/internal/user"
)

const syncTimeout = 10 * time.Second

// Handler exposes the cart routes. Mutations answer immediately with the
// optimistic cart; the pricing sync runs on a background goroutine and any
// correction shows up on the next read.
type Handler struct {
	sessions *Sessions
	fetcher  limits.Fetcher
}

func NewHandler(sessions *Sessions, fetcher limits.Fetcher) *Handler {
	return &Handler{sessions: sessions, fetcher: fetcher}
}

func (h *Handler) RegisterProtectedRoutes(app *fiber.App) {
	app.Get("/api/v1/cart", h.getCart)
	app.Delete("/api/v1/cart", h.clearCart)
	app.Post("/api/v1/cart/items", h.addItem)
	app.Patch("/api/v1/cart/items", h.updateQuantity)
	app.Delete("/api/v1/cart/items", h.removeItem)
	app.Post("/api/v1/cart/promo", h.applyPromo)
	app.Delete("/api/v1/cart/promo", h.removePromo)
}

type addItemRequest struct {
	ProductID      int      `json:"productId"`
	VariantID      int      `json:"variantId"`
	SKU            string   `json:"sku"`
	Quantity       int      `json:"quantity"`
	UnitPriceCents int      `json:"unitPriceCents"`
	WeightGrams    *float64 `json:"weightGrams,omitempty"`
}

type itemKeyRequest struct {
	ProductID int `json:"productId"`
	VariantID int `json:"variantId"`
	Quantity  int `json:"quantity,omitempty"`
}

type promoRequest struct {
	Code string `json:"code"`
}

func (h *Handler) getCart(c *fiber.Ctx) error {
	userID, err := user.GetUserIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}

	store := h.sessions.Get(c.Context(), userID)
	// page mount: reconcile against the server in the background, answer
	// with local state now
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
		defer cancel()
		store.Refresh(ctx)
	}()

	return c.JSON(store.Snapshot())
}

func (h *Handler) addItem(c *fiber.Ctx) error {
	userID, err := user.GetUserIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}

	payload := new(addItemRequest)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	if payload.ProductID <= 0 || payload.VariantID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "invalid product or variant id"})
	}

	// advisory purchase-limit gate; the server re-checks at submission
	var weight float64
	if payload.WeightGrams != nil {
		weight = *payload.WeightGrams
	}
	verdict := limits.Evaluate(weight, payload.Quantity, h.limitState(c, userID))
	if !verdict.CanAdd {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"message": verdict.Warning})
	}

	store := h.sessions.Get(c.Context(), userID)
	snapshot, mut, err := store.AddItem(CartItem{
		ProductID:      payload.ProductID,
		VariantID:      payload.VariantID,
		SKU:            payload.SKU,
		Quantity:       payload.Quantity,
		UnitPriceCents: payload.UnitPriceCents,
		WeightGrams:    payload.WeightGrams,
	})
	if err != nil {
		return mutationError(c, err)
	}
	h.syncLater(store, mut)

	res := fiber.Map{"cart": snapshot}
	if verdict.Warning != "" {
		res["warning"] = verdict.Warning
	}
	return c.JSON(res)
}

func (h *Handler) updateQuantity(c *fiber.Ctx) error {
	userID, err := user.GetUserIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}

	payload := new(itemKeyRequest)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}

	store := h.sessions.Get(c.Context(), userID)
	key := ItemKey{ProductID: payload.ProductID, VariantID: payload.VariantID}
	snapshot, mut, err := store.UpdateQuantity(key, payload.Quantity)
	if err != nil {
		return mutationError(c, err)
	}
	h.syncLater(store, mut)

	return c.JSON(fiber.Map{"cart": snapshot})
}

func (h *Handler) removeItem(c *fiber.Ctx) error {
	userID, err := user.GetUserIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}

	payload := new(itemKeyRequest)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}

	store := h.sessions.Get(c.Context(), userID)
	key := ItemKey{ProductID: payload.ProductID, VariantID: payload.VariantID}
	snapshot, mut, err := store.RemoveItem(key)
	if err != nil {
		return mutationError(c, err)
	}
	h.syncLater(store, mut)

	return c.JSON(fiber.Map{"cart": snapshot})
}

func (h *Handler) applyPromo(c *fiber.Ctx) error {
	userID, err := user.GetUserIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}

	payload := new(promoRequest)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	if payload.Code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "promo code required"})
	}

	store := h.sessions.Get(c.Context(), userID)
	snapshot, mut, err := store.ApplyPromo(payload.Code)
	if err != nil {
		return mutationError(c, err)
	}
	h.syncLater(store, mut)

	return c.JSON(fiber.Map{"cart": snapshot})
}

func (h *Handler) removePromo(c *fiber.Ctx) error {
	userID, err := user.GetUserIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}

	store := h.sessions.Get(c.Context(), userID)
	snapshot, mut, err := store.RemovePromo()
	if err != nil {
		return mutationError(c, err)
	}
	h.syncLater(store, mut)

	return c.JSON(fiber.Map{"cart": snapshot})
}

func (h *Handler) clearCart(c *fiber.Ctx) error {
	userID, err := user.GetUserIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}

	store := h.sessions.Get(c.Context(), userID)
	store.Clear()
	return c.JSON(fiber.Map{"cart": store.Snapshot()})
}

func (h *Handler) syncLater(store *Store, mut *Mutation) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
		defer cancel()
		store.Sync(ctx, mut)
	}()
}

func (h *Handler) limitState(c *fiber.Ctx, userID int) *limits.State {
	if h.fetcher == nil {
		return nil
	}
	state, err := h.fetcher.Remaining(c.Context(), userID)
	if err != nil {
		return nil
	}
	return state
}

func mutationError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrItemNotFound), errors.Is(err, ErrNoPromo):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	case errors.Is(err, ErrPromoPending):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"message": err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": err.Error()})
	}
}
