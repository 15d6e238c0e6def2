package cart

import (
	"context"
	"io"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/greenmile/dispensary-backend/internal/limits"
)

type stubFetcher struct {
	state *limits.State
}

func (s *stubFetcher) Remaining(ctx context.Context, customerID int) (*limits.State, error) {
	if s.state == nil {
		return nil, limits.ErrUnavailable
	}
	return s.state, nil
}

// helper to build an app with a simple "bootstrap" middleware that injects a
// jwt.Token into locals when the X-User-ID header is provided. This avoids
// pulling in the full jwtware middleware and keeps tests lightweight.
func makeAppWithCartHandler(h *Handler) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if v := c.Get("X-User-ID"); v != "" {
			id, err := strconv.Atoi(v)
			if err == nil {
				claims := jwt.MapClaims{"user_id": id}
				tok := &jwt.Token{Claims: claims}
				c.Locals("user", tok)
			}
		}
		return c.Next()
	})
	h.RegisterProtectedRoutes(app)
	return app
}

func TestCartRoutes_RequireAuth(t *testing.T) {
	sessions := NewSessions(nil, nil, nil)
	app := makeAppWithCartHandler(NewHandler(sessions, nil))

	req := httptest.NewRequest("GET", "/api/v1/cart", nil)
	res, err := app.Test(req)
	if err != nil {
		t.Fatalf("cart request failed: %v", err)
	}
	if res.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", res.StatusCode)
	}
}

func TestAddItemRoute_OptimisticResponse(t *testing.T) {
	sessions := NewSessions(nil, nil, nil)
	app := makeAppWithCartHandler(NewHandler(sessions, nil))

	body := `{"productId":1,"variantId":2,"sku":"GM-OG-3.5","quantity":2,"unitPriceCents":2000,"weightGrams":3.5}`
	req := httptest.NewRequest("POST", "/api/v1/cart/items", strings.NewReader(body))
	req.Header.Set("X-User-ID", "7")
	req.Header.Set("Content-Type", "application/json")
	res, err := app.Test(req)
	if err != nil {
		t.Fatalf("add item failed: %v", err)
	}
	if res.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", res.StatusCode)
	}
	b, _ := io.ReadAll(res.Body)
	resBody := string(b)
	if !strings.Contains(resBody, "GM-OG-3.5") {
		t.Fatalf("response missing added item: %s", resBody)
	}
	if !strings.Contains(resBody, `"subtotalCents":4000`) {
		t.Fatalf("expected recomputed subtotal in response: %s", resBody)
	}

	// the line is visible on the next read immediately
	req2 := httptest.NewRequest("GET", "/api/v1/cart", nil)
	req2.Header.Set("X-User-ID", "7")
	res2, err := app.Test(req2)
	if err != nil {
		t.Fatalf("get cart failed: %v", err)
	}
	b2, _ := io.ReadAll(res2.Body)
	if !strings.Contains(string(b2), `"quantity":2`) {
		t.Fatalf("cart read missing item: %s", string(b2))
	}
}

func TestAddItemRoute_BlockedByPurchaseLimit(t *testing.T) {
	sessions := NewSessions(nil, nil, nil)
	fetcher := &stubFetcher{state: &limits.State{DailyLimitGrams: 28, ConsumedGrams: 25, RemainingGrams: 3}}
	app := makeAppWithCartHandler(NewHandler(sessions, fetcher))

	body := `{"productId":1,"variantId":2,"quantity":1,"unitPriceCents":2000,"weightGrams":3.5}`
	req := httptest.NewRequest("POST", "/api/v1/cart/items", strings.NewReader(body))
	req.Header.Set("X-User-ID", "7")
	req.Header.Set("Content-Type", "application/json")
	res, err := app.Test(req)
	if err != nil {
		t.Fatalf("add item failed: %v", err)
	}
	if res.StatusCode != fiber.StatusUnprocessableEntity {
		t.Fatalf("expected 422 when over limit, got %d", res.StatusCode)
	}
	b, _ := io.ReadAll(res.Body)
	if !strings.Contains(string(b), "purchase limit reached") {
		t.Fatalf("expected limit message, got %s", string(b))
	}

	// nothing was added
	req2 := httptest.NewRequest("GET", "/api/v1/cart", nil)
	req2.Header.Set("X-User-ID", "7")
	res2, _ := app.Test(req2)
	b2, _ := io.ReadAll(res2.Body)
	if !strings.Contains(string(b2), `"items":[]`) {
		t.Fatalf("cart should be empty after blocked add: %s", string(b2))
	}
}

func TestAddItemRoute_WarningIncludedNearLimit(t *testing.T) {
	sessions := NewSessions(nil, nil, nil)
	fetcher := &stubFetcher{state: &limits.State{DailyLimitGrams: 28, ConsumedGrams: 23, RemainingGrams: 5}}
	app := makeAppWithCartHandler(NewHandler(sessions, fetcher))

	body := `{"productId":1,"variantId":2,"quantity":1,"unitPriceCents":2000,"weightGrams":3.5}`
	req := httptest.NewRequest("POST", "/api/v1/cart/items", strings.NewReader(body))
	req.Header.Set("X-User-ID", "7")
	req.Header.Set("Content-Type", "application/json")
	res, err := app.Test(req)
	if err != nil {
		t.Fatalf("add item failed: %v", err)
	}
	if res.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200 with warning, got %d", res.StatusCode)
	}
	b, _ := io.ReadAll(res.Body)
	if !strings.Contains(string(b), "daily allowance") {
		t.Fatalf("expected allowance warning, got %s", string(b))
	}
}

func TestUpdateAndRemoveRoutes(t *testing.T) {
	sessions := NewSessions(nil, nil, nil)
	app := makeAppWithCartHandler(NewHandler(sessions, nil))

	add := `{"productId":1,"variantId":1,"quantity":2,"unitPriceCents":1000}`
	req := httptest.NewRequest("POST", "/api/v1/cart/items", strings.NewReader(add))
	req.Header.Set("X-User-ID", "7")
	req.Header.Set("Content-Type", "application/json")
	if _, err := app.Test(req); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	patch := `{"productId":1,"variantId":1,"quantity":5}`
	req2 := httptest.NewRequest("PATCH", "/api/v1/cart/items", strings.NewReader(patch))
	req2.Header.Set("X-User-ID", "7")
	req2.Header.Set("Content-Type", "application/json")
	res2, err := app.Test(req2)
	if err != nil {
		t.Fatalf("patch failed: %v", err)
	}
	b2, _ := io.ReadAll(res2.Body)
	if !strings.Contains(string(b2), `"quantity":5`) {
		t.Fatalf("expected updated quantity, got %s", string(b2))
	}

	// quantity below one is rejected, not treated as removal
	bad := `{"productId":1,"variantId":1,"quantity":0}`
	req3 := httptest.NewRequest("PATCH", "/api/v1/cart/items", strings.NewReader(bad))
	req3.Header.Set("X-User-ID", "7")
	req3.Header.Set("Content-Type", "application/json")
	res3, err := app.Test(req3)
	if err != nil {
		t.Fatalf("patch failed: %v", err)
	}
	if res3.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected 400 for zero quantity, got %d", res3.StatusCode)
	}

	del := `{"productId":1,"variantId":1}`
	req4 := httptest.NewRequest("DELETE", "/api/v1/cart/items", strings.NewReader(del))
	req4.Header.Set("X-User-ID", "7")
	req4.Header.Set("Content-Type", "application/json")
	res4, err := app.Test(req4)
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	b4, _ := io.ReadAll(res4.Body)
	if !strings.Contains(string(b4), `"items":[]`) {
		t.Fatalf("expected empty cart after removal, got %s", string(b4))
	}
}

func TestPromoRoutes(t *testing.T) {
	sessions := NewSessions(nil, nil, nil)
	app := makeAppWithCartHandler(NewHandler(sessions, nil))

	// removing with no promo applied is a client error
	req := httptest.NewRequest("DELETE", "/api/v1/cart/promo", nil)
	req.Header.Set("X-User-ID", "7")
	res, err := app.Test(req)
	if err != nil {
		t.Fatalf("remove promo failed: %v", err)
	}
	if res.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected 400 with no promo, got %d", res.StatusCode)
	}

	apply := `{"code":"WELCOME10"}`
	req2 := httptest.NewRequest("POST", "/api/v1/cart/promo", strings.NewReader(apply))
	req2.Header.Set("X-User-ID", "7")
	req2.Header.Set("Content-Type", "application/json")
	res2, err := app.Test(req2)
	if err != nil {
		t.Fatalf("apply promo failed: %v", err)
	}
	b2, _ := io.ReadAll(res2.Body)
	if !strings.Contains(string(b2), "WELCOME10") {
		t.Fatalf("expected promo code in cart, got %s", string(b2))
	}

	// the first application has no pricing backend, so it stays pending;
	// a second application conflicts
	req3 := httptest.NewRequest("POST", "/api/v1/cart/promo", strings.NewReader(`{"code":"OTHER"}`))
	req3.Header.Set("X-User-ID", "7")
	req3.Header.Set("Content-Type", "application/json")
	res3, err := app.Test(req3)
	if err != nil {
		t.Fatalf("second apply failed: %v", err)
	}
	if res3.StatusCode != fiber.StatusConflict {
		t.Fatalf("expected 409 while promo in flight, got %d", res3.StatusCode)
	}
}

func TestClearCartRoute(t *testing.T) {
	sessions := NewSessions(nil, nil, nil)
	app := makeAppWithCartHandler(NewHandler(sessions, nil))

	add := `{"productId":1,"variantId":1,"quantity":2,"unitPriceCents":1000}`
	req := httptest.NewRequest("POST", "/api/v1/cart/items", strings.NewReader(add))
	req.Header.Set("X-User-ID", "7")
	req.Header.Set("Content-Type", "application/json")
	if _, err := app.Test(req); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	req2 := httptest.NewRequest("DELETE", "/api/v1/cart", nil)
	req2.Header.Set("X-User-ID", "7")
	res2, err := app.Test(req2)
	if err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	b2, _ := io.ReadAll(res2.Body)
	if !strings.Contains(string(b2), `"items":[]`) {
		t.Fatalf("expected empty cart after clear, got %s", string(b2))
	}
}
