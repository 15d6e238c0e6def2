package cart

import "errors"

var (
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrItemNotFound    = errors.New("item not in cart")
	ErrPromoPending    = errors.New("a promo application is already in flight")
	ErrNoPromo         = errors.New("no promo applied")
)

// MaxLineQuantity bounds a single line; anything larger is a fat-finger or
// an abuse attempt and is rejected locally.
const MaxLineQuantity = 99

// ItemKey is the composite identity of a cart line. A product can appear
// several times with different variants (package sizes), never twice with
// the same variant.
type ItemKey struct {
	ProductID int
	VariantID int
}

// CartItem is one line of the cart. UnitPriceCents is server-authoritative
// once a quote has come back; TotalPriceCents is always recomputed, never
// set directly.
type CartItem struct {
	ProductID       int      `json:"productId"`
	VariantID       int      `json:"variantId"`
	SKU             string   `json:"sku"`
	Quantity        int      `json:"quantity"`
	UnitPriceCents  int      `json:"unitPriceCents"`
	TotalPriceCents int      `json:"totalPriceCents"`
	WeightGrams     *float64 `json:"weightGrams,omitempty"`
}

func (i CartItem) Key() ItemKey {
	return ItemKey{ProductID: i.ProductID, VariantID: i.VariantID}
}

// Cart holds the line items plus the server-computed money fields. Item order
// is insertion order; it is display order only, nothing hangs off it.
type Cart struct {
	Items                []CartItem `json:"items"`
	PromoCode            *string    `json:"promoCode,omitempty"`
	PromoDiscountCents   int        `json:"promoDiscountCents"`
	TaxCents             int        `json:"taxCents"`
	DeliveryFeeCents     int        `json:"deliveryFeeCents"`
	SubtotalCents        int        `json:"subtotalCents"`
	TotalCents           int        `json:"totalCents"`
	ExceedsPurchaseLimit bool       `json:"exceedsPurchaseLimit"`
}

// Recompute re-derives every line total, the subtotal and the grand total.
// It runs after every mutation and every reconcile; derived totals are never
// mutated independently.
func (c *Cart) Recompute() {
	subtotal := 0
	for i := range c.Items {
		c.Items[i].TotalPriceCents = c.Items[i].UnitPriceCents * c.Items[i].Quantity
		subtotal += c.Items[i].TotalPriceCents
	}
	c.SubtotalCents = subtotal

	total := subtotal - c.PromoDiscountCents + c.TaxCents + c.DeliveryFeeCents
	if total < 0 {
		total = 0
	}
	c.TotalCents = total
}

// ItemCount is the sum of line quantities, the number shown on the cart badge.
func (c Cart) ItemCount() int {
	n := 0
	for _, item := range c.Items {
		n += item.Quantity
	}
	return n
}

func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Clone returns a deep copy safe to hand outside the store's lock.
func (c Cart) Clone() Cart {
	out := c
	out.Items = make([]CartItem, len(c.Items))
	copy(out.Items, c.Items)
	if c.PromoCode != nil {
		code := *c.PromoCode
		out.PromoCode = &code
	}
	return out
}

func (c Cart) indexOf(key ItemKey) int {
	for i, item := range c.Items {
		if item.Key() == key {
			return i
		}
	}
	return -1
}
