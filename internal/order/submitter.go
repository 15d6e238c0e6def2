package order

import (
	"context"

	"github.com/greenmile/dispensary-backend/internal/cart"
	"github.com/greenmile/dispensary-backend/internal/checkout"
	"github.com/greenmile/dispensary-backend/internal/user"
)

// Submitter adapts the order service to the checkout flow's submission
// boundary. It freezes the cart lines and the customer snapshot onto the
// new order.
type Submitter struct {
	svc   *Service
	users user.ServiceInterface
}

func NewSubmitter(svc *Service, users user.ServiceInterface) *Submitter {
	return &Submitter{svc: svc, users: users}
}

func (s *Submitter) Submit(ctx context.Context, customerID int, snapshot cart.Cart, intent checkout.FulfillmentIntent, paymentMethod string) (checkout.Receipt, error) {
	customer := Customer{CustomerID: customerID}
	if u, err := s.users.GetByID(customerID); err == nil {
		customer.Name = u.FullName()
		customer.Email = u.Email
		customer.Phone = u.Phone
	}

	items := make([]LineItem, 0, len(snapshot.Items))
	for _, it := range snapshot.Items {
		items = append(items, LineItem{
			ProductID:       it.ProductID,
			VariantID:       it.VariantID,
			SKU:             it.SKU,
			Quantity:        it.Quantity,
			UnitPriceCents:  it.UnitPriceCents,
			TotalPriceCents: it.TotalPriceCents,
			WeightGrams:     it.WeightGrams,
		})
	}

	created, err := s.svc.Create(ctx, Order{
		Customer: customer,
		Items:    items,
		Fulfillment: Fulfillment{
			Method:  intent.Method,
			Address: intent.Address,
		},
		PaymentMethod:      paymentMethod,
		SubtotalCents:      snapshot.SubtotalCents,
		PromoDiscountCents: snapshot.PromoDiscountCents,
		TaxCents:           snapshot.TaxCents,
		DeliveryFeeCents:   snapshot.DeliveryFeeCents,
		TotalCents:         snapshot.TotalCents,
	})
	if err != nil {
		return checkout.Receipt{}, err
	}

	if _, err := s.users.AppendOrderID(customerID, created.OrderID); err != nil {
		s.svc.log.Warn("could not append orderID to user")
	}

	return checkout.Receipt{OrderID: created.OrderID, OrderNumber: created.OrderNumber}, nil
}
