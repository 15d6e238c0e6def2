package cart

// Reconcile merges an authoritative server cart into the local one.
//
// The server owns everything it computes with rules the client does not
// have: tax, promo discount, delivery fee, the purchase-limit flag and unit
// prices. The local cart owns the existence and quantity of any line whose
// version advanced after the server snapshot was requested (requested vs
// current), so an in-flight optimistic edit is never clobbered by a stale
// read. Removals bump versions too, which is what keeps a stale server copy
// from resurrecting a line the user just deleted.
//
// Lines the server has that the local cart never touched (added from another
// device or tab) are merged in at the end.
func Reconcile(local, server Cart, requested, current Versions) Cart {
	merged := Cart{
		PromoCode:            local.PromoCode,
		PromoDiscountCents:   server.PromoDiscountCents,
		TaxCents:             server.TaxCents,
		DeliveryFeeCents:     server.DeliveryFeeCents,
		ExceedsPurchaseLimit: server.ExceedsPurchaseLimit,
	}

	serverByKey := make(map[ItemKey]CartItem, len(server.Items))
	for _, item := range server.Items {
		serverByKey[item.Key()] = item
	}

	seen := make(map[ItemKey]bool, len(local.Items))
	for _, item := range local.Items {
		key := item.Key()
		seen[key] = true
		remote, onServer := serverByKey[key]

		if current[key] > requested[key] {
			// mutated after the snapshot was requested: local wins on
			// existence and quantity, server still wins on price
			if onServer {
				item.UnitPriceCents = remote.UnitPriceCents
			}
			merged.Items = append(merged.Items, item)
			continue
		}

		if onServer {
			merged.Items = append(merged.Items, remote)
		}
		// absent on server and not locally mutated since: the server
		// removed it, let it go
	}

	for _, item := range server.Items {
		key := item.Key()
		if seen[key] {
			continue
		}
		if current[key] > requested[key] {
			// locally removed after the snapshot was requested
			continue
		}
		merged.Items = append(merged.Items, item)
	}

	merged.Recompute()
	return merged
}
