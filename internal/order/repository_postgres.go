package order

import (
	"database/sql"
	"encoding/json"
)

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const orderColumns = `"orderID", "orderNumber", "customerID", "customerName", "customerEmail", "customerPhone",
        status, items, "fulfillmentMethod", "deliveryAddress", "paymentMethod",
        "subtotalCents", "promoDiscountCents", "taxCents", "deliveryFeeCents", "totalCents",
        "statusHistory", "createdAt", "updatedAt"`

func (r *PostgresRepository) Create(ord Order) (Order, error) {
	itemsJSON, err := json.Marshal(ord.Items)
	if err != nil {
		return Order{}, err
	}
	historyJSON, err := json.Marshal(ord.StatusHistory)
	if err != nil {
		return Order{}, err
	}
	var addressJSON []byte
	if ord.Fulfillment.Address != nil {
		if addressJSON, err = json.Marshal(ord.Fulfillment.Address); err != nil {
			return Order{}, err
		}
	}

	err = r.db.QueryRow(`INSERT INTO orders ("orderNumber", "customerID", "customerName", "customerEmail", "customerPhone",
            status, items, "fulfillmentMethod", "deliveryAddress", "paymentMethod",
            "subtotalCents", "promoDiscountCents", "taxCents", "deliveryFeeCents", "totalCents",
            "statusHistory", "createdAt", "updatedAt")
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
        RETURNING "orderID"`,
		ord.OrderNumber, ord.Customer.CustomerID, ord.Customer.Name, ord.Customer.Email, ord.Customer.Phone,
		string(ord.Status), itemsJSON, ord.Fulfillment.Method, nullableJSON(addressJSON), ord.PaymentMethod,
		ord.SubtotalCents, ord.PromoDiscountCents, ord.TaxCents, ord.DeliveryFeeCents, ord.TotalCents,
		historyJSON, ord.CreatedAt, ord.UpdatedAt).Scan(&ord.OrderID)
	if err != nil {
		return Order{}, err
	}
	return ord, nil
}

func (r *PostgresRepository) GetByID(id int) (Order, error) {
	row := r.db.QueryRow(`SELECT `+orderColumns+` FROM orders WHERE "orderID" = $1`, id)
	ord, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return Order{}, ErrNotFound
	}
	return ord, err
}

func (r *PostgresRepository) ListByCustomer(customerID int) ([]Order, error) {
	rows, err := r.db.Query(`SELECT `+orderColumns+` FROM orders WHERE "customerID" = $1 ORDER BY "orderID" DESC`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOrders(rows)
}

func (r *PostgresRepository) List() ([]Order, error) {
	rows, err := r.db.Query(`SELECT ` + orderColumns + ` FROM orders ORDER BY "orderID" DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOrders(rows)
}

// UpdateStatus performs the transition as a guarded UPDATE: it only lands
// when the row still carries the status the caller saw. A zero-row result
// against an existing order means another actor got there first.
func (r *PostgresRepository) UpdateStatus(id int, expected, next Status, event StatusEvent) (Order, error) {
	eventJSON, err := json.Marshal(event)
	if err != nil {
		return Order{}, err
	}

	res, err := r.db.Exec(`UPDATE orders
        SET status = $1,
            "statusHistory" = "statusHistory" || $2::jsonb,
            "updatedAt" = $3
        WHERE "orderID" = $4 AND status = $5`,
		string(next), string(eventJSON), event.Timestamp, id, string(expected))
	if err != nil {
		return Order{}, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return Order{}, err
	}
	if n == 0 {
		if _, err := r.GetByID(id); err == ErrNotFound {
			return Order{}, ErrNotFound
		}
		return Order{}, ErrConflict
	}

	return r.GetByID(id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (Order, error) {
	var ord Order
	var status string
	var itemsJSON, historyJSON []byte
	var addressJSON sql.NullString

	err := row.Scan(&ord.OrderID, &ord.OrderNumber,
		&ord.Customer.CustomerID, &ord.Customer.Name, &ord.Customer.Email, &ord.Customer.Phone,
		&status, &itemsJSON, &ord.Fulfillment.Method, &addressJSON, &ord.PaymentMethod,
		&ord.SubtotalCents, &ord.PromoDiscountCents, &ord.TaxCents, &ord.DeliveryFeeCents, &ord.TotalCents,
		&historyJSON, &ord.CreatedAt, &ord.UpdatedAt)
	if err != nil {
		return Order{}, err
	}

	ord.Status = Status(status)
	if err := json.Unmarshal(itemsJSON, &ord.Items); err != nil {
		return Order{}, err
	}
	if err := json.Unmarshal(historyJSON, &ord.StatusHistory); err != nil {
		return Order{}, err
	}
	if addressJSON.Valid && addressJSON.String != "" {
		if err := json.Unmarshal([]byte(addressJSON.String), &ord.Fulfillment.Address); err != nil {
			return Order{}, err
		}
	}
	return ord, nil
}

func collectOrders(rows *sql.Rows) ([]Order, error) {
	orders := make([]Order, 0)
	for rows.Next() {
		ord, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, ord)
	}
	return orders, rows.Err()
}

func nullableJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
