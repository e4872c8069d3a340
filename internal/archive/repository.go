// Package archive persists terminal orders to Postgres. The tree store
// keeps full history too; the archive is the queryable receipt ledger fed
// from the status event stream.
package archive

import (
	"context"
	"database/sql"
	"time"

	"github.com/joao-fontenele/dishpatch/internal/domain"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Insert archives an order with its line items. Replays from the event
// stream are expected, so an already-archived order is a no-op.
func (r *Repository) Insert(ctx context.Context, order domain.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO archived_orders (
			id, customer_id, restaurant_id, driver_id, status,
			subtotal, discount_percentage, discount_amount,
			tip_percentage, tip_amount, delivery_fee, total,
			delivery_option, is_scheduled, created_at, archived_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO NOTHING
	`,
		order.ID, order.CustomerID, order.RestaurantID, order.DriverID,
		string(order.Status),
		order.Subtotal, order.DiscountPercentage, order.DiscountAmount,
		order.TipPercentage, order.TipAmount, order.DeliveryFee, order.Total,
		string(order.DeliveryOption), order.Scheduled, order.CreatedAt,
		time.Now().UTC(),
	)
	if err != nil {
		return err
	}

	inserted, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if inserted == 0 {
		return nil
	}

	for _, item := range order.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO archived_order_items (order_id, item_id, name, price, quantity, line_total)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, order.ID, item.ID, item.Name, item.Price, item.Quantity, item.LineTotal())
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	order := &domain.Order{}
	var status, deliveryOption string

	err := r.db.QueryRowContext(ctx, `
		SELECT id, customer_id, restaurant_id, driver_id, status,
		       subtotal, discount_percentage, discount_amount,
		       tip_percentage, tip_amount, delivery_fee, total,
		       delivery_option, is_scheduled, created_at
		FROM archived_orders
		WHERE id = $1
	`, id).Scan(
		&order.ID, &order.CustomerID, &order.RestaurantID, &order.DriverID,
		&status,
		&order.Subtotal, &order.DiscountPercentage, &order.DiscountAmount,
		&order.TipPercentage, &order.TipAmount, &order.DeliveryFee, &order.Total,
		&deliveryOption, &order.Scheduled, &order.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	order.Status = domain.Status(status)
	order.DeliveryOption = domain.DeliveryOption(deliveryOption)

	rows, err := r.db.QueryContext(ctx, `
		SELECT item_id, name, price, quantity
		FROM archived_order_items
		WHERE order_id = $1
		ORDER BY item_id
	`, id)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var item domain.LineItem
		if err := rows.Scan(&item.ID, &item.Name, &item.Price, &item.Quantity); err != nil {
			return nil, err
		}
		order.Items = append(order.Items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return order, nil
}

func (r *Repository) ListByCustomer(ctx context.Context, customerID string) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, restaurant_id, status, total, created_at
		FROM archived_orders
		WHERE customer_id = $1
		ORDER BY created_at DESC
	`, customerID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var orders []domain.Order
	for rows.Next() {
		order := domain.Order{CustomerID: customerID}
		var status string
		if err := rows.Scan(&order.ID, &order.RestaurantID, &status, &order.Total, &order.CreatedAt); err != nil {
			return nil, err
		}
		order.Status = domain.Status(status)
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return orders, nil
}
