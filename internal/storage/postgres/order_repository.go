package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/foodorder/internal/domain"
)

const selectOrderColumns = `
	SELECT id, customer_id, restaurant_id, tracking_id, price, status, failure_messages,
	       address_id, street, postal_code, city, version
	FROM orders
`

type orderRepository struct {
	store *Store
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{store: store}
}

// Create записывает заказ и его позиции одной транзакцией (или в транзакции из ctx).
func (r *orderRepository) Create(ctx context.Context, order *domain.Order) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	snap := order.Snapshot()
	failures, err := encodeFailureMessages(snap.FailureMessages)
	if err != nil {
		return err
	}

	return r.store.WithinTransaction(ctx, func(ctx context.Context) error {
		q := r.store.conn(ctx)
		now := time.Now().UTC()

		_, err := q.ExecContext(ctx, `
			INSERT INTO orders (
				id, customer_id, restaurant_id, tracking_id, price, status, failure_messages,
				address_id, street, postal_code, city, version, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,0,$12,$12)
		`,
			snap.ID.String(), snap.CustomerID.String(), snap.RestaurantID.String(), snap.TrackingID.String(),
			snap.Price.Amount(), string(snap.Status), failures,
			snap.DeliveryAddress.ID.String(), snap.DeliveryAddress.Street,
			snap.DeliveryAddress.PostalCode, snap.DeliveryAddress.City, now,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return domain.ErrOrderAlreadyExists
			}
			return fmt.Errorf("insert order: %w", err)
		}

		for _, item := range snap.Items {
			if _, err := q.ExecContext(ctx, `
				INSERT INTO order_items (
					order_id, item_id, product_id, product_name, quantity, price, sub_total
				) VALUES ($1,$2,$3,$4,$5,$6,$7)
			`,
				snap.ID.String(), int64(item.ID), item.ProductID.String(), item.ProductName,
				item.Quantity, item.Price.Amount(), item.SubTotal.Amount(),
			); err != nil {
				return fmt.Errorf("insert order item %d: %w", item.ID, err)
			}
		}
		return nil
	})
}

// Get возвращает заказ по идентификатору.
func (r *orderRepository) Get(ctx context.Context, id domain.OrderID) (*domain.Order, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	row := r.store.conn(ctx).QueryRowContext(ctx, selectOrderColumns+`WHERE id = $1`, id.String())
	return r.load(ctx, row)
}

// GetByTrackingID ищет заказ по трекинг-идентификатору.
func (r *orderRepository) GetByTrackingID(ctx context.Context, id domain.TrackingID) (*domain.Order, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	row := r.store.conn(ctx).QueryRowContext(ctx, selectOrderColumns+`WHERE tracking_id = $1`, id.String())
	return r.load(ctx, row)
}

// Save обновляет статус и причины отказа при совпадении версии.
// Позиции заказа после создания не меняются, поэтому переписывается только заголовок.
func (r *orderRepository) Save(ctx context.Context, order *domain.Order) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	snap := order.Snapshot()
	failures, err := encodeFailureMessages(snap.FailureMessages)
	if err != nil {
		return err
	}

	q := r.store.conn(ctx)
	res, err := q.ExecContext(ctx, `
		UPDATE orders
		SET status = $3,
		    failure_messages = $4,
		    version = version + 1,
		    updated_at = $5
		WHERE id = $1 AND version = $2
	`, snap.ID.String(), snap.Version, string(snap.Status), failures, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for order update: %w", err)
	}
	if affected > 0 {
		return nil
	}

	var exists bool
	if err := q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, snap.ID.String()).
		Scan(&exists); err != nil {
		return fmt.Errorf("check order existence: %w", err)
	}
	if !exists {
		return domain.ErrOrderNotFound
	}
	return domain.ErrOrderVersionConflict
}

func (r *orderRepository) load(ctx context.Context, row *sql.Row) (*domain.Order, error) {
	var (
		snap         domain.OrderSnapshot
		id           string
		customerID   string
		restaurantID string
		trackingID   string
		addressID    string
		status       string
		price        decimal.Decimal
		failures     []byte
	)

	err := row.Scan(
		&id, &customerID, &restaurantID, &trackingID, &price, &status, &failures,
		&addressID, &snap.DeliveryAddress.Street, &snap.DeliveryAddress.PostalCode, &snap.DeliveryAddress.City,
		&snap.Version,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, fmt.Errorf("select order: %w", err)
	}

	if snap.ID, err = domain.ParseOrderID(id); err != nil {
		return nil, err
	}
	if snap.CustomerID, err = domain.ParseCustomerID(customerID); err != nil {
		return nil, err
	}
	if snap.RestaurantID, err = domain.ParseRestaurantID(restaurantID); err != nil {
		return nil, err
	}
	if snap.TrackingID, err = domain.ParseTrackingID(trackingID); err != nil {
		return nil, err
	}
	if snap.DeliveryAddress.ID, err = uuid.Parse(addressID); err != nil {
		return nil, fmt.Errorf("parse address id %q: %w", addressID, err)
	}
	if snap.Price, err = domain.NewMoney(price); err != nil {
		return nil, fmt.Errorf("order %s price: %w", id, err)
	}
	if err := json.Unmarshal(failures, &snap.FailureMessages); err != nil {
		return nil, fmt.Errorf("decode failure messages: %w", err)
	}
	snap.Status = domain.OrderStatus(status)

	if snap.Items, err = r.loadItems(ctx, id); err != nil {
		return nil, err
	}
	return domain.RestoreOrder(snap)
}

func (r *orderRepository) loadItems(ctx context.Context, orderID string) ([]domain.OrderItemSnapshot, error) {
	rows, err := r.store.conn(ctx).QueryContext(ctx, `
		SELECT item_id, product_id, product_name, quantity, price, sub_total
		FROM order_items
		WHERE order_id = $1
		ORDER BY item_id ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("select order items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.OrderItemSnapshot, 0)
	for rows.Next() {
		var (
			item            domain.OrderItemSnapshot
			itemID          int64
			productID       string
			price, subTotal decimal.Decimal
		)
		if err := rows.Scan(&itemID, &productID, &item.ProductName, &item.Quantity, &price, &subTotal); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		item.ID = domain.OrderItemID(itemID)
		if item.ProductID, err = domain.ParseProductID(productID); err != nil {
			return nil, err
		}
		if item.Price, err = domain.NewMoney(price); err != nil {
			return nil, fmt.Errorf("order item %d price: %w", itemID, err)
		}
		if item.SubTotal, err = domain.NewMoney(subTotal); err != nil {
			return nil, fmt.Errorf("order item %d subtotal: %w", itemID, err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}

	return items, nil
}

func encodeFailureMessages(msgs []string) ([]byte, error) {
	if msgs == nil {
		msgs = []string{}
	}
	raw, err := json.Marshal(msgs)
	if err != nil {
		return nil, fmt.Errorf("encode failure messages: %w", err)
	}
	return raw, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

var _ domain.OrderRepository = (*orderRepository)(nil)
