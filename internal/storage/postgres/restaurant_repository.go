package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/foodorder/internal/domain"
)

// RestaurantRepository читает каталог ресторанов из PostgreSQL.
type RestaurantRepository struct {
	store *Store
}

// NewRestaurantRepository создаёт PostgreSQL-реализацию RestaurantRepository.
func NewRestaurantRepository(store *Store) *RestaurantRepository {
	return &RestaurantRepository{store: store}
}

// Get возвращает ресторан вместе с каталогом продуктов.
func (r *RestaurantRepository) Get(ctx context.Context, id domain.RestaurantID) (domain.Restaurant, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	q := r.store.conn(ctx)

	var active bool
	err := q.QueryRowContext(ctx, `SELECT active FROM restaurants WHERE id = $1`, id.String()).Scan(&active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Restaurant{}, domain.ErrRestaurantNotFound
		}
		return domain.Restaurant{}, fmt.Errorf("select restaurant: %w", err)
	}

	rows, err := q.QueryContext(ctx, `
		SELECT product_id, name, price, available
		FROM restaurant_products
		WHERE restaurant_id = $1
		ORDER BY product_id
	`, id.String())
	if err != nil {
		return domain.Restaurant{}, fmt.Errorf("select restaurant products: %w", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0)
	for rows.Next() {
		var (
			productID string
			name      string
			amount    decimal.Decimal
			available bool
		)
		if err := rows.Scan(&productID, &name, &amount, &available); err != nil {
			return domain.Restaurant{}, fmt.Errorf("scan restaurant product: %w", err)
		}
		pid, err := domain.ParseProductID(productID)
		if err != nil {
			return domain.Restaurant{}, err
		}
		price, err := domain.NewMoney(amount)
		if err != nil {
			return domain.Restaurant{}, fmt.Errorf("product %s price: %w", productID, err)
		}
		products = append(products, domain.NewProduct(pid, name, price, available))
	}
	if err := rows.Err(); err != nil {
		return domain.Restaurant{}, fmt.Errorf("iterate restaurant products: %w", err)
	}

	return domain.NewRestaurant(id, active, products), nil
}

// Upsert сохраняет ресторан и полностью заменяет его каталог.
func (r *RestaurantRepository) Upsert(ctx context.Context, restaurant domain.Restaurant) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	return r.store.WithinTransaction(ctx, func(ctx context.Context) error {
		q := r.store.conn(ctx)
		id := restaurant.ID().String()

		if _, err := q.ExecContext(ctx, `
			INSERT INTO restaurants (id, active, updated_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (id) DO UPDATE SET active = EXCLUDED.active, updated_at = EXCLUDED.updated_at
		`, id, restaurant.Active(), time.Now().UTC()); err != nil {
			return fmt.Errorf("upsert restaurant: %w", err)
		}
		if _, err := q.ExecContext(ctx, `DELETE FROM restaurant_products WHERE restaurant_id = $1`, id); err != nil {
			return fmt.Errorf("clear restaurant products: %w", err)
		}
		for _, p := range restaurant.Products() {
			if _, err := q.ExecContext(ctx, `
				INSERT INTO restaurant_products (restaurant_id, product_id, name, price, available)
				VALUES ($1, $2, $3, $4, $5)
			`, id, p.ID().String(), p.Name(), p.Price().Amount(), p.Available()); err != nil {
				return fmt.Errorf("insert restaurant product %s: %w", p.ID(), err)
			}
		}
		return nil
	})
}

var _ domain.RestaurantRepository = (*RestaurantRepository)(nil)
