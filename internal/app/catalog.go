package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/samber/lo"

	"github.com/vladislavdragonenkov/foodorder/internal/domain"
)

type catalogProduct struct {
	ID        domain.ProductID `json:"id"`
	Name      string           `json:"name"`
	Price     domain.Money     `json:"price"`
	Available *bool            `json:"available,omitempty"`
}

type catalogRestaurant struct {
	ID       domain.RestaurantID `json:"id"`
	Active   bool                `json:"active"`
	Products []catalogProduct    `json:"products"`
}

// loadCatalog читает рестораны из JSON-файла. Продукт без поля available считается доступным.
func loadCatalog(path string) ([]domain.Restaurant, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}

	var entries []catalogRestaurant
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decode catalog %s: %w", path, err)
	}

	restaurants := make([]domain.Restaurant, 0, len(entries))
	for _, entry := range entries {
		if entry.ID.IsZero() {
			return nil, fmt.Errorf("catalog %s: restaurant id is required", path)
		}
		products := make([]domain.Product, 0, len(entry.Products))
		for _, p := range entry.Products {
			if p.ID.IsZero() {
				return nil, fmt.Errorf("catalog %s: restaurant %s has product without id", path, entry.ID)
			}
			products = append(products, domain.NewProduct(p.ID, p.Name, p.Price, lo.FromPtrOr(p.Available, true)))
		}
		restaurants = append(restaurants, domain.NewRestaurant(entry.ID, entry.Active, products))
	}
	return restaurants, nil
}

func seedCatalog(ctx context.Context, path string, save func(context.Context, domain.Restaurant) error) (int, error) {
	restaurants, err := loadCatalog(path)
	if err != nil {
		return 0, err
	}
	for _, restaurant := range restaurants {
		if err := save(ctx, restaurant); err != nil {
			return 0, fmt.Errorf("save restaurant %s: %w", restaurant.ID(), err)
		}
	}
	return len(restaurants), nil
}
