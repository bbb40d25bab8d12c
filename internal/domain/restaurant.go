package domain

// Restaurant — снимок ресторана и его текущего каталога. Для ядра заказов только читается.
type Restaurant struct {
	id       RestaurantID
	active   bool
	products []Product
}

// NewRestaurant создаёт снимок ресторана. Слайс товаров копируется.
func NewRestaurant(id RestaurantID, active bool, products []Product) Restaurant {
	cp := make([]Product, len(products))
	copy(cp, products)
	return Restaurant{id: id, active: active, products: cp}
}

func (r Restaurant) ID() RestaurantID { return r.id }
func (r Restaurant) Active() bool     { return r.active }

// Products возвращает копию каталога.
func (r Restaurant) Products() []Product {
	cp := make([]Product, len(r.products))
	copy(cp, r.products)
	return cp
}

// productIndex строит индекс каталога по ID товара.
func (r Restaurant) productIndex() map[ProductID]Product {
	index := make(map[ProductID]Product, len(r.products))
	for _, p := range r.products {
		index[p.id] = p
	}
	return index
}
