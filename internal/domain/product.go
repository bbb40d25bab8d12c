package domain

// Product — позиция каталога ресторана. Сопоставляется с другими товарами только по ID:
// название и цена — изменяемые данные, а не часть идентичности.
type Product struct {
	id        ProductID
	name      string
	price     Money
	available bool
}

// NewProduct создаёт товар.
func NewProduct(id ProductID, name string, price Money, available bool) Product {
	return Product{id: id, name: name, price: price, available: available}
}

// NewOrderProduct создаёт товар в том виде, в каком его прислал клиент (без признака доступности).
func NewOrderProduct(id ProductID, name string, price Money) Product {
	return Product{id: id, name: name, price: price, available: true}
}

func (p Product) ID() ProductID   { return p.id }
func (p Product) Name() string    { return p.name }
func (p Product) Price() Money    { return p.price }
func (p Product) Available() bool { return p.available }

// SameAs сообщает, что товары соответствуют одной позиции каталога.
func (p Product) SameAs(other Product) bool {
	return p.id == other.id
}

// UpdateWithConfirmedNameAndPrice перезаписывает название и цену данными из каталога.
// Идентификатор не меняется.
func (p *Product) UpdateWithConfirmedNameAndPrice(name string, price Money) {
	p.name = name
	p.price = price
}
