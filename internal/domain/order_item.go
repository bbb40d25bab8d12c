package domain

// OrderItem — позиция заказа. Живёт только внутри своего Order.
type OrderItem struct {
	id       OrderItemID
	product  Product
	quantity int
	price    Money
	subTotal Money
}

// NewOrderItem создаёт позицию с ценой и подытогом, заявленными клиентом.
// Проверка соответствия цены и подытога выполняется агрегатом.
func NewOrderItem(product Product, quantity int, price, subTotal Money) OrderItem {
	return OrderItem{
		product:  product,
		quantity: quantity,
		price:    price,
		subTotal: subTotal,
	}
}

func (i OrderItem) ID() OrderItemID  { return i.id }
func (i OrderItem) Product() Product { return i.product }
func (i OrderItem) Quantity() int    { return i.quantity }
func (i OrderItem) Price() Money     { return i.price }
func (i OrderItem) SubTotal() Money  { return i.subTotal }

// validate проверяет цену и подытог позиции.
func (i OrderItem) validate(op string, orderID OrderID) error {
	if i.quantity <= 0 {
		return newValidationError(op, orderID,
			"order item for product %s has invalid quantity %d", i.product.ID(), i.quantity)
	}
	if !i.price.IsGreaterThanZero() {
		return newValidationError(op, orderID,
			"order item price %s is not valid for product %s", i.price, i.product.ID())
	}
	if !i.price.Equal(i.product.Price()) {
		return newValidationError(op, orderID,
			"order item price %s does not match product %s price %s", i.price, i.product.ID(), i.product.Price())
	}
	expected, err := i.price.Multiply(i.quantity)
	if err != nil {
		return newValidationError(op, orderID, "order item for product %s: %v", i.product.ID(), err)
	}
	if !expected.Equal(i.subTotal) {
		return newValidationError(op, orderID,
			"order item subtotal %s for product %s must be %s", i.subTotal, i.product.ID(), expected)
	}
	return nil
}

// applyConfirmedProduct переносит в позицию название и цену из каталога ресторана.
// Подытог остаётся клиентским и сверяется с новой ценой в validate.
func (i *OrderItem) applyConfirmedProduct(confirmed Product) {
	i.product.UpdateWithConfirmedNameAndPrice(confirmed.Name(), confirmed.Price())
	i.price = confirmed.Price()
}
