package domain

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// moneyScale — число знаков после запятой, до которого округляются суммы.
const moneyScale = 2

// Money — неотрицательная денежная сумма с фиксированной точкой.
// Все арифметические результаты округляются банковским округлением до moneyScale знаков.
type Money struct {
	amount decimal.Decimal
}

// ZeroMoney — нулевая сумма.
var ZeroMoney = Money{amount: decimal.Zero}

// NewMoney создаёт сумму из decimal, отклоняя отрицательные значения.
func NewMoney(amount decimal.Decimal) (Money, error) {
	if amount.IsNegative() {
		return Money{}, fmt.Errorf("%w: %s", ErrMoneyNegative, amount.String())
	}
	return Money{amount: amount.RoundBank(moneyScale)}, nil
}

// ParseMoney разбирает сумму из строки вида "12.50".
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("parse money %q: %w", s, err)
	}
	return NewMoney(d)
}

// MustMoney — вариант ParseMoney для констант и тестов; паникует на ошибке.
func MustMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

// Amount возвращает значение суммы.
func (m Money) Amount() decimal.Decimal {
	return m.amount
}

// IsGreaterThanZero сообщает, что сумма строго положительна.
func (m Money) IsGreaterThanZero() bool {
	return m.amount.IsPositive()
}

// GreaterThan сравнивает суммы.
func (m Money) GreaterThan(other Money) bool {
	return m.amount.GreaterThan(other.amount)
}

// Cmp возвращает -1, 0 или 1.
func (m Money) Cmp(other Money) int {
	return m.amount.Cmp(other.amount)
}

// Equal сравнивает суммы по числовому значению (1.5 == 1.50).
func (m Money) Equal(other Money) bool {
	return m.amount.Equal(other.amount)
}

// Add складывает суммы.
func (m Money) Add(other Money) Money {
	return Money{amount: m.amount.Add(other.amount).RoundBank(moneyScale)}
}

// Subtract вычитает сумму; результат не может быть отрицательным.
func (m Money) Subtract(other Money) (Money, error) {
	return NewMoney(m.amount.Sub(other.amount))
}

// Multiply умножает сумму на количество; отрицательное количество даёт ErrMoneyNegative.
func (m Money) Multiply(qty int) (Money, error) {
	return NewMoney(m.amount.Mul(decimal.NewFromInt(int64(qty))))
}

func (m Money) String() string {
	return m.amount.StringFixed(moneyScale)
}

// MarshalJSON сериализует сумму строкой, чтобы не терять точность.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON принимает строку или число.
func (m *Money) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("decode money: %w", err)
	}
	parsed, err := NewMoney(d)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
