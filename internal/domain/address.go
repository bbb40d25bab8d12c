package domain

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

var (
	// Ошибка отсутствующей улицы в адресе доставки.
	ErrStreetRequired = errors.New("delivery street is required")
	// Ошибка отсутствующего почтового индекса.
	ErrPostalCodeRequired = errors.New("delivery postal code is required")
	// Ошибка отсутствующего города.
	ErrCityRequired = errors.New("delivery city is required")
)

// StreetAddress — адрес доставки заказа.
type StreetAddress struct {
	ID         uuid.UUID `json:"id"`
	Street     string    `json:"street"`
	PostalCode string    `json:"postal_code"`
	City       string    `json:"city"`
}

// Validate возвращает все незаполненные поля адреса.
func (a StreetAddress) Validate() []error {
	var errs []error

	if strings.TrimSpace(a.Street) == "" {
		errs = append(errs, ErrStreetRequired)
	}
	if strings.TrimSpace(a.PostalCode) == "" {
		errs = append(errs, ErrPostalCodeRequired)
	}
	if strings.TrimSpace(a.City) == "" {
		errs = append(errs, ErrCityRequired)
	}

	return errs
}
