package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Money is a non-negative amount tagged with an ISO 4217 currency.
type Money struct {
	amount   decimal.Decimal
	currency string
}

// NewMoney validates and creates a Money value.
func NewMoney(amount decimal.Decimal, currency string) (Money, error) {
	if amount.IsNegative() {
		return Money{}, ErrNegativeAmount
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if len(currency) != 3 {
		return Money{}, ErrInvalidCurrency
	}
	for _, r := range currency {
		if r < 'A' || r > 'Z' {
			return Money{}, ErrInvalidCurrency
		}
	}
	return Money{amount: amount, currency: currency}, nil
}

// ParseMoney parses a decimal string such as "499.50".
func ParseMoney(amount, currency string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	return NewMoney(d, currency)
}

func (m Money) Amount() decimal.Decimal { return m.amount }
func (m Money) Currency() string        { return m.currency }

// MinorUnits converts to the gateway convention (paise, cents): the amount
// times 100, truncated toward zero.
func (m Money) MinorUnits() int64 {
	return m.amount.Mul(hundred).IntPart()
}

// String renders the amount with two decimals followed by the currency.
func (m Money) String() string {
	return m.amount.StringFixed(2) + " " + m.currency
}
