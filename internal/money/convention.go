package money

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// ErrNegativeAmount is returned when a negative amount is converted for a provider.
var ErrNegativeAmount = errors.New("money: amount must not be negative")

// ErrOverflow is returned when a converted amount does not fit in an int64.
var ErrOverflow = errors.New("money: amount overflows minor units")

// Convention fixes the locale and currency used to present and convert prices.
type Convention struct {
	unit           currency.Unit
	locale         language.Tag
	symbol         string
	fractionDigits int
	printer        *message.Printer
}

// Default returns the storefront convention: Nigerian naira formatted for en-NG.
func Default() Convention {
	c, _ := NewConvention("NGN", "en-NG", "₦")
	return c
}

// NewConvention builds a Convention from an ISO 4217 code, a BCP 47 locale and the
// display symbol. An empty symbol falls back to the currency code.
func NewConvention(code, locale, symbol string) (Convention, error) {
	unit, err := currency.ParseISO(strings.TrimSpace(code))
	if err != nil {
		return Convention{}, fmt.Errorf("money: parse currency %q: %w", code, err)
	}
	tag := language.English
	if trimmed := strings.TrimSpace(locale); trimmed != "" {
		tag, err = language.Parse(trimmed)
		if err != nil {
			return Convention{}, fmt.Errorf("money: parse locale %q: %w", locale, err)
		}
	}
	scale, _ := currency.Standard.Rounding(unit)
	if strings.TrimSpace(symbol) == "" {
		symbol = unit.String()
	}
	return Convention{
		unit:           unit,
		locale:         tag,
		symbol:         symbol,
		fractionDigits: scale,
		printer:        message.NewPrinter(tag),
	}, nil
}

// Code returns the ISO 4217 currency code.
func (c Convention) Code() string {
	return c.unit.String()
}

// Symbol returns the display symbol prefixed to formatted amounts.
func (c Convention) Symbol() string {
	return c.symbol
}

// Format renders a price-derived integer for the display, e.g. 15000 -> "₦15,000.00".
func (c Convention) Format(amount int64) string {
	p := c.printer
	if p == nil {
		p = message.NewPrinter(language.English)
	}
	digits := c.fractionDigits
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	formatted := p.Sprint(number.Decimal(amount, number.MinFractionDigits(digits), number.MaxFractionDigits(digits)))
	return sign + c.symbol + formatted
}

// MinorFactor is the multiplier between catalog prices and the provider's minor unit.
func (c Convention) MinorFactor() int64 {
	factor := int64(1)
	for i := 0; i < c.fractionDigits; i++ {
		factor *= 10
	}
	return factor
}

// ToMinor converts a catalog total into the provider's minor unit (kobo for NGN).
func (c Convention) ToMinor(amount int64) (int64, error) {
	if amount < 0 {
		return 0, ErrNegativeAmount
	}
	converted := decimal.NewFromInt(amount).Mul(decimal.NewFromInt(c.MinorFactor()))
	if converted.GreaterThan(decimal.NewFromInt(math.MaxInt64)) {
		return 0, ErrOverflow
	}
	return converted.IntPart(), nil
}
