package walletdb

import (
	"strings"

	"walletstore/internal/shared"
)

// Currency is a fiat currency code. Its lowercase form is the fiatPrices column name.
type Currency string

const (
	AED Currency = "aed"
	CHF Currency = "chf"
	CNY Currency = "cny"
	EUR Currency = "eur"
	GBP Currency = "gbp"
	INR Currency = "inr"
	IDR Currency = "idr"
	JPY Currency = "jpy"
	KRW Currency = "krw"
	RUB Currency = "rub"
	USD Currency = "usd"
)

type currencyInfo struct {
	code   Currency
	symbol string
}

// Declaration order is column order in fiatPrices.
var currencies = []currencyInfo{
	{AED, "DH"},
	{CHF, "₣"},
	{CNY, "¥"},
	{EUR, "€"},
	{GBP, "£"},
	{INR, "₹"},
	{IDR, "Rp"},
	{JPY, "¥"},
	{KRW, "₩"},
	{RUB, "₽"},
	{USD, "$"},
}

// Currencies returns all supported currencies in column order.
func Currencies() []Currency {
	out := make([]Currency, len(currencies))
	for i, c := range currencies {
		out[i] = c.code
	}
	return out
}

// ParseCurrency accepts any letter case ("USD", "usd").
func ParseCurrency(s string) (Currency, error) {
	c := Currency(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", shared.Validationf("unsupported fiat currency %q", s)
	}
	return c, nil
}

func (c Currency) Valid() bool {
	for _, info := range currencies {
		if info.code == c {
			return true
		}
	}
	return false
}

func (c Currency) Symbol() string {
	for _, info := range currencies {
		if info.code == c {
			return info.symbol
		}
	}
	return ""
}

func (c Currency) String() string {
	return strings.ToUpper(string(c))
}
