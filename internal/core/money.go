// Package core provides money parsing and handling utilities.
//
// Amounts are held as integer paise. Parsing and display go through
// shopspring/decimal so no float ever touches a stored value.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

type Money struct {
	Paise int64
}

// maxRupees bounds parsed input well below int64 paise overflow.
var maxRupees = decimal.New(1, 12)

// ParseAmount converts a rupee string to Money with half-up rounding on
// the third decimal place.
//
// Indian digit grouping commas are ignored, so "1,23,456.78" parses as
// 123456.78. Only positive amounts are accepted.
//
// Examples:
//
//	ParseAmount("12.34")    -> 1234 paise
//	ParseAmount("1,250")    -> 125000 paise
//	ParseAmount("12.345")   -> 1235 paise (half-up)
//	ParseAmount("12.344")   -> 1234 paise
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "₹")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return Money{}, ErrInvalidAmount
	}
	if strings.ContainsAny(s, "eE") {
		return Money{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	if d.GreaterThan(maxRupees) {
		return Money{}, ErrInvalidAmount
	}
	m := MoneyFromDecimal(d)
	if err := m.Validate(); err != nil {
		return Money{}, err
	}
	return m, nil
}

// MoneyFromDecimal rounds a rupee decimal to the nearest paisa.
func MoneyFromDecimal(d decimal.Decimal) Money {
	return Money{Paise: d.Round(2).Shift(2).IntPart()}
}

func (m Money) Validate() error {
	if m.Paise <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Decimal returns the rupee value.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Paise, -2)
}

func (m Money) Add(o Money) Money {
	return Money{Paise: m.Paise + o.Paise}
}

// String renders the amount with two decimals, e.g. "1250.50".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// FormatRupees renders the amount with the rupee sign and Indian digit
// grouping, e.g. "₹1,23,456.78".
func FormatRupees(m Money) string {
	neg := m.Paise < 0
	p := m.Paise
	if neg {
		p = -p
	}
	s := Money{Paise: p}.String()
	whole, frac, _ := strings.Cut(s, ".")

	var grouped string
	if len(whole) <= 3 {
		grouped = whole
	} else {
		head, tail := whole[:len(whole)-3], whole[len(whole)-3:]
		var parts []string
		for len(head) > 2 {
			parts = append([]string{head[len(head)-2:]}, parts...)
			head = head[:len(head)-2]
		}
		if head != "" {
			parts = append([]string{head}, parts...)
		}
		grouped = strings.Join(parts, ",") + "," + tail
	}

	out := "₹" + grouped + "." + frac
	if neg {
		return "-" + out
	}
	return out
}
