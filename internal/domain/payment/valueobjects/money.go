package valueobjects

import "fmt"

// Money is an amount in minor currency units (cents for USD).
type Money struct {
	minorUnits int64
	currency   string
}

func NewMoney(minorUnits int64, currency string) Money {
	if currency == "" {
		currency = "USD"
	}
	return Money{
		minorUnits: minorUnits,
		currency:   currency,
	}
}

func (m Money) MinorUnits() int64 {
	return m.minorUnits
}

func (m Money) Currency() string {
	return m.currency
}

func (m Money) AmountInMajorUnits() float64 {
	return float64(m.minorUnits) / 100.0
}

func (m Money) Equals(other Money) bool {
	return m.minorUnits == other.minorUnits && m.currency == other.currency
}

func (m Money) IsPositive() bool {
	return m.minorUnits > 0
}

func (m Money) String() string {
	return fmt.Sprintf("%.2f %s", m.AmountInMajorUnits(), m.currency)
}
