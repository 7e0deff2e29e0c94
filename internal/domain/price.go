package domain

import "github.com/shopspring/decimal"

// Price is a fixed-point limit price. Ordering is side-relative: a higher
// price is better for a bid, a lower price is better for an ask.
type Price struct {
	value decimal.Decimal
}

// NewPrice wraps a decimal value as a Price.
func NewPrice(v decimal.Decimal) Price {
	return Price{value: v}
}

// PriceFromString parses a decimal string (e.g. "34.52") into a Price.
func PriceFromString(s string) (Price, error) {
	v, err := decimal.NewFromString(s)
	if err != nil {
		return Price{}, err
	}
	return Price{value: v}, nil
}

// Decimal returns the underlying decimal value.
func (p Price) Decimal() decimal.Decimal {
	return p.value
}

// Key returns a canonical string form usable as a map key.
// decimal.Decimal holds a pointer and cannot key a map directly.
func (p Price) Key() string {
	return p.value.String()
}

func (p Price) String() string {
	return p.value.String()
}

// Equal reports exact numeric equality.
func (p Price) Equal(other Price) bool {
	return p.value.Equal(other.value)
}

// Cmp returns -1, 0 or 1 by plain numeric order, ignoring side.
func (p Price) Cmp(other Price) int {
	return p.value.Cmp(other.value)
}

// BetterThan reports whether p is strictly more aggressive than other on
// the given side: higher for buys, lower for sells.
func (p Price) BetterThan(other Price, side Side) bool {
	if side == Buy {
		return p.value.GreaterThan(other.value)
	}
	return p.value.LessThan(other.value)
}

// WorseThan reports whether p is strictly less aggressive than other on
// the given side.
func (p Price) WorseThan(other Price, side Side) bool {
	if side == Buy {
		return p.value.LessThan(other.value)
	}
	return p.value.GreaterThan(other.value)
}

// TicksFrom returns the absolute distance from other, measured in ticks of
// the given size. The distance is truncated toward zero.
func (p Price) TicksFrom(other Price, tick decimal.Decimal) int64 {
	if tick.IsZero() {
		return 0
	}
	return p.value.Sub(other.value).Abs().Div(tick).IntPart()
}
