package domain

import (
	"fmt"
	"strings"
)

// Market identifies one tradable product on one venue.
// It is comparable and used directly as a map key.
type Market struct {
	Venue  string
	Symbol string
}

func (m Market) String() string {
	return m.Venue + ":" + m.Symbol
}

// ParseMarket parses a "VENUE:SYMBOL" pair.
func ParseMarket(s string) (Market, error) {
	venue, symbol, ok := strings.Cut(s, ":")
	if !ok || venue == "" || symbol == "" {
		return Market{}, fmt.Errorf("%w: %q", ErrInvalidMarket, s)
	}
	return Market{Venue: venue, Symbol: symbol}, nil
}
