package domain

import "fmt"

// Side is the buy/sell side of an order or one half of a book.
type Side uint8

const (
	Buy Side = iota + 1
	Sell
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	}
	return "UNKNOWN"
}

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// ParseSide parses "BUY" or "SELL".
func ParseSide(s string) (Side, error) {
	switch s {
	case "BUY", "B":
		return Buy, nil
	case "SELL", "S":
		return Sell, nil
	}
	return 0, fmt.Errorf("invalid side %q", s)
}

// TimeInForce describes how long an order may remain outstanding.
type TimeInForce uint8

const (
	// GoodTillCancel rests on the book until cancelled.
	GoodTillCancel TimeInForce = iota + 1
	// Day rests on the book until the end of the trading session.
	Day
	// FillAndKill executes what it can immediately, never rests.
	FillAndKill
	// FillOrKill executes in full immediately or not at all, never rests.
	FillOrKill
)

func (t TimeInForce) String() string {
	switch t {
	case GoodTillCancel:
		return "GTC"
	case Day:
		return "DAY"
	case FillAndKill:
		return "FAK"
	case FillOrKill:
		return "FOK"
	}
	return "UNKNOWN"
}

// AllowsResting reports whether an order with this time in force can rest
// on the book, and therefore whether it can be cancel-replaced.
func (t TimeInForce) AllowsResting() bool {
	return t == GoodTillCancel || t == Day
}

// ParseTimeInForce parses a time-in-force code.
func ParseTimeInForce(s string) (TimeInForce, error) {
	switch s {
	case "GTC":
		return GoodTillCancel, nil
	case "DAY":
		return Day, nil
	case "FAK", "IOC":
		return FillAndKill, nil
	case "FOK":
		return FillOrKill, nil
	}
	return 0, fmt.Errorf("invalid time in force %q", s)
}
