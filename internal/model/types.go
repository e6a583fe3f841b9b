package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrEmptySymbol is returned by NewSymbol for blank input.
var ErrEmptySymbol = errors.New("symbol is empty")

// -----------------------------------------------------------------------------
// Identifiers
// -----------------------------------------------------------------------------

// Symbol is an exchange ticker, stored uppercase.
type Symbol string

// NewSymbol trims and uppercases s.
func NewSymbol(s string) (Symbol, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrEmptySymbol
	}
	return Symbol(strings.ToUpper(s)), nil
}

// ParseSymbols converts a list of raw tickers, rejecting blanks and duplicates.
// Order is preserved.
func ParseSymbols(raw []string) ([]Symbol, error) {
	out := make([]Symbol, 0, len(raw))
	seen := make(map[Symbol]struct{}, len(raw))
	for i, r := range raw {
		sym, err := NewSymbol(r)
		if err != nil {
			return nil, fmt.Errorf("symbol %d: %w", i, err)
		}
		if _, dup := seen[sym]; dup {
			return nil, fmt.Errorf("duplicate symbol %q", sym)
		}
		seen[sym] = struct{}{}
		out = append(out, sym)
	}
	return out, nil
}

// Upper returns the form used by the snapshot provider.
func (s Symbol) Upper() string { return strings.ToUpper(string(s)) }

// Lower returns the form used by the trade stream.
func (s Symbol) Lower() string { return strings.ToLower(string(s)) }

// TradeChannel returns the stream name carrying trades for s (e.g. "btcusdt@trade").
func (s Symbol) TradeChannel() string { return s.Lower() + "@trade" }

func (s Symbol) String() string { return string(s) }

// Interval is a technical-analysis candle interval.
type Interval string

const (
	Interval1Minute  Interval = "1m"
	Interval5Minute  Interval = "5m"
	Interval15Minute Interval = "15m"
	Interval30Minute Interval = "30m"
	Interval1Hour    Interval = "1h"
	Interval2Hour    Interval = "2h"
	Interval4Hour    Interval = "4h"
	Interval1Day     Interval = "1d"
	Interval1Week    Interval = "1W"
	Interval1Month   Interval = "1M"
)

// Intervals lists every supported interval, shortest first.
var Intervals = []Interval{
	Interval1Minute, Interval5Minute, Interval15Minute, Interval30Minute,
	Interval1Hour, Interval2Hour, Interval4Hour,
	Interval1Day, Interval1Week, Interval1Month,
}

// Valid reports whether i is one of Intervals.
func (i Interval) Valid() bool {
	for _, v := range Intervals {
		if v == i {
			return true
		}
	}
	return false
}

// ParseInterval validates s as an Interval. Matching is case-sensitive
// because "1m" and "1M" differ.
func ParseInterval(s string) (Interval, error) {
	i := Interval(strings.TrimSpace(s))
	if !i.Valid() {
		return "", fmt.Errorf("unknown interval %q", s)
	}
	return i, nil
}

// -----------------------------------------------------------------------------
// Enumerations
// -----------------------------------------------------------------------------

// Recommendation is the provider's summary signal.
type Recommendation string

const (
	RecommendBuy     Recommendation = "BUY"
	RecommendSell    Recommendation = "SELL"
	RecommendNeutral Recommendation = "NEUTRAL"
)

// Side is the taker side of a trade.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// SideFromMaker derives the taker side. A buyer-maker means the taker sold.
func SideFromMaker(makerIsBuyer bool) Side {
	if makerIsBuyer {
		return SideSell
	}
	return SideBuy
}

// -----------------------------------------------------------------------------
// Records
// -----------------------------------------------------------------------------

// SnapshotRecord is one symbol's indicator bundle for one poll cycle.
type SnapshotRecord struct {
	Symbol         Symbol
	Timestamp      time.Time // Capture instant, shared by every record in a cycle
	Close          decimal.Decimal
	Volume         decimal.Decimal
	RSI            decimal.Decimal
	MACD           decimal.Decimal // MACD line value
	EMA20          decimal.Decimal
	Recommendation Recommendation
	Score          decimal.Decimal // Raw recommendation score in [-1, 1]
}

// SnapshotBatch is the output of one poll cycle. Failed symbols are absent.
type SnapshotBatch map[Symbol]SnapshotRecord

// TradeRecord is a single executed trade from the stream.
type TradeRecord struct {
	Symbol     Symbol
	TradeID    int64
	Timestamp  time.Time // Exchange trade time, millisecond precision
	Price      decimal.Decimal
	Quantity   decimal.Decimal
	Side       Side
	ReceivedAt time.Time
}
