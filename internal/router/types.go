package router

import (
	"fmt"

	"github.com/rickgao/marketfeed/internal/model"
)

// ParseError is a rejected trade frame.
type ParseError struct {
	Reason    string
	Malformed bool  // Payload was not a JSON object at all
	Cause     error // Underlying decode error, if any
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("parse trade: %s: %v", e.Reason, e.Cause)
	}
	return "parse trade: " + e.Reason
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// TradeHandler receives each parsed trade, in frame order.
type TradeHandler func(model.TradeRecord)

// DispatcherStats contains runtime statistics.
type DispatcherStats struct {
	FramesReceived int64 `json:"frames_received"`
	TradesEmitted  int64 `json:"trades_emitted"`
	Skipped        int64 `json:"skipped"`      // Well-formed, non-trade frames
	ParseErrors    int64 `json:"parse_errors"` // Invalid trade frames
	Malformed      int64 `json:"malformed"`    // Undecodable payloads
}

// Trade frame field names.
const (
	fieldEvent    = "e"
	fieldSymbol   = "s"
	fieldTradeID  = "t"
	fieldPrice    = "p"
	fieldQuantity = "q"
	fieldTime     = "T"
	fieldMaker    = "m"

	eventTrade = "trade"
)
