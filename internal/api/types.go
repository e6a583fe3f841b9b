package api

import (
	"encoding/json"
	"fmt"

	"github.com/rickgao/marketfeed/internal/model"
)

// FetchError is a single-symbol snapshot failure.
type FetchError struct {
	Symbol model.Symbol
	Cause  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Symbol, e.Cause)
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}

// AnalysisRequest identifies one snapshot fetch.
type AnalysisRequest struct {
	Symbol   model.Symbol
	Exchange string         // e.g. "BINANCE"
	Screener string         // e.g. "crypto"
	Interval model.Interval // e.g. "1m"
}

// Ticker returns the provider ticker, "EXCHANGE:SYMBOL".
func (r AnalysisRequest) Ticker() string {
	return r.Exchange + ":" + r.Symbol.Upper()
}

// Indicator column names, in request order.
const (
	colRecommend = "Recommend.All"
	colClose     = "close"
	colVolume    = "volume"
	colRSI       = "RSI"
	colMACD      = "MACD.macd"
	colEMA20     = "EMA20"
)

var indicatorColumns = []string{colRecommend, colClose, colVolume, colRSI, colMACD, colEMA20}

// Wire types for JSON

// scanRequest is the body of a POST /{screener}/scan.
type scanRequest struct {
	Symbols scanSymbols `json:"symbols"`
	Columns []string    `json:"columns"`
}

type scanSymbols struct {
	Tickers []string  `json:"tickers"`
	Query   scanQuery `json:"query"`
}

type scanQuery struct {
	Types []string `json:"types"`
}

// scanResponse is the scanner reply. D holds one value per requested column;
// a null means the provider has no value for that indicator.
type scanResponse struct {
	TotalCount int        `json:"totalCount"`
	Data       []scanItem `json:"data"`
}

type scanItem struct {
	S string            `json:"s"`
	D []json.RawMessage `json:"d"`
}
