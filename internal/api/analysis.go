package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/marketfeed/internal/model"
)

var (
	ErrSymbolNotFound   = errors.New("exchange or symbol not found")
	ErrMissingIndicator = errors.New("missing indicator")
)

var (
	recommendLow  = decimal.RequireFromString("-0.1")
	recommendHigh = decimal.RequireFromString("0.1")
	scoreMin      = decimal.NewFromInt(-1)
	scoreMax      = decimal.NewFromInt(1)
)

// intervalSuffix maps an interval to the scanner column suffix.
var intervalSuffix = map[model.Interval]string{
	model.Interval1Minute:  "|1",
	model.Interval5Minute:  "|5",
	model.Interval15Minute: "|15",
	model.Interval30Minute: "|30",
	model.Interval1Hour:    "|60",
	model.Interval2Hour:    "|120",
	model.Interval4Hour:    "|240",
	model.Interval1Day:     "",
	model.Interval1Week:    "|1W",
	model.Interval1Month:   "|1M",
}

// Analysis is the decoded indicator set for one ticker.
type Analysis struct {
	Ticker string
	Score  decimal.Decimal
	Close  decimal.Decimal
	Volume decimal.Decimal
	RSI    decimal.Decimal
	MACD   decimal.Decimal
	EMA20  decimal.Decimal
}

// Recommendation derives the summary signal from Score.
// Strong buy/sell scores fold into BUY/SELL.
func (a Analysis) Recommendation() model.Recommendation {
	switch {
	case a.Score.LessThan(recommendLow):
		return model.RecommendSell
	case a.Score.GreaterThan(recommendHigh):
		return model.RecommendBuy
	default:
		return model.RecommendNeutral
	}
}

// Analyze fetches the indicator set for one ticker. Every column must be
// present; a partial reply is an error.
func (c *Client) Analyze(ctx context.Context, req AnalysisRequest) (*Analysis, error) {
	suffix, ok := intervalSuffix[req.Interval]
	if !ok {
		return nil, fmt.Errorf("unsupported interval %q", req.Interval)
	}
	if req.Exchange == "" || req.Screener == "" {
		return nil, errors.New("exchange and screener are required")
	}

	columns := make([]string, len(indicatorColumns))
	for i, col := range indicatorColumns {
		columns[i] = col + suffix
	}

	body := scanRequest{
		Symbols: scanSymbols{
			Tickers: []string{req.Ticker()},
			Query:   scanQuery{Types: []string{}},
		},
		Columns: columns,
	}

	var resp scanResponse
	if err := c.post(ctx, "/"+req.Screener+"/scan", body, &resp); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}

	return decodeAnalysis(req.Ticker(), resp)
}

// decodeAnalysis picks the reply row for ticker and decodes its columns.
func decodeAnalysis(ticker string, resp scanResponse) (*Analysis, error) {
	var item *scanItem
	for i := range resp.Data {
		if resp.Data[i].S == ticker {
			item = &resp.Data[i]
			break
		}
	}
	if item == nil {
		return nil, ErrSymbolNotFound
	}
	if len(item.D) != len(indicatorColumns) {
		return nil, fmt.Errorf("expected %d columns, got %d", len(indicatorColumns), len(item.D))
	}

	values := make([]decimal.Decimal, len(indicatorColumns))
	for i, raw := range item.D {
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
			return nil, fmt.Errorf("%w: %s", ErrMissingIndicator, indicatorColumns[i])
		}
		d, err := decimal.NewFromString(string(bytes.Trim(raw, `"`)))
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", indicatorColumns[i], err)
		}
		values[i] = d
	}

	a := &Analysis{
		Ticker: ticker,
		Score:  values[0],
		Close:  values[1],
		Volume: values[2],
		RSI:    values[3],
		MACD:   values[4],
		EMA20:  values[5],
	}
	if a.Score.LessThan(scoreMin) || a.Score.GreaterThan(scoreMax) {
		return nil, fmt.Errorf("recommendation score %s out of range", a.Score)
	}

	return a, nil
}

// SnapshotClient fetches snapshots for one symbol. It is bound to its
// (symbol, exchange, screener, interval) at construction.
type SnapshotClient struct {
	client *Client
	req    AnalysisRequest
}

// NewSnapshotClient binds client to req.
func NewSnapshotClient(client *Client, req AnalysisRequest) *SnapshotClient {
	return &SnapshotClient{client: client, req: req}
}

// Symbol returns the bound symbol.
func (s *SnapshotClient) Symbol() model.Symbol {
	return s.req.Symbol
}

// Fetch returns a fully populated record stamped with capturedAt, or a
// *FetchError.
func (s *SnapshotClient) Fetch(ctx context.Context, capturedAt time.Time) (model.SnapshotRecord, error) {
	a, err := s.client.Analyze(ctx, s.req)
	if err != nil {
		return model.SnapshotRecord{}, &FetchError{Symbol: s.req.Symbol, Cause: err}
	}

	return model.SnapshotRecord{
		Symbol:         s.req.Symbol,
		Timestamp:      capturedAt,
		Close:          a.Close,
		Volume:         a.Volume,
		RSI:            a.RSI,
		MACD:           a.MACD,
		EMA20:          a.EMA20,
		Recommendation: a.Recommendation(),
		Score:          a.Score,
	}, nil
}
