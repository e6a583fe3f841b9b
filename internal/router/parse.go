package router

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"github.com/rickgao/marketfeed/internal/model"
)

// ParseTrade converts a raw stream frame into a TradeRecord.
//
// It returns ok=false with a nil error for well-formed frames whose event
// type is not "trade"; callers should ignore those. Every other rejection is
// a *ParseError. ParseTrade has no side effects and is safe for concurrent
// use.
func ParseTrade(raw []byte) (rec model.TradeRecord, ok bool, err error) {
	if !gjson.ValidBytes(raw) {
		return model.TradeRecord{}, false, &ParseError{Reason: "malformed payload", Malformed: true}
	}
	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return model.TradeRecord{}, false, &ParseError{Reason: "payload is not an object", Malformed: true}
	}

	if root.Get(fieldEvent).String() != eventTrade {
		return model.TradeRecord{}, false, nil
	}

	sym, err := model.NewSymbol(root.Get(fieldSymbol).String())
	if err != nil {
		return model.TradeRecord{}, false, &ParseError{Reason: "missing symbol", Cause: err}
	}

	price, err := decimalField(root, fieldPrice)
	if err != nil {
		return model.TradeRecord{}, false, err
	}
	if !price.IsPositive() {
		return model.TradeRecord{}, false, &ParseError{Reason: "non-positive price " + price.String()}
	}

	qty, err := decimalField(root, fieldQuantity)
	if err != nil {
		return model.TradeRecord{}, false, err
	}
	if !qty.IsPositive() {
		return model.TradeRecord{}, false, &ParseError{Reason: "non-positive quantity " + qty.String()}
	}

	ms, err := intField(root, fieldTime)
	if err != nil {
		return model.TradeRecord{}, false, err
	}

	maker := root.Get(fieldMaker)
	if maker.Type != gjson.True && maker.Type != gjson.False {
		return model.TradeRecord{}, false, &ParseError{Reason: "missing maker flag"}
	}

	rec = model.TradeRecord{
		Symbol:    sym,
		Timestamp: time.UnixMilli(ms).UTC(),
		Price:     price,
		Quantity:  qty,
		Side:      model.SideFromMaker(maker.Bool()),
	}
	if id := root.Get(fieldTradeID); id.Type == gjson.Number {
		rec.TradeID = id.Int()
	}

	return rec, true, nil
}

// decimalField reads a numeric field sent either as a JSON string or number.
func decimalField(root gjson.Result, name string) (decimal.Decimal, error) {
	v := root.Get(name)
	if v.Type != gjson.String && v.Type != gjson.Number {
		return decimal.Decimal{}, &ParseError{Reason: "missing field " + name}
	}
	text := v.Str
	if v.Type == gjson.Number {
		text = v.Raw
	}
	d, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Decimal{}, &ParseError{Reason: "non-numeric field " + name, Cause: err}
	}
	return d, nil
}

// intField reads an integral JSON number.
func intField(root gjson.Result, name string) (int64, error) {
	v := root.Get(name)
	if v.Type != gjson.Number {
		return 0, &ParseError{Reason: "missing field " + name}
	}
	n, err := strconv.ParseInt(v.Raw, 10, 64)
	if err != nil {
		return 0, &ParseError{Reason: "non-integer field " + name, Cause: err}
	}
	return n, nil
}
