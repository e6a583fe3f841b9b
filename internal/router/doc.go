// Package router turns raw trade-stream frames into trade records.
//
// Each frame has one of three outcomes:
//   - trade: parsed into a model.TradeRecord and handed to the TradeHandler
//   - skip: a well-formed event of another type, dropped silently
//   - error: malformed JSON or an invalid trade, reported to the observer
package router
