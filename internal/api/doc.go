// Package api provides the client for the technical-analysis snapshot
// provider (the TradingView scanner).
//
// Endpoint:
//   - https://scanner.tradingview.com/{screener}/scan
//
// One request fetches the indicator columns for one EXCHANGE:SYMBOL ticker at
// one interval. Columns carry an interval suffix ("close|5" for 5 minutes);
// the daily interval has none.
package api
