// Package model defines shared data types used across the market feed.
//
// Conventions:
//   - Prices, quantities and indicators: decimal.Decimal, never float64
//   - Timestamps: time.Time in UTC
//   - Symbols: uppercase exchange tickers (e.g. "BTCUSDT")
package model
