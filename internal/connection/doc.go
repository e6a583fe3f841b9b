// Package connection implements the trade stream connection.
//
// The Stream:
//   - Holds one WebSocket connection to the trade-stream endpoint
//   - Sends a single SUBSCRIBE for every symbol's trade channel on each connect
//   - Hands frames to a FrameHandler one at a time, in arrival order
//   - Reconnects with capped exponential backoff until stopped
package connection
