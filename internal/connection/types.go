package connection

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no ping)")
	ErrAlreadyClosed   = errors.New("already closed")
	ErrNoSymbols       = errors.New("subscription set is empty")
)

// DefaultURL is the public trade-stream endpoint.
const DefaultURL = "wss://stream.binance.com:9443/ws"

// Frame is one inbound message with its local receive timestamp.
type Frame struct {
	Data       []byte    // Raw message bytes from WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// FrameHandler consumes frames. HandleFrame is never called concurrently.
type FrameHandler interface {
	HandleFrame(f Frame)
}

// FrameHandlerFunc is a function adapter for FrameHandler.
type FrameHandlerFunc func(Frame)

func (f FrameHandlerFunc) HandleFrame(fr Frame) {
	f(fr)
}

// Command is a request sent to the server.
type Command struct {
	Method string   `json:"method"` // "SUBSCRIBE", "UNSUBSCRIBE", "LIST_SUBSCRIPTIONS"
	Params []string `json:"params"` // Stream names, e.g. "btcusdt@trade"
	ID     int64    `json:"id"`
}

// Response is the server's reply to a Command.
type Response struct {
	ID     int64           `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *ErrorMsg       `json:"error,omitempty"`
}

// ErrorMsg is the error payload of a Response.
type ErrorMsg struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// TransportError is a connection-level failure. The Stream recovers from it
// by reconnecting.
type TransportError struct {
	Op      string // "dial", "subscribe", "read"
	Session string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("stream %s (session %s): %v", e.Op, e.Session, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// SubscribeError is an error reply to a SUBSCRIBE command.
type SubscribeError struct {
	ID   int64
	Code int
	Msg  string
}

func (e *SubscribeError) Error() string {
	return fmt.Sprintf("subscribe %d rejected: code %d: %s", e.ID, e.Code, e.Msg)
}

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL              string        // WebSocket URL (e.g., wss://stream.binance.com:9443/ws)
	HandshakeTimeout time.Duration // Dial handshake timeout
	PingInterval     time.Duration // How often we send keepalive pings
	PingTimeout      time.Duration // Max time without ping/pong before considering connection stale
	WriteTimeout     time.Duration // Write deadline for sends
	BufferSize       int           // Message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		URL:              DefaultURL,
		HandshakeTimeout: 10 * time.Second,
		PingInterval:     30 * time.Second,
		PingTimeout:      90 * time.Second,
		WriteTimeout:     5 * time.Second,
		BufferSize:       1024,
	}
}

// StreamConfig configures a Stream.
type StreamConfig struct {
	Client            ClientConfig
	ReconnectBaseWait time.Duration // First reconnect delay; 0 reconnects immediately
	ReconnectMaxWait  time.Duration // Cap for the exponential delay
}

// DefaultStreamConfig returns sensible defaults.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		Client:            DefaultClientConfig(),
		ReconnectBaseWait: 1 * time.Second,
		ReconnectMaxWait:  60 * time.Second,
	}
}

// State is the Stream lifecycle state.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateSubscribed
	StateReceiving
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateSubscribed:
		return "subscribed"
	case StateReceiving:
		return "receiving"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// StreamStats provides statistics about the stream.
type StreamStats struct {
	State       string    `json:"state"`
	Session     string    `json:"session"`
	Symbols     int       `json:"symbols"`
	Connects    int64     `json:"connects"`
	Reconnects  int64     `json:"reconnects"`
	Frames      int64     `json:"frames"`
	LastFrameAt time.Time `json:"last_frame_at"`
}
