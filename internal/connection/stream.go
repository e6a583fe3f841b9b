package connection

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/rickgao/marketfeed/internal/model"
	"github.com/rickgao/marketfeed/internal/observer"
)

const component = "stream"

// StreamOption configures a Stream.
type StreamOption func(*Stream)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) StreamOption {
	return func(s *Stream) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithStateHook registers fn to be called on every state transition.
// fn runs on the Stream's goroutine and must not block.
func WithStateHook(fn func(State)) StreamOption {
	return func(s *Stream) {
		s.stateHook = fn
	}
}

// Stream maintains one subscribed connection to the trade stream and
// delivers every inbound frame to a FrameHandler, reconnecting on failure.
type Stream struct {
	cfg       StreamConfig
	symbols   []model.Symbol
	handler   FrameHandler
	observer  observer.Observer
	logger    *slog.Logger
	stateHook func(State)

	state      atomic.Int32
	nextID     atomic.Int64
	connects   atomic.Int64
	reconnects atomic.Int64
	frames     atomic.Int64
	lastFrame  atomic.Int64 // unix nanos

	mu      sync.Mutex
	client  Client
	session string

	stopCh   chan struct{}
	stopOnce sync.Once
	running  atomic.Bool
}

// NewStream creates a Stream for symbols. The subscription set is fixed for
// the Stream's lifetime and is re-sent on every connect.
func NewStream(cfg StreamConfig, symbols []model.Symbol, handler FrameHandler, obs observer.Observer, opts ...StreamOption) *Stream {
	s := &Stream{
		cfg:      cfg,
		symbols:  append([]model.Symbol(nil), symbols...),
		handler:  handler,
		observer: obs,
		logger:   slog.Default(),
		stopCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", component)
	return s
}

// Run connects, subscribes and consumes frames until ctx is cancelled or
// Stop is called. Transport failures are reported to the observer and
// followed by a reconnect; they never end Run.
func (s *Stream) Run(ctx context.Context) error {
	if len(s.symbols) == 0 {
		return ErrNoSymbols
	}
	if State(s.state.Load()) == StateStopped || !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyClosed
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	s.logger.Info("stream starting",
		"url", s.cfg.Client.URL,
		"symbols", len(s.symbols),
	)

	wait := s.cfg.ReconnectBaseWait
	for {
		receiving, err := s.runSession(ctx)
		if ctx.Err() != nil {
			break
		}

		s.setState(StateDisconnected)
		s.report(err)

		if receiving {
			wait = s.cfg.ReconnectBaseWait
		}
		delay := s.jitter(wait)
		wait = s.grow(wait)

		s.logger.Warn("stream disconnected",
			"error", err,
			"retry_in", delay,
		)

		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
			case <-timer.C:
			}
			if ctx.Err() != nil {
				break
			}
		}
	}

	s.setState(StateStopped)
	s.logger.Info("stream stopped",
		"connects", s.connects.Load(),
		"frames", s.frames.Load(),
	)
	return nil
}

// Stop terminates the Stream. It closes the live connection and prevents
// any further reconnect. Safe to call more than once.
func (s *Stream) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)

		s.mu.Lock()
		client := s.client
		s.mu.Unlock()
		if client != nil {
			client.Close()
		}

		s.setState(StateStopped)
	})
}

// State returns the current lifecycle state.
func (s *Stream) State() State {
	return State(s.state.Load())
}

// Symbols returns the subscription set.
func (s *Stream) Symbols() []model.Symbol {
	return append([]model.Symbol(nil), s.symbols...)
}

// Stats returns current statistics.
func (s *Stream) Stats() StreamStats {
	s.mu.Lock()
	session := s.session
	s.mu.Unlock()

	var last time.Time
	if ns := s.lastFrame.Load(); ns > 0 {
		last = time.Unix(0, ns)
	}

	return StreamStats{
		State:       s.State().String(),
		Session:     session,
		Symbols:     len(s.symbols),
		Connects:    s.connects.Load(),
		Reconnects:  s.reconnects.Load(),
		Frames:      s.frames.Load(),
		LastFrameAt: last,
	}
}

// runSession performs one connect-subscribe-receive cycle. It reports
// whether the session reached StateReceiving.
func (s *Stream) runSession(ctx context.Context) (receiving bool, err error) {
	session := uuid.NewString()
	logger := s.logger.With("session", session)

	client := NewClient(s.cfg.Client, logger)
	s.mu.Lock()
	s.client = client
	s.session = session
	s.mu.Unlock()

	defer func() {
		client.Close()
		s.mu.Lock()
		if s.client == client {
			s.client = nil
		}
		s.mu.Unlock()
	}()

	s.setState(StateConnecting)
	if err := client.Connect(ctx); err != nil {
		return false, &TransportError{Op: "dial", Session: session, Err: err}
	}
	if s.connects.Add(1) > 1 {
		s.reconnects.Add(1)
	}

	cmd := s.subscribeCommand()
	data, err := json.Marshal(cmd)
	if err != nil {
		return false, &TransportError{Op: "subscribe", Session: session, Err: err}
	}
	if err := client.Send(data); err != nil {
		return false, &TransportError{Op: "subscribe", Session: session, Err: err}
	}
	s.setState(StateSubscribed)
	logger.Info("subscribed", "id", cmd.ID, "channels", len(cmd.Params))

	for {
		select {
		case <-ctx.Done():
			return receiving, nil

		case err := <-client.Errors():
			// Frames read before the failure are still delivered.
			for drained := false; !drained; {
				select {
				case f := <-client.Messages():
					s.handle(f, &receiving)
				default:
					drained = true
				}
			}
			return receiving, &TransportError{Op: "read", Session: session, Err: err}

		case f := <-client.Messages():
			s.handle(f, &receiving)
		}
	}
}

func (s *Stream) subscribeCommand() Command {
	params := make([]string, len(s.symbols))
	for i, sym := range s.symbols {
		params[i] = sym.TradeChannel()
	}
	return Command{
		Method: "SUBSCRIBE",
		Params: params,
		ID:     s.nextID.Add(1),
	}
}

// handle consumes one frame. Command replies stay inside the Stream;
// everything else goes to the handler.
func (s *Stream) handle(f Frame, receiving *bool) {
	if !*receiving {
		*receiving = true
		s.setState(StateReceiving)
	}
	s.frames.Add(1)
	s.lastFrame.Store(f.ReceivedAt.UnixNano())

	if resp, ok := parseResponse(f.Data); ok {
		if resp.Error != nil {
			s.report(&SubscribeError{ID: resp.ID, Code: resp.Error.Code, Msg: resp.Error.Msg})
			return
		}
		s.logger.Debug("command acknowledged", "id", resp.ID)
		return
	}

	if s.handler != nil {
		s.handler.HandleFrame(f)
	}
}

// parseResponse recognizes a command reply: an object with a numeric id and
// a result or error member, and no event type.
func parseResponse(data []byte) (Response, bool) {
	if !gjson.ValidBytes(data) {
		return Response{}, false
	}
	r := gjson.ParseBytes(data)
	if !r.IsObject() || r.Get("e").Exists() {
		return Response{}, false
	}

	id := r.Get("id")
	if id.Type != gjson.Number {
		return Response{}, false
	}
	result, errMsg := r.Get("result"), r.Get("error")
	if !result.Exists() && !errMsg.Exists() {
		return Response{}, false
	}

	resp := Response{ID: id.Int()}
	if result.Exists() {
		resp.Result = json.RawMessage(result.Raw)
	}
	if errMsg.Exists() && errMsg.Type != gjson.Null {
		resp.Error = &ErrorMsg{
			Code: int(errMsg.Get("code").Int()),
			Msg:  errMsg.Get("msg").String(),
		}
	}
	return resp, true
}

func (s *Stream) setState(next State) {
	for {
		cur := s.state.Load()
		if State(cur) == StateStopped || State(cur) == next {
			return
		}
		if s.state.CompareAndSwap(cur, int32(next)) {
			break
		}
	}
	s.logger.Debug("stream state", "state", next.String())
	if s.stateHook != nil {
		s.stateHook(next)
	}
}

func (s *Stream) report(err error) {
	if err == nil {
		return
	}
	if oerr := observer.SafeNotify(s.observer, component, err); oerr != nil {
		s.logger.Error("error observer failed", "error", oerr, "reported", err)
	}
}

// jitter spreads wait over [0.5, 1.5) of its value, capped at the max wait.
func (s *Stream) jitter(wait time.Duration) time.Duration {
	if wait <= 0 {
		return 0
	}
	d := time.Duration(float64(wait) * (0.5 + rand.Float64()))
	if limit := s.cfg.ReconnectMaxWait; limit > 0 && d > limit {
		d = limit
	}
	return d
}

func (s *Stream) grow(wait time.Duration) time.Duration {
	wait *= 2
	if limit := s.cfg.ReconnectMaxWait; limit > 0 && wait > limit {
		wait = limit
	}
	return wait
}
