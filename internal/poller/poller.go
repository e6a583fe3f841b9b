package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/marketfeed/internal/api"
	"github.com/rickgao/marketfeed/internal/model"
	"github.com/rickgao/marketfeed/internal/observer"
)

const component = "poller"

// Errors
var (
	ErrNotIdle = errors.New("poller already started")
)

// Source fetches the snapshot for one symbol. api.SnapshotClient
// implements it.
type Source interface {
	Symbol() model.Symbol
	Fetch(ctx context.Context, capturedAt time.Time) (model.SnapshotRecord, error)
}

// BatchHandler receives the result of each completed poll cycle.
type BatchHandler func(model.SnapshotBatch)

// CycleRecorder receives per-cycle statistics.
type CycleRecorder interface {
	RecordCycle(stats CycleStats)
}

// CycleStats summarizes one poll cycle.
type CycleStats struct {
	ID         string        `json:"id"`
	CapturedAt time.Time     `json:"captured_at"`
	Symbols    int           `json:"symbols"`
	Fetched    int           `json:"fetched"`
	Failed     int           `json:"failed"`
	Duration   time.Duration `json:"duration"`
}

// CycleError is a failure of a whole poll cycle rather than of one symbol.
type CycleError struct {
	CycleID string
	Panic   any
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("poll cycle %s panicked: %v", e.CycleID, e.Panic)
}

// State is the poller lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Config holds poller configuration.
type Config struct {
	Interval     time.Duration // Sleep between cycles (default: 60s)
	ErrorBackoff time.Duration // Sleep after a failed cycle (default: 5s)
	Concurrency  int           // Max concurrent fetches (default: 4)
	Timeout      time.Duration // Per-fetch timeout (default: 10s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval:     60 * time.Second,
		ErrorBackoff: 5 * time.Second,
		Concurrency:  4,
		Timeout:      10 * time.Second,
	}
}

// Option configures a Poller.
type Option func(*Poller)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Poller) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithRecorder registers a CycleRecorder.
func WithRecorder(r CycleRecorder) Option {
	return func(p *Poller) {
		p.recorder = r
	}
}

// WithClock overrides the capture clock.
func WithClock(now func() time.Time) Option {
	return func(p *Poller) {
		if now != nil {
			p.now = now
		}
	}
}

// Poller fetches snapshots for a fixed symbol set on a fixed cadence.
type Poller struct {
	cfg      Config
	sources  []Source
	observer observer.Observer
	recorder CycleRecorder
	logger   *slog.Logger
	now      func() time.Time

	state    atomic.Int32
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu   sync.Mutex
	last CycleStats
}

// New creates a Poller over sources. Failures are reported to obs.
func New(cfg Config, sources []Source, obs observer.Observer, opts ...Option) *Poller {
	p := &Poller{
		cfg:      cfg,
		sources:  append([]Source(nil), sources...),
		observer: obs,
		logger:   slog.Default(),
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", component)
	return p
}

// State returns the current lifecycle state.
func (p *Poller) State() State {
	return State(p.state.Load())
}

// LastCycle returns statistics for the most recent completed cycle.
func (p *Poller) LastCycle() CycleStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

type result struct {
	rec model.SnapshotRecord
	err error
}

// PollOnce fetches every symbol once with a shared capture instant.
// Failed symbols are left out of the batch and each is reported to the
// observer exactly once, in symbol order, after all fetches settle.
// The returned error is non-nil only if the observer itself failed.
func (p *Poller) PollOnce(ctx context.Context) (model.SnapshotBatch, error) {
	batch, _, err := p.pollOnce(ctx, uuid.NewString())
	return batch, err
}

func (p *Poller) pollOnce(ctx context.Context, cycleID string) (model.SnapshotBatch, CycleStats, error) {
	start := time.Now()
	capturedAt := p.now().UTC()
	logger := p.logger.With("cycle", cycleID)

	results := make([]result, len(p.sources))

	var g errgroup.Group
	if p.cfg.Concurrency > 0 {
		g.SetLimit(p.cfg.Concurrency)
	}
	for i, src := range p.sources {
		i, src := i, src
		g.Go(func() error {
			rec, err := p.fetch(ctx, src, capturedAt)
			results[i] = result{rec: rec, err: err}
			return nil
		})
	}
	g.Wait()

	batch := make(model.SnapshotBatch, len(p.sources))
	var oerr error
	for i, r := range results {
		sym := p.sources[i].Symbol()
		if r.err != nil {
			logger.Debug("symbol fetch failed", "symbol", sym, "error", r.err)
			if err := observer.SafeNotify(p.observer, component, r.err); err != nil && oerr == nil {
				oerr = err
			}
			continue
		}
		batch[sym] = r.rec
	}

	stats := CycleStats{
		ID:         cycleID,
		CapturedAt: capturedAt,
		Symbols:    len(p.sources),
		Fetched:    len(batch),
		Failed:     len(p.sources) - len(batch),
		Duration:   time.Since(start),
	}

	p.mu.Lock()
	p.last = stats
	p.mu.Unlock()
	if p.recorder != nil {
		p.recorder.RecordCycle(stats)
	}

	logger.Info("poll cycle complete",
		"symbols", stats.Symbols,
		"fetched", stats.Fetched,
		"failed", stats.Failed,
		"duration", stats.Duration,
	)

	return batch, stats, oerr
}

// fetch runs one source under the per-fetch timeout. A panicking source
// counts as a failed fetch.
func (p *Poller) fetch(ctx context.Context, src Source, capturedAt time.Time) (rec model.SnapshotRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &api.FetchError{Symbol: src.Symbol(), Cause: fmt.Errorf("panic: %v", r)}
		}
	}()

	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}
	return src.Fetch(ctx, capturedAt)
}

// Run polls until ctx is cancelled or Stop is called. Cancellation is only
// observed between cycles; a cycle in flight always completes. A failed
// cycle is reported and retried after ErrorBackoff instead of Interval.
func (p *Poller) Run(ctx context.Context, onBatch BatchHandler) error {
	if !p.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return ErrNotIdle
	}
	defer p.state.Store(int32(StateStopped))

	p.logger.Info("snapshot poller started",
		"symbols", len(p.sources),
		"interval", p.cfg.Interval,
		"concurrency", p.cfg.Concurrency,
	)

	cycleCtx := context.WithoutCancel(ctx)
	for {
		wait := p.cfg.Interval
		if err := p.cycle(cycleCtx, onBatch); err != nil {
			wait = p.cfg.ErrorBackoff
			p.logger.Error("poll cycle failed", "error", err, "retry_in", wait)
			if oerr := observer.SafeNotify(p.observer, component, err); oerr != nil {
				p.logger.Error("error observer failed", "error", oerr)
			}
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			p.logger.Info("snapshot poller stopped")
			return nil
		case <-p.stopCh:
			timer.Stop()
			p.logger.Info("snapshot poller stopped")
			return nil
		case <-timer.C:
		}
	}
}

// cycle runs PollOnce and hands the batch to onBatch. A failed cycle does
// not reach onBatch.
func (p *Poller) cycle(ctx context.Context, onBatch BatchHandler) (err error) {
	cycleID := uuid.NewString()
	defer func() {
		if r := recover(); r != nil {
			err = &CycleError{CycleID: cycleID, Panic: r}
		}
	}()

	batch, _, err := p.pollOnce(ctx, cycleID)
	if err != nil {
		return err
	}
	if onBatch != nil {
		onBatch(batch)
	}
	return nil
}

// Start runs the polling loop in a background goroutine.
func (p *Poller) Start(ctx context.Context, onBatch BatchHandler) error {
	if p.State() != StateIdle {
		return ErrNotIdle
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := p.Run(ctx, onBatch); err != nil {
			p.logger.Error("poller exited", "error", err)
		}
	}()
	return nil
}

// Stop signals the loop to exit at the next sleep boundary and waits for it.
func (p *Poller) Stop(ctx context.Context) error {
	p.stopOnce.Do(func() { close(p.stopCh) })

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
