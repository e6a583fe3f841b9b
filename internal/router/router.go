package router

import (
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/rickgao/marketfeed/internal/connection"
	"github.com/rickgao/marketfeed/internal/observer"
)

const component = "stream"

// Dispatcher turns stream frames into trade records. It implements
// connection.FrameHandler and expects to be called from one goroutine.
type Dispatcher struct {
	onTrade  TradeHandler
	observer observer.Observer
	logger   *slog.Logger

	received    atomic.Int64
	emitted     atomic.Int64
	skipped     atomic.Int64
	parseErrors atomic.Int64
	malformed   atomic.Int64
}

// NewDispatcher creates a Dispatcher that hands trades to onTrade and
// rejected frames to obs.
func NewDispatcher(onTrade TradeHandler, obs observer.Observer, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		onTrade:  onTrade,
		observer: obs,
		logger:   logger,
	}
}

// HandleFrame parses and routes a single frame.
func (d *Dispatcher) HandleFrame(f connection.Frame) {
	d.received.Add(1)

	rec, ok, err := ParseTrade(f.Data)
	if err != nil {
		var perr *ParseError
		if errors.As(err, &perr) && perr.Malformed {
			d.malformed.Add(1)
		} else {
			d.parseErrors.Add(1)
		}
		d.report(err)
		return
	}
	if !ok {
		d.skipped.Add(1)
		return
	}

	rec.ReceivedAt = f.ReceivedAt
	if d.onTrade != nil {
		d.onTrade(rec)
	}
	d.emitted.Add(1)
}

// Stats returns current statistics.
func (d *Dispatcher) Stats() DispatcherStats {
	return DispatcherStats{
		FramesReceived: d.received.Load(),
		TradesEmitted:  d.emitted.Load(),
		Skipped:        d.skipped.Load(),
		ParseErrors:    d.parseErrors.Load(),
		Malformed:      d.malformed.Load(),
	}
}

func (d *Dispatcher) report(err error) {
	if oerr := observer.SafeNotify(d.observer, component, err); oerr != nil {
		d.logger.Error("error observer failed", "error", oerr, "reported", err)
	}
}
