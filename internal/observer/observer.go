// Package observer defines the error-reporting seam shared by the poller and
// the stream. Every recoverable failure (per-symbol fetch, malformed frame,
// transport drop) is handed to an Observer instead of being returned up the
// owning loop.
package observer

import (
	"fmt"
	"log/slog"
)

// Observer receives recoverable errors. Implementations must not block.
type Observer interface {
	// Notify reports err raised by component (e.g. "poller", "stream").
	Notify(component string, err error)
}

// Func is a function adapter for Observer.
type Func func(component string, err error)

func (f Func) Notify(component string, err error) {
	f(component, err)
}

// ObserverError wraps a panic raised inside an Observer.
type ObserverError struct {
	Component string
	Panic     any
}

func (e *ObserverError) Error() string {
	return fmt.Sprintf("observer failed while reporting %s error: %v", e.Component, e.Panic)
}

// SafeNotify calls o.Notify and converts a panic into an ObserverError.
func SafeNotify(o Observer, component string, err error) (oerr error) {
	if o == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			oerr = &ObserverError{Component: component, Panic: r}
		}
	}()
	o.Notify(component, err)
	return nil
}

// Multi fans a notification out to several observers in order.
type Multi []Observer

func (m Multi) Notify(component string, err error) {
	for _, o := range m {
		if o != nil {
			o.Notify(component, err)
		}
	}
}

// logObserver writes notifications to a structured logger.
type logObserver struct {
	logger *slog.Logger
}

// NewLogObserver returns an Observer that logs each error at warn level.
func NewLogObserver(logger *slog.Logger) Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &logObserver{logger: logger}
}

func (l *logObserver) Notify(component string, err error) {
	l.logger.Warn("recoverable error",
		"component", component,
		"error", err,
	)
}
