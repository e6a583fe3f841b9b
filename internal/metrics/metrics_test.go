package metrics

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/rickgao/marketfeed/internal/api"
	"github.com/rickgao/marketfeed/internal/connection"
	"github.com/rickgao/marketfeed/internal/model"
	"github.com/rickgao/marketfeed/internal/observer"
	"github.com/rickgao/marketfeed/internal/poller"
	"github.com/rickgao/marketfeed/internal/router"
)

func TestKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"fetch", &api.FetchError{Symbol: "BTCUSDT", Cause: errors.New("timeout")}, KindFetch},
		{"parse", &router.ParseError{Reason: "price must be positive"}, KindParse},
		{"malformed", &router.ParseError{Reason: "malformed payload", Malformed: true}, KindMalformed},
		{"transport", &connection.TransportError{Op: "read", Err: errors.New("eof")}, KindTransport},
		{"subscribe", &connection.SubscribeError{ID: 1, Code: 2, Msg: "bad"}, KindSubscribe},
		{"cycle", &poller.CycleError{CycleID: "x", Panic: "boom"}, KindCycle},
		{"observer", &observer.ObserverError{Component: "poller", Panic: "boom"}, KindObserver},
		{"wrapped fetch", fmt.Errorf("cycle: %w", &api.FetchError{Symbol: "ETHUSDT"}), KindFetch},
		{"plain", errors.New("something"), KindOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Kind(tt.err); got != tt.want {
				t.Errorf("Kind() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMetrics_Notify(t *testing.T) {
	m := New()

	m.Notify("poller", &api.FetchError{Symbol: "BTCUSDT"})
	m.Notify("poller", &api.FetchError{Symbol: "ETHUSDT"})
	m.Notify("stream", &router.ParseError{Malformed: true})

	if got := testutil.ToFloat64(m.errorsTotal.WithLabelValues("poller", KindFetch)); got != 2 {
		t.Errorf("poller/fetch errors = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.errorsTotal.WithLabelValues("stream", KindMalformed)); got != 1 {
		t.Errorf("stream/malformed errors = %v, want 1", got)
	}
}

func TestMetrics_RecordCycle(t *testing.T) {
	m := New()

	m.RecordCycle(poller.CycleStats{
		ID:         "c1",
		CapturedAt: time.Unix(1700000000, 0),
		Symbols:    3,
		Fetched:    2,
		Failed:     1,
		Duration:   120 * time.Millisecond,
	})

	if got := testutil.ToFloat64(m.pollCycles); got != 1 {
		t.Errorf("cycles = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.snapshotsFetched); got != 2 {
		t.Errorf("fetched = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.fetchFailures); got != 1 {
		t.Errorf("failures = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.lastCaptureTime); got != 1700000000 {
		t.Errorf("last capture = %v, want 1700000000", got)
	}
}

func TestMetrics_ObserveState(t *testing.T) {
	m := New()

	for _, s := range []connection.State{
		connection.StateConnecting,
		connection.StateSubscribed,
		connection.StateReceiving,
		connection.StateDisconnected,
		connection.StateConnecting,
		connection.StateSubscribed,
	} {
		m.ObserveState(s)
	}

	if got := testutil.ToFloat64(m.streamState); got != float64(connection.StateSubscribed) {
		t.Errorf("state gauge = %v, want %v", got, float64(connection.StateSubscribed))
	}
	if got := testutil.ToFloat64(m.streamConnects); got != 2 {
		t.Errorf("subscribes = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.streamDisconnects); got != 1 {
		t.Errorf("disconnects = %v, want 1", got)
	}
}

func TestMetrics_ObserveTrade(t *testing.T) {
	m := New()

	m.ObserveTrade(model.TradeRecord{Symbol: "BTCUSDT", Side: model.SideBuy})
	m.ObserveTrade(model.TradeRecord{Symbol: "BTCUSDT", Side: model.SideBuy})
	m.ObserveTrade(model.TradeRecord{Symbol: "BTCUSDT", Side: model.SideSell})

	if got := testutil.ToFloat64(m.tradesEmitted.WithLabelValues("BTCUSDT", "BUY")); got != 2 {
		t.Errorf("BTCUSDT/BUY = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.tradesEmitted.WithLabelValues("BTCUSDT", "SELL")); got != 1 {
		t.Errorf("BTCUSDT/SELL = %v, want 1", got)
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.Notify("stream", &connection.TransportError{Op: "read", Err: errors.New("eof")})

	server := httptest.NewServer(m.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	want := `marketfeed_errors_total{component="stream",kind="transport"} 1`
	if !strings.Contains(string(body), want) {
		t.Errorf("exposition missing %q", want)
	}
	if !strings.Contains(string(body), "go_goroutines") {
		t.Error("exposition missing go collector metrics")
	}
}
