package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/marketfeed/internal/model"
)

// scannerServer replies to /crypto/scan with the given rows and records
// the last decoded request.
func scannerServer(t *testing.T, rows map[string]string, last *scanRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/crypto/scan" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var req scanRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if last != nil {
			*last = req
		}

		data := "["
		for _, ticker := range req.Symbols.Tickers {
			d, ok := rows[ticker]
			if !ok {
				continue
			}
			if data != "[" {
				data += ","
			}
			data += `{"s":"` + ticker + `","d":` + d + `}`
		}
		data += "]"
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"totalCount":1,"data":` + data + `}`))
	}))
}

func TestAnalyze(t *testing.T) {
	t.Run("decodes indicators", func(t *testing.T) {
		var last scanRequest
		server := scannerServer(t, map[string]string{
			"BINANCE:BTCUSDT": `[0.5454, 65000.12, 1234.5, 61.2, 12.5, 64800.01]`,
		}, &last)
		defer server.Close()

		c := NewClient(server.URL)
		a, err := c.Analyze(context.Background(), AnalysisRequest{
			Symbol:   "BTCUSDT",
			Exchange: "BINANCE",
			Screener: "crypto",
			Interval: model.Interval5Minute,
		})
		if err != nil {
			t.Fatalf("Analyze failed: %v", err)
		}

		if !a.Close.Equal(decimal.RequireFromString("65000.12")) {
			t.Errorf("Close = %s", a.Close)
		}
		if !a.EMA20.Equal(decimal.RequireFromString("64800.01")) {
			t.Errorf("EMA20 = %s", a.EMA20)
		}
		if a.Recommendation() != model.RecommendBuy {
			t.Errorf("Recommendation = %s, want BUY", a.Recommendation())
		}

		if len(last.Symbols.Tickers) != 1 || last.Symbols.Tickers[0] != "BINANCE:BTCUSDT" {
			t.Errorf("tickers = %v", last.Symbols.Tickers)
		}
		wantCols := []string{"Recommend.All|5", "close|5", "volume|5", "RSI|5", "MACD.macd|5", "EMA20|5"}
		for i, col := range wantCols {
			if last.Columns[i] != col {
				t.Errorf("Columns[%d] = %q, want %q", i, last.Columns[i], col)
			}
		}
	})

	t.Run("daily interval has no suffix", func(t *testing.T) {
		var last scanRequest
		server := scannerServer(t, map[string]string{
			"BINANCE:BTCUSDT": `[0, 1, 1, 1, 1, 1]`,
		}, &last)
		defer server.Close()

		c := NewClient(server.URL)
		_, err := c.Analyze(context.Background(), AnalysisRequest{
			Symbol: "BTCUSDT", Exchange: "BINANCE", Screener: "crypto", Interval: model.Interval1Day,
		})
		if err != nil {
			t.Fatalf("Analyze failed: %v", err)
		}
		if last.Columns[1] != "close" {
			t.Errorf("Columns[1] = %q, want close", last.Columns[1])
		}
	})

	t.Run("null indicator is an error", func(t *testing.T) {
		server := scannerServer(t, map[string]string{
			"BINANCE:BTCUSDT": `[0.1, 65000, 10, null, 1, 1]`,
		}, nil)
		defer server.Close()

		c := NewClient(server.URL)
		_, err := c.Analyze(context.Background(), AnalysisRequest{
			Symbol: "BTCUSDT", Exchange: "BINANCE", Screener: "crypto", Interval: model.Interval1Minute,
		})
		if !errors.Is(err, ErrMissingIndicator) {
			t.Errorf("error = %v, want ErrMissingIndicator", err)
		}
	})

	t.Run("unknown ticker", func(t *testing.T) {
		server := scannerServer(t, map[string]string{}, nil)
		defer server.Close()

		c := NewClient(server.URL)
		_, err := c.Analyze(context.Background(), AnalysisRequest{
			Symbol: "NOPE", Exchange: "BINANCE", Screener: "crypto", Interval: model.Interval1Minute,
		})
		if !errors.Is(err, ErrSymbolNotFound) {
			t.Errorf("error = %v, want ErrSymbolNotFound", err)
		}
	})

	t.Run("score out of range", func(t *testing.T) {
		server := scannerServer(t, map[string]string{
			"BINANCE:BTCUSDT": `[3, 1, 1, 1, 1, 1]`,
		}, nil)
		defer server.Close()

		c := NewClient(server.URL)
		if _, err := c.Analyze(context.Background(), AnalysisRequest{
			Symbol: "BTCUSDT", Exchange: "BINANCE", Screener: "crypto", Interval: model.Interval1Minute,
		}); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("unsupported interval", func(t *testing.T) {
		c := NewClient("http://127.0.0.1:0")
		if _, err := c.Analyze(context.Background(), AnalysisRequest{
			Symbol: "BTCUSDT", Exchange: "BINANCE", Screener: "crypto", Interval: "3m",
		}); err == nil {
			t.Error("expected error")
		}
	})
}

func TestAnalysis_Recommendation(t *testing.T) {
	tests := []struct {
		score string
		want  model.Recommendation
	}{
		{"-1", model.RecommendSell},
		{"-0.6", model.RecommendSell},
		{"-0.11", model.RecommendSell},
		{"-0.1", model.RecommendNeutral},
		{"0", model.RecommendNeutral},
		{"0.1", model.RecommendNeutral},
		{"0.1001", model.RecommendBuy},
		{"0.9", model.RecommendBuy},
	}

	for _, tt := range tests {
		a := Analysis{Score: decimal.RequireFromString(tt.score)}
		if got := a.Recommendation(); got != tt.want {
			t.Errorf("Recommendation(%s) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestSnapshotClient_Fetch(t *testing.T) {
	server := scannerServer(t, map[string]string{
		"BINANCE:BTCUSDT": `[-0.3, 65000.12, 1234.5, 38.2, -12.5, 65100]`,
	}, nil)
	defer server.Close()

	c := NewClient(server.URL)
	capturedAt := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

	t.Run("success", func(t *testing.T) {
		sc := NewSnapshotClient(c, AnalysisRequest{
			Symbol: "BTCUSDT", Exchange: "BINANCE", Screener: "crypto", Interval: model.Interval1Minute,
		})
		if sc.Symbol() != "BTCUSDT" {
			t.Errorf("Symbol() = %s", sc.Symbol())
		}

		rec, err := sc.Fetch(context.Background(), capturedAt)
		if err != nil {
			t.Fatalf("Fetch failed: %v", err)
		}
		if !rec.Timestamp.Equal(capturedAt) {
			t.Errorf("Timestamp = %v, want %v", rec.Timestamp, capturedAt)
		}
		if rec.Recommendation != model.RecommendSell {
			t.Errorf("Recommendation = %s, want SELL", rec.Recommendation)
		}
		if !rec.MACD.Equal(decimal.RequireFromString("-12.5")) {
			t.Errorf("MACD = %s", rec.MACD)
		}
		if !rec.Volume.Equal(decimal.RequireFromString("1234.5")) {
			t.Errorf("Volume = %s", rec.Volume)
		}
	})

	t.Run("failure is a FetchError", func(t *testing.T) {
		sc := NewSnapshotClient(c, AnalysisRequest{
			Symbol: "ETHUSDT", Exchange: "BINANCE", Screener: "crypto", Interval: model.Interval1Minute,
		})

		_, err := sc.Fetch(context.Background(), capturedAt)

		var fe *FetchError
		if !errors.As(err, &fe) {
			t.Fatalf("error = %v, want *FetchError", err)
		}
		if fe.Symbol != "ETHUSDT" {
			t.Errorf("Symbol = %s, want ETHUSDT", fe.Symbol)
		}
		if !errors.Is(err, ErrSymbolNotFound) {
			t.Errorf("cause = %v, want ErrSymbolNotFound", fe.Cause)
		}
	})
}
