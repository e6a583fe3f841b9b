package render

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/marketfeed/internal/model"
)

func snapshot(sym model.Symbol, close string, rec model.Recommendation, at time.Time) model.SnapshotRecord {
	return model.SnapshotRecord{
		Symbol:         sym,
		Timestamp:      at,
		Close:          decimal.RequireFromString(close),
		Volume:         decimal.RequireFromString("1234.5"),
		RSI:            decimal.RequireFromString("61.2"),
		MACD:           decimal.RequireFromString("12.5"),
		EMA20:          decimal.RequireFromString("64800.01"),
		Recommendation: rec,
	}
}

func TestConsole_Trade(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, ColorNever)

	c.Trade(model.TradeRecord{
		Symbol:    "BTCUSDT",
		Timestamp: time.UnixMilli(1700000000123).UTC(),
		Price:     decimal.RequireFromString("65000.12"),
		Quantity:  decimal.RequireFromString("0.01"),
		Side:      model.SideBuy,
	})

	want := "[2023-11-14 22:13:20.123] BTCUSDT | Price: 65000.12000000 | Quantity: 0.01000000 | Side: BUY\n"
	if buf.String() != want {
		t.Errorf("got  %q\nwant %q", buf.String(), want)
	}
}

func TestConsole_Batch(t *testing.T) {
	var buf bytes.Buffer
	at := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	c := NewConsole(&buf, ColorNever, WithOrder([]model.Symbol{"ETHUSDT", "BTCUSDT"}))

	c.Batch(model.SnapshotBatch{
		"BTCUSDT": snapshot("BTCUSDT", "65000.12", model.RecommendBuy, at),
		"ETHUSDT": snapshot("ETHUSDT", "3500", model.RecommendNeutral, at),
		"ADAUSDT": snapshot("ADAUSDT", "0.5", model.RecommendSell, at),
	})

	out := buf.String()
	if !strings.Contains(out, "=== Market Data Update at 2024-01-15 10:30:00 ===") {
		t.Errorf("missing header:\n%s", out)
	}
	for _, want := range []string{
		"Price: 65000.12\n",
		"Volume: 1234.5\n",
		"RSI: 61.2\n",
		"MACD: 12.5\n",
		"EMA20: 64800.01\n",
		"Recommendation: NEUTRAL\n",
		"Timestamp: 2024-01-15T10:30:00Z\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}

	// Configured order first, the rest alphabetically.
	eth := strings.Index(out, "ETHUSDT:")
	btc := strings.Index(out, "BTCUSDT:")
	ada := strings.Index(out, "ADAUSDT:")
	if !(eth >= 0 && eth < btc && btc < ada) {
		t.Errorf("unexpected order eth=%d btc=%d ada=%d", eth, btc, ada)
	}
}

func TestConsole_EmptyBatch(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, ColorNever)

	c.Batch(model.SnapshotBatch{})

	out := buf.String()
	if !strings.Contains(out, "=== Market Data Update at") {
		t.Errorf("missing header: %q", out)
	}
	if strings.Contains(out, "Price:") {
		t.Errorf("empty batch should print no records: %q", out)
	}
}

func TestConsole_Colors(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, ColorAlways)

	c.Trade(model.TradeRecord{
		Symbol:    "ETHUSDT",
		Timestamp: time.UnixMilli(0),
		Price:     decimal.NewFromInt(1),
		Quantity:  decimal.NewFromInt(1),
		Side:      model.SideSell,
	})

	out := buf.String()
	if !strings.Contains(out, red+"SELL"+reset) {
		t.Errorf("expected red SELL, got %q", out)
	}
	if !strings.Contains(out, yellow+"ETHUSDT"+reset) {
		t.Errorf("expected yellow symbol, got %q", out)
	}
}

func TestConsole_AutoColorOffForBuffers(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, ColorAuto)
	c.Banner("Starting market data stream...", []model.Symbol{"BTCUSDT", "ETHUSDT"})

	if strings.Contains(buf.String(), "\x1b[") {
		t.Errorf("non-terminal writer should not get escapes: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "Monitoring symbols: BTCUSDT, ETHUSDT\n") {
		t.Errorf("unexpected banner: %q", buf.String())
	}
}

func TestConsole_ConcurrentWritesDoNotInterleave(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, ColorNever)
	trade := model.TradeRecord{
		Symbol:    "BTCUSDT",
		Timestamp: time.UnixMilli(0),
		Price:     decimal.NewFromInt(1),
		Quantity:  decimal.NewFromInt(1),
		Side:      model.SideBuy,
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				c.Trade(trade)
			}
		}()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if len(lines) != 400 {
		t.Fatalf("lines = %d, want 400", len(lines))
	}
	for _, l := range lines {
		if !strings.HasPrefix(l, "[1970-01-01 00:00:00.000] BTCUSDT") {
			t.Fatalf("interleaved line %q", l)
		}
	}
}
