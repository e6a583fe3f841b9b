// Package render formats snapshot batches and trades for a terminal.
package render

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/rickgao/marketfeed/internal/model"
)

// ColorMode selects when ANSI colors are written.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"
	ColorAlways ColorMode = "always"
	ColorNever  ColorMode = "never"
)

// ANSI escapes.
const (
	reset  = "\x1b[0m"
	red    = "\x1b[31m"
	green  = "\x1b[32m"
	yellow = "\x1b[33m"
	cyan   = "\x1b[36m"
)

const (
	batchTimeLayout = "2006-01-02 15:04:05"
	tradeTimeLayout = "2006-01-02 15:04:05.000"
)

// Option configures a Console.
type Option func(*Console)

// WithLocation renders timestamps in loc instead of UTC.
func WithLocation(loc *time.Location) Option {
	return func(c *Console) {
		if loc != nil {
			c.loc = loc
		}
	}
}

// WithOrder fixes the order symbols are listed in a batch. Symbols not in
// order follow alphabetically.
func WithOrder(order []model.Symbol) Option {
	return func(c *Console) {
		c.order = append([]model.Symbol(nil), order...)
	}
}

// Console writes human-readable lines to an io.Writer. It is safe for
// concurrent use so both pipelines can share one terminal.
type Console struct {
	mu    sync.Mutex
	w     io.Writer
	color bool
	loc   *time.Location
	order []model.Symbol
}

// NewConsole creates a Console. In ColorAuto mode colors are used only when
// w is a terminal and NO_COLOR is unset.
func NewConsole(w io.Writer, mode ColorMode, opts ...Option) *Console {
	c := &Console{
		w:     w,
		color: useColor(w, mode),
		loc:   time.UTC,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func useColor(w io.Writer, mode ColorMode) bool {
	switch mode {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (c *Console) paint(color, s string) string {
	if !c.color {
		return s
	}
	return color + s + reset
}

// Banner announces a pipeline and its symbols.
func (c *Console) Banner(title string, symbols []model.Symbol) {
	names := make([]string, len(symbols))
	for i, s := range symbols {
		names[i] = s.String()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.w, c.paint(cyan, title))
	fmt.Fprintf(c.w, "Monitoring symbols: %s\n", strings.Join(names, ", "))
}

// Batch renders one poll cycle. An empty batch prints only the header.
func (c *Console) Batch(batch model.SnapshotBatch) {
	captured := time.Now()
	for _, rec := range batch {
		captured = rec.Timestamp
		break
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\n%s\n", c.paint(cyan, "=== Market Data Update at "+captured.In(c.loc).Format(batchTimeLayout)+" ==="))

	for _, sym := range c.sorted(batch) {
		rec := batch[sym]
		priceColor := green
		if !rec.Close.IsPositive() {
			priceColor = red
		}

		fmt.Fprintf(&b, "\n%s\n", c.paint(yellow, sym.String()+":"))
		fmt.Fprintf(&b, "Timestamp: %s\n", rec.Timestamp.In(c.loc).Format(time.RFC3339))
		fmt.Fprintf(&b, "Price: %s\n", c.paint(priceColor, rec.Close.String()))
		fmt.Fprintf(&b, "Volume: %s\n", rec.Volume.String())
		fmt.Fprintf(&b, "RSI: %s\n", rec.RSI.String())
		fmt.Fprintf(&b, "MACD: %s\n", rec.MACD.String())
		fmt.Fprintf(&b, "EMA20: %s\n", rec.EMA20.String())
		fmt.Fprintf(&b, "Recommendation: %s\n", c.paint(recommendationColor(rec.Recommendation), string(rec.Recommendation)))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	io.WriteString(c.w, b.String())
}

// Trade renders one trade on a single line.
func (c *Console) Trade(t model.TradeRecord) {
	sideColor := green
	if t.Side == model.SideSell {
		sideColor = red
	}

	line := fmt.Sprintf("%s %s | Price: %s | Quantity: %s | Side: %s\n",
		c.paint(cyan, "["+t.Timestamp.In(c.loc).Format(tradeTimeLayout)+"]"),
		c.paint(yellow, t.Symbol.String()),
		c.paint(sideColor, t.Price.StringFixed(8)),
		t.Quantity.StringFixed(8),
		c.paint(sideColor, string(t.Side)),
	)

	c.mu.Lock()
	defer c.mu.Unlock()
	io.WriteString(c.w, line)
}

// sorted returns the batch's symbols in display order.
func (c *Console) sorted(batch model.SnapshotBatch) []model.Symbol {
	out := make([]model.Symbol, 0, len(batch))
	seen := make(map[model.Symbol]bool, len(batch))
	for _, s := range c.order {
		if _, ok := batch[s]; ok && !seen[s] {
			out = append(out, s)
			seen[s] = true
		}
	}

	var rest []model.Symbol
	for s := range batch {
		if !seen[s] {
			rest = append(rest, s)
		}
	}
	slices.Sort(rest)
	return append(out, rest...)
}

func recommendationColor(r model.Recommendation) string {
	switch r {
	case model.RecommendBuy:
		return green
	case model.RecommendSell:
		return red
	default:
		return yellow
	}
}
