// Package quote holds the resolution core: the session-aware waterfall
// that turns one symbol into a normalized Quote, and the batch
// orchestrator that paces many symbols through it.
package quote

import (
	"context"
	"strings"
	"time"
)

// Quote is the normalized shape handed to callers. Price 0 means unknown.
// When Degraded is set the price came from the previous session's close
// and the change fields are deliberately zero rather than computed
// against a stale baseline. When Unavailable is set nothing upstream
// produced data; the quote is a sentinel, not a measurement.
type Quote struct {
	Symbol      string    `json:"symbol"`
	Name        string    `json:"name,omitempty"`
	Exchange    string    `json:"exchange,omitempty"`
	Price       float64   `json:"price"`
	Change      float64   `json:"change"`
	ChangePct   float64   `json:"change_pct"`
	High        float64   `json:"high"`
	Low         float64   `json:"low"`
	Volume      float64   `json:"volume"`
	Degraded    bool      `json:"degraded"`
	Unavailable bool      `json:"unavailable,omitempty"`
	AsOf        time.Time `json:"as_of"`
}

// Source resolves one symbol at an explicit evaluation time.
// Resolver implements it; Cache wraps any Source with a TTL.
type Source interface {
	Resolve(ctx context.Context, symbol string, at time.Time) (Quote, error)
}

// Unavailable builds the deterministic sentinel for a symbol that could
// not be resolved at all.
func Unavailable(symbol string, at time.Time) Quote {
	return Quote{Symbol: NormalizeSymbol(symbol), Unavailable: true, AsOf: at}
}

// NormalizeSymbol canonicalizes a ticker for use as a map key.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// NormalizeSymbols uppercases, drops empties and dedupes while keeping
// first-seen order. Order matters: it is the batch partition order.
func NormalizeSymbols(symbols []string) []string {
	out := make([]string, 0, len(symbols))
	seen := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		n := NormalizeSymbol(s)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
