// Package watchlist is the per-user symbol list: a redis-backed document
// store plus the pure list operations the dashboard needs (sorting, tag
// filtering, URL share codes).
package watchlist

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"quotedesk/internal/quote"
)

// Item is one watchlist row.
type Item struct {
	Symbol  string    `json:"symbol"`
	Tags    []string  `json:"tags,omitempty"`
	AddedAt time.Time `json:"added_at"`
}

// SortField selects the quote column to order a view by.
type SortField string

const (
	BySymbol    SortField = "symbol"
	ByPrice     SortField = "price"
	ByChangePct SortField = "change_pct"
)

// Row pairs an item with its resolved quote for display.
type Row struct {
	Item  Item        `json:"item"`
	Quote quote.Quote `json:"quote"`
}

// SortRows orders rows in place. Descending applies to the numeric
// fields; symbol order is always ascending with descending meaning
// reverse-alphabetical. Unavailable quotes sink to the bottom regardless.
func SortRows(rows []Row, field SortField, descending bool) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Quote.Unavailable != b.Quote.Unavailable {
			return !a.Quote.Unavailable
		}
		if descending {
			a, b = b, a
		}
		switch field {
		case ByPrice:
			return a.Quote.Price < b.Quote.Price
		case ByChangePct:
			return a.Quote.ChangePct < b.Quote.ChangePct
		default:
			return a.Item.Symbol < b.Item.Symbol
		}
	})
}

// FilterByTag keeps items carrying the tag (case-insensitive). An empty
// tag returns the input unchanged.
func FilterByTag(items []Item, tag string) []Item {
	if strings.TrimSpace(tag) == "" {
		return items
	}
	want := strings.ToLower(strings.TrimSpace(tag))
	out := make([]Item, 0, len(items))
	for _, it := range items {
		for _, t := range it.Tags {
			if strings.ToLower(t) == want {
				out = append(out, it)
				break
			}
		}
	}
	return out
}

// Share codes: a URL-safe base64 of the comma-joined symbol list. Codes
// are bounded so a crafted URL cannot expand into an unbounded fetch.
const maxShareSymbols = 50

var symbolPattern = regexp.MustCompile(`^[A-Z][A-Z0-9.\-]{0,9}$`)

// EncodeShare turns a symbol list into a share code.
func EncodeShare(symbols []string) (string, error) {
	syms := quote.NormalizeSymbols(symbols)
	if len(syms) == 0 {
		return "", fmt.Errorf("watchlist: nothing to share")
	}
	if len(syms) > maxShareSymbols {
		return "", fmt.Errorf("watchlist: share list too long (%d > %d)", len(syms), maxShareSymbols)
	}
	for _, s := range syms {
		if !symbolPattern.MatchString(s) {
			return "", fmt.Errorf("watchlist: invalid symbol %q", s)
		}
	}
	return base64.RawURLEncoding.EncodeToString([]byte(strings.Join(syms, ","))), nil
}

// DecodeShare reverses EncodeShare, re-validating every symbol: the code
// arrives from a URL, so it is attacker-controlled input.
func DecodeShare(code string) ([]string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(code)
	if err != nil {
		return nil, fmt.Errorf("watchlist: bad share code: %w", err)
	}
	syms := quote.NormalizeSymbols(strings.Split(string(raw), ","))
	if len(syms) == 0 || len(syms) > maxShareSymbols {
		return nil, fmt.Errorf("watchlist: bad share code")
	}
	for _, s := range syms {
		if !symbolPattern.MatchString(s) {
			return nil, fmt.Errorf("watchlist: bad share code")
		}
	}
	return syms, nil
}
