package watchlist

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"quotedesk/internal/metrics"
	"quotedesk/internal/quote"
)

const sharedTTL = 30 * 24 * time.Hour

// Store keeps per-user watchlists and shared-list codes in redis.
// Each user's list is a hash keyed by symbol with JSON item values;
// shared lists are plain keys with a TTL so stale links age out.
type Store struct {
	client *redis.Client
	prefix string
}

func NewStore(client *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = "watchlist"
	}
	return &Store{client: client, prefix: prefix}
}

func (s *Store) userKey(userID string) string {
	return fmt.Sprintf("%s:user:%s", s.prefix, userID)
}

func (s *Store) shareKey(code string) string {
	return fmt.Sprintf("%s:share:%s", s.prefix, code)
}

// Put upserts one item into the user's list.
func (s *Store) Put(ctx context.Context, userID string, item Item) error {
	sym := quote.NormalizeSymbol(item.Symbol)
	if sym == "" || !symbolPattern.MatchString(sym) {
		return fmt.Errorf("watchlist: invalid symbol %q", item.Symbol)
	}
	item.Symbol = sym
	if item.AddedAt.IsZero() {
		item.AddedAt = time.Now().UTC()
	}
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("watchlist: marshal item: %w", err)
	}
	err = s.client.HSet(ctx, s.userKey(userID), sym, data).Err()
	metrics.WatchlistOps.WithLabelValues("put", status(err)).Inc()
	return err
}

// Remove deletes one symbol from the user's list. Removing a symbol that
// is not there is not an error.
func (s *Store) Remove(ctx context.Context, userID, symbol string) error {
	err := s.client.HDel(ctx, s.userKey(userID), quote.NormalizeSymbol(symbol)).Err()
	metrics.WatchlistOps.WithLabelValues("remove", status(err)).Inc()
	return err
}

// List returns the user's items ordered by symbol.
func (s *Store) List(ctx context.Context, userID string) ([]Item, error) {
	vals, err := s.client.HGetAll(ctx, s.userKey(userID)).Result()
	metrics.WatchlistOps.WithLabelValues("list", status(err)).Inc()
	if err != nil {
		return nil, err
	}
	items := make([]Item, 0, len(vals))
	for sym, raw := range vals {
		var it Item
		if err := json.Unmarshal([]byte(raw), &it); err != nil {
			// A corrupt row should not hide the rest of the list.
			items = append(items, Item{Symbol: sym})
			continue
		}
		items = append(items, it)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Symbol < items[j].Symbol })
	return items, nil
}

// SaveShared persists the symbol list behind a share code.
func (s *Store) SaveShared(ctx context.Context, code string, symbols []string) error {
	data, err := json.Marshal(quote.NormalizeSymbols(symbols))
	if err != nil {
		return fmt.Errorf("watchlist: marshal share: %w", err)
	}
	err = s.client.Set(ctx, s.shareKey(code), data, sharedTTL).Err()
	metrics.WatchlistOps.WithLabelValues("save_shared", status(err)).Inc()
	return err
}

// LoadShared resolves a share code to its symbol list.
func (s *Store) LoadShared(ctx context.Context, code string) ([]string, error) {
	raw, err := s.client.Get(ctx, s.shareKey(code)).Bytes()
	metrics.WatchlistOps.WithLabelValues("load_shared", status(err)).Inc()
	if err == redis.Nil {
		return nil, fmt.Errorf("watchlist: unknown share code")
	}
	if err != nil {
		return nil, err
	}
	var syms []string
	if err := json.Unmarshal(raw, &syms); err != nil {
		return nil, fmt.Errorf("watchlist: unmarshal share: %w", err)
	}
	return syms, nil
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
