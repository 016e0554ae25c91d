package watchlist

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStore(client, "wl"), mr
}

func TestStore_PutListRemove(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "u1", Item{Symbol: "msft", Tags: []string{"tech"}}))
	require.NoError(t, s.Put(ctx, "u1", Item{Symbol: "AAPL"}))
	require.NoError(t, s.Put(ctx, "u2", Item{Symbol: "SPY"}))

	items, err := s.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, "AAPL", items[0].Symbol)
	require.Equal(t, "MSFT", items[1].Symbol)
	require.Equal(t, []string{"tech"}, items[1].Tags)
	require.False(t, items[1].AddedAt.IsZero())

	// Lists are per user.
	other, err := s.List(ctx, "u2")
	require.NoError(t, err)
	require.Len(t, other, 1)

	require.NoError(t, s.Remove(ctx, "u1", "aapl"))
	items, err = s.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "MSFT", items[0].Symbol)

	// Removing an absent symbol is a no-op.
	require.NoError(t, s.Remove(ctx, "u1", "GONE"))
}

func TestStore_PutRejectsInvalidSymbol(t *testing.T) {
	s, _ := newTestStore(t)

	require.Error(t, s.Put(context.Background(), "u1", Item{Symbol: ""}))
	require.Error(t, s.Put(context.Background(), "u1", Item{Symbol: "no spaces"}))
}

func TestStore_ListSurvivesCorruptRow(t *testing.T) {
	s, mr := newTestStore(t)

	require.NoError(t, s.Put(context.Background(), "u1", Item{Symbol: "AAPL"}))
	mr.HSet("wl:user:u1", "JUNK", "{not json")

	items, err := s.List(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, "JUNK", items[1].Symbol)
}

func TestStore_SharedRoundTrip(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	code, err := EncodeShare([]string{"AAPL", "MSFT"})
	require.NoError(t, err)
	require.NoError(t, s.SaveShared(ctx, code, []string{"AAPL", "MSFT"}))

	syms, err := s.LoadShared(ctx, code)
	require.NoError(t, err)
	require.Equal(t, []string{"AAPL", "MSFT"}, syms)

	// Shared codes expire.
	require.Greater(t, mr.TTL("wl:share:"+code), time.Duration(0))
}

func TestStore_LoadSharedUnknownCode(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.LoadShared(context.Background(), "nope")
	require.Error(t, err)
}
