package quote_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"quotedesk/internal/marketdata"
	"quotedesk/internal/quote"
	"quotedesk/internal/session"
)

var (
	// Saturday noon and Tuesday mid-morning, exchange-local.
	weekendNoon = time.Date(2025, time.January, 4, 12, 0, 0, 0, session.Location())
	tuesdayOpen = time.Date(2025, time.January, 7, 10, 0, 0, 0, session.Location())
)

func noDetails(svc *marketdata.MockService, symbol string) {
	svc.EXPECT().
		GetTickerDetails(gomock.Any(), symbol).
		Return(nil, marketdata.ErrNotFound)
}

func TestResolve_ClosedSessionPrefersPreviousClose(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := marketdata.NewMockService(ctrl)

	svc.EXPECT().
		GetPreviousClose(gomock.Any(), "XYZ").
		Return(&marketdata.PreviousClose{Close: 101.50, High: 102, Low: 99, Volume: 50000, TsMs: weekendNoon.UnixMilli()}, nil)
	noDetails(svc, "XYZ")

	res := quote.NewResolver(svc, nil)
	q, err := res.Resolve(context.Background(), "XYZ", weekendNoon)
	require.NoError(t, err)

	require.True(t, q.Degraded)
	require.False(t, q.Unavailable)
	require.Equal(t, 101.50, q.Price)
	require.Zero(t, q.Change)
	require.Zero(t, q.ChangePct)
	require.Equal(t, "XYZ", q.Name)
	require.Equal(t, "unknown", q.Exchange)
}

func TestResolve_OpenSessionUsesLastTrade(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := marketdata.NewMockService(ctrl)

	svc.EXPECT().
		GetSnapshot(gomock.Any(), "AAPL").
		Return(&marketdata.Snapshot{
			Ticker:    "AAPL",
			LastTrade: marketdata.Trade{Price: 190.00, TsNs: tuesdayOpen.UnixNano()},
			Day:       marketdata.Agg{High: 191, Low: 189, Volume: 1_000_000},
			PrevDay:   marketdata.Agg{Close: 188.00},
		}, nil)
	svc.EXPECT().
		GetTickerDetails(gomock.Any(), "AAPL").
		Return(&marketdata.TickerDetails{Name: "Apple Inc.", Exchange: "XNAS"}, nil)

	res := quote.NewResolver(svc, nil)
	q, err := res.Resolve(context.Background(), "aapl", tuesdayOpen)
	require.NoError(t, err)

	require.Equal(t, "AAPL", q.Symbol)
	require.False(t, q.Degraded)
	require.Equal(t, 190.00, q.Price)
	require.InDelta(t, 2.00, q.Change, 1e-9)
	require.InDelta(t, 1.0638, q.ChangePct, 1e-3)
	require.Equal(t, 191.0, q.High)
	require.Equal(t, "Apple Inc.", q.Name)
	require.Equal(t, "XNAS", q.Exchange)
}

func TestResolve_MidpointWhenNoLastTrade(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := marketdata.NewMockService(ctrl)

	svc.EXPECT().
		GetSnapshot(gomock.Any(), "THIN").
		Return(&marketdata.Snapshot{
			LastQuote: marketdata.BBO{Ask: 10.10, Bid: 10.00, TsNs: tuesdayOpen.UnixNano()},
			PrevDay:   marketdata.Agg{Close: 10.00},
		}, nil)
	noDetails(svc, "THIN")

	res := quote.NewResolver(svc, nil)
	q, err := res.Resolve(context.Background(), "THIN", tuesdayOpen)
	require.NoError(t, err)

	require.InDelta(t, 10.05, q.Price, 1e-9)
	// High and low default to the price when the day bar is empty.
	require.InDelta(t, 10.05, q.High, 1e-9)
	require.InDelta(t, 10.05, q.Low, 1e-9)
}

func TestResolve_MinuteBarLastInPriority(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := marketdata.NewMockService(ctrl)

	svc.EXPECT().
		GetSnapshot(gomock.Any(), "BAR").
		Return(&marketdata.Snapshot{
			Min: marketdata.Agg{Close: 55.5, TsMs: tuesdayOpen.UnixMilli()},
		}, nil)
	noDetails(svc, "BAR")

	res := quote.NewResolver(svc, nil)
	q, err := res.Resolve(context.Background(), "BAR", tuesdayOpen)
	require.NoError(t, err)

	require.Equal(t, 55.5, q.Price)
	require.Zero(t, q.Change)
}

func TestResolve_ZeroPrevCloseGuardsDivision(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := marketdata.NewMockService(ctrl)

	svc.EXPECT().
		GetSnapshot(gomock.Any(), "IPO").
		Return(&marketdata.Snapshot{
			LastTrade: marketdata.Trade{Price: 50.00, TsNs: tuesdayOpen.UnixNano()},
		}, nil)
	noDetails(svc, "IPO")

	res := quote.NewResolver(svc, nil)
	q, err := res.Resolve(context.Background(), "IPO", tuesdayOpen)
	require.NoError(t, err)

	require.Equal(t, 50.00, q.Price)
	require.Zero(t, q.Change)
	require.Zero(t, q.ChangePct)
}

func TestResolve_UnauthorizedIsFatal(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := marketdata.NewMockService(ctrl)

	svc.EXPECT().
		GetSnapshot(gomock.Any(), "AAPL").
		Return(nil, marketdata.ErrUnauthorized)

	// Reference enrichment runs concurrently and is exempt from the
	// stop-everything rule; wait for it so the mock sees no late calls.
	detailsDone := make(chan struct{})
	svc.EXPECT().
		GetTickerDetails(gomock.Any(), "AAPL").
		DoAndReturn(func(context.Context, string) (*marketdata.TickerDetails, error) {
			defer close(detailsDone)
			return nil, marketdata.ErrNotFound
		})

	res := quote.NewResolver(svc, nil)
	_, err := res.Resolve(context.Background(), "AAPL", tuesdayOpen)
	require.ErrorIs(t, err, marketdata.ErrUnauthorized)
	<-detailsDone
}

func TestResolve_SnapshotOutsideRegularHoursIsDegraded(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := marketdata.NewMockService(ctrl)

	// Weekend with no previous close on record; the snapshot leg still
	// answers, but the result must not pretend to be live.
	svc.EXPECT().
		GetPreviousClose(gomock.Any(), "AAPL").
		Return(nil, marketdata.ErrNotFound)
	svc.EXPECT().
		GetSnapshot(gomock.Any(), "AAPL").
		Return(&marketdata.Snapshot{
			LastTrade: marketdata.Trade{Price: 190.00, TsNs: weekendNoon.UnixNano()},
			PrevDay:   marketdata.Agg{Close: 188.00},
		}, nil)
	noDetails(svc, "AAPL")

	res := quote.NewResolver(svc, nil)
	q, err := res.Resolve(context.Background(), "AAPL", weekendNoon)
	require.NoError(t, err)

	require.True(t, q.Degraded)
	require.Equal(t, 190.00, q.Price)
	require.Zero(t, q.Change)
	require.Zero(t, q.ChangePct)
}

func TestResolve_ForbiddenFallsThrough(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := marketdata.NewMockService(ctrl)

	svc.EXPECT().
		GetSnapshot(gomock.Any(), "ETF").
		Return(nil, marketdata.ErrForbidden)
	svc.EXPECT().
		GetPreviousClose(gomock.Any(), "ETF").
		Return(&marketdata.PreviousClose{Close: 75.00}, nil)
	noDetails(svc, "ETF")

	res := quote.NewResolver(svc, nil)
	q, err := res.Resolve(context.Background(), "ETF", tuesdayOpen)
	require.NoError(t, err)

	require.True(t, q.Degraded)
	require.Equal(t, 75.00, q.Price)
}

func TestResolve_ExhaustedWaterfallYieldsSentinel(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := marketdata.NewMockService(ctrl)

	svc.EXPECT().
		GetSnapshot(gomock.Any(), "GHOST").
		Return(nil, marketdata.ErrNotFound)
	svc.EXPECT().
		GetPreviousClose(gomock.Any(), "GHOST").
		Return(nil, marketdata.ErrNotFound)
	noDetails(svc, "GHOST")

	res := quote.NewResolver(svc, nil)
	q, err := res.Resolve(context.Background(), "GHOST", tuesdayOpen)
	require.NoError(t, err)

	require.True(t, q.Unavailable)
	require.Zero(t, q.Price)
	require.Zero(t, q.Change)
	require.True(t, q.AsOf.Equal(tuesdayOpen))
}

func TestResolve_ClosedSessionRetriesPreviousClose(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := marketdata.NewMockService(ctrl)

	// First leg fails, snapshot has nothing, the last-resort retry lands.
	first := svc.EXPECT().
		GetPreviousClose(gomock.Any(), "SPY").
		Return(nil, &marketdata.StatusError{Endpoint: "prev_close", Code: 500})
	svc.EXPECT().
		GetSnapshot(gomock.Any(), "SPY").
		Return(nil, marketdata.ErrNotFound)
	svc.EXPECT().
		GetPreviousClose(gomock.Any(), "SPY").
		After(first).
		Return(&marketdata.PreviousClose{Close: 470.25}, nil)
	noDetails(svc, "SPY")

	res := quote.NewResolver(svc, nil)
	q, err := res.Resolve(context.Background(), "SPY", weekendNoon)
	require.NoError(t, err)

	require.True(t, q.Degraded)
	require.Equal(t, 470.25, q.Price)
}

func TestResolve_EmptySymbol(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := marketdata.NewMockService(ctrl)

	res := quote.NewResolver(svc, nil)
	_, err := res.Resolve(context.Background(), "   ", tuesdayOpen)
	require.Error(t, err)
}
