package quote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"quotedesk/internal/marketdata"
	"quotedesk/internal/metrics"
	"quotedesk/internal/session"
)

// Resolver runs the session-aware waterfall for a single symbol.
//
// Ordering: outside regular hours the previous close is consulted first
// because a snapshot call during a closed session tends to return stale
// or empty fields while still burning rate-limit budget. During regular
// hours the snapshot comes first, with the previous close kept as the
// last resort either way.
type Resolver struct {
	svc            marketdata.Service
	log            *zap.Logger
	attemptTimeout time.Duration
}

var _ Source = (*Resolver)(nil)

type ResolverOption func(*Resolver)

// WithAttemptTimeout bounds each waterfall leg. Defaults to 5s.
func WithAttemptTimeout(d time.Duration) ResolverOption {
	return func(r *Resolver) {
		if d > 0 {
			r.attemptTimeout = d
		}
	}
}

func NewResolver(svc marketdata.Service, log *zap.Logger, options ...ResolverOption) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Resolver{svc: svc, log: log, attemptTimeout: 5 * time.Second}
	for _, option := range options {
		option(r)
	}
	return r
}

// Resolve returns a Quote for the symbol as of the evaluation time.
// "No data" conditions never error: they degrade through the waterfall
// and bottom out at an Unavailable sentinel. The only errors are a bad
// symbol, a missing service, and upstream 401s.
func (r *Resolver) Resolve(ctx context.Context, symbol string, at time.Time) (Quote, error) {
	q, _, err := r.resolve(ctx, symbol, at)
	return q, err
}

// resolve additionally reports whether the upstream rate-limited any leg,
// so the batcher can stretch its pacing.
func (r *Resolver) resolve(ctx context.Context, symbol string, at time.Time) (Quote, bool, error) {
	start := time.Now()
	sym := NormalizeSymbol(symbol)
	if sym == "" {
		return Quote{}, false, errors.New("quote: empty symbol")
	}
	if r.svc == nil {
		return Quote{}, false, errors.New("quote: no market data service configured")
	}

	state := session.StateAt(at)

	// Reference enrichment runs alongside the waterfall and never fails
	// the quote; the channel is buffered so an early return leaks nothing.
	detailsCh := make(chan tickerDetails, 1)
	go r.lookupDetails(ctx, sym, detailsCh)

	var rateLimited bool

	// Closed or extended sessions: previous close first.
	if state != session.Open {
		q, slow, err := r.tryPreviousClose(ctx, sym)
		rateLimited = rateLimited || slow
		if err != nil {
			return Quote{}, rateLimited, err
		}
		if q != nil {
			r.finish(q, detailsCh, "degraded", start)
			return *q, rateLimited, nil
		}
	}

	// Live snapshot.
	q, slow, err := r.trySnapshot(ctx, sym)
	rateLimited = rateLimited || slow
	if err != nil {
		return Quote{}, rateLimited, err
	}
	if q != nil {
		// Outside regular hours even a snapshot hit is reported as
		// degraded, with change suppressed: the change baseline only
		// means anything against a live regular-session price.
		if state != session.Open {
			q.Degraded = true
			q.Change, q.ChangePct = 0, 0
		}
		outcome := "live"
		if q.Degraded {
			outcome = "degraded"
		}
		r.finish(q, detailsCh, outcome, start)
		return *q, rateLimited, nil
	}

	// Last resort: previous close again. During closed sessions this is a
	// retry of the first leg; the endpoint is flaky enough under load that
	// the second attempt still earns its round trip.
	q, slow, err = r.tryPreviousClose(ctx, sym)
	rateLimited = rateLimited || slow
	if err != nil {
		return Quote{}, rateLimited, err
	}
	if q != nil {
		r.finish(q, detailsCh, "degraded", start)
		return *q, rateLimited, nil
	}

	out := Unavailable(sym, at)
	r.finish(&out, detailsCh, "unavailable", start)
	r.log.Info("symbol unavailable from all sources", zap.String("symbol", sym), zap.Stringer("session", state))
	return out, rateLimited, nil
}

// tryPreviousClose returns (nil, slow, nil) when the waterfall should
// continue, and a quote when the leg produced one. Only 401 errors out.
func (r *Resolver) tryPreviousClose(ctx context.Context, sym string) (*Quote, bool, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, r.attemptTimeout)
	defer cancel()

	pc, err := r.svc.GetPreviousClose(attemptCtx, sym)
	if err != nil {
		if errors.Is(err, marketdata.ErrUnauthorized) {
			return nil, false, fmt.Errorf("quote: %s: %w", sym, err)
		}
		return nil, r.noteFailure(sym, "prev_close", err), nil
	}
	if pc == nil || pc.Close <= 0 {
		metrics.FallbackCounter.WithLabelValues("not_found").Inc()
		return nil, false, nil
	}
	return &Quote{
		Symbol:   sym,
		Price:    pc.Close,
		High:     pc.High,
		Low:      pc.Low,
		Volume:   pc.Volume,
		Degraded: true,
		AsOf:     asOfMillis(pc.TsMs),
	}, false, nil
}

// trySnapshot extracts a live price in priority order: last trade, then
// quote midpoint, then the latest minute bar close.
func (r *Resolver) trySnapshot(ctx context.Context, sym string) (*Quote, bool, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, r.attemptTimeout)
	defer cancel()

	snap, err := r.svc.GetSnapshot(attemptCtx, sym)
	if err != nil {
		if errors.Is(err, marketdata.ErrUnauthorized) {
			return nil, false, fmt.Errorf("quote: %s: %w", sym, err)
		}
		return nil, r.noteFailure(sym, "snapshot", err), nil
	}

	price, asOf, ok := pickPrice(snap)
	if !ok {
		metrics.FallbackCounter.WithLabelValues("not_found").Inc()
		return nil, false, nil
	}

	q := &Quote{Symbol: sym, Price: price, AsOf: asOf}
	if prev := snap.PrevDay.Close; prev > 0 {
		q.Change = price - prev
		q.ChangePct = q.Change / prev * 100
	}
	q.High = snap.Day.High
	q.Low = snap.Day.Low
	q.Volume = snap.Day.Volume
	if q.High <= 0 {
		q.High = price
	}
	if q.Low <= 0 {
		q.Low = price
	}
	return q, false, nil
}

// pickPrice chooses the authoritative live field from a snapshot.
func pickPrice(snap *marketdata.Snapshot) (price float64, asOf time.Time, ok bool) {
	switch {
	case snap == nil:
		return 0, time.Time{}, false
	case snap.LastTrade.Price > 0:
		return snap.LastTrade.Price, asOfNanos(snap.LastTrade.TsNs), true
	case snap.LastQuote.Ask > 0 && snap.LastQuote.Bid > 0:
		return (snap.LastQuote.Ask + snap.LastQuote.Bid) / 2, asOfNanos(snap.LastQuote.TsNs), true
	case snap.Min.Close > 0:
		return snap.Min.Close, asOfMillis(snap.Min.TsMs), true
	default:
		return 0, time.Time{}, false
	}
}

// noteFailure records why a leg fell through. Returns true for 429 so the
// caller can propagate the backpressure signal.
func (r *Resolver) noteFailure(sym, endpoint string, err error) bool {
	switch {
	case errors.Is(err, marketdata.ErrRateLimited):
		metrics.FallbackCounter.WithLabelValues("rate_limited").Inc()
		r.log.Warn("upstream rate limited", zap.String("symbol", sym), zap.String("endpoint", endpoint))
		return true
	case errors.Is(err, marketdata.ErrForbidden):
		metrics.FallbackCounter.WithLabelValues("forbidden").Inc()
		r.log.Debug("endpoint forbidden for this plan", zap.String("symbol", sym), zap.String("endpoint", endpoint))
	case errors.Is(err, marketdata.ErrNotFound):
		metrics.FallbackCounter.WithLabelValues("not_found").Inc()
	default:
		metrics.FallbackCounter.WithLabelValues("transport").Inc()
		r.log.Warn("unexpected upstream error",
			zap.String("symbol", sym), zap.String("endpoint", endpoint), zap.Error(err))
	}
	return false
}

type tickerDetails struct {
	name     string
	exchange string
}

// lookupDetails fetches reference data, substituting symbol-derived
// defaults on any failure. Always sends exactly once.
func (r *Resolver) lookupDetails(ctx context.Context, sym string, out chan<- tickerDetails) {
	attemptCtx, cancel := context.WithTimeout(ctx, r.attemptTimeout)
	defer cancel()

	d := tickerDetails{name: sym, exchange: "unknown"}
	td, err := r.svc.GetTickerDetails(attemptCtx, sym)
	if err == nil && td != nil {
		if td.Name != "" {
			d.name = td.Name
		}
		if td.Exchange != "" {
			d.exchange = td.Exchange
		}
	}
	out <- d
}

func (r *Resolver) finish(q *Quote, detailsCh <-chan tickerDetails, outcome string, start time.Time) {
	d := <-detailsCh
	q.Name = d.name
	q.Exchange = d.exchange
	metrics.ResolveCounter.WithLabelValues(outcome).Inc()
	metrics.ResolveLatency.Observe(time.Since(start).Seconds())
}

func asOfMillis(ms int64) time.Time {
	if ms <= 0 {
		return time.Now().UTC()
	}
	return time.UnixMilli(ms).UTC()
}

func asOfNanos(ns int64) time.Time {
	if ns <= 0 {
		return time.Now().UTC()
	}
	return time.Unix(0, ns).UTC()
}
