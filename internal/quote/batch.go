package quote

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"quotedesk/internal/metrics"
	"quotedesk/internal/session"
)

// Pacing defaults. Closed-session traffic leans on the previous-close
// endpoint, which has the tightest per-key throughput limits, so those
// batches are smaller and further apart.
const (
	openBatchSize   = 3
	closedBatchSize = 2
	openDelay       = 1500 * time.Millisecond
	closedDelay     = 2000 * time.Millisecond
)

// Plan is the partition for one orchestration call: consecutive symbol
// groups in input order plus the pause between them. Built fresh per
// call, discarded after.
type Plan struct {
	Groups [][]string
	Delay  time.Duration
}

// PlanFor sizes groups by session state.
func PlanFor(symbols []string, state session.State) Plan {
	size := closedBatchSize
	delay := closedDelay
	if state == session.Open {
		size = openBatchSize
		delay = openDelay
	}
	return Plan{Groups: chunk(symbols, size), Delay: delay}
}

func chunk(in []string, size int) [][]string {
	if len(in) == 0 {
		return nil
	}
	if size <= 0 {
		return [][]string{in}
	}
	out := make([][]string, 0, (len(in)+size-1)/size)
	for i := 0; i < len(in); i += size {
		j := i + size
		if j > len(in) {
			j = len(in)
		}
		out = append(out, in[i:j])
	}
	return out
}

// Batcher fans symbol lists out through a Resolver with cooperative
// pacing between groups. The pacing is a best-effort throttle, not a
// token bucket: it spaces groups out but guarantees nothing about
// aggregate request rate. Overlapping calls for the same symbol set
// coalesce into one flight; each caller still gets its own result map.
type Batcher struct {
	res   *Resolver
	log   *zap.Logger
	sleep func(ctx context.Context, d time.Duration) error

	sf singleflight.Group
}

type BatcherOption func(*Batcher)

// WithSleeper replaces the inter-group wait, for deterministic tests.
func WithSleeper(fn func(ctx context.Context, d time.Duration) error) BatcherOption {
	return func(b *Batcher) {
		if fn != nil {
			b.sleep = fn
		}
	}
}

func NewBatcher(res *Resolver, log *zap.Logger, options ...BatcherOption) *Batcher {
	if log == nil {
		log = zap.NewNop()
	}
	b := &Batcher{res: res, log: log, sleep: waitFor}
	for _, option := range options {
		option(b)
	}
	return b
}

// ResolveMany resolves every symbol, never omitting an entry: a symbol
// whose resolution fails outright (including 401) gets an Unavailable
// placeholder while its siblings proceed. The returned map's key set is
// exactly the normalized, deduplicated input.
func (b *Batcher) ResolveMany(ctx context.Context, symbols []string, at time.Time) (map[string]Quote, error) {
	syms := NormalizeSymbols(symbols)
	if len(syms) == 0 {
		return map[string]Quote{}, nil
	}

	key := strings.Join(syms, ",")
	v, err, shared := b.sf.Do(key, func() (any, error) {
		return b.resolveAll(ctx, syms, at)
	})
	if shared {
		metrics.BatchCoalesced.Inc()
	}
	if err != nil {
		return nil, err
	}

	// Coalesced callers share the flight, not the map. Hand each its own
	// copy so downstream mutation stays per-call.
	src := v.(map[string]Quote)
	out := make(map[string]Quote, len(src))
	for k, q := range src {
		out[k] = q
	}
	return out, nil
}

func (b *Batcher) resolveAll(ctx context.Context, syms []string, at time.Time) (map[string]Quote, error) {
	metrics.BatchCounter.Inc()
	state := session.StateAt(at)
	plan := PlanFor(syms, state)
	delay := plan.Delay

	out := make(map[string]Quote, len(syms))
	var mu sync.Mutex

	for i, group := range plan.Groups {
		if i > 0 {
			if err := b.sleep(ctx, delay); err != nil {
				return nil, err
			}
		}

		var wg sync.WaitGroup
		var slow bool
		for _, sym := range group {
			wg.Add(1)
			go func(sym string) {
				defer wg.Done()
				q, rateLimited, err := b.res.resolve(ctx, sym, at)
				if err != nil {
					// Isolate-and-continue: a fatal error costs only
					// this symbol's entry.
					b.log.Warn("symbol resolution failed", zap.String("symbol", sym), zap.Error(err))
					metrics.ResolveCounter.WithLabelValues("error").Inc()
					q = Unavailable(sym, at)
				}
				mu.Lock()
				out[sym] = q
				slow = slow || rateLimited
				mu.Unlock()
			}(sym)
		}
		wg.Wait()

		if slow && i < len(plan.Groups)-1 {
			delay *= 2
			metrics.BatchSlowdowns.Inc()
			b.log.Info("stretching batch pacing after rate limit",
				zap.Duration("delay", delay), zap.Stringer("session", state))
		}
	}
	return out, nil
}

// waitFor pauses cooperatively, honoring cancellation.
func waitFor(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
