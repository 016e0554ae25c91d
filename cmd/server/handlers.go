package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"quotedesk/internal/auth"
	"quotedesk/internal/journal"
	"quotedesk/internal/marketdata"
	"quotedesk/internal/quote"
	"quotedesk/internal/session"
	"quotedesk/internal/watchlist"
)

const maxBatchSymbols = 100

type api struct {
	log     *zap.Logger
	md      marketdata.Service
	source  quote.Source
	batcher *quote.Batcher

	// nil when the backing service is not configured; routes are only
	// mounted for what exists.
	watchlists *watchlist.Store
	journal    *journal.Store
	verifier   *auth.Verifier
}

func (a *api) routes(r *mux.Router) {
	r.HandleFunc("/quotes", a.handleQuotes).Methods(http.MethodGet)
	r.HandleFunc("/quotes/{symbol}", a.handleQuote).Methods(http.MethodGet)
	r.HandleFunc("/session", a.handleSession).Methods(http.MethodGet)
	r.HandleFunc("/search", a.handleSearch).Methods(http.MethodGet)

	if a.watchlists != nil {
		r.HandleFunc("/shared/{code}", a.handleSharedList).Methods(http.MethodGet)
	}

	if a.verifier == nil {
		return
	}
	authed := r.NewRoute().Subrouter()
	authed.Use(a.verifier.Middleware)
	if a.watchlists != nil {
		authed.HandleFunc("/watchlist", a.handleWatchlist).Methods(http.MethodGet)
		authed.HandleFunc("/watchlist/{symbol}", a.handleWatchlistPut).Methods(http.MethodPut)
		authed.HandleFunc("/watchlist/{symbol}", a.handleWatchlistDelete).Methods(http.MethodDelete)
		authed.HandleFunc("/watchlist/share", a.handleShare).Methods(http.MethodPost)
	}
	if a.journal != nil {
		authed.HandleFunc("/trades", a.handleTradeInsert).Methods(http.MethodPost)
		authed.HandleFunc("/trades", a.handleTradeList).Methods(http.MethodGet)
		authed.HandleFunc("/trades/stats", a.handleTradeStats).Methods(http.MethodGet)
		authed.HandleFunc("/trades/{id}", a.handleTradeDelete).Methods(http.MethodDelete)
	}
}

type quotesResponse struct {
	AsOf    time.Time              `json:"as_of"`
	Session string                 `json:"session"`
	Quotes  map[string]quote.Quote `json:"quotes"`
}

func (a *api) handleQuotes(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("symbols")
	if strings.TrimSpace(raw) == "" {
		http.Error(w, "missing symbols query param", http.StatusBadRequest)
		return
	}
	symbols := quote.NormalizeSymbols(strings.Split(raw, ","))
	if len(symbols) == 0 {
		http.Error(w, "no valid symbols", http.StatusBadRequest)
		return
	}
	if len(symbols) > maxBatchSymbols {
		http.Error(w, "too many symbols (max 100)", http.StatusBadRequest)
		return
	}

	now := time.Now()
	quotes, err := a.batcher.ResolveMany(r.Context(), symbols, now)
	if err != nil {
		a.writeResolveError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quotesResponse{
		AsOf:    now.UTC(),
		Session: session.StateAt(now).String(),
		Quotes:  quotes,
	})
}

func (a *api) handleQuote(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	now := time.Now()
	q, err := a.source.Resolve(r.Context(), symbol, now)
	if err != nil {
		a.writeResolveError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (a *api) handleSession(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	resp := map[string]any{
		"state": session.StateAt(now).String(),
		"as_of": now.UTC(),
	}
	// Upstream's own view is advisory; local policy answers even when
	// the status endpoint is down.
	if ms, err := a.md.GetMarketStatus(r.Context()); err == nil {
		resp["upstream"] = ms
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *api) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		http.Error(w, "missing q query param", http.StatusBadRequest)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := a.md.SearchTickers(r.Context(), q, limit)
	if err != nil {
		a.writeResolveError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (a *api) handleWatchlist(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserID(r.Context())
	items, err := a.watchlists.List(r.Context(), uid)
	if err != nil {
		a.serverError(w, "list watchlist", err)
		return
	}
	items = watchlist.FilterByTag(items, r.URL.Query().Get("tag"))

	resp := map[string]any{"items": items}
	// ?quotes=1 resolves the list and returns sorted display rows.
	if r.URL.Query().Get("quotes") == "1" && len(items) > 0 {
		symbols := make([]string, 0, len(items))
		for _, it := range items {
			symbols = append(symbols, it.Symbol)
		}
		now := time.Now()
		quotes, err := a.batcher.ResolveMany(r.Context(), symbols, now)
		if err != nil {
			a.writeResolveError(w, err)
			return
		}
		rows := make([]watchlist.Row, 0, len(items))
		for _, it := range items {
			rows = append(rows, watchlist.Row{Item: it, Quote: quotes[it.Symbol]})
		}
		field := watchlist.SortField(r.URL.Query().Get("sort"))
		watchlist.SortRows(rows, field, r.URL.Query().Get("order") == "desc")
		resp["rows"] = rows
		resp["session"] = session.StateAt(now).String()
	}
	writeJSON(w, http.StatusOK, resp)
}

type watchlistPutBody struct {
	Tags []string `json:"tags"`
}

func (a *api) handleWatchlistPut(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserID(r.Context())
	var body watchlistPutBody
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
	}
	item := watchlist.Item{Symbol: mux.Vars(r)["symbol"], Tags: body.Tags}
	if err := a.watchlists.Put(r.Context(), uid, item); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) handleWatchlistDelete(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserID(r.Context())
	if err := a.watchlists.Remove(r.Context(), uid, mux.Vars(r)["symbol"]); err != nil {
		a.serverError(w, "remove watchlist item", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) handleShare(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserID(r.Context())
	items, err := a.watchlists.List(r.Context(), uid)
	if err != nil {
		a.serverError(w, "list watchlist", err)
		return
	}
	symbols := make([]string, 0, len(items))
	for _, it := range items {
		symbols = append(symbols, it.Symbol)
	}
	code, err := watchlist.EncodeShare(symbols)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := a.watchlists.SaveShared(r.Context(), code, symbols); err != nil {
		a.serverError(w, "save shared list", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"code": code})
}

func (a *api) handleSharedList(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	symbols, err := watchlist.DecodeShare(code)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	// Prefer the stored list (it survives even if the owner's watchlist
	// changed), but a valid code is self-describing when redis lost it.
	if stored, err := a.watchlists.LoadShared(r.Context(), code); err == nil && len(stored) > 0 {
		symbols = stored
	}
	now := time.Now()
	quotes, err := a.batcher.ResolveMany(r.Context(), symbols, now)
	if err != nil {
		a.writeResolveError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quotesResponse{
		AsOf:    now.UTC(),
		Session: session.StateAt(now).String(),
		Quotes:  quotes,
	})
}

func (a *api) handleTradeInsert(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserID(r.Context())
	var t journal.Trade
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	t.UserID = uid
	if t.ExecutedAt.IsZero() {
		t.ExecutedAt = time.Now().UTC()
	}
	id, err := a.journal.Insert(r.Context(), t)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (a *api) handleTradeList(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserID(r.Context())
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	trades, err := a.journal.List(r.Context(), uid, r.URL.Query().Get("symbol"), limit)
	if err != nil {
		a.serverError(w, "list trades", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"trades": trades})
}

func (a *api) handleTradeStats(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserID(r.Context())
	stats, err := a.journal.Stats(r.Context(), uid)
	if err != nil {
		a.serverError(w, "trade stats", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stats": stats})
}

func (a *api) handleTradeDelete(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserID(r.Context())
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "invalid trade id", http.StatusBadRequest)
		return
	}
	deleted, err := a.journal.Delete(r.Context(), uid, id)
	if err != nil {
		a.serverError(w, "delete trade", err)
		return
	}
	if !deleted {
		http.Error(w, "trade not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeResolveError maps resolution errors onto HTTP statuses: upstream
// auth and permission problems are a gateway concern, not a client one.
func (a *api) writeResolveError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, marketdata.ErrUnauthorized), errors.Is(err, marketdata.ErrForbidden):
		a.log.Error("upstream rejected credentials", zap.Error(err))
		http.Error(w, "upstream authorization failed", http.StatusBadGateway)
	case errors.Is(err, marketdata.ErrRateLimited):
		http.Error(w, "upstream rate limited", http.StatusServiceUnavailable)
	default:
		a.serverError(w, "resolve", err)
	}
}

func (a *api) serverError(w http.ResponseWriter, what string, err error) {
	a.log.Error(what, zap.Error(err))
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
