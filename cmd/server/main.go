package main

import (
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"quotedesk/internal/auth"
	"quotedesk/internal/config"
	"quotedesk/internal/httpx"
	"quotedesk/internal/journal"
	"quotedesk/internal/logging"
	"quotedesk/internal/marketdata"
	"quotedesk/internal/quote"
	"quotedesk/internal/watchlist"
)

func main() {
	cfgPath := os.Getenv("CONFIG_FILE")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		panic("config: " + err.Error())
	}

	log, err := logging.New(cfg.Log.Level)
	if err != nil {
		panic("logger: " + err.Error())
	}
	defer log.Sync()

	log.Info("starting quotedesk server", zap.String("port", cfg.Server.Port))

	httpClient := httpx.New(time.Duration(cfg.Server.RequestTimeoutSec) * time.Second)

	md, err := marketdata.New(cfg.MarketData.APIKey,
		marketdata.WithBaseURL(cfg.MarketData.BaseURL),
		marketdata.WithHTTPClient(httpClient),
		marketdata.WithLogger(log.Named("marketdata")),
	)
	if err != nil {
		log.Fatal("market data client", zap.Error(err))
	}

	resolver := quote.NewResolver(md, log.Named("resolver"),
		quote.WithAttemptTimeout(time.Duration(cfg.MarketData.AttemptTimeoutSec)*time.Second))
	batcher := quote.NewBatcher(resolver, log.Named("batcher"))

	// Single-symbol reads go through a short TTL cache; batch reads are
	// already paced and coalesced by the batcher.
	var source quote.Source = resolver
	if cfg.MarketData.QuoteCacheTTLSec > 0 {
		source = &quote.Cache{Src: resolver, TTL: time.Duration(cfg.MarketData.QuoteCacheTTLSec) * time.Second}
	}

	api := &api{
		log:     log.Named("api"),
		md:      md,
		source:  source,
		batcher: batcher,
	}

	if opt, err := redis.ParseURL(cfg.Redis.URL); err != nil {
		log.Warn("invalid redis url, watchlists disabled", zap.Error(err))
	} else {
		rdb := redis.NewClient(opt)
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			log.Warn("redis unreachable, watchlists disabled", zap.Error(err))
		} else {
			api.watchlists = watchlist.NewStore(rdb, "watchlist")
		}
		cancel()
		defer rdb.Close()
	}

	if jdb, err := journal.Open(cfg.Journal.Path); err != nil {
		log.Warn("journal store unavailable, trades disabled", zap.Error(err))
	} else {
		api.journal = jdb
		defer jdb.Close()
	}

	if cfg.Auth.Secret == "" {
		log.Warn("no auth secret configured, per-user routes disabled")
	} else {
		verifier, err := auth.NewVerifier(cfg.Auth.Secret, time.Duration(cfg.Auth.TokenTTLMin)*time.Minute)
		if err != nil {
			log.Fatal("auth verifier", zap.Error(err))
		}
		api.verifier = verifier
	}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	api.routes(r.PathPrefix("/api/v1").Subrouter())

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           withJSONHeaders(withGzip(recoverPanic(limitBody(r)))),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server", zap.Error(err))
		}
	}()

	// graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func withJSONHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		// Basic CORS for the browser dashboard; adjust as needed.
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withGzip compresses response when client supports gzip.
func withGzip(next http.Handler) http.Handler {
	var gzPool = sync.Pool{New: func() any {
		// Prefer best speed to reduce CPU usage since payloads are JSON
		w, _ := gzip.NewWriterLevel(io.Discard, gzip.BestSpeed)
		return w
	}}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			next.ServeHTTP(w, r)
			return
		}
		gz := gzPool.Get().(*gzip.Writer)
		gz.Reset(w)
		defer func() {
			_ = gz.Close()
			gz.Reset(io.Discard)
			gzPool.Put(gz)
		}()
		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Add("Vary", "Accept-Encoding")
		gw := gzipResponseWriter{ResponseWriter: w, Writer: gz}
		next.ServeHTTP(gw, r)
	})
}

type gzipResponseWriter struct {
	http.ResponseWriter
	Writer io.Writer
}

func (g gzipResponseWriter) Write(b []byte) (int, error) {
	return g.Writer.Write(b)
}

// limitBody caps request body size to avoid memory abuse.
func limitBody(next http.Handler) http.Handler {
	const maxBody = 1 << 20 // 1MB
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if (r.Method == http.MethodPost || r.Method == http.MethodPut) && r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxBody)
		}
		next.ServeHTTP(w, r)
	})
}

// recoverPanic protects handlers from panics.
func recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
