package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"quotedesk/internal/config"
	"quotedesk/internal/httpx"
	"quotedesk/internal/logging"
	"quotedesk/internal/marketdata"
	"quotedesk/internal/quote"
	"quotedesk/internal/session"
)

// One-shot fetch tool: resolves a list of symbols through the same
// batching pipeline the server uses and prints the result as JSON.
func main() {
	var symbolsCSV string
	var apiKey string
	var timeout int
	var configPath string
	var pretty bool

	flag.StringVar(&symbolsCSV, "symbols", getenv("SYMBOLS", "AAPL,MSFT,SPY"), "comma-separated ticker symbols")
	flag.StringVar(&apiKey, "api-key", getenv("MARKETDATA_API_KEY", ""), "market data API key")
	flag.IntVar(&timeout, "timeout", getenvInt("REQUEST_TIMEOUT_SEC", 60), "overall timeout seconds")
	flag.StringVar(&configPath, "config", getenv("CONFIG_FILE", ""), "path to config.json (optional)")
	flag.BoolVar(&pretty, "pretty", true, "indent JSON output")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if apiKey != "" {
		cfg.MarketData.APIKey = apiKey
	}

	symbols := quote.NormalizeSymbols(splitCSV(symbolsCSV))
	if len(symbols) == 0 {
		log.Fatal("no symbols provided")
	}

	zl, err := logging.New(cfg.Log.Level)
	if err != nil {
		log.Fatalf("logging: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	httpClient := httpx.New(time.Duration(cfg.Server.RequestTimeoutSec) * time.Second)
	md, err := marketdata.New(cfg.MarketData.APIKey,
		marketdata.WithBaseURL(cfg.MarketData.BaseURL),
		marketdata.WithHTTPClient(httpClient),
		marketdata.WithLogger(zl),
	)
	if err != nil {
		log.Fatalf("market data client: %v", err)
	}

	resolver := quote.NewResolver(md, zl,
		quote.WithAttemptTimeout(time.Duration(cfg.MarketData.AttemptTimeoutSec)*time.Second))
	batcher := quote.NewBatcher(resolver, zl)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeout)*time.Second)
	defer cancel()

	now := time.Now()
	quotes, err := batcher.ResolveMany(ctx, symbols, now)
	if err != nil {
		log.Fatalf("resolve: %v", err)
	}

	ordered := make([]quote.Quote, 0, len(quotes))
	for _, q := range quotes {
		ordered = append(ordered, q)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Symbol < ordered[j].Symbol })

	out := struct {
		AsOf    time.Time     `json:"as_of"`
		Session string        `json:"session"`
		Quotes  []quote.Quote `json:"quotes"`
	}{AsOf: now.UTC(), Session: session.StateAt(now).String(), Quotes: ordered}

	var b []byte
	if pretty {
		b, err = json.MarshalIndent(out, "", "  ")
	} else {
		b, err = json.Marshal(out)
	}
	if err != nil {
		log.Fatalf("encode: %v", err)
	}
	fmt.Println(string(b))

	zl.Info("fetch complete",
		zap.Int("requested", len(symbols)),
		zap.Int("resolved", len(quotes)))
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		var x int
		_, _ = fmt.Sscanf(v, "%d", &x)
		if x != 0 {
			return x
		}
	}
	return def
}
