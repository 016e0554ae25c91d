package marketdata

// Wire shapes for the upstream REST API. Field tags follow the service's
// JSON exactly; anything optional is a pointer or zero-checked by callers.

// Agg is an OHLCV bar (daily or minute, depending on context).
type Agg struct {
	Open   float64 `json:"o"`
	High   float64 `json:"h"`
	Low    float64 `json:"l"`
	Close  float64 `json:"c"`
	Volume float64 `json:"v"`
	TsMs   int64   `json:"t"`
}

// Trade is the most recent trade print.
type Trade struct {
	Price float64 `json:"p"`
	Size  float64 `json:"s"`
	TsNs  int64   `json:"t"`
}

// BBO is the most recent top-of-book quote. Upstream uses capital P for
// ask and lowercase p for bid.
type BBO struct {
	Ask  float64 `json:"P"`
	Bid  float64 `json:"p"`
	TsNs int64   `json:"t"`
}

// Snapshot is the real-time state of one ticker.
type Snapshot struct {
	Ticker    string  `json:"ticker"`
	Day       Agg     `json:"day"`
	LastTrade Trade   `json:"lastTrade"`
	LastQuote BBO     `json:"lastQuote"`
	Min       Agg     `json:"min"`
	PrevDay   Agg     `json:"prevDay"`
	FMV       float64 `json:"fmv"`
	UpdatedNs int64   `json:"updated"`
}

type snapshotResponse struct {
	Status string    `json:"status"`
	Ticker *Snapshot `json:"ticker"`
}

// PreviousClose is the prior session's daily bar.
type PreviousClose struct {
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
	TsMs   int64
}

type aggsResponse struct {
	Status       string `json:"status"`
	ResultsCount int    `json:"resultsCount"`
	Results      []Agg  `json:"results"`
}

// TickerDetails is best-effort reference data about a symbol.
type TickerDetails struct {
	Ticker   string `json:"ticker"`
	Name     string `json:"name"`
	Market   string `json:"market"`
	Exchange string `json:"primary_exchange"`
	Type     string `json:"type"`
	Active   bool   `json:"active"`
}

type detailsResponse struct {
	Status  string         `json:"status"`
	Results *TickerDetails `json:"results"`
}

type searchResponse struct {
	Status  string          `json:"status"`
	Results []TickerDetails `json:"results"`
}

// MarketStatus is the service's view of the current trading session.
type MarketStatus struct {
	Market     string            `json:"market"` // open | closed | extended-hours
	EarlyHours bool              `json:"earlyHours"`
	AfterHours bool              `json:"afterHours"`
	Exchanges  map[string]string `json:"exchanges"`
}
