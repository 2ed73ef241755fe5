package models

// Prices and quantities cross the HTTP boundary as decimal strings and are
// converted to scaled integers at the instrument's precision inside the
// gateway.

type RegisterInstrumentRequest struct {
	Symbol            string `json:"symbol"`
	Venue             string `json:"venue"`
	PricePrecision    uint8  `json:"price_precision"`
	QuantityPrecision uint8  `json:"quantity_precision"`
}

type RegisterInstrumentResponse struct {
	Symbol            string `json:"symbol"`
	Venue             string `json:"venue"`
	PricePrecision    uint8  `json:"price_precision"`
	QuantityPrecision uint8  `json:"quantity_precision"`
}

type SubmitOrderRequest struct {
	Symbol   string `json:"symbol"`
	Venue    string `json:"venue"`
	OrderID  string `json:"order_id,omitempty"` // assigned by the gateway when empty
	Side     string `json:"side"`               // BUY or SELL
	Type     string `json:"type"`               // LIMIT or MARKET
	Price    string `json:"price,omitempty"`    // decimal string, LIMIT only
	Quantity string `json:"quantity"`           // decimal string
}

type SubmitOrderResponse struct {
	OrderID           string      `json:"order_id"`
	Status            string      `json:"status"`
	Message           string      `json:"message,omitempty"`
	FilledQuantity    string      `json:"filled_quantity"`
	RemainingQuantity string      `json:"remaining_quantity"`
	Trades            []TradeInfo `json:"trades,omitempty"`
}

type TradeInfo struct {
	TradeID        string `json:"trade_id"`
	Price          string `json:"price"`
	Quantity       string `json:"quantity"`
	RestingOrderID string `json:"resting_order_id"`
	Sequence       uint64 `json:"sequence"`
	Timestamp      int64  `json:"timestamp"` // unix milliseconds
}

type CancelOrderResponse struct {
	OrderID       string `json:"order_id"`
	Status        string `json:"status"`
	FreedQuantity string `json:"freed_quantity"`
}

type ModifyOrderRequest struct {
	Symbol      string `json:"symbol"`
	Venue       string `json:"venue"`
	NewPrice    string `json:"new_price,omitempty"`
	NewQuantity string `json:"new_quantity,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type PriceLevelInfo struct {
	Price    string `json:"price"`
	Quantity string `json:"quantity"`
}

type OrderBookResponse struct {
	Symbol    string           `json:"symbol"`
	Venue     string           `json:"venue"`
	Timestamp int64            `json:"timestamp"` // unix milliseconds
	Bids      []PriceLevelInfo `json:"bids"`      // best first (highest)
	Asks      []PriceLevelInfo `json:"asks"`      // best first (lowest)
}

type QuoteResponse struct {
	Symbol    string          `json:"symbol"`
	Venue     string          `json:"venue"`
	Timestamp int64           `json:"timestamp"`
	BestBid   *PriceLevelInfo `json:"best_bid"`
	BestAsk   *PriceLevelInfo `json:"best_ask"`
}

type HealthResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	RestingOrders int64  `json:"resting_orders"`
}

type MetricsResponse struct {
	OrdersReceived         int64   `json:"orders_received"`
	OrdersMatched          int64   `json:"orders_matched"`
	OrdersCancelled        int64   `json:"orders_cancelled"`
	OrdersModified         int64   `json:"orders_modified"`
	RestingOrders          int64   `json:"resting_orders"`
	TradesExecuted         int64   `json:"trades_executed"`
	LatencyP50Ms           float64 `json:"latency_p50_ms"`
	LatencyP99Ms           float64 `json:"latency_p99_ms"`
	LatencyP999Ms          float64 `json:"latency_p999_ms"`
	ThroughputOrdersPerSec float64 `json:"throughput_orders_per_sec"`
}
