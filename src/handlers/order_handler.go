package handlers

import (
	"errors"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"book-engine/src/engine"
	"book-engine/src/fixed"
	"book-engine/src/instrument"
	"book-engine/src/models"
)

// OrderHandler is the HTTP gateway in front of the exchange. It owns request
// validation, decimal conversion at each instrument's precision, and the
// rolling latency metrics; the books themselves never see HTTP.
type OrderHandler struct {
	Exchange        *engine.Exchange
	StartTime       time.Time
	OrdersReceived  int64
	OrdersMatched   int64
	OrdersCancelled int64
	OrdersModified  int64
	TradesExecuted  int64

	latencies    []time.Duration
	latenciesMu  sync.RWMutex
	maxLatencies int
}

func NewOrderHandler(exchange *engine.Exchange) *OrderHandler {
	maxLatencies := 10000
	if envMax := os.Getenv("METRICS_MAX_LATENCIES"); envMax != "" {
		if parsed, err := strconv.Atoi(envMax); err == nil && parsed > 0 {
			maxLatencies = parsed
		}
	}

	return &OrderHandler{
		Exchange:     exchange,
		StartTime:    time.Now(),
		latencies:    make([]time.Duration, 0, maxLatencies),
		maxLatencies: maxLatencies,
	}
}

func (h *OrderHandler) RegisterInstrument(c *fiber.Ctx) error {
	var req models.RegisterInstrumentRequest

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: "Invalid request: malformed JSON",
		})
	}

	inst := instrument.Instrument{
		Symbol:            req.Symbol,
		Venue:             req.Venue,
		PricePrecision:    req.PricePrecision,
		QuantityPrecision: req.QuantityPrecision,
	}
	if _, err := h.Exchange.Registry().Intern(inst); err != nil {
		log.Warn().
			Str("symbol", req.Symbol).
			Str("venue", req.Venue).
			Err(err).
			Msg("Instrument registration rejected")
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{Error: err.Error()})
	}

	log.Info().
		Str("symbol", req.Symbol).
		Str("venue", req.Venue).
		Uint8("price_precision", req.PricePrecision).
		Uint8("quantity_precision", req.QuantityPrecision).
		Msg("Instrument registered")

	return c.Status(fiber.StatusCreated).JSON(models.RegisterInstrumentResponse{
		Symbol:            inst.Symbol,
		Venue:             inst.Venue,
		PricePrecision:    inst.PricePrecision,
		QuantityPrecision: inst.QuantityPrecision,
	})
}

func (h *OrderHandler) SubmitOrder(c *fiber.Ctx) error {
	var req models.SubmitOrderRequest

	if err := c.BodyParser(&req); err != nil {
		log.Warn().
			Err(err).
			Str("ip", c.IP()).
			Str("path", c.Path()).
			Msg("Invalid request: malformed JSON")
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: "Invalid request: malformed JSON",
		})
	}

	if err := validateSubmitOrderRequest(&req); err != nil {
		log.Warn().
			Err(err).
			Str("symbol", req.Symbol).
			Str("venue", req.Venue).
			Str("side", req.Side).
			Str("type", req.Type).
			Str("ip", c.IP()).
			Msg("Invalid order request")
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{Error: err.Error()})
	}

	id, exists := h.Exchange.Registry().Lookup(req.Symbol, req.Venue)
	if !exists {
		return c.Status(fiber.StatusNotFound).JSON(models.ErrorResponse{
			Error: "Unknown instrument: " + req.Symbol + "@" + req.Venue,
		})
	}
	inst, _ := h.Exchange.Registry().Get(id)

	orderID := req.OrderID
	if orderID == "" {
		orderID = uuid.New().String()
	}

	quantity, err := fixed.QuantityFromString(req.Quantity, inst.QuantityPrecision)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: "Invalid quantity: " + err.Error(),
		})
	}

	side := engine.SideAsk
	if req.Side == "BUY" {
		side = engine.SideBid
	}

	atomic.AddInt64(&h.OrdersReceived, 1)
	startTime := time.Now()

	var result *engine.OrderResult
	if req.Type == "LIMIT" {
		price, perr := fixed.PriceFromString(req.Price, inst.PricePrecision)
		if perr != nil {
			return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
				Error: "Invalid price: " + perr.Error(),
			})
		}
		result, err = h.Exchange.SubmitLimit(id, engine.LimitOrder{
			ID:       orderID,
			Side:     side,
			Price:    price,
			Quantity: quantity,
		})
	} else {
		result, err = h.Exchange.SubmitMarket(id, engine.MarketOrder{
			ID:       orderID,
			Side:     side,
			Quantity: quantity,
		})
	}

	h.recordLatency(time.Since(startTime))

	if err != nil {
		status := statusForError(err)
		log.Warn().
			Err(err).
			Str("order_id", orderID).
			Str("symbol", req.Symbol).
			Str("venue", req.Venue).
			Msg("Order rejected")
		return c.Status(status).JSON(models.ErrorResponse{Error: err.Error()})
	}

	if !result.FilledQuantity.IsZero() {
		atomic.AddInt64(&h.OrdersMatched, 1)
	}
	atomic.AddInt64(&h.TradesExecuted, int64(len(result.Trades)))

	log.Info().
		Str("order_id", orderID).
		Str("symbol", req.Symbol).
		Str("venue", req.Venue).
		Str("side", req.Side).
		Str("type", req.Type).
		Str("status", string(result.Status)).
		Str("filled_quantity", result.FilledQuantity.String()).
		Str("remaining_quantity", result.RemainingQuantity.String()).
		Int("trades_count", len(result.Trades)).
		Msg("Order processed")

	response := models.SubmitOrderResponse{
		OrderID:           orderID,
		Status:            string(result.Status),
		FilledQuantity:    result.FilledQuantity.String(),
		RemainingQuantity: result.RemainingQuantity.String(),
		Trades: lo.Map(result.Trades, func(t engine.Trade, _ int) models.TradeInfo {
			return models.TradeInfo{
				TradeID:        t.TradeID,
				Price:          t.Price.String(),
				Quantity:       t.Quantity.String(),
				RestingOrderID: t.RestingID,
				Sequence:       t.Sequence,
				Timestamp:      t.Timestamp,
			}
		}),
	}

	switch result.Status {
	case engine.StatusResting:
		response.Message = "Order resting on book"
		return c.Status(fiber.StatusCreated).JSON(response)
	case engine.StatusPartialFill:
		return c.Status(fiber.StatusAccepted).JSON(response)
	case engine.StatusUnfilled:
		response.Message = "No opposite liquidity; market order discarded"
		return c.Status(fiber.StatusOK).JSON(response)
	default:
		return c.Status(fiber.StatusOK).JSON(response)
	}
}

func (h *OrderHandler) CancelOrder(c *fiber.Ctx) error {
	orderID := c.Params("id")

	freed, err := h.Exchange.Cancel(orderID)
	if err != nil {
		log.Warn().
			Str("order_id", orderID).
			Str("ip", c.IP()).
			Msg("Cancel order: order not found")
		return c.Status(fiber.StatusNotFound).JSON(models.ErrorResponse{Error: err.Error()})
	}

	atomic.AddInt64(&h.OrdersCancelled, 1)

	log.Info().
		Str("order_id", orderID).
		Str("freed_quantity", freed.String()).
		Str("ip", c.IP()).
		Msg("Order cancelled")

	return c.Status(fiber.StatusOK).JSON(models.CancelOrderResponse{
		OrderID:       orderID,
		Status:        string(engine.StatusCancelled),
		FreedQuantity: freed.String(),
	})
}

func (h *OrderHandler) ModifyOrder(c *fiber.Ctx) error {
	orderID := c.Params("id")

	var req models.ModifyOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: "Invalid request: malformed JSON",
		})
	}

	if req.Symbol == "" || req.Venue == "" {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: "Invalid modify: symbol and venue are required",
		})
	}

	id, exists := h.Exchange.Registry().Lookup(req.Symbol, req.Venue)
	if !exists {
		return c.Status(fiber.StatusNotFound).JSON(models.ErrorResponse{
			Error: "Unknown instrument: " + req.Symbol + "@" + req.Venue,
		})
	}
	inst, _ := h.Exchange.Registry().Get(id)

	var newPrice *fixed.Price
	if req.NewPrice != "" {
		price, err := fixed.PriceFromString(req.NewPrice, inst.PricePrecision)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
				Error: "Invalid price: " + err.Error(),
			})
		}
		newPrice = &price
	}

	var newQty *fixed.Quantity
	if req.NewQuantity != "" {
		qty, err := fixed.QuantityFromString(req.NewQuantity, inst.QuantityPrecision)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
				Error: "Invalid quantity: " + err.Error(),
			})
		}
		newQty = &qty
	}

	result, err := h.Exchange.Modify(id, orderID, newPrice, newQty)
	if err != nil {
		log.Warn().
			Err(err).
			Str("order_id", orderID).
			Str("symbol", req.Symbol).
			Str("venue", req.Venue).
			Msg("Modify rejected")
		return c.Status(statusForError(err)).JSON(models.ErrorResponse{Error: err.Error()})
	}

	atomic.AddInt64(&h.OrdersModified, 1)
	atomic.AddInt64(&h.TradesExecuted, int64(len(result.Trades)))

	log.Info().
		Str("order_id", orderID).
		Str("status", string(result.Status)).
		Str("remaining_quantity", result.RemainingQuantity.String()).
		Int("trades_count", len(result.Trades)).
		Msg("Order modified")

	return c.Status(fiber.StatusOK).JSON(models.SubmitOrderResponse{
		OrderID:           orderID,
		Status:            string(result.Status),
		FilledQuantity:    result.FilledQuantity.String(),
		RemainingQuantity: result.RemainingQuantity.String(),
		Trades: lo.Map(result.Trades, func(t engine.Trade, _ int) models.TradeInfo {
			return models.TradeInfo{
				TradeID:        t.TradeID,
				Price:          t.Price.String(),
				Quantity:       t.Quantity.String(),
				RestingOrderID: t.RestingID,
				Sequence:       t.Sequence,
				Timestamp:      t.Timestamp,
			}
		}),
	})
}

func (h *OrderHandler) GetOrderBook(c *fiber.Ctx) error {
	id, inst, httpStatus, errMsg := h.resolveInstrument(c)
	if errMsg != "" {
		return c.Status(httpStatus).JSON(models.ErrorResponse{Error: errMsg})
	}

	defaultDepth := 10
	if envDepth := os.Getenv("ORDERBOOK_DEFAULT_DEPTH"); envDepth != "" {
		if parsed, err := strconv.Atoi(envDepth); err == nil && parsed > 0 {
			defaultDepth = parsed
		}
	}

	maxDepth := 1000
	if envMaxDepth := os.Getenv("ORDERBOOK_MAX_DEPTH"); envMaxDepth != "" {
		if parsed, err := strconv.Atoi(envMaxDepth); err == nil && parsed > 0 {
			maxDepth = parsed
		}
	}

	depth, err := strconv.Atoi(c.Query("depth", strconv.Itoa(defaultDepth)))
	if err != nil || depth <= 0 {
		depth = defaultDepth
	}
	if depth > maxDepth {
		depth = maxDepth
	}

	bids, asks, err := h.Exchange.Depth(id, depth)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{Error: err.Error()})
	}

	return c.Status(fiber.StatusOK).JSON(models.OrderBookResponse{
		Symbol:    inst.Symbol,
		Venue:     inst.Venue,
		Timestamp: time.Now().UnixMilli(),
		Bids:      lo.Map(bids, levelToInfo),
		Asks:      lo.Map(asks, levelToInfo),
	})
}

func (h *OrderHandler) GetQuote(c *fiber.Ctx) error {
	id, inst, httpStatus, errMsg := h.resolveInstrument(c)
	if errMsg != "" {
		return c.Status(httpStatus).JSON(models.ErrorResponse{Error: errMsg})
	}

	bid, ask, hasBid, hasAsk, err := h.Exchange.Quote(id)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{Error: err.Error()})
	}

	response := models.QuoteResponse{
		Symbol:    inst.Symbol,
		Venue:     inst.Venue,
		Timestamp: time.Now().UnixMilli(),
	}
	if hasBid {
		info := levelToInfo(bid, 0)
		response.BestBid = &info
	}
	if hasAsk {
		info := levelToInfo(ask, 0)
		response.BestAsk = &info
	}
	return c.Status(fiber.StatusOK).JSON(response)
}

func (h *OrderHandler) DumpOrderBook(c *fiber.Ctx) error {
	id, _, httpStatus, errMsg := h.resolveInstrument(c)
	if errMsg != "" {
		return c.Status(httpStatus).JSON(models.ErrorResponse{Error: errMsg})
	}

	dump, err := h.Exchange.Dump(id)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{Error: err.Error()})
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.Status(fiber.StatusOK).SendString(dump)
}

func (h *OrderHandler) HealthCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(models.HealthResponse{
		Status:        "healthy",
		UptimeSeconds: int64(time.Since(h.StartTime).Seconds()),
		RestingOrders: int64(h.Exchange.RestingOrders()),
	})
}

func (h *OrderHandler) Metrics(c *fiber.Ctx) error {
	p50, p99, p999 := h.calculateLatencyPercentiles()

	return c.Status(fiber.StatusOK).JSON(models.MetricsResponse{
		OrdersReceived:         atomic.LoadInt64(&h.OrdersReceived),
		OrdersMatched:          atomic.LoadInt64(&h.OrdersMatched),
		OrdersCancelled:        atomic.LoadInt64(&h.OrdersCancelled),
		OrdersModified:         atomic.LoadInt64(&h.OrdersModified),
		RestingOrders:          int64(h.Exchange.RestingOrders()),
		TradesExecuted:         atomic.LoadInt64(&h.TradesExecuted),
		LatencyP50Ms:           p50,
		LatencyP99Ms:           p99,
		LatencyP999Ms:          p999,
		ThroughputOrdersPerSec: h.calculateThroughput(),
	})
}

func (h *OrderHandler) resolveInstrument(c *fiber.Ctx) (instrument.ID, instrument.Instrument, int, string) {
	symbol := c.Params("symbol")
	venue := c.Params("venue")

	id, exists := h.Exchange.Registry().Lookup(symbol, venue)
	if !exists {
		return 0, instrument.Instrument{}, fiber.StatusNotFound, "Unknown instrument: " + symbol + "@" + venue
	}
	inst, _ := h.Exchange.Registry().Get(id)
	return id, inst, fiber.StatusOK, ""
}

func levelToInfo(level engine.LevelView, _ int) models.PriceLevelInfo {
	return models.PriceLevelInfo{
		Price:    level.Price.String(),
		Quantity: level.Quantity.String(),
	}
}

// statusForError maps engine rejection kinds onto HTTP statuses. Every one
// of these leaves book state untouched.
func statusForError(err error) int {
	var dup *engine.DuplicateOrderError
	var unknown *engine.UnknownOrderError
	switch {
	case errors.As(err, &dup):
		return fiber.StatusConflict
	case errors.As(err, &unknown):
		return fiber.StatusNotFound
	default:
		return fiber.StatusBadRequest
	}
}

func (h *OrderHandler) recordLatency(latency time.Duration) {
	h.latenciesMu.Lock()
	defer h.latenciesMu.Unlock()

	h.latencies = append(h.latencies, latency)

	// edge case: maintain rolling window by removing oldest measurements
	if len(h.latencies) > h.maxLatencies {
		removeCount := len(h.latencies) - h.maxLatencies
		h.latencies = h.latencies[removeCount:]
	}
}

func (h *OrderHandler) calculateLatencyPercentiles() (p50, p99, p999 float64) {
	h.latenciesMu.RLock()
	defer h.latenciesMu.RUnlock()

	if len(h.latencies) == 0 {
		return 0, 0, 0
	}

	latenciesCopy := make([]time.Duration, len(h.latencies))
	copy(latenciesCopy, h.latencies)

	sort.Slice(latenciesCopy, func(i, j int) bool {
		return latenciesCopy[i] < latenciesCopy[j]
	})

	at := func(q float64) float64 {
		idx := int(float64(len(latenciesCopy)) * q)
		if idx >= len(latenciesCopy) {
			idx = len(latenciesCopy) - 1
		}
		return float64(latenciesCopy[idx].Nanoseconds()) / 1e6
	}
	return at(0.50), at(0.99), at(0.999)
}

func (h *OrderHandler) calculateThroughput() float64 {
	uptime := time.Since(h.StartTime).Seconds()
	if uptime <= 0 {
		return 0
	}
	return float64(atomic.LoadInt64(&h.OrdersReceived)) / uptime
}

func validateSubmitOrderRequest(req *models.SubmitOrderRequest) error {
	if req.Symbol == "" || req.Venue == "" {
		return &ValidationError{Message: "Invalid order: symbol and venue are required"}
	}

	if req.Side != "BUY" && req.Side != "SELL" {
		return &ValidationError{Message: "Invalid order: side must be BUY or SELL"}
	}

	if req.Type != "LIMIT" && req.Type != "MARKET" {
		return &ValidationError{Message: "Invalid order: type must be LIMIT or MARKET"}
	}

	if req.Quantity == "" {
		return &ValidationError{Message: "Invalid order: quantity is required"}
	}

	// edge case: price required for limit orders
	if req.Type == "LIMIT" && req.Price == "" {
		return &ValidationError{Message: "Invalid order: price is required for LIMIT orders"}
	}

	return nil
}

type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
