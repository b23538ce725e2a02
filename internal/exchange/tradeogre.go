package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tradeogre-grid-bot-go/internal/models"
	"tradeogre-grid-bot-go/internal/ratelimit"
)

// wirePlaces is the decimal precision TradeOgre expects for prices and
// quantities on the wire.
const wirePlaces = 8

// TradeOgre talks to the TradeOgre REST API over HTTP basic auth.
// Transient failures are retried with exponential backoff; the context
// supplied at construction is checked between attempts so a shutdown
// signal is never blocked behind a backoff sleep.
type TradeOgre struct {
	key        string
	secret     string
	baseURL    string
	httpClient *http.Client
	limiter    *ratelimit.Limiter
	logger     *zap.SugaredLogger

	ctx           context.Context
	retryAttempts int
	baseDelay     time.Duration
	sleep         func(time.Duration)
}

// NewTradeOgre builds a live client. ctx is the process stop token;
// limiter paces every outbound call.
func NewTradeOgre(ctx context.Context, key, secret, baseURL string, retryAttempts int, baseDelay time.Duration, limiter *ratelimit.Limiter, logger *zap.SugaredLogger) *TradeOgre {
	return &TradeOgre{
		key:           key,
		secret:        secret,
		baseURL:       strings.TrimSuffix(baseURL, "/"),
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		limiter:       limiter,
		logger:        logger,
		ctx:           ctx,
		retryAttempts: retryAttempts,
		baseDelay:     baseDelay,
		sleep:         time.Sleep,
	}
}

// apiEnvelope is the uniform success/error shape TradeOgre wraps
// responses in. Success defaults to true because public endpoints omit
// the flag on success.
type apiEnvelope struct {
	Success *bool  `json:"success"`
	Error   string `json:"error"`
}

func (e apiEnvelope) failed() bool {
	return e.Success != nil && !*e.Success
}

// doRequest performs one paced, authenticated-if-needed HTTP round
// trip with retries on transport errors and 5xx responses. It returns
// the raw body on success.
func (t *TradeOgre) doRequest(method, endpoint string, form url.Values, auth bool) ([]byte, error) {
	fullURL := t.baseURL + endpoint

	var lastErr error
	for attempt := 0; attempt <= t.retryAttempts; attempt++ {
		if attempt > 0 {
			// Base delay doubled per attempt; bail out promptly when
			// shutdown is requested.
			delay := t.baseDelay << (attempt - 1)
			t.logger.Warnf("retrying %s %s in %s (attempt %d/%d): %v", method, endpoint, delay, attempt, t.retryAttempts, lastErr)
			select {
			case <-t.ctx.Done():
				return nil, t.ctx.Err()
			default:
			}
			t.sleep(delay)
			select {
			case <-t.ctx.Done():
				return nil, t.ctx.Err()
			default:
			}
		}

		t.limiter.WaitIfNeeded()

		body, retryable, err := t.roundTrip(method, fullURL, form, auth)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
	}

	return nil, fmt.Errorf("%s %s failed after %d attempts: %w", method, endpoint, t.retryAttempts+1, lastErr)
}

// roundTrip executes a single HTTP exchange. The second return value
// reports whether the failure is worth retrying.
func (t *TradeOgre) roundTrip(method, fullURL string, form url.Values, auth bool) ([]byte, bool, error) {
	var req *http.Request
	var err error

	if method == http.MethodGet {
		target := fullURL
		if len(form) > 0 {
			target = fullURL + "?" + form.Encode()
		}
		req, err = http.NewRequestWithContext(t.ctx, method, target, nil)
	} else {
		req, err = http.NewRequestWithContext(t.ctx, method, fullURL, strings.NewReader(form.Encode()))
		if req != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		return nil, false, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if auth {
		req.SetBasicAuth(t.key, t.secret)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		// Timeouts, connection resets: transient.
		return nil, true, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 500 {
		return nil, true, &models.APIError{Message: strings.TrimSpace(string(body)), Status: resp.StatusCode}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, &models.APIError{Message: strings.TrimSpace(string(body)), Status: resp.StatusCode}
	}

	var envelope apiEnvelope
	if json.Unmarshal(body, &envelope) == nil && envelope.failed() {
		return nil, false, &models.APIError{Message: envelope.Error, Status: resp.StatusCode}
	}

	return body, false, nil
}

// --- Exchange implementation ---

// GetTicker fetches the public ticker for a market.
func (t *TradeOgre) GetTicker(market string) (*models.Ticker, error) {
	if !validMarket(market) {
		return nil, fmt.Errorf("invalid market format %q", market)
	}

	body, err := t.doRequest(http.MethodGet, "/ticker/"+market, nil, false)
	if err != nil {
		return nil, err
	}

	var wire struct {
		Bid    string `json:"bid"`
		Ask    string `json:"ask"`
		Price  string `json:"price"`
		High   string `json:"high"`
		Low    string `json:"low"`
		Volume string `json:"volume"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("decode ticker: %w", err)
	}

	ticker := &models.Ticker{}
	for _, f := range []struct {
		raw string
		dst *float64
	}{
		{wire.Bid, &ticker.Bid},
		{wire.Ask, &ticker.Ask},
		{wire.Price, &ticker.Price},
		{wire.High, &ticker.High},
		{wire.Low, &ticker.Low},
		{wire.Volume, &ticker.Volume},
	} {
		if f.raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(f.raw, 64)
		if err != nil {
			return nil, fmt.Errorf("decode ticker field %q: %w", f.raw, err)
		}
		*f.dst = v
	}
	return ticker, nil
}

// GetBalances fetches every currency balance on the account.
func (t *TradeOgre) GetBalances() (map[string]models.Balance, error) {
	body, err := t.doRequest(http.MethodGet, "/account/balances", nil, true)
	if err != nil {
		return nil, err
	}

	var wire struct {
		Balances  map[string]string `json:"balances"`
		Available map[string]string `json:"available"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("decode balances: %w", err)
	}

	balances := make(map[string]models.Balance, len(wire.Balances))
	for currency, raw := range wire.Balances {
		total, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("decode balance for %s: %w", currency, err)
		}
		var available float64
		if rawAvail, ok := wire.Available[currency]; ok {
			if available, err = strconv.ParseFloat(rawAvail, 64); err != nil {
				return nil, fmt.Errorf("decode available balance for %s: %w", currency, err)
			}
		}
		balances[currency] = models.Balance{Available: available, Held: total - available}
	}
	return balances, nil
}

// GetOpenOrders fetches the open orders for a market.
func (t *TradeOgre) GetOpenOrders(market string) ([]models.Order, error) {
	if !validMarket(market) {
		return nil, fmt.Errorf("invalid market format %q", market)
	}

	form := url.Values{}
	form.Set("market", market)
	body, err := t.doRequest(http.MethodPost, "/account/orders", form, true)
	if err != nil {
		return nil, err
	}

	var wire []struct {
		UUID     string `json:"uuid"`
		Market   string `json:"market"`
		Type     string `json:"type"`
		Price    string `json:"price"`
		Quantity string `json:"quantity"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("decode open orders: %w", err)
	}

	orders := make([]models.Order, 0, len(wire))
	for _, w := range wire {
		price, err := strconv.ParseFloat(w.Price, 64)
		if err != nil {
			return nil, fmt.Errorf("decode order %s price: %w", w.UUID, err)
		}
		quantity, err := strconv.ParseFloat(w.Quantity, 64)
		if err != nil {
			return nil, fmt.Errorf("decode order %s quantity: %w", w.UUID, err)
		}
		orders = append(orders, models.Order{
			ID:       w.UUID,
			Market:   w.Market,
			Side:     models.Side(w.Type),
			Price:    price,
			Quantity: quantity,
		})
	}
	return orders, nil
}

// PlaceOrder submits a limit order. Parameters are validated before
// any network traffic; validation failures are never retried.
func (t *TradeOgre) PlaceOrder(market string, side models.Side, price, quantity float64) (*models.Order, error) {
	if err := validateOrderParams(market, price, quantity); err != nil {
		return nil, err
	}

	var endpoint string
	switch side {
	case models.Buy:
		endpoint = "/order/buy"
	case models.Sell:
		endpoint = "/order/sell"
	default:
		return nil, fmt.Errorf("invalid order side %q", side)
	}

	form := url.Values{}
	form.Set("market", market)
	form.Set("price", decimal.NewFromFloat(price).StringFixed(wirePlaces))
	form.Set("quantity", decimal.NewFromFloat(quantity).StringFixed(wirePlaces))

	body, err := t.doRequest(http.MethodPost, endpoint, form, true)
	if err != nil {
		return nil, err
	}

	var wire struct {
		UUID string `json:"uuid"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("decode placed order: %w", err)
	}
	if wire.UUID == "" {
		return nil, fmt.Errorf("exchange accepted %s order without returning an id", side)
	}

	return &models.Order{
		ID:       wire.UUID,
		Market:   market,
		Side:     side,
		Price:    price,
		Quantity: quantity,
	}, nil
}

// CancelOrder cancels one order, or all of them for id == CancelAll.
func (t *TradeOgre) CancelOrder(id string) error {
	if id != CancelAll && !validUUID(id) {
		return fmt.Errorf("invalid order id %q", id)
	}

	form := url.Values{}
	form.Set("uuid", id)
	_, err := t.doRequest(http.MethodPost, "/order/cancel", form, true)
	return err
}

// --- validation, before any network call ---

// validMarket accepts BASE-QUOTE with alphanumeric halves.
func validMarket(market string) bool {
	parts := strings.Split(market, "-")
	if len(parts) != 2 {
		return false
	}
	for _, part := range parts {
		if part == "" {
			return false
		}
		for _, r := range part {
			if !(r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9') {
				return false
			}
		}
	}
	return true
}

// validUUID checks the 8-4-4-4-12 hex layout TradeOgre order ids use.
func validUUID(id string) bool {
	if len(id) != 36 {
		return false
	}
	groups := strings.Split(id, "-")
	if len(groups) != 5 {
		return false
	}
	for i, want := range []int{8, 4, 4, 4, 12} {
		if len(groups[i]) != want {
			return false
		}
		for _, r := range strings.ToLower(groups[i]) {
			if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f') {
				return false
			}
		}
	}
	return true
}

func validateOrderParams(market string, price, quantity float64) error {
	if !validMarket(market) {
		return fmt.Errorf("invalid market format %q", market)
	}
	if price <= 0 {
		return fmt.Errorf("price must be positive, got %v", price)
	}
	if quantity <= 0 {
		return fmt.Errorf("quantity must be positive, got %v", quantity)
	}
	return nil
}
