package binance

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"exconnector/internal/correlation"
	"exconnector/internal/gateway/exchange"
	"exconnector/internal/pkg/circuit"
)

type fakeAPI struct {
	mu       sync.Mutex
	forms    []map[string]string
	status   int
	body     string
	requests int
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	form := map[string]string{"_path": r.URL.Path, "_method": r.Method}
	values := r.URL.Query()
	if r.Method != http.MethodGet {
		// net/http only parses form bodies on POST, PUT and PATCH.
		raw, _ := io.ReadAll(r.Body)
		body, _ := url.ParseQuery(string(raw))
		for k, v := range body {
			values[k] = v
		}
	}
	for k := range values {
		form[k] = values.Get(k)
	}
	f.mu.Lock()
	f.forms = append(f.forms, form)
	f.requests++
	status, body := f.status, f.body
	f.mu.Unlock()
	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func (f *fakeAPI) respond(status int, body string) {
	f.mu.Lock()
	f.status, f.body = status, body
	f.mu.Unlock()
}

func (f *fakeAPI) last() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.forms) == 0 {
		return nil
	}
	return f.forms[len(f.forms)-1]
}

func (f *fakeAPI) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests
}

func newTestVenue(t *testing.T, cfg Config) (*Venue, *fakeAPI) {
	t.Helper()
	api := &fakeAPI{}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	cfg.APIKey, cfg.SecretKey = "key", "secret"
	cfg.RESTBaseURL = srv.URL
	v, err := New(cfg, correlation.NewSequenceGenerator("bn"), nil)
	require.NoError(t, err)
	v.breaker.OnStateChange(func(string, circuit.State, circuit.State) {})
	return v, api
}

func limitBuy() exchange.OrderRequest {
	return exchange.OrderRequest{
		Symbol:      "BTC/USDT",
		Side:        exchange.SideBuy,
		Type:        exchange.OrderTypeLimit,
		TimeInForce: exchange.TimeInForceGTC,
		Quantity:    decimal.RequireFromString("0.5"),
		Price:       decimal.NewFromInt(30000),
	}
}

func TestPlaceOrder(t *testing.T) {
	v, api := newTestVenue(t, Config{})
	api.respond(http.StatusOK, `{"symbol":"BTCUSDT","orderId":42,"clientOrderId":"bn-1","price":"30000","origQty":"0.5",
		"executedQty":"0.2","cumQuote":"6000","status":"PARTIALLY_FILLED","timeInForce":"GTC","type":"LIMIT",
		"side":"BUY","updateTime":1700000000000,"avgPrice":"30000"}`)

	res, err := v.PlaceOrder(context.Background(), limitBuy())
	require.NoError(t, err)
	assert.Equal(t, "42", res.OrderID)
	assert.Equal(t, "BTC/USDT", res.Symbol)
	assert.Equal(t, exchange.StatusPartiallyFilled, res.Status)
	assert.True(t, decimal.RequireFromString("0.3").Equal(res.LeavesQty))

	form := api.last()
	assert.Equal(t, "/fapi/v1/order", form["_path"])
	assert.Equal(t, http.MethodPost, form["_method"])
	assert.Equal(t, "BTCUSDT", form["symbol"])
	assert.Equal(t, "BUY", form["side"])
	assert.Equal(t, "LIMIT", form["type"])
	assert.Equal(t, "GTC", form["timeInForce"])
	assert.True(t, strings.HasPrefix(form["newClientOrderId"], "bn-"))
	assert.NotEmpty(t, form["signature"])
}

func TestPlaceOrderAPIErrorIsRejection(t *testing.T) {
	v, api := newTestVenue(t, Config{BreakerThreshold: 1})
	api.respond(http.StatusBadRequest, `{"code":-2019,"msg":"Margin is insufficient."}`)

	_, err := v.PlaceOrder(context.Background(), limitBuy())
	require.ErrorIs(t, err, correlation.ErrRejected)
	assert.Contains(t, err.Error(), "Margin is insufficient")
	assert.Equal(t, circuit.StateClosed, v.breaker.State(), "rejections do not trip the breaker")
}

func TestPlaceOrderDayIsUnsupported(t *testing.T) {
	v, api := newTestVenue(t, Config{})
	req := limitBuy()
	req.TimeInForce = exchange.TimeInForceDay

	_, err := v.PlaceOrder(context.Background(), req)
	assert.ErrorIs(t, err, correlation.ErrInvalidRequest)
	assert.Zero(t, api.count())
}

func TestBreakerTripsOnTransportFailures(t *testing.T) {
	v, api := newTestVenue(t, Config{BreakerThreshold: 2, BreakerCooldown: time.Hour})
	api.respond(http.StatusOK, `not json`)

	for i := 0; i < 2; i++ {
		_, err := v.GetCollateral(context.Background(), exchange.CollateralQuery{})
		require.ErrorIs(t, err, correlation.ErrSendFailed)
	}
	assert.Equal(t, circuit.StateOpen, v.breaker.State())

	before := api.count()
	_, err := v.GetCollateral(context.Background(), exchange.CollateralQuery{})
	assert.ErrorIs(t, err, correlation.ErrSendFailed)
	assert.ErrorIs(t, err, circuit.ErrOpen)
	assert.Equal(t, before, api.count(), "open breaker sends nothing")
}

func TestCancelOrderByClientID(t *testing.T) {
	v, api := newTestVenue(t, Config{})
	api.respond(http.StatusOK, `{"clientOrderId":"bn-1","orderId":42,"origQty":"0.5","executedQty":"0",
		"status":"CANCELED","symbol":"BTCUSDT","side":"BUY","updateTime":1700000000000}`)

	res, err := v.CancelOrder(context.Background(), exchange.CancelRequest{ClientOrderID: "bn-1", Symbol: "BTC/USDT"})
	require.NoError(t, err)
	assert.Equal(t, exchange.StatusCanceled, res.Status)

	form := api.last()
	assert.Equal(t, http.MethodDelete, form["_method"])
	assert.Equal(t, "bn-1", form["origClientOrderId"])
}

func TestCancelOrderRejectsNonNumericOrderID(t *testing.T) {
	v, _ := newTestVenue(t, Config{})
	_, err := v.CancelOrder(context.Background(), exchange.CancelRequest{OrderID: "abc", Symbol: "BTC/USDT"})
	assert.ErrorIs(t, err, correlation.ErrInvalidRequest)
}

func TestGetPositions(t *testing.T) {
	v, api := newTestVenue(t, Config{})
	api.respond(http.StatusOK, `[
		{"symbol":"BTCUSDT","positionAmt":"0.25","entryPrice":"30000","markPrice":"31000","unRealizedProfit":"250"},
		{"symbol":"ETHUSDT","positionAmt":"-2","entryPrice":"2000","markPrice":"1900","unRealizedProfit":"200"},
		{"symbol":"SOLUSDT","positionAmt":"0","entryPrice":"0","markPrice":"100","unRealizedProfit":"0"}
	]`)

	positions, err := v.GetPositions(context.Background(), exchange.PositionQuery{})
	require.NoError(t, err)
	require.Len(t, positions, 2)
	assert.Equal(t, "BTC/USDT", positions[0].Symbol)
	assert.True(t, decimal.RequireFromString("0.25").Equal(positions[0].LongQty))
	assert.True(t, decimal.NewFromInt(2).Equal(positions[1].ShortQty))
	assert.True(t, decimal.NewFromInt(-2).Equal(positions[1].NetQty))
}

func TestGetCollateralFiltersCurrency(t *testing.T) {
	v, api := newTestVenue(t, Config{})
	api.respond(http.StatusOK, `[
		{"accountAlias":"a","asset":"USDT","balance":"1000","availableBalance":"600"},
		{"accountAlias":"a","asset":"BNB","balance":"1","availableBalance":"1"}
	]`)

	balances, err := v.GetCollateral(context.Background(), exchange.CollateralQuery{Currency: "USDT"})
	require.NoError(t, err)
	require.Len(t, balances, 1)
	assert.True(t, decimal.NewFromInt(400).Equal(balances[0].Used))
}

func TestCancelledContextSendsNothing(t *testing.T) {
	v, api := newTestVenue(t, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := v.GetPositions(ctx, exchange.PositionQuery{})
	assert.ErrorIs(t, err, correlation.ErrCancelled)
	assert.Zero(t, api.count())
}
