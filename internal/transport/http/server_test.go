package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"exconnector/internal/correlation"
	"exconnector/internal/gateway/exchange"
	"exconnector/internal/metrics"
)

type mockExchange struct {
	mock.Mock
}

func (m *mockExchange) Name() string { return "mock" }

func (m *mockExchange) PlaceOrder(ctx context.Context, req exchange.OrderRequest) (exchange.ExecutionResult, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(exchange.ExecutionResult), args.Error(1)
}

func (m *mockExchange) CancelOrder(ctx context.Context, req exchange.CancelRequest) (exchange.ExecutionResult, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(exchange.ExecutionResult), args.Error(1)
}

func (m *mockExchange) GetPositions(ctx context.Context, q exchange.PositionQuery) ([]exchange.Position, error) {
	args := m.Called(ctx, q)
	positions, _ := args.Get(0).([]exchange.Position)
	return positions, args.Error(1)
}

func (m *mockExchange) GetCollateral(ctx context.Context, q exchange.CollateralQuery) ([]exchange.Collateral, error) {
	args := m.Called(ctx, q)
	balances, _ := args.Get(0).([]exchange.Collateral)
	return balances, args.Error(1)
}

type sessionExchange struct {
	mockExchange
	state string
}

func (s *sessionExchange) SessionStatus() exchange.SessionStatus {
	return exchange.SessionStatus{Venue: "mock", State: s.state, Pending: map[string]int{"orders": 1}}
}

func newTestServer(t *testing.T, ex exchange.Exchange) http.Handler {
	t.Helper()
	reg := metrics.NewRegistry()
	srv, err := NewServer(ServerConfig{Mode: gin.TestMode, Exchange: ex, Metrics: metrics.New(reg), Gatherer: reg})
	require.NoError(t, err)
	return srv.Handler()
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestPlaceOrderAcceptsWrappedPayload(t *testing.T) {
	ex := &mockExchange{}
	want := exchange.OrderRequest{
		Symbol:      "BTC-USD",
		Side:        exchange.SideBuy,
		Type:        exchange.OrderTypeLimit,
		TimeInForce: exchange.TimeInForceIOC,
		Quantity:    decimal.RequireFromString("1.5"),
		Price:       decimal.NewFromInt(30000),
	}
	ex.On("PlaceOrder", mock.Anything, mock.MatchedBy(func(req exchange.OrderRequest) bool {
		return req.Symbol == want.Symbol && req.Side == want.Side && req.Type == want.Type &&
			req.TimeInForce == want.TimeInForce && req.Quantity.Equal(want.Quantity) && req.Price.Equal(want.Price)
	})).Return(exchange.ExecutionResult{ClientOrderID: "c-1", Status: exchange.StatusFilled}, nil).Once()

	h := newTestServer(t, ex)
	rec := do(h, http.MethodPost, "/api/orders",
		`{"order":{"symbol":"BTC-USD","side":"BUY","time_in_force":"ioc","quantity":"1.5","price":30000}}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res exchange.ExecutionResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "c-1", res.ClientOrderID)
	assert.Equal(t, exchange.StatusFilled, res.Status)
	ex.AssertExpectations(t)
}

func TestPlaceOrderSchemaViolations(t *testing.T) {
	h := newTestServer(t, &mockExchange{})
	bodies := map[string]string{
		"empty":         ``,
		"not json":      `{"symbol":`,
		"array":         `[]`,
		"missing side":  `{"symbol":"BTC-USD","quantity":1}`,
		"bad side":      `{"symbol":"BTC-USD","side":"hold","quantity":1}`,
		"negative qty":  `{"symbol":"BTC-USD","side":"buy","quantity":"-1"}`,
		"unknown field": `{"symbol":"BTC-USD","side":"buy","quantity":1,"leverage":10}`,
		"order not obj": `{"order":"BTC"}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			rec := do(h, http.MethodPost, "/api/orders", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Contains(t, rec.Body.String(), `"outcome":"invalid"`)
		})
	}
}

func TestErrorStatusMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{correlation.ErrNotConnected, http.StatusServiceUnavailable},
		{correlation.Rejected(correlation.ReasonConnectorClosed), http.StatusServiceUnavailable},
		{correlation.Rejected("insufficient margin"), http.StatusUnprocessableEntity},
		{&correlation.TimeoutError{Kind: "order", CorrelationID: "c-9"}, http.StatusGatewayTimeout},
		{correlation.ErrCancelled, StatusClientClosedRequest},
		{correlation.SendFailed(nil), http.StatusBadGateway},
		{assert.AnError, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		ex := &mockExchange{}
		ex.On("PlaceOrder", mock.Anything, mock.Anything).Return(exchange.ExecutionResult{}, tc.err)
		h := newTestServer(t, ex)
		rec := do(h, http.MethodPost, "/api/orders", `{"symbol":"BTC-USD","side":"sell","quantity":1}`)
		assert.Equal(t, tc.status, rec.Code, tc.err.Error())
	}
}

func TestTimeoutCarriesCorrelationID(t *testing.T) {
	ex := &mockExchange{}
	ex.On("PlaceOrder", mock.Anything, mock.Anything).
		Return(exchange.ExecutionResult{}, &correlation.TimeoutError{Kind: "order", CorrelationID: "c-9"})
	h := newTestServer(t, ex)

	rec := do(h, http.MethodPost, "/api/orders", `{"symbol":"BTC-USD","side":"sell","quantity":1}`)
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "c-9", body.CorrelationID)
	assert.Equal(t, "timed_out", body.Outcome)
}

func TestMarketIsDefaultTypeWithoutPrice(t *testing.T) {
	ex := &mockExchange{}
	ex.On("PlaceOrder", mock.Anything, mock.MatchedBy(func(req exchange.OrderRequest) bool {
		return req.Type == exchange.OrderTypeMarket
	})).Return(exchange.ExecutionResult{}, nil).Once()
	h := newTestServer(t, ex)

	rec := do(h, http.MethodPost, "/api/orders", `{"symbol":"BTC-USD","side":"sell","quantity":1}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	ex.AssertExpectations(t)
}

func TestCancelOrder(t *testing.T) {
	ex := &mockExchange{}
	ex.On("CancelOrder", mock.Anything, exchange.CancelRequest{ClientOrderID: "c-1", Symbol: "BTC-USD"}).
		Return(exchange.ExecutionResult{ClientOrderID: "c-2", Status: exchange.StatusCanceled}, nil).Once()
	h := newTestServer(t, ex)

	rec := do(h, http.MethodPost, "/api/orders/cancel", `{"cancel":{"client_order_id":"c-1","symbol":"BTC-USD"}}`)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(h, http.MethodPost, "/api/orders/cancel", `{"symbol":"BTC-USD"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "an order reference is required")
	ex.AssertExpectations(t)
}

func TestPositionsAndCollateral(t *testing.T) {
	ex := &mockExchange{}
	ex.On("GetPositions", mock.Anything, exchange.PositionQuery{Symbol: "BTC-USD"}).
		Return([]exchange.Position{{Symbol: "BTC-USD", NetQty: decimal.NewFromInt(1)}}, nil)
	ex.On("GetCollateral", mock.Anything, exchange.CollateralQuery{Currency: "USD"}).
		Return(nil, nil)
	h := newTestServer(t, ex)

	rec := do(h, http.MethodGet, "/api/positions?symbol=BTC-USD", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"symbol":"BTC-USD"`)

	rec = do(h, http.MethodGet, "/api/collateral?currency=usd", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"venue":"mock","collateral":[]}`, rec.Body.String())
}

func TestSessionAndHealth(t *testing.T) {
	ex := &sessionExchange{state: "connected"}
	h := newTestServer(t, ex)

	rec := do(h, http.MethodGet, "/api/session", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"orders":1`)
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/healthz", "").Code)

	ex.state = "disconnected"
	assert.Equal(t, http.StatusServiceUnavailable, do(h, http.MethodGet, "/healthz", "").Code)

	stateless := newTestServer(t, &mockExchange{})
	rec = do(stateless, http.MethodGet, "/api/session", "")
	assert.Contains(t, rec.Body.String(), `"state":"stateless"`)
}

func TestMetricsEndpointAndMiddleware(t *testing.T) {
	ex := &mockExchange{}
	ex.On("GetPositions", mock.Anything, mock.Anything).Return(nil, correlation.ErrNotConnected)
	h := newTestServer(t, ex)

	do(h, http.MethodGet, "/api/positions", "")
	rec := do(h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `exconnector_http_requests_total{method="GET",route="/api/positions",status="503"} 1`)
}

func TestNewServerRequiresExchange(t *testing.T) {
	_, err := NewServer(ServerConfig{})
	assert.Error(t, err)
}
