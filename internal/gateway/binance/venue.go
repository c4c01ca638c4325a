// Package binance implements exchange.Exchange over the Binance USDⓈ-M futures REST API.
package binance

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"

	"exconnector/internal/correlation"
	"exconnector/internal/gateway/exchange"
	"exconnector/internal/logger"
	"exconnector/internal/pkg/circuit"
	"exconnector/internal/pkg/symbol"
)

// Venue signs and sends REST calls through go-binance. Every call passes the
// circuit breaker first.
type Venue struct {
	cfg     Config
	client  *futures.Client
	breaker *circuit.Breaker
	ids     correlation.IDGenerator
	obs     Observer
}

// Observer receives request outcomes. metrics.Collectors satisfies it.
type Observer interface {
	RequestSent(kind string)
	RequestCompleted(kind, outcome string, elapsed time.Duration)
}

var _ exchange.Exchange = (*Venue)(nil)

func New(cfg Config, ids correlation.IDGenerator, obs Observer) (*Venue, error) {
	final := cfg.withDefaults()
	client := futures.NewClient(final.APIKey, final.SecretKey)
	client.BaseURL = final.RESTBaseURL
	httpClient := &http.Client{Timeout: final.HTTPTimeout}
	if final.ProxyEnabled && final.RESTProxyURL != "" {
		proxyURL, err := url.Parse(final.RESTProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid REST proxy url: %w", err)
		}
		baseTransport, ok := http.DefaultTransport.(*http.Transport)
		if !ok || baseTransport == nil {
			return nil, fmt.Errorf("http DefaultTransport is not *http.Transport")
		}
		transport := baseTransport.Clone()
		transport.Proxy = http.ProxyURL(proxyURL)
		httpClient.Transport = transport
	}
	client.HTTPClient = httpClient
	if ids == nil {
		ids = correlation.UUIDGenerator{}
	}
	return &Venue{
		cfg:     final,
		client:  client,
		breaker: circuit.New("binance", final.BreakerThreshold, final.BreakerCooldown),
		ids:     ids,
		obs:     obs,
	}, nil
}

func (v *Venue) Name() string { return "binance" }

func (v *Venue) PlaceOrder(ctx context.Context, req exchange.OrderRequest) (exchange.ExecutionResult, error) {
	if err := req.Validate(); err != nil {
		return exchange.ExecutionResult{}, err
	}
	tif, err := toTimeInForce(req.TimeInForce)
	if err != nil {
		return exchange.ExecutionResult{}, err
	}
	id := v.ids.NewID()
	svc := v.client.NewCreateOrderService().
		Symbol(symbol.Binance.ToExchange(req.Symbol)).
		Side(toSide(req.Side)).
		Type(toOrderType(req.Type)).
		Quantity(req.Quantity.String()).
		NewClientOrderID(id)
	if req.Type != exchange.OrderTypeMarket && req.Type != exchange.OrderTypeStop {
		svc = svc.TimeInForce(tif)
	}
	if req.Price.IsPositive() {
		svc = svc.Price(req.Price.String())
	}
	if req.StopPrice.IsPositive() {
		svc = svc.StopPrice(req.StopPrice.String())
	}

	var res *futures.CreateOrderResponse
	err = v.call(ctx, "order", id, func(ctx context.Context) error {
		var err error
		res, err = svc.Do(ctx)
		return err
	})
	if err != nil {
		return exchange.ExecutionResult{}, err
	}
	out := exchange.ExecutionResult{
		ClientOrderID: res.ClientOrderID,
		OrderID:       strconv.FormatInt(res.OrderID, 10),
		Symbol:        symbol.Binance.FromExchange(res.Symbol),
		Side:          fromSide(res.Side),
		Status:        fromOrderStatus(res.Status),
		Quantity:      parseDecimal(res.OrigQuantity),
		FilledQty:     parseDecimal(res.ExecutedQuantity),
		AvgPrice:      parseDecimal(res.AvgPrice),
		UpdatedAt:     time.UnixMilli(res.UpdateTime),
	}
	out.LeavesQty = out.Quantity.Sub(out.FilledQty)
	return out, nil
}

func (v *Venue) CancelOrder(ctx context.Context, req exchange.CancelRequest) (exchange.ExecutionResult, error) {
	if err := req.Validate(); err != nil {
		return exchange.ExecutionResult{}, err
	}
	svc := v.client.NewCancelOrderService().Symbol(symbol.Binance.ToExchange(req.Symbol))
	if req.ClientOrderID != "" {
		svc = svc.OrigClientOrderID(req.ClientOrderID)
	} else {
		orderID, err := strconv.ParseInt(req.OrderID, 10, 64)
		if err != nil {
			return exchange.ExecutionResult{}, fmt.Errorf("%w: order_id %q is not numeric", correlation.ErrInvalidRequest, req.OrderID)
		}
		svc = svc.OrderID(orderID)
	}

	var res *futures.CancelOrderResponse
	err := v.call(ctx, "cancel", firstNonEmpty(req.ClientOrderID, req.OrderID), func(ctx context.Context) error {
		var err error
		res, err = svc.Do(ctx)
		return err
	})
	if err != nil {
		return exchange.ExecutionResult{}, err
	}
	out := exchange.ExecutionResult{
		ClientOrderID: res.ClientOrderID,
		OrderID:       strconv.FormatInt(res.OrderID, 10),
		Symbol:        symbol.Binance.FromExchange(res.Symbol),
		Side:          fromSide(res.Side),
		Status:        fromOrderStatus(res.Status),
		Quantity:      parseDecimal(res.OrigQuantity),
		FilledQty:     parseDecimal(res.ExecutedQuantity),
		UpdatedAt:     time.UnixMilli(res.UpdateTime),
	}
	out.LeavesQty = out.Quantity.Sub(out.FilledQty)
	return out, nil
}

func (v *Venue) GetPositions(ctx context.Context, q exchange.PositionQuery) ([]exchange.Position, error) {
	svc := v.client.NewGetPositionRiskService()
	if q.Symbol != "" {
		svc = svc.Symbol(symbol.Binance.ToExchange(q.Symbol))
	}
	var risks []*futures.PositionRisk
	err := v.call(ctx, "positions", "", func(ctx context.Context) error {
		var err error
		risks, err = svc.Do(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	out := make([]exchange.Position, 0, len(risks))
	for _, r := range risks {
		if r == nil {
			continue
		}
		amt := parseDecimal(r.PositionAmt)
		if amt.IsZero() {
			continue
		}
		p := exchange.Position{
			Symbol:        symbol.Binance.FromExchange(r.Symbol),
			NetQty:        amt,
			EntryPrice:    parseDecimal(r.EntryPrice),
			MarkPrice:     parseDecimal(r.MarkPrice),
			UnrealizedPnL: parseDecimal(r.UnRealizedProfit),
		}
		if amt.IsPositive() {
			p.LongQty = amt
		} else {
			p.ShortQty = amt.Neg()
		}
		out = append(out, p)
	}
	return out, nil
}

func (v *Venue) GetCollateral(ctx context.Context, q exchange.CollateralQuery) ([]exchange.Collateral, error) {
	var balances []*futures.Balance
	err := v.call(ctx, "collateral", "", func(ctx context.Context) error {
		var err error
		balances, err = v.client.NewGetBalanceService().Do(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	out := make([]exchange.Collateral, 0, len(balances))
	for _, b := range balances {
		if b == nil {
			continue
		}
		if q.Currency != "" && b.Asset != q.Currency {
			continue
		}
		total := parseDecimal(b.Balance)
		if q.Currency == "" && total.IsZero() {
			continue
		}
		available := parseDecimal(b.AvailableBalance)
		out = append(out, exchange.Collateral{
			Account:   b.AccountAlias,
			Currency:  b.Asset,
			Total:     total,
			Available: available,
			Used:      total.Sub(available),
		})
	}
	return out, nil
}

// call applies the default deadline, the circuit breaker and error mapping.
func (v *Venue) call(ctx context.Context, kind, id string, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.cfg.RequestTimeout)
		defer cancel()
	}
	if err := ctx.Err(); err != nil {
		return mapError(ctx, kind, id, err)
	}
	started := time.Now()
	if v.obs != nil {
		v.obs.RequestSent(kind)
	}
	err := v.breaker.Do(func() error { return fn(ctx) }, countsAgainstBreaker)
	if err != nil {
		err = mapError(ctx, kind, id, err)
		logger.Warnf("binance: %s %s failed: %v", kind, id, err)
	}
	if v.obs != nil {
		v.obs.RequestCompleted(kind, correlation.Outcome(err), time.Since(started))
	}
	return err
}

// countsAgainstBreaker ignores business rejections and caller cancellation.
func countsAgainstBreaker(err error) bool {
	if common.IsAPIError(err) {
		return false
	}
	return !errors.Is(err, context.Canceled)
}

func mapError(ctx context.Context, kind, id string, err error) error {
	var apiErr *common.APIError
	switch {
	case errors.As(err, &apiErr):
		return correlation.Rejected(fmt.Sprintf("binance %d: %s", apiErr.Code, apiErr.Message))
	case errors.Is(err, circuit.ErrOpen):
		return correlation.SendFailed(err)
	case errors.Is(ctx.Err(), context.DeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		return &correlation.TimeoutError{Kind: kind, CorrelationID: id}
	case errors.Is(ctx.Err(), context.Canceled), errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %w", correlation.ErrCancelled, err)
	}
	return correlation.SendFailed(err)
}

func toSide(s exchange.Side) futures.SideType {
	if s == exchange.SideSell {
		return futures.SideTypeSell
	}
	return futures.SideTypeBuy
}

func fromSide(s futures.SideType) exchange.Side {
	switch s {
	case futures.SideTypeBuy:
		return exchange.SideBuy
	case futures.SideTypeSell:
		return exchange.SideSell
	}
	return ""
}

// toOrderType maps onto futures order types: a stop is a stop-market order and a
// stop_limit is Binance's STOP.
func toOrderType(t exchange.OrderType) futures.OrderType {
	switch t {
	case exchange.OrderTypeLimit:
		return futures.OrderTypeLimit
	case exchange.OrderTypeStop:
		return futures.OrderTypeStopMarket
	case exchange.OrderTypeStopLimit:
		return futures.OrderTypeStop
	default:
		return futures.OrderTypeMarket
	}
}

func toTimeInForce(tif exchange.TimeInForce) (futures.TimeInForceType, error) {
	switch tif {
	case "", exchange.TimeInForceGTC:
		return futures.TimeInForceTypeGTC, nil
	case exchange.TimeInForceIOC:
		return futures.TimeInForceTypeIOC, nil
	case exchange.TimeInForceFOK:
		return futures.TimeInForceTypeFOK, nil
	}
	return "", fmt.Errorf("%w: time_in_force %s is not supported by binance futures", correlation.ErrInvalidRequest, tif)
}

func fromOrderStatus(s futures.OrderStatusType) exchange.OrderStatus {
	switch s {
	case futures.OrderStatusTypeNew:
		return exchange.StatusNew
	case futures.OrderStatusTypePartiallyFilled:
		return exchange.StatusPartiallyFilled
	case futures.OrderStatusTypeFilled:
		return exchange.StatusFilled
	case futures.OrderStatusTypeCanceled:
		return exchange.StatusCanceled
	case futures.OrderStatusTypeRejected:
		return exchange.StatusRejected
	case futures.OrderStatusTypeExpired:
		return exchange.StatusExpired
	}
	return exchange.StatusUnknown
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Connect checks reachability. The REST venue holds no session.
func (v *Venue) Connect(ctx context.Context) error {
	return v.call(ctx, "ping", "", func(ctx context.Context) error {
		return v.client.NewPingService().Do(ctx)
	})
}

func (v *Venue) Close() {}

// OnBreakerChange observes circuit transitions. It replaces the default log line.
func (v *Venue) OnBreakerChange(fn func(name string, from, to circuit.State)) {
	v.breaker.OnStateChange(fn)
}
