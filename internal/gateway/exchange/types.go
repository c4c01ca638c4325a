// Package exchange defines the venue-neutral order, position and collateral model
// shared by the FIX and REST venues and the HTTP surface.
package exchange

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"exconnector/internal/correlation"
)

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

type OrderType string

const (
	OrderTypeMarket    OrderType = "market"
	OrderTypeLimit     OrderType = "limit"
	OrderTypeStop      OrderType = "stop"
	OrderTypeStopLimit OrderType = "stop_limit"
)

type TimeInForce string

const (
	TimeInForceGTC TimeInForce = "GTC"
	TimeInForceIOC TimeInForce = "IOC"
	TimeInForceFOK TimeInForce = "FOK"
	TimeInForceDay TimeInForce = "DAY"
)

// OrderStatus is the venue-neutral order state.
type OrderStatus string

const (
	StatusNew             OrderStatus = "new"
	StatusPartiallyFilled OrderStatus = "partially_filled"
	StatusFilled          OrderStatus = "filled"
	StatusCanceled        OrderStatus = "canceled"
	StatusRejected        OrderStatus = "rejected"
	StatusExpired         OrderStatus = "expired"
	StatusPending         OrderStatus = "pending"
	StatusUnknown         OrderStatus = "unknown"
)

// OrderRequest contains parameters for placing an order.
type OrderRequest struct {
	Account     string          `json:"account,omitempty"`
	Symbol      string          `json:"symbol"`
	Side        Side            `json:"side"`
	Type        OrderType       `json:"type"`
	TimeInForce TimeInForce     `json:"time_in_force,omitempty"`
	Quantity    decimal.Decimal `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	StopPrice   decimal.Decimal `json:"stop_price"`
	// AcceptOnNew returns as soon as the venue accepts the order instead of
	// waiting for a terminal state.
	AcceptOnNew bool `json:"accept_on_new,omitempty"`
}

// ImmediateOnly reports whether the order is fill-or-kill or immediate-or-cancel.
func (r OrderRequest) ImmediateOnly() bool {
	return r.TimeInForce == TimeInForceFOK || r.TimeInForce == TimeInForceIOC
}

func (r OrderRequest) Validate() error {
	var problems []string
	if strings.TrimSpace(r.Symbol) == "" {
		problems = append(problems, "symbol is required")
	}
	if r.Side != SideBuy && r.Side != SideSell {
		problems = append(problems, fmt.Sprintf("side %q is invalid", r.Side))
	}
	if !r.Quantity.IsPositive() {
		problems = append(problems, "quantity must be positive")
	}
	switch r.Type {
	case OrderTypeMarket:
	case OrderTypeLimit:
		if !r.Price.IsPositive() {
			problems = append(problems, "limit order requires a positive price")
		}
	case OrderTypeStop:
		if !r.StopPrice.IsPositive() {
			problems = append(problems, "stop order requires a positive stop_price")
		}
	case OrderTypeStopLimit:
		if !r.Price.IsPositive() || !r.StopPrice.IsPositive() {
			problems = append(problems, "stop_limit order requires price and stop_price")
		}
	default:
		problems = append(problems, fmt.Sprintf("type %q is invalid", r.Type))
	}
	switch r.TimeInForce {
	case "", TimeInForceGTC, TimeInForceIOC, TimeInForceFOK, TimeInForceDay:
	default:
		problems = append(problems, fmt.Sprintf("time_in_force %q is invalid", r.TimeInForce))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", correlation.ErrInvalidRequest, strings.Join(problems, "; "))
	}
	return nil
}

// CancelRequest identifies an order by client order id or venue order id.
type CancelRequest struct {
	Account       string          `json:"account,omitempty"`
	ClientOrderID string          `json:"client_order_id,omitempty"`
	OrderID       string          `json:"order_id,omitempty"`
	Symbol        string          `json:"symbol"`
	Side          Side            `json:"side,omitempty"`
	Quantity      decimal.Decimal `json:"quantity"`
}

func (r CancelRequest) Validate() error {
	if r.ClientOrderID == "" && r.OrderID == "" {
		return fmt.Errorf("%w: client_order_id or order_id is required", correlation.ErrInvalidRequest)
	}
	if strings.TrimSpace(r.Symbol) == "" {
		return fmt.Errorf("%w: symbol is required", correlation.ErrInvalidRequest)
	}
	return nil
}

// ExecutionResult is the terminal (or accepted) state of an order or cancel.
type ExecutionResult struct {
	ClientOrderID string          `json:"client_order_id"`
	OrderID       string          `json:"order_id"`
	Symbol        string          `json:"symbol"`
	Side          Side            `json:"side,omitempty"`
	Status        OrderStatus     `json:"status"`
	Quantity      decimal.Decimal `json:"quantity"`
	FilledQty     decimal.Decimal `json:"filled_qty"`
	LeavesQty     decimal.Decimal `json:"leaves_qty"`
	AvgPrice      decimal.Decimal `json:"avg_price"`
	Text          string          `json:"text,omitempty"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type PositionQuery struct {
	Account string `json:"account,omitempty"`
	Symbol  string `json:"symbol,omitempty"`
}

// Position is a net position on one instrument.
type Position struct {
	Account       string          `json:"account,omitempty"`
	Symbol        string          `json:"symbol"`
	LongQty       decimal.Decimal `json:"long_qty"`
	ShortQty      decimal.Decimal `json:"short_qty"`
	NetQty        decimal.Decimal `json:"net_qty"`
	EntryPrice    decimal.Decimal `json:"entry_price"`
	MarkPrice     decimal.Decimal `json:"mark_price"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
}

type CollateralQuery struct {
	Account  string `json:"account,omitempty"`
	Currency string `json:"currency,omitempty"`
}

// Collateral is the balance held in one currency.
type Collateral struct {
	Account   string          `json:"account,omitempty"`
	Currency  string          `json:"currency"`
	Total     decimal.Decimal `json:"total"`
	Available decimal.Decimal `json:"available"`
	Used      decimal.Decimal `json:"used"`
}

// SessionStatus describes a stateful venue session.
type SessionStatus struct {
	Venue         string         `json:"venue"`
	State         string         `json:"state"`
	Session       string         `json:"session,omitempty"`
	PendingFrames int            `json:"pending_frames"`
	Pending       map[string]int `json:"pending,omitempty"`
}
