package fix

import (
	"errors"
	"time"

	"github.com/quickfixgo/enum"
	"github.com/quickfixgo/field"
	"github.com/quickfixgo/quickfix"
	"github.com/shopspring/decimal"
)

// OrderSpec describes a NewOrderSingle.
type OrderSpec struct {
	Account     string
	Symbol      string
	Side        enum.Side
	OrdType     enum.OrdType
	TimeInForce enum.TimeInForce
	Quantity    decimal.Decimal
	Price       decimal.Decimal
	StopPrice   decimal.Decimal
	// AcceptOnNew completes the request on the first New status instead of
	// waiting for a fill, for orders expected to rest on the book.
	AcceptOnNew bool
}

func (s OrderSpec) Validate() error {
	if s.Symbol == "" {
		return errors.New("order symbol is required")
	}
	if s.Side == "" {
		return errors.New("order side is required")
	}
	if !s.Quantity.IsPositive() {
		return errors.New("order quantity must be positive")
	}
	switch s.OrdType {
	case enum.OrdType_LIMIT, enum.OrdType_STOP_LIMIT:
		if !s.Price.IsPositive() {
			return errors.New("limit order requires a positive price")
		}
	}
	switch s.OrdType {
	case enum.OrdType_STOP, enum.OrdType_STOP_LIMIT:
		if !s.StopPrice.IsPositive() {
			return errors.New("stop order requires a positive stop price")
		}
	}
	return nil
}

// ImmediateOnly reports whether the order never rests on the book.
func (s OrderSpec) ImmediateOnly() bool {
	return s.TimeInForce == enum.TimeInForce_FILL_OR_KILL || s.TimeInForce == enum.TimeInForce_IMMEDIATE_OR_CANCEL
}

func (s OrderSpec) build(clOrdID string, now time.Time) *quickfix.Message {
	msg := newMessage(MsgTypeNewOrderSingle)
	msg.Body.Set(field.NewClOrdID(clOrdID))
	if s.Account != "" {
		msg.Body.Set(field.NewAccount(s.Account))
	}
	msg.Body.Set(field.NewSymbol(s.Symbol))
	msg.Body.Set(field.NewSide(s.Side))
	ordType := s.OrdType
	if ordType == "" {
		ordType = enum.OrdType_MARKET
	}
	msg.Body.Set(field.NewOrdType(ordType))
	if s.TimeInForce != "" {
		msg.Body.Set(field.NewTimeInForce(s.TimeInForce))
	}
	msg.Body.SetString(TagOrderQty, s.Quantity.String())
	if s.Price.IsPositive() {
		msg.Body.SetString(TagPrice, s.Price.String())
	}
	if s.StopPrice.IsPositive() {
		msg.Body.SetString(TagStopPx, s.StopPrice.String())
	}
	msg.Body.Set(field.NewTransactTime(now.UTC()))
	return msg
}

// CancelSpec describes an OrderCancelRequest for a previously placed order.
type CancelSpec struct {
	OrigClOrdID string
	OrderID     string
	Account     string
	Symbol      string
	Side        enum.Side
	Quantity    decimal.Decimal
}

func (s CancelSpec) Validate() error {
	if s.OrigClOrdID == "" && s.OrderID == "" {
		return errors.New("cancel requires the original client order id or the order id")
	}
	if s.Symbol == "" {
		return errors.New("cancel symbol is required")
	}
	return nil
}

func (s CancelSpec) build(clOrdID string, now time.Time) *quickfix.Message {
	msg := newMessage(MsgTypeOrderCancelRequest)
	msg.Body.Set(field.NewClOrdID(clOrdID))
	if s.OrigClOrdID != "" {
		msg.Body.Set(field.NewOrigClOrdID(s.OrigClOrdID))
	}
	if s.OrderID != "" {
		msg.Body.Set(field.NewOrderID(s.OrderID))
	}
	if s.Account != "" {
		msg.Body.Set(field.NewAccount(s.Account))
	}
	msg.Body.Set(field.NewSymbol(s.Symbol))
	if s.Side != "" {
		msg.Body.Set(field.NewSide(s.Side))
	}
	if s.Quantity.IsPositive() {
		msg.Body.SetString(TagOrderQty, s.Quantity.String())
	}
	msg.Body.Set(field.NewTransactTime(now.UTC()))
	return msg
}

// PositionInquiry describes a RequestForPositions.
type PositionInquiry struct {
	Account string
	Symbol  string
}

func (q PositionInquiry) build(posReqID string, now time.Time) *quickfix.Message {
	msg := newMessage(MsgTypeRequestForPositions)
	msg.Body.SetString(TagPosReqID, posReqID)
	msg.Body.SetString(TagPosReqType, posReqTypePositions)
	if q.Account != "" {
		msg.Body.Set(field.NewAccount(q.Account))
	}
	if q.Symbol != "" {
		msg.Body.Set(field.NewSymbol(q.Symbol))
	}
	msg.Body.SetString(TagClearingBusinessDate, now.UTC().Format(dateLayout))
	msg.Body.Set(field.NewTransactTime(now.UTC()))
	return msg
}

// CollateralInquiry describes a CollateralInquiry.
type CollateralInquiry struct {
	Account  string
	Currency string
}

func (q CollateralInquiry) build(inquiryID string, now time.Time) *quickfix.Message {
	msg := newMessage(MsgTypeCollateralInquiry)
	msg.Body.SetString(TagCollInquiryID, inquiryID)
	if q.Account != "" {
		msg.Body.Set(field.NewAccount(q.Account))
	}
	if q.Currency != "" {
		msg.Body.SetString(TagCurrency, q.Currency)
	}
	msg.Body.Set(field.NewTransactTime(now.UTC()))
	return msg
}

func newMessage(msgType string) *quickfix.Message {
	msg := quickfix.NewMessage()
	msg.Header.SetString(TagMsgType, msgType)
	return msg
}
