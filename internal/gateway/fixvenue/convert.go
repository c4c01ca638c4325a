package fixvenue

import (
	"fmt"

	"github.com/quickfixgo/enum"

	"exconnector/internal/correlation"
	"exconnector/internal/fix"
	"exconnector/internal/gateway/exchange"
)

func toFIXSide(s exchange.Side) (enum.Side, error) {
	switch s {
	case exchange.SideBuy:
		return enum.Side_BUY, nil
	case exchange.SideSell:
		return enum.Side_SELL, nil
	case "":
		return "", nil
	}
	return "", fmt.Errorf("%w: side %q", correlation.ErrInvalidRequest, s)
}

func fromFIXSide(s string) exchange.Side {
	switch enum.Side(s) {
	case enum.Side_BUY:
		return exchange.SideBuy
	case enum.Side_SELL, enum.Side_SELL_SHORT:
		return exchange.SideSell
	}
	return ""
}

func toFIXOrdType(t exchange.OrderType) enum.OrdType {
	switch t {
	case exchange.OrderTypeLimit:
		return enum.OrdType_LIMIT
	case exchange.OrderTypeStop:
		return enum.OrdType_STOP
	case exchange.OrderTypeStopLimit:
		return enum.OrdType_STOP_LIMIT
	default:
		return enum.OrdType_MARKET
	}
}

func toFIXTimeInForce(tif exchange.TimeInForce) enum.TimeInForce {
	switch tif {
	case exchange.TimeInForceGTC:
		return enum.TimeInForce_GOOD_TILL_CANCEL
	case exchange.TimeInForceIOC:
		return enum.TimeInForce_IMMEDIATE_OR_CANCEL
	case exchange.TimeInForceFOK:
		return enum.TimeInForce_FILL_OR_KILL
	case exchange.TimeInForceDay:
		return enum.TimeInForce_DAY
	}
	return ""
}

func fromOrdStatus(s string) exchange.OrderStatus {
	switch enum.OrdStatus(s) {
	case enum.OrdStatus_NEW:
		return exchange.StatusNew
	case enum.OrdStatus_PARTIALLY_FILLED:
		return exchange.StatusPartiallyFilled
	case enum.OrdStatus_FILLED:
		return exchange.StatusFilled
	case enum.OrdStatus_CANCELED:
		return exchange.StatusCanceled
	case enum.OrdStatus_REJECTED:
		return exchange.StatusRejected
	case enum.OrdStatus_EXPIRED, enum.OrdStatus_DONE_FOR_DAY:
		return exchange.StatusExpired
	case enum.OrdStatus_PENDING_NEW, enum.OrdStatus_PENDING_CANCEL, enum.OrdStatus_PENDING_REPLACE,
		enum.OrdStatus_REPLACED, enum.OrdStatus_CALCULATED, enum.OrdStatus_STOPPED,
		enum.OrdStatus_SUSPENDED, enum.OrdStatus_ACCEPTED_FOR_BIDDING:
		return exchange.StatusPending
	}
	return exchange.StatusUnknown
}

func orderSpec(req exchange.OrderRequest, account string) (fix.OrderSpec, error) {
	side, err := toFIXSide(req.Side)
	if err != nil {
		return fix.OrderSpec{}, err
	}
	if req.Account != "" {
		account = req.Account
	}
	return fix.OrderSpec{
		Account:     account,
		Symbol:      req.Symbol,
		Side:        side,
		OrdType:     toFIXOrdType(req.Type),
		TimeInForce: toFIXTimeInForce(req.TimeInForce),
		Quantity:    req.Quantity,
		Price:       req.Price,
		StopPrice:   req.StopPrice,
		AcceptOnNew: req.AcceptOnNew,
	}, nil
}

func cancelSpec(req exchange.CancelRequest, account string) (fix.CancelSpec, error) {
	side, err := toFIXSide(req.Side)
	if err != nil {
		return fix.CancelSpec{}, err
	}
	if req.Account != "" {
		account = req.Account
	}
	return fix.CancelSpec{
		OrigClOrdID: req.ClientOrderID,
		OrderID:     req.OrderID,
		Account:     account,
		Symbol:      req.Symbol,
		Side:        side,
		Quantity:    req.Quantity,
	}, nil
}

func executionResult(er fix.ExecutionReport) exchange.ExecutionResult {
	return exchange.ExecutionResult{
		ClientOrderID: er.ClOrdID,
		OrderID:       er.OrderID,
		Symbol:        er.Symbol,
		Side:          fromFIXSide(er.Side),
		Status:        fromOrdStatus(er.OrdStatus),
		Quantity:      er.OrderQty,
		FilledQty:     er.CumQty,
		LeavesQty:     er.LeavesQty,
		AvgPrice:      er.AvgPx,
		Text:          er.Text,
		UpdatedAt:     er.TransactTime,
	}
}

func position(r fix.PositionReport) exchange.Position {
	return exchange.Position{
		Account:   r.Account,
		Symbol:    r.Symbol,
		LongQty:   r.LongQty,
		ShortQty:  r.ShortQty,
		NetQty:    r.NetQty(),
		MarkPrice: r.SettlPrice,
	}
}

func collateral(r fix.CollateralReport) exchange.Collateral {
	available := r.MarginExcess
	if available.IsZero() {
		available = r.TotalNetValue.Sub(r.CashOutstanding)
	}
	return exchange.Collateral{
		Account:   r.Account,
		Currency:  r.Currency,
		Total:     r.TotalNetValue,
		Available: available,
		Used:      r.CashOutstanding,
	}
}
