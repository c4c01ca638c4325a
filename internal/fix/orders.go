package fix

import (
	"context"

	"github.com/quickfixgo/enum"
	"github.com/quickfixgo/quickfix"

	"exconnector/internal/correlation"
	"exconnector/internal/logger"
)

const (
	KindOrder  = "order"
	KindCancel = "cancel"
)

type ordOutcome int

const (
	ordUnknown ordOutcome = iota
	ordPending
	ordSuccess
	ordFailure
)

// classifyOrdStatus maps OrdStatus (39) onto the single-terminal-message policy.
func classifyOrdStatus(status string, acceptOnNew bool) ordOutcome {
	switch enum.OrdStatus(status) {
	case enum.OrdStatus_FILLED, enum.OrdStatus_CANCELED, enum.OrdStatus_EXPIRED, enum.OrdStatus_DONE_FOR_DAY:
		return ordSuccess
	case enum.OrdStatus_REJECTED:
		return ordFailure
	case enum.OrdStatus_NEW:
		if acceptOnNew {
			return ordSuccess
		}
		return ordPending
	case enum.OrdStatus_PENDING_NEW, enum.OrdStatus_PARTIALLY_FILLED, enum.OrdStatus_PENDING_CANCEL,
		enum.OrdStatus_PENDING_REPLACE, enum.OrdStatus_REPLACED, enum.OrdStatus_CALCULATED,
		enum.OrdStatus_STOPPED, enum.OrdStatus_SUSPENDED, enum.OrdStatus_ACCEPTED_FOR_BIDDING:
		return ordPending
	}
	return ordUnknown
}

// OrderRequest tracks one NewOrderSingle or OrderCancelRequest until a terminal execution report.
type OrderRequest struct {
	*correlation.Machine[ExecutionReport]
	kind        string
	msg         *quickfix.Message
	acceptOnNew bool
}

func newOrderRequest(ctx context.Context, kind, id string, msg *quickfix.Message, acceptOnNew bool) *OrderRequest {
	return &OrderRequest{
		Machine:     correlation.NewMachine[ExecutionReport](ctx, id),
		kind:        kind,
		msg:         msg,
		acceptOnNew: acceptOnNew,
	}
}

func (r *OrderRequest) Kind() string               { return r.kind }
func (r *OrderRequest) Message() *quickfix.Message { return r.msg }

func (r *OrderRequest) ProcessResponse(in Inbound) {
	if r.Completed() {
		return
	}
	switch m := in.(type) {
	case ExecutionReport:
		switch classifyOrdStatus(m.OrdStatus, r.acceptOnNew) {
		case ordSuccess:
			r.Complete(m)
		case ordFailure:
			r.Reject(joinReason("order rejected", m.OrdRejReason, m.Text))
		case ordPending:
			r.Progress()
		default:
			logger.Warnf("fix: %s %s unrecognised OrdStatus %q ignored", r.kind, r.ID(), m.OrdStatus)
		}
	case OrderCancelReject:
		r.Reject(m.Reason())
	}
}

func routeOrders(in Inbound) (string, bool) {
	switch m := in.(type) {
	case ExecutionReport:
		return m.ClOrdID, true
	case OrderCancelReject:
		return m.ClOrdID, true
	}
	return "", false
}

func newOrderHandler() *correlation.Handler[*OrderRequest, Inbound] {
	return correlation.NewHandler[*OrderRequest, Inbound]("orders", routeOrders)
}
