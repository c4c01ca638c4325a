package fix

import (
	"context"

	"github.com/quickfixgo/quickfix"

	"exconnector/internal/correlation"
)

const KindCollateral = "collateral"

// CollateralRequest collects the collateral reports announced by a CollateralAck.
type CollateralRequest struct {
	*correlation.FanIn[CollateralReport]
	msg *quickfix.Message
}

func newCollateralRequest(ctx context.Context, id string, msg *quickfix.Message) *CollateralRequest {
	return &CollateralRequest{FanIn: correlation.NewFanIn[CollateralReport](ctx, id), msg: msg}
}

func (r *CollateralRequest) Kind() string               { return KindCollateral }
func (r *CollateralRequest) Message() *quickfix.Message { return r.msg }

func (r *CollateralRequest) ProcessResponse(in Inbound) {
	switch m := in.(type) {
	case CollateralAck:
		if m.Rejected() {
			r.AckRejected(m.Reason())
			return
		}
		r.Ack(m.Total)
	case CollateralReport:
		r.Add(m)
	}
}

func routeCollateral(in Inbound) (string, bool) {
	switch m := in.(type) {
	case CollateralAck:
		return m.CollInquiryID, true
	case CollateralReport:
		return m.CollInquiryID, true
	}
	return "", false
}

func newCollateralHandler() *correlation.Handler[*CollateralRequest, Inbound] {
	return correlation.NewHandler[*CollateralRequest, Inbound]("collateral", routeCollateral)
}
