package fix

import (
	"context"

	"github.com/quickfixgo/quickfix"

	"exconnector/internal/correlation"
)

const KindPositions = "positions"

// PositionRequest collects the position reports announced by a PositionAck.
type PositionRequest struct {
	*correlation.FanIn[PositionReport]
	msg *quickfix.Message
}

func newPositionRequest(ctx context.Context, id string, msg *quickfix.Message) *PositionRequest {
	return &PositionRequest{FanIn: correlation.NewFanIn[PositionReport](ctx, id), msg: msg}
}

func (r *PositionRequest) Kind() string               { return KindPositions }
func (r *PositionRequest) Message() *quickfix.Message { return r.msg }

func (r *PositionRequest) ProcessResponse(in Inbound) {
	switch m := in.(type) {
	case PositionAck:
		if m.Rejected() {
			r.AckRejected(m.Reason())
			return
		}
		r.Ack(m.Count())
	case PositionReport:
		r.Add(m)
	}
}

func routePositions(in Inbound) (string, bool) {
	switch m := in.(type) {
	case PositionAck:
		return m.PosReqID, true
	case PositionReport:
		return m.PosReqID, true
	}
	return "", false
}

func newPositionHandler() *correlation.Handler[*PositionRequest, Inbound] {
	return correlation.NewHandler[*PositionRequest, Inbound]("positions", routePositions)
}
