package fix

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/quickfixgo/quickfix"
	"github.com/shopspring/decimal"
)

// Inbound is the closed set of inbound message kinds the connector routes.
type Inbound interface {
	Frame() Meta
	inbound()
}

// Meta is the header data shared by every inbound kind.
type Meta struct {
	MsgType string
	SeqNum  int
}

func (m Meta) Frame() Meta { return m }
func (Meta) inbound()      {}

// ExecutionReport is an order lifecycle update (35=8).
type ExecutionReport struct {
	Meta
	ClOrdID      string
	OrigClOrdID  string
	OrderID      string
	ExecID       string
	ExecType     string
	OrdStatus    string
	Symbol       string
	Side         string
	OrderQty     decimal.Decimal
	Price        decimal.Decimal
	CumQty       decimal.Decimal
	LeavesQty    decimal.Decimal
	LastQty      decimal.Decimal
	LastPx       decimal.Decimal
	AvgPx        decimal.Decimal
	OrdRejReason string
	Text         string
	TransactTime time.Time
}

// OrderCancelReject answers a cancel request that the venue refused (35=9).
type OrderCancelReject struct {
	Meta
	ClOrdID      string
	OrigClOrdID  string
	OrderID      string
	OrdStatus    string
	CxlRejReason string
	Text         string
}

func (r OrderCancelReject) Reason() string {
	return joinReason("cancel rejected", r.CxlRejReason, r.Text)
}

// PositionAck announces how many position reports follow (35=AO).
type PositionAck struct {
	Meta
	PosReqID string
	Total    int
	Result   int
	Status   int
	Text     string
}

// Rejected reports whether the venue refused the inquiry. A result of
// "no positions found" is treated as an empty answer.
func (a PositionAck) Rejected() bool {
	if a.Status == posReqStatusRejected {
		return true
	}
	return a.Result != posReqResultValid && a.Result != posReqResultNoPositions
}

func (a PositionAck) Count() int {
	if a.Result == posReqResultNoPositions {
		return 0
	}
	return a.Total
}

func (a PositionAck) Reason() string {
	return joinReason("position request rejected", fmt.Sprintf("result=%d status=%d", a.Result, a.Status), a.Text)
}

// PositionReport is one position (35=AP).
type PositionReport struct {
	Meta
	PosReqID      string
	PosMaintRptID string
	Account       string
	Symbol        string
	Currency      string
	PosType       string
	LongQty       decimal.Decimal
	ShortQty      decimal.Decimal
	SettlPrice    decimal.Decimal
	ClearingDate  string
}

// NetQty is long minus short.
func (r PositionReport) NetQty() decimal.Decimal {
	return r.LongQty.Sub(r.ShortQty)
}

// CollateralAck announces how many collateral reports follow (35=BG).
type CollateralAck struct {
	Meta
	CollInquiryID string
	Total         int
	Status        int
	Result        int
	Text          string
}

func (a CollateralAck) Rejected() bool {
	return a.Status == collInquiryStatusRejected || a.Result != collInquiryResultSuccess
}

func (a CollateralAck) Reason() string {
	return joinReason("collateral inquiry rejected", fmt.Sprintf("status=%d result=%d", a.Status, a.Result), a.Text)
}

// CollateralReport is one collateral balance (35=BA).
type CollateralReport struct {
	Meta
	CollInquiryID   string
	CollRptID       string
	Account         string
	Currency        string
	CollStatus      string
	TotalNetValue   decimal.Decimal
	CashOutstanding decimal.Decimal
	MarginExcess    decimal.Decimal
}

// SessionReject is a session-level reject of one outbound frame (35=3).
type SessionReject struct {
	Meta
	RefSeqNum  int
	RefTagID   string
	RefMsgType string
	ReasonCode string
	Text       string
}

func (r SessionReject) Reason() string {
	return joinReason("session reject", r.ReasonCode, r.Text)
}

// BusinessReject is an application-level reject of one outbound frame (35=j).
type BusinessReject struct {
	Meta
	RefSeqNum  int
	RefMsgType string
	RefID      string
	ReasonCode string
	Text       string
}

func (r BusinessReject) Reason() string {
	return joinReason("business reject", r.ReasonCode, r.Text)
}

// Unsupported is any message type the connector does not route.
type Unsupported struct {
	Meta
}

type fieldReader interface {
	GetString(tag quickfix.Tag) (string, quickfix.MessageRejectError)
	Has(tag quickfix.Tag) bool
}

// Decode converts msg into its Inbound kind. Malformed numeric fields decode as zero.
func Decode(msg *quickfix.Message) Inbound {
	msgType, _ := msg.Header.GetString(TagMsgType)
	meta := Meta{MsgType: msgType, SeqNum: intField(&msg.Header, TagMsgSeqNum)}
	body := &msg.Body

	switch msgType {
	case MsgTypeExecutionReport:
		return ExecutionReport{
			Meta:         meta,
			ClOrdID:      str(body, TagClOrdID),
			OrigClOrdID:  str(body, TagOrigClOrdID),
			OrderID:      str(body, TagOrderID),
			ExecID:       str(body, TagExecID),
			ExecType:     str(body, TagExecType),
			OrdStatus:    str(body, TagOrdStatus),
			Symbol:       str(body, TagSymbol),
			Side:         str(body, TagSide),
			OrderQty:     dec(body, TagOrderQty),
			Price:        dec(body, TagPrice),
			CumQty:       dec(body, TagCumQty),
			LeavesQty:    dec(body, TagLeavesQty),
			LastQty:      dec(body, TagLastQty),
			LastPx:       dec(body, TagLastPx),
			AvgPx:        dec(body, TagAvgPx),
			OrdRejReason: str(body, TagOrdRejReason),
			Text:         str(body, TagText),
			TransactTime: timestamp(body, TagTransactTime),
		}
	case MsgTypeOrderCancelReject:
		return OrderCancelReject{
			Meta:         meta,
			ClOrdID:      str(body, TagClOrdID),
			OrigClOrdID:  str(body, TagOrigClOrdID),
			OrderID:      str(body, TagOrderID),
			OrdStatus:    str(body, TagOrdStatus),
			CxlRejReason: str(body, TagCxlRejReason),
			Text:         str(body, TagText),
		}
	case MsgTypePositionAck:
		return PositionAck{
			Meta:     meta,
			PosReqID: str(body, TagPosReqID),
			Total:    intField(body, TagTotalNumPosReports),
			Result:   intField(body, TagPosReqResult),
			Status:   intField(body, TagPosReqStatus),
			Text:     str(body, TagText),
		}
	case MsgTypePositionReport:
		return decodePositionReport(meta, msg)
	case MsgTypeCollateralAck:
		return CollateralAck{
			Meta:          meta,
			CollInquiryID: str(body, TagCollInquiryID),
			Total:         intField(body, TagTotNumReports),
			Status:        intField(body, TagCollInquiryStatus),
			Result:        intField(body, TagCollInquiryResult),
			Text:          str(body, TagText),
		}
	case MsgTypeCollateralReport:
		return CollateralReport{
			Meta:            meta,
			CollInquiryID:   str(body, TagCollInquiryID),
			CollRptID:       str(body, TagCollRptID),
			Account:         str(body, TagAccount),
			Currency:        str(body, TagCurrency),
			CollStatus:      str(body, TagCollStatus),
			TotalNetValue:   dec(body, TagTotalNetValue),
			CashOutstanding: dec(body, TagCashOutstanding),
			MarginExcess:    dec(body, TagMarginExcess),
		}
	case MsgTypeReject:
		return SessionReject{
			Meta:       meta,
			RefSeqNum:  intField(body, TagRefSeqNum),
			RefTagID:   str(body, TagRefTagID),
			RefMsgType: str(body, TagRefMsgType),
			ReasonCode: str(body, TagSessionRejectReason),
			Text:       str(body, TagText),
		}
	case MsgTypeBusinessReject:
		return BusinessReject{
			Meta:       meta,
			RefSeqNum:  intField(body, TagRefSeqNum),
			RefMsgType: str(body, TagRefMsgType),
			RefID:      str(body, TagBusinessRejectRefID),
			ReasonCode: str(body, TagBusinessRejectReason),
			Text:       str(body, TagText),
		}
	default:
		return Unsupported{Meta: meta}
	}
}

func decodePositionReport(meta Meta, msg *quickfix.Message) PositionReport {
	body := &msg.Body
	rpt := PositionReport{
		Meta:          meta,
		PosReqID:      str(body, TagPosReqID),
		PosMaintRptID: str(body, TagPosMaintRptID),
		Account:       str(body, TagAccount),
		Symbol:        str(body, TagSymbol),
		Currency:      str(body, TagCurrency),
		SettlPrice:    dec(body, TagSettlPrice),
		ClearingDate:  str(body, TagClearingBusinessDate),
	}
	group := quickfix.NewRepeatingGroup(TagNoPositions, quickfix.GroupTemplate{
		quickfix.GroupElement(TagPosType),
		quickfix.GroupElement(TagLongQty),
		quickfix.GroupElement(TagShortQty),
	})
	if body.Has(TagNoPositions) && body.GetGroup(group) == nil && group.Len() > 0 {
		for i := 0; i < group.Len(); i++ {
			g := group.Get(i)
			if rpt.PosType == "" {
				rpt.PosType = str(g, TagPosType)
			}
			rpt.LongQty = rpt.LongQty.Add(dec(g, TagLongQty))
			rpt.ShortQty = rpt.ShortQty.Add(dec(g, TagShortQty))
		}
		return rpt
	}
	rpt.PosType = str(body, TagPosType)
	rpt.LongQty = dec(body, TagLongQty)
	rpt.ShortQty = dec(body, TagShortQty)
	return rpt
}

func str(r fieldReader, tag quickfix.Tag) string {
	if !r.Has(tag) {
		return ""
	}
	v, err := r.GetString(tag)
	if err != nil {
		return ""
	}
	return v
}

func intField(r fieldReader, tag quickfix.Tag) int {
	v := strings.TrimSpace(str(r, tag))
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func dec(r fieldReader, tag quickfix.Tag) decimal.Decimal {
	v := strings.TrimSpace(str(r, tag))
	if v == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func timestamp(r fieldReader, tag quickfix.Tag) time.Time {
	v := str(r, tag)
	if v == "" {
		return time.Time{}
	}
	for _, layout := range []string{timestampLayout, "20060102-15:04:05", "20060102-15:04:05.000000", "20060102-15:04:05.000000000"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t
		}
	}
	return time.Time{}
}

func joinReason(prefix string, parts ...string) string {
	var b strings.Builder
	b.WriteString(prefix)
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		b.WriteString(": ")
		b.WriteString(p)
	}
	return b.String()
}
