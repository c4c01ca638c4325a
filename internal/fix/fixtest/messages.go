package fixtest

import (
	"strconv"
	"time"

	"github.com/quickfixgo/enum"
	"github.com/quickfixgo/field"
	"github.com/quickfixgo/quickfix"

	"exconnector/internal/fix"
)

type fieldGetter interface {
	GetString(tag quickfix.Tag) (string, quickfix.MessageRejectError)
}

// Field reads tag from a header or body, returning "" when absent.
func Field(m fieldGetter, tag quickfix.Tag) string {
	v, err := m.GetString(tag)
	if err != nil {
		return ""
	}
	return v
}

// ClOrdID returns the client order id stamped into an outbound order or cancel.
func ClOrdID(s Sent) string { return Field(&s.Msg.Body, fix.TagClOrdID) }

// PosReqID returns the id stamped into a RequestForPositions.
func PosReqID(s Sent) string { return Field(&s.Msg.Body, fix.TagPosReqID) }

// CollInquiryID returns the id stamped into a CollateralInquiry.
func CollInquiryID(s Sent) string { return Field(&s.Msg.Body, fix.TagCollInquiryID) }

// Opt adds fields to a built message.
type Opt func(*quickfix.Message)

func With(tag quickfix.Tag, value string) Opt {
	return func(m *quickfix.Message) { m.Body.SetString(tag, value) }
}

func build(msgType string, opts []Opt) *quickfix.Message {
	m := quickfix.NewMessage()
	m.Header.SetString(fix.TagMsgType, msgType)
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func ExecutionReport(clOrdID string, status enum.OrdStatus, opts ...Opt) *quickfix.Message {
	m := quickfix.NewMessage()
	m.Header.Set(field.NewMsgType(enum.MsgType_EXECUTION_REPORT))
	m.Body.Set(field.NewClOrdID(clOrdID))
	m.Body.Set(field.NewOrderID("V-" + clOrdID))
	m.Body.Set(field.NewOrdStatus(status))
	m.Body.Set(field.NewExecType(enum.ExecType(status)))
	m.Body.Set(field.NewTransactTime(time.Now().UTC()))
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func CancelReject(clOrdID, origClOrdID, text string) *quickfix.Message {
	return build(fix.MsgTypeOrderCancelReject, []Opt{
		With(fix.TagClOrdID, clOrdID),
		With(fix.TagOrigClOrdID, origClOrdID),
		With(fix.TagOrdStatus, string(enum.OrdStatus_FILLED)),
		With(fix.TagCxlRejReason, "0"),
		With(fix.TagText, text),
	})
}

func PositionAck(posReqID string, total, result, status int) *quickfix.Message {
	return build(fix.MsgTypePositionAck, []Opt{
		With(fix.TagPosReqID, posReqID),
		With(fix.TagTotalNumPosReports, strconv.Itoa(total)),
		With(fix.TagPosReqResult, strconv.Itoa(result)),
		With(fix.TagPosReqStatus, strconv.Itoa(status)),
	})
}

func PositionReport(posReqID, symbol, longQty, shortQty string) *quickfix.Message {
	return build(fix.MsgTypePositionReport, []Opt{
		With(fix.TagPosReqID, posReqID),
		With(fix.TagSymbol, symbol),
		With(fix.TagLongQty, longQty),
		With(fix.TagShortQty, shortQty),
	})
}

func CollateralAck(inquiryID string, total, status, result int) *quickfix.Message {
	return build(fix.MsgTypeCollateralAck, []Opt{
		With(fix.TagCollInquiryID, inquiryID),
		With(fix.TagTotNumReports, strconv.Itoa(total)),
		With(fix.TagCollInquiryStatus, strconv.Itoa(status)),
		With(fix.TagCollInquiryResult, strconv.Itoa(result)),
	})
}

func CollateralReport(inquiryID, currency, netValue string, opts ...Opt) *quickfix.Message {
	return build(fix.MsgTypeCollateralReport, append([]Opt{
		With(fix.TagCollInquiryID, inquiryID),
		With(fix.TagCurrency, currency),
		With(fix.TagTotalNetValue, netValue),
	}, opts...))
}

func SessionReject(refSeqNum int, text string) *quickfix.Message {
	return build(fix.MsgTypeReject, []Opt{
		With(fix.TagRefSeqNum, strconv.Itoa(refSeqNum)),
		With(fix.TagSessionRejectReason, "5"),
		With(fix.TagText, text),
	})
}

func BusinessReject(refSeqNum int, text string) *quickfix.Message {
	return build(fix.MsgTypeBusinessReject, []Opt{
		With(fix.TagRefSeqNum, strconv.Itoa(refSeqNum)),
		With(fix.TagBusinessRejectReason, "3"),
		With(fix.TagText, text),
	})
}

func Logout(text string) *quickfix.Message {
	return build(fix.MsgTypeLogout, []Opt{With(fix.TagText, text)})
}
