package fix

import "github.com/quickfixgo/quickfix"

// Field tags used by the connector.
const (
	TagAccount              quickfix.Tag = 1
	TagAvgPx                quickfix.Tag = 6
	TagClOrdID              quickfix.Tag = 11
	TagCumQty               quickfix.Tag = 14
	TagCurrency             quickfix.Tag = 15
	TagExecID               quickfix.Tag = 17
	TagLastPx               quickfix.Tag = 31
	TagLastQty              quickfix.Tag = 32
	TagMsgSeqNum            quickfix.Tag = 34
	TagMsgType              quickfix.Tag = 35
	TagOrderID              quickfix.Tag = 37
	TagOrderQty             quickfix.Tag = 38
	TagOrdStatus            quickfix.Tag = 39
	TagOrdType              quickfix.Tag = 40
	TagOrigClOrdID          quickfix.Tag = 41
	TagPrice                quickfix.Tag = 44
	TagRefSeqNum            quickfix.Tag = 45
	TagSide                 quickfix.Tag = 54
	TagSymbol               quickfix.Tag = 55
	TagText                 quickfix.Tag = 58
	TagTimeInForce          quickfix.Tag = 59
	TagTransactTime         quickfix.Tag = 60
	TagStopPx               quickfix.Tag = 99
	TagCxlRejReason         quickfix.Tag = 102
	TagOrdRejReason         quickfix.Tag = 103
	TagExecType             quickfix.Tag = 150
	TagLeavesQty            quickfix.Tag = 151
	TagRefTagID             quickfix.Tag = 371
	TagRefMsgType           quickfix.Tag = 372
	TagSessionRejectReason  quickfix.Tag = 373
	TagBusinessRejectRefID  quickfix.Tag = 379
	TagBusinessRejectReason quickfix.Tag = 380
	TagCxlRejResponseTo     quickfix.Tag = 434
	TagUsername             quickfix.Tag = 553
	TagPassword             quickfix.Tag = 554
	TagNoPositions          quickfix.Tag = 702
	TagPosType              quickfix.Tag = 703
	TagLongQty              quickfix.Tag = 704
	TagShortQty             quickfix.Tag = 705
	TagPosReqID             quickfix.Tag = 710
	TagClearingBusinessDate quickfix.Tag = 715
	TagPosMaintRptID        quickfix.Tag = 721
	TagPosReqType           quickfix.Tag = 724
	TagTotalNumPosReports   quickfix.Tag = 727
	TagPosReqResult         quickfix.Tag = 728
	TagPosReqStatus         quickfix.Tag = 729
	TagSettlPrice           quickfix.Tag = 730
	TagMarginExcess         quickfix.Tag = 899
	TagTotalNetValue        quickfix.Tag = 900
	TagCashOutstanding      quickfix.Tag = 901
	TagCollRptID            quickfix.Tag = 908
	TagCollInquiryID        quickfix.Tag = 909
	TagCollStatus           quickfix.Tag = 910
	TagTotNumReports        quickfix.Tag = 911
	TagCollInquiryStatus    quickfix.Tag = 945
	TagCollInquiryResult    quickfix.Tag = 946
)

// Message types.
const (
	MsgTypeHeartbeat           = "0"
	MsgTypeTestRequest         = "1"
	MsgTypeResendRequest       = "2"
	MsgTypeReject              = "3"
	MsgTypeSequenceReset       = "4"
	MsgTypeLogout              = "5"
	MsgTypeExecutionReport     = "8"
	MsgTypeOrderCancelReject   = "9"
	MsgTypeLogon               = "A"
	MsgTypeNewOrderSingle      = "D"
	MsgTypeOrderCancelRequest  = "F"
	MsgTypeBusinessReject      = "j"
	MsgTypeRequestForPositions = "AN"
	MsgTypePositionAck         = "AO"
	MsgTypePositionReport      = "AP"
	MsgTypeCollateralReport    = "BA"
	MsgTypeCollateralInquiry   = "BB"
	MsgTypeCollateralAck       = "BG"
)

const (
	posReqTypePositions     = "0"
	posReqResultValid       = 0
	posReqResultNoPositions = 2
	posReqStatusRejected    = 2

	collInquiryStatusRejected = 4
	collInquiryResultSuccess  = 0

	timestampLayout = "20060102-15:04:05.000"
	dateLayout      = "20060102"
)

// IsAdmin reports whether msgType is a session-level message type.
func IsAdmin(msgType string) bool {
	switch msgType {
	case MsgTypeHeartbeat, MsgTypeTestRequest, MsgTypeResendRequest, MsgTypeReject,
		MsgTypeSequenceReset, MsgTypeLogout, MsgTypeLogon:
		return true
	}
	return false
}
