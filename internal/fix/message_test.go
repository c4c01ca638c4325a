package fix_test

import (
	"testing"

	"github.com/quickfixgo/enum"
	"github.com/quickfixgo/quickfix"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"exconnector/internal/fix"
	"exconnector/internal/fix/fixtest"
)

func TestDecode_ExecutionReport(t *testing.T) {
	msg := fixtest.ExecutionReport("cl-1", enum.OrdStatus_PARTIALLY_FILLED,
		fixtest.With(fix.TagCumQty, "0.25"),
		fixtest.With(fix.TagAvgPx, "101.5"),
		fixtest.With(fix.TagSymbol, "ETH-USD"),
	)
	msg.Header.SetInt(fix.TagMsgSeqNum, 17)

	in := fix.Decode(msg)
	rpt, ok := in.(fix.ExecutionReport)
	require.True(t, ok)
	assert.Equal(t, "cl-1", rpt.ClOrdID)
	assert.Equal(t, "V-cl-1", rpt.OrderID)
	assert.Equal(t, string(enum.OrdStatus_PARTIALLY_FILLED), rpt.OrdStatus)
	assert.Equal(t, "ETH-USD", rpt.Symbol)
	assert.True(t, rpt.CumQty.Equal(decimal.RequireFromString("0.25")))
	assert.True(t, rpt.AvgPx.Equal(decimal.RequireFromString("101.5")))
	assert.Equal(t, 17, rpt.Frame().SeqNum)
	assert.False(t, rpt.TransactTime.IsZero())
}

func TestDecode_Kinds(t *testing.T) {
	cases := []struct {
		name string
		msg  *quickfix.Message
		want any
	}{
		{"cancel reject", fixtest.CancelReject("c", "o", "late"), fix.OrderCancelReject{}},
		{"position ack", fixtest.PositionAck("p", 2, 0, 0), fix.PositionAck{}},
		{"position report", fixtest.PositionReport("p", "BTC", "3", "1"), fix.PositionReport{}},
		{"collateral ack", fixtest.CollateralAck("q", 1, 0, 0), fix.CollateralAck{}},
		{"collateral report", fixtest.CollateralReport("q", "USD", "1000"), fix.CollateralReport{}},
		{"session reject", fixtest.SessionReject(4, "bad tag"), fix.SessionReject{}},
		{"business reject", fixtest.BusinessReject(4, "unsupported"), fix.BusinessReject{}},
		{"logout", fixtest.Logout("bye"), fix.Unsupported{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.IsType(t, tc.want, fix.Decode(tc.msg))
		})
	}
}

func TestDecode_PositionReportFlatFields(t *testing.T) {
	rpt := fix.Decode(fixtest.PositionReport("p-1", "BTC-PERP", "5", "2")).(fix.PositionReport)
	assert.Equal(t, "p-1", rpt.PosReqID)
	assert.Equal(t, "BTC-PERP", rpt.Symbol)
	assert.True(t, rpt.NetQty().Equal(decimal.NewFromInt(3)))
}

func TestDecode_RejectsCarryReference(t *testing.T) {
	sr := fix.Decode(fixtest.SessionReject(9, "value out of range")).(fix.SessionReject)
	assert.Equal(t, 9, sr.RefSeqNum)
	assert.Contains(t, sr.Reason(), "value out of range")

	br := fix.Decode(fixtest.BusinessReject(11, "unsupported message")).(fix.BusinessReject)
	assert.Equal(t, 11, br.RefSeqNum)
	assert.Contains(t, br.Reason(), "unsupported message")
}

func TestDecode_MalformedNumbersAreZero(t *testing.T) {
	msg := fixtest.ExecutionReport("cl-2", enum.OrdStatus_NEW, fixtest.With(fix.TagCumQty, "abc"))
	rpt := fix.Decode(msg).(fix.ExecutionReport)
	assert.True(t, rpt.CumQty.IsZero())
}
