package fixvenue_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/quickfixgo/enum"
	"github.com/quickfixgo/quickfix"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"exconnector/internal/correlation"
	"exconnector/internal/fix"
	"exconnector/internal/fix/fixtest"
	"exconnector/internal/gateway/exchange"
	"exconnector/internal/gateway/fixvenue"
	"exconnector/internal/store/ledger"
)

const wait = 2 * time.Second

type lateCounter struct {
	mu       sync.Mutex
	outcomes []string
}

func (l *lateCounter) LateCompletion(_, outcome string) {
	l.mu.Lock()
	l.outcomes = append(l.outcomes, outcome)
	l.mu.Unlock()
}

func (l *lateCounter) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.outcomes...)
}

func openLedger(t *testing.T) *ledger.Store {
	t.Helper()
	store, err := ledger.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newVenue(t *testing.T, cfg fixvenue.Config, deps fixvenue.Deps) (*fixvenue.Venue, *fixtest.Transport) {
	t.Helper()
	tr := fixtest.NewTransport()
	v := fixvenue.New(tr, fix.Options{IDs: correlation.NewSequenceGenerator("t")}, cfg, deps)
	require.NoError(t, v.Connect(context.Background()))
	t.Cleanup(v.Close)
	return v, tr
}

func btcLimit() exchange.OrderRequest {
	return exchange.OrderRequest{
		Symbol:      "BTC-USD",
		Side:        exchange.SideBuy,
		Type:        exchange.OrderTypeLimit,
		TimeInForce: exchange.TimeInForceGTC,
		Quantity:    decimal.NewFromInt(2),
		Price:       decimal.NewFromInt(30000),
	}
}

func TestVenue_PlaceOrderConvertsBothWays(t *testing.T) {
	v, tr := newVenue(t, fixvenue.Config{Name: "primary", Account: "ACC-1"}, fixvenue.Deps{})
	tr.AutoReply = func(s fixtest.Sent) []*quickfix.Message {
		return []*quickfix.Message{fixtest.ExecutionReport(fixtest.ClOrdID(s), enum.OrdStatus_FILLED,
			fixtest.With(fix.TagSymbol, "BTC-USD"),
			fixtest.With(fix.TagSide, string(enum.Side_BUY)),
			fixtest.With(fix.TagCumQty, "2"),
			fixtest.With(fix.TagAvgPx, "29999.5"),
		)}
	}

	res, err := v.PlaceOrder(context.Background(), btcLimit())
	require.NoError(t, err)
	assert.Equal(t, exchange.StatusFilled, res.Status)
	assert.Equal(t, exchange.SideBuy, res.Side)
	assert.True(t, decimal.RequireFromString("29999.5").Equal(res.AvgPrice))
	assert.True(t, decimal.NewFromInt(2).Equal(res.FilledQty))
	assert.NotEmpty(t, res.ClientOrderID)

	sent := tr.Sent()
	require.Len(t, sent, 1)
	body := &sent[0].Msg.Body
	assert.Equal(t, fix.MsgTypeNewOrderSingle, sent[0].MsgType())
	assert.Equal(t, "ACC-1", fixtest.Field(body, fix.TagAccount))
	assert.Equal(t, string(enum.Side_BUY), fixtest.Field(body, fix.TagSide))
	assert.Equal(t, string(enum.OrdType_LIMIT), fixtest.Field(body, fix.TagOrdType))
	assert.Equal(t, string(enum.TimeInForce_GOOD_TILL_CANCEL), fixtest.Field(body, fix.TagTimeInForce))
	assert.Equal(t, "30000", fixtest.Field(body, fix.TagPrice))
}

func TestVenue_InvalidOrderIsNotSent(t *testing.T) {
	v, tr := newVenue(t, fixvenue.Config{}, fixvenue.Deps{})
	req := btcLimit()
	req.Price = decimal.Zero

	_, err := v.PlaceOrder(context.Background(), req)
	assert.ErrorIs(t, err, correlation.ErrInvalidRequest)
	assert.Empty(t, tr.Sent())
}

func TestVenue_NotConnected(t *testing.T) {
	v := fixvenue.New(fixtest.NewTransport(), fix.Options{}, fixvenue.Config{}, fixvenue.Deps{})
	_, err := v.GetPositions(context.Background(), exchange.PositionQuery{})
	assert.ErrorIs(t, err, correlation.ErrNotConnected)
	assert.Equal(t, "not_connected", v.SessionStatus().State)
}

func TestVenue_TimeoutIsRecordedThenResolved(t *testing.T) {
	store := openLedger(t)
	late := &lateCounter{}
	v, tr := newVenue(t, fixvenue.Config{RequestTimeout: 50 * time.Millisecond}, fixvenue.Deps{Ledger: store, Late: late})

	_, err := v.PlaceOrder(context.Background(), btcLimit())
	var terr *correlation.TimeoutError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, fix.KindOrder, terr.Kind)

	entry, ok, err := store.Get(context.Background(), terr.CorrelationID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ledger.StatusPending, entry.Status)
	assert.Equal(t, "BTC-USD", entry.Symbol)
	assert.Equal(t, "fix", entry.Venue)

	status := v.SessionStatus()
	assert.Equal(t, 1, status.Pending["orders"], "kept request stays pending")

	tr.Deliver(fixtest.ExecutionReport(terr.CorrelationID, enum.OrdStatus_FILLED))

	assert.Eventually(t, func() bool {
		e, ok, err := store.Get(context.Background(), terr.CorrelationID)
		return err == nil && ok && e.Status == ledger.StatusResolved
	}, wait, 10*time.Millisecond)
	entry, _, _ = store.Get(context.Background(), terr.CorrelationID)
	assert.Equal(t, "success", entry.Outcome)
	assert.Equal(t, []string{"success"}, late.all())
	assert.Zero(t, v.SessionStatus().Pending["orders"])
}

func TestVenue_CallerDeadlineWins(t *testing.T) {
	v, _ := newVenue(t, fixvenue.Config{RequestTimeout: time.Hour}, fixvenue.Deps{})
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := v.GetCollateral(ctx, exchange.CollateralQuery{Currency: "USD"})
	assert.ErrorIs(t, err, correlation.ErrTimedOut)
	assert.Less(t, time.Since(start), wait)
}

func TestVenue_CancelOnTimeoutForImmediateOrders(t *testing.T) {
	v, tr := newVenue(t, fixvenue.Config{RequestTimeout: 40 * time.Millisecond, CancelOnTimeout: true}, fixvenue.Deps{})
	req := btcLimit()
	req.TimeInForce = exchange.TimeInForceFOK

	_, err := v.PlaceOrder(context.Background(), req)
	var terr *correlation.TimeoutError
	require.ErrorAs(t, err, &terr)

	first, ok := tr.Next(wait)
	require.True(t, ok)
	assert.Equal(t, fix.MsgTypeNewOrderSingle, first.MsgType())
	cancelFrame, ok := tr.Next(wait)
	require.True(t, ok, "expected a cancel for the timed-out order")
	assert.Equal(t, fix.MsgTypeOrderCancelRequest, cancelFrame.MsgType())
	assert.Equal(t, terr.CorrelationID, fixtest.Field(&cancelFrame.Msg.Body, fix.TagOrigClOrdID))
	assert.Equal(t, "BTC-USD", fixtest.Field(&cancelFrame.Msg.Body, fix.TagSymbol))
}

func TestVenue_NoCancelOnTimeoutForRestingOrders(t *testing.T) {
	v, tr := newVenue(t, fixvenue.Config{RequestTimeout: 40 * time.Millisecond, CancelOnTimeout: true}, fixvenue.Deps{})

	_, err := v.PlaceOrder(context.Background(), btcLimit())
	require.ErrorIs(t, err, correlation.ErrTimedOut)

	_, ok := tr.Next(wait)
	require.True(t, ok)
	_, ok = tr.Next(100 * time.Millisecond)
	assert.False(t, ok, "GTC orders are left alone")
}

func TestVenue_CancelOrder(t *testing.T) {
	v, tr := newVenue(t, fixvenue.Config{}, fixvenue.Deps{})
	tr.AutoReply = func(s fixtest.Sent) []*quickfix.Message {
		return []*quickfix.Message{fixtest.ExecutionReport(fixtest.ClOrdID(s), enum.OrdStatus_CANCELED)}
	}

	res, err := v.CancelOrder(context.Background(), exchange.CancelRequest{ClientOrderID: "t-1", Symbol: "BTC-USD", Side: exchange.SideBuy})
	require.NoError(t, err)
	assert.Equal(t, exchange.StatusCanceled, res.Status)

	sent := tr.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "t-1", fixtest.Field(&sent[0].Msg.Body, fix.TagOrigClOrdID))
}

func TestVenue_PositionsAndCollateral(t *testing.T) {
	v, tr := newVenue(t, fixvenue.Config{Account: "ACC-9"}, fixvenue.Deps{})
	tr.AutoReply = func(s fixtest.Sent) []*quickfix.Message {
		switch s.MsgType() {
		case fix.MsgTypeRequestForPositions:
			id := fixtest.PosReqID(s)
			return []*quickfix.Message{
				fixtest.PositionAck(id, 2, 0, 0),
				fixtest.PositionReport(id, "BTC-USD", "3", "1"),
				fixtest.PositionReport(id, "ETH-USD", "0", "5"),
			}
		case fix.MsgTypeCollateralInquiry:
			id := fixtest.CollInquiryID(s)
			return []*quickfix.Message{
				fixtest.CollateralAck(id, 1, 0, 0),
				fixtest.CollateralReport(id, "USD", "1000",
					fixtest.With(fix.TagCashOutstanding, "250")),
			}
		}
		return nil
	}

	positions, err := v.GetPositions(context.Background(), exchange.PositionQuery{})
	require.NoError(t, err)
	require.Len(t, positions, 2)
	bySymbol := map[string]exchange.Position{}
	for _, p := range positions {
		bySymbol[p.Symbol] = p
	}
	assert.True(t, decimal.NewFromInt(2).Equal(bySymbol["BTC-USD"].NetQty))
	assert.True(t, decimal.NewFromInt(-5).Equal(bySymbol["ETH-USD"].NetQty))

	balances, err := v.GetCollateral(context.Background(), exchange.CollateralQuery{Currency: "USD"})
	require.NoError(t, err)
	require.Len(t, balances, 1)
	assert.Equal(t, "USD", balances[0].Currency)
	assert.True(t, decimal.NewFromInt(1000).Equal(balances[0].Total))
	assert.True(t, decimal.NewFromInt(250).Equal(balances[0].Used))
	assert.True(t, decimal.NewFromInt(750).Equal(balances[0].Available))

	for _, s := range tr.Sent() {
		assert.Equal(t, "ACC-9", fixtest.Field(&s.Msg.Body, fix.TagAccount))
	}
}

func TestVenue_SessionStatus(t *testing.T) {
	v, _ := newVenue(t, fixvenue.Config{Name: "lp"}, fixvenue.Deps{})
	st := v.SessionStatus()
	assert.Equal(t, "lp", st.Venue)
	assert.Equal(t, "connected", st.State)
	assert.Contains(t, st.Session, "CLIENT")
	assert.Equal(t, map[string]int{"orders": 0, "positions": 0, "collateral": 0}, st.Pending)
}
