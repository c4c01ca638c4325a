package fixvenue

import (
	"testing"

	"github.com/quickfixgo/enum"
	"github.com/stretchr/testify/assert"

	"exconnector/internal/gateway/exchange"
)

func TestFromOrdStatus(t *testing.T) {
	cases := map[enum.OrdStatus]exchange.OrderStatus{
		enum.OrdStatus_NEW:                  exchange.StatusNew,
		enum.OrdStatus_PARTIALLY_FILLED:     exchange.StatusPartiallyFilled,
		enum.OrdStatus_FILLED:               exchange.StatusFilled,
		enum.OrdStatus_CANCELED:             exchange.StatusCanceled,
		enum.OrdStatus_REJECTED:             exchange.StatusRejected,
		enum.OrdStatus_EXPIRED:              exchange.StatusExpired,
		enum.OrdStatus_DONE_FOR_DAY:         exchange.StatusExpired,
		enum.OrdStatus_PENDING_NEW:          exchange.StatusPending,
		enum.OrdStatus_PENDING_CANCEL:       exchange.StatusPending,
		enum.OrdStatus_PENDING_REPLACE:      exchange.StatusPending,
		enum.OrdStatus_REPLACED:             exchange.StatusPending,
		enum.OrdStatus_CALCULATED:           exchange.StatusPending,
		enum.OrdStatus_STOPPED:              exchange.StatusPending,
		enum.OrdStatus_SUSPENDED:            exchange.StatusPending,
		enum.OrdStatus_ACCEPTED_FOR_BIDDING: exchange.StatusPending,
		enum.OrdStatus("Z"):                 exchange.StatusUnknown,
	}
	for status, want := range cases {
		assert.Equal(t, want, fromOrdStatus(string(status)), string(status))
	}
}
