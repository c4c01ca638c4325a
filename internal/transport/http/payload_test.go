package httpapi

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"exconnector/internal/correlation"
	"exconnector/internal/gateway/exchange"
)

func TestDecodeOrderKeepsNumericPrecision(t *testing.T) {
	req, err := decodeOrder(`{"symbol":"BTC-USD","side":"buy","quantity":0.123456789012345678,"price":30000.000000000001}`)
	require.NoError(t, err)
	assert.Equal(t, "0.123456789012345678", req.Quantity.String())
	assert.Equal(t, "30000.000000000001", req.Price.String())
	assert.Equal(t, exchange.OrderTypeLimit, req.Type)
}

func TestDecodeOrderAcceptsDecimalStrings(t *testing.T) {
	req, err := decodeOrder(`{"symbol":"BTC-USD","side":"SELL","quantity":"12.5"}`)
	require.NoError(t, err)
	assert.True(t, req.Quantity.Equal(decimal.RequireFromString("12.5")))
	assert.Equal(t, exchange.SideSell, req.Side)
	assert.Equal(t, exchange.OrderTypeMarket, req.Type)
}

func TestDecodeOrderRejectsNonPositiveNumbers(t *testing.T) {
	for _, body := range []string{
		`{"symbol":"BTC-USD","side":"buy","quantity":0}`,
		`{"symbol":"BTC-USD","side":"buy","quantity":-0.5}`,
		`{"symbol":"BTC-USD","side":"buy","quantity":"1e3"}`,
		`{"symbol":"BTC-USD","side":"buy","quantity":1,"price":-3}`,
	} {
		_, err := decodeOrder(body)
		assert.ErrorIs(t, err, correlation.ErrInvalidRequest, body)
	}
}

func TestDecodeCancelKeepsQuantity(t *testing.T) {
	req, err := decodeCancel(`{"order_id":"o-1","symbol":"BTC-USD","quantity":0.000000000000000001}`)
	require.NoError(t, err)
	assert.Equal(t, "o-1", req.OrderID)
	assert.Equal(t, "0.000000000000000001", req.Quantity.String())
}
