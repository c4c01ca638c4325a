package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRecordAndResolve(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	at := time.UnixMilli(time.Now().UnixMilli())

	require.NoError(t, s.RecordTimeout(ctx, Entry{CorrelationID: "a", Kind: "order", Venue: "fix", Symbol: "BTC-USD", TimedOutAt: at}))
	require.NoError(t, s.RecordTimeout(ctx, Entry{CorrelationID: "b", Kind: "positions", TimedOutAt: at.Add(time.Second)}))

	pending, err := s.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "a", pending[0].CorrelationID)
	assert.Equal(t, "BTC-USD", pending[0].Symbol)
	assert.True(t, pending[0].TimedOutAt.Equal(at))

	ok, err := s.Resolve(ctx, "a", "success", "", time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Resolve(ctx, "a", "rejected", "again", time.Now())
	require.NoError(t, err)
	assert.False(t, ok, "already resolved")

	e, found, err := s.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, StatusResolved, e.Status)
	assert.Equal(t, "success", e.Outcome)
	assert.False(t, e.ResolvedAt.IsZero())

	pending, err = s.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "b", pending[0].CorrelationID)
}

func TestResolveUnknown(t *testing.T) {
	s := openTemp(t)
	ok, err := s.Resolve(context.Background(), "missing", "success", "", time.Time{})
	require.NoError(t, err)
	assert.False(t, ok)

	_, found, err := s.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRecordRequiresID(t *testing.T) {
	s := openTemp(t)
	assert.Error(t, s.RecordTimeout(context.Background(), Entry{Kind: "order"}))
}

func TestClosedStore(t *testing.T) {
	s := openTemp(t)
	require.NoError(t, s.Close())
	assert.Error(t, s.RecordTimeout(context.Background(), Entry{CorrelationID: "x"}))
	assert.NoError(t, s.Close())
}

func TestOpenEmptyPath(t *testing.T) {
	_, err := Open("  ")
	assert.Error(t, err)
}
