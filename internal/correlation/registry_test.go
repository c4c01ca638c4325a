package correlation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testMsg struct {
	kind string
	id   string
	done bool
}

type testRequest struct {
	*Machine[string]
	seen []string
}

func (r *testRequest) ProcessResponse(msg testMsg) {
	r.seen = append(r.seen, msg.id)
	if msg.done {
		r.Complete(msg.id)
		return
	}
	r.Progress()
}

func newTestHandler() *Handler[*testRequest, testMsg] {
	return NewHandler[*testRequest, testMsg]("test", func(msg testMsg) (string, bool) {
		if msg.kind != "mine" {
			return "", false
		}
		return msg.id, true
	})
}

func TestHandler_RoutesAndEvictsOnCompletion(t *testing.T) {
	h := newTestHandler()
	req := h.Register(&testRequest{Machine: NewMachine[string](context.Background(), "a")})
	req.Send()

	assert.True(t, h.HandleMessage(testMsg{kind: "mine", id: "a"}))
	assert.Equal(t, 1, h.Len())
	assert.Equal(t, StatusInProgress, req.Status())

	assert.True(t, h.HandleMessage(testMsg{kind: "mine", id: "a", done: true}))
	assert.Equal(t, 0, h.Len())
	assert.Equal(t, []string{"a", "a"}, req.seen)
}

func TestHandler_ForeignKindNotClaimed(t *testing.T) {
	h := newTestHandler()
	assert.False(t, h.HandleMessage(testMsg{kind: "other", id: "a"}))
}

func TestHandler_UnknownIDIsConsumedAndHarmless(t *testing.T) {
	h := newTestHandler()
	req := h.Register(&testRequest{Machine: NewMachine[string](context.Background(), "known")})
	req.Send()

	var unknown []string
	h.SetUnknownHook(func(_, id string) { unknown = append(unknown, id) })

	assert.NotPanics(t, func() {
		assert.True(t, h.HandleMessage(testMsg{kind: "mine", id: "stranger", done: true}))
	})
	assert.Equal(t, []string{"stranger"}, unknown)
	assert.Equal(t, []string{"known"}, h.IDs())
	assert.Equal(t, StatusSent, req.Status())
	assert.Empty(t, req.seen)
}

func TestRegistry_CancellationEvicts(t *testing.T) {
	h := newTestHandler()
	ctx, cancel := context.WithCancel(context.Background())
	req := h.Register(&testRequest{Machine: NewMachine[string](ctx, "c")})
	fut := req.Send()
	cancel()
	<-fut.Done()

	// the eviction hook runs right after the future resolves
	require.Eventually(t, func() bool { return h.Len() == 0 }, time1s, tick)
}

func TestRegistry_PreCancelledNotLeftBehind(t *testing.T) {
	h := newTestHandler()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h.Register(&testRequest{Machine: NewMachine[string](ctx, "pre")})
	assert.Equal(t, 0, h.Len())
}

func TestRegistry_RejectAll(t *testing.T) {
	h := newTestHandler()
	var reqs []*testRequest
	for _, id := range []string{"x", "y", "z"} {
		r := h.Register(&testRequest{Machine: NewMachine[string](context.Background(), id)})
		r.Send()
		reqs = append(reqs, r)
	}
	assert.Equal(t, 3, h.RejectAll(ReasonConnectorClosed))
	assert.Equal(t, 0, h.Len())
	for _, r := range reqs {
		assert.ErrorIs(t, r.Err(), ErrConnectorClosed)
		assert.ErrorIs(t, r.Err(), ErrRejected)
	}
}

func TestRejectMessageOnlyEvicts(t *testing.T) {
	h := newTestHandler()
	r := h.Register(&testRequest{Machine: NewMachine[string](context.Background(), "e")})
	h.RejectMessage("e")
	assert.Equal(t, 0, h.Len())
	assert.False(t, r.Completed())
}
