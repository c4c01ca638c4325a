package fix

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/quickfixgo/quickfix"

	"exconnector/internal/correlation"
	"exconnector/internal/logger"
)

var (
	ErrInvalidState = errors.New("invalid session state")
	ErrLogonFailed  = errors.New("logon failed")
)

// SessionState is the lifecycle of the physical session.
type SessionState int32

const (
	StateNotConnected SessionState = iota
	StateConnecting
	StateConnected
	StateDisconnecting
	StateDisconnected
)

func (s SessionState) String() string {
	switch s {
	case StateNotConnected:
		return "not_connected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	case StateDisconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Observer receives request lifecycle events. Implementations must not block.
type Observer interface {
	RequestSent(kind string)
	RequestCompleted(kind, outcome string, elapsed time.Duration)
	UnknownCorrelation(family string)
	FrameRejected(kind string)
	SessionState(state string)
}

// NopObserver discards all observations.
type NopObserver struct{}

func (NopObserver) RequestSent(string)                             {}
func (NopObserver) RequestCompleted(string, string, time.Duration) {}
func (NopObserver) UnknownCorrelation(string)                      {}
func (NopObserver) FrameRejected(string)                           {}
func (NopObserver) SessionState(string)                            {}

// Journal receives every raw frame in both directions. Record must not block.
type Journal interface {
	Record(direction, session, msgType string, seqNum int, raw string)
}

const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

// Options configures a Connector. Zero values are usable.
type Options struct {
	Username string
	Password string
	IDs      correlation.IDGenerator
	// EvictOnTimeout completes a request with a *correlation.TimeoutError when its
	// caller's deadline passes. By default the request stays pending.
	EvictOnTimeout bool
	Observer       Observer
	Journal        Journal
	// OnTimeout runs on the caller's goroutine when a pending request outlives
	// its caller's deadline and is kept.
	OnTimeout func(kind, id string)
	// OnLateCompletion runs once a kept request finally completes.
	OnLateCompletion func(kind, id string, err error)
	Now              func() time.Time
}

type request interface {
	correlation.Tracked
	Kind() string
	Message() *quickfix.Message
	Completed() bool
	Fail(err error) bool
	Err() error
}

type messageHandler interface {
	Name() string
	HandleMessage(msg Inbound) bool
	RejectMessage(id string)
	RejectAll(reason string) int
	Len() int
	SetUnknownHook(fn func(name, id string))
}

type pendingFrame struct {
	req   request
	owner messageHandler
}

// Connector owns one FIX session. It implements quickfix.Application, keeps the
// sequence-number reject table and routes inbound messages to the order,
// position and collateral handlers in that order.
type Connector struct {
	opts      Options
	transport Transport
	ids       correlation.IDGenerator
	observer  Observer

	stateMu    sync.Mutex
	state      SessionState
	sessionID  quickfix.SessionID
	started    bool
	logon      chan error
	logoutText string

	// seqMu also serialises transport sends so that sequence assignment and
	// table insertion are atomic.
	seqMu  sync.Mutex
	frames map[int]pendingFrame

	orders     *correlation.Handler[*OrderRequest, Inbound]
	positions  *correlation.Handler[*PositionRequest, Inbound]
	collateral *correlation.Handler[*CollateralRequest, Inbound]
	handlers   []messageHandler
}

var _ quickfix.Application = (*Connector)(nil)

func NewConnector(transport Transport, opts Options) *Connector {
	c := &Connector{
		opts:       opts,
		transport:  transport,
		ids:        opts.IDs,
		observer:   opts.Observer,
		state:      StateNotConnected,
		frames:     make(map[int]pendingFrame),
		orders:     newOrderHandler(),
		positions:  newPositionHandler(),
		collateral: newCollateralHandler(),
	}
	if c.ids == nil {
		c.ids = correlation.UUIDGenerator{}
	}
	if c.observer == nil {
		c.observer = NopObserver{}
	}
	if c.opts.Now == nil {
		c.opts.Now = time.Now
	}
	c.handlers = []messageHandler{c.orders, c.positions, c.collateral}
	for _, h := range c.handlers {
		h.SetUnknownHook(func(name, _ string) { c.observer.UnknownCorrelation(name) })
	}
	return c
}

// Connect starts the transport and waits for logon. It is only valid from
// NotConnected or Disconnected.
func (c *Connector) Connect(ctx context.Context) error {
	c.stateMu.Lock()
	if c.state != StateNotConnected && c.state != StateDisconnected {
		st := c.state
		c.stateMu.Unlock()
		return fmt.Errorf("%w: connect while %s", ErrInvalidState, st)
	}
	c.setStateLocked(StateConnecting)
	logon := make(chan error, 1)
	c.logon = logon
	c.logoutText = ""
	c.started = true
	c.stateMu.Unlock()

	if err := c.transport.Start(c); err != nil {
		c.stateMu.Lock()
		c.started = false
		c.setStateLocked(StateDisconnected)
		c.stateMu.Unlock()
		return fmt.Errorf("start transport: %w", err)
	}

	select {
	case err := <-logon:
		if err == nil {
			return nil
		}
		c.abortConnect()
		return err
	case <-ctx.Done():
		c.abortConnect()
		return fmt.Errorf("%w: %w", ErrLogonFailed, ctx.Err())
	}
}

func (c *Connector) abortConnect() {
	c.stateMu.Lock()
	started := c.started
	c.started = false
	c.stateMu.Unlock()
	if started {
		c.transport.Stop()
	}
	c.setState(StateDisconnected)
}

// Stop logs out, rejects every in-flight request with the connector-closed
// reason and empties all tables.
func (c *Connector) Stop() {
	c.stateMu.Lock()
	started := c.started
	c.started = false
	if c.state == StateConnected || c.state == StateConnecting {
		c.setStateLocked(StateDisconnecting)
	}
	c.stateMu.Unlock()

	if started {
		c.transport.Stop()
	}
	c.stateMu.Lock()
	if c.state != StateNotConnected {
		c.setStateLocked(StateDisconnected)
	}
	c.stateMu.Unlock()
	if n := c.drain(correlation.ReasonConnectorClosed); n > 0 {
		logger.Infof("fix: connector stopped, %d pending requests closed", n)
	}
}

func (c *Connector) State() SessionState {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.state
}

func (c *Connector) Connected() bool {
	return c.State() == StateConnected
}

func (c *Connector) setState(s SessionState) {
	c.stateMu.Lock()
	c.setStateLocked(s)
	c.stateMu.Unlock()
}

func (c *Connector) setStateLocked(s SessionState) {
	if c.state == s {
		return
	}
	logger.Infof("fix: session %s -> %s", c.state, s)
	c.state = s
	c.observer.SessionState(s.String())
}

func (c *Connector) signalLogon(err error) {
	c.stateMu.Lock()
	ch := c.logon
	c.stateMu.Unlock()
	if ch == nil {
		return
	}
	select {
	case ch <- err:
	default:
	}
}

// PlaceOrder sends a NewOrderSingle and waits for a terminal execution report.
func (c *Connector) PlaceOrder(ctx context.Context, spec OrderSpec) (ExecutionReport, error) {
	if err := spec.Validate(); err != nil {
		return ExecutionReport{}, fmt.Errorf("%w: %w", correlation.ErrInvalidRequest, err)
	}
	if !c.Connected() {
		return ExecutionReport{}, correlation.ErrNotConnected
	}
	id := c.ids.NewID()
	req := c.orders.Register(newOrderRequest(ctx, KindOrder, id, spec.build(id, c.opts.Now()), spec.AcceptOnNew))
	return execute(ctx, c, req, req.Machine)
}

// CancelOrder sends an OrderCancelRequest and waits for the execution report or
// the OrderCancelReject that answers it.
func (c *Connector) CancelOrder(ctx context.Context, spec CancelSpec) (ExecutionReport, error) {
	if err := spec.Validate(); err != nil {
		return ExecutionReport{}, fmt.Errorf("%w: %w", correlation.ErrInvalidRequest, err)
	}
	if !c.Connected() {
		return ExecutionReport{}, correlation.ErrNotConnected
	}
	id := c.ids.NewID()
	req := c.orders.Register(newOrderRequest(ctx, KindCancel, id, spec.build(id, c.opts.Now()), false))
	return execute(ctx, c, req, req.Machine)
}

// GetPositions sends a RequestForPositions and collects every announced report.
func (c *Connector) GetPositions(ctx context.Context, q PositionInquiry) ([]PositionReport, error) {
	if !c.Connected() {
		return nil, correlation.ErrNotConnected
	}
	id := c.ids.NewID()
	req := c.positions.Register(newPositionRequest(ctx, id, q.build(id, c.opts.Now())))
	return execute(ctx, c, req, req.Machine)
}

// GetCollateral sends a CollateralInquiry and collects every announced report.
func (c *Connector) GetCollateral(ctx context.Context, q CollateralInquiry) ([]CollateralReport, error) {
	if !c.Connected() {
		return nil, correlation.ErrNotConnected
	}
	id := c.ids.NewID()
	req := c.collateral.Register(newCollateralRequest(ctx, id, q.build(id, c.opts.Now())))
	return execute(ctx, c, req, req.Machine)
}

func execute[T any](ctx context.Context, c *Connector, req request, m *correlation.Machine[T]) (T, error) {
	var zero T
	kind := req.Kind()
	if m.Completed() {
		// cancelled before anything was sent
		v, err, _ := m.Future().Result()
		c.observer.RequestCompleted(kind, correlation.Outcome(err), 0)
		return v, err
	}
	started := time.Now()
	if err := c.SendRequest(req); err != nil {
		c.observer.RequestCompleted(kind, correlation.Outcome(err), time.Since(started))
		return zero, err
	}
	fut := m.Send()
	c.observer.RequestSent(kind)

	v, err := fut.Wait(ctx)
	if errors.Is(err, correlation.ErrTimedOut) && !m.Completed() {
		terr := &correlation.TimeoutError{Kind: kind, CorrelationID: req.ID()}
		if c.opts.EvictOnTimeout {
			if !m.Fail(terr) {
				v, err, _ = fut.Result()
				c.observer.RequestCompleted(kind, correlation.Outcome(err), time.Since(started))
				return v, err
			}
		} else if !c.keepPending(req) {
			v, err, _ = fut.Result()
			c.observer.RequestCompleted(kind, correlation.Outcome(err), time.Since(started))
			return v, err
		}
		logger.Warnf("fix: %s %s timed out after %s", kind, req.ID(), time.Since(started).Round(time.Millisecond))
		c.observer.RequestCompleted(kind, correlation.Outcome(terr), time.Since(started))
		return zero, terr
	}
	c.observer.RequestCompleted(kind, correlation.Outcome(err), time.Since(started))
	return v, err
}

// keepPending reports the timeout and arranges for the late outcome to be
// reported. It returns false when req completed before the hook was installed,
// in which case nothing is reported and the caller owns the result.
func (c *Connector) keepPending(req request) bool {
	kind, id := req.Kind(), req.ID()
	var (
		mu    sync.Mutex
		kept  bool
		early bool
	)
	req.OnComplete(func() {
		mu.Lock()
		if !kept {
			early = true
			mu.Unlock()
			return
		}
		mu.Unlock()
		err := req.Err()
		logger.Infof("fix: late completion of %s %s: %s", kind, id, correlation.Outcome(err))
		if c.opts.OnLateCompletion != nil {
			c.opts.OnLateCompletion(kind, id, err)
		}
	})

	mu.Lock()
	defer mu.Unlock()
	if early {
		return false
	}
	kept = true
	if c.opts.OnTimeout != nil {
		c.opts.OnTimeout(kind, id)
	}
	return true
}

// SendRequest hands req's message to the transport and records its sequence
// number. Both happen under the reject-table lock. A request that is already
// complete is not sent and its error is returned. A registered request that
// cannot be sent is failed so that its handler evicts it.
func (c *Connector) SendRequest(req request) error {
	owner := c.ownerOf(req)

	c.seqMu.Lock()
	if req.Completed() {
		// cancelled after registration, never put it on the wire
		c.seqMu.Unlock()
		return req.Err()
	}
	c.stateMu.Lock()
	state, sid := c.state, c.sessionID
	c.stateMu.Unlock()
	if state != StateConnected {
		c.seqMu.Unlock()
		req.Fail(correlation.ErrNotConnected)
		return correlation.ErrNotConnected
	}
	seq, err := c.transport.Send(sid, req.Message())
	if err != nil {
		c.seqMu.Unlock()
		err = correlation.SendFailed(err)
		req.Fail(err)
		return err
	}
	stale, collided := c.frames[seq]
	c.frames[seq] = pendingFrame{req: req, owner: owner}
	c.seqMu.Unlock()

	if collided && stale.req != req {
		logger.Warnf("fix: seq %d reused while %s %s still tracked", seq, stale.req.Kind(), stale.req.ID())
		stale.req.Reject(fmt.Sprintf("sequence number %d reused", seq))
	}
	req.OnComplete(func() { c.confirmIf(seq, req) })
	logger.Debugf("fix: sent %s %s seq=%d", req.Kind(), req.ID(), seq)
	return nil
}

func (c *Connector) ownerOf(req request) messageHandler {
	switch req.(type) {
	case *OrderRequest:
		return c.orders
	case *PositionRequest:
		return c.positions
	case *CollateralRequest:
		return c.collateral
	}
	return nil
}

// Confirm removes seq from the reject table once the frame can no longer be rejected.
func (c *Connector) Confirm(seq int) {
	c.seqMu.Lock()
	delete(c.frames, seq)
	c.seqMu.Unlock()
}

func (c *Connector) confirmIf(seq int, req request) {
	c.seqMu.Lock()
	if f, ok := c.frames[seq]; ok && f.req == req {
		delete(c.frames, seq)
	}
	c.seqMu.Unlock()
}

func (c *Connector) rejectBySeq(seq int, reason string) {
	c.seqMu.Lock()
	f, ok := c.frames[seq]
	if ok {
		delete(c.frames, seq)
	}
	c.seqMu.Unlock()
	if !ok {
		logger.Debugf("fix: reject for seq %d has no pending frame (%s)", seq, reason)
		return
	}
	logger.Warnf("fix: %s %s rejected by seq %d: %s", f.req.Kind(), f.req.ID(), seq, reason)
	c.observer.FrameRejected(f.req.Kind())
	f.req.Reject(reason)
	if f.owner != nil {
		f.owner.RejectMessage(f.req.ID())
	}
}

// drain rejects every frame in the reject table and every pending request.
func (c *Connector) drain(reason string) int {
	c.seqMu.Lock()
	frames := c.frames
	c.frames = make(map[int]pendingFrame)
	c.seqMu.Unlock()

	n := 0
	for _, f := range frames {
		if f.req.Reject(reason) {
			n++
		}
	}
	for _, h := range c.handlers {
		n += h.RejectAll(reason)
	}
	return n
}

func (c *Connector) dispatch(in Inbound) {
	switch m := in.(type) {
	case SessionReject:
		c.rejectBySeq(m.RefSeqNum, m.Reason())
		return
	case BusinessReject:
		if m.RefSeqNum > 0 {
			c.rejectBySeq(m.RefSeqNum, m.Reason())
			return
		}
		logger.Warnf("fix: business reject without RefSeqNum dropped: %s", m.Reason())
		return
	case Unsupported:
		logger.Debugf("fix: unsupported message type %s dropped", m.MsgType)
		return
	}
	for _, h := range c.handlers {
		if h.HandleMessage(in) {
			return
		}
	}
	logger.Debugf("fix: unclaimed %s dropped", in.Frame().MsgType)
}

// Snapshot is a point-in-time view of the session and its tables.
type Snapshot struct {
	State         string         `json:"state"`
	Session       string         `json:"session"`
	PendingFrames int            `json:"pending_frames"`
	Pending       map[string]int `json:"pending"`
}

func (c *Connector) Snapshot() Snapshot {
	c.stateMu.Lock()
	snap := Snapshot{State: c.state.String(), Session: c.sessionID.String()}
	c.stateMu.Unlock()
	c.seqMu.Lock()
	snap.PendingFrames = len(c.frames)
	c.seqMu.Unlock()
	snap.Pending = make(map[string]int, len(c.handlers))
	for _, h := range c.handlers {
		snap.Pending[h.Name()] = h.Len()
	}
	return snap
}

func (c *Connector) record(direction string, msg *quickfix.Message, sid quickfix.SessionID) {
	if c.opts.Journal == nil && !logger.WireEnabled() {
		return
	}
	raw := msg.String()
	session := sid.String()
	logger.LogWire(direction, session, raw)
	if c.opts.Journal != nil {
		msgType, _ := msg.Header.GetString(TagMsgType)
		seq, _ := msg.Header.GetInt(TagMsgSeqNum)
		c.opts.Journal.Record(direction, session, msgType, seq, raw)
	}
}

// quickfix.Application

func (c *Connector) OnCreate(sid quickfix.SessionID) {
	c.stateMu.Lock()
	c.sessionID = sid
	c.stateMu.Unlock()
	logger.Infof("fix: session created %s", sid)
}

func (c *Connector) OnLogon(sid quickfix.SessionID) {
	c.setState(StateConnected)
	c.signalLogon(nil)
	logger.Infof("fix: logon %s", sid)
}

func (c *Connector) OnLogout(sid quickfix.SessionID) {
	c.stateMu.Lock()
	prev := c.state
	text := c.logoutText
	if prev == StateConnecting || prev == StateConnected || prev == StateDisconnecting {
		c.setStateLocked(StateDisconnected)
	}
	c.stateMu.Unlock()

	switch prev {
	case StateConnecting:
		c.signalLogon(logonError(text))
	case StateConnected:
		logger.Warnf("fix: session %s dropped", sid)
		if n := c.drain(correlation.ReasonConnectorClosed); n > 0 {
			logger.Warnf("fix: %d pending requests closed on logout", n)
		}
	}
}

func logonError(text string) error {
	if text == "" {
		return ErrLogonFailed
	}
	return fmt.Errorf("%w: %s", ErrLogonFailed, text)
}

func (c *Connector) ToAdmin(msg *quickfix.Message, sid quickfix.SessionID) {
	defer logger.Recover("fix.ToAdmin")
	if t, _ := msg.Header.GetString(TagMsgType); t == MsgTypeLogon {
		if c.opts.Username != "" {
			msg.Body.SetString(TagUsername, c.opts.Username)
		}
		if c.opts.Password != "" {
			msg.Body.SetString(TagPassword, c.opts.Password)
		}
		c.stateMu.Lock()
		if c.state == StateDisconnected && c.started {
			c.setStateLocked(StateConnecting)
		}
		c.stateMu.Unlock()
	}
	c.record(DirectionOut, msg, sid)
}

func (c *Connector) ToApp(msg *quickfix.Message, sid quickfix.SessionID) error {
	defer logger.Recover("fix.ToApp")
	c.record(DirectionOut, msg, sid)
	return nil
}

func (c *Connector) FromAdmin(msg *quickfix.Message, sid quickfix.SessionID) quickfix.MessageRejectError {
	defer logger.Recover("fix.FromAdmin")
	c.record(DirectionIn, msg, sid)
	in := Decode(msg)
	switch in.Frame().MsgType {
	case MsgTypeLogout:
		text, _ := msg.Body.GetString(TagText)
		c.stateMu.Lock()
		c.logoutText = text
		connecting := c.state == StateConnecting
		c.stateMu.Unlock()
		if connecting {
			c.signalLogon(logonError(text))
		}
	case MsgTypeReject:
		c.dispatch(in)
	}
	return nil
}

func (c *Connector) FromApp(msg *quickfix.Message, sid quickfix.SessionID) quickfix.MessageRejectError {
	defer logger.Recover("fix.FromApp")
	c.record(DirectionIn, msg, sid)
	c.dispatch(Decode(msg))
	return nil
}
