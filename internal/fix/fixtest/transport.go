// Package fixtest provides an in-process FIX transport and message builders for tests.
package fixtest

import (
	"errors"
	"sync"
	"time"

	"github.com/quickfixgo/quickfix"

	"exconnector/internal/fix"
)

// Sent is one outbound application frame.
type Sent struct {
	Seq int
	Msg *quickfix.Message
}

func (s Sent) MsgType() string { return Field(&s.Msg.Header, fix.TagMsgType) }

// Transport drives a quickfix.Application without a network. Callbacks run on the
// calling goroutine except for AutoReply, which runs on its own goroutine.
type Transport struct {
	SessionID quickfix.SessionID
	// RejectLogon answers the logon with a logout carrying this text.
	RejectLogon string
	// Silent skips the logon answer entirely.
	Silent bool
	// SendErr is returned by Send when set.
	SendErr error
	// AutoReply produces inbound messages for each sent frame.
	AutoReply func(s Sent) []*quickfix.Message

	mu     sync.Mutex
	app    quickfix.Application
	seq    int
	sent   []Sent
	logons []*quickfix.Message
	stops  int
	sentCh chan Sent
}

func NewTransport() *Transport {
	return &Transport{
		SessionID: quickfix.SessionID{BeginString: "FIX.4.4", SenderCompID: "CLIENT", TargetCompID: "VENUE"},
		sentCh:    make(chan Sent, 256),
	}
}

func (t *Transport) Start(app quickfix.Application) error {
	t.mu.Lock()
	t.app = app
	t.mu.Unlock()

	app.OnCreate(t.SessionID)
	logon := quickfix.NewMessage()
	logon.Header.SetString(fix.TagMsgType, fix.MsgTypeLogon)
	app.ToAdmin(logon, t.SessionID)
	t.mu.Lock()
	t.logons = append(t.logons, logon)
	t.mu.Unlock()

	if t.Silent {
		return nil
	}
	if t.RejectLogon != "" {
		app.FromAdmin(Logout(t.RejectLogon), t.SessionID)
		app.OnLogout(t.SessionID)
		return nil
	}
	app.OnLogon(t.SessionID)
	return nil
}

func (t *Transport) Stop() {
	t.mu.Lock()
	app := t.app
	t.stops++
	t.mu.Unlock()
	if app != nil {
		app.OnLogout(t.SessionID)
	}
}

func (t *Transport) Send(sid quickfix.SessionID, msg *quickfix.Message) (int, error) {
	t.mu.Lock()
	if t.SendErr != nil {
		err := t.SendErr
		t.mu.Unlock()
		return 0, err
	}
	if t.app == nil {
		t.mu.Unlock()
		return 0, errors.New("transport not started")
	}
	t.seq++
	seq := t.seq
	msg.Header.SetInt(fix.TagMsgSeqNum, seq)
	s := Sent{Seq: seq, Msg: msg}
	t.sent = append(t.sent, s)
	app, reply := t.app, t.AutoReply
	t.mu.Unlock()

	if err := app.ToApp(msg, sid); err != nil {
		return 0, err
	}
	select {
	case t.sentCh <- s:
	default:
	}
	if reply != nil {
		go func() {
			for _, in := range reply(s) {
				t.Deliver(in)
			}
		}()
	}
	return seq, nil
}

// Deliver hands msg to the application as the venue would.
func (t *Transport) Deliver(msg *quickfix.Message) {
	t.mu.Lock()
	app := t.app
	t.mu.Unlock()
	if app == nil {
		return
	}
	if fix.IsAdmin(Field(&msg.Header, fix.TagMsgType)) {
		app.FromAdmin(msg, t.SessionID)
		return
	}
	app.FromApp(msg, t.SessionID)
}

// DeliverAsync delivers msg from another goroutine, as a transport callback thread would.
func (t *Transport) DeliverAsync(msg *quickfix.Message) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		t.Deliver(msg)
	}()
	return done
}

// Next waits for the next sent frame.
func (t *Transport) Next(timeout time.Duration) (Sent, bool) {
	select {
	case s := <-t.sentCh:
		return s, true
	case <-time.After(timeout):
		return Sent{}, false
	}
}

func (t *Transport) Sent() []Sent {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Sent, len(t.sent))
	copy(out, t.sent)
	return out
}

// Logons returns the logon messages as stamped by the application.
func (t *Transport) Logons() []*quickfix.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*quickfix.Message, len(t.logons))
	copy(out, t.logons)
	return out
}

func (t *Transport) Stops() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stops
}
