package notifier

import (
	"context"
	"sync"
	"time"

	"exconnector/internal/logger"
)

// Alerts turns session, breaker and reconciliation events into chat messages.
// Event methods never block: they may be called with connector locks held, so
// messages are queued and dropped when the queue is full.
type Alerts struct {
	n       TextNotifier
	venue   string
	timeout time.Duration
	now     func() time.Time

	queue     chan Alert
	done      chan struct{}
	closeOnce sync.Once

	mu        sync.Mutex
	connected bool
	lost      bool
}

func NewAlerts(n TextNotifier, venue string, buffer int) *Alerts {
	if buffer <= 0 {
		buffer = 64
	}
	a := &Alerts{
		n:       n,
		venue:   venue,
		timeout: 30 * time.Second,
		now:     time.Now,
		queue:   make(chan Alert, buffer),
		done:    make(chan struct{}),
	}
	go a.run()
	return a
}

// SessionState alerts when an established session drops and when it comes back.
// A drop that passes through "disconnecting" was requested locally and is not reported.
func (a *Alerts) SessionState(state string) {
	a.mu.Lock()
	var alert *Alert
	switch state {
	case "connected":
		if a.lost {
			alert = &Alert{Icon: "✅", Title: "Session restored"}
		}
		a.connected, a.lost = true, false
	case "disconnecting":
		a.connected = false
	case "disconnected":
		if a.connected {
			alert = &Alert{Icon: "⚠️", Title: "Session lost", Details: []Detail{{"state", state}}}
			a.lost = true
		}
		a.connected = false
	}
	a.mu.Unlock()
	if alert != nil {
		a.enqueue(*alert)
	}
}

// BreakerState alerts when a venue circuit opens and when it closes again.
func (a *Alerts) BreakerState(name, from, to string) {
	switch to {
	case "open":
		a.enqueue(Alert{Icon: "🛑", Title: "Circuit open", Details: []Detail{{"breaker", name}, {"from", from}}})
	case "closed":
		a.enqueue(Alert{Icon: "✅", Title: "Circuit closed", Details: []Detail{{"breaker", name}}})
	}
}

// LateCompletion alerts on a request that finished after its caller timed out.
// The outcome must be reconciled by hand.
func (a *Alerts) LateCompletion(kind, outcome string) {
	a.enqueue(Alert{
		Icon:    "🔁",
		Title:   "Late completion of a timed-out request",
		Details: []Detail{{"kind", kind}, {"outcome", outcome}},
	})
}

func (a *Alerts) enqueue(alert Alert) {
	alert.Venue = a.venue
	alert.At = a.now()
	select {
	case <-a.done:
		return
	default:
	}
	select {
	case a.queue <- alert:
	default:
		logger.Warnf("notifier: queue full, dropped %q", alert.Title)
	}
}

func (a *Alerts) run() {
	defer logger.Recover("notifier")
	for {
		select {
		case alert := <-a.queue:
			a.send(alert)
		case <-a.done:
			for {
				select {
				case alert := <-a.queue:
					a.send(alert)
				default:
					return
				}
			}
		}
	}
}

func (a *Alerts) send(alert Alert) {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	if err := a.n.SendText(ctx, alert.Markdown()); err != nil {
		logger.Warnf("notifier: send %q failed: %v", alert.Title, err)
	}
}

// Close stops accepting alerts and flushes the queue in the background.
func (a *Alerts) Close() {
	if a == nil {
		return
	}
	a.closeOnce.Do(func() { close(a.done) })
}
