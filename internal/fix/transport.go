package fix

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/quickfixgo/quickfix"
)

// Transport is the physical session. Send must assign the outbound sequence number
// before it returns and report it.
type Transport interface {
	Start(app quickfix.Application) error
	Stop()
	Send(sid quickfix.SessionID, msg *quickfix.Message) (int, error)
}

// InitiatorTransport runs a quickfix initiator built from a settings file.
type InitiatorTransport struct {
	settings *quickfix.Settings
	screen   bool

	mu        sync.Mutex
	initiator *quickfix.Initiator
}

// LoadSettings parses a quickfix settings file.
func LoadSettings(path string) (*quickfix.Settings, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fix settings: %w", err)
	}
	defer f.Close()
	settings, err := quickfix.ParseSettings(f)
	if err != nil {
		return nil, fmt.Errorf("parse fix settings %s: %w", path, err)
	}
	return settings, nil
}

// NewInitiatorTransport uses an in-memory message store. screenLog mirrors the
// session log to stdout.
func NewInitiatorTransport(settings *quickfix.Settings, screenLog bool) *InitiatorTransport {
	return &InitiatorTransport{settings: settings, screen: screenLog}
}

func (t *InitiatorTransport) Start(app quickfix.Application) error {
	if t.settings == nil {
		return errors.New("fix settings not loaded")
	}
	logFactory := quickfix.NewNullLogFactory()
	if t.screen {
		logFactory = quickfix.NewScreenLogFactory()
	}
	initiator, err := quickfix.NewInitiator(app, quickfix.NewMemoryStoreFactory(), t.settings, logFactory)
	if err != nil {
		return fmt.Errorf("create initiator: %w", err)
	}
	if err := initiator.Start(); err != nil {
		return fmt.Errorf("start initiator: %w", err)
	}
	t.mu.Lock()
	t.initiator = initiator
	t.mu.Unlock()
	return nil
}

func (t *InitiatorTransport) Stop() {
	t.mu.Lock()
	initiator := t.initiator
	t.initiator = nil
	t.mu.Unlock()
	if initiator != nil {
		initiator.Stop()
	}
}

// Send hands msg to the session. quickfix stamps MsgSeqNum into the header while
// queueing, so it is read back after the call.
func (t *InitiatorTransport) Send(sid quickfix.SessionID, msg *quickfix.Message) (int, error) {
	if err := quickfix.SendToTarget(msg, sid); err != nil {
		return 0, err
	}
	seq, err := msg.Header.GetInt(TagMsgSeqNum)
	if err != nil {
		return 0, fmt.Errorf("sequence number not assigned: %w", err)
	}
	return seq, nil
}
