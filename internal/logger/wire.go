package logger

import (
	"io"
	"log"
	"strings"
	"sync"
)

var (
	wireMu  sync.Mutex
	wireLog *log.Logger
)

// SetWireWriter enables raw protocol frame dumps. A nil writer disables them.
func SetWireWriter(w io.Writer) {
	wireMu.Lock()
	defer wireMu.Unlock()
	if w == nil {
		wireLog = nil
		return
	}
	wireLog = log.New(w, "", log.LstdFlags|log.Lmicroseconds)
}

func WireEnabled() bool {
	wireMu.Lock()
	defer wireMu.Unlock()
	return wireLog != nil
}

// LogWire writes one frame. FIX uses SOH as the field separator; it is rendered as '|'.
func LogWire(direction, session, raw string) {
	wireMu.Lock()
	l := wireLog
	wireMu.Unlock()
	if l == nil {
		return
	}
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(direction)
	b.WriteString("]")
	if session != "" {
		b.WriteString("[")
		b.WriteString(session)
		b.WriteString("] ")
	}
	b.WriteString(strings.ReplaceAll(raw, "\x01", "|"))
	l.Print(b.String())
}
