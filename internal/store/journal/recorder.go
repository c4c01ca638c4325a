package journal

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"exconnector/internal/logger"
)

// Recorder buffers frames from transport callbacks and writes them from its own
// goroutine. Record never blocks; frames are dropped when the buffer is full.
type Recorder struct {
	store    *Store
	msgCh    chan Frame
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	dropped  atomic.Int64
	interval time.Duration
}

func NewRecorder(store *Store, buffer int) *Recorder {
	if buffer <= 0 {
		buffer = 1024
	}
	return &Recorder{
		store:    store,
		msgCh:    make(chan Frame, buffer),
		stopCh:   make(chan struct{}),
		interval: 200 * time.Millisecond,
	}
}

// Record matches the connector's journal hook.
func (r *Recorder) Record(direction, session, msgType string, seqNum int, raw string) {
	f := Frame{Direction: direction, Session: session, MsgType: msgType, SeqNum: seqNum, Raw: raw, At: time.Now()}
	select {
	case r.msgCh <- f:
	default:
		if n := r.dropped.Add(1); n == 1 || n%1000 == 0 {
			logger.Warnf("journal: buffer full, %d frames dropped", n)
		}
	}
}

func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

func (r *Recorder) Start() {
	r.wg.Add(1)
	go r.runLoop()
}

// Stop flushes buffered frames and waits for the writer to exit.
func (r *Recorder) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
	r.wg.Wait()
}

func (r *Recorder) runLoop() {
	defer r.wg.Done()
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	var batch []Frame
	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := r.store.Append(ctx, batch); err != nil {
			logger.Warnf("journal: write %d frames failed: %v", len(batch), err)
		}
		cancel()
		batch = batch[:0]
	}
	for {
		select {
		case f := <-r.msgCh:
			batch = append(batch, f)
			if len(batch) >= 100 {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-r.stopCh:
			for {
				select {
				case f := <-r.msgCh:
					batch = append(batch, f)
				default:
					flush()
					return
				}
			}
		}
	}
}
