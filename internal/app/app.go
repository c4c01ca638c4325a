package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"exconnector/internal/config"
	"exconnector/internal/gateway"
	"exconnector/internal/gateway/notifier"
	"exconnector/internal/logger"
	"exconnector/internal/store/journal"
	"exconnector/internal/store/ledger"
	httpapi "exconnector/internal/transport/http"
)

// App owns the venue session, the HTTP surface and the stores behind them.
type App struct {
	cfg      *config.Config
	venue    gateway.Venue
	http     *httpapi.Server
	ledger   *ledger.Store
	journal  *journal.Store
	recorder *journal.Recorder
	alerts   *notifier.Alerts
	watcher  *config.Watcher
	closers  []io.Closer
	Summary  *StartupSummary

	closeOnce sync.Once
}

// NewApp builds the application without starting it. path enables hot reload
// of the runtime-safe settings when non-empty.
func NewApp(cfg *config.Config, path string) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg, path)
}

// Run logs on to the venue and serves HTTP until ctx is cancelled or either fails.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	if a.venue == nil {
		return fmt.Errorf("venue not initialized")
	}
	defer a.Close()

	if a.Summary != nil {
		a.Summary.Print(os.Stdout)
	}
	a.reportPendingTimeouts(ctx)
	if a.recorder != nil {
		a.recorder.Start()
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		connectCtx, cancel := context.WithTimeout(ctx, a.cfg.Session.LogonTimeout)
		defer cancel()
		if err := a.venue.Connect(connectCtx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("connect %s: %w", a.venue.Name(), err)
		}
		logger.Infof("✓ venue %s ready", a.venue.Name())
		<-ctx.Done()
		return nil
	})
	if a.http != nil {
		group.Go(func() error {
			if err := a.http.Start(ctx); err != nil {
				return fmt.Errorf("http server error: %w", err)
			}
			return nil
		})
	}
	return group.Wait()
}

// Close stops the session first so that no frame or ledger write races the stores.
func (a *App) Close() {
	if a == nil {
		return
	}
	a.closeOnce.Do(func() {
		a.watcher.Close()
		if a.venue != nil {
			a.venue.Close()
		}
		a.alerts.Close()
		if a.recorder != nil {
			a.recorder.Stop()
			if n := a.recorder.Dropped(); n > 0 {
				logger.Warnf("journal: %d frames dropped during run", n)
			}
		}
		if a.journal != nil {
			if err := a.journal.Close(); err != nil {
				logger.Warnf("journal close: %v", err)
			}
		}
		if a.ledger != nil {
			if err := a.ledger.Close(); err != nil {
				logger.Warnf("ledger close: %v", err)
			}
		}
		for i := len(a.closers) - 1; i >= 0; i-- {
			_ = a.closers[i].Close()
		}
	})
}

// Venue exposes the configured venue (for tests and embedding).
func (a *App) Venue() gateway.Venue {
	if a == nil {
		return nil
	}
	return a.venue
}

// reportPendingTimeouts warns about requests that timed out in an earlier run and
// never received a late answer.
func (a *App) reportPendingTimeouts(ctx context.Context) {
	if a.ledger == nil {
		return
	}
	entries, err := a.ledger.Pending(ctx)
	if err != nil {
		logger.Warnf("ledger: list pending failed: %v", err)
		return
	}
	for _, e := range entries {
		logger.Warnf("ledger: %s %s on %s timed out at %s and is still unresolved (symbol=%s)",
			e.Kind, e.CorrelationID, e.Venue, e.TimedOutAt.Format(time.RFC3339), e.Symbol)
	}
}
