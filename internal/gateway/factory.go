// Package gateway builds the configured venue.
package gateway

import (
	"context"
	"fmt"

	"exconnector/internal/config"
	"exconnector/internal/correlation"
	"exconnector/internal/fix"
	"exconnector/internal/gateway/binance"
	"exconnector/internal/gateway/exchange"
	"exconnector/internal/gateway/fixvenue"
	"exconnector/internal/gateway/notifier"
	"exconnector/internal/logger"
	"exconnector/internal/metrics"
	"exconnector/internal/pkg/circuit"
	"exconnector/internal/store/ledger"
)

// Venue is an exchange with a connection lifecycle.
type Venue interface {
	exchange.Exchange
	Connect(ctx context.Context) error
	Close()
}

type Deps struct {
	Metrics *metrics.Collectors
	Ledger  *ledger.Store
	Journal fix.Journal
	// Alerts is optional; it receives session, breaker and late-completion events.
	Alerts *notifier.Alerts
	// Transport overrides the quickfix initiator built from session.settings_path.
	Transport fix.Transport
}

func NewVenueFromConfig(cfg *config.Config, deps Deps) (Venue, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	var ids correlation.IDGenerator = correlation.UUIDGenerator{}
	if cfg.Session.IDPrefix != "" {
		ids = correlation.NewSequenceGenerator(cfg.Session.IDPrefix)
	}
	switch cfg.Venue.Name {
	case config.VenueFIX:
		return newFIXVenue(cfg, ids, deps)
	case config.VenueBinance:
		var obs binance.Observer
		if deps.Metrics != nil {
			obs = deps.Metrics
		}
		v, err := binance.New(binance.Config{
			APIKey:           cfg.Binance.APIKey,
			SecretKey:        cfg.Binance.SecretKey,
			RESTBaseURL:      cfg.Binance.RESTBaseURL,
			HTTPTimeout:      cfg.Binance.HTTPTimeout,
			RequestTimeout:   cfg.Venue.RequestTimeout,
			ProxyEnabled:     cfg.Binance.ProxyEnabled,
			RESTProxyURL:     cfg.Binance.RESTProxyURL,
			BreakerThreshold: cfg.Binance.BreakerThreshold,
			BreakerCooldown:  cfg.Binance.BreakerCooldown,
		}, ids, obs)
		if err != nil {
			return nil, err
		}
		if deps.Alerts != nil {
			alerts := deps.Alerts
			v.OnBreakerChange(func(name string, from, to circuit.State) {
				logger.Warnf("circuit %s: %s -> %s", name, from, to)
				alerts.BreakerState(name, from.String(), to.String())
			})
		}
		return v, nil
	default:
		return nil, fmt.Errorf("unsupported venue: %s", cfg.Venue.Name)
	}
}

func newFIXVenue(cfg *config.Config, ids correlation.IDGenerator, deps Deps) (Venue, error) {
	transport := deps.Transport
	if transport == nil {
		settings, err := fix.LoadSettings(cfg.Session.SettingsPath)
		if err != nil {
			return nil, err
		}
		transport = fix.NewInitiatorTransport(settings, cfg.Session.ScreenLog)
	}
	opts := fix.Options{
		Username:       cfg.Session.Username,
		Password:       cfg.Session.Password,
		IDs:            ids,
		EvictOnTimeout: cfg.Venue.EvictOnTimeout(),
		Journal:        deps.Journal,
	}
	var vdeps fixvenue.Deps
	var late lateFanout
	if deps.Metrics != nil {
		opts.Observer = deps.Metrics
		late = append(late, deps.Metrics)
	}
	if deps.Alerts != nil {
		opts.Observer = alertingObserver{Observer: observerOrNop(opts.Observer), alerts: deps.Alerts}
		late = append(late, deps.Alerts)
	}
	if len(late) > 0 {
		vdeps.Late = late
	}
	if deps.Ledger != nil {
		vdeps.Ledger = deps.Ledger
	}
	v := fixvenue.New(transport, opts, fixvenue.Config{
		Name:            config.VenueFIX,
		Account:         cfg.Venue.Account,
		RequestTimeout:  cfg.Venue.RequestTimeout,
		CancelOnTimeout: cfg.Venue.CancelOnTimeout,
	}, vdeps)
	if deps.Metrics != nil {
		for _, family := range []string{"orders", "positions", "collateral"} {
			err := deps.Metrics.TrackPending(family, func() float64 {
				return float64(v.SessionStatus().Pending[family])
			})
			if err != nil {
				return nil, fmt.Errorf("register pending gauge: %w", err)
			}
		}
	}
	return v, nil
}

// alertingObserver forwards session transitions to the alerts as well.
type alertingObserver struct {
	fix.Observer
	alerts *notifier.Alerts
}

func (o alertingObserver) SessionState(state string) {
	o.Observer.SessionState(state)
	o.alerts.SessionState(state)
}

func observerOrNop(o fix.Observer) fix.Observer {
	if o == nil {
		return fix.NopObserver{}
	}
	return o
}

type lateFanout []fixvenue.LateRecorder

func (l lateFanout) LateCompletion(kind, outcome string) {
	for _, r := range l {
		r.LateCompletion(kind, outcome)
	}
}
